package zia

import (
	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("zia.gc")

// rootSource contributes roots at the start of a collection. The VM and
// every active compiler register themselves.
type rootSource interface {
	markRoots(h *Heap)
}

// Handle identifies one allocation. It goes stale when the object is
// swept, even if its slot is reused.
type Handle struct {
	Index int
	Gen   uint32
}

// Heap owns every object through a slot registry, plus the string intern
// set. Collection is mark and sweep, triggered when the bytes charged to
// live objects exceed nextGC.
type Heap struct {
	objects []Obj
	gens    []uint32
	free    []int

	strings Table

	bytesAllocated int
	nextGC         int
	minNextGC      int
	growFactor     float64
	stress         bool
	logGC          bool

	gray  []Obj
	roots []rootSource
	temps []Value

	collections int
}

func NewHeap(cfg *Config) *Heap {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Heap{
		nextGC:     cfg.GC.InitialThreshold,
		minNextGC:  cfg.GC.InitialThreshold,
		growFactor: cfg.GC.GrowFactor,
		stress:     cfg.GC.Stress,
		logGC:      cfg.GC.Log,
	}
}

func (h *Heap) BytesAllocated() int { return h.bytesAllocated }
func (h *Heap) NextGC() int         { return h.nextGC }
func (h *Heap) Collections() int    { return h.collections }

// LiveObjects counts registered objects.
func (h *Heap) LiveObjects() int {
	return len(h.objects) - len(h.free)
}

func (h *Heap) HandleOf(o Obj) Handle {
	slot := o.header().slot
	return Handle{Index: slot, Gen: h.gens[slot]}
}

// Resolve returns the object behind handle, or false once it was swept.
func (h *Heap) Resolve(handle Handle) (Obj, bool) {
	if handle.Index < 0 || handle.Index >= len(h.objects) {
		return nil, false
	}
	if h.gens[handle.Index] != handle.Gen || h.objects[handle.Index] == nil {
		return nil, false
	}
	return h.objects[handle.Index], true
}

func (h *Heap) addRoots(r rootSource) {
	h.roots = append(h.roots, r)
}

func (h *Heap) removeRoots(r rootSource) {
	for i := len(h.roots) - 1; i >= 0; i-- {
		if h.roots[i] == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// pushTemp keeps v alive until the matching popTemp.
func (h *Heap) pushTemp(v Value) {
	h.temps = append(h.temps, v)
}

func (h *Heap) popTemp() {
	h.temps = h.temps[:len(h.temps)-1]
}

// track charges o to the heap, possibly collecting first, then registers
// it. o itself is not reachable during that collection and must not hold
// the only reference to anything unrooted.
func (h *Heap) track(o Obj) {
	size := o.size()
	if h.stress || h.bytesAllocated+size > h.nextGC {
		h.Collect()
	}
	h.bytesAllocated += size

	hdr := o.header()
	hdr.charged = size
	if n := len(h.free); n > 0 {
		hdr.slot = h.free[n-1]
		h.free = h.free[:n-1]
		h.objects[hdr.slot] = o
	} else {
		hdr.slot = len(h.objects)
		h.objects = append(h.objects, o)
		h.gens = append(h.gens, 0)
	}

	if h.logGC {
		gcLog.Debugf("slot %d allocate %d for %s", hdr.slot, size, o.Type())
	}
}

// recharge updates the size charged for o after it grew, such as a
// function whose chunk was filled by the compiler.
func (h *Heap) recharge(o Obj) {
	hdr := o.header()
	size := o.size()
	h.bytesAllocated += size - hdr.charged
	hdr.charged = size
}

// CopyString returns the interned string with the given content,
// allocating it on first use.
func (h *Heap) CopyString(chars string) *StringObj {
	hash := HashString(chars)
	if interned := h.strings.FindString(chars, hash); interned != nil {
		return interned
	}
	s := &StringObj{Chars: chars, Hash: hash}
	h.track(s)
	h.strings.Set(s, NilValue())
	return s
}

// InternedCount is the number of strings in the intern set.
func (h *Heap) InternedCount() int {
	return h.strings.Len()
}

func (h *Heap) NewFunction() *FunctionObj {
	fn := &FunctionObj{}
	h.track(fn)
	return fn
}

func (h *Heap) NewClosure(fn *FunctionObj) *ClosureObj {
	c := &ClosureObj{
		Function: fn,
		Upvalues: make([]*UpvalueObj, fn.UpvalueCount),
	}
	h.track(c)
	return c
}

func (h *Heap) NewUpvalue(slot int) *UpvalueObj {
	u := &UpvalueObj{Open: true, Slot: slot, Closed: NilValue()}
	h.track(u)
	return u
}

func (h *Heap) NewNative(name string, arity int, fn NativeFn) *NativeObj {
	n := &NativeObj{Name: name, Arity: arity, Fn: fn}
	h.track(n)
	return n
}

func (h *Heap) markValue(v Value) {
	if v.IsObj() {
		h.markObject(v.AsObj())
	}
}

func (h *Heap) markObject(o Obj) {
	if o == nil {
		return
	}
	hdr := o.header()
	if hdr.marked {
		return
	}
	if h.logGC {
		gcLog.Debugf("slot %d mark %s", hdr.slot, o.Type())
	}
	hdr.marked = true
	h.gray = append(h.gray, o)
}

func (h *Heap) blacken(o Obj) {
	switch obj := o.(type) {
	case *UpvalueObj:
		h.markValue(obj.Closed)
	case *FunctionObj:
		if obj.Name != nil {
			h.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			h.markValue(c)
		}
	case *ClosureObj:
		h.markObject(obj.Function)
		for _, u := range obj.Upvalues {
			if u != nil {
				h.markObject(u)
			}
		}
	case *StringObj, *NativeObj:
	}
}

func (h *Heap) markRoots() {
	for _, r := range h.roots {
		r.markRoots(h)
	}
	for _, v := range h.temps {
		h.markValue(v)
	}
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

func (h *Heap) sweep() int {
	freed := 0
	for i, o := range h.objects {
		if o == nil {
			continue
		}
		hdr := o.header()
		if hdr.marked {
			hdr.marked = false
			continue
		}
		h.bytesAllocated -= hdr.charged
		o.release()
		h.objects[i] = nil
		h.gens[i]++
		h.free = append(h.free, i)
		freed++
	}
	return freed
}

// Collect runs a full mark and sweep cycle.
func (h *Heap) Collect() {
	before := h.bytesAllocated
	if h.logGC {
		gcLog.Debug("-- gc begin")
	}

	h.markRoots()
	h.traceReferences()
	dropped := h.strings.removeWhite()
	freed := h.sweep()

	h.nextGC = max(int(float64(h.bytesAllocated)*h.growFactor), h.minNextGC)
	h.collections++

	if h.logGC {
		gcLog.Debugf("-- gc end: collected %d bytes (from %d to %d), %d objects, %d interned strings, next at %d",
			before-h.bytesAllocated, before, h.bytesAllocated, freed, dropped, h.nextGC)
	}
}

// FreeAll releases every object regardless of reachability. The heap is
// empty and reusable afterwards.
func (h *Heap) FreeAll() {
	for i, o := range h.objects {
		if o != nil {
			o.release()
			h.objects[i] = nil
		}
	}
	h.objects = nil
	h.gens = nil
	h.free = nil
	h.strings = Table{}
	h.gray = nil
	h.temps = nil
	h.bytesAllocated = 0
	h.nextGC = h.minNextGC
}
