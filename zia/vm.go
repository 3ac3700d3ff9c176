package zia

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var vmLog = commonlog.GetLogger("zia.vm")

// FramesMax is the default call depth limit.
const FramesMax = 64

type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	return []string{"ok", "compile error", "runtime error"}[r]
}

type CallFrame struct {
	Closure *ClosureObj
	IP      int
	// Slots is the stack index of the callee, local slot zero.
	Slots int
}

type VM struct {
	mu sync.Mutex

	frames     []CallFrame
	frameCount int
	stack      []Value

	globals      Table
	openUpvalues *UpvalueObj

	heap    *Heap
	config  *Config
	srcName string

	interrupted atomic.Bool

	Stdout io.Writer
	Stderr io.Writer
}

func NewVM() *VM {
	return NewVMWithConfig(DefaultConfig())
}

func NewVMWithConfig(cfg *Config) *VM {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	vm := &VM{
		frames: make([]CallFrame, cfg.Limits.FramesMax),
		stack:  make([]Value, 0, 256),
		heap:   NewHeap(cfg),
		config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	vm.heap.addRoots(vm)
	return vm
}

func (vm *VM) Heap() *Heap     { return vm.heap }
func (vm *VM) Config() *Config { return vm.config }
func (vm *VM) StackDepth() int { return len(vm.stack) }
func (vm *VM) FrameDepth() int { return vm.frameCount }

func (vm *VM) markRoots(h *Heap) {
	for _, v := range vm.stack {
		h.markValue(v)
	}
	for i := 0; i < vm.frameCount; i++ {
		h.markObject(vm.frames[i].Closure)
	}
	for u := vm.openUpvalues; u != nil; u = u.Next {
		h.markObject(u)
	}
	vm.globals.mark(h)
}

func (vm *VM) Push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) Pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) Peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// Interrupt makes the running script fail with a runtime error before its
// next instruction. It is safe to call from another goroutine.
func (vm *VM) Interrupt() {
	vm.interrupted.Store(true)
}

func (vm *VM) resetStack() {
	vm.closeUpvalues(0)
	vm.stack = vm.stack[:0]
	vm.frameCount = 0
}

// abandon drops the execution state after a fault. Open upvalues whose
// slot is gone close over nul.
func (vm *VM) abandon() {
	for u := vm.openUpvalues; u != nil; {
		next := u.Next
		u.Closed = NilValue()
		if u.Slot >= 0 && u.Slot < len(vm.stack) {
			u.Closed = vm.stack[u.Slot]
		}
		u.Open = false
		u.Next = nil
		u = next
	}
	vm.openUpvalues = nil
	vm.stack = vm.stack[:0]
	vm.frameCount = 0
}

// DefineNative binds fn to a global name.
func (vm *VM) DefineNative(name string, arity int, fn NativeFn) *NativeObj {
	nameObj := vm.heap.CopyString(name)
	vm.Push(ObjValue(nameObj))
	native := vm.heap.NewNative(name, arity, fn)
	vm.Push(ObjValue(native))
	vm.globals.Set(nameObj, ObjValue(native))
	vm.Pop()
	vm.Pop()
	return native
}

func (vm *VM) SetGlobal(name string, v Value) {
	vm.Push(v)
	vm.globals.Set(vm.heap.CopyString(name), v)
	vm.Pop()
}

func (vm *VM) GetGlobal(name string) (Value, bool) {
	key := vm.heap.strings.FindString(name, HashString(name))
	if key == nil {
		return Value{}, false
	}
	return vm.globals.Get(key)
}

// GlobalNames lists the names currently defined, natives included.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, vm.globals.Len())
	vm.globals.Each(func(key *StringObj, _ Value) {
		names = append(names, key.Chars)
	})
	return names
}

// Interpret compiles and runs source, reporting diagnostics on Stderr.
func (vm *VM) Interpret(srcName, source string) InterpretResult {
	err := vm.Run(srcName, source)
	return vm.report(err)
}

func (vm *VM) report(err error) InterpretResult {
	switch err.(type) {
	case nil:
		return InterpretOK
	case *CompileError:
		fmt.Fprintln(vm.Stderr, err.Error())
		return InterpretCompileError
	default:
		fmt.Fprintln(vm.Stderr, err.Error())
		return InterpretRuntimeError
	}
}

// Run compiles and runs source. The error is a *CompileError or a
// *RuntimeError.
func (vm *VM) Run(srcName, source string) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	res := vm.Compile(srcName, source)
	if res.IsErr() {
		return res.Err
	}
	vm.srcName = srcName
	return vm.execute(res.Value)
}

// Compile compiles source on this VM's heap without running it.
func (vm *VM) Compile(srcName, source string) Result[*FunctionObj] {
	c := NewCompiler(vm.heap)
	c.PrintCode = vm.config.Debug.PrintCode
	return c.Compile(NewLexer(srcName, source))
}

// RunFunction runs an already compiled top-level function, such as one
// loaded from an image.
func (vm *VM) RunFunction(srcName string, fn *FunctionObj) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.srcName = srcName
	return vm.execute(fn)
}

// InterpretFunction is RunFunction with diagnostics reported on Stderr.
func (vm *VM) InterpretFunction(srcName string, fn *FunctionObj) InterpretResult {
	return vm.report(vm.RunFunction(srcName, fn))
}

func (vm *VM) execute(fn *FunctionObj) (err error) {
	defer func() {
		if r := recover(); r != nil {
			vmLog.Errorf("fault while running %s: %v", vm.srcName, r)
			vm.abandon()
			err = &RuntimeError{
				Msg: fmt.Sprintf("Erreur interne de la machine : %v.", r),
				Loc: Loc{FileName: vm.srcName},
			}
		}
	}()
	vm.interrupted.Store(false)

	vm.Push(ObjValue(fn))
	closure := vm.heap.NewClosure(fn)
	vm.Pop()
	vm.Push(ObjValue(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// Free releases every object owned by the VM's heap.
func (vm *VM) Free() {
	vm.resetStack()
	vm.globals = Table{}
	vm.heap.FreeAll()
}

func (vm *VM) runtimeError(format string, args ...any) error {
	err := &RuntimeError{Msg: fmt.Sprintf(format, args...)}
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.Closure.Function
		ip := max(frame.IP-1, 0)
		entry := TraceEntry{Line: fn.Chunk.Lines[ip]}
		if fn.Name != nil {
			entry.Function = fn.Name.Chars
		}
		err.Trace = append(err.Trace, entry)
	}
	if len(err.Trace) > 0 {
		err.Loc = Loc{FileName: vm.srcName, Line: err.Trace[0].Line}
	}
	vm.resetStack()
	return err
}

func (vm *VM) call(closure *ClosureObj, argc int) error {
	fn := closure.Function
	if argc != fn.Arity {
		return vm.runtimeError("La fonction '%s' attend %d arguments mais en a reçu %d.", fn.DisplayName(), fn.Arity, argc)
	}
	if vm.frameCount == len(vm.frames) {
		return vm.runtimeError("Débordement de pile.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Slots = len(vm.stack) - argc - 1
	return nil
}

func (vm *VM) callValue(callee Value, argc int) error {
	if callee.IsObj() {
		switch obj := callee.AsObj().(type) {
		case *ClosureObj:
			return vm.call(obj, argc)
		case *NativeObj:
			if obj.Arity >= 0 && argc != obj.Arity {
				return vm.runtimeError("La fonction '%s' attend %d arguments mais en a reçu %d.", obj.Name, obj.Arity, argc)
			}
			top := len(vm.stack)
			base := top - argc
			result, err := obj.Fn(vm, vm.stack[base:top:top])
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.stack = vm.stack[:base-1]
			vm.Push(result)
			return nil
		}
	}
	return vm.runtimeError("Impossible d'appeler une valeur de type '%s'.", callee.TypeName())
}

func (vm *VM) captureUpvalue(slot int) *UpvalueObj {
	var prev *UpvalueObj
	up := vm.openUpvalues
	for up != nil && up.Slot > slot {
		prev = up
		up = up.Next
	}
	if up != nil && up.Slot == slot {
		return up
	}

	created := vm.heap.NewUpvalue(slot)
	created.Next = up
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues moves every open upvalue at or above slot last off the
// stack.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		u := vm.openUpvalues
		u.Closed = vm.stack[u.Slot]
		u.Open = false
		vm.openUpvalues = u.Next
		u.Next = nil
	}
}

func (vm *VM) upvalueGet(u *UpvalueObj) Value {
	if u.Open {
		return vm.stack[u.Slot]
	}
	return u.Closed
}

func (vm *VM) upvalueSet(u *UpvalueObj, v Value) {
	if u.Open {
		vm.stack[u.Slot] = v
		return
	}
	u.Closed = v
}

func (vm *VM) concatenate() {
	b := vm.Peek(0).AsString()
	a := vm.Peek(1).AsString()
	result := vm.heap.CopyString(a.Chars + b.Chars)
	vm.Pop()
	vm.Pop()
	vm.Push(ObjValue(result))
}

func (vm *VM) traceInstruction(frame *CallFrame) {
	var b strings.Builder
	b.WriteString("          ")
	for _, v := range vm.stack {
		fmt.Fprintf(&b, "[ %s ]", v)
	}
	b.WriteByte('\n')
	DisassembleInstruction(&b, &frame.Closure.Function.Chunk, frame.IP)
	vmLog.Debug(strings.TrimRight(b.String(), "\n"))
}

func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]
	trace := vm.config.Debug.TraceExecution && vmLog.AllowLevel(commonlog.Debug)

	readByte := func() byte {
		b := frame.Closure.Function.Chunk.Code[frame.IP]
		frame.IP++
		return b
	}
	readShort := func() int {
		v := frame.Closure.Function.Chunk.ReadShort(frame.IP)
		frame.IP += 2
		return int(v)
	}
	readConstant := func() Value {
		return frame.Closure.Function.Chunk.Constants[readByte()]
	}

	for {
		if vm.interrupted.Load() {
			vm.interrupted.Store(false)
			return vm.runtimeError("Exécution interrompue.")
		}
		if trace {
			vm.traceInstruction(frame)
		}

		switch op := OpCode(readByte()); op {
		case OpConstant:
			vm.Push(readConstant())
		case OpNil:
			vm.Push(NilValue())
		case OpTrue:
			vm.Push(BoolValue(true))
		case OpFalse:
			vm.Push(BoolValue(false))
		case OpPop:
			vm.Pop()

		case OpGetLocal:
			slot := int(readByte())
			vm.Push(vm.stack[frame.Slots+slot])
		case OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.Slots+slot] = vm.Peek(0)

		case OpGetGlobal:
			name := readConstant().AsString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Variable non définie '%s'.", name.Chars)
			}
			vm.Push(v)
		case OpDefineGlobal:
			name := readConstant().AsString()
			vm.globals.Set(name, vm.Peek(0))
			vm.Pop()
		case OpSetGlobal:
			name := readConstant().AsString()
			if vm.globals.Set(name, vm.Peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Variable non définie '%s'.", name.Chars)
			}

		case OpGetUpvalue:
			slot := readByte()
			vm.Push(vm.upvalueGet(frame.Closure.Upvalues[slot]))
		case OpSetUpvalue:
			slot := readByte()
			vm.upvalueSet(frame.Closure.Upvalues[slot], vm.Peek(0))

		case OpEqual:
			b := vm.Pop()
			a := vm.Pop()
			vm.Push(BoolValue(ValuesEqual(a, b)))
		case OpNotEqual:
			b := vm.Pop()
			a := vm.Pop()
			vm.Push(BoolValue(!ValuesEqual(a, b)))

		case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpSubtract, OpMultiply, OpDivide, OpModulo:
			if !vm.Peek(0).IsNumber() || !vm.Peek(1).IsNumber() {
				return vm.runtimeError("Les opérandes doivent être des nombres.")
			}
			b := vm.Pop().AsNumber()
			a := vm.Pop().AsNumber()
			switch op {
			case OpGreater:
				vm.Push(BoolValue(a > b))
			case OpGreaterEqual:
				vm.Push(BoolValue(a >= b))
			case OpLess:
				vm.Push(BoolValue(a < b))
			case OpLessEqual:
				vm.Push(BoolValue(a <= b))
			case OpSubtract:
				vm.Push(NumberValue(a - b))
			case OpMultiply:
				vm.Push(NumberValue(a * b))
			case OpDivide:
				if b == 0 {
					return vm.runtimeError("Division par zéro.")
				}
				vm.Push(NumberValue(a / b))
			case OpModulo:
				if b == 0 {
					return vm.runtimeError("Modulo par zéro.")
				}
				vm.Push(NumberValue(math.Mod(a, b)))
			}

		case OpAdd:
			b, a := vm.Peek(0), vm.Peek(1)
			switch {
			case a.IsString() && b.IsString():
				vm.concatenate()
			case a.IsNumber() && b.IsNumber():
				vm.Pop()
				vm.Pop()
				vm.Push(NumberValue(a.AsNumber() + b.AsNumber()))
			default:
				return vm.runtimeError("Les opérandes doivent être deux nombres ou deux chaînes.")
			}

		case OpNot:
			vm.Push(BoolValue(vm.Pop().IsFalsey()))
		case OpNegate:
			if !vm.Peek(0).IsNumber() {
				return vm.runtimeError("L'opérande doit être un nombre.")
			}
			vm.Push(NumberValue(-vm.Pop().AsNumber()))

		case OpPrint:
			n := int(readByte())
			var b strings.Builder
			for _, v := range vm.stack[len(vm.stack)-n:] {
				b.WriteString(v.String())
			}
			b.WriteByte('\n')
			io.WriteString(vm.Stdout, b.String())
			vm.stack = vm.stack[:len(vm.stack)-n]

		case OpJump:
			offset := readShort()
			frame.IP += offset
		case OpJumpIfFalse:
			offset := readShort()
			if vm.Peek(0).IsFalsey() {
				frame.IP += offset
			}
		case OpLoop:
			offset := readShort()
			frame.IP -= offset

		case OpCall:
			argc := int(readByte())
			if err := vm.callValue(vm.Peek(argc), argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpClosure:
			fn := readConstant().AsFunction()
			closure := vm.heap.NewClosure(fn)
			vm.Push(ObjValue(closure))
			for i := range closure.Upvalues {
				isLocal := readByte()
				index := int(readByte())
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.Slots + index)
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		case OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.Pop()

		case OpReturn:
			result := vm.Pop()
			vm.closeUpvalues(frame.Slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.stack = vm.stack[:0]
				return nil
			}
			vm.stack = vm.stack[:frame.Slots]
			vm.Push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Instruction inconnue %d.", op)
		}
	}
}
