package zia

const tableMaxLoad = 0.75

type entry struct {
	key   *StringObj
	value Value
}

// tombstones have no key and a true value; empty slots hold nil
func (e *entry) isTombstone() bool {
	return e.key == nil && e.value.IsBool() && e.value.AsBool()
}

// Table maps interned strings to values using open addressing with linear
// probing. Deleted entries leave tombstones so probe chains stay intact;
// count includes them.
type Table struct {
	count   int
	entries []entry
}

func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].key != nil {
			n++
		}
	}
	return n
}

func (t *Table) Capacity() int {
	return len(t.entries)
}

func findEntry(entries []entry, key *StringObj) *entry {
	capacity := uint32(len(entries))
	index := key.Hash & (capacity - 1)
	var tombstone *entry
	for {
		e := &entries[index]
		if e.key == nil {
			if !e.isTombstone() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) & (capacity - 1)
	}
}

func (t *Table) Get(key *StringObj) (Value, bool) {
	if t.count == 0 {
		return Value{}, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return Value{}, false
	}
	return e.value, true
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i].value = NilValue()
	}

	t.count = 0
	for i := range t.entries {
		src := &t.entries[i]
		if src.key == nil {
			continue
		}
		dst := findEntry(entries, src.key)
		dst.key = src.key
		dst.value = src.value
		t.count++
	}
	t.entries = entries
}

// Set stores value under key and reports whether the key was new.
func (t *Table) Set(key *StringObj, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}

	e := findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && !e.isTombstone() {
		t.count++
	}
	e.key = key
	e.value = value
	return isNewKey
}

func (t *Table) Delete(key *StringObj) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = BoolValue(true)
	return true
}

func (t *Table) AddAll(from *Table) {
	for i := range from.entries {
		e := &from.entries[i]
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString looks a string up by content. It is how the intern set
// decides whether chars already have a canonical StringObj.
func (t *Table) FindString(chars string, hash uint32) *StringObj {
	if t.count == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash & (capacity - 1)
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.isTombstone() {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) & (capacity - 1)
	}
}

// Each calls fn for every live entry.
func (t *Table) Each(fn func(key *StringObj, value Value)) {
	for i := range t.entries {
		if t.entries[i].key != nil {
			fn(t.entries[i].key, t.entries[i].value)
		}
	}
}

// removeWhite drops every entry whose key is unmarked.
func (t *Table) removeWhite() int {
	removed := 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.marked {
			e.key = nil
			e.value = BoolValue(true)
			removed++
		}
	}
	return removed
}

func (t *Table) mark(h *Heap) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			h.markObject(e.key)
			h.markValue(e.value)
		}
	}
}
