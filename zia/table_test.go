package zia

import (
	"fmt"
	"testing"
)

func newKey(s string) *StringObj {
	return &StringObj{Chars: s, Hash: HashString(s)}
}

func TestTableSetGetDelete(t *testing.T) {
	var table Table
	a, b := newKey("a"), newKey("b")

	if _, ok := table.Get(a); ok {
		t.Fatalf("empty table must not find a key")
	}
	if !table.Set(a, NumberValue(1)) {
		t.Fatalf("first Set must report a new key")
	}
	if table.Set(a, NumberValue(2)) {
		t.Fatalf("second Set must report an existing key")
	}
	table.Set(b, BoolValue(true))

	v, ok := table.Get(a)
	if !ok || v.AsNumber() != 2 {
		t.Fatalf("expected 2, got %v (found=%v)", v, ok)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", table.Len())
	}

	if !table.Delete(a) {
		t.Fatalf("Delete must report an existing key")
	}
	if table.Delete(a) {
		t.Fatalf("Delete of a missing key must report false")
	}
	if _, ok := table.Get(a); ok {
		t.Fatalf("deleted key still present")
	}
	if v, ok := table.Get(b); !ok || !v.AsBool() {
		t.Fatalf("b lost after deleting a")
	}
}

func TestTableGrowsAndKeepsEntries(t *testing.T) {
	var table Table
	keys := make([]*StringObj, 100)
	for i := range keys {
		keys[i] = newKey(fmt.Sprintf("k%d", i))
		table.Set(keys[i], NumberValue(float64(i)))
	}

	capacity := table.Capacity()
	if capacity&(capacity-1) != 0 {
		t.Fatalf("capacity %d is not a power of two", capacity)
	}
	if float64(table.Len()) > float64(capacity)*tableMaxLoad {
		t.Fatalf("load %d/%d exceeds the maximum", table.Len(), capacity)
	}
	for i, k := range keys {
		v, ok := table.Get(k)
		if !ok || v.AsNumber() != float64(i) {
			t.Fatalf("key %s: expected %d, got %v (found=%v)", k.Chars, i, v, ok)
		}
	}
}

func TestTableTombstonesKeepProbeChains(t *testing.T) {
	var table Table
	keys := make([]*StringObj, 4)
	for i := range keys {
		keys[i] = newKey(fmt.Sprintf("t%d", i))
		table.Set(keys[i], NumberValue(float64(i)))
	}
	for i := 0; i < len(keys); i += 2 {
		table.Delete(keys[i])
	}
	for i := 1; i < len(keys); i += 2 {
		if _, ok := table.Get(keys[i]); !ok {
			t.Fatalf("key %s lost after deleting its neighbours", keys[i].Chars)
		}
	}

	// Reinserting a deleted key reuses a tombstone.
	before := table.count
	if !table.Set(keys[0], NilValue()) {
		t.Fatalf("reinserted key must count as new")
	}
	if table.count != before {
		t.Fatalf("count changed from %d to %d when filling a tombstone", before, table.count)
	}
}

func TestTableFindString(t *testing.T) {
	var table Table
	k := newKey("bonjour")
	table.Set(k, NilValue())

	if got := table.FindString("bonjour", HashString("bonjour")); got != k {
		t.Fatalf("expected the stored key, got %v", got)
	}
	if got := table.FindString("bonsoir", HashString("bonsoir")); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTableAddAll(t *testing.T) {
	var from, to Table
	from.Set(newKey("x"), NumberValue(1))
	from.Set(newKey("y"), NumberValue(2))
	to.AddAll(&from)
	if to.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", to.Len())
	}
}

func TestTableRemoveWhite(t *testing.T) {
	var table Table
	live, dead := newKey("vivant"), newKey("mort")
	table.Set(live, NilValue())
	table.Set(dead, NilValue())
	live.marked = true

	if n := table.removeWhite(); n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	if table.FindString("mort", dead.Hash) != nil {
		t.Fatalf("unmarked key still interned")
	}
	if table.FindString("vivant", live.Hash) != live {
		t.Fatalf("marked key was removed")
	}
}
