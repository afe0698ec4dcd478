// Package registry provides the conductor's entity-table primitive: a
// flat, slot-indexed array with a secondary key->slot index, the shape
// recommended by the design notes over one map-of-pointers per entity
// kind. Iteration for timer maintenance walks the slice directly, which
// keeps it cache-friendly and gives a stable visitation order; lookup by
// natural key goes through the index map.
//
// The conductor is single-threaded (spec.md §5: "No locks are required
// for registry access since only the conductor mutates"), so Table does
// no locking of its own — callers on other goroutines must not touch it.
package registry

// Table is a generic slotted entity table keyed by K, storing values of
// type V by pointer.
type Table[K comparable, V any] struct {
	items     []*V
	keys      []K
	index     map[K]int
	freeSlots []int
}

// NewTable creates an empty table.
func NewTable[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{index: make(map[K]int)}
}

// Insert adds v under key, reusing a free slot if one exists. It returns
// the slot assigned. Insert does not check for an existing key; callers
// that require at-most-one-per-key (e.g. publications) must check
// ByKey first.
func (t *Table[K, V]) Insert(key K, v *V) int {
	var slot int
	if n := len(t.freeSlots); n > 0 {
		slot = t.freeSlots[n-1]
		t.freeSlots = t.freeSlots[:n-1]
		t.items[slot] = v
		t.keys[slot] = key
	} else {
		slot = len(t.items)
		t.items = append(t.items, v)
		t.keys = append(t.keys, key)
	}
	t.index[key] = slot
	return slot
}

// ByKey looks up a value by its natural key.
func (t *Table[K, V]) ByKey(key K) (*V, bool) {
	slot, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.items[slot], true
}

// Remove deletes the entry for key, freeing its slot for reuse.
func (t *Table[K, V]) Remove(key K) {
	slot, ok := t.index[key]
	if !ok {
		return
	}
	t.items[slot] = nil
	delete(t.index, key)
	t.freeSlots = append(t.freeSlots, slot)
}

// Each calls fn for every live entry, in slot order. fn may be called
// with entries whose slot was since freed only if Remove/Insert happen
// from within fn itself, which callers must avoid; maintenance passes
// should collect keys to remove and apply them after the walk.
func (t *Table[K, V]) Each(fn func(key K, v *V)) {
	for slot, v := range t.items {
		if v != nil {
			fn(t.keys[slot], v)
		}
	}
}

// Len returns the number of live entries.
func (t *Table[K, V]) Len() int {
	return len(t.index)
}

// CounterAllocator hands out monotonically increasing conductor-local
// counter ids (position-limit counters, subscriber-position ids). It
// does not implement the external counter-storage mechanics (out of
// scope per spec.md §1); it only sequences the ids the conductor itself
// assigns when wiring up a publication or image.
type CounterAllocator struct {
	next int32
}

// Next returns the next counter id.
func (a *CounterAllocator) Next() int32 {
	id := a.next
	a.next++
	return id
}
