package server

// indexBits is how many low bits of a handle hold the slot index. The rest hold the slot's
// generation, bumped on every remove, so a handle to a freed slot never resolves to the slot's
// next occupant. A slot's first handle is its bare index.
const (
	indexBits = 16
	indexMask = 1<<indexBits - 1
)

// table is a fixed capacity slot table handing out generation tagged handles. Freed slots are
// reused by the next alloc, under a new handle.
type table[T any] struct {
	slots  []T
	active []bool
	gens   []uint16
	live   int
}

func newTable[T any](capacity int) *table[T] {
	return &table[T]{
		slots:  make([]T, capacity),
		active: make([]bool, capacity),
		gens:   make([]uint16, capacity),
	}
}

func (t *table[T]) handle(i int) uint32 {
	return uint32(t.gens[i])<<indexBits | uint32(i)
}

// resolve returns the slot index of a live handle.
func (t *table[T]) resolve(h uint32) (int, bool) {
	i := int(h & indexMask)
	if i >= len(t.slots) || !t.active[i] || t.gens[i] != uint16(h>>indexBits) {
		return 0, false
	}
	return i, true
}

// firstFree returns the handle the first unused slot will have once set.
func (t *table[T]) firstFree() (uint32, bool) {
	for i, a := range t.active {
		if !a {
			return t.handle(i), true
		}
	}
	return 0, false
}

// set stores v under a handle returned by firstFree.
func (t *table[T]) set(h uint32, v T) {
	i := int(h & indexMask)
	if !t.active[i] {
		t.live++
	}
	t.slots[i] = v
	t.active[i] = true
}

func (t *table[T]) get(h uint32) (T, bool) {
	i, ok := t.resolve(h)
	if !ok {
		var zero T
		return zero, false
	}
	return t.slots[i], true
}

// remove frees the slot and returns what it held. The handle, and any earlier one for the
// slot, no longer resolves.
func (t *table[T]) remove(h uint32) (T, bool) {
	var zero T
	i, ok := t.resolve(h)
	if !ok {
		return zero, false
	}
	v := t.slots[i]
	t.slots[i] = zero
	t.active[i] = false
	t.gens[i]++
	t.live--
	return v, true
}

// drain removes every live slot, calling fn with its handle and value.
func (t *table[T]) drain(fn func(h uint32, v T)) {
	for i := range t.slots {
		if !t.active[i] {
			continue
		}
		h := t.handle(i)
		if v, ok := t.remove(h); ok {
			fn(h, v)
		}
	}
}

func (t *table[T]) len() int {
	return t.live
}
