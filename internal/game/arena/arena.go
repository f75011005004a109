// Package arena stores values in generation-checked slots.
//
// A Handle stays comparable and copyable after its value is removed; Get on a stale
// handle reports false instead of returning the slot's next occupant.
package arena

import "iter"

// Handle identifies one value in an Arena.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Nil is the zero handle. It never refers to a live value because live generations start at 1.
var Nil = Handle{}

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool {
	return h.Gen == 0
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Arena is a slot array with free-list reuse.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.gen++
	s.value = v
	s.live = true
	a.count++
	return Handle{Index: idx, Gen: s.gen}
}

// Get returns the value for h, or false if h is stale or nil.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if !a.Valid(h) {
		return zero, false
	}
	return a.slots[h.Index].value, true
}

// Valid reports whether h refers to a live value.
func (a *Arena[T]) Valid(h Handle) bool {
	if h.IsNil() || int(h.Index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.Index]
	return s.live && s.gen == h.Gen
}

// Remove deletes the value for h and reports whether it was live.
// The slot's generation advances on the next Insert, invalidating every copy of h.
func (a *Arena[T]) Remove(h Handle) bool {
	if !a.Valid(h) {
		return false
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.count
}

// All yields live handles and values in slot order.
func (a *Arena[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for i := range a.slots {
			s := a.slots[i]
			if !s.live {
				continue
			}
			if !yield(Handle{Index: uint32(i), Gen: s.gen}, s.value) {
				return
			}
		}
	}
}
