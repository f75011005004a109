package rules

import "iter"

type safeEntry[T comparable] struct {
	value   T
	removed bool
}

// SafeList is an ordered collection that can be mutated while it is being iterated.
//
// Iteration always walks a snapshot taken when the iterator is created. An element removed
// after the snapshot is skipped; an element added after the snapshot is not visited by it.
// An element removed and re-added gets a fresh entry, so a running snapshot never visits it twice.
type SafeList[T comparable] struct {
	entries []*safeEntry[T]
}

// NewSafeList creates an empty list.
func NewSafeList[T comparable]() *SafeList[T] {
	return &SafeList[T]{entries: make([]*safeEntry[T], 0, 4)}
}

// Add appends v. Adding an element already present is a no-op.
func (l *SafeList[T]) Add(v T) {
	if l.Contains(v) {
		return
	}
	l.entries = append(l.entries, &safeEntry[T]{value: v})
}

// Remove deletes v and reports whether it was present.
func (l *SafeList[T]) Remove(v T) bool {
	for i, e := range l.entries {
		if e.value == v {
			e.removed = true
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether v is currently in the list.
func (l *SafeList[T]) Contains(v T) bool {
	for _, e := range l.entries {
		if e.value == v {
			return true
		}
	}
	return false
}

// Len returns the number of live elements.
func (l *SafeList[T]) Len() int {
	return len(l.entries)
}

// Items returns a copy of the live elements in order.
func (l *SafeList[T]) Items() []T {
	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.value
	}
	return out
}

// Snapshot freezes the current iteration order.
func (l *SafeList[T]) Snapshot() Snapshot[T] {
	entries := make([]*safeEntry[T], len(l.entries))
	copy(entries, l.entries)
	return Snapshot[T]{entries: entries}
}

// All is shorthand for Snapshot().All().
func (l *SafeList[T]) All() iter.Seq[T] {
	return l.Snapshot().All()
}

// Snapshot is a frozen iteration order over a SafeList.
type Snapshot[T comparable] struct {
	entries []*safeEntry[T]
}

// All yields the snapshot's elements in list order, skipping removed ones.
func (s Snapshot[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, e := range s.entries {
			if e.removed {
				continue
			}
			if !yield(e.value) {
				return
			}
		}
	}
}

// Backward yields the snapshot's elements in reverse list order, skipping removed ones.
func (s Snapshot[T]) Backward() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := len(s.entries) - 1; i >= 0; i-- {
			e := s.entries[i]
			if e.removed {
				continue
			}
			if !yield(e.value) {
				return
			}
		}
	}
}

// Walk yields the snapshot in the requested direction.
func (s Snapshot[T]) Walk(dir Direction) iter.Seq[T] {
	if dir == Backward {
		return s.Backward()
	}
	return s.All()
}
