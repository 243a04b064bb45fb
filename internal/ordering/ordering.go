// Package ordering implements drag-style reordering of sibling lists whose
// members carry a dense zero-based position.
package ordering

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// ErrInvalidIndex is returned when a source or destination index falls
// outside the sibling list.
var ErrInvalidIndex = errors.New("index out of range")

// Positioned is a sibling that can report and replace its position.
type Positioned[T any] interface {
	Key() uuid.UUID
	Pos() int
	WithPosition(n int) T
}

// Write is a single persisted position change.
type Write struct {
	ID       uuid.UUID
	Position int
}

// Result is the outcome of a Move.
type Result[T any] struct {
	Items   []T
	Changes []Write
}

// Noop reports whether the move left every position untouched.
func (r Result[T]) Noop() bool { return len(r.Changes) == 0 }

// Move relocates the element at src to dst in a list already sorted by
// position, shifting the elements between them by one. Every element
// ends up at the position matching its index. Changes lists only the
// elements whose stored position differs from the new one.
func Move[T Positioned[T]](items []T, src, dst int) (Result[T], error) {
	n := len(items)
	if src < 0 || src >= n || dst < 0 || dst >= n {
		return Result[T]{}, ErrInvalidIndex
	}

	out := make([]T, 0, n)
	out = append(out, items[:src]...)
	out = append(out, items[src+1:]...)
	moved := items[src]
	out = append(out[:dst], append([]T{moved}, out[dst:]...)...)

	var changes []Write
	for i, it := range out {
		if it.Pos() != i {
			changes = append(changes, Write{ID: it.Key(), Position: i})
		}
		out[i] = it.WithPosition(i)
	}
	return Result[T]{Items: out, Changes: changes}, nil
}

// Sort orders items by position, breaking ties by id so display order
// stays deterministic even when stored positions collide.
func Sort[T Positioned[T]](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Pos() != items[j].Pos() {
			return items[i].Pos() < items[j].Pos()
		}
		return items[i].Key().String() < items[j].Key().String()
	})
}

// Dense reports whether positions of a sorted list are exactly 0..n-1.
func Dense[T Positioned[T]](items []T) bool {
	for i, it := range items {
		if it.Pos() != i {
			return false
		}
	}
	return true
}

// Normalize rewrites positions of a sorted list to 0..n-1 and returns the
// writes needed to persist it.
func Normalize[T Positioned[T]](items []T) ([]T, []Write) {
	out := make([]T, len(items))
	var changes []Write
	for i, it := range items {
		if it.Pos() != i {
			changes = append(changes, Write{ID: it.Key(), Position: i})
		}
		out[i] = it.WithPosition(i)
	}
	return out, changes
}
