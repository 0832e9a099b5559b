// Package ringer implements a ring buffer (queue) with fixed or growing storage.
//
// Items are normally added at the write end with Put and removed from the read end with Get.
// PutFront, GetBack and GetNth deviate from plain queueing and allow the buffer to be used
// as a double-ended queue.
package ringer

import (
	"iter"

	"github.com/rotisserie/eris"
)

// Version of the ringer library
const Version = "0.0.1"

// MinSize is the smallest supported storage size
const MinSize = 2

// ErrSize is returned when a ringer is created with less than MinSize slots
var ErrSize = eris.New("size is below the minimum ringer size")

// Ringer is a ring buffer for values of type T. It's not safe for concurrent use, see Queue for that.
type Ringer[T any] struct {
	ridx int
	widx int
	cnt  int
	data []T
}

// New creates a ringer with room for size items
func New[T any](size int) (*Ringer[T], error) {
	if size < MinSize {
		return nil, eris.Wrapf(ErrSize, "requested %d, minimum is %d", size, MinSize)
	}

	return &Ringer[T]{
		data: make([]T, size),
	}, nil
}

// MustNew is like New but panics if size is too small
func MustNew[T any](size int) *Ringer[T] {
	rg, err := New[T](size)
	if err != nil {
		panic(err)
	}

	return rg
}

// Put appends item to the write end. Returns false if the ringer is full.
func (rg *Ringer[T]) Put(item T) bool {
	if rg.IsFull() {
		return false
	}

	rg.data[rg.widx] = item
	rg.widx = rg.next(rg.widx)
	rg.cnt++
	return true
}

// Get removes and returns the oldest item
func (rg *Ringer[T]) Get() (T, bool) {
	var zero T
	if rg.IsEmpty() {
		return zero, false
	}

	item := rg.data[rg.ridx]
	rg.data[rg.ridx] = zero
	rg.ridx = rg.next(rg.ridx)
	rg.cnt--
	return item, true
}

// Ram forcefully puts item into the ringer. If the ringer is full, its storage is doubled first.
// Returns true if a resize happened.
func (rg *Ringer[T]) Ram(item T) bool {
	resized := false
	if rg.IsFull() {
		rg.Resize(rg.Size() * 2)
		resized = true
	}

	rg.data[rg.widx] = item
	rg.widx = rg.next(rg.widx)
	rg.cnt++
	return resized
}

// PutFront inserts item before the oldest item so that it's returned by the next Get.
// Returns false if the ringer is full.
func (rg *Ringer[T]) PutFront(item T) bool {
	if rg.IsFull() {
		return false
	}

	rg.ridx = rg.prev(rg.ridx)
	rg.data[rg.ridx] = item
	rg.cnt++
	return true
}

// GetBack removes and returns the newest item
func (rg *Ringer[T]) GetBack() (T, bool) {
	var zero T
	if rg.IsEmpty() {
		return zero, false
	}

	rg.widx = rg.prev(rg.widx)
	item := rg.data[rg.widx]
	rg.data[rg.widx] = zero
	rg.cnt--
	return item, true
}

// Peek returns the oldest item without removing it
func (rg *Ringer[T]) Peek() (T, bool) {
	if rg.IsEmpty() {
		var zero T
		return zero, false
	}

	return rg.data[rg.ridx], true
}

// PeekBack returns the newest item without removing it
func (rg *Ringer[T]) PeekBack() (T, bool) {
	if rg.IsEmpty() {
		var zero T
		return zero, false
	}

	return rg.data[rg.prev(rg.widx)], true
}

// GetNth removes and returns the item at offset pos from the read end. Zero is the same as Get,
// positive offsets move towards the newest item and negative offsets count from the back
// (-1 is the newest item). The remaining items keep their order.
func (rg *Ringer[T]) GetNth(pos int) (T, bool) {
	var zero T

	n := pos
	if pos < 0 {
		n = rg.cnt + pos
	}

	if rg.IsEmpty() || n < 0 || n >= rg.cnt {
		return zero, false
	}

	item := rg.data[rg.phys(n)]

	// Close the gap from whichever side has fewer items to move.
	if n < rg.cnt/2 {
		for i := n; i > 0; i-- {
			rg.data[rg.phys(i)] = rg.data[rg.phys(i-1)]
		}
		rg.data[rg.ridx] = zero
		rg.ridx = rg.next(rg.ridx)
	} else {
		for i := n; i < rg.cnt-1; i++ {
			rg.data[rg.phys(i)] = rg.data[rg.phys(i+1)]
		}
		rg.widx = rg.prev(rg.widx)
		rg.data[rg.widx] = zero
	}

	rg.cnt--
	return item, true
}

// Count returns the number of stored items
func (rg *Ringer[T]) Count() int {
	return rg.cnt
}

// Size returns the storage size
func (rg *Ringer[T]) Size() int {
	return len(rg.data)
}

// IsEmpty reports whether the ringer holds no items
func (rg *Ringer[T]) IsEmpty() bool {
	return rg.cnt == 0
}

// IsFull reports whether every slot is taken
func (rg *Ringer[T]) IsFull() bool {
	return rg.cnt >= len(rg.data)
}

// Resize changes the storage size. Nothing happens (and false is returned) if size is below
// MinSize or can't hold the current items. The items are packed to the start of the new storage.
func (rg *Ringer[T]) Resize(size int) bool {
	if size < rg.cnt || size < MinSize {
		return false
	}

	data := make([]T, size)
	for i := 0; i < rg.cnt; i++ {
		data[i] = rg.data[rg.phys(i)]
	}

	rg.data = data
	rg.ridx = 0
	rg.widx = rg.cnt % size
	return true
}

// Clear drops all items but keeps the current size
func (rg *Ringer[T]) Clear() {
	clear(rg.data)
	rg.ridx = 0
	rg.widx = 0
	rg.cnt = 0
}

// All iterates over the stored items from oldest to newest. The ringer must not be modified
// while iterating.
func (rg *Ringer[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < rg.cnt; i++ {
			if !yield(i, rg.data[rg.phys(i)]) {
				return
			}
		}
	}
}

// Items returns a copy of the stored items from oldest to newest
func (rg *Ringer[T]) Items() []T {
	result := make([]T, 0, rg.cnt)
	for _, item := range rg.All() {
		result = append(result, item)
	}

	return result
}

func (rg *Ringer[T]) next(idx int) int {
	return (idx + 1) % len(rg.data)
}

func (rg *Ringer[T]) prev(idx int) int {
	return (idx - 1 + len(rg.data)) % len(rg.data)
}

// phys maps an offset from the read index to a storage index
func (rg *Ringer[T]) phys(n int) int {
	return (rg.ridx + n) % len(rg.data)
}
