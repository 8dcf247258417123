// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slottable

import "container/heap"

// Table is a free-list backed array of optional values.
type Table[T any] struct {
	slots    []slot[T]
	free     freeList
	occupied int
}

type slot[T any] struct {
	value    T
	occupied bool
}

// New returns an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{}
}

// Acquire stores value at the lowest free index, growing the table when
// every slot is occupied, and returns that index.
func (t *Table[T]) Acquire(value T) int {
	var index int
	if t.free.Len() > 0 {
		index = heap.Pop(&t.free).(int)
	} else {
		index = len(t.slots)
		t.slots = append(t.slots, slot[T]{})
	}
	t.slots[index] = slot[T]{value: value, occupied: true}
	t.occupied++
	return index
}

// Release frees index and returns the value it held. Releasing an
// index that is out of range or already free is a no-op that returns
// false.
func (t *Table[T]) Release(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(t.slots) || !t.slots[index].occupied {
		return zero, false
	}
	value := t.slots[index].value
	t.slots[index] = slot[T]{}
	heap.Push(&t.free, index)
	t.occupied--
	return value, true
}

// Get returns the value at index if it is occupied.
func (t *Table[T]) Get(index int) (T, bool) {
	if index < 0 || index >= len(t.slots) || !t.slots[index].occupied {
		var zero T
		return zero, false
	}
	return t.slots[index].value, true
}

// Len returns the number of occupied slots.
func (t *Table[T]) Len() int {
	return t.occupied
}

// Range calls fn for every occupied slot in index order until fn
// returns false. fn must not Acquire or Release.
func (t *Table[T]) Range(fn func(index int, value T) bool) {
	for index := range t.slots {
		if !t.slots[index].occupied {
			continue
		}
		if !fn(index, t.slots[index].value) {
			return
		}
	}
}

// freeList is a min-heap of released indices.
type freeList []int

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *freeList) Push(x any)        { *f = append(*f, x.(int)) }

func (f *freeList) Pop() any {
	old := *f
	last := old[len(old)-1]
	*f = old[:len(old)-1]
	return last
}
