// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package descriptor

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Allocator errors.
var (
	// ErrOutOfDescriptors is returned when every slot of the heap is live.
	ErrOutOfDescriptors = errors.New("descriptor: out of descriptors")

	// ErrInvalidHandle is returned when freeing a handle of another heap or
	// with an index outside the heap.
	ErrInvalidHandle = errors.New("descriptor: invalid handle")

	// ErrDoubleFree is returned when freeing a slot that is not live.
	ErrDoubleFree = errors.New("descriptor: slot is not allocated")
)

// Allocator hands out the slots of one Heap.
//
// Fresh slots come from a bump index. Freed slots go on a stack and are
// reused last-in first-out before the bump index advances. A bitset keeps
// the live slots so that no index is returned twice while live.
type Allocator struct {
	heap *Heap
	next uint32
	free []uint32
	live *bitset.BitSet
	n    uint32
	high uint32
}

// NewAllocator creates an allocator over every slot of h.
func NewAllocator(h *Heap) *Allocator {
	return &Allocator{
		heap: h,
		live: bitset.New(uint(h.cap)),
	}
}

// Heap returns the heap slots are allocated from.
func (a *Allocator) Heap() *Heap { return a.heap }

// Allocate returns a free slot.
func (a *Allocator) Allocate() (Handle, error) {
	var i uint32
	switch {
	case len(a.free) > 0:
		i = a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
	case a.next < a.heap.cap:
		i = a.next
		a.next++
	default:
		return Handle{}, fmt.Errorf("%w: %v heap, capacity %d", ErrOutOfDescriptors, a.heap.kind, a.heap.cap)
	}
	a.live.Set(uint(i))
	a.n++
	if a.n > a.high {
		a.high = a.n
	}
	return a.heap.handle(i), nil
}

// MustAllocate is like Allocate but panics when the heap is exhausted.
// Use it for heaps whose budget is fixed at startup, where running out is a
// programming error.
func (a *Allocator) MustAllocate() Handle {
	h, err := a.Allocate()
	if err != nil {
		panic(err)
	}
	return h
}

// Free returns h's slot to the allocator and clears the backend view so
// that a stale handle cannot read it.
func (a *Allocator) Free(h Handle) error {
	if h.heap != a.heap || h.index >= a.heap.cap {
		return fmt.Errorf("%w: %v", ErrInvalidHandle, h)
	}
	if !a.live.Test(uint(h.index)) {
		return fmt.Errorf("%w: %v", ErrDoubleFree, h)
	}
	a.live.Clear(uint(h.index))
	a.n--
	a.free = append(a.free, h.index)
	if b := a.heap.backend; b != nil {
		b.Clear(h.cpu)
	}
	return nil
}

// IsLive reports whether h is currently allocated from a.
func (a *Allocator) IsLive(h Handle) bool {
	return h.heap == a.heap && h.index < a.heap.cap && a.live.Test(uint(h.index))
}

// Live returns the number of allocated slots.
func (a *Allocator) Live() uint32 { return a.n }

// Capacity returns the heap capacity.
func (a *Allocator) Capacity() uint32 { return a.heap.cap }

// HighWater returns the largest number of slots live at the same time.
func (a *Allocator) HighWater() uint32 { return a.high }
