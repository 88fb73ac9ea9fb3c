// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package descriptor manages fixed-capacity descriptor heaps.
//
// A Heap wraps a backend gpucore.DescriptorHeap and converts slot indices
// to addresses. An Allocator hands out slots of one heap as Handle values.
// Heaps are never resized: running out of slots is an error (Allocate) or
// an abort (MustAllocate), never a silent reallocation that would
// invalidate handles already recorded into command lists.
//
// Neither type is safe for concurrent use. The frame loop owns them.
package descriptor

import (
	"fmt"

	"github.com/gogpu/framecore/gpucore"
)

// Heap is a typed, fixed-capacity table of descriptor slots.
type Heap struct {
	backend gpucore.DescriptorHeap
	kind    gpucore.HeapKind
	cap     uint32
	stride  uint32
	cpuBase gpucore.CPUAddress
	gpuBase gpucore.GPUAddress
}

// NewHeap creates a heap of the given kind and capacity on dev.
func NewHeap(dev gpucore.Device, kind gpucore.HeapKind, capacity uint32) (*Heap, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("descriptor: %v heap capacity must be positive", kind)
	}
	b, err := dev.CreateDescriptorHeap(kind, capacity)
	if err != nil {
		return nil, fmt.Errorf("descriptor: create %v heap: %w", kind, err)
	}
	return &Heap{
		backend: b,
		kind:    kind,
		cap:     capacity,
		stride:  b.Stride(),
		cpuBase: b.CPUBase(),
		gpuBase: b.GPUBase(),
	}, nil
}

// Kind returns the heap kind.
func (h *Heap) Kind() gpucore.HeapKind { return h.kind }

// Capacity returns the number of slots.
func (h *Heap) Capacity() uint32 { return h.cap }

// Stride returns the distance between consecutive slot addresses.
func (h *Heap) Stride() uint32 { return h.stride }

// ShaderVisible reports whether slots have GPU addresses.
func (h *Heap) ShaderVisible() bool { return h.kind == gpucore.HeapShaderVisible }

// Backend returns the backend heap.
func (h *Heap) Backend() gpucore.DescriptorHeap { return h.backend }

// CPU returns the CPU address of slot i.
func (h *Heap) CPU(i uint32) gpucore.CPUAddress {
	return h.cpuBase + gpucore.CPUAddress(uint64(i)*uint64(h.stride))
}

// GPU returns the GPU address of slot i, or zero for heaps that are not
// shader-visible.
func (h *Heap) GPU(i uint32) gpucore.GPUAddress {
	if !h.ShaderVisible() {
		return 0
	}
	return h.gpuBase + gpucore.GPUAddress(uint64(i)*uint64(h.stride))
}

// handle builds the handle of slot i.
func (h *Heap) handle(i uint32) Handle {
	return Handle{heap: h, index: i, cpu: h.CPU(i), gpu: h.GPU(i)}
}

// Destroy releases the backend heap. Handles into h become invalid.
func (h *Heap) Destroy() {
	if h.backend != nil {
		h.backend.Destroy()
		h.backend = nil
	}
}

// Handle identifies one slot of a Heap. The zero Handle is invalid.
type Handle struct {
	heap  *Heap
	index uint32
	cpu   gpucore.CPUAddress
	gpu   gpucore.GPUAddress
}

// Valid reports whether h was returned by an Allocator.
func (h Handle) Valid() bool { return h.heap != nil }

// Heap returns the heap the handle belongs to.
func (h Handle) Heap() *Heap { return h.heap }

// Kind returns the kind of the owning heap.
func (h Handle) Kind() gpucore.HeapKind {
	if h.heap == nil {
		return 0
	}
	return h.heap.kind
}

// Index returns the slot index.
func (h Handle) Index() uint32 { return h.index }

// CPU returns the CPU address of the slot.
func (h Handle) CPU() gpucore.CPUAddress { return h.cpu }

// GPU returns the GPU address of the slot, zero unless shader-visible.
func (h Handle) GPU() gpucore.GPUAddress { return h.gpu }

// String formats the handle for logs.
func (h Handle) String() string {
	if h.heap == nil {
		return "descriptor.Handle(invalid)"
	}
	return fmt.Sprintf("%v[%d]", h.heap.kind, h.index)
}
