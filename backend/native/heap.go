// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import "github.com/gogpu/framecore/gpucore"

// WebGPU has no descriptor heaps. Slots hold texture pointers and the
// addresses are synthetic: they only need to be unique and stride-aligned.
const slotStride = 64

type heap struct {
	dev      *Device
	kind     gpucore.HeapKind
	capacity uint32
	cpuBase  gpucore.CPUAddress
	gpuBase  gpucore.GPUAddress
	slots    []*Texture
}

func (h *heap) Kind() gpucore.HeapKind      { return h.kind }
func (h *heap) Capacity() uint32            { return h.capacity }
func (h *heap) Stride() uint32              { return slotStride }
func (h *heap) CPUBase() gpucore.CPUAddress { return h.cpuBase }
func (h *heap) GPUBase() gpucore.GPUAddress { return h.gpuBase }

func (h *heap) Clear(addr gpucore.CPUAddress) {
	if i, ok := h.index(addr); ok {
		h.slots[i] = nil
	}
}

func (h *heap) Destroy() {
	h.dev.removeHeap(h)
	clear(h.slots)
}

func (h *heap) index(addr gpucore.CPUAddress) (uint32, bool) {
	if addr < h.cpuBase {
		return 0, false
	}
	off := uint64(addr - h.cpuBase)
	if off >= uint64(h.capacity)*slotStride || off%slotStride != 0 {
		return 0, false
	}
	return uint32(off / slotStride), true
}

func (h *heap) view(addr gpucore.CPUAddress) *Texture {
	if i, ok := h.index(addr); ok {
		return h.slots[i]
	}
	return nil
}
