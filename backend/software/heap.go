// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import "github.com/gogpu/framecore/gpucore"

// Slot strides in bytes, matching typical desktop driver increments.
const (
	strideRenderTarget  = 32
	strideDepthStencil  = 8
	strideShaderVisible = 32
)

func strideFor(kind gpucore.HeapKind) uint32 {
	switch kind {
	case gpucore.HeapRenderTarget:
		return strideRenderTarget
	case gpucore.HeapDepthStencil:
		return strideDepthStencil
	default:
		return strideShaderVisible
	}
}

// heap stores views as texture pointers indexed by slot.
type heap struct {
	dev      *Device
	kind     gpucore.HeapKind
	stride   uint32
	capacity uint32
	cpuBase  gpucore.CPUAddress
	gpuBase  gpucore.GPUAddress
	slots    []*texture
}

func (h *heap) Kind() gpucore.HeapKind        { return h.kind }
func (h *heap) Capacity() uint32              { return h.capacity }
func (h *heap) Stride() uint32                { return h.stride }
func (h *heap) CPUBase() gpucore.CPUAddress   { return h.cpuBase }
func (h *heap) GPUBase() gpucore.GPUAddress   { return h.gpuBase }
func (h *heap) span() uint64                  { return uint64(h.capacity) * uint64(h.stride) }
func (h *heap) Clear(addr gpucore.CPUAddress) { h.set(addr, nil) }

// Destroy implements gpucore.DescriptorHeap.
func (h *heap) Destroy() {
	h.dev.removeHeap(h)
	clear(h.slots)
}

// index converts a CPU address into a slot index. Addresses inside a slot
// but not at its start are rejected.
func (h *heap) index(addr gpucore.CPUAddress) (uint32, bool) {
	if addr < h.cpuBase {
		return 0, false
	}
	off := uint64(addr - h.cpuBase)
	if off >= h.span() || off%uint64(h.stride) != 0 {
		return 0, false
	}
	return uint32(off / uint64(h.stride)), true
}

func (h *heap) containsGPU(addr gpucore.GPUAddress) bool {
	if h.gpuBase == 0 || addr < h.gpuBase {
		return false
	}
	off := uint64(addr - h.gpuBase)
	return off < h.span() && off%uint64(h.stride) == 0
}

func (h *heap) set(addr gpucore.CPUAddress, t *texture) {
	if idx, ok := h.index(addr); ok {
		h.slots[idx] = t
	}
}

// view returns the texture stored at addr, or nil for an empty slot.
func (h *heap) view(addr gpucore.CPUAddress) *texture {
	idx, ok := h.index(addr)
	if !ok {
		return nil
	}
	return h.slots[idx]
}
