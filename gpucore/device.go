// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "errors"

// Errors a backend reports from steady-state calls. Callers detect them
// with errors.Is; backends wrap them with context.
var (
	// ErrDeviceRemoved means the driver removed or reset the device.
	// Everything created from the device must be destroyed and the device
	// recreated.
	ErrDeviceRemoved = errors.New("gpucore: device removed")

	// ErrDeviceLost means the GPU stopped making progress (for example a
	// fence wait timed out). It is handled like ErrDeviceRemoved.
	ErrDeviceLost = errors.New("gpucore: device lost")

	// ErrSurfaceLost means the presentation surface became unusable and the
	// swap chain must be resized or recreated.
	ErrSurfaceLost = errors.New("gpucore: surface lost")

	// ErrUnsupported is returned for operations a backend does not provide.
	ErrUnsupported = errors.New("gpucore: operation not supported")
)

// Device creates GPU objects. It is the root of everything a backend owns.
//
// Initial resource states are fixed by convention so that callers can
// start tracking without querying the backend: back buffers start in
// StatePresent, depth buffers in StateDepthWrite and textures created by
// CreateTexture in StateCopyDest.
type Device interface {
	// Name returns the backend or adapter name.
	Name() string

	// Queue returns the device's single graphics queue.
	Queue() Queue

	// CreateDescriptorHeap creates a fixed-capacity descriptor heap.
	CreateDescriptorHeap(kind HeapKind, capacity uint32) (DescriptorHeap, error)

	// CreateCommandList creates a command list in the closed state.
	CreateCommandList(label string) (CommandList, error)

	// CreateFence creates a fence whose completed value starts at initial.
	CreateFence(initial uint64) (Fence, error)

	// CreateSwapChain creates a swap chain with desc.BufferCount back buffers.
	CreateSwapChain(desc SwapChainDesc) (SwapChain, error)

	// CreateDepthBuffer creates a depth-stencil texture that can also be
	// sampled by shaders.
	CreateDepthBuffer(label string, width, height uint32) (Resource, error)

	// CreateTexture creates a sampled texture that can be a copy target.
	CreateTexture(desc TextureDesc) (Resource, error)

	// DestroyResource releases a resource created by this device.
	// Back buffers are owned by their swap chain and must not be passed here.
	DestroyResource(r Resource)

	// CreateRenderTargetView writes a render-target view of r into the
	// render-target heap slot at dst.
	CreateRenderTargetView(r Resource, dst CPUAddress) error

	// CreateDepthStencilView writes a depth-stencil view of r into the
	// depth-stencil heap slot at dst.
	CreateDepthStencilView(r Resource, dst CPUAddress) error

	// CreateShaderResourceView writes a shader-readable view of r into the
	// shader-visible heap slot at dst.
	CreateShaderResourceView(r Resource, dst CPUAddress) error

	// Destroy releases the device. All child objects must be destroyed first.
	Destroy()
}

// Queue executes closed command buffers in submission order.
type Queue interface {
	// Submit schedules cmds for execution after all previous submissions.
	Submit(cmds []CommandBuffer) error

	// Signal asks the queue to set f to value once all previously
	// submitted work has completed.
	Signal(f Fence, value uint64) error
}

// DescriptorHeap is the backend storage of a descriptor table.
type DescriptorHeap interface {
	// Kind returns the heap kind.
	Kind() HeapKind

	// Capacity returns the fixed number of slots.
	Capacity() uint32

	// Stride returns the distance between consecutive slot addresses.
	Stride() uint32

	// CPUBase returns the address of slot 0.
	CPUBase() CPUAddress

	// GPUBase returns the GPU address of slot 0. It is zero for heaps that
	// are not shader-visible.
	GPUBase() GPUAddress

	// Clear empties the slot at addr so that a stale view cannot be read.
	Clear(addr CPUAddress)

	// Destroy releases the heap and every view in it.
	Destroy()
}

// CommandBuffer is a closed command list ready for submission.
type CommandBuffer interface {
	// Label returns the label of the list it was closed from.
	Label() string
}

// CommandList records GPU commands. It owns its command allocator: Reset
// reuses the allocator memory, so the caller must ensure the previous
// submission finished executing.
type CommandList interface {
	// Reset reopens the list for recording.
	Reset() error

	// Close ends recording and returns the submittable buffer.
	Close() (CommandBuffer, error)

	// ResourceBarrier records state transitions.
	ResourceBarrier(barriers []Barrier)

	// ClearRenderTargetView clears the render target whose view is at rtv.
	ClearRenderTargetView(rtv CPUAddress, c Color)

	// ClearDepthStencilView clears the depth buffer whose view is at dsv.
	ClearDepthStencilView(dsv CPUAddress, depth float32, stencil uint8)

	// SetRenderTargets binds color targets and an optional depth target.
	SetRenderTargets(rtvs []CPUAddress, dsv *CPUAddress)

	// SetViewport sets the viewport.
	SetViewport(vp Viewport)

	// SetScissor sets the scissor rectangle.
	SetScissor(r Rect)

	// SetDescriptorTable binds the shader-visible descriptors starting at
	// base to root slot.
	SetDescriptorTable(slot uint32, base GPUAddress)

	// Draw records a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed records an indexed draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// Dispatch records a compute dispatch.
	Dispatch(x, y, z uint32)

	// Destroy releases the list and its allocator.
	Destroy()
}

// Fence is a GPU/CPU synchronization counter.
type Fence interface {
	// CompletedValue returns the last value the GPU reached. A device that
	// was removed reports math.MaxUint64.
	CompletedValue() uint64

	// Done returns a one-shot event that is closed once the completed
	// value reaches value.
	Done(value uint64) <-chan struct{}

	// Destroy releases the fence.
	Destroy()
}

// SwapChain is an N-buffered presentable surface.
type SwapChain interface {
	// BufferCount returns the fixed number of back buffers.
	BufferCount() uint32

	// CurrentBackBufferIndex returns the buffer the next frame renders to.
	// The presentation engine decides the order.
	CurrentBackBufferIndex() uint32

	// BackBuffer returns back buffer i.
	BackBuffer(i uint32) (Resource, error)

	// Present queues the current back buffer for display. syncInterval 0
	// presents immediately, n > 0 waits for n vertical blanks.
	Present(syncInterval uint32) error

	// ResizeBuffers resizes every back buffer. References returned by
	// BackBuffer before the call are invalid afterwards.
	ResizeBuffers(width, height uint32) error

	// Destroy releases the swap chain and its back buffers.
	Destroy()
}
