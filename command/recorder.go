// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package command wraps a backend command list with open/closed tracking.
//
// A Recorder is Closed after creation. Reset opens it, Close returns the
// submittable buffer, and MarkSubmitted ties it to the fence value that
// signals its completion. Misuse (recording while closed, closing twice,
// resetting while the GPU may still read the commands) panics: these are
// programming errors, not runtime conditions.
package command

import (
	"fmt"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/gpucore"
)

// Completion reports how far the GPU has progressed. fence.Fence and
// gpucore.Fence implement it.
type Completion interface {
	CompletedValue() uint64
}

// Recorder records commands for one frame. Not safe for concurrent use.
type Recorder struct {
	list  gpucore.CommandList
	label string
	open  bool

	completion Completion
	inFlight   uint64
	commands   int
}

// New creates a closed recorder on dev.
func New(dev gpucore.Device, label string) (*Recorder, error) {
	list, err := dev.CreateCommandList(label)
	if err != nil {
		return nil, fmt.Errorf("command: create list %q: %w", label, err)
	}
	return &Recorder{list: list, label: label}, nil
}

// IsOpen reports whether the recorder accepts commands.
func (r *Recorder) IsOpen() bool { return r.open }

// Label returns the recorder label.
func (r *Recorder) Label() string { return r.label }

// Commands returns the number of commands recorded since the last Reset.
func (r *Recorder) Commands() int { return r.commands }

// InFlight returns the fence value of the last submission, zero if none.
func (r *Recorder) InFlight() uint64 { return r.inFlight }

// Reset opens the recorder. It panics when the recorder is open or when the
// fence value of its last submission has not completed yet.
func (r *Recorder) Reset() error {
	if r.open {
		panic(fmt.Sprintf("command: Reset of open recorder %q", r.label))
	}
	if r.inFlight != 0 && r.completion != nil && r.completion.CompletedValue() < r.inFlight {
		panic(fmt.Sprintf("command: Reset of recorder %q while in flight (fence value %d, completed %d)",
			r.label, r.inFlight, r.completion.CompletedValue()))
	}
	if err := r.list.Reset(); err != nil {
		return fmt.Errorf("command: reset %q: %w", r.label, err)
	}
	r.open = true
	r.commands = 0
	return nil
}

// Close ends recording. It panics when the recorder is already closed.
func (r *Recorder) Close() (gpucore.CommandBuffer, error) {
	if !r.open {
		panic(fmt.Sprintf("command: Close of closed recorder %q", r.label))
	}
	r.open = false
	cb, err := r.list.Close()
	if err != nil {
		return nil, fmt.Errorf("command: close %q: %w", r.label, err)
	}
	return cb, nil
}

// MarkSubmitted records that the last closed buffer completes when c
// reaches value. Reset panics until it does.
func (r *Recorder) MarkSubmitted(c Completion, value uint64) {
	r.completion = c
	r.inFlight = value
}

func (r *Recorder) mustBeOpen(op string) {
	if !r.open {
		panic(fmt.Sprintf("command: %s on closed recorder %q", op, r.label))
	}
	r.commands++
}

// ResourceBarrier records state transitions. It implements
// state.BarrierRecorder.
func (r *Recorder) ResourceBarrier(barriers []gpucore.Barrier) {
	r.mustBeOpen("ResourceBarrier")
	r.list.ResourceBarrier(barriers)
}

// ClearRenderTarget clears the render target viewed by rtv.
func (r *Recorder) ClearRenderTarget(rtv descriptor.Handle, c gpucore.Color) {
	r.mustBeOpen("ClearRenderTarget")
	r.list.ClearRenderTargetView(rtv.CPU(), c)
}

// ClearDepthStencil clears the depth target viewed by dsv.
func (r *Recorder) ClearDepthStencil(dsv descriptor.Handle, depth float32, stencil uint8) {
	r.mustBeOpen("ClearDepthStencil")
	r.list.ClearDepthStencilView(dsv.CPU(), depth, stencil)
}

// SetRenderTargets binds color targets and an optional depth target.
// Pass an invalid Handle for dsv to bind no depth.
func (r *Recorder) SetRenderTargets(rtvs []descriptor.Handle, dsv descriptor.Handle) {
	r.mustBeOpen("SetRenderTargets")
	addrs := make([]gpucore.CPUAddress, len(rtvs))
	for i, h := range rtvs {
		addrs[i] = h.CPU()
	}
	var depth *gpucore.CPUAddress
	if dsv.Valid() {
		a := dsv.CPU()
		depth = &a
	}
	r.list.SetRenderTargets(addrs, depth)
}

// SetViewport sets the viewport.
func (r *Recorder) SetViewport(vp gpucore.Viewport) {
	r.mustBeOpen("SetViewport")
	r.list.SetViewport(vp)
}

// SetScissor sets the scissor rectangle.
func (r *Recorder) SetScissor(rect gpucore.Rect) {
	r.mustBeOpen("SetScissor")
	r.list.SetScissor(rect)
}

// SetDescriptorTable binds the shader-visible descriptors starting at base
// to root slot. base must come from a shader-visible heap.
func (r *Recorder) SetDescriptorTable(slot uint32, base descriptor.Handle) {
	r.mustBeOpen("SetDescriptorTable")
	if base.Kind() != gpucore.HeapShaderVisible {
		panic(fmt.Sprintf("command: SetDescriptorTable with %v handle", base.Kind()))
	}
	r.list.SetDescriptorTable(slot, base.GPU())
}

// Draw records a non-indexed draw.
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.mustBeOpen("Draw")
	r.list.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed records an indexed draw.
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.mustBeOpen("DrawIndexed")
	r.list.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// Dispatch records a compute dispatch.
func (r *Recorder) Dispatch(x, y, z uint32) {
	r.mustBeOpen("Dispatch")
	r.list.Dispatch(x, y, z)
}

// Destroy releases the backend list.
func (r *Recorder) Destroy() {
	if r.list != nil {
		r.list.Destroy()
		r.list = nil
	}
}
