// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"sync/atomic"

	"github.com/gogpu/framecore/gpucore"
)

// op is a recorded command. It runs on the queue goroutine.
type op func()

// CommandList records commands as closures. Descriptors are resolved at
// record time, like CPU descriptor handles on real hardware.
type CommandList struct {
	dev   *Device
	label string
	open  bool
	ops   []op

	// inFlight counts submitted buffers of this list that have not
	// finished executing.
	inFlight atomic.Int32
}

// commandBuffer is a closed snapshot of a list's ops.
type commandBuffer struct {
	list  *CommandList
	label string
	ops   []op
}

func (b *commandBuffer) Label() string { return b.label }

// Reset implements gpucore.CommandList.
func (l *CommandList) Reset() error {
	if l.open {
		return ErrListOpen
	}
	if l.inFlight.Load() > 0 {
		l.dev.report("command list %q reset while its previous submission is executing", l.label)
	}
	if err := l.dev.Removed(); err != nil {
		return err
	}
	l.ops = l.ops[:0]
	l.open = true
	return nil
}

// Close implements gpucore.CommandList.
func (l *CommandList) Close() (gpucore.CommandBuffer, error) {
	if !l.open {
		return nil, ErrListClosed
	}
	l.open = false
	ops := make([]op, len(l.ops))
	copy(ops, l.ops)
	return &commandBuffer{list: l, label: l.label, ops: ops}, nil
}

func (l *CommandList) record(o op) {
	if !l.open {
		l.dev.report("command recorded into closed list %q", l.label)
		return
	}
	l.ops = append(l.ops, o)
}

// ResourceBarrier implements gpucore.CommandList.
func (l *CommandList) ResourceBarrier(barriers []gpucore.Barrier) {
	type resolved struct {
		t *texture
		b gpucore.Barrier
	}
	rs := make([]resolved, 0, len(barriers))
	for _, b := range barriers {
		t, ok := b.Resource.(*texture)
		if !ok {
			l.dev.report("barrier on foreign resource %v", b)
			continue
		}
		if b.Before == b.After {
			l.dev.report("barrier with identical before and after state: %v", b)
		}
		rs = append(rs, resolved{t, b})
	}
	d := l.dev
	l.record(func() {
		for _, r := range rs {
			if got := r.t.state(); got != r.b.Before {
				d.report("barrier %v: resource is in state %s", r.b, got)
			}
			r.t.gpuState.Store(uint32(r.b.After))
			d.barriers.Add(1)
		}
	})
}

// ClearRenderTargetView implements gpucore.CommandList.
func (l *CommandList) ClearRenderTargetView(rtv gpucore.CPUAddress, c gpucore.Color) {
	t := l.resolve(gpucore.HeapRenderTarget, rtv)
	if t == nil {
		return
	}
	d := l.dev
	l.record(func() {
		if t.destroyed.Load() {
			d.report("clear of destroyed resource %q", t.label)
			return
		}
		if got := t.state(); got != gpucore.StateRenderTarget {
			d.report("ClearRenderTargetView on %q in state %s, want RenderTarget", t.label, got)
		}
		t.fillColor(c)
		d.clears.Add(1)
	})
}

// ClearDepthStencilView implements gpucore.CommandList.
func (l *CommandList) ClearDepthStencilView(dsv gpucore.CPUAddress, depth float32, stencil uint8) {
	t := l.resolve(gpucore.HeapDepthStencil, dsv)
	if t == nil {
		return
	}
	d := l.dev
	l.record(func() {
		if got := t.state(); got != gpucore.StateDepthWrite {
			d.report("ClearDepthStencilView on %q in state %s, want DepthWrite", t.label, got)
		}
		t.fillDepth(depth, stencil)
		d.clears.Add(1)
	})
}

// resolve reads the view at addr, reporting empty or invalid slots.
func (l *CommandList) resolve(kind gpucore.HeapKind, addr gpucore.CPUAddress) *texture {
	h, _, err := l.dev.lookup(kind, addr)
	if err != nil {
		l.dev.report("%v", err)
		return nil
	}
	t := h.view(addr)
	if t == nil {
		l.dev.report("%v view at %#x is empty", kind, uint64(addr))
	}
	return t
}

// SetRenderTargets implements gpucore.CommandList.
func (l *CommandList) SetRenderTargets(rtvs []gpucore.CPUAddress, dsv *gpucore.CPUAddress) {
	for _, a := range rtvs {
		l.resolve(gpucore.HeapRenderTarget, a)
	}
	if dsv != nil {
		l.resolve(gpucore.HeapDepthStencil, *dsv)
	}
	l.record(func() {})
}

// SetViewport implements gpucore.CommandList.
func (l *CommandList) SetViewport(vp gpucore.Viewport) {
	if vp.Width <= 0 || vp.Height <= 0 {
		l.dev.report("empty viewport %+v", vp)
	}
	l.record(func() {})
}

// SetScissor implements gpucore.CommandList.
func (l *CommandList) SetScissor(gpucore.Rect) {
	l.record(func() {})
}

// SetDescriptorTable implements gpucore.CommandList.
func (l *CommandList) SetDescriptorTable(slot uint32, base gpucore.GPUAddress) {
	if l.dev.shaderHeapFor(base) == nil {
		l.dev.report("descriptor table %d: GPU address %#x is outside every shader-visible heap", slot, uint64(base))
	}
	l.record(func() {})
}

// Draw implements gpucore.CommandList.
func (l *CommandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d := l.dev
	l.record(func() { d.draws.Add(1) })
}

// DrawIndexed implements gpucore.CommandList.
func (l *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	d := l.dev
	l.record(func() { d.draws.Add(1) })
}

// Dispatch implements gpucore.CommandList.
func (l *CommandList) Dispatch(x, y, z uint32) {
	d := l.dev
	l.record(func() { d.dispatches.Add(1) })
}

// Destroy implements gpucore.CommandList.
func (l *CommandList) Destroy() {
	if l.inFlight.Load() > 0 {
		l.dev.report("command list %q destroyed while executing", l.label)
	}
	l.ops = nil
}
