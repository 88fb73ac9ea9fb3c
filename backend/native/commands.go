// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore/gpucore"
)

// CommandList records directly into a hal command encoder. Every clear
// and draw is its own render pass; viewport and scissor are replayed into
// each pass.
type CommandList struct {
	dev   *Device
	label string

	open    bool
	encoder hal.CommandEncoder
	buf     hal.CommandBuffer // last closed buffer, freed on Reset

	targets  []*Texture
	depth    *Texture
	viewport *gpucore.Viewport
	scissor  *gpucore.Rect
	skipped  int
}

type commandBuffer struct {
	label string
	buf   hal.CommandBuffer
}

func (b *commandBuffer) Label() string { return b.label }

// Reset implements gpucore.CommandList. The previous buffer must have
// finished executing.
func (l *CommandList) Reset() error {
	if l.open {
		return fmt.Errorf("%w: reset of open list %q", ErrListState, l.label)
	}
	if err := l.dev.checkRemoved(); err != nil {
		return err
	}
	if l.buf != nil {
		l.dev.dev.FreeCommandBuffer(l.buf)
		l.buf = nil
	}
	encoder, err := l.dev.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: l.label})
	if err != nil {
		return l.dev.remove(fmt.Errorf("create encoder %q: %w", l.label, err))
	}
	if err := encoder.BeginEncoding(l.label); err != nil {
		return l.dev.remove(fmt.Errorf("begin encoding %q: %w", l.label, err))
	}
	l.encoder = encoder
	l.open = true
	l.targets, l.depth, l.viewport, l.scissor = l.targets[:0], nil, nil, nil
	l.skipped = 0
	return nil
}

// Close implements gpucore.CommandList.
func (l *CommandList) Close() (gpucore.CommandBuffer, error) {
	if !l.open {
		return nil, fmt.Errorf("%w: close of closed list %q", ErrListState, l.label)
	}
	l.open = false
	buf, err := l.encoder.EndEncoding()
	l.encoder = nil
	if err != nil {
		return nil, l.dev.remove(fmt.Errorf("end encoding %q: %w", l.label, err))
	}
	l.buf = buf
	if l.skipped > 0 {
		l.dev.logger.Warn("native: commands skipped", "list", l.label, "count", l.skipped)
	}
	return &commandBuffer{label: l.label, buf: buf}, nil
}

func (l *CommandList) recording(op string) bool {
	if !l.open {
		l.dev.logger.Error("native: command recorded into closed list", "list", l.label, "op", op)
		return false
	}
	return true
}

func (l *CommandList) resolve(kind gpucore.HeapKind, addr gpucore.CPUAddress) *Texture {
	h, err := l.dev.lookup(kind, addr)
	if err != nil {
		l.dev.logger.Error("native: bad descriptor", "list", l.label, "err", err)
		return nil
	}
	t := h.view(addr)
	if t == nil || t.view == nil {
		l.dev.logger.Error("native: empty descriptor slot", "list", l.label, "kind", kind, "addr", uint64(addr))
		return nil
	}
	return t
}

// ResourceBarrier implements gpucore.CommandList.
func (l *CommandList) ResourceBarrier(barriers []gpucore.Barrier) {
	if !l.recording("ResourceBarrier") {
		return
	}
	hb := make([]hal.TextureBarrier, 0, len(barriers))
	for _, b := range barriers {
		if tb, ok := barrierFor(b); ok {
			hb = append(hb, tb)
		}
	}
	if len(hb) > 0 {
		l.encoder.TransitionTextures(hb)
	}
}

// ClearRenderTargetView implements gpucore.CommandList.
func (l *CommandList) ClearRenderTargetView(rtv gpucore.CPUAddress, c gpucore.Color) {
	if !l.recording("ClearRenderTargetView") {
		return
	}
	t := l.resolve(gpucore.HeapRenderTarget, rtv)
	if t == nil {
		return
	}
	rp := l.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: l.label + "_clear",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       t.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: c.R, G: c.G, B: c.B, A: c.A},
		}},
	})
	rp.End()
}

// ClearDepthStencilView implements gpucore.CommandList.
func (l *CommandList) ClearDepthStencilView(dsv gpucore.CPUAddress, depth float32, stencil uint8) {
	if !l.recording("ClearDepthStencilView") {
		return
	}
	t := l.resolve(gpucore.HeapDepthStencil, dsv)
	if t == nil {
		return
	}
	rp := l.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: l.label + "_clear_depth",
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              t.view,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   depth,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: uint32(stencil),
		},
	})
	rp.End()
}

// SetRenderTargets implements gpucore.CommandList.
func (l *CommandList) SetRenderTargets(rtvs []gpucore.CPUAddress, dsv *gpucore.CPUAddress) {
	if !l.recording("SetRenderTargets") {
		return
	}
	l.targets = l.targets[:0]
	for _, a := range rtvs {
		if t := l.resolve(gpucore.HeapRenderTarget, a); t != nil {
			l.targets = append(l.targets, t)
		}
	}
	l.depth = nil
	if dsv != nil {
		l.depth = l.resolve(gpucore.HeapDepthStencil, *dsv)
	}
}

// SetViewport implements gpucore.CommandList.
func (l *CommandList) SetViewport(vp gpucore.Viewport) {
	if l.recording("SetViewport") {
		l.viewport = &vp
	}
}

// SetScissor implements gpucore.CommandList.
func (l *CommandList) SetScissor(r gpucore.Rect) {
	if l.recording("SetScissor") {
		l.scissor = &r
	}
}

// SetDescriptorTable implements gpucore.CommandList. The default pipeline
// binds no resources, so only the address is checked.
func (l *CommandList) SetDescriptorTable(slot uint32, base gpucore.GPUAddress) {
	if !l.recording("SetDescriptorTable") {
		return
	}
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	for _, h := range l.dev.heaps {
		if h.kind == gpucore.HeapShaderVisible && base >= h.gpuBase &&
			uint64(base-h.gpuBase) < uint64(h.capacity)*slotStride {
			return
		}
	}
	l.dev.logger.Error("native: descriptor table outside shader-visible heaps", "list", l.label, "slot", slot, "base", uint64(base))
}

// Draw implements gpucore.CommandList using the built-in fullscreen
// pipeline.
func (l *CommandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !l.recording("Draw") {
		return
	}
	if len(l.targets) == 0 {
		l.dev.logger.Error("native: draw without render targets", "list", l.label)
		return
	}
	desc := &hal.RenderPassDescriptor{Label: l.label + "_draw"}
	for _, t := range l.targets {
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:    t.view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		})
	}
	pipeline := l.dev.pipes.color
	if l.depth != nil {
		pipeline = l.dev.pipes.withDepth
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:           l.depth.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
	}

	rp := l.encoder.BeginRenderPass(desc)
	rp.SetPipeline(pipeline)
	if vp := l.viewport; vp != nil {
		rp.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
	if sc := l.scissor; sc != nil {
		rp.SetScissorRect(sc.X, sc.Y, sc.Width, sc.Height)
	}
	rp.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	rp.End()
}

// DrawIndexed implements gpucore.CommandList. No index buffer is bound
// by the core, so the call is counted and skipped.
func (l *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if l.recording("DrawIndexed") {
		l.skipped++
	}
}

// Dispatch implements gpucore.CommandList. No compute pipeline is bound
// by the core, so the call is counted and skipped.
func (l *CommandList) Dispatch(x, y, z uint32) {
	if l.recording("Dispatch") {
		l.skipped++
	}
}

// Destroy implements gpucore.CommandList.
func (l *CommandList) Destroy() {
	if l.encoder != nil {
		l.encoder.DiscardEncoding()
		l.encoder = nil
	}
	if l.buf != nil {
		l.dev.dev.FreeCommandBuffer(l.buf)
		l.buf = nil
	}
	l.open = false
}
