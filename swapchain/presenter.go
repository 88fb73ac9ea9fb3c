// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package swapchain owns the back buffers of a presentable surface and
// their render-target views.
package swapchain

import (
	"errors"
	"fmt"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/framecore/state"
)

// ErrBadSize is returned for zero dimensions.
var ErrBadSize = errors.New("swapchain: width and height must be non-zero")

// Presenter wraps a backend swap chain. Back buffers are tracked in
// StatePresent from the moment they are acquired from the backend.
type Presenter struct {
	sc     gpucore.SwapChain
	dev    gpucore.Device
	rtvs   *descriptor.Allocator
	width  uint32
	height uint32

	buffers []*state.Resource
	views   []descriptor.Handle
	index   uint32
}

// New creates a swap chain on dev and writes one render-target view per
// back buffer into slots taken from rtvs.
func New(dev gpucore.Device, desc gpucore.SwapChainDesc, rtvs *descriptor.Allocator) (*Presenter, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, ErrBadSize
	}
	if rtvs.Heap().Kind() != gpucore.HeapRenderTarget {
		return nil, fmt.Errorf("swapchain: view allocator has %v heap", rtvs.Heap().Kind())
	}
	sc, err := dev.CreateSwapChain(desc)
	if err != nil {
		return nil, fmt.Errorf("swapchain: create: %w", err)
	}
	p := &Presenter{sc: sc, dev: dev, rtvs: rtvs, width: desc.Width, height: desc.Height}
	if err := p.acquireBuffers(); err != nil {
		sc.Destroy()
		return nil, err
	}
	return p, nil
}

// acquireBuffers tracks the backend back buffers and writes their views.
// On failure every slot it took is returned.
func (p *Presenter) acquireBuffers() error {
	n := p.sc.BufferCount()
	buffers := make([]*state.Resource, 0, n)
	views := make([]descriptor.Handle, 0, n)
	fail := func(err error) error {
		for _, h := range views {
			_ = p.rtvs.Free(h)
		}
		return err
	}
	for i := range n {
		bb, err := p.sc.BackBuffer(i)
		if err != nil {
			return fail(fmt.Errorf("swapchain: back buffer %d: %w", i, err))
		}
		h, err := p.rtvs.Allocate()
		if err != nil {
			return fail(fmt.Errorf("swapchain: view for back buffer %d: %w", i, err))
		}
		views = append(views, h)
		if err := p.dev.CreateRenderTargetView(bb, h.CPU()); err != nil {
			return fail(fmt.Errorf("swapchain: view for back buffer %d: %w", i, err))
		}
		buffers = append(buffers, state.Track(bb, gpucore.StatePresent))
	}
	p.buffers = buffers
	p.views = views
	p.index = p.sc.CurrentBackBufferIndex()
	return nil
}

func (p *Presenter) releaseBuffers() {
	for _, b := range p.buffers {
		b.Release()
	}
	for _, h := range p.views {
		_ = p.rtvs.Free(h)
	}
	p.buffers = nil
	p.views = nil
}

// BufferCount returns the number of back buffers.
func (p *Presenter) BufferCount() uint32 { return uint32(len(p.buffers)) }

// Size returns the back-buffer size.
func (p *Presenter) Size() (width, height uint32) { return p.width, p.height }

// AcquireCurrentIndex reads the index of the back buffer to render to.
func (p *Presenter) AcquireCurrentIndex() uint32 {
	p.index = p.sc.CurrentBackBufferIndex()
	return p.index
}

// CurrentIndex returns the index from the last AcquireCurrentIndex.
func (p *Presenter) CurrentIndex() uint32 { return p.index }

// BackBuffer returns tracked back buffer i.
func (p *Presenter) BackBuffer(i uint32) *state.Resource { return p.buffers[i] }

// RenderTargetView returns the view of back buffer i.
func (p *Presenter) RenderTargetView(i uint32) descriptor.Handle { return p.views[i] }

// Present displays the current back buffer, which must be in
// StatePresent. syncInterval 0 presents immediately.
func (p *Presenter) Present(syncInterval uint32) error {
	if b := p.buffers[p.index]; b.State() != gpucore.StatePresent {
		panic(fmt.Sprintf("swapchain: Present of back buffer %d in state %s", p.index, b.State()))
	}
	if err := p.sc.Present(syncInterval); err != nil {
		return fmt.Errorf("swapchain: present: %w", err)
	}
	return nil
}

// Resize resizes every back buffer. The GPU must be idle. On failure the
// swap chain is restored to the previous size and the error returned.
func (p *Presenter) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return ErrBadSize
	}
	if width == p.width && height == p.height {
		return nil
	}
	oldW, oldH := p.width, p.height
	p.releaseBuffers()

	err := p.sc.ResizeBuffers(width, height)
	if err == nil {
		if err = p.acquireBuffers(); err == nil {
			p.width, p.height = width, height
			return nil
		}
	}
	err = fmt.Errorf("swapchain: resize to %dx%d: %w", width, height, err)

	if rerr := p.sc.ResizeBuffers(oldW, oldH); rerr != nil {
		return errors.Join(err, fmt.Errorf("swapchain: restore %dx%d: %w", oldW, oldH, rerr))
	}
	if rerr := p.acquireBuffers(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

// Destroy releases the views and the backend swap chain.
func (p *Presenter) Destroy() {
	p.releaseBuffers()
	if p.sc != nil {
		p.sc.Destroy()
		p.sc = nil
	}
}
