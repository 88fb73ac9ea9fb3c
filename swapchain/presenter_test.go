// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package swapchain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/backend/software"
	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/framecore/state"
)

var errInjected = errors.New("injected resize failure")

// flakyDevice fails swap-chain resizes to a width of 13.
type flakyDevice struct {
	gpucore.Device
}

func (d flakyDevice) CreateSwapChain(desc gpucore.SwapChainDesc) (gpucore.SwapChain, error) {
	sc, err := d.Device.CreateSwapChain(desc)
	if err != nil {
		return nil, err
	}
	return flakySwapChain{sc}, nil
}

type flakySwapChain struct {
	gpucore.SwapChain
}

func (s flakySwapChain) ResizeBuffers(w, h uint32) error {
	if w == 13 {
		return errInjected
	}
	return s.SwapChain.ResizeBuffers(w, h)
}

func newTestPresenter(t *testing.T, dev gpucore.Device, buffers uint32) (*Presenter, *descriptor.Allocator) {
	t.Helper()
	heap, err := descriptor.NewHeap(dev, gpucore.HeapRenderTarget, buffers)
	require.NoError(t, err)
	t.Cleanup(heap.Destroy)
	rtvs := descriptor.NewAllocator(heap)

	p, err := New(dev, gpucore.SwapChainDesc{Width: 64, Height: 48, BufferCount: buffers}, rtvs)
	require.NoError(t, err)
	t.Cleanup(p.Destroy)
	return p, rtvs
}

func newSoftware(t *testing.T) *software.Device {
	t.Helper()
	dev := software.New(gpucore.BackendConfig{Debug: true})
	t.Cleanup(dev.Destroy)
	return dev
}

func TestPresenterBuffersStartInPresent(t *testing.T) {
	p, rtvs := newTestPresenter(t, newSoftware(t), 2)

	require.Equal(t, uint32(2), p.BufferCount())
	assert.Equal(t, uint32(2), rtvs.Live())
	for i := range p.BufferCount() {
		assert.Equal(t, gpucore.StatePresent, p.BackBuffer(i).State())
		assert.True(t, p.RenderTargetView(i).Valid())
	}
	assert.NotEqual(t, p.RenderTargetView(0).CPU(), p.RenderTargetView(1).CPU())
}

func TestPresenterCycles(t *testing.T) {
	p, _ := newTestPresenter(t, newSoftware(t), 2)

	var got []uint32
	for range 4 {
		got = append(got, p.AcquireCurrentIndex())
		require.NoError(t, p.Present(0))
	}
	assert.Equal(t, []uint32{0, 1, 0, 1}, got)
}

func TestPresentWrongStatePanics(t *testing.T) {
	p, _ := newTestPresenter(t, newSoftware(t), 2)
	// A frame that left the back buffer as a render target.
	_, err := state.NewTracker().Transition(discard{}, p.BackBuffer(0), gpucore.StateRenderTarget)
	require.NoError(t, err)
	assert.Panics(t, func() { _ = p.Present(0) })
}

type discard struct{}

func (discard) ResourceBarrier([]gpucore.Barrier) {}

func TestPresenterResize(t *testing.T) {
	dev := newSoftware(t)
	p, rtvs := newTestPresenter(t, dev, 3)
	old := p.BackBuffer(0)

	require.NoError(t, p.Resize(128, 96))
	w, h := p.Size()
	assert.Equal(t, uint32(128), w)
	assert.Equal(t, uint32(96), h)
	assert.True(t, old.Released())
	assert.Equal(t, uint32(128), p.BackBuffer(0).Handle().Width())
	assert.Equal(t, uint32(3), rtvs.Live(), "views are rewritten into the freed slots")
	assert.Equal(t, gpucore.StatePresent, p.BackBuffer(2).State())

	assert.ErrorIs(t, p.Resize(0, 10), ErrBadSize)
	assert.Empty(t, dev.ValidationErrors())
}

func TestPresenterResizeFailureRestores(t *testing.T) {
	p, rtvs := newTestPresenter(t, flakyDevice{newSoftware(t)}, 2)

	err := p.Resize(13, 13)
	require.ErrorIs(t, err, errInjected)

	w, h := p.Size()
	assert.Equal(t, uint32(64), w)
	assert.Equal(t, uint32(48), h)
	require.Equal(t, uint32(2), p.BufferCount())
	assert.Equal(t, uint32(64), p.BackBuffer(1).Handle().Width())
	assert.False(t, p.BackBuffer(1).Released())
	assert.Equal(t, uint32(2), rtvs.Live())
}
