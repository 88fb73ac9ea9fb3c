// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/gpucore"
)

func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	d := New(gpucore.BackendConfig{Debug: true}, opts...)
	t.Cleanup(d.Destroy)
	return d
}

func TestRegistered(t *testing.T) {
	dev, err := gpucore.Open(Name, gpucore.BackendConfig{})
	require.NoError(t, err)
	defer dev.Destroy()
	assert.Equal(t, Name, dev.Name())
}

func TestHeapAddresses(t *testing.T) {
	d := newTestDevice(t)

	rtv, err := d.CreateDescriptorHeap(gpucore.HeapRenderTarget, 4)
	require.NoError(t, err)
	srv, err := d.CreateDescriptorHeap(gpucore.HeapShaderVisible, 8)
	require.NoError(t, err)

	assert.Equal(t, uint32(strideRenderTarget), rtv.Stride())
	assert.Zero(t, rtv.GPUBase(), "render-target heaps are not shader-visible")
	assert.NotZero(t, srv.GPUBase())
	assert.NotEqual(t, rtv.CPUBase(), srv.CPUBase())

	h := rtv.(*heap)
	idx, ok := h.index(rtv.CPUBase() + 3*gpucore.CPUAddress(rtv.Stride()))
	assert.True(t, ok)
	assert.Equal(t, uint32(3), idx)

	_, ok = h.index(rtv.CPUBase() + 4*gpucore.CPUAddress(rtv.Stride()))
	assert.False(t, ok, "address one past the end")
	_, ok = h.index(rtv.CPUBase() + 1)
	assert.False(t, ok, "unaligned address")

	_, err = d.CreateDescriptorHeap(gpucore.HeapDepthStencil, 0)
	assert.Error(t, err)
}

func TestClearWritesPixels(t *testing.T) {
	d := newTestDevice(t)

	sc, err := d.CreateSwapChain(gpucore.SwapChainDesc{Width: 4, Height: 2, BufferCount: 2})
	require.NoError(t, err)
	defer sc.Destroy()
	bb, err := sc.BackBuffer(0)
	require.NoError(t, err)

	heap, err := d.CreateDescriptorHeap(gpucore.HeapRenderTarget, 2)
	require.NoError(t, err)
	require.NoError(t, d.CreateRenderTargetView(bb, heap.CPUBase()))

	list, err := d.CreateCommandList("clear")
	require.NoError(t, err)
	require.NoError(t, list.Reset())
	list.ResourceBarrier([]gpucore.Barrier{{Resource: bb, Before: gpucore.StatePresent, After: gpucore.StateRenderTarget}})
	list.ClearRenderTargetView(heap.CPUBase(), gpucore.Color{R: 1, G: 0.5, B: 0, A: 1})
	list.ResourceBarrier([]gpucore.Barrier{{Resource: bb, Before: gpucore.StateRenderTarget, After: gpucore.StatePresent}})
	cb, err := list.Close()
	require.NoError(t, err)

	f, err := d.CreateFence(0)
	require.NoError(t, err)
	require.NoError(t, d.Queue().Submit([]gpucore.CommandBuffer{cb}))
	require.NoError(t, d.Queue().Signal(f, 1))
	<-f.Done(1)

	px, ok := Pixel(bb, 3, 1)
	require.True(t, ok)
	assert.Equal(t, [4]byte{255, 128, 0, 255}, px)

	st, _ := GPUState(bb)
	assert.Equal(t, gpucore.StatePresent, st)
	assert.Empty(t, d.ValidationErrors())
	assert.Equal(t, uint64(1), d.Stats().Clears)
	assert.Equal(t, uint64(2), d.Stats().Barriers)
}

func TestValidationReportsWrongBeforeState(t *testing.T) {
	d := newTestDevice(t)

	tex, err := d.CreateTexture(gpucore.TextureDesc{Label: "tex", Width: 2, Height: 2})
	require.NoError(t, err)

	list, err := d.CreateCommandList("bad")
	require.NoError(t, err)
	require.NoError(t, list.Reset())
	// Textures start in CopyDest, not Common.
	list.ResourceBarrier([]gpucore.Barrier{{Resource: tex, Before: gpucore.StateCommon, After: gpucore.StatePixelShaderRead}})
	cb, err := list.Close()
	require.NoError(t, err)

	f, _ := d.CreateFence(0)
	require.NoError(t, d.Queue().Submit([]gpucore.CommandBuffer{cb}))
	require.NoError(t, d.Queue().Signal(f, 1))
	<-f.Done(1)

	errs := d.ValidationErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "CopyDest")
}

func TestBreakOnErrorRemovesDevice(t *testing.T) {
	d := newTestDevice(t, WithBreakOnError())

	list, err := d.CreateCommandList("empty-slot")
	require.NoError(t, err)
	heap, err := d.CreateDescriptorHeap(gpucore.HeapRenderTarget, 1)
	require.NoError(t, err)
	require.NoError(t, list.Reset())
	list.ClearRenderTargetView(heap.CPUBase(), gpucore.Color{})

	require.Error(t, d.Removed())
	assert.True(t, errors.Is(d.Removed(), gpucore.ErrDeviceRemoved))
}

func TestRemoveCompletesFences(t *testing.T) {
	d := newTestDevice(t)
	f, err := d.CreateFence(0)
	require.NoError(t, err)

	done := f.Done(10)
	d.Remove(errors.New("test reset"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done channel not closed after Remove")
	}
	assert.Equal(t, uint64(math.MaxUint64), f.CompletedValue())
	assert.ErrorIs(t, d.Queue().Submit(nil), gpucore.ErrDeviceRemoved)

	late, err := d.CreateFence(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), late.CompletedValue())
}

func TestFenceDoneOrdering(t *testing.T) {
	d := newTestDevice(t, WithLatency(5*time.Millisecond))
	f, err := d.CreateFence(0)
	require.NoError(t, err)

	list, _ := d.CreateCommandList("slow")
	require.NoError(t, list.Reset())
	list.Draw(3, 1, 0, 0)
	cb, _ := list.Close()
	require.NoError(t, d.Queue().Submit([]gpucore.CommandBuffer{cb}))
	require.NoError(t, d.Queue().Signal(f, 1))

	assert.Equal(t, uint64(0), f.CompletedValue(), "signal must wait for the slow buffer")
	<-f.Done(1)
	assert.Equal(t, uint64(1), d.Stats().Draws)

	select {
	case <-f.Done(1):
	default:
		t.Error("Done for a reached value must be closed")
	}
}

func TestResetWhileExecutingIsReported(t *testing.T) {
	d := newTestDevice(t, WithLatency(20*time.Millisecond))
	list, _ := d.CreateCommandList("busy")
	require.NoError(t, list.Reset())
	cb, _ := list.Close()
	require.NoError(t, d.Queue().Submit([]gpucore.CommandBuffer{cb}))

	require.NoError(t, list.Reset())
	errs := d.ValidationErrors()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "reset while")
}

func TestCommandListStateErrors(t *testing.T) {
	d := newTestDevice(t)
	list, _ := d.CreateCommandList("l")

	_, err := list.Close()
	assert.ErrorIs(t, err, ErrListClosed)
	require.NoError(t, list.Reset())
	assert.ErrorIs(t, list.Reset(), ErrListOpen)
}

func TestSwapChainRotationAndResize(t *testing.T) {
	d := newTestDevice(t)
	sc, err := d.CreateSwapChain(gpucore.SwapChainDesc{Width: 8, Height: 8, BufferCount: 3})
	require.NoError(t, err)

	var seen []uint32
	for range 6 {
		seen = append(seen, sc.CurrentBackBufferIndex())
		require.NoError(t, sc.Present(0))
	}
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2}, seen)

	old, _ := sc.BackBuffer(0)
	require.NoError(t, sc.ResizeBuffers(16, 4))
	nb, _ := sc.BackBuffer(0)
	assert.NotSame(t, old, nb)
	assert.Equal(t, uint32(16), nb.Width())
	assert.Equal(t, uint32(0), sc.CurrentBackBufferIndex())
	assert.ErrorIs(t, sc.ResizeBuffers(0, 4), ErrZeroSize)

	_, err = sc.BackBuffer(3)
	assert.Error(t, err)

	_, err = d.CreateSwapChain(gpucore.SwapChainDesc{Width: 8, Height: 8, BufferCount: 1})
	assert.Error(t, err)
}

func TestPresentPacing(t *testing.T) {
	d := newTestDevice(t, WithRefreshRate(100))
	sc, err := d.CreateSwapChain(gpucore.SwapChainDesc{Width: 1, Height: 1, BufferCount: 2})
	require.NoError(t, err)

	start := time.Now()
	for range 4 {
		require.NoError(t, sc.Present(1))
	}
	// The first present is not paced; the next three wait ~10ms each.
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestDepthClear(t *testing.T) {
	d := newTestDevice(t)
	depth, err := d.CreateDepthBuffer("depth", 2, 2)
	require.NoError(t, err)
	heap, _ := d.CreateDescriptorHeap(gpucore.HeapDepthStencil, 1)
	require.NoError(t, d.CreateDepthStencilView(depth, heap.CPUBase()))

	tex, _ := d.CreateTexture(gpucore.TextureDesc{Width: 1, Height: 1})
	assert.Error(t, d.CreateDepthStencilView(tex, heap.CPUBase()))

	list, _ := d.CreateCommandList("depth")
	require.NoError(t, list.Reset())
	list.ClearDepthStencilView(heap.CPUBase(), 1, 7)
	cb, _ := list.Close()
	f, _ := d.CreateFence(0)
	require.NoError(t, d.Queue().Submit([]gpucore.CommandBuffer{cb}))
	require.NoError(t, d.Queue().Signal(f, 1))
	<-f.Done(1)

	z, s, ok := Depth(depth, 1, 1)
	require.True(t, ok)
	assert.Equal(t, float32(1), z)
	assert.Equal(t, uint8(7), s)
	assert.Empty(t, d.ValidationErrors())
}
