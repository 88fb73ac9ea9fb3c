// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"math"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/gpucore"
)

func openNoop(t *testing.T) *Device {
	t.Helper()
	d, err := OpenNoop(gpucore.BackendConfig{})
	require.NoError(t, err)
	t.Cleanup(d.Destroy)
	return d
}

func TestRegistered(t *testing.T) {
	assert.True(t, gpucore.IsRegistered(Name))
	assert.True(t, gpucore.IsRegistered(NameNoop))

	dev, err := gpucore.Open(NameNoop, gpucore.BackendConfig{})
	require.NoError(t, err)
	defer dev.Destroy()
	assert.NotNil(t, dev.Queue())
}

func TestHeapAddresses(t *testing.T) {
	d := openNoop(t)

	rt, err := d.CreateDescriptorHeap(gpucore.HeapRenderTarget, 3)
	require.NoError(t, err)
	defer rt.Destroy()
	sv, err := d.CreateDescriptorHeap(gpucore.HeapShaderVisible, 4)
	require.NoError(t, err)
	defer sv.Destroy()

	assert.Equal(t, uint32(slotStride), rt.Stride())
	assert.Zero(t, rt.GPUBase())
	assert.NotZero(t, sv.GPUBase())
	assert.GreaterOrEqual(t, uint64(sv.CPUBase()), uint64(rt.CPUBase())+3*slotStride)

	_, err = d.CreateDescriptorHeap(gpucore.HeapKind(0), 3)
	assert.Error(t, err)
	_, err = d.CreateDescriptorHeap(gpucore.HeapDepthStencil, 0)
	assert.Error(t, err)
}

func TestViewsRejectBadAddresses(t *testing.T) {
	d := openNoop(t)

	rt, err := d.CreateDescriptorHeap(gpucore.HeapRenderTarget, 2)
	require.NoError(t, err)
	defer rt.Destroy()

	tex, err := d.CreateTexture(gpucore.TextureDesc{Label: "t", Width: 4, Height: 4})
	require.NoError(t, err)
	defer d.DestroyResource(tex)
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, tex.Format())

	require.NoError(t, d.CreateRenderTargetView(tex, rt.CPUBase()+slotStride))
	assert.ErrorIs(t, d.CreateRenderTargetView(tex, rt.CPUBase()+1), ErrBadAddress)
	assert.ErrorIs(t, d.CreateShaderResourceView(tex, rt.CPUBase()), ErrBadAddress)
	assert.Error(t, d.CreateDepthStencilView(tex, rt.CPUBase()))

	rt.Clear(rt.CPUBase() + slotStride)
	h, err := d.lookup(gpucore.HeapRenderTarget, rt.CPUBase())
	require.NoError(t, err)
	assert.Nil(t, h.view(rt.CPUBase()+slotStride))
}

func TestInvalidDimensions(t *testing.T) {
	d := openNoop(t)
	_, err := d.CreateDepthBuffer("depth", 0, 10)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestRecordSubmitSignal(t *testing.T) {
	d := openNoop(t)

	rtHeap, err := d.CreateDescriptorHeap(gpucore.HeapRenderTarget, 2)
	require.NoError(t, err)
	defer rtHeap.Destroy()
	dsHeap, err := d.CreateDescriptorHeap(gpucore.HeapDepthStencil, 1)
	require.NoError(t, err)
	defer dsHeap.Destroy()

	sc, err := d.CreateSwapChain(gpucore.SwapChainDesc{Width: 64, Height: 48, BufferCount: 2})
	require.NoError(t, err)
	defer sc.Destroy()
	bb, err := sc.BackBuffer(sc.CurrentBackBufferIndex())
	require.NoError(t, err)
	require.NoError(t, d.CreateRenderTargetView(bb, rtHeap.CPUBase()))

	depth, err := d.CreateDepthBuffer("depth", 64, 48)
	require.NoError(t, err)
	defer d.DestroyResource(depth)
	require.NoError(t, d.CreateDepthStencilView(depth, dsHeap.CPUBase()))

	list, err := d.CreateCommandList("frame")
	require.NoError(t, err)
	defer list.Destroy()
	fence, err := d.CreateFence(0)
	require.NoError(t, err)
	defer fence.Destroy()

	for frame := uint64(1); frame <= 3; frame++ {
		require.NoError(t, list.Reset())
		list.ResourceBarrier([]gpucore.Barrier{{Resource: bb, Before: gpucore.StatePresent, After: gpucore.StateRenderTarget}})
		list.ClearRenderTargetView(rtHeap.CPUBase(), gpucore.Color{B: 1, A: 1})
		list.ClearDepthStencilView(dsHeap.CPUBase(), 1, 0)
		dsv := dsHeap.CPUBase()
		list.SetRenderTargets([]gpucore.CPUAddress{rtHeap.CPUBase()}, &dsv)
		list.SetViewport(gpucore.Viewport{Width: 64, Height: 48, MaxDepth: 1})
		list.SetScissor(gpucore.Rect{Width: 64, Height: 48})
		list.Draw(3, 1, 0, 0)
		list.DrawIndexed(6, 1, 0, 0, 0)
		list.ResourceBarrier([]gpucore.Barrier{{Resource: bb, Before: gpucore.StateRenderTarget, After: gpucore.StatePresent}})
		buf, err := list.Close()
		require.NoError(t, err)
		assert.Equal(t, "frame", buf.Label())

		require.NoError(t, d.Queue().Submit([]gpucore.CommandBuffer{buf}))
		require.NoError(t, d.Queue().Signal(fence, frame))

		select {
		case <-fence.Done(frame):
		case <-time.After(5 * time.Second):
			t.Fatalf("fence %d never completed", frame)
		}
		assert.GreaterOrEqual(t, fence.CompletedValue(), frame)
		require.NoError(t, sc.Present(0))
	}
	assert.Equal(t, uint32(1), sc.CurrentBackBufferIndex())
}

func TestListState(t *testing.T) {
	d := openNoop(t)
	list, err := d.CreateCommandList("l")
	require.NoError(t, err)
	defer list.Destroy()

	_, err = list.Close()
	assert.ErrorIs(t, err, ErrListState)
	require.NoError(t, list.Reset())
	assert.ErrorIs(t, list.Reset(), ErrListState)
}

func TestFenceDoneAlreadyReached(t *testing.T) {
	d := openNoop(t)
	f, err := d.CreateFence(5)
	require.NoError(t, err)
	defer f.Destroy()

	select {
	case <-f.Done(5):
	default:
		t.Fatal("Done(5) on a fence at 5 should already be closed")
	}
	assert.Equal(t, uint64(5), f.CompletedValue())
}

func TestRemoveReleasesFences(t *testing.T) {
	d := openNoop(t)
	f, err := d.CreateFence(0)
	require.NoError(t, err)
	defer f.Destroy()

	done := f.Done(10)
	d.remove(assert.AnError)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("removal did not release the waiter")
	}
	assert.Equal(t, uint64(math.MaxUint64), f.CompletedValue())
	assert.ErrorIs(t, d.Queue().Submit(nil), gpucore.ErrDeviceRemoved)
	_, err = d.CreateCommandList("late")
	assert.ErrorIs(t, err, gpucore.ErrDeviceRemoved)
}

func TestSwapChainHeadlessOnly(t *testing.T) {
	d := openNoop(t)
	_, err := d.CreateSwapChain(gpucore.SwapChainDesc{Surface: 1, Width: 8, Height: 8, BufferCount: 2})
	assert.ErrorIs(t, err, gpucore.ErrUnsupported)

	sc, err := d.CreateSwapChain(gpucore.SwapChainDesc{Width: 8, Height: 8, BufferCount: 3})
	require.NoError(t, err)
	require.NoError(t, sc.ResizeBuffers(16, 4))
	bb, err := sc.BackBuffer(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), bb.Width())
	assert.Equal(t, uint32(0), sc.CurrentBackBufferIndex())

	sc.Destroy()
	assert.ErrorIs(t, sc.Present(0), gpucore.ErrSurfaceLost)
}

type mockProvider struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

func (m *mockProvider) Device() gpucontext.Device             { return nil }
func (m *mockProvider) Queue() gpucontext.Queue               { return nil }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return nil }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return m.format }
func (m *mockProvider) HalDevice() any                        { return m.device }
func (m *mockProvider) HalQueue() any                         { return m.queue }

// hide strips the hal accessors from p.
func hide(p gpucontext.DeviceProvider) gpucontext.DeviceProvider {
	return struct{ gpucontext.DeviceProvider }{p}
}

func TestFromProvider(t *testing.T) {
	instance, err := noop.API{}.CreateInstance(nil)
	require.NoError(t, err)
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	require.NoError(t, err)
	defer openDev.Device.Destroy()

	p := &mockProvider{device: openDev.Device, queue: openDev.Queue, format: gputypes.TextureFormatRGBA8Unorm}
	d, err := FromProvider(p, gpucore.BackendConfig{})
	require.NoError(t, err)
	defer d.Destroy()
	assert.Equal(t, "provider", d.Name())
	assert.Equal(t, openDev.Device, d.HalDevice())

	sc, err := d.CreateSwapChain(gpucore.SwapChainDesc{Width: 4, Height: 4, BufferCount: 2})
	require.NoError(t, err)
	defer sc.Destroy()
	bb, err := sc.BackBuffer(0)
	require.NoError(t, err)
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, bb.Format())

	_, err = FromProvider(hide(p), gpucore.BackendConfig{})
	assert.ErrorIs(t, err, ErrProvider)
	_, err = FromProvider(&mockProvider{queue: openDev.Queue}, gpucore.BackendConfig{})
	assert.ErrorIs(t, err, ErrProvider)
}
