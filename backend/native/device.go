// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package native implements gpucore on top of gogpu/wgpu/hal.
//
// Two backends are registered: "native" opens the first discrete or
// integrated Vulkan adapter, "noop" opens the hal no-op device, which
// accepts every call and is useful for CI machines without a GPU.
//
// WebGPU has no descriptor heaps and no explicit resource states. Heap
// slots store texture pointers, barriers become hal usage transitions and
// clears become single-attachment render passes. The swap chain renders
// to offscreen textures rotated on Present.
package native

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/framecore/gpucore"
)

// Registry names.
const (
	Name     = "native"
	NameNoop = "noop"
)

func init() {
	gpucore.Register(Name, func(cfg gpucore.BackendConfig) (gpucore.Device, error) {
		return Open(cfg)
	})
	gpucore.Register(NameNoop, func(cfg gpucore.BackendConfig) (gpucore.Device, error) {
		return OpenNoop(cfg)
	})
}

// Device is a gpucore.Device backed by a hal device.
type Device struct {
	name     string
	instance hal.Instance // nil when the device is borrowed
	dev      hal.Device
	queue    *Queue
	format   gputypes.TextureFormat
	logger   *slog.Logger
	debug    bool
	pipes    *pipelines

	mu      sync.Mutex
	heaps   []*heap
	fences  []*Fence
	nextCPU uint64
	nextGPU uint64
	removed error
}

// Open opens the first discrete or integrated Vulkan adapter.
func Open(cfg gpucore.BackendConfig) (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan", ErrBackendUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	return openFrom(instance, cfg)
}

// OpenNoop opens the hal no-op device.
func OpenNoop(cfg gpucore.BackendConfig) (*Device, error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("native: create noop instance: %w", err)
	}
	return openFrom(instance, cfg)
}

func openFrom(instance hal.Instance, cfg gpucore.BackendConfig) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	d, err := newDevice(selected.Info.Name, openDev.Device, openDev.Queue, gputypes.TextureFormatBGRA8Unorm, cfg)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.logger.Info("native: device opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return d, nil
}

// FromProvider wraps a device owned by someone else, such as a windowing
// framework. The provider must also implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. Destroy does not
// destroy the borrowed device.
func FromProvider(p gpucontext.DeviceProvider, cfg gpucore.BackendConfig) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrProvider, hp.HalQueue())
	}
	format := p.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return newDevice("provider", dev, queue, format, cfg)
}

func newDevice(name string, dev hal.Device, queue hal.Queue, format gputypes.TextureFormat, cfg gpucore.BackendConfig) (*Device, error) {
	d := &Device{
		name:    name,
		dev:     dev,
		format:  format,
		logger:  loggerOrNop(cfg.Logger),
		debug:   cfg.Debug,
		nextCPU: 0x1000_0000,
		nextGPU: 0x8000_0000,
	}
	pipes, err := createPipelines(dev, format)
	if err != nil {
		return nil, err
	}
	d.pipes = pipes
	d.queue = &Queue{dev: d, q: queue}
	return d, nil
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return d.name }

// Queue implements gpucore.Device.
func (d *Device) Queue() gpucore.Queue { return d.queue }

// HalDevice returns the underlying hal device.
func (d *Device) HalDevice() hal.Device { return d.dev }

// remove marks the device removed after a hal error and releases every
// fence waiter.
func (d *Device) remove(err error) error {
	d.mu.Lock()
	if d.removed == nil {
		d.removed = fmt.Errorf("%w: %w", gpucore.ErrDeviceRemoved, err)
	}
	removed := d.removed
	fences := append([]*Fence(nil), d.fences...)
	d.mu.Unlock()

	d.logger.Warn("native: device removed", "err", err)
	for _, f := range fences {
		f.complete(math.MaxUint64)
	}
	return removed
}

func (d *Device) checkRemoved() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removed
}

// CreateDescriptorHeap implements gpucore.Device.
func (d *Device) CreateDescriptorHeap(kind gpucore.HeapKind, capacity uint32) (gpucore.DescriptorHeap, error) {
	if !kind.Valid() || capacity == 0 {
		return nil, fmt.Errorf("native: invalid %v heap of capacity %d", kind, capacity)
	}
	span := uint64(capacity) * slotStride
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &heap{
		dev:      d,
		kind:     kind,
		capacity: capacity,
		cpuBase:  gpucore.CPUAddress(d.nextCPU),
		slots:    make([]*Texture, capacity),
	}
	d.nextCPU += span
	if kind == gpucore.HeapShaderVisible {
		h.gpuBase = gpucore.GPUAddress(d.nextGPU)
		d.nextGPU += span
	}
	d.heaps = append(d.heaps, h)
	return h, nil
}

func (d *Device) removeHeap(h *heap) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.heaps {
		if x == h {
			d.heaps = append(d.heaps[:i], d.heaps[i+1:]...)
			return
		}
	}
}

func (d *Device) lookup(kind gpucore.HeapKind, addr gpucore.CPUAddress) (*heap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.heaps {
		if h.kind == kind {
			if _, ok := h.index(addr); ok {
				return h, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v heap, address %#x", ErrBadAddress, kind, uint64(addr))
}

// CreateCommandList implements gpucore.Device.
func (d *Device) CreateCommandList(label string) (gpucore.CommandList, error) {
	if err := d.checkRemoved(); err != nil {
		return nil, err
	}
	return &CommandList{dev: d, label: label}, nil
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence(initial uint64) (gpucore.Fence, error) {
	hf, err := d.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	f := newFence(d, hf, initial)
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	return f, nil
}

func (d *Device) removeFence(f *Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.fences {
		if x == f {
			d.fences = append(d.fences[:i], d.fences[i+1:]...)
			return
		}
	}
}

// CreateSwapChain implements gpucore.Device. Only headless swap chains
// are supported: desc.Surface must be zero.
func (d *Device) CreateSwapChain(desc gpucore.SwapChainDesc) (gpucore.SwapChain, error) {
	if desc.Surface != 0 {
		return nil, fmt.Errorf("native: window surfaces: %w", gpucore.ErrUnsupported)
	}
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("native: swap chain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	sc := &SwapChain{dev: d, count: desc.BufferCount}
	if err := sc.allocate(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	return sc, nil
}

// CreateDepthBuffer implements gpucore.Device.
func (d *Device) CreateDepthBuffer(label string, width, height uint32) (gpucore.Resource, error) {
	return newTexture(d.dev, label, width, height, gputypes.TextureFormatDepth24PlusStencil8)
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.Resource, error) {
	format := desc.Format
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	return newTexture(d.dev, desc.Label, desc.Width, desc.Height, format)
}

// DestroyResource implements gpucore.Device.
func (d *Device) DestroyResource(r gpucore.Resource) {
	t, ok := r.(*Texture)
	if !ok || t.backBuffer {
		return
	}
	t.destroy(d.dev)
}

// CreateRenderTargetView implements gpucore.Device.
func (d *Device) CreateRenderTargetView(r gpucore.Resource, dst gpucore.CPUAddress) error {
	return d.writeView(gpucore.HeapRenderTarget, r, dst)
}

// CreateDepthStencilView implements gpucore.Device.
func (d *Device) CreateDepthStencilView(r gpucore.Resource, dst gpucore.CPUAddress) error {
	if t, ok := r.(*Texture); ok && t.format != gputypes.TextureFormatDepth24PlusStencil8 {
		return fmt.Errorf("native: depth-stencil view of %v texture %q", t.format, t.label)
	}
	return d.writeView(gpucore.HeapDepthStencil, r, dst)
}

// CreateShaderResourceView implements gpucore.Device.
func (d *Device) CreateShaderResourceView(r gpucore.Resource, dst gpucore.CPUAddress) error {
	return d.writeView(gpucore.HeapShaderVisible, r, dst)
}

func (d *Device) writeView(kind gpucore.HeapKind, r gpucore.Resource, dst gpucore.CPUAddress) error {
	t, ok := r.(*Texture)
	if !ok {
		return ErrForeignResource
	}
	h, err := d.lookup(kind, dst)
	if err != nil {
		return err
	}
	i, _ := h.index(dst)
	h.slots[i] = t
	return nil
}

// Destroy implements gpucore.Device.
func (d *Device) Destroy() {
	if d.pipes != nil {
		d.pipes.destroy(d.dev)
		d.pipes = nil
	}
	if d.instance != nil {
		d.dev.Destroy()
		d.instance.Destroy()
		d.instance = nil
	}
	d.logger.Debug("native: device destroyed", "name", d.name)
}
