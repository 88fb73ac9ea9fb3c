// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/gputypes"
)

// Name is the registry name of this backend.
const Name = "software"

func init() {
	gpucore.Register(Name, func(cfg gpucore.BackendConfig) (gpucore.Device, error) {
		return New(cfg), nil
	})
}

// Errors returned for misuse that a hardware driver would reject.
var (
	ErrForeignResource = errors.New("software: resource was not created by this device")
	ErrBadAddress      = errors.New("software: address does not belong to a heap of the expected kind")
	ErrZeroSize        = errors.New("software: width and height must be non-zero")
	ErrListOpen        = errors.New("software: command list is already open")
	ErrListClosed      = errors.New("software: command list is already closed")
)

// Option configures a software Device.
type Option func(*options)

type options struct {
	latency     time.Duration
	refreshRate float64
	breakOnErr  bool
}

func defaultOptions() options {
	return options{refreshRate: 60}
}

// WithLatency delays the execution of every submitted command buffer by d.
// It makes CPU/GPU overlap observable in tests.
func WithLatency(d time.Duration) Option {
	return func(o *options) {
		o.latency = d
	}
}

// WithRefreshRate sets the simulated display refresh rate used to pace
// presents with a non-zero sync interval. Default: 60.
func WithRefreshRate(hz float64) Option {
	return func(o *options) {
		if hz > 0 {
			o.refreshRate = hz
		}
	}
}

// WithBreakOnError removes the device on the first validation error
// instead of only recording it. Has no effect without debug validation.
func WithBreakOnError() Option {
	return func(o *options) {
		o.breakOnErr = true
	}
}

// Stats counts work the simulated GPU executed.
type Stats struct {
	Submits    uint64
	Barriers   uint64
	Clears     uint64
	Draws      uint64
	Dispatches uint64
	Presents   uint64
}

// Device is a CPU implementation of gpucore.Device.
//
// Command buffers run on a dedicated goroutine that plays the role of the
// GPU queue, so fences complete asynchronously with respect to the caller.
// Render targets are real pixel buffers and clears write to them.
type Device struct {
	opts   options
	debug  bool
	logger *slog.Logger
	queue  *Queue

	mu         sync.Mutex
	removed    error
	heaps      []*heap
	fences     []*Fence
	nextCPU    uint64
	nextGPU    uint64
	validation []string

	submits    atomic.Uint64
	barriers   atomic.Uint64
	clears     atomic.Uint64
	draws      atomic.Uint64
	dispatches atomic.Uint64
	presents   atomic.Uint64
}

// New creates a software device.
func New(cfg gpucore.BackendConfig, opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &Device{
		opts:    o,
		debug:   cfg.Debug,
		logger:  loggerOrNop(cfg.Logger),
		nextCPU: 0x1000_0000,
		nextGPU: 0x8000_0000,
	}
	d.queue = newQueue(d)
	d.logger.Debug("software: device created", "debug", cfg.Debug, "latency", o.latency)
	return d
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return Name }

// Queue implements gpucore.Device.
func (d *Device) Queue() gpucore.Queue { return d.queue }

// Stats returns a snapshot of the execution counters.
func (d *Device) Stats() Stats {
	return Stats{
		Submits:    d.submits.Load(),
		Barriers:   d.barriers.Load(),
		Clears:     d.clears.Load(),
		Draws:      d.draws.Load(),
		Dispatches: d.dispatches.Load(),
		Presents:   d.presents.Load(),
	}
}

// Remove simulates a driver reset. Every fence jumps to math.MaxUint64 and
// subsequent submissions fail with gpucore.ErrDeviceRemoved.
func (d *Device) Remove(reason error) {
	d.mu.Lock()
	if d.removed != nil {
		d.mu.Unlock()
		return
	}
	if reason == nil {
		reason = errors.New("removed by caller")
	}
	d.removed = fmt.Errorf("%w: %w", gpucore.ErrDeviceRemoved, reason)
	fences := append([]*Fence(nil), d.fences...)
	d.mu.Unlock()

	d.logger.Warn("software: device removed", "reason", reason)
	for _, f := range fences {
		f.complete(math.MaxUint64)
	}
}

// Removed returns the removal reason, or nil while the device is healthy.
func (d *Device) Removed() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removed
}

// WaitIdle blocks until the queue has run everything enqueued before the
// call, including the state checks of earlier presents.
func (d *Device) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	if !d.queue.enqueue(func() { close(done) }) {
		return fmt.Errorf("software: queue stopped: %w", gpucore.ErrDeviceRemoved)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidationErrors returns the messages recorded by the debug layer.
func (d *Device) ValidationErrors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.validation...)
}

// report records a validation error when debugging is enabled.
func (d *Device) report(format string, args ...any) {
	if !d.debug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.validation = append(d.validation, msg)
	d.mu.Unlock()
	d.logger.Warn("software: validation", "msg", msg)
	if d.opts.breakOnErr {
		d.Remove(errors.New(msg))
	}
}

// CreateDescriptorHeap implements gpucore.Device.
func (d *Device) CreateDescriptorHeap(kind gpucore.HeapKind, capacity uint32) (gpucore.DescriptorHeap, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("software: invalid heap kind %v", kind)
	}
	if capacity == 0 {
		return nil, fmt.Errorf("software: %v heap capacity must be positive", kind)
	}
	stride := strideFor(kind)
	span := uint64(capacity) * uint64(stride)

	d.mu.Lock()
	defer d.mu.Unlock()
	h := &heap{
		dev:      d,
		kind:     kind,
		stride:   stride,
		cpuBase:  gpucore.CPUAddress(d.nextCPU),
		capacity: capacity,
		slots:    make([]*texture, capacity),
	}
	d.nextCPU += alignUp(span, 0x1_0000)
	if kind == gpucore.HeapShaderVisible {
		h.gpuBase = gpucore.GPUAddress(d.nextGPU)
		d.nextGPU += alignUp(span, 0x1_0000)
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

// lookup resolves a CPU address to its heap and slot index.
func (d *Device) lookup(kind gpucore.HeapKind, addr gpucore.CPUAddress) (*heap, uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.heaps {
		if h.kind != kind {
			continue
		}
		if idx, ok := h.index(addr); ok {
			return h, idx, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %v heap, address %#x", ErrBadAddress, kind, uint64(addr))
}

func (d *Device) shaderHeapFor(base gpucore.GPUAddress) *heap {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.heaps {
		if h.kind == gpucore.HeapShaderVisible && h.containsGPU(base) {
			return h
		}
	}
	return nil
}

// CreateCommandList implements gpucore.Device.
func (d *Device) CreateCommandList(label string) (gpucore.CommandList, error) {
	if err := d.Removed(); err != nil {
		return nil, err
	}
	return &CommandList{dev: d, label: label}, nil
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence(initial uint64) (gpucore.Fence, error) {
	f := newFence(d, initial)
	d.mu.Lock()
	removed := d.removed
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	if removed != nil {
		f.complete(math.MaxUint64)
	}
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

// CreateSwapChain implements gpucore.Device. The surface handle is ignored:
// back buffers live in memory.
func (d *Device) CreateSwapChain(desc gpucore.SwapChainDesc) (gpucore.SwapChain, error) {
	if err := d.Removed(); err != nil {
		return nil, err
	}
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("software: swap chain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, ErrZeroSize
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = gputypes.TextureFormatBGRA8Unorm
	}
	sc := &SwapChain{dev: d, format: desc.Format}
	sc.allocate(desc.BufferCount, desc.Width, desc.Height)
	return sc, nil
}

// CreateDepthBuffer implements gpucore.Device.
func (d *Device) CreateDepthBuffer(label string, width, height uint32) (gpucore.Resource, error) {
	if err := d.Removed(); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, ErrZeroSize
	}
	return newTexture(label, width, height, gputypes.TextureFormatDepth24PlusStencil8, gpucore.StateDepthWrite), nil
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.Resource, error) {
	if err := d.Removed(); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, ErrZeroSize
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = gputypes.TextureFormatRGBA8Unorm
	}
	return newTexture(desc.Label, desc.Width, desc.Height, desc.Format, gpucore.StateCopyDest), nil
}

// DestroyResource implements gpucore.Device.
func (d *Device) DestroyResource(r gpucore.Resource) {
	t, ok := r.(*texture)
	if !ok {
		return
	}
	if t.backBuffer {
		d.report("DestroyResource called on back buffer %q", t.label)
		return
	}
	t.destroyed.Store(true)
}

// CreateRenderTargetView implements gpucore.Device.
func (d *Device) CreateRenderTargetView(r gpucore.Resource, dst gpucore.CPUAddress) error {
	return d.createView(gpucore.HeapRenderTarget, r, dst)
}

// CreateDepthStencilView implements gpucore.Device.
func (d *Device) CreateDepthStencilView(r gpucore.Resource, dst gpucore.CPUAddress) error {
	t, ok := r.(*texture)
	if ok && !t.isDepth() {
		return fmt.Errorf("software: depth-stencil view of color texture %q", t.label)
	}
	return d.createView(gpucore.HeapDepthStencil, r, dst)
}

// CreateShaderResourceView implements gpucore.Device.
func (d *Device) CreateShaderResourceView(r gpucore.Resource, dst gpucore.CPUAddress) error {
	return d.createView(gpucore.HeapShaderVisible, r, dst)
}

func (d *Device) createView(kind gpucore.HeapKind, r gpucore.Resource, dst gpucore.CPUAddress) error {
	t, ok := r.(*texture)
	if !ok {
		return ErrForeignResource
	}
	h, idx, err := d.lookup(kind, dst)
	if err != nil {
		return err
	}
	h.slots[idx] = t
	return nil
}

// Destroy implements gpucore.Device. It stops the queue goroutine after
// the work already submitted has run.
func (d *Device) Destroy() {
	d.queue.stop()
	d.logger.Debug("software: device destroyed", "stats", d.Stats())
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}
