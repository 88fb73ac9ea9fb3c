// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framecore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"

	_ "github.com/gogpu/framecore/backend/software" // default backend
	"github.com/gogpu/framecore/command"
	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/frame"
	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/framecore/internal/metrics"
	"github.com/gogpu/framecore/state"
	"github.com/gogpu/framecore/swapchain"
)

// Context owns the device, descriptor heaps, swap chain, fence and frame
// loop of one presentable surface. Create it with Initialize and release it
// with Close.
//
// A Context is not safe for concurrent use: all calls must come from the
// goroutine that runs the frame loop.
type Context struct {
	opts       options
	logger     *slog.Logger
	dev        gpucore.Device
	ownsDevice bool
	metrics    *metrics.Collector

	heaps      [len(gpucore.HeapKinds) + 1]*descriptor.Heap
	allocators [len(gpucore.HeapKinds) + 1]*descriptor.Allocator
	reserved   []descriptor.Handle

	presenter *swapchain.Presenter
	tracker   *state.Tracker
	recorder  *command.Recorder
	fence     *fence.Fence
	orch      *frame.Orchestrator

	depth     *state.Resource
	depthView descriptor.Handle

	textures    map[*state.Resource]struct{}
	lastSkipped uint64
	closed      bool
}

// Initialize opens a device and creates everything needed to render frames
// to surface: descriptor heaps, a swap chain with bufferCount back buffers
// of width x height, a depth buffer, the frame recorder and the fence.
//
// Every failure is fatal and wraps ErrInitialize; objects created before
// the failing step are released.
func Initialize(surface gpucore.SurfaceHandle, width, height, bufferCount uint32, opts ...Option) (_ *Context, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = Logger()
	}

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: surface size %dx%d", ErrInitialize, width, height)
	}
	if bufferCount < 2 {
		return nil, fmt.Errorf("%w: need at least 2 back buffers, got %d", ErrInitialize, bufferCount)
	}
	if o.shaderCapacity == 0 || o.reservedSlots > o.shaderCapacity {
		return nil, fmt.Errorf("%w: shader heap capacity %d with %d reserved slots",
			ErrInitialize, o.shaderCapacity, o.reservedSlots)
	}

	c := &Context{
		opts:     o,
		logger:   logger,
		tracker:  state.NewTracker(),
		textures: make(map[*state.Resource]struct{}),
	}
	defer func() {
		if err != nil {
			c.release()
			err = fmt.Errorf("%w: %w", ErrInitialize, err)
			logger.Warn("framecore: initialize failed", "err", err)
		}
	}()

	if o.registerer != nil {
		c.metrics = metrics.New(o.registerer)
		c.tracker.OnBarriers(c.metrics.Barriers)
	}

	if o.device != nil {
		c.dev = o.device
	} else {
		c.dev, err = gpucore.Open(o.backend, gpucore.BackendConfig{Debug: o.debug, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open device: %w", err)
		}
		c.ownsDevice = true
	}

	capacities := map[gpucore.HeapKind]uint32{
		gpucore.HeapRenderTarget:  bufferCount,
		gpucore.HeapDepthStencil:  1,
		gpucore.HeapShaderVisible: o.shaderCapacity,
	}
	for _, kind := range gpucore.HeapKinds {
		h, herr := descriptor.NewHeap(c.dev, kind, capacities[kind])
		if herr != nil {
			return nil, herr
		}
		c.heaps[kind] = h
		c.allocators[kind] = descriptor.NewAllocator(h)
	}
	for range o.reservedSlots {
		c.reserved = append(c.reserved, c.allocators[gpucore.HeapShaderVisible].MustAllocate())
	}

	c.presenter, err = swapchain.New(c.dev, gpucore.SwapChainDesc{
		Surface:     surface,
		Width:       width,
		Height:      height,
		BufferCount: bufferCount,
		Format:      gputypes.TextureFormatBGRA8Unorm,
	}, c.allocators[gpucore.HeapRenderTarget])
	if err != nil {
		return nil, err
	}

	c.depthView, err = c.allocators[gpucore.HeapDepthStencil].Allocate()
	if err != nil {
		return nil, err
	}
	if c.depth, err = c.createDepth(width, height); err != nil {
		return nil, err
	}

	if c.recorder, err = command.New(c.dev, "frame"); err != nil {
		return nil, err
	}
	fenceOpts := []fence.Option{fence.WithTimeout(o.fenceTimeout)}
	if c.metrics != nil {
		fenceOpts = append(fenceOpts, fence.WithWaitObserver(c.metrics.FenceWait))
	}
	if c.fence, err = fence.New(c.dev, fenceOpts...); err != nil {
		return nil, err
	}

	c.orch, err = frame.New(frame.Config{
		Device:       c.dev,
		Presenter:    c.presenter,
		Recorder:     c.recorder,
		Fence:        c.fence,
		Tracker:      c.tracker,
		Depth:        c.depth,
		DepthView:    c.depthView,
		ClearColor:   o.clearColor,
		SyncInterval: o.syncInterval,
		OnFrame:      c.onFrame,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("framecore: initialized",
		"device", c.dev.Name(),
		"width", width, "height", height,
		"buffers", bufferCount,
		"shaderSlots", o.shaderCapacity)
	return c, nil
}

// createDepth creates a depth buffer and writes its view into the Context's
// depth-stencil slot.
func (c *Context) createDepth(width, height uint32) (*state.Resource, error) {
	res, err := c.dev.CreateDepthBuffer("depth", width, height)
	if err != nil {
		return nil, fmt.Errorf("create depth buffer: %w", err)
	}
	if err := c.bindDepth(res); err != nil {
		c.dev.DestroyResource(res)
		return nil, err
	}
	return state.Track(res, gpucore.StateDepthWrite), nil
}

func (c *Context) bindDepth(res gpucore.Resource) error {
	if err := c.dev.CreateDepthStencilView(res, c.depthView.CPU()); err != nil {
		return fmt.Errorf("create depth view: %w", err)
	}
	return nil
}

// Device returns the device. Backend-specific code may type-assert it.
func (c *Context) Device() gpucore.Device { return c.dev }

// Tracker returns the state tracker shared by the frame loop and every
// resource created through the Context.
func (c *Context) Tracker() *state.Tracker { return c.tracker }

// DepthBuffer returns the tracked depth buffer.
func (c *Context) DepthBuffer() *state.Resource { return c.depth }

// DepthView returns the depth-stencil view of the depth buffer.
func (c *Context) DepthView() descriptor.Handle { return c.depthView }

// Presenter returns the swap-chain presenter.
func (c *Context) Presenter() *swapchain.Presenter { return c.presenter }

// ReservedShaderSlots returns the slots reserved by WithReservedShaderSlots.
func (c *Context) ReservedShaderSlots() []descriptor.Handle { return c.reserved }

// Phase returns the frame phase.
func (c *Context) Phase() frame.Phase { return c.orch.Phase() }

// Lost reports whether the device was lost. A lost Context only accepts
// Close; create a new one to continue.
func (c *Context) Lost() bool { return c.orch.Phase() == frame.PhaseLost }

// SetSyncInterval changes the present sync interval of later frames.
func (c *Context) SetSyncInterval(n uint32) {
	c.opts.syncInterval = n
	c.orch.SetSyncInterval(n)
}

// SetClearColor changes the back-buffer clear color of later frames.
func (c *Context) SetClearColor(col gpucore.Color) {
	c.opts.clearColor = col
	c.orch.SetClearColor(col)
}

// BeginFrame starts a frame and returns the recorder for client commands.
// The current back buffer is a cleared render target bound together with
// the depth buffer.
func (c *Context) BeginFrame(ctx context.Context) (*command.Recorder, error) {
	if c.closed {
		return nil, ErrClosed
	}
	rec, err := c.orch.PreDraw(ctx)
	c.noteDeviceError(err)
	return rec, err
}

// EndFrame submits the frame, waits for the GPU and presents.
func (c *Context) EndFrame(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	err := c.orch.PostDraw(ctx)
	c.noteDeviceError(err)
	return err
}

func (c *Context) noteDeviceError(err error) {
	if err != nil && fence.IsDeviceError(err) {
		c.metrics.DeviceLost()
	}
}

func (c *Context) onFrame(uint64) {
	if c.metrics == nil {
		return
	}
	c.metrics.FramePresented()
	skipped := c.tracker.Skipped()
	c.metrics.BarriersSkipped(skipped - c.lastSkipped)
	c.lastSkipped = skipped
	for _, kind := range gpucore.HeapKinds {
		a := c.allocators[kind]
		c.metrics.Descriptors(kind.String(), a.Live(), a.HighWater())
	}
}

// AllocateDescriptor takes a slot from the heap of the given kind.
func (c *Context) AllocateDescriptor(kind gpucore.HeapKind) (descriptor.Handle, error) {
	if c.closed {
		return descriptor.Handle{}, ErrClosed
	}
	if !kind.Valid() {
		return descriptor.Handle{}, fmt.Errorf("framecore: invalid heap kind %v", kind)
	}
	return c.allocators[kind].Allocate()
}

// FreeDescriptor returns a slot to its heap. The caller must ensure no
// in-flight frame still reads it; with one frame in flight this holds once
// EndFrame has returned.
func (c *Context) FreeDescriptor(h descriptor.Handle) error {
	if c.closed {
		return ErrClosed
	}
	if !h.Valid() {
		return descriptor.ErrInvalidHandle
	}
	return c.allocators[h.Kind()].Free(h)
}

// TrackResource starts tracking a resource created directly on the device.
// The Context does not destroy it.
func (c *Context) TrackResource(res gpucore.Resource, initial gpucore.ResourceState) *state.Resource {
	return state.Track(res, initial)
}

// CreateTexture creates a sampled texture in StateCopyDest. Close destroys
// it unless DestroyTexture was called first.
func (c *Context) CreateTexture(desc gpucore.TextureDesc) (*state.Resource, error) {
	if c.closed {
		return nil, ErrClosed
	}
	res, err := c.dev.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("framecore: create texture %q: %w", desc.Label, err)
	}
	r := state.Track(res, gpucore.StateCopyDest)
	c.textures[r] = struct{}{}
	return r, nil
}

// DestroyTexture releases a texture created by CreateTexture. The GPU must
// no longer use it.
func (c *Context) DestroyTexture(r *state.Resource) error {
	if _, ok := c.textures[r]; !ok {
		return ErrNotTracked
	}
	delete(c.textures, r)
	r.Release()
	c.dev.DestroyResource(r.Handle())
	return nil
}

// CreateShaderView allocates a shader-visible slot and writes a view of r
// into it.
func (c *Context) CreateShaderView(r *state.Resource) (descriptor.Handle, error) {
	h, err := c.AllocateDescriptor(gpucore.HeapShaderVisible)
	if err != nil {
		return h, err
	}
	if err := c.dev.CreateShaderResourceView(r.Handle(), h.CPU()); err != nil {
		_ = c.FreeDescriptor(h)
		return descriptor.Handle{}, fmt.Errorf("framecore: shader view of %q: %w", r.Label(), err)
	}
	return h, nil
}

// Transition records a state change of r into the frame recorder. Outside
// a frame the barrier runs at the start of the next one.
func (c *Context) Transition(r *state.Resource, to gpucore.ResourceState) (bool, error) {
	if c.closed {
		return false, ErrClosed
	}
	if !c.recorder.IsOpen() {
		return false, fmt.Errorf("%w: recorder closed in phase %s", frame.ErrInvalidPhase, c.orch.Phase())
	}
	return c.tracker.Transition(c.recorder, r, to)
}

// Resize waits for the GPU, resizes the back buffers and recreates the
// depth buffer in the same depth-stencil slot. It must be called between
// frames. On failure the back buffers, the depth buffer and its view keep
// their previous size.
func (c *Context) Resize(ctx context.Context, width, height uint32) error {
	if c.closed {
		return ErrClosed
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("framecore: resize: %w", swapchain.ErrBadSize)
	}
	if err := c.orch.WaitIdle(ctx); err != nil {
		c.noteDeviceError(err)
		return err
	}
	oldW, oldH := c.presenter.Size()

	res, err := c.dev.CreateDepthBuffer("depth", width, height)
	if err != nil {
		return fmt.Errorf("framecore: resize: create depth buffer: %w", err)
	}
	if err := c.presenter.Resize(width, height); err != nil {
		c.dev.DestroyResource(res)
		return err
	}
	if err := c.bindDepth(res); err != nil {
		c.dev.DestroyResource(res)
		err = fmt.Errorf("framecore: resize: %w", err)
		if rerr := c.presenter.Resize(oldW, oldH); rerr != nil {
			err = errors.Join(err, rerr)
		}
		if rerr := c.bindDepth(c.depth.Handle()); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}

	old := c.depth
	old.Release()
	c.dev.DestroyResource(old.Handle())
	c.depth = state.Track(res, gpucore.StateDepthWrite)
	c.orch.SetDepth(c.depth, c.depthView)

	c.metrics.Resized()
	c.logger.Info("framecore: resized", "width", width, "height", height)
	return nil
}

// Stats reports frame and resource counters.
func (c *Context) Stats() Stats {
	s := Stats{
		Frames:          c.orch.Frames(),
		LastFenceValue:  c.orch.LastFenceValue(),
		BarriersIssued:  c.tracker.Issued(),
		BarriersSkipped: c.tracker.Skipped(),
		Phase:           c.orch.Phase(),
	}
	for _, kind := range gpucore.HeapKinds {
		a := c.allocators[kind]
		s.Heaps[kind-1] = HeapStats{
			Kind:      kind,
			Live:      a.Live(),
			Capacity:  a.Capacity(),
			HighWater: a.HighWater(),
		}
	}
	return s
}

// Close waits for all submitted work, including a frame whose EndFrame
// was cancelled, and releases everything the Context created. It is safe
// to call more than once.
//
// The wait is bounded by the fence timeout; a device that does not finish
// in time is treated as lost and released anyway.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.orch != nil && c.orch.Phase() != frame.PhaseLost {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.fenceTimeout+time.Second)
		err = c.orch.Drain(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("framecore: close without idle GPU", "err", err)
		}
	}
	c.release()
	c.logger.Info("framecore: closed")
	if fence.IsDeviceError(err) {
		// The device is gone; the resources were released regardless.
		return nil
	}
	return err
}

// release destroys everything in reverse creation order. It tolerates a
// partially initialized Context.
func (c *Context) release() {
	for r := range c.textures {
		r.Release()
		c.dev.DestroyResource(r.Handle())
	}
	clear(c.textures)
	if c.fence != nil {
		c.fence.Destroy()
	}
	if c.recorder != nil {
		c.recorder.Destroy()
	}
	if c.depth != nil {
		c.depth.Release()
		c.dev.DestroyResource(c.depth.Handle())
		c.depth = nil
	}
	if c.presenter != nil {
		c.presenter.Destroy()
	}
	for i := len(c.heaps) - 1; i >= 0; i-- {
		if c.heaps[i] != nil {
			c.heaps[i].Destroy()
			c.heaps[i] = nil
		}
	}
	if c.dev != nil && c.ownsDevice {
		c.dev.Destroy()
	}
}

// IsDeviceError reports whether err means the device was removed or lost
// and the Context must be recreated.
func IsDeviceError(err error) bool {
	return errors.Is(err, gpucore.ErrDeviceRemoved) || errors.Is(err, gpucore.ErrDeviceLost)
}
