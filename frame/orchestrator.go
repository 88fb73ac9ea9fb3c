// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package frame drives the per-frame sequence: acquire a back buffer, make
// it a render target, let clients record, then submit, wait and present.
//
// Frame lifecycle:
//
//	         PreDraw             PostDraw
//	Idle ─────────────► Recording ─────────► Submitted ──► Idle
//	  │                     │                     │
//	  └─────────── device error ──────────────────┴──► Lost
//
// Only one frame is in flight: PostDraw waits for the GPU before it
// presents, so the recorder can be reset right away.
package frame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/framecore/command"
	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/framecore/state"
	"github.com/gogpu/framecore/swapchain"
)

// ErrInvalidPhase is returned when PreDraw or PostDraw is called out of
// order.
var ErrInvalidPhase = errors.New("frame: call in wrong phase")

// Phase is the orchestrator state.
type Phase uint8

// Phases.
const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseSubmitted
	PhaseLost
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseRecording:
		return "Recording"
	case PhaseSubmitted:
		return "Submitted"
	case PhaseLost:
		return "Lost"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Config holds the collaborators of an Orchestrator. Device, Presenter,
// Recorder, Fence and Tracker are required.
type Config struct {
	Device    gpucore.Device
	Presenter *swapchain.Presenter
	Recorder  *command.Recorder
	Fence     *fence.Fence
	Tracker   *state.Tracker

	// Depth and DepthView are optional. When set, PreDraw clears and binds
	// the depth buffer.
	Depth     *state.Resource
	DepthView descriptor.Handle

	ClearColor   gpucore.Color
	SyncInterval uint32

	// OnFrame is called after every presented frame with its fence value.
	OnFrame func(fenceValue uint64)

	Logger *slog.Logger
}

// Orchestrator runs frames. It is not safe for concurrent use.
type Orchestrator struct {
	cfg     Config
	queue   gpucore.Queue
	phase   Phase
	index   uint32
	pending uint64
	frames  uint64
	last    uint64
	lostErr error
}

// New creates an orchestrator and opens the recorder for the first frame.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Device == nil || cfg.Presenter == nil || cfg.Recorder == nil || cfg.Fence == nil || cfg.Tracker == nil {
		return nil, errors.New("frame: incomplete config")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Recorder.Reset(); err != nil {
		return nil, fmt.Errorf("frame: open recorder: %w", err)
	}
	return &Orchestrator{cfg: cfg, queue: cfg.Device.Queue()}, nil
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Frames returns the number of presented frames.
func (o *Orchestrator) Frames() uint64 { return o.frames }

// LastFenceValue returns the fence value of the last presented frame.
func (o *Orchestrator) LastFenceValue() uint64 { return o.last }

// Err returns the error that moved the orchestrator to PhaseLost.
func (o *Orchestrator) Err() error { return o.lostErr }

// SetSyncInterval changes the present sync interval of later frames.
func (o *Orchestrator) SetSyncInterval(n uint32) { o.cfg.SyncInterval = n }

// SetClearColor changes the back-buffer clear color of later frames.
func (o *Orchestrator) SetClearColor(c gpucore.Color) { o.cfg.ClearColor = c }

// SetDepth replaces the depth buffer, for example after a resize.
func (o *Orchestrator) SetDepth(depth *state.Resource, view descriptor.Handle) {
	o.cfg.Depth = depth
	o.cfg.DepthView = view
}

// Recorder returns the frame recorder. It is open while Idle and Recording.
func (o *Orchestrator) Recorder() *command.Recorder { return o.cfg.Recorder }

func (o *Orchestrator) checkPhase(want Phase) error {
	if o.phase == PhaseLost {
		return fmt.Errorf("frame: %w: %w", gpucore.ErrDeviceLost, o.lostErr)
	}
	if o.phase != want {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidPhase, o.phase, want)
	}
	return nil
}

// lose moves to PhaseLost. Errors that are not already device errors are
// wrapped in gpucore.ErrDeviceLost.
func (o *Orchestrator) lose(step string, err error) error {
	if !fence.IsDeviceError(err) {
		err = fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, err)
	}
	err = fmt.Errorf("frame: %s: %w", step, err)
	o.phase = PhaseLost
	o.lostErr = err
	o.cfg.Logger.Warn("frame: device lost", "step", step, "err", err)
	return err
}

// PreDraw starts a frame. It transitions the current back buffer to
// StateRenderTarget, clears it and the depth buffer, and binds both with a
// full-surface viewport. The returned recorder accepts client commands
// until PostDraw.
func (o *Orchestrator) PreDraw(ctx context.Context) (*command.Recorder, error) {
	if err := o.checkPhase(PhaseIdle); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := o.cfg.Recorder
	p := o.cfg.Presenter

	o.index = p.AcquireCurrentIndex()
	reqs := []state.Request{{Resource: p.BackBuffer(o.index), To: gpucore.StateRenderTarget}}
	if o.cfg.Depth != nil {
		reqs = append(reqs, state.Request{Resource: o.cfg.Depth, To: gpucore.StateDepthWrite})
	}
	if _, err := o.cfg.Tracker.TransitionAll(rec, reqs...); err != nil {
		return nil, fmt.Errorf("frame: pre-draw transition: %w", err)
	}

	rtv := p.RenderTargetView(o.index)
	rec.ClearRenderTarget(rtv, o.cfg.ClearColor)
	var dsv descriptor.Handle
	if o.cfg.Depth != nil {
		dsv = o.cfg.DepthView
		rec.ClearDepthStencil(dsv, 1, 0)
	}
	rec.SetRenderTargets([]descriptor.Handle{rtv}, dsv)

	w, h := p.Size()
	rec.SetViewport(gpucore.Viewport{Width: float32(w), Height: float32(h), MaxDepth: 1})
	rec.SetScissor(gpucore.Rect{Width: w, Height: h})

	o.phase = PhaseRecording
	return rec, nil
}

// PostDraw ends the frame: back buffer to StatePresent, close, submit,
// signal, wait, reset the recorder and present.
//
// If ctx ends while waiting for the GPU, PostDraw returns the context error
// and stays in PhaseSubmitted; calling it again resumes the wait.
func (o *Orchestrator) PostDraw(ctx context.Context) error {
	if o.phase == PhaseSubmitted {
		return o.finish(ctx)
	}
	if err := o.checkPhase(PhaseRecording); err != nil {
		return err
	}
	rec := o.cfg.Recorder

	bb := o.cfg.Presenter.BackBuffer(o.index)
	if _, err := o.cfg.Tracker.Transition(rec, bb, gpucore.StatePresent); err != nil {
		return fmt.Errorf("frame: post-draw transition: %w", err)
	}
	cb, err := rec.Close()
	if err != nil {
		return o.lose("close", err)
	}
	if err := o.queue.Submit([]gpucore.CommandBuffer{cb}); err != nil {
		return o.lose("submit", err)
	}
	v, err := o.cfg.Fence.SignalAfterSubmit(o.queue)
	if err != nil {
		return o.lose("signal", err)
	}
	rec.MarkSubmitted(o.cfg.Fence, v)
	o.pending = v
	o.phase = PhaseSubmitted
	return o.finish(ctx)
}

func (o *Orchestrator) finish(ctx context.Context) error {
	v := o.pending
	if err := o.cfg.Fence.WaitUntil(ctx, v); err != nil {
		if fence.IsDeviceError(err) {
			return o.lose("wait", err)
		}
		return err
	}
	if err := o.cfg.Recorder.Reset(); err != nil {
		return o.lose("reset", err)
	}
	if err := o.cfg.Presenter.Present(o.cfg.SyncInterval); err != nil {
		return o.lose("present", err)
	}

	o.frames++
	o.last = v
	o.phase = PhaseIdle
	o.cfg.Logger.Debug("frame: presented", "frame", o.frames, "fence", v, "buffer", o.index)
	if o.cfg.OnFrame != nil {
		o.cfg.OnFrame(v)
	}
	return nil
}

// WaitIdle blocks until the GPU has finished all submitted work. It is
// only valid between frames.
func (o *Orchestrator) WaitIdle(ctx context.Context) error {
	if err := o.checkPhase(PhaseIdle); err != nil {
		return err
	}
	if err := o.cfg.Fence.Flush(ctx, o.queue); err != nil {
		if fence.IsDeviceError(err) {
			return o.lose("flush", err)
		}
		return err
	}
	return nil
}

// Drain blocks until the GPU has finished all submitted work, in any phase
// but PhaseLost. Unlike WaitIdle it accepts a frame left in PhaseSubmitted
// by a cancelled PostDraw; that frame is not presented and the phase is
// unchanged.
func (o *Orchestrator) Drain(ctx context.Context) error {
	if o.phase == PhaseLost {
		return o.checkPhase(PhaseIdle)
	}
	if err := o.cfg.Fence.Flush(ctx, o.queue); err != nil {
		if fence.IsDeviceError(err) {
			return o.lose("drain", err)
		}
		return err
	}
	return nil
}
