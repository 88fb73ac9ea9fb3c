// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package state tracks the GPU access state of resources and emits the
// barriers needed to move them between states.
//
// The Tracker is the only writer of a Resource's state. Everything that
// needs a resource in a particular state (the frame loop, texture uploads,
// overlays) asks the same Tracker, so there is one source of truth.
package state

import (
	"errors"
	"fmt"

	"github.com/gogpu/framecore/gpucore"
)

// ErrDuplicate is returned by TransitionAll when a resource appears in
// more than one request.
var ErrDuplicate = errors.New("state: resource requested twice")

// BarrierRecorder receives the barriers a Tracker emits. command.Recorder
// implements it.
type BarrierRecorder interface {
	ResourceBarrier(barriers []gpucore.Barrier)
}

// Resource is a GPU resource paired with its current state.
type Resource struct {
	res      gpucore.Resource
	state    gpucore.ResourceState
	released bool
}

// Track starts tracking res, which must currently be in initial.
func Track(res gpucore.Resource, initial gpucore.ResourceState) *Resource {
	return &Resource{res: res, state: initial}
}

// State returns the last declared state.
func (r *Resource) State() gpucore.ResourceState { return r.state }

// Handle returns the backend resource.
func (r *Resource) Handle() gpucore.Resource { return r.res }

// Label returns the backend resource label.
func (r *Resource) Label() string {
	if r.res == nil {
		return ""
	}
	return r.res.Label()
}

// Release marks the resource as no longer usable. The backend object is
// not destroyed; its owner does that.
func (r *Resource) Release() { r.released = true }

// Released reports whether Release was called.
func (r *Resource) Released() bool { return r.released }

// Tracker issues barriers for state changes and counts them.
// It is not safe for concurrent use.
type Tracker struct {
	issued  uint64
	skipped uint64
	onEmit  func(n int)
}

// NewTracker creates a tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// OnBarriers registers fn to be called with the number of barriers every
// time the tracker records some. Used for metrics.
func (t *Tracker) OnBarriers(fn func(n int)) { t.onEmit = fn }

// Transition moves r to state to. When r is already in to nothing is
// recorded and Transition returns false. Transitioning a released resource
// panics.
func (t *Tracker) Transition(rec BarrierRecorder, r *Resource, to gpucore.ResourceState) (bool, error) {
	b, ok, err := t.prepare(r, to)
	if err != nil || !ok {
		return false, err
	}
	rec.ResourceBarrier([]gpucore.Barrier{b})
	r.state = to
	t.emitted(1)
	return true, nil
}

// Request is one entry of TransitionAll.
type Request struct {
	Resource *Resource
	To       gpucore.ResourceState
}

// TransitionAll performs several transitions with a single barrier call.
// It returns how many barriers were recorded. Requests already satisfied
// are skipped. Each resource may appear once. On error nothing is
// recorded and no state changes.
func (t *Tracker) TransitionAll(rec BarrierRecorder, reqs ...Request) (int, error) {
	for i, req := range reqs {
		for _, prev := range reqs[:i] {
			if prev.Resource == req.Resource && req.Resource != nil {
				return 0, fmt.Errorf("%w: %q", ErrDuplicate, req.Resource.Label())
			}
		}
	}
	barriers := make([]gpucore.Barrier, 0, len(reqs))
	for _, req := range reqs {
		b, ok, err := t.prepare(req.Resource, req.To)
		if err != nil {
			return 0, err
		}
		if ok {
			barriers = append(barriers, b)
		}
	}
	if len(barriers) == 0 {
		return 0, nil
	}
	rec.ResourceBarrier(barriers)
	for _, req := range reqs {
		req.Resource.state = req.To
	}
	t.emitted(len(barriers))
	return len(barriers), nil
}

func (t *Tracker) prepare(r *Resource, to gpucore.ResourceState) (gpucore.Barrier, bool, error) {
	if r == nil {
		panic("state: transition of nil resource")
	}
	if r.released {
		panic(fmt.Sprintf("state: transition of released resource %q", r.Label()))
	}
	if !to.Valid() {
		return gpucore.Barrier{}, false, fmt.Errorf("state: invalid target state %v", to)
	}
	if r.state == to {
		t.skipped++
		return gpucore.Barrier{}, false, nil
	}
	return gpucore.Barrier{Resource: r.res, Before: r.state, After: to}, true, nil
}

func (t *Tracker) emitted(n int) {
	t.issued += uint64(n)
	if t.onEmit != nil {
		t.onEmit(n)
	}
}

// Issued returns the number of barriers recorded.
func (t *Tracker) Issued() uint64 { return t.issued }

// Skipped returns the number of transitions elided because the resource
// was already in the requested state.
func (t *Tracker) Skipped() uint64 { return t.skipped }
