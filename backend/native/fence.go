// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore/gpucore"
)

// pollInterval bounds each blocking hal wait so that Destroy is noticed.
const pollInterval = 100 * time.Millisecond

// Queue submits to the hal queue.
type Queue struct {
	dev *Device
	q   hal.Queue
}

// Submit implements gpucore.Queue.
func (q *Queue) Submit(cmds []gpucore.CommandBuffer) error {
	if err := q.dev.checkRemoved(); err != nil {
		return err
	}
	bufs := make([]hal.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return fmt.Errorf("native: submit of foreign command buffer %q", c.Label())
		}
		bufs = append(bufs, cb.buf)
	}
	if err := q.q.Submit(bufs, nil, 0); err != nil {
		return q.dev.remove(fmt.Errorf("submit: %w", err))
	}
	return nil
}

// Signal implements gpucore.Queue.
func (q *Queue) Signal(f gpucore.Fence, value uint64) error {
	if err := q.dev.checkRemoved(); err != nil {
		return err
	}
	nf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("native: signal of foreign fence %T", f)
	}
	if err := q.q.Submit(nil, nf.hf, value); err != nil {
		return q.dev.remove(fmt.Errorf("signal %d: %w", value, err))
	}
	nf.signaled(value)
	return nil
}

// Fence wraps a hal fence. hal fences are polled, so Done starts a
// goroutine that waits in pollInterval slices.
type Fence struct {
	dev *Device
	hf  hal.Fence

	mu        sync.Mutex
	completed uint64
	pending   uint64
	waiters   map[uint64][]chan struct{}
	destroyed bool
}

func newFence(d *Device, hf hal.Fence, initial uint64) *Fence {
	return &Fence{
		dev:       d,
		hf:        hf,
		completed: initial,
		pending:   initial,
		waiters:   make(map[uint64][]chan struct{}),
	}
}

func (f *Fence) signaled(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v > f.pending {
		f.pending = v
	}
}

// CompletedValue implements gpucore.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	completed, pending, destroyed := f.completed, f.pending, f.destroyed
	f.mu.Unlock()
	if destroyed || completed >= pending {
		return completed
	}
	ok, err := f.dev.dev.Wait(f.hf, pending, 0)
	switch {
	case err != nil:
		f.dev.remove(fmt.Errorf("fence probe: %w", err))
	case ok:
		f.complete(pending)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Done implements gpucore.Fence.
func (f *Fence) Done(value uint64) <-chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	if f.completed >= value {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	start := len(f.waiters[value]) == 0
	f.waiters[value] = append(f.waiters[value], ch)
	f.mu.Unlock()
	if start {
		go f.poll(value)
	}
	return ch
}

func (f *Fence) poll(value uint64) {
	for {
		f.mu.Lock()
		if f.destroyed || f.completed >= value {
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()

		ok, err := f.dev.dev.Wait(f.hf, value, pollInterval)
		if err != nil {
			f.dev.remove(fmt.Errorf("fence wait %d: %w", value, err))
			return
		}
		if ok {
			f.complete(value)
			return
		}
	}
}

// complete raises the completed value and releases satisfied waiters.
// The value never decreases.
func (f *Fence) complete(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v <= f.completed {
		return
	}
	f.completed = v
	for target, chans := range f.waiters {
		if target <= v {
			for _, ch := range chans {
				close(ch)
			}
			delete(f.waiters, target)
		}
	}
}

// Destroy implements gpucore.Fence. Outstanding waiters are released as
// if the device had been removed.
func (f *Fence) Destroy() {
	f.complete(math.MaxUint64)
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	f.destroyed = true
	f.mu.Unlock()
	f.dev.removeFence(f)
	f.dev.dev.DestroyFence(f.hf)
}
