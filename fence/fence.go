// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fence implements the CPU side of frame synchronization.
//
// A Fence hands out strictly increasing signal values and blocks until the
// GPU reaches one. Waits are bounded: a GPU that stops making progress is
// reported as a lost device rather than hanging the caller forever.
package fence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/framecore/gpucore"
)

// DefaultTimeout bounds WaitUntil when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// ErrWaitTimeout is returned when the GPU did not reach a value within the
// timeout. It wraps gpucore.ErrDeviceLost.
var ErrWaitTimeout = fmt.Errorf("fence: wait timed out: %w", gpucore.ErrDeviceLost)

// Option configures a Fence.
type Option func(*Fence)

// WithTimeout sets the WaitUntil bound. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(f *Fence) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithWaitObserver registers fn to be called with the duration of every
// WaitUntil that had to block.
func WithWaitObserver(fn func(time.Duration)) Option {
	return func(f *Fence) {
		f.observe = fn
	}
}

// Fence pairs a backend fence with the CPU-side next value.
// It is not safe for concurrent use.
type Fence struct {
	backend   gpucore.Fence
	next      uint64
	completed uint64
	timeout   time.Duration
	observe   func(time.Duration)
}

// New creates a fence on dev starting at zero.
func New(dev gpucore.Device, opts ...Option) (*Fence, error) {
	b, err := dev.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("fence: create: %w", err)
	}
	f := &Fence{backend: b, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SignalAfterSubmit asks q to signal the next value after everything
// submitted so far. It returns the value, which is greater than every
// value returned before.
func (f *Fence) SignalAfterSubmit(q gpucore.Queue) (uint64, error) {
	v := f.next + 1
	if err := q.Signal(f.backend, v); err != nil {
		return 0, fmt.Errorf("fence: signal %d: %w", v, err)
	}
	f.next = v
	return v, nil
}

// CompletedValue returns the highest value the GPU is known to have
// reached. It never decreases.
func (f *Fence) CompletedValue() uint64 {
	if c := f.backend.CompletedValue(); c > f.completed {
		f.completed = c
	}
	return f.completed
}

// LastSignaled returns the value of the last successful SignalAfterSubmit.
func (f *Fence) LastSignaled() uint64 { return f.next }

// WaitUntil blocks until the GPU reaches v, ctx is done or the timeout
// expires. It returns nil only once CompletedValue() >= v.
func (f *Fence) WaitUntil(ctx context.Context, v uint64) error {
	if err := f.check(v); err != nil || f.completed >= v {
		return err
	}

	start := time.Now()
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case <-f.backend.Done(v):
	case <-ctx.Done():
		return fmt.Errorf("fence: wait for %d: %w", v, ctx.Err())
	case <-timer.C:
		// The event may have fired just as the timer did.
		if f.CompletedValue() < v {
			return fmt.Errorf("%w (value %d, completed %d, after %v)", ErrWaitTimeout, v, f.completed, f.timeout)
		}
	}
	if f.observe != nil {
		f.observe(time.Since(start))
	}
	return f.check(v)
}

// check refreshes the completed value and reports a removed device.
func (f *Fence) check(v uint64) error {
	c := f.CompletedValue()
	if c == math.MaxUint64 {
		return fmt.Errorf("fence: wait for %d: %w", v, gpucore.ErrDeviceRemoved)
	}
	if c < v && v > f.next {
		return fmt.Errorf("fence: wait for %d which was never signaled (last %d)", v, f.next)
	}
	return nil
}

// Flush signals a new value on q and waits for it, idling the queue.
func (f *Fence) Flush(ctx context.Context, q gpucore.Queue) error {
	v, err := f.SignalAfterSubmit(q)
	if err != nil {
		return err
	}
	return f.WaitUntil(ctx, v)
}

// Destroy releases the backend fence.
func (f *Fence) Destroy() {
	if f.backend != nil {
		f.backend.Destroy()
		f.backend = nil
	}
}

// IsDeviceError reports whether err means the device must be recreated.
func IsDeviceError(err error) bool {
	return errors.Is(err, gpucore.ErrDeviceRemoved) || errors.Is(err, gpucore.ErrDeviceLost)
}
