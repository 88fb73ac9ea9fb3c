// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framecore/gpucore"
)

// Queue executes work on its own goroutine in submission order.
type Queue struct {
	dev  *Device
	work chan func()
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newQueue(d *Device) *Queue {
	q := &Queue{
		dev:  d,
		work: make(chan func(), 64),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for fn := range q.work {
		fn()
	}
}

// enqueue schedules fn after all previous work. It reports false once the
// queue has been stopped.
func (q *Queue) enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.work <- fn
	return true
}

func (q *Queue) stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.work)
	}
	q.mu.Unlock()
	<-q.done
}

// Submit implements gpucore.Queue.
func (q *Queue) Submit(cmds []gpucore.CommandBuffer) error {
	if err := q.dev.Removed(); err != nil {
		return err
	}
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return fmt.Errorf("software: submit of foreign command buffer %T", c)
		}
		cb.list.inFlight.Add(1)
		latency := q.dev.opts.latency
		d := q.dev
		if !q.enqueue(func() {
			defer cb.list.inFlight.Add(-1)
			if latency > 0 {
				time.Sleep(latency)
			}
			if d.Removed() != nil {
				return
			}
			for _, o := range cb.ops {
				o()
			}
			d.submits.Add(1)
		}) {
			cb.list.inFlight.Add(-1)
			return fmt.Errorf("software: queue stopped: %w", gpucore.ErrDeviceRemoved)
		}
	}
	return nil
}

// Signal implements gpucore.Queue.
func (q *Queue) Signal(f gpucore.Fence, value uint64) error {
	if err := q.dev.Removed(); err != nil {
		return err
	}
	sf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("software: signal of foreign fence %T", f)
	}
	if !q.enqueue(func() { sf.complete(value) }) {
		return fmt.Errorf("software: queue stopped: %w", gpucore.ErrDeviceRemoved)
	}
	return nil
}
