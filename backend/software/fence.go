// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import "sync"

// closedChan is returned by Done for values that were already reached.
var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

type waiter struct {
	value uint64
	ch    chan struct{}
}

// Fence is a monotonic counter completed by the queue goroutine.
type Fence struct {
	dev *Device

	mu        sync.Mutex
	completed uint64
	waiters   []waiter
}

func newFence(d *Device, initial uint64) *Fence {
	return &Fence{dev: d, completed: initial}
}

// CompletedValue implements gpucore.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Done implements gpucore.Fence.
func (f *Fence) Done(value uint64) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed >= value {
		return closedChan
	}
	ch := make(chan struct{})
	f.waiters = append(f.waiters, waiter{value: value, ch: ch})
	return ch
}

// complete raises the completed value and releases satisfied waiters.
// Lower values are ignored.
func (f *Fence) complete(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value <= f.completed {
		return
	}
	f.completed = value
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= value {
			close(w.ch)
		} else {
			kept = append(kept, w)
		}
	}
	clear(f.waiters[len(kept):])
	f.waiters = kept
}

// Destroy implements gpucore.Fence.
func (f *Fence) Destroy() {
	f.dev.removeFence(f)
}
