// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/gputypes"
)

// SwapChain rotates in-memory back buffers in order.
type SwapChain struct {
	dev    *Device
	format gputypes.TextureFormat

	mu          sync.Mutex
	buffers     []*texture
	index       uint32
	lastPresent time.Time
}

func (s *SwapChain) allocate(count, w, h uint32) {
	s.buffers = make([]*texture, count)
	for i := range s.buffers {
		t := newTexture(fmt.Sprintf("backbuffer[%d]", i), w, h, s.format, gpucore.StatePresent)
		t.backBuffer = true
		s.buffers[i] = t
	}
	s.index = 0
}

// BufferCount implements gpucore.SwapChain.
func (s *SwapChain) BufferCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.buffers))
}

// CurrentBackBufferIndex implements gpucore.SwapChain.
func (s *SwapChain) CurrentBackBufferIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// BackBuffer implements gpucore.SwapChain.
func (s *SwapChain) BackBuffer(i uint32) (gpucore.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(i) >= len(s.buffers) {
		return nil, fmt.Errorf("software: back buffer %d out of range [0,%d)", i, len(s.buffers))
	}
	return s.buffers[i], nil
}

// Present implements gpucore.SwapChain. The state check runs on the queue
// after previously submitted work; the buffer index advances immediately.
func (s *SwapChain) Present(syncInterval uint32) error {
	if err := s.dev.Removed(); err != nil {
		return err
	}
	s.mu.Lock()
	if len(s.buffers) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("software: present on destroyed swap chain: %w", gpucore.ErrSurfaceLost)
	}
	bb := s.buffers[s.index]
	s.index = (s.index + 1) % uint32(len(s.buffers))
	wait := s.pace(syncInterval)
	s.mu.Unlock()

	d := s.dev
	d.queue.enqueue(func() {
		if got := bb.state(); got != gpucore.StatePresent {
			d.report("Present of %q in state %s, want Present", bb.label, got)
		}
		d.presents.Add(1)
	})
	if wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

// pace returns how long to block so that presents with a sync interval
// follow the simulated refresh rate. Called with s.mu held.
func (s *SwapChain) pace(syncInterval uint32) time.Duration {
	now := time.Now()
	if syncInterval == 0 {
		s.lastPresent = now
		return 0
	}
	period := time.Duration(float64(time.Second) / s.dev.opts.refreshRate)
	next := s.lastPresent.Add(time.Duration(syncInterval) * period)
	if s.lastPresent.IsZero() || !next.After(now) {
		s.lastPresent = now
		return 0
	}
	s.lastPresent = next
	return next.Sub(now)
}

// ResizeBuffers implements gpucore.SwapChain.
func (s *SwapChain) ResizeBuffers(width, height uint32) error {
	if err := s.dev.Removed(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return ErrZeroSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		b.destroyed.Store(true)
	}
	s.allocate(uint32(len(s.buffers)), width, height)
	return nil
}

// Destroy implements gpucore.SwapChain.
func (s *SwapChain) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		b.destroyed.Store(true)
	}
	s.buffers = nil
}
