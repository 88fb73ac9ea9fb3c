// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"time"

	"github.com/gogpu/framecore/gpucore"
)

// refreshInterval paces Present for sync intervals above zero.
const refreshInterval = time.Second / 60

// SwapChain is a headless swap chain: count offscreen textures in the
// device surface format, rotated round-robin on Present.
type SwapChain struct {
	dev         *Device
	count       uint32
	buffers     []*Texture
	current     uint32
	lastPresent time.Time
}

func (s *SwapChain) allocate(w, h uint32) error {
	buffers := make([]*Texture, 0, s.count)
	for i := uint32(0); i < s.count; i++ {
		t, err := newTexture(s.dev.dev, fmt.Sprintf("back_buffer_%d", i), w, h, s.dev.format)
		if err != nil {
			for _, b := range buffers {
				b.destroy(s.dev.dev)
			}
			return err
		}
		t.backBuffer = true
		buffers = append(buffers, t)
	}
	s.buffers = buffers
	s.current = 0
	return nil
}

func (s *SwapChain) release() {
	for _, b := range s.buffers {
		b.destroy(s.dev.dev)
	}
	s.buffers = nil
}

// BufferCount implements gpucore.SwapChain.
func (s *SwapChain) BufferCount() uint32 { return s.count }

// CurrentBackBufferIndex implements gpucore.SwapChain.
func (s *SwapChain) CurrentBackBufferIndex() uint32 { return s.current }

// BackBuffer implements gpucore.SwapChain.
func (s *SwapChain) BackBuffer(i uint32) (gpucore.Resource, error) {
	if int(i) >= len(s.buffers) {
		return nil, fmt.Errorf("native: back buffer %d of %d", i, len(s.buffers))
	}
	return s.buffers[i], nil
}

// Present implements gpucore.SwapChain.
func (s *SwapChain) Present(syncInterval uint32) error {
	if len(s.buffers) == 0 {
		return gpucore.ErrSurfaceLost
	}
	if err := s.dev.checkRemoved(); err != nil {
		return err
	}
	if syncInterval > 0 && !s.lastPresent.IsZero() {
		next := s.lastPresent.Add(time.Duration(syncInterval) * refreshInterval)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}
	}
	s.lastPresent = time.Now()
	s.current = (s.current + 1) % s.count
	return nil
}

// ResizeBuffers implements gpucore.SwapChain.
func (s *SwapChain) ResizeBuffers(width, height uint32) error {
	s.release()
	if err := s.allocate(width, height); err != nil {
		return fmt.Errorf("native: resize buffers to %dx%d: %w", width, height, err)
	}
	return nil
}

// Destroy implements gpucore.SwapChain.
func (s *SwapChain) Destroy() { s.release() }
