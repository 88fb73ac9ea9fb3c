// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framecore/gpucore"
	"github.com/gogpu/gputypes"
)

// texture is an in-memory resource. Color textures store 4 bytes per texel
// in their format's channel order; depth textures store a float32 depth
// plane and a uint8 stencil plane.
type texture struct {
	label      string
	width      uint32
	height     uint32
	format     gputypes.TextureFormat
	backBuffer bool

	// gpuState is the state the simulated GPU last transitioned the
	// resource to. Only the queue goroutine writes it.
	gpuState  atomic.Uint32
	destroyed atomic.Bool

	mu      sync.Mutex
	color   []byte
	depth   []float32
	stencil []uint8
}

func newTexture(label string, w, h uint32, format gputypes.TextureFormat, initial gpucore.ResourceState) *texture {
	t := &texture{label: label, width: w, height: h, format: format}
	n := int(w) * int(h)
	if t.isDepth() {
		t.depth = make([]float32, n)
		t.stencil = make([]uint8, n)
	} else {
		t.color = make([]byte, n*4)
	}
	t.gpuState.Store(uint32(initial))
	return t
}

func (t *texture) Label() string                  { return t.label }
func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

func (t *texture) isDepth() bool {
	return t.format == gputypes.TextureFormatDepth24PlusStencil8
}

func (t *texture) state() gpucore.ResourceState {
	return gpucore.ResourceState(t.gpuState.Load())
}

// fillColor writes c to every texel.
func (t *texture) fillColor(c gpucore.Color) {
	px := packColor(t.format, c)
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.color) == 0 {
		return
	}
	copy(t.color, px[:])
	for filled := 4; filled < len(t.color); filled *= 2 {
		copy(t.color[filled:], t.color[:filled])
	}
}

func (t *texture) fillDepth(depth float32, stencil uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.depth {
		t.depth[i] = depth
	}
	for i := range t.stencil {
		t.stencil[i] = stencil
	}
}

func packColor(format gputypes.TextureFormat, c gpucore.Color) [4]byte {
	r, g, b, a := unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)
	if format == gputypes.TextureFormatBGRA8Unorm {
		return [4]byte{b, g, r, a}
	}
	return [4]byte{r, g, b, a}
}

func unorm8(v float64) byte {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// Pixel returns the RGBA value of texel (x, y) of a color resource created
// by a software device. ok is false for foreign or depth resources and for
// out-of-range coordinates.
func Pixel(r gpucore.Resource, x, y uint32) (rgba [4]byte, ok bool) {
	t, isTex := r.(*texture)
	if !isTex || t.isDepth() || x >= t.width || y >= t.height {
		return rgba, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := (int(y)*int(t.width) + int(x)) * 4
	copy(rgba[:], t.color[i:i+4])
	if t.format == gputypes.TextureFormatBGRA8Unorm {
		rgba[0], rgba[2] = rgba[2], rgba[0]
	}
	return rgba, true
}

// Depth returns the depth and stencil of texel (x, y) of a depth resource.
func Depth(r gpucore.Resource, x, y uint32) (depth float32, stencil uint8, ok bool) {
	t, isTex := r.(*texture)
	if !isTex || !t.isDepth() || x >= t.width || y >= t.height {
		return 0, 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := int(y)*int(t.width) + int(x)
	return t.depth[i], t.stencil[i], true
}

// GPUState returns the state the simulated GPU last put r in. It lags the
// CPU-side tracker until the work that transitions r has executed.
func GPUState(r gpucore.Resource) (gpucore.ResourceState, bool) {
	t, ok := r.(*texture)
	if !ok {
		return 0, false
	}
	return t.state(), true
}
