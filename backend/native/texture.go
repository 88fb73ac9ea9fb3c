// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore/gpucore"
)

// Texture is a hal texture with its default view.
type Texture struct {
	label      string
	width      uint32
	height     uint32
	format     gputypes.TextureFormat
	backBuffer bool

	tex  hal.Texture
	view hal.TextureView
}

func (t *Texture) Label() string                  { return t.label }
func (t *Texture) Width() uint32                  { return t.width }
func (t *Texture) Height() uint32                 { return t.height }
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// HalTexture returns the underlying hal texture.
func (t *Texture) HalTexture() hal.Texture { return t.tex }

// HalView returns the default view.
func (t *Texture) HalView() hal.TextureView { return t.view }

// usageFor returns every usage a texture of format may need over its
// lifetime. Barriers move between these.
func usageFor(format gputypes.TextureFormat) gputypes.TextureUsage {
	if format == gputypes.TextureFormatDepth24PlusStencil8 {
		return gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	}
	return gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
}

// newTexture creates a 2D texture and its default view on dev.
func newTexture(dev hal.Device, label string, w, h uint32, format gputypes.TextureFormat) (*Texture, error) {
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: %s %dx%d", ErrInvalidDimensions, label, w, h)
	}
	tex, err := dev.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usageFor(format),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", label, err)
	}
	view, err := dev.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: label + "_view"})
	if err != nil {
		dev.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create view of %q: %w", label, err)
	}
	return &Texture{label: label, width: w, height: h, format: format, tex: tex, view: view}, nil
}

func (t *Texture) destroy(dev hal.Device) {
	if t.view != nil {
		dev.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		dev.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// barrierFor converts a state barrier into a hal usage transition.
// ok is false when both states map to the same usage.
func barrierFor(b gpucore.Barrier) (hal.TextureBarrier, bool) {
	t, isTex := b.Resource.(*Texture)
	if !isTex || t.tex == nil {
		return hal.TextureBarrier{}, false
	}
	oldUsage, newUsage := b.Before.TextureUsage(), b.After.TextureUsage()
	if oldUsage == newUsage {
		return hal.TextureBarrier{}, false
	}
	return hal.TextureBarrier{
		Texture: t.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: oldUsage, NewUsage: newUsage},
	}, true
}
