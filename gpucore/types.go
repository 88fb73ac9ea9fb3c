// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// HeapKind identifies the kind of views a descriptor heap stores.
type HeapKind uint8

// Descriptor heap kinds.
const (
	// HeapRenderTarget holds render-target views.
	HeapRenderTarget HeapKind = iota + 1

	// HeapDepthStencil holds depth-stencil views.
	HeapDepthStencil

	// HeapShaderVisible holds shader-resource, uniform and storage views.
	// It is the only kind with GPU addresses.
	HeapShaderVisible
)

// String returns the heap kind name.
func (k HeapKind) String() string {
	switch k {
	case HeapRenderTarget:
		return "RenderTarget"
	case HeapDepthStencil:
		return "DepthStencil"
	case HeapShaderVisible:
		return "ShaderVisible"
	default:
		return fmt.Sprintf("HeapKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the defined heap kinds.
func (k HeapKind) Valid() bool {
	return k >= HeapRenderTarget && k <= HeapShaderVisible
}

// HeapKinds lists all heap kinds in creation order.
var HeapKinds = [...]HeapKind{HeapRenderTarget, HeapDepthStencil, HeapShaderVisible}

// ResourceState is the last declared GPU access pattern of a resource.
type ResourceState uint8

// Resource states.
const (
	StateCommon ResourceState = iota
	StateRenderTarget
	StateDepthWrite
	StatePixelShaderRead
	StateCopyDest
	StateCopySource
	StateGenericRead
	StateUnorderedAccess
	StatePresent
)

var stateNames = [...]string{
	StateCommon:          "Common",
	StateRenderTarget:    "RenderTarget",
	StateDepthWrite:      "DepthWrite",
	StatePixelShaderRead: "PixelShaderRead",
	StateCopyDest:        "CopyDest",
	StateCopySource:      "CopySource",
	StateGenericRead:     "GenericRead",
	StateUnorderedAccess: "UnorderedAccess",
	StatePresent:         "Present",
}

// String returns the state name.
func (s ResourceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", uint8(s))
}

// Valid reports whether s is one of the defined states.
func (s ResourceState) Valid() bool {
	return s <= StatePresent
}

// TextureUsage maps the state to the WebGPU texture usage that a barrier
// in or out of it describes. Common and Present have no usage bits.
func (s ResourceState) TextureUsage() gputypes.TextureUsage {
	switch s {
	case StateRenderTarget, StateDepthWrite:
		return gputypes.TextureUsageRenderAttachment
	case StatePixelShaderRead, StateGenericRead:
		return gputypes.TextureUsageTextureBinding
	case StateCopyDest:
		return gputypes.TextureUsageCopyDst
	case StateCopySource:
		return gputypes.TextureUsageCopySrc
	case StateUnorderedAccess:
		return gputypes.TextureUsageStorageBinding
	default:
		return gputypes.TextureUsage(0)
	}
}

// CPUAddress is the CPU-side address of a descriptor slot.
type CPUAddress uint64

// GPUAddress is the GPU-side address of a shader-visible descriptor slot.
type GPUAddress uint64

// SurfaceHandle is the platform presentation surface (window handle).
// Zero means headless.
type SurfaceHandle uintptr

// Resource is an opaque GPU resource (texture or back buffer).
type Resource interface {
	// Label returns the debug label given at creation.
	Label() string

	// Width returns the width in pixels.
	Width() uint32

	// Height returns the height in pixels.
	Height() uint32

	// Format returns the texel format.
	Format() gputypes.TextureFormat
}

// Barrier describes a state change of a single resource.
type Barrier struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

// String formats the barrier for logs.
func (b Barrier) String() string {
	label := "<nil>"
	if b.Resource != nil {
		label = b.Resource.Label()
	}
	return fmt.Sprintf("%s: %s -> %s", label, b.Before, b.After)
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// Viewport is the rasterizer viewport.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a scissor rectangle in pixels.
type Rect struct {
	X, Y, Width, Height uint32
}

// TextureDesc describes a texture created through Device.CreateTexture.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
}

// SwapChainDesc describes a swap chain.
type SwapChainDesc struct {
	Surface     SurfaceHandle
	Width       uint32
	Height      uint32
	BufferCount uint32
	Format      gputypes.TextureFormat
}
