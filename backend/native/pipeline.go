// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// fullscreenShaderSource draws a single triangle covering the viewport.
// It is bound for Draw calls recorded through the core, which owns no
// client pipelines.
const fullscreenShaderSource = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOutput;
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(in.uv, 0.0, 1.0);
}
`

// pipelines holds the default render pipelines, one per depth
// configuration.
type pipelines struct {
	shader    hal.ShaderModule
	layout    hal.PipelineLayout
	color     hal.RenderPipeline
	withDepth hal.RenderPipeline
}

// createPipelines validates the shader with naga and builds the default
// pipelines for color targets of format. Failure is fatal for the device.
func createPipelines(dev hal.Device, format gputypes.TextureFormat) (*pipelines, error) {
	if _, err := naga.Compile(fullscreenShaderSource); err != nil {
		return nil, fmt.Errorf("native: compile fullscreen shader: %w", err)
	}

	p := &pipelines{}
	var err error
	p.shader, err = dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "framecore_fullscreen",
		Source: hal.ShaderSource{WGSL: fullscreenShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create shader module: %w", err)
	}
	p.layout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "framecore_fullscreen_layout",
	})
	if err != nil {
		p.destroy(dev)
		return nil, fmt.Errorf("native: create pipeline layout: %w", err)
	}

	if p.color, err = p.build(dev, format, nil); err != nil {
		p.destroy(dev)
		return nil, err
	}
	depth := &hal.DepthStencilState{
		Format:            gputypes.TextureFormatDepth24PlusStencil8,
		DepthWriteEnabled: false,
		DepthCompare:      gputypes.CompareFunctionAlways,
		StencilFront: hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		},
		StencilBack: hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		},
	}
	if p.withDepth, err = p.build(dev, format, depth); err != nil {
		p.destroy(dev)
		return nil, err
	}
	return p, nil
}

func (p *pipelines) build(dev hal.Device, format gputypes.TextureFormat, depth *hal.DepthStencilState) (hal.RenderPipeline, error) {
	label := "framecore_fullscreen"
	if depth != nil {
		label += "_depth"
	}
	rp, err := dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		DepthStencil: depth,
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create pipeline %s: %w", label, err)
	}
	return rp, nil
}

func (p *pipelines) destroy(dev hal.Device) {
	if p.withDepth != nil {
		dev.DestroyRenderPipeline(p.withDepth)
		p.withDepth = nil
	}
	if p.color != nil {
		dev.DestroyRenderPipeline(p.color)
		p.color = nil
	}
	if p.layout != nil {
		dev.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.shader != nil {
		dev.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
