// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the backend contract consumed by the framecore
// frame-lifecycle packages.
//
// A backend exposes a [Device] that creates descriptor heaps, command lists,
// fences, swap chains and textures, and a [Queue] that executes closed
// command buffers in submission order. The higher-level packages
// (descriptor, state, command, fence, swapchain, frame) are written once
// against these interfaces; thin backends translate them to a concrete API.
//
//	               +------------------+
//	               |    framecore     |
//	               | (frame, fence..) |
//	               +--------+---------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          |backend/software |
//	|  (hal.Device)   |          | (CPU timeline)  |
//	+--------+--------+          +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	|   (Pure Go)     |
//	+-----------------+
//
// # Resource states
//
// [ResourceState] is the access pattern a resource is in from the GPU's
// point of view. A [Barrier] declares a change from one state to another
// and must be recorded before the resource is used in the new way. The
// state.Tracker package is the only code expected to build barriers.
//
// # Descriptors
//
// Descriptor heaps are fixed-capacity tables addressed by [CPUAddress]
// (and [GPUAddress] for shader-visible heaps). A backend writes views into
// heap slots when asked to (CreateRenderTargetView and friends) and
// resolves addresses back to views when commands reference them.
//
// # Registration
//
// Backends register a [Factory] from init, following the database/sql
// driver pattern:
//
//	import _ "github.com/gogpu/framecore/backend/software"
//
//	dev, err := gpucore.Open("software", gpucore.BackendConfig{})
package gpucore
