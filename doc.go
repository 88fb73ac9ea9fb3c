// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framecore is the frame-lifecycle core of a GPU renderer.
//
// # Overview
//
// framecore owns the parts of a renderer that every frame goes through:
// command submission, the CPU/GPU fence, the swap-chain presentation cycle
// and fixed-capacity descriptor heaps. Window loops, asset loading, shaders
// and scene logic live elsewhere and use the Context API.
//
// # Quick Start
//
//	fc, err := framecore.Initialize(0, 1280, 720, 2)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fc.Close()
//
//	for running {
//	    rec, err := fc.BeginFrame(ctx)
//	    if err != nil {
//	        break
//	    }
//	    rec.Draw(3, 1, 0, 0)
//	    if err := fc.EndFrame(ctx); err != nil {
//	        break
//	    }
//	}
//
// # Frame Lifecycle
//
// BeginFrame reads the back-buffer index from the swap chain, transitions
// that buffer to RenderTarget, clears it and the depth buffer and binds
// both. Clients record into the returned recorder. EndFrame transitions
// the back buffer to Present, submits, signals the fence, waits for it and
// presents. One frame is in flight at a time.
//
// # Backends
//
// Devices come from the gpucore backend registry. The software backend is
// always available and is the default; import backend/native for the
// wgpu-hal devices "native" (Vulkan) and "noop":
//
//	import _ "github.com/gogpu/framecore/backend/native"
//
//	fc, err := framecore.Initialize(0, w, h, 2, framecore.WithBackend("native"))
//
// The native swap chain is headless. A windowing layer that already owns a
// device passes it in with native.FromProvider and WithDevice.
//
// # Errors
//
// Initialize failures wrap ErrInitialize. A removed or lost device is
// reported as gpucore.ErrDeviceRemoved or gpucore.ErrDeviceLost; the
// Context is then unusable and must be closed and recreated. Misuse such as
// recording into a closed recorder panics.
package framecore
