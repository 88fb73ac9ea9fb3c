// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framecore

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/gpucore"
)

// Default configuration values.
const (
	DefaultBackend            = "software"
	DefaultShaderHeapCapacity = 256
)

// Option configures a Context during Initialize.
//
// Example:
//
//	fc, err := framecore.Initialize(0, 1280, 720, 2,
//	    framecore.WithBackend("native"),
//	    framecore.WithShaderHeapCapacity(1024),
//	    framecore.WithSyncInterval(1),
//	)
type Option func(*options)

// options holds optional configuration for Initialize.
type options struct {
	backend        string
	device         gpucore.Device
	shaderCapacity uint32
	reservedSlots  uint32
	debug          bool
	syncInterval   uint32
	clearColor     gpucore.Color
	fenceTimeout   time.Duration
	registerer     prometheus.Registerer
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		backend:        DefaultBackend,
		shaderCapacity: DefaultShaderHeapCapacity,
		fenceTimeout:   fence.DefaultTimeout,
		clearColor:     gpucore.Color{A: 1},
	}
}

// WithBackend selects a registered backend by name. The backend package
// must be imported for its side effect of registering:
//
//	import _ "github.com/gogpu/framecore/backend/native"
//
// Default: "software".
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithDevice uses an existing device instead of opening a backend. The
// Context does not destroy a device passed this way.
func WithDevice(dev gpucore.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithShaderHeapCapacity sets the number of shader-visible descriptor
// slots. The heap never grows. Default: 256.
func WithShaderHeapCapacity(n uint32) Option {
	return func(o *options) {
		o.shaderCapacity = n
	}
}

// WithReservedShaderSlots reserves the first n shader-visible slots at
// initialization, for example for a UI overlay font texture. They are
// available from Context.ReservedShaderSlots.
func WithReservedShaderSlots(n uint32) Option {
	return func(o *options) {
		o.reservedSlots = n
	}
}

// WithDebug enables the backend validation layer. Development only.
func WithDebug(enabled bool) Option {
	return func(o *options) {
		o.debug = enabled
	}
}

// WithSyncInterval sets the present sync interval: 0 presents immediately,
// n waits for n vertical blanks. Default: 0.
func WithSyncInterval(n uint32) Option {
	return func(o *options) {
		o.syncInterval = n
	}
}

// WithClearColor sets the color back buffers are cleared to at the start
// of every frame. Default: opaque black.
func WithClearColor(c gpucore.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithFenceTimeout bounds every wait for the GPU. A wait that exceeds it
// is reported as gpucore.ErrDeviceLost. Default: 10s.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithMetrics registers Prometheus collectors for frames, fence waits,
// barriers and descriptor usage on reg. Registering a second Context on
// the same reg panics; wrap it with prometheus.WrapRegistererWith to tell
// the two apart.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger sets the logger of this Context and its backend. Default:
// the package logger (see SetLogger).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
