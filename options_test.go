// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framecore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/backend/software"
	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/gpucore"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	assert.Equal(t, DefaultBackend, o.backend)
	assert.Equal(t, uint32(DefaultShaderHeapCapacity), o.shaderCapacity)
	assert.Equal(t, fence.DefaultTimeout, o.fenceTimeout)
	assert.Equal(t, gpucore.Color{A: 1}, o.clearColor)
}

func TestOptionsApply(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithBackend("native"),
		WithShaderHeapCapacity(1024),
		WithReservedShaderSlots(2),
		WithDebug(true),
		WithSyncInterval(1),
		WithClearColor(gpucore.Color{R: 1, A: 1}),
		WithFenceTimeout(time.Second),
		WithFenceTimeout(0),
	} {
		opt(&o)
	}
	assert.Equal(t, "native", o.backend)
	assert.Equal(t, uint32(1024), o.shaderCapacity)
	assert.Equal(t, uint32(2), o.reservedSlots)
	assert.True(t, o.debug)
	assert.Equal(t, uint32(1), o.syncInterval)
	assert.Equal(t, 1.0, o.clearColor.R)
	assert.Equal(t, time.Second, o.fenceTimeout, "zero timeout is ignored")
}

func TestClearColorReachesBackBuffer(t *testing.T) {
	fc, _ := newTestContext(t, WithClearColor(gpucore.Color{R: 1, G: 1, B: 0, A: 1}))
	ctx := context.Background()

	_, err := fc.BeginFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, fc.EndFrame(ctx))

	px, ok := software.Pixel(fc.Presenter().BackBuffer(0).Handle(), 0, 0)
	require.True(t, ok)
	assert.Equal(t, [4]byte{255, 255, 0, 255}, px)

	fc.SetClearColor(gpucore.Color{B: 1, A: 1})
	_, err = fc.BeginFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, fc.EndFrame(ctx))
	px, _ = software.Pixel(fc.Presenter().BackBuffer(1).Handle(), 0, 0)
	assert.Equal(t, [4]byte{0, 0, 255, 255}, px)
}
