// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package framecore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/backend/native"
	"github.com/gogpu/framecore/frame"
	"github.com/gogpu/framecore/gpucore"
)

func TestNoopBackendFrames(t *testing.T) {
	fc, err := Initialize(0, 32, 32, 3, WithBackend(native.NameNoop))
	require.NoError(t, err)
	defer func() { assert.NoError(t, fc.Close()) }()
	assert.IsType(t, &native.Device{}, fc.Device())

	ctx := context.Background()
	for i := range 10 {
		rec, err := fc.BeginFrame(ctx)
		require.NoError(t, err)
		rec.Draw(3, 1, 0, 0)
		require.NoError(t, fc.EndFrame(ctx))
		require.Equal(t, uint64(i+1), fc.Stats().LastFenceValue)
	}
	assert.Equal(t, frame.PhaseIdle, fc.Phase())
	assert.Equal(t, uint32(10%3), fc.Presenter().AcquireCurrentIndex())

	require.NoError(t, fc.Resize(ctx, 48, 16))
	_, err = fc.BeginFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, fc.EndFrame(ctx))
	assert.Equal(t, uint32(48), fc.DepthBuffer().Handle().Width())

	tex, err := fc.CreateTexture(gpucore.TextureDesc{Label: "overlay", Width: 8, Height: 8})
	require.NoError(t, err)
	view, err := fc.CreateShaderView(tex)
	require.NoError(t, err)
	assert.True(t, view.Valid())
}
