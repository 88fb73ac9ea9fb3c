// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/backend/software"
	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/gpucore"
)

type completion uint64

func (c *completion) CompletedValue() uint64 { return uint64(*c) }

func newTestRecorder(t *testing.T) (*Recorder, *software.Device) {
	t.Helper()
	dev := software.New(gpucore.BackendConfig{Debug: true})
	t.Cleanup(dev.Destroy)
	r, err := New(dev, "frame")
	require.NoError(t, err)
	t.Cleanup(r.Destroy)
	return r, dev
}

func TestRecorderLifecycle(t *testing.T) {
	r, _ := newTestRecorder(t)
	assert.False(t, r.IsOpen(), "recorders start closed")

	require.NoError(t, r.Reset())
	assert.True(t, r.IsOpen())
	r.Draw(3, 1, 0, 0)
	r.Dispatch(1, 1, 1)
	assert.Equal(t, 2, r.Commands())

	cb, err := r.Close()
	require.NoError(t, err)
	assert.Equal(t, "frame", cb.Label())
	assert.False(t, r.IsOpen())
}

func TestRecorderMisusePanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(r *Recorder)
	}{
		{"draw while closed", func(r *Recorder) { r.Draw(3, 1, 0, 0) }},
		{"barrier while closed", func(r *Recorder) { r.ResourceBarrier(nil) }},
		{"close while closed", func(r *Recorder) { _, _ = r.Close() }},
		{"reset while open", func(r *Recorder) {
			require.NoError(t, r.Reset())
			_ = r.Reset()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRecorder(t)
			assert.Panics(t, func() { tt.fn(r) })
		})
	}
}

func TestResetWhileInFlightPanics(t *testing.T) {
	r, _ := newTestRecorder(t)
	require.NoError(t, r.Reset())
	_, err := r.Close()
	require.NoError(t, err)

	var c completion
	r.MarkSubmitted(&c, 1)
	assert.Equal(t, uint64(1), r.InFlight())
	assert.Panics(t, func() { _ = r.Reset() })

	c = 1
	assert.NoError(t, r.Reset())
}

func TestRecorderForwardsDescriptors(t *testing.T) {
	r, dev := newTestRecorder(t)

	srvHeap, err := descriptor.NewHeap(dev, gpucore.HeapShaderVisible, 4)
	require.NoError(t, err)
	defer srvHeap.Destroy()
	srv := descriptor.NewAllocator(srvHeap).MustAllocate()

	rtvHeap, err := descriptor.NewHeap(dev, gpucore.HeapRenderTarget, 1)
	require.NoError(t, err)
	defer rtvHeap.Destroy()
	rtv := descriptor.NewAllocator(rtvHeap).MustAllocate()

	require.NoError(t, r.Reset())
	r.SetDescriptorTable(0, srv)
	assert.Panics(t, func() { r.SetDescriptorTable(1, rtv) })
	_, err = r.Close()
	require.NoError(t, err)

	assert.Empty(t, dev.ValidationErrors())
}
