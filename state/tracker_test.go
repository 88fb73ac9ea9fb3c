// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package state

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/gpucore"
)

type fakeResource string

func (f fakeResource) Label() string                  { return string(f) }
func (fakeResource) Width() uint32                    { return 1 }
func (fakeResource) Height() uint32                   { return 1 }
func (fakeResource) Format() gputypes.TextureFormat   { return gputypes.TextureFormatRGBA8Unorm }

type barrierLog struct {
	calls    int
	barriers []gpucore.Barrier
}

func (l *barrierLog) ResourceBarrier(bs []gpucore.Barrier) {
	l.calls++
	l.barriers = append(l.barriers, bs...)
}

func TestTransitionIdempotent(t *testing.T) {
	tr := NewTracker()
	log := &barrierLog{}
	r := Track(fakeResource("bb"), gpucore.StatePresent)

	did, err := tr.Transition(log, r, gpucore.StateRenderTarget)
	require.NoError(t, err)
	assert.True(t, did)

	did, err = tr.Transition(log, r, gpucore.StateRenderTarget)
	require.NoError(t, err)
	assert.False(t, did)

	require.Len(t, log.barriers, 1)
	assert.Equal(t, gpucore.Barrier{Resource: r.Handle(), Before: gpucore.StatePresent, After: gpucore.StateRenderTarget}, log.barriers[0])
	assert.Equal(t, gpucore.StateRenderTarget, r.State())
	assert.Equal(t, uint64(1), tr.Issued())
	assert.Equal(t, uint64(1), tr.Skipped())
}

func TestTransitionAllBatches(t *testing.T) {
	tr := NewTracker()
	log := &barrierLog{}
	var emitted int
	tr.OnBarriers(func(n int) { emitted += n })

	color := Track(fakeResource("color"), gpucore.StatePresent)
	depth := Track(fakeResource("depth"), gpucore.StateDepthWrite)
	tex := Track(fakeResource("tex"), gpucore.StateCopyDest)

	n, err := tr.TransitionAll(log,
		Request{color, gpucore.StateRenderTarget},
		Request{depth, gpucore.StateDepthWrite},
		Request{tex, gpucore.StatePixelShaderRead},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, log.calls, "one barrier call for the batch")
	assert.Equal(t, 2, emitted)
	assert.Equal(t, gpucore.StatePixelShaderRead, tex.State())

	n, err = tr.TransitionAll(log, Request{color, gpucore.StateRenderTarget})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, log.calls)
}

func TestTransitionAllInvalidStateChangesNothing(t *testing.T) {
	tr := NewTracker()
	log := &barrierLog{}
	a := Track(fakeResource("a"), gpucore.StateCommon)
	b := Track(fakeResource("b"), gpucore.StateCommon)

	_, err := tr.TransitionAll(log,
		Request{a, gpucore.StateCopySource},
		Request{b, gpucore.ResourceState(99)},
	)
	require.Error(t, err)
	assert.Zero(t, log.calls)
	assert.Equal(t, gpucore.StateCommon, a.State())
}

func TestTransitionAllRejectsDuplicates(t *testing.T) {
	tr := NewTracker()
	log := &barrierLog{}
	a := Track(fakeResource("a"), gpucore.StatePresent)
	b := Track(fakeResource("b"), gpucore.StateCommon)

	_, err := tr.TransitionAll(log,
		Request{a, gpucore.StateRenderTarget},
		Request{b, gpucore.StateCopyDest},
		Request{a, gpucore.StateCopySource},
	)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Zero(t, log.calls)
	assert.Equal(t, gpucore.StatePresent, a.State())
	assert.Equal(t, gpucore.StateCommon, b.State())
	assert.Zero(t, tr.Issued())
}

func TestTransitionReleasedPanics(t *testing.T) {
	tr := NewTracker()
	r := Track(fakeResource("gone"), gpucore.StateCommon)
	r.Release()
	assert.True(t, r.Released())
	assert.PanicsWithValue(t, `state: transition of released resource "gone"`, func() {
		_, _ = tr.Transition(&barrierLog{}, r, gpucore.StateCopyDest)
	})
}
