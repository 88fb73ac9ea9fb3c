// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.FramePresented()
	c.FramePresented()
	c.Barriers(3)
	c.BarriersSkipped(2)
	c.BarriersSkipped(0)
	c.Descriptors("ShaderVisible", 5, 9)
	c.FenceWait(2 * time.Millisecond)
	c.DeviceLost()
	c.Resized()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.barriers.WithLabelValues("issued")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.barriers.WithLabelValues("skipped")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.descriptors.WithLabelValues("ShaderVisible")))
	assert.Equal(t, 9.0, testutil.ToFloat64(c.highWater.WithLabelValues("ShaderVisible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deviceLost))
	assert.Equal(t, 1, testutil.CollectAndCount(c.fenceWait))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.FramePresented()
		c.DeviceLost()
		c.FenceWait(time.Second)
		c.Barriers(1)
		c.BarriersSkipped(1)
		c.Descriptors("RenderTarget", 1, 1)
		c.Resized()
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestServerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.FramePresented()

	srv := NewServer(":0", reg)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "framecore_frames_total 1"))
}
