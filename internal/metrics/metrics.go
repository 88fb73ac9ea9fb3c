// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exports frame-loop counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the framecore collectors. A nil *Collector is valid and
// records nothing, so callers do not need to check whether metrics are on.
type Collector struct {
	frames      prometheus.Counter
	deviceLost  prometheus.Counter
	fenceWait   prometheus.Histogram
	barriers    *prometheus.CounterVec
	descriptors *prometheus.GaugeVec
	highWater   *prometheus.GaugeVec
	resizes     prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "framecore_frames_total",
			Help: "Frames presented",
		}),
		deviceLost: f.NewCounter(prometheus.CounterOpts{
			Name: "framecore_device_lost_total",
			Help: "Device removed or lost events",
		}),
		fenceWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "framecore_fence_wait_seconds",
			Help:    "Time the CPU blocked waiting for the GPU",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		barriers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "framecore_barriers_total",
			Help: "Resource state transitions by result",
		}, []string{"result"}),
		descriptors: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "framecore_descriptors_live",
			Help: "Live descriptor slots by heap kind",
		}, []string{"heap"}),
		highWater: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "framecore_descriptors_high_water",
			Help: "Largest number of simultaneously live descriptor slots by heap kind",
		}, []string{"heap"}),
		resizes: f.NewCounter(prometheus.CounterOpts{
			Name: "framecore_resizes_total",
			Help: "Swap chain resizes",
		}),
	}
}

// FramePresented counts a presented frame.
func (c *Collector) FramePresented() {
	if c == nil {
		return
	}
	c.frames.Inc()
}

// DeviceLost counts a device loss.
func (c *Collector) DeviceLost() {
	if c == nil {
		return
	}
	c.deviceLost.Inc()
}

// FenceWait observes a blocking fence wait.
func (c *Collector) FenceWait(d time.Duration) {
	if c == nil {
		return
	}
	c.fenceWait.Observe(d.Seconds())
}

// Barriers counts issued barriers.
func (c *Collector) Barriers(n int) {
	if c == nil {
		return
	}
	c.barriers.WithLabelValues("issued").Add(float64(n))
}

// BarriersSkipped counts transitions elided because the resource was
// already in the requested state. delta is the increase since the last
// call.
func (c *Collector) BarriersSkipped(delta uint64) {
	if c == nil || delta == 0 {
		return
	}
	c.barriers.WithLabelValues("skipped").Add(float64(delta))
}

// Descriptors sets the live and high-water slot counts of a heap.
func (c *Collector) Descriptors(heap string, live, highWater uint32) {
	if c == nil {
		return
	}
	c.descriptors.WithLabelValues(heap).Set(float64(live))
	c.highWater.WithLabelValues(heap).Set(float64(highWater))
}

// Resized counts a swap chain resize.
func (c *Collector) Resized() {
	if c == nil {
		return
	}
	c.resizes.Inc()
}

// NewServer returns an HTTP server that serves g on /metrics.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
