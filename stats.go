// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framecore

import (
	"fmt"

	"github.com/gogpu/framecore/frame"
	"github.com/gogpu/framecore/gpucore"
)

// HeapStats describes the usage of one descriptor heap.
type HeapStats struct {
	Kind      gpucore.HeapKind
	Live      uint32
	Capacity  uint32
	HighWater uint32
}

// Stats is a snapshot of Context counters.
type Stats struct {
	Frames          uint64
	LastFenceValue  uint64
	BarriersIssued  uint64
	BarriersSkipped uint64
	Phase           frame.Phase

	// Heaps is indexed by HeapKind-1.
	Heaps [len(gpucore.HeapKinds)]HeapStats
}

// Heap returns the stats of the heap of the given kind.
func (s Stats) Heap(kind gpucore.HeapKind) HeapStats {
	if !kind.Valid() {
		return HeapStats{}
	}
	return s.Heaps[kind-1]
}

// String formats the stats on one line.
func (s Stats) String() string {
	sv := s.Heap(gpucore.HeapShaderVisible)
	return fmt.Sprintf("frames=%d fence=%d barriers=%d/%d skipped shader=%d/%d (peak %d) phase=%s",
		s.Frames, s.LastFenceValue, s.BarriersIssued, s.BarriersSkipped,
		sv.Live, sv.Capacity, sv.HighWater, s.Phase)
}
