// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrBackendUnavailable is returned when the hal backend is not compiled in.
	ErrBackendUnavailable = errors.New("native: hal backend not available")

	// ErrInvalidDimensions is returned when width or height is zero.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")

	// ErrForeignResource is returned for resources of another device.
	ErrForeignResource = errors.New("native: resource was not created by this device")

	// ErrBadAddress is returned for descriptor addresses outside every heap
	// of the expected kind.
	ErrBadAddress = errors.New("native: address does not belong to a heap of the expected kind")

	// ErrProvider is returned when a device provider does not expose hal
	// objects.
	ErrProvider = errors.New("native: provider does not expose hal device and queue")

	// ErrListState is returned for Reset of an open list or Close of a
	// closed one.
	ErrListState = errors.New("native: command list in wrong state")
)
