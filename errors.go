// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framecore

import "errors"

var (
	// ErrInitialize wraps every failure of Initialize. The wrapped error
	// names the step that failed.
	ErrInitialize = errors.New("framecore: initialize")

	// ErrClosed is returned by calls on a closed Context.
	ErrClosed = errors.New("framecore: context closed")

	// ErrNotTracked is returned for resources the Context did not create.
	ErrNotTracked = errors.New("framecore: resource not owned by this context")
)
