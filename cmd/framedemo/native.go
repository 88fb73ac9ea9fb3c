// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package main

// The native and noop backends; builds tagged nogpu keep only software.
import _ "github.com/gogpu/framecore/backend/native"
