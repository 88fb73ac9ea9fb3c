// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// BackendConfig is passed to a backend Factory.
type BackendConfig struct {
	// Debug enables the backend's validation layer. Development only.
	Debug bool

	// Logger receives backend diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Factory opens a device for a backend.
type Factory func(cfg BackendConfig) (Device, error)

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register registers a backend factory with the given name.
// This function is typically called from init() in backend packages:
//
//	func init() {
//	    gpucore.Register("software", func(cfg gpucore.BackendConfig) (gpucore.Device, error) {
//	        return New(cfg), nil
//	    })
//	}
//
// Register panics if factory is nil or the name is already taken.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("gpucore: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("gpucore: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is primarily useful for testing to clean up between tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Open opens a device from the backend registered under name.
// The error message includes a hint about forgotten imports.
func Open(name string, cfg BackendConfig) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gpucore: unknown backend %q (forgotten import?)", name)
	}
	return factory(cfg)
}

// Backends returns the sorted names of registered backends.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a backend named name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}
