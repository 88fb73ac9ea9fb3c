// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads framecore settings from a TOML file.
//
// Example file:
//
//	width = 1280
//	height = 720
//	buffers = 3
//	backend = "native"
//	sync_interval = 1
//	fence_timeout = "5s"
//	clear_color = [0.1, 0.1, 0.1, 1.0]
//	metrics_addr = ":9090"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/framecore"
	"github.com/gogpu/framecore/gpucore"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config mirrors the framecore options plus the window size and the
// metrics listen address.
type Config struct {
	Width               uint32     `toml:"width"`
	Height              uint32     `toml:"height"`
	Buffers             uint32     `toml:"buffers"`
	Backend             string     `toml:"backend"`
	ShaderHeapCapacity  uint32     `toml:"shader_heap_capacity"`
	ReservedShaderSlots uint32     `toml:"reserved_shader_slots"`
	Debug               bool       `toml:"debug"`
	SyncInterval        uint32     `toml:"sync_interval"`
	FenceTimeout        Duration   `toml:"fence_timeout"`
	ClearColor          [4]float64 `toml:"clear_color"`
	MetricsAddr         string     `toml:"metrics_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Width:              800,
		Height:             600,
		Buffers:            2,
		Backend:            framecore.DefaultBackend,
		ShaderHeapCapacity: framecore.DefaultShaderHeapCapacity,
		SyncInterval:       1,
		ClearColor:         [4]float64{0, 0, 0, 1},
	}
}

// Parse decodes TOML over the defaults. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("config: %s", strict.String())
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Width == 0 || c.Height == 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, c.Width, c.Height)
	case c.Buffers < 2:
		return fmt.Errorf("%w: buffers = %d, need at least 2", ErrInvalid, c.Buffers)
	case c.ReservedShaderSlots > c.ShaderHeapCapacity:
		return fmt.Errorf("%w: reserved_shader_slots %d exceeds shader_heap_capacity %d",
			ErrInvalid, c.ReservedShaderSlots, c.ShaderHeapCapacity)
	case c.FenceTimeout < 0:
		return fmt.Errorf("%w: negative fence_timeout", ErrInvalid)
	}
	return nil
}

// Color returns ClearColor as a gpucore.Color.
func (c *Config) Color() gpucore.Color {
	return gpucore.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}
}

// Options converts c into framecore options. Width, Height and Buffers
// are Initialize arguments and are not included.
func (c *Config) Options() []framecore.Option {
	opts := []framecore.Option{
		framecore.WithDebug(c.Debug),
		framecore.WithSyncInterval(c.SyncInterval),
		framecore.WithClearColor(c.Color()),
		framecore.WithReservedShaderSlots(c.ReservedShaderSlots),
	}
	if c.Backend != "" {
		opts = append(opts, framecore.WithBackend(c.Backend))
	}
	if c.ShaderHeapCapacity > 0 {
		opts = append(opts, framecore.WithShaderHeapCapacity(c.ShaderHeapCapacity))
	}
	if c.FenceTimeout > 0 {
		opts = append(opts, framecore.WithFenceTimeout(time.Duration(c.FenceTimeout)))
	}
	return opts
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
