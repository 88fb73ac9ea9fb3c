// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command framedemo runs the framecore frame loop headless: it clears the
// back buffer, draws a fullscreen triangle and presents, recreating the
// device with exponential backoff when it is lost.
//
// Usage:
//
//	framedemo -config framecore.toml -frames 600
//	framedemo -backend native -metrics :9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/framecore"
	"github.com/gogpu/framecore/config"
	"github.com/gogpu/framecore/internal/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file (watched for changes)")
		backend    = flag.String("backend", "", "backend override: software, native or noop")
		frames     = flag.Int("frames", 0, "frames to render, 0 runs until interrupted")
		metricsAt  = flag.String("metrics", "", "metrics listen address override")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	framecore.SetLogger(logger)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("framedemo: %v", err)
		}
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *metricsAt != "" {
		cfg.MetricsAddr = *metricsAt
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &demo{cfg: cfg, logger: logger, reg: prometheus.NewRegistry(), updates: make(chan *config.Config, 1)}

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, d.reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("framedemo: metrics server", "err", err)
			}
		}()
		defer srv.Close()
		logger.Info("framedemo: serving metrics", "addr", cfg.MetricsAddr)
	}

	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, logger)
		if err != nil {
			log.Fatalf("framedemo: %v", err)
		}
		go func() {
			_ = w.Run(ctx, func(c *config.Config) {
				select {
				case d.updates <- c:
				default:
					<-d.updates
					d.updates <- c
				}
			})
		}()
	}

	if err := d.run(ctx, *frames); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("framedemo: %v", err)
	}
}

type demo struct {
	cfg        *config.Config
	logger     *slog.Logger
	reg        *prometheus.Registry
	updates    chan *config.Config
	generation int
}

// open creates a Context, retrying while the failure is a device error.
func (d *demo) open(ctx context.Context) (*framecore.Context, error) {
	var fc *framecore.Context
	op := func() error {
		d.generation++
		// Collectors of each device generation are labeled apart.
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"generation": strconv.Itoa(d.generation)}, d.reg)
		opts := append(d.cfg.Options(), framecore.WithMetrics(reg), framecore.WithLogger(d.logger))

		var err error
		fc, err = framecore.Initialize(0, d.cfg.Width, d.cfg.Height, d.cfg.Buffers, opts...)
		if err != nil && !framecore.IsDeviceError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	notify := func(err error, next time.Duration) {
		d.logger.Warn("framedemo: device unavailable, retrying", "err", err, "in", next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	d.logger.Info("framedemo: device ready",
		"backend", d.cfg.Backend, "device", fc.Device().Name(), "generation", d.generation)
	return fc, nil
}

func (d *demo) run(ctx context.Context, frames int) error {
	fc, err := d.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = fc.Close() }()

	start := time.Now()
	for n := 0; frames == 0 || n < frames; n++ {
		select {
		case c := <-d.updates:
			d.apply(ctx, fc, c)
		default:
		}

		err := d.frame(ctx, fc)
		switch {
		case err == nil:
		case framecore.IsDeviceError(err):
			d.logger.Warn("framedemo: device lost, recreating", "err", err)
			_ = fc.Close()
			if fc, err = d.open(ctx); err != nil {
				return err
			}
		default:
			return err
		}

		if n > 0 && n%600 == 0 {
			d.logger.Info("framedemo: progress", "stats", fc.Stats().String())
		}
	}

	elapsed := time.Since(start)
	d.logger.Info("framedemo: done", "frames", frames, "elapsed", elapsed, "stats", fc.Stats().String())
	return nil
}

func (d *demo) frame(ctx context.Context, fc *framecore.Context) error {
	rec, err := fc.BeginFrame(ctx)
	if err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}
	rec.Draw(3, 1, 0, 0)
	if err := fc.EndFrame(ctx); err != nil {
		return fmt.Errorf("end frame: %w", err)
	}
	return nil
}

// apply takes the settings that can change without a new device. A new
// size resizes in place; backend and buffer count changes need a restart.
func (d *demo) apply(ctx context.Context, fc *framecore.Context, c *config.Config) {
	fc.SetSyncInterval(c.SyncInterval)
	fc.SetClearColor(c.Color())
	if c.Backend != d.cfg.Backend || c.Buffers != d.cfg.Buffers {
		d.logger.Warn("framedemo: backend and buffer changes apply on restart")
	}
	if c.Width != d.cfg.Width || c.Height != d.cfg.Height {
		if err := fc.Resize(ctx, c.Width, c.Height); err != nil {
			d.logger.Error("framedemo: resize", "err", err)
			return
		}
	}
	backend, buffers := d.cfg.Backend, d.cfg.Buffers
	*d.cfg = *c
	d.cfg.Backend, d.cfg.Buffers = backend, buffers
	d.logger.Info("framedemo: config applied", "sync_interval", c.SyncInterval)
}
