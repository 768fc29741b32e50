// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/AleutianFTA/pkg/logging"
	"github.com/AleutianAI/AleutianFTA/pkg/telemetry"
	"github.com/AleutianAI/AleutianFTA/pkg/ux"
	"github.com/AleutianAI/AleutianFTA/services/fta/config"
	"github.com/AleutianAI/AleutianFTA/services/fta/store"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

// session holds what one command invocation needs: the merged
// configuration, the logger, telemetry, the optional result cache and the
// printer.
type session struct {
	cfg     config.Config
	log     *logging.Logger
	logger  *slog.Logger
	store   *store.Store
	printer *ux.Printer

	shutdownTelemetry func(context.Context) error
	stopMetrics       context.CancelFunc
}

// openSession merges the config file with the flags and starts the
// ambient services. A nil a leaves the analysis settings as configured.
func openSession(cmd *cobra.Command, g *globalFlags, a *analysisFlags) (*session, error) {
	cfg, err := loadConfig(cmd, g, a)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "fta",
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start logging: %w", err)
	}

	s := &session{
		cfg:     cfg,
		log:     log,
		logger:  log.Slog(),
		printer: ux.NewPrinter(cmd.OutOrStdout(), personality(g)),
	}

	if err := s.startTelemetry(cmd); err != nil {
		_ = s.close()
		return nil, err
	}
	if !g.noCache {
		s.openStore()
	}
	return s, nil
}

// loadConfig reads --config (or the defaults) and applies the flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command, g *globalFlags, a *analysisFlags) (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return cfg, err
		}
	}

	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logDir != "" {
		cfg.Logging.Dir = g.logDir
	}
	if g.cacheDir != "" {
		cfg.Store.Dir = g.cacheDir
		cfg.Store.InMemory = false
	}
	if g.traceExporter != "" {
		cfg.Telemetry.TraceExporter = g.traceExporter
	}
	if g.metricExporter != "" {
		cfg.Telemetry.MetricExporter = g.metricExporter
	}

	if a != nil {
		f := cmd.Flags()
		if f.Changed("contract") {
			cfg.Analysis.Contract = a.contract
		}
		if f.Changed("parallel") {
			cfg.Analysis.Parallelize = a.parallel
		}
		if f.Changed("modularise") {
			cfg.Analysis.Modularize = a.modularise
		}
		if f.Changed("catalog") {
			cfg.Analysis.UseCatalog = a.catalog
		}
		if f.Changed("bitkey") {
			cfg.Analysis.UseBitKey = a.bitKey
		}
		if f.Changed("threads") {
			cfg.Analysis.WorkerCount = a.threads
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func personality(g *globalFlags) ux.PersonalityLevel {
	if g.style != "" {
		return ux.ParsePersonalityLevel(g.style)
	}
	return ux.DetectPersonality(os.Stdout)
}

func (s *session) startTelemetry(cmd *cobra.Command) error {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	if s.cfg.Telemetry.ServiceName != "" {
		tc.ServiceName = s.cfg.Telemetry.ServiceName
	}
	if s.cfg.Telemetry.TraceExporter != "" {
		tc.TraceExporter = s.cfg.Telemetry.TraceExporter
	}
	if s.cfg.Telemetry.MetricExporter != "" {
		tc.MetricExporter = s.cfg.Telemetry.MetricExporter
	}
	if s.cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = s.cfg.Telemetry.OTLPEndpoint
	}
	tc.Writer = cmd.ErrOrStderr()

	shutdown, err := telemetry.Init(cmd.Context(), tc)
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}
	s.shutdownTelemetry = shutdown

	if addr := s.cfg.Telemetry.MetricsAddr; addr != "" && tc.MetricExporter == telemetry.ExporterPrometheus {
		ctx, cancel := context.WithCancel(cmd.Context())
		s.stopMetrics = cancel
		go func() {
			if err := telemetry.ServeMetrics(ctx, addr); err != nil {
				s.logger.Warn("metrics endpoint stopped", slog.String("addr", addr), slog.String("error", err.Error()))
			}
		}()
		s.logger.Info("serving metrics", slog.String("addr", addr))
	}
	return nil
}

// openStore opens the result cache when one is configured. Failure only
// disables caching.
func (s *session) openStore() {
	sc := s.cfg.Store
	if !sc.Enabled() {
		return
	}

	var cfg store.Config
	if sc.InMemory {
		cfg = store.InMemoryConfig()
	} else {
		path, err := sc.Path()
		if err != nil {
			s.logger.Warn("result cache disabled", slog.String("error", err.Error()))
			return
		}
		cfg = store.DefaultConfig(path)
	}
	cfg.TTL = sc.TTL()
	cfg.Logger = s.logger

	st, err := store.Open(cfg)
	if err != nil {
		s.logger.Warn("result cache disabled", slog.String("dir", sc.Dir), slog.String("error", err.Error()))
		return
	}
	s.store = st
}

// close releases everything openSession started, in reverse order.
func (s *session) close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.stopMetrics != nil {
		s.stopMetrics()
	}
	if s.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, s.shutdownTelemetry(ctx))
		cancel()
	}
	errs = append(errs, s.log.Close())
	return errors.Join(errs...)
}
