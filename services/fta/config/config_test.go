// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Analysis.UseCatalog)
	assert.False(t, cfg.Analysis.Parallelize)
	assert.Equal(t, cutset.DefaultParallelThreshold, cfg.Analysis.ParallelThreshold)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
analysis:
  use_catalog: false
  parallelize: true
  worker_count: 4
logging:
  level: debug
store:
  dir: /tmp/fta-cache
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Analysis.UseCatalog)
	assert.True(t, cfg.Analysis.UseBitKey, "unset keys keep their defaults")
	assert.True(t, cfg.Analysis.Parallelize)
	assert.Equal(t, 4, cfg.Analysis.WorkerCount)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
	assert.Equal(t, "/tmp/fta-cache", cfg.Store.Dir)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative workers", "analysis:\n  worker_count: -1\n"},
		{"unknown level", "logging:\n  level: loud\n"},
		{"unknown exporter", "telemetry:\n  trace_exporter: zipkin\n"},
		{"otlp without endpoint", "telemetry:\n  trace_exporter: otlp\n"},
		{"bad metrics addr", "telemetry:\n  metrics_addr: not a port\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "analysis: [1, 2"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fta.yaml")
	cfg := Default()
	cfg.Analysis.WorkerCount = 6
	cfg.Telemetry.TraceExporter = "otlp"
	cfg.Telemetry.OTLPEndpoint = "localhost:4317"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestAnalysis_Options(t *testing.T) {
	logger := slog.Default()
	a := Default().Analysis

	eng := a.EngineOptions(logger)
	assert.Equal(t, cutset.StrategyCatalog, eng.Strategy)
	assert.True(t, eng.UseBitKey)
	assert.False(t, eng.ParallelRedundancy, "sub-toggles need the master switch")
	assert.Same(t, logger, eng.Logger)

	tr := a.TreeOptions(logger)
	assert.True(t, tr.Modularize)
	assert.False(t, tr.ParallelBranching)

	a.Parallelize = true
	a.WorkerCount = 3
	a.UseCatalog = false
	eng = a.EngineOptions(logger)
	tr = a.TreeOptions(logger)
	assert.Equal(t, cutset.StrategyFlatList, eng.Strategy)
	assert.True(t, eng.ParallelRedundancy)
	assert.True(t, tr.ParallelBranching)
	assert.Equal(t, 3, eng.Workers)
	assert.Equal(t, 3, tr.Workers)
}

func TestStore_Helpers(t *testing.T) {
	var s Store
	assert.False(t, s.Enabled())
	assert.Zero(t, s.TTL())

	s.InMemory = true
	assert.True(t, s.Enabled())

	s = Store{Dir: "~/cache", TTLHours: 2}
	assert.True(t, s.Enabled())
	assert.Equal(t, 2*time.Hour, s.TTL())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path, err := s.Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache"), path)

	s.Dir = "/var/cache/fta"
	path, err = s.Path()
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/fta", path)
}
