// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the analysis configuration.
//
// The file is YAML with four sections:
//
//	analysis:
//	  use_catalog: true
//	  use_bit_key: true
//	  parallelize: true
//	  modularize: true
//	  contract: true
//	  worker_count: 8
//	logging:
//	  level: info
//	telemetry:
//	  trace_exporter: none
//	store:
//	  dir: ~/.aleutian/fta/cache
//
// Parallelize is the master switch; ParallelizeBranching and
// ParallelizeRedundancyCheck only take effect when it is on.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Shared Validator Instance
// =============================================================================

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full configuration file.
type Config struct {
	Analysis  Analysis  `yaml:"analysis"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
	Store     Store     `yaml:"store"`
}

// Analysis holds the analysis toggles. They are fixed once an Analyser is
// created.
type Analysis struct {
	UseCatalog                 bool `yaml:"use_catalog"`
	UseBitKey                  bool `yaml:"use_bit_key"`
	Parallelize                bool `yaml:"parallelize"`
	ParallelizeBranching       bool `yaml:"parallelize_branching"`
	ParallelizeRedundancyCheck bool `yaml:"parallelize_redundancy_check"`
	Modularize                 bool `yaml:"modularize"`
	Contract                   bool `yaml:"contract"`

	// WorkerCount bounds goroutines per fan-out. Zero picks from NumCPU.
	WorkerCount int `yaml:"worker_count" validate:"gte=0,lte=1024"`

	// ParallelThreshold is the smallest collection scanned in parallel.
	ParallelThreshold int `yaml:"parallel_threshold" validate:"gte=0"`
}

// Logging configures the process logger.
type Logging struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

// Telemetry configures trace and metric exporters.
type Telemetry struct {
	ServiceName    string `yaml:"service_name"`
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty" validate:"required_if=TraceExporter otlp"`
	MetricsAddr    string `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
}

// Store configures the result cache. An empty Dir disables caching.
type Store struct {
	Dir      string `yaml:"dir,omitempty"`
	InMemory bool   `yaml:"in_memory"`
	TTLHours int    `yaml:"ttl_hours" validate:"gte=0"`
}

// Default returns the configuration used when no file is given: catalog
// storage, bit keys, modularization and contraction on, parallelism off.
func Default() Config {
	return Config{
		Analysis: Analysis{
			UseCatalog:                 true,
			UseBitKey:                  true,
			ParallelizeBranching:       true,
			ParallelizeRedundancyCheck: true,
			Modularize:                 true,
			Contract:                   true,
			ParallelThreshold:          cutset.DefaultParallelThreshold,
		},
		Logging: Logging{Level: "info"},
		Telemetry: Telemetry{
			ServiceName:    "aleutian-fta",
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Inputs:
//   - path: The file to read. A leading "~/" is expanded.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: Read, parse or ErrInvalidConfig errors.
func Load(path string) (Config, error) {
	cfg := Default()
	path, err := expandHome(path)
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field constraints.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig and lists every failing field.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Errorf("%s fails %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(msgs...))
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}

// EngineOptions maps the analysis toggles onto cutset options.
func (a Analysis) EngineOptions(logger *slog.Logger) cutset.Options {
	opts := cutset.DefaultOptions()
	if a.UseCatalog {
		opts.Strategy = cutset.StrategyCatalog
	}
	opts.UseBitKey = a.UseBitKey
	opts.ParallelRedundancy = a.Parallelize && a.ParallelizeRedundancyCheck
	if a.ParallelThreshold > 0 {
		opts.ParallelThreshold = a.ParallelThreshold
	}
	opts.Workers = a.WorkerCount
	opts.Logger = logger
	return opts
}

// TreeOptions maps the analysis toggles onto generation options.
func (a Analysis) TreeOptions(logger *slog.Logger) tree.Options {
	return tree.Options{
		Modularize:        a.Modularize,
		ParallelBranching: a.Parallelize && a.ParallelizeBranching,
		Workers:           a.WorkerCount,
		Logger:            logger,
	}
}

// Enabled reports whether a cache should be opened.
func (s Store) Enabled() bool { return s.InMemory || s.Dir != "" }

// Path returns Dir with a leading "~/" expanded.
func (s Store) Path() (string, error) { return expandHome(s.Dir) }

// TTL returns the record lifetime; zero keeps records forever.
func (s Store) TTL() time.Duration { return time.Duration(s.TTLHours) * time.Hour }

// SlogLevel returns the configured log level, defaulting to info.
func (l Logging) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) (string, error) {
	if len(path) < 2 || path[:2] != "~/" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
