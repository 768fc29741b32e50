// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cutset

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
)

// Strategy selects the storage used by groups.
type Strategy int

const (
	// StrategyFlatList stores members in a plain list.
	StrategyFlatList Strategy = iota

	// StrategyCatalog indexes members by event and then by order.
	StrategyCatalog
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyFlatList:
		return "flat_list"
	case StrategyCatalog:
		return "catalog"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// DefaultParallelThreshold is the smallest collection scanned in parallel.
const DefaultParallelThreshold = 256

// maxScanWorkers caps parallel redundancy scan goroutines.
const maxScanWorkers = 8

// Options configures an Engine.
type Options struct {
	// Strategy selects FlatList or Catalog storage.
	Strategy Strategy

	// UseBitKey attaches a BitKey to every cutset and compares by key.
	UseBitKey bool

	// BoundedScan limits key scans to the high-water word.
	BoundedScan bool

	// ParallelRedundancy splits redundancy scans across goroutines.
	ParallelRedundancy bool

	// ParallelThreshold is the minimum collection size for a parallel scan.
	ParallelThreshold int

	// Workers caps the goroutines of one parallel scan. Zero means
	// min(NumCPU, 8).
	Workers int

	// Logger receives worker panics. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns serial flat-list options without bit keys.
func DefaultOptions() Options {
	return Options{
		Strategy:          StrategyFlatList,
		BoundedScan:       true,
		ParallelThreshold: DefaultParallelThreshold,
	}
}

// Engine owns the settings and counters shared by every group of one
// analysis.
//
// Description:
//
//	All cutsets and groups are created through an engine so that they agree
//	on strategy, key width and comparison accounting. The comparison counter
//	is the only mutable state and is updated atomically.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	opts        Options
	keys        *Keyspace
	workers     int
	logger      *slog.Logger
	comparisons atomic.Int64
}

// NewEngine creates an engine.
//
// Inputs:
//   - opts: Engine options.
//   - keys: Keyspace used when opts.UseBitKey is set. May be nil otherwise.
//
// Outputs:
//   - *Engine: The engine.
//   - error: ErrKeyspaceUnsized if bit keys are requested without a keyspace.
func NewEngine(opts Options, keys *Keyspace) (*Engine, error) {
	if opts.UseBitKey && keys == nil {
		return nil, ErrKeyspaceUnsized
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), maxScanWorkers)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !opts.UseBitKey {
		keys = nil
	}
	return &Engine{opts: opts, keys: keys, workers: workers, logger: logger}, nil
}

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// Keyspace returns the keyspace, or nil when bit keys are disabled.
func (e *Engine) Keyspace() *Keyspace { return e.keys }

// Comparisons returns the number of pairwise redundancy comparisons so far.
func (e *Engine) Comparisons() int64 { return e.comparisons.Load() }

func (e *Engine) countComparisons(n int) {
	if n == 0 {
		return
	}
	e.comparisons.Add(int64(n))
	if e.keys != nil {
		bitkeyComparisons.Add(float64(n))
		return
	}
	structuralComparisons.Add(float64(n))
}

// compare classifies stored against candidate using keys when both have them.
func (e *Engine) compare(stored, candidate *Cutset) ReductionResult {
	if stored.key != nil && candidate.key != nil {
		if e.opts.BoundedScan {
			return stored.key.CheckRedundancyBounded(candidate.key)
		}
		return stored.key.CheckRedundancy(candidate.key)
	}
	return stored.checkStructural(candidate)
}

// NewGroup returns an empty group of the engine's strategy.
func (e *Engine) NewGroup() Group {
	if e.opts.Strategy == StrategyCatalog {
		return e.newCatalog()
	}
	return e.newFlatList()
}

// Singleton returns a group holding the one-event cutset {ev}.
func (e *Engine) Singleton(ev *Event) Group {
	g := e.NewGroup()
	g.Add(e.NewCutset(ev), false)
	return g
}

// NewModuleEvent packs g behind a new module event.
//
// Outputs:
//   - *Event: The module event. Its bit comes from the keyspace when bit
//     keys are enabled.
//   - error: ErrKeyspaceExhausted when no module slot is left.
func (e *Engine) NewModuleEvent(id int, name string, g Group) (*Event, error) {
	bit := -1
	if e.keys != nil {
		b, err := e.keys.NextModuleBit()
		if err != nil {
			return nil, err
		}
		bit = b
	}
	moduleEventsTotal.Inc()
	return &Event{ID: id, Name: name, Kind: ModuleEvent, Bit: bit, module: g}, nil
}
