// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

// maxBranchWorkers caps the extra goroutines of gate fan-out.
const maxBranchWorkers = 8

// Options configures gate generation.
type Options struct {
	// Modularize packs independent subtrees into module events.
	Modularize bool

	// ParallelBranching computes the children of a gate concurrently.
	ParallelBranching bool

	// Workers bounds the extra goroutines used for fan-out. Zero means
	// min(NumCPU, 8). When every slot is busy a child is computed inline.
	Workers int

	// Logger receives analysis logs. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns serial generation with modularization.
func DefaultOptions() Options {
	return Options{Modularize: true}
}

// Analyser derives minimal cutsets for the roots of one model.
//
// Description:
//
//	Each node's group is computed at most once per Analyser and shared by
//	every parent and every later analysis. Module flags are computed per
//	analysed root, so roots may be analysed concurrently. Gates packed as
//	modules during one root's analysis stay packed in the cache; every
//	result is expanded before it is returned.
//
// Thread Safety: Safe for concurrent use. The model must not be modified
// after New.
type Analyser struct {
	model  *Model
	eng    *cutset.Engine
	opts   Options
	logger *slog.Logger
	cells  []cell
	sem    *semaphore.Weighted
}

// New prepares an analyser.
//
// Description:
//
//	Validates the model, then sizes the keyspace. When bit keys and
//	modularization are both on, module identification runs once over every
//	root to reserve one key slot per gate that can become a module.
//
// Inputs:
//   - model: The model. Must not be nil.
//   - engineOpts: Cutset storage and redundancy options.
//   - opts: Generation options.
//
// Outputs:
//   - *Analyser: The analyser.
//   - error: Model validation errors, or cutset.ErrKeyspaceUnsized.
func New(model *Model, engineOpts cutset.Options, opts Options) (*Analyser, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("validate model: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if engineOpts.Logger == nil {
		engineOpts.Logger = logger
	}

	var keys *cutset.Keyspace
	if engineOpts.UseBitKey {
		reserved := 0
		if opts.Modularize {
			reserved = countModuleGates(model)
		}
		keys = cutset.NewKeyspace(model.EventCount(), reserved)
	}
	eng, err := cutset.NewEngine(engineOpts, keys)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), maxBranchWorkers)
	}

	logger.Debug("analyser ready",
		slog.String("model", model.Name),
		slog.Int("nodes", model.Len()),
		slog.Int("events", model.EventCount()),
		slog.String("strategy", engineOpts.Strategy.String()),
		slog.Bool("bit_key", engineOpts.UseBitKey),
		slog.Bool("modularize", opts.Modularize),
		slog.Bool("parallel_branching", opts.ParallelBranching),
	)

	return &Analyser{
		model:  model,
		eng:    eng,
		opts:   opts,
		logger: logger,
		cells:  make([]cell, model.Len()),
		sem:    semaphore.NewWeighted(int64(workers)),
	}, nil
}

// countModuleGates counts the gates flagged as modules under any root.
func countModuleGates(m *Model) int {
	flagged := make(map[Handle]struct{})
	for _, root := range m.Roots() {
		for _, h := range IdentifyModules(m, root).Modules() {
			flagged[h] = struct{}{}
		}
	}
	return len(flagged)
}

// Model returns the analysed model.
func (a *Analyser) Model() *Model { return a.model }

// Engine returns the cutset engine shared by all analyses.
func (a *Analyser) Engine() *cutset.Engine { return a.eng }

// Result is the outcome of analysing one root.
type Result struct {
	RunID    string
	Root     Handle
	RootID   int
	TreeID   int
	TreeName string

	// Cutsets holds the minimal cutsets. No member carries a module event.
	// The group is a copy owned by the caller.
	Cutsets cutset.Group

	// Modules is the number of module gates identified under the root.
	Modules int

	// Comparisons is the engine's comparison count accrued during the call.
	// Concurrent analyses on the same Analyser share the counter.
	Comparisons int64

	Duration time.Duration
}

// Count returns the number of minimal cutsets.
func (r *Result) Count() int { return cutset.Count(r.Cutsets) }

// Analyse computes the minimal cutsets of root.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - root: Any node of the model.
//
// Outputs:
//   - *Result: Minimal cutsets with every module expanded.
//   - error: ErrUnknownNode, ctx.Err(), ErrWorkerPanic, or
//     cutset.ErrKeyspaceExhausted.
func (a *Analyser) Analyse(ctx context.Context, root Handle) (*Result, error) {
	n, err := a.model.lookup(root)
	if err != nil {
		return nil, err
	}

	ctx, span := startAnalyseSpan(ctx, n, a.eng.Options().Strategy.String())
	defer span.End()

	start := time.Now()
	before := a.eng.Comparisons()
	res := &Result{RunID: uuid.NewString(), Root: root, RootID: n.ID}

	r := &run{a: a, root: root}
	if a.opts.Modularize {
		_, modSpan := tracer.Start(ctx, "tree.IdentifyModules")
		z := IdentifyModules(a.model, root)
		modSpan.SetAttributes(attribute.Int("fta.modules", z.Count()))
		modSpan.End()
		r.modules = z
		res.Modules = z.Count()
	}

	g, err := r.cutsets(ctx, root)
	if err != nil {
		res.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordAnalyseMetrics(ctx, res, false)
		return nil, fmt.Errorf("analyse node %d: %w", n.ID, err)
	}
	g = g.Clone()
	if g.HasModules() {
		g.ExpandModules()
	}

	res.Cutsets = g
	res.Comparisons = a.eng.Comparisons() - before
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("fta.cutsets", res.Count()),
		attribute.Int("fta.modules", res.Modules),
		attribute.Int64("fta.comparisons", res.Comparisons),
	)
	span.SetStatus(codes.Ok, "")
	recordAnalyseMetrics(ctx, res, true)

	a.logger.Info("analysis complete",
		slog.String("run_id", res.RunID),
		slog.Int("root_id", n.ID),
		slog.Int("cutsets", res.Count()),
		slog.Int("modules", res.Modules),
		slog.Int64("comparisons", res.Comparisons),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// AnalyseTree analyses a registered tree and labels the result with it.
func (a *Analyser) AnalyseTree(ctx context.Context, t Tree) (*Result, error) {
	res, err := a.Analyse(ctx, t.Root)
	if err != nil {
		return nil, fmt.Errorf("tree %d: %w", t.ID, err)
	}
	res.TreeID, res.TreeName = t.ID, t.Name
	return res, nil
}

// AnalyseAll analyses every registered tree in order.
func (a *Analyser) AnalyseAll(ctx context.Context) ([]*Result, error) {
	trees := a.model.Trees()
	results := make([]*Result, 0, len(trees))
	for _, t := range trees {
		res, err := a.AnalyseTree(ctx, t)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// CutsetCount returns the number of minimal cutsets of root.
func (a *Analyser) CutsetCount(ctx context.Context, root Handle) (int, error) {
	res, err := a.Analyse(ctx, root)
	if err != nil {
		return 0, err
	}
	return res.Count(), nil
}

// Cached returns the group cached for h, if it has been computed. The group
// may contain module events.
func (a *Analyser) Cached(h Handle) (cutset.Group, bool) {
	if h < 0 || int(h) >= len(a.cells) {
		return nil, false
	}
	return a.cells[h].cached()
}
