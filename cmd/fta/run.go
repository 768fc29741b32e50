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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianFTA/pkg/telemetry"
	"github.com/AleutianAI/AleutianFTA/services/fta/export"
	"github.com/AleutianAI/AleutianFTA/services/fta/loader"
	"github.com/AleutianAI/AleutianFTA/services/fta/store"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
	"github.com/AleutianAI/AleutianFTA/services/fta/validate"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "aleutian.fta.cli"

var (
	errValidationFailed = errors.New("validation failed")
	errUnknownTree      = errors.New("unknown tree")
	errNoCache          = errors.New("no result cache configured (set --cache-dir or store.dir)")
	errOutputFormat     = errors.New("output must end in .yaml, .yml or .json")
)

// analysis is the outcome of one model run.
type analysis struct {
	results     []*tree.Result
	total       time.Duration
	comparisons int64
	cached      int
}

// loadModel reads the model and contracts it when asked.
func (s *session) loadModel(path string, contract bool) (*tree.Model, error) {
	m, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("model loaded",
		slog.String("path", path),
		slog.String("model", m.Name),
		slog.Int("trees", len(m.Trees())),
		slog.Int("events", m.EventCount()),
		slog.Int("gates", m.GateCount()),
	)
	if !contract {
		return m, nil
	}
	c, err := tree.Contract(m)
	if err != nil {
		return nil, fmt.Errorf("contract model: %w", err)
	}
	s.logger.Debug("model contracted", slog.Int("gates_before", m.GateCount()), slog.Int("gates_after", c.GateCount()))
	return c, nil
}

// analyse computes every tree of m in model order, serving trees from the
// result cache when it holds them.
func (s *session) analyse(ctx context.Context, m *tree.Model) (_ *analysis, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "fta.analyse",
		trace.WithAttributes(
			attribute.String("fta.model", m.Name),
			attribute.Int("fta.trees", len(m.Trees())),
		),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanOK(span)
		}
		span.End()
	}()

	a, err := tree.New(m, s.cfg.Analysis.EngineOptions(s.logger), s.cfg.Analysis.TreeOptions(s.logger))
	if err != nil {
		return nil, err
	}

	var fp store.Fingerprint
	if s.store != nil {
		fp = store.FingerprintModel(m)
	}

	out := &analysis{}
	start := time.Now()
	for _, t := range m.Trees() {
		res := s.lookup(ctx, fp, a, t.ID)
		if res != nil {
			out.cached++
		} else {
			if res, err = a.AnalyseTree(ctx, t); err != nil {
				return nil, fmt.Errorf("tree %d: %w", t.ID, err)
			}
			s.remember(ctx, fp, res)
		}
		out.comparisons += res.Comparisons
		out.results = append(out.results, res)
	}
	out.total = time.Since(start)

	span.SetAttributes(
		attribute.Int("fta.cached", out.cached),
		attribute.Int64("fta.comparisons", out.comparisons),
	)
	s.logger.Info("analysis complete",
		slog.Int("trees", len(out.results)),
		slog.Int("cached", out.cached),
		slog.Duration("duration", out.total),
		slog.Int64("comparisons", out.comparisons),
		slog.String("trace_id", telemetry.TraceID(ctx)),
	)
	return out, nil
}

// lookup returns the cached result of a tree, or nil.
func (s *session) lookup(ctx context.Context, fp store.Fingerprint, a *tree.Analyser, treeID int) *tree.Result {
	if s.store == nil {
		return nil
	}
	rec, err := s.store.Get(ctx, fp, treeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("cache read failed", slog.Int("tree_id", treeID), slog.String("error", err.Error()))
		}
		return nil
	}
	res, err := rec.Restore(a)
	if err != nil {
		s.logger.Warn("cached result discarded", slog.Int("tree_id", treeID), slog.String("error", err.Error()))
		return nil
	}
	s.logger.Debug("cache hit", slog.Int("tree_id", treeID), slog.String("run_id", rec.RunID))
	return res
}

func (s *session) remember(ctx context.Context, fp store.Fingerprint, res *tree.Result) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, fp, store.NewRecord(fp, res)); err != nil {
		s.logger.Warn("cache write failed", slog.Int("tree_id", res.TreeID), slog.String("error", err.Error()))
	}
}

// withSession runs fn inside a session and joins the close error.
func withSession(cmd *cobra.Command, g *globalFlags, a *analysisFlags, fn func(*session) error) (err error) {
	s, err := openSession(cmd, g, a)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func runAnalyse(cmd *cobra.Command, g *globalFlags, a *analysisFlags, m *modelFlags, cutsetDir string) error {
	return withSession(cmd, g, a, func(s *session) error {
		model, err := s.loadModel(m.input, s.cfg.Analysis.Contract)
		if err != nil {
			return err
		}
		out, err := s.analyse(cmd.Context(), model)
		if err != nil {
			return err
		}

		s.printer.Title(model.Name)
		if err := s.printer.Trees(export.Summarize(out.results), out.total, out.comparisons); err != nil {
			return err
		}

		if m.output != "" {
			if err := writeFile(m.output, func(w io.Writer) error {
				return export.WriteCutSets(w, model.Name, out.results)
			}); err != nil {
				return err
			}
			s.logger.Info("cutsets written", slog.String("path", m.output))
		}
		if cutsetDir != "" {
			if err := writeCutsetDir(cutsetDir, model.Name, out.results); err != nil {
				return err
			}
			s.logger.Info("per-tree cutsets written", slog.String("dir", cutsetDir), slog.Int("files", len(out.results)))
		}
		return nil
	})
}

// writeCutsetDir writes one CutSets(<id>).xml per result.
func writeCutsetDir(dir, model string, results []*tree.Result) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create cutset directory: %w", err)
	}
	for _, res := range results {
		if err := writeFile(validate.ReferencePath(dir, res.TreeID), func(w io.Writer) error {
			return export.WriteCutSets(w, model, []*tree.Result{res})
		}); err != nil {
			return err
		}
	}
	return nil
}

func runValidate(cmd *cobra.Command, g *globalFlags, a *analysisFlags, m *modelFlags, ref string) error {
	return withSession(cmd, g, a, func(s *session) error {
		model, err := s.loadModel(m.input, s.cfg.Analysis.Contract)
		if err != nil {
			return err
		}
		out, err := s.analyse(cmd.Context(), model)
		if err != nil {
			return err
		}
		if m.output != "" {
			if err := writeFile(m.output, func(w io.Writer) error {
				return export.WriteCutSets(w, model.Name, out.results)
			}); err != nil {
				return err
			}
		}

		reports, err := validate.Dir(ref, out.results, s.logger)
		if err != nil {
			return err
		}
		if failed := s.printer.Validation(reports); failed > 0 {
			return fmt.Errorf("%w: %d of %d trees differ", errValidationFailed, failed, len(reports))
		}
		return nil
	})
}

func runModules(cmd *cobra.Command, g *globalFlags, m *modelFlags, contract bool) error {
	return withSession(cmd, g, nil, func(s *session) error {
		model, err := s.loadModel(m.input, contract)
		if err != nil {
			return err
		}
		return writeOutput(cmd, m.output, func(w io.Writer) error {
			return export.WriteModelXML(w, model)
		})
	})
}

func runDot(cmd *cobra.Command, g *globalFlags, m *modelFlags, treeID int, contract bool, opts dotFlags) error {
	return withSession(cmd, g, nil, func(s *session) error {
		model, err := s.loadModel(m.input, contract)
		if err != nil {
			return err
		}
		t, err := pickTree(model, treeID)
		if err != nil {
			return err
		}
		return writeOutput(cmd, m.output, func(w io.Writer) error {
			return export.WriteDOT(w, model, t.Root, export.DOTOptions{
				HighlightModules: opts.modules,
				ShowVisits:       opts.visits,
			})
		})
	})
}

// pickTree returns the tree with the given ID, or the first tree for 0.
func pickTree(m *tree.Model, id int) (tree.Tree, error) {
	trees := m.Trees()
	if len(trees) == 0 {
		return tree.Tree{}, fmt.Errorf("%w: model has no trees", errUnknownTree)
	}
	if id == 0 {
		return trees[0], nil
	}
	for _, t := range trees {
		if t.ID == id {
			return t, nil
		}
	}
	return tree.Tree{}, fmt.Errorf("%w: %d", errUnknownTree, id)
}

func runConvert(cmd *cobra.Command, g *globalFlags, m *modelFlags) error {
	return withSession(cmd, g, nil, func(s *session) error {
		var encode func(*loader.Document, io.Writer) error
		switch strings.ToLower(filepath.Ext(m.output)) {
		case ".yaml", ".yml":
			encode = (*loader.Document).WriteYAML
		case ".json":
			encode = (*loader.Document).WriteJSON
		default:
			return fmt.Errorf("%w: %s", errOutputFormat, m.output)
		}

		model, err := s.loadModel(m.input, false)
		if err != nil {
			return err
		}
		doc := loader.FromModel(model)
		if err := writeFile(m.output, func(w io.Writer) error { return encode(doc, w) }); err != nil {
			return err
		}
		s.printer.Success(fmt.Sprintf("wrote %s", m.output))
		return nil
	})
}

func runCacheClear(cmd *cobra.Command, g *globalFlags, m *modelFlags, contract bool) error {
	return withSession(cmd, g, nil, func(s *session) error {
		if s.store == nil {
			return errNoCache
		}
		model, err := s.loadModel(m.input, contract)
		if err != nil {
			return err
		}
		n, err := s.store.Delete(cmd.Context(), store.FingerprintModel(model))
		if err != nil {
			return err
		}
		s.printer.Success(fmt.Sprintf("removed %d cached results", n))
		return nil
	})
}

// writeOutput writes to path, or to the command's stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	return writeFile(path, fn)
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
