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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/export"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// defaultDebounce is how long the watcher waits for more writes before
// re-running the analysis.
const defaultDebounce = 200 * time.Millisecond

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		m        modelFlags
		a        analysisFlags
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyse a model every time its file changes",
		Long: `Analyses the model, then watches the file and analyses it again after
every change until interrupted. Trees whose structure did not change are
served from the result cache when one is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, g, &a, &m, debounce)
		},
	}
	cmd.Flags().StringVarP(&m.input, "input", "i", "", "Model file (.xml, .yaml, .yml, .json, .jsonc)")
	_ = cmd.MarkFlagRequired("input")
	addAnalysisFlags(cmd, &a)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "Quiet period after a change before re-analysing")
	return cmd
}

func runWatch(cmd *cobra.Command, g *globalFlags, a *analysisFlags, m *modelFlags, debounce time.Duration) error {
	return withSession(cmd, g, a, func(s *session) error {
		mw, err := newModelWatcher(m.input, debounce, s.logger)
		if err != nil {
			return err
		}

		analyse := func() {
			if err := s.analyseAndPrint(cmd.Context(), m.input); err != nil {
				s.printer.Error(err.Error())
			}
		}
		analyse()
		s.logger.Info("watching model", slog.String("path", mw.path))
		return mw.run(cmd.Context(), analyse)
	})
}

// analyseAndPrint loads, analyses and reports one model.
func (s *session) analyseAndPrint(ctx context.Context, path string) error {
	model, err := s.loadModel(path, s.cfg.Analysis.Contract)
	if err != nil {
		return err
	}
	out, err := s.analyse(ctx, model)
	if err != nil {
		return err
	}
	s.printer.Title(model.Name)
	return s.printer.Trees(export.Summarize(out.results), out.total, out.comparisons)
}

// modelWatcher reports debounced changes of one file.
//
// The parent directory is watched rather than the file, so editors that
// save by writing a new file and renaming it over the old one are seen.
type modelWatcher struct {
	path     string
	debounce time.Duration
	w        *fsnotify.Watcher
	logger   *slog.Logger
}

func newModelWatcher(path string, debounce time.Duration, logger *slog.Logger) (*modelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &modelWatcher{path: abs, debounce: debounce, w: w, logger: logger}, nil
}

// run calls onChange once per burst of writes to the file and returns when
// ctx is done. onChange runs on the calling goroutine.
func (mw *modelWatcher) run(ctx context.Context, onChange func()) error {
	defer mw.w.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-mw.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != mw.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			mw.logger.Debug("model changed", slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(mw.debounce)
			} else {
				timer.Reset(mw.debounce)
			}
			fire = timer.C

		case err, ok := <-mw.w.Errors:
			if !ok {
				return nil
			}
			mw.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			onChange()
		}
	}
}
