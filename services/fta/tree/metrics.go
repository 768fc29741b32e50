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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for analysis operations.
var (
	tracer = otel.Tracer("aleutian.fta.tree")
	meter  = otel.Meter("aleutian.fta.tree")
)

// Metrics for analysis operations.
var (
	analyseLatency    metric.Float64Histogram
	analyseTotal      metric.Int64Counter
	cutsetsFound      metric.Int64Histogram
	modulesIdentified metric.Int64Counter
	comparisonsTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analyseLatency, err = meter.Float64Histogram(
			"fta_analyse_duration_seconds",
			metric.WithDescription("Duration of minimal cutset analysis per root"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analyseTotal, err = meter.Int64Counter(
			"fta_analyse_total",
			metric.WithDescription("Total number of analysed roots"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cutsetsFound, err = meter.Int64Histogram(
			"fta_cutsets_found",
			metric.WithDescription("Number of minimal cutsets per analysed root"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		modulesIdentified, err = meter.Int64Counter(
			"fta_modules_identified_total",
			metric.WithDescription("Module gates identified by modularization"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		comparisonsTotal, err = meter.Int64Counter(
			"fta_redundancy_comparisons_total",
			metric.WithDescription("Pairwise redundancy comparisons per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalyseSpan creates a span for one root analysis.
func startAnalyseSpan(ctx context.Context, root *Node, strategy string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyser.Analyse",
		trace.WithAttributes(
			attribute.Int("fta.root_id", root.ID),
			attribute.String("fta.root_kind", root.Kind.String()),
			attribute.String("fta.strategy", strategy),
		),
	)
}

// recordAnalyseMetrics records metrics for one root analysis.
func recordAnalyseMetrics(ctx context.Context, res *Result, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
	)
	analyseLatency.Record(ctx, res.Duration.Seconds(), attrs)
	analyseTotal.Add(ctx, 1, attrs)
	if !success {
		return
	}
	cutsetsFound.Record(ctx, int64(res.Count()))
	modulesIdentified.Add(ctx, int64(res.Modules))
	comparisonsTotal.Add(ctx, res.Comparisons)
}
