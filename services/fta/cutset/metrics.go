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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// comparisonsTotal counts pairwise redundancy comparisons by mode
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fta_cutset_comparisons_total",
		Help: "Pairwise cutset redundancy comparisons by comparison mode",
	}, []string{"mode"})

	// scanOutcomes counts redundancy scans by outcome
	scanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fta_cutset_scans_total",
		Help: "Redundancy scans by outcome",
	}, []string{"outcome"})

	// parallelScansTotal counts scans split across goroutines
	parallelScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fta_cutset_parallel_scans_total",
		Help: "Redundancy scans executed in parallel ranges",
	})

	// moduleEventsTotal counts packed module events
	moduleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fta_cutset_module_events_total",
		Help: "Module events created by packing independent subtrees",
	})
)

// Resolved label children, looked up once.
var (
	bitkeyComparisons     = comparisonsTotal.WithLabelValues("bitkey")
	structuralComparisons = comparisonsTotal.WithLabelValues("structural")

	scanRedundant = scanOutcomes.WithLabelValues("redundant")
	scanDominates = scanOutcomes.WithLabelValues("dominates")
	scanClean     = scanOutcomes.WithLabelValues("clean")
)
