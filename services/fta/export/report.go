// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// TreeSummary is the report line of one analysed tree.
type TreeSummary struct {
	TreeID      int
	Name        string
	Cutsets     int
	Modules     int
	Comparisons int64
	Duration    time.Duration

	// ByOrder maps cutset order to count.
	ByOrder map[int]int
}

// Orders returns the orders present in ByOrder, ascending.
func (s TreeSummary) Orders() []int {
	orders := make([]int, 0, len(s.ByOrder))
	for o := range s.ByOrder {
		orders = append(orders, o)
	}
	slices.Sort(orders)
	return orders
}

// OrderString renders ByOrder as "1:3 2:5".
func (s TreeSummary) OrderString() string {
	parts := make([]string, 0, len(s.ByOrder))
	for _, o := range s.Orders() {
		parts = append(parts, fmt.Sprintf("%d:%d", o, s.ByOrder[o]))
	}
	return strings.Join(parts, " ")
}

// Summarize turns results into report lines.
func Summarize(results []*tree.Result) []TreeSummary {
	out := make([]TreeSummary, 0, len(results))
	for _, r := range results {
		out = append(out, TreeSummary{
			TreeID:      r.TreeID,
			Name:        r.TreeName,
			Cutsets:     r.Count(),
			Modules:     r.Modules,
			Comparisons: r.Comparisons,
			Duration:    r.Duration,
			ByOrder:     cutset.ByOrder(r.Cutsets),
		})
	}
	return out
}

// WriteReport writes a plain aligned table, one line per tree, followed by
// the totals.
func WriteReport(w io.Writer, rows []TreeSummary, total time.Duration, comparisons int64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TREE\tNAME\tCUTSETS\tMODULES\tTIME\tBY ORDER")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			r.TreeID, r.Name, r.Cutsets, r.Modules, r.Duration.Round(time.Microsecond), r.OrderString())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Total analysis time: %s\nCutset comparisons: %d\n",
		total.Round(time.Microsecond), comparisons)
	return err
}
