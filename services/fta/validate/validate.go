// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate compares analysis results with reference cutset files.
//
// A reference directory holds one CutSets(<tree id>).xml per tree, in the
// layout written by export.WriteCutSets. Either section of a reference may
// be absent; a missing section is reported as skipped, not as a failure.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/export"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// ErrNoReference is returned when a reference file has no tree section.
var ErrNoReference = errors.New("reference has no fault tree")

// OrderMismatch is one summary line that disagrees.
type OrderMismatch struct {
	Order int
	Got   int
	Want  int
}

// Report is the outcome of validating one tree.
type Report struct {
	TreeID int

	// CountChecked is false when the reference has no summary.
	CountChecked bool
	Orders       []OrderMismatch

	// SetsChecked is false when the reference lists no cutsets.
	SetsChecked bool

	// Missing holds reference cutsets absent from the result.
	Missing [][]int

	// Extra holds result cutsets absent from the reference. Only filled
	// when the reference lists cutsets.
	Extra [][]int
}

// Valid reports whether every checked section agrees.
func (r *Report) Valid() bool {
	return len(r.Orders) == 0 && len(r.Missing) == 0 && len(r.Extra) == 0
}

// String summarises the report on one line.
func (r *Report) String() string {
	count, sets := "skipped", "skipped"
	if r.CountChecked {
		count = "ok"
		if len(r.Orders) > 0 {
			count = fmt.Sprintf("%d orders differ", len(r.Orders))
		}
	}
	if r.SetsChecked {
		sets = "ok"
		if len(r.Missing)+len(r.Extra) > 0 {
			sets = fmt.Sprintf("%d missing, %d extra", len(r.Missing), len(r.Extra))
		}
	}
	return fmt.Sprintf("tree %d: count %s, cutsets %s", r.TreeID, count, sets)
}

// Compare checks one result against one reference tree.
//
// Description:
//
//	The summary check counts result cutsets by their number of basic
//	events and compares each listed order; result cutsets of an order
//	above the highest listed one are a mismatch. The cutset check compares
//	event ID sets in both directions.
func Compare(res *tree.Result, ref export.TreeCutSets) *Report {
	rep := &Report{TreeID: res.TreeID}
	got := export.NewTreeCutSets(res)

	if len(ref.Summary) > 0 {
		rep.CountChecked = true
		counts := make(map[int]int)
		for _, oc := range got.Summary {
			counts[oc.Order] = oc.Count
		}
		maxOrder := 0
		for _, want := range ref.Summary {
			maxOrder = max(maxOrder, want.Order)
			if counts[want.Order] != want.Count {
				rep.Orders = append(rep.Orders, OrderMismatch{Order: want.Order, Got: counts[want.Order], Want: want.Count})
			}
		}
		for _, oc := range got.Summary {
			if oc.Order > maxOrder {
				rep.Orders = append(rep.Orders, OrderMismatch{Order: oc.Order, Got: oc.Count})
			}
		}
	}

	if len(ref.All) > 0 {
		rep.SetsChecked = true
		want := keyedSets(ref.All)
		have := make(map[string][]int)
		for _, c := range cutset.Sorted(res.Cutsets) {
			have[setKey(c.IDs())] = c.IDs()
		}
		rep.Missing = difference(want, have)
		rep.Extra = difference(have, want)
	}
	return rep
}

// ReferencePath returns dir/CutSets(<id>).xml.
func ReferencePath(dir string, treeID int) string {
	return filepath.Join(dir, "CutSets("+strconv.Itoa(treeID)+").xml")
}

// CompareFile validates one result against its reference file in dir.
func CompareFile(dir string, res *tree.Result) (*Report, error) {
	path := ReferencePath(dir, res.TreeID)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := export.ReadCutSets(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoReference)
	}
	return Compare(res, doc.Trees[0]), nil
}

// Dir validates every result against dir and logs one line per tree.
func Dir(dir string, results []*tree.Result, logger *slog.Logger) ([]*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reports := make([]*Report, 0, len(results))
	for _, res := range results {
		rep, err := CompareFile(dir, res)
		if err != nil {
			return reports, err
		}
		level := slog.LevelInfo
		if !rep.Valid() {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "validated tree",
			slog.Int("tree_id", rep.TreeID),
			slog.Bool("valid", rep.Valid()),
			slog.Int("order_mismatches", len(rep.Orders)),
			slog.Int("missing", len(rep.Missing)),
			slog.Int("extra", len(rep.Extra)),
		)
		reports = append(reports, rep)
	}
	return reports, nil
}

func keyedSets(groups []export.OrderGroup) map[string][]int {
	out := make(map[string][]int)
	for _, g := range groups {
		for _, c := range g.CutSets {
			ids := c.IDs()
			out[setKey(ids)] = ids
		}
	}
	return out
}

func setKey(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// difference returns the sets of a missing from b, shortest first.
func difference(a, b map[string][]int) [][]int {
	var out [][]int
	for k, ids := range a {
		if _, ok := b[k]; !ok {
			out = append(out, ids)
		}
	}
	slices.SortFunc(out, func(x, y []int) int {
		if len(x) != len(y) {
			return len(x) - len(y)
		}
		return slices.Compare(x, y)
	})
	return out
}
