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
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// scan compares every item accepted by filter against candidate.
//
// Description:
//
//	Stops at the first item that makes the candidate redundant. Items the
//	candidate dominates are collected and returned for the caller to remove;
//	the scan itself never mutates items. Collections of at least
//	ParallelThreshold items are split across goroutines when the engine
//	allows parallel redundancy checks.
//
// Outputs:
//   - bool: True if candidate is redundant. The dominated list is nil then.
//   - []*Cutset: Items strictly containing candidate.
//
// Thread Safety: items must not be mutated during the call.
func (e *Engine) scan(items []*Cutset, candidate *Cutset, filter func(*Cutset) bool) (bool, []*Cutset) {
	if e.opts.ParallelRedundancy && e.workers > 1 && len(items) >= e.opts.ParallelThreshold {
		return e.scanParallel(items, candidate, filter)
	}
	return e.scanSerial(items, candidate, filter)
}

func (e *Engine) scanSerial(items []*Cutset, candidate *Cutset, filter func(*Cutset) bool) (bool, []*Cutset) {
	var dominated []*Cutset
	n := 0
	for _, s := range items {
		if filter != nil && !filter(s) {
			continue
		}
		n++
		switch e.compare(s, candidate) {
		case Redundant:
			e.countComparisons(n)
			scanRedundant.Inc()
			return true, nil
		case CausesRedundancy:
			dominated = append(dominated, s)
		}
	}
	e.countComparisons(n)
	if len(dominated) > 0 {
		scanDominates.Inc()
	} else {
		scanClean.Inc()
	}
	return false, dominated
}

// scanParallel splits items into contiguous ranges, one goroutine each.
//
// Description:
//
//	Each worker keeps its own dominated list. The shared cancel flag is set
//	only when a worker finds the candidate redundant; finding a dominated
//	item never cancels, so every dominated item is reported. Results are
//	merged after all workers have returned.
//
//	A panicking worker is recovered and logged, and the whole scan is then
//	repeated serially so that no range goes unchecked.
func (e *Engine) scanParallel(items []*Cutset, candidate *Cutset, filter func(*Cutset) bool) (bool, []*Cutset) {
	workers := min(e.workers, len(items))
	chunk := (len(items) + workers - 1) / workers

	type localResult struct {
		dominated   []*Cutset
		comparisons int
		redundant   bool
	}
	locals := make([]localResult, workers)

	var (
		cancel   atomic.Bool
		panicked atomic.Bool
		wg       sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(items))
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(workerID int, part []*Cutset) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					e.logger.Error("panic in redundancy scan worker",
						slog.Int("worker_id", workerID),
						slog.Any("panic", r),
						slog.String("stack", string(buf[:n])),
					)
					panicked.Store(true)
				}
			}()

			local := &locals[workerID]
			for _, s := range part {
				if cancel.Load() {
					return
				}
				if filter != nil && !filter(s) {
					continue
				}
				local.comparisons++
				switch e.compare(s, candidate) {
				case Redundant:
					local.redundant = true
					cancel.Store(true)
					return
				case CausesRedundancy:
					local.dominated = append(local.dominated, s)
				}
			}
		}(w, items[lo:hi])
	}
	wg.Wait()
	parallelScansTotal.Inc()

	if panicked.Load() {
		return e.scanSerial(items, candidate, filter)
	}

	total := 0
	redundant := false
	var dominated []*Cutset
	for _, local := range locals {
		total += local.comparisons
		if local.redundant {
			redundant = true
		}
		dominated = append(dominated, local.dominated...)
	}
	e.countComparisons(total)
	if redundant {
		scanRedundant.Inc()
		return true, nil
	}
	if len(dominated) > 0 {
		scanDominates.Inc()
	} else {
		scanClean.Inc()
	}
	return false, dominated
}
