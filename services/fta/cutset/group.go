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
	"iter"
	"slices"
)

// Group is a collection of cutsets kept free of redundant members.
//
// Description:
//
//	Two implementations exist, FlatList and Catalog. They accept the same
//	operations and always hold the same members for the same sequence of
//	calls; only the cost of the redundancy check differs.
//
// Thread Safety: All methods are safe for concurrent use.
type Group interface {
	// Strategy reports the storage strategy.
	Strategy() Strategy

	// Len returns the number of members.
	Len() int

	// Add stores c. With checkRedundancy set, c is dropped if a member is a
	// subset of it, and members that are strict supersets of c are removed.
	// Returns true if c was stored. Empty cutsets are never stored.
	Add(c *Cutset, checkRedundancy bool) bool

	// AddAll adds every member of other.
	AddAll(other Group, checkRedundancy bool)

	// Combine replaces the members with the reduced pairwise unions of the
	// current members and other's members (AND). An empty receiver takes
	// other's members as they are.
	Combine(other Group)

	// Merge adds other's members with redundancy checking (OR).
	Merge(other Group)

	// ContainsSet reports whether some member holds every event of query.
	ContainsSet(query *Cutset) bool

	// Contains reports whether some member equals query.
	Contains(query *Cutset) bool

	// HasModules reports whether any member holds a module event.
	HasModules() bool

	// ExpandModules replaces members holding module events with their
	// expansions until no module event is left.
	ExpandModules()

	// All yields a snapshot of the members. Each call starts over.
	All() iter.Seq[*Cutset]

	// Cutsets returns a snapshot of the members.
	Cutsets() []*Cutset

	// Clone returns a group with the same members and strategy.
	Clone() Group

	// takeModules removes and returns the members holding module events.
	takeModules() []*Cutset
}

// cross adds the pairwise unions of left and right to dst with redundancy
// checking.
func (e *Engine) cross(dst Group, left, right []*Cutset) {
	for _, a := range left {
		for _, b := range right {
			dst.Add(e.union(a, b), true)
		}
	}
}

// expandGroup drives ExpandModules for both strategies. Each pass removes
// the module-bearing members and re-adds their expansions, which may still
// carry nested module events.
func (e *Engine) expandGroup(g Group) {
	for {
		pending := g.takeModules()
		if len(pending) == 0 {
			return
		}
		for _, c := range pending {
			for _, x := range c.ExpandModules(e).Cutsets() {
				g.Add(x, true)
			}
		}
	}
}

// seqOf yields the given snapshot.
func seqOf(items []*Cutset) iter.Seq[*Cutset] {
	return func(yield func(*Cutset) bool) {
		for _, c := range items {
			if !yield(c) {
				return
			}
		}
	}
}

// Count returns the number of members of g.
func Count(g Group) int {
	if g == nil {
		return 0
	}
	return g.Len()
}

// Sorted returns the members of g ordered by order and then by event ids.
// Useful for stable reports and comparisons across strategies.
func Sorted(g Group) []*Cutset {
	items := g.Cutsets()
	slices.SortFunc(items, compareCutsets)
	return items
}

func compareCutsets(a, b *Cutset) int {
	if a.Order() != b.Order() {
		return a.Order() - b.Order()
	}
	return slices.Compare(a.IDs(), b.IDs())
}

// ByOrder returns the member count per order.
func ByOrder(g Group) map[int]int {
	out := make(map[int]int)
	for c := range g.All() {
		out[c.Order()]++
	}
	return out
}
