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

import "math"

// Visit holds the traversal stamps of one node for one root.
//
// First is the counter value when the node was first entered and Exit the
// value when that first traversal left it. Last is the value at the most
// recent encounter, so a node reached again from elsewhere has Last > Exit.
// MinDesc and MaxDesc aggregate First and Last over all descendants.
type Visit struct {
	First   int
	Exit    int
	Last    int
	MinDesc int
	MaxDesc int
	Module  bool
}

// Modularization is the result of one module identification pass.
type Modularization struct {
	Root   Handle
	visits []Visit
	seen   []bool
}

// IsModule reports whether gate h is independent of the rest of the tree.
func (z *Modularization) IsModule(h Handle) bool {
	return int(h) < len(z.visits) && z.visits[h].Module
}

// Visit returns the stamps of h and whether h was reached from the root.
func (z *Modularization) Visit(h Handle) (Visit, bool) {
	if int(h) >= len(z.visits) || !z.seen[h] {
		return Visit{}, false
	}
	return z.visits[h], true
}

// Modules returns the module gates in handle order.
func (z *Modularization) Modules() []Handle {
	var out []Handle
	for h, v := range z.visits {
		if v.Module {
			out = append(out, Handle(h))
		}
	}
	return out
}

// Count returns the number of module gates.
func (z *Modularization) Count() int {
	n := 0
	for _, v := range z.visits {
		if v.Module {
			n++
		}
	}
	return n
}

// IdentifyModules finds the gates under root whose subgraph is reached only
// through the gate itself.
//
// Description:
//
//	A depth-first pass increments one counter on every entry and exit. A
//	node's first encounter stamps First, descends, then stamps Exit. Later
//	encounters neither renumber nor descend; they only move Last forward.
//	A second, bottom-up pass folds First and Last of all descendants into
//	MinDesc and MaxDesc. A gate is a module when
//
//	  MinDesc > First  and  MaxDesc < Exit
//
//	that is, no descendant was seen before the gate was entered and none was
//	seen again after the gate's first traversal ended. Stamps live in a
//	fresh table, so every call starts from a clean state.
//
// Performance: O(V + E) for the nodes reachable from root.
//
// Thread Safety: Safe for concurrent use on a read-only model.
func IdentifyModules(m *Model, root Handle) *Modularization {
	z := &Modularization{
		Root:   root,
		visits: make([]Visit, len(m.nodes)),
		seen:   make([]bool, len(m.nodes)),
	}
	if _, err := m.lookup(root); err != nil {
		return z
	}

	counter := 0
	var stamp func(h Handle)
	stamp = func(h Handle) {
		counter++
		v := &z.visits[h]
		if z.seen[h] {
			v.Last = counter
			return
		}
		z.seen[h] = true
		v.First = counter
		n := m.nodes[h]
		if n.Kind.IsGate() {
			for _, c := range n.Children {
				stamp(c)
			}
			counter++
		}
		v.Exit = counter
		v.Last = counter
	}
	stamp(root)

	done := make([]bool, len(m.nodes))
	var aggregate func(h Handle)
	aggregate = func(h Handle) {
		if done[h] {
			return
		}
		done[h] = true
		v := &z.visits[h]
		v.MinDesc, v.MaxDesc = math.MaxInt, 0
		n := m.nodes[h]
		for _, c := range n.Children {
			aggregate(c)
			cv := z.visits[c]
			v.MinDesc = min(v.MinDesc, cv.First, cv.MinDesc)
			v.MaxDesc = max(v.MaxDesc, cv.Last, cv.MaxDesc)
		}
		v.Module = n.Kind.IsGate() && v.MinDesc > v.First && v.MaxDesc < v.Exit
	}
	aggregate(root)
	return z
}
