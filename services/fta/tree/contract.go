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

import "slices"

// Contract returns a simplified copy of m with the same cutsets.
//
// Description:
//
//	Pass gates and single-child gates are replaced by their child. A child
//	gate with the same logic as its parent is flattened into the parent.
//	Duplicate children of one gate are dropped. Events keep their handles'
//	relative order and their key bits, and surviving gates keep their IDs.
//	Tree roots are contracted the same way, so a root may end up being a
//	different gate (or an event) than before.
//
// Inputs:
//   - m: A valid model. It is not modified.
//
// Outputs:
//   - *Model: The contracted model.
//   - error: Validation errors of m.
func Contract(m *Model) (*Model, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	out := NewModel(m.Name)
	out.events = m.events
	mapped := make(map[Handle]Handle, len(m.nodes))
	for h, n := range m.nodes {
		if !n.Kind.IsGate() {
			leaf := *n
			mapped[Handle(h)] = out.add(&leaf)
		}
	}

	c := &contractor{src: m, dst: out, mapped: mapped}
	for _, t := range m.trees {
		root := c.node(c.skip(t.Root))
		out.trees = append(out.trees, Tree{ID: t.ID, Name: t.Name, Description: t.Description, Root: root})
	}
	if len(m.trees) == 0 {
		for _, r := range m.Roots() {
			c.node(c.skip(r))
		}
	}
	return out, nil
}

type contractor struct {
	src    *Model
	dst    *Model
	mapped map[Handle]Handle
}

// skip follows single-child gates down to the first node that survives.
func (c *contractor) skip(h Handle) Handle {
	for {
		n := c.src.nodes[h]
		if !n.Kind.IsGate() || len(n.Children) != 1 {
			return h
		}
		h = n.Children[0]
	}
}

// node returns the contracted handle of the surviving node h.
func (c *contractor) node(h Handle) Handle {
	if nh, ok := c.mapped[h]; ok {
		return nh
	}
	n := c.src.nodes[h]
	var kids []Handle
	for _, child := range n.Children {
		kids = c.collect(kids, child, n.Kind)
	}
	gate := &Node{
		ID:          n.ID,
		Name:        n.Name,
		ShortName:   n.ShortName,
		Description: n.Description,
		Kind:        n.Kind,
		Children:    kids,
	}
	nh := c.dst.add(gate)
	c.mapped[h] = nh
	return nh
}

// collect appends what child contributes to a parent of the given kind.
func (c *contractor) collect(kids []Handle, child Handle, parent Kind) []Handle {
	child = c.skip(child)
	n := c.src.nodes[child]
	if n.Kind == parent && n.Kind != KindPass {
		for _, grand := range n.Children {
			kids = c.collect(kids, grand, parent)
		}
		return kids
	}
	nh := c.node(child)
	if slices.Contains(kids, nh) {
		return kids
	}
	return append(kids, nh)
}
