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
	"strings"

	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// DOTOptions controls DOT rendering.
type DOTOptions struct {
	// HighlightModules fills module gates.
	HighlightModules bool

	// ShowVisits appends first/last traversal stamps to labels.
	ShowVisits bool
}

// WriteDOT renders the subgraph under root in Graphviz DOT.
//
// Description:
//
//	Each reachable node is emitted once, so shared subtrees appear with
//	several incoming edges. Gates are boxes labelled with their logic;
//	events are ellipses; normal events are dashed.
//
// Inputs:
//   - w: Destination.
//   - m: The model.
//   - root: The subgraph root.
//   - opts: Rendering options.
//
// Outputs:
//   - error: Write errors, or tree.ErrUnknownNode for a bad root.
func WriteDOT(w io.Writer, m *tree.Model, root tree.Handle, opts DOTOptions) error {
	rn := m.Node(root)
	if rn == nil {
		return fmt.Errorf("%w: handle %d", tree.ErrUnknownNode, root)
	}
	z := tree.IdentifyModules(m, root)

	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", fmt.Sprintf("%s_%d", m.Name, rn.ID))
	sb.WriteString("  rankdir=TB;\n  node [fontname=\"Helvetica\"];\n")

	seen := make(map[tree.Handle]bool)
	var walk func(h tree.Handle)
	walk = func(h tree.Handle) {
		if seen[h] {
			return
		}
		seen[h] = true
		n := m.Node(h)
		fmt.Fprintf(&sb, "  n%d [%s];\n", n.ID, dotAttrs(n, z, h, opts))
		for _, c := range n.Children {
			fmt.Fprintf(&sb, "  n%d -> n%d;\n", n.ID, m.Node(c).ID)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func dotAttrs(n *tree.Node, z *tree.Modularization, h tree.Handle, opts DOTOptions) string {
	label := n.Name
	if label == "" {
		label = fmt.Sprintf("%d", n.ID)
	}
	if n.Kind.IsGate() {
		label = fmt.Sprintf("%s\n%s", strings.ToUpper(n.Kind.String()), label)
	}
	if opts.ShowVisits {
		if v, ok := z.Visit(h); ok {
			label = fmt.Sprintf("%s\n[%d,%d]", label, v.First, v.Last)
		}
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.Kind.IsGate():
		attrs = append(attrs, "shape=box")
		if opts.HighlightModules && z.IsModule(h) {
			attrs = append(attrs, "style=filled", "fillcolor=\"#cde8ff\"")
		}
	case n.Kind == tree.KindNormal:
		attrs = append(attrs, "shape=ellipse", "style=dashed")
	default:
		attrs = append(attrs, "shape=ellipse")
	}
	return strings.Join(attrs, ", ")
}
