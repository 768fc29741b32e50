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
	"encoding/xml"
	"io"

	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// ModelXML is the structure report of a model: every tree with its gates,
// module flags and traversal stamps.
type ModelXML struct {
	XMLName xml.Name  `xml:"Model"`
	Name    string    `xml:"name,attr"`
	Trees   []TreeXML `xml:"FaultTree"`
}

// TreeXML is one tree of the structure report.
type TreeXML struct {
	ID          int     `xml:"ID,attr"`
	Name        string  `xml:"Name"`
	Description string  `xml:"Description"`
	Output      NodeXML `xml:"OutputDeviation"`
}

// NodeXML is a gate or event. Shared gates are repeated under every parent.
type NodeXML struct {
	XMLName    xml.Name
	ID         int          `xml:"ID,attr,omitempty"`
	FirstVisit int          `xml:"FirstVisit,attr,omitempty"`
	LastVisit  int          `xml:"LastVisit,attr,omitempty"`
	Name       string       `xml:"Name,omitempty"`
	Module     *bool        `xml:"Module,omitempty"`
	First      *int         `xml:"FirstVisit,omitempty"`
	Last       *int         `xml:"LastVisit,omitempty"`
	Children   *ChildrenXML `xml:"Children,omitempty"`
}

// ChildrenXML holds the inputs of a gate. Events carry none.
type ChildrenXML struct {
	Nodes []NodeXML `xml:",any"`
}

// NewModelXML builds the structure report. Module flags and stamps are taken
// from a fresh identification pass per tree.
func NewModelXML(m *tree.Model) ModelXML {
	out := ModelXML{Name: m.Name}
	for _, t := range m.Trees() {
		z := tree.IdentifyModules(m, t.Root)
		out.Trees = append(out.Trees, TreeXML{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Output: NodeXML{
				Name:     t.Name,
				Children: &ChildrenXML{Nodes: []NodeXML{nodeXML(m, z, t.Root)}},
			},
		})
	}
	return out
}

func nodeXML(m *tree.Model, z *tree.Modularization, h tree.Handle) NodeXML {
	n := m.Node(h)
	v, _ := z.Visit(h)
	switch n.Kind {
	case tree.KindBasic:
		return NodeXML{XMLName: xml.Name{Local: "Event"}, ID: n.ID}
	case tree.KindNormal:
		return NodeXML{
			XMLName:    xml.Name{Local: "NormalEvent"},
			ID:         n.ID,
			FirstVisit: v.First,
			LastVisit:  v.Last,
		}
	}

	local := "OutputDeviation"
	switch n.Kind {
	case tree.KindAnd:
		local = "And"
	case tree.KindOr:
		local = "Or"
	}
	module, first, last := z.IsModule(h), v.First, v.Last
	x := NodeXML{
		XMLName:  xml.Name{Local: local},
		ID:       n.ID,
		Name:     n.Name,
		Module:   &module,
		First:    &first,
		Last:     &last,
		Children: &ChildrenXML{
			Nodes: make([]NodeXML, 0, len(n.Children)),
		},
	}
	for _, c := range n.Children {
		x.Children.Nodes = append(x.Children.Nodes, nodeXML(m, z, c))
	}
	return x
}

// WriteModelXML writes the structure report of m.
func WriteModelXML(w io.Writer, m *tree.Model) error {
	return writeXML(w, NewModelXML(m))
}
