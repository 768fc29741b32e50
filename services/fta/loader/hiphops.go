// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// HiP-HOPS results structure. Only the parts that describe events and tree
// structure are decoded.
type hiphopsResults struct {
	XMLName    xml.Name          `xml:"HiP-HOPS_Results"`
	Model      string            `xml:"model,attr"`
	FaultTrees hiphopsFaultTrees `xml:"FaultTrees"`
}

type hiphopsFaultTrees struct {
	FMEA  []hiphopsFMEA      `xml:"FMEA"`
	Trees []hiphopsFaultTree `xml:"FaultTree"`
}

type hiphopsFMEA struct {
	Components []hiphopsComponent `xml:",any"`
}

type hiphopsComponent struct {
	Events struct {
		Items []hiphopsEvent `xml:",any"`
	} `xml:"Events"`
}

type hiphopsEvent struct {
	XMLName     xml.Name
	ID          string `xml:"ID,attr"`
	Name        string `xml:"Name"`
	ShortName   string `xml:"ShortName"`
	Description string `xml:"Description"`
}

type hiphopsFaultTree struct {
	ID          string       `xml:"ID,attr"`
	Name        string       `xml:"Name"`
	Description string       `xml:"Description"`
	Output      *hiphopsNode `xml:"OutputDeviation"`
}

type hiphopsNode struct {
	XMLName  xml.Name
	ID       string           `xml:"ID,attr"`
	Name     string           `xml:"Name"`
	Children *hiphopsChildren `xml:"Children"`
}

type hiphopsChildren struct {
	Nodes []hiphopsNode `xml:",any"`
}

// ReadHiPHOPS decodes a HiP-HOPS FaultTrees.xml document.
//
// Description:
//
//	Events are declared under FMEA components. Each FaultTree element's
//	OutputDeviation holds exactly one child, the tree's root. And and Or
//	elements become gates; InputDeviation, OutputDeviation and PCCF become
//	pass gates; Event elements refer to a declared event by ID. A gate ID
//	seen a second time refers to the gate already built, so shared
//	subtrees are stored once. Unknown element names are skipped.
//
// Inputs:
//   - r: The XML document.
//
// Outputs:
//   - *tree.Model: The validated model, one tree per FaultTree element.
//   - error: ErrMissingAttribute, ErrUnresolvedReference,
//     ErrMalformedDocument, or a tree validation error.
func ReadHiPHOPS(r io.Reader) (*tree.Model, error) {
	var doc hiphopsResults
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode HiP-HOPS XML: %w", ErrMalformedDocument, err)
	}

	m := tree.NewModel(doc.Model)
	for _, fmea := range doc.FaultTrees.FMEA {
		for _, comp := range fmea.Components {
			for _, ev := range comp.Events.Items {
				if err := addHiPHOPSEvent(m, ev); err != nil {
					return nil, err
				}
			}
		}
	}

	p := &hiphopsParser{m: m}
	for i, ft := range doc.FaultTrees.Trees {
		id, err := parseID(ft.ID, "FaultTree")
		if err != nil {
			return nil, err
		}
		if ft.Output == nil || ft.Output.Children == nil || len(ft.Output.Children.Nodes) == 0 {
			return nil, fmt.Errorf("%w: fault tree %d has no output deviation children", ErrMalformedDocument, id)
		}
		if n := len(ft.Output.Children.Nodes); n > 1 {
			return nil, fmt.Errorf("%w: fault tree %d has %d roots", ErrMalformedDocument, id, n)
		}
		root, ok, err := p.node(ft.Output.Children.Nodes[0])
		if err != nil {
			return nil, fmt.Errorf("fault tree %d: %w", id, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: fault tree %d root is not a gate or event", ErrMalformedDocument, id)
		}
		if err := m.AddTree(id, strings.TrimSpace(ft.Name), root); err != nil {
			return nil, err
		}
		m.SetTreeDescription(i, strings.TrimSpace(ft.Description))
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func addHiPHOPSEvent(m *tree.Model, ev hiphopsEvent) error {
	id, err := parseID(ev.ID, ev.XMLName.Local)
	if err != nil {
		return err
	}
	kind := cutset.BasicEvent
	if ev.XMLName.Local == "NormalEvent" {
		kind = cutset.NormalEvent
	}
	h, err := m.AddEvent(id, kind, strings.TrimSpace(ev.Name))
	if err != nil {
		return err
	}
	return m.Describe(h, strings.TrimSpace(ev.ShortName), strings.TrimSpace(ev.Description))
}

// hiphopsParser builds tree nodes from nested XML elements.
type hiphopsParser struct {
	m *tree.Model
}

// node returns the handle for x. ok is false for skipped element names.
func (p *hiphopsParser) node(x hiphopsNode) (tree.Handle, bool, error) {
	var kind tree.Kind
	switch x.XMLName.Local {
	case "Event":
		id, err := parseID(x.ID, "Event")
		if err != nil {
			return 0, false, err
		}
		h, ok := p.m.Lookup(id)
		if !ok {
			return 0, false, fmt.Errorf("%w: event %d", ErrUnresolvedReference, id)
		}
		if p.m.Node(h).Kind.IsGate() {
			return 0, false, fmt.Errorf("%w: %d is a gate, referenced as an event", ErrMalformedDocument, id)
		}
		return h, true, nil
	case "And":
		kind = tree.KindAnd
	case "Or":
		kind = tree.KindOr
	case "InputDeviation", "OutputDeviation", "PCCF":
		kind = tree.KindPass
	default:
		return 0, false, nil
	}

	id, err := parseID(x.ID, x.XMLName.Local)
	if err != nil {
		return 0, false, err
	}
	if h, ok := p.m.Lookup(id); ok {
		if existing := p.m.Node(h).Kind; existing != kind {
			return 0, false, fmt.Errorf("%w: node %d is %s, referenced as %s", ErrMalformedDocument, id, existing, kind)
		}
		return h, true, nil
	}

	h, err := p.m.AddGate(id, kind, strings.TrimSpace(x.Name))
	if err != nil {
		return 0, false, err
	}
	var children []tree.Handle
	if x.Children != nil {
		for _, cx := range x.Children.Nodes {
			c, ok, err := p.node(cx)
			if err != nil {
				return 0, false, err
			}
			if ok {
				children = append(children, c)
			}
		}
	}
	if err := p.m.SetChildren(h, children...); err != nil {
		return 0, false, err
	}
	return h, true, nil
}

func parseID(raw, element string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s has no ID", ErrMissingAttribute, element)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ID %q is not an integer", ErrMissingAttribute, element, raw)
	}
	return id, nil
}
