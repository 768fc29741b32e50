// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes analysis results and model structure.
//
// Cutset files follow the HiP-HOPS CutSets layout so reference results can be
// read back with ReadCutSets and compared by the validate package.
package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// CutSetsFile is the root of a CutSets document.
type CutSetsFile struct {
	XMLName xml.Name      `xml:"HiP-HOPS_Results"`
	Model   string        `xml:"model,attr,omitempty"`
	Trees   []TreeCutSets `xml:"FaultTrees>FaultTree"`
}

// TreeCutSets holds the cutsets of one fault tree.
type TreeCutSets struct {
	ID      int          `xml:"ID,attr"`
	Name    string       `xml:"Name"`
	Summary []OrderCount `xml:"CutSetsSummary>CutSets"`
	All     []OrderGroup `xml:"AllCutSets>CutSets"`
}

// OrderCount is the number of cutsets with a given number of basic events.
type OrderCount struct {
	Order int `xml:"order,attr"`
	Count int `xml:",chardata"`
}

// OrderGroup lists the cutsets of one order.
type OrderGroup struct {
	Order   int         `xml:"order,attr"`
	CutSets []CutSetXML `xml:"CutSet"`
}

// CutSetXML is one cutset.
type CutSetXML struct {
	Events []EventRef `xml:"Events>Event"`
}

// EventRef names an event of a cutset.
type EventRef struct {
	ID   int    `xml:"ID,attr"`
	Name string `xml:"Name,omitempty"`
}

// IDs returns the event IDs of the cutset in ascending order.
func (c CutSetXML) IDs() []int {
	ids := make([]int, len(c.Events))
	for i, e := range c.Events {
		ids[i] = e.ID
	}
	slices.Sort(ids)
	return ids
}

// NewTreeCutSets converts one analysis result.
//
// Description:
//
//	AllCutSets groups cutsets by their full order. The summary counts
//	basic events only, so a cutset made of one basic and one normal event
//	is reported as order 1 there. Cutsets without basic events are left out
//	of the summary.
func NewTreeCutSets(res *tree.Result) TreeCutSets {
	out := TreeCutSets{ID: res.TreeID, Name: res.TreeName}
	summary := make(map[int]int)
	groups := make(map[int]*OrderGroup)
	var orders []int

	for _, c := range cutset.Sorted(res.Cutsets) {
		basic := 0
		set := CutSetXML{Events: make([]EventRef, 0, c.Order())}
		for _, ev := range c.Events() {
			if ev.Kind == cutset.BasicEvent {
				basic++
			}
			set.Events = append(set.Events, EventRef{ID: ev.ID, Name: ev.Name})
		}
		slices.SortFunc(set.Events, func(a, b EventRef) int { return a.ID - b.ID })
		if basic > 0 {
			summary[basic]++
		}
		g, ok := groups[c.Order()]
		if !ok {
			g = &OrderGroup{Order: c.Order()}
			groups[c.Order()] = g
			orders = append(orders, c.Order())
		}
		g.CutSets = append(g.CutSets, set)
	}

	for _, o := range orders {
		out.All = append(out.All, *groups[o])
	}
	summaryOrders := make([]int, 0, len(summary))
	for o := range summary {
		summaryOrders = append(summaryOrders, o)
	}
	slices.Sort(summaryOrders)
	for _, o := range summaryOrders {
		out.Summary = append(out.Summary, OrderCount{Order: o, Count: summary[o]})
	}
	return out
}

// WriteCutSets writes the results of several trees as one document.
func WriteCutSets(w io.Writer, model string, results []*tree.Result) error {
	doc := CutSetsFile{Model: model}
	for _, res := range results {
		doc.Trees = append(doc.Trees, NewTreeCutSets(res))
	}
	return writeXML(w, doc)
}

// ReadCutSets decodes a CutSets document.
func ReadCutSets(r io.Reader) (*CutSetsFile, error) {
	var doc CutSetsFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cutsets XML: %w", err)
	}
	return &doc, nil
}

func writeXML(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
