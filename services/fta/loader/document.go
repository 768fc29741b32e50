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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var documentValidate = validator.New(validator.WithRequiredStructEnabled())

// Document is the native model format. Nodes are listed flat and refer to
// each other by ID, so gates may appear in any order.
//
// Example (YAML):
//
//	name: pump
//	events:
//	  - {id: 1, name: valve stuck}
//	  - {id: 2, name: seal leak, kind: normal}
//	gates:
//	  - {id: 10, kind: or, children: [1, 2]}
//	trees:
//	  - {id: 1, name: pump fails, root: 10}
type Document struct {
	Name   string     `yaml:"name" json:"name"`
	Events []EventDoc `yaml:"events" json:"events" validate:"dive"`
	Gates  []GateDoc  `yaml:"gates" json:"gates" validate:"dive"`
	Trees  []TreeDoc  `yaml:"trees" json:"trees" validate:"dive"`
}

// EventDoc declares a basic or normal event.
type EventDoc struct {
	ID          int    `yaml:"id" json:"id"`
	Kind        string `yaml:"kind,omitempty" json:"kind,omitempty" validate:"omitempty,oneof=basic normal"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	ShortName   string `yaml:"short_name,omitempty" json:"short_name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// GateDoc declares a gate and its children by ID.
type GateDoc struct {
	ID          int    `yaml:"id" json:"id"`
	Kind        string `yaml:"kind" json:"kind" validate:"required,oneof=and or pass"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Children    []int  `yaml:"children" json:"children" validate:"required,min=1"`
}

// TreeDoc names an analysable root.
type TreeDoc struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Root        int    `yaml:"root" json:"root"`
}

// DecodeYAML reads a YAML document.
func DecodeYAML(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode YAML: %w", ErrMalformedDocument, err)
	}
	return &doc, nil
}

// DecodeJSONC reads a JSON document that may contain comments and trailing
// commas.
func DecodeJSONC(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %w", ErrMalformedDocument, err)
	}
	return &doc, nil
}

// Validate checks field constraints. Cross references are checked by Build.
func (d *Document) Validate() error {
	if err := documentValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return nil
}

// Build validates the document and turns it into a model.
//
// Description:
//
//	Events are added first, in document order, which fixes their key bits.
//	Gates are then created without children so that children can be
//	resolved in a second pass regardless of declaration order.
//
// Outputs:
//   - *tree.Model: The validated model.
//   - error: ErrMalformedDocument, ErrUnresolvedReference, or a tree
//     construction or validation error.
func (d *Document) Build() (*tree.Model, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	m := tree.NewModel(d.Name)
	for _, e := range d.Events {
		kind, err := cutset.ParseEventKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %w", ErrMalformedDocument, e.ID, err)
		}
		h, err := m.AddEvent(e.ID, kind, e.Name)
		if err != nil {
			return nil, err
		}
		if err := m.Describe(h, e.ShortName, e.Description); err != nil {
			return nil, err
		}
	}

	gates := make([]tree.Handle, len(d.Gates))
	for i, g := range d.Gates {
		kind, err := tree.ParseKind(g.Kind)
		if err != nil {
			return nil, fmt.Errorf("gate %d: %w", g.ID, err)
		}
		h, err := m.AddGate(g.ID, kind, g.Name)
		if err != nil {
			return nil, err
		}
		if err := m.Describe(h, "", g.Description); err != nil {
			return nil, err
		}
		gates[i] = h
	}
	for i, g := range d.Gates {
		children := make([]tree.Handle, 0, len(g.Children))
		for _, id := range g.Children {
			c, ok := m.Lookup(id)
			if !ok {
				return nil, fmt.Errorf("%w: gate %d child %d", ErrUnresolvedReference, g.ID, id)
			}
			children = append(children, c)
		}
		if err := m.SetChildren(gates[i], children...); err != nil {
			return nil, err
		}
	}

	for i, t := range d.Trees {
		root, ok := m.Lookup(t.Root)
		if !ok {
			return nil, fmt.Errorf("%w: tree %d root %d", ErrUnresolvedReference, t.ID, t.Root)
		}
		if err := m.AddTree(t.ID, t.Name, root); err != nil {
			return nil, err
		}
		m.SetTreeDescription(i, t.Description)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromModel converts a model into a document. Nodes keep their arena order,
// so building the result assigns the same key bits.
func FromModel(m *tree.Model) *Document {
	doc := &Document{Name: m.Name}
	for h := range m.Len() {
		n := m.Node(tree.Handle(h))
		if !n.Kind.IsGate() {
			doc.Events = append(doc.Events, EventDoc{
				ID:          n.ID,
				Kind:        n.Event.Kind.String(),
				Name:        n.Name,
				ShortName:   n.ShortName,
				Description: n.Description,
			})
			continue
		}
		children := make([]int, len(n.Children))
		for i, c := range n.Children {
			children[i] = m.Node(c).ID
		}
		doc.Gates = append(doc.Gates, GateDoc{
			ID:          n.ID,
			Kind:        n.Kind.String(),
			Name:        n.Name,
			Description: n.Description,
			Children:    children,
		})
	}
	for _, t := range m.Trees() {
		doc.Trees = append(doc.Trees, TreeDoc{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Root:        m.Node(t.Root).ID,
		})
	}
	return doc
}

// WriteYAML encodes the document as YAML.
func (d *Document) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// WriteJSON encodes the document as indented JSON.
func (d *Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
