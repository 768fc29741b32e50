// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree holds the fault tree model and derives minimal cutsets from it.
//
// # Ownership Model
//
// A Model is an arena of nodes addressed by Handle. Gates refer to their
// children by handle, so a node shared by several parents is stored once.
// The model is built single-threaded and is read-only once handed to an
// Analyser.
//
// # Lifecycle
//
//  1. Build with NewModel, AddEvent, AddGate, SetChildren and AddTree, or
//     load one with the loader package.
//  2. Optionally Contract it.
//  3. Create an Analyser and call Analyse, CutsetCount or AnalyseAll.
package tree

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
)

// Kind is the node variant.
type Kind int

const (
	// KindBasic is a basic event leaf.
	KindBasic Kind = iota

	// KindNormal is a normal event leaf.
	KindNormal

	// KindAnd fails when all children fail.
	KindAnd

	// KindOr fails when any child fails.
	KindOr

	// KindPass forwards its single child.
	KindPass
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindNormal:
		return "normal"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindPass:
		return "pass"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a gate or leaf name from a model document onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return KindBasic, nil
	case "normal":
		return KindNormal, nil
	case "and":
		return KindAnd, nil
	case "or":
		return KindOr, nil
	case "pass", "null", "deviation":
		return KindPass, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidGate, s)
	}
}

// IsGate reports whether nodes of this kind have children.
func (k Kind) IsGate() bool { return k == KindAnd || k == KindOr || k == KindPass }

// Handle addresses a node in its model's arena.
type Handle int32

// Node is a gate or an event leaf.
type Node struct {
	ID          int
	Name        string
	ShortName   string
	Description string
	Kind        Kind

	// Children is set for gates only.
	Children []Handle

	// Event is set for leaves only.
	Event *cutset.Event
}

// Tree names one analysable root.
type Tree struct {
	ID          int
	Name        string
	Description string
	Root        Handle
}

// Model is the node arena plus the list of trees.
type Model struct {
	Name string

	nodes  []*Node
	byID   map[int]Handle
	trees  []Tree
	events int
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, byID: make(map[int]Handle)}
}

// AddEvent adds a basic or normal event and assigns its key bit.
func (m *Model) AddEvent(id int, kind cutset.EventKind, name string) (Handle, error) {
	if _, ok := m.byID[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateNode, id)
	}
	ev, err := cutset.NewEvent(id, kind, m.events*cutset.Spacing)
	if err != nil {
		return 0, err
	}
	ev.Name = name
	m.events++

	nodeKind := KindBasic
	if ev.Kind == cutset.NormalEvent {
		nodeKind = KindNormal
	}
	return m.add(&Node{ID: id, Name: name, Kind: nodeKind, Event: ev}), nil
}

// AddGate adds a gate. Children may be given now or later via SetChildren.
func (m *Model) AddGate(id int, kind Kind, name string, children ...Handle) (Handle, error) {
	if !kind.IsGate() {
		return 0, fmt.Errorf("%w: %s is not a gate kind", ErrInvalidGate, kind)
	}
	if _, ok := m.byID[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateNode, id)
	}
	h := m.add(&Node{ID: id, Name: name, Kind: kind})
	if err := m.SetChildren(h, children...); err != nil {
		return 0, err
	}
	return h, nil
}

func (m *Model) add(n *Node) Handle {
	h := Handle(len(m.nodes))
	m.nodes = append(m.nodes, n)
	m.byID[n.ID] = h
	return h
}

// SetChildren replaces the children of gate h.
func (m *Model) SetChildren(h Handle, children ...Handle) error {
	n, err := m.lookup(h)
	if err != nil {
		return err
	}
	if !n.Kind.IsGate() {
		return fmt.Errorf("%w: leaf %d cannot have children", ErrInvalidGate, n.ID)
	}
	for _, c := range children {
		if _, err := m.lookup(c); err != nil {
			return err
		}
	}
	n.Children = append([]Handle(nil), children...)
	return nil
}

// AddChild appends one child to gate h.
func (m *Model) AddChild(h, child Handle) error {
	n, err := m.lookup(h)
	if err != nil {
		return err
	}
	if _, err := m.lookup(child); err != nil {
		return err
	}
	if !n.Kind.IsGate() {
		return fmt.Errorf("%w: leaf %d cannot have children", ErrInvalidGate, n.ID)
	}
	n.Children = append(n.Children, child)
	return nil
}

// AddTree registers root as an analysable tree.
func (m *Model) AddTree(id int, name string, root Handle) error {
	if _, err := m.lookup(root); err != nil {
		return err
	}
	m.trees = append(m.trees, Tree{ID: id, Name: name, Root: root})
	return nil
}

// SetTreeDescription sets the description of the tree at index i.
func (m *Model) SetTreeDescription(i int, desc string) {
	if i >= 0 && i < len(m.trees) {
		m.trees[i].Description = desc
	}
}

func (m *Model) lookup(h Handle) (*Node, error) {
	if h < 0 || int(h) >= len(m.nodes) {
		return nil, fmt.Errorf("%w: handle %d", ErrUnknownNode, h)
	}
	return m.nodes[h], nil
}

// Node returns the node at h, or nil.
func (m *Model) Node(h Handle) *Node {
	n, err := m.lookup(h)
	if err != nil {
		return nil
	}
	return n
}

// Lookup resolves a node ID.
func (m *Model) Lookup(id int) (Handle, bool) {
	h, ok := m.byID[id]
	return h, ok
}

// Len returns the number of nodes.
func (m *Model) Len() int { return len(m.nodes) }

// EventCount returns the number of basic and normal events.
func (m *Model) EventCount() int { return m.events }

// GateCount returns the number of gates.
func (m *Model) GateCount() int { return len(m.nodes) - m.events }

// Trees returns the registered trees.
func (m *Model) Trees() []Tree {
	out := make([]Tree, len(m.trees))
	copy(out, m.trees)
	return out
}

// Roots returns the tree roots, or every gate without a parent when no tree
// is registered.
func (m *Model) Roots() []Handle {
	if len(m.trees) > 0 {
		roots := make([]Handle, len(m.trees))
		for i, t := range m.trees {
			roots[i] = t.Root
		}
		return roots
	}
	hasParent := make([]bool, len(m.nodes))
	for _, n := range m.nodes {
		for _, c := range n.Children {
			hasParent[c] = true
		}
	}
	var roots []Handle
	for h, n := range m.nodes {
		if n.Kind.IsGate() && !hasParent[h] {
			roots = append(roots, Handle(h))
		}
	}
	return roots
}

// Validate checks gate arity and acyclicity.
//
// Outputs:
//   - error: ErrInvalidGate or ErrCycle naming the first offending node.
func (m *Model) Validate() error {
	for _, n := range m.nodes {
		switch {
		case !n.Kind.IsGate() && len(n.Children) > 0:
			return fmt.Errorf("%w: leaf %d has children", ErrInvalidGate, n.ID)
		case n.Kind.IsGate() && len(n.Children) == 0:
			return fmt.Errorf("%w: gate %d has no children", ErrInvalidGate, n.ID)
		case n.Kind == KindPass && len(n.Children) != 1:
			return fmt.Errorf("%w: pass gate %d has %d children", ErrInvalidGate, n.ID, len(n.Children))
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, len(m.nodes))
	var visit func(h Handle) error
	visit = func(h Handle) error {
		switch color[h] {
		case grey:
			return fmt.Errorf("%w: through node %d", ErrCycle, m.nodes[h].ID)
		case black:
			return nil
		}
		color[h] = grey
		for _, c := range m.nodes[h].Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		color[h] = black
		return nil
	}
	for h := range m.nodes {
		if err := visit(Handle(h)); err != nil {
			return err
		}
	}
	return nil
}

// Describe sets the short name and description of node h, mirroring them
// onto the event of a leaf.
func (m *Model) Describe(h Handle, shortName, description string) error {
	n, err := m.lookup(h)
	if err != nil {
		return err
	}
	n.ShortName, n.Description = shortName, description
	if n.Event != nil {
		n.Event.ShortName, n.Event.Description = shortName, description
	}
	return nil
}
