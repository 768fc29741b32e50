// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cutset provides cutsets, bit keys and the two storage strategies
// used to keep collections of cutsets minimal.
//
// # Ownership Model
//
// A cutset is built by one goroutine and is never mutated after it has been
// stored in a group. Groups share cutset pointers freely: Combine, Merge and
// Clone copy the member slice, never the cutsets.
//
// # Thread Safety
//
// Every group guards its members with its own mutex. Cutsets are not
// synchronised and must not be mutated once shared.
package cutset

import (
	"slices"
	"strconv"
	"strings"
)

// Cutset is a duplicate-free set of events.
type Cutset struct {
	events []*Event
	key    *BitKey
}

// NewCutset creates a cutset holding the given events. A key is attached when
// the engine uses bit keys.
func (e *Engine) NewCutset(events ...*Event) *Cutset {
	c := &Cutset{events: make([]*Event, 0, len(events))}
	if e.keys != nil {
		c.key = e.keys.NewKey()
	}
	c.AddEvents(events...)
	return c
}

// union returns a new cutset holding the events of a and b.
func (e *Engine) union(a, b *Cutset) *Cutset {
	events := make([]*Event, len(a.events), len(a.events)+len(b.events))
	copy(events, a.events)
	c := &Cutset{events: events}
	if a.key != nil {
		c.key = a.key.Clone()
	} else if e.keys != nil {
		c.key = e.keys.NewKey()
		for _, ev := range events {
			c.key.Set(ev.Bit)
		}
	}
	c.AddEvents(b.events...)
	return c
}

// Order returns the number of events.
func (c *Cutset) Order() int { return len(c.events) }

// Events returns the events in insertion order. The slice must not be
// modified.
func (c *Cutset) Events() []*Event { return c.events }

// Key returns the bit key, or nil in structural mode.
func (c *Cutset) Key() *BitKey { return c.key }

// AddEvent adds ev unless already present.
//
// Outputs:
//   - bool: True if the event was added.
func (c *Cutset) AddEvent(ev *Event) bool {
	if c.ContainsEvent(ev) {
		return false
	}
	c.events = append(c.events, ev)
	if c.key != nil {
		c.key.Set(ev.Bit)
	}
	return true
}

// AddEvents adds every event not already present.
func (c *Cutset) AddEvents(events ...*Event) {
	for _, ev := range events {
		c.AddEvent(ev)
	}
}

// ContainsEvent reports membership of ev.
func (c *Cutset) ContainsEvent(ev *Event) bool {
	if c.key != nil && ev.Bit >= 0 {
		return c.key.Has(ev.Bit)
	}
	return slices.Contains(c.events, ev)
}

// ContainsSet reports whether every event of other is in c.
func (c *Cutset) ContainsSet(other *Cutset) bool {
	if other.Order() > c.Order() {
		return false
	}
	if c.key != nil && other.key != nil {
		return other.key.CheckRedundancy(c.key) == Redundant
	}
	for _, ev := range other.events {
		if !slices.Contains(c.events, ev) {
			return false
		}
	}
	return true
}

// Equal reports whether c and other hold the same events.
func (c *Cutset) Equal(other *Cutset) bool {
	return c.Order() == other.Order() && c.ContainsSet(other)
}

// CheckRedundancy classifies c, taken as the stored cutset, against
// candidate. Keys are used when both cutsets carry one.
//
// Outputs:
//   - Redundant when c is a subset of candidate or equal to it.
//   - CausesRedundancy when candidate is a strict subset of c.
//   - NotRedundant otherwise.
func (c *Cutset) CheckRedundancy(candidate *Cutset) ReductionResult {
	if c.key != nil && candidate.key != nil {
		return c.key.CheckRedundancy(candidate.key)
	}
	return c.checkStructural(candidate)
}

func (c *Cutset) checkStructural(candidate *Cutset) ReductionResult {
	switch {
	case c.Order() > candidate.Order():
		if c.containsEvents(candidate) {
			return CausesRedundancy
		}
	case c.Order() == candidate.Order():
		if c.containsEvents(candidate) {
			return Redundant
		}
	default:
		if candidate.containsEvents(c) {
			return Redundant
		}
	}
	return NotRedundant
}

// containsEvents is ContainsSet without the key shortcut.
func (c *Cutset) containsEvents(other *Cutset) bool {
	for _, ev := range other.events {
		if !slices.Contains(c.events, ev) {
			return false
		}
	}
	return true
}

// ContainsModule reports whether any event is a module event.
func (c *Cutset) ContainsModule() bool {
	for _, ev := range c.events {
		if ev.IsModule() {
			return true
		}
	}
	return false
}

// ExpandModules returns the cutsets obtained by replacing each module event
// with the cutsets it packs. Basic and normal events contribute themselves.
// Nested modules remain packed in the result.
func (c *Cutset) ExpandModules(e *Engine) Group {
	out := e.NewGroup()
	for _, ev := range c.events {
		if ev.IsModule() && ev.module != nil {
			out.Combine(ev.module)
			continue
		}
		out.Combine(e.Singleton(ev))
	}
	return out
}

// IDs returns the sorted event identifiers.
func (c *Cutset) IDs() []int {
	ids := make([]int, len(c.events))
	for i, ev := range c.events {
		ids[i] = ev.ID
	}
	slices.Sort(ids)
	return ids
}

// String renders the cutset as {id, id, ...} in ascending id order.
func (c *Cutset) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range c.IDs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(id))
	}
	sb.WriteByte('}')
	return sb.String()
}
