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
	"sync"
)

// Catalog indexes cutsets by event and then by order.
//
// Description:
//
//	Every stored cutset is filed under each of its events. A candidate can
//	only be dominated by a member whose events all occur in the candidate,
//	so the dominating search looks at the candidate's own event entries and
//	considers a member only under its first event. A member dominated by
//	the candidate contains every candidate event, so the dominated search
//	looks only at the entry of the candidate's first event, above the
//	candidate's order.
//
//	members backs iteration and O(1) Len. Removal swaps the last member
//	into the gap, so iteration order is not insertion order.
//
// Performance:
//
//	| Operation         | Cost                                      |
//	|-------------------|-------------------------------------------|
//	| redundancy check  | members sharing an event with candidate   |
//	| file / unfile     | O(order) bucket updates                   |
//	| Len               | O(1)                                      |
//
// Thread Safety: Safe for concurrent use.
type Catalog struct {
	eng     *Engine
	mu      sync.Mutex
	entries map[*Event]*eventEntry
	members []*Cutset
	pos     map[*Cutset]int
}

func (e *Engine) newCatalog() *Catalog {
	return &Catalog{
		eng:     e,
		entries: make(map[*Event]*eventEntry),
		pos:     make(map[*Cutset]int),
	}
}

// Strategy implements Group.
func (k *Catalog) Strategy() Strategy { return StrategyCatalog }

// Len implements Group.
func (k *Catalog) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.members)
}

// Add implements Group.
func (k *Catalog) Add(c *Cutset, checkRedundancy bool) bool {
	if c == nil || c.Order() == 0 {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.addLocked(c, checkRedundancy)
}

func (k *Catalog) addLocked(c *Cutset, checkRedundancy bool) bool {
	if checkRedundancy {
		redundant, dominated := k.redundancy(c)
		if redundant {
			return false
		}
		for _, d := range dominated {
			k.removeLocked(d)
		}
	}
	k.fileLocked(c)
	return true
}

// redundancy reports whether c is dominated and which members c dominates.
func (k *Catalog) redundancy(c *Cutset) (bool, []*Cutset) {
	order := c.Order()
	for _, ev := range c.events {
		entry, ok := k.entries[ev]
		if !ok {
			continue
		}
		first := func(s *Cutset) bool { return s.events[0] == ev }
		redundant := false
		entry.upTo(order, func(b *orderBucket) bool {
			redundant, _ = k.eng.scan(b.items, c, first)
			return !redundant
		})
		if redundant {
			return true, nil
		}
	}

	entry, ok := k.entries[c.events[0]]
	if !ok {
		return false, nil
	}
	var dominated []*Cutset
	entry.above(order, func(b *orderBucket) {
		_, d := k.eng.scan(b.items, c, nil)
		dominated = append(dominated, d...)
	})
	return false, dominated
}

func (k *Catalog) fileLocked(c *Cutset) {
	if _, ok := k.pos[c]; ok {
		return
	}
	k.pos[c] = len(k.members)
	k.members = append(k.members, c)
	for _, ev := range c.events {
		entry, ok := k.entries[ev]
		if !ok {
			entry = newEventEntry(ev)
			k.entries[ev] = entry
		}
		entry.file(c)
	}
}

// removeLocked deregisters c from every event entry it was filed under.
func (k *Catalog) removeLocked(c *Cutset) {
	i, ok := k.pos[c]
	if !ok {
		return
	}
	last := len(k.members) - 1
	if i != last {
		moved := k.members[last]
		k.members[i] = moved
		k.pos[moved] = i
	}
	k.members[last] = nil
	k.members = k.members[:last]
	delete(k.pos, c)
	for _, ev := range c.events {
		entry, ok := k.entries[ev]
		if !ok {
			continue
		}
		entry.unfile(c)
		if entry.empty() {
			delete(k.entries, ev)
		}
	}
}

func (k *Catalog) resetLocked() {
	k.entries = make(map[*Event]*eventEntry)
	k.members = nil
	k.pos = make(map[*Cutset]int)
}

// AddAll implements Group.
func (k *Catalog) AddAll(other Group, checkRedundancy bool) {
	for _, c := range other.Cutsets() {
		k.Add(c, checkRedundancy)
	}
}

// Combine implements Group.
func (k *Catalog) Combine(other Group) {
	right := other.Cutsets()
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.members) == 0 {
		for _, c := range right {
			k.fileLocked(c)
		}
		return
	}
	next := k.eng.newCatalog()
	k.eng.cross(next, k.members, right)
	k.entries, k.members, k.pos = next.entries, next.members, next.pos
}

// Merge implements Group.
func (k *Catalog) Merge(other Group) {
	k.AddAll(other, true)
}

// ContainsSet implements Group.
func (k *Catalog) ContainsSet(query *Cutset) bool {
	if query.Order() == 0 {
		return k.Len() > 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.entries[query.events[0]]
	if !ok {
		return false
	}
	for _, o := range entry.orders {
		if o < query.Order() {
			continue
		}
		for _, c := range entry.buckets[o].items {
			if c.ContainsSet(query) {
				return true
			}
		}
	}
	return false
}

// Contains implements Group.
func (k *Catalog) Contains(query *Cutset) bool {
	if query.Order() == 0 {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.entries[query.events[0]]
	if !ok {
		return false
	}
	b, ok := entry.buckets[query.Order()]
	if !ok {
		return false
	}
	for _, c := range b.items {
		if c.ContainsSet(query) {
			return true
		}
	}
	return false
}

// HasModules implements Group.
func (k *Catalog) HasModules() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for ev := range k.entries {
		if ev.IsModule() {
			return true
		}
	}
	return false
}

// ExpandModules implements Group.
func (k *Catalog) ExpandModules() { k.eng.expandGroup(k) }

func (k *Catalog) takeModules() []*Cutset {
	k.mu.Lock()
	defer k.mu.Unlock()
	var taken []*Cutset
	for _, c := range k.members {
		if c.ContainsModule() {
			taken = append(taken, c)
		}
	}
	if len(taken) == 0 {
		return nil
	}
	kept := make([]*Cutset, 0, len(k.members)-len(taken))
	for _, c := range k.members {
		if !c.ContainsModule() {
			kept = append(kept, c)
		}
	}
	k.resetLocked()
	for _, c := range kept {
		k.fileLocked(c)
	}
	return taken
}

// All implements Group.
func (k *Catalog) All() iter.Seq[*Cutset] {
	return func(yield func(*Cutset) bool) {
		seqOf(k.Cutsets())(yield)
	}
}

// Cutsets implements Group.
func (k *Catalog) Cutsets() []*Cutset {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]*Cutset, len(k.members))
	copy(out, k.members)
	return out
}

// Clone implements Group.
func (k *Catalog) Clone() Group {
	out := k.eng.newCatalog()
	for _, c := range k.Cutsets() {
		out.fileLocked(c)
	}
	return out
}
