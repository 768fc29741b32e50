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

// FlatList stores cutsets in insertion order and checks redundancy with a
// linear scan over all members.
type FlatList struct {
	eng   *Engine
	mu    sync.Mutex
	items []*Cutset
}

func (e *Engine) newFlatList() *FlatList {
	return &FlatList{eng: e}
}

// Strategy implements Group.
func (l *FlatList) Strategy() Strategy { return StrategyFlatList }

// Len implements Group.
func (l *FlatList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Add implements Group.
func (l *FlatList) Add(c *Cutset, checkRedundancy bool) bool {
	if c == nil || c.Order() == 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(c, checkRedundancy)
}

func (l *FlatList) addLocked(c *Cutset, checkRedundancy bool) bool {
	if checkRedundancy {
		redundant, dominated := l.eng.scan(l.items, c, nil)
		if redundant {
			return false
		}
		if len(dominated) > 0 {
			l.items = without(l.items, dominated)
		}
	}
	l.items = append(l.items, c)
	return true
}

// without returns items minus drop, keeping order. items is reused.
func without(items, drop []*Cutset) []*Cutset {
	gone := make(map[*Cutset]struct{}, len(drop))
	for _, d := range drop {
		gone[d] = struct{}{}
	}
	kept := items[:0]
	for _, c := range items {
		if _, ok := gone[c]; !ok {
			kept = append(kept, c)
		}
	}
	clear(items[len(kept):])
	return kept
}

// AddAll implements Group.
func (l *FlatList) AddAll(other Group, checkRedundancy bool) {
	for _, c := range other.Cutsets() {
		l.Add(c, checkRedundancy)
	}
}

// Combine implements Group.
func (l *FlatList) Combine(other Group) {
	right := other.Cutsets()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		l.items = right
		return
	}
	next := l.eng.newFlatList()
	l.eng.cross(next, l.items, right)
	l.items = next.items
}

// Merge implements Group.
func (l *FlatList) Merge(other Group) {
	l.AddAll(other, true)
}

// ContainsSet implements Group.
func (l *FlatList) ContainsSet(query *Cutset) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.items {
		if c.ContainsSet(query) {
			return true
		}
	}
	return false
}

// Contains implements Group.
func (l *FlatList) Contains(query *Cutset) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.items {
		if c.Equal(query) {
			return true
		}
	}
	return false
}

// HasModules implements Group.
func (l *FlatList) HasModules() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.items {
		if c.ContainsModule() {
			return true
		}
	}
	return false
}

// ExpandModules implements Group.
func (l *FlatList) ExpandModules() { l.eng.expandGroup(l) }

func (l *FlatList) takeModules() []*Cutset {
	l.mu.Lock()
	defer l.mu.Unlock()
	var taken []*Cutset
	kept := l.items[:0]
	for _, c := range l.items {
		if c.ContainsModule() {
			taken = append(taken, c)
			continue
		}
		kept = append(kept, c)
	}
	clear(l.items[len(kept):])
	l.items = kept
	return taken
}

// All implements Group.
func (l *FlatList) All() iter.Seq[*Cutset] {
	return func(yield func(*Cutset) bool) {
		seqOf(l.Cutsets())(yield)
	}
}

// Cutsets implements Group.
func (l *FlatList) Cutsets() []*Cutset {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Cutset, len(l.items))
	copy(out, l.items)
	return out
}

// Clone implements Group.
func (l *FlatList) Clone() Group {
	return &FlatList{eng: l.eng, items: l.Cutsets()}
}
