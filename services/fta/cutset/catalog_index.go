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

import "slices"

// eventEntry holds every stored cutset containing one event, bucketed by
// order. orders is kept ascending.
type eventEntry struct {
	event   *Event
	buckets map[int]*orderBucket
	orders  []int
}

// orderBucket holds the cutsets of one order under one event.
type orderBucket struct {
	order int
	items []*Cutset
	pos   map[*Cutset]int
}

func newEventEntry(ev *Event) *eventEntry {
	return &eventEntry{event: ev, buckets: make(map[int]*orderBucket)}
}

func (e *eventEntry) empty() bool { return len(e.orders) == 0 }

func (e *eventEntry) file(c *Cutset) {
	b, ok := e.buckets[c.Order()]
	if !ok {
		b = &orderBucket{order: c.Order(), pos: make(map[*Cutset]int)}
		e.buckets[c.Order()] = b
		i, _ := slices.BinarySearch(e.orders, c.Order())
		e.orders = slices.Insert(e.orders, i, c.Order())
	}
	b.add(c)
}

func (e *eventEntry) unfile(c *Cutset) {
	b, ok := e.buckets[c.Order()]
	if !ok {
		return
	}
	b.remove(c)
	if len(b.items) > 0 {
		return
	}
	delete(e.buckets, c.Order())
	if i, found := slices.BinarySearch(e.orders, c.Order()); found {
		e.orders = slices.Delete(e.orders, i, i+1)
	}
}

// upTo yields the buckets with order <= limit in ascending order.
func (e *eventEntry) upTo(limit int, fn func(*orderBucket) bool) {
	for _, o := range e.orders {
		if o > limit {
			return
		}
		if !fn(e.buckets[o]) {
			return
		}
	}
}

// above yields the buckets with order > limit in ascending order.
func (e *eventEntry) above(limit int, fn func(*orderBucket)) {
	i, found := slices.BinarySearch(e.orders, limit)
	if found {
		i++
	}
	for _, o := range e.orders[i:] {
		fn(e.buckets[o])
	}
}

func (b *orderBucket) add(c *Cutset) {
	b.pos[c] = len(b.items)
	b.items = append(b.items, c)
}

func (b *orderBucket) remove(c *Cutset) {
	i, ok := b.pos[c]
	if !ok {
		return
	}
	last := len(b.items) - 1
	if i != last {
		moved := b.items[last]
		b.items[i] = moved
		b.pos[moved] = i
	}
	b.items[last] = nil
	b.items = b.items[:last]
	delete(b.pos, c)
}
