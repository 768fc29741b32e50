// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
)

// Cell states.
const (
	stateUnvisited int32 = iota
	stateGenerating
	stateCached
)

// attempt is one generation of a cell's group. Waiters hold the attempt
// they joined, so a failed attempt never leaks into a later one.
type attempt struct {
	done  chan struct{}
	group cutset.Group
	err   error
}

// cell computes a node's group at most once.
//
// Description:
//
//	The first caller moves the cell from unvisited to generating and runs
//	compute. Concurrent callers block until that attempt finishes and share
//	its result. A successful result is cached for the cell's lifetime. A
//	failed attempt (cancellation or worker panic) returns the cell to
//	unvisited so a later call can retry.
//
// Thread Safety: Safe for concurrent use.
type cell struct {
	state   atomic.Int32
	mu      sync.Mutex
	current *attempt
}

func (c *cell) get(ctx context.Context, compute func() (cutset.Group, error)) (cutset.Group, error) {
	if c.state.Load() == stateCached {
		return c.current.group, nil
	}

	c.mu.Lock()
	switch c.state.Load() {
	case stateCached:
		a := c.current
		c.mu.Unlock()
		return a.group, nil
	case stateGenerating:
		a := c.current
		c.mu.Unlock()
		select {
		case <-a.done:
			return a.group, a.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a := &attempt{done: make(chan struct{})}
	c.current = a
	c.state.Store(stateGenerating)
	c.mu.Unlock()

	a.group, a.err = compute()

	c.mu.Lock()
	if a.err != nil {
		c.state.Store(stateUnvisited)
	} else {
		c.state.Store(stateCached)
	}
	close(a.done)
	c.mu.Unlock()
	return a.group, a.err
}

// cached returns the group if the cell holds one.
func (c *cell) cached() (cutset.Group, bool) {
	if c.state.Load() != stateCached {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.group, true
}
