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
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reachable returns the nodes reachable from h, h included.
func reachable(m *Model, h Handle) map[Handle]bool {
	out := make(map[Handle]bool)
	var walk func(Handle)
	walk = func(x Handle) {
		if out[x] {
			return
		}
		out[x] = true
		for _, c := range m.nodes[x].Children {
			walk(c)
		}
	}
	walk(h)
	return out
}

// independent reports whether every descendant of g is only referenced by
// nodes inside g's subgraph, considering the part of the model under root.
func independent(m *Model, root, g Handle) bool {
	scope := reachable(m, root)
	sub := reachable(m, g)
	for p := range scope {
		if sub[p] {
			continue
		}
		for _, c := range m.nodes[p].Children {
			if c != g && sub[c] {
				return false
			}
		}
	}
	return true
}

func TestIdentifyModules_Simple(t *testing.T) {
	b := newBuilder(t)
	e1, e2, e3 := b.event(1), b.event(2), b.event(3)
	shared := b.gate(10, KindOr, e1, e2)
	private := b.gate(11, KindAnd, e2, e3)
	lone := b.gate(12, KindOr, b.event(4), b.event(5))
	root := b.gate(13, KindAnd, shared, private, lone)

	z := IdentifyModules(b.m, root)
	assert.True(t, z.IsModule(root))
	assert.True(t, z.IsModule(lone))
	assert.False(t, z.IsModule(shared))
	assert.False(t, z.IsModule(private))
	assert.False(t, z.IsModule(e1), "events are never modules")
	assert.Equal(t, []Handle{lone, root}, z.Modules())
	assert.Equal(t, 2, z.Count())

	v, ok := z.Visit(root)
	require.True(t, ok)
	assert.Equal(t, 1, v.First)
	assert.Greater(t, v.Exit, v.MaxDesc)
}

func TestIdentifyModules_LaterReference(t *testing.T) {
	// g10 is traversed first and looks independent until g11 reaches e2
	// again after g10 has exited.
	b := newBuilder(t)
	e1, e2, e3 := b.event(1), b.event(2), b.event(3)
	first := b.gate(10, KindOr, e1, e2)
	later := b.gate(11, KindAnd, e2, e3)
	root := b.gate(12, KindOr, first, later)

	z := IdentifyModules(b.m, root)
	assert.False(t, z.IsModule(first))
	assert.False(t, z.IsModule(later))
	assert.True(t, z.IsModule(root))

	ve2, _ := z.Visit(e2)
	vfirst, _ := z.Visit(first)
	assert.Greater(t, ve2.Last, vfirst.Exit)
}

func TestIdentifyModules_SharedGateInsideModule(t *testing.T) {
	t.Run("private leaves", func(t *testing.T) {
		// g10 has two parents, but e1 and e2 are only reached through it.
		b := newBuilder(t)
		inner := b.gate(10, KindOr, b.event(1), b.event(2))
		left := b.gate(11, KindAnd, inner, b.event(3))
		mod := b.gate(12, KindOr, inner, left)
		root := b.gate(13, KindAnd, mod, b.event(4))

		z := IdentifyModules(b.m, root)
		assert.True(t, z.IsModule(mod))
		assert.True(t, z.IsModule(inner), "a gate with several parents is a module when its leaves are private")
		assert.True(t, independent(b.m, root, inner))
		assert.Equal(t, independent(b.m, root, left), z.IsModule(left))
	})

	t.Run("shared leaf", func(t *testing.T) {
		// g11 reaches e2 without passing through g10.
		b := newBuilder(t)
		e2 := b.event(2)
		inner := b.gate(10, KindOr, b.event(1), e2)
		left := b.gate(11, KindAnd, inner, e2)
		mod := b.gate(12, KindOr, inner, left)
		root := b.gate(13, KindAnd, mod, b.event(4))

		z := IdentifyModules(b.m, root)
		assert.True(t, z.IsModule(mod))
		assert.False(t, z.IsModule(inner))
		assert.False(t, independent(b.m, root, inner))
	})
}

func TestIdentifyModules_UnreachedNodes(t *testing.T) {
	b := newBuilder(t)
	root := b.gate(10, KindAnd, b.event(1), b.event(2))
	other := b.gate(11, KindOr, b.event(3), b.event(4))

	z := IdentifyModules(b.m, root)
	_, ok := z.Visit(other)
	assert.False(t, ok)
	assert.False(t, z.IsModule(other))

	empty := IdentifyModules(b.m, Handle(50))
	assert.Zero(t, empty.Count())
}

func TestIdentifyModules_MatchesReachabilityDefinition(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 14))
	for round := 0; round < 50; round++ {
		m, root := randomModel(rng, 6, 12)
		z := IdentifyModules(m, root)
		for h := range reachable(m, root) {
			if !m.nodes[h].Kind.IsGate() {
				assert.False(t, z.IsModule(h))
				continue
			}
			require.Equal(t, independent(m, root, h), z.IsModule(h),
				"round %d gate %d", round, m.nodes[h].ID)
		}
	}
}

func TestIdentifyModules_FreshPerRoot(t *testing.T) {
	b := newBuilder(t)
	e1, e2, e3 := b.event(1), b.event(2), b.event(3)
	shared := b.gate(10, KindOr, e2, e3)
	r1 := b.gate(11, KindAnd, shared, e1)
	r2 := b.gate(12, KindAnd, shared, b.gate(13, KindOr, e2, e1))

	assert.True(t, IdentifyModules(b.m, r1).IsModule(shared))
	assert.False(t, IdentifyModules(b.m, r2).IsModule(shared))
	assert.True(t, IdentifyModules(b.m, r1).IsModule(shared), "earlier passes leave no state behind")
}
