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
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/stretchr/testify/require"
)

type config struct {
	name   string
	engine cutset.Options
	tree   Options
}

// configs covers every combination of strategy, bit keys, modularization
// and parallelism.
func configs() []config {
	var out []config
	for _, strategy := range []cutset.Strategy{cutset.StrategyFlatList, cutset.StrategyCatalog} {
		for _, useKey := range []bool{false, true} {
			for _, modularize := range []bool{false, true} {
				for _, parallel := range []bool{false, true} {
					eng := cutset.DefaultOptions()
					eng.Strategy = strategy
					eng.UseBitKey = useKey
					tr := Options{Modularize: modularize}
					if parallel {
						eng.ParallelRedundancy = true
						eng.ParallelThreshold = 2
						eng.Workers = 3
						tr.ParallelBranching = true
						tr.Workers = 3
					}
					out = append(out, config{
						name:   fmt.Sprintf("%s/key=%t/mod=%t/par=%t", strategy, useKey, modularize, parallel),
						engine: eng,
						tree:   tr,
					})
				}
			}
		}
	}
	return out
}

// builder wraps Model with fail-fast helpers for tests.
type builder struct {
	t *testing.T
	m *Model
}

func newBuilder(t *testing.T) *builder {
	return &builder{t: t, m: NewModel("test")}
}

func (b *builder) event(id int) Handle {
	b.t.Helper()
	h, err := b.m.AddEvent(id, cutset.BasicEvent, fmt.Sprintf("e%d", id))
	require.NoError(b.t, err)
	return h
}

func (b *builder) gate(id int, kind Kind, children ...Handle) Handle {
	b.t.Helper()
	h, err := b.m.AddGate(id, kind, fmt.Sprintf("g%d", id), children...)
	require.NoError(b.t, err)
	return h
}

func (b *builder) tree(id int, root Handle) Handle {
	b.t.Helper()
	require.NoError(b.t, b.m.AddTree(id, fmt.Sprintf("t%d", id), root))
	return root
}

// idSets renders a group as sorted event id sets.
func idSets(g cutset.Group) [][]int {
	out := [][]int{}
	for _, c := range cutset.Sorted(g) {
		out = append(out, c.IDs())
	}
	return out
}

func analyse(t *testing.T, m *Model, cfg config, root Handle) [][]int {
	t.Helper()
	a, err := New(m, cfg.engine, cfg.tree)
	require.NoError(t, err)
	res, err := a.Analyse(t.Context(), root)
	require.NoError(t, err)
	require.False(t, res.Cutsets.HasModules(), "result must be fully expanded")
	return idSets(res.Cutsets)
}

// randomModel builds an acyclic model whose gates pick children among all
// earlier nodes, so subtrees are frequently shared.
func randomModel(rng *rand.Rand, events, gates int) (*Model, Handle) {
	m := NewModel("random")
	var hs []Handle
	for i := 0; i < events; i++ {
		h, _ := m.AddEvent(i+1, cutset.BasicEvent, "")
		hs = append(hs, h)
	}
	for g := 0; g < gates; g++ {
		var kind Kind
		var n int
		switch rng.IntN(7) {
		case 0:
			kind, n = KindPass, 1
		case 1, 2, 3:
			kind, n = KindOr, 2+rng.IntN(3)
		default:
			kind, n = KindAnd, 2+rng.IntN(2)
		}
		picked := make([]Handle, 0, n)
		for len(picked) < n {
			c := hs[rng.IntN(len(hs))]
			if !slices.Contains(picked, c) {
				picked = append(picked, c)
			}
		}
		h, _ := m.AddGate(1000+g, kind, "", picked...)
		hs = append(hs, h)
	}
	root := hs[len(hs)-1]
	_ = m.AddTree(1, "random", root)
	return m, root
}

// bruteForce returns the minimal failing event sets of root by evaluating
// the model under every subset of events.
func bruteForce(m *Model, root Handle) [][]int {
	var eval func(h Handle, failed uint64) bool
	eval = func(h Handle, failed uint64) bool {
		n := m.nodes[h]
		switch n.Kind {
		case KindBasic, KindNormal:
			return failed&(1<<uint(n.Event.Bit/cutset.Spacing)) != 0
		case KindAnd:
			for _, c := range n.Children {
				if !eval(c, failed) {
					return false
				}
			}
			return true
		default:
			for _, c := range n.Children {
				if eval(c, failed) {
					return true
				}
			}
			return false
		}
	}

	ids := make([]int, m.events)
	for _, n := range m.nodes {
		if n.Event != nil {
			ids[n.Event.Bit/cutset.Spacing] = n.ID
		}
	}

	out := [][]int{}
	for s := uint64(1); s < 1<<uint(m.events); s++ {
		if !eval(root, s) {
			continue
		}
		minimal := true
		for b := 0; b < m.events && minimal; b++ {
			if s&(1<<uint(b)) != 0 && eval(root, s&^(1<<uint(b))) {
				minimal = false
			}
		}
		if !minimal {
			continue
		}
		var set []int
		for b := 0; b < m.events; b++ {
			if s&(1<<uint(b)) != 0 {
				set = append(set, ids[b])
			}
		}
		slices.Sort(set)
		out = append(out, set)
	}
	slices.SortFunc(out, func(a, b []int) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return slices.Compare(a, b)
	})
	return out
}
