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
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedOptions struct {
	name string
	opts Options
}

// allConfigs covers both strategies with and without keys, plus parallel
// scans forced on for tiny collections.
func allConfigs() []namedOptions {
	var out []namedOptions
	for _, strategy := range []Strategy{StrategyFlatList, StrategyCatalog} {
		for _, useKey := range []bool{false, true} {
			for _, parallel := range []bool{false, true} {
				opts := DefaultOptions()
				opts.Strategy = strategy
				opts.UseBitKey = useKey
				if parallel {
					opts.ParallelRedundancy = true
					opts.ParallelThreshold = 2
					opts.Workers = 4
				}
				name := fmt.Sprintf("%s/key=%t/parallel=%t", strategy, useKey, parallel)
				out = append(out, namedOptions{name: name, opts: opts})
			}
		}
	}
	return out
}

// idSets renders members as sorted id slices in a stable order.
func idSets(g Group) [][]int {
	var out [][]int
	for _, c := range Sorted(g) {
		out = append(out, c.IDs())
	}
	return out
}

// minimalSets is the reference reduction: dedupe, then drop strict supersets.
func minimalSets(sets [][]int) [][]int {
	norm := make([][]int, 0, len(sets))
	for _, s := range sets {
		c := slices.Clone(s)
		slices.Sort(c)
		c = slices.Compact(c)
		if len(c) > 0 && !slices.ContainsFunc(norm, func(o []int) bool { return slices.Equal(o, c) }) {
			norm = append(norm, c)
		}
	}
	var out [][]int
	for i, s := range norm {
		dominated := false
		for j, o := range norm {
			if i != j && len(o) < len(s) && isSubset(o, s) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b []int) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return slices.Compare(a, b)
	})
	return out
}

func isSubset(small, big []int) bool {
	for _, x := range small {
		if !slices.Contains(big, x) {
			return false
		}
	}
	return true
}

func TestGroup_AddKeepsMinimal(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 6)
			g := f.eng.NewGroup()

			assert.True(t, g.Add(f.set(1, 2, 3), true))
			assert.True(t, g.Add(f.set(4), true))
			assert.False(t, g.Add(f.set(4, 5), true), "superset of {4} is redundant")
			assert.False(t, g.Add(f.set(3, 2, 1), true), "equal set is redundant")
			assert.True(t, g.Add(f.set(1, 2), true), "subset evicts {1,2,3}")

			assert.Equal(t, [][]int{{4}, {1, 2}}, idSets(g))
			assert.Equal(t, 2, g.Len())
			assert.Equal(t, cfg.opts.Strategy, g.Strategy())
		})
	}
}

func TestGroup_AddWithoutCheck(t *testing.T) {
	for _, cfg := range allConfigs() {
		f := newFixture(t, cfg.opts, 4)
		g := f.eng.NewGroup()
		g.Add(f.set(1), false)
		g.Add(f.set(1, 2), false)
		assert.Equal(t, 2, g.Len(), cfg.name)
		assert.False(t, g.Add(f.eng.NewCutset(), true), "empty cutsets are never stored")
	}
}

func TestGroup_Combine(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 6)

			g := f.group([]int{1}, []int{2})
			g.Combine(f.group([]int{1}, []int{3}))
			assert.Equal(t, [][]int{{1}, {2, 3}}, idSets(g))

			empty := f.eng.NewGroup()
			empty.Combine(f.group([]int{4, 5}))
			assert.Equal(t, [][]int{{4, 5}}, idSets(empty), "empty receiver takes the other's members")

			h := f.group([]int{0})
			h.Combine(f.eng.NewGroup())
			assert.Equal(t, 0, h.Len(), "AND with an empty group has no cutsets")
		})
	}
}

func TestGroup_CombineFoldOrderIndependent(t *testing.T) {
	children := [][][]int{
		{{1}, {2, 3}},
		{{2}, {4}},
		{{1, 4}, {5}},
	}
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 6)
			var want [][]int
			for _, order := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}} {
				acc := f.eng.NewGroup()
				for _, i := range order {
					acc.Combine(f.group(children[i]...))
				}
				if want == nil {
					want = idSets(acc)
					continue
				}
				assert.Equal(t, want, idSets(acc), "fold order %v", order)
			}
		})
	}
}

func TestGroup_MergeIdempotent(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 6)
			g := f.group([]int{1, 2}, []int{3}, []int{4, 5})
			before := idSets(g)

			g.Merge(g)
			assert.Equal(t, before, idSets(g))

			g.Merge(f.group([]int{1}, []int{3, 4}))
			assert.Equal(t, [][]int{{1}, {3}, {4, 5}}, idSets(g))
		})
	}
}

func TestGroup_ContainsSet(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 6)
			g := f.group([]int{1, 2, 3}, []int{4})

			assert.True(t, g.ContainsSet(f.set(2, 3)))
			assert.True(t, g.ContainsSet(f.set(4)))
			assert.False(t, g.ContainsSet(f.set(4, 5)))
			assert.False(t, g.ContainsSet(f.set(0)))

			assert.True(t, g.Contains(f.set(3, 2, 1)))
			assert.False(t, g.Contains(f.set(2, 3)))
		})
	}
}

func TestGroup_ExpandModules(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 8)

			inner, err := f.eng.NewModuleEvent(200, "inner", f.group([]int{6}, []int{7}))
			require.NoError(t, err)
			innerSet := f.set(5)
			innerSet.AddEvent(inner)
			outerGroup := f.eng.NewGroup()
			outerGroup.Add(innerSet, true)
			outerGroup.Add(f.set(4), true)
			outer, err := f.eng.NewModuleEvent(100, "outer", outerGroup)
			require.NoError(t, err)

			g := f.eng.NewGroup()
			withModule := f.set(1)
			withModule.AddEvent(outer)
			g.Add(withModule, true)
			g.Add(f.set(2, 3), true)
			require.True(t, g.HasModules())

			g.ExpandModules()
			assert.False(t, g.HasModules())
			assert.Equal(t, [][]int{{1, 4}, {2, 3}, {1, 5, 6}, {1, 5, 7}}, idSets(g))

			g.ExpandModules()
			assert.Equal(t, 4, g.Len(), "expanding a module-free group is a no-op")
		})
	}
}

func TestGroup_AllIsRestartable(t *testing.T) {
	for _, cfg := range allConfigs() {
		f := newFixture(t, cfg.opts, 5)
		g := f.group([]int{1}, []int{2}, []int{3, 4})

		first := 0
		for range g.All() {
			first++
		}
		second := 0
		for c := range g.All() {
			second++
			if c.Order() > 0 {
				break
			}
		}
		assert.Equal(t, 3, first, cfg.name)
		assert.Equal(t, 1, second, cfg.name)
		assert.Equal(t, map[int]int{1: 2, 2: 1}, ByOrder(g))
	}
}

func TestGroup_Clone(t *testing.T) {
	for _, cfg := range allConfigs() {
		f := newFixture(t, cfg.opts, 5)
		g := f.group([]int{1}, []int{2, 3})
		clone := g.Clone()
		clone.Add(f.set(4), true)
		assert.Equal(t, 2, g.Len(), cfg.name)
		assert.Equal(t, 3, clone.Len(), cfg.name)
	}
}

func TestGroup_RandomInsertionsMatchReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for round := 0; round < 25; round++ {
		var sets [][]int
		for i := 0; i < 60; i++ {
			sets = append(sets, randomOrdinals(rng, 12, 1+rng.IntN(4)))
		}
		want := minimalSets(sets)

		for _, cfg := range allConfigs() {
			f := newFixture(t, cfg.opts, 12)
			g := f.group(sets...)
			require.Equal(t, want, idSets(g), "round %d %s", round, cfg.name)
		}
	}
}

func TestGroup_ConcurrentAdds(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			f := newFixture(t, cfg.opts, 10)
			g := f.eng.NewGroup()

			var sets [][]int
			for a := 0; a < 10; a++ {
				for b := a + 1; b < 10; b++ {
					sets = append(sets, []int{a, b})
				}
			}
			sets = append(sets, []int{0}, []int{9})

			var wg sync.WaitGroup
			for i := range sets {
				wg.Add(1)
				go func(ids []int) {
					defer wg.Done()
					g.Add(f.set(ids...), true)
				}(sets[i])
			}
			wg.Wait()

			assert.Equal(t, minimalSets(sets), idSets(g))
		})
	}
}

func TestEngine_CountsComparisons(t *testing.T) {
	f := newFixture(t, structural(), 4)
	g := f.eng.NewGroup()
	g.Add(f.set(0), true)
	g.Add(f.set(1), true)
	g.Add(f.set(2), true)
	assert.Equal(t, int64(3), f.eng.Comparisons())
}
