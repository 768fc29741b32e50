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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture bundles an engine with a fixed set of basic events 0..n-1.
type fixture struct {
	eng    *Engine
	events []*Event
}

func newFixture(t *testing.T, opts Options, n int) *fixture {
	t.Helper()
	ks := NewKeyspace(n, 0)
	eng, err := NewEngine(opts, ks)
	require.NoError(t, err)
	events := make([]*Event, n)
	for i := range events {
		ev, err := NewEvent(i, BasicEvent, ks.EventBit(i))
		require.NoError(t, err)
		events[i] = ev
	}
	return &fixture{eng: eng, events: events}
}

func (f *fixture) set(ids ...int) *Cutset {
	evs := make([]*Event, len(ids))
	for i, id := range ids {
		evs[i] = f.events[id]
	}
	return f.eng.NewCutset(evs...)
}

func (f *fixture) group(sets ...[]int) Group {
	g := f.eng.NewGroup()
	for _, ids := range sets {
		g.Add(f.set(ids...), true)
	}
	return g
}

func structural() Options { return DefaultOptions() }

func keyed() Options {
	opts := DefaultOptions()
	opts.UseBitKey = true
	return opts
}

func TestNewEngine_BitKeyWithoutKeyspace(t *testing.T) {
	_, err := NewEngine(keyed(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyspaceUnsized))

	eng, err := NewEngine(structural(), nil)
	require.NoError(t, err)
	assert.Nil(t, eng.Keyspace())
}

func TestCutset_AddEvent(t *testing.T) {
	for _, opts := range []Options{structural(), keyed()} {
		f := newFixture(t, opts, 5)
		c := f.set(1, 2)

		assert.False(t, c.AddEvent(f.events[1]), "duplicate must not be added")
		assert.True(t, c.AddEvent(f.events[4]))
		assert.Equal(t, 3, c.Order())
		assert.True(t, c.ContainsEvent(f.events[4]))
		assert.False(t, c.ContainsEvent(f.events[0]))
		assert.Equal(t, "{1, 2, 4}", c.String())
		assert.Equal(t, []int{1, 2, 4}, c.IDs())
	}
}

func TestCutset_ContainsSet(t *testing.T) {
	for _, opts := range []Options{structural(), keyed()} {
		f := newFixture(t, opts, 6)
		big := f.set(0, 1, 2, 3)

		assert.True(t, big.ContainsSet(f.set(1, 3)))
		assert.True(t, big.ContainsSet(f.set(0, 1, 2, 3)))
		assert.False(t, big.ContainsSet(f.set(1, 5)))
		assert.False(t, f.set(1).ContainsSet(big))
		assert.True(t, big.Equal(f.set(3, 2, 1, 0)))
	}
}

func TestCutset_CheckRedundancy(t *testing.T) {
	tests := []struct {
		name      string
		stored    []int
		candidate []int
		want      ReductionResult
	}{
		{"stored is smaller subset", []int{1}, []int{1, 2}, Redundant},
		{"candidate is smaller subset", []int{1, 2, 3}, []int{2, 3}, CausesRedundancy},
		{"equal sets", []int{1, 2}, []int{2, 1}, Redundant},
		{"equal order different sets", []int{1, 2}, []int{1, 3}, NotRedundant},
		{"smaller but not subset", []int{4}, []int{1, 2}, NotRedundant},
		{"larger but not superset", []int{1, 2, 4}, []int{1, 3}, NotRedundant},
	}
	for _, mode := range []struct {
		name string
		opts Options
	}{{"structural", structural()}, {"bitkey", keyed()}} {
		for _, tt := range tests {
			t.Run(mode.name+"/"+tt.name, func(t *testing.T) {
				f := newFixture(t, mode.opts, 6)
				got := f.set(tt.stored...).CheckRedundancy(f.set(tt.candidate...))
				assert.Equal(t, tt.want, got)
			})
		}
	}
}

func TestCutset_EqualSetsRedundantInBothDirections(t *testing.T) {
	for _, opts := range []Options{structural(), keyed()} {
		f := newFixture(t, opts, 4)
		a, b := f.set(0, 2, 3), f.set(3, 0, 2)
		assert.Equal(t, Redundant, a.CheckRedundancy(b))
		assert.Equal(t, Redundant, b.CheckRedundancy(a))
	}
}

func TestCutset_ExpandModules(t *testing.T) {
	for _, opts := range []Options{structural(), keyed()} {
		f := newFixture(t, opts, 6)
		inner := f.group([]int{4}, []int{5})
		m, err := f.eng.NewModuleEvent(100, "M", inner)
		require.NoError(t, err)

		c := f.set(1)
		c.AddEvent(m)
		require.True(t, c.ContainsModule())

		expanded := c.ExpandModules(f.eng)
		assert.Equal(t, 2, expanded.Len())
		assert.True(t, expanded.Contains(f.set(1, 4)))
		assert.True(t, expanded.Contains(f.set(1, 5)))
		assert.False(t, expanded.HasModules())
	}
}

func TestEvent_Module(t *testing.T) {
	f := newFixture(t, structural(), 2)
	_, err := f.events[0].Module()
	assert.True(t, errors.Is(err, ErrNotModuleEvent))

	g := f.group([]int{0})
	m, err := f.eng.NewModuleEvent(9, "", g)
	require.NoError(t, err)
	got, err := m.Module()
	require.NoError(t, err)
	assert.Same(t, g, got)
	assert.Equal(t, "M9", m.Label())
	assert.Equal(t, -1, m.Bit, "no bit without keys")
}

func TestParseEventKind(t *testing.T) {
	k, err := ParseEventKind("Normal")
	require.NoError(t, err)
	assert.Equal(t, NormalEvent, k)

	k, err = ParseEventKind("")
	require.NoError(t, err)
	assert.Equal(t, BasicEvent, k)

	_, err = ParseEventKind("module")
	assert.ErrorIs(t, err, ErrInvalidEventKind)
}

func TestNewEvent_RejectsNonLeafKinds(t *testing.T) {
	ev, err := NewEvent(4, NormalEvent, 20)
	require.NoError(t, err)
	assert.Equal(t, NormalEvent, ev.Kind)
	assert.Equal(t, 20, ev.Bit)

	for _, kind := range []EventKind{ModuleEvent, EventKind(9)} {
		ev, err := NewEvent(4, kind, 20)
		assert.ErrorIs(t, err, ErrInvalidEventKind, "%s", kind)
		assert.Nil(t, ev)
	}
}
