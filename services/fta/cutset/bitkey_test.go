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
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyOf(ks *Keyspace, ordinals ...int) *BitKey {
	k := ks.NewKey()
	for _, o := range ordinals {
		k.Set(ks.EventBit(o))
	}
	return k
}

func TestKeyspace_Words(t *testing.T) {
	tests := []struct {
		name     string
		events   int
		reserved int
		want     int
	}{
		{"empty model still gets one word", 0, 0, 1},
		{"small model", 2, 0, 1},
		{"exactly two words", 15, 0, 2},
		{"hundred events", 100, 0, 9},
		{"reserved raised above default", 100, 30, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks := NewKeyspace(tt.events, tt.reserved)
			assert.Equal(t, tt.want, ks.Words())
		})
	}
}

func TestKeyspace_NextModuleBit(t *testing.T) {
	ks := NewKeyspace(2, 0)

	first, err := ks.NextModuleBit()
	require.NoError(t, err)
	assert.Equal(t, 2*Spacing, first)

	for i := 1; i < DefaultReservedModules; i++ {
		bit, err := ks.NextModuleBit()
		require.NoError(t, err)
		assert.True(t, ks.Covers(bit), "module bit %d outside keyspace", bit)
	}

	_, err = ks.NextModuleBit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyspaceExhausted))
	assert.Equal(t, DefaultReservedModules, ks.ModulesAllocated())
}

func TestBitKey_SetHasCount(t *testing.T) {
	ks := NewKeyspace(40, 0)
	k := keyOf(ks, 0, 13, 39)

	assert.True(t, k.Has(ks.EventBit(13)))
	assert.False(t, k.Has(ks.EventBit(14)))
	assert.False(t, k.Has(-1))
	assert.Equal(t, 3, k.Count())

	clone := k.Clone()
	clone.Set(ks.EventBit(14))
	assert.False(t, k.Has(ks.EventBit(14)), "clone must not share words")
}

func TestBitKey_CheckRedundancy(t *testing.T) {
	ks := NewKeyspace(64, 0)
	tests := []struct {
		name      string
		stored    []int
		candidate []int
		want      ReductionResult
	}{
		{"stored subset of candidate", []int{1, 2}, []int{1, 2, 3}, Redundant},
		{"candidate subset of stored", []int{1, 2, 3}, []int{1, 2}, CausesRedundancy},
		{"equal", []int{4, 50}, []int{4, 50}, Redundant},
		{"disjoint", []int{1}, []int{2}, NotRedundant},
		{"overlapping", []int{1, 2}, []int{2, 3}, NotRedundant},
		{"different words incomparable", []int{1, 60}, []int{1, 30}, NotRedundant},
		{"subset across words", []int{1}, []int{1, 30, 60}, Redundant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := keyOf(ks, tt.stored...)
			candidate := keyOf(ks, tt.candidate...)
			assert.Equal(t, tt.want, stored.CheckRedundancy(candidate))
			assert.Equal(t, tt.want, stored.CheckRedundancyBounded(candidate))
		})
	}
}

func TestBitKey_EqualIsRedundantBothWays(t *testing.T) {
	ks := NewKeyspace(20, 0)
	a := keyOf(ks, 3, 7, 11)
	b := keyOf(ks, 11, 3, 7)
	assert.Equal(t, Redundant, a.CheckRedundancy(b))
	assert.Equal(t, Redundant, b.CheckRedundancy(a))
}

func TestBitKey_FoldedIndex(t *testing.T) {
	// 1000 events need more than 64 words, so index bits fold.
	ks := NewKeyspace(1000, 0)
	require.Greater(t, ks.Words(), 64)

	low := keyOf(ks, 1)
	high := keyOf(ks, 1, 990)
	assert.Equal(t, Redundant, low.CheckRedundancy(high))
	assert.Equal(t, CausesRedundancy, high.CheckRedundancy(low))
	assert.Equal(t, NotRedundant, keyOf(ks, 990).CheckRedundancy(keyOf(ks, 2)))
}

func TestBitKey_BoundedScanMatchesFullScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, events := range []int{5, 60, 300, 1200} {
		ks := NewKeyspace(events, 0)
		for i := 0; i < 500; i++ {
			base := randomOrdinals(rng, events, 1+rng.IntN(6))
			other := deriveOrdinals(rng, events, base)
			a, b := keyOf(ks, base...), keyOf(ks, other...)
			require.Equal(t, a.CheckRedundancy(b), a.CheckRedundancyBounded(b),
				"events=%d a=%v b=%v", events, base, other)
			require.Equal(t, b.CheckRedundancy(a), b.CheckRedundancyBounded(a),
				"events=%d a=%v b=%v", events, other, base)
		}
	}
}

func randomOrdinals(rng *rand.Rand, events, n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rng.IntN(events))
	}
	return out
}

// deriveOrdinals returns a subset, superset, copy or unrelated set of base.
func deriveOrdinals(rng *rand.Rand, events int, base []int) []int {
	switch rng.IntN(4) {
	case 0:
		return append([]int(nil), base[:1+rng.IntN(len(base))]...)
	case 1:
		return append(append([]int(nil), base...), randomOrdinals(rng, events, 1+rng.IntN(3))...)
	case 2:
		return append([]int(nil), base...)
	default:
		return randomOrdinals(rng, events, 1+rng.IntN(6))
	}
}

func TestReductionResult_String(t *testing.T) {
	assert.Equal(t, "redundant", Redundant.String())
	assert.Equal(t, "causes_redundancy", CausesRedundancy.String())
	assert.Equal(t, "not_redundant", NotRedundant.String())
	assert.Equal(t, "ReductionResult(9)", ReductionResult(9).String())
}
