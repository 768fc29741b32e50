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
	"math/bits"
	"sync/atomic"
)

// Keyspace layout constants.
const (
	// WordBits is the width of one key word.
	WordBits = 64

	// Spacing is the distance between the bits of consecutive events.
	Spacing = 5

	// DefaultReservedModules is the minimum number of module event slots
	// a keyspace reserves after the last event bit.
	DefaultReservedModules = 10
)

// ReductionResult classifies how a stored cutset relates to a candidate.
type ReductionResult int

const (
	// NotRedundant means neither set contains the other.
	NotRedundant ReductionResult = iota

	// Redundant means the stored set is a subset of (or equal to) the
	// candidate, so the candidate must be discarded.
	Redundant

	// CausesRedundancy means the candidate is a strict subset of the stored
	// set, so the stored set must be removed.
	CausesRedundancy
)

// String returns the result name.
func (r ReductionResult) String() string {
	switch r {
	case NotRedundant:
		return "not_redundant"
	case Redundant:
		return "redundant"
	case CausesRedundancy:
		return "causes_redundancy"
	default:
		return fmt.Sprintf("ReductionResult(%d)", int(r))
	}
}

// =============================================================================
// Keyspace
// =============================================================================

// Keyspace sizes bit keys and hands out module event bit positions.
//
// Description:
//
//	A keyspace is created once per analysis from the number of events in the
//	model. Event i owns bit i*Spacing. Module events are allocated after the
//	last event bit, one Spacing apart, up to the reserved slot count.
//
//	words = ceil((events*Spacing + reserved*Spacing) / WordBits)
//
// Thread Safety: Safe for concurrent use. Module slot allocation is atomic.
type Keyspace struct {
	events   int
	reserved int
	words    int
	modules  atomic.Int64
}

// NewKeyspace creates a keyspace for the given number of events.
//
// Inputs:
//   - events: Number of basic and normal events in the model. Must be >= 0.
//   - reservedModules: Module slots to reserve. Values below
//     DefaultReservedModules are raised to it.
//
// Outputs:
//   - *Keyspace: Never nil.
func NewKeyspace(events, reservedModules int) *Keyspace {
	if events < 0 {
		events = 0
	}
	reserved := max(reservedModules, DefaultReservedModules)
	span := (events + reserved) * Spacing
	words := (span + WordBits - 1) / WordBits
	return &Keyspace{
		events:   events,
		reserved: reserved,
		words:    max(words, 1),
	}
}

// Words returns the number of 64-bit words in every key of this keyspace.
func (k *Keyspace) Words() int { return k.words }

// Events returns the number of event slots.
func (k *Keyspace) Events() int { return k.events }

// Reserved returns the number of module slots.
func (k *Keyspace) Reserved() int { return k.reserved }

// EventBit returns the bit owned by the event with the given ordinal.
func (k *Keyspace) EventBit(ordinal int) int { return ordinal * Spacing }

// Covers reports whether bit lies inside the keyspace.
func (k *Keyspace) Covers(bit int) bool {
	return bit >= 0 && bit < k.words*WordBits
}

// NextModuleBit allocates the bit for a new module event.
//
// Outputs:
//   - int: The allocated bit.
//   - error: ErrKeyspaceExhausted once all reserved slots are taken.
func (k *Keyspace) NextModuleBit() (int, error) {
	n := int(k.modules.Add(1) - 1)
	if n >= k.reserved {
		return 0, fmt.Errorf("%w: %d slots reserved", ErrKeyspaceExhausted, k.reserved)
	}
	return (k.events + n) * Spacing, nil
}

// ModulesAllocated returns how many module bits were handed out.
func (k *Keyspace) ModulesAllocated() int {
	return min(int(k.modules.Load()), k.reserved)
}

// NewKey returns an empty key sized for this keyspace.
func (k *Keyspace) NewKey() *BitKey {
	return &BitKey{words: make([]uint64, k.words), high: -1}
}

// =============================================================================
// BitKey
// =============================================================================

// BitKey is a fixed-width bitset over event bits with an index word.
//
// Description:
//
//	Bit (w mod 64) of the index word is set when key word w is non-empty.
//	Folding the index keeps the pre-check sound for keys wider than 64
//	words because subset relations survive the fold. high is the highest
//	non-empty word, or -1.
//
// Thread Safety: Not safe for concurrent mutation. Keys attached to stored
// cutsets are never mutated again.
type BitKey struct {
	words []uint64
	index uint64
	high  int
}

// Set turns on the given bit.
func (k *BitKey) Set(bit int) {
	w := bit >> 6
	k.words[w] |= 1 << (uint(bit) & 63)
	k.index |= 1 << (uint(w) & 63)
	if w > k.high {
		k.high = w
	}
}

// Has reports whether the given bit is set.
func (k *BitKey) Has(bit int) bool {
	w := bit >> 6
	if w < 0 || w >= len(k.words) {
		return false
	}
	return k.words[w]&(1<<(uint(bit)&63)) != 0
}

// Count returns the number of set bits.
func (k *BitKey) Count() int {
	n := 0
	for _, w := range k.words[:k.high+1] {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clone returns an independent copy of the key.
func (k *BitKey) Clone() *BitKey {
	words := make([]uint64, len(k.words))
	copy(words, k.words)
	return &BitKey{words: words, index: k.index, high: k.high}
}

// or merges other into k.
func (k *BitKey) or(other *BitKey) {
	n := min(len(k.words), len(other.words))
	for i := 0; i < n; i++ {
		k.words[i] |= other.words[i]
	}
	k.index |= other.index
	k.high = max(k.high, other.high)
}

// CheckRedundancy compares k, the key of a stored cutset, against the key of
// a candidate, scanning every word.
//
// Outputs:
//   - Redundant when k is a subset of candidate (equal keys included).
//   - CausesRedundancy when candidate is a strict subset of k.
//   - NotRedundant otherwise.
func (k *BitKey) CheckRedundancy(candidate *BitKey) ReductionResult {
	if !indexComparable(k.index, candidate.index) {
		return NotRedundant
	}
	return k.scan(candidate, min(len(k.words), len(candidate.words)))
}

// CheckRedundancyBounded returns the same result as CheckRedundancy but only
// scans up to the higher of the two high-water words.
func (k *BitKey) CheckRedundancyBounded(candidate *BitKey) ReductionResult {
	if !indexComparable(k.index, candidate.index) {
		return NotRedundant
	}
	limit := min(max(k.high, candidate.high)+1, len(k.words), len(candidate.words))
	return k.scan(candidate, limit)
}

func indexComparable(a, b uint64) bool {
	both := a & b
	return both == a || both == b
}

func (k *BitKey) scan(candidate *BitKey, limit int) ReductionResult {
	storedInCandidate, candidateInStored := true, true
	for i := 0; i < limit; i++ {
		a, b := k.words[i], candidate.words[i]
		if a == b {
			continue
		}
		both := a & b
		if both != a {
			storedInCandidate = false
		}
		if both != b {
			candidateInStored = false
		}
		if !storedInCandidate && !candidateInStored {
			return NotRedundant
		}
	}
	switch {
	case storedInCandidate:
		return Redundant
	case candidateInStored:
		return CausesRedundancy
	default:
		return NotRedundant
	}
}
