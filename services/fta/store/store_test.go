// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"testing"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample builds tree 5 = OR(e1, AND(e2, e3)) and returns its analyser and
// result.
func sample(t *testing.T, extra bool) (*tree.Analyser, *tree.Result) {
	t.Helper()
	m := tree.NewModel("sample")
	must := func(h tree.Handle, err error) tree.Handle {
		t.Helper()
		require.NoError(t, err)
		return h
	}
	e1 := must(m.AddEvent(1, cutset.BasicEvent, "a"))
	e2 := must(m.AddEvent(2, cutset.BasicEvent, "b"))
	e3 := must(m.AddEvent(3, cutset.NormalEvent, "c"))
	kids := []tree.Handle{e2, e3}
	if extra {
		kids = append(kids, must(m.AddEvent(4, cutset.BasicEvent, "d")))
	}
	and := must(m.AddGate(10, tree.KindAnd, "both", kids...))
	root := must(m.AddGate(11, tree.KindOr, "top", e1, and))
	require.NoError(t, m.AddTree(5, "Top", root))

	an, err := tree.New(m, cutset.DefaultOptions(), tree.DefaultOptions())
	require.NoError(t, err)
	results, err := an.AnalyseAll(t.Context())
	require.NoError(t, err)
	return an, results[0]
}

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFingerprintModel(t *testing.T) {
	a1, _ := sample(t, false)
	a2, _ := sample(t, false)
	a3, _ := sample(t, true)

	fp := FingerprintModel(a1.Model())
	assert.Equal(t, fp, FingerprintModel(a2.Model()), "same structure, same fingerprint")
	assert.NotEqual(t, fp, FingerprintModel(a3.Model()))
	assert.Len(t, fp.String(), 64)

	a2.Model().Name = "renamed"
	assert.Equal(t, fp, FingerprintModel(a2.Model()), "names are not part of the fingerprint")
}

func TestStore_PutGet(t *testing.T) {
	s := openMem(t)
	an, res := sample(t, false)
	fp := FingerprintModel(an.Model())

	_, err := s.Get(t.Context(), fp, res.TreeID)
	assert.ErrorIs(t, err, ErrNotFound)

	rec := NewRecord(fp, res)
	require.NoError(t, s.Put(t.Context(), fp, rec))

	got, err := s.Get(t.Context(), fp, res.TreeID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, [][]int{{1}, {2, 3}}, got.Cutsets)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, got.ByOrder())
	assert.Equal(t, res.Duration, got.Duration())
	assert.WithinDuration(t, time.Now(), got.Created(), time.Minute)

	_, err = s.Get(t.Context(), fp, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_Restore(t *testing.T) {
	an, res := sample(t, false)
	rec := NewRecord(FingerprintModel(an.Model()), res)

	restored, err := rec.Restore(an)
	require.NoError(t, err)
	assert.Equal(t, res.TreeID, restored.TreeID)
	assert.Equal(t, res.Root, restored.Root)
	assert.Equal(t, res.RunID, restored.RunID)
	assert.Equal(t, res.Count(), restored.Count())
	for _, c := range cutset.Sorted(res.Cutsets) {
		assert.True(t, restored.Cutsets.ContainsSet(c), c.String())
	}

	stale := *rec
	stale.Cutsets = [][]int{{42}}
	_, err = stale.Restore(an)
	assert.ErrorIs(t, err, ErrStaleRecord)

	gate := *rec
	gate.Cutsets = [][]int{{10}}
	_, err = gate.Restore(an)
	assert.ErrorIs(t, err, ErrStaleRecord, "gate IDs are not events")
}

func TestStore_Delete(t *testing.T) {
	s := openMem(t)
	an, res := sample(t, false)
	fp := FingerprintModel(an.Model())
	other := FingerprintModel(func() *tree.Model { a, _ := sample(t, true); return a.Model() }())

	rec := NewRecord(fp, res)
	require.NoError(t, s.Put(t.Context(), fp, rec))
	second := *rec
	second.TreeID = 6
	require.NoError(t, s.Put(t.Context(), fp, &second))
	require.NoError(t, s.Put(t.Context(), other, rec))

	n, err := s.Delete(t.Context(), fp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Get(t.Context(), fp, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(t.Context(), other, 5)
	assert.NoError(t, err, "other fingerprints are untouched")
}

func TestStore_CorruptValue(t *testing.T) {
	s := openMem(t)
	var fp Fingerprint
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(fp, 1), []byte("not zstd"))
	}))
	_, err := s.Get(t.Context(), fp, 1)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	an, res := sample(t, false)
	fp := FingerprintModel(an.Model())

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(t.Context(), fp, NewRecord(fp, res)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err = s.Get(t.Context(), fp, res.TreeID)
	assert.ErrorIs(t, err, ErrClosed)

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(t.Context(), fp, res.TreeID)
	require.NoError(t, err)
	assert.Equal(t, res.TreeName, got.TreeName)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrNoPath)

	cfg := DefaultConfig(t.TempDir())
	cfg.GCDiscardRatio = 1.5
	_, err = Open(cfg)
	assert.Error(t, err)
}
