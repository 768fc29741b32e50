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
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// recordVersion is bumped when Record changes incompatibly.
const recordVersion = 1

// Record is the stored outcome of analysing one tree.
type Record struct {
	Version     int     `cbor:"version"`
	Fingerprint string  `cbor:"fingerprint"`
	TreeID      int     `cbor:"tree_id"`
	TreeName    string  `cbor:"tree_name,omitempty"`
	RootID      int     `cbor:"root_id"`
	RunID       string  `cbor:"run_id"`
	Cutsets     [][]int `cbor:"cutsets"`
	Modules     int     `cbor:"modules"`
	Comparisons int64   `cbor:"comparisons"`

	// DurationNanos is the analysis time of the run that produced the record.
	DurationNanos int64 `cbor:"duration_ns"`

	CreatedUnixMilli int64 `cbor:"created_ms"`
}

// NewRecord captures a result under fingerprint fp.
func NewRecord(fp Fingerprint, res *tree.Result) *Record {
	sorted := cutset.Sorted(res.Cutsets)
	sets := make([][]int, len(sorted))
	for i, c := range sorted {
		sets[i] = c.IDs()
	}
	return &Record{
		Version:          recordVersion,
		Fingerprint:      fp.String(),
		TreeID:           res.TreeID,
		TreeName:         res.TreeName,
		RootID:           res.RootID,
		RunID:            res.RunID,
		Cutsets:          sets,
		Modules:          res.Modules,
		Comparisons:      res.Comparisons,
		DurationNanos:    int64(res.Duration),
		CreatedUnixMilli: time.Now().UnixMilli(),
	}
}

// Duration returns the stored analysis time.
func (r *Record) Duration() time.Duration { return time.Duration(r.DurationNanos) }

// Created returns when the record was written.
func (r *Record) Created() time.Time { return time.UnixMilli(r.CreatedUnixMilli) }

// ByOrder counts the stored cutsets by order.
func (r *Record) ByOrder() map[int]int {
	out := make(map[int]int)
	for _, c := range r.Cutsets {
		out[len(c)]++
	}
	return out
}

// Restore rebuilds a tree.Result from the record using the events of m.
//
// Description:
//
//	Cutsets are rebuilt through the analyser's engine so the result holds
//	the model's own events and keys. RunID, Comparisons and Duration are
//	those of the run that wrote the record.
//
// Outputs:
//   - *tree.Result: The rebuilt result.
//   - error: ErrStaleRecord if an event ID is not a leaf of the model.
func (r *Record) Restore(a *tree.Analyser) (*tree.Result, error) {
	m := a.Model()
	g := a.Engine().NewGroup()
	for _, ids := range r.Cutsets {
		events := make([]*cutset.Event, 0, len(ids))
		for _, id := range ids {
			h, ok := m.Lookup(id)
			if !ok || m.Node(h).Event == nil {
				return nil, fmt.Errorf("%w: event %d", ErrStaleRecord, id)
			}
			events = append(events, m.Node(h).Event)
		}
		g.Add(a.Engine().NewCutset(events...), false)
	}
	root, _ := m.Lookup(r.RootID)
	return &tree.Result{
		RunID:       r.RunID,
		Root:        root,
		RootID:      r.RootID,
		TreeID:      r.TreeID,
		TreeName:    r.TreeName,
		Cutsets:     g,
		Modules:     r.Modules,
		Comparisons: r.Comparisons,
		Duration:    r.Duration(),
	}, nil
}

// codec encodes records as deterministic CBOR compressed with zstd.
type codec struct {
	enc  cbor.EncMode
	dec  cbor.DecMode
	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		zenc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec, zenc: zenc, zdec: zdec}, nil
}

func (c *codec) encode(rec *Record) ([]byte, error) {
	raw, err := c.enc.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return c.zenc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c *codec) decode(data []byte) (*Record, error) {
	raw, err := c.zdec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	var rec Record
	if err := c.dec.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptRecord, rec.Version)
	}
	return &rec, nil
}

func (c *codec) close() {
	c.zenc.Close()
	c.zdec.Close()
}
