// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store caches analysis results in an embedded BadgerDB.
//
// Records are keyed by the BLAKE3 fingerprint of the model structure and the
// tree ID, encoded as deterministic CBOR and compressed with zstd. A changed
// model gets a new fingerprint, so stale records are never returned for it;
// they age out through the configured TTL.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.fta.store")

// keyPrefix namespaces result records.
const keyPrefix = "fta/result/"

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrCorruptRecord is returned when a stored value cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrStaleRecord is returned when a record names events the model lacks.
	ErrStaleRecord = errors.New("record does not match model")

	// ErrNoPath is returned when a persistent store has no directory.
	ErrNoPath = errors.New("store path is required unless in memory")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Store is the result cache.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	codec  *codec
	gc     *gcRunner
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates a store.
//
// Inputs:
//   - cfg: Store configuration. Path is required unless InMemory is set.
//
// Outputs:
//   - *Store: The store. Caller must call Close.
//   - error: ErrNoPath, or BadgerDB and codec setup errors.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, codec: c, cfg: cfg, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc, err = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			c.close()
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc.start()
	}

	logger.Debug("result store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
		slog.Duration("ttl", cfg.TTL),
	)
	return s, nil
}

func recordKey(fp Fingerprint, treeID int) []byte {
	return []byte(keyPrefix + fp.String() + "/" + strconv.Itoa(treeID))
}

// Put stores rec under its fingerprint and tree ID, replacing any previous
// record.
func (s *Store) Put(ctx context.Context, fp Fingerprint, rec *Record) error {
	_, span := tracer.Start(ctx, "Store.Put", trace.WithAttributes(
		attribute.String("fta.fingerprint", fp.String()),
		attribute.Int("fta.tree_id", rec.TreeID),
	))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	val, err := s.codec.encode(rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(recordKey(fp, rec.TreeID), val)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("put tree %d: %w", rec.TreeID, err)
	}

	span.SetAttributes(attribute.Int("fta.record_bytes", len(val)))
	s.logger.Debug("stored result",
		slog.Int("tree_id", rec.TreeID),
		slog.Int("cutsets", len(rec.Cutsets)),
		slog.Int("bytes", len(val)),
	)
	return nil
}

// Get loads the record of treeID under fp.
//
// Outputs:
//   - *Record: The record.
//   - error: ErrNotFound, ErrCorruptRecord, ErrClosed, or a read error.
func (s *Store) Get(ctx context.Context, fp Fingerprint, treeID int) (*Record, error) {
	_, span := tracer.Start(ctx, "Store.Get", trace.WithAttributes(
		attribute.String("fta.fingerprint", fp.String()),
		attribute.Int("fta.tree_id", treeID),
	))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(fp, treeID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			rec, derr = s.codec.decode(val)
			return derr
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		span.SetAttributes(attribute.Bool("fta.cache_hit", false))
		return nil, fmt.Errorf("tree %d: %w", treeID, ErrNotFound)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("get tree %d: %w", treeID, err)
	}
	span.SetAttributes(attribute.Bool("fta.cache_hit", true))
	return rec, nil
}

// Delete removes every record stored under fp and returns how many there
// were.
func (s *Store) Delete(ctx context.Context, fp Fingerprint) (int, error) {
	_, span := tracer.Start(ctx, "Store.Delete", trace.WithAttributes(
		attribute.String("fta.fingerprint", fp.String()),
	))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	prefix := []byte(keyPrefix + fp.String() + "/")
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			span.RecordError(err)
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("fta.deleted", len(keys)))
	return len(keys), nil
}

// Close stops GC and closes the database. Later calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gc != nil {
		s.gc.stop()
	}
	s.codec.close()
	return s.db.Close()
}
