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
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"golang.org/x/sync/errgroup"
)

// run is the state of one root analysis.
type run struct {
	a       *Analyser
	root    Handle
	modules *Modularization
}

// cutsets returns the cached group of h, generating it on first use.
func (r *run) cutsets(ctx context.Context, h Handle) (cutset.Group, error) {
	return r.a.cells[h].get(ctx, func() (cutset.Group, error) {
		return r.generate(ctx, h)
	})
}

func (r *run) generate(ctx context.Context, h Handle) (cutset.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	eng := r.a.eng
	n := r.a.model.nodes[h]

	switch n.Kind {
	case KindBasic, KindNormal:
		return eng.Singleton(n.Event), nil
	case KindPass:
		return r.cutsets(ctx, n.Children[0])
	}

	g := eng.NewGroup()
	if err := r.fold(ctx, n, g); err != nil {
		return nil, err
	}

	if r.modules == nil || !r.modules.IsModule(h) {
		return g, nil
	}
	if h == r.root {
		g.ExpandModules()
		return g, nil
	}
	m, err := eng.NewModuleEvent(n.ID, n.Name, g)
	if err != nil {
		return nil, fmt.Errorf("pack module %d: %w", n.ID, err)
	}
	r.a.logger.Debug("packed module",
		slog.Int("gate_id", n.ID),
		slog.Int("cutsets", g.Len()),
	)
	return eng.Singleton(m), nil
}

// fold combines (AND) or merges (OR) the children's groups into g.
//
// Description:
//
//	Serially, children are folded in order. With parallel branching, each
//	child is handed to a new goroutine while a worker slot is free and
//	computed inline otherwise, so nested fan-out can never wait on itself.
//	Folding is guarded by a per-gate mutex and happens as children finish.
//	AND and OR are order independent, so the result does not depend on
//	completion order.
func (r *run) fold(ctx context.Context, n *Node, g cutset.Group) error {
	var mu sync.Mutex
	add := func(child cutset.Group) {
		mu.Lock()
		defer mu.Unlock()
		if n.Kind == KindAnd {
			g.Combine(child)
			return
		}
		g.Merge(child)
	}

	if !r.a.opts.ParallelBranching || len(n.Children) < 2 {
		for _, c := range n.Children {
			child, err := r.cutsets(ctx, c)
			if err != nil {
				return err
			}
			add(child)
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range n.Children {
		if r.a.sem.TryAcquire(1) {
			eg.Go(func() (err error) {
				defer r.a.sem.Release(1)
				defer r.recoverWorker(n, &err)
				child, err := r.cutsets(egCtx, c)
				if err != nil {
					return err
				}
				add(child)
				return nil
			})
			continue
		}
		child, err := r.cutsets(egCtx, c)
		if err != nil {
			_ = eg.Wait()
			return err
		}
		add(child)
	}
	return eg.Wait()
}

// recoverWorker turns a panic in a fan-out goroutine into ErrWorkerPanic.
func (r *run) recoverWorker(n *Node, err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	buf := make([]byte, 4096)
	size := runtime.Stack(buf, false)
	r.a.logger.Error("panic in gate fan-out worker",
		slog.Int("gate_id", n.ID),
		slog.Any("panic", rec),
		slog.String("stack", string(buf[:size])),
	)
	*err = fmt.Errorf("%w: gate %d: %v", ErrWorkerPanic, n.ID, rec)
}
