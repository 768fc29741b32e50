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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/cutset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroup(t *testing.T) cutset.Group {
	t.Helper()
	eng, err := cutset.NewEngine(cutset.DefaultOptions(), nil)
	require.NoError(t, err)
	return eng.NewGroup()
}

func TestCell_ComputesOnce(t *testing.T) {
	var c cell
	var calls atomic.Int32
	group := newTestGroup(t)
	release := make(chan struct{})

	compute := func() (cutset.Group, error) {
		calls.Add(1)
		<-release
		return group, nil
	}

	var wg sync.WaitGroup
	results := make([]cutset.Group, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := c.get(context.Background(), compute)
			assert.NoError(t, err)
			results[i] = g
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, g := range results {
		assert.Same(t, group, g)
	}
	cached, ok := c.cached()
	require.True(t, ok)
	assert.Same(t, group, cached)
}

func TestCell_FailureResets(t *testing.T) {
	var c cell
	boom := errors.New("boom")

	_, err := c.get(context.Background(), func() (cutset.Group, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.cached()
	assert.False(t, ok)

	group := newTestGroup(t)
	g, err := c.get(context.Background(), func() (cutset.Group, error) { return group, nil })
	require.NoError(t, err)
	assert.Same(t, group, g)
}

func TestCell_WaiterHonoursContext(t *testing.T) {
	var c cell
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = c.get(context.Background(), func() (cutset.Group, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.get(ctx, func() (cutset.Group, error) {
		t.Error("waiter must not compute")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
