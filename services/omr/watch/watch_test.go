// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	batches [][]Event
}

func (c *collector) handle(events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, events)
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "unknown", Op(9).String())
}

func TestDedupe(t *testing.T) {
	t0 := time.Now()
	events := []Event{
		{Path: "a.yaml", Op: OpCreate, Time: t0},
		{Path: "b.yaml", Op: OpWrite, Time: t0},
		{Path: "a.yaml", Op: OpWrite, Time: t0.Add(time.Second)},
		{Path: "b.yaml", Op: OpRemove, Time: t0.Add(time.Second)},
	}
	got := dedupe(events)
	require.Len(t, got, 2)
	assert.Equal(t, OpCreate, got[0].Op)
	assert.Equal(t, t0.Add(time.Second), got[0].Time)
	assert.Equal(t, OpRemove, got[1].Op)
	assert.Equal(t, []string{"a.yaml"}, Pages(got))
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "page.yaml")
	require.NoError(t, os.WriteFile(file, []byte("id: 1\n"), 0o644))

	_, err := New(file, nil, nil)
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = New(filepath.Join(dir, "missing"), nil, nil)
	assert.Error(t, err)
}

func TestExisting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"p2.yaml", "p1.JSON", "notes.txt", ".hidden.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "p3.yml"), nil, 0o644))

	w, err := New(dir, nil, nil)
	require.NoError(t, err)
	defer w.Stop()

	got, err := w.Existing()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "p1.JSON"),
		filepath.Join(dir, "p2.yaml"),
		filepath.Join(dir, "sub", "p3.yml"),
	}, got)
}

func TestDebounceBatches(t *testing.T) {
	dir := t.TempDir()
	var c collector
	w, err := New(dir, c.handle, &Options{Debounce: 50 * time.Millisecond, Extensions: []string{".yaml"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.debounce(ctx)

	for range 3 {
		w.events <- Event{Path: "a.yaml", Op: OpWrite, Time: time.Now()}
	}
	require.Eventually(t, func() bool { return c.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, c.all(), 1)

	w.events <- Event{Path: "b.yaml", Op: OpCreate, Time: time.Now()}
	w.Stop()
	require.Eventually(t, func() bool { return c.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	var c collector
	w, err := New(dir, c.handle, &Options{Debounce: 50 * time.Millisecond, Extensions: []string{".yaml"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	assert.True(t, w.Watching())
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	page := filepath.Join(dir, "page.yaml")
	require.NoError(t, os.WriteFile(page, []byte("id: 1\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, ev := range c.all() {
			if ev.Path == page {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	for _, ev := range c.all() {
		assert.Equal(t, ".yaml", filepath.Ext(ev.Path))
	}

	w.Stop()
	assert.False(t, w.Watching())
}
