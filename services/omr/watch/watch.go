// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch watches a directory for page description files and hands
// them over in debounced batches, so that a page written in several steps
// is processed once.
//
// # Thread Safety
//
// A Watcher is safe for concurrent use. Its handler is called from a
// single goroutine.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNotDirectory is returned when the watched root is not a directory.
var ErrNotDirectory = errors.New("watch root is not a directory")

// Op is the kind of change seen on a page file.
type Op int

const (
	// OpCreate is a new page file.
	OpCreate Op = iota

	// OpWrite is a modified page file.
	OpWrite

	// OpRemove is a deleted or renamed page file.
	OpRemove
)

var opNames = [...]string{"create", "write", "remove"}

// String returns the operation name.
func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "unknown"
	}
	return opNames[op]
}

// Event is one change on a page file.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a batch of events, at most one per path.
type Handler func(events []Event)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period closing a batch.
	// Default: 250ms
	Debounce time.Duration

	// Extensions lists the page file extensions, lower case.
	// Default: .yaml, .yml, .json
	Extensions []string

	// Ignore lists base-name glob patterns of files and directories to skip.
	// Default: .git, *.swp, *.tmp, hidden files
	Ignore []string

	// BufferSize is the capacity of the pending event channel.
	// Default: 256
	BufferSize int
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:   250 * time.Millisecond,
		Extensions: []string{".yaml", ".yml", ".json"},
		Ignore:     []string{".git", "*.swp", "*.tmp", ".*"},
		BufferSize: 256,
	}
}

// Watcher watches a directory tree for page files.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	opts    Options
	events  chan Event
	done    chan struct{}
	stopped sync.Once

	mu       sync.RWMutex
	handler  Handler
	watching bool
}

// New creates a watcher on root. A nil opts means the defaults.
//
// Errors:
//
//	ErrNotDirectory - root is not a directory
//	fsnotify errors - the watcher could not be created
func New(root string, handler Handler, opts *Options) (*Watcher, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
		if o.Debounce <= 0 {
			o.Debounce = DefaultOptions().Debounce
		}
		if o.BufferSize <= 0 {
			o.BufferSize = DefaultOptions().BufferSize
		}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    root,
		fsw:     fsw,
		opts:    o,
		handler: handler,
		events:  make(chan Event, o.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Start watches root and its subdirectories until Stop is called or ctx
// is canceled. Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	go w.readEvents(ctx)
	go w.debounce(ctx)
	return nil
}

// Stop stops the watcher, flushing the pending events.
func (w *Watcher) Stop() {
	w.stopped.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// Watching reports whether the watcher is active.
func (w *Watcher) Watching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// SetHandler replaces the handler.
func (w *Watcher) SetHandler(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = h
}

// Existing lists the page files already present under root, by path.
func (w *Watcher) Existing() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != w.root && w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && w.isPage(path) {
			out = append(out, path)
		}
		return nil
	})
	slices.Sort(out)
	return out, err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored matches the base name against the ignore patterns.
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.Ignore {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) isPage(path string) bool {
	return slices.Contains(w.opts.Extensions, strings.ToLower(filepath.Ext(path)))
}

func (w *Watcher) readEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						slog.Warn("cannot watch new directory",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()),
						)
					}
					continue
				}
			}
			if !w.isPage(ev.Name) {
				continue
			}
			op, ok := convertOp(ev.Op)
			if !ok {
				continue
			}
			select {
			case w.events <- Event{Path: ev.Name, Op: op, Time: time.Now()}:
			default:
				slog.Warn("watch buffer full, event dropped", slog.String("path", ev.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemove, true
	default:
		return 0, false
	}
}

// debounce batches events until the debounce period passes without any.
func (w *Watcher) debounce(ctx context.Context) {
	var (
		batch  []Event
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		if len(batch) > 0 {
			w.mu.RLock()
			h := w.handler
			w.mu.RUnlock()
			if h != nil {
				h(dedupe(batch))
			}
			batch = nil
		}
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	drain := func() {
		for {
			select {
			case ev := <-w.events:
				batch = append(batch, ev)
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return
		case <-w.done:
			drain()
			return
		case ev := <-w.events:
			batch = append(batch, ev)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the last event of each path, in first-seen order. A file
// created then written stays a creation.
func dedupe(events []Event) []Event {
	seen := make(map[string]int, len(events))
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		i, ok := seen[ev.Path]
		if !ok {
			seen[ev.Path] = len(out)
			out = append(out, ev)
			continue
		}
		if out[i].Op == OpCreate && ev.Op == OpWrite {
			out[i].Time = ev.Time
			continue
		}
		out[i] = ev
	}
	return out
}

// Pages returns the paths of the batch that still exist, in order.
func Pages(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Op != OpRemove {
			out = append(out, ev.Path)
		}
	}
	return out
}
