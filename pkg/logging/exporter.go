// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogExporter sends log records to a destination outside the process,
// such as a collector or a shared file.
//
// Export is called synchronously from the logging call and should not
// block: implementations buffer and send in batches. Flush sends what is
// buffered; Close releases resources and is called after Flush.
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// LogEntry is one exported record.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     Level          `json:"level"`
	Message   string         `json:"msg"`
	Service   string         `json:"service,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// NopExporter discards every entry.
type NopExporter struct{}

func (NopExporter) Export(context.Context, LogEntry) error { return nil }
func (NopExporter) Flush(context.Context) error            { return nil }
func (NopExporter) Close() error                           { return nil }

// BufferedExporter keeps the most recent entries in memory. When full,
// the oldest entry is dropped.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
	dropped int
}

// NewBufferedExporter creates an exporter keeping at most max entries.
// A non-positive max means 1000.
func NewBufferedExporter(max int) *BufferedExporter {
	if max <= 0 {
		max = 1000
	}
	return &BufferedExporter{max: max}
}

func (b *BufferedExporter) Export(_ context.Context, e LogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == b.max {
		b.entries = b.entries[1:]
		b.dropped++
	}
	b.entries = append(b.entries, e)
	return nil
}

func (b *BufferedExporter) Flush(context.Context) error { return nil }
func (b *BufferedExporter) Close() error                { return nil }

// Entries returns a copy of the buffered entries, oldest first.
func (b *BufferedExporter) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]LogEntry(nil), b.entries...)
}

// Dropped returns how many entries were dropped because the buffer was
// full.
func (b *BufferedExporter) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// WriterExporter writes entries as JSON lines. Close closes the writer
// when it is an io.Closer.
type WriterExporter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewWriterExporter creates an exporter writing to w.
func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{w: w, enc: json.NewEncoder(w)}
}

func (x *WriterExporter) Export(_ context.Context, e LogEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.enc.Encode(e)
}

func (x *WriterExporter) Flush(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if s, ok := x.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (x *WriterExporter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if c, ok := x.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// exportHandler turns slog records into entries for an exporter.
// Attributes added through WithAttrs are resolved once into fixed.
type exportHandler struct {
	exp    LogExporter
	level  Level
	fixed  map[string]any
	groups []string
}

func (h *exportHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.slogLevel()
}

func (h *exportHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.fixed)+r.NumAttrs())
	for k, v := range h.fixed {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		put(attrs, a, h.groups)
		return true
	})
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelOf(r.Level),
		Message:   r.Message,
	}
	if svc, ok := attrs["service"].(string); ok {
		entry.Service = svc
		delete(attrs, "service")
	}
	if len(attrs) > 0 {
		entry.Attrs = attrs
	}
	return h.exp.Export(ctx, entry)
}

// put stores a under its dotted group path, flattening nested groups.
func put(m map[string]any, a slog.Attr, groups []string) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := append(append([]string(nil), groups...), a.Key)
		if a.Key == "" {
			sub = groups
		}
		for _, ga := range v.Group() {
			put(m, ga, sub)
		}
		return
	}
	if a.Key == "" {
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	m[key] = v.Any()
}

func (h *exportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.fixed = make(map[string]any, len(h.fixed)+len(attrs))
	for k, v := range h.fixed {
		out.fixed[k] = v
	}
	for _, a := range attrs {
		put(out.fixed, a, h.groups)
	}
	return &out
}

func (h *exportHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.groups = append(append([]string(nil), h.groups...), name)
	return &out
}
