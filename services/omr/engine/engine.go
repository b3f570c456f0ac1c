// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/input"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/rhythm"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
	"github.com/AleutianAI/AleutianOMR/services/omr/symbol"
	"github.com/AleutianAI/AleutianOMR/services/omr/telemetry"
)

var tracer = otel.Tracer("aleutian.omr.engine")

// Engine interprets pages.
type Engine struct {
	cfg       config.Config
	switches  *config.ProcessingSwitches
	snapshots bool

	// inspect, when set, is called on each system before its rhythm step.
	inspect func(*sheet.System)
}

// Option configures an Engine.
type Option func(*Engine)

// WithSwitches replaces the book-level processing switches.
func WithSwitches(s *config.ProcessingSwitches) Option {
	return func(e *Engine) {
		if s != nil {
			e.switches = s
		}
	}
}

// WithSnapshots makes every SystemResult carry a snapshot of its graph.
func WithSnapshots(on bool) Option {
	return func(e *Engine) {
		e.snapshots = on
	}
}

// New creates an engine. The configuration is expected to be validated.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		switches: cfg.BookSwitches(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// SystemResult is the outcome of one system.
type SystemResult struct {
	ID int `json:"id"`

	// Err is non-nil when the system could not be processed. Such a
	// system takes no part in the page rhythm check.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	Stats    sig.Stats             `json:"stats"`
	Stacks   []*sheet.MeasureStack `json:"stacks,omitempty"`
	Snapshot *sig.Snapshot         `json:"snapshot,omitempty"`
	Elapsed  time.Duration         `json:"elapsed_ns"`

	system *sheet.System
}

// System returns the interpreted system, nil on failure.
func (r *SystemResult) System() *sheet.System { return r.system }

// PageResult is the outcome of one page.
type PageResult struct {
	// RunID identifies this processing run in logs and traces.
	RunID string `json:"run_id"`

	PageID    int              `json:"page_id"`
	Systems   []SystemResult   `json:"systems"`
	Anomalies []rhythm.Anomaly `json:"anomalies,omitempty"`

	// Carried is the measure duration in force at the end of the page,
	// to pass to the next page.
	Carried *rational.Rational `json:"carried,omitempty"`

	// Page holds the successfully processed systems.
	Page *sheet.Page `json:"-"`
}

// Failed returns the systems that could not be processed.
func (r *PageResult) Failed() []SystemResult {
	var out []SystemResult
	for _, s := range r.Systems {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// ProcessPage interprets one page.
//
// Description:
//
//	Validates the page, then processes its systems in parallel, at most
//	Engine.Parallelism at a time. A system that fails or panics is
//	recorded in its SystemResult and left out of the page. The surviving
//	systems then go through the page rhythm check, after which every
//	stack is finished.
//
// Inputs:
//
//	ctx - Cancellation and tracing context.
//	in - The page description.
//	carried - Measure duration carried from the previous page, or nil.
//
// Outputs:
//
//	*PageResult - The result, also returned with ErrSystemFailed.
//	error - Non-nil on invalid input, cancellation, or when every
//	system failed.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (e *Engine) ProcessPage(ctx context.Context, in *input.Page, carried *rational.Rational) (*PageResult, error) {
	if in == nil {
		return nil, ErrNilPage
	}
	runID := uuid.NewString()[:12]
	ctx, span := tracer.Start(ctx, "engine.ProcessPage",
		trace.WithAttributes(
			attribute.String("omr.run_id", runID),
			attribute.Int("omr.page", in.ID),
			attribute.Int("omr.systems", len(in.Systems)),
		),
	)
	defer span.End()

	if err := in.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid page")
		return nil, err
	}

	scale := sheet.Scale{Interline: in.Interline}
	if scale.Interline <= 0 {
		scale.Interline = e.cfg.Scale.DefaultInterline
	}
	switches := e.switches.Child()
	if err := switches.Apply(in.Switches); err != nil {
		return nil, fmt.Errorf("%w: %v", input.ErrInvalidPage, err)
	}
	if err := checkManual(in); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid page")
		return nil, err
	}

	results := make([]SystemResult, len(in.Systems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.Engine.Parallelism))
	for i := range in.Systems {
		g.Go(func() error {
			results[i] = e.runSystem(gctx, &in.Systems[i], scale, switches)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := &PageResult{
		RunID:   runID,
		PageID:  in.ID,
		Systems: results,
		Page:    &sheet.Page{ID: in.ID, Scale: scale},
	}
	for i := range results {
		if results[i].Err == nil {
			res.Page.Systems = append(res.Page.Systems, results[i].system)
		}
	}
	if len(res.Page.Systems) == 0 {
		pagesProcessed.WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, "no system")
		return res, ErrSystemFailed
	}

	res.Carried, res.Anomalies = rhythm.New(e.cfg, scale).CheckPage(ctx, res.Page, carried)
	for _, st := range res.Page.Stacks() {
		st.Finish()
	}
	for _, a := range res.Anomalies {
		if a.Excess.Sign() > 0 {
			stackAnomalies.WithLabelValues("excess").Inc()
		} else {
			stackAnomalies.WithLabelValues("missing").Inc()
		}
	}

	for i := range results {
		sys := results[i].system
		if sys == nil {
			continue
		}
		results[i].Stacks = sys.Stacks
		if e.snapshots {
			results[i].Snapshot = sys.SIG.Snapshot()
		}
	}

	status := "ok"
	if len(res.Page.Systems) < len(results) {
		status = "partial"
	}
	pagesProcessed.WithLabelValues(status).Inc()
	span.SetAttributes(
		attribute.Int("omr.anomalies", len(res.Anomalies)),
		attribute.Int("omr.failed", len(results)-len(res.Page.Systems)),
	)
	telemetry.LoggerWithTrace(ctx, nil).Info("page processed",
		slog.String("run_id", runID),
		slog.Int("page", in.ID),
		slog.Int("systems", len(res.Page.Systems)),
		slog.Int("failed", len(results)-len(res.Page.Systems)),
		slog.Int("anomalies", len(res.Anomalies)),
	)
	return res, nil
}

// checkManual rejects forced symbols whose shape cannot be built.
func checkManual(in *input.Page) error {
	for _, sys := range in.Systems {
		for _, m := range sys.Manual {
			if !symbol.ManualSupported(m.ShapeValue()) {
				return fmt.Errorf("%w: system %d: %w: %s",
					input.ErrInvalidPage, sys.ID, symbol.ErrUnsupportedShape, m.Shape)
			}
		}
	}
	return nil
}

// ProcessBook interprets pages in order, carrying the measure duration
// from each page to the next. It stops at the first page error other
// than ErrSystemFailed.
func (e *Engine) ProcessBook(ctx context.Context, pages []*input.Page) ([]*PageResult, error) {
	var (
		out     []*PageResult
		carried *rational.Rational
	)
	for _, p := range pages {
		res, err := e.ProcessPage(ctx, p, carried)
		if res != nil {
			out = append(out, res)
			if res.Carried != nil {
				carried = res.Carried
			}
		}
		if err != nil && res == nil {
			return out, err
		}
	}
	return out, nil
}

// runSystem processes one system, turning any error or panic into the
// result.
func (e *Engine) runSystem(ctx context.Context, in *input.System, scale sheet.Scale, switches *config.ProcessingSwitches) (res SystemResult) {
	start := time.Now()
	res.ID = in.ID
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			slog.Error("panic while processing system",
				slog.Int("system", in.ID),
				slog.Any("panic", r),
				slog.String("stack", string(buf[:n])),
			)
			res.Err = fmt.Errorf("%w: system %d: %v", ErrPanic, in.ID, r)
			res.system = nil
			systemFailures.WithLabelValues("panic").Inc()
		}
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		res.Elapsed = time.Since(start)
		systemDuration.Observe(res.Elapsed.Seconds())
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	sys, err := e.interpret(ctx, in, scale, switches)
	if err != nil {
		slog.Error("system failed",
			slog.Int("system", in.ID),
			slog.String("error", err.Error()),
		)
		systemFailures.WithLabelValues("error").Inc()
		res.Err = err
		return res
	}
	res.system = sys
	res.Stats = sys.SIG.Stats()
	return res
}
