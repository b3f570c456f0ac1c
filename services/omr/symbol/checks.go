// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbol

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.omr.symbol")

// LateChecks settles what could not be decided symbol by symbol.
//
// Description:
//
//	Runs, in order: deferred dot processing, complex dynamics swallowing,
//	time pair assembly and time column pruning. Must run after stacks are
//	built and chords exist.
//
// Outputs:
//
//	sig.Outcome - Every Inter removed by the checks.
//	error - Non-nil if the graph refused an operation.
func (f *Factory) LateChecks(ctx context.Context) (sig.Outcome, error) {
	_, span := tracer.Start(ctx, "symbol.LateChecks",
		trace.WithAttributes(
			attribute.Int("omr.system", f.system.ID),
			attribute.Int("omr.dots.pending", f.dots.Pending()),
		),
	)
	defer span.End()

	var total sig.Outcome
	fail := func(err error) (sig.Outcome, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "late checks failed")
		return total, err
	}

	dots, err := f.dots.Process()
	if err != nil {
		return fail(err)
	}

	out, err := f.SwallowComplexDynamics()
	total.Merge(out)
	if err != nil {
		return fail(err)
	}

	if _, err := f.BuildTimePairs(); err != nil {
		return fail(err)
	}

	out, err = f.HandleTimes()
	total.Merge(out)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.Int("omr.dots.created", dots),
		attribute.Int("omr.removed", len(total.Removed)),
	)
	return total, nil
}

// SwallowComplexDynamics removes the dynamics marks that are part of a
// longer one, such as the "p" and "f" read inside "sfp".
//
// Description:
//
//	Marks with more than one letter are handled by decreasing length,
//	ties by ID. Each of them removes every shorter mark whose center lies
//	in its box. A mark already swallowed swallows nothing.
func (f *Factory) SwallowComplexDynamics() (sig.Outcome, error) {
	var total sig.Outcome
	all := f.sig.Inters(sig.KindDynamics)

	var complexes []*sig.Inter
	for _, d := range all {
		if len(d.Symbol) > 1 {
			complexes = append(complexes, d)
		}
	}
	slices.SortStableFunc(complexes, func(a, b *sig.Inter) int {
		return cmp.Compare(len(b.Symbol), len(a.Symbol))
	})

	for _, big := range complexes {
		if big.IsRemoved() {
			continue
		}
		for _, small := range all {
			if small == big || small.IsRemoved() || len(small.Symbol) >= len(big.Symbol) {
				continue
			}
			if !big.Bounds.Contains(small.Center()) {
				continue
			}
			slog.Debug("dynamics swallowed",
				slog.Int("system", f.system.ID),
				slog.String("big", big.Symbol),
				slog.String("small", small.Symbol),
			)
			out, err := f.sig.Remove(small)
			if err != nil {
				return total, err
			}
			total.Merge(out)
		}
	}
	return total, nil
}

// BuildTimePairs assembles time numbers into time pairs: a numerator above
// the staff middle line over a denominator below it.
func (f *Factory) BuildTimePairs() ([]*sig.Inter, error) {
	var pairs []*sig.Inter
	numbers := f.sig.Inters(sig.KindTimeNumber)
	sig.Sort(numbers, sig.ByAbscissa)

	used := make(map[sig.InterID]bool)
	for _, num := range numbers {
		if num.Pitch >= 0 || len(f.sig.Ensembles(num)) > 0 {
			continue
		}
		var best *sig.Inter
		bestDx := math.MaxFloat64
		for _, den := range numbers {
			if den.Staff != num.Staff || den.Pitch <= 0 || used[den.ID()] {
				continue
			}
			if len(f.sig.Ensembles(den)) > 0 {
				continue
			}
			if common := num.Bounds.Intersection(den.Bounds); common.W <= 0 {
				continue
			}
			if dx := math.Abs(num.Center().X - den.Center().X); dx < bestDx {
				best, bestDx = den, dx
			}
		}
		if best == nil {
			continue
		}
		used[best.ID()] = true

		pair := sig.NewInter(sig.KindTimePair, 0, geom.Rect{}, (num.Grade()+best.Grade())/2)
		pair.Staff = num.Staff
		pair.Numerator = num.Numerator
		pair.Denominator = best.Numerator
		if _, err := f.sig.AddVertex(pair); err != nil {
			return pairs, err
		}
		for _, m := range []*sig.Inter{num, best} {
			if err := f.sig.AddMember(pair, m); err != nil {
				return pairs, err
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// TimeColumn is a time signature found on every staff of a stack.
type TimeColumn struct {
	// Times holds one whole or pair time signature per staff.
	Times []*sig.Inter

	// Bounds is the union of the time bounds.
	Bounds geom.Rect
}

// Numerator returns the column numerator.
func (c *TimeColumn) Numerator() int { return c.Times[0].Numerator }

// Denominator returns the column denominator.
func (c *TimeColumn) Denominator() int { return c.Times[0].Denominator }

// ColumnOf retrieves the valid time column among candidate time Inters.
// It keeps the best complete time per staff and returns nil unless every
// staff of the system has one and all agree.
func (f *Factory) ColumnOf(candidates []*sig.Inter) *TimeColumn {
	best := make(map[int]*sig.Inter)
	for _, t := range candidates {
		if t.IsRemoved() || (t.Kind != sig.KindTimeWhole && t.Kind != sig.KindTimePair) {
			continue
		}
		if cur, ok := best[t.Staff]; !ok || t.Grade() > cur.Grade() {
			best[t.Staff] = t
		}
	}
	col := &TimeColumn{}
	for _, st := range f.system.Staves {
		t, ok := best[st.ID]
		if !ok {
			return nil
		}
		if len(col.Times) > 0 &&
			(t.Numerator != col.Numerator() || t.Denominator != col.Denominator()) {
			return nil
		}
		col.Times = append(col.Times, t)
		col.Bounds = col.Bounds.Union(t.Bounds)
	}
	if len(col.Times) == 0 {
		return nil
	}
	return col
}

// PruneColumn deletes every other non-ensemble Inter that intersects the
// column box. Inters already removed by an earlier deletion of the same
// pass are skipped.
func (f *Factory) PruneColumn(col *TimeColumn) (sig.Outcome, error) {
	var total sig.Outcome
	keep := make(map[sig.InterID]bool)
	for _, t := range col.Times {
		keep[t.ID()] = true
		for _, m := range f.sig.Members(t) {
			keep[m.ID()] = true
		}
	}
	for _, in := range f.sig.IntersectedInters(col.Bounds, sig.ByID) {
		if in.Kind.IsEnsemble() || keep[in.ID()] || in.IsRemoved() {
			continue
		}
		slog.Debug("time column pruning",
			slog.Int("system", f.system.ID),
			slog.String("inter", in.String()),
		)
		out, err := f.sig.Remove(in)
		if err != nil {
			if errors.Is(err, sig.ErrInterRemoved) {
				continue
			}
			return total, err
		}
		total.Merge(out)
	}
	return total, nil
}

// HandleTimes checks the time signatures found outside staff headers.
//
// Description:
//
//	Times are grouped by the stack containing them. For each stack a
//	valid column is looked for; when found, its box is pruned of any other
//	Inter.
func (f *Factory) HandleTimes() (sig.Outcome, error) {
	var total sig.Outcome
	byStack := make(map[*sheet.MeasureStack][]*sig.Inter)
	for _, t := range f.sig.Inters(sig.KindTimeWhole, sig.KindTimePair, sig.KindTimeNumber) {
		staff := f.system.StaffOf(t)
		if staff == nil || t.Center().X < float64(staff.HeaderStop) {
			continue
		}
		if stack := f.system.StackAt(t.Center().X); stack != nil {
			byStack[stack] = append(byStack[stack], t)
		}
	}
	for _, stack := range f.system.Stacks {
		times, ok := byStack[stack]
		if !ok {
			continue
		}
		col := f.ColumnOf(times)
		if col == nil {
			continue
		}
		out, err := f.PruneColumn(col)
		total.Merge(out)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
