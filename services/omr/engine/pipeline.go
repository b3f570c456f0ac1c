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
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/input"
	"github.com/AleutianAI/AleutianOMR/services/omr/rhythm"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
	"github.com/AleutianAI/AleutianOMR/services/omr/symbol"
)

// columnGrade is the grade of barlines given as columns.
const columnGrade = 1.0

// measureKinds are the Inter kinds registered in measures.
var measureKinds = []sig.Kind{
	sig.KindHeadChord, sig.KindRestChord, sig.KindClef, sig.KindKey,
	sig.KindTuplet, sig.KindTimeWhole, sig.KindTimePair,
}

// interpret runs the system pipeline.
//
// Description:
//
//  1. Structure symbols are inserted as given, then user-forced ones
//     with the manual flag.
//  2. Barline columns become staff barlines, one per staff.
//  3. Heads are linked to stems and beams to stems.
//  4. Overlapping heads are resolved, then heads grouped in chords.
//  5. Measure stacks are built from the barline columns.
//  6. Evaluations go through the factory, by decreasing grade.
//  7. Rests are wrapped in chords, then late checks run.
//  8. Marks are linked to chords and measure content is registered.
//  9. Slots and voices are computed for every stack.
func (e *Engine) interpret(ctx context.Context, in *input.System, scale sheet.Scale, switches *config.ProcessingSwitches) (*sheet.System, error) {
	ctx, span := tracer.Start(ctx, "engine.interpret",
		trace.WithAttributes(
			attribute.Int("omr.system", in.ID),
			attribute.Int("omr.symbols", len(in.Symbols)),
			attribute.Int("omr.evaluations", len(in.Evaluations)),
			attribute.Int("omr.manual", len(in.Manual)),
		),
	)
	defer span.End()
	fail := func(step string, err error) (*sheet.System, error) {
		err = fmt.Errorf("system %d %s: %w", in.ID, step, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, step)
		return nil, err
	}

	sys, err := sheet.NewSystem(in.ID, in.SheetStaves(), in.SheetParts(),
		sig.WithMaxInters(e.cfg.Engine.MaxInters),
		sig.WithMaxRelations(e.cfg.Engine.MaxRelations),
	)
	if err != nil {
		return fail("setup", err)
	}
	f := symbol.NewFactory(sys, scale, e.cfg, switches.Child())

	for _, s := range in.Symbols {
		var err error
		if g := s.Glyph(); g != nil {
			_, err = f.AddGlyphStructure(s.ShapeValue(), g, s.Staff, s.Grade)
		} else {
			_, err = f.AddStructure(s.ShapeValue(), s.Box.Rect(), s.Staff, s.Grade)
		}
		if err != nil {
			return fail("structure", err)
		}
	}
	for _, m := range in.Manual {
		inter, err := f.CreateManual(m.ShapeValue(), m.Box.Rect(), m.Staff)
		if err != nil {
			return fail("manual", err)
		}
		if inter == nil {
			slog.Debug("forced shape disabled",
				slog.Int("system", in.ID),
				slog.String("shape", m.Shape),
			)
			continue
		}
		if _, err := sys.SIG.AddVertex(inter); err != nil {
			return fail("manual", err)
		}
	}
	columns, err := addColumns(sys, in.Barlines)
	if err != nil {
		return fail("barlines", err)
	}

	links, err := f.LinkHeads()
	if err != nil {
		return fail("head links", err)
	}
	if err := f.LinkBeams(); err != nil {
		return fail("beam links", err)
	}
	var removed sig.Outcome
	out, err := f.ResolveHeadOverlaps()
	removed.Merge(out)
	if err != nil {
		return fail("head overlaps", err)
	}
	if _, err := f.BuildHeadChords(); err != nil {
		return fail("head chords", err)
	}

	if err := sys.BuildStacks(columns, scale.ToPixelsInt(e.cfg.Engine.StackMargin)); err != nil {
		return fail("stacks", err)
	}
	f.SetMeasuresBuilt()

	evals := slices.Clone(in.Evaluations)
	slices.SortStableFunc(evals, func(a, b input.Evaluation) int {
		return cmp.Compare(b.Grade, a.Grade)
	})
	created := 0
	for _, ev := range evals {
		sev := symbol.Evaluation{Glyph: ev.Glyph(), Shape: ev.ShapeValue(), Grade: ev.Grade}
		if ev.Staff != 0 {
			st, err := sys.Staff(ev.Staff)
			if err != nil {
				slog.Warn("evaluation staff not in system, using closest",
					slog.Int("system", in.ID),
					slog.Int("staff", ev.Staff),
				)
			} else {
				sev.Staff = st
			}
		}
		inter, err := f.Create(sev)
		if err != nil {
			return fail("create", err)
		}
		if inter != nil {
			created++
		}
	}
	if _, err := f.BuildRestChords(); err != nil {
		return fail("rest chords", err)
	}

	out, err = f.LateChecks(ctx)
	removed.Merge(out)
	if err != nil {
		return fail("late checks", err)
	}
	if err := f.LinkChordMarks(); err != nil {
		return fail("chord marks", err)
	}
	for _, inter := range sys.SIG.Inters(measureKinds...) {
		sys.AssignInter(inter)
	}
	intersRemoved.Add(float64(len(removed.Removed)))

	if e.inspect != nil {
		e.inspect(sys)
	}
	if err := rhythm.New(e.cfg, scale).ProcessSystem(ctx, sys); err != nil {
		return fail("rhythm", err)
	}

	span.SetAttributes(
		attribute.Int("omr.head_links", links),
		attribute.Int("omr.created", created),
		attribute.Int("omr.removed", len(removed.Removed)),
		attribute.Int("omr.stacks", len(sys.Stacks)),
	)
	slog.Debug("system interpreted",
		slog.Int("system", in.ID),
		slog.Int("inters", sys.SIG.InterCount()),
		slog.Int("relations", sys.SIG.RelationCount()),
		slog.Int("stacks", len(sys.Stacks)),
		slog.Int("removed", len(removed.Removed)),
	)
	return sys, nil
}

// addColumns inserts one staff barline per staff for each column and
// groups them in part barlines, columns sorted by abscissa.
func addColumns(sys *sheet.System, cols []input.Column) ([][]*sheet.PartBarline, error) {
	cols = slices.Clone(cols)
	slices.SortStableFunc(cols, func(a, b input.Column) int { return cmp.Compare(a.X, b.X) })

	columns := make([][]*sheet.PartBarline, 0, len(cols))
	for _, col := range cols {
		column := make([]*sheet.PartBarline, 0, len(sys.Parts))
		for _, p := range sys.Parts {
			ids := make([]sig.InterID, 0, len(p.Staves))
			for _, sid := range p.Staves {
				st, err := sys.Staff(sid)
				if err != nil {
					return nil, err
				}
				box := geom.R(col.X, st.Top, col.BarWidth(), st.Bottom()-st.Top+1)
				bar := sig.NewInter(sig.KindStaffBarline, col.BarShape(), box, columnGrade)
				bar.Staff = st.ID
				c := bar.Center()
				bar.Top = geom.Pt(c.X, float64(box.Y))
				bar.Bottom = geom.Pt(c.X, float64(box.Bottom()-1))
				id, err := sys.SIG.AddVertex(bar)
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			}
			pb, err := sheet.NewPartBarline(ids...)
			if err != nil {
				return nil, err
			}
			column = append(column, pb)
		}
		columns = append(columns, column)
	}
	return columns, nil
}
