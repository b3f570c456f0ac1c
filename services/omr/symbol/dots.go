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
	"log/slog"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// DotFactory holds dot evaluations until enough context exists to tell
// what each dot means.
type DotFactory struct {
	f        *Factory
	deferred []Evaluation
}

func newDotFactory(f *Factory) *DotFactory {
	return &DotFactory{f: f}
}

// Defer records a dot evaluation for Process.
func (d *DotFactory) Defer(ev Evaluation) {
	d.deferred = append(d.deferred, ev)
}

// Pending returns the number of dots not processed yet.
func (d *DotFactory) Pending() int { return len(d.deferred) }

// dotReading is one possible meaning of a dot.
type dotReading struct {
	kind    sig.Kind
	shape   shape.Shape
	grade   float64
	relKind sig.RelationKind
	target  *sig.Inter
}

// Process classifies every deferred dot and creates its Inter.
//
// Description:
//
//	Dots are handled by abscissa, so that a second augmentation dot finds
//	the first one already created. Each dot may be read as a repeat dot
//	(next to a staff barline, in the two middle spaces), a fermata dot
//	(inside a fermata arc), an augmentation dot (right of a note or of a
//	first dot) or a staccato (above or below a head chord). Only the best
//	graded reading is created, linked to its target. On equal grades the
//	first reading in that order wins.
//
// Outputs:
//
//	int - The number of Inters created.
//	error - Non-nil if the graph refused an insertion.
func (d *DotFactory) Process() (int, error) {
	evs := d.deferred
	d.deferred = nil
	slices.SortStableFunc(evs, func(a, b Evaluation) int {
		ba, bb := a.Bounds(), b.Bounds()
		return cmp.Or(cmp.Compare(ba.X, bb.X), cmp.Compare(ba.Y, bb.Y))
	})

	created := 0
	for _, ev := range evs {
		r, ok := bestReading(d.readings(ev))
		if !ok {
			slog.Debug("dot without reading",
				slog.Int("system", d.f.system.ID),
				slog.String("bounds", ev.Bounds().String()),
			)
			continue
		}
		in := sig.NewGlyphInter(r.kind, r.shape, ev.Glyph, r.grade)
		if _, err := d.f.add(in, ev.Staff); err != nil {
			return created, err
		}
		if _, err := d.f.sig.AddEdge(in, r.target, sig.NewRelation(r.relKind, r.grade)); err != nil {
			return created, err
		}
		created++
	}

	if err := d.pairRepeatDots(); err != nil {
		return created, err
	}
	return created, nil
}

// bestReading returns the reading with the highest grade, the first one
// on ties.
func bestReading(readings []dotReading) (dotReading, bool) {
	if len(readings) == 0 {
		return dotReading{}, false
	}
	best := readings[0]
	for _, r := range readings[1:] {
		if r.grade > best.grade {
			best = r
		}
	}
	return best, true
}

func (d *DotFactory) readings(ev Evaluation) []dotReading {
	var out []dotReading
	if r, ok := d.repeatReading(ev); ok {
		out = append(out, r)
	}
	if r, ok := d.fermataReading(ev); ok {
		out = append(out, r)
	}
	if r, ok := d.augmentationReading(ev); ok {
		out = append(out, r)
	}
	if d.f.switches.Value(config.Articulations) {
		if r, ok := d.staccatoReading(ev); ok {
			out = append(out, r)
		}
	}
	return out
}

func (d *DotFactory) repeatReading(ev Evaluation) (dotReading, bool) {
	if ev.Staff == nil {
		return dotReading{}, false
	}
	c := ev.Bounds().Center()
	if abs(ev.Staff.PitchAt(c.Y)) != 1 {
		return dotReading{}, false
	}
	maxDx := d.f.pixels(d.f.cfg.Dots.MaxRepeatDotDx)
	var best *sig.Inter
	bestDx := math.MaxFloat64
	for _, bar := range d.f.sig.Inters(sig.KindStaffBarline) {
		if bar.Staff != ev.Staff.ID {
			continue
		}
		if dx := horizontalGap(ev.Bounds(), bar.Bounds); dx <= maxDx && dx < bestDx {
			best, bestDx = bar, dx
		}
	}
	if best == nil {
		return dotReading{}, false
	}
	return dotReading{
		kind:    sig.KindRepeatDot,
		shape:   shape.RepeatDot,
		grade:   d.scaled(ev, d.f.cfg.Dots.RepeatGrade*(1-bestDx/maxDx)),
		relKind: sig.RelRepeatDotBar,
		target:  best,
	}, true
}

func (d *DotFactory) fermataReading(ev Evaluation) (dotReading, bool) {
	c := ev.Bounds().Center()
	for _, arc := range d.f.sig.IntersectedInters(ev.Bounds(), sig.ByID, sig.KindFermataArc) {
		if arc.Bounds.Contains(c) {
			return dotReading{
				kind:    sig.KindFermataDot,
				shape:   shape.FermataDot,
				grade:   d.scaled(ev, d.f.cfg.Dots.FermataGrade),
				relKind: sig.RelFermataDot,
				target:  arc,
			}, true
		}
	}
	return dotReading{}, false
}

func (d *DotFactory) augmentationReading(ev Evaluation) (dotReading, bool) {
	dc := d.f.cfg.Dots
	maxDx := d.f.pixels(dc.MaxAugmentationDx)
	maxDy := d.f.pixels(dc.MaxAugmentationDy)
	box := ev.Bounds()
	c := box.Center()

	lookup := geom.R(box.X-int(math.Ceil(maxDx)), int(c.Y-maxDy), int(math.Ceil(maxDx)), int(math.Ceil(2*maxDy))+1)
	var best *sig.Inter
	bestGrade := 0.0
	for _, target := range d.f.sig.IntersectedInters(lookup, sig.ByAbscissa,
		sig.KindHead, sig.KindRest, sig.KindAugmentationDot) {
		dx := float64(box.X - target.Bounds.Right())
		if dx < 0 {
			continue
		}
		limit := maxDx
		if target.Kind == sig.KindAugmentationDot {
			limit = d.f.pixels(dc.MaxDoubleDotDx)
		}
		dy := math.Abs(target.Center().Y - c.Y)
		impacts := sig.NewImpacts([]string{"dx", "dy"}, []float64{1, 1})
		impacts.Set(0, 1-dx/limit)
		impacts.Set(1, 1-dy/maxDy)
		if g := impacts.Grade(); g > bestGrade {
			best, bestGrade = target, g
		}
	}
	if best == nil {
		return dotReading{}, false
	}
	rel := sig.RelAugmentation
	if best.Kind == sig.KindAugmentationDot {
		rel = sig.RelDoubleDot
	}
	if bestGrade < rel.DefaultMinGrade() {
		return dotReading{}, false
	}
	return dotReading{
		kind:    sig.KindAugmentationDot,
		shape:   shape.AugmentationDot,
		grade:   d.scaled(ev, dc.AugmentationGrade*bestGrade),
		relKind: rel,
		target:  best,
	}, true
}

func (d *DotFactory) staccatoReading(ev Evaluation) (dotReading, bool) {
	maxDy := d.f.pixels(d.f.cfg.Dots.MaxStaccatoDy)
	box := ev.Bounds()
	c := box.Center()
	var best *sig.Inter
	bestDy := math.MaxFloat64
	for _, chord := range d.f.sig.Inters(sig.KindHeadChord) {
		if c.X < float64(chord.Bounds.X) || c.X >= float64(chord.Bounds.Right()) {
			continue
		}
		if chord.Bounds.Contains(c) {
			continue
		}
		if dy := verticalGap(box, chord.Bounds); dy <= maxDy && dy < bestDy {
			best, bestDy = chord, dy
		}
	}
	if best == nil {
		return dotReading{}, false
	}
	return dotReading{
		kind:    sig.KindArticulation,
		shape:   shape.Staccato,
		grade:   d.scaled(ev, d.f.cfg.Dots.StaccatoGrade*(1-bestDy/maxDy)),
		relKind: sig.RelArticulationChord,
		target:  best,
	}, true
}

func (d *DotFactory) scaled(ev Evaluation, ratio float64) float64 {
	return ev.Grade * d.f.cfg.Factory.IntrinsicRatio * ratio
}

// pairRepeatDots links the upper and lower repeat dots of one barline.
func (d *DotFactory) pairRepeatDots() error {
	dots := d.f.sig.Inters(sig.KindRepeatDot)
	for i, a := range dots {
		for _, b := range dots[i+1:] {
			if a.Staff != b.Staff || a.Pitch != -b.Pitch {
				continue
			}
			if math.Abs(a.Center().X-b.Center().X) > d.f.pixels(0.5) {
				continue
			}
			if d.f.sig.RelationBetween(a, b, sig.RelRepeatDotPair) != nil {
				continue
			}
			if _, err := d.f.sig.AddEdge(a, b, sig.NewRelation(sig.RelRepeatDotPair, 1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// horizontalGap returns the horizontal distance between two boxes, zero
// when they overlap horizontally.
func horizontalGap(a, b geom.Rect) float64 {
	switch {
	case a.Right() <= b.X:
		return float64(b.X - a.Right())
	case b.Right() <= a.X:
		return float64(a.X - b.Right())
	default:
		return 0
	}
}
