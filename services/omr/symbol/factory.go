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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/glyph"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Evaluation is one classifier result for one glyph.
type Evaluation struct {
	// Glyph is the evaluated evidence.
	Glyph *glyph.Glyph

	// Shape is the shape assigned by the classifier.
	Shape shape.Shape

	// Grade is the classifier confidence in [0,1].
	Grade float64

	// Staff is the closest staff, nil when unknown.
	Staff *sheet.Staff
}

// Bounds returns the glyph bounds.
func (ev Evaluation) Bounds() geom.Rect {
	if ev.Glyph == nil {
		return geom.Rect{}
	}
	return ev.Glyph.Bounds()
}

// autoRule builds, inserts and links the Inters of one evaluation.
// A nil Inter with a nil error means nothing was created.
type autoRule func(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error)

// automaticRules maps each shape to its construction rule. Shapes without
// a rule are logged and skipped.
var automaticRules [shape.NumShapes]autoRule

func registerAuto(rule autoRule, shapes ...shape.Shape) {
	for _, s := range shapes {
		automaticRules[s] = rule
	}
}

func init() {
	registerAuto(nothing, shape.Clutter, shape.OttavaAlta, shape.OttavaBassa)
	registerAuto(deferDot, shape.DotSet)
	registerAuto(staffSymbol(sig.KindClef), shape.Clefs.Shapes()...)
	registerAuto(staffSymbol(sig.KindKey), shape.Keys.Shapes()...)
	registerAuto(timeNumber, shape.TimeTwo, shape.TimeThree, shape.TimeFour, shape.TimeFive,
		shape.TimeSix, shape.TimeSeven, shape.TimeEight, shape.TimeNine, shape.TimeTwelve,
		shape.TimeSixteen)
	registerAuto(wholeTime, shape.WholeTimes.Shapes()...)
	registerAuto(flag(sig.KindFlag), shape.Flags.Shapes()...)
	registerAuto(flag(sig.KindSmallFlag), shape.SmallFlags.Shapes()...)
	registerAuto(rest, shape.Rests.Shapes()...)
	registerAuto(staffSymbol(sig.KindTuplet), shape.Tuplets.Shapes()...)
	registerAuto(alter, shape.Accidentals.Shapes()...)
	registerAuto(switched(config.Articulations, staffSymbol(sig.KindArticulation)), shape.Articulations.Shapes()...)
	registerAuto(marker, shape.Markers.Shapes()...)
	registerAuto(staffSymbol(sig.KindFermataArc), shape.FermataArcs.Shapes()...)
	registerAuto(staffSymbol(sig.KindCaesura), shape.Caesura)
	registerAuto(staffSymbol(sig.KindBreathMark), shape.BreathMark)
	registerAuto(staffSymbol(sig.KindDynamics), shape.Dynamics.Shapes()...)
	registerAuto(staffSymbol(sig.KindWedge), shape.Wedges.Shapes()...)
	registerAuto(staffSymbol(sig.KindOrnament), shape.Ornaments.Shapes()...)
	registerAuto(staffSymbol(sig.KindArpeggiato), shape.Arpeggiato)
	registerAuto(staffSymbol(sig.KindPedal), shape.Pedals.Shapes()...)
	registerAuto(switched(config.Fingerings, staffSymbol(sig.KindFingering)), shape.Digits.Shapes()...)
	registerAuto(switched(config.Pluckings, staffSymbol(sig.KindPlucking)), shape.Plucks.Shapes()...)
	registerAuto(switched(config.Frets, staffSymbol(sig.KindFret)), shape.Romans.Shapes()...)
}

// Factory creates the Inters of one system.
type Factory struct {
	system   *sheet.System
	sig      *sig.SIG
	scale    sheet.Scale
	cfg      config.Config
	switches *config.ProcessingSwitches
	dots     *DotFactory

	// measuresBuilt is set once stacks exist, it changes how manual
	// barlines are created.
	measuresBuilt bool
}

// NewFactory creates a factory for the system. A nil switches value
// means the defaults.
func NewFactory(system *sheet.System, scale sheet.Scale, cfg config.Config, switches *config.ProcessingSwitches) *Factory {
	if switches == nil {
		switches = config.DefaultSwitches()
	}
	if scale.Interline <= 0 {
		scale.Interline = cfg.Scale.DefaultInterline
	}
	f := &Factory{
		system:   system,
		sig:      system.SIG,
		scale:    scale,
		cfg:      cfg,
		switches: switches,
	}
	f.dots = newDotFactory(f)
	return f
}

// System returns the system the factory writes to.
func (f *Factory) System() *sheet.System { return f.system }

// SIG returns the system graph.
func (f *Factory) SIG() *sig.SIG { return f.sig }

// Dots returns the dot factory holding deferred dot evaluations.
func (f *Factory) Dots() *DotFactory { return f.dots }

// SetMeasuresBuilt records that measure stacks now exist.
func (f *Factory) SetMeasuresBuilt() { f.measuresBuilt = true }

// pixels converts an interline fraction to pixels.
func (f *Factory) pixels(fraction float64) float64 {
	return f.scale.ToPixels(fraction)
}

// Create builds the Inters for one evaluation.
//
// Description:
//
//	Looks up the automatic rule of the evaluated shape and applies it with
//	the evaluation grade scaled by the intrinsic ratio. Rules may search
//	and link neighbors (stems for flags, heads for accidentals, barlines
//	for markers) and may reject the symbol. Dots are deferred until
//	LateChecks.
//
// Outputs:
//
//	*sig.Inter - The created Inter, already inserted, or nil.
//	error - Non-nil only if the graph refused an insertion.
//
// Thread Safety:
//
//	Not safe for concurrent use.
func (f *Factory) Create(ev Evaluation) (*sig.Inter, error) {
	if ev.Grade < f.cfg.Factory.MinGrade {
		return nil, nil
	}
	if !ev.Shape.Valid() {
		slog.Warn("No support yet", slog.Int("shape", int(ev.Shape)))
		return nil, nil
	}
	rule := automaticRules[ev.Shape]
	if rule == nil {
		slog.Warn("No support yet",
			slog.Int("system", f.system.ID),
			slog.String("shape", ev.Shape.String()),
		)
		return nil, nil
	}
	if ev.Staff == nil && ev.Glyph != nil {
		c, err := ev.Glyph.Centroid()
		if err != nil {
			return nil, fmt.Errorf("%s evaluation at %s: %w", ev.Shape, ev.Bounds(), err)
		}
		ev.Staff = f.system.ClosestStaff(c)
	}
	return rule(f, ev, ev.Grade*f.cfg.Factory.IntrinsicRatio)
}

// add decorates an Inter with staff information and inserts it.
func (f *Factory) add(in *sig.Inter, staff *sheet.Staff) (*sig.Inter, error) {
	if err := decorate(in, staff); err != nil {
		return nil, err
	}
	if _, err := f.sig.AddVertex(in); err != nil {
		return nil, err
	}
	return in, nil
}

// decorate fills the staff-dependent and shape-dependent payload.
//
// Stem and barline ends follow the line fitted through the glyph pixels
// when a glyph is present, the vertical box axis otherwise.
//
// Errors:
//
//	glyph.ErrNoPixel - a stem or barline glyph has no pixel
func decorate(in *sig.Inter, staff *sheet.Staff) error {
	if staff != nil {
		in.Staff = staff.ID
		switch in.Kind {
		case sig.KindHead, sig.KindRest, sig.KindAugmentationDot, sig.KindRepeatDot,
			sig.KindAlter, sig.KindClef, sig.KindTimeNumber:
			in.Pitch = staff.PitchAt(in.Center().Y)
		}
	}
	switch in.Kind {
	case sig.KindDynamics:
		in.Symbol = in.Shape.DynamicsSymbol()
	case sig.KindTimeNumber:
		if n, ok := in.Shape.TimeNumber(); ok {
			in.Numerator = n
		}
	case sig.KindTimeWhole:
		if num, den, ok := in.Shape.TimeValue(); ok {
			in.Numerator, in.Denominator = num, den
		}
	case sig.KindStem, sig.KindStaffBarline, sig.KindBarline:
		if in.Top != (geom.Point{}) || in.Bottom != (geom.Point{}) {
			return nil
		}
		top, bottom := float64(in.Bounds.Y), float64(in.Bounds.Bottom()-1)
		if in.Glyph == nil {
			c := in.Center()
			in.Top, in.Bottom = geom.Pt(c.X, top), geom.Pt(c.X, bottom)
			return nil
		}
		p1, p2, err := glyphEnds(in.Glyph, top, bottom)
		if err != nil {
			return fmt.Errorf("%s at %s: %w", in.Shape, in.Bounds, err)
		}
		in.Top, in.Bottom = p1, p2
	}
	return nil
}

// glyphEnds returns the points of the glyph line at ordinates y1 and y2.
func glyphEnds(g *glyph.Glyph, y1, y2 float64) (geom.Point, geom.Point, error) {
	l, err := g.Line()
	if err != nil {
		return geom.Point{}, geom.Point{}, err
	}
	if !l.Vertical {
		c := g.Center()
		return geom.Pt(c.X, y1), geom.Pt(c.X, y2), nil
	}
	slope, err := g.Slope()
	if err != nil {
		return geom.Point{}, geom.Point{}, err
	}
	xAt := func(y float64) float64 { return l.P1.X + slope*(y-l.P1.Y) }
	return geom.Pt(xAt(y1), y1), geom.Pt(xAt(y2), y2), nil
}

func nothing(*Factory, Evaluation, float64) (*sig.Inter, error) {
	return nil, nil
}

func deferDot(f *Factory, ev Evaluation, _ float64) (*sig.Inter, error) {
	f.dots.Defer(ev)
	return nil, nil
}

// staffSymbol returns a rule creating a plain Inter of the given kind.
func staffSymbol(kind sig.Kind) autoRule {
	return func(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
		return f.add(sig.NewGlyphInter(kind, ev.Shape, ev.Glyph, grade), ev.Staff)
	}
}

// switched gates a rule behind a processing switch.
func switched(s config.Switch, rule autoRule) autoRule {
	return func(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
		if !f.switches.Value(s) {
			return nil, nil
		}
		return rule(f, ev, grade)
	}
}

func timeNumber(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
	if ev.Staff == nil {
		return nil, nil
	}
	return f.add(sig.NewGlyphInter(sig.KindTimeNumber, ev.Shape, ev.Glyph, grade), ev.Staff)
}

func wholeTime(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
	if ev.Staff == nil {
		return nil, nil
	}
	return f.add(sig.NewGlyphInter(sig.KindTimeWhole, ev.Shape, ev.Glyph, grade), ev.Staff)
}

// flag returns a rule creating a flag only when a stem is found for it.
func flag(kind sig.Kind) autoRule {
	return func(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
		in := sig.NewGlyphInter(kind, ev.Shape, ev.Glyph, grade)
		stem, relGrade := f.lookupFlagStem(in)
		if stem == nil {
			return nil, nil
		}
		if _, err := f.add(in, ev.Staff); err != nil {
			return nil, err
		}
		if _, err := f.sig.AddEdge(in, stem, sig.NewRelation(sig.RelFlagStem, relGrade)); err != nil {
			return nil, err
		}
		return in, nil
	}
}

// rest creates a rest unless it collides with a head chord.
func rest(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
	box := ev.Bounds()
	if chords := f.sig.IntersectedInters(box, sig.ByID, sig.KindHeadChord); len(chords) > 0 {
		slog.Debug("rest rejected by head chord",
			slog.Int("system", f.system.ID),
			slog.String("chord", chords[0].String()),
		)
		return nil, nil
	}
	return f.add(sig.NewGlyphInter(sig.KindRest, ev.Shape, ev.Glyph, grade), ev.Staff)
}

// alter creates an accidental and links it to the heads on its right.
func alter(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
	in, err := f.add(sig.NewGlyphInter(sig.KindAlter, ev.Shape, ev.Glyph, grade), ev.Staff)
	if err != nil {
		return nil, err
	}
	if err := f.linkAlter(in); err != nil {
		return nil, err
	}
	return in, nil
}

// marker creates a coda, segno or capo marker and links it to a barline.
func marker(f *Factory, ev Evaluation, grade float64) (*sig.Inter, error) {
	in, err := f.add(sig.NewGlyphInter(sig.KindMarker, ev.Shape, ev.Glyph, grade), ev.Staff)
	if err != nil {
		return nil, err
	}
	if err := f.linkMarker(in); err != nil {
		return nil, err
	}
	return in, nil
}
