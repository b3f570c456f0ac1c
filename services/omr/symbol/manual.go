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

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/glyph"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// manualRule picks the kind of a forced Inter. A false result with no
// error means the shape is known but nothing is created.
type manualRule func(f *Factory, s shape.Shape) (sig.Kind, bool)

var manualRules [shape.NumShapes]manualRule

func registerManual(rule manualRule, shapes ...shape.Shape) {
	for _, s := range shapes {
		manualRules[s] = rule
	}
}

func kindRule(kind sig.Kind) manualRule {
	return func(*Factory, shape.Shape) (sig.Kind, bool) { return kind, true }
}

func switchedKind(s config.Switch, kind sig.Kind) manualRule {
	return func(f *Factory, _ shape.Shape) (sig.Kind, bool) {
		return kind, f.switches.Value(s)
	}
}

func init() {
	registerManual(func(*Factory, shape.Shape) (sig.Kind, bool) { return 0, false },
		shape.OttavaAlta, shape.OttavaBassa)
	registerManual(func(f *Factory, _ shape.Shape) (sig.Kind, bool) {
		if f.measuresBuilt {
			return sig.KindStaffBarline, true
		}
		return sig.KindBarline, true
	}, shape.ThinBarline, shape.ThickBarline)
	registerManual(kindRule(sig.KindStaffBarline), shape.DoubleBarline, shape.FinalBarline,
		shape.ReverseFinalBarline, shape.LeftRepeatSign, shape.RightRepeatSign,
		shape.BackToBackRepeatSign)
	registerManual(kindRule(sig.KindBeam), shape.Beam, shape.BeamSmall)
	registerManual(kindRule(sig.KindBeamHook), shape.BeamHook, shape.BeamHookSmall)
	registerManual(kindRule(sig.KindLedger), shape.Ledger)
	registerManual(kindRule(sig.KindStem), shape.Stem)
	registerManual(kindRule(sig.KindRepeatDot), shape.RepeatDot)
	registerManual(kindRule(sig.KindSlur), shape.Slur)
	registerManual(kindRule(sig.KindWord), shape.Text)
	registerManual(kindRule(sig.KindClef), shape.Clefs.Shapes()...)
	registerManual(kindRule(sig.KindKey), shape.Keys.Shapes()...)
	registerManual(kindRule(sig.KindTimeNumber), shape.PartialTimes.Shapes()...)
	registerManual(kindRule(sig.KindTimeWhole), shape.WholeTimes.Shapes()...)
	registerManual(kindRule(sig.KindHead), shape.Heads.Shapes()...)
	registerManual(kindRule(sig.KindAugmentationDot), shape.AugmentationDot)
	registerManual(kindRule(sig.KindFlag), shape.Flags.Shapes()...)
	registerManual(kindRule(sig.KindSmallFlag), shape.SmallFlags.Shapes()...)
	registerManual(kindRule(sig.KindRest), shape.Rests.Shapes()...)
	registerManual(kindRule(sig.KindTuplet), shape.Tuplets.Shapes()...)
	registerManual(kindRule(sig.KindAlter), shape.Accidentals.Shapes()...)
	registerManual(switchedKind(config.Articulations, sig.KindArticulation), shape.Articulations.Shapes()...)
	registerManual(kindRule(sig.KindMarker), shape.Markers.Shapes()...)
	registerManual(kindRule(sig.KindFermataArc), shape.FermataArcs.Shapes()...)
	registerManual(kindRule(sig.KindFermata), shape.Fermatas.Shapes()...)
	registerManual(kindRule(sig.KindFermataDot), shape.FermataDot)
	registerManual(kindRule(sig.KindCaesura), shape.Caesura)
	registerManual(kindRule(sig.KindBreathMark), shape.BreathMark)
	registerManual(kindRule(sig.KindDynamics), shape.Dynamics.Shapes()...)
	registerManual(kindRule(sig.KindWedge), shape.Wedges.Shapes()...)
	registerManual(kindRule(sig.KindOrnament), shape.Ornaments.Shapes()...)
	registerManual(kindRule(sig.KindArpeggiato), shape.Arpeggiato)
	registerManual(kindRule(sig.KindPedal), shape.Pedals.Shapes()...)
	registerManual(switchedKind(config.Fingerings, sig.KindFingering), shape.Digits.Shapes()...)
	registerManual(switchedKind(config.Pluckings, sig.KindPlucking), shape.Plucks.Shapes()...)
	registerManual(switchedKind(config.Frets, sig.KindFret), shape.Romans.Shapes()...)
	registerManual(switchedKind(config.Lyrics, sig.KindSentence), shape.Lyrics)
}

// ManualSupported reports whether CreateManual has a rule for the shape.
func ManualSupported(s shape.Shape) bool {
	return s.Valid() && manualRules[s] != nil
}

// CreateManual builds a user-forced Inter for a shape.
//
// Description:
//
//	The Inter gets the maximal grade and the manual flag. No geometric
//	search is made and the Inter is not inserted: the caller inserts it
//	and links it as requested by the user.
//
// Inputs:
//
//	s - The requested shape.
//	bounds - The location of the symbol.
//	staffID - The related staff, zero if none.
//
// Outputs:
//
//	*sig.Inter - The standalone Inter, nil when the shape is known but
//	disabled (ottavas, switched-off families).
//	error - Non-nil when no rule exists for the shape.
//
// Errors:
//
//	ErrUnsupportedShape - the shape has no manual rule
func (f *Factory) CreateManual(s shape.Shape, bounds geom.Rect, staffID int) (*sig.Inter, error) {
	in, err := f.build(s, bounds, nil, staffID, 1)
	if err != nil || in == nil {
		return nil, err
	}
	in.Manual = true
	return in, nil
}

// AddStructure inserts an Inter found by an earlier processing stage
// (stems, beams, heads, ledgers, barlines), keeping its grade.
//
// Errors:
//
//	ErrUnsupportedShape - the shape has no rule
//	sig errors - the graph refused the insertion
func (f *Factory) AddStructure(s shape.Shape, bounds geom.Rect, staffID int, grade float64) (*sig.Inter, error) {
	return f.addStructure(s, bounds, nil, staffID, grade)
}

// AddGlyphStructure is AddStructure for an Inter backed by pixels. Stem
// and barline ends follow the glyph line.
//
// Errors:
//
//	ErrUnsupportedShape - the shape has no rule
//	glyph.ErrNoPixel - a stem or barline glyph has no pixel
//	sig errors - the graph refused the insertion
func (f *Factory) AddGlyphStructure(s shape.Shape, g *glyph.Glyph, staffID int, grade float64) (*sig.Inter, error) {
	return f.addStructure(s, g.Bounds(), g, staffID, grade)
}

func (f *Factory) addStructure(s shape.Shape, bounds geom.Rect, g *glyph.Glyph, staffID int, grade float64) (*sig.Inter, error) {
	in, err := f.build(s, bounds, g, staffID, grade)
	if err != nil || in == nil {
		return nil, err
	}
	if _, err := f.sig.AddVertex(in); err != nil {
		return nil, err
	}
	return in, nil
}

func (f *Factory) build(s shape.Shape, bounds geom.Rect, g *glyph.Glyph, staffID int, grade float64) (*sig.Inter, error) {
	if !ManualSupported(s) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, s)
	}
	kind, ok := manualRules[s](f, s)
	if !ok {
		return nil, nil
	}
	in := sig.NewInter(kind, s, bounds, grade)
	in.Glyph = g
	var staff *sheet.Staff
	if staffID != 0 {
		st, err := f.system.Staff(staffID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoStaff, err)
		}
		staff = st
	}
	if err := decorate(in, staff); err != nil {
		return nil, err
	}
	return in, nil
}
