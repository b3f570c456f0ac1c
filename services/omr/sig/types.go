// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sig

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/glyph"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
)

// InterID identifies an Inter within its SIG. Zero means "not inserted".
type InterID int

// Kind is the structural category of an Inter.
type Kind int

const (
	// KindUnknown indicates an unrecognized inter kind.
	KindUnknown Kind = iota

	KindHead
	KindStem
	KindBeam
	KindBeamHook
	KindLedger
	KindFlag
	KindSmallFlag
	KindRest
	KindHeadChord
	KindRestChord
	KindClef
	KindKey
	KindTimeNumber
	KindTimeWhole
	KindTimePair
	KindAlter
	KindArticulation
	KindMarker
	KindFermataArc
	KindFermata
	KindFermataDot
	KindCaesura
	KindBreathMark
	KindDynamics
	KindWedge
	KindOrnament
	KindArpeggiato
	KindPedal
	KindFingering
	KindPlucking
	KindFret
	KindTuplet
	KindAugmentationDot
	KindRepeatDot
	KindBarline
	KindStaffBarline
	KindSlur
	KindSentence
	KindWord

	// NumKinds is the total number of kinds (for array sizing).
	NumKinds
)

// kindNames maps Kind values to their string representations.
var kindNames = [NumKinds]string{
	KindUnknown:         "unknown",
	KindHead:            "head",
	KindStem:            "stem",
	KindBeam:            "beam",
	KindBeamHook:        "beam_hook",
	KindLedger:          "ledger",
	KindFlag:            "flag",
	KindSmallFlag:       "small_flag",
	KindRest:            "rest",
	KindHeadChord:       "head_chord",
	KindRestChord:       "rest_chord",
	KindClef:            "clef",
	KindKey:             "key",
	KindTimeNumber:      "time_number",
	KindTimeWhole:       "time_whole",
	KindTimePair:        "time_pair",
	KindAlter:           "alter",
	KindArticulation:    "articulation",
	KindMarker:          "marker",
	KindFermataArc:      "fermata_arc",
	KindFermata:         "fermata",
	KindFermataDot:      "fermata_dot",
	KindCaesura:         "caesura",
	KindBreathMark:      "breath_mark",
	KindDynamics:        "dynamics",
	KindWedge:           "wedge",
	KindOrnament:        "ornament",
	KindArpeggiato:      "arpeggiato",
	KindPedal:           "pedal",
	KindFingering:       "fingering",
	KindPlucking:        "plucking",
	KindFret:            "fret",
	KindTuplet:          "tuplet",
	KindAugmentationDot: "augmentation_dot",
	KindRepeatDot:       "repeat_dot",
	KindBarline:         "barline",
	KindStaffBarline:    "staff_barline",
	KindSlur:            "slur",
	KindSentence:        "sentence",
	KindWord:            "word",
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if k >= 0 && k < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, bool) {
	for k := KindUnknown; k < NumKinds; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInter, string(b))
	}
	*k = v
	return nil
}

// IsEnsemble reports whether Inters of this kind group member Inters
// through Containment relations.
func (k Kind) IsEnsemble() bool {
	switch k {
	case KindHeadChord, KindRestChord, KindTimePair, KindSentence:
		return true
	default:
		return false
	}
}

// IsChord reports whether the kind is a head or rest chord.
func (k Kind) IsChord() bool {
	return k == KindHeadChord || k == KindRestChord
}

// Impacts is a named, weighted decomposition of a grade.
type Impacts struct {
	Names   []string  `json:"names" yaml:"names"`
	Weights []float64 `json:"weights" yaml:"weights"`
	Values  []float64 `json:"values" yaml:"values"`
}

// NewImpacts creates impacts with all values set to 1.
func NewImpacts(names []string, weights []float64) *Impacts {
	values := make([]float64, len(names))
	for i := range values {
		values[i] = 1
	}
	return &Impacts{Names: names, Weights: weights, Values: values}
}

// Set stores the value of impact i, clamped to [0,1].
func (im *Impacts) Set(i int, v float64) {
	im.Values[i] = clampGrade(v)
}

// Grade returns the weighted geometric mean of the impact values.
func (im *Impacts) Grade() float64 {
	var sumW, logSum float64
	for i, v := range im.Values {
		w := 1.0
		if i < len(im.Weights) {
			w = im.Weights[i]
		}
		if v <= 0 {
			return 0
		}
		sumW += w
		logSum += w * math.Log(v)
	}
	if sumW == 0 {
		return 0
	}
	return math.Exp(logSum / sumW)
}

func clampGrade(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Inter is one candidate interpretation of some page evidence.
//
// Common attributes are exported and may be set freely before insertion.
// Once inserted, identity and membership are managed by the owning SIG.
type Inter struct {
	// Kind is the structural category.
	Kind Kind

	// Shape is the shape tag, possibly a logical shape.
	Shape shape.Shape

	// Bounds is the bounding box in page pixels.
	Bounds geom.Rect

	// Staff is the ID of the related staff, zero when unknown.
	Staff int

	// Glyph is the underlying evidence, nil for manual or synthetic Inters.
	Glyph *glyph.Glyph

	// Impacts optionally details how the grade was computed.
	Impacts *Impacts

	// Mirror is the ID of an alternate reading of the same evidence.
	Mirror InterID

	// Manual is set for user-forced Inters.
	Manual bool

	// Abnormal is set while a structurally required relation is missing.
	Abnormal bool

	// Pitch is the staff pitch of heads, rests and dots (0 on middle line,
	// positive downward, one unit per line or space).
	Pitch int

	// Symbol is the printed text of dynamics, words and sentences.
	Symbol string

	// Top and Bottom are the end points of stems and barlines.
	Top    geom.Point
	Bottom geom.Point

	// Numerator and Denominator of time signatures and time numbers.
	Numerator   int
	Denominator int

	id    InterID
	grade float64

	// owner is the serial of the SIG holding this Inter, zero when standalone.
	owner   uint64
	removed bool
}

// NewInter creates a standalone Inter.
func NewInter(kind Kind, sh shape.Shape, bounds geom.Rect, grade float64) *Inter {
	return &Inter{
		Kind:   kind,
		Shape:  sh,
		Bounds: bounds,
		grade:  clampGrade(grade),
	}
}

// NewGlyphInter creates a standalone Inter whose bounds are the glyph bounds.
func NewGlyphInter(kind Kind, sh shape.Shape, g *glyph.Glyph, grade float64) *Inter {
	in := NewInter(kind, sh, geom.Rect{}, grade)
	if g != nil {
		in.Glyph = g
		in.Bounds = g.Bounds()
	}
	return in
}

// ID returns the ID assigned at insertion, zero before.
func (in *Inter) ID() InterID { return in.id }

// Grade returns the intrinsic grade in [0,1].
func (in *Inter) Grade() float64 {
	if in.Impacts != nil {
		return in.Impacts.Grade()
	}
	return in.grade
}

// SetGrade sets the intrinsic grade, clamped to [0,1], and drops impacts.
func (in *Inter) SetGrade(g float64) {
	in.Impacts = nil
	in.grade = clampGrade(g)
}

// IsGood reports whether the grade reaches the given threshold.
func (in *Inter) IsGood(threshold float64) bool {
	return in.Grade() >= threshold
}

// IsRemoved reports whether the Inter has been tombstoned.
func (in *Inter) IsRemoved() bool { return in.removed }

// InGraph reports whether the Inter currently belongs to a SIG.
func (in *Inter) InGraph() bool { return in.owner != 0 }

// Center returns the center of the bounding box.
func (in *Inter) Center() geom.Point {
	return in.Bounds.Center()
}

// String returns a short description for logs.
func (in *Inter) String() string {
	return fmt.Sprintf("%s#%d(%s)", in.Kind, in.id, in.Shape)
}

// KindOf returns the default Kind for a shape.
func KindOf(s shape.Shape) Kind {
	switch {
	case s.IsHead():
		return KindHead
	case s.IsRest():
		return KindRest
	case shape.Clefs.Contains(s):
		return KindClef
	case shape.Keys.Contains(s):
		return KindKey
	case shape.PartialTimes.Contains(s):
		return KindTimeNumber
	case shape.WholeTimes.Contains(s):
		return KindTimeWhole
	case shape.Flags.Contains(s):
		return KindFlag
	case shape.SmallFlags.Contains(s):
		return KindSmallFlag
	case shape.Accidentals.Contains(s):
		return KindAlter
	case shape.Articulations.Contains(s):
		return KindArticulation
	case shape.Markers.Contains(s):
		return KindMarker
	case shape.FermataArcs.Contains(s):
		return KindFermataArc
	case shape.Fermatas.Contains(s):
		return KindFermata
	case s.IsDynamics():
		return KindDynamics
	case shape.Wedges.Contains(s):
		return KindWedge
	case shape.Ornaments.Contains(s):
		return KindOrnament
	case shape.Tuplets.Contains(s):
		return KindTuplet
	case shape.Pedals.Contains(s):
		return KindPedal
	case shape.Digits.Contains(s):
		return KindFingering
	case shape.Plucks.Contains(s):
		return KindPlucking
	case shape.Romans.Contains(s):
		return KindFret
	case shape.Barlines.Contains(s):
		return KindStaffBarline
	}
	switch s {
	case shape.Stem:
		return KindStem
	case shape.Beam, shape.BeamSmall:
		return KindBeam
	case shape.BeamHook, shape.BeamHookSmall:
		return KindBeamHook
	case shape.Ledger:
		return KindLedger
	case shape.Caesura:
		return KindCaesura
	case shape.BreathMark:
		return KindBreathMark
	case shape.Arpeggiato:
		return KindArpeggiato
	case shape.AugmentationDot:
		return KindAugmentationDot
	case shape.RepeatDot:
		return KindRepeatDot
	case shape.FermataDot:
		return KindFermataDot
	case shape.Slur:
		return KindSlur
	case shape.Lyrics:
		return KindSentence
	case shape.Text:
		return KindWord
	default:
		return KindUnknown
	}
}
