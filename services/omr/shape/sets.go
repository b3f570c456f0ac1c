// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package shape

import "github.com/AleutianAI/AleutianOMR/services/omr/rational"

// Set is an immutable collection of shapes with O(1) membership.
type Set struct {
	name    string
	members [NumShapes]bool
	list    []Shape
}

// NewSet builds a named set. Duplicates are ignored.
func NewSet(name string, shapes ...Shape) *Set {
	s := &Set{name: name}
	for _, sh := range shapes {
		if sh < 0 || sh >= NumShapes || s.members[sh] {
			continue
		}
		s.members[sh] = true
		s.list = append(s.list, sh)
	}
	return s
}

// Name returns the set name.
func (s *Set) Name() string { return s.name }

// Contains reports membership.
func (s *Set) Contains(sh Shape) bool {
	return sh >= 0 && sh < NumShapes && s.members[sh]
}

// Shapes returns the members in declaration order.
func (s *Set) Shapes() []Shape {
	out := make([]Shape, len(s.list))
	copy(out, s.list)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.list) }

// rangeOf returns every shape from first to last inclusive.
func rangeOf(first, last Shape) []Shape {
	var out []Shape
	for s := first; s <= last; s++ {
		out = append(out, s)
	}
	return out
}

// Shape families.
var (
	Clefs = NewSet("Clefs", rangeOf(GClef, PercussionClef)...)

	Accidentals = NewSet("Accidentals", Flat, Natural, Sharp, DoubleSharp, DoubleFlat)

	// PartialTimes are single numbers, stacked in pairs.
	PartialTimes = NewSet("PartialTimes", rangeOf(TimeZero, TimeSixteen)...)

	// WholeTimes are complete time signatures in one glyph.
	WholeTimes = NewSet("WholeTimes", rangeOf(CommonTime, TimeSixEight)...)

	Times = NewSet("Times", append(rangeOf(TimeZero, TimeSixteen), rangeOf(CommonTime, TimeSixEight)...)...)

	Rests = NewSet("Rests", LongRest, BreveRest, WholeRest, HalfRest, QuarterRest, EighthRest,
		Rest16th, Rest32nd, Rest64th, Rest128th)

	Flags = NewSet("Flags", rangeOf(Flag1, Flag5Up)...)

	FlagsUp = NewSet("FlagsUp", Flag1Up, Flag2Up, Flag3Up, Flag4Up, Flag5Up)

	SmallFlags = NewSet("SmallFlags", SmallFlag, SmallFlagSlash)

	// Heads are every note head shape, stem-based or not.
	Heads = NewSet("Heads", NoteheadBlack, NoteheadBlackSmall, NoteheadVoid, NoteheadVoidSmall,
		Breve, WholeNote, WholeNoteSmall)

	// StemHeads are the heads that require a stem.
	StemHeads = NewSet("StemHeads", NoteheadBlack, NoteheadBlackSmall, NoteheadVoid, NoteheadVoidSmall)

	SmallNotes = NewSet("SmallNotes", NoteheadBlackSmall, NoteheadVoidSmall, WholeNoteSmall)

	Articulations = NewSet("Articulations", Accent, Tenuto, Staccato, Staccatissimo, StrongAccent)

	Markers = NewSet("Markers", Coda, Segno, DalSegno, DaCapo)

	FermataArcs = NewSet("FermataArcs", FermataArc, FermataArcBelow)

	Fermatas = NewSet("Fermatas", Fermata, FermataBelow)

	Dynamics = NewSet("Dynamics", rangeOf(DynamicsP, DynamicsSFZ)...)

	Wedges = NewSet("Wedges", Crescendo, Diminuendo)

	Ornaments = NewSet("Ornaments", GraceNoteSlash, GraceNote, Trill, Turn, TurnInverted, TurnUp,
		TurnSlash, Mordent, MordentInverted)

	Tuplets = NewSet("Tuplets", TupletThree, TupletSix)

	Pedals = NewSet("Pedals", PedalMark, PedalUpMark)

	Digits = NewSet("Digits", rangeOf(Digit0, Digit5)...)

	Romans = NewSet("Romans", rangeOf(RomanI, RomanXII)...)

	Plucks = NewSet("Plucks", rangeOf(PluckP, PluckA)...)

	FlatKeys = NewSet("FlatKeys", rangeOf(KeyFlat7, KeyFlat1)...)

	SharpKeys = NewSet("SharpKeys", rangeOf(KeySharp1, KeySharp7)...)

	Keys = NewSet("Keys", rangeOf(KeyFlat7, KeySharp7)...)

	// Barlines are the staff-level barline shapes.
	Barlines = NewSet("Barlines", ThinBarline, ThickBarline, DoubleBarline, FinalBarline,
		ReverseFinalBarline, LeftRepeatSign, RightRepeatSign, BackToBackRepeatSign)

	Dots = NewSet("Dots", RepeatDot, AugmentationDot, FermataDot, Staccato)
)

// IsHead reports whether s is a note head.
func (s Shape) IsHead() bool { return Heads.Contains(s) }

// IsStemHead reports whether s is a head that needs a stem.
func (s Shape) IsStemHead() bool { return StemHeads.Contains(s) }

// IsRest reports whether s is a rest.
func (s Shape) IsRest() bool { return Rests.Contains(s) }

// IsSmall reports whether s is a cue or grace size head.
func (s Shape) IsSmall() bool { return SmallNotes.Contains(s) }

// IsDynamics reports whether s is a dynamics mark.
func (s Shape) IsDynamics() bool { return Dynamics.Contains(s) }

// IsSharpBased reports whether s is a sharp or a sharp key.
func (s Shape) IsSharpBased() bool { return s == Sharp || SharpKeys.Contains(s) }

// IsFlatBased reports whether s is a flat or a flat key.
func (s Shape) IsFlatBased() bool { return s == Flat || FlatKeys.Contains(s) }

// dynamicsSymbols holds the letters printed for each dynamics shape.
var dynamicsSymbols = map[Shape]string{
	DynamicsP:   "p",
	DynamicsPP:  "pp",
	DynamicsMP:  "mp",
	DynamicsF:   "f",
	DynamicsFF:  "ff",
	DynamicsMF:  "mf",
	DynamicsFP:  "fp",
	DynamicsSF:  "sf",
	DynamicsSFZ: "sfz",
}

// DynamicsSymbol returns the printed letters of a dynamics shape, "" otherwise.
func (s Shape) DynamicsSymbol() string {
	return dynamicsSymbols[s]
}

// FlagValue returns the number of beams a flag stands for, 0 otherwise.
func (s Shape) FlagValue() int {
	switch s {
	case Flag1, Flag1Up:
		return 1
	case Flag2, Flag2Up:
		return 2
	case Flag3, Flag3Up:
		return 3
	case Flag4, Flag4Up:
		return 4
	case Flag5, Flag5Up:
		return 5
	case SmallFlag, SmallFlagSlash:
		return 1
	default:
		return 0
	}
}

// TimeNumber returns the value of a partial time shape.
func (s Shape) TimeNumber() (int, bool) {
	switch s {
	case TimeZero:
		return 0, true
	case TimeOne:
		return 1, true
	case TimeTwo:
		return 2, true
	case TimeThree:
		return 3, true
	case TimeFour:
		return 4, true
	case TimeFive:
		return 5, true
	case TimeSix:
		return 6, true
	case TimeSeven:
		return 7, true
	case TimeEight:
		return 8, true
	case TimeNine:
		return 9, true
	case TimeTwelve:
		return 12, true
	case TimeSixteen:
		return 16, true
	default:
		return 0, false
	}
}

// TimeValue returns numerator and denominator of a whole time shape.
func (s Shape) TimeValue() (num, den int, ok bool) {
	switch s {
	case CommonTime, TimeFourFour:
		return 4, 4, true
	case CutTime, TimeTwoTwo:
		return 2, 2, true
	case TimeTwoFour:
		return 2, 4, true
	case TimeThreeFour:
		return 3, 4, true
	case TimeFiveFour:
		return 5, 4, true
	case TimeThreeEight:
		return 3, 8, true
	case TimeSixEight:
		return 6, 8, true
	default:
		return 0, 0, false
	}
}

// KeyFifths returns the signed number of fifths of a key shape.
func (s Shape) KeyFifths() (int, bool) {
	switch {
	case SharpKeys.Contains(s):
		return int(s-KeySharp1) + 1, true
	case FlatKeys.Contains(s):
		return -int(KeyFlat1-s) - 1, true
	default:
		return 0, false
	}
}

// Alteration returns the semitone impact of an accidental.
func (s Shape) Alteration() (int, bool) {
	switch s {
	case Sharp:
		return 1, true
	case DoubleSharp:
		return 2, true
	case Flat:
		return -1, true
	case DoubleFlat:
		return -2, true
	case Natural:
		return 0, true
	default:
		return 0, false
	}
}

// HeadDuration returns the undotted, unflagged duration of a head.
func (s Shape) HeadDuration() (rational.Rational, bool) {
	switch s {
	case Breve:
		return rational.Int(2), true
	case WholeNote, WholeNoteSmall:
		return rational.One, true
	case NoteheadVoid, NoteheadVoidSmall:
		return rational.Half, true
	case NoteheadBlack, NoteheadBlackSmall:
		return rational.Quarter, true
	default:
		return rational.Zero, false
	}
}

// RestDuration returns the duration of a rest shape.
//
// WHOLE_REST also denotes a measure-long rest; callers decide which
// meaning applies.
func (s Shape) RestDuration() (rational.Rational, bool) {
	switch s {
	case LongRest:
		return rational.Int(4), true
	case BreveRest:
		return rational.Int(2), true
	case WholeRest:
		return rational.One, true
	case HalfRest:
		return rational.Half, true
	case QuarterRest:
		return rational.Quarter, true
	case EighthRest:
		return rational.Eighth, true
	case Rest16th:
		return rational.MustNew(1, 16), true
	case Rest32nd:
		return rational.MustNew(1, 32), true
	case Rest64th:
		return rational.MustNew(1, 64), true
	case Rest128th:
		return rational.MustNew(1, 128), true
	default:
		return rational.Zero, false
	}
}

// TupletRatio returns the duration factor applied by a tuplet sign.
func (s Shape) TupletRatio() (rational.Rational, bool) {
	switch s {
	case TupletThree:
		return rational.MustNew(2, 3), true
	case TupletSix:
		return rational.MustNew(4, 6), true
	default:
		return rational.One, false
	}
}
