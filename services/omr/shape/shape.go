// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package shape defines the vocabulary of shapes shared by the classifier,
// the symbol factory and the rhythm engine.
//
// Physical shapes come first: they are the labels a classifier can emit.
// Set shapes (DOT_set, HW_REST_set) are placeholders whose final meaning is
// decided later from context. Logical shapes follow CLUTTER and are only
// produced by the engine itself or by manual insertion.
package shape

import (
	"fmt"
)

// Shape is a tagged enumeration of every symbol kind the engine knows.
type Shape int

const (
	// NoShape is the zero value, never produced by a classifier.
	NoShape Shape = iota

	// Sets.
	DotSet
	HWRestSet

	// Markers and breaks.
	DalSegno
	DaCapo
	Segno
	Coda
	BreathMark
	Caesura
	FermataArc
	FermataArcBelow

	// Clefs.
	GClef
	GClefSmall
	GClef8va
	GClef8vb
	CClef
	FClef
	FClefSmall
	FClef8va
	FClef8vb
	PercussionClef

	// Accidentals.
	Flat
	Natural
	Sharp
	DoubleSharp
	DoubleFlat

	// Time numbers.
	TimeZero
	TimeOne
	TimeTwo
	TimeThree
	TimeFour
	TimeFive
	TimeSix
	TimeSeven
	TimeEight
	TimeNine
	TimeTwelve
	TimeSixteen

	// Whole times.
	CommonTime
	CutTime
	TimeFourFour
	TimeTwoTwo
	TimeTwoFour
	TimeThreeFour
	TimeFiveFour
	TimeThreeEight
	TimeSixEight

	// Octave shifts.
	OttavaAlta
	OttavaBassa

	// Rests.
	LongRest
	BreveRest
	QuarterRest
	EighthRest
	Rest16th
	Rest32nd
	Rest64th
	Rest128th

	// Flags.
	Flag1
	Flag1Up
	Flag2
	Flag2Up
	Flag3
	Flag3Up
	Flag4
	Flag4Up
	Flag5
	Flag5Up

	// Small flags.
	SmallFlag
	SmallFlagSlash

	// Stemless heads.
	Breve

	// Articulations.
	Accent
	Tenuto
	Staccatissimo
	StrongAccent
	Arpeggiato

	// Dynamics.
	DynamicsP
	DynamicsPP
	DynamicsMP
	DynamicsF
	DynamicsFF
	DynamicsMF
	DynamicsFP
	DynamicsSF
	DynamicsSFZ

	// Ornaments.
	Trill
	Turn
	TurnInverted
	TurnUp
	TurnSlash
	Mordent
	MordentInverted

	// Tuplets and pedals.
	TupletThree
	TupletSix
	PedalMark
	PedalUpMark

	// Fingering digits.
	Digit0
	Digit1
	Digit2
	Digit3
	Digit4
	Digit5

	// Roman numerals.
	RomanI
	RomanII
	RomanIII
	RomanIV
	RomanV
	RomanVI
	RomanVII
	RomanVIII
	RomanIX
	RomanX
	RomanXI
	RomanXII

	// Plucking.
	PluckP
	PluckI
	PluckM
	PluckA

	// Clutter, last physical shape.
	Clutter

	// Logical shapes.
	Text
	Character
	RepeatDot
	AugmentationDot
	FermataDot
	Staccato
	WholeRest
	HalfRest

	// Heads.
	NoteheadBlack
	NoteheadBlackSmall
	NoteheadVoid
	NoteheadVoidSmall
	WholeNote
	WholeNoteSmall

	// Beams and slurs.
	Beam
	BeamSmall
	BeamHook
	BeamHookSmall
	Slur

	// Key signatures.
	KeyFlat7
	KeyFlat6
	KeyFlat5
	KeyFlat4
	KeyFlat3
	KeyFlat2
	KeyFlat1
	KeySharp1
	KeySharp2
	KeySharp3
	KeySharp4
	KeySharp5
	KeySharp6
	KeySharp7

	// Barlines.
	ThinBarline
	ThinConnector
	ThickBarline
	ThickConnector
	BracketConnector
	DoubleBarline
	FinalBarline
	ReverseFinalBarline
	LeftRepeatSign
	RightRepeatSign
	BackToBackRepeatSign
	Ending

	// Wedges and connectors.
	Crescendo
	Diminuendo
	Brace
	Bracket
	RepeatDotPair
	Noise
	Ledger
	EndingHorizontal
	EndingVertical
	Segment
	Lyrics
	Stem

	// Grace notes and fermatas.
	GraceNoteSlash
	GraceNote
	Fermata
	FermataBelow

	// Miscellaneous.
	Forward
	NonDraggable
	GlyphPart
	CustomTime
	NoLegalTime

	// NumShapes is the number of shapes (for array sizing).
	NumShapes
)

// shapeNames maps Shape values to their canonical names.
var shapeNames = [NumShapes]string{
	NoShape:              "NO_SHAPE",
	DotSet:               "DOT_set",
	HWRestSet:            "HW_REST_set",
	DalSegno:             "DAL_SEGNO",
	DaCapo:               "DA_CAPO",
	Segno:                "SEGNO",
	Coda:                 "CODA",
	BreathMark:           "BREATH_MARK",
	Caesura:              "CAESURA",
	FermataArc:           "FERMATA_ARC",
	FermataArcBelow:      "FERMATA_ARC_BELOW",
	GClef:                "G_CLEF",
	GClefSmall:           "G_CLEF_SMALL",
	GClef8va:             "G_CLEF_8VA",
	GClef8vb:             "G_CLEF_8VB",
	CClef:                "C_CLEF",
	FClef:                "F_CLEF",
	FClefSmall:           "F_CLEF_SMALL",
	FClef8va:             "F_CLEF_8VA",
	FClef8vb:             "F_CLEF_8VB",
	PercussionClef:       "PERCUSSION_CLEF",
	Flat:                 "FLAT",
	Natural:              "NATURAL",
	Sharp:                "SHARP",
	DoubleSharp:          "DOUBLE_SHARP",
	DoubleFlat:           "DOUBLE_FLAT",
	TimeZero:             "TIME_ZERO",
	TimeOne:              "TIME_ONE",
	TimeTwo:              "TIME_TWO",
	TimeThree:            "TIME_THREE",
	TimeFour:             "TIME_FOUR",
	TimeFive:             "TIME_FIVE",
	TimeSix:              "TIME_SIX",
	TimeSeven:            "TIME_SEVEN",
	TimeEight:            "TIME_EIGHT",
	TimeNine:             "TIME_NINE",
	TimeTwelve:           "TIME_TWELVE",
	TimeSixteen:          "TIME_SIXTEEN",
	CommonTime:           "COMMON_TIME",
	CutTime:              "CUT_TIME",
	TimeFourFour:         "TIME_FOUR_FOUR",
	TimeTwoTwo:           "TIME_TWO_TWO",
	TimeTwoFour:          "TIME_TWO_FOUR",
	TimeThreeFour:        "TIME_THREE_FOUR",
	TimeFiveFour:         "TIME_FIVE_FOUR",
	TimeThreeEight:       "TIME_THREE_EIGHT",
	TimeSixEight:         "TIME_SIX_EIGHT",
	OttavaAlta:           "OTTAVA_ALTA",
	OttavaBassa:          "OTTAVA_BASSA",
	LongRest:             "LONG_REST",
	BreveRest:            "BREVE_REST",
	QuarterRest:          "QUARTER_REST",
	EighthRest:           "EIGHTH_REST",
	Rest16th:             "ONE_16TH_REST",
	Rest32nd:             "ONE_32ND_REST",
	Rest64th:             "ONE_64TH_REST",
	Rest128th:            "ONE_128TH_REST",
	Flag1:                "FLAG_1",
	Flag1Up:              "FLAG_1_UP",
	Flag2:                "FLAG_2",
	Flag2Up:              "FLAG_2_UP",
	Flag3:                "FLAG_3",
	Flag3Up:              "FLAG_3_UP",
	Flag4:                "FLAG_4",
	Flag4Up:              "FLAG_4_UP",
	Flag5:                "FLAG_5",
	Flag5Up:              "FLAG_5_UP",
	SmallFlag:            "SMALL_FLAG",
	SmallFlagSlash:       "SMALL_FLAG_SLASH",
	Breve:                "BREVE",
	Accent:               "ACCENT",
	Tenuto:               "TENUTO",
	Staccatissimo:        "STACCATISSIMO",
	StrongAccent:         "STRONG_ACCENT",
	Arpeggiato:           "ARPEGGIATO",
	DynamicsP:            "DYNAMICS_P",
	DynamicsPP:           "DYNAMICS_PP",
	DynamicsMP:           "DYNAMICS_MP",
	DynamicsF:            "DYNAMICS_F",
	DynamicsFF:           "DYNAMICS_FF",
	DynamicsMF:           "DYNAMICS_MF",
	DynamicsFP:           "DYNAMICS_FP",
	DynamicsSF:           "DYNAMICS_SF",
	DynamicsSFZ:          "DYNAMICS_SFZ",
	Trill:                "TR",
	Turn:                 "TURN",
	TurnInverted:         "TURN_INVERTED",
	TurnUp:               "TURN_UP",
	TurnSlash:            "TURN_SLASH",
	Mordent:              "MORDENT",
	MordentInverted:      "MORDENT_INVERTED",
	TupletThree:          "TUPLET_THREE",
	TupletSix:            "TUPLET_SIX",
	PedalMark:            "PEDAL_MARK",
	PedalUpMark:          "PEDAL_UP_MARK",
	Digit0:               "DIGIT_0",
	Digit1:               "DIGIT_1",
	Digit2:               "DIGIT_2",
	Digit3:               "DIGIT_3",
	Digit4:               "DIGIT_4",
	Digit5:               "DIGIT_5",
	RomanI:               "ROMAN_I",
	RomanII:              "ROMAN_II",
	RomanIII:             "ROMAN_III",
	RomanIV:              "ROMAN_IV",
	RomanV:               "ROMAN_V",
	RomanVI:              "ROMAN_VI",
	RomanVII:             "ROMAN_VII",
	RomanVIII:            "ROMAN_VIII",
	RomanIX:              "ROMAN_IX",
	RomanX:               "ROMAN_X",
	RomanXI:              "ROMAN_XI",
	RomanXII:             "ROMAN_XII",
	PluckP:               "PLUCK_P",
	PluckI:               "PLUCK_I",
	PluckM:               "PLUCK_M",
	PluckA:               "PLUCK_A",
	Clutter:              "CLUTTER",
	Text:                 "TEXT",
	Character:            "CHARACTER",
	RepeatDot:            "REPEAT_DOT",
	AugmentationDot:      "AUGMENTATION_DOT",
	FermataDot:           "FERMATA_DOT",
	Staccato:             "STACCATO",
	WholeRest:            "WHOLE_REST",
	HalfRest:             "HALF_REST",
	NoteheadBlack:        "NOTEHEAD_BLACK",
	NoteheadBlackSmall:   "NOTEHEAD_BLACK_SMALL",
	NoteheadVoid:         "NOTEHEAD_VOID",
	NoteheadVoidSmall:    "NOTEHEAD_VOID_SMALL",
	WholeNote:            "WHOLE_NOTE",
	WholeNoteSmall:       "WHOLE_NOTE_SMALL",
	Beam:                 "BEAM",
	BeamSmall:            "BEAM_SMALL",
	BeamHook:             "BEAM_HOOK",
	BeamHookSmall:        "BEAM_HOOK_SMALL",
	Slur:                 "SLUR",
	KeyFlat7:             "KEY_FLAT_7",
	KeyFlat6:             "KEY_FLAT_6",
	KeyFlat5:             "KEY_FLAT_5",
	KeyFlat4:             "KEY_FLAT_4",
	KeyFlat3:             "KEY_FLAT_3",
	KeyFlat2:             "KEY_FLAT_2",
	KeyFlat1:             "KEY_FLAT_1",
	KeySharp1:            "KEY_SHARP_1",
	KeySharp2:            "KEY_SHARP_2",
	KeySharp3:            "KEY_SHARP_3",
	KeySharp4:            "KEY_SHARP_4",
	KeySharp5:            "KEY_SHARP_5",
	KeySharp6:            "KEY_SHARP_6",
	KeySharp7:            "KEY_SHARP_7",
	ThinBarline:          "THIN_BARLINE",
	ThinConnector:        "THIN_CONNECTOR",
	ThickBarline:         "THICK_BARLINE",
	ThickConnector:       "THICK_CONNECTOR",
	BracketConnector:     "BRACKET_CONNECTOR",
	DoubleBarline:        "DOUBLE_BARLINE",
	FinalBarline:         "FINAL_BARLINE",
	ReverseFinalBarline:  "REVERSE_FINAL_BARLINE",
	LeftRepeatSign:       "LEFT_REPEAT_SIGN",
	RightRepeatSign:      "RIGHT_REPEAT_SIGN",
	BackToBackRepeatSign: "BACK_TO_BACK_REPEAT_SIGN",
	Ending:               "ENDING",
	Crescendo:            "CRESCENDO",
	Diminuendo:           "DIMINUENDO",
	Brace:                "BRACE",
	Bracket:              "BRACKET",
	RepeatDotPair:        "REPEAT_DOT_PAIR",
	Noise:                "NOISE",
	Ledger:               "LEDGER",
	EndingHorizontal:     "ENDING_HORIZONTAL",
	EndingVertical:       "ENDING_VERTICAL",
	Segment:              "SEGMENT",
	Lyrics:               "LYRICS",
	Stem:                 "STEM",
	GraceNoteSlash:       "GRACE_NOTE_SLASH",
	GraceNote:            "GRACE_NOTE",
	Fermata:              "FERMATA",
	FermataBelow:         "FERMATA_BELOW",
	Forward:              "FORWARD",
	NonDraggable:         "NON_DRAGGABLE",
	GlyphPart:            "GLYPH_PART",
	CustomTime:           "CUSTOM_TIME",
	NoLegalTime:          "NO_LEGAL_TIME",
}

// LastPhysical is the last shape a classifier may emit.
const LastPhysical = Clutter

// byName is the reverse index of shapeNames.
var byName = func() map[string]Shape {
	m := make(map[string]Shape, NumShapes)
	for s := NoShape; s < NumShapes; s++ {
		m[shapeNames[s]] = s
	}
	return m
}()

// String returns the canonical name, e.g. "NOTEHEAD_BLACK".
func (s Shape) String() string {
	if s >= 0 && s < NumShapes {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// Valid reports whether s is a known shape other than NoShape.
func (s Shape) Valid() bool {
	return s > NoShape && s < NumShapes
}

// IsPhysical reports whether a classifier can emit s.
func (s Shape) IsPhysical() bool {
	return s > NoShape && s <= LastPhysical
}

// Parse returns the shape with the given canonical name.
func Parse(name string) (Shape, bool) {
	s, ok := byName[name]
	return s, ok && s != NoShape
}

// MarshalText encodes the shape by name.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a shape name.
func (s *Shape) UnmarshalText(b []byte) error {
	v, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("unknown shape %q", string(b))
	}
	*s = v
	return nil
}
