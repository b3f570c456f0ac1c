// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rhythm

import (
	"fmt"

	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
	"github.com/AleutianAI/AleutianOMR/services/omr/symbol"
)

var (
	singleDot = rational.MustNew(3, 2)
	doubleDot = rational.MustNew(7, 4)
)

// ChordDuration returns the duration of a head or rest chord.
//
// Description:
//
//	A head chord starts from the value of its leading note, halved for
//	each flag and beam on its stem. A rest chord starts from its rest
//	value. One augmentation dot multiplies by 3/2, two by 7/4, and a
//	tuplet applies its ratio.
//
// Outputs:
//
//	rational.Rational - The chord duration.
//	bool - False when the chord has no timed member.
func ChordDuration(g *sig.SIG, chord *sig.Inter) (rational.Rational, bool) {
	members := g.Members(chord)
	if len(members) == 0 {
		return rational.Zero, false
	}

	var base rational.Rational
	var ok bool
	switch chord.Kind {
	case sig.KindHeadChord:
		lead := symbol.LeadingNote(g, chord)
		if base, ok = lead.Shape.HeadDuration(); !ok {
			return rational.Zero, false
		}
		if n := symbol.FlagsNumber(g, chord) + symbol.BeamsNumber(g, chord); n > 0 {
			base = base.Times(rational.MustNew(1, int64(1)<<n))
		}
	case sig.KindRestChord:
		if base, ok = members[0].Shape.RestDuration(); !ok {
			return rational.Zero, false
		}
	default:
		return rational.Zero, false
	}

	switch symbol.DotsNumber(g, chord) {
	case 1:
		base = base.Times(singleDot)
	case 2:
		base = base.Times(doubleDot)
	}
	if t := symbol.Tuplet(g, chord); t != nil {
		if ratio, ok := t.Shape.TupletRatio(); ok {
			base = base.Times(ratio)
		}
	}
	return base, true
}

// IsMeasureRest reports whether the chord is a whole rest, which fills
// its measure whatever the time signature and stays out of the slots.
func IsMeasureRest(g *sig.SIG, chord *sig.Inter) bool {
	if chord.Kind != sig.KindRestChord {
		return false
	}
	members := g.Members(chord)
	return len(members) > 0 && members[0].Shape == shape.WholeRest
}

// TimeDuration returns the measure duration of a whole or pair time
// signature.
//
// Errors:
//
//	ErrInvalidTime - the signature has no usable denominator
func TimeDuration(ts *sig.Inter) (rational.Rational, error) {
	if ts.Denominator <= 0 || ts.Numerator <= 0 {
		return rational.Zero, fmt.Errorf("%w: %d/%d", ErrInvalidTime, ts.Numerator, ts.Denominator)
	}
	return rational.MustNew(int64(ts.Numerator), int64(ts.Denominator)), nil
}
