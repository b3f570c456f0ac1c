// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sheet

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// SlotChord is a chord starting in a slot.
type SlotChord struct {
	Chord    sig.InterID       `json:"chord" yaml:"chord"`
	Part     int               `json:"part" yaml:"part"`
	Duration rational.Rational `json:"duration" yaml:"duration"`
}

// Slot groups the chords that start at the same time within a stack.
type Slot struct {
	// ID is the slot index within its stack, starting at 1.
	ID int `json:"id" yaml:"id"`

	// XOffset is the abscissa offset from the stack left side.
	XOffset float64 `json:"x_offset" yaml:"x_offset"`

	// TimeOffset is the offset from the measure start, nil when unknown.
	TimeOffset *rational.Rational `json:"time_offset,omitempty" yaml:"time_offset,omitempty"`

	// Chords holds the starting chords, by abscissa.
	Chords []SlotChord `json:"chords" yaml:"chords"`
}

// LongestChord returns the longest chord duration of the slot.
func (s *Slot) LongestChord() rational.Rational {
	longest := rational.Zero
	for _, c := range s.Chords {
		longest = rational.Maximum(longest, c.Duration)
	}
	return longest
}

// ShortestChord returns the shortest chord duration of the slot,
// or false when the slot has no chord.
func (s *Slot) ShortestChord() (rational.Rational, bool) {
	if len(s.Chords) == 0 {
		return rational.Zero, false
	}
	shortest := s.Chords[0].Duration
	for _, c := range s.Chords[1:] {
		shortest = rational.Minimum(shortest, c.Duration)
	}
	return shortest, true
}

// Contains reports whether the chord starts in this slot.
func (s *Slot) Contains(chord sig.InterID) bool {
	for _, c := range s.Chords {
		if c.Chord == chord {
			return true
		}
	}
	return false
}

// VoiceChord is one chord of a voice, with its start offset.
type VoiceChord struct {
	Chord    sig.InterID       `json:"chord" yaml:"chord"`
	Offset   rational.Rational `json:"offset" yaml:"offset"`
	Duration rational.Rational `json:"duration" yaml:"duration"`
}

// End returns the time at which the chord ends.
func (vc VoiceChord) End() rational.Rational {
	return vc.Offset.Plus(vc.Duration)
}

// Voice is a continuous line of chords within a measure.
type Voice struct {
	// ID is unique within the stack, starting at 1.
	ID int `json:"id" yaml:"id"`

	// Part is the ID of the part the voice belongs to.
	Part int `json:"part" yaml:"part"`

	// Chords holds the chords in time order.
	Chords []VoiceChord `json:"chords,omitempty" yaml:"chords,omitempty"`

	// WholeRest is set for a voice made of a measure-long rest only.
	WholeRest sig.InterID `json:"whole_rest,omitempty" yaml:"whole_rest,omitempty"`

	// Excess is the part of the voice beyond the expected duration.
	Excess *rational.Rational `json:"excess,omitempty" yaml:"excess,omitempty"`
}

// IsWholeRest reports whether the voice is a measure-long rest.
func (v *Voice) IsWholeRest() bool {
	return v.WholeRest != 0
}

// Duration returns the end time of the last chord, zero for an empty or
// whole-rest voice.
func (v *Voice) Duration() rational.Rational {
	if len(v.Chords) == 0 {
		return rational.Zero
	}
	return v.Chords[len(v.Chords)-1].End()
}

// Append adds a chord at the end of the voice.
func (v *Voice) Append(chord sig.InterID, offset, duration rational.Rational) {
	v.Chords = append(v.Chords, VoiceChord{Chord: chord, Offset: offset, Duration: duration})
}

// CheckDuration compares the voice duration with the expected one and
// records the excess, if any. It reports whether the voice fits.
func (v *Voice) CheckDuration(expected *rational.Rational) bool {
	v.Excess = nil
	if expected == nil || v.IsWholeRest() {
		return true
	}
	if d := v.Duration(); expected.Less(d) {
		excess := d.Minus(*expected)
		v.Excess = &excess
		return false
	}
	return true
}

// Strip returns a one-line picture of the voice for logs.
func (v *Voice) Strip() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "V%d", v.ID)
	if v.IsWholeRest() {
		fmt.Fprintf(&sb, " |whole-rest#%d", v.WholeRest)
		return sb.String()
	}
	for _, c := range v.Chords {
		fmt.Fprintf(&sb, " |%s:#%d(%s)", c.Offset, c.Chord, c.Duration)
	}
	fmt.Fprintf(&sb, " |%s", v.Duration())
	return sb.String()
}
