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
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// entry is a timed chord of a stack.
type entry struct {
	chord    *sig.Inter
	part     int
	staff    int
	x        float64
	duration rational.Rational
}

// collect gathers the timed chords of the stack by abscissa, and the
// whole rests per part.
func collect(sys *sheet.System, stack *sheet.MeasureStack) ([]entry, map[int][]sig.InterID, error) {
	var entries []entry
	wholeRests := make(map[int][]sig.InterID)
	for _, m := range stack.Measures {
		for _, id := range m.Chords() {
			chord, err := sys.SIG.Inter(id)
			if err != nil || chord.IsRemoved() {
				continue
			}
			if IsMeasureRest(sys.SIG, chord) {
				wholeRests[m.Part] = append(wholeRests[m.Part], id)
				continue
			}
			dur, ok := ChordDuration(sys.SIG, chord)
			if !ok {
				slog.Debug("chord without duration",
					slog.Int("system", sys.ID),
					slog.String("chord", chord.String()),
				)
				continue
			}
			staff := chord.Staff
			if !m.HasStaff(staff) {
				staff = m.Staves[0]
			}
			x, err := stack.XOffset(chord.Center(), staff)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrNoMeasure, err)
			}
			entries = append(entries, entry{chord: chord, part: m.Part, staff: staff, x: x, duration: dur})
		}
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Or(
			cmp.Compare(a.x, b.x),
			cmp.Compare(a.part, b.part),
			cmp.Compare(a.chord.Center().Y, b.chord.Center().Y),
		)
	})
	return entries, wholeRests, nil
}

// buildSlots groups the sorted entries into slots. A chord joins the
// current slot when its offset is within margin of the slot first chord.
// It returns the slots and the entries of each slot.
func buildSlots(entries []entry, margin float64) ([]*sheet.Slot, [][]entry) {
	var slots []*sheet.Slot
	var groups [][]entry
	var start float64
	for _, e := range entries {
		if len(slots) == 0 || e.x-start > margin {
			start = e.x
			slots = append(slots, &sheet.Slot{ID: len(slots) + 1})
			groups = append(groups, nil)
		}
		last := len(slots) - 1
		slots[last].Chords = append(slots[last].Chords, sheet.SlotChord{
			Chord:    e.chord.ID(),
			Part:     e.part,
			Duration: e.duration,
		})
		groups[last] = append(groups[last], e)
	}
	for i, slot := range slots {
		var sum float64
		for _, e := range groups[i] {
			sum += e.x
		}
		slot.XOffset = sum / float64(len(groups[i]))
	}
	return slots, groups
}

// voiceBuilder assigns slot chords to voices.
type voiceBuilder struct {
	byPart    map[int][]*sheet.Voice
	lastStaff map[*sheet.Voice]int
	nextID    int
	ends      []rational.Rational
}

func newVoiceBuilder() *voiceBuilder {
	return &voiceBuilder{
		byPart:    make(map[int][]*sheet.Voice),
		lastStaff: make(map[*sheet.Voice]int),
		nextID:    1,
	}
}

// nextOffset returns the earliest end of a placed chord after prev, or
// prev when every placed chord is over.
func (b *voiceBuilder) nextOffset(prev rational.Rational) rational.Rational {
	next := rational.Max
	found := false
	for _, end := range b.ends {
		if prev.Less(end) && end.Less(next) {
			next, found = end, true
		}
	}
	if !found {
		return prev
	}
	return next
}

// pick returns the voice of the part best suited to continue at offset,
// or nil if every voice is still busy. A voice ending exactly at offset
// beats one that leaves a gap, and a voice last seen on the same staff
// wins ties.
func (b *voiceBuilder) pick(part, staff int, offset rational.Rational) *sheet.Voice {
	var best *sheet.Voice
	bestScore := -1
	for _, v := range b.byPart[part] {
		end := v.Duration()
		if offset.Less(end) {
			continue
		}
		score := 0
		if end.Equal(offset) {
			score += 2
		}
		if b.lastStaff[v] == staff {
			score++
		}
		if score > bestScore {
			best, bestScore = v, score
		}
	}
	return best
}

func (b *voiceBuilder) place(e entry, offset rational.Rational) {
	v := b.pick(e.part, e.staff, offset)
	if v == nil {
		v = &sheet.Voice{ID: b.nextID, Part: e.part}
		b.nextID++
		b.byPart[e.part] = append(b.byPart[e.part], v)
	}
	v.Append(e.chord.ID(), offset, e.duration)
	b.lastStaff[v] = e.staff
	b.ends = append(b.ends, offset.Plus(e.duration))
}

// buildVoices sets the slot time offsets and fills the measure voices.
//
// The first slot starts at zero. Each following slot starts when the
// earliest chord still sounding at the previous slot ends. Whole rests
// get a voice of their own.
func buildVoices(stack *sheet.MeasureStack, slots []*sheet.Slot, groups [][]entry, wholeRests map[int][]sig.InterID) {
	b := newVoiceBuilder()
	offset := rational.Zero
	for i, slot := range slots {
		if i > 0 {
			offset = b.nextOffset(offset)
		}
		at := offset
		slot.TimeOffset = &at
		for _, e := range groups[i] {
			b.place(e, offset)
		}
	}

	for _, m := range stack.Measures {
		for _, id := range wholeRests[m.Part] {
			b.byPart[m.Part] = append(b.byPart[m.Part], &sheet.Voice{ID: b.nextID, Part: m.Part, WholeRest: id})
			b.nextID++
		}
		m.Voices = b.byPart[m.Part]
	}
}
