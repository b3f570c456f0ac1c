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
	"math"

	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// BuildHeadChords groups heads into head chords: the heads of one stem
// form a chord, a head without stem forms a chord of its own.
func (f *Factory) BuildHeadChords() ([]*sig.Inter, error) {
	var chords []*sig.Inter
	done := make(map[sig.InterID]bool)

	stems := f.sig.Inters(sig.KindStem)
	sig.Sort(stems, sig.ByAbscissa)
	for _, stem := range stems {
		heads := f.sig.Neighbors(stem, sig.RelHeadStem)
		if len(heads) == 0 {
			continue
		}
		chord, err := f.newChord(sig.KindHeadChord, heads)
		if err != nil {
			return chords, err
		}
		chord.Bounds = chord.Bounds.Union(stem.Bounds)
		for _, h := range heads {
			done[h.ID()] = true
		}
		chords = append(chords, chord)
	}

	heads := f.sig.Inters(sig.KindHead)
	sig.Sort(heads, sig.ByAbscissa)
	for _, h := range heads {
		if done[h.ID()] || len(f.sig.Ensembles(h)) > 0 {
			continue
		}
		chord, err := f.newChord(sig.KindHeadChord, []*sig.Inter{h})
		if err != nil {
			return chords, err
		}
		chords = append(chords, chord)
	}
	return chords, nil
}

// BuildRestChords wraps each rest in a rest chord.
func (f *Factory) BuildRestChords() ([]*sig.Inter, error) {
	var chords []*sig.Inter
	rests := f.sig.Inters(sig.KindRest)
	sig.Sort(rests, sig.ByAbscissa)
	for _, r := range rests {
		if len(f.sig.Ensembles(r)) > 0 {
			continue
		}
		chord, err := f.newChord(sig.KindRestChord, []*sig.Inter{r})
		if err != nil {
			return chords, err
		}
		chords = append(chords, chord)
	}
	return chords, nil
}

func (f *Factory) newChord(kind sig.Kind, members []*sig.Inter) (*sig.Inter, error) {
	grade := 0.0
	for _, m := range members {
		grade = max(grade, m.Grade())
	}
	chord := sig.NewInter(kind, 0, sig.Bounds(members), grade)
	chord.Staff = members[0].Staff
	if _, err := f.sig.AddVertex(chord); err != nil {
		return nil, err
	}
	for _, m := range members {
		if err := f.sig.AddMember(chord, m); err != nil {
			return nil, err
		}
	}
	return chord, nil
}

// ChordStem returns the stem of a head chord, or nil.
func ChordStem(g *sig.SIG, chord *sig.Inter) *sig.Inter {
	for _, m := range g.Members(chord) {
		if stems := g.Neighbors(m, sig.RelHeadStem); len(stems) > 0 {
			return stems[0]
		}
	}
	return nil
}

// LeadingNote returns the chord note farthest from the stem middle, or the
// first note when there is no stem.
func LeadingNote(g *sig.SIG, chord *sig.Inter) *sig.Inter {
	notes := g.Members(chord)
	if len(notes) == 0 {
		return nil
	}
	stem := ChordStem(g, chord)
	if stem == nil {
		return notes[0]
	}
	middle := stem.Center().Y
	best := notes[0]
	bestDy := -1.0
	for _, n := range notes {
		if dy := math.Abs(n.Center().Y - middle); dy > bestDy {
			best, bestDy = n, dy
		}
	}
	return best
}

// ChordStemDir returns -1 for a stem up, +1 for a stem down and 0 without
// stem.
func ChordStemDir(g *sig.SIG, chord *sig.Inter) int {
	stem := ChordStem(g, chord)
	if stem == nil {
		return 0
	}
	leading := LeadingNote(g, chord)
	if stem.Center().Y < leading.Center().Y {
		return -1
	}
	return 1
}

// FlagsNumber returns the number of flags carried by the chord stem.
func FlagsNumber(g *sig.SIG, chord *sig.Inter) int {
	stem := ChordStem(g, chord)
	if stem == nil {
		return 0
	}
	count := 0
	for _, fl := range g.Neighbors(stem, sig.RelFlagStem) {
		count += fl.Shape.FlagValue()
	}
	return count
}

// BeamsNumber returns the number of beams and beam hooks on the chord stem.
func BeamsNumber(g *sig.SIG, chord *sig.Inter) int {
	stem := ChordStem(g, chord)
	if stem == nil {
		return 0
	}
	return len(g.Neighbors(stem, sig.RelBeamStem))
}

// DotsNumber returns the number of augmentation dots of the chord: 0, 1
// or 2.
func DotsNumber(g *sig.SIG, chord *sig.Inter) int {
	dots := 0
	for _, note := range g.Members(chord) {
		for _, first := range g.Neighbors(note, sig.RelAugmentation) {
			n := 1
			if len(g.IncomingRelations(first, sig.RelDoubleDot)) > 0 {
				n = 2
			}
			dots = max(dots, n)
		}
	}
	return dots
}

// Tuplet returns the tuplet applied to the chord, or nil.
func Tuplet(g *sig.SIG, chord *sig.Inter) *sig.Inter {
	for _, rel := range g.IncomingRelations(chord, sig.RelTupletChord) {
		if t, err := g.Inter(rel.Source()); err == nil {
			return t
		}
	}
	return nil
}
