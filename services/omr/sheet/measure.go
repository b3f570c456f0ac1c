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
	"maps"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Measure is the cell of a part within a measure stack.
//
// A Measure has a left part barline only when it starts the system, a
// mid barline when a barline separates the staff header from the music,
// and a right part barline unless it ends a system without barline.
type Measure struct {
	// Part is the ID of the part.
	Part int `json:"part" yaml:"part"`

	// Staves lists the staff IDs of the part.
	Staves []int `json:"staves" yaml:"staves"`

	// XLeft and XRight hold the measure limits per staff ID.
	XLeft  map[int]int `json:"x_left" yaml:"x_left"`
	XRight map[int]int `json:"x_right" yaml:"x_right"`

	LeftBarline  *PartBarline `json:"left_barline,omitempty" yaml:"left_barline,omitempty"`
	MidBarline   *PartBarline `json:"mid_barline,omitempty" yaml:"mid_barline,omitempty"`
	RightBarline *PartBarline `json:"right_barline,omitempty" yaml:"right_barline,omitempty"`

	HeadChords []sig.InterID `json:"head_chords,omitempty" yaml:"head_chords,omitempty"`
	RestChords []sig.InterID `json:"rest_chords,omitempty" yaml:"rest_chords,omitempty"`
	Clefs      []sig.InterID `json:"clefs,omitempty" yaml:"clefs,omitempty"`
	Keys       []sig.InterID `json:"keys,omitempty" yaml:"keys,omitempty"`
	Tuplets    []sig.InterID `json:"tuplets,omitempty" yaml:"tuplets,omitempty"`

	// TimeSig is the time signature found in this measure, zero if none.
	TimeSig sig.InterID `json:"time_sig,omitempty" yaml:"time_sig,omitempty"`

	Voices []*Voice `json:"voices,omitempty" yaml:"voices,omitempty"`
}

// NewMeasure creates an empty measure for the part, spanning left to
// right on every staff.
func NewMeasure(part *Part, left, right int) *Measure {
	m := &Measure{
		Part:   part.ID,
		Staves: slices.Clone(part.Staves),
		XLeft:  make(map[int]int, len(part.Staves)),
		XRight: make(map[int]int, len(part.Staves)),
	}
	for _, id := range part.Staves {
		m.XLeft[id] = left
		m.XRight[id] = right
	}
	return m
}

// Abscissa returns the measure limit on the given side of a staff.
func (m *Measure) Abscissa(side Side, staffID int) (int, error) {
	limits := m.XLeft
	if side == Right {
		limits = m.XRight
	}
	x, ok := limits[staffID]
	if !ok {
		return 0, fmt.Errorf("%w: staff %d in part %d", ErrStaffNotFound, staffID, m.Part)
	}
	return x, nil
}

// HasStaff reports whether the staff belongs to the measure part.
func (m *Measure) HasStaff(staffID int) bool {
	return slices.Contains(m.Staves, staffID)
}

// staffOf returns the staff used to locate an Inter in this measure.
func (m *Measure) staffOf(in *sig.Inter) int {
	if m.HasStaff(in.Staff) {
		return in.Staff
	}
	return m.Staves[0]
}

// AddInter registers a structural Inter in the measure.
// Kinds that a measure does not track are ignored.
func (m *Measure) AddInter(in *sig.Inter) {
	id := in.ID()
	switch in.Kind {
	case sig.KindHeadChord:
		m.HeadChords = appendOnce(m.HeadChords, id)
	case sig.KindRestChord:
		m.RestChords = appendOnce(m.RestChords, id)
	case sig.KindClef:
		m.Clefs = appendOnce(m.Clefs, id)
	case sig.KindKey:
		m.Keys = appendOnce(m.Keys, id)
	case sig.KindTuplet:
		m.Tuplets = appendOnce(m.Tuplets, id)
	case sig.KindTimeWhole, sig.KindTimePair:
		m.TimeSig = id
	}
}

func appendOnce(ids []sig.InterID, id sig.InterID) []sig.InterID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveInter forgets an Inter.
func (m *Measure) RemoveInter(id sig.InterID) {
	del := func(ids []sig.InterID) []sig.InterID {
		return slices.DeleteFunc(ids, func(x sig.InterID) bool { return x == id })
	}
	m.HeadChords = del(m.HeadChords)
	m.RestChords = del(m.RestChords)
	m.Clefs = del(m.Clefs)
	m.Keys = del(m.Keys)
	m.Tuplets = del(m.Tuplets)
	if m.TimeSig == id {
		m.TimeSig = 0
	}
}

// Chords returns head chords then rest chords.
func (m *Measure) Chords() []sig.InterID {
	return slices.Concat(m.HeadChords, m.RestChords)
}

// ResetRhythm drops the voices.
func (m *Measure) ResetRhythm() {
	m.Voices = nil
}

// ClearTuplets drops the tuplets.
func (m *Measure) ClearTuplets() {
	m.Tuplets = nil
}

// splitAt moves everything left of the per-staff abscissas into a new
// measure, which is returned. The receiver keeps the right part.
func (m *Measure) splitAt(g *sig.SIG, xRefs map[int]int) *Measure {
	left := &Measure{
		Part:        m.Part,
		Staves:      slices.Clone(m.Staves),
		XLeft:       maps.Clone(m.XLeft),
		XRight:      maps.Clone(xRefs),
		LeftBarline: m.LeftBarline,
		MidBarline:  m.MidBarline,
	}
	m.XLeft = maps.Clone(xRefs)
	m.LeftBarline = nil
	m.MidBarline = nil

	isLeft := func(id sig.InterID) bool {
		in, err := g.Inter(id)
		if err != nil {
			return false
		}
		return in.Center().X <= float64(xRefs[m.staffOf(in)])
	}
	partition := func(ids []sig.InterID) (l, r []sig.InterID) {
		for _, id := range ids {
			if isLeft(id) {
				l = append(l, id)
			} else {
				r = append(r, id)
			}
		}
		return l, r
	}
	left.HeadChords, m.HeadChords = partition(m.HeadChords)
	left.RestChords, m.RestChords = partition(m.RestChords)
	left.Clefs, m.Clefs = partition(m.Clefs)
	left.Keys, m.Keys = partition(m.Keys)
	left.Tuplets, m.Tuplets = partition(m.Tuplets)
	if m.TimeSig != 0 && isLeft(m.TimeSig) {
		left.TimeSig, m.TimeSig = m.TimeSig, 0
	}

	left.ResetRhythm()
	m.ResetRhythm()
	return left
}

// mergeWithRight absorbs the content of the following measure.
func (m *Measure) mergeWithRight(right *Measure) {
	m.XRight = maps.Clone(right.XRight)
	m.RightBarline = right.RightBarline
	m.HeadChords = append(m.HeadChords, right.HeadChords...)
	m.RestChords = append(m.RestChords, right.RestChords...)
	m.Clefs = append(m.Clefs, right.Clefs...)
	m.Keys = append(m.Keys, right.Keys...)
	m.Tuplets = append(m.Tuplets, right.Tuplets...)
	if m.TimeSig == 0 {
		m.TimeSig = right.TimeSig
	}
	m.Voices = append(m.Voices, right.Voices...)
}
