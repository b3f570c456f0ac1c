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
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Special qualifies a stack that does not follow the regular time rules.
type Special int

const (
	SpecialNone Special = iota

	// Pickup is an implicit first measure shorter than expected.
	Pickup

	// FirstHalf is the part of a measure before a repeat barline.
	FirstHalf

	// SecondHalf is the part of a measure after a repeat barline.
	SecondHalf

	// Cautionary is a trailing measure with only cautionary signs.
	Cautionary
)

var specialNames = []string{"", "pickup", "first-half", "second-half", "cautionary"}

// String returns the special name, empty for SpecialNone.
func (s Special) String() string {
	if s < 0 || int(s) >= len(specialNames) {
		return fmt.Sprintf("special(%d)", int(s))
	}
	return specialNames[s]
}

// MarshalText encodes the special by name.
func (s Special) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a special name.
func (s *Special) UnmarshalText(b []byte) error {
	i := slices.Index(specialNames, string(b))
	if i < 0 {
		return fmt.Errorf("unknown stack special %q", string(b))
	}
	*s = Special(i)
	return nil
}

// State is the rhythm state of a stack.
type State int

const (
	// StateBuilding means slots and measures are being populated.
	StateBuilding State = iota

	// StateTimed means the expected duration is known.
	StateTimed

	// StateMeasured means the actual duration has been computed.
	StateMeasured

	// StateValidated means actual and expected durations agree.
	StateValidated

	// StateAbnormal means an anomaly was detected.
	StateAbnormal

	// StateFinal means no further rhythm processing will happen.
	StateFinal
)

var stateNames = []string{"building", "timed", "measured", "validated", "abnormal", "final"}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	i := slices.Index(stateNames, string(b))
	if i < 0 {
		return fmt.Errorf("unknown stack state %q", string(b))
	}
	*s = State(i)
	return nil
}

// Prefix and suffix used in page measure IDs.
const (
	SecondHalfPrefix = "X"
	CautionarySuffix = "C"
)

// MeasureStack is a vertical column of measures, one per part, sharing
// the same time slots.
//
// Invariants:
//
//	Left <= Right once a measure is added.
//	len(Measures) equals the number of parts of the system.
//	Slots are sorted by abscissa.
type MeasureStack struct {
	// ID is the measure number within the page, zero until numbered.
	ID int `json:"id" yaml:"id"`

	// System is the ID of the owning system.
	System int `json:"system" yaml:"system"`

	Left  int `json:"left" yaml:"left"`
	Right int `json:"right" yaml:"right"`

	Measures []*Measure `json:"measures" yaml:"measures"`
	Slots    []*Slot    `json:"slots,omitempty" yaml:"slots,omitempty"`

	Special Special `json:"special,omitempty" yaml:"special,omitempty"`
	Repeats []Side  `json:"repeats,omitempty" yaml:"repeats,omitempty"`

	Expected *rational.Rational `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   *rational.Rational `json:"actual,omitempty" yaml:"actual,omitempty"`
	Excess   *rational.Rational `json:"excess,omitempty" yaml:"excess,omitempty"`
	Abnormal bool               `json:"abnormal,omitempty" yaml:"abnormal,omitempty"`
	State    State              `json:"state" yaml:"state"`

	// Tuplets holds tuplets not yet assigned to a part.
	Tuplets []sig.InterID `json:"tuplets,omitempty" yaml:"tuplets,omitempty"`
}

// NewMeasureStack creates an empty stack for a system.
func NewMeasureStack(systemID int) *MeasureStack {
	return &MeasureStack{System: systemID}
}

// AddMeasure appends the measure of the next part and widens the stack.
func (s *MeasureStack) AddMeasure(m *Measure) {
	if len(s.Measures) == 0 {
		s.Left = math.MaxInt
		s.Right = 0
	}
	s.Measures = append(s.Measures, m)
	for _, staff := range m.Staves {
		s.Left = min(s.Left, m.XLeft[staff])
		s.Right = max(s.Right, m.XRight[staff])
	}
}

// MeasureAt returns the measure of the part, or nil.
func (s *MeasureStack) MeasureAt(partID int) *Measure {
	for _, m := range s.Measures {
		if m.Part == partID {
			return m
		}
	}
	return nil
}

// MeasureOfStaff returns the measure containing the staff, or nil.
func (s *MeasureStack) MeasureOfStaff(staffID int) *Measure {
	for _, m := range s.Measures {
		if m.HasStaff(staffID) {
			return m
		}
	}
	return nil
}

// FirstMeasure returns the measure of the first part, or nil.
func (s *MeasureStack) FirstMeasure() *Measure {
	if len(s.Measures) == 0 {
		return nil
	}
	return s.Measures[0]
}

// AddInter registers an Inter in the measure of its part. A tuplet with
// no part yet is kept at stack level.
func (s *MeasureStack) AddInter(in *sig.Inter, partID int) {
	if m := s.MeasureAt(partID); m != nil {
		m.AddInter(in)
		if in.Kind == sig.KindTuplet {
			s.Tuplets = slices.DeleteFunc(s.Tuplets, func(id sig.InterID) bool { return id == in.ID() })
		}
		return
	}
	if in.Kind == sig.KindTuplet {
		s.Tuplets = appendOnce(s.Tuplets, in.ID())
	}
}

// RemoveInter forgets an Inter in every measure and at stack level.
func (s *MeasureStack) RemoveInter(id sig.InterID) {
	for _, m := range s.Measures {
		m.RemoveInter(id)
	}
	s.Tuplets = slices.DeleteFunc(s.Tuplets, func(x sig.InterID) bool { return x == id })
}

// AllTuplets returns measure tuplets and stack tuplets.
func (s *MeasureStack) AllTuplets() []sig.InterID {
	var all []sig.InterID
	for _, m := range s.Measures {
		for _, id := range m.Tuplets {
			all = appendOnce(all, id)
		}
	}
	for _, id := range s.Tuplets {
		all = appendOnce(all, id)
	}
	return all
}

// ClearTuplets drops every tuplet of the stack.
func (s *MeasureStack) ClearTuplets() {
	for _, m := range s.Measures {
		m.ClearTuplets()
	}
	s.Tuplets = nil
}

// HeadChords returns the head chords of all measures.
func (s *MeasureStack) HeadChords() []sig.InterID {
	var ids []sig.InterID
	for _, m := range s.Measures {
		ids = append(ids, m.HeadChords...)
	}
	return ids
}

// Chords returns every chord of all measures.
func (s *MeasureStack) Chords() []sig.InterID {
	var ids []sig.InterID
	for _, m := range s.Measures {
		ids = append(ids, m.Chords()...)
	}
	return ids
}

// Voices returns the voices of all measures.
func (s *MeasureStack) Voices() []*Voice {
	var voices []*Voice
	for _, m := range s.Measures {
		voices = append(voices, m.Voices...)
	}
	return voices
}

// TimeSignature returns the first time signature found in the stack.
func (s *MeasureStack) TimeSignature(g *sig.SIG) *sig.Inter {
	for _, m := range s.Measures {
		if m.TimeSig == 0 {
			continue
		}
		if ts, err := g.Inter(m.TimeSig); err == nil {
			return ts
		}
	}
	return nil
}

// AddRepeat records a repeat on one side.
func (s *MeasureStack) AddRepeat(side Side) {
	if !s.IsRepeat(side) {
		s.Repeats = append(s.Repeats, side)
	}
}

// IsRepeat reports whether the stack repeats on that side.
func (s *MeasureStack) IsRepeat(side Side) bool {
	return slices.Contains(s.Repeats, side)
}

// ComputeRepeats derives the repeats from the barlines of the first measure.
func (s *MeasureStack) ComputeRepeats(g *sig.SIG) {
	s.Repeats = nil
	m := s.FirstMeasure()
	if m == nil {
		return
	}
	for _, pb := range []*PartBarline{m.LeftBarline, m.MidBarline} {
		if pb == nil {
			continue
		}
		if sb, err := pb.first(g); err == nil && InfoOf(sb.Shape).LeftRepeat {
			s.AddRepeat(Left)
		}
	}
	if pb := m.RightBarline; pb != nil {
		if sb, err := pb.first(g); err == nil && InfoOf(sb.Shape).RightRepeat {
			s.AddRepeat(Right)
		}
	}
}

// IsCautionary reports whether the stack is cautionary.
func (s *MeasureStack) IsCautionary() bool { return s.Special == Cautionary }

// IsFirstHalf reports whether the stack is the first half of a measure.
func (s *MeasureStack) IsFirstHalf() bool { return s.Special == FirstHalf }

// IsImplicit reports whether the stack does not count in measure numbering.
func (s *MeasureStack) IsImplicit() bool {
	return s.Special == Pickup || s.Special == SecondHalf
}

// SetExpected sets the expected duration and moves the stack to timed.
func (s *MeasureStack) SetExpected(d rational.Rational) {
	s.Expected = &d
	if s.State < StateTimed {
		s.State = StateTimed
	}
}

// SetActual sets the actual duration and moves the stack to measured.
func (s *MeasureStack) SetActual(d rational.Rational) {
	s.Actual = &d
	if s.State < StateMeasured {
		s.State = StateMeasured
	}
}

// SetExcess records the duration beyond the expected one and marks the
// stack abnormal.
func (s *MeasureStack) SetExcess(excess rational.Rational) {
	s.Excess = &excess
	s.SetAbnormal(true)
}

// SetAbnormal sets or clears the anomaly flag.
func (s *MeasureStack) SetAbnormal(abnormal bool) {
	s.Abnormal = abnormal
	switch {
	case abnormal:
		s.State = StateAbnormal
	case s.State == StateAbnormal:
		s.State = StateMeasured
	}
}

// Validate marks a measured, non abnormal stack as validated.
func (s *MeasureStack) Validate() {
	if !s.Abnormal && s.State == StateMeasured {
		s.State = StateValidated
	}
}

// Finish moves the stack to its final state.
func (s *MeasureStack) Finish() {
	s.State = StateFinal
}

// ResetRhythm clears everything computed by the rhythm engine.
func (s *MeasureStack) ResetRhythm() {
	s.Abnormal = false
	s.Excess = nil
	s.Slots = nil
	s.Actual = nil
	s.State = StateBuilding
	if s.Expected != nil {
		s.State = StateTimed
	}
	for _, m := range s.Measures {
		m.ResetRhythm()
	}
}

// CheckDuration checks every voice against the expected duration and
// returns the largest voice excess, if any.
func (s *MeasureStack) CheckDuration() *rational.Rational {
	var worst *rational.Rational
	for _, v := range s.Voices() {
		if !v.CheckDuration(s.Expected) && (worst == nil || worst.Less(*v.Excess)) {
			worst = v.Excess
		}
	}
	return worst
}

// SlotsDuration returns the maximum over slots of time offset plus chord
// duration. Slots without time offset are ignored.
func (s *MeasureStack) SlotsDuration() rational.Rational {
	dur := rational.Zero
	for _, slot := range s.Slots {
		if slot.TimeOffset == nil {
			continue
		}
		dur = rational.Maximum(dur, slot.TimeOffset.Plus(slot.LongestChord()))
	}
	return dur
}

// LastSlot returns the last slot, or nil.
func (s *MeasureStack) LastSlot() *Slot {
	if len(s.Slots) == 0 {
		return nil
	}
	return s.Slots[len(s.Slots)-1]
}

// XOffset returns the abscissa of p relative to the measure start on staff.
func (s *MeasureStack) XOffset(p geom.Point, staffID int) (float64, error) {
	m := s.MeasureOfStaff(staffID)
	if m == nil {
		return 0, fmt.Errorf("%w: staff %d in stack %s", ErrStaffNotFound, staffID, s)
	}
	left, err := m.Abscissa(Left, staffID)
	if err != nil {
		return 0, err
	}
	return p.X - float64(left), nil
}

// ClosestSlot returns the slot whose x offset is closest to p, or nil.
func (s *MeasureStack) ClosestSlot(p geom.Point, staffID int) *Slot {
	xOffset, err := s.XOffset(p, staffID)
	if err != nil {
		return nil
	}
	var best *Slot
	bestDx := math.MaxFloat64
	for _, slot := range s.Slots {
		if dx := math.Abs(slot.XOffset - xOffset); dx < bestDx {
			bestDx = dx
			best = slot
		}
	}
	return best
}

// ClosestChord returns the chord whose box is closest to p, or nil.
func ClosestChord(chords []*sig.Inter, p geom.Point) *sig.Inter {
	var best *sig.Inter
	bestDsq := math.MaxFloat64
	for _, chord := range chords {
		if dsq := chord.Bounds.DistanceSq(p); dsq < bestDsq {
			bestDsq = dsq
			best = chord
		}
	}
	return best
}

// MergeWithRight absorbs the following stack. The caller removes
// rightStack from the system.
//
// Right-hand slots are rebased on this stack: x offsets move by the
// distance between the two left sides, time offsets by this stack's
// actual duration (unknown when that duration is unknown). Slots stay
// ordered by abscissa and are renumbered from 1.
func (s *MeasureStack) MergeWithRight(rightStack *MeasureStack) error {
	if len(rightStack.Measures) != len(s.Measures) {
		return fmt.Errorf("%w: merging %d measures with %d",
			ErrPartMismatch, len(s.Measures), len(rightStack.Measures))
	}
	s.mergeSlots(rightStack)
	for i, m := range s.Measures {
		m.mergeWithRight(rightStack.Measures[i])
	}
	s.Right = rightStack.Right
	if rightStack.Actual != nil {
		if s.Actual == nil {
			d := *rightStack.Actual
			s.Actual = &d
		} else {
			d := s.Actual.Plus(*rightStack.Actual)
			s.Actual = &d
		}
	}
	if rightStack.IsRepeat(Right) {
		s.AddRepeat(Right)
	}
	for _, id := range rightStack.Tuplets {
		s.Tuplets = appendOnce(s.Tuplets, id)
	}
	return nil
}

func (s *MeasureStack) mergeSlots(right *MeasureStack) {
	dx := float64(right.Left - s.Left)
	for _, slot := range right.Slots {
		moved := *slot
		moved.XOffset += dx
		switch {
		case slot.TimeOffset == nil:
		case s.Actual == nil:
			moved.TimeOffset = nil
		default:
			t := s.Actual.Plus(*slot.TimeOffset)
			moved.TimeOffset = &t
		}
		s.Slots = append(s.Slots, &moved)
	}
	slices.SortStableFunc(s.Slots, func(a, b *Slot) int {
		return cmp.Compare(a.XOffset, b.XOffset)
	})
	for i, slot := range s.Slots {
		slot.ID = i + 1
	}
}

// PageID returns the display ID of the stack within its page.
func (s *MeasureStack) PageID(index int) string {
	if s.ID != 0 {
		id := fmt.Sprint(s.ID)
		if s.Special == SecondHalf {
			id = SecondHalfPrefix + id
		}
		if s.IsCautionary() {
			id += CautionarySuffix
		}
		return id
	}
	return fmt.Sprintf("S%dM%d", s.System, index+1)
}

// String returns a short description for logs.
func (s *MeasureStack) String() string {
	return fmt.Sprintf("Stack#%d(S%d %d-%d)", s.ID, s.System, s.Left, s.Right)
}
