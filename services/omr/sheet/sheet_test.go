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
	"encoding/json"
	"testing"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestSystem creates a two-part system, one staff per part.
//
//	staff 1: x 100..1100, top 100
//	staff 2: x 100..1100, top 300
func buildTestSystem(t *testing.T) *System {
	t.Helper()
	staves := []*Staff{
		{ID: 1, Left: 100, Right: 1100, Top: 100, Interline: 20, HeaderStop: 200},
		{ID: 2, Left: 100, Right: 1100, Top: 300, Interline: 20, HeaderStop: 200},
	}
	parts := []*Part{
		{ID: 1, Staves: []int{1}},
		{ID: 2, Staves: []int{2}},
	}
	sys, err := NewSystem(1, staves, parts)
	require.NoError(t, err)
	return sys
}

// column adds one staff barline per staff at x and returns the column.
func column(t *testing.T, sys *System, x int, sh shape.Shape) []*PartBarline {
	t.Helper()
	var col []*PartBarline
	for _, p := range sys.Parts {
		pb := &PartBarline{}
		for _, sid := range p.Staves {
			st, err := sys.Staff(sid)
			require.NoError(t, err)
			in := sig.NewInter(sig.KindStaffBarline, sh, geom.R(x, st.Top, 3, st.Bottom()-st.Top+1), 0.9)
			in.Staff = sid
			_, err = sys.SIG.AddVertex(in)
			require.NoError(t, err)
			require.NoError(t, pb.AddStaffBarline(in.ID()))
		}
		col = append(col, pb)
	}
	return col
}

func addChord(t *testing.T, sys *System, x, staffID int) *sig.Inter {
	t.Helper()
	st, err := sys.Staff(staffID)
	require.NoError(t, err)
	chord := sig.NewInter(sig.KindHeadChord, shape.NoShape, geom.R(x, st.Top+20, 12, 10), 0.8)
	chord.Staff = staffID
	_, err = sys.SIG.AddVertex(chord)
	require.NoError(t, err)
	require.NotNil(t, sys.AssignInter(chord))
	return chord
}

func TestStaffPitch(t *testing.T) {
	st := &Staff{ID: 1, Left: 0, Right: 100, Top: 100, Interline: 20}
	assert.Equal(t, 180, st.Bottom())
	assert.Equal(t, 0, st.PitchAt(140))
	assert.Equal(t, -4, st.PitchAt(100))
	assert.Equal(t, 4, st.PitchAt(180))
	assert.Equal(t, 1, st.PitchAt(150))
	assert.InDelta(t, 150.0, st.YAtPitch(1), 1e-9)
	assert.ErrorIs(t, (&Staff{ID: 2, Right: 10}).Validate(), ErrInvalidStaff)
}

func TestNewSystemErrors(t *testing.T) {
	staves := []*Staff{{ID: 1, Left: 0, Right: 100, Top: 0, Interline: 10}}
	_, err := NewSystem(1, staves, nil)
	assert.ErrorIs(t, err, ErrPartMismatch)
	_, err = NewSystem(1, staves, []*Part{{ID: 1, Staves: []int{7}}})
	assert.ErrorIs(t, err, ErrPartMismatch)
}

func TestPartBarline(t *testing.T) {
	_, err := NewPartBarline()
	assert.ErrorIs(t, err, ErrEmptyPartBarline)
	_, err = NewPartBarline(3, 0)
	assert.ErrorIs(t, err, ErrNilStaffBarline)

	sys := buildTestSystem(t)
	col := column(t, sys, 500, shape.RightRepeatSign)
	pb := col[0]
	assert.Equal(t, StyleLightHeavy, pb.Style(sys.SIG))
	assert.True(t, pb.IsRightRepeat(sys.SIG))
	assert.False(t, pb.IsLeftRepeat(sys.SIG))
	assert.NoError(t, pb.Validate(sys.Parts[0]))
	assert.ErrorIs(t, pb.Validate(&Part{ID: 9, Staves: []int{1, 2}}), ErrPartMismatch)

	x, err := pb.RightX(sys.SIG, sys.Parts[0], 1)
	require.NoError(t, err)
	assert.Equal(t, 502, x)
	_, err = pb.RightX(sys.SIG, sys.Parts[0], 2)
	assert.ErrorIs(t, err, ErrStaffNotFound)
}

func TestBuildStacks(t *testing.T) {
	sys := buildTestSystem(t)
	cols := [][]*PartBarline{
		column(t, sys, 100, shape.ThinBarline),
		column(t, sys, 400, shape.ThinBarline),
		column(t, sys, 700, shape.RightRepeatSign),
		column(t, sys, 1097, shape.FinalBarline),
	}
	require.NoError(t, sys.BuildStacks(cols, 20))
	require.Len(t, sys.Stacks, 3)

	wantLeft := []int{100, 402, 702}
	wantRight := []int{402, 702, 1100}
	for i, st := range sys.Stacks {
		assert.Equal(t, wantLeft[i], st.Left, "stack %d left", i)
		assert.Equal(t, wantRight[i], st.Right, "stack %d right", i)
		assert.LessOrEqual(t, st.Left, st.Right)
		assert.Len(t, st.Measures, len(sys.Parts))
	}
	assert.NotNil(t, sys.Stacks[0].FirstMeasure().LeftBarline)
	assert.NotNil(t, sys.Stacks[2].FirstMeasure().RightBarline)
	assert.True(t, sys.Stacks[1].IsRepeat(Right))
	assert.False(t, sys.Stacks[0].IsRepeat(Right))

	assert.Same(t, sys.Stacks[1], sys.StackAt(500))
	assert.Same(t, sys.Stacks[2], sys.NextSibling(sys.Stacks[1]))
	assert.Nil(t, sys.PreviousSibling(sys.Stacks[0]))

	t.Run("column with wrong part count", func(t *testing.T) {
		err := sys.BuildStacks([][]*PartBarline{cols[1][:1]}, 20)
		assert.ErrorIs(t, err, ErrPartMismatch)
	})
}

func TestSplitMergeRoundTrip(t *testing.T) {
	sys := buildTestSystem(t)
	require.NoError(t, sys.BuildStacks(nil, 20))
	require.Len(t, sys.Stacks, 1)
	stack := sys.Stacks[0]

	c1 := addChord(t, sys, 200, 1)
	c2 := addChord(t, sys, 600, 1)
	c3 := addChord(t, sys, 650, 2)
	tuplet := sig.NewInter(sig.KindTuplet, shape.TupletThree, geom.R(190, 60, 10, 10), 0.7)
	_, err := sys.SIG.AddVertex(tuplet)
	require.NoError(t, err)
	stack.AddInter(tuplet, 0)

	stack.SetActual(rational.MustNew(3, 4))
	stack.Slots = []*Slot{{ID: 1, XOffset: 100}}
	origLeft, origRight := stack.Left, stack.Right

	leftStack, err := sys.SplitAtBarline(stack, column(t, sys, 400, shape.ThinBarline))
	require.NoError(t, err)
	require.Len(t, sys.Stacks, 2)
	assert.Same(t, leftStack, sys.Stacks[0])
	assert.Equal(t, origLeft, leftStack.Left)
	assert.Equal(t, 402, leftStack.Right)
	assert.Equal(t, 402, stack.Left)
	assert.Equal(t, []sig.InterID{c1.ID()}, leftStack.MeasureAt(1).HeadChords)
	assert.Equal(t, []sig.InterID{c2.ID()}, stack.MeasureAt(1).HeadChords)
	assert.Equal(t, []sig.InterID{c3.ID()}, stack.MeasureAt(2).HeadChords)
	assert.Equal(t, []sig.InterID{tuplet.ID()}, leftStack.Tuplets)
	assert.Empty(t, stack.Tuplets)
	assert.NotNil(t, leftStack.MeasureAt(1).RightBarline)
	for _, st := range sys.Stacks {
		assert.Len(t, st.Measures, len(sys.Parts))
		assert.LessOrEqual(t, st.Left, st.Right)
	}

	require.NoError(t, sys.MergeWithRight(leftStack))
	require.Len(t, sys.Stacks, 1)
	merged := sys.Stacks[0]
	assert.Equal(t, origLeft, merged.Left)
	assert.Equal(t, origRight, merged.Right)
	require.NotNil(t, merged.Actual)
	assert.True(t, merged.Actual.Equal(rational.MustNew(3, 4)))
	assert.Equal(t, []sig.InterID{c1.ID(), c2.ID()}, merged.MeasureAt(1).HeadChords)
	assert.Len(t, merged.Slots, 1)
	assert.Equal(t, []sig.InterID{tuplet.ID()}, merged.Tuplets)
}

func TestSplitErrors(t *testing.T) {
	sys := buildTestSystem(t)
	require.NoError(t, sys.BuildStacks(nil, 20))

	_, err := sys.SplitAtBarline(NewMeasureStack(1), column(t, sys, 400, shape.ThinBarline))
	assert.ErrorIs(t, err, ErrStackNotFound)
	_, err = sys.SplitAtBarline(sys.Stacks[0], []*PartBarline{{}})
	assert.ErrorIs(t, err, ErrPartMismatch)
	assert.ErrorIs(t, sys.MergeWithRight(sys.Stacks[0]), ErrStackNotFound)
}

func TestMergeDurations(t *testing.T) {
	tests := []struct {
		name        string
		left, right *rational.Rational
		want        *rational.Rational
	}{
		{"both known", ptr(rational.Half), ptr(rational.Quarter), ptr(rational.MustNew(3, 4))},
		{"left unknown", nil, ptr(rational.Quarter), ptr(rational.Quarter)},
		{"right unknown", ptr(rational.Half), nil, ptr(rational.Half)},
		{"both unknown", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &MeasureStack{Actual: tt.left}
			r := &MeasureStack{Actual: tt.right, Repeats: []Side{Right}}
			require.NoError(t, l.MergeWithRight(r))
			if tt.want == nil {
				assert.Nil(t, l.Actual)
			} else {
				require.NotNil(t, l.Actual)
				assert.True(t, tt.want.Equal(*l.Actual))
			}
			assert.True(t, l.IsRepeat(Right))
		})
	}
}

func TestMergeSlots(t *testing.T) {
	quarter := []SlotChord{{Chord: 1, Part: 1, Duration: rational.Quarter}}
	newStacks := func(leftActual *rational.Rational) (*MeasureStack, *MeasureStack) {
		l := &MeasureStack{Left: 100, Right: 500, Actual: leftActual, Slots: []*Slot{
			{ID: 1, XOffset: 50, TimeOffset: ptr(rational.Zero), Chords: quarter},
			{ID: 2, XOffset: 300, TimeOffset: ptr(rational.Quarter), Chords: quarter},
		}}
		r := &MeasureStack{Left: 500, Right: 900, Actual: ptr(rational.Quarter), Slots: []*Slot{
			{ID: 1, XOffset: 40, TimeOffset: ptr(rational.Zero), Chords: quarter},
		}}
		return l, r
	}

	t.Run("rebased on the left stack", func(t *testing.T) {
		l, r := newStacks(ptr(rational.Half))
		require.NoError(t, l.MergeWithRight(r))

		require.Len(t, l.Slots, 3)
		for i, want := range []struct {
			x    float64
			time rational.Rational
		}{{50, rational.Zero}, {300, rational.Quarter}, {440, rational.Half}} {
			assert.Equal(t, i+1, l.Slots[i].ID)
			assert.Equal(t, want.x, l.Slots[i].XOffset)
			require.NotNil(t, l.Slots[i].TimeOffset)
			assert.True(t, want.time.Equal(*l.Slots[i].TimeOffset), "slot %d", i+1)
		}
		assert.True(t, rational.MustNew(3, 4).Equal(l.SlotsDuration()))
		assert.True(t, rational.MustNew(3, 4).Equal(*l.Actual))
		assert.Equal(t, 40.0, r.Slots[0].XOffset, "right stack left untouched")
	})

	t.Run("unknown left duration", func(t *testing.T) {
		l, r := newStacks(nil)
		require.NoError(t, l.MergeWithRight(r))
		require.Len(t, l.Slots, 3)
		assert.Equal(t, 440.0, l.Slots[2].XOffset)
		assert.Nil(t, l.Slots[2].TimeOffset)
	})
}

func ptr(r rational.Rational) *rational.Rational { return &r }

func TestStackRhythmHelpers(t *testing.T) {
	sys := buildTestSystem(t)
	require.NoError(t, sys.BuildStacks(nil, 20))
	stack := sys.Stacks[0]

	stack.Slots = []*Slot{
		{ID: 1, XOffset: 50, TimeOffset: ptr(rational.Zero), Chords: []SlotChord{{Chord: 1, Duration: rational.Half}}},
		{ID: 2, XOffset: 150, TimeOffset: ptr(rational.Half), Chords: []SlotChord{
			{Chord: 2, Duration: rational.Quarter}, {Chord: 3, Duration: rational.Eighth},
		}},
		{ID: 3, XOffset: 250},
	}
	assert.True(t, stack.SlotsDuration().Equal(rational.MustNew(3, 4)))
	assert.Equal(t, 2, stack.ClosestSlot(geom.Pt(260, 120), 1).ID)
	assert.Equal(t, 3, stack.LastSlot().ID)

	stack.SetExpected(rational.MustNew(3, 4))
	assert.Equal(t, StateTimed, stack.State)
	stack.SetActual(rational.MustNew(3, 4))
	assert.Equal(t, StateMeasured, stack.State)
	stack.Validate()
	assert.Equal(t, StateValidated, stack.State)

	stack.SetExcess(rational.Quarter)
	assert.True(t, stack.Abnormal)
	assert.Equal(t, StateAbnormal, stack.State)

	stack.ResetRhythm()
	assert.False(t, stack.Abnormal)
	assert.Nil(t, stack.Actual)
	assert.Nil(t, stack.Excess)
	assert.Empty(t, stack.Slots)
	assert.Equal(t, StateTimed, stack.State)
}

func TestVoiceCheckDuration(t *testing.T) {
	v := &Voice{ID: 1, Part: 1}
	v.Append(1, rational.Zero, rational.Half)
	v.Append(2, rational.Half, rational.Half)
	expected := rational.MustNew(3, 4)

	assert.False(t, v.CheckDuration(&expected))
	require.NotNil(t, v.Excess)
	assert.True(t, v.Excess.Equal(rational.Quarter))
	assert.True(t, v.CheckDuration(nil))
	assert.Nil(t, v.Excess)
	assert.Contains(t, v.Strip(), "V1")
}

func TestPageNavigation(t *testing.T) {
	sys1 := buildTestSystem(t)
	require.NoError(t, sys1.BuildStacks([][]*PartBarline{column(t, sys1, 500, shape.ThinBarline)}, 20))

	staves := []*Staff{{ID: 3, Left: 100, Right: 1100, Top: 600, Interline: 20}}
	sys2, err := NewSystem(2, staves, []*Part{{ID: 1, Staves: []int{3}}})
	require.NoError(t, err)
	require.NoError(t, sys2.BuildStacks(nil, 20))

	page := &Page{ID: 1, Scale: Scale{Interline: 20}, Systems: []*System{sys1, sys2}}
	first := page.FirstStack()
	assert.Same(t, sys1.Stacks[0], first)
	assert.Same(t, sys1.Stacks[1], page.FollowingInPage(first))
	assert.Same(t, sys2.Stacks[0], page.FollowingInPage(sys1.Stacks[1]))
	assert.Same(t, sys1.Stacks[1], page.PrecedingInPage(sys2.Stacks[0]))
	assert.Nil(t, page.PrecedingInPage(first))

	ts := sig.NewInter(sig.KindTimeWhole, shape.TimeThreeFour, geom.R(210, 100, 20, 80), 0.9)
	ts.Staff = 1
	_, err = sys1.SIG.AddVertex(ts)
	require.NoError(t, err)
	sys1.AssignInter(ts)
	got, carrier := page.CurrentTimeSignature(sys2.Stacks[0])
	assert.Same(t, ts, got)
	assert.Same(t, first, carrier)

	first.Special = Pickup
	page.NumberStacks()
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, 1, sys1.Stacks[1].ID)
	assert.Equal(t, 2, sys2.Stacks[0].ID)
	assert.Equal(t, "S1M1", first.PageID(0))
}

func TestStackJSON(t *testing.T) {
	sys := buildTestSystem(t)
	require.NoError(t, sys.BuildStacks(nil, 20))
	st := sys.Stacks[0]
	st.SetExpected(rational.MustNew(3, 4))
	st.Special = FirstHalf

	data, err := json.Marshal(st)
	require.NoError(t, err)
	var decoded MeasureStack
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, FirstHalf, decoded.Special)
	assert.Equal(t, StateTimed, decoded.State)
	require.NotNil(t, decoded.Expected)
	assert.True(t, decoded.Expected.Equal(rational.MustNew(3, 4)))
	assert.Equal(t, st.Measures[0].XLeft, decoded.Measures[0].XLeft)
}
