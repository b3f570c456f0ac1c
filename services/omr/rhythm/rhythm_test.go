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
	"context"
	"testing"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func r(num, den int64) rational.Rational {
	return rational.MustNew(num, den)
}

// newSystem returns a one-staff system spanning x 0..1000, split at the
// given barline columns.
func newSystem(t *testing.T, id int, bars ...barSpec) *sheet.System {
	t.Helper()
	staves := []*sheet.Staff{{ID: 1, Left: 0, Right: 1000, Top: 100, Interline: 20, HeaderStop: 100}}
	parts := []*sheet.Part{{ID: 1, Staves: []int{1}}}
	sys, err := sheet.NewSystem(id, staves, parts)
	require.NoError(t, err)

	var columns [][]*sheet.PartBarline
	for _, b := range bars {
		in := sig.NewInter(sig.KindStaffBarline, b.shape, geom.R(b.x, 100, 3, 81), 0.9)
		in.Staff = 1
		_, err := sys.SIG.AddVertex(in)
		require.NoError(t, err)
		pb, err := sheet.NewPartBarline(in.ID())
		require.NoError(t, err)
		columns = append(columns, []*sheet.PartBarline{pb})
	}
	require.NoError(t, sys.BuildStacks(columns, 10))
	return sys
}

type barSpec struct {
	x     int
	shape shape.Shape
}

func addInter(t *testing.T, g *sig.SIG, kind sig.Kind, sh shape.Shape, box geom.Rect) *sig.Inter {
	t.Helper()
	in := sig.NewInter(kind, sh, box, 0.9)
	in.Staff = 1
	_, err := g.AddVertex(in)
	require.NoError(t, err)
	return in
}

func chordOf(t *testing.T, g *sig.SIG, kind sig.Kind, members ...*sig.Inter) *sig.Inter {
	t.Helper()
	chord := addInter(t, g, kind, shape.NoShape, sig.Bounds(members))
	for _, m := range members {
		require.NoError(t, g.AddMember(chord, m))
	}
	return chord
}

func link(t *testing.T, g *sig.SIG, src, tgt *sig.Inter, kind sig.RelationKind) {
	t.Helper()
	_, err := g.AddEdge(src, tgt, sig.NewRelation(kind, 0.9))
	require.NoError(t, err)
}

// addHead places a one-head chord at x, y and assigns it to its stack.
func addHead(t *testing.T, sys *sheet.System, sh shape.Shape, x, y int) *sig.Inter {
	t.Helper()
	head := addInter(t, sys.SIG, sig.KindHead, sh, geom.R(x, y, 12, 10))
	chord := chordOf(t, sys.SIG, sig.KindHeadChord, head)
	require.NotNil(t, sys.AssignInter(chord))
	return chord
}

func addRest(t *testing.T, sys *sheet.System, sh shape.Shape, x int) *sig.Inter {
	t.Helper()
	rest := addInter(t, sys.SIG, sig.KindRest, sh, geom.R(x, 130, 12, 10))
	chord := chordOf(t, sys.SIG, sig.KindRestChord, rest)
	require.NotNil(t, sys.AssignInter(chord))
	return chord
}

func addTime(t *testing.T, sys *sheet.System, sh shape.Shape, x int) *sig.Inter {
	t.Helper()
	ts := addInter(t, sys.SIG, sig.KindTimeWhole, sh, geom.R(x, 100, 16, 80))
	num, den, ok := sh.TimeValue()
	require.True(t, ok)
	ts.Numerator, ts.Denominator = num, den
	require.NotNil(t, sys.AssignInter(ts))
	return ts
}

func newEngine() *Engine {
	return New(config.DefaultConfig(), sheet.Scale{Interline: 20})
}

func process(t *testing.T, systems ...*sheet.System) (*sheet.Page, []Anomaly) {
	t.Helper()
	e := newEngine()
	page := &sheet.Page{ID: 1, Scale: sheet.Scale{Interline: 20}, Systems: systems}
	for _, sys := range systems {
		require.NoError(t, e.ProcessSystem(context.Background(), sys))
	}
	_, anomalies := e.CheckPage(context.Background(), page, nil)
	return page, anomalies
}

func TestChordDuration(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, g *sig.SIG) *sig.Inter
		want  rational.Rational
	}{
		{
			name: "quarter",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				return chordOf(t, g, sig.KindHeadChord, addInter(t, g, sig.KindHead, shape.NoteheadBlack, geom.R(100, 140, 12, 10)))
			},
			want: rational.Quarter,
		},
		{
			name: "eighth with flag",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				head := addInter(t, g, sig.KindHead, shape.NoteheadBlack, geom.R(100, 140, 12, 10))
				stem := addInter(t, g, sig.KindStem, shape.Stem, geom.R(111, 80, 2, 66))
				flag := addInter(t, g, sig.KindFlag, shape.Flag1Up, geom.R(112, 80, 8, 20))
				link(t, g, head, stem, sig.RelHeadStem)
				link(t, g, flag, stem, sig.RelFlagStem)
				return chordOf(t, g, sig.KindHeadChord, head)
			},
			want: rational.Eighth,
		},
		{
			name: "sixteenth with two beams",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				head := addInter(t, g, sig.KindHead, shape.NoteheadBlack, geom.R(100, 140, 12, 10))
				stem := addInter(t, g, sig.KindStem, shape.Stem, geom.R(111, 80, 2, 66))
				link(t, g, head, stem, sig.RelHeadStem)
				for _, y := range []int{80, 90} {
					beam := addInter(t, g, sig.KindBeam, shape.Beam, geom.R(111, y, 60, 6))
					link(t, g, beam, stem, sig.RelBeamStem)
				}
				return chordOf(t, g, sig.KindHeadChord, head)
			},
			want: r(1, 16),
		},
		{
			name: "dotted quarter",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				head := addInter(t, g, sig.KindHead, shape.NoteheadBlack, geom.R(100, 140, 12, 10))
				dot := addInter(t, g, sig.KindAugmentationDot, shape.AugmentationDot, geom.R(116, 143, 4, 4))
				link(t, g, dot, head, sig.RelAugmentation)
				return chordOf(t, g, sig.KindHeadChord, head)
			},
			want: r(3, 8),
		},
		{
			name: "double dotted half",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				head := addInter(t, g, sig.KindHead, shape.NoteheadVoid, geom.R(100, 140, 12, 10))
				first := addInter(t, g, sig.KindAugmentationDot, shape.AugmentationDot, geom.R(116, 143, 4, 4))
				second := addInter(t, g, sig.KindAugmentationDot, shape.AugmentationDot, geom.R(124, 143, 4, 4))
				link(t, g, first, head, sig.RelAugmentation)
				link(t, g, second, first, sig.RelDoubleDot)
				return chordOf(t, g, sig.KindHeadChord, head)
			},
			want: r(7, 8),
		},
		{
			name: "half rest",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				return chordOf(t, g, sig.KindRestChord, addInter(t, g, sig.KindRest, shape.HalfRest, geom.R(100, 135, 12, 6)))
			},
			want: rational.Half,
		},
		{
			name: "triplet eighth rest",
			build: func(t *testing.T, g *sig.SIG) *sig.Inter {
				chord := chordOf(t, g, sig.KindRestChord, addInter(t, g, sig.KindRest, shape.EighthRest, geom.R(100, 135, 8, 14)))
				tuplet := addInter(t, g, sig.KindTuplet, shape.TupletThree, geom.R(100, 60, 8, 10))
				link(t, g, tuplet, chord, sig.RelTupletChord)
				return chord
			},
			want: r(1, 12),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sig.New(1)
			got, ok := ChordDuration(g, tt.build(t, g))
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	t.Run("empty chord has no duration", func(t *testing.T) {
		g := sig.New(1)
		chord := addInter(t, g, sig.KindHeadChord, shape.NoShape, geom.R(0, 0, 10, 10))
		_, ok := ChordDuration(g, chord)
		assert.False(t, ok)
	})
}

func TestIsMeasureRest(t *testing.T) {
	g := sig.New(1)
	whole := chordOf(t, g, sig.KindRestChord, addInter(t, g, sig.KindRest, shape.WholeRest, geom.R(100, 130, 12, 6)))
	half := chordOf(t, g, sig.KindRestChord, addInter(t, g, sig.KindRest, shape.HalfRest, geom.R(200, 135, 12, 6)))
	assert.True(t, IsMeasureRest(g, whole))
	assert.False(t, IsMeasureRest(g, half))
}

func TestTimeDuration(t *testing.T) {
	ts := sig.NewInter(sig.KindTimePair, shape.NoShape, geom.Rect{}, 1)
	ts.Numerator, ts.Denominator = 6, 8
	d, err := TimeDuration(ts)
	require.NoError(t, err)
	assert.Equal(t, "3/4", d.String())

	ts.Denominator = 0
	_, err = TimeDuration(ts)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestThreeFourMeasure(t *testing.T) {
	sys := newSystem(t, 1)
	addTime(t, sys, shape.TimeThreeFour, 50)
	for _, x := range []int{300, 500, 700} {
		addHead(t, sys, shape.NoteheadBlack, x, 140)
	}

	_, anomalies := process(t, sys)
	assert.Empty(t, anomalies)

	stack := sys.Stacks[0]
	require.NotNil(t, stack.Actual)
	require.NotNil(t, stack.Expected)
	assert.True(t, stack.Actual.Equal(*stack.Expected))
	assert.True(t, r(3, 4).Equal(*stack.Actual))
	assert.False(t, stack.Abnormal)
	assert.Equal(t, sheet.StateValidated, stack.State)

	require.Len(t, stack.Slots, 3)
	for i, want := range []rational.Rational{rational.Zero, rational.Quarter, rational.Half} {
		require.NotNil(t, stack.Slots[i].TimeOffset)
		assert.True(t, want.Equal(*stack.Slots[i].TimeOffset), "slot %d", i+1)
	}
	voices := stack.Voices()
	require.Len(t, voices, 1)
	assert.Len(t, voices[0].Chords, 3)
	assert.Equal(t, 1, stack.ID)
}

func TestWholeRestMeasure(t *testing.T) {
	sys := newSystem(t, 1)
	addTime(t, sys, shape.TimeFourFour, 50)
	rest := addRest(t, sys, shape.WholeRest, 500)

	_, anomalies := process(t, sys)
	assert.Empty(t, anomalies)

	stack := sys.Stacks[0]
	assert.Empty(t, stack.Slots)
	require.NotNil(t, stack.Actual, "zero duration is not unknown duration")
	assert.True(t, stack.Actual.IsZero())
	assert.False(t, stack.Abnormal)

	voices := stack.Voices()
	require.Len(t, voices, 1)
	assert.True(t, voices[0].IsWholeRest())
	assert.Equal(t, rest.ID(), voices[0].WholeRest)
}

func TestVoices(t *testing.T) {
	sys := newSystem(t, 1)
	addTime(t, sys, shape.TimeThreeFour, 50)
	half := addHead(t, sys, shape.NoteheadVoid, 300, 120)
	q1 := addHead(t, sys, shape.NoteheadBlack, 304, 150)
	q2 := addHead(t, sys, shape.NoteheadBlack, 500, 150)
	q3 := addHead(t, sys, shape.NoteheadBlack, 700, 130)

	_, anomalies := process(t, sys)
	assert.Empty(t, anomalies)

	stack := sys.Stacks[0]
	require.Len(t, stack.Slots, 3)
	assert.Len(t, stack.Slots[0].Chords, 2)
	assert.True(t, rational.Quarter.Equal(*stack.Slots[1].TimeOffset))
	assert.True(t, rational.Half.Equal(*stack.Slots[2].TimeOffset))

	voices := stack.Voices()
	require.Len(t, voices, 2)
	ids := func(v *sheet.Voice) []sig.InterID {
		var out []sig.InterID
		for _, c := range v.Chords {
			out = append(out, c.Chord)
		}
		return out
	}
	assert.Equal(t, []sig.InterID{half.ID(), q3.ID()}, ids(voices[0]))
	assert.Equal(t, []sig.InterID{q1.ID(), q2.ID()}, ids(voices[1]))
	assert.True(t, r(3, 4).Equal(*stack.Actual))
}

func TestExcess(t *testing.T) {
	t.Run("too long", func(t *testing.T) {
		sys := newSystem(t, 1)
		addTime(t, sys, shape.TimeThreeFour, 50)
		for _, x := range []int{200, 400, 600, 800} {
			addHead(t, sys, shape.NoteheadBlack, x, 140)
		}
		_, anomalies := process(t, sys)
		require.Len(t, anomalies, 1)
		assert.True(t, rational.Quarter.Equal(anomalies[0].Excess))
		assert.Equal(t, "1", anomalies[0].Stack)

		stack := sys.Stacks[0]
		assert.True(t, stack.Abnormal)
		assert.Equal(t, sheet.StateAbnormal, stack.State)
		require.NotNil(t, stack.Excess)
	})

	t.Run("too short inside the page", func(t *testing.T) {
		sys := newSystem(t, 1, barSpec{x: 500, shape: shape.ThinBarline})
		addTime(t, sys, shape.TimeTwoFour, 50)
		addHead(t, sys, shape.NoteheadBlack, 200, 140)
		addHead(t, sys, shape.NoteheadBlack, 400, 140)
		addHead(t, sys, shape.NoteheadBlack, 700, 140)

		_, anomalies := process(t, sys)
		require.Len(t, anomalies, 1)
		assert.Equal(t, -1, anomalies[0].Excess.Sign())
		assert.True(t, sys.Stacks[1].Abnormal)
		assert.False(t, sys.Stacks[0].Abnormal)
	})
}

func TestPickup(t *testing.T) {
	sys := newSystem(t, 1, barSpec{x: 400, shape: shape.ThinBarline})
	require.Len(t, sys.Stacks, 2)
	addTime(t, sys, shape.TimeThreeFour, 50)
	addHead(t, sys, shape.NoteheadBlack, 300, 140)
	for _, x := range []int{500, 650, 800} {
		addHead(t, sys, shape.NoteheadBlack, x, 140)
	}

	_, anomalies := process(t, sys)
	assert.Empty(t, anomalies)

	pickup, full := sys.Stacks[0], sys.Stacks[1]
	assert.Equal(t, sheet.Pickup, pickup.Special)
	assert.False(t, pickup.Abnormal)
	assert.Equal(t, 0, pickup.ID)
	assert.Equal(t, sheet.SpecialNone, full.Special)
	assert.Equal(t, 1, full.ID)
	assert.Equal(t, sheet.StateValidated, full.State)
}

func TestRepeatHalves(t *testing.T) {
	sys := newSystem(t, 1,
		barSpec{x: 400, shape: shape.ThinBarline},
		barSpec{x: 600, shape: shape.RightRepeatSign},
	)
	require.Len(t, sys.Stacks, 3)
	require.True(t, sys.Stacks[1].IsRepeat(sheet.Right))

	addTime(t, sys, shape.TimeThreeFour, 50)
	for _, x := range []int{150, 250, 350, 450, 550, 800} {
		addHead(t, sys, shape.NoteheadBlack, x, 140)
	}

	page, anomalies := process(t, sys)
	assert.Empty(t, anomalies)

	first, second := sys.Stacks[1], sys.Stacks[2]
	assert.Equal(t, sheet.FirstHalf, first.Special)
	assert.Equal(t, sheet.SecondHalf, second.Special)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "X2", second.PageID(2))
	assert.Len(t, page.Stacks(), 3)
}

func TestCautionary(t *testing.T) {
	sys := newSystem(t, 1, barSpec{x: 900, shape: shape.ThinBarline})
	addTime(t, sys, shape.TimeThreeFour, 50)
	for _, x := range []int{300, 500, 700} {
		addHead(t, sys, shape.NoteheadBlack, x, 140)
	}

	_, anomalies := process(t, sys)
	assert.Empty(t, anomalies)
	last := sys.LastStack()
	assert.True(t, last.IsCautionary())
	assert.False(t, last.Abnormal)
	assert.Equal(t, "2C", last.PageID(1))
}

func TestExpectedInheritance(t *testing.T) {
	e := newEngine()

	t.Run("across systems", func(t *testing.T) {
		s1 := newSystem(t, 1)
		addTime(t, s1, shape.TimeTwoFour, 50)
		addHead(t, s1, shape.NoteheadVoid, 500, 140)
		s2 := newSystem(t, 2)
		addHead(t, s2, shape.NoteheadVoid, 500, 140)

		_, anomalies := process(t, s1, s2)
		assert.Empty(t, anomalies)
		require.NotNil(t, s2.Stacks[0].Expected)
		assert.True(t, rational.Half.Equal(*s2.Stacks[0].Expected))
	})

	t.Run("across pages", func(t *testing.T) {
		sys := newSystem(t, 1)
		addHead(t, sys, shape.NoteheadVoid, 500, 140)
		require.NoError(t, e.ProcessSystem(context.Background(), sys))

		carried := rational.Half
		page := &sheet.Page{ID: 2, Systems: []*sheet.System{sys}}
		out, anomalies := e.CheckPage(context.Background(), page, &carried)
		assert.Empty(t, anomalies)
		require.NotNil(t, out)
		assert.True(t, rational.Half.Equal(*out))
		require.NotNil(t, sys.Stacks[0].Expected)
		assert.True(t, rational.Half.Equal(*sys.Stacks[0].Expected))
	})

	t.Run("nothing to inherit", func(t *testing.T) {
		sys := newSystem(t, 1)
		addHead(t, sys, shape.NoteheadVoid, 500, 140)
		require.NoError(t, e.ProcessSystem(context.Background(), sys))

		page := &sheet.Page{ID: 1, Systems: []*sheet.System{sys}}
		out, anomalies := e.CheckPage(context.Background(), page, nil)
		assert.Nil(t, out)
		assert.Empty(t, anomalies)
		assert.Nil(t, sys.Stacks[0].Expected)
		assert.Equal(t, sheet.StateValidated, sys.Stacks[0].State)
	})
}

func TestProcessStackIsRepeatable(t *testing.T) {
	sys := newSystem(t, 1)
	addTime(t, sys, shape.TimeThreeFour, 50)
	for _, x := range []int{300, 500, 700} {
		addHead(t, sys, shape.NoteheadBlack, x, 140)
	}
	e := newEngine()
	stack := sys.Stacks[0]
	require.NoError(t, e.ProcessStack(sys, stack))
	require.NoError(t, e.ProcessStack(sys, stack))
	assert.Len(t, stack.Slots, 3)
	assert.Len(t, stack.Voices(), 1)
}

func TestMergeAfterRhythm(t *testing.T) {
	sys := newSystem(t, 1, barSpec{x: 500, shape: shape.ThinBarline})
	var chords []*sig.Inter
	for _, x := range []int{200, 350, 650, 800} {
		chords = append(chords, addHead(t, sys, shape.NoteheadBlack, x, 140))
	}
	process(t, sys)
	require.Len(t, sys.Stacks, 2)

	require.NoError(t, sys.MergeWithRight(sys.Stacks[0]))
	require.Len(t, sys.Stacks, 1)
	stack := sys.Stacks[0]

	require.Len(t, stack.Slots, 4)
	for i, want := range []rational.Rational{rational.Zero, rational.Quarter, rational.Half, r(3, 4)} {
		slot := stack.Slots[i]
		assert.Equal(t, i+1, slot.ID)
		if i > 0 {
			assert.Greater(t, slot.XOffset, stack.Slots[i-1].XOffset)
		}
		require.NotNil(t, slot.TimeOffset)
		assert.True(t, want.Equal(*slot.TimeOffset), "slot %d", i+1)
	}
	assert.True(t, rational.One.Equal(stack.SlotsDuration()))
	require.NotNil(t, stack.Actual)
	assert.True(t, rational.One.Equal(*stack.Actual))

	for _, chord := range chords {
		slot := stack.ClosestSlot(chord.Center(), 1)
		require.NotNil(t, slot)
		assert.True(t, slot.Contains(chord.ID()), "chord at %v", chord.Center())
	}
}
