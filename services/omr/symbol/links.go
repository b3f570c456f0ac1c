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
	"cmp"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Corner is a head corner where a stem may be attached.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// Corners lists the corners in lookup order.
var Corners = []Corner{TopLeft, TopRight, BottomLeft, BottomRight}

var cornerNames = [...]string{"top-left", "top-right", "bottom-left", "bottom-right"}

// String returns the corner name.
func (c Corner) String() string {
	if c < 0 || int(c) >= len(cornerNames) {
		return "corner(?)"
	}
	return cornerNames[c]
}

// IsTop reports whether the stem would go up from the head.
func (c Corner) IsTop() bool { return c == TopLeft || c == TopRight }

// Side returns the head side of the corner.
func (c Corner) Side() sig.Side {
	if c == TopRight || c == BottomRight {
		return sig.SideRight
	}
	return sig.SideLeft
}

// gapLimits holds head-stem gap maxima in pixels.
type gapLimits struct {
	xIn  float64
	xOut float64
	y    float64
}

func (f *Factory) headStemLimits(manual bool) gapLimits {
	hs := f.cfg.HeadStem
	if manual {
		return gapLimits{
			xIn:  f.pixels(hs.ManualMaxXInGap),
			xOut: f.pixels(hs.ManualMaxXOutGap),
			y:    f.pixels(hs.ManualMaxYGap),
		}
	}
	return gapLimits{
		xIn:  f.pixels(hs.MaxXInGap),
		xOut: f.pixels(hs.MaxXOutGap),
		y:    f.pixels(hs.MaxYGap),
	}
}

// stemEnds returns the top and bottom points of a stem.
func stemEnds(stem *sig.Inter) (geom.Point, geom.Point) {
	if stem.Top == (geom.Point{}) && stem.Bottom == (geom.Point{}) {
		c := stem.Center()
		return geom.Pt(c.X, float64(stem.Bounds.Y)), geom.Pt(c.X, float64(stem.Bounds.Bottom()-1))
	}
	return stem.Top, stem.Bottom
}

// LookupBox returns the area searched for a stem at one corner of a head.
func (f *Factory) LookupBox(head *sig.Inter, corner Corner) geom.Rect {
	lim := f.headStemLimits(head.Manual)
	refX, refY := refPoint(head, corner)
	xMin := refX - lim.xOut
	if corner.Side() == sig.SideRight {
		xMin = refX - lim.xIn
	}
	yMin := refY
	if corner.IsTop() {
		yMin = refY - lim.y
	}
	x0, y0 := int(math.Floor(xMin)), int(math.Floor(yMin))
	return geom.R(x0, y0,
		int(math.Ceil(xMin+lim.xIn+lim.xOut))-x0,
		int(math.Ceil(yMin+lim.y))-y0)
}

func refPoint(head *sig.Inter, corner Corner) (float64, float64) {
	x := float64(head.Bounds.X)
	if corner.Side() == sig.SideRight {
		x = float64(head.Bounds.Right())
	}
	return x, head.Center().Y
}

// LookupLink searches the best stem for one corner of a head.
//
// Description:
//
//	Candidate stems are those intersecting the corner lookup box, taken
//	by abscissa. For each one the horizontal gap between the stem line at
//	the head ordinate and the head side, and the vertical gap when the
//	ordinate falls outside the stem, are turned into a grade. The best
//	acceptable candidate is kept, the first one on ties.
//
// Outputs:
//
//	*sig.Inter - The best stem, nil if none is acceptable.
//	*sig.Relation - The detached relation to insert, nil if none.
func (f *Factory) LookupLink(head *sig.Inter, stems []*sig.Inter, corner Corner) (*sig.Inter, *sig.Relation) {
	lim := f.headStemLimits(head.Manual)
	hs := f.cfg.HeadStem
	refX, refY := refPoint(head, corner)
	xDir := -1.0
	if corner.Side() == sig.SideRight {
		xDir = 1
	}

	candidates := sig.IntersectedIn(stems, f.LookupBox(head, corner))
	sig.Sort(candidates, sig.ByAbscissa)

	var best *sig.Inter
	var bestRel *sig.Relation
	for _, stem := range candidates {
		top, bottom := stemEnds(stem)
		crossX := geom.XAtY(top, bottom, refY)
		xGap := xDir * (crossX - refX)

		var yGap float64
		switch {
		case refY < top.Y:
			yGap = top.Y - refY
		case refY > bottom.Y:
			yGap = refY - bottom.Y
		}

		impacts := sig.NewImpacts([]string{"xGap", "yGap"}, []float64{hs.XWeight, hs.YWeight})
		if xGap > 0 {
			impacts.Set(0, 1-xGap/lim.xOut)
		} else {
			impacts.Set(0, 1+xGap/lim.xIn)
		}
		impacts.Set(1, 1-yGap/lim.y)
		grade := impacts.Grade()

		if grade < hs.MinGrade {
			continue
		}
		if bestRel == nil || grade > bestRel.Grade {
			rel := sig.NewRelation(sig.RelHeadStem, grade)
			rel.MinGrade = hs.MinGrade
			rel.Side = corner.Side()
			rel.Extension = geom.Pt(crossX, refY)
			rel.Manual = head.Manual
			best, bestRel = stem, rel
		}
	}
	return best, bestRel
}

// SearchLinks links a stem-based head to its best stem over all corners.
//
// Description:
//
//	A head already linked to a stem is left unchanged. When no stem is
//	acceptable the head stays abnormal, which is not an error.
//
// Outputs:
//
//	*sig.Relation - The head-stem relation, nil if none was found.
//	error - Non-nil if the graph refused the relation.
func (f *Factory) SearchLinks(head *sig.Inter, stems []*sig.Inter) (*sig.Relation, error) {
	if rels := f.sig.Relations(head, sig.RelHeadStem); len(rels) > 0 {
		return rels[0], nil
	}
	var best *sig.Inter
	var bestRel *sig.Relation
	for _, corner := range Corners {
		stem, rel := f.LookupLink(head, stems, corner)
		if rel != nil && (bestRel == nil || rel.Grade > bestRel.Grade) {
			best, bestRel = stem, rel
		}
	}
	if bestRel == nil {
		return nil, nil
	}
	return f.sig.AddEdge(head, best, bestRel)
}

// LinkHeads links every stem-based head of the system to a stem.
// It returns the number of heads left without stem.
func (f *Factory) LinkHeads() (int, error) {
	stems := f.sig.Inters(sig.KindStem)
	heads := f.sig.Inters(sig.KindHead)
	sig.Sort(heads, sig.ByAbscissa)
	orphans := 0
	for _, head := range heads {
		if !head.Shape.IsStemHead() {
			continue
		}
		rel, err := f.SearchLinks(head, stems)
		if err != nil {
			return orphans, err
		}
		if rel == nil {
			orphans++
		}
	}
	return orphans, nil
}

// LinkBeams links beams and beam hooks to the stems they cross.
func (f *Factory) LinkBeams() error {
	stems := f.sig.Inters(sig.KindStem)
	margin := f.scale.ToPixelsInt(f.cfg.HeadStem.MaxXOutGap)
	beams := f.sig.Inters(sig.KindBeam, sig.KindBeamHook)
	for _, beam := range beams {
		box := beam.Bounds.Grow(margin, margin)
		for _, stem := range sig.IntersectedIn(stems, box) {
			if f.sig.RelationBetween(beam, stem, sig.RelBeamStem) != nil {
				continue
			}
			grade := 1.0
			cx := stem.Center().X
			if cx < float64(beam.Bounds.X) {
				grade = 1 - (float64(beam.Bounds.X)-cx)/float64(max(margin, 1))
			} else if cx > float64(beam.Bounds.Right()) {
				grade = 1 - (cx-float64(beam.Bounds.Right()))/float64(max(margin, 1))
			}
			rel := sig.NewRelation(sig.RelBeamStem, grade)
			if !rel.Acceptable() {
				continue
			}
			if _, err := f.sig.AddEdge(beam, stem, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookupFlagStem finds the stem a flag hangs on, with the relation grade.
func (f *Factory) lookupFlagStem(flag *sig.Inter) (*sig.Inter, float64) {
	maxDx := f.pixels(f.cfg.Links.MaxFlagDx)
	var best *sig.Inter
	bestGrade := 0.0
	for _, stem := range f.sig.Inters(sig.KindStem) {
		if stem.Bounds.Y > flag.Bounds.Bottom() || flag.Bounds.Y > stem.Bounds.Bottom() {
			continue
		}
		dx := math.Abs(float64(flag.Bounds.X) - stem.Center().X)
		if dx > maxDx {
			continue
		}
		grade := 1 - dx/maxDx
		if grade >= sig.RelFlagStem.DefaultMinGrade() && grade > bestGrade {
			best, bestGrade = stem, grade
		}
	}
	return best, bestGrade
}

// linkAlter links an accidental to the closest head on its right.
func (f *Factory) linkAlter(alter *sig.Inter) error {
	maxDx := f.pixels(f.cfg.Links.MaxAlterDx)
	maxDy := f.pixels(f.cfg.Links.MaxAlterDy)
	c := alter.Center()
	box := geom.R(alter.Bounds.Right(), int(c.Y-maxDy), int(math.Ceil(maxDx)), int(math.Ceil(2*maxDy))+1)

	var best *sig.Inter
	var bestRel *sig.Relation
	for _, head := range f.sig.IntersectedInters(box, sig.ByAbscissa, sig.KindHead) {
		dx := max(0, float64(head.Bounds.X-alter.Bounds.Right()))
		dy := math.Abs(head.Center().Y - c.Y)
		impacts := sig.NewImpacts([]string{"dx", "dy"}, []float64{1, 1})
		impacts.Set(0, 1-dx/maxDx)
		impacts.Set(1, 1-dy/maxDy)
		rel := sig.NewRelation(sig.RelAlterHead, impacts.Grade())
		if rel.Acceptable() && (bestRel == nil || rel.Grade > bestRel.Grade) {
			best, bestRel = head, rel
		}
	}
	if best == nil {
		return nil
	}
	_, err := f.sig.AddEdge(alter, best, bestRel)
	return err
}

// linkMarker links a marker to the closest staff barline of its staff.
func (f *Factory) linkMarker(m *sig.Inter) error {
	maxDx := f.pixels(f.cfg.Links.MaxMarkerDx)
	cx := m.Center().X
	var best *sig.Inter
	bestDx := math.MaxFloat64
	for _, bar := range f.sig.Inters(sig.KindStaffBarline) {
		if m.Staff != 0 && bar.Staff != m.Staff {
			continue
		}
		if dx := math.Abs(bar.Center().X - cx); dx <= maxDx && dx < bestDx {
			best, bestDx = bar, dx
		}
	}
	if best == nil {
		return nil
	}
	_, err := f.sig.AddEdge(m, best, sig.NewRelation(sig.RelMarkerBarline, 1-bestDx/maxDx))
	return err
}

// LinkChordMarks links articulations, dynamics and tuplets to chords.
func (f *Factory) LinkChordMarks() error {
	heads := f.sig.Inters(sig.KindHeadChord)
	chords := f.sig.Inters(sig.KindHeadChord, sig.KindRestChord)
	maxDy := f.pixels(f.cfg.Links.MaxChordDy)

	for _, art := range f.sig.Inters(sig.KindArticulation) {
		if len(f.sig.Relations(art, sig.RelArticulationChord)) > 0 {
			continue
		}
		c := art.Center()
		var best *sig.Inter
		bestDy := math.MaxFloat64
		for _, chord := range heads {
			if c.X < float64(chord.Bounds.X) || c.X > float64(chord.Bounds.Right()) {
				continue
			}
			dy := verticalGap(art.Bounds, chord.Bounds)
			if dy <= maxDy && dy < bestDy {
				best, bestDy = chord, dy
			}
		}
		if best != nil {
			if _, err := f.sig.AddEdge(art, best, sig.NewRelation(sig.RelArticulationChord, 1-bestDy/maxDy)); err != nil {
				return err
			}
		}
	}

	for _, dyn := range f.sig.Inters(sig.KindDynamics) {
		if len(f.sig.Relations(dyn, sig.RelDynamicsChord)) > 0 {
			continue
		}
		var sameStaff []*sig.Inter
		for _, chord := range chords {
			if dyn.Staff == 0 || chord.Staff == dyn.Staff {
				sameStaff = append(sameStaff, chord)
			}
		}
		best := sheet.ClosestChord(sameStaff, dyn.Center())
		if best == nil {
			continue
		}
		dist := math.Sqrt(best.Bounds.DistanceSq(dyn.Center()))
		rel := sig.NewRelation(sig.RelDynamicsChord, 1-dist/(2*maxDy))
		if !rel.Acceptable() {
			continue
		}
		if _, err := f.sig.AddEdge(dyn, best, rel); err != nil {
			return err
		}
	}

	return f.linkTuplets(chords)
}

// linkTuplets links each tuplet to the chords it groups: the closest
// chords of its staff, as many as the tuplet number.
func (f *Factory) linkTuplets(chords []*sig.Inter) error {
	for _, tuplet := range f.sig.Inters(sig.KindTuplet) {
		if len(f.sig.Relations(tuplet, sig.RelTupletChord)) > 0 {
			continue
		}
		count := 3
		if tuplet.Shape == shape.TupletSix {
			count = 6
		}
		cx := tuplet.Center().X
		reach := f.pixels(2 * float64(count))

		var near []*sig.Inter
		for _, chord := range chords {
			if tuplet.Staff != 0 && chord.Staff != tuplet.Staff {
				continue
			}
			if math.Abs(chord.Center().X-cx) <= reach {
				near = append(near, chord)
			}
		}
		slices.SortStableFunc(near, func(a, b *sig.Inter) int {
			return cmp.Compare(math.Abs(a.Center().X-cx), math.Abs(b.Center().X-cx))
		})
		if len(near) > count {
			near = near[:count]
		}
		for _, chord := range near {
			dx := math.Abs(chord.Center().X - cx)
			if _, err := f.sig.AddEdge(tuplet, chord, sig.NewRelation(sig.RelTupletChord, 1-dx/(2*reach))); err != nil {
				return err
			}
		}
	}
	return nil
}

// verticalGap returns the vertical distance between two boxes, zero when
// they overlap vertically.
func verticalGap(a, b geom.Rect) float64 {
	switch {
	case a.Bottom() <= b.Y:
		return float64(b.Y - a.Bottom())
	case b.Bottom() <= a.Y:
		return float64(a.Y - b.Bottom())
	default:
		return 0
	}
}
