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
	"errors"
	"log/slog"
	"math"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Shrink returns box reduced around its center by the given ratios.
func Shrink(box geom.Rect, horiRatio, vertRatio float64) geom.Rect {
	c := box.Center()
	w := int(math.Round(float64(box.W) * horiRatio))
	h := int(math.Round(float64(box.H) * vertRatio))
	return geom.R(int(math.Round(c.X-float64(w)/2)), int(math.Round(c.Y-float64(h)/2)), w, h)
}

// StemDirection returns the direction of a stem from its heads to its
// tail: -1 up, +1 down, 0 when no head is linked.
func StemDirection(g *sig.SIG, stem *sig.Inter) int {
	heads := g.Neighbors(stem, sig.RelHeadStem)
	if len(heads) == 0 {
		return 0
	}
	var sumY float64
	for _, h := range heads {
		sumY += h.Center().Y
	}
	dy := stem.Center().Y - sumY/float64(len(heads))
	switch {
	case dy < 0:
		return -1
	case dy > 0:
		return 1
	default:
		return 0
	}
}

// Overlaps tells whether two heads compete for the same evidence.
//
// Description:
//
//	Heads of the same staff more than one step apart never overlap.
//	Otherwise they overlap when the common width exceeds a ratio of the
//	first head width and the common area exceeds a ratio of the smaller
//	area. Heads of different staves whose core boxes intersect are the
//	same physical head assigned to both staves: the head lying on the
//	wrong side of its stem is deleted, and the deletion is reported in the
//	Outcome. The core box is the head box shrunk by the overlap ratios, so
//	heads of two staves that merely touch are kept.
//
// Outputs:
//
//	bool - True if the heads overlap.
//	sig.Outcome - Inters removed while fixing a duplicate. Callers holding
//	either head must check it before going on.
//	error - Non-nil if a head is not a live member of the graph.
func (f *Factory) Overlaps(a, b *sig.Inter) (bool, sig.Outcome, error) {
	if a.IsRemoved() || b.IsRemoved() {
		return false, sig.Outcome{}, sig.ErrInterRemoved
	}
	if a.Staff == b.Staff {
		if abs(a.Pitch-b.Pitch) > 1 {
			return false, sig.Outcome{}, nil
		}
	} else {
		if !f.coreBounds(a).Intersects(f.coreBounds(b)) {
			return false, sig.Outcome{}, nil
		}
		out, err := f.fixDuplicate(a, b)
		return true, out, err
	}

	common := a.Bounds.Intersection(b.Bounds)
	if common.W <= 0 || common.H <= 0 {
		return false, sig.Outcome{}, nil
	}
	minArea := min(a.Bounds.Area(), b.Bounds.Area())
	if minArea == 0 {
		return false, sig.Outcome{}, nil
	}
	ov := f.cfg.Overlap
	areaRatio := float64(common.Area()) / float64(minArea)
	res := float64(common.W) > ov.MaxOverlapDxRatio*float64(a.Bounds.W) &&
		areaRatio > ov.MaxOverlapAreaRatio
	return res, sig.Outcome{}, nil
}

// coreBounds returns the head box reduced by the configured shrink ratios.
func (f *Factory) coreBounds(head *sig.Inter) geom.Rect {
	return Shrink(head.Bounds, f.cfg.Overlap.ShrinkHoriRatio, f.cfg.Overlap.ShrinkVertRatio)
}

// fixDuplicate deletes one of two heads seen on two staves. The stem
// direction points to the staff the head really belongs to.
func (f *Factory) fixDuplicate(this, that *sig.Inter) (sig.Outcome, error) {
	for _, rel := range f.sig.Relations(this, sig.RelHeadStem) {
		stem, err := f.sig.Opposite(this, rel)
		if err != nil {
			return sig.Outcome{}, err
		}
		dir := StemDirection(f.sig, stem)
		diff := f.system.StaffIndex(that.Staff) - f.system.StaffIndex(this.Staff)
		dupli := that
		if dir*diff > 0 {
			dupli = this
		}
		slog.Debug("deleting duplicated head",
			slog.Int("system", f.system.ID),
			slog.String("head", dupli.String()),
		)
		return f.sig.Remove(dupli)
	}
	return sig.Outcome{}, nil
}

// ResolveHeadOverlaps deletes duplicated and overlapping heads.
//
// Description:
//
//	Heads are swept by abscissa. Cross-staff duplicates are fixed through
//	Overlaps; of two overlapping heads of the same staff the weaker one is
//	removed, the later one on equal grades. Removed heads are skipped for
//	the rest of the sweep.
func (f *Factory) ResolveHeadOverlaps() (sig.Outcome, error) {
	var total sig.Outcome
	heads := f.sig.Inters(sig.KindHead)
	sig.Sort(heads, sig.ByAbscissa)

	for i, a := range heads {
		for _, b := range heads[i+1:] {
			if a.IsRemoved() {
				break
			}
			if b.Bounds.X >= a.Bounds.Right() {
				break
			}
			if b.IsRemoved() {
				continue
			}
			overlap, out, err := f.Overlaps(a, b)
			if err != nil {
				if errors.Is(err, sig.ErrInterRemoved) {
					continue
				}
				return total, err
			}
			total.Merge(out)
			if !overlap || out.Stale() {
				continue
			}
			weaker := b
			if a.Grade() < b.Grade() {
				weaker = a
			}
			out, err = f.sig.Remove(weaker)
			if err != nil {
				return total, err
			}
			total.Merge(out)
		}
	}
	return total, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
