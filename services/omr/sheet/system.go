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
	"math"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// System is a horizontal band of staves processed as one unit, with its
// own interpretation graph.
type System struct {
	ID     int             `json:"id" yaml:"id"`
	Staves []*Staff        `json:"staves" yaml:"staves"`
	Parts  []*Part         `json:"parts" yaml:"parts"`
	Stacks []*MeasureStack `json:"stacks" yaml:"stacks"`

	// SIG is the interpretation graph of the system.
	SIG *sig.SIG `json:"-" yaml:"-"`
}

// NewSystem creates a system with an empty graph.
//
// Errors:
//
//	ErrInvalidStaff - a staff has invalid geometry
//	ErrPartMismatch - no part, or a part refers to an unknown staff
func NewSystem(id int, staves []*Staff, parts []*Part, opts ...sig.Option) (*System, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: system %d has no part", ErrPartMismatch, id)
	}
	known := make(map[int]bool, len(staves))
	for _, st := range staves {
		if err := st.Validate(); err != nil {
			return nil, err
		}
		known[st.ID] = true
	}
	for _, p := range parts {
		if len(p.Staves) == 0 {
			return nil, fmt.Errorf("%w: part %d has no staff", ErrPartMismatch, p.ID)
		}
		for _, sid := range p.Staves {
			if !known[sid] {
				return nil, fmt.Errorf("%w: part %d refers to staff %d", ErrPartMismatch, p.ID, sid)
			}
		}
	}
	sorted := slices.Clone(staves)
	slices.SortFunc(sorted, func(a, b *Staff) int { return a.Top - b.Top })
	return &System{
		ID:     id,
		Staves: sorted,
		Parts:  parts,
		SIG:    sig.New(id, opts...),
	}, nil
}

// Staff returns the staff with the given ID.
func (sys *System) Staff(id int) (*Staff, error) {
	for _, st := range sys.Staves {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: %d in system %d", ErrStaffNotFound, id, sys.ID)
}

// StaffIndex returns the index of the staff in the system, or -1.
func (sys *System) StaffIndex(id int) int {
	return slices.IndexFunc(sys.Staves, func(st *Staff) bool { return st.ID == id })
}

// PartOf returns the part containing the staff, or nil.
func (sys *System) PartOf(staffID int) *Part {
	for _, p := range sys.Parts {
		if p.StaffIndex(staffID) >= 0 {
			return p
		}
	}
	return nil
}

// Bounds returns the union of staff bounds.
func (sys *System) Bounds() geom.Rect {
	var box geom.Rect
	for _, st := range sys.Staves {
		box = box.Union(st.Bounds())
	}
	return box
}

// ClosestStaff returns the staff whose lines are vertically closest to p.
func (sys *System) ClosestStaff(p geom.Point) *Staff {
	var best *Staff
	bestDy := math.MaxFloat64
	for _, st := range sys.Staves {
		var dy float64
		switch {
		case p.Y < float64(st.Top):
			dy = float64(st.Top) - p.Y
		case p.Y > float64(st.Bottom()):
			dy = p.Y - float64(st.Bottom())
		}
		if dy < bestDy {
			bestDy = dy
			best = st
		}
	}
	return best
}

// StavesAround returns the staff containing p, or the staves just above
// and below it.
func (sys *System) StavesAround(p geom.Point) []*Staff {
	var above, below *Staff
	for _, st := range sys.Staves {
		if p.Y >= float64(st.Top) && p.Y <= float64(st.Bottom()) {
			return []*Staff{st}
		}
		if float64(st.Bottom()) < p.Y {
			above = st
		} else if below == nil {
			below = st
		}
	}
	var out []*Staff
	if above != nil {
		out = append(out, above)
	}
	if below != nil {
		out = append(out, below)
	}
	return out
}

// StaffOf returns the staff an Inter refers to, or the closest staff.
func (sys *System) StaffOf(in *sig.Inter) *Staff {
	if in.Staff != 0 {
		if st, err := sys.Staff(in.Staff); err == nil {
			return st
		}
	}
	return sys.ClosestStaff(in.Center())
}

// BuildStacks creates the measure stacks of the system from its barline
// columns, from left to right. Each column holds one part barline per
// part. A column at the very start of the system becomes the left barline
// of the first stack, a column at its very end the right barline of the
// last stack; every other column splits the stacks.
func (sys *System) BuildStacks(columns [][]*PartBarline, margin int) error {
	left, right := sys.Staves[0].Left, sys.Staves[0].Right
	for _, st := range sys.Staves[1:] {
		left = min(left, st.Left)
		right = max(right, st.Right)
	}

	stack := NewMeasureStack(sys.ID)
	for _, p := range sys.Parts {
		stack.AddMeasure(NewMeasure(p, left, right))
	}
	sys.Stacks = []*MeasureStack{stack}

	for _, column := range columns {
		if len(column) != len(sys.Parts) {
			return fmt.Errorf("%w: column of %d barlines for %d parts",
				ErrPartMismatch, len(column), len(sys.Parts))
		}
		colLeft, colRight := math.MaxInt, 0
		for i, p := range sys.Parts {
			pb := column[i]
			if err := pb.Validate(p); err != nil {
				return err
			}
			for _, sid := range p.Staves {
				lx, err := pb.LeftX(sys.SIG, p, sid)
				if err != nil {
					return err
				}
				rx, err := pb.RightX(sys.SIG, p, sid)
				if err != nil {
					return err
				}
				colLeft = min(colLeft, lx)
				colRight = max(colRight, rx)
			}
		}

		last := sys.Stacks[len(sys.Stacks)-1]
		switch {
		case colLeft <= left+margin:
			for i, m := range sys.Stacks[0].Measures {
				m.LeftBarline = column[i]
			}
		case colRight >= right-margin:
			for i, m := range last.Measures {
				m.RightBarline = column[i]
			}
		default:
			if _, err := sys.SplitAtBarline(last, column); err != nil {
				return err
			}
		}
	}
	for _, st := range sys.Stacks {
		st.ComputeRepeats(sys.SIG)
	}
	return nil
}

// SplitAtBarline splits a stack at a column of part barlines.
//
// Description:
//
//	Each measure is split at the per-staff right abscissa of the barline.
//	The new left stack receives the left halves, the barline column as
//	right barlines and the stack tuplets located left of the split. It is
//	inserted just before the original stack, which keeps the right halves.
//
// Outputs:
//
//	*MeasureStack - The new left stack.
//
// Errors:
//
//	ErrStackNotFound - stack does not belong to this system
//	ErrPartMismatch - column does not provide one valid barline per part
func (sys *System) SplitAtBarline(stack *MeasureStack, column []*PartBarline) (*MeasureStack, error) {
	index := sys.StackIndex(stack)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrStackNotFound, stack)
	}
	if len(column) != len(sys.Parts) {
		return nil, fmt.Errorf("%w: column of %d barlines for %d parts",
			ErrPartMismatch, len(column), len(sys.Parts))
	}

	leftStack := NewMeasureStack(sys.ID)
	leftStack.Left = stack.Left
	leftStack.Right = 0
	newLeft := math.MaxInt

	leftMeasures := make([]*Measure, 0, len(sys.Parts))
	for i, p := range sys.Parts {
		pb := column[i]
		if err := pb.Validate(p); err != nil {
			return nil, err
		}
		measure := stack.MeasureAt(p.ID)
		if measure == nil {
			return nil, fmt.Errorf("%w: no measure for part %d in %s", ErrPartMismatch, p.ID, stack)
		}
		xRefs := make(map[int]int, len(p.Staves))
		for _, sid := range p.Staves {
			x, err := pb.RightX(sys.SIG, p, sid)
			if err != nil {
				return nil, err
			}
			xRefs[sid] = x
			leftStack.Right = max(leftStack.Right, x)
			newLeft = min(newLeft, x)
		}
		left := measure.splitAt(sys.SIG, xRefs)
		left.RightBarline = pb
		leftMeasures = append(leftMeasures, left)
	}
	leftStack.Measures = leftMeasures
	stack.Left = newLeft

	var kept []sig.InterID
	for _, id := range stack.Tuplets {
		in, err := sys.SIG.Inter(id)
		if err == nil && in.Center().X <= float64(leftStack.Right) {
			leftStack.Tuplets = append(leftStack.Tuplets, id)
			continue
		}
		kept = append(kept, id)
	}
	stack.Tuplets = kept

	sys.Stacks = slices.Insert(sys.Stacks, index, leftStack)
	return leftStack, nil
}

// MergeWithRight merges the stack with its next sibling, which leaves
// the system.
func (sys *System) MergeWithRight(stack *MeasureStack) error {
	right := sys.NextSibling(stack)
	if right == nil {
		return fmt.Errorf("%w: no stack right of %s", ErrStackNotFound, stack)
	}
	if err := stack.MergeWithRight(right); err != nil {
		return err
	}
	return sys.RemoveStack(right)
}

// StackIndex returns the index of the stack, or -1.
func (sys *System) StackIndex(stack *MeasureStack) int {
	return slices.Index(sys.Stacks, stack)
}

// RemoveStack removes a stack from the system.
func (sys *System) RemoveStack(stack *MeasureStack) error {
	i := sys.StackIndex(stack)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStackNotFound, stack)
	}
	sys.Stacks = slices.Delete(sys.Stacks, i, i+1)
	return nil
}

// StackAt returns the stack whose abscissa range contains x, or nil.
func (sys *System) StackAt(x float64) *MeasureStack {
	for _, st := range sys.Stacks {
		if float64(st.Left) <= x && x <= float64(st.Right) {
			return st
		}
	}
	return nil
}

// FirstStack returns the first stack, or nil.
func (sys *System) FirstStack() *MeasureStack {
	if len(sys.Stacks) == 0 {
		return nil
	}
	return sys.Stacks[0]
}

// LastStack returns the last stack, or nil.
func (sys *System) LastStack() *MeasureStack {
	if len(sys.Stacks) == 0 {
		return nil
	}
	return sys.Stacks[len(sys.Stacks)-1]
}

// NextSibling returns the stack right after, or nil.
func (sys *System) NextSibling(stack *MeasureStack) *MeasureStack {
	i := sys.StackIndex(stack)
	if i < 0 || i+1 >= len(sys.Stacks) {
		return nil
	}
	return sys.Stacks[i+1]
}

// PreviousSibling returns the stack right before, or nil.
func (sys *System) PreviousSibling(stack *MeasureStack) *MeasureStack {
	i := sys.StackIndex(stack)
	if i <= 0 {
		return nil
	}
	return sys.Stacks[i-1]
}

// Filter keeps the Inters whose center lies within the stack measure of
// their staff.
func (sys *System) Filter(stack *MeasureStack, inters []*sig.Inter) []*sig.Inter {
	var kept []*sig.Inter
	for _, in := range inters {
		c := in.Center()
		if c.X < float64(stack.Left) || c.X > float64(stack.Right) {
			continue
		}
		st := sys.StaffOf(in)
		if st == nil {
			continue
		}
		m := stack.MeasureOfStaff(st.ID)
		if m == nil {
			continue
		}
		if float64(m.XLeft[st.ID]) <= c.X && c.X <= float64(m.XRight[st.ID]) {
			kept = append(kept, in)
		}
	}
	return kept
}

// AssignInter registers an Inter in the stack and measure containing it.
// It returns the stack, or nil when the Inter lies outside every stack.
func (sys *System) AssignInter(in *sig.Inter) *MeasureStack {
	stack := sys.StackAt(in.Center().X)
	if stack == nil {
		return nil
	}
	partID := 0
	if in.Staff != 0 {
		if p := sys.PartOf(in.Staff); p != nil {
			partID = p.ID
		}
	}
	stack.AddInter(in, partID)
	return stack
}
