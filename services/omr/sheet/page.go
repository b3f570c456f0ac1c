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

	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Page is one page of a score: an ordered list of systems.
type Page struct {
	ID      int       `json:"id" yaml:"id"`
	Scale   Scale     `json:"scale" yaml:"scale"`
	Systems []*System `json:"systems" yaml:"systems"`
}

// System returns the system with the given ID, or nil.
func (p *Page) System(id int) *System {
	for _, sys := range p.Systems {
		if sys.ID == id {
			return sys
		}
	}
	return nil
}

// SystemOf returns the system owning the stack.
func (p *Page) SystemOf(stack *MeasureStack) (*System, error) {
	sys := p.System(stack.System)
	if sys == nil || sys.StackIndex(stack) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrStackNotFound, stack)
	}
	return sys, nil
}

func (p *Page) systemIndex(id int) int {
	for i, sys := range p.Systems {
		if sys.ID == id {
			return i
		}
	}
	return -1
}

// PrecedingInPage returns the previous stack in the page, crossing
// system boundaries, or nil at page start.
func (p *Page) PrecedingInPage(stack *MeasureStack) *MeasureStack {
	sys, err := p.SystemOf(stack)
	if err != nil {
		return nil
	}
	if prev := sys.PreviousSibling(stack); prev != nil {
		return prev
	}
	for i := p.systemIndex(sys.ID) - 1; i >= 0; i-- {
		if last := p.Systems[i].LastStack(); last != nil {
			return last
		}
	}
	return nil
}

// FollowingInPage returns the next stack in the page, crossing system
// boundaries, or nil at page end.
func (p *Page) FollowingInPage(stack *MeasureStack) *MeasureStack {
	sys, err := p.SystemOf(stack)
	if err != nil {
		return nil
	}
	if next := sys.NextSibling(stack); next != nil {
		return next
	}
	for i := p.systemIndex(sys.ID) + 1; i < len(p.Systems); i++ {
		if first := p.Systems[i].FirstStack(); first != nil {
			return first
		}
	}
	return nil
}

// FirstStack returns the first stack of the page, or nil.
func (p *Page) FirstStack() *MeasureStack {
	for _, sys := range p.Systems {
		if st := sys.FirstStack(); st != nil {
			return st
		}
	}
	return nil
}

// Stacks returns every stack of the page in reading order.
func (p *Page) Stacks() []*MeasureStack {
	var all []*MeasureStack
	for _, sys := range p.Systems {
		all = append(all, sys.Stacks...)
	}
	return all
}

// CurrentTimeSignature returns the time signature in force for the stack:
// its own, or the closest one found backward in the page. The second
// result is the stack carrying it.
func (p *Page) CurrentTimeSignature(stack *MeasureStack) (*sig.Inter, *MeasureStack) {
	for st := stack; st != nil; st = p.PrecedingInPage(st) {
		sys := p.System(st.System)
		if sys == nil {
			return nil, nil
		}
		if ts := st.TimeSignature(sys.SIG); ts != nil {
			return ts, st
		}
	}
	return nil, nil
}

// NumberStacks assigns page measure numbers. A second half shares the
// number of the first half, a leading pickup gets number zero.
func (p *Page) NumberStacks() {
	id := 0
	for _, st := range p.Stacks() {
		if !st.IsImplicit() {
			id++
		}
		st.ID = id
	}
}
