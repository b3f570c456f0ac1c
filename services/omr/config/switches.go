// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"strings"
)

// Switch is an optional processing feature.
type Switch int

const (
	// Articulations enables accent, tenuto, staccato and similar marks.
	Articulations Switch = iota

	// Fingerings enables fingering digits.
	Fingerings

	// Pluckings enables plucking letters (p, i, m, a).
	Pluckings

	// Frets enables roman fret numbers.
	Frets

	// Lyrics enables lyrics lines.
	Lyrics

	// NumSwitches is the number of switches.
	NumSwitches
)

var switchNames = [NumSwitches]string{
	Articulations: "articulations",
	Fingerings:    "fingerings",
	Pluckings:     "pluckings",
	Frets:         "frets",
	Lyrics:        "lyrics",
}

var switchDefaults = [NumSwitches]bool{
	Articulations: true,
	Fingerings:    true,
	Pluckings:     true,
	Frets:         true,
	Lyrics:        true,
}

// String returns the switch name.
func (s Switch) String() string {
	if s < 0 || s >= NumSwitches {
		return fmt.Sprintf("switch(%d)", int(s))
	}
	return switchNames[s]
}

// ParseSwitch returns the switch with the given name.
func ParseSwitch(name string) (Switch, bool) {
	for i, n := range switchNames {
		if strings.EqualFold(n, name) {
			return Switch(i), true
		}
	}
	return 0, false
}

// ProcessingSwitches resolves switch values through an inheritance chain:
// default, then book, then sheet. A value not set at one level is taken
// from the parent level.
//
// Thread Safety:
//
//	Read-only use is safe from several goroutines. Mutation is not.
type ProcessingSwitches struct {
	parent *ProcessingSwitches
	values [NumSwitches]*bool
}

// DefaultSwitches returns the root level, with every switch set.
func DefaultSwitches() *ProcessingSwitches {
	p := &ProcessingSwitches{}
	for i, v := range switchDefaults {
		p.values[i] = &v
	}
	return p
}

// Child returns a new level inheriting from p.
func (p *ProcessingSwitches) Child() *ProcessingSwitches {
	return &ProcessingSwitches{parent: p}
}

// Set sets a switch at this level.
func (p *ProcessingSwitches) Set(s Switch, v bool) {
	p.values[s] = &v
}

// Unset makes a switch inherit from the parent level again.
func (p *ProcessingSwitches) Unset(s Switch) {
	p.values[s] = nil
}

// IsSet reports whether the switch is set at this level.
func (p *ProcessingSwitches) IsSet(s Switch) bool {
	return p.values[s] != nil
}

// Value returns the effective value of a switch, false if no level sets it.
func (p *ProcessingSwitches) Value(s Switch) bool {
	for level := p; level != nil; level = level.parent {
		if v := level.values[s]; v != nil {
			return *v
		}
	}
	return false
}

// Apply sets the named switches at this level.
//
// Errors:
//
//	ErrInvalidConfig - an unknown switch name is given
func (p *ProcessingSwitches) Apply(overrides map[string]bool) error {
	for name, v := range overrides {
		s, ok := ParseSwitch(name)
		if !ok {
			return fmt.Errorf("%w: unknown switch %q", ErrInvalidConfig, name)
		}
		p.Set(s, v)
	}
	return nil
}

// Values returns the effective value of every switch, by name.
func (p *ProcessingSwitches) Values() map[string]bool {
	out := make(map[string]bool, NumSwitches)
	for i := range NumSwitches {
		out[i.String()] = p.Value(i)
	}
	return out
}
