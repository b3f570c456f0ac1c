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

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
)

// LineCount is the number of lines of a standard staff.
const LineCount = 5

// Scale carries the measured page scale.
type Scale struct {
	// Interline is the vertical distance between staff lines, in pixels.
	Interline int `json:"interline" yaml:"interline"`
}

// ToPixels converts a fraction of interline into pixels.
func (s Scale) ToPixels(fraction float64) float64 {
	return fraction * float64(s.Interline)
}

// ToPixelsInt converts a fraction of interline into whole pixels.
func (s Scale) ToPixelsInt(fraction float64) int {
	return int(math.Round(s.ToPixels(fraction)))
}

// Staff is one staff of a system.
type Staff struct {
	// ID is unique within the page, starting at 1 from the top.
	ID int `json:"id" yaml:"id"`

	// Left and Right are the staff abscissa limits.
	Left  int `json:"left" yaml:"left"`
	Right int `json:"right" yaml:"right"`

	// Top is the ordinate of the first line.
	Top int `json:"top" yaml:"top"`

	// Interline is the distance between two lines.
	Interline int `json:"interline" yaml:"interline"`

	// HeaderStop is the abscissa where the staff header (clef, key, time) ends.
	HeaderStop int `json:"header_stop" yaml:"header_stop"`
}

// Validate checks the staff geometry.
func (s *Staff) Validate() error {
	if s.Interline <= 0 || s.Right <= s.Left {
		return fmt.Errorf("%w: staff %d", ErrInvalidStaff, s.ID)
	}
	return nil
}

// Bottom returns the ordinate of the last line.
func (s *Staff) Bottom() int {
	return s.Top + (LineCount-1)*s.Interline
}

// MidY returns the ordinate of the middle line.
func (s *Staff) MidY() float64 {
	return float64(s.Top) + float64((LineCount-1)*s.Interline)/2
}

// Bounds returns the box from first to last line.
func (s *Staff) Bounds() geom.Rect {
	return geom.R(s.Left, s.Top, s.Right-s.Left, s.Bottom()-s.Top+1)
}

// PitchAt returns the pitch position of ordinate y: zero on the middle
// line, positive downward, one unit per line or space.
func (s *Staff) PitchAt(y float64) int {
	return int(math.Round(2 * (y - s.MidY()) / float64(s.Interline)))
}

// YAtPitch returns the ordinate of a pitch position.
func (s *Staff) YAtPitch(pitch int) float64 {
	return s.MidY() + float64(pitch*s.Interline)/2
}

// Part is a group of staves played by one instrument.
type Part struct {
	// ID is the index of the part within its system, starting at 1.
	ID int `json:"id" yaml:"id"`

	// Name is the optional instrument name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Staves lists the staff IDs from top to bottom.
	Staves []int `json:"staves" yaml:"staves"`
}

// StaffIndex returns the index of the staff within the part, or -1.
func (p *Part) StaffIndex(staffID int) int {
	for i, id := range p.Staves {
		if id == staffID {
			return i
		}
	}
	return -1
}
