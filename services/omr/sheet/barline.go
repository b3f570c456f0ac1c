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
	"strings"

	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sig"
)

// Style is the logical style of a barline.
type Style int

const (
	StyleNone Style = iota
	StyleRegular
	StyleDotted
	StyleDashed
	StyleHeavy
	StyleLightLight
	StyleLightHeavy
	StyleHeavyLight
	StyleHeavyHeavy
	StyleTick
	StyleShort

	// NumStyles is the number of styles.
	NumStyles
)

var styleNames = [NumStyles]string{
	StyleNone:       "none",
	StyleRegular:    "regular",
	StyleDotted:     "dotted",
	StyleDashed:     "dashed",
	StyleHeavy:      "heavy",
	StyleLightLight: "light-light",
	StyleLightHeavy: "light-heavy",
	StyleHeavyLight: "heavy-light",
	StyleHeavyHeavy: "heavy-heavy",
	StyleTick:       "tick",
	StyleShort:      "short",
}

// String returns the style name.
func (s Style) String() string {
	if s < 0 || s >= NumStyles {
		return fmt.Sprintf("style(%d)", int(s))
	}
	return styleNames[s]
}

// MarshalText encodes the style by name.
func (s Style) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a style name.
func (s *Style) UnmarshalText(b []byte) error {
	for i, name := range styleNames {
		if name == string(b) {
			*s = Style(i)
			return nil
		}
	}
	return fmt.Errorf("unknown barline style %q", string(b))
}

// Side is a horizontal side.
type Side int

const (
	Left Side = iota
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a side name.
func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "left":
		*s = Left
	case "right":
		*s = Right
	default:
		return fmt.Errorf("unknown side %q", string(b))
	}
	return nil
}

// BarlineInfo is what a staff barline shape tells about style and repeats.
type BarlineInfo struct {
	Style       Style
	LeftRepeat  bool
	RightRepeat bool
}

// InfoOf returns the barline information carried by a staff barline shape.
func InfoOf(s shape.Shape) BarlineInfo {
	switch s {
	case shape.ThinBarline, shape.ThinConnector:
		return BarlineInfo{Style: StyleRegular}
	case shape.ThickBarline, shape.ThickConnector:
		return BarlineInfo{Style: StyleHeavy}
	case shape.DoubleBarline:
		return BarlineInfo{Style: StyleLightLight}
	case shape.FinalBarline:
		return BarlineInfo{Style: StyleLightHeavy}
	case shape.ReverseFinalBarline:
		return BarlineInfo{Style: StyleHeavyLight}
	case shape.LeftRepeatSign:
		return BarlineInfo{Style: StyleHeavyLight, LeftRepeat: true}
	case shape.RightRepeatSign:
		return BarlineInfo{Style: StyleLightHeavy, RightRepeat: true}
	case shape.BackToBackRepeatSign:
		return BarlineInfo{Style: StyleHeavyHeavy, LeftRepeat: true, RightRepeat: true}
	default:
		return BarlineInfo{Style: StyleNone}
	}
}

// PartBarline is the logical barline of a part: one staff barline per
// staff of the part, from top to bottom.
type PartBarline struct {
	// StaffBarlines holds the staff barline Inter IDs.
	StaffBarlines []sig.InterID `json:"staff_barlines" yaml:"staff_barlines"`
}

// NewPartBarline creates a part barline from its staff barlines.
//
// Errors:
//
//	ErrEmptyPartBarline - no staff barline given
//	ErrNilStaffBarline - a zero ID was given
func NewPartBarline(staffBarlines ...sig.InterID) (*PartBarline, error) {
	if len(staffBarlines) == 0 {
		return nil, ErrEmptyPartBarline
	}
	pb := &PartBarline{}
	for _, id := range staffBarlines {
		if err := pb.AddStaffBarline(id); err != nil {
			return nil, err
		}
	}
	return pb, nil
}

// AddStaffBarline appends the barline of the next staff.
func (pb *PartBarline) AddStaffBarline(id sig.InterID) error {
	if id == 0 {
		return ErrNilStaffBarline
	}
	pb.StaffBarlines = append(pb.StaffBarlines, id)
	return nil
}

// Contains reports whether the staff barline belongs to this part barline.
func (pb *PartBarline) Contains(id sig.InterID) bool {
	for _, sb := range pb.StaffBarlines {
		if sb == id {
			return true
		}
	}
	return false
}

// Validate checks that the part barline has one staff barline per staff.
func (pb *PartBarline) Validate(part *Part) error {
	if len(pb.StaffBarlines) == 0 {
		return ErrEmptyPartBarline
	}
	if len(pb.StaffBarlines) != len(part.Staves) {
		return fmt.Errorf("%w: part %d has %d staves, barline has %d",
			ErrPartMismatch, part.ID, len(part.Staves), len(pb.StaffBarlines))
	}
	return nil
}

// StaffBarline returns the staff barline Inter for a staff of the part.
func (pb *PartBarline) StaffBarline(g *sig.SIG, part *Part, staffID int) (*sig.Inter, error) {
	idx := part.StaffIndex(staffID)
	if idx < 0 || idx >= len(pb.StaffBarlines) {
		return nil, fmt.Errorf("%w: staff %d in part %d", ErrStaffNotFound, staffID, part.ID)
	}
	return g.Inter(pb.StaffBarlines[idx])
}

// LeftX returns the left abscissa of the barline on a staff.
func (pb *PartBarline) LeftX(g *sig.SIG, part *Part, staffID int) (int, error) {
	sb, err := pb.StaffBarline(g, part, staffID)
	if err != nil {
		return 0, err
	}
	return sb.Bounds.X, nil
}

// RightX returns the right abscissa of the barline on a staff.
func (pb *PartBarline) RightX(g *sig.SIG, part *Part, staffID int) (int, error) {
	sb, err := pb.StaffBarline(g, part, staffID)
	if err != nil {
		return 0, err
	}
	return sb.Bounds.Right() - 1, nil
}

// first returns the first staff barline.
func (pb *PartBarline) first(g *sig.SIG) (*sig.Inter, error) {
	if len(pb.StaffBarlines) == 0 {
		return nil, ErrEmptyPartBarline
	}
	return g.Inter(pb.StaffBarlines[0])
}

// Style returns the style of the first staff barline.
func (pb *PartBarline) Style(g *sig.SIG) Style {
	sb, err := pb.first(g)
	if err != nil {
		return StyleNone
	}
	return InfoOf(sb.Shape).Style
}

// IsLeftRepeat reports whether any staff barline is a left repeat.
func (pb *PartBarline) IsLeftRepeat(g *sig.SIG) bool {
	return pb.any(g, func(info BarlineInfo) bool { return info.LeftRepeat })
}

// IsRightRepeat reports whether any staff barline is a right repeat.
func (pb *PartBarline) IsRightRepeat(g *sig.SIG) bool {
	return pb.any(g, func(info BarlineInfo) bool { return info.RightRepeat })
}

func (pb *PartBarline) any(g *sig.SIG, pred func(BarlineInfo) bool) bool {
	for _, id := range pb.StaffBarlines {
		if sb, err := g.Inter(id); err == nil && pred(InfoOf(sb.Shape)) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (pb *PartBarline) Clone() *PartBarline {
	if pb == nil {
		return nil
	}
	return &PartBarline{StaffBarlines: append([]sig.InterID(nil), pb.StaffBarlines...)}
}

// String returns a short description for logs.
func (pb *PartBarline) String() string {
	return fmt.Sprintf("PartBarline%v", pb.StaffBarlines)
}
