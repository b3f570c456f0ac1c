// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sheet holds the page structure consumed and produced by the
// rhythm engine: staves, parts, systems, part barlines, measures, measure
// stacks, time slots and voices.
//
// # Ownership Model
//
// A Page owns its Systems, a System owns its Staves, Parts, MeasureStacks
// and SIG. Structure elements refer to each other and to graph Inters by
// ID only: a Measure knows its part ID, a MeasureStack its system ID, a
// PartBarline the Inter IDs of its staff barlines. Navigation across
// elements always goes through the owning System or Page.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent mutation. A System and
// everything below it is processed by a single goroutine.
//
// # Lifecycle
//
// Stacks are created from barline columns, split and merged while
// barlines are refined, then filled with slots and voices by the rhythm
// engine and finally checked against their expected duration.
package sheet

import "errors"

// Sentinel errors for structure operations.
var (
	// ErrNilStaffBarline is returned when adding a missing staff barline.
	ErrNilStaffBarline = errors.New("staff barline is nil")

	// ErrEmptyPartBarline is returned when a part barline has no staff barline.
	ErrEmptyPartBarline = errors.New("part barline has no staff barline")

	// ErrStaffNotFound is returned when a staff ID is unknown to the system.
	ErrStaffNotFound = errors.New("staff not found")

	// ErrPartMismatch is returned when a barline column or measure list
	// does not match the parts of the system.
	ErrPartMismatch = errors.New("part mismatch")

	// ErrStackNotFound is returned when a stack is not in the system.
	ErrStackNotFound = errors.New("measure stack not found")

	// ErrInvalidStaff is returned for a staff with non-positive geometry.
	ErrInvalidStaff = errors.New("invalid staff")
)
