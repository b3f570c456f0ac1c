// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rhythm computes the timing of measure stacks.
//
// For every stack of a system it gathers the head and rest chords of the
// stack measures, groups them into time slots by abscissa, assigns them
// to voices and derives the actual duration. A page pass then gives each
// stack its expected duration, inherited from the last time signature,
// and flags the stacks whose durations disagree.
//
// # Ownership Model
//
// The engine holds only configuration. Stacks, measures, slots and
// voices belong to the sheet.System given to ProcessSystem and are
// rewritten in place.
//
// # Thread Safety
//
// An Engine is immutable and may be shared. ProcessSystem may run for
// several systems at once since systems share nothing. CheckPage reads
// every system of the page and must run alone, after ProcessSystem
// returned for all of them.
//
// # Lifecycle
//
//  1. New(cfg, scale)
//  2. ProcessSystem for each system (parallel)
//  3. CheckPage for the page, carrying the time signature duration from
//     one page to the next
package rhythm

import "errors"

// Sentinel errors.
var (
	// ErrNoMeasure is returned when a stack has no measure for a chord staff.
	ErrNoMeasure = errors.New("no measure for staff")

	// ErrInvalidTime is returned for a time signature with a zero denominator.
	ErrInvalidTime = errors.New("invalid time signature")
)
