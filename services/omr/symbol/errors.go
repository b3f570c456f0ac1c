// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbol turns classifier evaluations into Inters of a system
// graph and resolves the links and conflicts between them.
//
// # Ownership Model
//
// A Factory is bound to one system and writes only to that system's SIG.
// It keeps deferred dot evaluations until the late checks run.
//
// # Thread Safety
//
// Factory is NOT safe for concurrent use. Create one Factory per system and
// drive it from the goroutine processing that system.
//
// # Lifecycle
//
//  1. Create with NewFactory(system, scale, cfg, switches)
//  2. Insert structure Inters with AddStructure (stems, beams, heads)
//  3. Link heads to stems with LinkHeads, resolve overlaps
//  4. Build chords, then Create() each symbol evaluation
//  5. Run LateChecks to settle dots, dynamics and time signatures
package symbol

import "errors"

// Sentinel errors for symbol construction.
var (
	// ErrUnsupportedShape is returned by the manual path for a shape with
	// no construction rule.
	ErrUnsupportedShape = errors.New("unsupported shape")

	// ErrNoStaff is returned when a symbol needs a staff and none is found.
	ErrNoStaff = errors.New("no staff for symbol")
)
