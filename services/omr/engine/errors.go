// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs the interpretation pipeline over pages.
//
// Each system of a page gets its own graph and symbol factory and is
// processed on its own goroutine: structure insertion, head-stem links,
// overlap resolution, chords, measure stacks, symbol creation, late
// checks and per-stack rhythm. A sequential page pass then checks stack
// durations against time signatures, carrying the current time signature
// from one system and one page to the next.
//
// # Ownership Model
//
// The engine owns nothing between calls. Each call to ProcessPage builds
// fresh systems and returns them in the PageResult; the caller owns them.
//
// # Thread Safety
//
// An Engine is safe for concurrent use. Systems of one page never share
// mutable state during the parallel phase.
//
// # Lifecycle
//
//	e := engine.New(cfg)
//	res, err := e.ProcessPage(ctx, page, nil)
//	next, err := e.ProcessPage(ctx, page2, res.Carried)
package engine

import "errors"

// Sentinel errors.
var (
	// ErrSystemFailed is returned by ProcessPage when no system survived.
	ErrSystemFailed = errors.New("no system could be processed")

	// ErrPanic wraps a panic recovered while processing a system.
	ErrPanic = errors.New("panic while processing system")

	// ErrNilPage is returned when ProcessPage gets no page.
	ErrNilPage = errors.New("nil page")
)
