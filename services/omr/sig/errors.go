// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sig provides the symbol interpretation graph of one system.
//
// The graph holds candidate musical objects (Inters) as vertices and typed,
// graded relations between them as edges. One SIG exists per system of a
// page and no Inter is ever shared between two SIGs.
//
// # Ownership Model
//
// The SIG is the arena of its Inters:
//   - AddVertex assigns the Inter its ID and records the owning SIG
//   - back-links (relation endpoints, mirrors, ensemble members) are IDs
//     resolved through the SIG, never stored as pointers between Inters
//   - Remove tombstones the Inter; any later use of it through any SIG
//     fails with ErrInterRemoved
//
// # Thread Safety
//
// SIG is NOT safe for concurrent use. Every mutation of a system (symbol
// creation, link resolution, disambiguation, rhythm) is performed by a single
// goroutine. Distinct SIGs may be processed in parallel.
//
// # Lifecycle
//
//  1. Create with New(systemID)
//  2. Populate with AddVertex() and AddEdge() calls
//  3. Resolve conflicts with Remove(), collecting Outcome values
//  4. Export with Snapshot()
package sig

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrInterNotFound is returned when an ID does not denote a live Inter.
	ErrInterNotFound = errors.New("inter not found")

	// ErrInterRemoved is returned when a tombstoned Inter is used again.
	// Removed Inters must never be queried, linked or re-inserted.
	ErrInterRemoved = errors.New("inter was removed")

	// ErrAlreadyInGraph is returned when inserting an Inter that already
	// belongs to a SIG.
	ErrAlreadyInGraph = errors.New("inter already belongs to a graph")

	// ErrNotInGraph is returned when an operation needs the Inter to be a
	// member of this SIG.
	ErrNotInGraph = errors.New("inter is not in this graph")

	// ErrInvalidInter is returned for a nil or malformed Inter.
	ErrInvalidInter = errors.New("invalid inter")

	// ErrInvalidRelation is returned for a nil relation or unknown kind.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrSelfRelation is returned when both endpoints are the same Inter.
	ErrSelfRelation = errors.New("relation endpoints must differ")

	// ErrMaxIntersExceeded is returned when the SIG is at capacity.
	ErrMaxIntersExceeded = errors.New("maximum inter count exceeded")

	// ErrMaxRelationsExceeded is returned when the SIG is at relation capacity.
	ErrMaxRelationsExceeded = errors.New("maximum relation count exceeded")
)
