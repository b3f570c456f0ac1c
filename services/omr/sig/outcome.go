// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sig

import "slices"

// Outcome reports the side effects of an operation that may delete Inters.
//
// Callers holding references to Inters check Stale or Has after each
// mutating call and drop the stale references from their working set
// before continuing. This is the normal way to learn that an Inter being
// compared was just deleted; it is never reported as an error.
type Outcome struct {
	// Removed lists the IDs of Inters tombstoned by the operation.
	Removed []InterID
}

// Stale reports whether any Inter was removed.
func (o Outcome) Stale() bool {
	return len(o.Removed) > 0
}

// Has reports whether the given Inter was removed.
func (o Outcome) Has(id InterID) bool {
	return slices.Contains(o.Removed, id)
}

// Merge appends the removals of other.
func (o *Outcome) Merge(other Outcome) {
	o.Removed = append(o.Removed, other.Removed...)
}
