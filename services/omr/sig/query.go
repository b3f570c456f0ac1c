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

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
)

// Order selects the sort order of query results.
type Order int

const (
	// ByID sorts by insertion order.
	ByID Order = iota

	// ByAbscissa sorts by left edge, then top edge.
	ByAbscissa

	// ByCenterAbscissa sorts by center abscissa.
	ByCenterAbscissa

	// ByReverseCenterAbscissa sorts by decreasing center abscissa.
	ByReverseCenterAbscissa

	// ByOrdinate sorts by top edge, then left edge.
	ByOrdinate
)

// Sort orders inters in place. Ties are broken by ID so that results are
// deterministic.
func Sort(inters []*Inter, order Order) {
	slices.SortStableFunc(inters, func(a, b *Inter) int {
		var c int
		switch order {
		case ByAbscissa:
			c = cmp.Or(cmp.Compare(a.Bounds.X, b.Bounds.X), cmp.Compare(a.Bounds.Y, b.Bounds.Y))
		case ByCenterAbscissa:
			c = cmp.Compare(a.Center().X, b.Center().X)
		case ByReverseCenterAbscissa:
			c = cmp.Compare(b.Center().X, a.Center().X)
		case ByOrdinate:
			c = cmp.Or(cmp.Compare(a.Bounds.Y, b.Bounds.Y), cmp.Compare(a.Bounds.X, b.Bounds.X))
		}
		return cmp.Or(c, cmp.Compare(a.id, b.id))
	})
}

// mustLive panics when a tombstoned Inter is used for a query.
func mustLive(in *Inter) {
	if in != nil && in.removed {
		panic(fmt.Errorf("%w: %s used after removal", ErrInterRemoved, in))
	}
}

// Inters returns the live Inters of the given kinds, by ID.
// With no kind, every live Inter is returned.
func (g *SIG) Inters(kinds ...Kind) []*Inter {
	var out []*Inter
	if len(kinds) == 0 {
		out = make([]*Inter, 0, len(g.inters))
		for _, in := range g.inters {
			out = append(out, in)
		}
	} else {
		for _, k := range kinds {
			if k < 0 || k >= NumKinds {
				continue
			}
			for _, in := range g.intersByKind[k] {
				out = append(out, in)
			}
		}
	}
	Sort(out, ByID)
	return out
}

// IntersByShape returns the live Inters carrying one of the shapes, by ID.
func (g *SIG) IntersByShape(shapes ...shape.Shape) []*Inter {
	var out []*Inter
	for _, s := range shapes {
		for _, in := range g.intersByShape[s] {
			out = append(out, in)
		}
	}
	Sort(out, ByID)
	return out
}

// IntersBy returns the live Inters accepted by the predicate, by ID.
func (g *SIG) IntersBy(pred func(*Inter) bool) []*Inter {
	var out []*Inter
	for _, in := range g.inters {
		if pred(in) {
			out = append(out, in)
		}
	}
	Sort(out, ByID)
	return out
}

// IntersectedInters returns the live Inters of the given kinds whose bounds
// intersect box, sorted by order. With no kind, every kind is considered.
func (g *SIG) IntersectedInters(box geom.Rect, order Order, kinds ...Kind) []*Inter {
	out := slices.DeleteFunc(g.Inters(kinds...), func(in *Inter) bool {
		return !in.Bounds.Intersects(box)
	})
	Sort(out, order)
	return out
}

// ContainedInters returns the live Inters of the given kinds whose bounds
// lie entirely inside box, sorted by order.
func (g *SIG) ContainedInters(box geom.Rect, order Order, kinds ...Kind) []*Inter {
	out := slices.DeleteFunc(g.Inters(kinds...), func(in *Inter) bool {
		return !box.ContainsRect(in.Bounds)
	})
	Sort(out, order)
	return out
}

// IntersectedIn filters a pre-sorted candidate list by box intersection,
// keeping the candidates' order.
func IntersectedIn(candidates []*Inter, box geom.Rect) []*Inter {
	var out []*Inter
	for _, in := range candidates {
		if !in.removed && in.Bounds.Intersects(box) {
			out = append(out, in)
		}
	}
	return out
}

// Relations returns the relations touching in, optionally restricted to
// the given kinds, in insertion order.
//
// Panics if in was removed: querying a tombstoned Inter is a programming
// error and must not go unnoticed.
func (g *SIG) Relations(in *Inter, kinds ...RelationKind) []*Relation {
	mustLive(in)
	if in == nil || in.owner != g.serial {
		return nil
	}
	var out []*Relation
	for _, rid := range g.incident[in.id] {
		rel := g.relations[rid]
		if len(kinds) == 0 || slices.Contains(kinds, rel.Kind) {
			out = append(out, rel)
		}
	}
	return out
}

// OutgoingRelations returns the relations whose source is in.
func (g *SIG) OutgoingRelations(in *Inter, kinds ...RelationKind) []*Relation {
	return slices.DeleteFunc(g.Relations(in, kinds...), func(r *Relation) bool {
		return r.source != in.id
	})
}

// IncomingRelations returns the relations whose target is in.
func (g *SIG) IncomingRelations(in *Inter, kinds ...RelationKind) []*Relation {
	return slices.DeleteFunc(g.Relations(in, kinds...), func(r *Relation) bool {
		return r.target != in.id
	})
}

// RelationsOfKind returns every relation of the kind, by ID.
func (g *SIG) RelationsOfKind(kind RelationKind) []*Relation {
	if kind < 0 || kind >= NumRelationKinds {
		return nil
	}
	out := make([]*Relation, 0, len(g.relationsByKind[kind]))
	for _, r := range g.relationsByKind[kind] {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Relation) int { return cmp.Compare(a.id, b.id) })
	return out
}

// RelationBetween returns the relation of the given kind linking a and b in
// either direction, or nil.
func (g *SIG) RelationBetween(a, b *Inter, kind RelationKind) *Relation {
	for _, rel := range g.Relations(a, kind) {
		if rel.Involves(b.id) {
			return rel
		}
	}
	return nil
}

// Opposite returns the Inter at the other end of rel.
//
// Errors:
//
//	ErrInvalidRelation - rel does not touch in
//	ErrInterRemoved - in or the opposite Inter was removed
func (g *SIG) Opposite(in *Inter, rel *Relation) (*Inter, error) {
	if err := g.check(in); err != nil {
		return nil, err
	}
	var other InterID
	switch in.id {
	case rel.source:
		other = rel.target
	case rel.target:
		other = rel.source
	default:
		return nil, fmt.Errorf("%w: %s does not touch %s", ErrInvalidRelation, rel, in)
	}
	return g.Inter(other)
}

// Neighbors returns the Inters linked to in by relations of the given kinds.
func (g *SIG) Neighbors(in *Inter, kinds ...RelationKind) []*Inter {
	var out []*Inter
	for _, rel := range g.Relations(in, kinds...) {
		other := rel.source
		if other == in.id {
			other = rel.target
		}
		if o, ok := g.inters[other]; ok && !slices.Contains(out, o) {
			out = append(out, o)
		}
	}
	return out
}

// Members returns the members of an ensemble, by abscissa.
func (g *SIG) Members(ensemble *Inter) []*Inter {
	var out []*Inter
	for _, rel := range g.OutgoingRelations(ensemble, RelContainment) {
		if m, ok := g.inters[rel.target]; ok {
			out = append(out, m)
		}
	}
	Sort(out, ByAbscissa)
	return out
}

// Ensembles returns the ensembles containing member.
func (g *SIG) Ensembles(member *Inter) []*Inter {
	var out []*Inter
	for _, rel := range g.IncomingRelations(member, RelContainment) {
		if e, ok := g.inters[rel.source]; ok {
			out = append(out, e)
		}
	}
	return out
}

// AddMember links an ensemble to a new member and grows the ensemble
// bounds to include it.
func (g *SIG) AddMember(ensemble, member *Inter) error {
	if !ensemble.Kind.IsEnsemble() {
		return fmt.Errorf("%w: %s is not an ensemble", ErrInvalidRelation, ensemble)
	}
	if g.RelationBetween(ensemble, member, RelContainment) != nil {
		return nil
	}
	if _, err := g.AddEdge(ensemble, member, NewRelation(RelContainment, 1)); err != nil {
		return err
	}
	ensemble.Bounds = ensemble.Bounds.Union(member.Bounds)
	return nil
}

// Exclusions returns the Inters excluded by in.
func (g *SIG) Exclusions(in *Inter) []*Inter {
	return g.Neighbors(in, RelExclusion)
}

// Bounds returns the union of the bounds of the given Inters.
func Bounds(inters []*Inter) geom.Rect {
	var box geom.Rect
	for _, in := range inters {
		box = box.Union(in.Bounds)
	}
	return box
}
