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
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
)

// Default configuration values.
const (
	// DefaultMaxInters is the default maximum number of live Inters in one SIG.
	DefaultMaxInters = 200_000

	// DefaultMaxRelations is the default maximum number of relations in one SIG.
	DefaultMaxRelations = 1_000_000
)

// graphSerial hands out process-unique SIG serials for ownership checks.
var graphSerial atomic.Uint64

// Options configures SIG limits.
type Options struct {
	// MaxInters is the maximum number of live Inters.
	// Default: 200,000
	MaxInters int

	// MaxRelations is the maximum number of relations.
	// Default: 1,000,000
	MaxRelations int
}

// DefaultOptions returns sensible defaults for graph configuration.
func DefaultOptions() Options {
	return Options{
		MaxInters:    DefaultMaxInters,
		MaxRelations: DefaultMaxRelations,
	}
}

// Option is a functional option for configuring a SIG.
type Option func(*Options)

// WithMaxInters sets the maximum number of live Inters.
func WithMaxInters(n int) Option {
	return func(o *Options) {
		o.MaxInters = n
	}
}

// WithMaxRelations sets the maximum number of relations.
func WithMaxRelations(n int) Option {
	return func(o *Options) {
		o.MaxRelations = n
	}
}

// SIG is the symbol interpretation graph of one system.
//
// Thread Safety:
//
//	SIG is NOT safe for concurrent use. One goroutine owns a SIG for the
//	whole processing of its system.
type SIG struct {
	systemID int
	serial   uint64

	inters    map[InterID]*Inter
	relations map[RelationID]*Relation

	// incident maps an Inter to the relations touching it, in insertion order.
	incident map[InterID][]RelationID

	// intersByKind is the kind index.
	intersByKind [NumKinds]map[InterID]*Inter

	// intersByShape is the shape index.
	intersByShape map[shape.Shape]map[InterID]*Inter

	// relationsByKind is the relation kind index.
	relationsByKind [NumRelationKinds]map[RelationID]*Relation

	nextInter    InterID
	nextRelation RelationID
	removedCount int

	options Options
}

// New creates an empty SIG for the given system.
//
// Example:
//
//	g := sig.New(1)
//	g := sig.New(1, sig.WithMaxInters(10_000))
func New(systemID int, opts ...Option) *SIG {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	g := &SIG{
		systemID:      systemID,
		serial:        graphSerial.Add(1),
		inters:        make(map[InterID]*Inter),
		relations:     make(map[RelationID]*Relation),
		incident:      make(map[InterID][]RelationID),
		intersByShape: make(map[shape.Shape]map[InterID]*Inter),
		options:       options,
	}
	for k := range g.intersByKind {
		g.intersByKind[k] = make(map[InterID]*Inter)
	}
	for k := range g.relationsByKind {
		g.relationsByKind[k] = make(map[RelationID]*Relation)
	}
	return g
}

// SystemID returns the ID of the system this SIG belongs to.
func (g *SIG) SystemID() int { return g.systemID }

// InterCount returns the number of live Inters.
func (g *SIG) InterCount() int { return len(g.inters) }

// RelationCount returns the number of relations.
func (g *SIG) RelationCount() int { return len(g.relations) }

// Contains reports whether the Inter is a live member of this SIG.
func (g *SIG) Contains(in *Inter) bool {
	return in != nil && !in.removed && in.owner == g.serial
}

// AddVertex inserts a standalone Inter.
//
// Description:
//
//	Assigns the next Inter ID, records ownership and updates the kind and
//	shape indexes. A stem-type head is inserted abnormal until a stem is
//	linked.
//
// Inputs:
//
//	in - The standalone Inter. Must not be nil.
//
// Outputs:
//
//	InterID - The assigned ID.
//	error - Non-nil if the Inter cannot be inserted.
//
// Errors:
//
//	ErrInvalidInter - in is nil or has an unknown kind
//	ErrInterRemoved - in was tombstoned by a previous Remove
//	ErrAlreadyInGraph - in already belongs to a SIG (this one or another)
//	ErrMaxIntersExceeded - SIG is at capacity
func (g *SIG) AddVertex(in *Inter) (InterID, error) {
	if in == nil {
		return 0, fmt.Errorf("%w: inter is nil", ErrInvalidInter)
	}
	if in.removed {
		return 0, fmt.Errorf("%w: %s cannot be re-inserted", ErrInterRemoved, in)
	}
	if in.owner != 0 {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyInGraph, in)
	}
	if in.Kind <= KindUnknown || in.Kind >= NumKinds {
		return 0, fmt.Errorf("%w: kind %d", ErrInvalidInter, int(in.Kind))
	}
	if len(g.inters) >= g.options.MaxInters {
		return 0, ErrMaxIntersExceeded
	}

	g.nextInter++
	in.id = g.nextInter
	in.owner = g.serial
	g.index(in)

	if in.Kind == KindHead && in.Shape.IsStemHead() {
		in.Abnormal = true
	}

	recordInterAdded(context.Background(), in.Kind)
	return in.id, nil
}

func (g *SIG) index(in *Inter) {
	g.inters[in.id] = in
	g.intersByKind[in.Kind][in.id] = in
	byShape, ok := g.intersByShape[in.Shape]
	if !ok {
		byShape = make(map[InterID]*Inter)
		g.intersByShape[in.Shape] = byShape
	}
	byShape[in.id] = in
}

// Inter returns the live Inter with the given ID.
//
// Errors:
//
//	ErrInterNotFound - no Inter ever had this ID in this SIG
//	ErrInterRemoved - the Inter was tombstoned
func (g *SIG) Inter(id InterID) (*Inter, error) {
	if in, ok := g.inters[id]; ok {
		return in, nil
	}
	if id > 0 && id <= g.nextInter {
		return nil, fmt.Errorf("%w: id %d", ErrInterRemoved, id)
	}
	return nil, fmt.Errorf("%w: id %d", ErrInterNotFound, id)
}

// check verifies that in is a live member of this SIG.
func (g *SIG) check(in *Inter) error {
	switch {
	case in == nil:
		return fmt.Errorf("%w: inter is nil", ErrInvalidInter)
	case in.removed:
		return fmt.Errorf("%w: %s", ErrInterRemoved, in)
	case in.owner != g.serial:
		return fmt.Errorf("%w: %s", ErrNotInGraph, in)
	}
	return nil
}

// AddEdge links source to target with the given relation.
//
// Description:
//
//	Both endpoints must be live members of this SIG. The relation is
//	assigned an ID and indexed by kind. Linking a stem to a head clears
//	the head's abnormal flag.
//
// Errors:
//
//	ErrInvalidRelation - rel is nil, already attached, or of unknown kind
//	ErrSelfRelation - source and target are the same Inter
//	ErrInterRemoved - an endpoint was tombstoned
//	ErrNotInGraph - an endpoint is standalone or belongs to another SIG
//	ErrMaxRelationsExceeded - SIG is at relation capacity
func (g *SIG) AddEdge(source, target *Inter, rel *Relation) (*Relation, error) {
	if rel == nil || rel.id != 0 {
		return nil, fmt.Errorf("%w: nil or already attached", ErrInvalidRelation)
	}
	if rel.Kind <= RelUnknown || rel.Kind >= NumRelationKinds {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidRelation, int(rel.Kind))
	}
	if err := g.check(source); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := g.check(target); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if source == target {
		return nil, fmt.Errorf("%w: %s", ErrSelfRelation, source)
	}
	if len(g.relations) >= g.options.MaxRelations {
		return nil, ErrMaxRelationsExceeded
	}

	g.nextRelation++
	rel.id = g.nextRelation
	rel.source = source.id
	rel.target = target.id
	g.relations[rel.id] = rel
	g.relationsByKind[rel.Kind][rel.id] = rel
	g.incident[source.id] = append(g.incident[source.id], rel.id)
	g.incident[target.id] = append(g.incident[target.id], rel.id)

	if rel.Kind == RelHeadStem && source.Kind == KindHead {
		source.Abnormal = false
	}

	recordRelationAdded(context.Background(), rel.Kind)
	return rel, nil
}

// RemoveEdge detaches a relation. Unknown relations are ignored.
func (g *SIG) RemoveEdge(rel *Relation) {
	if rel == nil {
		return
	}
	if _, ok := g.relations[rel.id]; !ok {
		return
	}
	g.dropRelation(rel)
	g.refreshAbnormal(rel.source)
}

func (g *SIG) dropRelation(rel *Relation) {
	delete(g.relations, rel.id)
	delete(g.relationsByKind[rel.Kind], rel.id)
	g.incident[rel.source] = slices.DeleteFunc(g.incident[rel.source], func(id RelationID) bool {
		return id == rel.id
	})
	g.incident[rel.target] = slices.DeleteFunc(g.incident[rel.target], func(id RelationID) bool {
		return id == rel.id
	})
}

// refreshAbnormal re-evaluates the stem requirement of a head.
func (g *SIG) refreshAbnormal(id InterID) {
	in, ok := g.inters[id]
	if !ok || in.Kind != KindHead || !in.Shape.IsStemHead() {
		return
	}
	in.Abnormal = len(g.Relations(in, RelHeadStem)) == 0
}

// Remove tombstones an Inter and drops every incident relation.
//
// Description:
//
//	The Inter leaves all indexes, its relations are deleted (including
//	exclusions), mirror references to it are cleared and heads that lose
//	their only stem become abnormal again. Ensembles left without members
//	are removed as well and reported in the Outcome.
//
// Outputs:
//
//	Outcome - The IDs of every Inter removed by this call.
//	error - Non-nil if in is not a live member of this SIG.
//
// Errors:
//
//	ErrInterRemoved - in was already removed
//	ErrNotInGraph - in does not belong to this SIG
func (g *SIG) Remove(in *Inter) (Outcome, error) {
	if err := g.check(in); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	g.remove(in, &out)
	return out, nil
}

func (g *SIG) remove(in *Inter, out *Outcome) {
	if in.removed {
		return
	}
	in.removed = true
	out.Removed = append(out.Removed, in.id)

	var ensembles []*Inter
	var neighbors []InterID
	for _, rid := range slices.Clone(g.incident[in.id]) {
		rel := g.relations[rid]
		other := rel.source
		if other == in.id {
			other = rel.target
		}
		if rel.Kind == RelContainment && rel.target == in.id {
			if ens, ok := g.inters[rel.source]; ok {
				ensembles = append(ensembles, ens)
			}
		}
		neighbors = append(neighbors, other)
		g.dropRelation(rel)
	}
	delete(g.incident, in.id)

	delete(g.inters, in.id)
	delete(g.intersByKind[in.Kind], in.id)
	delete(g.intersByShape[in.Shape], in.id)
	g.removedCount++

	if in.Mirror != 0 {
		if m, ok := g.inters[in.Mirror]; ok && m.Mirror == in.id {
			m.Mirror = 0
		}
	}

	for _, id := range neighbors {
		g.refreshAbnormal(id)
	}

	recordInterRemoved(context.Background(), in.Kind)
	slog.Debug("inter removed",
		slog.Int("system", g.systemID),
		slog.String("inter", in.String()),
	)

	for _, ens := range ensembles {
		if !ens.removed && len(g.Relations(ens, RelContainment)) == 0 {
			g.remove(ens, out)
		}
	}
}

// SetMirror records a and b as alternate readings of the same evidence.
func (g *SIG) SetMirror(a, b *Inter) error {
	if err := g.check(a); err != nil {
		return err
	}
	if err := g.check(b); err != nil {
		return err
	}
	a.Mirror = b.id
	b.Mirror = a.id
	return nil
}

// InsertExclusion records that a and b cannot both hold.
// An existing exclusion between them is returned unchanged.
func (g *SIG) InsertExclusion(a, b *Inter) (*Relation, error) {
	if rel := g.RelationBetween(a, b, RelExclusion); rel != nil {
		return rel, nil
	}
	return g.AddEdge(a, b, NewRelation(RelExclusion, 1))
}

// Stats holds summary counts of a SIG.
type Stats struct {
	SystemID       int            `json:"system_id"`
	Inters         int            `json:"inters"`
	Relations      int            `json:"relations"`
	Removed        int            `json:"removed"`
	IntersByKind   map[string]int `json:"inters_by_kind"`
	RelationByKind map[string]int `json:"relations_by_kind"`
}

// Stats returns summary counts.
func (g *SIG) Stats() Stats {
	st := Stats{
		SystemID:       g.systemID,
		Inters:         len(g.inters),
		Relations:      len(g.relations),
		Removed:        g.removedCount,
		IntersByKind:   make(map[string]int),
		RelationByKind: make(map[string]int),
	}
	for k, m := range g.intersByKind {
		if len(m) > 0 {
			st.IntersByKind[Kind(k).String()] = len(m)
		}
	}
	for k, m := range g.relationsByKind {
		if len(m) > 0 {
			st.RelationByKind[RelationKind(k).String()] = len(m)
		}
	}
	return st
}
