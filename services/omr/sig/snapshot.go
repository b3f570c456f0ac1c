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
	"github.com/AleutianAI/AleutianOMR/services/omr/glyph"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
)

// GlyphRecord is the serialized form of glyph evidence.
type GlyphRecord struct {
	Left  int             `json:"left" yaml:"left"`
	Top   int             `json:"top" yaml:"top"`
	Table *glyph.RunTable `json:"table" yaml:"table"`
}

// InterRecord is the serialized form of one live Inter.
type InterRecord struct {
	ID          InterID      `json:"id" yaml:"id"`
	Kind        Kind         `json:"kind" yaml:"kind"`
	Shape       shape.Shape  `json:"shape" yaml:"shape"`
	Bounds      geom.Rect    `json:"bounds" yaml:"bounds"`
	Grade       float64      `json:"grade" yaml:"grade"`
	Staff       int          `json:"staff,omitempty" yaml:"staff,omitempty"`
	Glyph       *GlyphRecord `json:"glyph,omitempty" yaml:"glyph,omitempty"`
	Mirror      InterID      `json:"mirror,omitempty" yaml:"mirror,omitempty"`
	Manual      bool         `json:"manual,omitempty" yaml:"manual,omitempty"`
	Abnormal    bool         `json:"abnormal,omitempty" yaml:"abnormal,omitempty"`
	Pitch       int          `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Symbol      string       `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Top         geom.Point   `json:"top" yaml:"top"`
	Bottom      geom.Point   `json:"bottom" yaml:"bottom"`
	Numerator   int          `json:"numerator,omitempty" yaml:"numerator,omitempty"`
	Denominator int          `json:"denominator,omitempty" yaml:"denominator,omitempty"`
}

// RelationRecord is the serialized form of one relation.
type RelationRecord struct {
	ID        RelationID   `json:"id" yaml:"id"`
	Kind      RelationKind `json:"kind" yaml:"kind"`
	Source    InterID      `json:"source" yaml:"source"`
	Target    InterID      `json:"target" yaml:"target"`
	Grade     float64      `json:"grade" yaml:"grade"`
	MinGrade  float64      `json:"min_grade" yaml:"min_grade"`
	Side      Side         `json:"side,omitempty" yaml:"side,omitempty"`
	Extension geom.Point   `json:"extension" yaml:"extension"`
	Manual    bool         `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// Snapshot is a self-contained export of a SIG.
type Snapshot struct {
	SystemID     int              `json:"system_id" yaml:"system_id"`
	NextInter    InterID          `json:"next_inter" yaml:"next_inter"`
	NextRelation RelationID       `json:"next_relation" yaml:"next_relation"`
	Inters       []InterRecord    `json:"inters" yaml:"inters"`
	Relations    []RelationRecord `json:"relations" yaml:"relations"`
}

// Snapshot exports the live content of the SIG, sorted by ID.
func (g *SIG) Snapshot() *Snapshot {
	snap := &Snapshot{
		SystemID:     g.systemID,
		NextInter:    g.nextInter,
		NextRelation: g.nextRelation,
		Inters:       make([]InterRecord, 0, len(g.inters)),
		Relations:    make([]RelationRecord, 0, len(g.relations)),
	}
	for _, in := range g.Inters() {
		rec := InterRecord{
			ID:          in.id,
			Kind:        in.Kind,
			Shape:       in.Shape,
			Bounds:      in.Bounds,
			Grade:       in.grade,
			Staff:       in.Staff,
			Mirror:      in.Mirror,
			Manual:      in.Manual,
			Abnormal:    in.Abnormal,
			Pitch:       in.Pitch,
			Symbol:      in.Symbol,
			Top:         in.Top,
			Bottom:      in.Bottom,
			Numerator:   in.Numerator,
			Denominator: in.Denominator,
		}
		if in.Glyph != nil {
			rec.Glyph = &GlyphRecord{Left: in.Glyph.Left(), Top: in.Glyph.Top(), Table: in.Glyph.Table()}
		}
		snap.Inters = append(snap.Inters, rec)
	}
	for _, rel := range g.relations {
		snap.Relations = append(snap.Relations, RelationRecord{
			ID:        rel.id,
			Kind:      rel.Kind,
			Source:    rel.source,
			Target:    rel.target,
			Grade:     rel.Grade,
			MinGrade:  rel.MinGrade,
			Side:      rel.Side,
			Extension: rel.Extension,
			Manual:    rel.Manual,
		})
	}
	slices.SortFunc(snap.Relations, func(a, b RelationRecord) int { return cmp.Compare(a.ID, b.ID) })
	return snap
}

// Restore rebuilds a SIG from a snapshot, keeping every ID.
//
// Description:
//
//	Inters are re-indexed as-is: their abnormal flags come from the
//	snapshot rather than being recomputed.
//
// Errors:
//
//	ErrInvalidInter - duplicate or unknown Inter record
//	ErrInvalidRelation - a relation endpoint is missing
func Restore(snap *Snapshot, opts ...Option) (*SIG, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidInter)
	}
	g := New(snap.SystemID, opts...)
	for _, rec := range snap.Inters {
		if rec.ID <= 0 || rec.Kind <= KindUnknown || rec.Kind >= NumKinds {
			return nil, fmt.Errorf("%w: record %d", ErrInvalidInter, rec.ID)
		}
		if _, dup := g.inters[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidInter, rec.ID)
		}
		in := &Inter{
			Kind:        rec.Kind,
			Shape:       rec.Shape,
			Bounds:      rec.Bounds,
			Staff:       rec.Staff,
			Mirror:      rec.Mirror,
			Manual:      rec.Manual,
			Abnormal:    rec.Abnormal,
			Pitch:       rec.Pitch,
			Symbol:      rec.Symbol,
			Top:         rec.Top,
			Bottom:      rec.Bottom,
			Numerator:   rec.Numerator,
			Denominator: rec.Denominator,
			id:          rec.ID,
			grade:       clampGrade(rec.Grade),
			owner:       g.serial,
		}
		if rec.Glyph != nil {
			in.Glyph = glyph.New(rec.Glyph.Left, rec.Glyph.Top, rec.Glyph.Table)
		}
		g.index(in)
		g.nextInter = max(g.nextInter, rec.ID)
	}
	for _, rec := range snap.Relations {
		_, okSrc := g.inters[rec.Source]
		_, okTgt := g.inters[rec.Target]
		if !okSrc || !okTgt || rec.Source == rec.Target {
			return nil, fmt.Errorf("%w: relation %d endpoints %d->%d", ErrInvalidRelation, rec.ID, rec.Source, rec.Target)
		}
		if rec.Kind <= RelUnknown || rec.Kind >= NumRelationKinds {
			return nil, fmt.Errorf("%w: relation %d kind %d", ErrInvalidRelation, rec.ID, int(rec.Kind))
		}
		rel := &Relation{
			Kind:      rec.Kind,
			Grade:     rec.Grade,
			MinGrade:  rec.MinGrade,
			Side:      rec.Side,
			Extension: rec.Extension,
			Manual:    rec.Manual,
			id:        rec.ID,
			source:    rec.Source,
			target:    rec.Target,
		}
		g.relations[rel.id] = rel
		g.relationsByKind[rel.Kind][rel.id] = rel
		g.incident[rel.source] = append(g.incident[rel.source], rel.id)
		g.incident[rel.target] = append(g.incident[rel.target], rel.id)
		g.nextRelation = max(g.nextRelation, rec.ID)
	}
	g.nextInter = max(g.nextInter, snap.NextInter)
	g.nextRelation = max(g.nextRelation, snap.NextRelation)
	return g, nil
}
