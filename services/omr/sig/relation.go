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
	"fmt"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
)

// RelationID identifies a relation within its SIG.
type RelationID int

// RelationKind defines the structural meaning of a relation.
type RelationKind int

const (
	// RelUnknown indicates an unrecognized relation kind.
	RelUnknown RelationKind = iota

	// RelContainment links an ensemble (chord, time pair, sentence) to a member.
	RelContainment

	// RelHeadStem links a head to its stem.
	RelHeadStem

	// RelBeamStem links a beam to a stem it crosses.
	RelBeamStem

	// RelFlagStem links a flag to its stem.
	RelFlagStem

	// RelAlterHead links an accidental to the head on its right.
	RelAlterHead

	// RelAugmentation links an augmentation dot to its head or rest.
	RelAugmentation

	// RelDoubleDot links a second augmentation dot to the first one.
	RelDoubleDot

	// RelRepeatDotBar links a repeat dot to its staff barline.
	RelRepeatDotBar

	// RelRepeatDotPair links the two dots of a repeat sign.
	RelRepeatDotPair

	// RelFermataDot links a fermata dot to its arc.
	RelFermataDot

	// RelArticulationChord links an articulation to its head chord.
	RelArticulationChord

	// RelMarkerBarline links a coda, segno or capo marker to a staff barline.
	RelMarkerBarline

	// RelDynamicsChord links a dynamics mark to the chord it applies to.
	RelDynamicsChord

	// RelTupletChord links a tuplet sign to a chord it modifies.
	RelTupletChord

	// RelExclusion records that two Inters cannot both be true. Symmetric.
	RelExclusion

	// NumRelationKinds is the total number of relation kinds (for array sizing).
	NumRelationKinds
)

// relationKindNames maps RelationKind values to their string representations.
var relationKindNames = [NumRelationKinds]string{
	RelUnknown:           "unknown",
	RelContainment:       "containment",
	RelHeadStem:          "head_stem",
	RelBeamStem:          "beam_stem",
	RelFlagStem:          "flag_stem",
	RelAlterHead:         "alter_head",
	RelAugmentation:      "augmentation",
	RelDoubleDot:         "double_dot",
	RelRepeatDotBar:      "repeat_dot_bar",
	RelRepeatDotPair:     "repeat_dot_pair",
	RelFermataDot:        "fermata_dot",
	RelArticulationChord: "articulation_chord",
	RelMarkerBarline:     "marker_barline",
	RelDynamicsChord:     "dynamics_chord",
	RelTupletChord:       "tuplet_chord",
	RelExclusion:         "exclusion",
}

// defaultMinGrades holds the acceptance threshold of each kind.
var defaultMinGrades = [NumRelationKinds]float64{
	RelHeadStem:          0.3,
	RelBeamStem:          0.3,
	RelFlagStem:          0.3,
	RelAlterHead:         0.3,
	RelAugmentation:      0.2,
	RelDoubleDot:         0.2,
	RelRepeatDotBar:      0.3,
	RelRepeatDotPair:     0.3,
	RelFermataDot:        0.3,
	RelArticulationChord: 0.3,
	RelMarkerBarline:     0.3,
	RelDynamicsChord:     0.3,
	RelTupletChord:       0.3,
}

// String returns the string representation of the RelationKind.
func (k RelationKind) String() string {
	if k >= 0 && k < NumRelationKinds {
		return relationKindNames[k]
	}
	return "unknown"
}

// ParseRelationKind returns the relation kind with the given name.
func ParseRelationKind(name string) (RelationKind, bool) {
	for k := RelUnknown; k < NumRelationKinds; k++ {
		if relationKindNames[k] == name {
			return k, true
		}
	}
	return RelUnknown, false
}

// MarshalText encodes the kind by name.
func (k RelationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a relation kind name.
func (k *RelationKind) UnmarshalText(b []byte) error {
	v, ok := ParseRelationKind(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRelation, string(b))
	}
	*k = v
	return nil
}

// Symmetric reports whether source and target are interchangeable.
func (k RelationKind) Symmetric() bool {
	return k == RelExclusion || k == RelRepeatDotPair
}

// DefaultMinGrade returns the acceptance threshold for the kind.
func (k RelationKind) DefaultMinGrade() float64 {
	if k >= 0 && k < NumRelationKinds {
		return defaultMinGrades[k]
	}
	return 0
}

// Side tells on which horizontal side of a head a stem is attached.
type Side int

const (
	// SideNone is used for relations without side information.
	SideNone Side = iota

	// SideLeft means the stem is on the left of the head (stem down).
	SideLeft

	// SideRight means the stem is on the right of the head (stem up).
	SideRight
)

// String returns "none", "left" or "right".
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// Relation is a typed, graded edge between two Inters.
type Relation struct {
	// Kind is the relation kind.
	Kind RelationKind

	// Grade is the quality of the geometric fit, in [0,1].
	Grade float64

	// MinGrade is the acceptance threshold.
	MinGrade float64

	// Side is the head side for head-stem relations.
	Side Side

	// Extension is the connection point when relevant.
	Extension geom.Point

	// Manual is set for user-forced relations.
	Manual bool

	id     RelationID
	source InterID
	target InterID
}

// NewRelation creates a detached relation of the given kind and grade,
// with the kind's default minimum grade.
func NewRelation(kind RelationKind, grade float64) *Relation {
	return &Relation{
		Kind:     kind,
		Grade:    clampGrade(grade),
		MinGrade: kind.DefaultMinGrade(),
	}
}

// ID returns the ID assigned by AddEdge.
func (r *Relation) ID() RelationID { return r.id }

// Source returns the source Inter ID.
func (r *Relation) Source() InterID { return r.source }

// Target returns the target Inter ID.
func (r *Relation) Target() InterID { return r.target }

// Acceptable reports whether Grade reaches MinGrade.
func (r *Relation) Acceptable() bool {
	return r.Grade >= r.MinGrade
}

// Involves reports whether id is one of the endpoints.
func (r *Relation) Involves(id InterID) bool {
	return r.source == id || r.target == id
}

// String returns a short description for logs.
func (r *Relation) String() string {
	return fmt.Sprintf("%s#%d(%d->%d g=%.2f)", r.Kind, r.id, r.source, r.target, r.Grade)
}
