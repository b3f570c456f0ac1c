// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package input defines the page description read by the engine: staff
// geometry from earlier processing steps, structural symbols (stems,
// beams, heads), barline columns and classifier evaluations.
//
// A page is read from YAML or JSON and checked with validator tags
// before conversion. Shapes are given by name.
//
// # Thread Safety
//
// Decoded values are plain data. Validation uses a shared validator
// instance, which is safe for concurrent use.
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
	"github.com/AleutianAI/AleutianOMR/services/omr/glyph"
	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
)

// Sentinel errors.
var (
	// ErrInvalidPage is returned when a page fails validation.
	ErrInvalidPage = errors.New("invalid page input")

	// ErrDecode is returned when a page cannot be decoded.
	ErrDecode = errors.New("cannot decode page input")
)

// Format is the encoding of a page file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf guesses the format from a file name, YAML by default.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// pageValidate is the validator instance for page inputs.
var pageValidate *validator.Validate

func init() {
	pageValidate = validator.New()
	_ = pageValidate.RegisterValidation("shape", validateShape)
}

// validateShape accepts known shape names.
func validateShape(fl validator.FieldLevel) bool {
	_, ok := shape.Parse(fl.Field().String())
	return ok
}

// Page is the description of one page.
type Page struct {
	// ID is the page number within its book.
	ID int `json:"id" yaml:"id" validate:"gte=0"`

	// Interline is the page scale in pixels. Zero means the configured
	// default.
	Interline int `json:"interline,omitempty" yaml:"interline,omitempty" validate:"gte=0"`

	// Switches overrides the book processing switches for this page.
	Switches map[string]bool `json:"switches,omitempty" yaml:"switches,omitempty"`

	Systems []System `json:"systems" yaml:"systems" validate:"required,min=1,dive"`
}

// System is one system of the page.
type System struct {
	ID     int     `json:"id" yaml:"id" validate:"required,gt=0"`
	Staves []Staff `json:"staves" yaml:"staves" validate:"required,min=1,dive"`
	Parts  []Part  `json:"parts" yaml:"parts" validate:"required,min=1,dive"`

	// Barlines lists the barline columns, each crossing every staff.
	Barlines []Column `json:"barlines,omitempty" yaml:"barlines,omitempty" validate:"dive"`

	// Symbols are structural Inters found by earlier steps, inserted as is.
	Symbols []Symbol `json:"symbols,omitempty" yaml:"symbols,omitempty" validate:"dive"`

	// Evaluations are the classifier results, run through the factory.
	Evaluations []Evaluation `json:"evaluations,omitempty" yaml:"evaluations,omitempty" validate:"dive"`

	// Manual are symbols forced by the user, inserted with the manual
	// flag and the maximal grade.
	Manual []Forced `json:"manual,omitempty" yaml:"manual,omitempty" validate:"dive"`
}

// Staff is the geometry of one staff.
type Staff struct {
	ID         int `json:"id" yaml:"id" validate:"required,gt=0"`
	Left       int `json:"left" yaml:"left" validate:"gte=0"`
	Right      int `json:"right" yaml:"right" validate:"gtfield=Left"`
	Top        int `json:"top" yaml:"top" validate:"gte=0"`
	Interline  int `json:"interline" yaml:"interline" validate:"required,gt=0"`
	HeaderStop int `json:"header_stop,omitempty" yaml:"header_stop,omitempty" validate:"gte=0"`
}

// Part groups staves of one instrument.
type Part struct {
	ID     int    `json:"id" yaml:"id" validate:"required,gt=0"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Staves []int  `json:"staves" yaml:"staves" validate:"required,min=1,dive,gt=0"`
}

// Box is a bounding box in page pixels.
type Box struct {
	X int `json:"x" yaml:"x" validate:"gte=0"`
	Y int `json:"y" yaml:"y" validate:"gte=0"`
	W int `json:"w" yaml:"w" validate:"gt=0"`
	H int `json:"h" yaml:"h" validate:"gt=0"`
}

// Rect converts the box.
func (b Box) Rect() geom.Rect {
	return geom.R(b.X, b.Y, b.W, b.H)
}

// Column is a system-wide barline at abscissa X.
type Column struct {
	X int `json:"x" yaml:"x" validate:"gte=0"`

	// Width defaults to 3 pixels.
	Width int `json:"width,omitempty" yaml:"width,omitempty" validate:"gte=0"`

	// Shape defaults to THIN_BARLINE.
	Shape string `json:"shape,omitempty" yaml:"shape,omitempty" validate:"omitempty,shape"`
}

// BarShape returns the column shape.
func (c Column) BarShape() shape.Shape {
	if s, ok := shape.Parse(c.Shape); ok {
		return s
	}
	return shape.ThinBarline
}

// BarWidth returns the column width.
func (c Column) BarWidth() int {
	if c.Width > 0 {
		return c.Width
	}
	return 3
}

// Symbol is a structural Inter given by an earlier step.
type Symbol struct {
	Shape string  `json:"shape" yaml:"shape" validate:"required,shape"`
	Box   Box     `json:"box" yaml:"box"`
	Staff int     `json:"staff,omitempty" yaml:"staff,omitempty" validate:"gte=0"`
	Grade float64 `json:"grade" yaml:"grade" validate:"gte=0,lte=1"`

	// Runs are the symbol pixels relative to the box corner, if known.
	Runs *glyph.RunTable `json:"runs,omitempty" yaml:"runs,omitempty"`
}

// Forced is a symbol placed by the user.
type Forced struct {
	Shape string `json:"shape" yaml:"shape" validate:"required,shape"`
	Box   Box    `json:"box" yaml:"box"`
	Staff int    `json:"staff,omitempty" yaml:"staff,omitempty" validate:"gte=0"`
}

// Evaluation is one classifier result for a glyph.
type Evaluation struct {
	Shape string  `json:"shape" yaml:"shape" validate:"required,shape"`
	Box   Box     `json:"box" yaml:"box"`
	Grade float64 `json:"grade" yaml:"grade" validate:"gte=0,lte=1"`

	// Staff is optional, the closest staff is used when zero.
	Staff int `json:"staff,omitempty" yaml:"staff,omitempty" validate:"gte=0"`

	// Runs are the glyph pixels relative to the box corner. The whole
	// box is taken as foreground when absent.
	Runs *glyph.RunTable `json:"runs,omitempty" yaml:"runs,omitempty"`
}

// ShapeValue returns the parsed shape of a validated symbol.
func (s Symbol) ShapeValue() shape.Shape {
	sh, _ := shape.Parse(s.Shape)
	return sh
}

// ShapeValue returns the parsed shape of a validated forced symbol.
func (m Forced) ShapeValue() shape.Shape {
	sh, _ := shape.Parse(m.Shape)
	return sh
}

// ShapeValue returns the parsed shape of a validated evaluation.
func (e Evaluation) ShapeValue() shape.Shape {
	sh, _ := shape.Parse(e.Shape)
	return sh
}

// Glyph returns the evaluation glyph, filling the box when no runs are
// given.
func (e Evaluation) Glyph() *glyph.Glyph {
	if e.Runs != nil {
		return glyph.New(e.Box.X, e.Box.Y, e.Runs)
	}
	return glyph.FromBounds(e.Box.Rect())
}

// Glyph returns the symbol glyph, or nil when no runs are given.
func (s Symbol) Glyph() *glyph.Glyph {
	if s.Runs == nil {
		return nil
	}
	return glyph.New(s.Box.X, s.Box.Y, s.Runs)
}

// checkRuns verifies that a run table covers exactly its box.
func checkRuns(t *glyph.RunTable, box Box) error {
	if t == nil {
		return nil
	}
	if t.Width != box.W || t.Height != box.H {
		return fmt.Errorf("runs %dx%d do not match box %dx%d", t.Width, t.Height, box.W, box.H)
	}
	lines, span := t.Width, t.Height
	if t.Orientation == glyph.Horizontal {
		lines, span = t.Height, t.Width
	}
	if len(t.Sequences) != lines {
		return fmt.Errorf("runs hold %d %s sequences, want %d", len(t.Sequences), t.Orientation, lines)
	}
	for _, seq := range t.Sequences {
		for _, r := range seq {
			if r.Start < 0 || r.Length <= 0 || r.Start+r.Length > span {
				return fmt.Errorf("run %d+%d outside 0..%d", r.Start, r.Length, span)
			}
		}
	}
	return nil
}

// Validate checks the page with validator tags, then checks that every
// part staff is a staff of its system.
func (p *Page) Validate() error {
	if err := pageValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	for name := range p.Switches {
		if _, ok := config.ParseSwitch(name); !ok {
			return fmt.Errorf("%w: unknown switch %q", ErrInvalidPage, name)
		}
	}
	for _, sys := range p.Systems {
		known := make(map[int]bool, len(sys.Staves))
		for _, st := range sys.Staves {
			known[st.ID] = true
		}
		for _, part := range sys.Parts {
			for _, id := range part.Staves {
				if !known[id] {
					return fmt.Errorf("%w: system %d part %d uses unknown staff %d",
						ErrInvalidPage, sys.ID, part.ID, id)
				}
			}
		}
		for _, sym := range sys.Symbols {
			if err := checkRuns(sym.Runs, sym.Box); err != nil {
				return fmt.Errorf("%w: system %d %s symbol: %v", ErrInvalidPage, sys.ID, sym.Shape, err)
			}
		}
		for _, ev := range sys.Evaluations {
			if err := checkRuns(ev.Runs, ev.Box); err != nil {
				return fmt.Errorf("%w: system %d %s evaluation: %v", ErrInvalidPage, sys.ID, ev.Shape, err)
			}
		}
	}
	return nil
}

// SheetStaves converts the staves.
func (s *System) SheetStaves() []*sheet.Staff {
	out := make([]*sheet.Staff, 0, len(s.Staves))
	for _, st := range s.Staves {
		out = append(out, &sheet.Staff{
			ID:         st.ID,
			Left:       st.Left,
			Right:      st.Right,
			Top:        st.Top,
			Interline:  st.Interline,
			HeaderStop: st.HeaderStop,
		})
	}
	return out
}

// SheetParts converts the parts.
func (s *System) SheetParts() []*sheet.Part {
	out := make([]*sheet.Part, 0, len(s.Parts))
	for _, p := range s.Parts {
		out = append(out, &sheet.Part{ID: p.ID, Name: p.Name, Staves: append([]int(nil), p.Staves...)})
	}
	return out
}

// Decode reads and validates a page.
//
// Errors:
//
//	ErrDecode - the data is not a page in the given format
//	ErrInvalidPage - the page fails validation
func Decode(r io.Reader, format Format) (*Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var p Page
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&p)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a page file, choosing the format from its extension.
func Load(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatOf(path))
}
