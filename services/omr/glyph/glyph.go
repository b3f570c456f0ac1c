// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package glyph models the pixel evidence behind an interpretation.
//
// A Glyph is an absolute offset plus a run-length table. Derived geometry
// (weight, centroid, best-fit line, slope, moments) is computed on first
// access and cached inside the glyph.
//
// # Thread Safety
//
// Glyph is immutable from the outside, but the derived-geometry cache is
// filled lazily without locking. Concurrent first access to the same glyph
// from several goroutines is NOT safe. Regions never share glyphs, so each
// region's single writer is the only caller.
package glyph

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianOMR/services/omr/geom"
)

// ErrNoPixel is returned when derived geometry needs at least one pixel.
var ErrNoPixel = errors.New("glyph has no pixel, cannot compute line")

// Orientation tells how runs are laid out in a RunTable.
type Orientation int

const (
	// Vertical tables hold one sequence per column; runs extend along y.
	Vertical Orientation = iota

	// Horizontal tables hold one sequence per row; runs extend along x.
	Horizontal
)

// String returns "vertical" or "horizontal".
func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// Run is a sequence of foreground pixels within one column or row.
type Run struct {
	// Start is the coordinate of the first pixel, relative to the table.
	Start int `json:"start" yaml:"start"`

	// Length is the number of pixels, always positive.
	Length int `json:"length" yaml:"length"`
}

// RunTable is a run-length encoding of a binary image.
type RunTable struct {
	Orientation Orientation `json:"orientation" yaml:"orientation"`
	Width       int         `json:"width" yaml:"width"`
	Height      int         `json:"height" yaml:"height"`

	// Sequences holds one slice of runs per column (Vertical) or row (Horizontal).
	Sequences [][]Run `json:"sequences" yaml:"sequences"`
}

// Weight returns the number of foreground pixels.
func (t *RunTable) Weight() int {
	w := 0
	for _, seq := range t.Sequences {
		for _, r := range seq {
			w += r.Length
		}
	}
	return w
}

// Equal reports structural equality.
func (t *RunTable) Equal(o *RunTable) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Orientation != o.Orientation || t.Width != o.Width || t.Height != o.Height {
		return false
	}
	return slices.EqualFunc(t.Sequences, o.Sequences, func(a, b []Run) bool {
		return slices.Equal(a, b)
	})
}

// FilledTable returns a vertical table where every pixel of a w x h box is set.
func FilledTable(w, h int) *RunTable {
	seqs := make([][]Run, w)
	for x := range seqs {
		seqs[x] = []Run{{Start: 0, Length: h}}
	}
	return &RunTable{Orientation: Vertical, Width: w, Height: h, Sequences: seqs}
}

// Moments holds the first and second order statistics of the pixels.
type Moments struct {
	Weight int     `json:"weight"`
	MeanX  float64 `json:"mean_x"`
	MeanY  float64 `json:"mean_y"`

	// Central second order moments, normalized by weight.
	Mu20 float64 `json:"mu20"`
	Mu02 float64 `json:"mu02"`
	Mu11 float64 `json:"mu11"`
}

// Line is a best-fit segment across the glyph's major extent.
type Line struct {
	P1 geom.Point `json:"p1"`
	P2 geom.Point `json:"p2"`

	// Vertical is true when the line was fitted as x = f(y).
	Vertical bool `json:"vertical"`
}

// Glyph is an immutable pixel shape at an absolute page location.
type Glyph struct {
	left  int
	top   int
	table *RunTable

	// Lazily computed, not thread-safe.
	moments *Moments
	line    *Line
	slope   *float64
}

// New creates a glyph from its absolute top-left offset and run table.
func New(left, top int, table *RunTable) *Glyph {
	if table == nil {
		table = &RunTable{}
	}
	return &Glyph{left: left, top: top, table: table}
}

// FromBounds creates a glyph whose pixels fill the given box.
func FromBounds(box geom.Rect) *Glyph {
	return New(box.X, box.Y, FilledTable(max(box.W, 0), max(box.H, 0)))
}

// Left returns the absolute abscissa of the table origin.
func (g *Glyph) Left() int { return g.left }

// Top returns the absolute ordinate of the table origin.
func (g *Glyph) Top() int { return g.top }

// Table returns the run table. Callers must not modify it.
func (g *Glyph) Table() *RunTable { return g.table }

// Bounds returns the absolute box of the run table.
func (g *Glyph) Bounds() geom.Rect {
	return geom.R(g.left, g.top, g.table.Width, g.table.Height)
}

// Weight returns the number of foreground pixels.
func (g *Glyph) Weight() int {
	return g.table.Weight()
}

// Equal reports whether both glyphs have the same offset and runs.
func (g *Glyph) Equal(o *Glyph) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.left == o.left && g.top == o.top && g.table.Equal(o.table)
}

// pixels calls fn for every foreground pixel, in absolute coordinates.
func (g *Glyph) pixels(fn func(x, y float64)) {
	for i, seq := range g.table.Sequences {
		for _, r := range seq {
			for k := 0; k < r.Length; k++ {
				if g.table.Orientation == Vertical {
					fn(float64(g.left+i), float64(g.top+r.Start+k))
				} else {
					fn(float64(g.left+r.Start+k), float64(g.top+i))
				}
			}
		}
	}
}

// Moments returns the pixel statistics, computing them on first call.
//
// Errors:
//
//	ErrNoPixel - the glyph has no foreground pixel
func (g *Glyph) Moments() (Moments, error) {
	if g.moments != nil {
		return *g.moments, nil
	}

	var n, sx, sy float64
	g.pixels(func(x, y float64) {
		n++
		sx += x
		sy += y
	})
	if n == 0 {
		return Moments{}, ErrNoPixel
	}

	// Pixel centers sit half a pixel inside the integer grid.
	mx := sx/n + 0.5
	my := sy/n + 0.5

	var m20, m02, m11 float64
	g.pixels(func(x, y float64) {
		dx := x + 0.5 - mx
		dy := y + 0.5 - my
		m20 += dx * dx
		m02 += dy * dy
		m11 += dx * dy
	})

	g.moments = &Moments{
		Weight: int(n),
		MeanX:  mx,
		MeanY:  my,
		Mu20:   m20 / n,
		Mu02:   m02 / n,
		Mu11:   m11 / n,
	}
	return *g.moments, nil
}

// Centroid returns the mass center of the pixels.
func (g *Glyph) Centroid() (geom.Point, error) {
	m, err := g.Moments()
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Pt(m.MeanX, m.MeanY), nil
}

// Center returns the center of the bounding box. It never fails.
func (g *Glyph) Center() geom.Point {
	return g.Bounds().Center()
}

// Line returns the least-squares line through the pixels.
//
// Description:
//
//	Glyphs taller than wide are fitted as x = a*y + b, others as
//	y = a*x + b. The returned segment spans the glyph bounds along the
//	major direction.
//
// Errors:
//
//	ErrNoPixel - the glyph has no foreground pixel
func (g *Glyph) Line() (Line, error) {
	if g.line != nil {
		return *g.line, nil
	}
	m, err := g.Moments()
	if err != nil {
		return Line{}, err
	}

	box := g.Bounds()
	vertical := box.H > box.W
	var l Line
	if vertical {
		a := 0.0
		if m.Mu02 > 0 {
			a = m.Mu11 / m.Mu02
		}
		y1, y2 := float64(box.Y), float64(box.Bottom())
		l = Line{
			P1:       geom.Pt(m.MeanX+a*(y1-m.MeanY), y1),
			P2:       geom.Pt(m.MeanX+a*(y2-m.MeanY), y2),
			Vertical: true,
		}
	} else {
		a := 0.0
		if m.Mu20 > 0 {
			a = m.Mu11 / m.Mu20
		}
		x1, x2 := float64(box.X), float64(box.Right())
		l = Line{
			P1: geom.Pt(x1, m.MeanY+a*(x1-m.MeanX)),
			P2: geom.Pt(x2, m.MeanY+a*(x2-m.MeanX)),
		}
	}
	g.line = &l
	return l, nil
}

// Slope returns the tangent of the line with respect to its major axis:
// dy/dx for horizontal glyphs, dx/dy for vertical ones. A single pixel
// has slope 0.
func (g *Glyph) Slope() (float64, error) {
	if g.slope != nil {
		return *g.slope, nil
	}
	l, err := g.Line()
	if err != nil {
		return 0, err
	}
	var s float64
	if l.Vertical {
		if d := l.P2.Y - l.P1.Y; d != 0 {
			s = (l.P2.X - l.P1.X) / d
		}
	} else {
		if d := l.P2.X - l.P1.X; d != 0 {
			s = (l.P2.Y - l.P1.Y) / d
		}
	}
	if math.IsNaN(s) {
		s = 0
	}
	g.slope = &s
	return s, nil
}

// String returns a short description for logs.
func (g *Glyph) String() string {
	return fmt.Sprintf("glyph@%s w=%d", g.Bounds(), g.Weight())
}
