// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geom provides the integer pixel boxes and floating point locations
// shared by glyphs, interpretations and the measure structure.
//
// Rectangles follow image conventions: X grows to the right, Y grows
// downward, and (X, Y) is the top-left corner. A rectangle with a
// non-positive width or height is empty.
package geom

import (
	"fmt"
	"math"
)

// Point is a location in page coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Rounded returns the point with both coordinates rounded to the nearest pixel.
func (p Point) Rounded() Point {
	return Point{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// DistanceSq returns the squared euclidean distance to q.
func (p Point) DistanceSq(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// String returns "(x,y)".
func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// Rect is an axis-aligned pixel box.
type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// R is shorthand for Rect{X: x, Y: y, W: w, H: h}.
func R(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Empty reports whether the rectangle covers no pixel.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Right returns the first abscissa past the right edge.
func (r Rect) Right() int {
	return r.X + r.W
}

// Bottom returns the first ordinate past the bottom edge.
func (r Rect) Bottom() int {
	return r.Y + r.H
}

// Area returns W*H, zero for empty rectangles.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// Center returns the geometric center.
func (r Rect) Center() Point {
	return Point{
		X: float64(r.X) + float64(r.W)/2,
		Y: float64(r.Y) + float64(r.H)/2,
	}
}

// Intersection returns the common part of r and o.
//
// The result may have a non-positive width or height when the rectangles
// are disjoint; callers test W or Empty() depending on what they need.
func (r Rect) Intersection(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.Right(), o.Right())
	y2 := min(r.Bottom(), o.Bottom())
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return !r.Intersection(o).Empty()
}

// Union returns the smallest rectangle containing both r and o.
// An empty operand is ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.Right(), o.Right())
	y2 := max(r.Bottom(), o.Bottom())
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Contains reports whether p lies inside r (right and bottom edges excluded).
func (r Rect) Contains(p Point) bool {
	return p.X >= float64(r.X) && p.X < float64(r.Right()) &&
		p.Y >= float64(r.Y) && p.Y < float64(r.Bottom())
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	if o.Empty() {
		return false
	}
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Grow returns r enlarged by dx on left and right and dy on top and bottom.
func (r Rect) Grow(dx, dy int) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, W: r.W + 2*dx, H: r.H + 2*dy}
}

// DistanceSq returns the squared distance from p to the closest point of r.
// Zero when p lies inside r.
func (r Rect) DistanceSq(p Point) float64 {
	dx := 0.0
	switch {
	case p.X < float64(r.X):
		dx = float64(r.X) - p.X
	case p.X > float64(r.Right()):
		dx = p.X - float64(r.Right())
	}
	dy := 0.0
	switch {
	case p.Y < float64(r.Y):
		dy = float64(r.Y) - p.Y
	case p.Y > float64(r.Bottom()):
		dy = p.Y - float64(r.Bottom())
	}
	return dx*dx + dy*dy
}

// String returns "[x,y wxh]".
func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.W, r.H)
}

// XAtY returns the abscissa at ordinate y of the line through p1 and p2.
// A horizontal line yields the abscissa of p1.
func XAtY(p1, p2 Point, y float64) float64 {
	dy := p2.Y - p1.Y
	if dy == 0 {
		return p1.X
	}
	return p1.X + (y-p1.Y)*(p2.X-p1.X)/dy
}
