// Package coords defines the two coordinate spaces used by the editor and the
// conversions between them.
//
// Normalized (document) space is the page at zoom 1.0: origin top-left, y grows
// downward, one unit is one PDF point. Display (screen) space is the same page at
// the current zoom: screen = normalized * scale. Every annotation record is stored
// in normalized space; pointer input arrives in display space and is converted
// before it reaches the store.
package coords

import (
	"errors"
	"math"
)

// ErrInvalidScale is returned for zoom factors that are not finite and positive.
var ErrInvalidScale = errors.New("coords: scale must be finite and positive")

// ValidScale reports an error unless s can be used as a zoom factor.
func ValidScale(s float64) error {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return ErrInvalidScale
	}
	return nil
}

// ToScreen converts a normalized length or coordinate to display space.
func ToScreen(v, scale float64) float64 { return v * scale }

// ToNormalized converts a display length or coordinate to normalized space.
func ToNormalized(v, scale float64) float64 { return v / scale }

// Point is a position in either space; the caller knows which.
type Point struct{ X, Y float64 }

func (p Point) ToScreen(scale float64) Point {
	return Point{X: ToScreen(p.X, scale), Y: ToScreen(p.Y, scale)}
}

func (p Point) ToNormalized(scale float64) Point {
	return Point{X: ToNormalized(p.X, scale), Y: ToNormalized(p.Y, scale)}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// SegmentDistance returns the distance from p to the segment a-b.
func SegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Dist(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// RectFromPoints returns the rectangle spanned by two opposite corners.
func RectFromPoints(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

func (r Rect) ToScreen(scale float64) Rect {
	return Rect{X: r.X * scale, Y: r.Y * scale, Width: r.Width * scale, Height: r.Height * scale}
}

func (r Rect) ToNormalized(scale float64) Rect {
	return Rect{X: r.X / scale, Y: r.Y / scale, Width: r.Width / scale, Height: r.Height / scale}
}

// Canon returns r with non-negative width and height.
func (r Rect) Canon() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Translate moves r by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the midpoint of r.
func (r Rect) Center() Point { return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2} }

// Contains reports whether p lies inside r grown by pad on every side.
func (r Rect) Contains(p Point, pad float64) bool {
	r = r.Canon()
	return p.X >= r.X-pad && p.X <= r.Right()+pad && p.Y >= r.Y-pad && p.Y <= r.Bottom()+pad
}

// PDFY flips a top-left y coordinate of an element of height h into the
// bottom-left page space used by PDF content streams.
func PDFY(pageHeight, y, h, scale float64) float64 {
	return pageHeight - y/scale - h/scale
}

// Bounds computes the bounding rectangle of a point list.
func Bounds(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
