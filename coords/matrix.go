package coords

import "math"

// Matrix is a PDF affine transform [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// IsIdentity reports whether m leaves every point unchanged.
func (m Matrix) IsIdentity() bool { return m == Identity() }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Box is a PDF page box [llx lly urx ury] in user space.
type Box struct {
	LLX, LLY, URX, URY float64
}

func (b Box) Width() float64  { return math.Abs(b.URX - b.LLX) }
func (b Box) Height() float64 { return math.Abs(b.URY - b.LLY) }

// NormalizeRotation folds a /Rotate value into 0, 90, 180 or 270.
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return (deg / 90) * 90
}

// DisplaySize returns the page size as a viewer shows it, with the box
// dimensions swapped for quarter turns.
func DisplaySize(box Box, rotate int) (w, h float64) {
	switch NormalizeRotation(rotate) {
	case 90, 270:
		return box.Height(), box.Width()
	default:
		return box.Width(), box.Height()
	}
}

// DisplayToUser maps the displayed page frame (origin at the bottom-left corner
// of the page as the viewer shows it, y up) into PDF user space. The viewer
// rotates the page clockwise by rotate degrees; the returned matrix undoes that
// rotation and the box origin offset.
func DisplayToUser(box Box, rotate int) Matrix {
	llx, lly := math.Min(box.LLX, box.URX), math.Min(box.LLY, box.URY)
	w, h := box.Width(), box.Height()
	var m Matrix
	switch NormalizeRotation(rotate) {
	case 90:
		// display (x, y) -> user (w - y, x)
		m = Matrix{0, 1, -1, 0, w, 0}
	case 180:
		m = Matrix{-1, 0, 0, -1, w, h}
	case 270:
		// display (x, y) -> user (y, h - x)
		m = Matrix{0, -1, 1, 0, 0, h}
	default:
		m = Identity()
	}
	return m.Multiply(Translate(llx, lly))
}
