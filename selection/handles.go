package selection

import (
	"math"

	"github.com/wudi/pdfedit/coords"
)

type Handle string

const (
	N  Handle = "n"
	S  Handle = "s"
	E  Handle = "e"
	W  Handle = "w"
	NW Handle = "nw"
	NE Handle = "ne"
	SW Handle = "sw"
	SE Handle = "se"
)

// HandleSize is the side of a handle square in display pixels.
const HandleSize = 8

// Font size bounds applied when a corner resize rescales overlay text.
const (
	MinFontSize = 8
	MaxFontSize = 72
)

// Handles lists corners before edges, the order used for hit testing.
var Handles = []Handle{NW, NE, SW, SE, N, S, E, W}

func (h Handle) Corner() bool { return len(h) == 2 }

func (h Handle) has(c byte) bool {
	for i := 0; i < len(h); i++ {
		if h[i] == c {
			return true
		}
	}
	return false
}

// Position returns the center of h on frame r.
func (h Handle) Position(r coords.Rect) coords.Point {
	p := r.Center()
	if h.has('w') {
		p.X = r.X
	}
	if h.has('e') {
		p.X = r.Right()
	}
	if h.has('n') {
		p.Y = r.Y
	}
	if h.has('s') {
		p.Y = r.Bottom()
	}
	return p
}

// HandleAt returns the handle of display frame r under display point p.
func HandleAt(r coords.Rect, p coords.Point) (Handle, bool) {
	const half = HandleSize / 2.0
	for _, h := range Handles {
		c := h.Position(r)
		if math.Abs(p.X-c.X) <= half && math.Abs(p.Y-c.Y) <= half {
			return h, true
		}
	}
	return "", false
}

// ResizeFrame applies a normalized pointer delta to handle h of frame init.
// Each moved edge stops at minW or minH from the opposite edge, which stays
// put. Edge handles leave the other dimension alone.
func ResizeFrame(init coords.Rect, h Handle, dx, dy, minW, minH float64) coords.Rect {
	r := init.Canon()
	left, top, right, bottom := r.X, r.Y, r.Right(), r.Bottom()
	if h.has('w') {
		left = math.Min(left+dx, right-minW)
	}
	if h.has('e') {
		right = math.Max(right+dx, left+minW)
	}
	if h.has('n') {
		top = math.Min(top+dy, bottom-minH)
	}
	if h.has('s') {
		bottom = math.Max(bottom+dy, top+minH)
	}
	return coords.Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// ResizeSquare resizes a square frame, keeping it square. The edge or
// corner opposite h stays put; an edge handle keeps the frame centered on
// the other axis. A corner grows by the mean of both deltas.
func ResizeSquare(init coords.Rect, h Handle, dx, dy, minSide float64) coords.Rect {
	r := init.Canon()
	var dw, dh float64
	switch {
	case h.has('e'):
		dw = dx
	case h.has('w'):
		dw = -dx
	}
	switch {
	case h.has('s'):
		dh = dy
	case h.has('n'):
		dh = -dy
	}
	grow := dw + dh
	if h.Corner() {
		grow /= 2
	}
	side := math.Max(r.Width+grow, minSide)
	c := r.Center()
	out := coords.Rect{X: c.X - side/2, Y: c.Y - side/2, Width: side, Height: side}
	switch {
	case h.has('e'):
		out.X = r.X
	case h.has('w'):
		out.X = r.Right() - side
	}
	switch {
	case h.has('s'):
		out.Y = r.Y
	case h.has('n'):
		out.Y = r.Bottom() - side
	}
	return out
}

// ScaleFont rescales a font size by the mean of the width and height ratios,
// rounded and clamped to [MinFontSize, MaxFontSize].
func ScaleFont(size float64, init, next coords.Rect) float64 {
	if init.Width == 0 || init.Height == 0 {
		return size
	}
	ratio := (next.Width/init.Width + next.Height/init.Height) / 2
	f := math.Round(size * ratio)
	return math.Max(MinFontSize, math.Min(MaxFontSize, f))
}
