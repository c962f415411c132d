package annotation

import "github.com/wudi/pdfedit/coords"

// Hit padding in display pixels.
const (
	DrawingHitPad   = 10
	RectangleHitPad = 10
	FillHitPad      = 5
	CircleHitPad    = 5
)

func boxHit(b coords.Rect, p coords.Point, scale, pad float64) bool {
	return b.ToScreen(scale).Contains(p, pad)
}

func (t *TextEdit) HitTest(p coords.Point, scale float64) bool {
	return boxHit(t.Bounds(), p, scale, 0)
}

func (t *TextOverlay) HitTest(p coords.Point, scale float64) bool {
	return boxHit(t.Frame(), p, scale, 0)
}

// HitTest measures the distance to every segment of the polyline against the
// displayed stroke width plus DrawingHitPad.
func (d *Drawing) HitTest(p coords.Point, scale float64) bool {
	limit := d.StrokeWidth*scale + DrawingHitPad
	if len(d.Points) == 1 {
		return p.Dist(d.Points[0].ToScreen(scale)) <= limit
	}
	for i := 1; i < len(d.Points); i++ {
		a, b := d.Points[i-1].ToScreen(scale), d.Points[i].ToScreen(scale)
		if coords.SegmentDistance(p, a, b) <= limit {
			return true
		}
	}
	return false
}

func (r *Rectangle) HitTest(p coords.Point, scale float64) bool {
	return boxHit(r.Frame(), p, scale, RectangleHitPad)
}

func (c *Circle) HitTest(p coords.Point, scale float64) bool {
	return p.Dist(c.Center().ToScreen(scale)) <= c.Radius*scale+CircleHitPad
}

func (f *FillArea) HitTest(p coords.Point, scale float64) bool {
	return boxHit(f.Frame(), p, scale, FillHitPad)
}

func (s *Signature) HitTest(p coords.Point, scale float64) bool {
	return boxHit(s.Frame(), p, scale, 0)
}

func (s *Stamp) HitTest(p coords.Point, scale float64) bool {
	return boxHit(s.Frame(), p, scale, 0)
}

func (p *Patch) HitTest(pt coords.Point, scale float64) bool {
	return boxHit(p.Frame(), pt, scale, 0)
}
