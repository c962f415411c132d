package editor

import (
	"context"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/selection"
)

type gestureKind int

const (
	// gestureManipulate is a drag or resize owned by the selection engine.
	gestureManipulate gestureKind = iota + 1
	// gestureStroke collects freehand points.
	gestureStroke
	// gestureRegion spans a box from the press point to the release point.
	gestureRegion
)

// gesture is the pointer interaction between press and release. Points are
// in display space except stroke points, which are stored normalized.
type gesture struct {
	kind   gestureKind
	tool   selection.Tool
	start  coords.Point
	last   coords.Point
	points []coords.Point
}

// minStep is the display distance a freehand stroke must travel before a
// new point is kept.
const minStep = 1

// minRegion is the smallest OCR selection side in normalized units.
const minRegion = 5

// PointerDown starts a gesture at display point p. A press on a resize
// handle of the selected record resizes it, a press on a record drags it and
// a press on empty page space starts the active tool. The freehand tool
// always draws.
func (s *Session) PointerDown(p coords.Point) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.requireDocument(); err != nil {
		return s.fail(err)
	}
	if s.gesture != nil {
		return selection.ErrBusy
	}
	tool := s.sel.Tool()
	if tool != selection.Draw && tool.Routing() != selection.RouteRegion {
		if h, ok := s.sel.HandleAt(p); ok {
			ref, _ := s.sel.Selected()
			if err := s.sel.BeginResize(ref, h, p); err != nil {
				return err
			}
			s.gesture = &gesture{kind: gestureManipulate, tool: tool, start: p}
			return nil
		}
		if ref, ok := s.sel.HitTest(p); ok {
			if err := s.sel.BeginDrag(ref, p); err != nil {
				return err
			}
			s.gesture = &gesture{kind: gestureManipulate, tool: tool, start: p}
			return nil
		}
	}
	s.sel.Deselect()
	switch tool {
	case selection.Draw:
		s.gesture = &gesture{kind: gestureStroke, tool: tool, start: p, last: p,
			points: []coords.Point{p.ToNormalized(s.sel.Scale())}}
	case selection.Rectangle, selection.Circle, selection.Fill, selection.Patch, selection.OCRSelect:
		s.gesture = &gesture{kind: gestureRegion, tool: tool, start: p, last: p}
	case selection.AddText:
		return s.placeText(p)
	}
	return nil
}

// PointerMove updates the active gesture. Without one it does nothing.
func (s *Session) PointerMove(p coords.Point) error {
	s.mu.Lock()
	defer s.unlock()
	g := s.gesture
	if g == nil {
		return nil
	}
	switch g.kind {
	case gestureManipulate:
		return s.sel.Move(p)
	case gestureStroke:
		if p.Dist(g.last) >= minStep {
			g.points = append(g.points, p.ToNormalized(s.sel.Scale()))
			g.last = p
		}
	case gestureRegion:
		g.last = p
	}
	return nil
}

// PointerUp ends the gesture at p and returns the record it created or
// changed. Drags and resizes always commit on release. OCR and patch
// selections render the page, which runs outside the session lock.
func (s *Session) PointerUp(ctx context.Context, p coords.Point) (annotation.Ref, error) {
	s.mu.Lock()
	g := s.gesture
	s.gesture = nil
	if g == nil || g.kind != gestureRegion || (g.tool != selection.OCRSelect && g.tool != selection.Patch) {
		defer s.unlock()
		return s.finish(g, p)
	}
	page, scale, gen := s.sel.Page(), s.sel.Scale(), s.gen
	s.unlock()

	box := coords.RectFromPoints(g.start, p)
	if g.tool == selection.OCRSelect {
		return s.recognize(ctx, page, scale, gen, box)
	}
	return s.capturePatch(ctx, page, scale, gen, box)
}

// PointerCancel aborts the gesture without recording anything.
func (s *Session) PointerCancel() {
	s.mu.Lock()
	defer s.unlock()
	s.gesture = nil
	s.sel.Cancel()
}

func (s *Session) finish(g *gesture, p coords.Point) (annotation.Ref, error) {
	if g == nil {
		return annotation.Ref{}, nil
	}
	scale := s.sel.Scale()
	page := s.sel.Page()
	st := s.style
	switch g.kind {
	case gestureManipulate:
		ref, _ := s.sel.Selected()
		if err := s.sel.Move(p); err != nil {
			s.sel.Cancel()
			return annotation.Ref{}, err
		}
		en, err := s.sel.End()
		if err != nil {
			return annotation.Ref{}, err
		}
		if en != nil {
			ref = en.Target()
		}
		return ref, nil

	case gestureStroke:
		if p.Dist(g.last) > 0 {
			g.points = append(g.points, p.ToNormalized(scale))
		}
		if len(g.points) < 2 {
			return annotation.Ref{}, nil
		}
		return s.add(&annotation.Drawing{
			Page: page, Points: g.points, Color: st.Color,
			StrokeWidth: st.StrokeWidth, Opacity: st.Opacity,
		})
	}

	start := g.start.ToNormalized(scale)
	end := p.ToNormalized(scale)
	box := coords.RectFromPoints(start, end)
	switch g.tool {
	case selection.Rectangle:
		if box.Width < annotation.RectangleMinSize || box.Height < annotation.RectangleMinSize {
			return annotation.Ref{}, s.fail(invalid("selection too small"))
		}
		return s.add(&annotation.Rectangle{
			Page: page, StartX: start.X, StartY: start.Y, EndX: end.X, EndY: end.Y,
			Color: st.Color, StrokeWidth: st.StrokeWidth, Opacity: st.Opacity, LineStyle: st.LineStyle,
		})
	case selection.Circle:
		r := start.Dist(end)
		if 2*r < annotation.CircleMinDiameter {
			return annotation.Ref{}, s.fail(invalid("selection too small"))
		}
		return s.add(&annotation.Circle{
			Page: page, CenterX: start.X, CenterY: start.Y, Radius: r,
			Color: st.Color, StrokeWidth: st.StrokeWidth, Opacity: st.Opacity, LineStyle: st.LineStyle,
		})
	case selection.Fill:
		if box.Width < annotation.FillMinSize || box.Height < annotation.FillMinSize {
			return annotation.Ref{}, s.fail(invalid("selection too small"))
		}
		return s.add(&annotation.FillArea{
			Page: page, X: box.X, Y: box.Y, Width: box.Width, Height: box.Height, Color: st.FillColor,
		})
	}
	return annotation.Ref{}, nil
}

// placeText drops a placeholder overlay at display point p and completes
// the one-shot add-text tool.
func (s *Session) placeText(p coords.Point) error {
	at := p.ToNormalized(s.sel.Scale())
	font := s.style.Font
	lines := strings.Count(s.style.Text, "\n") + 1
	ref, err := s.add(&annotation.TextOverlay{
		Page:   s.sel.Page(),
		X:      at.X,
		Y:      at.Y,
		Width:  annotation.OverlayMinWidth * 4,
		Height: max(annotation.OverlayMinHeight, float64(lines)*font.Size*1.2),
		Text:   s.style.Text,
		Font:   font,
		Color:  s.style.Color,
	})
	if err != nil {
		return err
	}
	if err := s.sel.Select(ref); err != nil {
		return err
	}
	s.sel.Complete()
	return nil
}
