package annotation

import (
	"math"
	"strings"

	"github.com/wudi/pdfedit/coords"
)

// Size floors applied by resize, in normalized units.
const (
	OverlayMinWidth   = 50
	OverlayMinHeight  = 20
	FillMinSize       = 10
	SignatureMinSize  = 20
	PatchMinSize      = 20
	RectangleMinSize  = 10
	CircleMinDiameter = 10
	StampMinSize      = 10
)

var (
	_ Record = (*TextEdit)(nil)
	_ Record = (*Drawing)(nil)

	_ Resizable = (*TextOverlay)(nil)
	_ Resizable = (*Rectangle)(nil)
	_ Resizable = (*Circle)(nil)
	_ Resizable = (*FillArea)(nil)
	_ Resizable = (*Signature)(nil)
	_ Resizable = (*Stamp)(nil)
	_ Resizable = (*Patch)(nil)
	_ Square    = (*Circle)(nil)
	_ Square    = (*Stamp)(nil)
)

// TextEdit replaces one original text run. The run is identified by its
// index on the page; OriginalX/OriginalY and the original size locate the
// glyphs to cover and never change after the first edit.
type TextEdit struct {
	Page         int
	Index        int
	OriginalText string
	Text         string

	X, Y                          float64
	OriginalX, OriginalY          float64
	OriginalWidth, OriginalHeight float64

	Font  Font
	Color Color
	// Background fills the cover rectangle; nil means white.
	Background *Color
}

func (t *TextEdit) Kind() Kind             { return KindTextEdit }
func (t *TextEdit) Collection() Collection { return TextEdits }
func (t *TextEdit) PageNum() int           { return t.Page }
func (t *TextEdit) Key() Key               { return Key{Page: t.Page, Index: t.Index} }

func (t *TextEdit) Bounds() coords.Rect {
	h := t.OriginalHeight
	if h <= 0 {
		h = t.Font.Size
	}
	return coords.Rect{X: t.X, Y: t.Y, Width: t.OriginalWidth, Height: h}
}

// OriginalBounds is the area covered on export.
func (t *TextEdit) OriginalBounds() coords.Rect {
	b := t.Bounds()
	b.X, b.Y = t.OriginalX, t.OriginalY
	return b
}

// Moved reports whether the replacement text sits away from the original run.
func (t *TextEdit) Moved() bool { return t.X != t.OriginalX || t.Y != t.OriginalY }

func (t *TextEdit) Translate(dx, dy float64) {
	t.X += dx
	t.Y += dy
}

func (t *TextEdit) BackgroundColor() Color {
	if t.Background == nil {
		return White
	}
	return *t.Background
}

func (t *TextEdit) Validate() error {
	switch {
	case t.Page < 1:
		return invalid(t.Kind(), "page %d", t.Page)
	case t.Index < 0:
		return invalid(t.Kind(), "run index %d", t.Index)
	case strings.TrimSpace(t.Text) == "":
		return invalid(t.Kind(), "empty text")
	case t.Font.Size <= 0:
		return invalid(t.Kind(), "font size %v", t.Font.Size)
	}
	return nil
}

func (t *TextEdit) Clone() Record {
	c := *t
	if t.Background != nil {
		bg := *t.Background
		c.Background = &bg
	}
	return &c
}

// TextOverlay is free text placed by the user.
type TextOverlay struct {
	ID   string
	Page int
	X, Y float64

	Width, Height float64

	Text  string
	Font  Font
	Color Color
}

func (t *TextOverlay) Kind() Kind             { return KindTextOverlay }
func (t *TextOverlay) Collection() Collection { return TextOverlays }
func (t *TextOverlay) PageNum() int           { return t.Page }
func (t *TextOverlay) Key() Key               { return Key{ID: t.ID} }
func (t *TextOverlay) Bounds() coords.Rect    { return t.Frame() }
func (t *TextOverlay) Frame() coords.Rect {
	return coords.Rect{X: t.X, Y: t.Y, Width: t.Width, Height: t.Height}
}

func (t *TextOverlay) SetFrame(r coords.Rect) {
	t.X, t.Y, t.Width, t.Height = r.X, r.Y, r.Width, r.Height
}

func (t *TextOverlay) MinSize() (float64, float64) { return OverlayMinWidth, OverlayMinHeight }

func (t *TextOverlay) Translate(dx, dy float64) {
	t.X += dx
	t.Y += dy
}

func (t *TextOverlay) Validate() error {
	switch {
	case t.ID == "":
		return invalid(t.Kind(), "missing id")
	case t.Page < 1:
		return invalid(t.Kind(), "page %d", t.Page)
	case strings.TrimSpace(t.Text) == "":
		return invalid(t.Kind(), "empty text")
	case t.Font.Size <= 0:
		return invalid(t.Kind(), "font size %v", t.Font.Size)
	case t.Width <= 0 || t.Height <= 0:
		return invalid(t.Kind(), "size %vx%v", t.Width, t.Height)
	}
	return nil
}

func (t *TextOverlay) Clone() Record { c := *t; return &c }

// Drawing is a freehand polyline.
type Drawing struct {
	ID          string
	Page        int
	Points      []coords.Point
	Color       Color
	StrokeWidth float64
	Opacity     float64
}

func (d *Drawing) Kind() Kind             { return KindDrawing }
func (d *Drawing) Collection() Collection { return Annotations }
func (d *Drawing) PageNum() int           { return d.Page }
func (d *Drawing) Key() Key               { return Key{ID: d.ID} }
func (d *Drawing) Bounds() coords.Rect    { return coords.Bounds(d.Points) }

func (d *Drawing) Translate(dx, dy float64) {
	for i := range d.Points {
		d.Points[i].X += dx
		d.Points[i].Y += dy
	}
}

func (d *Drawing) Validate() error {
	switch {
	case d.ID == "":
		return invalid(d.Kind(), "missing id")
	case d.Page < 1:
		return invalid(d.Kind(), "page %d", d.Page)
	case len(d.Points) == 0:
		return invalid(d.Kind(), "no points")
	case d.StrokeWidth <= 0:
		return invalid(d.Kind(), "stroke width %v", d.StrokeWidth)
	case !validOpacity(d.Opacity):
		return invalid(d.Kind(), "opacity %v", d.Opacity)
	}
	return nil
}

func (d *Drawing) Clone() Record {
	c := *d
	c.Points = append([]coords.Point(nil), d.Points...)
	return &c
}

// Rectangle is a stroked box given by two opposite corners.
type Rectangle struct {
	ID             string
	Page           int
	StartX, StartY float64
	EndX, EndY     float64
	Color          Color
	StrokeWidth    float64
	Opacity        float64
	LineStyle      LineStyle
	Filled         bool
}

func (r *Rectangle) Kind() Kind             { return KindRectangle }
func (r *Rectangle) Collection() Collection { return Annotations }
func (r *Rectangle) PageNum() int           { return r.Page }
func (r *Rectangle) Key() Key               { return Key{ID: r.ID} }
func (r *Rectangle) Bounds() coords.Rect    { return r.Frame() }

func (r *Rectangle) Frame() coords.Rect {
	return coords.RectFromPoints(coords.Point{X: r.StartX, Y: r.StartY}, coords.Point{X: r.EndX, Y: r.EndY})
}

// SetFrame rewrites the corners as top-left and bottom-right.
func (r *Rectangle) SetFrame(f coords.Rect) {
	f = f.Canon()
	r.StartX, r.StartY = f.X, f.Y
	r.EndX, r.EndY = f.Right(), f.Bottom()
}

func (r *Rectangle) MinSize() (float64, float64) { return RectangleMinSize, RectangleMinSize }

func (r *Rectangle) Translate(dx, dy float64) {
	r.StartX += dx
	r.StartY += dy
	r.EndX += dx
	r.EndY += dy
}

func (r *Rectangle) Validate() error {
	switch {
	case r.ID == "":
		return invalid(r.Kind(), "missing id")
	case r.Page < 1:
		return invalid(r.Kind(), "page %d", r.Page)
	case r.StrokeWidth <= 0:
		return invalid(r.Kind(), "stroke width %v", r.StrokeWidth)
	case !validOpacity(r.Opacity):
		return invalid(r.Kind(), "opacity %v", r.Opacity)
	case !r.LineStyle.Valid():
		return invalid(r.Kind(), "line style %q", r.LineStyle)
	}
	return nil
}

func (r *Rectangle) Clone() Record { c := *r; return &c }

// Circle is a stroked circle around a center point.
type Circle struct {
	ID               string
	Page             int
	CenterX, CenterY float64
	Radius           float64
	Color            Color
	StrokeWidth      float64
	Opacity          float64
	LineStyle        LineStyle
	Filled           bool
}

func (c *Circle) Kind() Kind             { return KindCircle }
func (c *Circle) Collection() Collection { return Annotations }
func (c *Circle) PageNum() int           { return c.Page }
func (c *Circle) Key() Key               { return Key{ID: c.ID} }
func (c *Circle) Bounds() coords.Rect    { return c.Frame() }
func (c *Circle) Center() coords.Point   { return coords.Point{X: c.CenterX, Y: c.CenterY} }

func (c *Circle) Frame() coords.Rect {
	return coords.Rect{X: c.CenterX - c.Radius, Y: c.CenterY - c.Radius, Width: 2 * c.Radius, Height: 2 * c.Radius}
}

// SetFrame fits the circle inside f.
func (c *Circle) SetFrame(f coords.Rect) {
	f = f.Canon()
	ctr := f.Center()
	c.CenterX, c.CenterY = ctr.X, ctr.Y
	c.Radius = math.Min(f.Width, f.Height) / 2
}

func (c *Circle) MinSize() (float64, float64) { return CircleMinDiameter, CircleMinDiameter }

func (*Circle) square() {}

func (c *Circle) Translate(dx, dy float64) {
	c.CenterX += dx
	c.CenterY += dy
}

func (c *Circle) Validate() error {
	switch {
	case c.ID == "":
		return invalid(c.Kind(), "missing id")
	case c.Page < 1:
		return invalid(c.Kind(), "page %d", c.Page)
	case c.Radius <= 0:
		return invalid(c.Kind(), "radius %v", c.Radius)
	case c.StrokeWidth <= 0:
		return invalid(c.Kind(), "stroke width %v", c.StrokeWidth)
	case !validOpacity(c.Opacity):
		return invalid(c.Kind(), "opacity %v", c.Opacity)
	case !c.LineStyle.Valid():
		return invalid(c.Kind(), "line style %q", c.LineStyle)
	}
	return nil
}

func (c *Circle) Clone() Record { cc := *c; return &cc }

// FillArea is an opaque rectangle covering page content.
type FillArea struct {
	ID            string
	Page          int
	X, Y          float64
	Width, Height float64
	Color         Color
}

func (f *FillArea) Kind() Kind             { return KindFillArea }
func (f *FillArea) Collection() Collection { return FillAreas }
func (f *FillArea) PageNum() int           { return f.Page }
func (f *FillArea) Key() Key               { return Key{ID: f.ID} }
func (f *FillArea) Bounds() coords.Rect    { return f.Frame() }
func (f *FillArea) Frame() coords.Rect {
	return coords.Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
}

func (f *FillArea) SetFrame(r coords.Rect) {
	f.X, f.Y, f.Width, f.Height = r.X, r.Y, r.Width, r.Height
}

func (f *FillArea) MinSize() (float64, float64) { return FillMinSize, FillMinSize }

func (f *FillArea) Translate(dx, dy float64) {
	f.X += dx
	f.Y += dy
}

func (f *FillArea) Validate() error {
	switch {
	case f.ID == "":
		return invalid(f.Kind(), "missing id")
	case f.Page < 1:
		return invalid(f.Kind(), "page %d", f.Page)
	case f.Width <= 0 || f.Height <= 0:
		return invalid(f.Kind(), "size %vx%v", f.Width, f.Height)
	}
	return nil
}

func (f *FillArea) Clone() Record { c := *f; return &c }

// Signature is a raster image placed by the user. Source is a URL or data URI
// fetched at export time when Image is empty.
type Signature struct {
	ID            string
	Page          int
	X, Y          float64
	Width, Height float64
	Source        string
	Image         []byte
}

func (s *Signature) Kind() Kind             { return KindSignature }
func (s *Signature) Collection() Collection { return Signatures }
func (s *Signature) PageNum() int           { return s.Page }
func (s *Signature) Key() Key               { return Key{ID: s.ID} }
func (s *Signature) Bounds() coords.Rect    { return s.Frame() }
func (s *Signature) Frame() coords.Rect {
	return coords.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

func (s *Signature) SetFrame(r coords.Rect) {
	s.X, s.Y, s.Width, s.Height = r.X, r.Y, r.Width, r.Height
}

func (s *Signature) MinSize() (float64, float64) { return SignatureMinSize, SignatureMinSize }

func (s *Signature) Translate(dx, dy float64) {
	s.X += dx
	s.Y += dy
}

func (s *Signature) Validate() error {
	switch {
	case s.ID == "":
		return invalid(s.Kind(), "missing id")
	case s.Page < 1:
		return invalid(s.Kind(), "page %d", s.Page)
	case s.Width <= 0 || s.Height <= 0:
		return invalid(s.Kind(), "size %vx%v", s.Width, s.Height)
	case s.Source == "" && len(s.Image) == 0:
		return invalid(s.Kind(), "no image")
	}
	return nil
}

// Clone shares Image; image bytes are never modified in place.
func (s *Signature) Clone() Record { c := *s; return &c }

// Stamp is a small mark centered on (X, Y).
type Stamp struct {
	ID    string
	Page  int
	Type  StampType
	X, Y  float64
	Size  float64
	Color Color
	// Text is the rendered date for StampDate.
	Text string
}

func (s *Stamp) Kind() Kind             { return KindStamp }
func (s *Stamp) Collection() Collection { return Stamps }
func (s *Stamp) PageNum() int           { return s.Page }
func (s *Stamp) Key() Key               { return Key{ID: s.ID} }
func (s *Stamp) Bounds() coords.Rect    { return s.Frame() }

func (s *Stamp) Frame() coords.Rect {
	return coords.Rect{X: s.X - s.Size/2, Y: s.Y - s.Size/2, Width: s.Size, Height: s.Size}
}

// SetFrame keeps the stamp square, centered in f.
func (s *Stamp) SetFrame(f coords.Rect) {
	f = f.Canon()
	c := f.Center()
	s.X, s.Y = c.X, c.Y
	s.Size = math.Min(f.Width, f.Height)
}

func (s *Stamp) MinSize() (float64, float64) { return StampMinSize, StampMinSize }

func (*Stamp) square() {}

func (s *Stamp) Translate(dx, dy float64) {
	s.X += dx
	s.Y += dy
}

func (s *Stamp) Validate() error {
	switch {
	case s.ID == "":
		return invalid(s.Kind(), "missing id")
	case s.Page < 1:
		return invalid(s.Kind(), "page %d", s.Page)
	case !s.Type.Valid():
		return invalid(s.Kind(), "type %q", s.Type)
	case s.Size <= 0:
		return invalid(s.Kind(), "size %v", s.Size)
	}
	return nil
}

func (s *Stamp) Clone() Record { c := *s; return &c }

// Patch is a raster image copied from elsewhere and pasted over the page.
type Patch struct {
	ID            string
	Page          int
	X, Y          float64
	Width, Height float64
	Image         []byte
	Opacity       float64
}

func (p *Patch) Kind() Kind             { return KindPatch }
func (p *Patch) Collection() Collection { return Patches }
func (p *Patch) PageNum() int           { return p.Page }
func (p *Patch) Key() Key               { return Key{ID: p.ID} }
func (p *Patch) Bounds() coords.Rect    { return p.Frame() }
func (p *Patch) Frame() coords.Rect {
	return coords.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

func (p *Patch) SetFrame(r coords.Rect) {
	p.X, p.Y, p.Width, p.Height = r.X, r.Y, r.Width, r.Height
}

func (p *Patch) MinSize() (float64, float64) { return PatchMinSize, PatchMinSize }

func (p *Patch) Translate(dx, dy float64) {
	p.X += dx
	p.Y += dy
}

func (p *Patch) Validate() error {
	switch {
	case p.ID == "":
		return invalid(p.Kind(), "missing id")
	case p.Page < 1:
		return invalid(p.Kind(), "page %d", p.Page)
	case p.Width <= 0 || p.Height <= 0:
		return invalid(p.Kind(), "size %vx%v", p.Width, p.Height)
	case len(p.Image) == 0:
		return invalid(p.Kind(), "no image")
	case !validOpacity(p.Opacity):
		return invalid(p.Kind(), "opacity %v", p.Opacity)
	}
	return nil
}

// Clone shares Image; image bytes are never modified in place.
func (p *Patch) Clone() Record { c := *p; return &c }
