package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/coords"
)

// RGB is a device RGB color with components in [0, 1].
type RGB struct{ R, G, B float64 }

var (
	Black = RGB{}
	White = RGB{R: 1, G: 1, B: 1}
)

// Line caps and joins.
const (
	CapButt   = 0
	CapRound  = 1
	JoinMiter = 0
	JoinRound = 1
)

// Style describes how a path is painted. A nil Fill or Stroke skips that
// paint operation. Opacities outside (0, 1) paint opaque.
type Style struct {
	Fill          *RGB
	Stroke        *RGB
	LineWidth     float64
	Dash          []float64
	LineCap       int
	LineJoin      int
	FillOpacity   float64
	StrokeOpacity float64
}

// TextStyle describes a run of text.
type TextStyle struct {
	Font    *Font
	Size    float64
	Color   RGB
	Opacity float64
}

// bezierK places cubic control points for a quarter circle.
const bezierK = 0.5522847498

type gsKey struct{ fill, stroke string }

// Canvas collects drawing operations for one page.
type Canvas struct {
	doc  *Document
	page *page
	ops  bytes.Buffer

	names    map[string]bool
	fonts    map[*Font]string
	images   map[*Image]string
	states   map[gsKey]string
	fontRes  map[string]Ref
	imageRes map[string]Ref
	stateRes map[string]*Dict
	links    []*Dict
}

func newCanvas(d *Document, p *page) *Canvas {
	c := &Canvas{
		doc:      d,
		page:     p,
		names:    make(map[string]bool),
		fonts:    make(map[*Font]string),
		images:   make(map[*Image]string),
		states:   make(map[gsKey]string),
		fontRes:  make(map[string]Ref),
		imageRes: make(map[string]Ref),
		stateRes: make(map[string]*Dict),
	}
	if p.resources != nil {
		for _, cat := range []string{"Font", "XObject", "ExtGState"} {
			if sub := d.dict(p.resources.Get(cat)); sub != nil {
				for k := range sub.KV {
					c.names[k] = true
				}
			}
		}
	}
	return c
}

// Empty reports whether nothing has been drawn.
func (c *Canvas) Empty() bool { return c.ops.Len() == 0 && len(c.links) == 0 }

func (c *Canvas) uniqueName(prefix string) string {
	for i := 1; ; i++ {
		n := fmt.Sprintf("PE_%s%d", prefix, i)
		if !c.names[n] {
			c.names[n] = true
			return n
		}
	}
}

func n(f float64) string { return formatReal(f) }

func opacityOf(v float64) float64 {
	if v <= 0 || v >= 1 {
		return 1
	}
	return v
}

// state returns the ExtGState name for the given alphas, or "" when both
// are opaque.
func (c *Canvas) state(fill, stroke float64) string {
	fill, stroke = opacityOf(fill), opacityOf(stroke)
	if fill == 1 && stroke == 1 {
		return ""
	}
	k := gsKey{fill: n(fill), stroke: n(stroke)}
	if name, ok := c.states[k]; ok {
		return name
	}
	name := c.uniqueName("GS")
	c.states[k] = name
	c.stateRes[name] = NewDict().
		Set("Type", Name("ExtGState")).
		Set("ca", Real(fill)).
		Set("CA", Real(stroke))
	return name
}

func (c *Canvas) fontName(f *Font) string {
	if name, ok := c.fonts[f]; ok {
		return name
	}
	name := c.uniqueName("F")
	c.fonts[f] = name
	c.fontRes[name] = f.ref
	return name
}

func (c *Canvas) imageName(img *Image) string {
	if name, ok := c.images[img]; ok {
		return name
	}
	name := c.uniqueName("Im")
	c.images[img] = name
	c.imageRes[name] = img.ref
	return name
}

func (c *Canvas) begin(s Style) {
	c.ops.WriteString("q\n")
	if gs := c.state(s.FillOpacity, s.StrokeOpacity); gs != "" {
		fmt.Fprintf(&c.ops, "/%s gs\n", gs)
	}
	if s.Fill != nil {
		fmt.Fprintf(&c.ops, "%s %s %s rg\n", n(s.Fill.R), n(s.Fill.G), n(s.Fill.B))
	}
	if s.Stroke != nil {
		fmt.Fprintf(&c.ops, "%s %s %s RG\n", n(s.Stroke.R), n(s.Stroke.G), n(s.Stroke.B))
		fmt.Fprintf(&c.ops, "%s w\n", n(s.LineWidth))
		if s.LineCap != CapButt {
			fmt.Fprintf(&c.ops, "%d J\n", s.LineCap)
		}
		if s.LineJoin != JoinMiter {
			fmt.Fprintf(&c.ops, "%d j\n", s.LineJoin)
		}
		if len(s.Dash) > 0 {
			parts := make([]string, len(s.Dash))
			for i, v := range s.Dash {
				parts[i] = n(v)
			}
			fmt.Fprintf(&c.ops, "[%s] 0 d\n", strings.Join(parts, " "))
		}
	}
}

func (c *Canvas) paint(s Style, closed bool) {
	switch {
	case s.Fill != nil && s.Stroke != nil:
		c.ops.WriteString("B\n")
	case s.Fill != nil:
		c.ops.WriteString("f\n")
	case s.Stroke != nil && closed:
		c.ops.WriteString("s\n")
	case s.Stroke != nil:
		c.ops.WriteString("S\n")
	default:
		c.ops.WriteString("n\n")
	}
	c.ops.WriteString("Q\n")
}

// DrawRectangle paints the rectangle with lower-left corner (x, y).
func (c *Canvas) DrawRectangle(x, y, w, h float64, s Style) {
	c.begin(s)
	fmt.Fprintf(&c.ops, "%s %s %s %s re\n", n(x), n(y), n(w), n(h))
	c.paint(s, false)
}

// DrawLine strokes a single segment.
func (c *Canvas) DrawLine(x1, y1, x2, y2 float64, s Style) {
	s.Fill = nil
	c.begin(s)
	fmt.Fprintf(&c.ops, "%s %s m\n%s %s l\n", n(x1), n(y1), n(x2), n(y2))
	c.paint(s, false)
}

// DrawPolyline strokes an open path through pts.
func (c *Canvas) DrawPolyline(pts []coords.Point, s Style) {
	if len(pts) < 2 {
		return
	}
	s.Fill = nil
	c.begin(s)
	fmt.Fprintf(&c.ops, "%s %s m\n", n(pts[0].X), n(pts[0].Y))
	for _, p := range pts[1:] {
		fmt.Fprintf(&c.ops, "%s %s l\n", n(p.X), n(p.Y))
	}
	c.paint(s, false)
}

// DrawCircle paints a circle approximated by four cubic Bézier arcs.
func (c *Canvas) DrawCircle(cx, cy, r float64, s Style) {
	k := r * bezierK
	c.begin(s)
	fmt.Fprintf(&c.ops, "%s %s m\n", n(cx+r), n(cy))
	fmt.Fprintf(&c.ops, "%s %s %s %s %s %s c\n", n(cx+r), n(cy+k), n(cx+k), n(cy+r), n(cx), n(cy+r))
	fmt.Fprintf(&c.ops, "%s %s %s %s %s %s c\n", n(cx-k), n(cy+r), n(cx-r), n(cy+k), n(cx-r), n(cy))
	fmt.Fprintf(&c.ops, "%s %s %s %s %s %s c\n", n(cx-r), n(cy-k), n(cx-k), n(cy-r), n(cx), n(cy-r))
	fmt.Fprintf(&c.ops, "%s %s %s %s %s %s c\n", n(cx+k), n(cy-r), n(cx+r), n(cy-k), n(cx+r), n(cy))
	c.ops.WriteString("h\n")
	c.paint(s, true)
}

// DrawText shows text with its baseline starting at (x, y).
func (c *Canvas) DrawText(text string, x, y float64, t TextStyle) error {
	if t.Font == nil {
		return errors.New("pdfdoc: text style has no font")
	}
	if t.Size <= 0 {
		return fmt.Errorf("pdfdoc: invalid font size %v", t.Size)
	}
	if text == "" {
		return nil
	}
	encoded, err := t.Font.encode(text)
	if err != nil {
		return err
	}
	name := c.fontName(t.Font)
	c.ops.WriteString("q\n")
	if gs := c.state(t.Opacity, t.Opacity); gs != "" {
		fmt.Fprintf(&c.ops, "/%s gs\n", gs)
	}
	fmt.Fprintf(&c.ops, "%s %s %s rg\n", n(t.Color.R), n(t.Color.G), n(t.Color.B))
	fmt.Fprintf(&c.ops, "BT\n/%s %s Tf\n%s %s Td\n", name, n(t.Size), n(x), n(y))
	writeObject(&c.ops, encoded)
	c.ops.WriteString(" Tj\nET\nQ\n")
	return nil
}

// DrawImage paints img into the rectangle with lower-left corner (x, y).
func (c *Canvas) DrawImage(img *Image, x, y, w, h, opacity float64) {
	name := c.imageName(img)
	c.ops.WriteString("q\n")
	if gs := c.state(opacity, opacity); gs != "" {
		fmt.Fprintf(&c.ops, "/%s gs\n", gs)
	}
	fmt.Fprintf(&c.ops, "%s 0 0 %s %s %s cm\n/%s Do\nQ\n", n(w), n(h), n(x), n(y), name)
}

// AddLink places a URI link annotation over the rectangle with lower-left
// corner (x, y).
func (c *Canvas) AddLink(x, y, w, h float64, uri string) {
	m := coords.DisplayToUser(c.page.crop, c.page.rotate)
	corners := []coords.Point{
		m.Transform(coords.Point{X: x, Y: y}),
		m.Transform(coords.Point{X: x + w, Y: y}),
		m.Transform(coords.Point{X: x, Y: y + h}),
		m.Transform(coords.Point{X: x + w, Y: y + h}),
	}
	b := coords.Bounds(corners)
	action := NewDict().Set("S", Name("URI")).Set("URI", Str(uri))
	c.links = append(c.links, NewDict().
		Set("Type", Name("Annot")).
		Set("Subtype", Name("Link")).
		Set("Rect", rectArray(b.X, b.Y, b.Right(), b.Bottom())).
		Set("Border", Array{Int(0), Int(0), Int(0)}).
		Set("A", action))
}

// prologue returns the transform from the display frame into user space.
func (c *Canvas) prologue() string {
	m := coords.DisplayToUser(c.page.crop, c.page.rotate)
	if m.IsIdentity() {
		return ""
	}
	return fmt.Sprintf("%s %s %s %s %s %s cm\n", n(m[0]), n(m[1]), n(m[2]), n(m[3]), n(m[4]), n(m[5]))
}
