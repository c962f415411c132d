package flatten

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/pdfdoc"
)

// op is one recorded drawing call.
type op struct {
	page  int
	kind  string
	x, y  float64
	w, h  float64
	pts   []coords.Point
	text  string
	font  string
	size  float64
	style pdfdoc.Style
	color pdfdoc.RGB
	alpha float64
	uri   string
}

type fakeFont struct {
	name string
	wide bool
}

func (f *fakeFont) Name() string                 { return f.name }
func (f *fakeFont) Ascent(size float64) float64  { return 718 * size / 1000 }
func (f *fakeFont) Descent(size float64) float64 { return 207 * size / 1000 }
func (f *fakeFont) Width(text string, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * size / 2
}

func (f *fakeFont) CanEncode(text string) bool {
	if f.wide {
		return true
	}
	for _, r := range text {
		if r > 0xFF {
			return false
		}
	}
	return true
}

type fakeImage struct{ data string }

func (fakeImage) Size() (int, int) { return 10, 10 }

// fakeDoc records calls instead of producing PDF bytes.
type fakeDoc struct {
	pages   int
	w, h    float64
	ops     []op
	embeds  int
	saveErr error
}

func newFakeDoc(pages int) *fakeDoc { return &fakeDoc{pages: pages, w: 612, h: 792} }

func (d *fakeDoc) NumPages() int { return d.pages }

func (d *fakeDoc) PageSize(n int) (float64, float64, error) {
	if n < 1 || n > d.pages {
		return 0, 0, pdfdoc.ErrPageRange
	}
	return d.w, d.h, nil
}

func (d *fakeDoc) Canvas(n int) (Canvas, error) {
	if n < 1 || n > d.pages {
		return nil, pdfdoc.ErrPageRange
	}
	return &fakeCanvas{doc: d, page: n}, nil
}

func (d *fakeDoc) StandardFont(family string, bold, italic bool) (Font, error) {
	switch strings.ToLower(family) {
	case "helvetica", "times", "courier":
	default:
		return nil, pdfdoc.ErrUnknownFont
	}
	name := family
	if bold {
		name += "-Bold"
	}
	if italic {
		name += "-Italic"
	}
	return &fakeFont{name: name}, nil
}

func (d *fakeDoc) EmbedTrueType(data []byte) (Font, error) {
	if string(data) == "broken" {
		return nil, errors.New("not a font")
	}
	d.embeds++
	return &fakeFont{name: "Custom-" + string(data), wide: true}, nil
}

func (d *fakeDoc) LoadImage(data []byte) (Image, error) {
	if len(data) == 0 || string(data) == "bad" {
		return nil, pdfdoc.ErrImageFormat
	}
	return fakeImage{data: string(data)}, nil
}

func (d *fakeDoc) Save() ([]byte, error) {
	if d.saveErr != nil {
		return nil, d.saveErr
	}
	return []byte("%PDF-fake"), nil
}

func (d *fakeDoc) kinds() []string {
	out := make([]string, 0, len(d.ops))
	for _, o := range d.ops {
		out = append(out, o.kind)
	}
	return out
}

func (d *fakeDoc) find(kind string) []op {
	var out []op
	for _, o := range d.ops {
		if o.kind == kind {
			out = append(out, o)
		}
	}
	return out
}

type fakeCanvas struct {
	doc  *fakeDoc
	page int
}

func (c *fakeCanvas) add(o op) {
	o.page = c.page
	c.doc.ops = append(c.doc.ops, o)
}

func (c *fakeCanvas) DrawRectangle(x, y, w, h float64, s pdfdoc.Style) {
	c.add(op{kind: "rect", x: x, y: y, w: w, h: h, style: s})
}

func (c *fakeCanvas) DrawLine(x1, y1, x2, y2 float64, s pdfdoc.Style) {
	c.add(op{kind: "line", pts: []coords.Point{{X: x1, Y: y1}, {X: x2, Y: y2}}, style: s})
}

func (c *fakeCanvas) DrawPolyline(pts []coords.Point, s pdfdoc.Style) {
	c.add(op{kind: "polyline", pts: append([]coords.Point(nil), pts...), style: s})
}

func (c *fakeCanvas) DrawCircle(cx, cy, r float64, s pdfdoc.Style) {
	c.add(op{kind: "circle", x: cx, y: cy, w: r, style: s})
}

func (c *fakeCanvas) DrawText(text string, x, y float64, t TextStyle) error {
	c.add(op{kind: "text", x: x, y: y, text: text, font: t.Font.Name(), size: t.Size, color: t.Color, alpha: t.Opacity})
	return nil
}

func (c *fakeCanvas) DrawImage(img Image, x, y, w, h, opacity float64) error {
	c.add(op{kind: "image", x: x, y: y, w: w, h: h, text: img.(fakeImage).data, alpha: opacity})
	return nil
}

func (c *fakeCanvas) AddLink(x, y, w, h float64, uri string) {
	c.add(op{kind: "link", x: x, y: y, w: w, h: h, uri: uri})
}

// memLogger keeps log messages by level.
type memLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *memLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+msg)
}

func (l *memLogger) Debug(msg string, _ ...observability.Field)       { l.log("debug", msg) }
func (l *memLogger) Info(msg string, _ ...observability.Field)        { l.log("info", msg) }
func (l *memLogger) Warn(msg string, _ ...observability.Field)        { l.log("warn", msg) }
func (l *memLogger) Error(msg string, _ ...observability.Field)       { l.log("error", msg) }
func (l *memLogger) With(...observability.Field) observability.Logger { return l }

func (l *memLogger) has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+": ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
