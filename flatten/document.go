package flatten

import (
	"fmt"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/pdfdoc"
)

// Document is the mutation surface the pipeline draws through. Page numbers
// are 1-based; all geometry is in the displayed page frame with the origin
// at the bottom-left and y growing upwards.
type Document interface {
	NumPages() int
	PageSize(page int) (w, h float64, err error)
	Canvas(page int) (Canvas, error)
	StandardFont(family string, bold, italic bool) (Font, error)
	EmbedTrueType(data []byte) (Font, error)
	LoadImage(data []byte) (Image, error)
	Save() ([]byte, error)
}

// Canvas paints onto one page.
type Canvas interface {
	DrawRectangle(x, y, w, h float64, s pdfdoc.Style)
	DrawLine(x1, y1, x2, y2 float64, s pdfdoc.Style)
	DrawPolyline(pts []coords.Point, s pdfdoc.Style)
	DrawCircle(cx, cy, r float64, s pdfdoc.Style)
	DrawText(text string, x, y float64, t TextStyle) error
	DrawImage(img Image, x, y, w, h, opacity float64) error
	AddLink(x, y, w, h float64, uri string)
}

// Font measures text for layout.
type Font interface {
	Name() string
	Ascent(size float64) float64
	Descent(size float64) float64
	Width(text string, size float64) float64
	CanEncode(text string) bool
}

// Image is an embedded raster image.
type Image interface {
	Size() (w, h int)
}

// TextStyle mirrors pdfdoc.TextStyle over the Font interface.
type TextStyle struct {
	Font    Font
	Size    float64
	Color   pdfdoc.RGB
	Opacity float64
}

// Opener opens a Document over the original PDF bytes.
type Opener func(data []byte) (Document, error)

var (
	_ Document = (*pdfDocument)(nil)
	_ Canvas   = (*pdfCanvas)(nil)
	_ Font     = (*pdfdoc.Font)(nil)
	_ Image    = (*pdfdoc.Image)(nil)
)

// PDFOpener opens documents with pdfdoc.
func PDFOpener(opts ...pdfdoc.Option) Opener {
	return func(data []byte) (Document, error) {
		d, err := pdfdoc.Open(data, opts...)
		if err != nil {
			return nil, err
		}
		return &pdfDocument{d: d}, nil
	}
}

type pdfDocument struct {
	d *pdfdoc.Document
}

func (p *pdfDocument) NumPages() int                            { return p.d.NumPages() }
func (p *pdfDocument) PageSize(n int) (float64, float64, error) { return p.d.PageSize(n) }
func (p *pdfDocument) Save() ([]byte, error)                    { return p.d.Save() }

func (p *pdfDocument) Canvas(n int) (Canvas, error) {
	c, err := p.d.Canvas(n)
	if err != nil {
		return nil, err
	}
	return &pdfCanvas{c: c}, nil
}

func (p *pdfDocument) StandardFont(family string, bold, italic bool) (Font, error) {
	f, err := p.d.StandardFont(family, bold, italic)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (p *pdfDocument) EmbedTrueType(data []byte) (Font, error) {
	f, err := p.d.EmbedTrueType(data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (p *pdfDocument) LoadImage(data []byte) (Image, error) {
	img, err := p.d.LoadImage(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

type pdfCanvas struct {
	c *pdfdoc.Canvas
}

func (p *pdfCanvas) DrawRectangle(x, y, w, h float64, s pdfdoc.Style) { p.c.DrawRectangle(x, y, w, h, s) }
func (p *pdfCanvas) DrawLine(x1, y1, x2, y2 float64, s pdfdoc.Style)  { p.c.DrawLine(x1, y1, x2, y2, s) }
func (p *pdfCanvas) DrawPolyline(pts []coords.Point, s pdfdoc.Style)  { p.c.DrawPolyline(pts, s) }
func (p *pdfCanvas) DrawCircle(cx, cy, r float64, s pdfdoc.Style)     { p.c.DrawCircle(cx, cy, r, s) }
func (p *pdfCanvas) AddLink(x, y, w, h float64, uri string)           { p.c.AddLink(x, y, w, h, uri) }

func (p *pdfCanvas) DrawText(text string, x, y float64, t TextStyle) error {
	f, ok := t.Font.(*pdfdoc.Font)
	if !ok {
		return fmt.Errorf("flatten: font %T was not created by this document", t.Font)
	}
	return p.c.DrawText(text, x, y, pdfdoc.TextStyle{Font: f, Size: t.Size, Color: t.Color, Opacity: t.Opacity})
}

func (p *pdfCanvas) DrawImage(img Image, x, y, w, h, opacity float64) error {
	im, ok := img.(*pdfdoc.Image)
	if !ok {
		return fmt.Errorf("flatten: image %T was not created by this document", img)
	}
	p.c.DrawImage(im, x, y, w, h, opacity)
	return nil
}
