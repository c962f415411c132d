package flatten

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/pdfdoc"
	"github.com/wudi/pdfedit/richtext"
)

const (
	// lineSpacing is the leading of multi-line text as a multiple of the
	// font size.
	lineSpacing = 1.2
	// shapeFillRatio scales the stroke opacity of filled shapes.
	shapeFillRatio = 0.3
)

// LinkColor paints link segments of text overlays.
var LinkColor = pdfdoc.RGB{R: 0.02, G: 0.27, B: 0.68}

var (
	placeholderFill   = pdfdoc.RGB{R: 0.92, G: 0.92, B: 0.92}
	placeholderStroke = pdfdoc.RGB{R: 0.6, G: 0.6, B: 0.6}
)

type pageSize struct{ w, h float64 }

// run is the state of one export.
type run struct {
	ctx      context.Context
	e        *Exporter
	doc      Document
	records  annotation.Snapshot
	licensed bool
	fonts    *fontChain

	canvases map[int]Canvas
	sizes    map[int]pageSize

	drawn, skipped int
}

func unknown(rec annotation.Record) error {
	return fmt.Errorf("%w: %T", ErrUnknownRecord, rec)
}

func rgb(c annotation.Color) pdfdoc.RGB {
	r, g, b := c.Floats()
	return pdfdoc.RGB{R: r, G: g, B: b}
}

// page returns the canvas and display height of page n. Records on pages
// the document does not have are skipped.
func (r *run) page(n int) (Canvas, float64, bool, error) {
	if n < 1 || n > r.doc.NumPages() {
		r.skipped++
		r.e.log.Warn("record on missing page skipped",
			observability.Int("page", n),
			observability.Int("pages", r.doc.NumPages()))
		return nil, 0, false, nil
	}
	if c, ok := r.canvases[n]; ok {
		return c, r.sizes[n].h, true, nil
	}
	w, h, err := r.doc.PageSize(n)
	if err != nil {
		return nil, 0, false, err
	}
	c, err := r.doc.Canvas(n)
	if err != nil {
		return nil, 0, false, err
	}
	r.sizes[n] = pageSize{w: w, h: h}
	r.canvases[n] = c
	return c, h, true, nil
}

func (r *run) skip(rec annotation.Record, reason string) {
	r.skipped++
	r.e.log.Debug("record not drawn",
		observability.String("record", annotation.RefOf(rec).String()),
		observability.String("reason", reason))
}

func (r *run) textEdits() error {
	for _, rec := range r.records[annotation.TextEdits] {
		te, ok := rec.(*annotation.TextEdit)
		if !ok {
			return unknown(rec)
		}
		c, pageH, ok, err := r.page(te.Page)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		size := te.Font.Size
		f, err := r.fonts.resolve(te.Font, te.Text)
		if err != nil {
			return err
		}
		asc, desc := f.Ascent(size), f.Descent(size)
		ob := te.OriginalBounds()
		w := max(ob.Width, f.Width(te.OriginalText, size))
		h := max(ob.Height, asc+desc)
		bg := rgb(te.BackgroundColor())
		c.DrawRectangle(te.OriginalX, pageH-(te.OriginalY+asc)-desc, w, h, pdfdoc.Style{Fill: &bg})

		style := TextStyle{Font: f, Size: size, Color: rgb(te.Color)}
		baseline := pageH - (te.Y + asc)
		for i, line := range strings.Split(te.Text, "\n") {
			if err := c.DrawText(line, te.X, baseline-float64(i)*size*lineSpacing, style); err != nil {
				return err
			}
		}
		r.drawn++
	}
	return nil
}

// shapes draws every drawing, then every rectangle, then every circle.
func (r *run) shapes() error {
	recs := r.records[annotation.Annotations]
	for _, rec := range recs {
		switch rec.(type) {
		case *annotation.Drawing, *annotation.Rectangle, *annotation.Circle:
		default:
			return unknown(rec)
		}
	}
	for _, kind := range []annotation.Kind{annotation.KindDrawing, annotation.KindRectangle, annotation.KindCircle} {
		for _, rec := range recs {
			if rec.Kind() != kind {
				continue
			}
			if err := r.shape(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func shapeStyle(col annotation.Color, width, opacity float64, ls annotation.LineStyle, filled bool) pdfdoc.Style {
	stroke := rgb(col)
	s := pdfdoc.Style{
		Stroke:        &stroke,
		LineWidth:     width,
		Dash:          ls.DashPattern(width),
		StrokeOpacity: opacity,
	}
	if filled {
		fill := stroke
		s.Fill = &fill
		s.FillOpacity = opacity * shapeFillRatio
	}
	return s
}

func (r *run) shape(rec annotation.Record) error {
	c, pageH, ok, err := r.page(rec.PageNum())
	if err != nil || !ok {
		return err
	}
	switch v := rec.(type) {
	case *annotation.Drawing:
		if v.Opacity <= 0 {
			r.skip(rec, "transparent")
			return nil
		}
		if len(v.Points) < 2 {
			r.skip(rec, "fewer than two points")
			return nil
		}
		pts := make([]coords.Point, len(v.Points))
		for i, p := range v.Points {
			pts[i] = coords.Point{X: p.X, Y: pageH - p.Y}
		}
		stroke := rgb(v.Color)
		c.DrawPolyline(pts, pdfdoc.Style{
			Stroke:        &stroke,
			LineWidth:     v.StrokeWidth,
			LineCap:       pdfdoc.CapRound,
			LineJoin:      pdfdoc.JoinRound,
			StrokeOpacity: v.Opacity,
		})
	case *annotation.Rectangle:
		if v.Opacity <= 0 {
			r.skip(rec, "transparent")
			return nil
		}
		f := v.Frame()
		c.DrawRectangle(f.X, coords.PDFY(pageH, f.Y, f.Height, 1), f.Width, f.Height,
			shapeStyle(v.Color, v.StrokeWidth, v.Opacity, v.LineStyle, v.Filled))
	case *annotation.Circle:
		if v.Opacity <= 0 {
			r.skip(rec, "transparent")
			return nil
		}
		c.DrawCircle(v.CenterX, pageH-v.CenterY, v.Radius,
			shapeStyle(v.Color, v.StrokeWidth, v.Opacity, v.LineStyle, v.Filled))
	default:
		return unknown(rec)
	}
	r.drawn++
	return nil
}

func (r *run) fillAreas() error {
	for _, rec := range r.records[annotation.FillAreas] {
		fa, ok := rec.(*annotation.FillArea)
		if !ok {
			return unknown(rec)
		}
		c, pageH, ok, err := r.page(fa.Page)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fill := rgb(fa.Color)
		c.DrawRectangle(fa.X, coords.PDFY(pageH, fa.Y, fa.Height, 1), fa.Width, fa.Height, pdfdoc.Style{Fill: &fill})
		r.drawn++
	}
	return nil
}

// textOverlays draws overlay text line by line. Link segments become
// separate underlined runs with a link annotation over them.
func (r *run) textOverlays() error {
	for _, rec := range r.records[annotation.TextOverlays] {
		ov, ok := rec.(*annotation.TextOverlay)
		if !ok {
			return unknown(rec)
		}
		lines := richtext.Parse(ov.Text)
		var plain []string
		for _, segs := range lines {
			plain = append(plain, richtext.PlainText(segs))
		}
		if strings.TrimSpace(strings.Join(plain, "")) == "" {
			r.skip(rec, "empty text")
			continue
		}
		c, pageH, ok, err := r.page(ov.Page)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		size := ov.Font.Size
		f, err := r.fonts.resolve(ov.Font, strings.Join(plain, "\n"))
		if err != nil {
			return err
		}
		asc, desc := f.Ascent(size), f.Descent(size)
		color := rgb(ov.Color)
		baseline := pageH - (ov.Y + asc)
		for _, segs := range lines {
			x := ov.X
			for _, seg := range segs {
				w := f.Width(seg.Text, size)
				style := TextStyle{Font: f, Size: size, Color: color}
				if seg.IsLink() {
					style.Color = LinkColor
				}
				if err := c.DrawText(seg.Text, x, baseline, style); err != nil {
					return err
				}
				if seg.IsLink() && w > 0 {
					link := LinkColor
					under := baseline - desc/2
					c.DrawLine(x, under, x+w, under, pdfdoc.Style{Stroke: &link, LineWidth: max(size/16, 0.5)})
					c.AddLink(x, baseline-desc, w, asc+desc, seg.URL)
				}
				x += w
			}
			baseline -= size * lineSpacing
		}
		r.drawn++
	}
	return nil
}

func (r *run) signatures() error {
	for _, rec := range r.records[annotation.Signatures] {
		sig, ok := rec.(*annotation.Signature)
		if !ok {
			return unknown(rec)
		}
		c, pageH, ok, err := r.page(sig.Page)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		y := coords.PDFY(pageH, sig.Y, sig.Height, 1)
		img, err := r.signatureImage(sig)
		if err != nil {
			r.e.log.Warn("signature image unavailable, drawing placeholder",
				observability.String("id", sig.ID),
				observability.Error("error", err))
			fill, stroke := placeholderFill, placeholderStroke
			c.DrawRectangle(sig.X, y, sig.Width, sig.Height, pdfdoc.Style{Fill: &fill, Stroke: &stroke, LineWidth: 1})
			r.drawn++
			continue
		}
		if err := c.DrawImage(img, sig.X, y, sig.Width, sig.Height, 1); err != nil {
			return err
		}
		r.drawn++
	}
	return nil
}

func (r *run) signatureImage(sig *annotation.Signature) (Image, error) {
	data := sig.Image
	if len(data) == 0 {
		var err error
		data, err = r.e.fetcher.Fetch(r.ctx, sig.Source)
		if err != nil {
			return nil, err
		}
	}
	return r.doc.LoadImage(data)
}

func (r *run) patches() error {
	for _, rec := range r.records[annotation.Patches] {
		p, ok := rec.(*annotation.Patch)
		if !ok {
			return unknown(rec)
		}
		if p.Opacity <= 0 {
			r.skip(rec, "transparent")
			continue
		}
		c, pageH, ok, err := r.page(p.Page)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		img, err := r.doc.LoadImage(p.Image)
		if err != nil {
			r.skipped++
			r.e.log.Warn("patch image unreadable, skipped",
				observability.String("id", p.ID),
				observability.Error("error", err))
			continue
		}
		if err := c.DrawImage(img, p.X, coords.PDFY(pageH, p.Y, p.Height, 1), p.Width, p.Height, p.Opacity); err != nil {
			return err
		}
		r.drawn++
	}
	return nil
}
