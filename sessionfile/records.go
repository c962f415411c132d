package sessionfile

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
)

// Defaults for fields a session may omit.
const (
	DefaultFontSize    = 12
	DefaultStrokeWidth = 2
	DefaultStampSize   = 24
)

// Records converts the edits to annotation records in normalized
// coordinates. Legacy sessions (CaptureScale > 0) have their drawings,
// shapes and fill areas divided by the capture scale; every other record
// is already normalized. Missing IDs are generated from the record kind and
// position.
func (f *File) Records() ([]annotation.Record, error) {
	scale := 1.0
	if f.CaptureScale > 0 {
		if err := coords.ValidScale(f.CaptureScale); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		scale = f.CaptureScale
	}
	out := make([]annotation.Record, 0, len(f.Edits))
	for i, e := range f.Edits {
		r, err := e.record(scale)
		if err != nil {
			return nil, fmt.Errorf("edit %d: %w", i, err)
		}
		out = append(out, r)
	}
	assignIDs(out)
	for i, r := range out {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("edit %d: %w", i, err)
		}
	}
	return out, nil
}

// Snapshot groups the records by collection in session order.
func (f *File) Snapshot() (annotation.Snapshot, error) {
	recs, err := f.Records()
	if err != nil {
		return nil, err
	}
	snap := make(annotation.Snapshot, len(annotation.Collections))
	for _, r := range recs {
		snap[r.Collection()] = append(snap[r.Collection()], r)
	}
	return snap, nil
}

func assignIDs(recs []annotation.Record) {
	seen := make(map[string]bool)
	for _, r := range recs {
		if id := r.Key().ID; id != "" {
			seen[id] = true
		}
	}
	n := 0
	for _, r := range recs {
		if r.Kind() == annotation.KindTextEdit || r.Key().ID != "" {
			continue
		}
		var id string
		for {
			n++
			id = fmt.Sprintf("%s-%d", r.Kind(), n)
			if !seen[id] {
				break
			}
		}
		seen[id] = true
		annotation.SetID(r, id)
	}
}

func (e Edit) record(scale float64) (annotation.Record, error) {
	color, err := e.color(e.Color, annotation.Black)
	if err != nil {
		return nil, err
	}
	id := e.ID
	norm := func(v float64) float64 { return coords.ToNormalized(v, scale) }

	switch annotation.Kind(e.Type) {
	case annotation.KindTextEdit:
		te := &annotation.TextEdit{
			Page:           e.Page,
			Index:          e.Index,
			OriginalText:   e.OriginalText,
			Text:           e.Text,
			OriginalWidth:  e.OriginalWidth,
			OriginalHeight: e.OriginalHeight,
			Font:           e.font(),
			Color:          color,
		}
		te.OriginalX, te.OriginalY = pick(e.OriginalX, e.X), pick(e.OriginalY, e.Y)
		te.X, te.Y = pick(e.X, e.OriginalX), pick(e.Y, e.OriginalY)
		if e.Background != "" {
			bg, err := e.color(e.Background, annotation.White)
			if err != nil {
				return nil, err
			}
			te.Background = &bg
		}
		return te, nil
	case annotation.KindTextOverlay:
		font := e.font()
		w, h := e.Width, e.Height
		if w <= 0 {
			w = annotation.OverlayMinWidth * 4
		}
		if h <= 0 {
			lines := strings.Count(e.Text, "\n") + 1
			h = float64(lines) * font.Size * 1.2
			if h < annotation.OverlayMinHeight {
				h = annotation.OverlayMinHeight
			}
		}
		return &annotation.TextOverlay{
			ID: id, Page: e.Page, X: val(e.X), Y: val(e.Y),
			Width: w, Height: h, Text: e.Text, Font: font, Color: color,
		}, nil
	case annotation.KindDrawing:
		pts := make([]coords.Point, len(e.Points))
		for i, p := range e.Points {
			pts[i] = coords.Point{X: norm(p[0]), Y: norm(p[1])}
		}
		return &annotation.Drawing{
			ID: id, Page: e.Page, Points: pts, Color: color,
			StrokeWidth: e.stroke(), Opacity: e.opacity(),
		}, nil
	case annotation.KindRectangle:
		var start, end Point
		if e.Start != nil {
			start = *e.Start
		}
		if e.End != nil {
			end = *e.End
		}
		return &annotation.Rectangle{
			ID: id, Page: e.Page,
			StartX: norm(start[0]), StartY: norm(start[1]),
			EndX: norm(end[0]), EndY: norm(end[1]),
			Color: color, StrokeWidth: e.stroke(), Opacity: e.opacity(),
			LineStyle: annotation.LineStyle(e.LineStyle), Filled: e.Filled,
		}, nil
	case annotation.KindCircle:
		var c Point
		if e.Center != nil {
			c = *e.Center
		}
		return &annotation.Circle{
			ID: id, Page: e.Page,
			CenterX: norm(c[0]), CenterY: norm(c[1]), Radius: norm(e.Radius),
			Color: color, StrokeWidth: e.stroke(), Opacity: e.opacity(),
			LineStyle: annotation.LineStyle(e.LineStyle), Filled: e.Filled,
		}, nil
	case annotation.KindFillArea:
		fc, err := e.color(e.Color, annotation.White)
		if err != nil {
			return nil, err
		}
		return &annotation.FillArea{
			ID: id, Page: e.Page,
			X: norm(val(e.X)), Y: norm(val(e.Y)), Width: norm(e.Width), Height: norm(e.Height),
			Color: fc,
		}, nil
	case annotation.KindSignature:
		return &annotation.Signature{
			ID: id, Page: e.Page, X: val(e.X), Y: val(e.Y),
			Width: e.Width, Height: e.Height, Source: e.Source, Image: e.Image,
		}, nil
	case annotation.KindStamp:
		size := e.Size
		if size <= 0 {
			size = DefaultStampSize
		}
		return &annotation.Stamp{
			ID: id, Page: e.Page, Type: annotation.StampType(e.Stamp),
			X: val(e.X), Y: val(e.Y), Size: size, Color: color, Text: e.Text,
		}, nil
	case annotation.KindPatch:
		return &annotation.Patch{
			ID: id, Page: e.Page, X: val(e.X), Y: val(e.Y),
			Width: e.Width, Height: e.Height, Image: e.Image, Opacity: e.opacity(),
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown edit type %q", ErrSchema, e.Type)
}

func (e Edit) color(s string, def annotation.Color) (annotation.Color, error) {
	if s == "" {
		return def, nil
	}
	return annotation.ParseColor(s)
}

func (e Edit) font() annotation.Font {
	f := annotation.Font{Family: "Helvetica", Size: DefaultFontSize}
	if e.Font != nil {
		if e.Font.Family != "" {
			f.Family = e.Font.Family
		}
		if e.Font.Size > 0 {
			f.Size = e.Font.Size
		}
		f.Bold, f.Italic = e.Font.Bold, e.Font.Italic
	}
	return f
}

func (e Edit) stroke() float64 {
	if e.StrokeWidth > 0 {
		return e.StrokeWidth
	}
	return DefaultStrokeWidth
}

func (e Edit) opacity() float64 {
	if e.Opacity == nil {
		return 1
	}
	return *e.Opacity
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func pick(a, b *float64) float64 {
	if a != nil {
		return *a
	}
	return val(b)
}

// FromSnapshot builds a normalized session from snap in layering order.
func FromSnapshot(snap annotation.Snapshot) *File {
	f := &File{Version: Version}
	for _, col := range annotation.Collections {
		for _, r := range snap[col] {
			f.Edits = append(f.Edits, editOf(r))
		}
	}
	return f
}

func ptr(v float64) *float64 { return &v }

func fontOf(f annotation.Font) *Font {
	return &Font{Family: f.Family, Size: f.Size, Bold: f.Bold, Italic: f.Italic}
}

func editOf(r annotation.Record) Edit {
	e := Edit{Type: string(r.Kind()), ID: r.Key().ID, Page: r.PageNum()}
	switch v := r.(type) {
	case *annotation.TextEdit:
		e.Index = v.Index
		e.X, e.Y = ptr(v.X), ptr(v.Y)
		e.OriginalX, e.OriginalY = ptr(v.OriginalX), ptr(v.OriginalY)
		e.OriginalWidth, e.OriginalHeight = v.OriginalWidth, v.OriginalHeight
		e.OriginalText, e.Text = v.OriginalText, v.Text
		e.Font, e.Color = fontOf(v.Font), v.Color.Hex()
		if v.Background != nil {
			e.Background = v.Background.Hex()
		}
	case *annotation.TextOverlay:
		e.X, e.Y, e.Width, e.Height = ptr(v.X), ptr(v.Y), v.Width, v.Height
		e.Text, e.Font, e.Color = v.Text, fontOf(v.Font), v.Color.Hex()
	case *annotation.Drawing:
		for _, p := range v.Points {
			e.Points = append(e.Points, Point{p.X, p.Y})
		}
		e.Color, e.StrokeWidth, e.Opacity = v.Color.Hex(), v.StrokeWidth, ptr(v.Opacity)
	case *annotation.Rectangle:
		e.Start, e.End = &Point{v.StartX, v.StartY}, &Point{v.EndX, v.EndY}
		e.Color, e.StrokeWidth, e.Opacity = v.Color.Hex(), v.StrokeWidth, ptr(v.Opacity)
		e.LineStyle, e.Filled = string(v.LineStyle), v.Filled
	case *annotation.Circle:
		e.Center, e.Radius = &Point{v.CenterX, v.CenterY}, v.Radius
		e.Color, e.StrokeWidth, e.Opacity = v.Color.Hex(), v.StrokeWidth, ptr(v.Opacity)
		e.LineStyle, e.Filled = string(v.LineStyle), v.Filled
	case *annotation.FillArea:
		e.X, e.Y, e.Width, e.Height = ptr(v.X), ptr(v.Y), v.Width, v.Height
		e.Color = v.Color.Hex()
	case *annotation.Signature:
		e.X, e.Y, e.Width, e.Height = ptr(v.X), ptr(v.Y), v.Width, v.Height
		e.Source, e.Image = v.Source, v.Image
	case *annotation.Stamp:
		e.X, e.Y, e.Size = ptr(v.X), ptr(v.Y), v.Size
		e.Stamp, e.Color, e.Text = string(v.Type), v.Color.Hex(), v.Text
	case *annotation.Patch:
		e.X, e.Y, e.Width, e.Height = ptr(v.X), ptr(v.Y), v.Width, v.Height
		e.Image, e.Opacity = v.Image, ptr(v.Opacity)
	}
	return e
}
