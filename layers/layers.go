// Package layers projects the annotation store into the read-only layer list
// shown next to the page. The list is derived state; nothing writes back
// through it.
package layers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
)

// Layer is one row of the panel.
type Layer struct {
	Ref      annotation.Ref
	Kind     annotation.Kind
	Label    string
	Bounds   coords.Rect
	Selected bool
}

// Source is the read side of annotation.Store.
type Source interface {
	OnPage(col annotation.Collection, page int) []annotation.Record
}

const maxLabel = 24

// Project lists the records of page, topmost first: later export layers
// before earlier ones and, inside one layer, newer records before older ones.
func Project(src Source, page int, selected *annotation.Ref) []Layer {
	var out []Layer
	for i := len(annotation.Collections) - 1; i >= 0; i-- {
		recs := src.OnPage(annotation.Collections[i], page)
		if annotation.Collections[i] == annotation.Annotations {
			recs = byShapeLayer(recs)
		}
		for j := len(recs) - 1; j >= 0; j-- {
			r := recs[j]
			ref := annotation.RefOf(r)
			out = append(out, Layer{
				Ref:      ref,
				Kind:     r.Kind(),
				Label:    Label(r),
				Bounds:   r.Bounds(),
				Selected: selected != nil && *selected == ref,
			})
		}
	}
	return out
}

func byShapeLayer(recs []annotation.Record) []annotation.Record {
	out := make([]annotation.Record, 0, len(recs))
	for _, k := range []annotation.Kind{annotation.KindDrawing, annotation.KindRectangle, annotation.KindCircle} {
		for _, r := range recs {
			if r.Kind() == k {
				out = append(out, r)
			}
		}
	}
	return out
}

// Label describes r for humans.
func Label(r annotation.Record) string {
	switch v := r.(type) {
	case *annotation.TextEdit:
		return "Edit: " + truncate(v.Text)
	case *annotation.TextOverlay:
		return "Text: " + truncate(v.Text)
	case *annotation.Drawing:
		return fmt.Sprintf("Drawing (%d points)", len(v.Points))
	case *annotation.Rectangle:
		return "Rectangle " + v.Color.Hex()
	case *annotation.Circle:
		return "Circle " + v.Color.Hex()
	case *annotation.FillArea:
		return "Fill " + v.Color.Hex()
	case *annotation.Signature:
		return "Signature"
	case *annotation.Stamp:
		if v.Type == annotation.StampDate && v.Text != "" {
			return "Stamp: " + v.Text
		}
		return "Stamp: " + string(v.Type)
	case *annotation.Patch:
		return fmt.Sprintf("Patch %d%%", int(v.Opacity*100+0.5))
	default:
		return string(r.Kind())
	}
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLabel {
		return s
	}
	rs := []rune(s)
	return string(rs[:maxLabel-1]) + "…"
}
