package flatten

import (
	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/pdfdoc"
)

// DateLayout formats date stamps that carry no text of their own.
const DateLayout = "2006-01-02"

var stampFont = annotation.Font{Family: DefaultFamily, Bold: true}

// stamps draws each stamp centered on its anchor, scaled to its size.
func (r *run) stamps() error {
	for _, rec := range r.records[annotation.Stamps] {
		st, ok := rec.(*annotation.Stamp)
		if !ok {
			return unknown(rec)
		}
		c, pageH, ok, err := r.page(st.Page)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		cx, cy, s := st.X, pageH-st.Y, st.Size
		col := rgb(st.Color)
		switch st.Type {
		case annotation.StampCheck:
			c.DrawPolyline([]coords.Point{
				{X: cx - 0.35*s, Y: cy + 0.02*s},
				{X: cx - 0.1*s, Y: cy - 0.25*s},
				{X: cx + 0.35*s, Y: cy + 0.3*s},
			}, pdfdoc.Style{Stroke: &col, LineWidth: 0.12 * s, LineCap: pdfdoc.CapRound, LineJoin: pdfdoc.JoinRound})
		case annotation.StampX:
			style := pdfdoc.Style{Stroke: &col, LineWidth: 0.12 * s, LineCap: pdfdoc.CapRound}
			d := 0.3 * s
			c.DrawLine(cx-d, cy-d, cx+d, cy+d, style)
			c.DrawLine(cx-d, cy+d, cx+d, cy-d, style)
		case annotation.StampCircle:
			c.DrawCircle(cx, cy, 0.4*s, pdfdoc.Style{Stroke: &col, LineWidth: 0.08 * s})
		case annotation.StampDot:
			c.DrawCircle(cx, cy, 0.2*s, pdfdoc.Style{Fill: &col})
		case annotation.StampDate:
			text := st.Text
			if text == "" {
				text = r.e.now().Format(DateLayout)
			}
			if err := r.centeredText(c, text, cx, cy, 0.3*s, s, col); err != nil {
				return err
			}
		case annotation.StampNA:
			if err := r.centeredText(c, "N/A", cx, cy, 0.4*s, s, col); err != nil {
				return err
			}
		default:
			r.skip(rec, "unknown stamp type "+string(st.Type))
			continue
		}
		r.drawn++
	}
	return nil
}

// centeredText draws text centered on (cx, cy), shrinking it to fit inside
// box points.
func (r *run) centeredText(c Canvas, text string, cx, cy, size, box float64, col pdfdoc.RGB) error {
	f, err := r.fonts.resolve(stampFont, text)
	if err != nil {
		return err
	}
	w := f.Width(text, size)
	if limit := 0.9 * box; w > limit && w > 0 {
		size *= limit / w
		w = limit
	}
	baseline := cy - (f.Ascent(size)-f.Descent(size))/2
	return c.DrawText(text, cx-w/2, baseline, TextStyle{Font: f, Size: size, Color: col})
}
