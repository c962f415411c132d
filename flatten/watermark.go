package flatten

import (
	"math"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/pdfdoc"
)

// Watermark is drawn on every page of an unlicensed export: a staggered grid
// of Text, Brand in the bottom-right corner and Mark across the center.
type Watermark struct {
	Text    string
	Brand   string
	Mark    string
	Color   pdfdoc.RGB
	Opacity float64
	// Spacing is the distance between grid cells in points.
	Spacing float64
	// Size is the font size of grid text; the center mark is twice as large.
	Size float64
}

// DefaultWatermark is used when no watermark is configured.
var DefaultWatermark = Watermark{
	Text:    "pdfedit",
	Brand:   "Edited with pdfedit",
	Mark:    "UNLICENSED",
	Color:   pdfdoc.RGB{R: 0.5, G: 0.5, B: 0.5},
	Opacity: 0.12,
	Spacing: 160,
	Size:    24,
}

func (w Watermark) withDefaults() Watermark {
	d := DefaultWatermark
	if w.Text == "" && w.Brand == "" && w.Mark == "" {
		w.Text, w.Brand, w.Mark = d.Text, d.Brand, d.Mark
	}
	if w.Color == (pdfdoc.RGB{}) {
		w.Color = d.Color
	}
	if w.Opacity <= 0 || w.Opacity > 1 {
		w.Opacity = d.Opacity
	}
	if w.Spacing <= 0 {
		w.Spacing = d.Spacing
	}
	if w.Size <= 0 {
		w.Size = d.Size
	}
	return w
}

const brandMargin = 12

var watermarkFont = annotation.Font{Family: DefaultFamily}

func (r *run) watermarks() error {
	if r.licensed {
		return nil
	}
	wm := r.e.watermark
	for n := 1; n <= r.doc.NumPages(); n++ {
		c, _, ok, err := r.page(n)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		size := r.sizes[n]
		if err := r.watermarkPage(c, size.w, size.h, wm); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) watermarkPage(c Canvas, pw, ph float64, wm Watermark) error {
	style := func(size, opacity float64) (TextStyle, error) {
		f, err := r.fonts.resolve(watermarkFont, wm.Text+wm.Brand+wm.Mark)
		return TextStyle{Font: f, Size: size, Color: wm.Color, Opacity: opacity}, err
	}
	if wm.Text != "" {
		ts, err := style(wm.Size, wm.Opacity)
		if err != nil {
			return err
		}
		tw := ts.Font.Width(wm.Text, ts.Size)
		rows := int(math.Ceil(ph / wm.Spacing))
		cols := int(math.Ceil(pw/wm.Spacing)) + 1
		for row := 0; row < rows; row++ {
			y := wm.Spacing/2 + float64(row)*wm.Spacing
			shift := 0.0
			if row%2 == 1 {
				shift = wm.Spacing / 2
			}
			for col := 0; col < cols; col++ {
				x := shift + float64(col)*wm.Spacing - tw/2
				if err := c.DrawText(wm.Text, x, y, ts); err != nil {
					return err
				}
			}
		}
	}
	if wm.Mark != "" {
		ts, err := style(2*wm.Size, math.Min(1, 2*wm.Opacity))
		if err != nil {
			return err
		}
		mw := ts.Font.Width(wm.Mark, ts.Size)
		if err := c.DrawText(wm.Mark, (pw-mw)/2, ph/2-ts.Font.Ascent(ts.Size)/2, ts); err != nil {
			return err
		}
	}
	if wm.Brand != "" {
		ts, err := style(9, 0.6)
		if err != nil {
			return err
		}
		bw := ts.Font.Width(wm.Brand, ts.Size)
		if err := c.DrawText(wm.Brand, pw-bw-brandMargin, brandMargin, ts); err != nil {
			return err
		}
	}
	return nil
}
