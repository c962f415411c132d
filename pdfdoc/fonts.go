package pdfdoc

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// ErrUnknownFont is returned for families outside the standard 14 fonts.
var ErrUnknownFont = errors.New("pdfdoc: unknown standard font family")

// Font is a font resource usable by Canvas.DrawText.
type Font struct {
	name    string
	ref     Ref
	ascent  float64
	descent float64
	std     *standardFace
	tt      *trueTypeFont
}

// Name returns the PostScript name of the font.
func (f *Font) Name() string { return f.name }

// Ascent returns the height above the baseline at size, in points.
func (f *Font) Ascent(size float64) float64 { return f.ascent * size / 1000 }

// Descent returns the depth below the baseline at size, as a positive number.
func (f *Font) Descent(size float64) float64 { return f.descent * size / 1000 }

// Width returns the advance width of text at size.
func (f *Font) Width(text string, size float64) float64 {
	if f.tt != nil {
		return f.tt.width(text) * size / 1000
	}
	var w float64
	for _, r := range norm.NFC.String(text) {
		w += f.std.advance(r)
	}
	return w * size / 1000
}

// CanEncode reports whether every rune of text has a glyph in f.
func (f *Font) CanEncode(text string) bool {
	if f.tt != nil {
		return f.tt.covers(text)
	}
	for _, r := range norm.NFC.String(text) {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}

func (f *Font) encode(text string) (String, error) {
	if f.tt != nil {
		return f.tt.encode(text)
	}
	text = norm.NFC.String(text)
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return String{Bytes: out}, nil
}

type standardFace struct {
	widths  *[95]int
	fixed   int
	proxy   func() *sfnt.Font
	ascent  float64
	descent float64
}

// advance returns the glyph width in 1/1000 em.
func (s *standardFace) advance(r rune) float64 {
	if s.fixed > 0 {
		return float64(s.fixed)
	}
	if s.widths != nil && r >= 32 && r < 127 {
		return float64(s.widths[r-32])
	}
	if w, ok := proxyAdvance(s.proxy(), r); ok {
		return w
	}
	return 500
}

// helveticaWidths holds the AFM advance widths of Helvetica for ASCII 32..126.
var helveticaWidths = [95]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

var (
	proxyOnce  sync.Once
	proxyFaces map[string]*sfnt.Font
)

func proxy(name string) func() *sfnt.Font {
	return func() *sfnt.Font {
		proxyOnce.Do(func() {
			proxyFaces = make(map[string]*sfnt.Font)
			for k, data := range map[string][]byte{
				"regular":    goregular.TTF,
				"bold":       gobold.TTF,
				"italic":     goitalic.TTF,
				"bolditalic": gobolditalic.TTF,
			} {
				if f, err := sfnt.Parse(data); err == nil {
					proxyFaces[k] = f
				}
			}
		})
		return proxyFaces[name]
	}
}

func proxyAdvance(f *sfnt.Font, r rune) (float64, bool) {
	if f == nil {
		return 0, false
	}
	var buf sfnt.Buffer
	idx, err := f.GlyphIndex(&buf, r)
	if err != nil || idx == 0 {
		return 0, false
	}
	upem := f.UnitsPerEm()
	adv, err := f.GlyphAdvance(&buf, idx, fixed.Int26_6(upem)<<6, xfont.HintingNone)
	if err != nil {
		return 0, false
	}
	return float64(adv) * 1000 / (64 * float64(upem)), true
}

type standardSpec struct {
	base string
	face standardFace
}

func familyKey(family string) string {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "helvetica", "arial", "sans-serif", "sans":
		return "helvetica"
	case "times", "times new roman", "times-roman", "serif":
		return "times"
	case "courier", "courier new", "monospace", "mono":
		return "courier"
	}
	return ""
}

func lookupStandard(family string, bold, italic bool) (standardSpec, error) {
	style := "regular"
	switch {
	case bold && italic:
		style = "bolditalic"
	case bold:
		style = "bold"
	case italic:
		style = "italic"
	}
	switch familyKey(family) {
	case "helvetica":
		base := map[string]string{"regular": "Helvetica", "bold": "Helvetica-Bold", "italic": "Helvetica-Oblique", "bolditalic": "Helvetica-BoldOblique"}[style]
		f := standardFace{proxy: proxy(style), ascent: 718, descent: 207}
		if !bold {
			f.widths = &helveticaWidths
		}
		return standardSpec{base: base, face: f}, nil
	case "times":
		base := map[string]string{"regular": "Times-Roman", "bold": "Times-Bold", "italic": "Times-Italic", "bolditalic": "Times-BoldItalic"}[style]
		return standardSpec{base: base, face: standardFace{proxy: proxy(style), ascent: 683, descent: 217}}, nil
	case "courier":
		base := map[string]string{"regular": "Courier", "bold": "Courier-Bold", "italic": "Courier-Oblique", "bolditalic": "Courier-BoldOblique"}[style]
		return standardSpec{base: base, face: standardFace{fixed: 600, proxy: proxy(style), ascent: 629, descent: 157}}, nil
	}
	return standardSpec{}, fmt.Errorf("%w: %q", ErrUnknownFont, family)
}

// StandardFont returns one of the standard Type1 fonts with WinAnsi
// encoding. Families Helvetica, Times and Courier are recognized along with
// common aliases.
func (d *Document) StandardFont(family string, bold, italic bool) (*Font, error) {
	spec, err := lookupStandard(family, bold, italic)
	if err != nil {
		return nil, err
	}
	if f, ok := d.stdFonts[spec.base]; ok {
		return f, nil
	}
	face := spec.face
	f := &Font{name: spec.base, ascent: face.ascent, descent: face.descent, std: &face}
	f.ref = d.add(NewDict().
		Set("Type", Name("Font")).
		Set("Subtype", Name("Type1")).
		Set("BaseFont", Name(spec.base)).
		Set("Encoding", Name("WinAnsiEncoding")))
	d.stdFonts[spec.base] = f
	return f, nil
}

func round(v float64) int64 { return int64(math.Round(v)) }
