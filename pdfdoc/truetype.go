package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/crypto/blake2b"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// shapeSize is the em size handed to the shaper, so advances come back in
// 1/1000 em after dropping the 26.6 fraction.
const shapeSize = fixed.Int26_6(1000 << 6)

type trueTypeFont struct {
	key     [32]byte
	data    []byte
	sf      *sfnt.Font
	face    *gotext.Face
	upem    float64
	bbox    [4]float64
	italic  float64
	widths  map[int]int
	unicode map[int][]rune

	cid, descriptor, file, toUnicode Ref
}

type shapedGlyph struct {
	gid     int
	advance float64
	runes   []rune
}

// EmbedTrueType embeds a TrueType or OpenType (glyf) font as a Type0 font
// with Identity-H encoding. Text drawn with it is shaped with HarfBuzz rules,
// so the font can cover any script it has glyphs for.
func (d *Document) EmbedTrueType(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, errors.New("pdfdoc: truetype font data is empty")
	}
	key := blake2b.Sum256(data)
	for _, f := range d.ttFonts {
		if f.tt.key == key {
			return f, nil
		}
	}
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: parse truetype: %w", err)
	}
	face, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: load truetype for shaping: %w", err)
	}
	upem := sf.UnitsPerEm()
	if upem == 0 {
		return nil, errors.New("pdfdoc: truetype font has no units per em")
	}
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(upem) << 6
	scale := func(v fixed.Int26_6) float64 { return float64(v) * 1000 / (64 * float64(upem)) }

	name := "EmbeddedFont"
	if ps, err := sf.Name(&buf, sfnt.NameIDPostScript); err == nil && ps != "" {
		name = strings.ReplaceAll(ps, " ", "")
	}
	metrics, _ := sf.Metrics(&buf, ppem, xfont.HintingNone)
	bounds, _ := sf.Bounds(&buf, ppem, xfont.HintingNone)
	tt := &trueTypeFont{
		key:     key,
		data:    data,
		sf:      sf,
		face:    face,
		upem:    float64(upem),
		bbox:    [4]float64{scale(bounds.Min.X), scale(-bounds.Max.Y), scale(bounds.Max.X), scale(-bounds.Min.Y)},
		widths:  make(map[int]int),
		unicode: make(map[int][]rune),
	}
	if post := sf.PostTable(); post != nil {
		tt.italic = post.ItalicAngle
	}
	f := &Font{name: name, ascent: scale(metrics.Ascent), descent: scale(metrics.Descent), tt: tt}
	f.ref = d.add(NewDict())
	tt.cid = d.add(NewDict())
	tt.descriptor = d.add(NewDict())
	tt.file = d.add(NewDict())
	tt.toUnicode = d.add(NewDict())
	d.ttFonts = append(d.ttFonts, f)
	return f, nil
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Bengali, language.Bengali},
	{unicode.Tamil, language.Tamil},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best, bestN := language.Latin, 0
	for _, r := range runes {
		for _, st := range scriptTables {
			if unicode.Is(st.table, r) {
				counts[st.script]++
				if counts[st.script] > bestN {
					best, bestN = st.script, counts[st.script]
				}
				break
			}
		}
	}
	return best
}

func (t *trueTypeFont) shape(text string) []shapedGlyph {
	runes := []rune(norm.NFC.String(text))
	if len(runes) == 0 {
		return nil
	}
	script := detectScript(runes)
	dir := di.DirectionLTR
	if script == language.Arabic || script == language.Hebrew {
		dir = di.DirectionRTL
	}
	out := (&shaping.HarfbuzzShaper{}).Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      t.face,
		Size:      shapeSize,
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	glyphs := make([]shapedGlyph, 0, len(out.Glyphs))
	for _, g := range out.Glyphs {
		sg := shapedGlyph{gid: int(g.GlyphID), advance: float64(g.XAdvance) / 64}
		end := g.ClusterIndex + g.RuneCount
		if g.ClusterIndex >= 0 && end <= len(runes) && g.GlyphCount > 0 {
			sg.runes = runes[g.ClusterIndex:end]
		}
		glyphs = append(glyphs, sg)
	}
	return glyphs
}

func (t *trueTypeFont) width(text string) float64 {
	var w float64
	for _, g := range t.shape(text) {
		w += g.advance
	}
	return w
}

func (t *trueTypeFont) covers(text string) bool {
	var buf sfnt.Buffer
	for _, r := range norm.NFC.String(text) {
		if unicode.IsControl(r) {
			continue
		}
		idx, err := t.sf.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}

func (t *trueTypeFont) encode(text string) (String, error) {
	glyphs := t.shape(text)
	out := make([]byte, 0, 2*len(glyphs))
	var buf sfnt.Buffer
	for _, g := range glyphs {
		if g.gid > 0xFFFF {
			return String{}, fmt.Errorf("pdfdoc: glyph id %d out of range", g.gid)
		}
		out = append(out, byte(g.gid>>8), byte(g.gid))
		if _, ok := t.widths[g.gid]; !ok {
			adv, err := t.sf.GlyphAdvance(&buf, sfnt.GlyphIndex(g.gid), fixed.Int26_6(t.upem)<<6, xfont.HintingNone)
			if err != nil {
				t.widths[g.gid] = int(math.Round(g.advance))
			} else {
				t.widths[g.gid] = int(math.Round(float64(adv) * 1000 / (64 * t.upem)))
			}
		}
		if _, ok := t.unicode[g.gid]; !ok && len(g.runes) > 0 {
			t.unicode[g.gid] = g.runes
		}
	}
	return String{Bytes: out, Hex: true}, nil
}

// objects builds the font dictionaries from the glyphs used so far.
func (f *Font) trueTypeObjects(d *Document) (map[int]Object, error) {
	t := f.tt
	file, err := d.compress(t.data)
	if err != nil {
		return nil, err
	}
	file.Dict.Set("Length1", Int(int64(len(t.data))))
	cmap, err := d.compress(toUnicodeCMap(f.name, t.unicode))
	if err != nil {
		return nil, err
	}
	descriptor := NewDict().
		Set("Type", Name("FontDescriptor")).
		Set("FontName", Name(f.name)).
		Set("Flags", Int(32)).
		Set("FontBBox", Array{Int(round(t.bbox[0])), Int(round(t.bbox[1])), Int(round(t.bbox[2])), Int(round(t.bbox[3]))}).
		Set("ItalicAngle", Real(t.italic)).
		Set("Ascent", Int(round(f.ascent))).
		Set("Descent", Int(-round(f.descent))).
		Set("CapHeight", Int(round(f.ascent))).
		Set("StemV", Int(80)).
		Set("FontFile2", t.file)
	cid := NewDict().
		Set("Type", Name("Font")).
		Set("Subtype", Name("CIDFontType2")).
		Set("BaseFont", Name(f.name)).
		Set("CIDSystemInfo", NewDict().Set("Registry", Str("Adobe")).Set("Ordering", Str("Identity")).Set("Supplement", Int(0))).
		Set("FontDescriptor", t.descriptor).
		Set("DW", Int(1000)).
		Set("W", cidWidths(t.widths)).
		Set("CIDToGIDMap", Name("Identity"))
	type0 := NewDict().
		Set("Type", Name("Font")).
		Set("Subtype", Name("Type0")).
		Set("BaseFont", Name(f.name)).
		Set("Encoding", Name("Identity-H")).
		Set("DescendantFonts", Array{t.cid}).
		Set("ToUnicode", t.toUnicode)
	return map[int]Object{
		f.ref.Num:        type0,
		t.cid.Num:        cid,
		t.descriptor.Num: descriptor,
		t.file.Num:       file,
		t.toUnicode.Num:  cmap,
	}, nil
}

// cidWidths encodes widths as "first last width" ranges.
func cidWidths(widths map[int]int) Array {
	arr := Array{}
	if len(widths) == 0 {
		return arr
	}
	codes := make([]int, 0, len(widths))
	for c := range widths {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	start, prev, cur := codes[0], codes[0], widths[codes[0]]
	flush := func() { arr = append(arr, Int(int64(start)), Int(int64(prev)), Int(int64(cur))) }
	for _, c := range codes[1:] {
		if widths[c] == cur && c == prev+1 {
			prev = c
			continue
		}
		flush()
		start, prev, cur = c, c, widths[c]
	}
	flush()
	return arr
}

func toUnicodeCMap(name string, m map[int][]rune) []byte {
	keys := make([]int, 0, len(m))
	for gid := range m {
		keys = append(keys, gid)
	}
	sort.Ints(keys)
	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&b, "/CMapName /%s-UTF16 def\n/CMapType 2 def\n", name)
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	for i := 0; i < len(keys); i += 100 {
		chunk := keys[i:min(i+100, len(keys))]
		fmt.Fprintf(&b, "%d beginbfchar\n", len(chunk))
		for _, gid := range chunk {
			fmt.Fprintf(&b, "<%04X> <", gid)
			for _, u := range utf16.Encode(m[gid]) {
				fmt.Fprintf(&b, "%04X", u)
			}
			b.WriteString(">\n")
		}
		b.WriteString("endbfchar\n")
	}
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return b.Bytes()
}
