// Package tesseract recognizes selection images with Tesseract through
// gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"sort"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/ocr"
)

var (
	_ ocr.Engine      = (*Engine)(nil)
	_ ocr.BatchEngine = (*Engine)(nil)
)

// Engine runs one gosseract client per recognition.
type Engine struct {
	newClient func() *gosseract.Client
	languages []string
	minConf   float64
	log       observability.Logger
	tracer    observability.Tracer
}

type Option func(*Engine)

// WithLanguages sets the languages used when an input carries none.
func WithLanguages(langs ...string) Option {
	return func(e *Engine) { e.languages = append([]string(nil), langs...) }
}

// WithMinConfidence drops words scored below c, in [0, 1]. Selection boxes
// often clip neighbouring glyphs, which come back as low-confidence noise.
func WithMinConfidence(c float64) Option {
	return func(e *Engine) { e.minConf = c }
}

func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.log = observability.OrNop(l) }
}

// WithTracer sets the tracer that receives one span per recognition.
func WithTracer(t observability.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		newClient: gosseract.NewClient,
		log:       observability.NopLogger{},
		tracer:    observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the text of in line by line. Without any word boxes the
// engine's plain text is kept as a single line.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (res ocr.Result, err error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	_, span := e.tracer.StartSpan(ctx, observability.SpanOCR)
	span.SetTag("page", in.Page)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	c := e.newClient()
	defer c.Close()
	langs, err := e.configure(c, in)
	if err != nil {
		return ocr.Result{}, err
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	lines, _ := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	words, _ := c.GetBoundingBoxes(gosseract.RIL_WORD)

	res = ocr.Result{InputID: in.ID, Language: first(langs)}
	block := ocr.TextBlock{Lines: layout(lines, words, e.minConf)}
	if len(block.Lines) == 0 {
		if plain := strings.TrimSpace(text); plain != "" {
			block.Lines = []ocr.TextLine{{Text: plain}}
		}
	}
	block.Text, block.Bounds, block.Confidence = summarize(block.Lines)
	if block.Text != "" {
		res.PlainText = block.Text
		res.Blocks = []ocr.TextBlock{block}
	}
	e.log.Debug("ocr finished",
		observability.String("input", in.ID),
		observability.Int("lines", len(block.Lines)),
		observability.Float("confidence", res.Confidence()))
	return res, nil
}

// RecognizeBatch processes inputs in order and stops at the first failure.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		res, err := e.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// configure loads the image and the recognition variables of in into c and
// returns the languages in effect.
func (e *Engine) configure(c *gosseract.Client, in ocr.Input) ([]string, error) {
	data, err := crop(in.Image, in.Region)
	if err != nil {
		return nil, err
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	vars := make(map[string]string, len(in.Variables)+1)
	for k, v := range in.Variables {
		vars[k] = v
	}
	if in.DPI > 0 {
		vars["user_defined_dpi"] = strconv.Itoa(in.DPI)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.SetVariable(gosseract.SettableVariable(k), vars[k]); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return langs, nil
}

// layout assigns each word to the line box containing its center, keeping
// lines top to bottom and words left to right. Words outside every line box
// start a line of their own. Words scored below minConf are dropped.
func layout(lineBoxes, wordBoxes []gosseract.BoundingBox, minConf float64) []ocr.TextLine {
	type group struct {
		box   image.Rectangle
		words []ocr.TextWord
	}
	groups := make([]*group, 0, len(lineBoxes))
	for _, lb := range lineBoxes {
		groups = append(groups, &group{box: lb.Box})
	}
	for _, wb := range wordBoxes {
		text := strings.TrimSpace(wb.Word)
		conf := wb.Confidence / 100
		if text == "" || conf < minConf {
			continue
		}
		w := ocr.TextWord{Text: text, Bounds: region(wb.Box), Confidence: conf}
		center := image.Pt((wb.Box.Min.X+wb.Box.Max.X)/2, (wb.Box.Min.Y+wb.Box.Max.Y)/2)
		var home *group
		for _, g := range groups {
			if center.In(g.box) {
				home = g
				break
			}
		}
		if home == nil {
			home = &group{box: wb.Box}
			groups = append(groups, home)
		}
		home.words = append(home.words, w)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].box.Min.Y < groups[j].box.Min.Y })

	var out []ocr.TextLine
	for _, g := range groups {
		if len(g.words) == 0 {
			continue
		}
		sort.SliceStable(g.words, func(i, j int) bool { return g.words[i].Bounds.X < g.words[j].Bounds.X })
		texts := make([]string, len(g.words))
		var sum float64
		bounds := g.words[0].Bounds
		for i, w := range g.words {
			texts[i] = w.Text
			sum += w.Confidence
			bounds = union(bounds, w.Bounds)
		}
		out = append(out, ocr.TextLine{
			Text:       strings.Join(texts, " "),
			Bounds:     bounds,
			Words:      g.words,
			Confidence: sum / float64(len(g.words)),
		})
	}
	return out
}

// summarize joins lines with newlines and returns their union bounds and
// mean confidence.
func summarize(lines []ocr.TextLine) (string, ocr.Region, float64) {
	if len(lines) == 0 {
		return "", ocr.Region{}, 0
	}
	texts := make([]string, len(lines))
	bounds := lines[0].Bounds
	var sum float64
	for i, l := range lines {
		texts[i] = l.Text
		bounds = union(bounds, l.Bounds)
		sum += l.Confidence
	}
	return strings.Join(texts, "\n"), bounds, sum / float64(len(lines))
}

func region(r image.Rectangle) ocr.Region {
	return ocr.Region{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
}

func union(a, b ocr.Region) ocr.Region {
	if a.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return a
	}
	minX, minY := min(a.X, b.X), min(a.Y, b.Y)
	maxX, maxY := max(a.X+a.Width, b.X+b.Width), max(a.Y+a.Height, b.Y+b.Height)
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func first(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}

func crop(data []byte, r *ocr.Region) ([]byte, error) {
	if r == nil || r.IsEmpty() {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for region: %w", err)
	}
	sub, err := ocr.Crop(img, *r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
