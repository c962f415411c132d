package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wudi/pdfedit/flatten"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/ocr"
	"github.com/wudi/pdfedit/selection"
)

var errStub = errors.New("stub document cannot draw")

// stubDoc answers page queries only.
type stubDoc struct {
	pages int
	w, h  float64
}

func (d stubDoc) NumPages() int { return d.pages }

func (d stubDoc) PageSize(n int) (float64, float64, error) {
	if n < 1 || n > d.pages {
		return 0, 0, errors.New("page out of range")
	}
	return d.w, d.h, nil
}

func (stubDoc) Canvas(int) (flatten.Canvas, error)                    { return nil, errStub }
func (stubDoc) StandardFont(string, bool, bool) (flatten.Font, error) { return nil, errStub }
func (stubDoc) EmbedTrueType([]byte) (flatten.Font, error)            { return nil, errStub }
func (stubDoc) LoadImage([]byte) (flatten.Image, error)               { return nil, errStub }
func (stubDoc) Save() ([]byte, error)                                 { return nil, errStub }

// countingOpener opens stub documents of the given page count and counts
// calls. Input "broken" fails.
type countingOpener struct {
	pages int
	calls atomic.Int32
}

func (o *countingOpener) open(data []byte) (flatten.Document, error) {
	o.calls.Add(1)
	if string(data) == "broken" {
		return nil, errors.New("not a pdf")
	}
	return stubDoc{pages: o.pages, w: 612, h: 792}, nil
}

// fakeExporter returns fixed bytes and keeps the last input.
type fakeExporter struct {
	mu   sync.Mutex
	out  []byte
	err  error
	last flatten.Input
	n    int
}

func (e *fakeExporter) Export(ctx context.Context, in flatten.Input) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	e.last = in
	if e.err != nil {
		return nil, e.err
	}
	return e.out, nil
}

// solidRaster renders every page as a gray image sized to the scale.
type solidRaster struct {
	calls int
}

func (r *solidRaster) Render(_ context.Context, page int, scale float64) (image.Image, error) {
	r.calls++
	img := image.NewRGBA(image.Rect(0, 0, int(612*scale), int(792*scale)))
	for y := 0; y < img.Bounds().Dy(); y += 4 {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	return img, nil
}

// scriptedConfirmer answers with Answer and counts questions.
type scriptedConfirmer struct {
	Answer bool
	asked  []string
}

func (c *scriptedConfirmer) Confirm(msg string, cb func(bool)) {
	c.asked = append(c.asked, msg)
	cb(c.Answer)
}

type fixture struct {
	s       *Session
	notices *notify.Recorder
	sched   *selection.ManualScheduler
	opener  *countingOpener
	exp     *fakeExporter
	confirm *scriptedConfirmer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		notices: &notify.Recorder{},
		sched:   &selection.ManualScheduler{},
		opener:  &countingOpener{pages: 2},
		exp:     &fakeExporter{out: []byte("%PDF-flattened")},
		confirm: &scriptedConfirmer{Answer: true},
	}
	base := []Option{
		WithNotifier(f.notices),
		WithScheduler(f.sched),
		WithOpener(f.opener.open),
		WithExporter(f.exp),
		WithConfirmer(f.confirm),
	}
	f.s = NewSession(append(base, opts...)...)
	if err := f.s.Load(context.Background(), []byte("%PDF-original"), "doc.pdf"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	f.notices.Reset()
	return f
}

func (f *fixture) lastNotice(t *testing.T) notify.Notice {
	t.Helper()
	n, ok := f.notices.Last()
	if !ok {
		t.Fatalf("no notice shown")
	}
	return n
}

// fixedOCR recognizes the same text in every image.
type fixedOCR struct {
	text string
	conf float64
}

func (fixedOCR) Name() string { return "fixed" }

func (e fixedOCR) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	res := ocr.Result{InputID: in.ID, PlainText: e.text}
	if e.text != "" {
		res.Blocks = []ocr.TextBlock{{Text: e.text, Confidence: e.conf, Lines: []ocr.TextLine{{
			Text:       e.text,
			Confidence: e.conf,
			Words:      []ocr.TextWord{{Text: e.text, Confidence: e.conf}},
		}}}}
	}
	return res, nil
}
