package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/config"
	"github.com/wudi/pdfedit/ocr"
	"github.com/wudi/pdfedit/pdfdoc"
)

// samplePDF builds a one-page Letter document with a classic xref table.
func samplePDF() []byte {
	content := "BT /F1 12 Tf 30 80 Td (Hello) Tj ET"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	start := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, start)
	return b.Bytes()
}

const session = `
version: 1
document: doc.pdf
licensed: true
edits:
  - type: textOverlay
    page: 1
    x: 72
    y: 72
    text: Approved
    font: {family: Helvetica, size: 14}
  - type: fillArea
    page: 1
    x: 20
    y: 700
    width: 80
    height: 20
`

type harness struct {
	a        *app
	dir      string
	out, err bytes.Buffer
}

func newHarness(t *testing.T, edit func(*config.Config)) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir()}
	cfg := config.Default()
	cfg.Logging.Level = "error"
	if edit != nil {
		edit(cfg)
	}
	a, err := newApp(cfg, strings.NewReader(""), &h.out, &h.err)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	h.a = a
	h.write(t, "doc.pdf", samplePDF())
	h.write(t, "session.yaml", []byte(session))
	return h
}

func (h *harness) write(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

func TestFlattenCommand(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.a.run(context.Background(), "flatten", []string{h.path("session.yaml")}); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	out, err := os.ReadFile(h.path("doc-edited.pdf"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(out, samplePDF()) {
		t.Fatalf("output does not extend the original document")
	}
	if _, err := pdfdoc.Open(out); err != nil {
		t.Fatalf("reopen output: %v", err)
	}
	if !strings.Contains(h.out.String(), "2 edits") {
		t.Fatalf("stdout = %q", h.out.String())
	}
}

func TestFlattenOutputFlag(t *testing.T) {
	h := newHarness(t, nil)
	target := h.path("custom.pdf")
	if err := h.a.run(context.Background(), "flatten", []string{"-o", target, h.path("session.yaml")}); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestFlattenRejectsBadSession(t *testing.T) {
	h := newHarness(t, nil)
	bad := h.write(t, "bad.yaml", []byte("version: 1\ndocument: doc.pdf\nedits:\n  - type: balloon\n    page: 1\n"))
	if err := h.a.run(context.Background(), "flatten", []string{bad}); err == nil {
		t.Fatalf("flatten accepted an unknown edit type")
	}
	if _, err := os.Stat(h.path("doc-edited.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed flatten wrote output")
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t, nil)
	tests := []struct {
		cmd  string
		args []string
	}{
		{"explode", nil},
		{"flatten", nil},
		{"watch", []string{"a", "b"}},
		{"store", nil},
		{"store", []string{"put"}},
		{"ocr", nil},
		{"ocr", []string{"-region", "1,2,3", "x.png"}},
	}
	for _, tt := range tests {
		err := h.a.run(context.Background(), tt.cmd, tt.args)
		if !errors.Is(err, errUsage) {
			t.Fatalf("%s %v: error = %v, want usage error", tt.cmd, tt.args, err)
		}
	}
}

func TestStoreCommands(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Storage.Driver = config.DriverSQLite
	})
	h.a.cfg.Storage.Path = h.path("pdfedit.db")
	ctx := context.Background()

	if err := h.a.run(ctx, "store", []string{"put", h.path("doc.pdf")}); err != nil {
		t.Fatalf("store put: %v", err)
	}
	if err := h.a.run(ctx, "store", []string{"apply", h.path("session.yaml")}); err != nil {
		t.Fatalf("store apply: %v", err)
	}
	h.out.Reset()
	if err := h.a.run(ctx, "store", []string{"log"}); err != nil {
		t.Fatalf("store log: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(h.out.String()), "\n"); len(lines) != 3 {
		t.Fatalf("log = %q, want header and two revisions", h.out.String())
	}
	target := h.path("latest.pdf")
	if err := h.a.run(ctx, "store", []string{"get", "-o", target}); err != nil {
		t.Fatalf("store get: %v", err)
	}
	latest, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(latest, samplePDF()) || len(latest) == len(samplePDF()) {
		t.Fatalf("newest revision is not the flattened document")
	}
}

func TestStorePutRejectsInvalidDocument(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Storage.Driver = config.DriverSQLite
	})
	h.a.cfg.Storage.Path = h.path("pdfedit.db")
	junk := h.write(t, "junk.pdf", []byte("not a pdf"))
	if err := h.a.run(context.Background(), "store", []string{"put", junk}); err == nil {
		t.Fatalf("store put accepted an invalid document")
	}
}

func TestWatchReflattens(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 4)
	stopped := make(chan error, 1)
	go func() {
		stopped <- h.a.watch(ctx, h.path("session.yaml"), flattenOptions{}, 50*time.Millisecond, done)
	}()

	wait := func() {
		t.Helper()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("flatten: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("no flatten")
		}
	}
	wait()
	first, _ := os.ReadFile(h.path("doc-edited.pdf"))

	changed := strings.Replace(session, "Approved", "Approved twice", 1)
	h.write(t, "session.yaml", []byte(changed))
	wait()
	second, _ := os.ReadFile(h.path("doc-edited.pdf"))
	if bytes.Equal(first, second) {
		t.Fatalf("output unchanged after editing the session")
	}

	cancel()
	if err := <-stopped; err != nil {
		t.Fatalf("watch: %v", err)
	}
}

// fixedEngine answers every input with text and remembers what it saw.
type fixedEngine struct {
	text string
	seen []ocr.Input
}

func (e *fixedEngine) Name() string { return "fixed" }

func (e *fixedEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	e.seen = append(e.seen, in)
	res := ocr.Result{InputID: in.ID, PlainText: e.text}
	if e.text != "" {
		res.Blocks = []ocr.TextBlock{{Lines: []ocr.TextLine{{Words: []ocr.TextWord{{Text: e.text, Confidence: 0.9}}}}}}
	}
	return res, nil
}

func scanPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(5, 5, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRecognizeImage(t *testing.T) {
	h := newHarness(t, nil)
	first := h.write(t, "scan.png", scanPNG(t))
	second := h.write(t, "scan2.png", scanPNG(t))

	e := &fixedEngine{text: "Total"}
	res, err := h.a.recognize(context.Background(), e, []string{first, second},
		ocr.WithRegion(ocr.Region{X: 0, Y: 0, Width: 20, Height: 10}),
		ocr.WithVariables(map[string]string{"preserve_interword_spaces": "1"}))
	if err != nil || len(res) != 2 || res[0].PlainText != "Total" {
		t.Fatalf("recognize = %+v, %v", res, err)
	}
	if res[0].InputID != first || res[1].InputID != second {
		t.Fatalf("input ids = %q, %q", res[0].InputID, res[1].InputID)
	}
	for i, in := range e.seen {
		if in.Page != i+1 || in.Variables["preserve_interword_spaces"] != "1" {
			t.Fatalf("input %d = page %d, variables %v", i, in.Page, in.Variables)
		}
	}

	if _, err := h.a.recognize(context.Background(), &fixedEngine{}, []string{first}); !errors.Is(err, ocr.ErrNoText) {
		t.Fatalf("empty result error = %v", err)
	}
	if _, err := h.a.recognize(context.Background(), &fixedEngine{text: "x"}, []string{first, h.path("doc.pdf")}); err == nil {
		t.Fatalf("decoded a pdf as an image")
	}
}

func TestOCRSetFlag(t *testing.T) {
	h := newHarness(t, nil)
	path := h.write(t, "scan.png", scanPNG(t))
	err := h.a.ocrCmd(context.Background(), []string{"-set", "novalue", path})
	if !errors.Is(err, errUsage) {
		t.Fatalf("malformed -set error = %v", err)
	}
	if err := h.a.ocrCmd(context.Background(), []string{"-set", "a=b"}); !errors.Is(err, errUsage) {
		t.Fatalf("missing image error = %v", err)
	}
}

func TestFontDirs(t *testing.T) {
	fc := config.FontsConfig{
		Unicode: "/opt/fonts/noto.ttf",
		Families: map[string]string{
			"Brand": "file:///srv/brand/brand.ttf",
			"Mono":  "mono.ttf",
			"Sans":  "/opt/fonts/sans.ttf",
			"Web":   "https://example.invalid/web.ttf",
		},
	}
	got := fontDirs(fc)
	want := []string{filepath.FromSlash("/opt/fonts"), filepath.FromSlash("/srv/brand")}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("fontDirs = %v, want %v", got, want)
	}
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    ocr.Region
		wantErr bool
	}{
		{in: "10,20,30,40", want: ocr.Region{X: 10, Y: 20, Width: 30, Height: 40}},
		{in: " 1.5, 2 ,3,4 ", want: ocr.Region{X: 1.5, Y: 2, Width: 3, Height: 4}},
		{in: "1,2,3", wantErr: true},
		{in: "1,2,0,4", wantErr: true},
		{in: "a,b,c,d", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRegion(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseRegion(%q) succeeded", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseRegion(%q) = %+v, %v; want %+v", tt.in, got, err, tt.want)
		}
	}
}

func TestConfigMapping(t *testing.T) {
	wm, err := watermark(config.WatermarkConfig{Text: "draft", Color: "#FF0000", Opacity: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	if wm.Text != "draft" || wm.Color != (pdfdoc.RGB{R: 1}) || wm.Opacity != 0.3 {
		t.Fatalf("watermark = %+v", wm)
	}
	if _, err := watermark(config.WatermarkConfig{Color: "red"}); err == nil {
		t.Fatalf("bad watermark color accepted")
	}

	ec := config.Default().Editor
	ec.Color = "#00F"
	ec.FontSize = 18
	st, err := style(ec)
	if err != nil {
		t.Fatal(err)
	}
	if st.Color != (annotation.Color{B: 255}) || st.Font.Size != 18 || st.Font.Family != "Helvetica" {
		t.Fatalf("style = %+v", st)
	}
}
