package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/wudi/pdfedit/ocr"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestRecognizeSelection(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 400, 160))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(210, 100)}
	d.DrawString("Hello PDF")

	in, err := ocr.InputFromImage(img, 2,
		ocr.WithRegion(ocr.Region{X: 200, Y: 70, Width: 150, Height: 50}),
		ocr.WithDPI(300))
	if err != nil {
		t.Fatalf("InputFromImage: %v", err)
	}
	res, err := New(WithLanguages("eng")).Recognize(context.Background(), in)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	got := strings.ToLower(res.PlainText)
	if !strings.Contains(got, "hello") || !strings.Contains(got, "pdf") {
		t.Fatalf("unexpected OCR output: %q", res.PlainText)
	}
	if res.InputID != "page-2" || res.Language != "eng" {
		t.Fatalf("result header = %q %q", res.InputID, res.Language)
	}
	if len(res.Words()) == 0 || res.Confidence() <= 0 {
		t.Fatalf("expected scored words, got %+v", res.Blocks)
	}
}

func box(x0, y0, x1, y1 int, word string, conf float64) gosseract.BoundingBox {
	return gosseract.BoundingBox{Box: image.Rect(x0, y0, x1, y1), Word: word, Confidence: conf}
}

func TestLayoutGroupsLines(t *testing.T) {
	lines := []gosseract.BoundingBox{
		box(0, 40, 200, 60, "", 90),
		box(0, 0, 200, 20, "", 90),
	}
	words := []gosseract.BoundingBox{
		box(80, 2, 140, 18, "World", 80),
		box(0, 2, 60, 18, "Hello", 100),
		box(0, 42, 50, 58, "Total", 90),
		box(60, 42, 70, 58, "~", 10),
		box(0, 100, 30, 110, "42", 70),
	}
	got := layout(lines, words, 0.5)
	if len(got) != 3 {
		t.Fatalf("lines = %+v", got)
	}
	texts := []string{got[0].Text, got[1].Text, got[2].Text}
	if strings.Join(texts, "|") != "Hello World|Total|42" {
		t.Fatalf("line texts = %q", texts)
	}
	if got[0].Bounds != (ocr.Region{X: 0, Y: 2, Width: 140, Height: 16}) {
		t.Fatalf("first line bounds = %+v", got[0].Bounds)
	}
	if c := got[0].Confidence; c < 0.899 || c > 0.901 {
		t.Fatalf("first line confidence = %v", got[0].Confidence)
	}

	text, bounds, _ := summarize(got)
	if text != "Hello World\nTotal\n42" {
		t.Fatalf("summary text = %q", text)
	}
	if bounds != (ocr.Region{X: 0, Y: 2, Width: 140, Height: 108}) {
		t.Fatalf("summary bounds = %+v", bounds)
	}
}

func TestLayoutEmpty(t *testing.T) {
	if got := layout(nil, []gosseract.BoundingBox{box(0, 0, 5, 5, " ", 99)}, 0); len(got) != 0 {
		t.Fatalf("blank words produced lines: %+v", got)
	}
	if text, b, c := summarize(nil); text != "" || b != (ocr.Region{}) || c != 0 {
		t.Fatalf("empty summary = %q %+v %v", text, b, c)
	}
}

func TestCanceledBeforeClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New()
	e.newClient = nil
	if _, err := e.Recognize(ctx, ocr.Input{}); err != context.Canceled {
		t.Fatalf("Recognize error = %v", err)
	}
}
