package ocr

import (
	"context"
	"errors"
)

// ErrNoText is returned by callers that require recognized text when the
// engine found none.
var ErrNoText = errors.New("ocr: no text recognized")

// ImageFormat is the MIME type of an input image.
type ImageFormat string

const ImageFormatPNG ImageFormat = "image/png"

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a rasterized selection submitted for recognition.
type Input struct {
	// ID is echoed back in the Result.
	ID string
	// Image is the encoded image payload in the format given by Format.
	Image  []byte
	Format ImageFormat
	// Page is the 1-based page the image was rendered from.
	Page int
	// DPI is the effective resolution of Image; zero means unknown.
	DPI int
	// Languages are trained-data hints such as "eng" or "deu".
	Languages []string
	// Region restricts recognition to part of the image. Nil means the
	// whole image.
	Region *Region
	// Variables are engine settings, such as Tesseract's
	// tessedit_pageseg_mode, applied for this input only.
	Variables map[string]string
}

// TextWord is a single recognized token. Confidence is in [0, 1].
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words that share a baseline. Text joins the words with
// single spaces.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock is one recognized selection. Text joins its lines with newlines.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the OCR output for one Input.
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Words returns every recognized word in reading order.
func (r Result) Words() []TextWord {
	var out []TextWord
	for _, b := range r.Blocks {
		for _, l := range b.Lines {
			out = append(out, l.Words...)
		}
	}
	return out
}

// Confidence is the mean word confidence, or zero without words.
func (r Result) Confidence() float64 {
	words := r.Words()
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// Engine recognizes text in one image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine recognizes several inputs in one call.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
