package editor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/ocr"
)

func region(box coords.Rect) ocr.Region {
	return ocr.Region{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
}

// checkRegion requires a rasterizer and a selection of at least minSide
// normalized units on both sides.
func (s *Session) checkRegion(scale float64, box coords.Rect, minSide float64) error {
	if s.raster == nil {
		s.notifier.Notify("Page rendering is not available", notify.Error)
		return fmt.Errorf("%w: rasterizer", ErrUnavailable)
	}
	n := box.ToNormalized(scale)
	if n.Width < minSide || n.Height < minSide {
		s.notifier.Notify("selection too small", notify.Warning)
		return invalid("selection too small")
	}
	return nil
}

// OCRSelect recognizes the text inside the display-space box on the current
// page and places it as a text overlay over the box.
func (s *Session) OCRSelect(ctx context.Context, box coords.Rect) (annotation.Ref, error) {
	s.mu.Lock()
	if err := s.requireDocument(); err != nil {
		s.unlock()
		return annotation.Ref{}, s.fail(err)
	}
	page, scale, gen := s.sel.Page(), s.sel.Scale(), s.gen
	s.unlock()
	return s.recognize(ctx, page, scale, gen, box.Canon())
}

func (s *Session) recognize(ctx context.Context, page int, scale float64, gen int, box coords.Rect) (annotation.Ref, error) {
	if s.ocr == nil {
		s.notifier.Notify("Text recognition is not available", notify.Error)
		return annotation.Ref{}, fmt.Errorf("%w: ocr engine", ErrUnavailable)
	}
	if err := s.checkRegion(scale, box, minRegion); err != nil {
		return annotation.Ref{}, err
	}
	img, err := s.raster.Render(ctx, page, scale)
	if err != nil {
		s.notifier.Notify("Cannot render page", notify.Error)
		return annotation.Ref{}, fmt.Errorf("render page %d: %w", page, err)
	}
	opts := append([]ocr.InputOption{ocr.WithRegion(region(box)), ocr.WithSegmentation(ocr.PSMSingleBlock)}, s.ocrOpts...)
	in, err := ocr.InputFromImage(img, page, opts...)
	if err != nil {
		s.notifier.Notify("Cannot read the selected area", notify.Warning)
		return annotation.Ref{}, err
	}
	res, err := s.ocr.Recognize(ctx, in)
	if err != nil {
		s.log.Warn("ocr failed", observability.String("engine", s.ocr.Name()), observability.Error("error", err))
		s.notifier.Notify("Text recognition failed", notify.Error)
		return annotation.Ref{}, fmt.Errorf("recognize: %w", err)
	}
	text := strings.TrimSpace(res.PlainText)
	if text == "" {
		s.notifier.Notify("No text recognized", notify.Warning)
		return annotation.Ref{}, ocr.ErrNoText
	}
	s.log.Debug("ocr recognized", observability.Int("page", page),
		observability.Int("words", len(res.Words())), observability.Float("confidence", res.Confidence()))

	s.mu.Lock()
	defer s.unlock()
	if s.gen != gen {
		return annotation.Ref{}, s.fail(ErrNoDocument)
	}
	n := box.ToNormalized(scale)
	ref, err := s.add(&annotation.TextOverlay{
		Page:   page,
		X:      n.X,
		Y:      n.Y,
		Width:  math.Max(n.Width, annotation.OverlayMinWidth),
		Height: math.Max(n.Height, annotation.OverlayMinHeight),
		Text:   text,
		Font:   s.style.Font,
		Color:  s.style.Color,
	})
	if err != nil {
		return ref, err
	}
	s.sel.Complete()
	return ref, nil
}

// capturePatch copies the display-space box of the rendered page into a
// patch placed over the same area.
func (s *Session) capturePatch(ctx context.Context, page int, scale float64, gen int, box coords.Rect) (annotation.Ref, error) {
	if err := s.checkRegion(scale, box, annotation.PatchMinSize); err != nil {
		return annotation.Ref{}, err
	}
	img, err := s.raster.Render(ctx, page, scale)
	if err != nil {
		s.notifier.Notify("Cannot render page", notify.Error)
		return annotation.Ref{}, fmt.Errorf("render page %d: %w", page, err)
	}
	sub, err := ocr.Crop(img, region(box))
	if err != nil {
		return annotation.Ref{}, s.fail(invalid("selection outside the page"))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub); err != nil {
		return annotation.Ref{}, fmt.Errorf("encode patch: %w", err)
	}

	s.mu.Lock()
	defer s.unlock()
	if s.gen != gen {
		return annotation.Ref{}, s.fail(ErrNoDocument)
	}
	n := box.ToNormalized(scale)
	return s.add(&annotation.Patch{
		Page: page, X: n.X, Y: n.Y, Width: n.Width, Height: n.Height,
		Image: buf.Bytes(), Opacity: 1,
	})
}
