package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
)

// ErrRegion is returned when a crop region misses the image.
var ErrRegion = errors.New("ocr: region outside image bounds")

// InputOption mutates an OCR input built from a rendered page.
type InputOption func(*Input)

// WithID sets the identifier echoed back in the result.
func WithID(id string) InputOption {
	return func(in *Input) { in.ID = id }
}

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion restricts recognition to region. Empty regions select the whole
// image.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithVariables sets engine-specific variables for the input.
func WithVariables(vars map[string]string) InputOption {
	return func(in *Input) {
		if len(vars) == 0 {
			in.Variables = nil
			return
		}
		in.Variables = make(map[string]string, len(vars))
		for k, v := range vars {
			in.Variables[k] = v
		}
	}
}

// InputFromImage encodes a rendered page as PNG. When a region is set the
// image is cropped first, so the engine only sees the selection and Region
// is cleared. The default ID is "page-<n>".
func InputFromImage(img image.Image, page int, opts ...InputOption) (Input, error) {
	in := Input{
		ID:     fmt.Sprintf("page-%d", page),
		Format: ImageFormatPNG,
		Page:   page,
	}
	for _, opt := range opts {
		opt(&in)
	}
	if in.Region != nil {
		cropped, err := Crop(img, *in.Region)
		if err != nil {
			return Input{}, err
		}
		img = cropped
		in.Region = nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Input{}, fmt.Errorf("encode page image: %w", err)
	}
	in.Image = buf.Bytes()
	return in, nil
}

// Crop returns the part of img inside region, rounded to whole pixels and
// clipped to the image.
func Crop(img image.Image, region Region) (image.Image, error) {
	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+int(math.Round(region.X)),
		b.Min.Y+int(math.Round(region.Y)),
		b.Min.X+int(math.Round(region.X+region.Width)),
		b.Min.Y+int(math.Round(region.Y+region.Height)),
	).Intersect(b)
	if rect.Empty() {
		return nil, ErrRegion
	}
	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect), nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x-rect.Min.X, y-rect.Min.Y, img.At(x, y))
		}
	}
	return dst, nil
}
