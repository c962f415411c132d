package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrImageFormat is returned for image data that cannot be decoded.
var ErrImageFormat = errors.New("pdfdoc: unsupported image data")

// Image is an image XObject stored in the document.
type Image struct {
	ref           Ref
	Width, Height int
}

// Size returns the pixel dimensions of the embedded image.
func (i *Image) Size() (w, h int) { return i.Width, i.Height }

// LoadImage embeds PNG, JPEG, GIF or WebP data as an image XObject. Baseline
// JPEGs are passed through; other formats are re-encoded as Flate RGB with a
// soft mask when the image has transparency. Identical data is embedded once.
func (d *Document) LoadImage(data []byte) (*Image, error) {
	key := blake2b.Sum256(data)
	if img, ok := d.images[key]; ok {
		return img, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageFormat, err)
	}
	var xobj *Stream
	var w, h int
	if format == "jpeg" && !d.needsScaling(cfg.Width, cfg.Height) {
		xobj, err = jpegXObject(data, cfg)
		w, h = cfg.Width, cfg.Height
	} else {
		var src image.Image
		src, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageFormat, err)
		}
		xobj, w, h, err = d.rasterXObject(src)
	}
	if err != nil {
		return nil, err
	}
	img := &Image{ref: d.add(xobj), Width: w, Height: h}
	d.images[key] = img
	return img, nil
}

func (d *Document) needsScaling(w, h int) bool {
	return d.maxImage > 0 && max(w, h) > d.maxImage
}

func jpegXObject(data []byte, cfg image.Config) (*Stream, error) {
	dict := imageDict(cfg.Width, cfg.Height).Set("Filter", Name("DCTDecode"))
	switch cfg.ColorModel {
	case color.GrayModel:
		dict.Set("ColorSpace", Name("DeviceGray"))
	case color.CMYKModel:
		dict.Set("ColorSpace", Name("DeviceCMYK")).
			Set("Decode", Array{Int(1), Int(0), Int(1), Int(0), Int(1), Int(0), Int(1), Int(0)})
	default:
		dict.Set("ColorSpace", Name("DeviceRGB"))
	}
	return &Stream{Dict: dict, Data: data}, nil
}

func imageDict(w, h int) *Dict {
	return NewDict().
		Set("Type", Name("XObject")).
		Set("Subtype", Name("Image")).
		Set("Width", Int(int64(w))).
		Set("Height", Int(int64(h))).
		Set("BitsPerComponent", Int(8))
}

func (d *Document) rasterXObject(src image.Image) (*Stream, int, int, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, 0, 0, fmt.Errorf("%w: empty image", ErrImageFormat)
	}
	var rgba *image.NRGBA
	if d.needsScaling(w, h) {
		f := float64(d.maxImage) / float64(max(w, h))
		w, h = max(1, int(float64(w)*f)), max(1, int(float64(h)*f))
		rgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, b, draw.Src, nil)
	} else {
		rgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for i := 0; i < len(rgba.Pix); i += 4 {
		rgb = append(rgb, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
		alpha = append(alpha, rgba.Pix[i+3])
		if rgba.Pix[i+3] != 0xFF {
			opaque = false
		}
	}
	xobj, err := d.compress(rgb)
	if err != nil {
		return nil, 0, 0, err
	}
	for k, v := range imageDict(w, h).KV {
		xobj.Dict.KV[k] = v
	}
	xobj.Dict.Set("ColorSpace", Name("DeviceRGB"))
	if !opaque {
		mask, err := d.compress(alpha)
		if err != nil {
			return nil, 0, 0, err
		}
		for k, v := range imageDict(w, h).KV {
			mask.Dict.KV[k] = v
		}
		mask.Dict.Set("ColorSpace", Name("DeviceGray"))
		xobj.Dict.Set("SMask", d.add(mask))
	}
	return xobj, w, h, nil
}
