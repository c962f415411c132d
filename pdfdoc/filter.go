package pdfdoc

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedFilter is returned when a stream that must be decoded uses a
// filter other than FlateDecode.
var ErrUnsupportedFilter = errors.New("pdfdoc: unsupported stream filter")

// maxDecoded caps the size of a single decoded stream.
const maxDecoded = 256 << 20

func filterList(d *Dict) ([]string, []*Dict) {
	var names []string
	var params []*Dict
	switch f := d.Get("Filter").(type) {
	case Name:
		names = []string{string(f)}
	case Array:
		for _, it := range f {
			if n, ok := it.(Name); ok {
				names = append(names, string(n))
			}
		}
	}
	switch p := d.Get("DecodeParms").(type) {
	case *Dict:
		params = []*Dict{p}
	case Array:
		for _, it := range p {
			pd, _ := it.(*Dict)
			params = append(params, pd)
		}
	}
	return names, params
}

// decodeStream returns the decoded payload of s.
func decodeStream(s *Stream) ([]byte, error) {
	names, params := filterList(s.Dict)
	data := s.Data
	for i, name := range names {
		var p *Dict
		if i < len(params) {
			p = params[i]
		}
		switch name {
		case "FlateDecode", "Fl":
			out, err := inflate(data)
			if err != nil {
				return nil, fmt.Errorf("flate: %w", err)
			}
			if out, err = unpredict(out, p); err != nil {
				return nil, err
			}
			data = out
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
	}
	return data, nil
}

func inflate(in []byte) ([]byte, error) {
	var r io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		// Some writers omit the zlib header.
		r = flate.NewReader(bytes.NewReader(in))
	} else {
		r = zr
	}
	defer r.Close()
	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(r, maxDecoded+1))
	if n > maxDecoded {
		return nil, errors.New("decoded stream too large")
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return out.Bytes(), nil
}

func deflate(in []byte, level int) ([]byte, error) {
	var b bytes.Buffer
	w, err := zlib.NewWriterLevel(&b, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// unpredict reverses PNG row predictors (Predictor >= 10).
func unpredict(data []byte, p *Dict) ([]byte, error) {
	if p == nil {
		return data, nil
	}
	pred, _ := intOf(p.Get("Predictor"))
	if pred < 10 {
		if pred == 2 {
			return nil, fmt.Errorf("%w: TIFF predictor", ErrUnsupportedFilter)
		}
		return data, nil
	}
	colors, bpc, columns := 1, 8, 1
	if v, ok := intOf(p.Get("Colors")); ok && v > 0 {
		colors = v
	}
	if v, ok := intOf(p.Get("BitsPerComponent")); ok && v > 0 {
		bpc = v
	}
	if v, ok := intOf(p.Get("Columns")); ok && v > 0 {
		columns = v
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8
	if len(data)%(rowLen+1) != 0 {
		return nil, fmt.Errorf("predictor: data length %d is not a multiple of row size %d", len(data), rowLen+1)
	}
	out := make([]byte, 0, len(data)/(rowLen+1)*rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off < len(data); off += rowLen + 1 {
		ft := data[off]
		row := append([]byte(nil), data[off+1:off+1+rowLen]...)
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch ft {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("predictor: unknown PNG filter type %d", ft)
			}
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
