package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/wudi/pdfedit/ocr"
	"github.com/wudi/pdfedit/ocr/tesseract"
)

func (a *app) ocrCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ocr", flag.ContinueOnError)
	fs.SetOutput(a.err)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfedit ocr [flags] <image>...\n")
		fs.PrintDefaults()
	}
	langs := fs.String("lang", strings.Join(a.cfg.OCR.Languages, ","), "Comma-separated trained-data languages")
	dpi := fs.Int("dpi", a.cfg.OCR.DPI, "Resolution of the image")
	region := fs.String("region", "", "Recognize only x,y,width,height in pixels")
	psm := fs.String("psm", "block", "Layout of the image: auto, block, line, sparse or a mode number")
	charset := fs.String("charset", "", "Recognize only these characters")
	minConf := fs.Float64("min-conf", a.cfg.OCR.MinConfidence, "Drop words scored below this confidence")
	vars := map[string]string{}
	fs.Func("set", "Set an engine variable, name=value (repeatable)", func(v string) error {
		name, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("want name=value, got %q", v)
		}
		vars[strings.TrimSpace(name)] = value
		return nil
	})
	asJSON := fs.Bool("json", false, "Print the full results as JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: ocr needs at least one image", errUsage)
	}

	mode, err := ocr.ParseSegmentation(*psm)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	opts := []ocr.InputOption{
		ocr.WithDPI(*dpi),
		ocr.WithVariables(vars),
		ocr.WithSegmentation(mode),
		ocr.WithCharset(*charset),
	}
	if *region != "" {
		r, err := parseRegion(*region)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		opts = append(opts, ocr.WithRegion(r))
	}
	engine := tesseract.New(
		tesseract.WithLanguages(splitList(*langs)...),
		tesseract.WithMinConfidence(*minConf),
		tesseract.WithLogger(a.log))
	results, err := a.recognize(ctx, engine, fs.Args(), opts...)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, res := range results {
		if len(results) > 1 {
			fmt.Fprintf(a.out, "==> %s <==\n", res.InputID)
		}
		fmt.Fprintln(a.out, strings.TrimSpace(res.PlainText))
		fmt.Fprintf(a.err, "%s: %d words, confidence %.2f\n", res.InputID, len(res.Words()), res.Confidence())
	}
	return nil
}

// recognize decodes the images at paths and runs engine over all of them.
// Each input is identified by its path. An image without text fails the
// whole run with ocr.ErrNoText.
func (a *app) recognize(ctx context.Context, engine ocr.Engine, paths []string, opts ...ocr.InputOption) ([]ocr.Result, error) {
	inputs := make([]ocr.Input, 0, len(paths))
	for i, path := range paths {
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		in, err := ocr.InputFromImage(img, i+1, append(opts[:len(opts):len(opts)], ocr.WithID(path))...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		inputs = append(inputs, in)
	}
	results, err := ocr.RecognizeAll(ctx, engine, inputs)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if strings.TrimSpace(res.PlainText) == "" {
			return results, fmt.Errorf("%s: %w", res.InputID, ocr.ErrNoText)
		}
	}
	return results, nil
}

func decodeImage(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func parseRegion(s string) (ocr.Region, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return ocr.Region{}, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return ocr.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = f
	}
	r := ocr.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.IsEmpty() {
		return ocr.Region{}, fmt.Errorf("region %q is empty", s)
	}
	return r, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
