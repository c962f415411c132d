package ocr

import (
	"fmt"
	"strconv"
)

// Segmentation is a Tesseract page segmentation mode.
type Segmentation int

const (
	PSMAuto        Segmentation = 3
	PSMSingleBlock Segmentation = 6
	PSMSingleLine  Segmentation = 7
	PSMSparse      Segmentation = 11
)

// ParseSegmentation accepts a mode number or one of auto, block, line and
// sparse.
func ParseSegmentation(s string) (Segmentation, error) {
	switch s {
	case "auto":
		return PSMAuto, nil
	case "block":
		return PSMSingleBlock, nil
	case "line":
		return PSMSingleLine, nil
	case "sparse":
		return PSMSparse, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 13 {
		return 0, fmt.Errorf("unknown segmentation mode %q", s)
	}
	return Segmentation(n), nil
}

// WithSegmentation tells the engine how the selection is laid out. A
// selection drawn around a paragraph reads best as a single block.
func WithSegmentation(mode Segmentation) InputOption {
	return variable("tessedit_pageseg_mode", strconv.Itoa(int(mode)))
}

// WithCharset restricts recognition to chars. Empty leaves it unrestricted.
func WithCharset(chars string) InputOption {
	if chars == "" {
		return func(*Input) {}
	}
	return variable("tessedit_char_whitelist", chars)
}

func variable(key, value string) InputOption {
	return func(in *Input) {
		if in.Variables == nil {
			in.Variables = make(map[string]string)
		}
		in.Variables[key] = value
	}
}
