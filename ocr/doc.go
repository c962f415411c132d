// Package ocr defines the contract between the editor and an OCR engine.
//
// The editor rasterizes the selected page region, wraps it in an Input and
// asks an Engine for text. Engines report per-word confidence so callers can
// decide whether to trust the result. The tesseract subpackage provides the
// default engine.
package ocr
