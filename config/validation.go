package config

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/selection"
)

// ValidationError reports one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field found by Validate.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Field + ": " + e.Message
	}
	return fmt.Sprintf("config: %d errors: %s", len(errs), strings.Join(msgs, "; "))
}

// Validate checks every section and returns ValidationErrors when any field
// is invalid.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Export.CompressionLevel < -1 || c.Export.CompressionLevel > 9 {
		add("export.compression_level", "must be between -1 and 9, got %d", c.Export.CompressionLevel)
	}
	if c.Export.MaxImageSize < 0 {
		add("export.max_image_size", "must not be negative")
	}
	wm := c.Export.Watermark
	if wm.Color != "" {
		if _, err := annotation.ParseColor(wm.Color); err != nil {
			add("export.watermark.color", "invalid color %q", wm.Color)
		}
	}
	if wm.Opacity < 0 || wm.Opacity > 1 {
		add("export.watermark.opacity", "must be within [0, 1]")
	}
	if wm.Spacing < 0 || wm.Size < 0 {
		add("export.watermark", "spacing and size must not be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			add("storage.path", "required for the sqlite driver")
		}
	default:
		add("storage.driver", "unknown driver %q", c.Storage.Driver)
	}
	if c.Storage.MaxRevisions < 0 {
		add("storage.max_revisions", "must not be negative")
	}

	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format", "must be text or json, got %q", c.Logging.Format)
	}

	if _, err := selection.ParseTool(c.Editor.DefaultTool); err != nil {
		add("editor.default_tool", "unknown tool %q", c.Editor.DefaultTool)
	}
	if c.Editor.OneShotDelay < 0 {
		add("editor.one_shot_delay", "must not be negative")
	}
	if c.Editor.HistoryLimit < 0 {
		add("editor.history_limit", "must not be negative")
	}
	if _, err := annotation.ParseColor(c.Editor.Color); err != nil {
		add("editor.color", "invalid color %q", c.Editor.Color)
	}
	if c.Editor.FontSize <= 0 {
		add("editor.font_size", "must be positive")
	}
	if c.Editor.StrokeWidth <= 0 {
		add("editor.stroke_width", "must be positive")
	}

	if c.OCR.DPI < 0 {
		add("ocr.dpi", "must not be negative")
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		add("ocr.min_confidence", "must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
