// Package config loads pdfedit settings from TOML, YAML or JSON files with
// PDFEDIT_* environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/wudi/pdfedit/selection"
)

// Duration is a time.Duration written as a string such as "300ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete pdfedit configuration.
type Config struct {
	Export  ExportConfig  `toml:"export" yaml:"export" json:"export"`
	Fonts   FontsConfig   `toml:"fonts" yaml:"fonts" json:"fonts"`
	Storage StorageConfig `toml:"storage" yaml:"storage" json:"storage"`
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`
	Editor  EditorConfig  `toml:"editor" yaml:"editor" json:"editor"`
	OCR     OCRConfig     `toml:"ocr" yaml:"ocr" json:"ocr"`
}

// ExportConfig controls the flatten pipeline.
type ExportConfig struct {
	Licensed         bool            `toml:"licensed" yaml:"licensed" json:"licensed"`
	Producer         string          `toml:"producer" yaml:"producer" json:"producer"`
	CompressionLevel int             `toml:"compression_level" yaml:"compression_level" json:"compression_level"`
	MaxImageSize     int             `toml:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	Watermark        WatermarkConfig `toml:"watermark" yaml:"watermark" json:"watermark"`
}

// WatermarkConfig describes the watermark of unlicensed exports. Empty
// fields keep the built-in watermark.
type WatermarkConfig struct {
	Text    string  `toml:"text" yaml:"text" json:"text"`
	Brand   string  `toml:"brand" yaml:"brand" json:"brand"`
	Mark    string  `toml:"mark" yaml:"mark" json:"mark"`
	Color   string  `toml:"color" yaml:"color" json:"color"`
	Opacity float64 `toml:"opacity" yaml:"opacity" json:"opacity"`
	Spacing float64 `toml:"spacing" yaml:"spacing" json:"spacing"`
	Size    float64 `toml:"size" yaml:"size" json:"size"`
}

// FontsConfig names font sources (paths, URLs or data URIs). Unicode serves
// any family without its own entry.
type FontsConfig struct {
	Unicode  string            `toml:"unicode" yaml:"unicode" json:"unicode"`
	Families map[string]string `toml:"families" yaml:"families" json:"families"`
}

// StorageConfig selects where the working document is kept.
type StorageConfig struct {
	Driver       string `toml:"driver" yaml:"driver" json:"driver"`
	Path         string `toml:"path" yaml:"path" json:"path"`
	MaxRevisions int    `toml:"max_revisions" yaml:"max_revisions" json:"max_revisions"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// EditorConfig holds editing defaults.
type EditorConfig struct {
	DefaultTool  string   `toml:"default_tool" yaml:"default_tool" json:"default_tool"`
	OneShotDelay Duration `toml:"one_shot_delay" yaml:"one_shot_delay" json:"one_shot_delay"`
	HistoryLimit int      `toml:"history_limit" yaml:"history_limit" json:"history_limit"`
	Color        string   `toml:"color" yaml:"color" json:"color"`
	FontFamily   string   `toml:"font_family" yaml:"font_family" json:"font_family"`
	FontSize     float64  `toml:"font_size" yaml:"font_size" json:"font_size"`
	StrokeWidth  float64  `toml:"stroke_width" yaml:"stroke_width" json:"stroke_width"`
}

type OCRConfig struct {
	Languages []string `toml:"languages" yaml:"languages" json:"languages"`
	DPI       int      `toml:"dpi" yaml:"dpi" json:"dpi"`
	// MinConfidence drops recognized words scored below it, in [0, 1].
	MinConfidence float64 `toml:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
}

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Producer:         "pdfedit",
			CompressionLevel: -1,
			MaxImageSize:     2048,
		},
		Fonts:   FontsConfig{Families: map[string]string{}},
		Storage: StorageConfig{Driver: DriverMemory, MaxRevisions: 20},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Editor: EditorConfig{
			DefaultTool:  string(selection.DefaultTool),
			OneShotDelay: Duration(selection.DefaultOneShotDelay),
			HistoryLimit: 0,
			Color:        "#000000",
			FontFamily:   "Helvetica",
			FontSize:     12,
			StrokeWidth:  2,
		},
		OCR: OCRConfig{Languages: []string{"eng"}, DPI: 300},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Fonts.Families = make(map[string]string, len(c.Fonts.Families))
	for k, v := range c.Fonts.Families {
		out.Fonts.Families[k] = v
	}
	out.OCR.Languages = append([]string(nil), c.OCR.Languages...)
	return &out
}
