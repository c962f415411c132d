package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PDFEDIT_"

// Load reads path, applies environment overrides and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := Decode(data, filepath.Ext(path), cfg); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data into cfg according to the file extension. Unknown
// extensions try TOML, then YAML.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err == nil {
			return nil
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.New("parse config: not TOML or YAML")
		}
	}
	return nil
}

// ApplyEnv overrides settings from PDFEDIT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("PRODUCER", &c.Export.Producer)
	str("WATERMARK_TEXT", &c.Export.Watermark.Text)
	str("UNICODE_FONT", &c.Fonts.Unicode)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_PATH", &c.Storage.Path)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("DEFAULT_TOOL", &c.Editor.DefaultTool)

	if v, ok := lookup(EnvPrefix + "LICENSED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLICENSED: %w", EnvPrefix, err)
		}
		c.Export.Licensed = b
	}
	if v, ok := lookup(EnvPrefix + "OCR_LANGUAGES"); ok {
		c.OCR.Languages = nil
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				c.OCR.Languages = append(c.OCR.Languages, l)
			}
		}
	}
	if v, ok := lookup(EnvPrefix + "ONE_SHOT_DELAY"); ok {
		if err := c.Editor.OneShotDelay.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%sONE_SHOT_DELAY: %w", EnvPrefix, err)
		}
	}
	return nil
}

// Save writes c to path in the format implied by its extension.
func Save(c *Config, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
