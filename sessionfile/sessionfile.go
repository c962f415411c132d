// Package sessionfile reads and writes edit sessions: the list of edits to
// apply to one PDF, stored as JSON or YAML and validated against an embedded
// JSON schema before use.
package sessionfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Version is the only session format version understood.
const Version = 1

var (
	// ErrSchema wraps schema violations.
	ErrSchema = errors.New("sessionfile: schema violation")
	// ErrFormat is returned for input that is neither JSON nor YAML.
	ErrFormat = errors.New("sessionfile: unreadable session")
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/wudi/pdfedit/sessionfile/schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Point is an [x, y] pair.
type Point [2]float64

type Font struct {
	Family string  `json:"family,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Bold   bool    `json:"bold,omitempty"`
	Italic bool    `json:"italic,omitempty"`
}

// Edit is one record in a session. Type selects which fields apply.
type Edit struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Page  int    `json:"page"`
	Index int    `json:"index"`

	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  float64  `json:"width,omitempty"`
	Height float64  `json:"height,omitempty"`

	OriginalX      *float64 `json:"originalX,omitempty"`
	OriginalY      *float64 `json:"originalY,omitempty"`
	OriginalWidth  float64  `json:"originalWidth,omitempty"`
	OriginalHeight float64  `json:"originalHeight,omitempty"`
	OriginalText   string   `json:"originalText,omitempty"`

	Text       string `json:"text,omitempty"`
	Font       *Font  `json:"font,omitempty"`
	Color      string `json:"color,omitempty"`
	Background string `json:"background,omitempty"`

	Points      []Point  `json:"points,omitempty"`
	Start       *Point   `json:"start,omitempty"`
	End         *Point   `json:"end,omitempty"`
	Center      *Point   `json:"center,omitempty"`
	Radius      float64  `json:"radius,omitempty"`
	StrokeWidth float64  `json:"strokeWidth,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	LineStyle   string   `json:"lineStyle,omitempty"`
	Filled      bool     `json:"filled,omitempty"`

	Source string  `json:"source,omitempty"`
	Image  []byte  `json:"image,omitempty"`
	Stamp  string  `json:"stamp,omitempty"`
	Size   float64 `json:"size,omitempty"`
}

// File is a whole session.
type File struct {
	Version int `json:"version"`
	// Document is the path of the original PDF, relative to the session file.
	Document string `json:"document,omitempty"`
	Output   string `json:"output,omitempty"`
	// CaptureScale marks a legacy session whose drawings, shapes and fill
	// areas were captured in display space at this zoom scale.
	CaptureScale float64 `json:"captureScale,omitempty"`
	Licensed     bool    `json:"licensed,omitempty"`
	Edits        []Edit  `json:"edits"`
}

// Parse decodes a JSON or YAML session and validates it against the schema.
func Parse(data []byte) (*File, error) {
	doc, err := toJSON(data)
	if err != nil {
		return nil, err
	}
	if err := validate(doc); err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return &f, nil
}

// Read parses r.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return Parse(data)
}

// Load reads a session file. A relative Document path is resolved against
// the session's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Document != "" && !filepath.IsAbs(f.Document) {
		f.Document = filepath.Join(filepath.Dir(path), f.Document)
	}
	if f.Output != "" && !filepath.IsAbs(f.Output) {
		f.Output = filepath.Join(filepath.Dir(path), f.Output)
	}
	return f, nil
}

// toJSON returns data as JSON. YAML input is decoded and re-encoded so both
// formats pass through the same schema and decoder.
func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrFormat)
	}
	if trimmed[0] == '{' && json.Valid(trimmed) {
		return trimmed, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return out, nil
}

func validate(doc []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := s.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrSchema, describe(verr))
		}
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// describe flattens the deepest causes into "location: message" lines.
func describe(e *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(e)
	return strings.Join(msgs, "; ")
}

// Marshal encodes f as YAML when yamlOut is set, else as indented JSON.
func Marshal(f *File, yamlOut bool) ([]byte, error) {
	if f.Version == 0 {
		f.Version = Version
	}
	if yamlOut {
		// yaml.v3 writes []byte as a sequence; go through JSON for base64.
		doc, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		var v any
		if err := yaml.Unmarshal(doc, &v); err != nil {
			return nil, err
		}
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(f, "", "  ")
}
