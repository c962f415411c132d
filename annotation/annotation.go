// Package annotation holds the edit records a user places over a PDF page and
// the ordered store they live in.
//
// Every record keeps its geometry in normalized page space (zoom 1.0, origin
// top-left, y down, one unit per PDF point). Display-space math happens in the
// selection package; the store never sees screen pixels.
package annotation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pdfedit/coords"
)

var (
	// ErrInvalid marks a record that fails validation.
	ErrInvalid = errors.New("annotation: invalid record")
	// ErrNotFound is returned when a key does not resolve to a stored record.
	ErrNotFound = errors.New("annotation: record not found")
	// ErrIndex is returned for out-of-range collection indices.
	ErrIndex = errors.New("annotation: index out of range")
)

type Kind string

const (
	KindTextEdit    Kind = "textEdit"
	KindTextOverlay Kind = "textOverlay"
	KindDrawing     Kind = "drawing"
	KindRectangle   Kind = "rectangle"
	KindCircle      Kind = "circle"
	KindFillArea    Kind = "fillArea"
	KindSignature   Kind = "signature"
	KindStamp       Kind = "stamp"
	KindPatch       Kind = "patch"
)

// Collection names one ordered record list. Drawings, rectangles and circles
// share the Annotations list.
type Collection string

const (
	TextEdits    Collection = "textEdits"
	TextOverlays Collection = "textOverlays"
	Annotations  Collection = "annotations"
	FillAreas    Collection = "fillAreas"
	Signatures   Collection = "signatures"
	Stamps       Collection = "stamps"
	Patches      Collection = "patches"
)

// Collections lists every collection in export layering order.
var Collections = []Collection{TextEdits, Annotations, FillAreas, TextOverlays, Signatures, Stamps, Patches}

// Topic is the event bus topic published when c changes.
func (c Collection) Topic() string { return string(c) + ":changed" }

// Key identifies a record inside its collection. Text edits are keyed by the
// page and the original text-run index; everything else by ID.
type Key struct {
	ID    string
	Page  int
	Index int
}

func (k Key) String() string {
	if k.ID != "" {
		return k.ID
	}
	return fmt.Sprintf("p%d#%d", k.Page, k.Index)
}

// Ref points at a record from outside the store.
type Ref struct {
	Collection Collection
	Key        Key
}

func (r Ref) String() string { return string(r.Collection) + "/" + r.Key.String() }

// Record is implemented by every annotation variant.
type Record interface {
	Kind() Kind
	Collection() Collection
	PageNum() int
	Key() Key
	// Bounds returns the normalized bounding box.
	Bounds() coords.Rect
	// Translate moves every geometry field by a normalized delta.
	Translate(dx, dy float64)
	// HitTest reports whether display point p at zoom scale touches the record.
	HitTest(p coords.Point, scale float64) bool
	Validate() error
	Clone() Record
}

// Resizable records expose a rectangular frame with a size floor.
type Resizable interface {
	Record
	Frame() coords.Rect
	SetFrame(r coords.Rect)
	MinSize() (w, h float64)
}

// Square is implemented by resizable records whose frame is always square.
type Square interface {
	Resizable
	square()
}

// RefOf returns the reference for r.
func RefOf(r Record) Ref { return Ref{Collection: r.Collection(), Key: r.Key()} }

// Color is an sRGB color with 8-bit channels.
type Color struct {
	R, G, B uint8
}

var (
	Black = Color{}
	White = Color{255, 255, 255}
)

// ParseColor accepts #RRGGBB and #RGB.
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("%w: color %q", ErrInvalid, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q", ErrInvalid, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustColor is ParseColor for constants; it panics on bad input.
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) Hex() string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }

func (c Color) String() string { return c.Hex() }

// Floats returns the channels scaled to [0, 1] for content stream operators.
func (c Color) Floats() (r, g, b float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type LineStyle string

const (
	Solid  LineStyle = "solid"
	Dashed LineStyle = "dashed"
	Dotted LineStyle = "dotted"
)

// DashPattern derives the dash array from the stroke width. Solid lines have
// no pattern.
func (s LineStyle) DashPattern(w float64) []float64 {
	switch s {
	case Dashed:
		return []float64{3 * w, 2 * w}
	case Dotted:
		return []float64{w, 1.5 * w}
	default:
		return nil
	}
}

func (s LineStyle) Valid() bool {
	switch s {
	case "", Solid, Dashed, Dotted:
		return true
	}
	return false
}

type StampType string

const (
	StampCheck  StampType = "check"
	StampX      StampType = "x"
	StampCircle StampType = "circle"
	StampDot    StampType = "dot"
	StampDate   StampType = "date"
	StampNA     StampType = "na"
)

func (t StampType) Valid() bool {
	switch t {
	case StampCheck, StampX, StampCircle, StampDot, StampDate, StampNA:
		return true
	}
	return false
}

// Font selects a family and style. Family is one of the standard families
// (Helvetica, Times, Courier) or the name of a custom font known to the
// exporter.
type Font struct {
	Family string
	Size   float64
	Bold   bool
	Italic bool
}

func validOpacity(o float64) bool { return o >= 0 && o <= 1 }

func invalid(kind Kind, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, kind, fmt.Sprintf(format, args...))
}

// SetID sets the ID of an id-keyed record. It reports false for text edits,
// which are keyed by page and run index.
func SetID(r Record, id string) bool {
	switch v := r.(type) {
	case *TextOverlay:
		v.ID = id
	case *Drawing:
		v.ID = id
	case *Rectangle:
		v.ID = id
	case *Circle:
		v.ID = id
	case *FillArea:
		v.ID = id
	case *Signature:
		v.ID = id
	case *Stamp:
		v.ID = id
	case *Patch:
		v.ID = id
	default:
		return false
	}
	return true
}
