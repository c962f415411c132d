// Package pdfdoc reads an existing PDF, lets callers draw on its pages and
// writes the result as an incremental update appended to the original bytes.
//
// Drawing happens in the display frame of each page: origin at the
// bottom-left corner of the page as a viewer shows it, y up, one unit per
// point. Page rotation and crop box offsets are applied when the page is
// saved.
package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/observability"
)

var (
	ErrEmpty     = errors.New("pdfdoc: empty document")
	ErrMalformed = errors.New("pdfdoc: malformed document")
	ErrEncrypted = errors.New("pdfdoc: encrypted documents are not supported")
	ErrPageRange = errors.New("pdfdoc: page out of range")
)

const maxRefHops = 32

// Option configures a Document.
type Option func(*Document)

func WithLogger(l observability.Logger) Option {
	return func(d *Document) { d.log = observability.OrNop(l) }
}

// WithClock sets the time source used for /ModDate.
func WithClock(now func() time.Time) Option {
	return func(d *Document) {
		if now != nil {
			d.now = now
		}
	}
}

// WithProducer sets the /Producer entry written to the document info.
func WithProducer(p string) Option {
	return func(d *Document) { d.producer = p }
}

// WithCompressionLevel sets the zlib level used for new streams.
func WithCompressionLevel(level int) Option {
	return func(d *Document) { d.level = level }
}

// WithMaxImageSize downscales embedded raster images whose longer side
// exceeds px. Zero disables scaling.
func WithMaxImageSize(px int) Option {
	return func(d *Document) { d.maxImage = px }
}

type page struct {
	ref       Ref
	dict      *Dict
	resources *Dict
	media     coords.Box
	crop      coords.Box
	rotate    int
}

// Document is an opened PDF plus the pending additions.
type Document struct {
	data    []byte
	xref    *xrefTable
	catalog *Dict
	pages   []*page

	cache   map[int]Object
	objstms map[int]*objectStream
	added   map[int]Object
	nextNum int

	canvases map[int]*Canvas
	images   map[[32]byte]*Image
	stdFonts map[string]*Font
	ttFonts  []*Font

	log      observability.Logger
	now      func() time.Time
	producer string
	level    int
	maxImage int
}

// Open parses data. The slice is retained and must not be modified while the
// Document is in use.
func Open(data []byte, opts ...Option) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}
	d := &Document{
		data:     data,
		cache:    make(map[int]Object),
		objstms:  make(map[int]*objectStream),
		added:    make(map[int]Object),
		canvases: make(map[int]*Canvas),
		images:   make(map[[32]byte]*Image),
		stdFonts: make(map[string]*Font),
		log:      observability.NopLogger{},
		now:      time.Now,
		level:    zlib.DefaultCompression,
	}
	for _, opt := range opts {
		opt(d)
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrMalformed)
	}
	x, err := readXRef(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	d.xref = x
	if x.rebuilt {
		d.log.Warn("cross-reference table rebuilt from object headers", observability.Int("objects", len(x.entries)))
	}
	if x.trailer.Get("Encrypt") != nil {
		return nil, ErrEncrypted
	}
	d.nextNum = x.maxObjectNumber() + 1
	if err := d.loadPages(); err != nil {
		return nil, err
	}
	return d, nil
}

// NumPages returns the number of pages.
func (d *Document) NumPages() int { return len(d.pages) }

func (d *Document) page(n int) (*page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// PageSize returns the displayed size of page n (1-based): the crop box with
// width and height swapped for quarter-turn rotations.
func (d *Document) PageSize(n int) (w, h float64, err error) {
	p, err := d.page(n)
	if err != nil {
		return 0, 0, err
	}
	w, h = coords.DisplaySize(p.crop, p.rotate)
	return w, h, nil
}

// Rotation returns the normalized /Rotate value of page n.
func (d *Document) Rotation(n int) (int, error) {
	p, err := d.page(n)
	if err != nil {
		return 0, err
	}
	return p.rotate, nil
}

// Canvas returns the drawing surface of page n. Repeated calls return the
// same canvas.
func (d *Document) Canvas(n int) (*Canvas, error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	if c, ok := d.canvases[n]; ok {
		return c, nil
	}
	c := newCanvas(d, p)
	d.canvases[n] = c
	return c, nil
}

// add stores a new indirect object and returns its reference.
func (d *Document) add(o Object) Ref {
	r := Ref{Num: d.nextNum}
	d.nextNum++
	d.added[r.Num] = o
	return r
}

func (d *Document) compress(data []byte) (*Stream, error) {
	enc, err := deflate(data, d.level)
	if err != nil {
		return nil, err
	}
	return &Stream{Dict: NewDict().Set("Filter", Name("FlateDecode")), Data: enc}, nil
}

// resolve follows references until a direct object is reached. Missing
// objects resolve to Null.
func (d *Document) resolve(o Object) (Object, error) {
	for i := 0; i < maxRefHops; i++ {
		r, ok := o.(Ref)
		if !ok {
			return o, nil
		}
		var err error
		if o, err = d.object(r.Num); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("reference chain too long")
}

func (d *Document) dict(o Object) *Dict {
	v, err := d.resolve(o)
	if err != nil {
		return nil
	}
	switch t := v.(type) {
	case *Dict:
		return t
	case *Stream:
		return t.Dict
	}
	return nil
}

func (d *Document) object(num int) (Object, error) {
	if o, ok := d.added[num]; ok {
		return o, nil
	}
	if o, ok := d.cache[num]; ok {
		return o, nil
	}
	e, ok := d.xref.entries[num]
	if !ok || e.kind == entryFree {
		return Null{}, nil
	}
	var o Object
	var err error
	switch e.kind {
	case entryInFile:
		if e.offset < 0 || e.offset >= int64(len(d.data)) {
			return nil, fmt.Errorf("object %d: offset %d out of range", num, e.offset)
		}
		var ref Ref
		ref, o, err = newLexer(d.data, int(e.offset)).indirect(d.streamLength)
		if err == nil && ref.Num != num {
			err = fmt.Errorf("object %d: found object %d at offset %d", num, ref.Num, e.offset)
		}
	case entryCompressed:
		o, err = d.compressedObject(e.stream, e.index)
	}
	if err != nil {
		return nil, err
	}
	d.cache[num] = o
	return o, nil
}

func (d *Document) streamLength(r Ref) (int, bool) {
	o, err := d.object(r.Num)
	if err != nil {
		return 0, false
	}
	return intOf(o)
}

type objectStream struct {
	data    []byte
	first   int
	offsets []int
}

func (d *Document) compressedObject(stream, index int) (Object, error) {
	os, ok := d.objstms[stream]
	if !ok {
		o, err := d.object(stream)
		if err != nil {
			return nil, err
		}
		s, isStream := o.(*Stream)
		if !isStream {
			return nil, fmt.Errorf("object stream %d is not a stream", stream)
		}
		data, err := decodeStream(s)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", stream, err)
		}
		n, _ := intOf(s.Dict.Get("N"))
		first, _ := intOf(s.Dict.Get("First"))
		os = &objectStream{data: data, first: first}
		l := newLexer(data, 0)
		for i := 0; i < n; i++ {
			_, ok1 := l.uint()
			off, ok2 := l.uint()
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("object stream %d: bad header", stream)
			}
			os.offsets = append(os.offsets, off)
		}
		d.objstms[stream] = os
	}
	if index < 0 || index >= len(os.offsets) {
		return nil, fmt.Errorf("object stream %d: index %d out of range", stream, index)
	}
	return newLexer(os.data, os.first+os.offsets[index]).object(0)
}

type inherited struct {
	resources Object
	media     Object
	crop      Object
	rotate    Object
}

func (d *Document) loadPages() error {
	d.catalog = d.dict(d.xref.trailer.Get("Root"))
	if d.catalog == nil {
		return fmt.Errorf("%w: missing document catalog", ErrMalformed)
	}
	if err := d.walkPages(d.catalog.Get("Pages"), inherited{}, make(map[Ref]bool), 0); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(d.pages) == 0 {
		return fmt.Errorf("%w: document has no pages", ErrMalformed)
	}
	return nil
}

func (d *Document) walkPages(o Object, inh inherited, seen map[Ref]bool, depth int) error {
	if depth > maxNesting {
		return errors.New("page tree too deep")
	}
	ref, isRef := o.(Ref)
	if isRef {
		if seen[ref] {
			return fmt.Errorf("page tree cycle at %s", ref)
		}
		seen[ref] = true
	}
	node := d.dict(o)
	if node == nil {
		return errors.New("page tree node is not a dictionary")
	}
	if v := node.Get("Resources"); v != nil {
		inh.resources = v
	}
	if v := node.Get("MediaBox"); v != nil {
		inh.media = v
	}
	if v := node.Get("CropBox"); v != nil {
		inh.crop = v
	}
	if v := node.Get("Rotate"); v != nil {
		inh.rotate = v
	}
	typ, _ := nameOf(node.Get("Type"))
	if kids, ok := d.resolveArray(node.Get("Kids")); ok && typ != "Page" {
		for _, kid := range kids {
			if err := d.walkPages(kid, inh, seen, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if !isRef {
		return errors.New("page is not an indirect object")
	}
	p := &page{ref: ref, dict: node, resources: d.dict(inh.resources)}
	p.media = d.box(inh.media, coords.Box{URX: 612, URY: 792})
	p.crop = d.box(inh.crop, p.media)
	if v, err := d.resolve(inh.rotate); err == nil {
		if r, ok := intOf(v); ok {
			p.rotate = coords.NormalizeRotation(r)
		}
	}
	d.pages = append(d.pages, p)
	return nil
}

func (d *Document) resolveArray(o Object) (Array, bool) {
	v, err := d.resolve(o)
	if err != nil {
		return nil, false
	}
	a, ok := v.(Array)
	return a, ok
}

func (d *Document) box(o Object, fallback coords.Box) coords.Box {
	arr, ok := d.resolveArray(o)
	if !ok || len(arr) != 4 {
		return fallback
	}
	var v [4]float64
	for i, it := range arr {
		r, err := d.resolve(it)
		if err != nil {
			return fallback
		}
		f, ok := numberOf(r)
		if !ok {
			return fallback
		}
		v[i] = f
	}
	b := coords.Box{LLX: min(v[0], v[2]), LLY: min(v[1], v[3]), URX: max(v[0], v[2]), URY: max(v[1], v[3])}
	if b.Width() == 0 || b.Height() == 0 {
		return fallback
	}
	return b
}
