// Package flatten burns the edit model into a new PDF.
//
// Export draws every record onto its page in a fixed layering order: text
// edits, freehand drawings, rectangles and circles, fill areas, text
// overlays, signatures, stamps, patches and finally the watermark of
// unlicensed exports. Records are stored in normalized coordinates (top-left
// origin, y down, PDF points), so the only conversion needed is the y flip
// into the page frame.
package flatten

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/pdfdoc"
)

var (
	// ErrEmptyDocument is returned when there are no original bytes to
	// draw onto.
	ErrEmptyDocument = errors.New("flatten: no document loaded")
	// ErrExportInProgress is returned while another export of the same
	// Exporter is running.
	ErrExportInProgress = errors.New("flatten: export already in progress")
	// ErrUnknownRecord is returned for record types the pipeline cannot draw.
	ErrUnknownRecord = errors.New("flatten: unknown record type")
)

// Input is everything an export needs. Records maps each collection to its
// records in insertion order, as produced by annotation.Store.Snapshot.
type Input struct {
	Original []byte
	Records  annotation.Snapshot
	Licensed bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger used for degradations and progress.
func WithLogger(l observability.Logger) Option {
	return func(e *Exporter) { e.log = observability.OrNop(l) }
}

// WithTracer sets the tracer that receives one span per export and layer.
func WithTracer(t observability.Tracer) Option {
	return func(e *Exporter) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock sets the time source for /ModDate and date stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithProducer sets the /Producer written into the document info.
func WithProducer(p string) Option {
	return func(e *Exporter) { e.producer = p }
}

// WithFetcher sets how signature images are loaded from their source.
func WithFetcher(f Fetcher) Option {
	return func(e *Exporter) {
		if f != nil {
			e.fetcher = f
		}
	}
}

// WithFontSource enables the custom font tier of the fallback chain.
func WithFontSource(s FontSource) Option {
	return func(e *Exporter) { e.fonts = s }
}

// WithWatermark replaces the watermark drawn on unlicensed exports.
func WithWatermark(w Watermark) Option {
	return func(e *Exporter) { e.watermark = w.withDefaults() }
}

// WithOpener replaces the document library used to draw.
func WithOpener(o Opener) Option {
	return func(e *Exporter) {
		if o != nil {
			e.open = o
		}
	}
}

// WithDocumentOptions passes extra options to the default pdfdoc opener.
func WithDocumentOptions(opts ...pdfdoc.Option) Option {
	return func(e *Exporter) { e.docOpts = append(e.docOpts, opts...) }
}

// Exporter runs the flatten pipeline. It is safe for concurrent use but runs
// one export at a time.
type Exporter struct {
	mu sync.Mutex

	log       observability.Logger
	tracer    observability.Tracer
	now       func() time.Time
	producer  string
	fetcher   Fetcher
	fonts     FontSource
	watermark Watermark
	open      Opener
	docOpts   []pdfdoc.Option
}

// NewExporter builds an Exporter. Without WithOpener, documents are opened
// with pdfdoc using the exporter's logger, clock and producer.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		log:       observability.NopLogger{},
		tracer:    observability.NopTracer(),
		now:       time.Now,
		producer:  pdfdoc.DefaultProducer,
		fetcher:   NewSourceFetcher(""),
		watermark: Watermark{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.open == nil {
		base := []pdfdoc.Option{
			pdfdoc.WithLogger(e.log),
			pdfdoc.WithClock(e.now),
			pdfdoc.WithProducer(e.producer),
		}
		e.open = PDFOpener(append(base, e.docOpts...)...)
	}
	return e
}

type layer struct {
	name string
	draw func(*run) error
}

var layers = []layer{
	{"textEdits", (*run).textEdits},
	{"shapes", (*run).shapes},
	{"fillAreas", (*run).fillAreas},
	{"textOverlays", (*run).textOverlays},
	{"signatures", (*run).signatures},
	{"stamps", (*run).stamps},
	{"patches", (*run).patches},
	{"watermark", (*run).watermarks},
}

// Export draws in.Records over in.Original and returns the new PDF. Any
// failure of the document library aborts the export with no output;
// missing fonts and unreachable resources are logged and substituted.
func (e *Exporter) Export(ctx context.Context, in Input) (out []byte, err error) {
	if len(bytes.TrimSpace(in.Original)) == 0 {
		return nil, ErrEmptyDocument
	}
	if !e.mu.TryLock() {
		return nil, ErrExportInProgress
	}
	defer e.mu.Unlock()

	ctx, span := e.tracer.StartSpan(ctx, observability.SpanExport)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	start := time.Now()

	doc, err := e.open(in.Original)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	r := &run{
		ctx:      ctx,
		e:        e,
		doc:      doc,
		records:  in.Records,
		licensed: in.Licensed,
		fonts:    newFontChain(ctx, doc, e.fonts, e.log),
		canvases: make(map[int]Canvas),
		sizes:    make(map[int]pageSize),
	}
	for _, l := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, ls := e.tracer.StartSpan(ctx, observability.SpanExportLayer)
		ls.SetTag("layer", l.name)
		err := l.draw(r)
		if err != nil {
			ls.SetError(err)
		}
		ls.Finish()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.name, err)
		}
	}
	out, err = doc.Save()
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	span.SetTag("bytes", len(out))
	span.SetTag("records", r.drawn)
	e.log.Info("export finished",
		observability.Int("records", r.drawn),
		observability.Int("skipped", r.skipped),
		observability.Int("bytes", len(out)),
		observability.Duration("elapsed", time.Since(start)))
	return out, nil
}
