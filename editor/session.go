// Package editor holds the document session: the root aggregate that owns the
// original bytes, the annotation store, the undo/redo log and the selection
// engine, and routes user actions and pointer input through them.
//
// Every exported method serializes on one mutex. Blocking collaborators
// (export, OCR, rasterization, storage) are called outside of it so a slow
// save never freezes editing; their results are applied under the lock.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/eventbus"
	"github.com/wudi/pdfedit/flatten"
	"github.com/wudi/pdfedit/history"
	"github.com/wudi/pdfedit/layers"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/ocr"
	"github.com/wudi/pdfedit/selection"
	"github.com/wudi/pdfedit/storage"
)

var (
	// ErrValidation marks user input rejected before any state changed.
	ErrValidation = errors.New("editor: invalid input")
	// ErrNoDocument is returned by actions that need a loaded document.
	ErrNoDocument = errors.New("editor: no document loaded")
	// ErrInvalidDocument is returned when loaded bytes cannot be opened.
	ErrInvalidDocument = errors.New("editor: cannot open document")
	// ErrPageRange is returned for page numbers outside the document.
	ErrPageRange = errors.New("editor: page out of range")
	// ErrDeclined is returned when the user answers no to a confirmation.
	ErrDeclined = errors.New("editor: declined by user")
	// ErrUnavailable is returned when a tool needs a collaborator that was
	// not configured, such as a rasterizer or an OCR engine.
	ErrUnavailable = errors.New("editor: collaborator not configured")
)

// Event bus topics published by the session in addition to the store's
// "<collection>:changed" topics.
const (
	TopicLoaded = "document:loaded"
	TopicSaved  = "document:saved"
	TopicPage   = "page:changed"
	TopicScale  = "scale:changed"
	TopicTool   = "tool:changed"
)

// Rasterizer renders a page bitmap at a zoom scale. One image pixel equals
// one display unit.
type Rasterizer interface {
	Render(ctx context.Context, page int, scale float64) (image.Image, error)
}

// Exporter flattens a session snapshot into PDF bytes.
type Exporter interface {
	Export(ctx context.Context, in flatten.Input) ([]byte, error)
}

var _ Exporter = (*flatten.Exporter)(nil)

// PageSize is the displayed size of a page in normalized units.
type PageSize struct {
	Width, Height float64
}

// ToolChange is the payload of TopicTool.
type ToolChange struct {
	Tool    selection.Tool
	Routing selection.Routing
}

// Style holds the defaults applied to newly created records.
type Style struct {
	Color       annotation.Color
	FillColor   annotation.Color
	Font        annotation.Font
	StrokeWidth float64
	Opacity     float64
	LineStyle   annotation.LineStyle
	StampType   annotation.StampType
	StampSize   float64
	// Text is the placeholder of overlays created with the add-text tool.
	Text string
}

// DefaultStyle is used unless WithStyle replaces it.
var DefaultStyle = Style{
	Color:       annotation.Black,
	FillColor:   annotation.White,
	Font:        annotation.Font{Family: flatten.DefaultFamily, Size: 14},
	StrokeWidth: 2,
	Opacity:     1,
	LineStyle:   annotation.Solid,
	StampType:   annotation.StampCheck,
	StampSize:   24,
	Text:        "Text",
}

// Session is one open document and its edits.
type Session struct {
	mu sync.Mutex

	log       observability.Logger
	bus       eventbus.Bus
	events    *eventbus.Queue
	notifier  notify.Notifier
	confirmer notify.Confirmer
	exporter  Exporter
	open      flatten.Opener
	storage   storage.Store
	raster    Rasterizer
	ocr       ocr.Engine
	ocrOpts   []ocr.InputOption
	sched     selection.Scheduler
	delay     time.Duration
	histLimit int
	licensed  bool
	tool      selection.Tool
	style     Style

	store *annotation.Store
	hist  *history.Engine
	sel   *selection.Engine
	ids   annotation.Sequence

	original []byte
	name     string
	pages    []PageSize
	dirty    bool
	// gen changes on every load; rev on every committed edit.
	gen     int
	rev     int
	gesture *gesture
}

type Option func(*Session)

func WithLogger(l observability.Logger) Option { return func(s *Session) { s.log = l } }

// WithBus sets the bus that receives store and session events.
func WithBus(b eventbus.Bus) Option { return func(s *Session) { s.bus = b } }

func WithNotifier(n notify.Notifier) Option   { return func(s *Session) { s.notifier = n } }
func WithConfirmer(c notify.Confirmer) Option { return func(s *Session) { s.confirmer = c } }
func WithExporter(e Exporter) Option          { return func(s *Session) { s.exporter = e } }
func WithStorage(st storage.Store) Option     { return func(s *Session) { s.storage = st } }
func WithRasterizer(r Rasterizer) Option      { return func(s *Session) { s.raster = r } }
func WithScheduler(sc selection.Scheduler) Option {
	return func(s *Session) { s.sched = sc }
}

// WithOpener sets how loaded bytes are inspected for page count and sizes.
func WithOpener(o flatten.Opener) Option { return func(s *Session) { s.open = o } }

// WithOCR enables the OCR select tool. opts are applied to every input.
func WithOCR(e ocr.Engine, opts ...ocr.InputOption) Option {
	return func(s *Session) {
		s.ocr = e
		s.ocrOpts = opts
	}
}

func WithOneShotDelay(d time.Duration) Option { return func(s *Session) { s.delay = d } }

// WithHistoryLimit caps the undo stack. Zero means unlimited.
func WithHistoryLimit(n int) Option { return func(s *Session) { s.histLimit = n } }

// WithLicensed turns off the export watermark.
func WithLicensed(v bool) Option { return func(s *Session) { s.licensed = v } }

// WithInitialTool selects the tool active after construction.
func WithInitialTool(t selection.Tool) Option { return func(s *Session) { s.tool = t } }

func WithStyle(st Style) Option { return func(s *Session) { s.style = st } }

// NewSession returns a session without a document.
func NewSession(opts ...Option) *Session {
	s := &Session{
		bus:       eventbus.New(),
		notifier:  notify.Nop{},
		confirmer: notify.AutoConfirmer{Answer: true},
		open:      flatten.PDFOpener(),
		sched:     selection.RealScheduler{},
		delay:     selection.DefaultOneShotDelay,
		tool:      selection.DefaultTool,
		style:     DefaultStyle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = observability.OrNop(s.log)
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.exporter == nil {
		s.exporter = flatten.NewExporter(flatten.WithLogger(s.log))
	}
	s.events = eventbus.NewQueue(s.bus)
	s.store = annotation.NewStore(s.events)
	s.hist = history.NewEngine(s.store,
		history.WithLimit(s.histLimit),
		history.WithNotifier(s.notifier),
		history.WithLogger(s.log))
	s.sel = selection.NewEngine(s.store,
		selection.WithRecorder(recorder{s}),
		selection.WithLogger(s.log),
		selection.WithScheduler(lockedScheduler{s: s, inner: s.sched}),
		selection.WithOneShotDelay(s.delay),
		selection.OnToolChange(func(t selection.Tool, r selection.Routing) {
			s.gesture = nil
			s.events.Publish(TopicTool, ToolChange{Tool: t, Routing: r})
		}))
	if s.tool != selection.DefaultTool {
		s.sel.SetTool(s.tool)
	}
	return s
}

// recorder commits gesture entries and marks the session dirty. It runs
// under the session lock.
type recorder struct{ s *Session }

func (r recorder) Record(e history.Entry) {
	r.s.commit(e)
}

// lockedScheduler runs scheduled callbacks under the session lock, so the
// one-shot tool revert serializes with user actions.
type lockedScheduler struct {
	s     *Session
	inner selection.Scheduler
}

func (l lockedScheduler) AfterFunc(d time.Duration, f func()) selection.Timer {
	return l.inner.AfterFunc(d, func() {
		l.s.mu.Lock()
		defer l.s.unlock()
		f()
	})
}

// unlock releases the session lock, then delivers the events raised while
// it was held. Handlers may therefore call back into the session.
func (s *Session) unlock() {
	s.mu.Unlock()
	s.events.Flush()
}

// Bus returns the event bus the session publishes on.
func (s *Session) Bus() eventbus.Bus { return s.bus }

// Load replaces the session document. When unsaved edits exist the user is
// asked to discard them first. The store and both history stacks are reset.
func (s *Session) Load(ctx context.Context, data []byte, name string) error {
	if len(data) == 0 {
		s.notifier.Notify("No document to load", notify.Error)
		return ErrNoDocument
	}
	s.mu.Lock()
	dirty := s.dirty
	s.unlock()
	if dirty {
		ok, err := s.ask(ctx, "Discard unsaved changes?")
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeclined
		}
	}
	pages, err := s.inspect(data)
	if err != nil {
		s.log.Warn("document rejected", observability.String("name", name), observability.Error("error", err))
		s.notifier.Notify("Cannot open document", notify.Error)
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if s.storage != nil {
		if err := s.storage.Store(ctx, data, name); err != nil {
			s.notifier.Notify("Cannot store document", notify.Error)
			return fmt.Errorf("store document: %w", err)
		}
	}
	s.install(data, name, pages)
	s.log.Info("document loaded", observability.String("name", name), observability.Int("pages", len(pages)))
	s.bus.Publish(TopicLoaded, name)
	return nil
}

// Resume loads the newest revision kept by the storage collaborator.
func (s *Session) Resume(ctx context.Context) error {
	if s.storage == nil {
		return fmt.Errorf("%w: storage", ErrUnavailable)
	}
	doc, err := s.storage.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve document: %w", err)
	}
	pages, err := s.inspect(doc.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	s.install(doc.Data, doc.Name, pages)
	s.log.Info("document resumed", observability.String("name", doc.Name), observability.Int("revision", doc.Revision))
	s.bus.Publish(TopicLoaded, doc.Name)
	return nil
}

func (s *Session) inspect(data []byte) ([]PageSize, error) {
	doc, err := s.open(data)
	if err != nil {
		return nil, err
	}
	n := doc.NumPages()
	if n < 1 {
		return nil, errors.New("document has no pages")
	}
	pages := make([]PageSize, n)
	for i := range pages {
		w, h, err := doc.PageSize(i + 1)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages[i] = PageSize{Width: w, Height: h}
	}
	return pages, nil
}

func (s *Session) install(data []byte, name string, pages []PageSize) {
	s.mu.Lock()
	defer s.unlock()
	s.sel.SetTool(s.tool)
	s.sel.SetPage(1)
	s.store.Reset()
	s.hist.Clear()
	s.original = append([]byte(nil), data...)
	s.name = name
	s.pages = pages
	s.dirty = false
	s.gen++
	s.gesture = nil
}

// ask runs a confirmation and waits for its callback.
func (s *Session) ask(ctx context.Context, msg string) (bool, error) {
	ch := make(chan bool, 1)
	var once sync.Once
	s.confirmer.Confirm(msg, func(ok bool) {
		once.Do(func() { ch <- ok })
	})
	select {
	case ok := <-ch:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Loaded reports whether a document is open.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.unlock()
	return len(s.original) > 0
}

// Name is the name the current document was loaded under.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.unlock()
	return s.name
}

// Original returns a copy of the unedited document bytes.
func (s *Session) Original() []byte {
	s.mu.Lock()
	defer s.unlock()
	return append([]byte(nil), s.original...)
}

// Dirty reports whether edits were made since the last load or save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.dirty
}

func (s *Session) NumPages() int {
	s.mu.Lock()
	defer s.unlock()
	return len(s.pages)
}

// PageSize returns the normalized size of page n.
func (s *Session) PageSize(n int) (PageSize, error) {
	s.mu.Lock()
	defer s.unlock()
	if n < 1 || n > len(s.pages) {
		return PageSize{}, fmt.Errorf("%w: %d", ErrPageRange, n)
	}
	return s.pages[n-1], nil
}

func (s *Session) Page() int {
	s.mu.Lock()
	defer s.unlock()
	return s.sel.Page()
}

// SetPage switches the current page. Gestures are cancelled and the
// selection is dropped.
func (s *Session) SetPage(n int) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.requireDocument(); err != nil {
		return err
	}
	if n < 1 || n > len(s.pages) {
		return fmt.Errorf("%w: %d", ErrPageRange, n)
	}
	s.gesture = nil
	s.sel.SetPage(n)
	s.events.Publish(TopicPage, n)
	return nil
}

func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.unlock()
	return s.sel.Scale()
}

// SetScale changes the zoom. Stored geometry is untouched.
func (s *Session) SetScale(scale float64) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.sel.SetScale(scale); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	s.gesture = nil
	s.events.Publish(TopicScale, scale)
	return nil
}

func (s *Session) Tool() selection.Tool {
	s.mu.Lock()
	defer s.unlock()
	return s.sel.Tool()
}

// SetTool activates t, aborting any gesture without a history entry.
func (s *Session) SetTool(t selection.Tool) {
	s.mu.Lock()
	defer s.unlock()
	s.sel.SetTool(t)
}

// Selected returns the selected record.
func (s *Session) Selected() (annotation.Ref, bool) {
	s.mu.Lock()
	defer s.unlock()
	return s.sel.Selected()
}

func (s *Session) Select(ref annotation.Ref) error {
	s.mu.Lock()
	defer s.unlock()
	return s.sel.Select(ref)
}

// Record returns a copy of the record ref points at.
func (s *Session) Record(ref annotation.Ref) (annotation.Record, error) {
	s.mu.Lock()
	defer s.unlock()
	_, r, ok := s.store.Find(ref)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, annotation.ErrNotFound)
	}
	return r, nil
}

// Records returns copies of one collection in insertion order.
func (s *Session) Records(col annotation.Collection) []annotation.Record {
	s.mu.Lock()
	defer s.unlock()
	return s.store.Get(col)
}

// Snapshot copies every collection.
func (s *Session) Snapshot() annotation.Snapshot {
	s.mu.Lock()
	defer s.unlock()
	return s.store.Snapshot()
}

// ScreenBounds returns the display-space bounds of ref at the current zoom.
func (s *Session) ScreenBounds(ref annotation.Ref) (coords.Rect, error) {
	s.mu.Lock()
	defer s.unlock()
	_, r, ok := s.store.Find(ref)
	if !ok {
		return coords.Rect{}, fmt.Errorf("%s: %w", ref, annotation.ErrNotFound)
	}
	return r.Bounds().ToScreen(s.sel.Scale()), nil
}

// Layers lists the records of the current page, topmost first.
func (s *Session) Layers() []layers.Layer {
	s.mu.Lock()
	defer s.unlock()
	var sel *annotation.Ref
	if ref, ok := s.sel.Selected(); ok {
		sel = &ref
	}
	return layers.Project(s.store, s.sel.Page(), sel)
}

// CanUndo and CanRedo report whether the history stacks hold entries.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.hist.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.hist.CanRedo()
}

func (s *Session) requireDocument() error {
	if len(s.original) == 0 {
		return ErrNoDocument
	}
	return nil
}
