// Package selection turns display-space pointer input into normalized
// mutations of the annotation store: hit testing, selection, drag and resize
// sessions, and the active editing tool.
package selection

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/history"
	"github.com/wudi/pdfedit/observability"
)

var (
	// ErrBusy is returned when a drag or resize is already in progress.
	ErrBusy = errors.New("selection: manipulation in progress")
	// ErrIdle is returned by Move and End without an active manipulation.
	ErrIdle = errors.New("selection: no manipulation in progress")
	// ErrNotResizable is returned when resizing a record without a frame.
	ErrNotResizable = errors.New("selection: record cannot be resized")
	// ErrOffPage is returned for records that are not on the current page.
	ErrOffPage = errors.New("selection: record not on current page")
)

// Store is the part of annotation.Store the engine reads and writes.
type Store interface {
	Find(ref annotation.Ref) (int, annotation.Record, bool)
	Replace(col annotation.Collection, i int, r annotation.Record) error
	Get(col annotation.Collection) []annotation.Record
}

// Recorder receives the history entry committed at the end of a gesture.
type Recorder interface {
	Record(e history.Entry)
}

type mode int

const (
	modeDrag mode = iota + 1
	modeResize
)

// manipulation is the single active drag or resize session.
type manipulation struct {
	mode    mode
	ref     annotation.Ref
	handle  Handle
	start   coords.Point
	initial annotation.Record
	current annotation.Record
}

type Engine struct {
	store    Store
	recorder Recorder
	logger   observability.Logger
	sched    Scheduler
	delay    time.Duration

	scale    float64
	page     int
	tool     Tool
	selected *annotation.Ref
	active   *manipulation
	pending  Timer

	onTool func(Tool, Routing)
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option           { return func(e *Engine) { e.recorder = r } }
func WithLogger(l observability.Logger) Option { return func(e *Engine) { e.logger = l } }
func WithScheduler(s Scheduler) Option         { return func(e *Engine) { e.sched = s } }
func WithOneShotDelay(d time.Duration) Option  { return func(e *Engine) { e.delay = d } }

// OnToolChange registers a callback run after every tool switch, including
// automatic reverts, with the new pointer routing.
func OnToolChange(fn func(Tool, Routing)) Option { return func(e *Engine) { e.onTool = fn } }

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		sched: RealScheduler{},
		delay: DefaultOneShotDelay,
		scale: 1,
		page:  1,
		tool:  DefaultTool,
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = observability.OrNop(e.logger)
	return e
}

func (e *Engine) Scale() float64 { return e.scale }

// SetScale changes the zoom. Stored records are untouched; only their display
// projection moves.
func (e *Engine) SetScale(s float64) error {
	if err := coords.ValidScale(s); err != nil {
		return err
	}
	e.Cancel()
	e.scale = s
	return nil
}

func (e *Engine) Page() int { return e.page }

// SetPage switches the current page, cancelling any gesture and dropping the
// selection.
func (e *Engine) SetPage(p int) {
	e.Cancel()
	e.Deselect()
	e.page = p
}

func (e *Engine) Tool() Tool { return e.tool }

func (e *Engine) Routing() Routing { return e.tool.Routing() }

// SetTool activates t. Any pending revert is cancelled, an active gesture is
// aborted without a history entry and the selection is cleared.
func (e *Engine) SetTool(t Tool) {
	e.stopRevert()
	e.Cancel()
	e.Deselect()
	prev := e.tool
	e.tool = t
	if prev != t {
		e.logger.Debug("tool changed", observability.String("from", string(prev)), observability.String("to", string(t)))
	}
	if e.onTool != nil {
		e.onTool(t, t.Routing())
	}
}

// Complete marks the end of an action of the current tool. One-shot tools
// schedule their revert to DefaultTool.
func (e *Engine) Complete() {
	if !e.tool.OneShot() {
		return
	}
	e.stopRevert()
	tool := e.tool
	e.pending = e.sched.AfterFunc(e.delay, func() { e.revert(tool) })
}

// RevertPending reports whether a one-shot revert is scheduled.
func (e *Engine) RevertPending() bool { return e.pending != nil }

func (e *Engine) revert(from Tool) {
	e.pending = nil
	if e.tool != from {
		return
	}
	e.SetTool(DefaultTool)
}

func (e *Engine) stopRevert() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

// Selected returns the selected record, if any.
func (e *Engine) Selected() (annotation.Ref, bool) {
	if e.selected == nil {
		return annotation.Ref{}, false
	}
	return *e.selected, true
}

// Select makes ref the only selected record.
func (e *Engine) Select(ref annotation.Ref) error {
	_, r, ok := e.store.Find(ref)
	if !ok {
		return fmt.Errorf("select %s: %w", ref, annotation.ErrNotFound)
	}
	if r.PageNum() != e.page {
		return fmt.Errorf("select %s: %w", ref, ErrOffPage)
	}
	e.selected = &ref
	return nil
}

func (e *Engine) Deselect() { e.selected = nil }

// HitTest finds the topmost record on the current page under display point p
// among the collections routed to the current tool.
func (e *Engine) HitTest(p coords.Point) (annotation.Ref, bool) {
	for _, col := range e.Routing().Collections() {
		list := e.store.Get(col)
		if col == annotation.Annotations {
			list = shapeHitOrder(list)
		}
		for i := len(list) - 1; i >= 0; i-- {
			r := list[i]
			if r.PageNum() == e.page && r.HitTest(p, e.scale) {
				return annotation.RefOf(r), true
			}
		}
	}
	return annotation.Ref{}, false
}

// shapeHitOrder arranges the shared shape list the way export layers it
// (drawings, then rectangles, then circles) so the reverse scan sees the
// topmost shape first.
func shapeHitOrder(list []annotation.Record) []annotation.Record {
	out := make([]annotation.Record, 0, len(list))
	for _, k := range []annotation.Kind{annotation.KindDrawing, annotation.KindRectangle, annotation.KindCircle} {
		for _, r := range list {
			if r.Kind() == k {
				out = append(out, r)
			}
		}
	}
	return out
}

// HandleAt returns the resize handle of the selected record under display
// point p.
func (e *Engine) HandleAt(p coords.Point) (Handle, bool) {
	ref, ok := e.Selected()
	if !ok {
		return "", false
	}
	_, r, ok := e.store.Find(ref)
	if !ok {
		return "", false
	}
	rs, ok := r.(annotation.Resizable)
	if !ok {
		return "", false
	}
	return HandleAt(rs.Frame().ToScreen(e.scale), p)
}

// Active reports whether a drag or resize is in progress.
func (e *Engine) Active() bool { return e.active != nil }

func (e *Engine) begin(m mode, ref annotation.Ref, h Handle, p coords.Point) error {
	if e.active != nil {
		return ErrBusy
	}
	_, r, ok := e.store.Find(ref)
	if !ok {
		return fmt.Errorf("%s: %w", ref, annotation.ErrNotFound)
	}
	if r.PageNum() != e.page {
		return fmt.Errorf("%s: %w", ref, ErrOffPage)
	}
	if m == modeResize {
		if _, ok := r.(annotation.Resizable); !ok {
			return fmt.Errorf("%s: %w", r.Kind(), ErrNotResizable)
		}
	}
	e.active = &manipulation{mode: m, ref: ref, handle: h, start: p, initial: r, current: r.Clone()}
	e.selected = &ref
	return nil
}

// BeginDrag starts moving ref from display point p.
func (e *Engine) BeginDrag(ref annotation.Ref, p coords.Point) error {
	return e.begin(modeDrag, ref, "", p)
}

// BeginResize starts resizing ref by handle h from display point p.
func (e *Engine) BeginResize(ref annotation.Ref, h Handle, p coords.Point) error {
	return e.begin(modeResize, ref, h, p)
}

// Move applies the pointer position p to the active manipulation. The delta
// from the gesture start is converted to normalized units and applied to the
// initial geometry, so repeated moves never accumulate rounding.
func (e *Engine) Move(p coords.Point) error {
	m := e.active
	if m == nil {
		return ErrIdle
	}
	d := p.Sub(m.start).ToNormalized(e.scale)
	next := m.initial.Clone()
	switch m.mode {
	case modeDrag:
		next.Translate(d.X, d.Y)
	case modeResize:
		resize(next.(annotation.Resizable), m.initial.(annotation.Resizable), m.handle, d)
	}
	i, _, ok := e.store.Find(m.ref)
	if !ok {
		e.active = nil
		return fmt.Errorf("%s: %w", m.ref, annotation.ErrNotFound)
	}
	if err := e.store.Replace(m.ref.Collection, i, next); err != nil {
		return err
	}
	m.current = next
	return nil
}

func resize(next, initial annotation.Resizable, h Handle, d coords.Point) {
	minW, minH := next.MinSize()
	init := initial.Frame()
	var frame coords.Rect
	if _, ok := next.(annotation.Square); ok {
		frame = ResizeSquare(init, h, d.X, d.Y, math.Max(minW, minH))
	} else {
		frame = ResizeFrame(init, h, d.X, d.Y, minW, minH)
	}
	next.SetFrame(frame)
	if o, ok := next.(*annotation.TextOverlay); ok && h.Corner() {
		o.Font.Size = ScaleFont(initial.(*annotation.TextOverlay).Font.Size, init, frame)
	}
}

// End commits the active manipulation and returns the recorded entry. A
// gesture that left the record unchanged records nothing and returns nil.
func (e *Engine) End() (history.Entry, error) {
	m := e.active
	if m == nil {
		return nil, ErrIdle
	}
	e.active = nil
	if m.current.Bounds() == m.initial.Bounds() && !fontChanged(m.initial, m.current) {
		return nil, nil
	}
	var en history.Entry
	if m.mode == modeDrag {
		en = history.ForMove(m.initial, m.current)
	} else {
		en = history.ForResize(m.initial, m.current)
	}
	if e.recorder != nil {
		e.recorder.Record(en)
	}
	return en, nil
}

func fontChanged(a, b annotation.Record) bool {
	oa, ok := a.(*annotation.TextOverlay)
	if !ok {
		return false
	}
	return oa.Font.Size != b.(*annotation.TextOverlay).Font.Size
}

// Cancel aborts the active manipulation and restores the initial geometry
// without recording anything.
func (e *Engine) Cancel() {
	m := e.active
	if m == nil {
		return
	}
	e.active = nil
	if i, _, ok := e.store.Find(m.ref); ok {
		if err := e.store.Replace(m.ref.Collection, i, m.initial); err != nil {
			e.logger.Warn("cancel restore failed", observability.String("target", m.ref.String()), observability.Error("error", err))
		}
	}
}
