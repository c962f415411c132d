package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/eventbus"
	"github.com/wudi/pdfedit/history"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/selection"
)

var ctx = context.Background()

func overlay(x, y, w, h float64) *annotation.TextOverlay {
	return &annotation.TextOverlay{
		Page: 1, X: x, Y: y, Width: w, Height: h, Text: "note",
		Font: annotation.Font{Family: "Helvetica", Size: 14},
	}
}

func TestOverlayFollowsZoom(t *testing.T) {
	f := newFixture(t)
	ref, err := f.s.Add(overlay(100, 100, 200, 30))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.s.SetScale(2); err != nil {
		t.Fatalf("SetScale: %v", err)
	}
	got, err := f.s.ScreenBounds(ref)
	if err != nil {
		t.Fatalf("ScreenBounds: %v", err)
	}
	if want := (coords.Rect{X: 200, Y: 200, Width: 400, Height: 60}); got != want {
		t.Fatalf("screen bounds = %+v, want %+v", got, want)
	}
	r, _ := f.s.Record(ref)
	if b := r.Bounds(); b != (coords.Rect{X: 100, Y: 100, Width: 200, Height: 30}) {
		t.Fatalf("stored bounds changed: %+v", b)
	}
}

func TestRectangleUndoRedo(t *testing.T) {
	style := DefaultStyle
	style.Color = annotation.MustColor("#E50914")
	style.StrokeWidth = 3
	f := newFixture(t, WithStyle(style))
	f.s.SetTool(selection.Rectangle)

	if err := f.s.PointerDown(coords.Point{X: 50, Y: 50}); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	if err := f.s.PointerMove(coords.Point{X: 100, Y: 90}); err != nil {
		t.Fatalf("PointerMove: %v", err)
	}
	ref, err := f.s.PointerUp(ctx, coords.Point{X: 150, Y: 120})
	if err != nil {
		t.Fatalf("PointerUp: %v", err)
	}
	drawn, _ := f.s.Record(ref)

	if err := f.s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if n := len(f.s.Records(annotation.Annotations)); n != 0 {
		t.Fatalf("annotations after undo = %d, want 0", n)
	}
	if err := f.s.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	again, err := f.s.Record(ref)
	if err != nil {
		t.Fatalf("rectangle missing after redo: %v", err)
	}
	want := &annotation.Rectangle{
		ID: ref.Key.ID, Page: 1, StartX: 50, StartY: 50, EndX: 150, EndY: 120,
		Color: annotation.Color{R: 0xE5, G: 0x09, B: 0x14}, StrokeWidth: 3, Opacity: 1, LineStyle: annotation.Solid,
	}
	if diff := cmp.Diff(want, again); diff != "" {
		t.Fatalf("rectangle after redo (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(drawn, again); diff != "" {
		t.Fatalf("redo changed the rectangle (-drawn +redo):\n%s", diff)
	}
}

func TestFillAreaResizeFromCorner(t *testing.T) {
	f := newFixture(t)
	ref, err := f.s.Add(&annotation.FillArea{Page: 1, X: 10, Y: 10, Width: 100, Height: 50, Color: annotation.White})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	f.s.SetTool(selection.Fill)
	if err := f.s.Select(ref); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.s.PointerDown(coords.Point{X: 110, Y: 60}); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	if _, err := f.s.PointerUp(ctx, coords.Point{X: 130, Y: 80}); err != nil {
		t.Fatalf("PointerUp: %v", err)
	}
	r, _ := f.s.Record(ref)
	if got, want := r.Bounds(), (coords.Rect{X: 10, Y: 10, Width: 120, Height: 70}); got != want {
		t.Fatalf("fill bounds = %+v, want %+v", got, want)
	}
	if err := f.s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	r, _ = f.s.Record(ref)
	if got := r.Bounds(); got.Width != 100 || got.Height != 50 {
		t.Fatalf("undo resize left %+v", got)
	}
}

func TestOverlayCornerResizeScalesFont(t *testing.T) {
	f := newFixture(t)
	ref, err := f.s.Add(overlay(100, 100, 200, 40))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.s.Select(ref); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.s.PointerDown(coords.Point{X: 100, Y: 100}); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	if _, err := f.s.PointerUp(ctx, coords.Point{X: 0, Y: 80}); err != nil {
		t.Fatalf("PointerUp: %v", err)
	}
	r, _ := f.s.Record(ref)
	o := r.(*annotation.TextOverlay)
	if o.Width != 300 || o.Height != 60 {
		t.Fatalf("overlay size = %vx%v, want 300x60", o.Width, o.Height)
	}
	if o.Font.Size != 21 {
		t.Fatalf("font size = %v, want 21", o.Font.Size)
	}
	if fr := o.Frame(); fr.Right() != 300 || fr.Bottom() != 140 {
		t.Fatalf("opposite corner moved: %+v", fr)
	}
}

// allActions performs one action of every recorded kind.
func allActions(t *testing.T, f *fixture) {
	t.Helper()
	s := f.s
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	add := func(r annotation.Record) annotation.Ref {
		t.Helper()
		ref, err := s.Add(r)
		must(err)
		return ref
	}

	te := &annotation.TextEdit{Page: 1, Index: 2, OriginalText: "old", Text: "new",
		X: 30, Y: 700, OriginalX: 30, OriginalY: 700, OriginalWidth: 40, OriginalHeight: 12,
		Font: annotation.Font{Family: "Times", Size: 12}}
	must(s.EditText(te))
	te.Text = "newer"
	te.OriginalX = 999 // kept from the first edit
	must(s.EditText(te))
	teRef := annotation.RefOf(te)
	must(s.MoveBy(teRef, 5, 5))

	ov := add(overlay(10, 10, 200, 30))
	must(s.EditOverlay(ov.Key.ID, "edited", annotation.Font{Family: "Courier", Size: 10}, annotation.Black))
	must(s.MoveBy(ov, 3, 4))
	must(s.Resize(ov, coords.Rect{X: 13, Y: 14, Width: 10, Height: 10}))

	add(&annotation.Drawing{Page: 1, Points: []coords.Point{{X: 1, Y: 1}, {X: 9, Y: 9}}, StrokeWidth: 2, Opacity: 1})
	add(&annotation.Circle{Page: 1, CenterX: 300, CenterY: 300, Radius: 20, StrokeWidth: 1, Opacity: 0.5})
	fill := add(&annotation.FillArea{Page: 1, X: 50, Y: 50, Width: 40, Height: 40, Color: annotation.White})
	must(s.MoveBy(fill, 10, 0))
	must(s.Resize(fill, coords.Rect{X: 60, Y: 50, Width: 80, Height: 20}))
	must(s.SetFillColor(fill.Key.ID, "#000"))

	add(&annotation.Signature{Page: 2, X: 100, Y: 600, Width: 120, Height: 40, Source: "data:,sig"})
	st := add(&annotation.Stamp{Page: 1, Type: annotation.StampDate, X: 400, Y: 400, Size: 30, Text: "2026-01-02"})
	must(s.MoveBy(st, -10, 0))
	must(s.Resize(st, coords.Rect{X: 375, Y: 375, Width: 50, Height: 50}))

	p := add(&annotation.Patch{Page: 1, X: 200, Y: 200, Width: 30, Height: 30, Image: []byte("png"), Opacity: 1})
	must(s.MoveBy(p, 1, 1))
	must(s.Resize(p, coords.Rect{X: 201, Y: 201, Width: 60, Height: 60}))
	must(s.SetPatchOpacity(p.Key.ID, 0.4))
	must(s.Delete(ctx, p))
	must(s.Delete(ctx, st))
	must(s.Delete(ctx, ov))
}

func TestUndoRedoInverse(t *testing.T) {
	f := newFixture(t)
	initial := f.s.Snapshot()
	allActions(t, f)
	final := f.s.Snapshot()

	n := 0
	for f.s.CanUndo() {
		if err := f.s.Undo(); err != nil {
			t.Fatalf("Undo %d: %v", n, err)
		}
		n++
	}
	if diff := cmp.Diff(initial, f.s.Snapshot()); diff != "" {
		t.Fatalf("state after %d undos differs from initial (-want +got):\n%s", n, diff)
	}
	for f.s.CanRedo() {
		if err := f.s.Redo(); err != nil {
			t.Fatalf("Redo: %v", err)
		}
	}
	if diff := cmp.Diff(final, f.s.Snapshot()); diff != "" {
		t.Fatalf("state after redo differs (-want +got):\n%s", diff)
	}
}

func TestUndoRedoIdempotent(t *testing.T) {
	f := newFixture(t)
	allActions(t, f)
	for i := 0; f.s.CanUndo(); i++ {
		before := f.s.Snapshot()
		if err := f.s.Undo(); err != nil {
			t.Fatalf("Undo: %v", err)
		}
		if err := f.s.Redo(); err != nil {
			t.Fatalf("Redo: %v", err)
		}
		if diff := cmp.Diff(before, f.s.Snapshot()); diff != "" {
			t.Fatalf("step %d: undo+redo changed state (-want +got):\n%s", i, diff)
		}
		if err := f.s.Undo(); err != nil {
			t.Fatalf("Undo: %v", err)
		}
	}
}

func TestTextEditOriginalKept(t *testing.T) {
	f := newFixture(t)
	allActions(t, f)
	recs := f.s.Records(annotation.TextEdits)
	te := recs[0].(*annotation.TextEdit)
	if te.OriginalX != 30 || te.Text != "newer" || te.X != 35 {
		t.Fatalf("text edit = %+v", te)
	}
}

func TestEmptyHistory(t *testing.T) {
	f := newFixture(t)
	before := f.s.Snapshot()
	if err := f.s.Undo(); !errors.Is(err, history.ErrNothingToUndo) {
		t.Fatalf("Undo error = %v", err)
	}
	if n := f.lastNotice(t); n.Msg != "Nothing to undo" || n.Level != notify.Info {
		t.Fatalf("notice = %+v", n)
	}
	if err := f.s.Redo(); !errors.Is(err, history.ErrNothingToRedo) {
		t.Fatalf("Redo error = %v", err)
	}
	if diff := cmp.Diff(before, f.s.Snapshot()); diff != "" {
		t.Fatalf("store changed:\n%s", diff)
	}
}

func TestNewActionClearsRedo(t *testing.T) {
	f := newFixture(t)
	if _, err := f.s.Add(overlay(10, 10, 100, 30)); err != nil {
		t.Fatal(err)
	}
	if err := f.s.Undo(); err != nil {
		t.Fatal(err)
	}
	if !f.s.CanRedo() {
		t.Fatalf("redo should be available after undo")
	}
	if _, err := f.s.Add(overlay(20, 20, 100, 30)); err != nil {
		t.Fatal(err)
	}
	if f.s.CanRedo() {
		t.Fatalf("new action kept the redo stack")
	}
}

func TestValidationWarnings(t *testing.T) {
	f := newFixture(t)
	fill, _ := f.s.Add(&annotation.FillArea{Page: 1, X: 0, Y: 0, Width: 20, Height: 20})
	patch, _ := f.s.Add(&annotation.Patch{Page: 1, Width: 30, Height: 30, Image: []byte("x"), Opacity: 1})
	before := f.s.Snapshot()

	tests := []struct {
		name string
		run  func() error
	}{
		{"invalid color", func() error { return f.s.SetFillColor(fill.Key.ID, "red") }},
		{"opacity above one", func() error { return f.s.SetPatchOpacity(patch.Key.ID, 1.5) }},
		{"empty overlay", func() error {
			o := overlay(0, 0, 100, 30)
			o.Text = "  "
			_, err := f.s.Add(o)
			return err
		}},
		{"empty overlay edit", func() error {
			return f.s.EditOverlay("textOverlay-1", "", annotation.Font{Size: 12}, annotation.Black)
		}},
		{"page out of range", func() error {
			o := overlay(0, 0, 100, 30)
			o.Page = 9
			_, err := f.s.Add(o)
			return err
		}},
		{"duplicate id", func() error {
			_, err := f.s.Add(&annotation.FillArea{ID: fill.Key.ID, Page: 1, Width: 20, Height: 20})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.notices.Reset()
			if err := tt.run(); !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if n := f.lastNotice(t); n.Level != notify.Warning {
				t.Fatalf("notice level = %v, want warning", n.Level)
			}
		})
	}
	if diff := cmp.Diff(before, f.s.Snapshot()); diff != "" {
		t.Fatalf("rejected input changed state:\n%s", diff)
	}
}

func TestActionsNeedDocument(t *testing.T) {
	notices := &notify.Recorder{}
	s := NewSession(WithNotifier(notices))
	if _, err := s.Add(overlay(0, 0, 100, 30)); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Add error = %v", err)
	}
	if err := s.PointerDown(coords.Point{}); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("PointerDown error = %v", err)
	}
	if n, _ := notices.Last(); n.Level != notify.Error {
		t.Fatalf("notice = %+v", n)
	}
}

func TestDeleteConfirmation(t *testing.T) {
	f := newFixture(t)
	a, _ := f.s.Add(&annotation.Stamp{Page: 1, Type: annotation.StampX, X: 10, Y: 10, Size: 20})
	b, _ := f.s.Add(&annotation.Stamp{Page: 1, Type: annotation.StampDot, X: 50, Y: 10, Size: 20})

	f.confirm.Answer = false
	if err := f.s.Delete(ctx, a); !errors.Is(err, ErrDeclined) {
		t.Fatalf("declined delete error = %v", err)
	}
	if len(f.s.Records(annotation.Stamps)) != 2 {
		t.Fatalf("declined delete removed the stamp")
	}

	f.confirm.Answer = true
	if err := f.s.Select(a); err != nil {
		t.Fatal(err)
	}
	if err := f.s.DeleteSelected(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := f.s.Selected(); ok {
		t.Fatalf("deleted record still selected")
	}
	if len(f.confirm.asked) != 2 || f.confirm.asked[1] != "Delete this stamp?" {
		t.Fatalf("questions = %q", f.confirm.asked)
	}
	if err := f.s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	stamps := f.s.Records(annotation.Stamps)
	if len(stamps) != 2 || annotation.RefOf(stamps[0]) != a || annotation.RefOf(stamps[1]) != b {
		t.Fatalf("undo did not restore order: %v", stamps)
	}
}

func TestLoadResetsAndConfirmsDiscard(t *testing.T) {
	f := newFixture(t)
	if _, err := f.s.Add(overlay(0, 0, 100, 30)); err != nil {
		t.Fatal(err)
	}
	f.confirm.Answer = false
	if err := f.s.Load(ctx, []byte("%PDF-other"), "other.pdf"); !errors.Is(err, ErrDeclined) {
		t.Fatalf("Load error = %v, want ErrDeclined", err)
	}
	if f.s.Name() != "doc.pdf" || len(f.s.Records(annotation.TextOverlays)) != 1 {
		t.Fatalf("declined load changed the session")
	}

	f.confirm.Answer = true
	if err := f.s.Load(ctx, []byte("%PDF-other"), "other.pdf"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.s.Name() != "other.pdf" || f.s.Dirty() || f.s.CanUndo() || len(f.s.Records(annotation.TextOverlays)) != 0 {
		t.Fatalf("load did not reset the session")
	}
	if f.s.Tool() != selection.DefaultTool || f.s.Page() != 1 {
		t.Fatalf("tool %v page %d after load", f.s.Tool(), f.s.Page())
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	if err := f.s.Load(ctx, nil, "empty.pdf"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("empty load error = %v", err)
	}
	if err := f.s.Load(ctx, []byte("broken"), "broken.pdf"); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("broken load error = %v", err)
	}
	if f.s.Name() != "doc.pdf" {
		t.Fatalf("failed load replaced the document")
	}
}

func TestPages(t *testing.T) {
	f := newFixture(t)
	if f.s.NumPages() != 2 {
		t.Fatalf("NumPages = %d", f.s.NumPages())
	}
	if err := f.s.SetPage(3); !errors.Is(err, ErrPageRange) {
		t.Fatalf("SetPage(3) error = %v", err)
	}
	if err := f.s.SetScale(0); !errors.Is(err, ErrValidation) {
		t.Fatalf("SetScale(0) error = %v", err)
	}
	ref, _ := f.s.Add(overlay(10, 10, 100, 30))
	if err := f.s.SetPage(2); err != nil {
		t.Fatal(err)
	}
	if err := f.s.Select(ref); !errors.Is(err, selection.ErrOffPage) {
		t.Fatalf("select on other page error = %v", err)
	}
	if len(f.s.Layers()) != 0 {
		t.Fatalf("page 2 layers = %v", f.s.Layers())
	}
	size, err := f.s.PageSize(2)
	if err != nil || size != (PageSize{Width: 612, Height: 792}) {
		t.Fatalf("PageSize(2) = %+v, %v", size, err)
	}
}

func TestLayersMarkSelection(t *testing.T) {
	f := newFixture(t)
	a, _ := f.s.Add(overlay(10, 10, 100, 30))
	b, _ := f.s.Add(&annotation.Stamp{Page: 1, Type: annotation.StampCheck, X: 300, Y: 300, Size: 20})
	if err := f.s.Select(a); err != nil {
		t.Fatal(err)
	}
	ls := f.s.Layers()
	if len(ls) != 2 || ls[0].Ref != b || ls[1].Ref != a || !ls[1].Selected || ls[0].Selected {
		t.Fatalf("layers = %+v", ls)
	}
}

func TestEvents(t *testing.T) {
	bus := eventbus.New()
	rec := &eventbus.Recorder{}
	bus.Subscribe(eventbus.All, rec.Handle)
	f := newFixture(t, WithBus(bus))
	rec.Reset()

	if _, err := f.s.Add(overlay(10, 10, 100, 30)); err != nil {
		t.Fatal(err)
	}
	f.s.SetTool(selection.Draw)
	want := []string{annotation.TextOverlays.Topic(), TopicTool}
	if diff := cmp.Diff(want, rec.Topics()); diff != "" {
		t.Fatalf("topics (-want +got):\n%s", diff)
	}
}

func TestHandlersMayReadSession(t *testing.T) {
	f := newFixture(t)
	var layerCounts []int
	var tools []selection.Tool
	f.s.Bus().Subscribe(annotation.TextOverlays.Topic(), func(eventbus.Event) {
		layerCounts = append(layerCounts, len(f.s.Layers()))
	})
	f.s.Bus().Subscribe(TopicTool, func(eventbus.Event) {
		tools = append(tools, f.s.Tool())
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.s.Add(overlay(10, 10, 100, 30))
		if err == nil {
			err = f.s.Undo()
		}
		f.s.SetTool(selection.Draw)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session blocked while a handler read it")
	}
	if diff := cmp.Diff([]int{1, 0}, layerCounts); diff != "" {
		t.Fatalf("layer counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]selection.Tool{selection.Draw}, tools); diff != "" {
		t.Fatalf("tools (-want +got):\n%s", diff)
	}
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t, WithHistoryLimit(2))
	for i := 0; i < 4; i++ {
		if _, err := f.s.Add(overlay(float64(i*10), 0, 100, 30)); err != nil {
			t.Fatal(err)
		}
	}
	undos := 0
	for f.s.CanUndo() {
		if err := f.s.Undo(); err != nil {
			t.Fatal(err)
		}
		undos++
	}
	if undos != 2 || len(f.s.Records(annotation.TextOverlays)) != 2 {
		t.Fatalf("undos = %d, overlays left = %d", undos, len(f.s.Records(annotation.TextOverlays)))
	}
}

func TestOneShotDelayOption(t *testing.T) {
	f := newFixture(t, WithOneShotDelay(time.Second))
	f.s.SetTool(selection.AddText)
	if err := f.s.PointerDown(coords.Point{X: 300, Y: 300}); err != nil {
		t.Fatal(err)
	}
	f.sched.Advance(500 * time.Millisecond)
	if f.s.Tool() != selection.AddText {
		t.Fatalf("tool reverted before the configured delay")
	}
	f.sched.Advance(500 * time.Millisecond)
	if f.s.Tool() != selection.DefaultTool {
		t.Fatalf("tool = %v after delay", f.s.Tool())
	}
}
