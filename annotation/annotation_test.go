package annotation

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/eventbus"
)

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"#E50914", Color{0xE5, 0x09, 0x14}, true},
		{"#fff", White, true},
		{"000000", Black, true},
		{"#12345", Color{}, false},
		{"#GG0000", Color{}, false},
		{"", Color{}, false},
	}
	for _, tc := range cases {
		got, err := ParseColor(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseColor(%q) err = %v", tc.in, err)
		}
		if err != nil && !errors.Is(err, ErrInvalid) {
			t.Fatalf("ParseColor(%q) error not ErrInvalid: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if MustColor("#e50914").Hex() != "#E50914" {
		t.Fatalf("hex round trip failed")
	}
}

func TestDashPattern(t *testing.T) {
	if got := Dashed.DashPattern(2); !reflect.DeepEqual(got, []float64{6, 4}) {
		t.Fatalf("dashed = %v", got)
	}
	if got := Dotted.DashPattern(2); !reflect.DeepEqual(got, []float64{2, 3}) {
		t.Fatalf("dotted = %v", got)
	}
	if Solid.DashPattern(2) != nil {
		t.Fatalf("solid has a pattern")
	}
}

func rect(id string, page int) *Rectangle {
	return &Rectangle{ID: id, Page: page, StartX: 50, StartY: 50, EndX: 150, EndY: 120,
		Color: MustColor("#E50914"), StrokeWidth: 3, Opacity: 1, LineStyle: Solid}
}

func TestStoreOrderAndSplice(t *testing.T) {
	bus := eventbus.New()
	rec := &eventbus.Recorder{}
	bus.Subscribe(eventbus.All, rec.Handle)
	s := NewStore(bus)

	for _, id := range []string{"a", "b", "c", "d"} {
		s.Add(rect(id, 1))
	}
	if _, err := s.RemoveAt(Annotations, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	var ids []string
	for _, r := range s.Get(Annotations) {
		ids = append(ids, r.Key().ID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "c", "d"}) {
		t.Fatalf("order after splice = %v", ids)
	}
	if n := s.RemoveWhere(Annotations, func(r Record) bool { return r.Key().ID != "c" }); n != 2 {
		t.Fatalf("RemoveWhere removed %d", n)
	}
	if err := s.Insert(Annotations, 0, rect("z", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := s.Get(Annotations)[0].Key().ID; got != "z" {
		t.Fatalf("insert position: %s", got)
	}
	topics := rec.Topics()
	if len(topics) != 7 {
		t.Fatalf("events = %v", topics)
	}
	for _, topic := range topics {
		if topic != "annotations:changed" {
			t.Fatalf("unexpected topic %q", topic)
		}
	}
	if _, err := s.RemoveAt(Annotations, 9); !errors.Is(err, ErrIndex) {
		t.Fatalf("out of range remove: %v", err)
	}
}

func TestStoreClones(t *testing.T) {
	s := NewStore(nil)
	d := &Drawing{ID: "d", Page: 1, Points: []coords.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, StrokeWidth: 2, Opacity: 1}
	s.Add(d)
	d.Points[0].X = 99
	got := s.Get(Annotations)[0].(*Drawing)
	if got.Points[0].X != 1 {
		t.Fatalf("store shares caller slice")
	}
	got.Translate(5, 5)
	if again := s.Get(Annotations)[0].(*Drawing); again.Points[0].X != 1 {
		t.Fatalf("Get result aliases store")
	}
}

func TestTextEditOriginalFixed(t *testing.T) {
	s := NewStore(nil)
	s.Add(&TextEdit{Page: 1, Index: 3, Text: "Hi", X: 30, Y: 700, OriginalX: 30, OriginalY: 700, Font: Font{Size: 12}})
	if err := s.UpdateAt(TextEdits, 0, func(r Record) { r.Translate(10, 0) }); err != nil {
		t.Fatalf("move: %v", err)
	}
	err := s.UpdateAt(TextEdits, 0, func(r Record) { r.(*TextEdit).OriginalX = 0 })
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("original moved: %v", err)
	}
	_, r, ok := s.Find(Ref{Collection: TextEdits, Key: Key{Page: 1, Index: 3}})
	if !ok {
		t.Fatalf("text edit not found by page/index")
	}
	te := r.(*TextEdit)
	if te.X != 40 || te.OriginalX != 30 || !te.Moved() {
		t.Fatalf("unexpected text edit %+v", te)
	}
}

func TestUpdateAtValidates(t *testing.T) {
	s := NewStore(nil)
	s.Add(&FillArea{ID: "f", Page: 1, X: 10, Y: 10, Width: 40, Height: 20, Color: White})
	err := s.UpdateAt(FillAreas, 0, func(r Record) { r.(*FillArea).Width = 0 })
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("zero width accepted: %v", err)
	}
	if got := s.Get(FillAreas)[0].(*FillArea).Width; got != 40 {
		t.Fatalf("width = %v after rejected update", got)
	}
	if err := s.UpdateAt(FillAreas, 0, func(r Record) { r.(*FillArea).Width = 60 }); err != nil {
		t.Fatalf("valid update: %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := NewStore(nil)
	s.Add(rect("a", 1))
	s.Add(&FillArea{ID: "f", Page: 2, X: 10, Y: 10, Width: 100, Height: 50, Color: White})
	snap := s.Snapshot()
	s.Reset()
	if s.Total() != 0 {
		t.Fatalf("reset left %d records", s.Total())
	}
	s.Restore(snap)
	if diff := cmp.Diff(snap, s.Snapshot()); diff != "" {
		t.Fatalf("restore mismatch (-want +got):\n%s", diff)
	}
	if got := s.OnPage(FillAreas, 2); len(got) != 1 || len(s.OnPage(FillAreas, 1)) != 0 {
		t.Fatalf("OnPage = %v", got)
	}
}

func TestHitTest(t *testing.T) {
	draw := &Drawing{ID: "d", Page: 1, Points: []coords.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}, StrokeWidth: 2}
	circle := &Circle{ID: "c", Page: 1, CenterX: 50, CenterY: 50, Radius: 20}
	box := rect("r", 1)
	fill := &FillArea{ID: "f", Page: 1, X: 10, Y: 10, Width: 100, Height: 50}

	cases := []struct {
		name  string
		r     Record
		p     coords.Point
		scale float64
		want  bool
	}{
		{"drawing near", draw, coords.Point{X: 50, Y: 12}, 1, true},
		{"drawing far", draw, coords.Point{X: 50, Y: 13}, 1, false},
		{"drawing zoomed", draw, coords.Point{X: 100, Y: 14}, 2, true},
		{"circle edge", circle, coords.Point{X: 75, Y: 50}, 1, true},
		{"circle out", circle, coords.Point{X: 76, Y: 50}, 1, false},
		{"rect pad", box, coords.Point{X: 160, Y: 60}, 1, true},
		{"rect out", box, coords.Point{X: 161, Y: 60}, 1, false},
		{"fill pad", fill, coords.Point{X: 5, Y: 5}, 1, true},
		{"fill out", fill, coords.Point{X: 4, Y: 30}, 1, false},
		{"fill zoomed", fill, coords.Point{X: 200, Y: 100}, 2, true},
	}
	for _, tc := range cases {
		if got := tc.r.HitTest(tc.p, tc.scale); got != tc.want {
			t.Fatalf("%s: hit = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	bad := []Record{
		&TextOverlay{ID: "o", Page: 1, Text: "  ", Width: 10, Height: 10, Font: Font{Size: 12}},
		&Rectangle{ID: "r", Page: 1, StrokeWidth: 1, Opacity: 1.5},
		&Stamp{ID: "s", Page: 1, Type: "star", Size: 20},
		&Patch{ID: "p", Page: 1, Width: 10, Height: 10, Opacity: 1},
		&Signature{ID: "g", Page: 0, Width: 10, Height: 10, Source: "x"},
	}
	for _, r := range bad {
		if err := r.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s validated: %v", r.Kind(), err)
		}
	}
	if err := rect("ok", 1).Validate(); err != nil {
		t.Fatalf("valid rectangle rejected: %v", err)
	}
}

func TestFrames(t *testing.T) {
	st := &Stamp{ID: "s", Page: 1, Type: StampCheck, X: 100, Y: 100, Size: 20}
	if st.Frame() != (coords.Rect{X: 90, Y: 90, Width: 20, Height: 20}) {
		t.Fatalf("stamp frame = %+v", st.Frame())
	}
	st.SetFrame(coords.Rect{X: 0, Y: 0, Width: 40, Height: 30})
	if st.Size != 30 || st.X != 20 || st.Y != 15 {
		t.Fatalf("stamp after SetFrame = %+v", st)
	}
	r := &Rectangle{StartX: 150, StartY: 120, EndX: 50, EndY: 50}
	r.SetFrame(r.Frame())
	if r.StartX != 50 || r.EndY != 120 {
		t.Fatalf("rectangle corners = %+v", r)
	}
}

func TestSequence(t *testing.T) {
	var q Sequence
	if a, b := q.Next(KindStamp), q.Next(KindPatch); a != "stamp-1" || b != "patch-2" {
		t.Fatalf("ids = %s, %s", a, b)
	}
}

func TestSetID(t *testing.T) {
	s := &Stamp{}
	if !SetID(s, "stamp-9") || s.ID != "stamp-9" {
		t.Fatalf("SetID(stamp) = %q", s.ID)
	}
	if SetID(&TextEdit{}, "x") {
		t.Fatalf("SetID(text edit) should report false")
	}
}
