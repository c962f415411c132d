package editor

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/eventbus"
	"github.com/wudi/pdfedit/flatten"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/pdfdoc"
	"github.com/wudi/pdfedit/sessionfile"
	"github.com/wudi/pdfedit/storage"
)

func newExporter(o *countingOpener) *flatten.Exporter {
	return flatten.NewExporter(flatten.WithOpener(o.open))
}

// samplePDF builds a one-page Letter document with a classic xref table.
func samplePDF() []byte {
	content := "BT /F1 12 Tf 30 80 Td (Hello) Tj ET"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	start := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, start)
	return b.Bytes()
}

func TestSaveWithoutDocument(t *testing.T) {
	opener := &countingOpener{pages: 1}
	notices := &notify.Recorder{}
	s := NewSession(WithNotifier(notices), WithOpener(opener.open),
		WithExporter(newExporter(opener)))

	_, err := s.Save(ctx)
	if !errors.Is(err, flatten.ErrEmptyDocument) {
		t.Fatalf("Save error = %v, want ErrEmptyDocument", err)
	}
	if n := opener.calls.Load(); n != 0 {
		t.Fatalf("document library opened %d times", n)
	}
	got := notices.Notices()
	if len(got) != 1 || got[0].Level != notify.Error {
		t.Fatalf("notices = %+v, want one error", got)
	}
}

func TestSaveFlattensAndStores(t *testing.T) {
	store := storage.NewMemory()
	bus := eventbus.New()
	saved := &eventbus.Recorder{}
	bus.Subscribe(TopicSaved, saved.Handle)
	notices := &notify.Recorder{}
	s := NewSession(WithStorage(store), WithBus(bus), WithNotifier(notices), WithLicensed(true))

	original := samplePDF()
	if err := s.Load(ctx, original, "sample.pdf"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Add(overlay(72, 72, 200, 30)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(&annotation.FillArea{Page: 1, X: 20, Y: 700, Width: 80, Height: 20, Color: annotation.White}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.Dirty() {
		t.Fatalf("session not dirty after edits")
	}

	out, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.HasPrefix(out, original) || len(out) <= len(original) {
		t.Fatalf("export is not an incremental update of the original")
	}
	doc, err := pdfdoc.Open(out)
	if err != nil {
		t.Fatalf("reopen export: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Fatalf("pages = %d", doc.NumPages())
	}
	if s.Dirty() {
		t.Fatalf("session dirty after save")
	}
	if !bytes.Equal(s.Original(), original) {
		t.Fatalf("save replaced the session original")
	}

	revs, err := store.Revisions(ctx)
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	if len(revs) != 2 || revs[1].Hash != storage.Hash(out) {
		t.Fatalf("revisions = %+v", revs)
	}
	if got := saved.Topics(); len(got) != 1 {
		t.Fatalf("saved events = %v", got)
	}
	if n, _ := notices.Last(); n.Msg != "Document saved" || n.Level != notify.Success {
		t.Fatalf("notice = %+v", n)
	}

	resumed := NewSession(WithStorage(store))
	if err := resumed.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !bytes.Equal(resumed.Original(), out) || resumed.Name() != "sample.pdf" {
		t.Fatalf("resume did not load the newest revision")
	}
}

// blockingOpener holds the first export inside the document library until
// release is closed.
type blockingOpener struct {
	entered chan struct{}
	release chan struct{}
}

func (o *blockingOpener) open(data []byte) (flatten.Document, error) {
	close(o.entered)
	<-o.release
	return nil, errors.New("released")
}

func TestConcurrentSave(t *testing.T) {
	bo := &blockingOpener{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, WithExporter(flatten.NewExporter(flatten.WithOpener(bo.open))))

	done := make(chan error, 1)
	go func() {
		_, err := f.s.Save(ctx)
		done <- err
	}()
	<-bo.entered

	if _, err := f.s.Save(ctx); !errors.Is(err, flatten.ErrExportInProgress) {
		t.Fatalf("second Save error = %v, want ErrExportInProgress", err)
	}
	close(bo.release)
	if err := <-done; err == nil {
		t.Fatalf("first Save succeeded with a failing document")
	}
	var errs int
	for _, n := range f.notices.Notices() {
		if n.Level == notify.Error {
			errs++
		}
	}
	if errs != 2 {
		t.Fatalf("error notices = %d, want one per failed save", errs)
	}
}

func TestSaveKeepsDirtyOnFailure(t *testing.T) {
	f := newFixture(t)
	f.exp.err = errors.New("disk full")
	if _, err := f.s.Add(overlay(10, 10, 100, 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.s.Save(ctx); err == nil {
		t.Fatalf("Save succeeded")
	}
	if !f.s.Dirty() {
		t.Fatalf("failed save cleared the dirty flag")
	}
	if n := f.lastNotice(t); n.Msg != "Save failed" || n.Level != notify.Error {
		t.Fatalf("notice = %+v", n)
	}
}

func TestSavePassesSnapshot(t *testing.T) {
	f := newFixture(t, WithLicensed(true))
	ref, _ := f.s.Add(overlay(10, 10, 100, 30))
	out, err := f.s.Save(ctx)
	if err != nil || string(out) != "%PDF-flattened" {
		t.Fatalf("Save = %q, %v", out, err)
	}
	in := f.exp.last
	if string(in.Original) != "%PDF-original" || !in.Licensed {
		t.Fatalf("export input = %q licensed=%v", in.Original, in.Licensed)
	}
	if got := in.Records[annotation.TextOverlays]; len(got) != 1 || annotation.RefOf(got[0]) != ref {
		t.Fatalf("exported overlays = %v", got)
	}
}

func TestSessionFileRoundTrip(t *testing.T) {
	f := newFixture(t)
	allActions(t, f)
	want := f.s.Snapshot()
	sf := f.s.SessionFile()

	g := newFixture(t)
	if err := g.s.ApplySession(sf); err != nil {
		t.Fatalf("ApplySession: %v", err)
	}
	if diff := cmp.Diff(want, g.s.Snapshot()); diff != "" {
		t.Fatalf("snapshot after apply (-want +got):\n%s", diff)
	}
	if !g.s.CanUndo() {
		t.Fatalf("applied edits are not undoable")
	}
}

func TestApplySessionRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	sf := &sessionfile.File{Version: sessionfile.Version, Edits: []sessionfile.Edit{
		{Type: string(annotation.KindFillArea), Page: 1, Width: 0, Height: 20},
	}}
	if err := f.s.ApplySession(sf); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if f.s.CanUndo() {
		t.Fatalf("rejected session recorded an entry")
	}
}

func TestApplySessionAllOrNothing(t *testing.T) {
	fill := func(id string, page int) sessionfile.Edit {
		return sessionfile.Edit{Type: string(annotation.KindFillArea), ID: id, Page: page, Width: 40, Height: 20}
	}
	tests := []struct {
		name  string
		edits []sessionfile.Edit
	}{
		{"page out of range", []sessionfile.Edit{fill("f1", 1), fill("f2", 9)}},
		{"duplicate id", []sessionfile.Edit{fill("f1", 1), fill("f1", 2)}},
		{"invalid last", []sessionfile.Edit{fill("f1", 1), fill("f2", 1), {Type: string(annotation.KindFillArea), Page: 1, Height: 20}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.s.Snapshot()
			sf := &sessionfile.File{Version: sessionfile.Version, Edits: tt.edits}
			if err := f.s.ApplySession(sf); !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if diff := cmp.Diff(before, f.s.Snapshot()); diff != "" {
				t.Fatalf("store changed (-before +after):\n%s", diff)
			}
			if f.s.Dirty() || f.s.CanUndo() {
				t.Fatalf("dirty = %v, canUndo = %v after a rejected session", f.s.Dirty(), f.s.CanUndo())
			}
		})
	}
}
