package layers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
)

func TestProject(t *testing.T) {
	s := annotation.NewStore(nil)
	s.Add(&annotation.Circle{ID: "c", Page: 1, CenterX: 10, CenterY: 10, Radius: 5, Color: annotation.Black})
	s.Add(&annotation.Rectangle{ID: "r", Page: 1, EndX: 10, EndY: 10, Color: annotation.White})
	s.Add(&annotation.TextOverlay{ID: "o", Page: 1, Text: "a very long overlay text that keeps going", Width: 50, Height: 20})
	s.Add(&annotation.Stamp{ID: "s", Page: 1, Type: annotation.StampDate, Text: "2026-10-19", X: 5, Y: 5, Size: 10})
	s.Add(&annotation.Patch{ID: "p", Page: 2, Opacity: 0.5})
	s.Add(&annotation.TextEdit{Page: 1, Index: 0, Text: "Hello"})

	sel := annotation.Ref{Collection: annotation.Annotations, Key: annotation.Key{ID: "r"}}
	got := Project(s, 1, &sel)

	var labels []string
	for _, l := range got {
		labels = append(labels, l.Label)
	}
	want := []string{
		"Stamp: 2026-10-19",
		"Text: a very long overlay tex…",
		"Circle #000000",
		"Rectangle #FFFFFF",
		"Edit: Hello",
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Fatalf("labels (-want +got):\n%s", diff)
	}
	for _, l := range got {
		if l.Selected != (l.Ref == sel) {
			t.Fatalf("selected flag wrong on %s", l.Ref)
		}
	}
	if got[2].Bounds != (coords.Rect{X: 5, Y: 5, Width: 10, Height: 10}) {
		t.Fatalf("circle bounds = %+v", got[2].Bounds)
	}
	if p2 := Project(s, 2, nil); len(p2) != 1 || p2[0].Label != "Patch 50%" {
		t.Fatalf("page 2 = %+v", p2)
	}
}
