package history

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfedit/annotation"
)

var (
	// ErrTargetMissing is returned when the record an entry refers to is gone.
	ErrTargetMissing = errors.New("history: target record missing")
	// ErrTargetExists is returned when re-adding a record whose key is taken.
	ErrTargetExists  = errors.New("history: target record already present")
	ErrNothingToUndo = errors.New("history: nothing to undo")
	ErrNothingToRedo = errors.New("history: nothing to redo")
)

type Kind string

const (
	KindAnnotation       Kind = "annotation"
	KindSignature        Kind = "signature"
	KindTextEditCreate   Kind = "textEditCreate"
	KindTextEditUpdate   Kind = "textEditUpdate"
	KindTextMove         Kind = "textMove"
	KindRemoveArea       Kind = "removeArea"
	KindTextOverlay      Kind = "textOverlay"
	KindAnnotationMove   Kind = "annotationMove"
	KindFillMove         Kind = "fillMove"
	KindFillResize       Kind = "fillResize"
	KindFillColorChange  Kind = "fillColorChange"
	KindStamp            Kind = "stamp"
	KindStampMove        Kind = "stampMove"
	KindStampResize      Kind = "stampResize"
	KindStampDelete      Kind = "stampDelete"
	KindPatch            Kind = "patch"
	KindPatchMove        Kind = "patchMove"
	KindPatchResize      Kind = "patchResize"
	KindPatchDelete      Kind = "patchDelete"
	KindPatchOpacity     Kind = "patchOpacity"
	KindAnnotationResize Kind = "annotationResize"
	KindAnnotationDelete Kind = "annotationDelete"
	KindTextOverlayEdit  Kind = "textOverlayEdit"
)

// Store is the part of annotation.Store that entries act on.
type Store interface {
	Find(ref annotation.Ref) (int, annotation.Record, bool)
	Len(col annotation.Collection) int
	Insert(col annotation.Collection, i int, r annotation.Record) error
	RemoveAt(col annotation.Collection, i int) (annotation.Record, error)
	Replace(col annotation.Collection, i int, r annotation.Record) error
}

// Entry is one recorded user action. Undo restores the state before the
// action; Redo reapplies it.
type Entry interface {
	Kind() Kind
	Target() annotation.Ref
	Undo(s Store) error
	Redo(s Store) error
	entry()
}

// Added records a record appearing at Index of its collection.
type Added struct {
	Record annotation.Record
	Index  int
}

func (a Added) Target() annotation.Ref { return annotation.RefOf(a.Record) }

func (a Added) Undo(s Store) error { return remove(s, a.Target()) }

func (a Added) Redo(s Store) error { return insert(s, a.Record, a.Index) }

// Removed records a record deleted from Index of its collection.
type Removed struct {
	Record annotation.Record
	Index  int
}

func (r Removed) Target() annotation.Ref { return annotation.RefOf(r.Record) }

func (r Removed) Undo(s Store) error { return insert(s, r.Record, r.Index) }

func (r Removed) Redo(s Store) error { return remove(s, r.Target()) }

// Changed records a record going from Before to After in place.
type Changed struct {
	Before, After annotation.Record
}

func (c Changed) Target() annotation.Ref { return annotation.RefOf(c.Before) }

func (c Changed) Undo(s Store) error { return replace(s, c.Before) }

func (c Changed) Redo(s Store) error { return replace(s, c.After) }

func remove(s Store, ref annotation.Ref) error {
	i, _, ok := s.Find(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetMissing, ref)
	}
	_, err := s.RemoveAt(ref.Collection, i)
	return err
}

func insert(s Store, r annotation.Record, at int) error {
	ref := annotation.RefOf(r)
	if _, _, ok := s.Find(ref); ok {
		return fmt.Errorf("%w: %s", ErrTargetExists, ref)
	}
	if n := s.Len(ref.Collection); at > n || at < 0 {
		at = n
	}
	return s.Insert(ref.Collection, at, r)
}

func replace(s Store, r annotation.Record) error {
	ref := annotation.RefOf(r)
	i, _, ok := s.Find(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetMissing, ref)
	}
	return s.Replace(ref.Collection, i, r)
}

type (
	Annotation       struct{ Added }
	Signature        struct{ Added }
	TextEditCreate   struct{ Added }
	TextEditUpdate   struct{ Changed }
	TextMove         struct{ Changed }
	RemoveArea       struct{ Added }
	TextOverlay      struct{ Added }
	AnnotationMove   struct{ Changed }
	FillMove         struct{ Changed }
	FillResize       struct{ Changed }
	FillColorChange  struct{ Changed }
	Stamp            struct{ Added }
	StampMove        struct{ Changed }
	StampResize      struct{ Changed }
	StampDelete      struct{ Removed }
	Patch            struct{ Added }
	PatchMove        struct{ Changed }
	PatchResize      struct{ Changed }
	PatchDelete      struct{ Removed }
	PatchOpacity     struct{ Changed }
	AnnotationResize struct{ Changed }
	AnnotationDelete struct{ Removed }
	TextOverlayEdit  struct{ Changed }
)

var (
	_ Entry = Annotation{}
	_ Entry = Signature{}
	_ Entry = TextEditCreate{}
	_ Entry = TextEditUpdate{}
	_ Entry = TextMove{}
	_ Entry = RemoveArea{}
	_ Entry = TextOverlay{}
	_ Entry = AnnotationMove{}
	_ Entry = FillMove{}
	_ Entry = FillResize{}
	_ Entry = FillColorChange{}
	_ Entry = Stamp{}
	_ Entry = StampMove{}
	_ Entry = StampResize{}
	_ Entry = StampDelete{}
	_ Entry = Patch{}
	_ Entry = PatchMove{}
	_ Entry = PatchResize{}
	_ Entry = PatchDelete{}
	_ Entry = PatchOpacity{}
	_ Entry = AnnotationResize{}
	_ Entry = AnnotationDelete{}
	_ Entry = TextOverlayEdit{}
)

func (Annotation) Kind() Kind       { return KindAnnotation }
func (Signature) Kind() Kind        { return KindSignature }
func (TextEditCreate) Kind() Kind   { return KindTextEditCreate }
func (TextEditUpdate) Kind() Kind   { return KindTextEditUpdate }
func (TextMove) Kind() Kind         { return KindTextMove }
func (RemoveArea) Kind() Kind       { return KindRemoveArea }
func (TextOverlay) Kind() Kind      { return KindTextOverlay }
func (AnnotationMove) Kind() Kind   { return KindAnnotationMove }
func (FillMove) Kind() Kind         { return KindFillMove }
func (FillResize) Kind() Kind       { return KindFillResize }
func (FillColorChange) Kind() Kind  { return KindFillColorChange }
func (Stamp) Kind() Kind            { return KindStamp }
func (StampMove) Kind() Kind        { return KindStampMove }
func (StampResize) Kind() Kind      { return KindStampResize }
func (StampDelete) Kind() Kind      { return KindStampDelete }
func (Patch) Kind() Kind            { return KindPatch }
func (PatchMove) Kind() Kind        { return KindPatchMove }
func (PatchResize) Kind() Kind      { return KindPatchResize }
func (PatchDelete) Kind() Kind      { return KindPatchDelete }
func (PatchOpacity) Kind() Kind     { return KindPatchOpacity }
func (AnnotationResize) Kind() Kind { return KindAnnotationResize }
func (AnnotationDelete) Kind() Kind { return KindAnnotationDelete }
func (TextOverlayEdit) Kind() Kind  { return KindTextOverlayEdit }

func (Annotation) entry()       {}
func (Signature) entry()        {}
func (TextEditCreate) entry()   {}
func (TextEditUpdate) entry()   {}
func (TextMove) entry()         {}
func (RemoveArea) entry()       {}
func (TextOverlay) entry()      {}
func (AnnotationMove) entry()   {}
func (FillMove) entry()         {}
func (FillResize) entry()       {}
func (FillColorChange) entry()  {}
func (Stamp) entry()            {}
func (StampMove) entry()        {}
func (StampResize) entry()      {}
func (StampDelete) entry()      {}
func (Patch) entry()            {}
func (PatchMove) entry()        {}
func (PatchResize) entry()      {}
func (PatchDelete) entry()      {}
func (PatchOpacity) entry()     {}
func (AnnotationResize) entry() {}
func (AnnotationDelete) entry() {}
func (TextOverlayEdit) entry()  {}

// ForAdd picks the creation entry for r.
func ForAdd(r annotation.Record, index int) Entry {
	a := Added{Record: r.Clone(), Index: index}
	switch r.(type) {
	case *annotation.TextEdit:
		return TextEditCreate{a}
	case *annotation.TextOverlay:
		return TextOverlay{a}
	case *annotation.FillArea:
		return RemoveArea{a}
	case *annotation.Signature:
		return Signature{a}
	case *annotation.Stamp:
		return Stamp{a}
	case *annotation.Patch:
		return Patch{a}
	default:
		return Annotation{a}
	}
}

// ForMove picks the move entry for a record dragged from before to after.
func ForMove(before, after annotation.Record) Entry {
	c := Changed{Before: before.Clone(), After: after.Clone()}
	switch before.(type) {
	case *annotation.TextEdit:
		return TextMove{c}
	case *annotation.FillArea:
		return FillMove{c}
	case *annotation.Stamp:
		return StampMove{c}
	case *annotation.Patch:
		return PatchMove{c}
	default:
		return AnnotationMove{c}
	}
}

// ForResize picks the resize entry for a record resized from before to after.
func ForResize(before, after annotation.Record) Entry {
	c := Changed{Before: before.Clone(), After: after.Clone()}
	switch before.(type) {
	case *annotation.FillArea:
		return FillResize{c}
	case *annotation.Stamp:
		return StampResize{c}
	case *annotation.Patch:
		return PatchResize{c}
	default:
		return AnnotationResize{c}
	}
}

// ForDelete picks the deletion entry for r removed from index.
func ForDelete(r annotation.Record, index int) Entry {
	d := Removed{Record: r.Clone(), Index: index}
	switch r.(type) {
	case *annotation.Stamp:
		return StampDelete{d}
	case *annotation.Patch:
		return PatchDelete{d}
	default:
		return AnnotationDelete{d}
	}
}
