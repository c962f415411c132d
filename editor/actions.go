package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/history"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/observability"
)

var kindLabels = map[annotation.Kind]string{
	annotation.KindTextEdit:    "Text edit",
	annotation.KindTextOverlay: "Text",
	annotation.KindDrawing:     "Drawing",
	annotation.KindRectangle:   "Rectangle",
	annotation.KindCircle:      "Circle",
	annotation.KindFillArea:    "Fill area",
	annotation.KindSignature:   "Signature",
	annotation.KindStamp:       "Stamp",
	annotation.KindPatch:       "Patch",
}

// commit records e and marks the session dirty.
func (s *Session) commit(e history.Entry) {
	s.hist.Record(e)
	s.dirty = true
	s.rev++
}

// fail shows the notice for err and returns it. Validation problems are
// warnings; a missing document is an error.
func (s *Session) fail(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		s.notifier.Notify(strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "), notify.Warning)
	case errors.Is(err, ErrNoDocument):
		s.notifier.Notify("No document loaded", notify.Error)
	case errors.Is(err, annotation.ErrNotFound):
		s.notifier.Notify("The selected item no longer exists", notify.Warning)
	}
	return err
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Add validates r and appends it to its collection, recording the matching
// creation entry. Records without an ID get one.
func (s *Session) Add(r annotation.Record) (annotation.Ref, error) {
	s.mu.Lock()
	defer s.unlock()
	return s.add(r.Clone())
}

func (s *Session) add(r annotation.Record) (annotation.Ref, error) {
	if err := s.check(r); err != nil {
		return annotation.Ref{}, s.fail(err)
	}
	return s.insert(r), nil
}

// check reports whether r can be added: a document is loaded, the page
// exists, r validates and its key is free. Records without an ID get one.
func (s *Session) check(r annotation.Record) error {
	if err := s.requireDocument(); err != nil {
		return err
	}
	if p := r.PageNum(); p < 1 || p > len(s.pages) {
		return invalid("page %d out of range", p)
	}
	if r.Kind() != annotation.KindTextEdit && r.Key().ID == "" {
		annotation.SetID(r, s.nextID(r))
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	ref := annotation.RefOf(r)
	if _, _, ok := s.store.Find(ref); ok {
		return invalid("%s already exists", ref)
	}
	return nil
}

// insert stores a checked record and records its creation.
func (s *Session) insert(r annotation.Record) annotation.Ref {
	ref := annotation.RefOf(r)
	idx := s.store.Add(r)
	s.commit(history.ForAdd(r, idx))
	s.log.Debug("record added", observability.String("ref", ref.String()), observability.Int("page", r.PageNum()))
	s.notifier.Notify(kindLabels[r.Kind()]+" added", notify.Success)
	return ref
}

func (s *Session) nextID(r annotation.Record) string {
	for {
		id := s.ids.Next(r.Kind())
		if _, _, taken := s.store.Find(annotation.Ref{Collection: r.Collection(), Key: annotation.Key{ID: id}}); !taken {
			return id
		}
	}
}

// EditText creates or updates the replacement of one original text run.
// On update the original position and size of the run are kept from the
// first edit.
func (s *Session) EditText(te *annotation.TextEdit) error {
	s.mu.Lock()
	defer s.unlock()
	next := te.Clone().(*annotation.TextEdit)
	i, prev, ok := s.store.Find(annotation.RefOf(next))
	if !ok {
		_, err := s.add(next)
		return err
	}
	if err := s.requireDocument(); err != nil {
		return s.fail(err)
	}
	p := prev.(*annotation.TextEdit)
	next.OriginalX, next.OriginalY = p.OriginalX, p.OriginalY
	next.OriginalText = p.OriginalText
	next.OriginalWidth, next.OriginalHeight = p.OriginalWidth, p.OriginalHeight
	if err := next.Validate(); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrValidation, err))
	}
	if err := s.store.Replace(annotation.TextEdits, i, next); err != nil {
		return s.fail(err)
	}
	s.commit(history.TextEditUpdate{Changed: history.Changed{Before: prev, After: next.Clone()}})
	return nil
}

// change applies fn to a copy of ref's record, stores the result and
// records entry(before, after).
func (s *Session) change(ref annotation.Ref, fn func(annotation.Record) error, entry func(before, after annotation.Record) history.Entry) error {
	if err := s.requireDocument(); err != nil {
		return s.fail(err)
	}
	i, before, ok := s.store.Find(ref)
	if !ok {
		return s.fail(fmt.Errorf("%s: %w", ref, annotation.ErrNotFound))
	}
	after := before.Clone()
	if err := fn(after); err != nil {
		return s.fail(err)
	}
	if err := after.Validate(); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrValidation, err))
	}
	if err := s.store.Replace(ref.Collection, i, after); err != nil {
		return s.fail(err)
	}
	s.commit(entry(before, after))
	return nil
}

func changed(before, after annotation.Record) history.Changed {
	return history.Changed{Before: before.Clone(), After: after.Clone()}
}

func overlayRef(id string) annotation.Ref {
	return annotation.Ref{Collection: annotation.TextOverlays, Key: annotation.Key{ID: id}}
}

// EditOverlay changes the text, font and color of a text overlay.
func (s *Session) EditOverlay(id, text string, font annotation.Font, color annotation.Color) error {
	s.mu.Lock()
	defer s.unlock()
	if strings.TrimSpace(text) == "" {
		return s.fail(invalid("text is empty"))
	}
	return s.change(overlayRef(id), func(r annotation.Record) error {
		o := r.(*annotation.TextOverlay)
		o.Text, o.Font, o.Color = text, font, color
		return nil
	}, func(b, a annotation.Record) history.Entry {
		return history.TextOverlayEdit{Changed: changed(b, a)}
	})
}

// SetFillColor recolors a fill area. color is #RRGGBB or #RGB.
func (s *Session) SetFillColor(id, color string) error {
	s.mu.Lock()
	defer s.unlock()
	c, err := annotation.ParseColor(color)
	if err != nil {
		return s.fail(invalid("invalid color %q", color))
	}
	ref := annotation.Ref{Collection: annotation.FillAreas, Key: annotation.Key{ID: id}}
	return s.change(ref, func(r annotation.Record) error {
		r.(*annotation.FillArea).Color = c
		return nil
	}, func(b, a annotation.Record) history.Entry {
		return history.FillColorChange{Changed: changed(b, a)}
	})
}

// SetPatchOpacity changes the opacity of a patch. opacity must be in [0, 1].
func (s *Session) SetPatchOpacity(id string, opacity float64) error {
	s.mu.Lock()
	defer s.unlock()
	if math.IsNaN(opacity) || opacity < 0 || opacity > 1 {
		return s.fail(invalid("opacity %v outside [0, 1]", opacity))
	}
	ref := annotation.Ref{Collection: annotation.Patches, Key: annotation.Key{ID: id}}
	return s.change(ref, func(r annotation.Record) error {
		r.(*annotation.Patch).Opacity = opacity
		return nil
	}, func(b, a annotation.Record) history.Entry {
		return history.PatchOpacity{Changed: changed(b, a)}
	})
}

// MoveBy translates ref by a normalized delta, as a keyboard nudge does.
func (s *Session) MoveBy(ref annotation.Ref, dx, dy float64) error {
	s.mu.Lock()
	defer s.unlock()
	if dx == 0 && dy == 0 {
		return nil
	}
	return s.change(ref, func(r annotation.Record) error {
		r.Translate(dx, dy)
		return nil
	}, history.ForMove)
}

// Resize sets the normalized frame of a resizable record. Sizes below the
// record's floor are clamped with the top-left corner anchored.
func (s *Session) Resize(ref annotation.Ref, frame coords.Rect) error {
	s.mu.Lock()
	defer s.unlock()
	return s.change(ref, func(r annotation.Record) error {
		rs, ok := r.(annotation.Resizable)
		if !ok {
			return invalid("%s cannot be resized", r.Kind())
		}
		f := frame.Canon()
		minW, minH := rs.MinSize()
		f.Width = math.Max(f.Width, minW)
		f.Height = math.Max(f.Height, minH)
		rs.SetFrame(f)
		return nil
	}, history.ForResize)
}

// Delete removes ref after the user confirms.
func (s *Session) Delete(ctx context.Context, ref annotation.Ref) error {
	s.mu.Lock()
	if err := s.requireDocument(); err != nil {
		s.unlock()
		return s.fail(err)
	}
	_, r, ok := s.store.Find(ref)
	gen := s.gen
	s.unlock()
	if !ok {
		return s.fail(fmt.Errorf("%s: %w", ref, annotation.ErrNotFound))
	}
	label := kindLabels[r.Kind()]
	yes, err := s.ask(ctx, fmt.Sprintf("Delete this %s?", strings.ToLower(label)))
	if err != nil {
		return err
	}
	if !yes {
		return ErrDeclined
	}

	s.mu.Lock()
	defer s.unlock()
	if s.gen != gen {
		return s.fail(fmt.Errorf("%s: %w", ref, annotation.ErrNotFound))
	}
	i, r, ok := s.store.Find(ref)
	if !ok {
		return s.fail(fmt.Errorf("%s: %w", ref, annotation.ErrNotFound))
	}
	if sel, ok := s.sel.Selected(); ok && sel == ref {
		s.sel.Cancel()
		s.sel.Deselect()
	}
	if _, err := s.store.RemoveAt(ref.Collection, i); err != nil {
		return s.fail(err)
	}
	s.commit(history.ForDelete(r, i))
	s.notifier.Notify(label+" deleted", notify.Success)
	return nil
}

// DeleteSelected deletes the selected record.
func (s *Session) DeleteSelected(ctx context.Context) error {
	ref, ok := s.Selected()
	if !ok {
		return s.fail(invalid("nothing selected"))
	}
	return s.Delete(ctx, ref)
}

// Undo reverts the newest action. An active gesture is aborted first. On an
// empty stack the store is untouched and history.ErrNothingToUndo returned.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.unlock()
	return s.step(s.hist.Undo)
}

// Redo reapplies the newest undone action.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.unlock()
	return s.step(s.hist.Redo)
}

func (s *Session) step(op func() (history.Entry, error)) error {
	s.gesture = nil
	s.sel.Cancel()
	_, err := op()
	if err != nil && history.IsEmpty(err) {
		return err
	}
	if sel, ok := s.sel.Selected(); ok {
		if _, _, found := s.store.Find(sel); !found {
			s.sel.Deselect()
		}
	}
	if err != nil {
		return err
	}
	s.dirty = true
	s.rev++
	return nil
}
