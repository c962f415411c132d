package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/flatten"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/sessionfile"
)

// Save flattens the current edits into a new PDF. The snapshot is taken
// under the session lock and the export runs outside it. A failed save
// shows one error notice and leaves the session unchanged. With a storage
// collaborator the result is written back as a new revision.
func (s *Session) Save(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	in := flatten.Input{
		Original: s.original,
		Records:  s.store.Snapshot(),
		Licensed: s.licensed,
	}
	name, rev := s.name, s.rev
	s.unlock()

	out, err := s.exporter.Export(ctx, in)
	if err != nil {
		s.log.Error("save failed", observability.String("name", name), observability.Error("error", err))
		s.notifier.Notify(saveFailure(err), notify.Error)
		return nil, fmt.Errorf("save: %w", err)
	}
	if s.storage != nil {
		if err := s.storage.Update(ctx, out); err != nil {
			s.log.Error("saved document not stored", observability.String("name", name), observability.Error("error", err))
			s.notifier.Notify("Save failed: the document could not be stored", notify.Error)
			return nil, fmt.Errorf("save: %w", err)
		}
	}

	s.mu.Lock()
	if s.rev == rev {
		s.dirty = false
	}
	s.unlock()
	s.log.Info("document saved", observability.String("name", name), observability.Int("bytes", len(out)))
	s.notifier.Notify("Document saved", notify.Success)
	s.bus.Publish(TopicSaved, name)
	return out, nil
}

func saveFailure(err error) string {
	switch {
	case errors.Is(err, flatten.ErrEmptyDocument):
		return "Save failed: no document loaded"
	case errors.Is(err, flatten.ErrExportInProgress):
		return "Save failed: another save is in progress"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Save cancelled"
	default:
		return "Save failed"
	}
}

// SessionFile returns the current edits as a session file.
func (s *Session) SessionFile() *sessionfile.File {
	s.mu.Lock()
	defer s.unlock()
	f := sessionfile.FromSnapshot(s.store.Snapshot())
	f.Licensed = s.licensed
	return f
}

// ApplySession adds every edit of f to the current document as one
// recorded action per edit. All edits are checked first; when one is
// rejected nothing is added.
func (s *Session) ApplySession(f *sessionfile.File) error {
	recs, err := f.Records()
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrValidation, err))
	}
	s.mu.Lock()
	defer s.unlock()
	seen := make(map[annotation.Ref]bool, len(recs))
	for _, r := range recs {
		if err := s.check(r); err != nil {
			return s.fail(err)
		}
		ref := annotation.RefOf(r)
		if seen[ref] {
			return s.fail(invalid("%s appears twice", ref))
		}
		seen[ref] = true
	}
	for _, r := range recs {
		s.insert(r)
	}
	return nil
}
