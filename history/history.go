// Package history implements the two-stack undo/redo log shared by every
// annotation kind.
//
// The timeline is linear: recording a new action discards whatever could
// still be redone.
package history

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/observability"
)

// Engine owns the undo and redo stacks. It is not safe for concurrent use;
// the editor session serializes access.
type Engine struct {
	store    Store
	undo     []Entry
	redo     []Entry
	limit    int
	notifier notify.Notifier
	logger   observability.Logger
}

type Option func(*Engine)

// WithLimit caps the undo stack; the oldest entries are dropped first.
// Zero means unlimited.
func WithLimit(n int) Option { return func(e *Engine) { e.limit = n } }

func WithNotifier(n notify.Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLogger(l observability.Logger) Option { return func(e *Engine) { e.logger = l } }

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, notifier: notify.Nop{}, logger: observability.NopLogger{}}
	for _, o := range opts {
		o(e)
	}
	e.logger = observability.OrNop(e.logger)
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	return e
}

// Record pushes en onto the undo stack and clears the redo stack.
func (e *Engine) Record(en Entry) {
	e.undo = append(e.undo, en)
	if e.limit > 0 && len(e.undo) > e.limit {
		drop := len(e.undo) - e.limit
		e.undo = append(e.undo[:0:0], e.undo[drop:]...)
	}
	if len(e.redo) > 0 {
		e.logger.Debug("redo stack cleared", observability.Int("dropped", len(e.redo)))
	}
	e.redo = nil
	e.logger.Debug("history recorded", observability.String("kind", string(en.Kind())),
		observability.String("target", en.Target().String()))
}

// Undo reverts the newest entry. On an empty stack it shows an info notice
// and returns ErrNothingToUndo without touching the store.
func (e *Engine) Undo() (Entry, error) {
	if len(e.undo) == 0 {
		e.notifier.Notify("Nothing to undo", notify.Info)
		return nil, ErrNothingToUndo
	}
	en := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	if err := en.Undo(e.store); err != nil {
		return nil, e.fail("undo", en, err)
	}
	e.redo = append(e.redo, en)
	return en, nil
}

// Redo reapplies the newest undone entry.
func (e *Engine) Redo() (Entry, error) {
	if len(e.redo) == 0 {
		e.notifier.Notify("Nothing to redo", notify.Info)
		return nil, ErrNothingToRedo
	}
	en := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	if err := en.Redo(e.store); err != nil {
		return nil, e.fail("redo", en, err)
	}
	e.undo = append(e.undo, en)
	return en, nil
}

// fail drops en, which has already been popped, and reports the problem.
func (e *Engine) fail(op string, en Entry, err error) error {
	e.logger.Warn("history entry dropped",
		observability.String("op", op),
		observability.String("kind", string(en.Kind())),
		observability.String("target", en.Target().String()),
		observability.Error("error", err))
	e.notifier.Notify(fmt.Sprintf("Cannot %s %s", op, en.Kind()), notify.Warning)
	return fmt.Errorf("%s %s: %w", op, en.Kind(), err)
}

func (e *Engine) CanUndo() bool { return len(e.undo) > 0 }
func (e *Engine) CanRedo() bool { return len(e.redo) > 0 }
func (e *Engine) UndoLen() int  { return len(e.undo) }
func (e *Engine) RedoLen() int  { return len(e.redo) }

// Peek returns the entry Undo would revert next.
func (e *Engine) Peek() (Entry, bool) {
	if len(e.undo) == 0 {
		return nil, false
	}
	return e.undo[len(e.undo)-1], true
}

// Clear empties both stacks, as on a new document load.
func (e *Engine) Clear() {
	e.undo, e.redo = nil, nil
}

// IsEmpty reports whether err is one of the empty-stack sentinels.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrNothingToUndo) || errors.Is(err, ErrNothingToRedo)
}
