package annotation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wudi/pdfedit/eventbus"
)

type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpUpdate  Op = "update"
	OpRestore Op = "restore"
)

// Change is the payload of every "<collection>:changed" event.
type Change struct {
	Collection Collection
	Op         Op
	Index      int
	Key        Key
}

// Snapshot is a deep copy of every collection.
type Snapshot map[Collection][]Record

// Store keeps one insertion-ordered list per collection. Records go in and
// come out as clones, so only store methods change stored state.
type Store struct {
	mu   sync.RWMutex
	bus  eventbus.Bus
	cols map[Collection][]Record
}

// NewStore returns an empty store publishing on bus. A nil bus disables
// notifications.
func NewStore(bus eventbus.Bus) *Store {
	return &Store{bus: bus, cols: make(map[Collection][]Record)}
}

func (s *Store) publish(c Change) {
	if s.bus != nil {
		s.bus.Publish(c.Collection.Topic(), c)
	}
}

// Add appends r to its collection and returns its index.
func (s *Store) Add(r Record) int {
	col := r.Collection()
	s.mu.Lock()
	s.cols[col] = append(s.cols[col], r.Clone())
	idx := len(s.cols[col]) - 1
	s.mu.Unlock()
	s.publish(Change{Collection: col, Op: OpAdd, Index: idx, Key: r.Key()})
	return idx
}

// Insert places r at index i of col, shifting later records. i may equal Len.
func (s *Store) Insert(col Collection, i int, r Record) error {
	if r.Collection() != col {
		return fmt.Errorf("%w: %s record in %s", ErrInvalid, r.Kind(), col)
	}
	s.mu.Lock()
	list := s.cols[col]
	if i < 0 || i > len(list) {
		s.mu.Unlock()
		return fmt.Errorf("%w: insert %s[%d]", ErrIndex, col, i)
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = r.Clone()
	s.cols[col] = list
	s.mu.Unlock()
	s.publish(Change{Collection: col, Op: OpAdd, Index: i, Key: r.Key()})
	return nil
}

// RemoveAt splices out index i and returns the removed record.
func (s *Store) RemoveAt(col Collection, i int) (Record, error) {
	s.mu.Lock()
	list := s.cols[col]
	if i < 0 || i >= len(list) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: remove %s[%d]", ErrIndex, col, i)
	}
	r := list[i]
	s.cols[col] = append(list[:i:i], list[i+1:]...)
	s.mu.Unlock()
	s.publish(Change{Collection: col, Op: OpRemove, Index: i, Key: r.Key()})
	return r, nil
}

// RemoveWhere removes every record matching pred and returns how many went.
// One event is published per call when anything was removed.
func (s *Store) RemoveWhere(col Collection, pred func(Record) bool) int {
	s.mu.Lock()
	list := s.cols[col]
	kept := make([]Record, 0, len(list))
	for _, r := range list {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	n := len(list) - len(kept)
	s.cols[col] = kept
	s.mu.Unlock()
	if n > 0 {
		s.publish(Change{Collection: col, Op: OpRemove, Index: -1})
	}
	return n
}

// UpdateAt applies fn to a clone of record i and stores the result if it
// still validates and keeps its key.
func (s *Store) UpdateAt(col Collection, i int, fn func(Record)) error {
	s.mu.Lock()
	list := s.cols[col]
	if i < 0 || i >= len(list) {
		s.mu.Unlock()
		return fmt.Errorf("%w: update %s[%d]", ErrIndex, col, i)
	}
	next := list[i].Clone()
	fn(next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := checkReplace(list[i], next); err != nil {
		s.mu.Unlock()
		return err
	}
	list[i] = next
	s.mu.Unlock()
	s.publish(Change{Collection: col, Op: OpUpdate, Index: i, Key: next.Key()})
	return nil
}

// Replace swaps record i for r. The key must match.
func (s *Store) Replace(col Collection, i int, r Record) error {
	s.mu.Lock()
	list := s.cols[col]
	if i < 0 || i >= len(list) {
		s.mu.Unlock()
		return fmt.Errorf("%w: replace %s[%d]", ErrIndex, col, i)
	}
	if err := checkReplace(list[i], r); err != nil {
		s.mu.Unlock()
		return err
	}
	list[i] = r.Clone()
	s.mu.Unlock()
	s.publish(Change{Collection: col, Op: OpUpdate, Index: i, Key: r.Key()})
	return nil
}

func checkReplace(prev, next Record) error {
	if prev.Key() != next.Key() || prev.Collection() != next.Collection() {
		return fmt.Errorf("%w: key changed from %s to %s", ErrInvalid, prev.Key(), next.Key())
	}
	if a, ok := prev.(*TextEdit); ok {
		b := next.(*TextEdit)
		if a.OriginalX != b.OriginalX || a.OriginalY != b.OriginalY {
			return fmt.Errorf("%w: text edit %s original position is fixed", ErrInvalid, a.Key())
		}
	}
	return nil
}

// Get returns clones of col in insertion order.
func (s *Store) Get(col Collection) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.cols[col]))
	for i, r := range s.cols[col] {
		out[i] = r.Clone()
	}
	return out
}

// At returns a clone of record i.
func (s *Store) At(col Collection, i int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.cols[col]
	if i < 0 || i >= len(list) {
		return nil, fmt.Errorf("%w: %s[%d]", ErrIndex, col, i)
	}
	return list[i].Clone(), nil
}

// Find resolves ref to its index and a clone of the record.
func (s *Store) Find(ref Ref) (int, Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, r := range s.cols[ref.Collection] {
		if r.Key() == ref.Key {
			return i, r.Clone(), true
		}
	}
	return -1, nil, false
}

func (s *Store) Len(col Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cols[col])
}

// Total counts records across all collections.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.cols {
		n += len(l)
	}
	return n
}

// OnPage returns clones of the records of col that belong to page.
func (s *Store) OnPage(col Collection, page int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.cols[col] {
		if r.PageNum() == page {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(Collections))
	for _, col := range Collections {
		list := make([]Record, len(s.cols[col]))
		for i, r := range s.cols[col] {
			list[i] = r.Clone()
		}
		snap[col] = list
	}
	return snap
}

// Restore replaces the whole store with snap and notifies every collection.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	s.cols = make(map[Collection][]Record, len(snap))
	for col, list := range snap {
		cp := make([]Record, len(list))
		for i, r := range list {
			cp[i] = r.Clone()
		}
		s.cols[col] = cp
	}
	s.mu.Unlock()
	for _, col := range Collections {
		s.publish(Change{Collection: col, Op: OpRestore, Index: -1})
	}
}

// Reset empties every collection.
func (s *Store) Reset() { s.Restore(nil) }

// Sequence hands out record IDs such as "stamp-3".
type Sequence struct {
	n atomic.Uint64
}

func (q *Sequence) Next(kind Kind) string {
	return fmt.Sprintf("%s-%d", kind, q.n.Add(1))
}
