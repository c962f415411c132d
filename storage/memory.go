package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	opts   options
	name   string
	revs   []Document
	closed bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	return &Memory{opts: buildOptions(opts)}
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) revision(data []byte, n int) Document {
	return Document{
		Name:      m.name,
		Data:      append([]byte(nil), data...),
		Revision:  n,
		Hash:      Hash(data),
		UpdatedAt: m.opts.now(),
	}
}

func (m *Memory) Store(ctx context.Context, data []byte, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmpty
	}
	m.name = name
	m.revs = []Document{m.revision(data, 1)}
	return nil
}

func (m *Memory) Retrieve(ctx context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return Document{}, err
	}
	if len(m.revs) == 0 {
		return Document{}, ErrNotFound
	}
	doc := m.revs[len(m.revs)-1]
	doc.Data = append([]byte(nil), doc.Data...)
	return verify(doc)
}

func (m *Memory) Update(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	if len(m.revs) == 0 {
		return ErrNotFound
	}
	if len(data) == 0 {
		return ErrEmpty
	}
	next := m.revs[len(m.revs)-1].Revision + 1
	m.revs = append(m.revs, m.revision(data, next))
	if limit := m.opts.maxRevisions; limit > 0 && len(m.revs) > limit {
		m.revs = append([]Document(nil), m.revs[len(m.revs)-limit:]...)
	}
	return nil
}

func (m *Memory) Revisions(ctx context.Context) ([]Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if len(m.revs) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Revision, len(m.revs))
	for i, d := range m.revs {
		out[i] = Revision{Revision: d.Revision, Size: len(d.Data), Hash: d.Hash, CreatedAt: d.UpdatedAt}
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
