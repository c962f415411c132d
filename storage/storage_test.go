package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func implementations(t *testing.T, opts ...Option) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "pdfedit.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemory(opts...),
		"sqlite": sq,
	}
}

func TestStoreRetrieveUpdate(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t, WithClock(clock())) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Retrieve(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Update(ctx, []byte("x")), ErrNotFound)

			require.NoError(t, s.Store(ctx, []byte("%PDF-1"), "contract.pdf"))
			doc, err := s.Retrieve(ctx)
			require.NoError(t, err)
			assert.Equal(t, "contract.pdf", doc.Name)
			assert.Equal(t, []byte("%PDF-1"), doc.Data)
			assert.Equal(t, 1, doc.Revision)
			assert.Equal(t, Hash([]byte("%PDF-1")), doc.Hash)

			require.NoError(t, s.Update(ctx, []byte("%PDF-2")))
			doc, err = s.Retrieve(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("%PDF-2"), doc.Data)
			assert.Equal(t, 2, doc.Revision)
			assert.Equal(t, "contract.pdf", doc.Name)

			revs, err := s.Revisions(ctx)
			require.NoError(t, err)
			require.Len(t, revs, 2)
			assert.Equal(t, 1, revs[0].Revision)
			assert.Equal(t, 6, revs[1].Size)
			assert.True(t, revs[0].CreatedAt.Before(revs[1].CreatedAt))

			require.NoError(t, s.Store(ctx, []byte("%PDF-new"), "other.pdf"))
			doc, err = s.Retrieve(ctx)
			require.NoError(t, err)
			assert.Equal(t, "other.pdf", doc.Name)
			assert.Equal(t, 1, doc.Revision)
		})
	}
}

func TestRejectsEmptyData(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Store(ctx, nil, "a.pdf"), ErrEmpty)
			require.NoError(t, s.Store(ctx, []byte("a"), "a.pdf"))
			assert.ErrorIs(t, s.Update(ctx, nil), ErrEmpty)
		})
	}
}

func TestRevisionLimit(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t, WithMaxRevisions(2)) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Store(ctx, []byte("1"), "a.pdf"))
			require.NoError(t, s.Update(ctx, []byte("2")))
			require.NoError(t, s.Update(ctx, []byte("3")))
			revs, err := s.Revisions(ctx)
			require.NoError(t, err)
			require.Len(t, revs, 2)
			assert.Equal(t, 2, revs[0].Revision)
			assert.Equal(t, 3, revs[1].Revision)
		})
	}
}

func TestMemoryCopiesData(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Store(ctx, data, "a.pdf"))
	data[0] = 'x'
	doc, err := m.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(doc.Data))
	doc.Data[1] = 'y'
	again, err := m.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Data))

	require.NoError(t, m.Close())
	_, err = m.Retrieve(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLiteDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Store(ctx, []byte("original"), "a.pdf"))
	_, err = s.db.Exec("UPDATE revisions SET data = ?", []byte("tampered"))
	require.NoError(t, err)
	_, err = s.Retrieve(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSQLiteReopenKeepsDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pdfedit.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, []byte("kept"), "k.pdf"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	doc, err := s.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(doc.Data))
}
