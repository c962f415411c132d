package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type migration struct {
	version     int
	description string
	up          string
}

var migrations = []migration{
	{
		version:     1,
		description: "documents and revisions",
		up: `
CREATE TABLE IF NOT EXISTS documents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    current     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS revisions (
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    revision    INTEGER NOT NULL,
    data        BLOB NOT NULL,
    hash        TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    PRIMARY KEY (document_id, revision)
);

CREATE INDEX IF NOT EXISTS idx_documents_current ON documents(current);
`,
	},
}

// SQLite is a Store backed by a SQLite database file. Earlier documents stay
// in the database; only the current one is visible through the Store API.
type SQLite struct {
	db   *sql.DB
	opts options
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and applies migrations.
// The path ":memory:" opens a private in-memory database.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_foreign_keys=on&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, opts: buildOptions(opts)}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.version, time.Now().UnixNano(), m.description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) Store(ctx context.Context, data []byte, name string) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.opts.now().UnixNano()
	if _, err := tx.ExecContext(ctx, "UPDATE documents SET current = 0 WHERE current = 1"); err != nil {
		return fmt.Errorf("clear current document: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO documents (name, created_at, current) VALUES (?, ?, 1)", name, now)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get document id: %w", err)
	}
	if err := insertRevision(ctx, tx, id, 1, data, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertRevision(ctx context.Context, tx *sql.Tx, doc int64, rev int, data []byte, now int64) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO revisions (document_id, revision, data, hash, created_at) VALUES (?, ?, ?, ?, ?)",
		doc, rev, data, Hash(data), now,
	); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

func currentDocument(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int64, string, error) {
	var id int64
	var name string
	err := q.QueryRowContext(ctx, "SELECT id, name FROM documents WHERE current = 1").Scan(&id, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("get current document: %w", err)
	}
	return id, name, nil
}

func (s *SQLite) Retrieve(ctx context.Context) (Document, error) {
	id, name, err := currentDocument(ctx, s.db)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Name: name}
	var created int64
	err = s.db.QueryRowContext(ctx, `
		SELECT revision, data, hash, created_at FROM revisions
		WHERE document_id = ? ORDER BY revision DESC LIMIT 1`, id,
	).Scan(&doc.Revision, &doc.Data, &doc.Hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get revision: %w", err)
	}
	doc.UpdatedAt = time.Unix(0, created).UTC()
	return verify(doc)
}

func (s *SQLite) Update(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, _, err := currentDocument(ctx, tx)
	if err != nil {
		return err
	}
	var last int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(revision), 0) FROM revisions WHERE document_id = ?", id,
	).Scan(&last); err != nil {
		return fmt.Errorf("get last revision: %w", err)
	}
	if err := insertRevision(ctx, tx, id, last+1, data, s.opts.now().UnixNano()); err != nil {
		return err
	}
	if limit := s.opts.maxRevisions; limit > 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM revisions WHERE document_id = ? AND revision <= ?", id, last+1-limit,
		); err != nil {
			return fmt.Errorf("prune revisions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) Revisions(ctx context.Context) ([]Revision, error) {
	id, _, err := currentDocument(ctx, s.db)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, length(data), hash, created_at FROM revisions
		WHERE document_id = ? ORDER BY revision`, id)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var r Revision
		var created int64
		if err := rows.Scan(&r.Revision, &r.Size, &r.Hash, &created); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return out, nil
}
