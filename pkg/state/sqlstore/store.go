// Package sqlstore stores settings layer documents in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/pkg/state"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings_layers (
	identifier  TEXT PRIMARY KEY,
	category    TEXT NOT NULL,
	level       INTEGER NOT NULL,
	project     TEXT NOT NULL DEFAULT '',
	document    TEXT NOT NULL,
	snapshot_id TEXT NOT NULL DEFAULT '',
	etag        TEXT NOT NULL DEFAULT '',
	updated_at  TEXT NOT NULL DEFAULT '',
	extra       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_settings_layers_category
	ON settings_layers (category, level);
`

// Store implements state.Store on a database/sql handle using the sqlite
// driver.
type Store struct {
	db *sql.DB
}

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := New(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the layer table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, ref state.Ref) (state.Document, state.Meta, bool, error) {
	id, err := ref.Identifier()
	if err != nil {
		return nil, state.Meta{}, false, err
	}

	var (
		rawDoc, rawExtra, updatedAt string
		meta                        state.Meta
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT document, snapshot_id, etag, updated_at, extra
		FROM settings_layers WHERE identifier = ?`, id,
	).Scan(&rawDoc, &meta.SnapshotID, &meta.ETag, &updatedAt, &rawExtra)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, state.Meta{}, false, nil
	}
	if err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("sqlstore: load %q: %w", id, err)
	}

	doc := state.Document{}
	if err := json.Unmarshal([]byte(rawDoc), &doc); err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("sqlstore: decode %q: %w", id, err)
	}
	if updatedAt != "" {
		meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, state.Meta{}, false, fmt.Errorf("sqlstore: decode %q updated_at: %w", id, err)
		}
	}
	if err := json.Unmarshal([]byte(rawExtra), &meta.Extra); err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("sqlstore: decode %q extra: %w", id, err)
	}
	if len(meta.Extra) == 0 {
		meta.Extra = nil
	}
	return doc, meta, true, nil
}

func (s *Store) Save(ctx context.Context, ref state.Ref, doc state.Document, meta state.Meta) (state.Meta, error) {
	id, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	if doc == nil {
		doc = state.Document{}
	}
	rawDoc, err := json.Marshal(doc)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlstore: encode %q: %w", id, err)
	}
	extra := meta.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	rawExtra, err := json.Marshal(extra)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlstore: encode %q extra: %w", id, err)
	}
	updatedAt := ""
	if !meta.UpdatedAt.IsZero() {
		updatedAt = meta.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings_layers (identifier, category, level, project, document, snapshot_id, etag, updated_at, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identifier) DO UPDATE SET
			document = excluded.document,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			updated_at = excluded.updated_at,
			extra = excluded.extra`,
		id, ref.Category, int(ref.Level), ref.Project, string(rawDoc),
		meta.SnapshotID, meta.ETag, updatedAt, string(rawExtra),
	)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlstore: save %q: %w", id, err)
	}
	return meta, nil
}

// Refs lists the stored layers of category, weakest first.
func (s *Store) Refs(ctx context.Context, category string) ([]state.Ref, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, level, project FROM settings_layers
		WHERE category = ? ORDER BY level, project`, category)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list %q: %w", category, err)
	}
	defer rows.Close()

	var refs []state.Ref
	for rows.Next() {
		var (
			ref   state.Ref
			level int
		)
		if err := rows.Scan(&ref.Category, &level, &ref.Project); err != nil {
			return nil, fmt.Errorf("sqlstore: list %q: %w", category, err)
		}
		ref.Level = layering.Level(level)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
