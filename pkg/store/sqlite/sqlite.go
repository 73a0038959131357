package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

// sqliteStore implements store.Storage on an embedded SQLite file. It keeps
// the same natural keys as the Postgres schema. Array columns are stored as
// JSON text.
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) a SQLite database with WAL mode
// and foreign keys enabled.
func OpenSQLite(ctx context.Context, path string) (store.Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY under concurrent pipelines
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	wiki_id TEXT UNIQUE,
	url TEXT UNIQUE,
	lang TEXT,
	title TEXT NOT NULL,
	categories TEXT,
	text TEXT NOT NULL,
	refs TEXT
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	concept_id TEXT UNIQUE,
	concept_url TEXT
);

CREATE TABLE IF NOT EXISTS entities_pages (
	entity_id INTEGER NOT NULL,
	page_id INTEGER NOT NULL,
	concept_id TEXT NOT NULL,
	wiki_id TEXT NOT NULL,
	PRIMARY KEY (concept_id, wiki_id),
	FOREIGN KEY (concept_id) REFERENCES entities(concept_id) ON UPDATE CASCADE,
	FOREIGN KEY (wiki_id) REFERENCES pages(wiki_id) ON UPDATE CASCADE
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return nil
}

func (s *sqliteStore) InsertPage(ctx context.Context, row store.PageRow) (bool, error) {
	categories := row.Categories
	if categories == nil {
		categories = []string{}
	}
	refs := row.Refs
	if refs == nil {
		refs = []json.RawMessage{}
	}
	catJSON, err := json.Marshal(categories)
	if err != nil {
		return false, err
	}
	refJSON, err := json.Marshal(refs)
	if err != nil {
		return false, fmt.Errorf("failed to encode refs of %s: %w", row.WikiID, err)
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO pages (wiki_id, lang, url, title, categories, text, refs)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?)
ON CONFLICT (wiki_id) DO NOTHING`,
		row.WikiID, row.Lang, row.URL, row.Title, string(catJSON), row.Text, string(refJSON))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: pages.url") {
			return false, fmt.Errorf("failed to insert page %s: %w: %s", row.WikiID, store.ErrDuplicateURL, row.URL)
		}
		return false, fmt.Errorf("failed to insert page %s: %w", row.WikiID, err)
	}
	return affected(res)
}

func (s *sqliteStore) InsertEntity(ctx context.Context, row store.EntityRow) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO entities (concept_id, concept_url) VALUES (?, ?)
ON CONFLICT DO NOTHING`, row.ConceptID, row.ConceptURL)
	if err != nil {
		return false, fmt.Errorf("failed to insert entity %s: %w", row.ConceptID, err)
	}
	return affected(res)
}

func (s *sqliteStore) InsertEntityPage(ctx context.Context, row store.EntityPageRow) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO entities_pages (entity_id, page_id, concept_id, wiki_id) VALUES (?, ?, ?, ?)
ON CONFLICT DO NOTHING`, row.EntityID, row.PageID, row.ConceptID, row.WikiID)
	if err != nil {
		return false, fmt.Errorf("failed to link %s to %s: %w", row.ConceptID, row.WikiID, err)
	}
	return affected(res)
}

func (s *sqliteStore) EntityID(ctx context.Context, conceptID string) (int64, bool, error) {
	return s.lookupID(ctx, `SELECT id FROM entities WHERE concept_id = ?`, conceptID)
}

func (s *sqliteStore) PageID(ctx context.Context, wikiID string) (int64, bool, error) {
	return s.lookupID(ctx, `SELECT id FROM pages WHERE wiki_id = ?`, wikiID)
}

func (s *sqliteStore) lookupID(ctx context.Context, query, key string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up %q: %w", key, err)
	}
	return id, true, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
