package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

var _ store.Storage = (*DBStorage)(nil)

const uniqueViolation = "23505"

// pgText drops what a text column rejects: invalid UTF-8 and NUL bytes.
func pgText(value string) string {
	if value == "" {
		return value
	}
	return strings.ReplaceAll(strings.ToValidUTF8(value, ""), "\x00", "")
}

// InsertPage writes the page unless a row with the same wiki_id or url exists.
func (s *DBStorage) InsertPage(ctx context.Context, row store.PageRow) (bool, error) {
	refs := row.Refs
	if refs == nil {
		refs = []json.RawMessage{}
	}
	// jsonb[] is built server side from a single jsonb array
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return false, fmt.Errorf("failed to encode refs of %s: %w", row.WikiID, err)
	}
	categories := make([]string, len(row.Categories))
	for i, c := range row.Categories {
		categories[i] = pgText(c)
	}

	sql := fmt.Sprintf(`
INSERT INTO %s (wiki_id, lang, url, title, categories, text, refs)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, ARRAY(SELECT jsonb_array_elements($7::jsonb)))
ON CONFLICT (wiki_id) DO NOTHING`, s.table("pages"))

	tag, err := s.conn.Exec(ctx, sql, row.WikiID, row.Lang, row.URL, pgText(row.Title), categories, pgText(row.Text), string(refsJSON))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "pages_url_key" {
			return false, fmt.Errorf("failed to insert page %s: %w: %s", row.WikiID, store.ErrDuplicateURL, row.URL)
		}
		return false, fmt.Errorf("failed to insert page %s: %w", row.WikiID, err)
	}
	inserted := tag.RowsAffected() == 1
	if !inserted {
		logger.Debug("[Store][InsertPage] Page already exists", "wiki_id", row.WikiID)
	}
	return inserted, nil
}

func (s *DBStorage) InsertEntity(ctx context.Context, row store.EntityRow) (bool, error) {
	sql := fmt.Sprintf(`
INSERT INTO %s (concept_id, concept_url)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`, s.table("entities"))

	tag, err := s.conn.Exec(ctx, sql, row.ConceptID, row.ConceptURL)
	if err != nil {
		return false, fmt.Errorf("failed to insert entity %s: %w", row.ConceptID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *DBStorage) InsertEntityPage(ctx context.Context, row store.EntityPageRow) (bool, error) {
	sql := fmt.Sprintf(`
INSERT INTO %s (entity_id, page_id, concept_id, wiki_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING`, s.table("entities_pages"))

	tag, err := s.conn.Exec(ctx, sql, row.EntityID, row.PageID, row.ConceptID, row.WikiID)
	if err != nil {
		return false, fmt.Errorf("failed to link %s to %s: %w", row.ConceptID, row.WikiID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *DBStorage) EntityID(ctx context.Context, conceptID string) (int64, bool, error) {
	sql := fmt.Sprintf(`SELECT id FROM %s WHERE concept_id = $1`, s.table("entities"))
	return s.lookupID(ctx, sql, conceptID)
}

func (s *DBStorage) PageID(ctx context.Context, wikiID string) (int64, bool, error) {
	sql := fmt.Sprintf(`SELECT id FROM %s WHERE wiki_id = $1`, s.table("pages"))
	return s.lookupID(ctx, sql, wikiID)
}

func (s *DBStorage) lookupID(ctx context.Context, sql, key string) (int64, bool, error) {
	var id int64
	err := s.conn.QueryRow(ctx, sql, key).Scan(&id)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up %q: %w", key, err)
	}
	return id, true, nil
}
