package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrDuplicateURL is returned by InsertPage when another page, with a
// different wiki id, already owns the url.
var ErrDuplicateURL = errors.New("url belongs to another page")

// PageRow is the persisted shape of a wiki page. ID is assigned by storage.
type PageRow struct {
	ID         int64
	WikiID     string
	Lang       string
	URL        string
	Title      string
	Categories []string
	Text       string
	Refs       []json.RawMessage
}

// EntityRow is one knowledge base concept.
type EntityRow struct {
	ID         int64
	ConceptID  string
	ConceptURL string
}

// EntityPageRow joins an entity and a page by surrogate and natural keys.
type EntityPageRow struct {
	EntityID  int64
	PageID    int64
	ConceptID string
	WikiID    string
}

// Storage persists pages, entities and their links. Every insert is
// idempotent: writing a row whose natural key already exists is a no-op and
// reports inserted == false. A page url taken by a different wiki id is an
// ErrDuplicateURL error. Implementations must be safe for concurrent use.
type Storage interface {
	InsertPage(ctx context.Context, row PageRow) (inserted bool, err error)
	InsertEntity(ctx context.Context, row EntityRow) (inserted bool, err error)
	InsertEntityPage(ctx context.Context, row EntityPageRow) (inserted bool, err error)

	// EntityID and PageID look up surrogate keys by natural key.
	EntityID(ctx context.Context, conceptID string) (id int64, found bool, err error)
	PageID(ctx context.Context, wikiID string) (id int64, found bool, err error)

	Close() error
}
