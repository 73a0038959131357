package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

type linkKey struct {
	conceptID string
	wikiID    string
}

// Store is an in-memory implementation of store.Storage for tests.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	pages    map[string]store.PageRow
	pageURLs map[string]string
	entities map[string]store.EntityRow
	links    map[linkKey]store.EntityPageRow
	order    []linkKey

	// FailOn makes inserts of the given natural keys fail.
	FailOn map[string]error
}

func New() *Store {
	return &Store{
		nextID:   1,
		pages:    make(map[string]store.PageRow),
		pageURLs: make(map[string]string),
		entities: make(map[string]store.EntityRow),
		links:    make(map[linkKey]store.EntityPageRow),
		FailOn:   make(map[string]error),
	}
}

var _ store.Storage = (*Store)(nil)

func (s *Store) Close() error { return nil }

func (s *Store) InsertPage(_ context.Context, row store.PageRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailOn[row.WikiID]; err != nil {
		return false, err
	}
	if _, ok := s.pages[row.WikiID]; ok {
		return false, nil
	}
	if row.URL != "" {
		if owner, ok := s.pageURLs[row.URL]; ok && owner != row.WikiID {
			return false, fmt.Errorf("failed to insert page %s: %w: %s", row.WikiID, store.ErrDuplicateURL, row.URL)
		}
		s.pageURLs[row.URL] = row.WikiID
	}
	row.ID = s.nextID
	s.nextID++
	row.Categories = slices.Clone(row.Categories)
	row.Refs = slices.Clone(row.Refs)
	s.pages[row.WikiID] = row
	return true, nil
}

func (s *Store) InsertEntity(_ context.Context, row store.EntityRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailOn[row.ConceptID]; err != nil {
		return false, err
	}
	if _, ok := s.entities[row.ConceptID]; ok {
		return false, nil
	}
	row.ID = s.nextID
	s.nextID++
	s.entities[row.ConceptID] = row
	return true, nil
}

func (s *Store) InsertEntityPage(_ context.Context, row store.EntityPageRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := linkKey{conceptID: row.ConceptID, wikiID: row.WikiID}
	if _, ok := s.links[k]; ok {
		return false, nil
	}
	s.links[k] = row
	s.order = append(s.order, k)
	return true, nil
}

func (s *Store) EntityID(_ context.Context, conceptID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[conceptID]
	return e.ID, ok, nil
}

func (s *Store) PageID(_ context.Context, wikiID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[wikiID]
	return p.ID, ok, nil
}

// Page returns a stored page row by wiki id.
func (s *Store) Page(wikiID string) (store.PageRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[wikiID]
	return p, ok
}

// Counts returns the number of pages, entities and links.
func (s *Store) Counts() (pages, entities, links int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.pages), len(s.entities), len(s.links)
}

// Links returns the stored links in insertion order.
func (s *Store) Links() []store.EntityPageRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.EntityPageRow, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.links[k])
	}
	return out
}
