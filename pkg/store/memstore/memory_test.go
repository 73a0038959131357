package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

func TestStore_InsertsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	row := store.PageRow{WikiID: `"A"@en`, URL: "https://en.wikipedia.org/wiki/A", Title: "A"}
	if ok, _ := s.InsertPage(ctx, row); !ok {
		t.Fatalf("first insert should succeed")
	}
	if ok, _ := s.InsertPage(ctx, row); ok {
		t.Fatalf("second insert should be a no-op")
	}
	dupURL := store.PageRow{WikiID: `"A_"@en`, URL: row.URL, Title: "A_"}
	if ok, err := s.InsertPage(ctx, dupURL); ok || !errors.Is(err, store.ErrDuplicateURL) {
		t.Fatalf("a url owned by another page must fail, got %v %v", ok, err)
	}

	if ok, _ := s.InsertEntity(ctx, store.EntityRow{ConceptID: "Q1"}); !ok {
		t.Fatalf("entity insert should succeed")
	}
	if ok, _ := s.InsertEntity(ctx, store.EntityRow{ConceptID: "Q1"}); ok {
		t.Fatalf("entity insert should be a no-op")
	}

	link := store.EntityPageRow{ConceptID: "Q1", WikiID: `"A"@en`}
	s.InsertEntityPage(ctx, link)
	if ok, _ := s.InsertEntityPage(ctx, link); ok {
		t.Fatalf("link insert should be a no-op")
	}

	pages, entities, links := s.Counts()
	if pages != 1 || entities != 1 || links != 1 {
		t.Fatalf("unexpected counts %d %d %d", pages, entities, links)
	}
}

func TestStore_LookupIDs(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.InsertEntity(ctx, store.EntityRow{ConceptID: "Q1"})
	s.InsertPage(ctx, store.PageRow{WikiID: "p"})

	eid, ok, _ := s.EntityID(ctx, "Q1")
	if !ok || eid != 1 {
		t.Fatalf("unexpected entity id %d %v", eid, ok)
	}
	pid, ok, _ := s.PageID(ctx, "p")
	if !ok || pid != 2 {
		t.Fatalf("unexpected page id %d %v", pid, ok)
	}
	if _, ok, _ := s.PageID(ctx, "missing"); ok {
		t.Fatalf("missing page should not be found")
	}
}
