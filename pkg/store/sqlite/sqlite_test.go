package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

func open(t *testing.T) store.Storage {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "wiki.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLite_PageEntityLink(t *testing.T) {
	ctx := context.Background()
	st := open(t)

	page := store.PageRow{
		WikiID:     `"Ljubljana"@sl`,
		Lang:       "sl",
		URL:        "https://sl.wikipedia.org/wiki/Ljubljana",
		Title:      "Ljubljana",
		Categories: []string{"Capitals in Europe"},
		Text:       "Ljubljana\n\n",
		Refs:       []json.RawMessage{json.RawMessage(`{"name":"stat"}`)},
	}
	inserted, err := st.InsertPage(ctx, page)
	if err != nil || !inserted {
		t.Fatalf("InsertPage: %v %v", inserted, err)
	}
	inserted, err = st.InsertPage(ctx, page)
	if err != nil || inserted {
		t.Fatalf("second InsertPage should be a no-op: %v %v", inserted, err)
	}

	if _, err := st.InsertEntity(ctx, store.EntityRow{ConceptID: "Q437", ConceptURL: "http://www.wikidata.org/entity/Q437"}); err != nil {
		t.Fatalf("InsertEntity: %v", err)
	}

	eid, found, err := st.EntityID(ctx, "Q437")
	if err != nil || !found {
		t.Fatalf("EntityID: %v %v", found, err)
	}
	pid, found, err := st.PageID(ctx, page.WikiID)
	if err != nil || !found {
		t.Fatalf("PageID: %v %v", found, err)
	}

	link := store.EntityPageRow{EntityID: eid, PageID: pid, ConceptID: "Q437", WikiID: page.WikiID}
	if ok, err := st.InsertEntityPage(ctx, link); err != nil || !ok {
		t.Fatalf("InsertEntityPage: %v %v", ok, err)
	}
	if ok, err := st.InsertEntityPage(ctx, link); err != nil || ok {
		t.Fatalf("second InsertEntityPage should be a no-op: %v %v", ok, err)
	}

	if _, found, _ := st.PageID(ctx, `"Maribor"@sl`); found {
		t.Fatalf("unexpected page")
	}
}

func TestSQLite_DuplicateURLFails(t *testing.T) {
	ctx := context.Background()
	st := open(t)

	url := "https://en.wikipedia.org/wiki/A_B"
	if ok, err := st.InsertPage(ctx, store.PageRow{WikiID: `"A B"@en`, URL: url, Title: "A B"}); err != nil || !ok {
		t.Fatalf("InsertPage: %v %v", ok, err)
	}
	_, err := st.InsertPage(ctx, store.PageRow{WikiID: `"A_B"@en`, URL: url, Title: "A_B"})
	if !errors.Is(err, store.ErrDuplicateURL) {
		t.Fatalf("expected ErrDuplicateURL, got %v", err)
	}
	if _, found, _ := st.PageID(ctx, `"A_B"@en`); found {
		t.Fatalf("page with a taken url must not be stored")
	}
}

func TestSQLite_LinkRequiresBothSides(t *testing.T) {
	ctx := context.Background()
	st := open(t)

	_, err := st.InsertEntityPage(ctx, store.EntityPageRow{EntityID: 1, PageID: 1, ConceptID: "Q1", WikiID: `"X"@en`})
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestSQLite_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	st := open(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.InsertEntity(ctx, store.EntityRow{ConceptID: "Q42"}); err != nil {
				t.Errorf("InsertEntity: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, found, err := st.EntityID(ctx, "Q42"); err != nil || !found {
		t.Fatalf("EntityID: %v %v", found, err)
	}
}
