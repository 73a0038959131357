package record

import (
	"errors"
	"testing"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wiki"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wikitext"
)

func TestTripleParser(t *testing.T) {
	p, err := NewTripleParser("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		line string
		want Triple
		err  error
	}{
		{
			name: "label",
			line: `<http://www.wikidata.org/entity/Q437> <http://schema.org/name> "Ljubljana"@sl .`,
			want: Triple{ConceptURL: "http://www.wikidata.org/entity/Q437", ConceptID: "Q437", Label: "Ljubljana", Language: "sl"},
		},
		{
			name: "escaped label",
			line: `<http://www.wikidata.org/entity/Q1> <http://schema.org/name> "Café \"Central\""@en .`,
			want: Triple{ConceptURL: "http://www.wikidata.org/entity/Q1", ConceptID: "Q1", Label: `Café "Central"`, Language: "en"},
		},
		{
			name: "other predicate",
			line: `<http://www.wikidata.org/entity/Q1> <http://schema.org/description> "totality"@en .`,
			err:  ErrNoMatch,
		},
		{
			name: "region subtag",
			line: `<http://www.wikidata.org/entity/Q1> <http://schema.org/name> "Universum"@de-ch .`,
			err:  ErrNoMatch,
		},
		{name: "empty", line: "", err: ErrNoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.line)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected error %v, got %v", tt.err, err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestTriple_WikiIDMatchesPageID(t *testing.T) {
	tr := Triple{Label: "New York", Language: "en"}
	if tr.WikiID() != wiki.PageID("New York", "en") {
		t.Fatalf("unexpected wiki id %q", tr.WikiID())
	}

	p, err := NewTripleParser("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, err = p.Parse(`<http://www.wikidata.org/entity/Q1> <http://schema.org/name> "\"Heroes\" (album)"@en .`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.WikiID() != `""Heroes" (album)"@en` {
		t.Fatalf("unexpected wiki id %q", tr.WikiID())
	}

	page, err := NewPageParser("en", nil).Parse(`<page><title>&quot;Heroes&quot; (album)</title><revision><text>An album.</text></revision></page>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ID != tr.WikiID() {
		t.Fatalf("page id %q does not match triple key %q", page.ID, tr.WikiID())
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ljubljana", "Ljubljana"},
		{"Lju\x00bljana", "Ljubljana"},
		{string([]byte{'a', 0xff, 'b'}), "ab"},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	p, err := NewTripleParser("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, err := p.Parse("<http://www.wikidata.org/entity/Q437> <http://schema.org/name> \"Lju\x00bljana\"@sl .")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Label != "Ljubljana" || tr.WikiID() != wiki.PageID("Ljubljana", "sl") {
		t.Fatalf("label not cleaned: %q", tr.Label)
	}
}

func TestTripleParser_CustomPredicate(t *testing.T) {
	p, err := NewTripleParser("", "http://www.w3.org/2000/01/rdf-schema#label")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.Parse(`<http://www.wikidata.org/entity/Q2> <http://www.w3.org/2000/01/rdf-schema#label> "Earth"@en .`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ConceptID != "Q2" || got.Label != "Earth" {
		t.Fatalf("unexpected triple %+v", got)
	}
}

func TestPageParser(t *testing.T) {
	p := NewPageParser("sl", nil)
	page, err := p.Parse(`<page>
    <title>Ljubljana</title>
    <ns>0</ns>
    <revision><id>1</id><text xml:space="preserve">'''Ljubljana''' is the capital of [[Slovenia]] &amp; its largest city.</text></revision>
  </page>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ID != `"Ljubljana"@sl` || page.URL != "https://sl.wikipedia.org/wiki/Ljubljana" {
		t.Fatalf("unexpected identity %q %q", page.ID, page.URL)
	}
	if page.Text() != "Ljubljana\n\nLjubljana is the capital of Slovenia & its largest city." {
		t.Fatalf("unexpected text %q", page.Text())
	}
	links := page.Links()
	if len(links) != 1 || links[0].URL != "https://sl.wikipedia.org/wiki/Slovenia" {
		t.Fatalf("unexpected links %v", links)
	}
}

func TestPageParser_Redirect(t *testing.T) {
	p := NewPageParser("en", nil)
	_, err := p.Parse(`<page><title>Koper</title><revision><text>#REDIRECT [[Capodistria]]</text></revision></page>`)
	if !errors.Is(err, ErrRedirect) {
		t.Fatalf("expected ErrRedirect, got %v", err)
	}
}

func TestPageParser_MissingText(t *testing.T) {
	p := NewPageParser("en", nil)
	_, err := p.Parse(`<page><title>Koper</title></page>`)
	if !errors.Is(err, ErrMissingText) {
		t.Fatalf("expected ErrMissingText, got %v", err)
	}
}

type brokenParser struct{}

func (brokenParser) Parse(string) (*wikitext.Document, error) {
	return &wikitext.Document{Type: wikitext.TypePage, Sections: []wikitext.SectionNode{{}}}, nil
}

func TestPageParser_MalformedTree(t *testing.T) {
	p := NewPageParser("en", brokenParser{})
	_, err := p.Parse(`<page><title>X</title><revision><text>x</text></revision></page>`)
	if !errors.Is(err, wiki.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestLanguageFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"enwiki-20200220-pages-articles.xml", "en", true},
		{"/data/dumps/slwiki-latest-pages-articles.xml", "sl", true},
		{"simplewiki-20200301.xml", "simple", true},
		{"pages.xml", "", false},
	}
	for _, tt := range tests {
		got, ok := LanguageFromFilename(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LanguageFromFilename(%q) = %q, %v", tt.name, got, ok)
		}
	}
}
