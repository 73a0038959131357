package wikitext

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

const ljubljana = `{{Infobox settlement
| name = Ljubljana
}}
'''Ljubljana''' is the [[capital city|capital]] of [[Slovenia]].<ref name="stat">Statistical Office</ref> It lies on the [[Ljubljanica]] river.

[[File:Ljubljana view.jpg|thumb|View of [[Ljubljana Castle]]]]

== History ==
The city was founded by [[Ancient Rome|Romans]].
* [[Emona]] settlement
* Medieval town

=== Modern era ===
Capital since 1991.<ref>Constitution</ref>

{{coord|46|3|N|14|30|E}}
[[Category:Capitals in Europe]]
[[Category:Ljubljana]]
`

func TestMarkupParser_Page(t *testing.T) {
	doc, err := NewMarkupParser().Parse(ljubljana)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Type != TypePage {
		t.Fatalf("expected page type, got %q", doc.Type)
	}
	if !reflect.DeepEqual(doc.Categories, []string{"Capitals in Europe", "Ljubljana"}) {
		t.Fatalf("unexpected categories %v", doc.Categories)
	}
	if len(doc.Coordinates) != 1 ||
		math.Abs(doc.Coordinates[0].Lat-46.05) > 1e-9 ||
		math.Abs(doc.Coordinates[0].Lon-14.5) > 1e-9 {
		t.Fatalf("unexpected coordinates %v", doc.Coordinates)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(doc.Sections))
	}

	intro := doc.Sections[0]
	if intro.Depth != 0 || intro.Data.Title != "" {
		t.Fatalf("unexpected intro section %+v", intro)
	}
	if len(intro.Data.Paragraphs) != 2 {
		t.Fatalf("expected 2 intro paragraphs, got %d", len(intro.Data.Paragraphs))
	}
	first := intro.Data.Paragraphs[0].Data
	if len(first.Sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(first.Sentences))
	}
	if got := first.Sentences[0].Data.Text; got != "Ljubljana is the capital of Slovenia." {
		t.Fatalf("unexpected sentence text %q", got)
	}
	wantLinks := []LinkNode{{Page: "capital city", Text: "capital"}, {Page: "Slovenia", Text: "Slovenia"}}
	if !reflect.DeepEqual(first.Sentences[0].Data.Links, wantLinks) {
		t.Fatalf("unexpected links %v", first.Sentences[0].Data.Links)
	}

	img := intro.Data.Paragraphs[1].Data.Images
	if len(img) != 1 || img[0].Data.File != "Ljubljana view.jpg" || img[0].Data.Caption.Data.Caption != "View of Ljubljana Castle" {
		t.Fatalf("unexpected image %+v", img)
	}

	if len(intro.Data.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(intro.Data.References))
	}
	var ref map[string]string
	if err := json.Unmarshal(intro.Data.References[0].Data, &ref); err != nil {
		t.Fatalf("reference payload is not json: %v", err)
	}
	if ref["name"] != "stat" || ref["content"] != "Statistical Office" {
		t.Fatalf("unexpected reference %v", ref)
	}

	history := doc.Sections[1]
	if history.Depth != 0 || history.Data.Title != "History" {
		t.Fatalf("unexpected history section %+v", history)
	}
	hp := history.Data.Paragraphs[0].Data
	if len(hp.Sentences) != 1 || len(hp.Lists) != 1 || len(hp.Lists[0].Data) != 2 {
		t.Fatalf("unexpected history paragraph %+v", hp)
	}
	if hp.Lists[0].Data[0].Data.Text != "Emona settlement" {
		t.Fatalf("unexpected list item %q", hp.Lists[0].Data[0].Data.Text)
	}

	modern := doc.Sections[2]
	if modern.Depth != 1 || modern.Data.Title != "Modern era" {
		t.Fatalf("unexpected modern section %+v", modern)
	}
	if len(modern.Data.Paragraphs) != 1 || len(modern.Data.References) != 1 {
		t.Fatalf("unexpected modern section content %+v", modern.Data)
	}
}

func TestMarkupParser_Redirect(t *testing.T) {
	doc, err := NewMarkupParser().Parse("#REDIRECT [[Capodistria#History]]\n{{R from move}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Type != TypeRedirect {
		t.Fatalf("expected redirect, got %q", doc.Type)
	}
	if doc.RedirectTo == nil || doc.RedirectTo.Page != "Capodistria" {
		t.Fatalf("unexpected redirect target %+v", doc.RedirectTo)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three? four", []string{"One.", "Two!", "Three? four"}},
		{"Born in [[St. Louis]]. Moved later.", []string{"Born in [[St. Louis]].", "Moved later."}},
		{"Version 1.2 is out. 2020 was busy.", []string{"Version 1.2 is out.", "2020 was busy."}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitSentences(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitSentences(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCoord(t *testing.T) {
	tests := []struct {
		in   string
		want Coordinate
		ok   bool
	}{
		{"46.05|14.51|display=title", Coordinate{Lat: 46.05, Lon: 14.51}, true},
		{"40|42|46|N|74|0|21|W", Coordinate{Lat: 40 + 42.0/60 + 46.0/3600, Lon: -(74 + 21.0/3600)}, true},
		{"33|S|70|W|region:CL", Coordinate{Lat: -33, Lon: -70}, true},
		{"display=inline", Coordinate{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCoord(tt.in)
		if ok != tt.ok {
			t.Fatalf("parseCoord(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if math.Abs(got.Lat-tt.want.Lat) > 1e-9 || math.Abs(got.Lon-tt.want.Lon) > 1e-9 {
			t.Errorf("parseCoord(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeDocument_KeepsMissingNesting(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"type":"page","sections":[{"depth":0,"data":{"title":"","paragraphs":[{"data":{"sentences":[],"lists":[],"images":[{"data":{"file":"a.png"}}]}}],"references":[]}}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := doc.Sections[0].Data.Paragraphs[0].Data.Images[0]
	if img.Data.Caption != nil {
		t.Fatalf("expected missing caption to stay nil")
	}
}
