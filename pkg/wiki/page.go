// Package wiki turns a parsed wikitext tree into an immutable page model with
// precomputed plain text and deduplicated link views.
package wiki

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wikitext"
)

var ErrMalformed = errors.New("malformed document")

// ShapeError names the first nested object missing from a parsed tree.
type ShapeError struct {
	Path string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrMalformed, e.Path)
}

func (e *ShapeError) Unwrap() error { return ErrMalformed }

func missing(path string) error { return &ShapeError{Path: path} }

type Sentence struct {
	Text  string
	Links []Link
}

func newSentence(node wikitext.SentenceNode, language, path string) (Sentence, error) {
	if node.Data == nil {
		return Sentence{}, missing(path + ".data")
	}
	links := make([]Link, 0, len(node.Data.Links))
	for _, l := range node.Data.Links {
		links = append(links, NewLink(l, language))
	}
	return Sentence{Text: node.Data.Text, Links: links}, nil
}

type List struct {
	Sentences []Sentence

	text  string
	links []Link
}

func newList(node wikitext.ListNode, language, path string) (List, error) {
	l := List{Sentences: make([]Sentence, 0, len(node.Data))}
	texts := make([]string, 0, len(node.Data))
	groups := make([][]Link, 0, len(node.Data))
	for i, s := range node.Data {
		sentence, err := newSentence(s, language, fmt.Sprintf("%s.data[%d]", path, i))
		if err != nil {
			return List{}, err
		}
		l.Sentences = append(l.Sentences, sentence)
		texts = append(texts, sentence.Text)
		groups = append(groups, sentence.Links)
	}
	l.text = strings.Join(texts, "\n")
	l.links = uniqueLinks(groups...)
	return l, nil
}

// Text joins the list items with newlines.
func (l List) Text() string { return l.text }

func (l List) Links() []Link { return slices.Clone(l.links) }

type Image struct {
	File    string
	Caption string
}

func newImage(node wikitext.ImageNode, path string) (Image, error) {
	if node.Data == nil {
		return Image{}, missing(path + ".data")
	}
	if node.Data.Caption == nil {
		return Image{}, missing(path + ".data.caption")
	}
	if node.Data.Caption.Data == nil {
		return Image{}, missing(path + ".data.caption.data")
	}
	return Image{File: node.Data.File, Caption: node.Data.Caption.Data.Caption}, nil
}

// Reference keeps the parser payload as is.
type Reference struct {
	Data json.RawMessage
}

type Paragraph struct {
	Sentences []Sentence
	Lists     []List
	Images    []Image

	text  string
	links []Link
}

func newParagraph(node wikitext.ParagraphNode, language, path string) (Paragraph, error) {
	if node.Data == nil {
		return Paragraph{}, missing(path + ".data")
	}
	d := node.Data
	p := Paragraph{
		Sentences: make([]Sentence, 0, len(d.Sentences)),
		Lists:     make([]List, 0, len(d.Lists)),
		Images:    make([]Image, 0, len(d.Images)),
	}
	for i, n := range d.Sentences {
		s, err := newSentence(n, language, fmt.Sprintf("%s.data.sentences[%d]", path, i))
		if err != nil {
			return Paragraph{}, err
		}
		p.Sentences = append(p.Sentences, s)
	}
	for i, n := range d.Lists {
		l, err := newList(n, language, fmt.Sprintf("%s.data.lists[%d]", path, i))
		if err != nil {
			return Paragraph{}, err
		}
		p.Lists = append(p.Lists, l)
	}
	for i, n := range d.Images {
		img, err := newImage(n, fmt.Sprintf("%s.data.images[%d]", path, i))
		if err != nil {
			return Paragraph{}, err
		}
		p.Images = append(p.Images, img)
	}

	sentences := make([]string, 0, len(p.Sentences))
	for _, s := range p.Sentences {
		sentences = append(sentences, s.Text)
	}
	p.text = strings.Join(sentences, " ")
	if len(p.Lists) > 0 {
		lists := make([]string, 0, len(p.Lists))
		for _, l := range p.Lists {
			lists = append(lists, l.text)
		}
		p.text += "\n\n" + strings.Join(lists, "\n")
	}

	// lists first, then sentences
	groups := make([][]Link, 0, len(p.Lists)+len(p.Sentences))
	for _, l := range p.Lists {
		groups = append(groups, l.links)
	}
	for _, s := range p.Sentences {
		groups = append(groups, s.Links)
	}
	p.links = uniqueLinks(groups...)
	return p, nil
}

func (p Paragraph) Text() string { return p.text }

// HasText reports whether the paragraph has any sentence or list, even one
// with empty text.
func (p Paragraph) HasText() bool { return len(p.Sentences) > 0 || len(p.Lists) > 0 }

func (p Paragraph) Links() []Link { return slices.Clone(p.links) }

type Section struct {
	Depth      int
	Title      string
	Paragraphs []Paragraph
	References []Reference

	text  string
	links []Link
}

func newSection(node wikitext.SectionNode, language, path string) (Section, error) {
	if node.Data == nil {
		return Section{}, missing(path + ".data")
	}
	d := node.Data
	s := Section{
		Depth:      node.Depth,
		Title:      d.Title,
		Paragraphs: make([]Paragraph, 0, len(d.Paragraphs)),
		References: make([]Reference, 0, len(d.References)),
	}
	texts := make([]string, 0, len(d.Paragraphs))
	groups := make([][]Link, 0, len(d.Paragraphs))
	for i, n := range d.Paragraphs {
		p, err := newParagraph(n, language, fmt.Sprintf("%s.data.paragraphs[%d]", path, i))
		if err != nil {
			return Section{}, err
		}
		s.Paragraphs = append(s.Paragraphs, p)
		if p.HasText() {
			texts = append(texts, p.text)
		}
		groups = append(groups, p.links)
	}
	for _, r := range d.References {
		s.References = append(s.References, Reference{Data: r.Data})
	}

	if s.Title != "" {
		s.text = s.Title + "\n\n"
	}
	s.text += strings.Join(texts, "\n\n")
	s.links = uniqueLinks(groups...)
	return s, nil
}

func (s Section) Text() string { return s.text }

func (s Section) HasRefs() bool { return len(s.References) > 0 }

func (s Section) Links() []Link { return slices.Clone(s.links) }

type Page struct {
	ID          string
	Language    string
	Title       string
	Type        string
	URL         string
	Categories  []string
	Coordinates []wikitext.Coordinate
	// RedirectTo is set for redirect documents only.
	RedirectTo string
	Sections   []Section

	text       string
	links      []Link
	references []Reference
}

// NewPage validates doc and builds the page with all derived views computed.
// A missing nested object yields a *ShapeError wrapping ErrMalformed.
func NewPage(id, language, title string, doc *wikitext.Document) (*Page, error) {
	if doc == nil {
		return nil, missing("document")
	}
	p := &Page{
		ID:          id,
		Language:    language,
		Title:       title,
		Type:        doc.Type,
		URL:         PageURL(language, title),
		Categories:  slices.Clone(doc.Categories),
		Coordinates: slices.Clone(doc.Coordinates),
		Sections:    make([]Section, 0, len(doc.Sections)),
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.Coordinates == nil {
		p.Coordinates = []wikitext.Coordinate{}
	}
	if doc.RedirectTo != nil {
		p.RedirectTo = doc.RedirectTo.Page
	}

	texts := make([]string, 0, len(doc.Sections))
	groups := make([][]Link, 0, len(doc.Sections))
	p.references = []Reference{}
	for i, n := range doc.Sections {
		s, err := newSection(n, language, fmt.Sprintf("sections[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Sections = append(p.Sections, s)
		texts = append(texts, s.text)
		groups = append(groups, s.links)
		p.references = append(p.references, s.References...)
	}
	p.text = title + "\n\n" + strings.Join(texts, "\n\n\n")
	p.links = uniqueLinks(groups...)
	return p, nil
}

func (p *Page) IsRedirect() bool { return p.Type == wikitext.TypeRedirect }

// Text is the title followed by every section text.
func (p *Page) Text() string { return p.text }

func (p *Page) Links() []Link { return slices.Clone(p.links) }

// References flattens the reference payloads of all sections in order.
func (p *Page) References() []Reference { return slices.Clone(p.references) }
