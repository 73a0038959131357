package record

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wiki"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wikitext"
)

var reDumpLanguage = regexp.MustCompile(`(\w+)wiki-`)

// LanguageFromFilename derives the language of a page dump from its name,
// e.g. "slwiki-20200220-pages-articles.xml" is "sl".
func LanguageFromFilename(name string) (string, bool) {
	m := reDumpLanguage.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PageParser parses <page> elements of one dump file. The language is fixed
// per file.
type PageParser struct {
	language string
	markup   wikitext.Parser
}

func NewPageParser(language string, markup wikitext.Parser) *PageParser {
	if markup == nil {
		markup = wikitext.NewMarkupParser()
	}
	return &PageParser{language: language, markup: markup}
}

func (p *PageParser) Language() string { return p.language }

// Parse builds the page of one raw <page> record. Redirects are reported with
// ErrRedirect and never built.
func (p *PageParser) Parse(raw string) (*wiki.Page, error) {
	root, err := xmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page xml: %w", err)
	}
	titleNode := xmlquery.FindOne(root, "//page/title")
	textNode := xmlquery.FindOne(root, "//page/revision/text")
	if titleNode == nil || textNode == nil {
		return nil, ErrMissingText
	}
	title := cleanText(strings.TrimSpace(titleNode.InnerText()))
	if title == "" {
		return nil, ErrMissingText
	}

	doc, err := p.markup.Parse(textNode.InnerText())
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup of %q: %w", title, err)
	}
	if doc != nil && doc.Type == wikitext.TypeRedirect {
		return nil, ErrRedirect
	}

	page, err := wiki.NewPage(wiki.PageID(title, p.language), p.language, title, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build page %q: %w", title, err)
	}
	return page, nil
}
