// Package record turns raw records produced by the splitter into typed values:
// label triples from a Wikidata N-Triples dump and pages from a MediaWiki
// XML export.
package record

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wiki"
)

var (
	// ErrNoMatch marks a line that is not a label assertion. Dumps are full of
	// those, callers skip them without counting a failure.
	ErrNoMatch = errors.New("record does not match")
	// ErrRedirect marks a page record that only redirects to another page.
	ErrRedirect = errors.New("page is a redirect")
	// ErrMissingText marks a page record without a title or revision text.
	ErrMissingText = errors.New("page record is missing title or text")
)

const (
	DefaultEntityPrefix   = "http://www.wikidata.org/entity/"
	DefaultLabelPredicate = "http://schema.org/name"
)

// Triple is one label assertion of a concept.
type Triple struct {
	ConceptURL string
	ConceptID  string
	Label      string
	Language   string
}

// WikiID is the page identity the label points at.
func (t Triple) WikiID() string {
	return wiki.PageID(t.Label, t.Language)
}

type TripleParser struct {
	re *regexp.Regexp
}

// NewTripleParser matches lines of the shape
// <{entityPrefix}{id}> <{predicate}> "{label}"@{lang} .
func NewTripleParser(entityPrefix, predicate string) (*TripleParser, error) {
	if entityPrefix == "" {
		entityPrefix = DefaultEntityPrefix
	}
	if predicate == "" {
		predicate = DefaultLabelPredicate
	}
	expr := fmt.Sprintf(`^<(%s(\w+))> <%s> "(.+)"@(\w{2,3}) \.\s*$`,
		regexp.QuoteMeta(entityPrefix), regexp.QuoteMeta(predicate))
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile triple pattern: %w", err)
	}
	return &TripleParser{re: re}, nil
}

func (p *TripleParser) Parse(line string) (Triple, error) {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return Triple{}, ErrNoMatch
	}
	return Triple{
		ConceptURL: m[1],
		ConceptID:  m[2],
		Label:      cleanText(unescapeLabel(m[3])),
		Language:   m[4],
	}, nil
}

// cleanText drops invalid UTF-8 and NUL bytes, which text columns reject.
// Titles and labels are cleaned before their page id is derived so both sides
// of a link produce the same key.
func cleanText(s string) string {
	if s == "" {
		return s
	}
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}

// unescapeLabel decodes N-Triples string escapes (\" \\ \uXXXX \UXXXXXXXX).
// Labels that do not decode are kept verbatim.
func unescapeLabel(label string) string {
	if !strings.ContainsRune(label, '\\') {
		return label
	}
	s, err := strconv.Unquote(`"` + label + `"`)
	if err != nil {
		return label
	}
	return s
}
