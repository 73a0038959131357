// Package ingest streams dump files through the splitter, record parsers and
// document builder into storage. Every file is one sequential pipeline; the
// Run functions fan several files out concurrently.
package ingest

import (
	"fmt"
	"strings"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/splitter"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wikitext"
)

const (
	pageProgressEvery    = 100000
	conceptProgressEvery = 10000
)

// Stats are the per-pipeline counters reported at the end of a file.
type Stats struct {
	// Success counts records handled without error, including rows that
	// already existed.
	Success int64
	// Inserted counts rows actually written.
	Inserted int64
	Failure  int64
	// Skipped counts redirect pages.
	Skipped int64
	// Unmatched counts lines that are not label triples.
	Unmatched int64
	Linked    int64
	// Truncated is set when the file ended inside a record.
	Truncated bool
}

func (s *Stats) Add(o Stats) {
	s.Success += o.Success
	s.Inserted += o.Inserted
	s.Failure += o.Failure
	s.Skipped += o.Skipped
	s.Unmatched += o.Unmatched
	s.Linked += o.Linked
	s.Truncated = s.Truncated || o.Truncated
}

func (s Stats) String() string {
	return fmt.Sprintf("success=%d inserted=%d failure=%d skipped=%d unmatched=%d linked=%d",
		s.Success, s.Inserted, s.Failure, s.Skipped, s.Unmatched, s.Linked)
}

type Options struct {
	// WindowSize is the read window in bytes.
	WindowSize int
	// Parallel bounds the number of files processed at once.
	Parallel int
	// Markup parses page text, defaults to wikitext.MarkupParser.
	Markup wikitext.Parser
	// EntityPrefix and LabelPredicate shape the triple pattern.
	EntityPrefix   string
	LabelPredicate string
}

func (o Options) withDefaults() Options {
	if o.WindowSize <= 0 {
		o.WindowSize = splitter.DefaultWindowSize
	}
	if o.Parallel <= 0 {
		o.Parallel = 1
	}
	if o.Markup == nil {
		o.Markup = wikitext.NewMarkupParser()
	}
	return o
}

// firstLine keeps per-record log lines short.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
