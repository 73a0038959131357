package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/record"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/splitter"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wiki"
)

// PagePipeline stores the pages of one XML dump file.
type PagePipeline struct {
	store  store.Storage
	parser *record.PageParser
	file   string
	window int
	stats  Stats
}

func NewPagePipeline(st store.Storage, file, language string, opts Options) *PagePipeline {
	opts = opts.withDefaults()
	return &PagePipeline{
		store:  st,
		parser: record.NewPageParser(language, opts.Markup),
		file:   file,
		window: opts.WindowSize,
	}
}

func (p *PagePipeline) Stats() Stats { return p.stats }

// Run consumes r until EOF. Record level errors are counted and logged; only
// read errors and cancellation end the run early. A truncated trailing
// record is logged and flagged in the stats.
func (p *PagePipeline) Run(ctx context.Context, r io.Reader) (Stats, error) {
	logger.Info("[Pages] Processing file", "file", p.file, "lang", p.parser.Language())

	sc := splitter.NewScanner(r, splitter.Tags("<page>", "</page>"), p.window)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}
		p.process(ctx, sc.Record())
	}
	if err := sc.Err(); err != nil {
		if !errors.Is(err, splitter.ErrTruncatedRecord) {
			return p.stats, fmt.Errorf("failed to read %s: %w", p.file, err)
		}
		p.stats.Truncated = true
		logger.Warn("[Pages] Dump ends inside a record", "file", p.file, "err", firstLine(err))
	}

	logger.Info("[Pages] Finished file",
		"file", p.file,
		"success", p.stats.Success,
		"failure", p.stats.Failure,
		"skipped", p.stats.Skipped,
		"inserted", p.stats.Inserted,
	)
	return p.stats, nil
}

func (p *PagePipeline) process(ctx context.Context, rec splitter.Record) {
	if err := p.storeRecord(ctx, rec); err != nil {
		if errors.Is(err, record.ErrRedirect) {
			p.stats.Skipped++
			return
		}
		p.stats.Failure++
		logger.Error("[Pages] Failed to store page", "file", p.file, "offset", rec.Offset, "err", firstLine(err))
		return
	}
	p.stats.Success++
	if p.stats.Success%pageProgressEvery == 0 {
		logger.Info("[Pages] Processing file", "file", p.file, "success", p.stats.Success)
	}
}

// storeRecord handles a single record and turns a panic in the markup parser into
// an error for that record only.
func (p *PagePipeline) storeRecord(ctx context.Context, rec splitter.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing page: %v", r)
		}
	}()

	page, err := p.parser.Parse(rec.Text)
	if err != nil {
		return err
	}
	inserted, err := p.store.InsertPage(ctx, PageRow(page))
	if err != nil {
		return err
	}
	if inserted {
		p.stats.Inserted++
	}
	return nil
}

// PageRow maps a built page to its storage row.
func PageRow(page *wiki.Page) store.PageRow {
	refs := page.References()
	raw := make([]json.RawMessage, 0, len(refs))
	for _, r := range refs {
		raw = append(raw, r.Data)
	}
	return store.PageRow{
		WikiID:     page.ID,
		Lang:       page.Language,
		URL:        page.URL,
		Title:      page.Title,
		Categories: page.Categories,
		Text:       page.Text(),
		Refs:       raw,
	}
}
