package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/record"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/splitter"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

// ConceptPipeline stores the entities of one triple dump and links each one
// to the page its label names, when that page is already stored. Running it
// again after more pages were ingested fills in the missing links.
type ConceptPipeline struct {
	store  store.Storage
	parser *record.TripleParser
	file   string
	window int
	stats  Stats
}

func NewConceptPipeline(st store.Storage, file string, opts Options) (*ConceptPipeline, error) {
	opts = opts.withDefaults()
	parser, err := record.NewTripleParser(opts.EntityPrefix, opts.LabelPredicate)
	if err != nil {
		return nil, err
	}
	return &ConceptPipeline{
		store:  st,
		parser: parser,
		file:   file,
		window: opts.WindowSize,
	}, nil
}

func (p *ConceptPipeline) Stats() Stats { return p.stats }

func (p *ConceptPipeline) Run(ctx context.Context, r io.Reader) (Stats, error) {
	logger.Info("[Concepts] Processing file", "file", p.file)

	sc := splitter.NewScanner(r, splitter.Lines(), p.window)
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
		logger.Warn("[Concepts] Dump ends without a newline", "file", p.file, "err", firstLine(err))
	}

	logger.Info("[Concepts] Finished file",
		"file", p.file,
		"success", p.stats.Success,
		"failure", p.stats.Failure,
		"unmatched", p.stats.Unmatched,
		"inserted", p.stats.Inserted,
		"linked", p.stats.Linked,
	)
	return p.stats, nil
}

func (p *ConceptPipeline) process(ctx context.Context, rec splitter.Record) {
	triple, err := p.parser.Parse(rec.Text)
	if errors.Is(err, record.ErrNoMatch) {
		p.stats.Unmatched++
		return
	}
	if err == nil {
		err = p.storeTriple(ctx, triple)
	}
	if err != nil {
		p.stats.Failure++
		logger.Error("[Concepts] Failed to store concept", "file", p.file, "offset", rec.Offset, "err", firstLine(err))
		return
	}
	p.stats.Success++
	if p.stats.Success%conceptProgressEvery == 0 {
		logger.Info("[Concepts] Processing file", "file", p.file, "success", p.stats.Success)
	}
}

func (p *ConceptPipeline) storeTriple(ctx context.Context, t record.Triple) error {
	inserted, err := p.store.InsertEntity(ctx, store.EntityRow{
		ConceptID:  t.ConceptID,
		ConceptURL: t.ConceptURL,
	})
	if err != nil {
		return err
	}
	if inserted {
		p.stats.Inserted++
	}

	// A failed link does not fail the concept, the next run retries it.
	linked, err := p.link(ctx, t)
	if err != nil {
		logger.Warn("[Concepts] Failed to link concept", "concept", t.ConceptID, "page", t.WikiID(), "err", firstLine(err))
		return nil
	}
	if linked {
		p.stats.Linked++
	}
	return nil
}

// link looks up both sides and writes the join row only if both exist.
// The check and the insert are not atomic; a page stored in between is
// picked up by the next run.
func (p *ConceptPipeline) link(ctx context.Context, t record.Triple) (bool, error) {
	wikiID := t.WikiID()

	var entityID, pageID int64
	var entityFound, pageFound bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entityID, entityFound, err = p.store.EntityID(gctx, t.ConceptID)
		return err
	})
	g.Go(func() error {
		var err error
		pageID, pageFound, err = p.store.PageID(gctx, wikiID)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	if !entityFound || !pageFound {
		return false, nil
	}

	return p.store.InsertEntityPage(ctx, store.EntityPageRow{
		EntityID:  entityID,
		PageID:    pageID,
		ConceptID: t.ConceptID,
		WikiID:    wikiID,
	})
}
