package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
)

// Dump is one input file. Language is only used for page dumps.
type Dump struct {
	Name     string
	Language string
	Open     func(ctx context.Context) (io.ReadCloser, error)
}

func newRunID() string {
	id, err := gonanoid.New(10)
	if err != nil {
		return "unknown"
	}
	return id
}

// RunPages processes the page dumps with at most opts.Parallel files in
// flight. Each file gets its own pipeline; only storage is shared. The first
// read error cancels the remaining files.
func RunPages(ctx context.Context, st store.Storage, dumps []Dump, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	runID := newRunID()
	start := time.Now()
	logger.Info("[Pages] Starting run", "run", runID, "files", len(dumps), "parallel", opts.Parallel)

	var mu sync.Mutex
	var total Stats

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for _, d := range dumps {
		g.Go(func() error {
			rc, err := d.Open(gctx)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", d.Name, err)
			}
			defer rc.Close()

			stats, err := NewPagePipeline(st, d.Name, d.Language, opts).Run(gctx, rc)
			mu.Lock()
			total.Add(stats)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	logger.Info("[Pages] Run finished",
		"run", runID,
		"files", len(dumps),
		"success", total.Success,
		"failure", total.Failure,
		"skipped", total.Skipped,
		"duration", time.Since(start).Round(time.Second),
	)
	return total, err
}

// RunConcepts processes a triple dump.
func RunConcepts(ctx context.Context, st store.Storage, dump Dump, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	runID := newRunID()
	start := time.Now()
	logger.Info("[Concepts] Starting run", "run", runID, "file", dump.Name)

	p, err := NewConceptPipeline(st, dump.Name, opts)
	if err != nil {
		return Stats{}, err
	}
	rc, err := dump.Open(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open %s: %w", dump.Name, err)
	}
	defer rc.Close()

	stats, err := p.Run(ctx, rc)
	logger.Info("[Concepts] Run finished",
		"run", runID,
		"success", stats.Success,
		"failure", stats.Failure,
		"unmatched", stats.Unmatched,
		"linked", stats.Linked,
		"duration", time.Since(start).Round(time.Second),
	)
	return stats, err
}
