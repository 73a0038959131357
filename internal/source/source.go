// Package source opens dump files from the local disk or from S3.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ErikNovak/wikipedia-dump-parsing/internal/config"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/ingest"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/record"
)

type Source struct {
	cfg config.S3

	once   sync.Once
	client *s3.Client
	err    error
}

// New returns a Source. The S3 client is created on the first s3:// location.
func New(cfg config.S3) *Source {
	return &Source{cfg: cfg}
}

func (s *Source) s3Client(ctx context.Context) (*s3.Client, error) {
	s.once.Do(func() {
		s.client, s.err = NewS3Client(ctx, s.cfg)
	})
	return s.client, s.err
}

// Open streams the file at location.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, ok := ParseS3URL(location)
	if !ok {
		return os.Open(location)
	}
	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	return getObject(ctx, client, bucket, key)
}

// Dump wraps a single file, such as the triple dump.
func (s *Source) Dump(location string) ingest.Dump {
	return ingest.Dump{
		Name: location,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return s.Open(ctx, location)
		},
	}
}

// IsPageDump reports whether name is an uncompressed page dump.
func IsPageDump(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	return base != "README.md" && !strings.HasSuffix(base, ".bz2") && !strings.HasPrefix(base, ".")
}

// PageDumps lists the page dumps under a folder or s3:// prefix, sorted by
// name. Files without a language in their name are skipped.
func (s *Source) PageDumps(ctx context.Context, location string) ([]ingest.Dump, error) {
	names, err := s.list(ctx, location)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var dumps []ingest.Dump
	for _, name := range names {
		if !IsPageDump(name) {
			continue
		}
		lang, ok := record.LanguageFromFilename(name)
		if !ok {
			logger.Warn("[Source] Skipping file without language", "file", name)
			continue
		}
		d := s.Dump(name)
		d.Language = lang
		dumps = append(dumps, d)
	}
	return dumps, nil
}

func (s *Source) list(ctx context.Context, location string) ([]string, error) {
	bucket, prefix, ok := ParseS3URL(location)
	if ok {
		client, err := s.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		keys, err := listObjects(ctx, client, bucket, prefix)
		if err != nil {
			return nil, err
		}
		for i, k := range keys {
			keys[i] = fmt.Sprintf("s3://%s/%s", bucket, k)
		}
		return keys, nil
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, filepath.Join(location, e.Name()))
	}
	return names, nil
}
