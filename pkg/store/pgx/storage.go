package pgx

import (
	"context"
	"fmt"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// DBStorage implements store.Storage on PostgreSQL. All statements are
// qualified with the configured schema.
type DBStorage struct {
	conn   pgxIConn
	closer func()
	schema string
}

type DBStorageOption func(*DBStorage)

// WithSchema sets the schema holding the tables (default "public").
func WithSchema(schema string) DBStorageOption {
	return func(s *DBStorage) {
		if schema != "" {
			s.schema = schema
		}
	}
}

// NewDBStorageWithConnection wraps an existing connection or pool. Close on
// the returned storage does not close conn.
func NewDBStorageWithConnection(conn pgxIConn, opts ...DBStorageOption) *DBStorage {
	s := &DBStorage{conn: conn, schema: "public"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// NewDBStorage takes ownership of pool, Close releases it.
func NewDBStorage(pool *pgxpool.Pool, opts ...DBStorageOption) *DBStorage {
	s := NewDBStorageWithConnection(pool, opts...)
	s.closer = pool.Close
	return s
}

func (s *DBStorage) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

func (s *DBStorage) table(name string) string {
	return pgxv5.Identifier{s.schema, name}.Sanitize()
}

type PoolConfig struct {
	URL         string
	MaxConns    int32
	IdleTimeout time.Duration
}

// NewPool opens a pool and verifies it with a ping.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.IdleTimeout > 0 {
		pc.MaxConnIdleTime = cfg.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}
