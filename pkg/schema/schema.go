// Package schema provisions the Postgres schema: it creates the schema and the
// base tables when missing and applies the embedded forward migrations up to a
// target version, recording progress in database_version.
package schema

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/leaselock"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Latest selects the newest embedded migration.
const Latest = "*"

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

type Migration struct {
	Version    int
	Identifier string
	SQL        string
}

type Migrator struct {
	db     dbConn
	schema string
	owner  string
}

// New returns a migrator for schema. Tables are handed to owner.
func New(db dbConn, schema, owner string) *Migrator {
	if schema == "" {
		schema = "public"
	}
	return &Migrator{db: db, schema: schema, owner: owner}
}

// Migrations reads the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	defer src.Close()
	return readMigrations(src)
}

func readMigrations(src source.Driver) ([]Migration, error) {
	var out []Migration
	v, err := src.First()
	for err == nil {
		m, rerr := readUp(src, v)
		if rerr != nil {
			return nil, rerr
		}
		out = append(out, m)
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return out, nil
}

func readUp(src source.Driver, version uint) (Migration, error) {
	r, identifier, err := src.ReadUp(version)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	return Migration{Version: int(version), Identifier: identifier, SQL: string(body)}, nil
}

// ParseTarget resolves a configured version, "*" meaning latest.
func ParseTarget(target string, latest int) (int, error) {
	if target == "" || target == Latest {
		return latest, nil
	}
	v, err := strconv.Atoi(target)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid schema version %q", target)
	}
	if v > latest {
		return 0, fmt.Errorf("schema version %d is newer than the latest migration %d", v, latest)
	}
	return v, nil
}

// pending returns the migrations with current < version <= target.
func pending(migrations []Migration, current, target int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > current && m.Version <= target {
			out = append(out, m)
		}
	}
	return out
}

// Run ensures the schema and base tables exist, then migrates to target.
func (m *Migrator) Run(ctx context.Context, target string) error {
	if err := m.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := m.EnsureTables(ctx); err != nil {
		return err
	}
	return m.Migrate(ctx, target)
}

func (m *Migrator) EnsureSchema(ctx context.Context) error {
	var exists bool
	err := m.db.QueryRow(ctx,
		`SELECT exists(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		m.schema).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check schema %s: %w", m.schema, err)
	}
	if exists {
		logger.Debug("[Schema] Schema already exists", "schema", m.schema)
		return nil
	}
	logger.Info("[Schema] Creating schema", "schema", m.schema)
	if _, err := m.db.Exec(ctx, "CREATE SCHEMA "+pq.QuoteIdentifier(m.schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", m.schema, err)
	}
	return nil
}

// EnsureTables creates every base table that does not exist yet.
func (m *Migrator) EnsureTables(ctx context.Context) error {
	existing, err := m.tables(ctx)
	if err != nil {
		return err
	}
	schema := pq.QuoteIdentifier(m.schema)
	owner := "CURRENT_USER"
	if m.owner != "" {
		owner = pq.QuoteIdentifier(m.owner)
	}
	for _, t := range baseTables {
		if _, ok := existing[t.name]; ok {
			continue
		}
		logger.Info("[Schema] Creating table", "schema", m.schema, "table", t.name)
		if _, err := m.db.Exec(ctx, fmt.Sprintf(t.ddl, schema, owner)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}
	return nil
}

func (m *Migrator) tables(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, t := range baseTables {
		var exists bool
		err := m.db.QueryRow(ctx,
			`SELECT exists(SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
			m.schema, t.name).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", t.name, err)
		}
		if exists {
			out[t.name] = struct{}{}
		}
	}
	return out, nil
}

// CurrentVersion is the highest recorded version, 0 for a fresh database.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var v int
	err := m.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT coalesce(max(version), 0) FROM %s.database_version`, pq.QuoteIdentifier(m.schema))).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read database version: %w", err)
	}
	return v, nil
}

// Migrate applies the pending migrations in order. Each migration and its
// version bump commit together, so a failed step leaves the recorded version
// at the last applied migration.
func (m *Migrator) Migrate(ctx context.Context, target string) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	latest := 0
	if len(migrations) > 0 {
		latest = migrations[len(migrations)-1].Version
	}
	goal, err := ParseTarget(target, latest)
	if err != nil {
		return err
	}
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("[Schema] Updating database", "current", current, "target", goal, "latest", latest)

	for _, mig := range pending(migrations, current, goal) {
		if err := m.apply(ctx, mig, current); err != nil {
			return err
		}
		logger.Info("[Schema] Applied migration", "version", mig.Version, "name", mig.Identifier)
		current = mig.Version
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration, current int) error {
	schema := pq.QuoteIdentifier(m.schema)

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+schema); err != nil {
		return fmt.Errorf("failed to select schema %s: %w", m.schema, err)
	}
	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Identifier, err)
	}

	var bump string
	var args []any
	if current == 0 {
		bump = fmt.Sprintf(`INSERT INTO %s.database_version (version) VALUES ($1)`, schema)
		args = []any{mig.Version}
	} else {
		bump = fmt.Sprintf(`UPDATE %s.database_version SET version = $1 WHERE version = $2`, schema)
		args = []any{mig.Version, current}
	}
	if _, err := tx.Exec(ctx, bump, args...); err != nil {
		return fmt.Errorf("failed to record database version %d: %w", mig.Version, err)
	}
	return tx.Commit(ctx)
}

// Provision runs the migrator under a lease lock so concurrent invocations
// against the same schema wait for each other.
func Provision(ctx context.Context, db dbConn, schema, owner, target string) error {
	locks := leaselock.New(db)
	if err := locks.EnsureTable(ctx); err != nil {
		return err
	}
	m := New(db, schema, owner)
	opts := leaselock.Options{
		TTL:          5 * time.Minute,
		Wait:         true,
		WaitInterval: time.Second,
		WaitJitter:   500 * time.Millisecond,
		TokenPrefix:  "migrate-",
	}
	return locks.WithLease(ctx, "schema:"+m.schema, opts, func(ctx context.Context) error {
		return m.Run(ctx, target)
	})
}
