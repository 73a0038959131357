package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/ErikNovak/wikipedia-dump-parsing/internal/config"
	"github.com/ErikNovak/wikipedia-dump-parsing/internal/source"
	"github.com/ErikNovak/wikipedia-dump-parsing/internal/util"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/ingest"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/logger/console"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/schema"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store"
	pgxstore "github.com/ErikNovak/wikipedia-dump-parsing/pkg/store/pgx"
	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/store/sqlite"
)

func main() {
	// replaced in setup once the configuration is known
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "wikidump",
		Usage: "load Wikipedia page dumps and Wikidata labels into a database",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging (DEBUG)"},
			&cli.StringFlag{Name: "log-format", Usage: "text, json or logfmt (LOG_FORMAT)"},
			&cli.StringFlag{Name: "driver", Usage: "postgres or sqlite (STORE_DRIVER)"},
			&cli.StringFlag{Name: "sqlite-path", Usage: "sqlite database file (SQLITE_PATH)"},
			&cli.IntFlag{Name: "chunk-size", Usage: "read window in bytes (CHUNK_SIZE)"},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create the schema and apply migrations",
				Flags:  []cli.Flag{versionFlag},
				Action: migrateAction,
			},
			{
				Name:   "pages",
				Usage:  "ingest the page dumps",
				Flags:  []cli.Flag{versionFlag, pagesFlag, parallelFlag},
				Action: pagesAction,
			},
			{
				Name:   "concepts",
				Usage:  "ingest the triple dump and link concepts to pages",
				Flags:  []cli.Flag{versionFlag, entitiesFlag},
				Action: conceptsAction,
			},
			{
				Name:   "run",
				Usage:  "ingest pages, then concepts",
				Flags:  []cli.Flag{versionFlag, pagesFlag, entitiesFlag, parallelFlag},
				Action: runAction,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Fatal("Command failed", "err", err)
		os.Exit(1)
	}
}

var (
	versionFlag  = &cli.StringFlag{Name: "version", Usage: "target schema version or * (PG_VERSION)"}
	pagesFlag    = &cli.StringFlag{Name: "pages", Usage: "folder or s3:// prefix with page dumps (WIKIPEDIA_PAGES_FOLDER_PATH)"}
	entitiesFlag = &cli.StringFlag{Name: "entities", Usage: "triple dump path or s3:// url (WIKIPEDIA_ENTITIES_FILE_PATH)"}
	parallelFlag = &cli.IntFlag{Name: "parallel", Usage: "page dumps processed at once (PARALLEL_FILES)"}
)

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.FromEnv()
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("driver") {
		cfg.StoreDriver = c.String("driver")
	}
	if c.IsSet("sqlite-path") {
		cfg.SQLitePath = c.String("sqlite-path")
	}
	if c.IsSet("chunk-size") {
		cfg.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("version") {
		cfg.Postgres.Version = c.String("version")
	}
	if c.IsSet("pages") {
		cfg.PagesFolder = c.String("pages")
	}
	if c.IsSet("entities") {
		cfg.EntitiesFile = c.String("entities")
	}
	if c.IsSet("parallel") {
		cfg.ParallelFiles = c.Int("parallel")
	}
	return cfg, cfg.Validate()
}

func setup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: cfg.LogFormat,
	})
	logger.Init(consoleLogger)
	return nil
}

// openStorage connects to the configured backend. For Postgres the schema is
// provisioned first, so every command sees the target version.
func openStorage(ctx context.Context, cfg config.Config) (store.Storage, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		logger.Info("[Storage] Opening sqlite database", "path", cfg.SQLitePath)
		return sqlite.OpenSQLite(ctx, cfg.SQLitePath)
	}

	pg := cfg.Postgres
	pool, err := util.RetryWithContext(ctx, 5, 2*time.Second, func(ctx context.Context) (*pgxpool.Pool, error) {
		return pgxstore.NewPool(ctx, pgxstore.PoolConfig{
			URL:         pg.ConnString(),
			MaxConns:    int32(pg.MaxConns),
			IdleTimeout: pg.IdleTimeout,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	owner := ""
	if pg.URL == "" {
		owner = pg.User
	}
	if err := schema.Provision(ctx, pool, pg.Schema, owner, pg.Version); err != nil {
		pool.Close()
		return nil, err
	}
	return pgxstore.NewDBStorage(pool, pgxstore.WithSchema(pg.Schema)), nil
}

func ingestOptions(cfg config.Config) ingest.Options {
	return ingest.Options{
		WindowSize: cfg.ChunkSize,
		Parallel:   cfg.ParallelFiles,
	}
}

// withStorage runs fn against an open storage and closes it afterwards.
func withStorage(c *cli.Context, fn func(cfg config.Config, st store.Storage) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	st, err := openStorage(c.Context, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("[Storage] Failed to close", "err", err)
		}
	}()
	return fn(cfg, st)
}

func migrateAction(c *cli.Context) error {
	return withStorage(c, func(cfg config.Config, _ store.Storage) error {
		logger.Info("[Migrate] Schema is up to date", "driver", cfg.StoreDriver, "schema", cfg.Postgres.Schema)
		return nil
	})
}

func pagesAction(c *cli.Context) error {
	return withStorage(c, func(cfg config.Config, st store.Storage) error {
		return ingestPages(c.Context, cfg, st)
	})
}

func conceptsAction(c *cli.Context) error {
	return withStorage(c, func(cfg config.Config, st store.Storage) error {
		return ingestConcepts(c.Context, cfg, st)
	})
}

func runAction(c *cli.Context) error {
	return withStorage(c, func(cfg config.Config, st store.Storage) error {
		if err := ingestPages(c.Context, cfg, st); err != nil {
			return err
		}
		return ingestConcepts(c.Context, cfg, st)
	})
}

func ingestPages(ctx context.Context, cfg config.Config, st store.Storage) error {
	if cfg.PagesFolder == "" {
		return fmt.Errorf("no page dumps configured, set WIKIPEDIA_PAGES_FOLDER_PATH or --pages")
	}
	dumps, err := source.New(cfg.S3).PageDumps(ctx, cfg.PagesFolder)
	if err != nil {
		return err
	}
	if len(dumps) == 0 {
		logger.Warn("[Pages] No page dumps found", "folder", cfg.PagesFolder)
		return nil
	}
	stats, err := ingest.RunPages(ctx, st, dumps, ingestOptions(cfg))
	logger.Info("[Pages] Done", "stats", stats.String())
	return err
}

func ingestConcepts(ctx context.Context, cfg config.Config, st store.Storage) error {
	if cfg.EntitiesFile == "" {
		return fmt.Errorf("no triple dump configured, set WIKIPEDIA_ENTITIES_FILE_PATH or --entities")
	}
	stats, err := ingest.RunConcepts(ctx, st, source.New(cfg.S3).Dump(cfg.EntitiesFile), ingestOptions(cfg))
	logger.Info("[Concepts] Done", "stats", stats.String())
	return err
}
