package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator"

	"github.com/ErikNovak/wikipedia-dump-parsing/internal/util"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Postgres struct {
	Host        string        `validate:"required"`
	Port        int           `validate:"min=1,max=65535"`
	Database    string        `validate:"required"`
	User        string        `validate:"required"`
	Password    string
	MaxConns    int           `validate:"min=1"`
	IdleTimeout time.Duration `validate:"min=0"`
	Schema      string        `validate:"required"`
	// Version is the target schema version, "*" for the latest.
	Version string `validate:"schemaversion"`
	// URL overrides the individual connection fields.
	URL string
}

// ConnString returns URL or a postgres:// url built from the fields.
func (p Postgres) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else {
		u.User = url.User(p.User)
	}
	return u.String()
}

type S3 struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type Config struct {
	Postgres Postgres
	S3       S3

	StoreDriver string `validate:"oneof=postgres sqlite"`
	SQLitePath  string

	// EntitiesFile and PagesFolder are local paths or s3://bucket/key urls.
	EntitiesFile string
	PagesFolder  string

	ChunkSize     int `validate:"min=1"`
	ParallelFiles int `validate:"min=1"`

	Debug     bool
	LogFormat string `validate:"oneof=text json logfmt"`
}

// FromEnv reads the configuration from the process environment.
func FromEnv() Config {
	return Config{
		Postgres: Postgres{
			Host:        util.GetEnvString("PG_HOST", "127.0.0.1"),
			Port:        util.GetEnvInt("PG_PORT", 5432),
			Database:    util.GetEnvString("PG_DATABASE", "wikipedia"),
			User:        util.GetEnvString("PG_USER", "postgres"),
			Password:    util.GetEnv("PG_PASSWORD"),
			MaxConns:    util.GetEnvInt("PG_MAX", 10),
			IdleTimeout: util.GetEnvMillis("PG_IDLE_TIMEOUT_MILLIS", 30*time.Second),
			Schema:      util.GetEnvString("PG_SCHEMA", "public"),
			Version:     util.GetEnvString("PG_VERSION", "*"),
			URL:         util.GetEnv("DATABASE_URL"),
		},
		S3: S3{
			Region:    util.GetEnv("AWS_REGION"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
		},
		StoreDriver:   util.GetEnvString("STORE_DRIVER", DriverPostgres),
		SQLitePath:    util.GetEnvString("SQLITE_PATH", "wikipedia.db"),
		EntitiesFile:  util.GetEnv("WIKIPEDIA_ENTITIES_FILE_PATH"),
		PagesFolder:   util.GetEnv("WIKIPEDIA_PAGES_FOLDER_PATH"),
		ChunkSize:     util.GetEnvInt("CHUNK_SIZE", 64*1024),
		ParallelFiles: util.GetEnvInt("PARALLEL_FILES", 4),
		Debug:         util.GetEnvBool("DEBUG", false),
		LogFormat:     util.GetEnvString("LOG_FORMAT", "text"),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("schemaversion", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "*" {
			return true
		}
		n, err := strconv.Atoi(s)
		return err == nil && n >= 0
	})
	return v
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.StoreDriver == DriverSQLite && c.SQLitePath == "" {
		return fmt.Errorf("invalid configuration: SQLITE_PATH is required for the sqlite driver")
	}
	return nil
}
