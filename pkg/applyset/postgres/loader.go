// Package postgres loads the apply dataset from a PostgreSQL relation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/pkg/applyset"
)

// Config describes the connection and the relation to read.
type Config struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Port        int           `mapstructure:"port" yaml:"port"`
	Database    string        `mapstructure:"database" yaml:"database"`
	User        string        `mapstructure:"user" yaml:"user"`
	Password    string        `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode     string        `mapstructure:"sslmode" yaml:"sslmode"`
	MaxConns    int32         `mapstructure:"max_conns" yaml:"max_conns"`
	ConnTimeout time.Duration `mapstructure:"conn_timeout" yaml:"conn_timeout"`

	// Relation is the table (optionally schema qualified) holding the rows.
	Relation string `mapstructure:"relation" yaml:"relation"`

	// StableIDColumn and LegacyKeyColumn name the joined columns.
	StableIDColumn  string `mapstructure:"stable_id_column" yaml:"stable_id_column"`
	LegacyKeyColumn string `mapstructure:"legacy_key_column" yaml:"legacy_key_column"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 2
	}
	if c.ConnTimeout == 0 {
		c.ConnTimeout = 10 * time.Second
	}
	if c.Relation == "" {
		c.Relation = "gap_user"
	}
	if c.StableIDColumn == "" {
		c.StableIDColumn = "sub"
	}
	if c.LegacyKeyColumn == "" {
		c.LegacyKeyColumn = "gap_user_id"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("apply postgres host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("apply postgres database is required")
	}
	if c.User == "" {
		return fmt.Errorf("apply postgres user is required")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode, int(c.ConnTimeout.Seconds()))
}

// Query returns the read statement with sanitized identifiers.
func (c *Config) Query() string {
	relation := pgx.Identifier(strings.Split(c.Relation, "."))
	return fmt.Sprintf("SELECT %s::text, %s::text FROM %s",
		pgx.Identifier{c.LegacyKeyColumn}.Sanitize(),
		pgx.Identifier{c.StableIDColumn}.Sanitize(),
		relation.Sanitize())
}

// Loader reads the apply relation through a pgx pool.
type Loader struct {
	config Config
}

// New creates a loader. The connection is opened on Load.
func New(config Config) (*Loader, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid apply dataset configuration: %w", err)
	}
	return &Loader{config: config}, nil
}

// Name implements applyset.Loader.
func (l *Loader) Name() string { return "postgres" }

// Load implements applyset.Loader.
func (l *Loader) Load(ctx context.Context) (*applyset.Dataset, error) {
	poolConfig, err := pgxpool.ParseConfig(l.config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = l.config.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	return readRows(ctx, pool, l.config.Query())
}

// querier is the subset of pgxpool.Pool used to read the relation.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func readRows(ctx context.Context, q querier, query string) (*applyset.Dataset, error) {
	start := time.Now()
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, mapPgError(err)
	}

	var out []applyset.Row
	var legacy, stable *string
	_, err = pgx.ForEachRow(rows, []any{&legacy, &stable}, func() error {
		if stable == nil {
			out = append(out, applyset.Row{})
			return nil
		}
		r := applyset.Row{StableID: *stable}
		if legacy != nil {
			r.LegacyForeignKey = *legacy
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	ds := applyset.NewDataset(out)
	n, skipped, dups := ds.Stats()
	logger.DebugCtx(ctx, "apply dataset read",
		logger.KeySource, "postgres",
		logger.KeyRows, n,
		"skipped", skipped,
		"duplicates", dups,
		logger.KeyDurationMs, logger.Duration(start))
	return ds, nil
}

// mapPgError adds context to the PostgreSQL errors an operator can act on.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("read apply dataset: %w", err)
	}
	switch pgErr.Code {
	case "42P01": // undefined_table
		return fmt.Errorf("apply relation does not exist: %w", err)
	case "42703": // undefined_column
		return fmt.Errorf("apply column does not exist: %w", err)
	case "42501": // insufficient_privilege
		return fmt.Errorf("no read permission on apply relation: %w", err)
	}
	return fmt.Errorf("read apply dataset: %w", err)
}

var _ applyset.Loader = (*Loader)(nil)
