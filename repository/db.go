package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultPingTimeout bounds the connection check done when the client is created.
const DefaultPingTimeout = 5 * time.Second

func init() {
	persistence.RegisterModel((*SocialAccountModel)(nil))
	persistence.RegisterModel((*OAuthConfigModel)(nil))
	persistence.RegisterModel((*OAuthStateModel)(nil))
}

// OpenOptions configures Open.
type OpenOptions struct {
	Driver string
	DSN    string
	// Debug logs every query to stderr.
	Debug       bool
	PingTimeout time.Duration
}

// NormalizeDriver maps driver aliases to DriverSQLite or DriverPostgres.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite3":
		return DriverSQLite, nil
	case DriverPostgres, "pgx", "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// persistenceConfig exposes OpenOptions through the getters persistence.New reads.
type persistenceConfig struct {
	opts OpenOptions
}

func (c persistenceConfig) GetDriver() string {
	driver, _ := NormalizeDriver(c.opts.Driver)
	return driver
}

func (c persistenceConfig) GetServer() string {
	return c.opts.DSN
}

// GetDebug reports false; Open attaches the bundebug hook itself.
func (c persistenceConfig) GetDebug() bool {
	return false
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	if c.opts.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return c.opts.PingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return ""
}

// Open connects to the configured database and returns a persistence client
// with the social migrations registered.
func Open(opts OpenOptions) (*persistence.Client, error) {
	driver, err := NormalizeDriver(opts.Driver)
	if err != nil {
		return nil, err
	}

	var (
		sqldb   *sql.DB
		dialect schema.Dialect
	)

	switch driver {
	case DriverSQLite:
		sqldb, err = sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if strings.Contains(opts.DSN, ":memory:") {
			sqldb.SetMaxOpenConns(1)
		}
		dialect = sqlitedialect.New()
	case DriverPostgres:
		sqldb, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		dialect = pgdialect.New()
	}

	opts.Driver = driver
	client, err := NewPersistence(sqldb, dialect, opts)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return client, nil
}

// NewPersistence wraps an open connection in a persistence client and
// registers the social migrations for both supported dialects.
func NewPersistence(sqldb *sql.DB, dialect schema.Dialect, opts OpenOptions) (*persistence.Client, error) {
	client, err := persistence.New(persistenceConfig{opts: opts}, sqldb, dialect)
	if err != nil {
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	client.RegisterDialectMigrations(
		MigrationsFS(),
		persistence.WithDialectSourceLabel("repository/migrations"),
		persistence.WithValidationTargets(DriverPostgres, DriverSQLite),
	)

	if opts.Debug {
		client.DB().AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return client, nil
}
