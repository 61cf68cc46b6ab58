// Package dbpool provides a unified database connection manager that abstracts
// away engine-specific details (SQLite, MySQL, PostgreSQL, Snowflake) and
// handles retry logic and connection pooling.
//
// All code that needs a *sql.DB for a customer connection or the platform
// store should go through DBManager instead of calling sql.Open directly.
// This gives us a single place to:
//   - map a connection dialect to its registered driver
//   - add retry/backoff for transient open failures and file-lock contention
//   - enforce connection pool settings
package dbpool

import (
	"database/sql"
	"fmt"
)

// Engine identifies the database engine to use.
type Engine string

const (
	EngineSQLite    Engine = "sqlite"
	EngineMySQL     Engine = "mysql"
	EnginePostgres  Engine = "postgres"
	EngineSnowflake Engine = "snowflake"
)

// ParseEngine maps a connection dialect string to an Engine. The boolean is
// false for dialects no SQL driver is registered for (e.g. mongodb).
func ParseEngine(dialect string) (Engine, bool) {
	switch Engine(dialect) {
	case EngineSQLite, EngineMySQL, EnginePostgres, EngineSnowflake:
		return Engine(dialect), true
	default:
		return "", false
	}
}

// AccessMode controls whether the connection is read-only or read-write.
type AccessMode int

const (
	ModeReadWrite AccessMode = iota
	ModeReadOnly
)

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	// Engine to use. Defaults to the manager's default engine if empty.
	Engine Engine
	// Path is the file path for SQLite. For server engines it is the DSN.
	Path string
	// Mode controls read-only vs read-write access (SQLite only).
	Mode AccessMode
	// MaxRetries overrides the default retry count (0 = use default).
	MaxRetries int
	// RetryBaseMs overrides the base retry interval in milliseconds (0 = use default).
	RetryBaseMs int
}

// Logger is a simple logging function signature.
type Logger func(string)

// DBManager is the central connection manager.
type DBManager struct {
	logger Logger
	engine Engine // default engine for the application
}

// New creates a new DBManager with the given default engine and logger.
func New(defaultEngine Engine, logger Logger) *DBManager {
	if logger == nil {
		logger = func(string) {}
	}
	return &DBManager{
		engine: defaultEngine,
		logger: logger,
	}
}

// DefaultEngine returns the manager's default engine.
func (m *DBManager) DefaultEngine() Engine {
	return m.engine
}

// Open opens a database connection with the given options.
// It applies retry logic to handle transient failures and lock contention.
func (m *DBManager) Open(opts OpenOptions) (*sql.DB, error) {
	eng := opts.Engine
	if eng == "" {
		eng = m.engine
	}

	switch eng {
	case EngineSQLite:
		return m.openSQLite(opts)
	case EngineMySQL:
		return m.openServer("mysql", opts)
	case EnginePostgres:
		return m.openServer("pgx", opts)
	case EngineSnowflake:
		return m.openServer("snowflake", opts)
	default:
		return nil, fmt.Errorf("dbpool: unsupported engine %q", eng)
	}
}

// OpenReadOnly is a convenience wrapper for read-only access.
func (m *DBManager) OpenReadOnly(path string) (*sql.DB, error) {
	return m.Open(OpenOptions{Path: path, Mode: ModeReadOnly})
}

// OpenWritable is a convenience wrapper for read-write access.
func (m *DBManager) OpenWritable(path string) (*sql.DB, error) {
	return m.Open(OpenOptions{Path: path, Mode: ModeReadWrite})
}

// configurePool sets connection pool parameters that ensure file locks are
// released immediately on Close(). Only applied to file-based engines.
func configurePool(db *sql.DB) {
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(1)
}

// retryParams returns (maxRetries, baseMs) from opts or defaults.
func retryParams(opts OpenOptions) (int, int) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 8
	}
	baseMs := opts.RetryBaseMs
	if baseMs <= 0 {
		baseMs = 400
	}
	return maxRetries, baseMs
}
