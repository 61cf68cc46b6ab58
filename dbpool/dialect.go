package dbpool

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect provides engine-specific SQL fragments so callers don't need to
// know which engine is in use.
type Dialect struct {
	Engine Engine
}

// NewDialect creates a Dialect for the given engine.
func NewDialect(engine Engine) *Dialect {
	return &Dialect{Engine: engine}
}

// QuoteIdent returns a properly quoted SQL identifier.
// SQLite/PostgreSQL/Snowflake use double quotes; MySQL uses backticks.
// Internal quotes are escaped by doubling them.
func (d *Dialect) QuoteIdent(name string) string {
	switch d.Engine {
	case EngineMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// ListTablesQuery returns the SQL to list user tables.
func (d *Dialect) ListTablesQuery() string {
	switch d.Engine {
	case EngineSQLite:
		return "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'"
	case EnginePostgres:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE'"
	case EngineSnowflake:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_type = 'BASE TABLE'"
	default:
		return "SHOW TABLES"
	}
}

// DescribeColumnsQuery returns the SQL to describe columns for a table.
// For PostgreSQL/Snowflake, the returned query uses a ? placeholder and the
// caller must pass tableName as a query parameter: db.Query(sql, tableName).
// For SQLite/MySQL, the table name is quoted directly in the SQL string.
func (d *Dialect) DescribeColumnsQuery(tableName string) (query string, parameterized bool) {
	qi := d.QuoteIdent(tableName)
	switch d.Engine {
	case EngineSQLite:
		return fmt.Sprintf("PRAGMA table_info(%s)", qi), false
	case EnginePostgres:
		return "SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position", true
	case EngineSnowflake:
		return "SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position", true
	default:
		return fmt.Sprintf("DESCRIBE %s", qi), false
	}
}

// SupportsLimit reports whether the engine accepts a trailing LIMIT clause.
// All currently registered SQL engines do; the method exists so the query
// runner never assumes it for future engines.
func (d *Dialect) SupportsLimit() bool {
	switch d.Engine {
	case EngineSQLite, EngineMySQL, EnginePostgres, EngineSnowflake:
		return true
	default:
		return false
	}
}

var limitClausePattern = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)

// ApplyRowLimit appends "LIMIT n" to a query that has no limit clause yet.
// Trailing semicolons are stripped first so "ORDER BY x; LIMIT n" can never
// be produced. Queries that already carry a LIMIT, and engines without LIMIT
// support, are returned unchanged.
func (d *Dialect) ApplyRowLimit(query string, limit int) string {
	query = strings.TrimRight(strings.TrimSpace(query), "; \t\n\r")
	if limit <= 0 || !d.SupportsLimit() {
		return query
	}
	if limitClausePattern.MatchString(query) {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
