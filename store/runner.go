package store

import (
	"context"
	"database/sql"
	"fmt"

	"chartmind/dbpool"
	"chartmind/orchestrator"
)

// Runner implements orchestrator.QueryRunner by opening customer
// connections through dbpool and applying dialect helpers.
type Runner struct {
	manager *dbpool.DBManager
	logFunc func(string)
}

// NewRunner creates a Runner over a connection manager.
func NewRunner(manager *dbpool.DBManager, logFunc func(string)) *Runner {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Runner{manager: manager, logFunc: logFunc}
}

func (r *Runner) open(conn *orchestrator.Connection) (*sql.DB, *dbpool.Dialect, error) {
	engine, ok := dbpool.ParseEngine(conn.Subtype)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported dialect: %s", conn.Subtype)
	}
	db, err := r.manager.Open(dbpool.OpenOptions{
		Engine: engine,
		Path:   conn.DSN,
		Mode:   dbpool.ModeReadOnly,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open connection %s: %w", conn.ID, err)
	}
	return db, dbpool.NewDialect(engine), nil
}

func (r *Runner) ListTables(ctx context.Context, conn *orchestrator.Connection) ([]string, error) {
	db, dialect, err := r.open(conn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, dialect.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (r *Runner) DescribeTable(ctx context.Context, conn *orchestrator.Connection, table string) ([]orchestrator.ColumnInfo, error) {
	db, dialect, err := r.open(conn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query, parameterized := dialect.DescribeColumnsQuery(table)
	var rows *sql.Rows
	if parameterized {
		rows, err = db.QueryContext(ctx, query, table)
	} else {
		rows, err = db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read describe columns: %w", err)
	}

	// PRAGMA table_info and DESCRIBE return several columns; name and
	// type live at fixed positions. information_schema queries return
	// exactly (column_name, data_type).
	nameIdx, typeIdx := 0, 1
	if dialect.Engine == dbpool.EngineSQLite {
		nameIdx, typeIdx = 1, 2
	}

	var out []orchestrator.ColumnInfo
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		out = append(out, orchestrator.ColumnInfo{
			Name: asString(vals[nameIdx]),
			Type: asString(vals[typeIdx]),
		})
	}
	return out, rows.Err()
}

func (r *Runner) RunQuery(ctx context.Context, conn *orchestrator.Connection, query string, rowLimit int) ([]string, []map[string]interface{}, error) {
	db, dialect, err := r.open(conn)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	limited := dialect.ApplyRowLimit(query, rowLimit)
	r.logFunc(fmt.Sprintf("[RUNNER] Executing on %s: %s", conn.ID, limited))

	rows, err := db.QueryContext(ctx, limited)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var results []map[string]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rowMap := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = vals[i]
			}
		}
		results = append(results, rowMap)
	}
	return cols, results, rows.Err()
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
