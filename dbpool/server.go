package dbpool

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"     // registers the "mysql" driver
	_ "github.com/jackc/pgx/v5/stdlib"     // registers the "pgx" driver
	_ "github.com/snowflakedb/gosnowflake" // registers the "snowflake" driver
)

// openServer opens a server-based connection (MySQL, PostgreSQL, Snowflake)
// with retry. opts.Path carries the DSN string for the given driver.
func (m *DBManager) openServer(driverName string, opts OpenOptions) (*sql.DB, error) {
	maxRetries, baseMs := retryParams(opts)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sql.Open(driverName, opts.Path)
		if err == nil {
			configurePool(db)
			err = db.Ping()
			if err != nil {
				db.Close()
			}
		}

		if err != nil {
			lastErr = err
			m.logger(fmt.Sprintf("[dbpool] %s attempt %d/%d failed: %v", driverName, i+1, maxRetries, err))
			if maxRetries > 1 {
				time.Sleep(time.Duration(baseMs*(i+1)) * time.Millisecond)
			}
			continue
		}

		return db, nil
	}

	return nil, fmt.Errorf("dbpool: failed to open %s after %d retries: %w", driverName, maxRetries, lastErr)
}
