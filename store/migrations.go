package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"chartmind/dbpool"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// GetMigrations returns all platform migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create platform tables",
			Up: `
				CREATE TABLE IF NOT EXISTS teams (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS connections (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					subtype TEXT NOT NULL,
					dsn TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_connections_team ON connections(team_id);

				CREATE TABLE IF NOT EXISTS projects (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					name TEXT NOT NULL,
					ghost BOOLEAN DEFAULT FALSE,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_projects_team ON projects(team_id);

				CREATE TABLE IF NOT EXISTS datasets (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					connection_id TEXT NOT NULL,
					name TEXT NOT NULL,
					query TEXT NOT NULL,
					transient BOOLEAN DEFAULT FALSE,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_datasets_team ON datasets(team_id);

				CREATE TABLE IF NOT EXISTS charts (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					project_id TEXT NOT NULL,
					dataset_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					config TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_charts_team ON charts(team_id);
				CREATE INDEX IF NOT EXISTS idx_charts_project ON charts(project_id);

				CREATE TABLE IF NOT EXISTS query_cache (
					dataset_id TEXT NOT NULL,
					cache_key TEXT NOT NULL,
					payload TEXT NOT NULL,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (dataset_id, cache_key)
				);
			`,
			Down: `
				DROP TABLE IF EXISTS query_cache;
				DROP TABLE IF EXISTS charts;
				DROP TABLE IF EXISTS datasets;
				DROP TABLE IF EXISTS projects;
				DROP TABLE IF EXISTS connections;
				DROP TABLE IF EXISTS teams;
			`,
		},
		{
			Version:     2,
			Description: "Create conversation tables",
			Up: `
				CREATE TABLE IF NOT EXISTS conversations (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					user_id TEXT NOT NULL DEFAULT '',
					title TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'active',
					message_count INTEGER NOT NULL DEFAULT 0,
					error_message TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_conversations_team ON conversations(team_id);

				CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					conversation_id TEXT NOT NULL,
					sequence INTEGER NOT NULL,
					role TEXT NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					tool_calls TEXT NOT NULL DEFAULT '',
					tool_call_id TEXT NOT NULL DEFAULT '',
					tool_name TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(conversation_id, sequence)
				);
				CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

				CREATE TABLE IF NOT EXISTS usage_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					conversation_id TEXT NOT NULL,
					model TEXT NOT NULL,
					prompt_tokens INTEGER NOT NULL DEFAULT 0,
					completion_tokens INTEGER NOT NULL DEFAULT 0,
					total_tokens INTEGER NOT NULL DEFAULT 0,
					elapsed_ms INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_usage_conversation ON usage_records(conversation_id);
			`,
			Down: `
				DROP TABLE IF EXISTS usage_records;
				DROP TABLE IF EXISTS messages;
				DROP TABLE IF EXISTS conversations;
			`,
		},
	}
}

// InitDB opens the platform database and runs pending migrations.
func InitDB(dataDir string, manager *dbpool.DBManager) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "chartmind.db")
	db, err := manager.OpenWritable(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations applies all migrations newer than the stored version.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range GetMigrations() {
		if m.Version <= current {
			continue
		}
		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`, m.Version, m.Description); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
