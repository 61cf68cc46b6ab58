// Package store is the sqlite-backed platform and conversation store.
// It implements the orchestrator's DataStore and ConversationStore
// interfaces; the orchestrator itself never sees SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chartmind/orchestrator"
)

// Platform implements orchestrator.DataStore over a sqlite database.
type Platform struct {
	db      *sql.DB
	logFunc func(string)
}

// NewPlatform creates a Platform over an initialized database.
func NewPlatform(db *sql.DB, logFunc func(string)) *Platform {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Platform{db: db, logFunc: logFunc}
}

func (p *Platform) GetTeam(ctx context.Context, teamID string) (*orchestrator.Team, error) {
	var t orchestrator.Team
	err := p.db.QueryRowContext(ctx, `SELECT id, name FROM teams WHERE id = ?`, teamID).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load team: %w", err)
	}
	return &t, nil
}

// CreateTeam registers a team. Used by setup and tests, not by tools.
func (p *Platform) CreateTeam(ctx context.Context, t *orchestrator.Team) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO teams (id, name) VALUES (?, ?)`, t.ID, t.Name)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (p *Platform) ListConnections(ctx context.Context, teamID string) ([]orchestrator.Connection, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, team_id, name, type, subtype, dsn
		FROM connections WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.Connection
	for rows.Next() {
		var c orchestrator.Connection
		if err := rows.Scan(&c.ID, &c.TeamID, &c.Name, &c.Type, &c.Subtype, &c.DSN); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Platform) GetConnection(ctx context.Context, teamID, connectionID string) (*orchestrator.Connection, error) {
	var c orchestrator.Connection
	err := p.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, type, subtype, dsn
		FROM connections WHERE id = ? AND team_id = ?`, connectionID, teamID).
		Scan(&c.ID, &c.TeamID, &c.Name, &c.Type, &c.Subtype, &c.DSN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return &c, nil
}

// CreateConnection registers a connection. Setup/tests only.
func (p *Platform) CreateConnection(ctx context.Context, c *orchestrator.Connection) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO connections (id, team_id, name, type, subtype, dsn)
		VALUES (?, ?, ?, ?, ?, ?)`, c.ID, c.TeamID, c.Name, c.Type, c.Subtype, c.DSN)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

func (p *Platform) ListProjects(ctx context.Context, teamID string) ([]orchestrator.Project, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, team_id, name, ghost FROM projects WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.Project
	for rows.Next() {
		var p2 orchestrator.Project
		if err := rows.Scan(&p2.ID, &p2.TeamID, &p2.Name, &p2.Ghost); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p2)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		charts, err := p.listChartSummaries(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Charts = charts
	}
	return out, nil
}

func (p *Platform) listChartSummaries(ctx context.Context, projectID string) ([]orchestrator.ChartSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, type FROM charts WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.ChartSummary
	for rows.Next() {
		var cs orchestrator.ChartSummary
		if err := rows.Scan(&cs.ID, &cs.Name, &cs.Type); err != nil {
			return nil, fmt.Errorf("failed to scan chart summary: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (p *Platform) GetProject(ctx context.Context, teamID, projectID string) (*orchestrator.Project, error) {
	var proj orchestrator.Project
	err := p.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, ghost FROM projects WHERE id = ? AND team_id = ?`,
		projectID, teamID).Scan(&proj.ID, &proj.TeamID, &proj.Name, &proj.Ghost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	charts, err := p.listChartSummaries(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	proj.Charts = charts
	return &proj, nil
}

// CreateProject registers a project. Setup/tests only.
func (p *Platform) CreateProject(ctx context.Context, proj *orchestrator.Project) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO projects (id, team_id, name, ghost) VALUES (?, ?, ?, ?)`,
		proj.ID, proj.TeamID, proj.Name, proj.Ghost)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (p *Platform) CreateDataset(ctx context.Context, ds *orchestrator.Dataset) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO datasets (id, team_id, connection_id, name, query, transient)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.TeamID, ds.ConnectionID, ds.Name, ds.Query, ds.Transient)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

func (p *Platform) UpdateDataset(ctx context.Context, ds *orchestrator.Dataset) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE datasets SET connection_id = ?, name = ?, query = ?
		WHERE id = ? AND team_id = ?`,
		ds.ConnectionID, ds.Name, ds.Query, ds.ID, ds.TeamID)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	return requireRow(res)
}

func (p *Platform) GetDataset(ctx context.Context, teamID, datasetID string) (*orchestrator.Dataset, error) {
	var ds orchestrator.Dataset
	err := p.db.QueryRowContext(ctx, `
		SELECT id, team_id, connection_id, name, query, transient
		FROM datasets WHERE id = ? AND team_id = ?`, datasetID, teamID).
		Scan(&ds.ID, &ds.TeamID, &ds.ConnectionID, &ds.Name, &ds.Query, &ds.Transient)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return &ds, nil
}

// DeleteDataset removes the dataset together with its cache entries.
func (p *Platform) DeleteDataset(ctx context.Context, teamID, datasetID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM query_cache WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("failed to purge query cache: %w", err)
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ? AND team_id = ?`, datasetID, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return requireRow(res)
}

func (p *Platform) CreateChart(ctx context.Context, c *orchestrator.Chart) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO charts (id, team_id, project_id, dataset_id, name, type, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TeamID, c.ProjectID, c.DatasetID, c.Name, c.Type, c.Config)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	return nil
}

func (p *Platform) UpdateChart(ctx context.Context, c *orchestrator.Chart) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE charts SET project_id = ?, dataset_id = ?, name = ?, type = ?, config = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND team_id = ?`,
		c.ProjectID, c.DatasetID, c.Name, c.Type, c.Config, c.ID, c.TeamID)
	if err != nil {
		return fmt.Errorf("failed to update chart: %w", err)
	}
	return requireRow(res)
}

func (p *Platform) GetChart(ctx context.Context, teamID, chartID string) (*orchestrator.Chart, error) {
	var c orchestrator.Chart
	err := p.db.QueryRowContext(ctx, `
		SELECT id, team_id, project_id, dataset_id, name, type, config
		FROM charts WHERE id = ? AND team_id = ?`, chartID, teamID).
		Scan(&c.ID, &c.TeamID, &c.ProjectID, &c.DatasetID, &c.Name, &c.Type, &c.Config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}
	return &c, nil
}

// CountTransientDatasets reports leftover run_query scratch records.
// Anything above zero outside an in-flight call indicates a cleanup bug.
func (p *Platform) CountTransientDatasets(ctx context.Context, teamID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM datasets WHERE team_id = ? AND transient = TRUE`, teamID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transient datasets: %w", err)
	}
	return n, nil
}

// requireRow converts a zero-row update/delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return orchestrator.ErrNotFound
	}
	return nil
}
