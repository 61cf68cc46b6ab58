package orchestrator

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Team is a tenant record.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Connection is a customer database connection owned by a team.
// Type is "database" or "api"; only database connections are exposed to
// the model. Subtype is the dialect (sqlite, mysql, postgres, snowflake,
// mongodb).
type Connection struct {
	ID      string `json:"id"`
	TeamID  string `json:"team_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	DSN     string `json:"-"` // never serialized into prompts or tool output
}

// Project groups charts on a dashboard. Ghost projects are soft-deleted
// and excluded from the semantic layer.
type Project struct {
	ID     string         `json:"id"`
	TeamID string         `json:"team_id"`
	Name   string         `json:"name"`
	Ghost  bool           `json:"ghost"`
	Charts []ChartSummary `json:"charts,omitempty"`
}

// ChartSummary is the slim chart view embedded in the semantic layer.
type ChartSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Chart is the full chart record managed by create_chart/update_chart.
type Chart struct {
	ID        string `json:"id"`
	TeamID    string `json:"team_id"`
	ProjectID string `json:"project_id"`
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Config    string `json:"config,omitempty"` // chart-type specific options, JSON
}

// Dataset is a saved query definition. Transient datasets are the
// scratch records run_query materializes and deletes within one call.
type Dataset struct {
	ID           string `json:"id"`
	TeamID       string `json:"team_id"`
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	Query        string `json:"query"`
	Transient    bool   `json:"transient"`
}

// ColumnInfo describes one column of an introspected table.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DataStore is the platform data-access layer the tools operate on.
// The orchestrator never assumes a specific storage engine behind it.
type DataStore interface {
	GetTeam(ctx context.Context, teamID string) (*Team, error)
	ListConnections(ctx context.Context, teamID string) ([]Connection, error)
	GetConnection(ctx context.Context, teamID, connectionID string) (*Connection, error)
	ListProjects(ctx context.Context, teamID string) ([]Project, error)
	GetProject(ctx context.Context, teamID, projectID string) (*Project, error)

	CreateDataset(ctx context.Context, ds *Dataset) error
	UpdateDataset(ctx context.Context, ds *Dataset) error
	GetDataset(ctx context.Context, teamID, datasetID string) (*Dataset, error)
	// DeleteDataset removes the dataset and any cache entries keyed to it.
	DeleteDataset(ctx context.Context, teamID, datasetID string) error

	CreateChart(ctx context.Context, c *Chart) error
	UpdateChart(ctx context.Context, c *Chart) error
	GetChart(ctx context.Context, teamID, chartID string) (*Chart, error)
}

// QueryRunner executes read-only SQL against a customer connection.
// Implementations resolve the connection's dialect and DSN through the
// platform store and dbpool.
type QueryRunner interface {
	// ListTables returns table names visible on the connection.
	ListTables(ctx context.Context, conn *Connection) ([]string, error)
	// DescribeTable returns column metadata for one table.
	DescribeTable(ctx context.Context, conn *Connection, table string) ([]ColumnInfo, error)
	// RunQuery executes the query and returns up to rowLimit rows as maps.
	RunQuery(ctx context.Context, conn *Connection, query string, rowLimit int) ([]string, []map[string]interface{}, error)
}

// ConversationStore persists conversation threads. The orchestrator core
// appends through this interface and never mutates stored messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	LoadHistory(ctx context.Context, conversationID string) ([]*schema.Message, error)
	AppendMessages(ctx context.Context, conversationID string, msgs []*schema.Message) error
	RecordUsage(ctx context.Context, conversationID string, records []UsageRecord) error
	UpdateConversationMeta(ctx context.Context, conversationID string, meta ConversationMeta) error
}

// ConversationMeta is the mutable slice of conversation metadata updated
// after each orchestration pass. Nil fields are left unchanged.
type ConversationMeta struct {
	Title        *string
	Status       *string
	MessageCount *int
	ErrorMessage *string
}
