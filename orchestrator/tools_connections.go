package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ListConnectionsTool exposes the team's database connections.
type ListConnectionsTool struct {
	store   DataStore
	logFunc func(string)
}

func NewListConnectionsTool(store DataStore, logFunc func(string)) *ListConnectionsTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &ListConnectionsTool{store: store, logFunc: logFunc}
}

type listConnectionsInput struct {
	TeamID string `json:"team_id"`
}

func (t *ListConnectionsTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "list_connections",
		Desc: "List the database connections available for analysis, with their ids and dialects. Use this before querying if you are unsure which connection to use.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *ListConnectionsTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in listConnectionsInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.TeamID == "" {
		return "", NewValidationError("team_id", "is required")
	}

	conns, err := t.store.ListConnections(ctx, in.TeamID)
	if err != nil {
		return "", fmt.Errorf("failed to list connections: %v", err)
	}

	type connView struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Dialect string `json:"dialect"`
	}
	views := make([]connView, 0, len(conns))
	for _, c := range conns {
		if c.Type != "database" {
			continue
		}
		views = append(views, connView{ID: c.ID, Name: c.Name, Dialect: c.Subtype})
	}

	out, err := json.Marshal(map[string]interface{}{"connections": views})
	if err != nil {
		return "", fmt.Errorf("failed to marshal connections: %v", err)
	}
	return string(out), nil
}

// GetSchemaTool introspects tables and columns on a connection.
type GetSchemaTool struct {
	store   DataStore
	runner  QueryRunner
	logFunc func(string)
}

func NewGetSchemaTool(store DataStore, runner QueryRunner, logFunc func(string)) *GetSchemaTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &GetSchemaTool{store: store, runner: runner, logFunc: logFunc}
}

type getSchemaInput struct {
	TeamID       string `json:"team_id"`
	ConnectionID string `json:"connection_id"`
	Table        string `json:"table"`
}

func (t *GetSchemaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "get_schema",
		Desc: "Inspect a database connection. Without a table argument, lists all tables. With a table argument, returns that table's columns and types.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"connection_id": {
				Type:     schema.String,
				Desc:     "The id of the connection to inspect.",
				Required: true,
			},
			"table": {
				Type: schema.String,
				Desc: "Optional table name. When given, column metadata for that table is returned.",
			},
		}),
	}, nil
}

func (t *GetSchemaTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in getSchemaInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.ConnectionID == "" {
		return "", NewValidationError("connection_id", "is required")
	}

	conn, err := t.store.GetConnection(ctx, in.TeamID, in.ConnectionID)
	if err != nil {
		return "", fmt.Errorf("connection not found: %s", in.ConnectionID)
	}

	if !SupportedDialect(conn.Subtype) {
		out, _ := json.Marshal(map[string]string{
			"status":  "unsupported",
			"message": fmt.Sprintf("dialect %s does not support schema introspection here", conn.Subtype),
		})
		return string(out), nil
	}

	if in.Table == "" {
		tables, err := t.runner.ListTables(ctx, conn)
		if err != nil {
			return "", fmt.Errorf("failed to list tables: %v", err)
		}
		out, err := json.Marshal(map[string]interface{}{"connection_id": conn.ID, "tables": tables})
		if err != nil {
			return "", fmt.Errorf("failed to marshal tables: %v", err)
		}
		return string(out), nil
	}

	columns, err := t.runner.DescribeTable(ctx, conn, in.Table)
	if err != nil {
		return "", fmt.Errorf("failed to describe table %s: %v", in.Table, err)
	}
	out, err := json.Marshal(map[string]interface{}{
		"connection_id": conn.ID,
		"table":         in.Table,
		"columns":       columns,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal columns: %v", err)
	}
	return string(out), nil
}
