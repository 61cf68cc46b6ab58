package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"chartmind/dbpool"
)

// GenerateQueryTool builds a SELECT statement deterministically from
// structured arguments. It never calls the model.
type GenerateQueryTool struct {
	logFunc func(string)
}

func NewGenerateQueryTool(logFunc func(string)) *GenerateQueryTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &GenerateQueryTool{logFunc: logFunc}
}

type generateQueryInput struct {
	Dialect string   `json:"dialect"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Filters []string `json:"filters"`
	GroupBy []string `json:"group_by"`
	OrderBy []string `json:"order_by"`
	Limit   int      `json:"limit"`
}

func (t *GenerateQueryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "generate_query",
		Desc: "Build a SELECT query from structured parts. Use this to produce correct, safely quoted SQL instead of writing it by hand.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"dialect": {
				Type:     schema.String,
				Desc:     "SQL dialect of the target connection.",
				Enum:     []string{"sqlite", "mysql", "postgres", "snowflake", "mongodb"},
				Required: true,
			},
			"table": {
				Type:     schema.String,
				Desc:     "Table to select from.",
				Required: true,
			},
			"columns": {
				Type: schema.Array,
				Desc: "Columns or aggregate expressions to select. Defaults to * when empty.",
			},
			"filters": {
				Type: schema.Array,
				Desc: "WHERE predicates, combined with AND (e.g. \"country = 'US'\").",
			},
			"group_by": {
				Type: schema.Array,
				Desc: "GROUP BY columns.",
			},
			"order_by": {
				Type: schema.Array,
				Desc: "ORDER BY terms (e.g. \"total DESC\").",
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum number of rows.",
			},
		}),
	}, nil
}

func (t *GenerateQueryTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in generateQueryInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.Table == "" {
		return "", NewValidationError("table", "is required")
	}

	engine, ok := dbpool.ParseEngine(in.Dialect)
	if !ok {
		out, _ := json.Marshal(map[string]string{
			"status":  "unsupported",
			"message": fmt.Sprintf("dialect %s is not supported for SQL generation", in.Dialect),
		})
		return string(out), nil
	}

	// No argument may smuggle in a write or DDL keyword.
	parts := append([]string{in.Table}, in.Columns...)
	parts = append(parts, in.Filters...)
	parts = append(parts, in.GroupBy...)
	parts = append(parts, in.OrderBy...)
	for _, part := range parts {
		if kw := FirstForbiddenKeyword(part); kw != "" {
			return "", fmt.Errorf("forbidden keyword %s in argument %q", kw, part)
		}
	}

	dialect := dbpool.NewDialect(engine)

	cols := "*"
	if len(in.Columns) > 0 {
		quoted := make([]string, len(in.Columns))
		for i, c := range in.Columns {
			quoted[i] = quoteColumnExpr(dialect, c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, dialect.QuoteIdent(in.Table))
	if len(in.Filters) > 0 {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(in.Filters, " AND "))
	}
	if len(in.GroupBy) > 0 {
		quoted := make([]string, len(in.GroupBy))
		for i, c := range in.GroupBy {
			quoted[i] = quoteColumnExpr(dialect, c)
		}
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(quoted, ", "))
	}
	if len(in.OrderBy) > 0 {
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(in.OrderBy, ", "))
	}

	query := b.String()
	if in.Limit > 0 {
		query = dialect.ApplyRowLimit(query, in.Limit)
	}

	out, err := json.Marshal(map[string]string{"status": "ok", "query": query, "dialect": in.Dialect})
	if err != nil {
		return "", fmt.Errorf("failed to marshal query: %v", err)
	}
	return string(out), nil
}

// quoteColumnExpr quotes plain column names but leaves expressions
// (anything with parens, spaces, or a star) alone.
func quoteColumnExpr(d *dbpool.Dialect, expr string) string {
	if strings.ContainsAny(expr, "(* ") {
		return expr
	}
	return d.QuoteIdent(expr)
}

// ValidateQueryTool runs static checks over a SQL string without
// touching a database.
type ValidateQueryTool struct {
	logFunc func(string)
}

func NewValidateQueryTool(logFunc func(string)) *ValidateQueryTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &ValidateQueryTool{logFunc: logFunc}
}

type validateQueryInput struct {
	Query string `json:"query"`
}

func (t *ValidateQueryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "validate_query",
		Desc: "Statically check a SQL query: read-only prefix, forbidden keywords, balanced quotes and parentheses. Does not execute anything.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The SQL query to check.",
				Required: true,
			},
		}),
	}, nil
}

func (t *ValidateQueryTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in validateQueryInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", NewValidationError("query", "is required")
	}

	var problems []string
	if err := CheckReadOnly(in.Query); err != nil {
		problems = append(problems, err.Error())
	}
	if err := checkBalanced(in.Query); err != nil {
		problems = append(problems, err.Error())
	}

	result := map[string]interface{}{"valid": len(problems) == 0}
	if len(problems) > 0 {
		result["problems"] = problems
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal validation result: %v", err)
	}
	return string(out), nil
}

// RunQueryTool executes a read-only query against a customer
// connection through a transient dataset record.
type RunQueryTool struct {
	store       DataStore
	runner      QueryRunner
	rowLimit    int
	timeoutSecs int
	logFunc     func(string)
}

func NewRunQueryTool(store DataStore, runner QueryRunner, rowLimit, timeoutSecs int, logFunc func(string)) *RunQueryTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	if rowLimit <= 0 {
		rowLimit = 1000
	}
	if timeoutSecs <= 0 {
		timeoutSecs = 120
	}
	return &RunQueryTool{
		store:       store,
		runner:      runner,
		rowLimit:    rowLimit,
		timeoutSecs: timeoutSecs,
		logFunc:     logFunc,
	}
}

type runQueryInput struct {
	TeamID       string `json:"team_id"`
	ConnectionID string `json:"connection_id"`
	Query        string `json:"query"`
	TimeoutSecs  int    `json:"timeout_seconds"`
}

func (t *RunQueryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "run_query",
		Desc: fmt.Sprintf("Execute a read-only SQL query against a connection and return rows as JSON. Results are limited to %d rows. Only SELECT statements are allowed.", t.rowLimit),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"connection_id": {
				Type:     schema.String,
				Desc:     "The id of the connection to query.",
				Required: true,
			},
			"query": {
				Type:     schema.String,
				Desc:     "The SQL query to execute (e.g. 'SELECT region, SUM(total) FROM orders GROUP BY region').",
				Required: true,
			},
			"timeout_seconds": {
				Type: schema.Integer,
				Desc: "Optional timeout override in seconds.",
			},
		}),
	}, nil
}

func (t *RunQueryTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in runQueryInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.ConnectionID == "" {
		return "", NewValidationError("connection_id", "is required")
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", NewValidationError("query", "is required")
	}

	if err := CheckReadOnly(in.Query); err != nil {
		return "", err
	}

	conn, err := t.store.GetConnection(ctx, in.TeamID, in.ConnectionID)
	if err != nil {
		return "", fmt.Errorf("connection not found: %s", in.ConnectionID)
	}
	if !SupportedDialect(conn.Subtype) {
		out, _ := json.Marshal(map[string]string{
			"status":  "unsupported",
			"message": fmt.Sprintf("dialect %s cannot execute SQL", conn.Subtype),
		})
		return string(out), nil
	}

	// Materialize a transient dataset record for the duration of the
	// call. Both success and failure paths must delete it, otherwise
	// orphaned scratch records accumulate.
	transient := &Dataset{
		ID:           uuid.New().String(),
		TeamID:       in.TeamID,
		ConnectionID: conn.ID,
		Name:         "transient-query",
		Query:        in.Query,
		Transient:    true,
	}
	if err := t.store.CreateDataset(ctx, transient); err != nil {
		return "", fmt.Errorf("failed to create transient dataset: %v", err)
	}
	defer func() {
		if err := t.store.DeleteDataset(ctx, in.TeamID, transient.ID); err != nil {
			t.logFunc(fmt.Sprintf("[RUN-QUERY] Failed to clean up transient dataset %s: %v", transient.ID, err))
		}
	}()

	timeout := time.Duration(t.timeoutSecs) * time.Second
	if in.TimeoutSecs > 0 {
		timeout = time.Duration(in.TimeoutSecs) * time.Second
	}

	start := time.Now()
	cols, rows, err := t.runner.RunQuery(ctx, conn, in.Query, t.rowLimit)
	elapsed := time.Since(start)
	if err != nil {
		return "", fmt.Errorf("query execution failed: %v\nQuery: %s", err, in.Query)
	}

	// The driver offers no preemptive cancellation here, so the timeout
	// is checked after the fact and reported as an error.
	if elapsed > timeout {
		return "", fmt.Errorf("query exceeded the %v timeout (took %v)", timeout, elapsed.Round(time.Millisecond))
	}

	if len(rows) == 0 {
		out, _ := json.Marshal(map[string]interface{}{
			"status":  "ok",
			"columns": cols,
			"rows":    []map[string]interface{}{},
			"message": "Query executed successfully. No rows returned.",
		})
		return string(out), nil
	}

	out, err := json.Marshal(map[string]interface{}{
		"status":     "ok",
		"columns":    cols,
		"rows":       rows,
		"row_count":  len(rows),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %v", err)
	}
	return string(out), nil
}
