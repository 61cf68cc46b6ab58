package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// SummarizeTool computes a deterministic profile of a result set:
// row/column counts, numeric ranges, top categorical values.
type SummarizeTool struct {
	logFunc func(string)
}

func NewSummarizeTool(logFunc func(string)) *SummarizeTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &SummarizeTool{logFunc: logFunc}
}

type summarizeInput struct {
	Rows []map[string]interface{} `json:"rows"`
}

type columnProfile struct {
	Name      string             `json:"name"`
	Kind      string             `json:"kind"` // numeric, categorical, temporal, empty
	Min       *float64           `json:"min,omitempty"`
	Max       *float64           `json:"max,omitempty"`
	Avg       *float64           `json:"avg,omitempty"`
	TopValues []valueCount       `json:"top_values,omitempty"`
	Distinct  int                `json:"distinct,omitempty"`
}

type valueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

func (t *SummarizeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "summarize",
		Desc: "Profile a set of result rows: row and column counts, numeric min/max/avg, most frequent categorical values. Use this before picking a chart type.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"rows": {
				Type:     schema.Array,
				Desc:     "The result rows to profile, as returned by run_query.",
				Required: true,
			},
		}),
	}, nil
}

func (t *SummarizeTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in summarizeInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if len(in.Rows) == 0 {
		out, _ := json.Marshal(map[string]interface{}{"row_count": 0, "columns": []columnProfile{}})
		return string(out), nil
	}

	profiles := profileColumns(in.Rows)

	out, err := json.Marshal(map[string]interface{}{
		"row_count":    len(in.Rows),
		"column_count": len(profiles),
		"columns":      profiles,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %v", err)
	}
	return string(out), nil
}

// profileColumns builds per-column profiles in stable (sorted) column
// order so repeated calls on the same rows produce identical output.
func profileColumns(rows []map[string]interface{}) []columnProfile {
	names := make([]string, 0)
	seen := map[string]bool{}
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	profiles := make([]columnProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, profileColumn(name, rows))
	}
	return profiles
}

func profileColumn(name string, rows []map[string]interface{}) columnProfile {
	p := columnProfile{Name: name}

	var nums []float64
	counts := map[string]int{}
	temporal := 0
	nonNull := 0

	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		nonNull++
		if f, ok := asFloat(v); ok {
			nums = append(nums, f)
			continue
		}
		s := fmt.Sprintf("%v", v)
		if looksTemporal(s) {
			temporal++
		}
		counts[s]++
	}

	switch {
	case nonNull == 0:
		p.Kind = "empty"
	case len(nums) == nonNull:
		p.Kind = "numeric"
		min, max, sum := nums[0], nums[0], 0.0
		for _, f := range nums {
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
			sum += f
		}
		avg := sum / float64(len(nums))
		p.Min, p.Max, p.Avg = &min, &max, &avg
	case temporal == nonNull:
		p.Kind = "temporal"
		p.Distinct = len(counts)
	default:
		p.Kind = "categorical"
		p.Distinct = len(counts)
		p.TopValues = topValues(counts, 5)
	}

	return p
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// looksTemporal recognizes the common date layouts query results carry.
func looksTemporal(s string) bool {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "2006-01"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// topValues returns the n most frequent values, ties broken by value
// for determinism.
func topValues(counts map[string]int, n int) []valueCount {
	all := make([]valueCount, 0, len(counts))
	for v, c := range counts {
		all = append(all, valueCount{Value: v, Count: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Value < all[j].Value
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// SuggestChartTool maps a result-set shape to a chart type from the
// catalog using simple heuristics.
type SuggestChartTool struct {
	logFunc func(string)
}

func NewSuggestChartTool(logFunc func(string)) *SuggestChartTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &SuggestChartTool{logFunc: logFunc}
}

func (t *SuggestChartTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "suggest_chart",
		Desc: "Suggest a chart type for a set of result rows based on their shape (numeric, categorical, temporal columns).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"rows": {
				Type:     schema.Array,
				Desc:     "The result rows to suggest a chart for.",
				Required: true,
			},
		}),
	}, nil
}

func (t *SuggestChartTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in summarizeInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if len(in.Rows) == 0 {
		out, _ := json.Marshal(map[string]string{"chart_type": "table", "reason": "no rows to chart"})
		return string(out), nil
	}

	chartType, reason := suggestChartType(profileColumns(in.Rows), len(in.Rows))
	out, err := json.Marshal(map[string]string{"chart_type": chartType, "reason": reason})
	if err != nil {
		return "", fmt.Errorf("failed to marshal suggestion: %v", err)
	}
	return string(out), nil
}

func suggestChartType(profiles []columnProfile, rowCount int) (string, string) {
	var numeric, categorical, temporal int
	for _, p := range profiles {
		switch p.Kind {
		case "numeric":
			numeric++
		case "categorical":
			categorical++
		case "temporal":
			temporal++
		}
	}

	switch {
	case rowCount == 1 && numeric == 1 && len(profiles) == 1:
		return "kpi", "a single numeric value reads best as a headline number"
	case temporal >= 1 && numeric >= 1:
		return "line", "a time column with numeric values shows a trend"
	case categorical >= 2 && numeric >= 1:
		return "matrix", "a metric over two categorical dimensions fits a matrix"
	case categorical == 1 && numeric >= 1 && rowCount <= 6:
		return "pie", "few categories with one metric show proportions well"
	case categorical >= 1 && numeric >= 1:
		return "bar", "categories with numeric values compare best as bars"
	case numeric >= 1 && categorical == 0 && temporal == 0:
		return "avg", "numeric-only data summarizes as an average indicator"
	default:
		return "table", "no clear shape detected, fall back to a table"
	}
}

// CreateDatasetTool persists a dataset definition for the team.
type CreateDatasetTool struct {
	store   DataStore
	logFunc func(string)
}

func NewCreateDatasetTool(store DataStore, logFunc func(string)) *CreateDatasetTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &CreateDatasetTool{store: store, logFunc: logFunc}
}

type datasetInput struct {
	TeamID       string `json:"team_id"`
	DatasetID    string `json:"dataset_id"`
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	Query        string `json:"query"`
}

func (t *CreateDatasetTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "create_dataset",
		Desc: "Save a query as a named dataset so charts can be built on it.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"connection_id": {
				Type:     schema.String,
				Desc:     "The connection the dataset queries.",
				Required: true,
			},
			"name": {
				Type:     schema.String,
				Desc:     "Human-readable dataset name.",
				Required: true,
			},
			"query": {
				Type:     schema.String,
				Desc:     "The SELECT query that defines the dataset.",
				Required: true,
			},
		}),
	}, nil
}

func (t *CreateDatasetTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in datasetInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.ConnectionID == "" {
		return "", NewValidationError("connection_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return "", NewValidationError("name", "is required")
	}
	if err := CheckReadOnly(in.Query); err != nil {
		return "", err
	}

	if _, err := t.store.GetConnection(ctx, in.TeamID, in.ConnectionID); err != nil {
		return "", fmt.Errorf("connection not found: %s", in.ConnectionID)
	}

	ds := &Dataset{
		ID:           uuid.New().String(),
		TeamID:       in.TeamID,
		ConnectionID: in.ConnectionID,
		Name:         in.Name,
		Query:        in.Query,
	}
	if err := t.store.CreateDataset(ctx, ds); err != nil {
		return "", fmt.Errorf("failed to create dataset: %v", err)
	}

	t.logFunc(fmt.Sprintf("[DATASET] Created %s (%s)", ds.ID, ds.Name))
	out, _ := json.Marshal(map[string]string{"status": "ok", "dataset_id": ds.ID})
	return string(out), nil
}

// UpdateDatasetTool modifies an existing dataset's name or query.
type UpdateDatasetTool struct {
	store   DataStore
	logFunc func(string)
}

func NewUpdateDatasetTool(store DataStore, logFunc func(string)) *UpdateDatasetTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &UpdateDatasetTool{store: store, logFunc: logFunc}
}

func (t *UpdateDatasetTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "update_dataset",
		Desc: "Update an existing dataset's name or query.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"dataset_id": {
				Type:     schema.String,
				Desc:     "The id of the dataset to update.",
				Required: true,
			},
			"name": {
				Type: schema.String,
				Desc: "New dataset name (optional).",
			},
			"query": {
				Type: schema.String,
				Desc: "New SELECT query (optional).",
			},
		}),
	}, nil
}

func (t *UpdateDatasetTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in datasetInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.DatasetID == "" {
		return "", NewValidationError("dataset_id", "is required")
	}

	ds, err := t.store.GetDataset(ctx, in.TeamID, in.DatasetID)
	if err != nil {
		return "", fmt.Errorf("dataset not found: %s", in.DatasetID)
	}

	if in.Name != "" {
		ds.Name = in.Name
	}
	if in.Query != "" {
		if err := CheckReadOnly(in.Query); err != nil {
			return "", err
		}
		ds.Query = in.Query
	}

	if err := t.store.UpdateDataset(ctx, ds); err != nil {
		return "", fmt.Errorf("failed to update dataset: %v", err)
	}

	out, _ := json.Marshal(map[string]string{"status": "ok", "dataset_id": ds.ID})
	return string(out), nil
}

// CreateChartTool creates a chart in a project, backed by a dataset.
type CreateChartTool struct {
	store   DataStore
	logFunc func(string)
}

func NewCreateChartTool(store DataStore, logFunc func(string)) *CreateChartTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &CreateChartTool{store: store, logFunc: logFunc}
}

type chartInput struct {
	TeamID    string `json:"team_id"`
	ChartID   string `json:"chart_id"`
	ProjectID string `json:"project_id"`
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Config    string `json:"config"`
}

func (t *CreateChartTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "create_chart",
		Desc: "Create one chart in a project from a saved dataset. Create at most one chart per user request, and only when the user asked for one.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"project_id": {
				Type:     schema.String,
				Desc:     "The exact project id to create the chart in.",
				Required: true,
			},
			"dataset_id": {
				Type:     schema.String,
				Desc:     "The dataset the chart visualizes.",
				Required: true,
			},
			"name": {
				Type:     schema.String,
				Desc:     "Chart title.",
				Required: true,
			},
			"type": {
				Type:     schema.String,
				Desc:     "Chart type from the catalog.",
				Enum:     ChartTypeNames(),
				Required: true,
			},
			"config": {
				Type: schema.String,
				Desc: "Optional chart-type specific options as a JSON string.",
			},
		}),
	}, nil
}

func (t *CreateChartTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in chartInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.ProjectID == "" {
		return "", NewValidationError("project_id", "is required")
	}
	if in.DatasetID == "" {
		return "", NewValidationError("dataset_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return "", NewValidationError("name", "is required")
	}
	if !ValidChartType(in.Type) {
		return "", NewValidationError("type", fmt.Sprintf("unknown chart type %q, expected one of: %s", in.Type, strings.Join(ChartTypeNames(), ", ")))
	}

	if _, err := t.store.GetProject(ctx, in.TeamID, in.ProjectID); err != nil {
		return "", fmt.Errorf("project not found: %s", in.ProjectID)
	}
	if _, err := t.store.GetDataset(ctx, in.TeamID, in.DatasetID); err != nil {
		return "", fmt.Errorf("dataset not found: %s", in.DatasetID)
	}

	c := &Chart{
		ID:        uuid.New().String(),
		TeamID:    in.TeamID,
		ProjectID: in.ProjectID,
		DatasetID: in.DatasetID,
		Name:      in.Name,
		Type:      in.Type,
		Config:    in.Config,
	}
	if err := t.store.CreateChart(ctx, c); err != nil {
		return "", fmt.Errorf("failed to create chart: %v", err)
	}

	t.logFunc(fmt.Sprintf("[CHART] Created %s (%s, %s)", c.ID, c.Name, c.Type))
	out, _ := json.Marshal(map[string]string{"status": "ok", "chart_id": c.ID})
	return string(out), nil
}

// UpdateChartTool modifies an existing chart.
type UpdateChartTool struct {
	store   DataStore
	logFunc func(string)
}

func NewUpdateChartTool(store DataStore, logFunc func(string)) *UpdateChartTool {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &UpdateChartTool{store: store, logFunc: logFunc}
}

func (t *UpdateChartTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "update_chart",
		Desc: "Update an existing chart's name, type, dataset, or config.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"chart_id": {
				Type:     schema.String,
				Desc:     "The id of the chart to update.",
				Required: true,
			},
			"name": {
				Type: schema.String,
				Desc: "New chart title (optional).",
			},
			"type": {
				Type: schema.String,
				Desc: "New chart type from the catalog (optional).",
				Enum: ChartTypeNames(),
			},
			"dataset_id": {
				Type: schema.String,
				Desc: "New backing dataset (optional).",
			},
			"config": {
				Type: schema.String,
				Desc: "New chart options as a JSON string (optional).",
			},
		}),
	}, nil
}

func (t *UpdateChartTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in chartInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.ChartID == "" {
		return "", NewValidationError("chart_id", "is required")
	}

	c, err := t.store.GetChart(ctx, in.TeamID, in.ChartID)
	if err != nil {
		return "", fmt.Errorf("chart not found: %s", in.ChartID)
	}

	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Type != "" {
		if !ValidChartType(in.Type) {
			return "", NewValidationError("type", fmt.Sprintf("unknown chart type %q", in.Type))
		}
		c.Type = in.Type
	}
	if in.DatasetID != "" {
		if _, err := t.store.GetDataset(ctx, in.TeamID, in.DatasetID); err != nil {
			return "", fmt.Errorf("dataset not found: %s", in.DatasetID)
		}
		c.DatasetID = in.DatasetID
	}
	if in.Config != "" {
		c.Config = in.Config
	}

	if err := t.store.UpdateChart(ctx, c); err != nil {
		return "", fmt.Errorf("failed to update chart: %v", err)
	}

	out, _ := json.Marshal(map[string]string{"status": "ok", "chart_id": c.ID})
	return string(out), nil
}
