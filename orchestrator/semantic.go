package orchestrator

import (
	"context"
	"fmt"
)

// ChartType is one entry in the static chart catalog. The description
// is used verbatim in the system prompt.
type ChartType struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChartCatalog is the fixed set of chart types the platform renders.
var ChartCatalog = []ChartType{
	{Name: "line", Description: "Line chart for trends over time or ordered categories."},
	{Name: "bar", Description: "Bar chart for comparing values across categories."},
	{Name: "pie", Description: "Pie chart for showing proportions of a whole."},
	{Name: "doughnut", Description: "Doughnut chart, a pie variant with a hollow center."},
	{Name: "radar", Description: "Radar chart for comparing multiple variables on spokes."},
	{Name: "polar", Description: "Polar area chart, categories as angular segments with radial values."},
	{Name: "table", Description: "Plain tabular view of the result rows."},
	{Name: "kpi", Description: "Single headline number for a key metric."},
	{Name: "avg", Description: "Average value indicator computed over a numeric column."},
	{Name: "matrix", Description: "Matrix/heatmap of a metric over two categorical dimensions."},
	{Name: "gauge", Description: "Gauge showing a value against a bounded range."},
}

// ChartTypeNames returns the catalog names in declaration order.
func ChartTypeNames() []string {
	names := make([]string, len(ChartCatalog))
	for i, ct := range ChartCatalog {
		names[i] = ct.Name
	}
	return names
}

// ValidChartType reports whether name is in the catalog.
func ValidChartType(name string) bool {
	for _, ct := range ChartCatalog {
		if ct.Name == name {
			return true
		}
	}
	return false
}

// SemanticLayer is the per-team context injected into the system prompt.
// It is rebuilt on every orchestration call and never cached, since
// connections and projects can change between turns.
type SemanticLayer struct {
	Team        *Team
	Connections []Connection
	Projects    []Project
	ChartTypes  []ChartType
}

// SemanticLayerBuilder assembles the semantic layer from the platform store.
type SemanticLayerBuilder struct {
	store   DataStore
	logFunc func(string)
}

// NewSemanticLayerBuilder creates a builder over the given store.
func NewSemanticLayerBuilder(store DataStore, logFunc func(string)) *SemanticLayerBuilder {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &SemanticLayerBuilder{store: store, logFunc: logFunc}
}

// Build assembles the semantic layer for a team. Returns ErrNotFound
// (wrapped) when the team does not exist.
func (b *SemanticLayerBuilder) Build(ctx context.Context, teamID string) (*SemanticLayer, error) {
	team, err := b.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, WrapError("SemanticLayer", "Build", err)
	}

	conns, err := b.store.ListConnections(ctx, teamID)
	if err != nil {
		return nil, WrapError("SemanticLayer", "Build", err)
	}

	// Only database connections on dialects we can run SQL against are
	// exposed to the model. API connections and unsupported dialects are
	// filtered out here rather than rejected at tool time.
	supported := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if c.Type != "database" {
			continue
		}
		if !SupportedDialect(c.Subtype) {
			b.logFunc(fmt.Sprintf("[SEMANTIC] Skipping connection %s: unsupported dialect %s", c.ID, c.Subtype))
			continue
		}
		supported = append(supported, c)
	}

	projects, err := b.store.ListProjects(ctx, teamID)
	if err != nil {
		return nil, WrapError("SemanticLayer", "Build", err)
	}
	visible := make([]Project, 0, len(projects))
	for _, p := range projects {
		if p.Ghost {
			continue
		}
		visible = append(visible, p)
	}

	return &SemanticLayer{
		Team:        team,
		Connections: supported,
		Projects:    visible,
		ChartTypes:  ChartCatalog,
	}, nil
}

// ChartCount returns the total number of charts across visible projects.
func (s *SemanticLayer) ChartCount() int {
	n := 0
	for _, p := range s.Projects {
		n += len(p.Charts)
	}
	return n
}
