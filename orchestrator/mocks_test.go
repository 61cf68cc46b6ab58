package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeStore is an in-memory DataStore for tests.
type fakeStore struct {
	mu          sync.Mutex
	teams       map[string]*Team
	connections map[string]*Connection
	projects    map[string]*Project
	datasets    map[string]*Dataset
	charts      map[string]*Chart

	createdDatasets []string
	deletedDatasets []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:       map[string]*Team{},
		connections: map[string]*Connection{},
		projects:    map[string]*Project{},
		datasets:    map[string]*Dataset{},
		charts:      map[string]*Chart{},
	}
}

func (s *fakeStore) addTeam(t *Team)             { s.teams[t.ID] = t }
func (s *fakeStore) addConnection(c *Connection) { s.connections[c.ID] = c }
func (s *fakeStore) addProject(p *Project)       { s.projects[p.ID] = p }

func (s *fakeStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	if t, ok := s.teams[teamID]; ok {
		return t, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) ListConnections(ctx context.Context, teamID string) ([]Connection, error) {
	var out []Connection
	for _, c := range s.connections {
		if c.TeamID == teamID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) GetConnection(ctx context.Context, teamID, connectionID string) (*Connection, error) {
	if c, ok := s.connections[connectionID]; ok && c.TeamID == teamID {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) ListProjects(ctx context.Context, teamID string) ([]Project, error) {
	var out []Project
	for _, p := range s.projects {
		if p.TeamID == teamID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetProject(ctx context.Context, teamID, projectID string) (*Project, error) {
	if p, ok := s.projects[projectID]; ok && p.TeamID == teamID {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) CreateDataset(ctx context.Context, ds *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ds
	s.datasets[ds.ID] = &cp
	s.createdDatasets = append(s.createdDatasets, ds.ID)
	return nil
}

func (s *fakeStore) UpdateDataset(ctx context.Context, ds *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[ds.ID]; !ok {
		return ErrNotFound
	}
	cp := *ds
	s.datasets[ds.ID] = &cp
	return nil
}

func (s *fakeStore) GetDataset(ctx context.Context, teamID, datasetID string) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds, ok := s.datasets[datasetID]; ok && ds.TeamID == teamID {
		cp := *ds
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) DeleteDataset(ctx context.Context, teamID, datasetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[datasetID]; !ok {
		return ErrNotFound
	}
	delete(s.datasets, datasetID)
	s.deletedDatasets = append(s.deletedDatasets, datasetID)
	return nil
}

func (s *fakeStore) CreateChart(ctx context.Context, c *Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.charts[c.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateChart(ctx context.Context, c *Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charts[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	s.charts[c.ID] = &cp
	return nil
}

func (s *fakeStore) GetChart(ctx context.Context, teamID, chartID string) (*Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.charts[chartID]; ok && c.TeamID == teamID {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

// fakeRunner is a canned QueryRunner.
type fakeRunner struct {
	tables    []string
	columns   []ColumnInfo
	rows      []map[string]interface{}
	cols      []string
	err       error
	lastQuery string
}

func (r *fakeRunner) ListTables(ctx context.Context, conn *Connection) ([]string, error) {
	return r.tables, r.err
}

func (r *fakeRunner) DescribeTable(ctx context.Context, conn *Connection, table string) ([]ColumnInfo, error) {
	return r.columns, r.err
}

func (r *fakeRunner) RunQuery(ctx context.Context, conn *Connection, query string, rowLimit int) ([]string, []map[string]interface{}, error) {
	r.lastQuery = query
	return r.cols, r.rows, r.err
}

// scriptedModel replays a fixed sequence of responses. After the script
// is exhausted it keeps returning the last entry, which lets iteration
// cap tests force endless tool calling.
type scriptedModel struct {
	mu         sync.Mutex
	responses  []*schema.Message
	calls      int
	boundTools []*schema.ToolInfo
	genErr     error
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.genErr != nil {
		return nil, m.genErr
	}
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 {
		return nil, fmt.Errorf("no scripted responses")
	}
	return m.responses[idx], nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported in tests")
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tools != nil {
		m.boundTools = tools
	}
	return nil
}

func assistantWithUsage(content string, prompt, completion int, toolCalls ...schema.ToolCall) *schema.Message {
	return &schema.Message{
		Role:      schema.Assistant,
		Content:   content,
		ToolCalls: toolCalls,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			},
		},
	}
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}
