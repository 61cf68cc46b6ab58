package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// echoTool records the arguments it was invoked with.
type echoTool struct {
	name     string
	lastArgs string
	fail     bool
}

func (t *echoTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.name,
		Desc:        "test tool",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *echoTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	t.lastArgs = input
	if t.fail {
		return "", fmt.Errorf("boom")
	}
	return `{"status":"ok"}`, nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	if err := r.Register(ctx, &echoTool{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(ctx, &echoTool{name: "a"}); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestRegistryInfosPreserveRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(ctx, &echoTool{name: name}); err != nil {
			t.Fatal(err)
		}
	}
	infos, err := r.Infos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if infos[0].Name != "zeta" || infos[2].Name != "mid" {
		t.Errorf("registration order lost: %v", []string{infos[0].Name, infos[1].Name, infos[2].Name})
	}
}

// The team id from the orchestration call always wins over whatever the
// model put in the tool arguments.
func TestExecuteAllInjectsTeamID(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	echo := &echoTool{name: "create_dataset"}
	if err := r.Register(ctx, echo); err != nil {
		t.Fatal(err)
	}

	calls := []schema.ToolCall{
		toolCall("c1", "create_dataset", `{"name":"x","team_id":"attacker-team"}`),
	}
	outcomes := r.ExecuteAll(ctx, calls, "team-42", nil)
	if outcomes[0].Failed {
		t.Fatalf("unexpected failure: %s", outcomes[0].Content)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(echo.lastArgs), &args); err != nil {
		t.Fatal(err)
	}
	if args["team_id"] != "team-42" {
		t.Errorf("team_id not overridden: %v", args["team_id"])
	}
	if args["name"] != "x" {
		t.Errorf("other arguments lost: %v", args)
	}
}

// One failing tool must not abort its siblings, and outcomes come back
// in request order.
func TestExecuteAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	ok1 := &echoTool{name: "list_connections"}
	bad := &echoTool{name: "get_schema", fail: true}
	ok2 := &echoTool{name: "summarize"}
	for _, tl := range []*echoTool{ok1, bad, ok2} {
		if err := r.Register(ctx, tl); err != nil {
			t.Fatal(err)
		}
	}

	calls := []schema.ToolCall{
		toolCall("c1", "list_connections", `{}`),
		toolCall("c2", "get_schema", `{}`),
		toolCall("c3", "summarize", `{}`),
	}
	outcomes := r.ExecuteAll(ctx, calls, "team-1", nil)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		if outcomes[i].CallID != id {
			t.Errorf("outcome %d out of order: %s", i, outcomes[i].CallID)
		}
	}
	if outcomes[0].Failed || outcomes[2].Failed {
		t.Error("healthy tools affected by the failing one")
	}
	if !outcomes[1].Failed {
		t.Error("failure not captured")
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(outcomes[1].Content), &payload); err != nil {
		t.Fatalf("error payload is not JSON: %q", outcomes[1].Content)
	}
	if !strings.Contains(payload["error"], "boom") {
		t.Errorf("error message lost: %v", payload)
	}
}

func TestExecuteAllUnknownTool(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	outcomes := r.ExecuteAll(ctx, []schema.ToolCall{toolCall("c1", "nope", `{}`)}, "t", nil)
	if !outcomes[0].Failed {
		t.Error("unknown tool should fail")
	}
	if !strings.Contains(outcomes[0].Content, "unknown tool") {
		t.Errorf("unexpected content: %s", outcomes[0].Content)
	}
}

func TestExecuteAllDetectsDisambiguation(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	if err := r.Register(ctx, NewDisambiguateTool()); err != nil {
		t.Fatal(err)
	}

	args := `{"prompt":"Which database?","options":[{"label":"Sales","value":"c1"},{"label":"Billing","value":"c2"}]}`
	outcomes := r.ExecuteAll(ctx, []schema.ToolCall{toolCall("c1", "disambiguate", args)}, "t", nil)

	if !outcomes[0].NeedsUserInput {
		t.Fatal("disambiguation signal not detected")
	}
	if outcomes[0].Prompt != "Which database?" || len(outcomes[0].Options) != 2 {
		t.Errorf("signal payload wrong: %+v", outcomes[0])
	}
}

func TestExecuteAllReportsProgress(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	if err := r.Register(ctx, &echoTool{name: "run_query", fail: true}); err != nil {
		t.Fatal(err)
	}

	var phases []string
	onProgress := func(tool, phase, message string) {
		phases = append(phases, tool+":"+phase)
	}
	r.ExecuteAll(ctx, []schema.ToolCall{toolCall("c1", "run_query", `{}`)}, "t", onProgress)

	if len(phases) != 2 || phases[0] != "run_query:start" || phases[1] != "run_query:error" {
		t.Errorf("unexpected progress sequence: %v", phases)
	}
}

func TestTruncateResult(t *testing.T) {
	long := strings.Repeat("x", maxToolResultSize+100)
	got := truncateResult(long)
	if len(got) >= len(long) {
		t.Error("oversized result not truncated")
	}
	if !strings.Contains(got, "truncated") {
		t.Error("truncation notice missing")
	}
	if truncateResult("short") != "short" {
		t.Error("small result altered")
	}
}

func TestInjectTeamIDPassesThroughBadJSON(t *testing.T) {
	if got := injectTeamID("not json", "t1"); got != "not json" {
		t.Errorf("bad JSON should pass through, got %q", got)
	}
	got := injectTeamID("{}", "t1")
	if !strings.Contains(got, `"team_id":"t1"`) {
		t.Errorf("team_id missing: %q", got)
	}
}
