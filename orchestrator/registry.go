package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// maxToolResultSize caps the content persisted per tool result.
const maxToolResultSize = 10000

// Registry maps tool names to their implementations. Registration
// happens once at construction; lookups are read-only afterwards.
type Registry struct {
	tools   map[string]tool.InvokableTool
	order   []string
	logFunc func(string)
}

// NewRegistry creates an empty Registry.
func NewRegistry(logFunc func(string)) *Registry {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Registry{
		tools:   make(map[string]tool.InvokableTool),
		logFunc: logFunc,
	}
}

// Register adds a tool. Duplicate names are rejected so two tools can
// never shadow each other silently.
func (r *Registry) Register(ctx context.Context, t tool.InvokableTool) error {
	info, err := t.Info(ctx)
	if err != nil {
		return WrapError("Registry", "Register", err)
	}
	if _, exists := r.tools[info.Name]; exists {
		return WrapError("Registry", "Register", fmt.Errorf("tool %q already registered", info.Name))
	}
	r.tools[info.Name] = t
	r.order = append(r.order, info.Name)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (tool.InvokableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Infos returns the tool catalog in registration order, for BindTools.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		info, err := r.tools[name].Info(ctx)
		if err != nil {
			return nil, WrapError("Registry", "Infos", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Describe returns a human-readable "name: description" list, sorted by
// name, for prompts and logs.
func (r *Registry) Describe(ctx context.Context) string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		info, err := r.tools[name].Info(ctx)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Desc)
	}
	return b.String()
}

// ToolOutcome is one tool call's normalized result.
type ToolOutcome struct {
	CallID         string
	Name           string
	Content        string
	Failed         bool
	NeedsUserInput bool
	Prompt         string
	Options        []Option
}

// disambiguationSignal is the payload shape a tool returns to request
// user input.
type disambiguationSignal struct {
	NeedsUserInput bool     `json:"needs_user_input"`
	Prompt         string   `json:"prompt"`
	Options        []Option `json:"options"`
}

// injectTeamID forces the orchestration call's team id into the tool
// arguments, overwriting whatever the model supplied. Unparseable
// arguments are passed through untouched so the tool can report the
// JSON error itself.
func injectTeamID(arguments, teamID string) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return arguments
	}
	if args == nil {
		args = make(map[string]interface{})
	}
	args["team_id"] = teamID
	out, err := json.Marshal(args)
	if err != nil {
		return arguments
	}
	return string(out)
}

// ExecuteAll runs every requested tool call concurrently and collects
// the outcomes indexed by request order, not completion order. Each
// tool's error is caught and encoded as {"error": msg} content so one
// failing tool never aborts its siblings.
func (r *Registry) ExecuteAll(ctx context.Context, calls []schema.ToolCall, teamID string, onProgress ToolProgressFunc) []ToolOutcome {
	outcomes := make([]ToolOutcome, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc schema.ToolCall) {
			defer wg.Done()
			outcomes[idx] = r.executeOne(ctx, tc, teamID, onProgress)
		}(i, call)
	}
	wg.Wait()

	return outcomes
}

func (r *Registry) executeOne(ctx context.Context, call schema.ToolCall, teamID string, onProgress ToolProgressFunc) ToolOutcome {
	name := call.Function.Name
	outcome := ToolOutcome{CallID: call.ID, Name: name}

	impl, ok := r.tools[name]
	if !ok {
		outcome.Failed = true
		outcome.Content = errorPayload(fmt.Sprintf("unknown tool: %s", name))
		return outcome
	}

	if onProgress != nil {
		onProgress(name, "start", Milestone(name, "start"))
	}

	args := injectTeamID(call.Function.Arguments, teamID)
	r.logFunc(fmt.Sprintf("[TOOLS] Executing %s", name))

	result, err := impl.InvokableRun(ctx, args)
	if err != nil {
		r.logFunc(fmt.Sprintf("[TOOLS] %s failed: %v", name, err))
		if onProgress != nil {
			onProgress(name, "error", Milestone(name, "error"))
		}
		outcome.Failed = true
		outcome.Content = errorPayload(err.Error())
		return outcome
	}

	outcome.Content = truncateResult(result)

	var signal disambiguationSignal
	if json.Unmarshal([]byte(result), &signal) == nil && signal.NeedsUserInput {
		outcome.NeedsUserInput = true
		outcome.Prompt = signal.Prompt
		outcome.Options = signal.Options
	}

	return outcome
}

// errorPayload encodes a tool failure as the {"error": msg} envelope
// the model is instructed to react to conversationally.
func errorPayload(msg string) string {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(out)
}

// truncateResult caps oversized tool output before it reaches history.
func truncateResult(result string) string {
	if len(result) <= maxToolResultSize {
		return result
	}
	return result[:maxToolResultSize] + "\n\n[Output truncated - result too large. Narrow the query with WHERE or LIMIT.]"
}
