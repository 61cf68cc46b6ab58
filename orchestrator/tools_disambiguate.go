package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// DisambiguateTool is a pure signal: it never touches an external
// system. Its result tells the loop to stop and ask the user to choose.
type DisambiguateTool struct{}

func NewDisambiguateTool() *DisambiguateTool {
	return &DisambiguateTool{}
}

type disambiguateInput struct {
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

func (t *DisambiguateTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "disambiguate",
		Desc: "Ask the user to choose between several interpretations of their request. Use this instead of guessing when a question could refer to multiple connections, tables, or projects.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"prompt": {
				Type:     schema.String,
				Desc:     "The question to show the user.",
				Required: true,
			},
			"options": {
				Type:     schema.Array,
				Desc:     "The choices, each as {\"label\": \"display text\", \"value\": \"machine value\"}.",
				Required: true,
			},
		}),
	}, nil
}

func (t *DisambiguateTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in disambiguateInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if in.Prompt == "" {
		return "", NewValidationError("prompt", "is required")
	}
	if len(in.Options) == 0 {
		return "", NewValidationError("options", "at least one option is required")
	}

	out, err := json.Marshal(disambiguationSignal{
		NeedsUserInput: true,
		Prompt:         in.Prompt,
		Options:        in.Options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal signal: %v", err)
	}
	return string(out), nil
}
