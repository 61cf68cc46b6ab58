package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// AnthropicChatModel is a minimal eino ChatModel over the Anthropic
// messages API. It reports token usage in ResponseMeta so the loop can
// build UsageRecords.
type AnthropicChatModel struct {
	config  *AnthropicConfig
	client  *http.Client
	tools   []*schema.ToolInfo
	logFunc func(string)
}

// AnthropicConfig configures the adapter.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewAnthropicChatModel creates the adapter. logFunc may be nil.
func NewAnthropicChatModel(ctx context.Context, config *AnthropicConfig, logFunc func(string)) (*AnthropicChatModel, error) {
	if config.APIKey == "" {
		return nil, NewValidationError("api_key", "is required")
	}
	if config.Model == "" {
		return nil, NewValidationError("model", "is required")
	}
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &AnthropicChatModel{
		config:  config,
		client:  &http.Client{Timeout: 300 * time.Second},
		logFunc: logFunc,
	}, nil
}

// BindTools attaches the tool catalog sent with every request.
func (m *AnthropicChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.tools = tools
	return nil
}

func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	maxTokens := m.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	reqBody := map[string]interface{}{
		"model":      m.config.Model,
		"max_tokens": maxTokens,
	}

	var messages []map[string]interface{}
	var systemPrompt string

	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			systemPrompt += msg.Content + "\n"
		case schema.User:
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": msg.Content,
			})
		case schema.Assistant:
			content := []map[string]interface{}{}
			if msg.Content != "" {
				content = append(content, map[string]interface{}{
					"type": "text",
					"text": msg.Content,
				})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					args = map[string]interface{}{}
				}
				content = append(content, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Function.Name,
					"input": args,
				})
			}
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": content,
			})
		case schema.Tool:
			// Anthropic expects tool results in a user message block
			// with type tool_result.
			messages = append(messages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type":        "tool_result",
						"tool_use_id": msg.ToolCallID,
						"content":     msg.Content,
					},
				},
			})
		}
	}

	if systemPrompt != "" {
		reqBody["system"] = strings.TrimSpace(systemPrompt)
	}
	reqBody["messages"] = messages

	if len(m.tools) > 0 {
		var tools []map[string]interface{}
		for _, t := range m.tools {
			tools = append(tools, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Desc,
				"input_schema": toolInputSchema(t),
			})
		}
		reqBody["tools"] = tools
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	fullURL := "https://api.anthropic.com/v1/messages"
	if m.config.BaseURL != "" {
		fullURL = strings.TrimSuffix(m.config.BaseURL, "/") + "/v1/messages"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Anthropic API error (%d): %s", resp.StatusCode, string(respBody))
	}

	type contentBlock struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	}
	var result struct {
		Content []contentBlock `json:"content"`
		Role    string         `json:"role"`
		Usage   struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}

	responseMsg := &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     result.Usage.InputTokens,
				CompletionTokens: result.Usage.OutputTokens,
				TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
			},
		},
	}

	for _, block := range result.Content {
		switch block.Type {
		case "text":
			responseMsg.Content += block.Text
		case "tool_use":
			inputStr := "{}"
			if len(block.Input) > 0 {
				var inputObj map[string]interface{}
				if err := json.Unmarshal(block.Input, &inputObj); err == nil {
					if inputBytes, err := json.Marshal(inputObj); err == nil {
						inputStr = string(inputBytes)
					} else {
						inputStr = string(block.Input)
					}
				} else {
					m.logFunc(fmt.Sprintf("[ANTHROPIC] Tool input for %s is not valid JSON (%d bytes), passing through", block.Name, len(block.Input)))
					inputStr = string(block.Input)
				}
			}
			responseMsg.ToolCalls = append(responseMsg.ToolCalls, schema.ToolCall{
				ID: block.ID,
				Function: schema.FunctionCall{
					Name:      block.Name,
					Arguments: inputStr,
				},
			})
		}
	}

	return responseMsg, nil
}

func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported yet")
}

// toolInputSchema converts a ToolInfo's parameter declaration into the
// JSON-schema object the Anthropic API expects.
func toolInputSchema(t *schema.ToolInfo) interface{} {
	if t.ParamsOneOf == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	js, err := t.ParamsOneOf.ToJSONSchema()
	if err != nil || js == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return js
}
