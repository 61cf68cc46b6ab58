package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"chartmind/config"
)

// NewChatModel builds the configured chat model. "Anthropic" and
// "Claude-Compatible" select the Anthropic messages adapter; everything
// else goes through the OpenAI-compatible client.
func NewChatModel(ctx context.Context, cfg config.Config, logFunc func(string)) (model.ChatModel, error) {
	switch cfg.LLMProvider {
	case "Anthropic", "Claude-Compatible":
		return NewAnthropicChatModel(ctx, &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.ModelName,
			MaxTokens: cfg.MaxTokens,
		}, logFunc)
	default:
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ModelName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %v", err)
		}
		return chatModel, nil
	}
}
