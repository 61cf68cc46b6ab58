package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Orchestrator runs the tool-calling agent loop.
type Orchestrator struct {
	chatModel     model.ChatModel
	modelName     string
	registry      *Registry
	semantic      *SemanticLayerBuilder
	prompts       *PromptBuilder
	emitter       *Emitter
	maxIterations int
	logFunc       func(string)
}

// New creates an Orchestrator. emitter and logFunc may be nil.
func New(chatModel model.ChatModel, modelName string, registry *Registry, semantic *SemanticLayerBuilder, emitter *Emitter, maxIterations int, logFunc func(string)) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	if emitter == nil {
		emitter = NewEmitter(nil, logFunc)
	}
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Orchestrator{
		chatModel:     chatModel,
		modelName:     modelName,
		registry:      registry,
		semantic:      semantic,
		prompts:       NewPromptBuilder(),
		emitter:       emitter,
		maxIterations: maxIterations,
		logFunc:       logFunc,
	}
}

// Orchestrate answers one user question. It builds the semantic layer,
// short-circuits capability questions, then loops: model call, tool
// execution, repeat, until the model stops calling tools, a
// disambiguation is requested, or the iteration cap is hit.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) (*Result, error) {
	if o.chatModel == nil {
		return nil, WrapError("Orchestrator", "Orchestrate", fmt.Errorf("chat model not initialized"))
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, WrapError("Orchestrator", "Orchestrate", NewValidationError("question", "is required"))
	}

	layer, err := o.semantic.Build(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}

	conversationID := ""
	if req.Conversation != nil {
		conversationID = req.Conversation.ID
	}

	userMsg := &schema.Message{Role: schema.User, Content: req.Question}

	// Capability questions never reach the model. Zero usage, zero
	// iterations, deterministic text.
	if IsCapabilityQuestion(req.Question) {
		o.logFunc("[ORCHESTRATE] Capability short-circuit")
		answer := CapabilityResponse(layer)
		history := append(append([]*schema.Message{}, req.History...), userMsg,
			&schema.Message{Role: schema.Assistant, Content: answer})
		return &Result{Message: answer, History: history, Iterations: 0}, nil
	}

	systemMsg := &schema.Message{
		Role:    schema.System,
		Content: o.prompts.Build(layer, req.Conversation, req.ProjectContext),
	}

	messages := make([]*schema.Message, 0, len(req.History)+2)
	messages = append(messages, systemMsg)
	messages = append(messages, req.History...)
	messages = append(messages, userMsg)

	infos, err := o.registry.Infos(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.chatModel.BindTools(infos); err != nil {
		return nil, WrapError("Orchestrator", "Orchestrate", fmt.Errorf("failed to bind tools: %v", err))
	}
	defer o.chatModel.BindTools(nil)

	var records []UsageRecord
	lastContent := ""
	iterations := 0

	for i := 0; i < o.maxIterations; i++ {
		iterations = i + 1
		o.logFunc(fmt.Sprintf("[ORCHESTRATE] Iteration %d", iterations))

		start := time.Now()
		resp, err := o.chatModel.Generate(ctx, messages)
		elapsed := time.Since(start)
		if err != nil {
			return nil, WrapError("Orchestrator", "Orchestrate", fmt.Errorf("model call failed at iteration %d: %v", iterations, err))
		}
		records = append(records, o.usageRecord(resp, elapsed))

		if len(resp.ToolCalls) == 0 {
			messages = append(messages, resp)
			lastContent = resp.Content
			break
		}

		o.logFunc(fmt.Sprintf("[ORCHESTRATE] Model requested %d tool call(s)", len(resp.ToolCalls)))
		messages = append(messages, resp)
		lastContent = resp.Content

		outcomes := o.registry.ExecuteAll(ctx, resp.ToolCalls, req.TeamID, req.OnToolProgress)
		for _, outcome := range outcomes {
			messages = append(messages, &schema.Message{
				Role:       schema.Tool,
				Content:    outcome.Content,
				ToolCallID: outcome.CallID,
				ToolName:   outcome.Name,
			})
		}

		// A disambiguation signal stops the loop before the next model
		// call; the caller must resolve it with the user first.
		for _, outcome := range outcomes {
			if outcome.NeedsUserInput {
				o.logFunc("[ORCHESTRATE] Disambiguation requested, halting")
				return &Result{
					History:        messages[1:],
					Usage:          aggregateUsage(records),
					UsageRecords:   records,
					Iterations:     iterations,
					NeedsUserInput: true,
					Prompt:         outcome.Prompt,
					Options:        outcome.Options,
				}, nil
			}
		}
	}
	// Falling out of the loop at the cap is not an error; the last
	// assistant content is returned as-is.

	events, cleaned := ParseProgressEvents(lastContent)
	o.emitter.EmitAll(conversationID, events)

	return &Result{
		Message:      cleaned,
		History:      messages[1:],
		Usage:        aggregateUsage(records),
		UsageRecords: records,
		Iterations:   iterations,
		Events:       events,
	}, nil
}

func (o *Orchestrator) usageRecord(resp *schema.Message, elapsed time.Duration) UsageRecord {
	rec := UsageRecord{Model: o.modelName, ElapsedMs: elapsed.Milliseconds()}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		rec.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		rec.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
		rec.TotalTokens = resp.ResponseMeta.Usage.TotalTokens
	}
	return rec
}

func aggregateUsage(records []UsageRecord) Usage {
	var u Usage
	for _, r := range records {
		u.PromptTokens += r.PromptTokens
		u.CompletionTokens += r.CompletionTokens
		u.TotalTokens += r.TotalTokens
	}
	return u
}

var titleHeadingPattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// DeriveTitle extracts the first markdown heading from an assistant
// reply, for use as the conversation title. Returns "" when no heading
// exists.
func DeriveTitle(markdown string) string {
	m := titleHeadingPattern.FindStringSubmatch(markdown)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(m[1])
	if runes := []rune(title); len(runes) > 120 {
		title = string(runes[:120])
	}
	return title
}
