package orchestrator

import (
	"github.com/cloudwego/eino/schema"
)

// Conversation is the metadata record for one chat thread, scoped to a team.
type Conversation struct {
	ID           string `json:"id"`
	TeamID       string `json:"team_id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	Status       string `json:"status"` // "active" or "error"
	MessageCount int    `json:"message_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Conversation status values.
const (
	StatusActive = "active"
	StatusError  = "error"
)

// UsageRecord captures one model invocation's token cost and latency.
type UsageRecord struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ElapsedMs        int64  `json:"elapsed_ms"`
}

// Usage is the aggregate of all UsageRecords in one orchestration pass.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Option is one selectable choice in a disambiguation prompt or a
// project-context hint passed in by the caller.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProgressEvent is one structured progress update extracted from model
// output or emitted around tool execution.
type ProgressEvent struct {
	Type    string `json:"type"` // connection, analysis, query_generation, execution, visualization, processing, general
	Message string `json:"message"`
}

// ToolProgressFunc receives tool milestone updates during a turn.
// phase is "start" or "error".
type ToolProgressFunc func(toolName, phase, message string)

// Request carries everything one orchestration pass needs.
type Request struct {
	TeamID         string
	Question       string
	History        []*schema.Message
	Conversation   *Conversation // nil for a brand-new thread
	ProjectContext []Option      // optional caller-injected project hints
	OnToolProgress ToolProgressFunc
}

// Result is what one orchestration pass returns.
//
// On the normal path Message holds the cleaned assistant text and
// NeedsUserInput is false. When a disambiguation tool fired,
// NeedsUserInput is true and Prompt/Options carry the question for the
// user; Message is empty and no trailing assistant message exists in
// History for the unresolved turn.
type Result struct {
	Message        string
	History        []*schema.Message
	Usage          Usage
	UsageRecords   []UsageRecord
	Iterations     int
	Events         []ProgressEvent
	NeedsUserInput bool
	Prompt         string
	Options        []Option
}
