package store

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"chartmind/orchestrator"
)

func TestConversationRoundTrip(t *testing.T) {
	s := NewConversations(newTestDB(t), nil)
	ctx := context.Background()

	conv := &orchestrator.Conversation{ID: "conv-1", TeamID: "team-1", UserID: "user-1"}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != orchestrator.StatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	if got.MessageCount != 0 || got.Title != "" {
		t.Errorf("fresh conversation = %+v", got)
	}

	if _, err := s.GetConversation(ctx, "nope"); !errors.Is(err, orchestrator.ErrNotFound) {
		t.Errorf("missing conversation: got %v, want ErrNotFound", err)
	}
}

func TestMessagesPreserveOrderAndToolCalls(t *testing.T) {
	s := NewConversations(newTestDB(t), nil)
	ctx := context.Background()
	if err := s.CreateConversation(ctx, &orchestrator.Conversation{ID: "conv-1", TeamID: "team-1"}); err != nil {
		t.Fatal(err)
	}

	first := []*schema.Message{
		{Role: schema.User, Content: "show revenue by region"},
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{ID: "call-1", Function: schema.FunctionCall{Name: "run_query", Arguments: `{"query":"SELECT 1"}`}},
			},
		},
		{Role: schema.Tool, Content: `{"status":"ok"}`, ToolCallID: "call-1", ToolName: "run_query"},
	}
	if err := s.AppendMessages(ctx, "conv-1", first); err != nil {
		t.Fatal(err)
	}
	second := []*schema.Message{
		{Role: schema.User, Content: "now as a pie chart"},
		{Role: schema.Assistant, Content: "Here it is."},
	}
	if err := s.AppendMessages(ctx, "conv-1", second); err != nil {
		t.Fatal(err)
	}

	history, err := s.LoadHistory(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	wantRoles := []schema.RoleType{schema.User, schema.Assistant, schema.Tool, schema.User, schema.Assistant}
	for i, role := range wantRoles {
		if history[i].Role != role {
			t.Errorf("message %d role = %s, want %s", i, history[i].Role, role)
		}
	}

	// Tool-call payloads survive the JSON column round trip.
	if len(history[1].ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", history[1].ToolCalls)
	}
	tc := history[1].ToolCalls[0]
	if tc.ID != "call-1" || tc.Function.Name != "run_query" || tc.Function.Arguments != `{"query":"SELECT 1"}` {
		t.Errorf("tool call = %+v", tc)
	}
	if history[2].ToolCallID != "call-1" || history[2].ToolName != "run_query" {
		t.Errorf("tool result identity lost: id=%q name=%q", history[2].ToolCallID, history[2].ToolName)
	}
}

func TestAppendMessagesEmptyIsNoop(t *testing.T) {
	s := NewConversations(newTestDB(t), nil)
	ctx := context.Background()
	if err := s.CreateConversation(ctx, &orchestrator.Conversation{ID: "conv-1", TeamID: "team-1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessages(ctx, "conv-1", nil); err != nil {
		t.Fatal(err)
	}
	history, err := s.LoadHistory(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("history = %+v", history)
	}
}

func TestUsageRecords(t *testing.T) {
	s := NewConversations(newTestDB(t), nil)
	ctx := context.Background()
	if err := s.CreateConversation(ctx, &orchestrator.Conversation{ID: "conv-1", TeamID: "team-1"}); err != nil {
		t.Fatal(err)
	}

	records := []orchestrator.UsageRecord{
		{Model: "test-model", PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120, ElapsedMs: 900},
		{Model: "test-model", PromptTokens: 250, CompletionTokens: 40, TotalTokens: 290, ElapsedMs: 1400},
	}
	if err := s.RecordUsage(ctx, "conv-1", records); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListUsage(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("usage records = %d, want 2", len(got))
	}
	if got[0].TotalTokens != 120 || got[1].TotalTokens != 290 {
		t.Errorf("usage order wrong: %+v", got)
	}
}

func TestUpdateConversationMetaPartial(t *testing.T) {
	s := NewConversations(newTestDB(t), nil)
	ctx := context.Background()
	if err := s.CreateConversation(ctx, &orchestrator.Conversation{
		ID: "conv-1", TeamID: "team-1", Title: "Revenue overview", MessageCount: 1,
	}); err != nil {
		t.Fatal(err)
	}

	count := 2
	if err := s.UpdateConversationMeta(ctx, "conv-1", orchestrator.ConversationMeta{
		MessageCount: &count,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", got.MessageCount)
	}
	if got.Title != "Revenue overview" {
		t.Errorf("nil title field changed the stored title: %q", got.Title)
	}

	status := orchestrator.StatusError
	errMsg := "model unavailable"
	if err := s.UpdateConversationMeta(ctx, "conv-1", orchestrator.ConversationMeta{
		Status: &status, ErrorMessage: &errMsg,
	}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != orchestrator.StatusError || got.ErrorMessage != "model unavailable" {
		t.Errorf("error meta = %+v", got)
	}

	if err := s.UpdateConversationMeta(ctx, "nope", orchestrator.ConversationMeta{}); !errors.Is(err, orchestrator.ErrNotFound) {
		t.Errorf("missing conversation: got %v, want ErrNotFound", err)
	}
}
