package orchestrator

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
)

// memConversations is an in-memory ConversationStore for tests.
type memConversations struct {
	convs    map[string]*Conversation
	messages map[string][]*schema.Message
	usage    map[string][]UsageRecord
}

func newMemConversations() *memConversations {
	return &memConversations{
		convs:    map[string]*Conversation{},
		messages: map[string][]*schema.Message{},
		usage:    map[string][]UsageRecord{},
	}
}

func (s *memConversations) CreateConversation(ctx context.Context, conv *Conversation) error {
	cp := *conv
	s.convs[conv.ID] = &cp
	return nil
}

func (s *memConversations) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if c, ok := s.convs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *memConversations) LoadHistory(ctx context.Context, id string) ([]*schema.Message, error) {
	return append([]*schema.Message{}, s.messages[id]...), nil
}

func (s *memConversations) AppendMessages(ctx context.Context, id string, msgs []*schema.Message) error {
	s.messages[id] = append(s.messages[id], msgs...)
	return nil
}

func (s *memConversations) RecordUsage(ctx context.Context, id string, records []UsageRecord) error {
	s.usage[id] = append(s.usage[id], records...)
	return nil
}

func (s *memConversations) UpdateConversationMeta(ctx context.Context, id string, meta ConversationMeta) error {
	c, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	if meta.Title != nil {
		c.Title = *meta.Title
	}
	if meta.Status != nil {
		c.Status = *meta.Status
	}
	if meta.MessageCount != nil {
		c.MessageCount = *meta.MessageCount
	}
	if meta.ErrorMessage != nil {
		c.ErrorMessage = *meta.ErrorMessage
	}
	return nil
}

func TestServiceCreatesAndTitlesConversation(t *testing.T) {
	chatModel := &scriptedModel{responses: []*schema.Message{
		assistantWithUsage("# Revenue overview\n\nLooking good.", 30, 10),
	}}
	orch := newTestOrchestrator(t, chatModel, seededStore(), &fakeRunner{})
	convs := newMemConversations()
	svc := NewService(orch, convs, nil)

	result, conv, err := svc.Ask(context.Background(), "team-1", "user-1", "", "How is revenue?", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID == "" {
		t.Fatal("conversation id not assigned")
	}

	saved, err := convs.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Title != "Revenue overview" {
		t.Errorf("title = %q", saved.Title)
	}
	if saved.MessageCount != 1 {
		t.Errorf("message_count = %d", saved.MessageCount)
	}
	if saved.Status != StatusActive {
		t.Errorf("status = %q", saved.Status)
	}

	if len(convs.messages[conv.ID]) != 2 {
		t.Errorf("expected user+assistant persisted, got %d", len(convs.messages[conv.ID]))
	}
	if len(convs.usage[conv.ID]) != 1 {
		t.Errorf("usage records not persisted: %d", len(convs.usage[conv.ID]))
	}
	if result.Message == "" {
		t.Error("empty result message")
	}
}

func TestServiceContinuesConversation(t *testing.T) {
	chatModel := &scriptedModel{responses: []*schema.Message{
		assistantWithUsage("# First\n\nanswer one", 10, 5),
		assistantWithUsage("answer two", 10, 5),
	}}
	orch := newTestOrchestrator(t, chatModel, seededStore(), &fakeRunner{})
	convs := newMemConversations()
	svc := NewService(orch, convs, nil)
	ctx := context.Background()

	_, conv, err := svc.Ask(ctx, "team-1", "user-1", "", "first question", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, conv2, err := svc.Ask(ctx, "team-1", "user-1", conv.ID, "second question", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if conv2.ID != conv.ID {
		t.Error("conversation id changed")
	}
	if conv2.MessageCount != 2 {
		t.Errorf("message_count = %d", conv2.MessageCount)
	}
	// Title is set once, from the first turn only.
	saved, _ := convs.GetConversation(ctx, conv.ID)
	if saved.Title != "First" {
		t.Errorf("title changed: %q", saved.Title)
	}
	// Full history: 2 user + 2 assistant messages.
	if len(convs.messages[conv.ID]) != 4 {
		t.Errorf("expected 4 persisted messages, got %d", len(convs.messages[conv.ID]))
	}
}

func TestServiceRejectsCrossTeamConversation(t *testing.T) {
	chatModel := &scriptedModel{responses: []*schema.Message{assistantWithUsage("hi", 1, 1)}}
	orch := newTestOrchestrator(t, chatModel, seededStore(), &fakeRunner{})
	convs := newMemConversations()
	convs.CreateConversation(context.Background(), &Conversation{ID: "conv-x", TeamID: "other-team"})
	svc := NewService(orch, convs, nil)

	if _, _, err := svc.Ask(context.Background(), "team-1", "u", "conv-x", "q", nil, nil); err == nil {
		t.Fatal("cross-team conversation access allowed")
	}
}

func TestServiceRecordsErrorStatus(t *testing.T) {
	chatModel := &scriptedModel{genErr: ErrNotFound}
	orch := newTestOrchestrator(t, chatModel, seededStore(), &fakeRunner{})
	convs := newMemConversations()
	svc := NewService(orch, convs, nil)

	_, conv, err := svc.Ask(context.Background(), "team-1", "u", "", "q", nil, nil)
	if err == nil {
		t.Fatal("expected model error to surface")
	}
	saved, _ := convs.GetConversation(context.Background(), conv.ID)
	if saved.Status != StatusError || saved.ErrorMessage == "" {
		t.Errorf("error status not recorded: %+v", saved)
	}
}

func TestServiceDisambiguationSkipsTitle(t *testing.T) {
	args := `{"prompt":"Which?","options":[{"label":"A","value":"a"}]}`
	chatModel := &scriptedModel{responses: []*schema.Message{
		assistantWithUsage("", 5, 2, toolCall("c1", "disambiguate", args)),
	}}
	orch := newTestOrchestrator(t, chatModel, seededStore(), &fakeRunner{})
	convs := newMemConversations()
	svc := NewService(orch, convs, nil)

	result, conv, err := svc.Ask(context.Background(), "team-1", "u", "", "ambiguous", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsUserInput {
		t.Fatal("disambiguation lost")
	}
	saved, _ := convs.GetConversation(context.Background(), conv.ID)
	if saved.Title != "" {
		t.Errorf("title set on unresolved turn: %q", saved.Title)
	}
	// The partial turn is still persisted for replay.
	if len(convs.messages[conv.ID]) != 3 {
		t.Errorf("expected user+assistant+tool persisted, got %d", len(convs.messages[conv.ID]))
	}
}
