package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Service wraps the Orchestrator with conversation persistence: it
// loads history, runs a pass, then saves the new messages, usage
// records, and conversation metadata.
type Service struct {
	orchestrator  *Orchestrator
	conversations ConversationStore
	logFunc       func(string)
}

// NewService creates a Service.
func NewService(orch *Orchestrator, conversations ConversationStore, logFunc func(string)) *Service {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Service{orchestrator: orch, conversations: conversations, logFunc: logFunc}
}

// Ask answers a question inside a conversation. An empty conversationID
// starts a new thread; the conversation record is created lazily and
// titled from the first assistant heading.
func (s *Service) Ask(ctx context.Context, teamID, userID, conversationID, question string, projectContext []Option, onProgress ToolProgressFunc) (*Result, *Conversation, error) {
	var conv *Conversation
	var history []*schema.Message

	if conversationID != "" {
		existing, err := s.conversations.GetConversation(ctx, conversationID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, WrapError("Service", "Ask", err)
		}
		if existing != nil {
			if existing.TeamID != teamID {
				return nil, nil, WrapError("Service", "Ask", fmt.Errorf("conversation %s does not belong to team %s", conversationID, teamID))
			}
			conv = existing
			history, err = s.conversations.LoadHistory(ctx, conversationID)
			if err != nil {
				return nil, nil, WrapError("Service", "Ask", err)
			}
		}
	}

	if conv == nil {
		conv = &Conversation{
			ID:     conversationID,
			TeamID: teamID,
			UserID: userID,
			Status: StatusActive,
		}
		if conv.ID == "" {
			conv.ID = uuid.New().String()
		}
		if err := s.conversations.CreateConversation(ctx, conv); err != nil {
			return nil, nil, WrapError("Service", "Ask", err)
		}
	}

	result, err := s.orchestrator.Orchestrate(ctx, Request{
		TeamID:         teamID,
		Question:       question,
		History:        history,
		Conversation:   conv,
		ProjectContext: projectContext,
		OnToolProgress: onProgress,
	})
	if err != nil {
		status := StatusError
		errMsg := err.Error()
		if metaErr := s.conversations.UpdateConversationMeta(ctx, conv.ID, ConversationMeta{
			Status:       &status,
			ErrorMessage: &errMsg,
		}); metaErr != nil {
			s.logFunc(fmt.Sprintf("[SERVICE] Failed to record error status: %v", metaErr))
		}
		return nil, conv, err
	}

	// Persist only the messages this pass appended.
	appended := result.History[len(history):]
	if err := s.conversations.AppendMessages(ctx, conv.ID, appended); err != nil {
		return nil, conv, WrapError("Service", "Ask", err)
	}
	if len(result.UsageRecords) > 0 {
		if err := s.conversations.RecordUsage(ctx, conv.ID, result.UsageRecords); err != nil {
			return nil, conv, WrapError("Service", "Ask", err)
		}
	}

	meta := ConversationMeta{}
	status := StatusActive
	empty := ""
	meta.Status = &status
	meta.ErrorMessage = &empty

	count := conv.MessageCount + 1
	meta.MessageCount = &count

	if conv.MessageCount == 0 && conv.Title == "" && !result.NeedsUserInput {
		if title := DeriveTitle(result.Message); title != "" {
			meta.Title = &title
			conv.Title = title
		}
	}
	if err := s.conversations.UpdateConversationMeta(ctx, conv.ID, meta); err != nil {
		return nil, conv, WrapError("Service", "Ask", err)
	}
	conv.MessageCount = count
	conv.Status = StatusActive
	conv.ErrorMessage = ""

	if strings.TrimSpace(result.Message) != "" {
		s.logFunc(fmt.Sprintf("[SERVICE] Conversation %s answered in %d iteration(s)", conv.ID, result.Iterations))
	}

	return result, conv, nil
}
