package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"chartmind/orchestrator"
)

// Conversations implements orchestrator.ConversationStore over sqlite.
// Messages are stored append-only with a strictly increasing sequence
// per conversation; tool-call payloads ride a JSON column.
type Conversations struct {
	db      *sql.DB
	logFunc func(string)
}

// NewConversations creates a Conversations store.
func NewConversations(db *sql.DB, logFunc func(string)) *Conversations {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Conversations{db: db, logFunc: logFunc}
}

func (s *Conversations) CreateConversation(ctx context.Context, conv *orchestrator.Conversation) error {
	if conv.Status == "" {
		conv.Status = orchestrator.StatusActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, team_id, user_id, title, status, message_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.TeamID, conv.UserID, conv.Title, conv.Status, conv.MessageCount, conv.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (s *Conversations) GetConversation(ctx context.Context, conversationID string) (*orchestrator.Conversation, error) {
	var c orchestrator.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, user_id, title, status, message_count, error_message
		FROM conversations WHERE id = ?`, conversationID).
		Scan(&c.ID, &c.TeamID, &c.UserID, &c.Title, &c.Status, &c.MessageCount, &c.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &c, nil
}

func (s *Conversations) LoadHistory(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id, tool_name
		FROM messages WHERE conversation_id = ? ORDER BY sequence`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var out []*schema.Message
	for rows.Next() {
		var role, content, toolCallsJSON, toolCallID, toolName string
		if err := rows.Scan(&role, &content, &toolCallsJSON, &toolCallID, &toolName); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg := &schema.Message{
			Role:       schema.RoleType(role),
			Content:    content,
			ToolCallID: toolCallID,
			ToolName:   toolName,
		}
		if toolCallsJSON != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("corrupt tool_calls payload in conversation %s: %w", conversationID, err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Conversations) AppendMessages(ctx context.Context, conversationID string, msgs []*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) + 1 FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&next); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	for i, msg := range msgs {
		toolCallsJSON := ""
		if len(msg.ToolCalls) > 0 {
			raw, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
			toolCallsJSON = string(raw)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sequence, role, content, tool_calls, tool_call_id, tool_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), conversationID, next+i, string(msg.Role), msg.Content, toolCallsJSON, msg.ToolCallID, msg.ToolName); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return tx.Commit()
}

func (s *Conversations) RecordUsage(ctx context.Context, conversationID string, records []orchestrator.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO usage_records (conversation_id, model, prompt_tokens, completion_tokens, total_tokens, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			conversationID, r.Model, r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.ElapsedMs); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}
	return tx.Commit()
}

// ListUsage returns a conversation's usage records in insertion order.
func (s *Conversations) ListUsage(ctx context.Context, conversationID string) ([]orchestrator.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, prompt_tokens, completion_tokens, total_tokens, elapsed_ms
		FROM usage_records WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.UsageRecord
	for rows.Next() {
		var r orchestrator.UsageRecord
		if err := rows.Scan(&r.Model, &r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.ElapsedMs); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Conversations) UpdateConversationMeta(ctx context.Context, conversationID string, meta orchestrator.ConversationMeta) error {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	if meta.Title != nil {
		conv.Title = *meta.Title
	}
	if meta.Status != nil {
		conv.Status = *meta.Status
	}
	if meta.MessageCount != nil {
		conv.MessageCount = *meta.MessageCount
	}
	if meta.ErrorMessage != nil {
		conv.ErrorMessage = *meta.ErrorMessage
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, status = ?, message_count = ?, error_message = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		conv.Title, conv.Status, conv.MessageCount, conv.ErrorMessage, conversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation meta: %w", err)
	}
	return nil
}
