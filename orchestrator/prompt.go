package orchestrator

import (
	"fmt"
	"strings"
)

// PromptBuilder renders the system message from the semantic layer and
// conversation state.
type PromptBuilder struct{}

// NewPromptBuilder creates a PromptBuilder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build renders the full system prompt. conv may be nil for a thread
// that has no persisted conversation yet; a nil conversation or a
// message_count of zero selects the new-conversation framing.
func (p *PromptBuilder) Build(layer *SemanticLayer, conv *Conversation, projectContext []Option) string {
	var b strings.Builder

	b.WriteString("You are a data analysis assistant for a dashboarding platform. ")
	b.WriteString("You answer questions about the user's data by exploring database schemas, ")
	b.WriteString("writing read-only SQL, running it, and creating datasets and charts.\n\n")

	if conv == nil || conv.MessageCount == 0 {
		b.WriteString("This is a new conversation. Start your first reply with a short markdown heading (# ...) that summarizes the topic; it becomes the conversation title.\n\n")
	} else {
		b.WriteString("This is a continuing conversation. Do not re-introduce yourself; build on the earlier turns.\n\n")
	}

	b.WriteString("## Available connections\n\n")
	if len(layer.Connections) == 0 {
		b.WriteString("No database connections are available. Tell the user to add one before asking data questions.\n")
	} else {
		for _, c := range layer.Connections {
			fmt.Fprintf(&b, "- %s (id: %s, dialect: %s)\n", c.Name, c.ID, c.Subtype)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Projects\n\n")
	if len(layer.Projects) == 0 {
		b.WriteString("No projects yet.\n")
	} else {
		for _, proj := range layer.Projects {
			fmt.Fprintf(&b, "- %s (id: %s, %d charts)\n", proj.Name, proj.ID, len(proj.Charts))
			for _, ch := range proj.Charts {
				fmt.Fprintf(&b, "  - %s [%s] (id: %s)\n", ch.Name, ch.Type, ch.ID)
			}
		}
	}
	b.WriteString("\n")

	if len(projectContext) > 0 {
		b.WriteString("## Current context\n\n")
		b.WriteString("The user is working in the following context. Use these exact ids when creating or updating anything:\n")
		for _, opt := range projectContext {
			fmt.Fprintf(&b, "- %s: %s\n", opt.Label, opt.Value)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Chart types\n\n")
	for _, ct := range layer.ChartTypes {
		fmt.Fprintf(&b, "- %s: %s\n", ct.Name, ct.Description)
	}
	b.WriteString("\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("- Only SELECT-class queries. Never write, alter, or delete data under any circumstances.\n")
	b.WriteString("- Create at most one chart per user request. Never create test, validation, or duplicate charts.\n")
	b.WriteString("- Always use the exact project id given above. Never invent ids.\n")
	b.WriteString("- If the data to answer a question does not exist, say so briefly. Never fabricate numbers.\n")
	b.WriteString("- If a request is ambiguous between several connections, tables, or projects, call the disambiguate tool instead of guessing.\n")
	b.WriteString("- You may mark progress with [PROGRESS: ...], [STATUS: ...], [STEP: ...] or [ACTION: ...] markers; they are shown to the user as live status and stripped from the final text.\n\n")

	b.WriteString("## Quick replies\n\n")
	b.WriteString("End every reply with a fenced code block tagged cb-actions containing 2-4 follow-up suggestions:\n\n")
	b.WriteString("```cb-actions\n")
	b.WriteString(`{"version":1,"suggestions":[{"id":"unique-id","label":"Button text","action":"reply"}]}` + "\n")
	b.WriteString("```\n\n")
	b.WriteString("The action field is always \"reply\".\n")

	return b.String()
}
