package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Suggestion is one quick-reply entry from a cb-actions block.
type Suggestion struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

type suggestionBlock struct {
	Version     int          `json:"version"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Fenced block literally tagged cb-actions. The tag match is exact so a
// ```cb-actions-v2 block is not picked up by accident.
var cbActionsPattern = regexp.MustCompile("(?s)```cb-actions\n(.*?)\n```")

// ParseSuggestions extracts the quick-reply suggestions from a fenced
// cb-actions block in the assistant text. The parser fails soft: a
// missing block, malformed JSON, or an empty suggestion list returns
// (nil, false) and never affects the surrounding prose.
func ParseSuggestions(text string) ([]Suggestion, bool) {
	m := cbActionsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	var block suggestionBlock
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &block); err != nil {
		return nil, false
	}
	if block.Version != 1 || len(block.Suggestions) == 0 {
		return nil, false
	}

	for _, s := range block.Suggestions {
		if s.ID == "" || s.Label == "" || s.Action != "reply" {
			return nil, false
		}
	}
	return block.Suggestions, true
}

// StripSuggestions removes the cb-actions block from the text, leaving
// the prose untouched. Used by callers that render suggestions as UI
// buttons instead of inline code.
func StripSuggestions(text string) string {
	return strings.TrimSpace(cbActionsPattern.ReplaceAllString(text, ""))
}
