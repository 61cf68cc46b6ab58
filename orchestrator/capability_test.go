package orchestrator

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsCapabilityQuestionMatches(t *testing.T) {
	matching := []string{
		"What can you do?",
		"what can you do for me",
		"Who are you?",
		"help",
		"Help?",
		"capabilities",
		"How do you work?",
		"How does this work?",
		"how can you help",
		"What features do you have?",
	}
	for _, q := range matching {
		if !IsCapabilityQuestion(q) {
			t.Errorf("expected match for %q", q)
		}
	}
}

func TestIsCapabilityQuestionIgnoresDataQuestions(t *testing.T) {
	nonMatching := []string{
		"What were my top products last month?",
		"Show revenue by region",
		"Can you help me find slow queries in the orders table?",
		"Create a bar chart of signups",
		"help me query the users table", // not a bare "help"
		"How does this compare to last quarter?",
		"How do you calculate total revenue here?",
	}
	for _, q := range nonMatching {
		if IsCapabilityQuestion(q) {
			t.Errorf("unexpected match for %q", q)
		}
	}
}

func TestCapabilityResponseContent(t *testing.T) {
	layer := &SemanticLayer{
		Team:        &Team{ID: "t1", Name: "Acme"},
		Connections: []Connection{{ID: "c1"}, {ID: "c2"}},
		Projects: []Project{
			{ID: "p1", Charts: []ChartSummary{{ID: "ch1"}, {ID: "ch2"}}},
		},
		ChartTypes: ChartCatalog,
	}

	resp := CapabilityResponse(layer)
	if !strings.HasPrefix(resp, "# ") {
		t.Error("response should open with a markdown heading")
	}
	if !strings.Contains(resp, "**2** database connection(s)") {
		t.Error("connection count missing")
	}
	if !strings.Contains(resp, "```cb-actions") {
		t.Error("cb-actions block missing")
	}

	// The embedded suggestion block must be well-formed.
	suggestions, ok := ParseSuggestions(resp)
	if !ok {
		t.Fatal("cb-actions block failed to parse")
	}
	if len(suggestions) < 2 || len(suggestions) > 4 {
		t.Errorf("expected 2-4 suggestions, got %d", len(suggestions))
	}
	for _, s := range suggestions {
		if s.Action != "reply" {
			t.Errorf("suggestion action must be reply, got %q", s.Action)
		}
	}
}

// Repeat calls over the same semantic layer must yield identical bytes.
func TestCapabilityResponseDeterministicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		connCount := rapid.IntRange(0, 20).Draw(t, "conns")
		chartCount := rapid.IntRange(0, 30).Draw(t, "charts")

		layer := &SemanticLayer{
			Team:        &Team{ID: "t1", Name: "Acme"},
			Connections: make([]Connection, connCount),
			Projects:    []Project{{ID: "p1", Charts: make([]ChartSummary, chartCount)}},
			ChartTypes:  ChartCatalog,
		}

		first := CapabilityResponse(layer)
		second := CapabilityResponse(layer)
		if first != second {
			t.Fatal("capability response is not deterministic")
		}
	})
}
