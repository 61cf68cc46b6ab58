package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// Capability questions are answered from the semantic layer without a
// model call. This is an explicit cost-avoidance policy, not a fallback.
var capabilityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*what\s+can\s+you\s+do`),
	regexp.MustCompile(`(?i)^\s*what\s+(?:are\s+you|do\s+you\s+do)`),
	regexp.MustCompile(`(?i)^\s*who\s+are\s+you`),
	regexp.MustCompile(`(?i)^\s*(?:show\s+me\s+your\s+)?capabilit(?:y|ies)\s*\??\s*$`),
	regexp.MustCompile(`(?i)^\s*help\s*\??\s*$`),
	regexp.MustCompile(`(?i)^\s*how\s+(?:do(?:es)?\s+(?:you|this)\s+(?:work|help)|can\s+you\s+help)`),
	regexp.MustCompile(`(?i)^\s*what\s+(?:features|tools)\s+(?:do\s+you\s+have|are\s+available)`),
}

// IsCapabilityQuestion reports whether the question asks about the
// assistant itself rather than the user's data.
func IsCapabilityQuestion(question string) bool {
	for _, p := range capabilityPatterns {
		if p.MatchString(question) {
			return true
		}
	}
	return false
}

// CapabilityResponse renders the deterministic capability answer from
// the semantic layer. Identical inputs yield identical bytes.
func CapabilityResponse(layer *SemanticLayer) string {
	var b strings.Builder

	b.WriteString("# What I can do\n\n")
	b.WriteString("I turn questions about your data into queries, datasets, and charts.\n\n")

	b.WriteString("## Your workspace\n\n")
	fmt.Fprintf(&b, "- **%d** database connection(s) available for analysis\n", len(layer.Connections))
	fmt.Fprintf(&b, "- **%d** project(s) with **%d** chart(s)\n\n", len(layer.Projects), layer.ChartCount())

	b.WriteString("## How I work\n\n")
	b.WriteString("- Explore your database schemas and explain what data you have\n")
	b.WriteString("- Write and run read-only SQL queries (SELECT only, never writes)\n")
	b.WriteString("- Summarize query results and suggest a chart type that fits them\n")
	b.WriteString("- Create and update datasets and charts in your projects\n\n")

	b.WriteString("## Chart types\n\n")
	b.WriteString(strings.Join(ChartTypeNames(), ", "))
	b.WriteString("\n\n")

	b.WriteString("```cb-actions\n")
	b.WriteString(`{"version":1,"suggestions":[` +
		`{"id":"cap-schema","label":"Show me my data","action":"reply"},` +
		`{"id":"cap-chart","label":"Create a chart","action":"reply"},` +
		`{"id":"cap-query","label":"Run a query","action":"reply"}]}`)
	b.WriteString("\n```\n")

	return b.String()
}
