package orchestrator

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Progress event types.
const (
	EventConnection      = "connection"
	EventAnalysis        = "analysis"
	EventQueryGeneration = "query_generation"
	EventExecution       = "execution"
	EventVisualization   = "visualization"
	EventProcessing      = "processing"
	EventGeneral         = "general"
)

// Bracketed markers the model embeds in its output, e.g.
// [PROGRESS: Connecting to the warehouse].
var progressMarkerPattern = regexp.MustCompile(`\[(PROGRESS|STATUS|STEP|ACTION):\s*([^\]]+)\]`)

// Heuristic verb patterns for unmarked progress lines. Best-effort UX
// only; classification never affects control flow.
var progressVerbPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^(Connecting to [^.\n]+)\.{3}$`),
	regexp.MustCompile(`(?im)^(Running (?:the )?quer(?:y|ies)[^.\n]*)\.{3}$`),
	regexp.MustCompile(`(?im)^(Generating [^.\n]+)\.{3}$`),
	regexp.MustCompile(`(?im)^(Analyzing [^.\n]+)\.{3}$`),
	regexp.MustCompile(`(?im)^(Creating (?:the )?(?:chart|dataset)[^.\n]*)\.{3}$`),
}

var eventKeywords = []struct {
	eventType string
	words     []string
}{
	{EventConnection, []string{"connect", "connection", "database", "datasource"}},
	{EventQueryGeneration, []string{"generat", "writing", "sql", "query plan", "building the query"}},
	{EventExecution, []string{"execut", "running", "fetching", "query"}},
	{EventVisualization, []string{"chart", "visuali", "plot", "render", "dataset"}},
	{EventAnalysis, []string{"analy", "summar", "inspect", "schema", "explor"}},
	{EventProcessing, []string{"process", "transform", "clean", "prepar"}},
}

// classifyProgress maps a progress message to an event type by keyword.
func classifyProgress(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range eventKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.eventType
			}
		}
	}
	return EventGeneral
}

// ParseProgressEvents extracts progress markers and heuristic progress
// lines from the text, classifies them, and returns the cleaned text
// with all markers removed.
func ParseProgressEvents(text string) ([]ProgressEvent, string) {
	var events []ProgressEvent

	for _, m := range progressMarkerPattern.FindAllStringSubmatch(text, -1) {
		msg := strings.TrimSpace(m[2])
		if msg == "" {
			continue
		}
		events = append(events, ProgressEvent{Type: classifyProgress(msg), Message: msg})
	}
	cleaned := progressMarkerPattern.ReplaceAllString(text, "")

	for _, p := range progressVerbPatterns {
		for _, m := range p.FindAllStringSubmatch(cleaned, -1) {
			events = append(events, ProgressEvent{Type: classifyProgress(m[1]), Message: m[1]})
		}
		cleaned = p.ReplaceAllString(cleaned, "")
	}

	// Collapse the blank runs left behind by stripped markers.
	cleaned = regexp.MustCompile(`\n{3,}`).ReplaceAllString(cleaned, "\n\n")
	cleaned = regexp.MustCompile(`[ \t]+\n`).ReplaceAllString(cleaned, "\n")
	return events, strings.TrimSpace(cleaned)
}

// Milestone phrases per tool and phase. Picked at random for variety;
// cosmetic only.
var milestonePhrases = map[string]map[string][]string{
	"list_connections": {
		"start": {"Looking up your database connections...", "Checking which databases are available..."},
		"error": {"Couldn't list your connections."},
	},
	"get_schema": {
		"start": {"Reading the database schema...", "Exploring tables and columns..."},
		"error": {"Couldn't read the schema."},
	},
	"generate_query": {
		"start": {"Writing the SQL query...", "Drafting a query for your question..."},
		"error": {"Couldn't generate the query."},
	},
	"validate_query": {
		"start": {"Checking the query..."},
		"error": {"Query validation failed."},
	},
	"run_query": {
		"start": {"Running the query...", "Fetching your data..."},
		"error": {"The query failed to run."},
	},
	"summarize": {
		"start": {"Summarizing the results...", "Crunching the numbers..."},
		"error": {"Couldn't summarize the results."},
	},
	"suggest_chart": {
		"start": {"Picking a chart type..."},
		"error": {"Couldn't suggest a chart type."},
	},
	"create_dataset": {
		"start": {"Saving the dataset..."},
		"error": {"Couldn't save the dataset."},
	},
	"create_chart": {
		"start": {"Creating your chart...", "Drawing the chart..."},
		"error": {"Couldn't create the chart."},
	},
	"update_dataset": {
		"start": {"Updating the dataset..."},
		"error": {"Couldn't update the dataset."},
	},
	"update_chart": {
		"start": {"Updating the chart..."},
		"error": {"Couldn't update the chart."},
	},
}

// Milestone returns a human-readable phrase for a tool phase. Unknown
// tools fall back to a generic phrase.
func Milestone(toolName, phase string) string {
	if phases, ok := milestonePhrases[toolName]; ok {
		if phrases, ok := phases[phase]; ok && len(phrases) > 0 {
			return phrases[rand.Intn(len(phrases))]
		}
	}
	if phase == "error" {
		return fmt.Sprintf("%s failed", toolName)
	}
	return fmt.Sprintf("Running %s...", toolName)
}

// EmitFunc delivers one progress event to a real-time channel.
// Fire-and-forget; no acknowledgment expected.
type EmitFunc func(conversationID, eventType string, data map[string]interface{})

// Emitter fans progress events out to an EmitFunc, swallowing nil sinks
// so callers can leave it unconfigured.
type Emitter struct {
	emit    EmitFunc
	logFunc func(string)
}

// NewEmitter creates an Emitter. Both arguments may be nil.
func NewEmitter(emit EmitFunc, logFunc func(string)) *Emitter {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Emitter{emit: emit, logFunc: logFunc}
}

// Emit delivers one progress event.
func (e *Emitter) Emit(conversationID string, event ProgressEvent) {
	e.logFunc(fmt.Sprintf("[PROGRESS] %s: %s", event.Type, event.Message))
	if e.emit == nil {
		return
	}
	e.emit(conversationID, event.Type, map[string]interface{}{
		"message": event.Message,
	})
}

// EmitAll delivers a batch of events in order.
func (e *Emitter) EmitAll(conversationID string, events []ProgressEvent) {
	for _, ev := range events {
		e.Emit(conversationID, ev)
	}
}
