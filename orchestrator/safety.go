package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// Forbidden write/DDL keywords. Matching is whole-word and
// case-insensitive so identifiers like "updated_at" or "created" are
// never flagged.
var forbiddenKeywordPattern = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|TRUNCATE|ALTER|CREATE)\b`)

var (
	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)
)

// stripSQLComments removes -- and /* */ comments so a forbidden
// statement cannot hide behind comment syntax.
func stripSQLComments(query string) string {
	query = lineCommentPattern.ReplaceAllString(query, "")
	query = blockCommentPattern.ReplaceAllString(query, "")
	return strings.TrimSpace(query)
}

// FirstForbiddenKeyword returns the first forbidden keyword found as a
// standalone word in the text, or "" if none is present.
func FirstForbiddenKeyword(text string) string {
	match := forbiddenKeywordPattern.FindString(stripSQLComments(text))
	return strings.ToUpper(match)
}

// CheckReadOnly validates that a query is a safe read-only statement.
// The query must start with SELECT or WITH after comment stripping and
// must not contain any forbidden keyword as a whole word.
func CheckReadOnly(query string) error {
	clean := stripSQLComments(query)
	if clean == "" {
		return NewValidationError("query", "query is empty")
	}

	upper := strings.ToUpper(clean)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT queries are allowed for safety. Use SELECT to retrieve data.\nReceived query: %s", query)
	}

	if kw := forbiddenKeywordPattern.FindString(clean); kw != "" {
		return fmt.Errorf("only read-only queries are allowed: forbidden keyword %s detected", strings.ToUpper(kw))
	}

	return nil
}

// checkBalanced verifies quotes and parentheses pair up. Quoted regions
// do not count toward parenthesis depth; inside string quotes a
// backslash escapes the next character (MySQL-style), and '' doubling
// closes and reopens, which balances on its own.
func checkBalanced(query string) error {
	depth := 0
	var quote rune
	escaped := false
	for _, r := range query {
		if quote != 0 {
			if escaped {
				escaped = false
				continue
			}
			switch {
			case r == '\\' && quote != '`':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return NewValidationError("query", "unbalanced parentheses")
			}
		}
	}
	if quote != 0 {
		return NewValidationError("query", fmt.Sprintf("unterminated %c quote", quote))
	}
	if depth != 0 {
		return NewValidationError("query", "unbalanced parentheses")
	}
	return nil
}

// supportedDialects are the dialects the platform can run SQL against.
// mongodb is accepted by the tool schemas but reported as unsupported
// since it has no SQL execution path.
var supportedDialects = map[string]bool{
	"sqlite":    true,
	"mysql":     true,
	"postgres":  true,
	"snowflake": true,
}

// SupportedDialect reports whether SQL can be generated and executed
// for the dialect.
func SupportedDialect(dialect string) bool {
	return supportedDialects[strings.ToLower(strings.TrimSpace(dialect))]
}
