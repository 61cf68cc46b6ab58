package orchestrator

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestCheckReadOnlyRejectsForbiddenStatements(t *testing.T) {
	bad := []string{
		"SELECT * FROM users; DROP TABLE users;",
		"DELETE FROM orders",
		"WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x",
		"select * from t where id in (select id from u); truncate table t",
		"UPDATE accounts SET balance = 0",
	}
	for _, q := range bad {
		if err := CheckReadOnly(q); err == nil {
			t.Errorf("expected rejection for %q", q)
		}
	}
}

func TestCheckReadOnlyAllowsSubstringIdentifiers(t *testing.T) {
	good := []string{
		"SELECT * FROM updated_items",
		"SELECT updated_at, created FROM events",
		"SELECT creates_value FROM metrics",
		"WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
		"select deleted_flag from rows_dropped_log",
	}
	for _, q := range good {
		if err := CheckReadOnly(q); err != nil {
			t.Errorf("false positive for %q: %v", q, err)
		}
	}
}

func TestCheckReadOnlyRequiresSelectPrefix(t *testing.T) {
	if err := CheckReadOnly("SHOW TABLES"); err == nil {
		t.Error("expected rejection for non-SELECT statement")
	}
	if err := CheckReadOnly("   "); err == nil {
		t.Error("expected rejection for empty query")
	}
}

func TestCheckReadOnlySeesThroughComments(t *testing.T) {
	// A forbidden statement must not be able to hide its prefix behind
	// comments, and commented-out keywords must not trigger rejection.
	if err := CheckReadOnly("/* hello */ SELECT 1"); err != nil {
		t.Errorf("leading comment should be stripped: %v", err)
	}
	if err := CheckReadOnly("SELECT 1 -- DROP TABLE users"); err != nil {
		t.Errorf("keyword inside a comment should be ignored: %v", err)
	}
}

func TestFirstForbiddenKeyword(t *testing.T) {
	if kw := FirstForbiddenKeyword("select * from t where drop_rate > 0.5"); kw != "" {
		t.Errorf("substring flagged as keyword: %q", kw)
	}
	if kw := FirstForbiddenKeyword("alter table t add column x int"); kw != "ALTER" {
		t.Errorf("expected ALTER, got %q", kw)
	}
}

func TestCheckBalanced(t *testing.T) {
	if err := checkBalanced("SELECT count(*) FROM t WHERE name = 'a(b'"); err != nil {
		t.Errorf("parens inside quotes must not count: %v", err)
	}
	if err := checkBalanced("SELECT (1"); err == nil {
		t.Error("expected unbalanced parentheses error")
	}
	if err := checkBalanced("SELECT 'oops"); err == nil {
		t.Error("expected unterminated quote error")
	}
}

func TestCheckBalancedEscapedQuotes(t *testing.T) {
	// Both escape styles close cleanly.
	if err := checkBalanced(`SELECT 'it\'s' FROM t`); err != nil {
		t.Errorf("backslash-escaped quote flagged: %v", err)
	}
	if err := checkBalanced("SELECT 'it''s' FROM t"); err != nil {
		t.Errorf("doubled quote flagged: %v", err)
	}
	// A trailing backslash leaves the quote open.
	if err := checkBalanced(`SELECT 'dangling\`); err == nil {
		t.Error("expected unterminated quote error")
	}
}

func TestSupportedDialect(t *testing.T) {
	for _, d := range []string{"sqlite", "mysql", "postgres", "snowflake", " MySQL "} {
		if !SupportedDialect(d) {
			t.Errorf("%q should be supported", d)
		}
	}
	for _, d := range []string{"mongodb", "oracle", ""} {
		if SupportedDialect(d) {
			t.Errorf("%q should not be supported", d)
		}
	}
}

var forbiddenWords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE", "ALTER", "CREATE"}

// Any query embedding a forbidden keyword as a standalone word, in any
// case mixture, is rejected; the same keyword glued into a longer
// identifier never is.
func TestGuardrailProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.SampledFrom(forbiddenWords).Draw(t, "word")

		// Random case mixture.
		var mixed strings.Builder
		for _, r := range word {
			if rapid.Bool().Draw(t, "lower") {
				mixed.WriteString(strings.ToLower(string(r)))
			} else {
				mixed.WriteString(string(r))
			}
		}

		standalone := "SELECT * FROM t WHERE 1=1; " + mixed.String() + " TABLE t"
		if err := CheckReadOnly(standalone); err == nil {
			t.Fatalf("standalone keyword not rejected: %q", standalone)
		}

		suffix := rapid.StringMatching(`[a-z_]{1,8}`).Draw(t, "suffix")
		embedded := "SELECT " + mixed.String() + "_" + suffix + " FROM t"
		if err := CheckReadOnly(embedded); err != nil {
			t.Fatalf("embedded identifier rejected: %q: %v", embedded, err)
		}
	})
}
