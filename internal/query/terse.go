package query

import (
	"fmt"
	"strconv"
	"strings"
)

// terseKind classifies the outcome of the terse-syntax rewrite.
type terseKind int

const (
	terseNotTerse terseKind = iota
	terseSQL
	terseGraphOp
)

// terseResult is the outcome of attempting the terse rewrite.
type terseResult struct {
	kind terseKind

	// sql is the rewritten query when kind == terseSQL.
	sql string

	// suggestion is a human-readable equivalent for graph operations that
	// the SQL surface cannot answer (kind == terseGraphOp).
	suggestion string
}

// sqlKeywords make an input skip the terse rewrite entirely.
var sqlKeywords = []string{
	"select", "show", "find", "path", "analyze", "describe",
	"insert", "update", "delete", "with", "explain", "pragma",
}

// terseColumns is the projection used by rewritten terse queries.
const terseColumns = "id, kind, simple_name, file_path, line_start, line_end, complexity"

// defaultTerseLimit bounds terse queries that give no explicit limit.
const defaultTerseLimit = 100

// rewriteTerse recognizes the compact query syntax whose first token names a
// node kind (fn, cls, mod, meth and synonyms) and converts it to SQL over
// the nodes table. Graph verbs (deps, impact, ...) are rejected with a
// suggestion; anything else falls through as not-terse.
//
//	fn c>50              -> complexity filter
//	fn n%auth            -> simple_name LIKE '%auth%'
//	fn f%src/api         -> file_path LIKE '%src/api%'
//	fn l5 o:-complexity  -> LIMIT 5 ORDER BY complexity DESC
func rewriteTerse(input string) terseResult {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return terseResult{kind: terseNotTerse}
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range sqlKeywords {
		if strings.HasPrefix(lower, kw) {
			return terseResult{kind: terseNotTerse}
		}
	}

	tokens := strings.Fields(trimmed)
	first := strings.ToLower(tokens[0])

	if suggestion, ok := graphVerbSuggestion(first, tokens); ok {
		return terseResult{kind: terseGraphOp, suggestion: suggestion}
	}

	var nodeKind string
	switch first {
	case "fn", "func", "functions":
		nodeKind = "function"
	case "cls", "class", "classes":
		nodeKind = "class"
	case "mod", "module", "modules":
		nodeKind = "module"
	case "meth", "method", "methods":
		// Methods are functions.
		nodeKind = "function"
	default:
		return terseResult{kind: terseNotTerse}
	}

	conditions := []string{fmt.Sprintf("kind = '%s'", nodeKind)}
	limit := defaultTerseLimit
	orderBy := ""

	for _, token := range tokens[1:] {
		tokenLower := strings.ToLower(token)

		// Limit: l10
		if rest, ok := strings.CutPrefix(tokenLower, "l"); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				limit = n
				continue
			}
		}

		// Complexity: c>50, c<10, c>=20, c<=5, c=3
		if cond, ok := complexityCondition(token); ok {
			conditions = append(conditions, cond)
			continue
		}

		// Name pattern: n%pattern
		if pattern, ok := cutAnyPrefix(tokenLower, "n%", "name%"); ok {
			conditions = append(conditions, fmt.Sprintf("simple_name LIKE '%%%s%%'", escapeLike(pattern)))
			continue
		}

		// File path pattern: f%pattern
		if pattern, ok := cutAnyPrefix(tokenLower, "f%", "file%", "path%"); ok {
			conditions = append(conditions, fmt.Sprintf("file_path LIKE '%%%s%%'", escapeLike(pattern)))
			continue
		}

		// Order: o:field, o:-field
		if field, ok := strings.CutPrefix(tokenLower, "o:"); ok {
			desc := false
			if f, isDesc := strings.CutPrefix(field, "-"); isDesc {
				field = f
				desc = true
			}
			if isIdentifier(field) {
				if desc {
					orderBy = field + " DESC"
				} else {
					orderBy = field + " ASC"
				}
			}
			continue
		}

		// A bare word is a name filter.
		if !strings.ContainsAny(token, ":<>=") {
			conditions = append(conditions, fmt.Sprintf("simple_name LIKE '%%%s%%'", escapeLike(token)))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(terseColumns)
	sb.WriteString(" FROM nodes WHERE ")
	sb.WriteString(strings.Join(conditions, " AND "))
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	fmt.Fprintf(&sb, " LIMIT %d", limit)

	return terseResult{kind: terseSQL, sql: sb.String()}
}

// graphVerbSuggestion recognizes terse graph verbs and builds the equivalent
// structured-query suggestion.
func graphVerbSuggestion(verb string, tokens []string) (string, bool) {
	switch verb {
	case "deps", "dependents", "impact", "ancestors", "callers", "callees":
	default:
		return "", false
	}

	target := "<target>"
	if len(tokens) > 1 {
		target = tokens[1]
	}

	switch verb {
	case "deps":
		depth := "1"
		if len(tokens) > 2 {
			if d, ok := strings.CutPrefix(tokens[2], "d"); ok {
				depth = d
			}
		}
		return fmt.Sprintf("SHOW dependencies OF %s DEPTH %s", target, depth), true
	case "dependents":
		return fmt.Sprintf("SHOW dependents OF %s", target), true
	case "impact":
		return fmt.Sprintf("SHOW impact OF %s", target), true
	case "ancestors":
		return fmt.Sprintf("SHOW ancestors OF %s", target), true
	default:
		return fmt.Sprintf("SHOW %s OF %s", verb, target), true
	}
}

// complexityCondition parses c>N, c<N, c>=N, c<=N, c=N.
func complexityCondition(token string) (string, bool) {
	lower := strings.ToLower(token)
	if len(lower) < 3 || lower[0] != 'c' {
		return "", false
	}

	op := string(lower[1])
	rest := lower[2:]
	if op != ">" && op != "<" && op != "=" {
		return "", false
	}
	if strings.HasPrefix(rest, "=") {
		op += "="
		rest = rest[1:]
	}

	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("complexity %s %d", op, n), true
}

// cutAnyPrefix tries each prefix in order.
func cutAnyPrefix(s string, prefixes ...string) (string, bool) {
	for _, prefix := range prefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			return rest, true
		}
	}
	return "", false
}

// escapeLike escapes single quotes for interpolation into a LIKE literal.
func escapeLike(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// isIdentifier reports whether s is a safe bare column name.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
