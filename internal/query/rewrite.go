package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Virtual table names accepted on the SQL surface. They rewrite to filters
// over the nodes table; tables literally named nodes or edges are untouched.
var virtualTables = []struct {
	table string
	kind  string
}{
	{"functions", "function"},
	{"classes", "class"},
	{"modules", "module"},
	{"methods", "function"},
}

var (
	kindLiteralRe = regexp.MustCompile(`(?i)\bkind\s*=\s*['"]([^'"]+)['"]`)

	virtualFromRes      = map[string]*regexp.Regexp{}
	virtualFromWhereRes = map[string]*regexp.Regexp{}
)

func init() {
	for _, vt := range virtualTables {
		virtualFromRes[vt.table] = regexp.MustCompile(`(?i)\bFROM\s+` + vt.table + `\b`)
		virtualFromWhereRes[vt.table] = regexp.MustCompile(`(?i)\bFROM\s+` + vt.table + `\s+WHERE\b`)
	}
}

// rewriteVirtualTables rewrites FROM functions|classes|modules|methods into
// FROM nodes with a kind filter, merging into an existing WHERE clause with
// AND. Matching is case-insensitive on word boundaries.
func rewriteVirtualTables(sql string) string {
	result := sql

	for _, vt := range virtualTables {
		fromRe := virtualFromRes[vt.table]
		if !fromRe.MatchString(result) {
			continue
		}

		whereRe := virtualFromWhereRes[vt.table]
		if whereRe.MatchString(result) {
			result = whereRe.ReplaceAllString(result,
				fmt.Sprintf("FROM nodes WHERE kind = '%s' AND", vt.kind))
		} else {
			result = fromRe.ReplaceAllString(result,
				fmt.Sprintf("FROM nodes WHERE kind = '%s'", vt.kind))
		}
	}

	return result
}

// normalizeKindLiterals lower-cases kind = '...' literals so user case
// variants all match the canonical stored values.
func normalizeKindLiterals(sql string) string {
	return kindLiteralRe.ReplaceAllStringFunc(sql, func(match string) string {
		groups := kindLiteralRe.FindStringSubmatch(match)
		return fmt.Sprintf("kind = '%s'", strings.ToLower(groups[1]))
	})
}
