// Package query translates user queries into storage calls and returns
// tabular results. Three surfaces funnel through one executor: the terse
// syntax, raw SQL with virtual-table rewriting, and the structured MUQL
// DSL (table-style statements collapse into SQL, graph-style statements
// into engine calls).
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0ximu/mu/internal/query/muql"
	"github.com/0ximu/mu/internal/storage"
)

// GraphOps is the graph-engine surface the executor needs for graph-style
// DSL statements. The analysis layer implements it.
type GraphOps interface {
	Dependencies(target string, depth int) ([]string, error)
	Dependents(target string, depth int) ([]string, error)
	Callers(target string, depth int) ([]string, error)
	Callees(target string, depth int) ([]string, error)
	Impact(target string) ([]string, error)
	Ancestors(target string) ([]string, error)
	Cycles(edgeKinds []string) ([][]string, error)
	Path(from, to, via string) ([]string, error)
}

// GraphRequiredError signals a query that the SQL surface cannot answer; it
// carries a human-readable structured-query equivalent.
type GraphRequiredError struct {
	Suggestion string
}

func (e *GraphRequiredError) Error() string {
	return fmt.Sprintf("query requires the graph engine (try: %s)", e.Suggestion)
}

// Result is the tabular outcome of a query.
type Result struct {
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	RowCount        int      `json:"row_count"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
	Error           string   `json:"error,omitempty"`
}

// Executor runs queries against a store and, when available, the graph ops
// surface.
type Executor struct {
	store *storage.MUbase
	graph GraphOps
}

// New creates an executor. graph may be nil; graph-style statements then
// return GraphRequiredError.
func New(store *storage.MUbase, graph GraphOps) *Executor {
	return &Executor{store: store, graph: graph}
}

// Execute runs one input through the pipeline: terse rewrite, MUQL dispatch,
// virtual-table rewrite, kind-literal normalization, execution.
func (ex *Executor) Execute(input string) (*Result, error) {
	start := time.Now()

	result, err := ex.dispatch(input)
	if err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (ex *Executor) dispatch(input string) (*Result, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("empty query")
	}

	// 1. Terse syntax.
	switch terse := rewriteTerse(trimmed); terse.kind {
	case terseSQL:
		return ex.executeSQL(terse.sql)
	case terseGraphOp:
		return nil, &GraphRequiredError{Suggestion: terse.suggestion}
	}

	// 2. Structured DSL.
	if muql.IsMUQL(trimmed) {
		parsed, err := muql.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w\nHint: run SHOW TABLES for the schema, or use SQL directly", err)
		}
		return ex.executeMUQL(parsed)
	}

	// SELECT statements the DSL grammar covers get its friendlier column
	// spellings (name, type); anything it cannot parse is raw SQL.
	if strings.HasPrefix(strings.ToLower(trimmed), "select") {
		if parsed, err := muql.Parse(trimmed); err == nil {
			return ex.executeMUQL(parsed)
		}
	}

	// 3. Raw SQL with virtual tables.
	sql := rewriteVirtualTables(trimmed)
	sql = normalizeKindLiterals(sql)
	return ex.executeSQL(sql)
}

// executeSQL runs a final SQL string against storage, rewrapping store
// errors with hints.
func (ex *Executor) executeSQL(sql string) (*Result, error) {
	res, err := ex.store.Query(sql)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return &Result{Columns: res.Columns, Rows: res.Rows}, nil
}

// executeMUQL maps a parsed DSL statement to SQL or engine calls.
func (ex *Executor) executeMUQL(q *muql.Query) (*Result, error) {
	switch {
	case q.Select != nil:
		sql := muql.TranslateSelect(q.Select)
		sql = normalizeKindLiterals(sql)
		return ex.executeSQL(sql)

	case q.Show != nil:
		return ex.executeShow(q.Show)

	case q.Cycles != nil:
		if ex.graph == nil {
			return nil, &GraphRequiredError{Suggestion: "FIND CYCLES needs a loaded graph"}
		}
		cycles, err := ex.graph.Cycles(q.Cycles.EdgeKinds)
		if err != nil {
			return nil, err
		}
		result := &Result{Columns: []string{"cycle", "size", "members"}}
		for i, cycle := range cycles {
			result.Rows = append(result.Rows, []any{
				int64(i + 1), int64(len(cycle)), strings.Join(cycle, " -> "),
			})
		}
		return result, nil

	case q.Path != nil:
		if ex.graph == nil {
			return nil, &GraphRequiredError{Suggestion: fmt.Sprintf("PATH FROM %s TO %s needs a loaded graph", q.Path.From, q.Path.To)}
		}
		path, err := ex.graph.Path(q.Path.From, q.Path.To, q.Path.Via)
		if err != nil {
			return nil, err
		}
		result := &Result{Columns: []string{"step", "id"}}
		for i, id := range path {
			result.Rows = append(result.Rows, []any{int64(i), id})
		}
		return result, nil

	case q.Analyze != nil:
		return ex.executeAnalyze(q.Analyze)

	case q.Describe != nil:
		return ex.executeDescribe(q.Describe)

	default:
		return nil, errors.New("unsupported query")
	}
}

func (ex *Executor) executeShow(show *muql.ShowQuery) (*Result, error) {
	if ex.graph == nil {
		return nil, &GraphRequiredError{
			Suggestion: fmt.Sprintf("SHOW %s OF %s needs a loaded graph", show.Type, show.Target),
		}
	}

	var ids []string
	var err error
	switch show.Type {
	case muql.ShowDependencies:
		ids, err = ex.graph.Dependencies(show.Target, show.Depth)
	case muql.ShowDependents:
		ids, err = ex.graph.Dependents(show.Target, show.Depth)
	case muql.ShowCallers:
		ids, err = ex.graph.Callers(show.Target, show.Depth)
	case muql.ShowCallees:
		ids, err = ex.graph.Callees(show.Target, show.Depth)
	case muql.ShowImpact:
		ids, err = ex.graph.Impact(show.Target)
	case muql.ShowAncestors:
		ids, err = ex.graph.Ancestors(show.Target)
	default:
		return nil, fmt.Errorf("unsupported SHOW relation %q", show.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: []string{"id"}}
	for _, id := range ids {
		result.Rows = append(result.Rows, []any{id})
	}
	return result, nil
}

func (ex *Executor) executeAnalyze(analyze *muql.AnalyzeQuery) (*Result, error) {
	var sql string
	var args []any

	switch analyze.Aspect {
	case "complexity":
		sql = `SELECT simple_name, file_path, complexity FROM nodes
		       WHERE kind = 'function'`
		if analyze.Target != "" {
			sql += " AND simple_name LIKE ?"
			args = append(args, "%"+analyze.Target+"%")
		}
		sql += " ORDER BY complexity DESC LIMIT 20"

	case "hotspots":
		// Functions that are both complex and heavily called.
		sql = `SELECT n.simple_name, n.file_path, n.complexity, COUNT(e.id) AS callers
		       FROM nodes n
		       LEFT JOIN edges e ON e.target_id = n.id AND e.kind = 'calls'
		       WHERE n.kind = 'function'
		       GROUP BY n.id
		       ORDER BY n.complexity * (COUNT(e.id) + 1) DESC
		       LIMIT 20`

	case "coupling":
		// Modules by outgoing import volume.
		sql = `SELECT n.simple_name, n.file_path, COUNT(e.id) AS imports
		       FROM nodes n
		       JOIN edges e ON e.source_id = n.id AND e.kind = 'imports'
		       WHERE n.kind = 'module'
		       GROUP BY n.id
		       ORDER BY imports DESC
		       LIMIT 20`

	default:
		return nil, fmt.Errorf("unknown ANALYZE aspect %q", analyze.Aspect)
	}

	res, err := ex.store.Query(sql, args...)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return &Result{Columns: res.Columns, Rows: res.Rows}, nil
}

func (ex *Executor) executeDescribe(describe *muql.DescribeQuery) (*Result, error) {
	if describe.Table == "" {
		res, err := ex.store.Query(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
		if err != nil {
			return nil, wrapStoreError(err)
		}
		return &Result{Columns: []string{"table"}, Rows: res.Rows}, nil
	}

	table := describe.Table
	// Virtual tables describe the nodes table.
	for _, vt := range virtualTables {
		if table == vt.table {
			table = "nodes"
			break
		}
	}
	if !isIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", describe.Table)
	}

	res, err := ex.store.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, wrapStoreError(err)
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("table %q not found\nHint: run SHOW TABLES to see available tables", describe.Table)
	}
	return &Result{Columns: res.Columns, Rows: res.Rows}, nil
}

// wrapStoreError attaches actionable hints to common store failures.
func wrapStoreError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "syntax error"):
		return fmt.Errorf("invalid query syntax\nHint: see SHOW TABLES and DESCRIBE nodes for the schema\n%w", err)
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
		return fmt.Errorf("table or column not found\nHint: run SHOW TABLES, or DESCRIBE nodes for columns\n%w", err)
	default:
		return err
	}
}
