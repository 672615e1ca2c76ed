// Package storage implements MUbase, the persistent store of the code
// graph: a single-file SQLite database holding the nodes and edges tables
// plus small metadata. The store is single-writer; reads may occur
// concurrently, and every call acquires the store lock for its duration.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/0ximu/mu/internal/graph"
)

var (
	// ErrReadOnly is returned by write operations on a read-only store.
	ErrReadOnly = errors.New("mubase: database opened read-only")
)

// MUbase is the persistent store of nodes and edges.
type MUbase struct {
	mu       sync.Mutex
	db       *sql.DB
	path     string
	readOnly bool
}

// Open opens or creates a MUbase database at path, migrating the schema to
// the current version.
func Open(path string) (*MUbase, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return &MUbase{db: db, path: path}, nil
}

// OpenReadOnly opens an existing MUbase database in read-only mode. Write
// operations return ErrReadOnly.
func OpenReadOnly(path string) (*MUbase, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if _, err := schemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	return &MUbase{db: db, path: path, readOnly: true}, nil
}

// Path returns the on-disk location of the database.
func (m *MUbase) Path() string { return m.path }

// ReadOnly reports whether the store refuses writes.
func (m *MUbase) ReadOnly() bool { return m.readOnly }

// Close releases the underlying connection.
func (m *MUbase) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Close()
}

// locked runs fn under the store lock, converting a panic from the driver or
// the callback into an error so a failed holder never wedges the store.
func (m *MUbase) locked(fn func() error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mubase: recovered: %v", r)
		}
	}()
	return fn()
}

// Clear removes all data: edges first, then nodes.
func (m *MUbase) Clear() error {
	if m.readOnly {
		return ErrReadOnly
	}
	return m.locked(func() error {
		if _, err := m.db.Exec("DELETE FROM edges"); err != nil {
			return fmt.Errorf("clear edges: %w", err)
		}
		if _, err := m.db.Exec("DELETE FROM nodes"); err != nil {
			return fmt.Errorf("clear nodes: %w", err)
		}
		return nil
	})
}

// InsertNodes upserts a batch of nodes. A prior row with the same id is
// replaced.
func (m *MUbase) InsertNodes(nodes []graph.Node) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if len(nodes) == 0 {
		return nil
	}
	return m.locked(func() error {
		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("begin insert nodes: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO nodes
			(id, kind, simple_name, qualified_name, file_path, line_start, line_end, properties, complexity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert nodes: %w", err)
		}
		defer stmt.Close()

		for i := range nodes {
			node := &nodes[i]
			props, err := marshalProperties(node.Properties)
			if err != nil {
				return fmt.Errorf("marshal properties for %s: %w", node.ID, err)
			}
			if _, err := stmt.Exec(
				node.ID, string(node.Kind), node.SimpleName,
				nullString(node.QualifiedName), nullString(node.FilePath),
				nullInt(node.LineStart), nullInt(node.LineEnd),
				props, node.Complexity,
			); err != nil {
				return fmt.Errorf("insert node %s: %w", node.ID, err)
			}
		}

		return tx.Commit()
	})
}

// InsertEdges upserts a batch of edges. Re-inserting the same
// (source, target, kind) triple is idempotent because the id is a
// deterministic hash of the triple.
func (m *MUbase) InsertEdges(edges []graph.Edge) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if len(edges) == 0 {
		return nil
	}
	return m.locked(func() error {
		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("begin insert edges: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO edges (id, source_id, target_id, kind, properties)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert edges: %w", err)
		}
		defer stmt.Close()

		for i := range edges {
			edge := &edges[i]
			props, err := marshalProperties(edge.Properties)
			if err != nil {
				return fmt.Errorf("marshal properties for edge %s: %w", edge.ID, err)
			}
			if _, err := stmt.Exec(
				edge.ID, edge.SourceID, edge.TargetID, string(edge.Kind), props,
			); err != nil {
				return fmt.Errorf("insert edge %s: %w", edge.ID, err)
			}
		}

		return tx.Commit()
	})
}

// DeleteNodesForFile deletes all edges incident to any node of the given
// file, then the nodes themselves. Returns the count of deleted nodes. This
// is the only legal way to remove nodes during incremental updates; external
// nodes carry no file path and are never touched by it.
func (m *MUbase) DeleteNodesForFile(filePath string) (int, error) {
	if m.readOnly {
		return 0, ErrReadOnly
	}
	var deleted int
	err := m.locked(func() error {
		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("begin delete for %s: %w", filePath, err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			DELETE FROM edges
			WHERE source_id IN (SELECT id FROM nodes WHERE file_path = ?)
			   OR target_id IN (SELECT id FROM nodes WHERE file_path = ?)`,
			filePath, filePath,
		); err != nil {
			return fmt.Errorf("delete edges for %s: %w", filePath, err)
		}

		result, err := tx.Exec("DELETE FROM nodes WHERE file_path = ?", filePath)
		if err != nil {
			return fmt.Errorf("delete nodes for %s: %w", filePath, err)
		}
		n, _ := result.RowsAffected()
		deleted = int(n)

		return tx.Commit()
	})
	return deleted, err
}

const nodeColumns = "id, kind, simple_name, qualified_name, file_path, line_start, line_end, properties, complexity"

// GetNode fetches a node by id; nil when absent.
func (m *MUbase) GetNode(id string) (*graph.Node, error) {
	var node *graph.Node
	err := m.locked(func() error {
		row := m.db.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
		n, err := scanNode(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get node %s: %w", id, err)
		}
		node = n
		return nil
	})
	return node, err
}

// GetNodesByKind fetches all nodes of one kind.
func (m *MUbase) GetNodesByKind(kind graph.NodeKind) ([]graph.Node, error) {
	var nodes []graph.Node
	err := m.locked(func() error {
		rows, err := m.db.Query("SELECT "+nodeColumns+" FROM nodes WHERE kind = ?", string(kind))
		if err != nil {
			return fmt.Errorf("get nodes by kind %s: %w", kind, err)
		}
		defer rows.Close()

		for rows.Next() {
			node, err := scanNode(rows)
			if err != nil {
				return fmt.Errorf("scan node: %w", err)
			}
			nodes = append(nodes, *node)
		}
		return rows.Err()
	})
	return nodes, err
}

// EdgeData is the minimal edge view loaded into the in-memory engine.
type EdgeData struct {
	SourceID string
	TargetID string
	Kind     string
}

// LoadGraph reads the node id set and edge triples for the in-memory engine.
func (m *MUbase) LoadGraph() ([]string, []EdgeData, error) {
	var nodes []string
	var edges []EdgeData
	err := m.locked(func() error {
		rows, err := m.db.Query("SELECT id FROM nodes")
		if err != nil {
			return fmt.Errorf("load node ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan node id: %w", err)
			}
			nodes = append(nodes, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		edgeRows, err := m.db.Query("SELECT source_id, target_id, kind FROM edges")
		if err != nil {
			return fmt.Errorf("load edges: %w", err)
		}
		defer edgeRows.Close()
		for edgeRows.Next() {
			var e EdgeData
			if err := edgeRows.Scan(&e.SourceID, &e.TargetID, &e.Kind); err != nil {
				return fmt.Errorf("scan edge: %w", err)
			}
			edges = append(edges, e)
		}
		return edgeRows.Err()
	})
	return nodes, edges, err
}

// QueryResult is the tabular outcome of an ad-hoc SQL query. Values are
// coerced to string, int64, float64, bool, nil or []byte.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RowCount returns the number of rows.
func (r *QueryResult) RowCount() int { return len(r.Rows) }

// Query executes arbitrary SQL against the schema.
func (m *MUbase) Query(query string, args ...any) (*QueryResult, error) {
	result := &QueryResult{Rows: [][]any{}}
	err := m.locked(func() error {
		rows, err := m.db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("query columns: %w", err)
		}
		result.Columns = columns

		for rows.Next() {
			raw := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range raw {
				ptrs[i] = &raw[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scan row: %w", err)
			}
			row := make([]any, len(columns))
			for i, v := range raw {
				row[i] = coerceValue(v)
			}
			result.Rows = append(result.Rows, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stats summarizes the stored graph.
type Stats struct {
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	NodeKinds map[string]int `json:"node_kinds"`
	EdgeKinds map[string]int `json:"edge_kinds"`
}

// Stats returns node/edge counts overall and per kind.
func (m *MUbase) Stats() (*Stats, error) {
	stats := &Stats{NodeKinds: map[string]int{}, EdgeKinds: map[string]int{}}
	err := m.locked(func() error {
		if err := m.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&stats.NodeCount); err != nil {
			return fmt.Errorf("count nodes: %w", err)
		}
		if err := m.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&stats.EdgeCount); err != nil {
			return fmt.Errorf("count edges: %w", err)
		}

		rows, err := m.db.Query("SELECT kind, COUNT(*) FROM nodes GROUP BY kind")
		if err != nil {
			return fmt.Errorf("count node kinds: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var kind string
			var count int
			if err := rows.Scan(&kind, &count); err != nil {
				return err
			}
			stats.NodeKinds[kind] = count
		}
		if err := rows.Err(); err != nil {
			return err
		}

		edgeRows, err := m.db.Query("SELECT kind, COUNT(*) FROM edges GROUP BY kind")
		if err != nil {
			return fmt.Errorf("count edge kinds: %w", err)
		}
		defer edgeRows.Close()
		for edgeRows.Next() {
			var kind string
			var count int
			if err := edgeRows.Scan(&kind, &count); err != nil {
				return err
			}
			stats.EdgeKinds[kind] = count
		}
		return edgeRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanNode.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNode reads one node row.
func scanNode(row rowScanner) (*graph.Node, error) {
	var node graph.Node
	var kind string
	var qualifiedName, filePath, properties sql.NullString
	var lineStart, lineEnd sql.NullInt64

	err := row.Scan(
		&node.ID, &kind, &node.SimpleName, &qualifiedName, &filePath,
		&lineStart, &lineEnd, &properties, &node.Complexity,
	)
	if err != nil {
		return nil, err
	}

	node.Kind = graph.NodeKind(kind)
	node.QualifiedName = qualifiedName.String
	node.FilePath = filePath.String
	node.LineStart = int(lineStart.Int64)
	node.LineEnd = int(lineEnd.Int64)
	if properties.Valid && properties.String != "" {
		if err := json.Unmarshal([]byte(properties.String), &node.Properties); err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
	}
	return &node, nil
}

// marshalProperties serializes the free-form properties blob, nil for empty.
func marshalProperties(props map[string]any) (any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// coerceValue maps driver values onto the query sum type.
func coerceValue(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case int64, float64, bool, string:
		return value
	case []byte:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
