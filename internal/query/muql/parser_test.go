package muql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectStar(t *testing.T) {
	q, err := Parse("SELECT * FROM functions")
	require.NoError(t, err)
	require.NotNil(t, q.Select)
	assert.Equal(t, FilterFunctions, q.Select.Table)
	assert.True(t, q.Select.Fields[0].Star)
}

func TestParseSelectFieldsWithAlias(t *testing.T) {
	q, err := Parse("SELECT name AS n, complexity FROM functions")
	require.NoError(t, err)
	require.Len(t, q.Select.Fields, 2)
	assert.Equal(t, "name", q.Select.Fields[0].Name)
	assert.Equal(t, "n", q.Select.Fields[0].Alias)
}

func TestParseSelectAggregate(t *testing.T) {
	q, err := Parse("SELECT kind, COUNT(*) AS total FROM nodes GROUP BY kind")
	require.NoError(t, err)
	require.Len(t, q.Select.Fields, 2)
	assert.Equal(t, "COUNT", q.Select.Fields[1].Aggregate)
	assert.True(t, q.Select.Fields[1].Star)
	assert.Equal(t, []string{"kind"}, q.Select.GroupBy)
}

func TestParseSelectWhereOrderLimit(t *testing.T) {
	q, err := Parse("SELECT * FROM functions WHERE complexity > 10 AND name LIKE '%parse%' ORDER BY complexity DESC LIMIT 5")
	require.NoError(t, err)

	sel := q.Select
	require.NotNil(t, sel.Where)
	require.Len(t, sel.Where.Comparisons, 2)
	assert.Equal(t, ">", sel.Where.Comparisons[0].Op)
	assert.Equal(t, "LIKE", sel.Where.Comparisons[1].Op)
	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Descending)
	assert.Equal(t, 5, sel.Limit)
}

func TestParseSelectHaving(t *testing.T) {
	q, err := Parse("SELECT kind, COUNT(*) AS c FROM nodes GROUP BY kind HAVING c > 10")
	require.NoError(t, err)
	require.NotNil(t, q.Select.Having)
}

func TestParseSelectIn(t *testing.T) {
	q, err := Parse("SELECT * FROM nodes WHERE kind IN ('class', 'function')")
	require.NoError(t, err)
	cmp := q.Select.Where.Comparisons[0]
	assert.Equal(t, "IN", cmp.Op)
	require.Len(t, cmp.Value.List, 2)
}

func TestParseShow(t *testing.T) {
	q, err := Parse("SHOW dependencies OF mod:src/auth.py DEPTH 3")
	require.NoError(t, err)
	require.NotNil(t, q.Show)
	assert.Equal(t, ShowDependencies, q.Show.Type)
	assert.Equal(t, "mod:src/auth.py", q.Show.Target)
	assert.Equal(t, 3, q.Show.Depth)
}

func TestParseShowImpactUnbounded(t *testing.T) {
	q, err := Parse("SHOW impact OF Parser")
	require.NoError(t, err)
	assert.Equal(t, ShowImpact, q.Show.Type)
	assert.Zero(t, q.Show.Depth)
}

func TestParseShowTables(t *testing.T) {
	q, err := Parse("SHOW TABLES")
	require.NoError(t, err)
	require.NotNil(t, q.Describe)
	assert.Empty(t, q.Describe.Table)
}

func TestParseFindCycles(t *testing.T) {
	q, err := Parse("FIND CYCLES")
	require.NoError(t, err)
	require.NotNil(t, q.Cycles)
	assert.Empty(t, q.Cycles.EdgeKinds)

	q, err = Parse("FIND CYCLES VIA imports, calls")
	require.NoError(t, err)
	assert.Equal(t, []string{"imports", "calls"}, q.Cycles.EdgeKinds)
}

func TestParsePath(t *testing.T) {
	q, err := Parse("PATH FROM mod:a.py TO mod:c.py VIA imports")
	require.NoError(t, err)
	require.NotNil(t, q.Path)
	assert.Equal(t, "mod:a.py", q.Path.From)
	assert.Equal(t, "mod:c.py", q.Path.To)
	assert.Equal(t, "imports", q.Path.Via)
}

func TestParseAnalyze(t *testing.T) {
	q, err := Parse("ANALYZE hotspots")
	require.NoError(t, err)
	require.NotNil(t, q.Analyze)
	assert.Equal(t, "hotspots", q.Analyze.Aspect)

	_, err = Parse("ANALYZE vibes")
	assert.Error(t, err)
}

func TestParseDescribe(t *testing.T) {
	q, err := Parse("DESCRIBE nodes")
	require.NoError(t, err)
	require.NotNil(t, q.Describe)
	assert.Equal(t, "nodes", q.Describe.Table)
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"SELECT",
		"SELECT * FROM",
		"SELECT * FROM unknown_table",
		"SHOW dependencies",
		"PATH FROM a",
		"FIND something",
	} {
		_, err := Parse(input)
		assert.Error(t, err, input)
	}
}

func TestIsMUQL(t *testing.T) {
	assert.True(t, IsMUQL("SHOW dependencies OF x"))
	assert.True(t, IsMUQL("show tables"))
	assert.True(t, IsMUQL("FIND CYCLES"))
	assert.True(t, IsMUQL("PATH FROM a TO b"))
	assert.True(t, IsMUQL("ANALYZE complexity"))
	assert.True(t, IsMUQL("DESCRIBE nodes"))

	assert.False(t, IsMUQL("SELECT * FROM nodes"))
	assert.False(t, IsMUQL("fn c>10"))
	assert.False(t, IsMUQL("path/to/file"))
}

func TestTranslateSelect(t *testing.T) {
	q, err := Parse("SELECT name, complexity FROM functions WHERE complexity > 10 ORDER BY complexity DESC LIMIT 5")
	require.NoError(t, err)

	sql := TranslateSelect(q.Select)
	assert.Equal(t,
		"SELECT simple_name AS name, complexity FROM nodes WHERE kind = 'function' AND complexity > 10 ORDER BY complexity DESC LIMIT 5",
		sql)
}

func TestTranslateSelectNameColumnMapped(t *testing.T) {
	q, err := Parse("SELECT * FROM classes WHERE name LIKE '%Service%'")
	require.NoError(t, err)

	sql := TranslateSelect(q.Select)
	assert.Contains(t, sql, "simple_name LIKE '%Service%'")
	assert.Contains(t, sql, "kind = 'class'")
}

func TestTranslateSelectAggregates(t *testing.T) {
	q, err := Parse("SELECT kind, COUNT(*) AS total FROM nodes GROUP BY kind")
	require.NoError(t, err)

	sql := TranslateSelect(q.Select)
	assert.Equal(t, "SELECT kind, COUNT(*) AS total FROM nodes GROUP BY kind", sql)
}

func TestTranslateSelectEscapesStrings(t *testing.T) {
	sql := TranslateSelect(&SelectQuery{
		Fields: []SelectField{{Star: true}},
		Table:  FilterFunctions,
		Where: &Condition{Comparisons: []Comparison{
			{Field: "name", Op: "=", Value: Value{Str: "o'brien", IsStr: true}},
		}},
	})
	assert.Contains(t, sql, "'o''brien'")
}
