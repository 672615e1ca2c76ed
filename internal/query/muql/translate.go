package muql

import (
	"fmt"
	"strings"
)

// TranslateSelect renders a parsed SELECT as SQL over the nodes (or edges)
// table. Virtual tables become kind filters merged into the WHERE clause.
func TranslateSelect(sel *SelectQuery) string {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(renderFields(sel.Fields))

	if sel.Table == FilterEdges {
		sb.WriteString(" FROM edges")
	} else {
		sb.WriteString(" FROM nodes")
	}

	var conditions []string
	if kind := sel.Table.KindLiteral(); kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = '%s'", kind))
	}
	if sel.Where != nil {
		conditions = append(conditions, renderCondition(sel.Where))
	}
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if len(sel.GroupBy) > 0 {
		cols := make([]string, len(sel.GroupBy))
		for i, c := range sel.GroupBy {
			cols[i] = mapColumn(c)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(cols, ", "))
	}
	if sel.Having != nil {
		sb.WriteString(" HAVING ")
		sb.WriteString(renderCondition(sel.Having))
	}
	if len(sel.OrderBy) > 0 {
		parts := make([]string, len(sel.OrderBy))
		for i, f := range sel.OrderBy {
			if f.Descending {
				parts[i] = mapColumn(f.Name) + " DESC"
			} else {
				parts[i] = mapColumn(f.Name) + " ASC"
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	if sel.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", sel.Limit)
	}

	return sb.String()
}

func renderFields(fields []SelectField) string {
	if len(fields) == 0 {
		return "*"
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		var s string
		switch {
		case f.Aggregate != "" && f.Star:
			s = f.Aggregate + "(*)"
		case f.Aggregate != "":
			s = fmt.Sprintf("%s(%s)", f.Aggregate, mapColumn(f.Name))
		case f.Star:
			s = "*"
		default:
			s = mapColumn(f.Name)
			// A remapped bare column keeps its friendly header.
			if s != f.Name && f.Alias == "" {
				s += " AS " + f.Name
			}
		}
		if f.Alias != "" {
			s += " AS " + f.Alias
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

// mapColumn rewrites the DSL's friendlier column spellings onto the stored
// schema.
func mapColumn(name string) string {
	switch strings.ToLower(name) {
	case "name":
		return "simple_name"
	case "type":
		return "kind"
	default:
		return name
	}
}

func renderCondition(cond *Condition) string {
	parts := make([]string, len(cond.Comparisons))
	for i, cmp := range cond.Comparisons {
		parts[i] = renderComparison(&cmp)
	}
	op := " AND "
	if cond.Or {
		op = " OR "
	}
	if len(parts) > 1 {
		return "(" + strings.Join(parts, op) + ")"
	}
	return parts[0]
}

func renderComparison(cmp *Comparison) string {
	field := mapColumn(cmp.Field)

	if cmp.Op == "IN" || cmp.Op == "NOT IN" {
		values := make([]string, len(cmp.Value.List))
		for i, v := range cmp.Value.List {
			values[i] = renderValue(&v)
		}
		return fmt.Sprintf("%s %s (%s)", field, cmp.Op, strings.Join(values, ", "))
	}

	return fmt.Sprintf("%s %s %s", field, cmp.Op, renderValue(&cmp.Value))
}

func renderValue(v *Value) string {
	switch {
	case v.IsStr:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	case v.IsNum:
		return fmt.Sprintf("%d", v.Num)
	case v.IsBool:
		if v.Bool {
			return "1"
		}
		return "0"
	case v.IsNull:
		return "NULL"
	default:
		return "NULL"
	}
}
