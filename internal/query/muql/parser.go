package muql

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is a syntax error with position context.
type ParseError struct {
	Message  string
	Position int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Position, e.Message)
}

// IsMUQL reports whether an input looks like a structured DSL statement the
// parser should own (rather than raw SQL with the same leading keyword).
func IsMUQL(input string) bool {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "show":
		// SHOW TABLES is handled here too; any SHOW is ours.
		return true
	case "find", "analyze", "describe":
		return true
	case "path":
		return len(fields) > 1 && fields[1] == "from"
	default:
		return false
	}
}

// Parse parses one MUQL statement.
func Parse(input string) (*Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	p := &parser{tokens: tokens}

	query, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.at(tokenEOF) {
		return nil, p.errorf("unexpected trailing input %q", p.peek().text)
	}
	return query, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token         { return p.tokens[p.pos] }
func (p *parser) next() token         { t := p.tokens[p.pos]; p.pos++; return t }
func (p *parser) at(k tokenKind) bool { return p.peek().kind == k }

// atKeyword matches a case-insensitive identifier without consuming it.
func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokenIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %s, got %q", strings.ToUpper(kw), p.peek().text)
	}
	return nil
}

func (p *parser) acceptSymbol(sym string) bool {
	t := p.peek()
	if t.kind == tokenSymbol && t.text == sym {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Position: p.peek().pos}
}

func (p *parser) parseQuery() (*Query, error) {
	switch {
	case p.acceptKeyword("select"):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &Query{Select: sel}, nil

	case p.acceptKeyword("show"):
		return p.parseShow()

	case p.acceptKeyword("find"):
		return p.parseFind()

	case p.acceptKeyword("path"):
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &Query{Path: path}, nil

	case p.acceptKeyword("analyze"):
		analyze, err := p.parseAnalyze()
		if err != nil {
			return nil, err
		}
		return &Query{Analyze: analyze}, nil

	case p.acceptKeyword("describe"):
		if p.at(tokenEOF) {
			return &Query{Describe: &DescribeQuery{}}, nil
		}
		table := p.next().text
		return &Query{Describe: &DescribeQuery{Table: strings.ToLower(table)}}, nil

	default:
		return nil, p.errorf("expected a query keyword, got %q", p.peek().text)
	}
}

func (p *parser) parseSelect() (*SelectQuery, error) {
	sel := &SelectQuery{}

	fields, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	sel.Fields = fields

	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}

	table, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	sel.Table = table

	if p.acceptKeyword("where") {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		sel.Where = cond
	}

	if p.acceptKeyword("group") {
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		for {
			if !p.at(tokenIdent) {
				return nil, p.errorf("expected column name in GROUP BY")
			}
			sel.GroupBy = append(sel.GroupBy, p.next().text)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if p.acceptKeyword("having") {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		sel.Having = cond
	}

	if p.acceptKeyword("order") {
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		for {
			if !p.at(tokenIdent) {
				return nil, p.errorf("expected column name in ORDER BY")
			}
			field := OrderField{Name: p.next().text}
			if p.acceptKeyword("desc") {
				field.Descending = true
			} else {
				p.acceptKeyword("asc")
			}
			sel.OrderBy = append(sel.OrderBy, field)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if p.acceptKeyword("limit") {
		if !p.at(tokenNumber) {
			return nil, p.errorf("expected a number after LIMIT")
		}
		n, err := strconv.Atoi(p.next().text)
		if err != nil || n < 0 {
			return nil, p.errorf("invalid LIMIT value")
		}
		sel.Limit = n
	}

	return sel, nil
}

var aggregates = map[string]string{
	"count": "COUNT", "avg": "AVG", "max": "MAX", "min": "MIN", "sum": "SUM",
}

func (p *parser) parseSelectList() ([]SelectField, error) {
	var fields []SelectField

	for {
		field := SelectField{}

		switch {
		case p.acceptSymbol("*"):
			field.Star = true
		case p.at(tokenIdent):
			name := p.next().text
			if agg, ok := aggregates[strings.ToLower(name)]; ok && p.acceptSymbol("(") {
				field.Aggregate = agg
				if p.acceptSymbol("*") {
					field.Star = true
				} else if p.at(tokenIdent) {
					field.Name = p.next().text
				} else {
					return nil, p.errorf("expected column or * inside %s()", agg)
				}
				if !p.acceptSymbol(")") {
					return nil, p.errorf("expected closing parenthesis")
				}
			} else {
				field.Name = name
			}
		default:
			return nil, p.errorf("expected column name or *, got %q", p.peek().text)
		}

		if p.acceptKeyword("as") {
			if !p.at(tokenIdent) {
				return nil, p.errorf("expected alias after AS")
			}
			field.Alias = p.next().text
		}

		fields = append(fields, field)
		if !p.acceptSymbol(",") {
			break
		}
	}

	return fields, nil
}

func (p *parser) parseTableName() (NodeTypeFilter, error) {
	if !p.at(tokenIdent) {
		return "", p.errorf("expected table name after FROM")
	}
	switch strings.ToLower(p.next().text) {
	case "functions":
		return FilterFunctions, nil
	case "methods":
		return FilterMethods, nil
	case "classes":
		return FilterClasses, nil
	case "modules":
		return FilterModules, nil
	case "nodes":
		return FilterNodes, nil
	case "edges":
		return FilterEdges, nil
	default:
		return "", p.errorf("unknown table (expected functions, classes, modules, methods, nodes or edges)")
	}
}

func (p *parser) parseCondition() (*Condition, error) {
	cond := &Condition{}

	for {
		cmp, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		cond.Comparisons = append(cond.Comparisons, cmp)

		if p.acceptKeyword("and") {
			continue
		}
		if p.acceptKeyword("or") {
			cond.Or = true
			continue
		}
		break
	}

	return cond, nil
}

func (p *parser) parseComparison() (Comparison, error) {
	if !p.at(tokenIdent) {
		return Comparison{}, p.errorf("expected field name in condition")
	}
	cmp := Comparison{Field: p.next().text}

	switch {
	case p.acceptSymbol("="):
		cmp.Op = "="
	case p.acceptSymbol("!="):
		cmp.Op = "!="
	case p.acceptSymbol(">="):
		cmp.Op = ">="
	case p.acceptSymbol("<="):
		cmp.Op = "<="
	case p.acceptSymbol(">"):
		cmp.Op = ">"
	case p.acceptSymbol("<"):
		cmp.Op = "<"
	case p.acceptKeyword("like"):
		cmp.Op = "LIKE"
	case p.acceptKeyword("not"):
		if err := p.expectKeyword("in"); err != nil {
			return Comparison{}, err
		}
		cmp.Op = "NOT IN"
	case p.acceptKeyword("in"):
		cmp.Op = "IN"
	default:
		return Comparison{}, p.errorf("expected comparison operator, got %q", p.peek().text)
	}

	if cmp.Op == "IN" || cmp.Op == "NOT IN" {
		if !p.acceptSymbol("(") {
			return Comparison{}, p.errorf("expected ( after %s", cmp.Op)
		}
		list := Value{}
		for {
			v, err := p.parseValue()
			if err != nil {
				return Comparison{}, err
			}
			list.List = append(list.List, v)
			if p.acceptSymbol(",") {
				continue
			}
			break
		}
		if !p.acceptSymbol(")") {
			return Comparison{}, p.errorf("expected closing parenthesis after list")
		}
		cmp.Value = list
		return cmp, nil
	}

	value, err := p.parseValue()
	if err != nil {
		return Comparison{}, err
	}
	cmp.Value = value
	return cmp, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.peek()
	switch t.kind {
	case tokenString:
		p.next()
		return Value{Str: t.text, IsStr: true}, nil
	case tokenNumber:
		p.next()
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return Value{}, p.errorf("invalid number %q", t.text)
		}
		return Value{Num: n, IsNum: true}, nil
	case tokenIdent:
		switch strings.ToLower(t.text) {
		case "true":
			p.next()
			return Value{Bool: true, IsBool: true}, nil
		case "false":
			p.next()
			return Value{IsBool: true}, nil
		case "null":
			p.next()
			return Value{IsNull: true}, nil
		}
		// Bare words are treated as string literals for convenience.
		p.next()
		return Value{Str: t.text, IsStr: true}, nil
	default:
		return Value{}, p.errorf("expected a value, got %q", t.text)
	}
}

var showTypes = map[string]ShowType{
	"dependencies": ShowDependencies,
	"dependents":   ShowDependents,
	"callers":      ShowCallers,
	"callees":      ShowCallees,
	"impact":       ShowImpact,
	"ancestors":    ShowAncestors,
}

func (p *parser) parseShow() (*Query, error) {
	if p.acceptKeyword("tables") {
		return &Query{Describe: &DescribeQuery{}}, nil
	}
	if p.acceptKeyword("columns") {
		p.acceptKeyword("from")
		if p.at(tokenEOF) {
			return nil, p.errorf("expected table name after SHOW COLUMNS")
		}
		return &Query{Describe: &DescribeQuery{Table: strings.ToLower(p.next().text)}}, nil
	}

	if !p.at(tokenIdent) {
		return nil, p.errorf("expected relation after SHOW")
	}
	name := strings.ToLower(p.next().text)
	showType, ok := showTypes[name]
	if !ok {
		return nil, p.errorf("unknown SHOW relation %q", name)
	}

	if err := p.expectKeyword("of"); err != nil {
		return nil, err
	}
	if p.at(tokenEOF) {
		return nil, p.errorf("expected target after OF")
	}
	show := &ShowQuery{Type: showType, Target: p.next().text, Depth: 1}

	if showType == ShowImpact || showType == ShowAncestors {
		// Unrestricted reachability by default.
		show.Depth = 0
	}

	if p.acceptKeyword("depth") {
		if !p.at(tokenNumber) {
			return nil, p.errorf("expected a number after DEPTH")
		}
		n, err := strconv.Atoi(p.next().text)
		if err != nil || n < 1 {
			return nil, p.errorf("invalid DEPTH value")
		}
		show.Depth = n
	}

	return &Query{Show: show}, nil
}

func (p *parser) parseFind() (*Query, error) {
	if err := p.expectKeyword("cycles"); err != nil {
		return nil, err
	}

	cycles := &FindCyclesQuery{}
	if p.acceptKeyword("via") {
		for {
			if !p.at(tokenIdent) {
				return nil, p.errorf("expected edge kind after VIA")
			}
			cycles.EdgeKinds = append(cycles.EdgeKinds, strings.ToLower(p.next().text))
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	return &Query{Cycles: cycles}, nil
}

func (p *parser) parsePath() (*PathQuery, error) {
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	if p.at(tokenEOF) {
		return nil, p.errorf("expected source node after FROM")
	}
	path := &PathQuery{From: p.next().text}

	if err := p.expectKeyword("to"); err != nil {
		return nil, err
	}
	if p.at(tokenEOF) {
		return nil, p.errorf("expected destination node after TO")
	}
	path.To = p.next().text

	if p.acceptKeyword("via") {
		if !p.at(tokenIdent) {
			return nil, p.errorf("expected edge kind after VIA")
		}
		path.Via = strings.ToLower(p.next().text)
	}

	return path, nil
}

func (p *parser) parseAnalyze() (*AnalyzeQuery, error) {
	if !p.at(tokenIdent) {
		return nil, p.errorf("expected an aspect after ANALYZE (complexity, hotspots, coupling)")
	}
	analyze := &AnalyzeQuery{Aspect: strings.ToLower(p.next().text)}

	switch analyze.Aspect {
	case "complexity", "hotspots", "coupling":
	default:
		return nil, p.errorf("unknown ANALYZE aspect %q", analyze.Aspect)
	}

	if p.at(tokenIdent) {
		analyze.Target = p.next().text
	}

	return analyze, nil
}
