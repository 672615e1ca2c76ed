package extract

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Decision-point node kinds per language. Cyclomatic complexity starts at 1
// and adds 1 for every node whose kind appears in the language's set.
var decisionKinds = map[string]map[string]bool{
	"python": {
		"if_statement":           true,
		"elif_clause":            true,
		"for_statement":          true,
		"while_statement":        true,
		"except_clause":          true,
		"conditional_expression": true,
		"boolean_operator":       true,
		"case_clause":            true,
	},
	"typescript": {
		"if_statement":       true,
		"for_statement":      true,
		"for_in_statement":   true,
		"while_statement":    true,
		"do_statement":       true,
		"catch_clause":       true,
		"ternary_expression": true,
		"switch_case":        true,
		// binary_expression counts only for && and ||.
		"binary_expression": false,
	},
	"rust": {
		"if_expression":    true,
		"while_expression": true,
		"for_expression":   true,
		"loop_expression":  true,
		"match_arm":        true,
		// binary_expression counts only for && and ||.
		"binary_expression": false,
	},
}

// Complexity computes a cyclomatic-style complexity for the body node of a
// function. Deterministic given the same source.
func Complexity(body *sitter.Node, source []byte, language string) int {
	kinds, ok := decisionKinds[language]
	if !ok {
		return 1
	}

	score := 1
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		kind := n.Kind()
		if add, present := kinds[kind]; present {
			if add {
				score++
			} else if kind == "binary_expression" && isShortCircuit(n, source) {
				score++
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return score
}

// isShortCircuit reports whether a binary_expression node uses a
// short-circuit operator (&& or ||).
func isShortCircuit(n *sitter.Node, source []byte) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "&&", "||":
			return true
		}
	}
	return false
}
