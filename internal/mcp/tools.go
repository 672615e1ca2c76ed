package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0ximu/mu/internal/analysis"
	"github.com/0ximu/mu/internal/index"
)

// toolHandler is the mcp-go handler signature; the constructors below return
// one bound to a service so tests can drive them directly.
type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// addQueryTool registers mu_query: SQL, terse syntax and the structured DSL
// against the code graph.
func addQueryTool(s *server.MCPServer, service *index.Service) {
	tool := mcp.NewTool(
		"mu_query",
		mcp.WithDescription("Query the code graph. Accepts SQL over the nodes/edges tables, terse syntax (e.g. 'fn c>10 n%parse'), and structured statements (SHOW dependencies OF x, FIND CYCLES, PATH FROM a TO b)."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The query to execute")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, queryHandler(service))
}

func queryHandler(service *index.Service) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		queryStr, ok := args["query"].(string)
		if !ok || queryStr == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		result, err := service.Executor().Execute(queryStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

// addDepsTool registers mu_deps: dependency and dependent walks around one
// node, excluding structural containment.
func addDepsTool(s *server.MCPServer, service *index.Service) {
	tool := mcp.NewTool(
		"mu_deps",
		mcp.WithDescription("Walk dependencies of a node (imports, inheritance, type uses, calls). Set reverse=true for dependents: what depends on the node."),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Node id (e.g. 'cls:src/auth.py:AuthService') or simple name")),
		mcp.WithBoolean("reverse",
			mcp.Description("Walk dependents instead of dependencies (default: false)")),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth (default: 1)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, depsHandler(service))
}

func depsHandler(service *index.Service) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		target, _ := args["target"].(string)
		if target == "" {
			return mcp.NewToolResultError("target parameter is required"), nil
		}
		reverse, _ := args["reverse"].(bool)
		depth := 1
		if d, ok := args["depth"].(float64); ok && d > 0 {
			depth = int(d)
		}

		analyzer := service.Analyzer()
		var ids []string
		var err error
		operation := "dependencies"
		if reverse {
			operation = "dependents"
			ids, err = analyzer.Dependents(target, depth)
		} else {
			ids, err = analyzer.Dependencies(target, depth)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{
			"operation": operation,
			"target":    target,
			"depth":     depth,
			"results":   ids,
			"count":     len(ids),
		})
	}
}

// addImpactTool registers mu_impact: unrestricted downstream reachability
// ("what might break"), or upstream with direction=ancestors.
func addImpactTool(s *server.MCPServer, service *index.Service) {
	tool := mcp.NewTool(
		"mu_impact",
		mcp.WithDescription("Blast radius of a node: everything reachable downstream (what might break if it changes). Set direction=ancestors for everything upstream. Optionally include a risk score."),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Node id or simple name")),
		mcp.WithString("direction",
			mcp.Description("'impact' (downstream, default) or 'ancestors' (upstream)")),
		mcp.WithBoolean("risk",
			mcp.Description("Include the change-risk assessment (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, impactHandler(service))
}

func impactHandler(service *index.Service) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		target, _ := args["target"].(string)
		if target == "" {
			return mcp.NewToolResultError("target parameter is required"), nil
		}
		direction, _ := args["direction"].(string)
		if direction == "" {
			direction = "impact"
		}

		analyzer := service.Analyzer()
		var ids []string
		var err error
		switch direction {
		case "impact":
			ids, err = analyzer.Impact(target)
		case "ancestors":
			ids, err = analyzer.Ancestors(target)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid direction %q (must be 'impact' or 'ancestors')", direction)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload := map[string]any{
			"direction": direction,
			"target":    target,
			"results":   ids,
			"count":     len(ids),
		}
		if includeRisk, _ := args["risk"].(bool); includeRisk {
			assessment, err := analyzer.RiskOf(target, 0)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			payload["risk"] = assessment
		}

		return jsonResult(payload)
	}
}

// addCyclesTool registers mu_cycles: circular dependency detection.
func addCyclesTool(s *server.MCPServer, service *index.Service) {
	tool := mcp.NewTool(
		"mu_cycles",
		mcp.WithDescription("Find circular dependencies: strongly connected components of size >= 2, optionally restricted to specific edge kinds."),
		mcp.WithString("edge_kind",
			mcp.Description("Restrict to one edge kind (imports, calls, inherits, uses); empty = all")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, cyclesHandler(service))
}

func cyclesHandler(service *index.Service) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var kinds []string
		if args, ok := request.Params.Arguments.(map[string]any); ok {
			if kind, ok := args["edge_kind"].(string); ok && kind != "" {
				kinds = []string{kind}
			}
		}

		cycles, err := service.Analyzer().Cycles(kinds)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{
			"cycles": cycles,
			"count":  len(cycles),
		})
	}
}

// addStatsTool registers mu_stats: graph size, per-kind counts and detected
// patterns.
func addStatsTool(s *server.MCPServer, service *index.Service) {
	tool := mcp.NewTool(
		"mu_stats",
		mcp.WithDescription("Summarize the indexed graph: node/edge counts per kind, plus detected naming and architecture patterns."),
		mcp.WithBoolean("patterns",
			mcp.Description("Include pattern scan results (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, statsHandler(service))
}

func statsHandler(service *index.Service) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := service.Store().Stats()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload := map[string]any{"stats": stats}
		if args, ok := request.Params.Arguments.(map[string]any); ok {
			if include, _ := args["patterns"].(bool); include {
				report, err := analysis.ScanPatterns(service.Store(), "", true)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				payload["patterns"] = report
			}
		}

		return jsonResult(payload)
	}
}

// jsonResult marshals a payload into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
