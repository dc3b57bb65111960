// Package mcpserver exposes the Query Layer over the Model Context
// Protocol (SPEC_FULL §6.3), so an agent can call find_definition,
// find_references, find_callers, search_symbols, find_subclasses, and
// spider as tools instead of shelling out to the CLI. Grounded on
// mesdx-cli's internal/cli MCP command: `mcp.NewServer` + one
// `mcp.AddTool` per operation with a typed args struct, `server.Run(ctx,
// &mcp.StdioTransport{})` for the stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rocket-tycoon/rocketindex/internal/query"
)

// Server wraps an mcp.Server bound to a single query Engine.
type Server struct {
	srv *mcp.Server
}

// New builds a Server exposing eng's operations as MCP tools.
func New(eng *query.Engine, version string) *Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "rocketindex",
		Version: version,
	}, nil)

	s := &Server{srv: srv}
	s.registerTools(eng)
	return s
}

// Run serves the registered tools over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

type definitionArgs struct {
	Name string `json:"name"`
	From string `json:"from,omitempty"`
}

type referencesArgs struct {
	Name string `json:"name"`
}

type callersArgs struct {
	Name string `json:"name"`
}

type searchSymbolsArgs struct {
	Pattern string `json:"pattern"`
	Limit   int    `json:"limit,omitempty"`
}

type subclassesArgs struct {
	Name       string `json:"name"`
	Transitive bool   `json:"transitive,omitempty"`
}

type spiderArgs struct {
	Name     string `json:"name"`
	Reverse  bool   `json:"reverse,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

func (s *Server) registerTools(eng *query.Engine) {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "find_definition",
		Description: "Resolve a name to its definition, scoped to the file it would be written in (\"from\" is optional).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args definitionArgs) (*mcp.CallToolResult, any, error) {
		res, err := eng.FindDefinition(args.Name, args.From)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(res), res, nil
	})

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "find_references",
		Description: "List every reference to a name, ordered by file then line.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args referencesArgs) (*mcp.CallToolResult, any, error) {
		refs, err := eng.FindReferences(args.Name)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(refs), refs, nil
	})

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "find_callers",
		Description: "List the symbols containing a reference that resolves to name.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args callersArgs) (*mcp.CallToolResult, any, error) {
		callers, err := eng.FindCallers(args.Name)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(callers), callers, nil
	})

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "search_symbols",
		Description: "Search symbols by qualified-name pattern (\"*\" wildcard) or free-text token query.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchSymbolsArgs) (*mcp.CallToolResult, any, error) {
		syms, err := eng.SearchSymbols(args.Pattern, args.Limit)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(syms), syms, nil
	})

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "find_subclasses",
		Description: "List the symbols that declare name as a parent, one level by default or the whole subtree when transitive.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args subclassesArgs) (*mcp.CallToolResult, any, error) {
		subs, err := eng.FindSubclasses(args.Name, args.Transitive)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(subs), subs, nil
	})

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "spider",
		Description: "Breadth-first walk over the resolved call graph from name, forward (callees) or reverse (callers), bounded by max_depth.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args spiderArgs) (*mcp.CallToolResult, any, error) {
		direction := query.SpiderForward
		if args.Reverse {
			direction = query.SpiderReverse
		}
		maxDepth := args.MaxDepth
		if maxDepth == 0 {
			maxDepth = -1
		}
		res, err := eng.Spider(args.Name, direction, maxDepth)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(res), res, nil
	})
}

// jsonResult renders v as the tool's text content; the structured value is
// returned alongside for clients that read CallToolResult.StructuredContent
// instead of parsing Content.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("mcpserver: marshal result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)}},
		IsError: true,
	}
}
