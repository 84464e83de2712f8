// Package mcpserver exposes the Salesforce tool catalog over the Model
// Context Protocol.
package mcpserver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Caller runs a named tool. *tools.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, name string, args tools.Args) tools.Result
}

// Register adds every tool in catalog to s. When enabled is non-empty only
// the named tools are registered; names may omit the salesforce_ prefix.
// It returns the names actually registered.
func Register(s *server.MCPServer, caller Caller, catalog []tools.Tool, enabled []string, log *slog.Logger) []string {
	if log == nil {
		log = slog.Default()
	}
	selected := Select(catalog, enabled, log)
	names := make([]string, 0, len(selected))
	for _, t := range selected {
		s.AddTool(NewTool(t), Handler(caller, t.Name))
		names = append(names, t.Name)
	}
	return names
}

// Select filters catalog down to the enabled names, preserving catalog order.
func Select(catalog []tools.Tool, enabled []string, log *slog.Logger) []tools.Tool {
	if len(enabled) == 0 {
		return catalog
	}
	if log == nil {
		log = slog.Default()
	}
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !strings.HasPrefix(name, tools.Prefix) {
			name = tools.Prefix + name
		}
		want[name] = true
	}

	var out []tools.Tool
	for _, t := range catalog {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	for name := range want {
		log.Error("unknown tool specified", "tool", name)
	}
	return out
}

// NewTool builds the MCP tool definition for t.
func NewTool(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description),
		mcp.WithReadOnlyHintAnnotation(t.Permission == tools.ReadOnly),
		mcp.WithDestructiveHintAnnotation(t.Destructive),
	}
	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case tools.TypeInteger:
			if n, ok := p.Default.(int); ok {
				props = append(props, mcp.DefaultNumber(float64(n)))
			}
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			if s, ok := p.Default.(string); ok && s != "" {
				props = append(props, mcp.DefaultString(s))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// Handler returns the MCP handler that dispatches to the named tool. Tool
// failures are reported as error results carrying the {"error": ...} JSON,
// never as protocol errors.
func Handler(caller Caller, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := tools.Args(request.GetArguments())
		if args == nil {
			args = tools.Args{}
		}
		res := caller.Call(ctx, name, args)
		out := mcp.NewToolResultText(res.JSON())
		out.IsError = !res.OK()
		return out, nil
	}
}
