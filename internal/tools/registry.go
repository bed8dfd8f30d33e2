package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/metrics"
)

// Registry maps tool names to implementations. It holds no run state and
// is safe for concurrent use once built.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

// NewRegistry accepts only the known tool names, each at most once.
func NewRegistry(logger *zap.Logger, tools ...Tool) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{tools: make(map[string]Tool, len(tools)), logger: logger}
	for _, tool := range tools {
		name := tool.Name()
		if !knownNames[name] {
			return nil, fmt.Errorf("unknown tool: %s", name)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool already registered: %s", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

// Names lists registered tools in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Tool(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) Specs() []mcp.Tool {
	specs := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Dispatch invokes the named tool. It always returns a Result: unknown
// names and panics become failed results.
func (r *Registry) Dispatch(ctx context.Context, name string, args Args) (result Result) {
	tool, ok := r.tools[name]
	if !ok {
		metrics.ToolCalls.WithLabelValues(name, metrics.Outcome(false)).Inc()
		return failure(name, KindValidation, "Unknown tool: "+name)
	}
	if args == nil {
		args = Args{}
	}

	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("tool panicked", zap.String("tool", name), zap.Any("panic", recovered), zap.Stack("stack"))
			result = failure(name, KindUnexpected, fmt.Sprintf("Unexpected error in %s: %v", name, recovered))
		}
		metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
		metrics.ToolCalls.WithLabelValues(name, metrics.Outcome(result.OK)).Inc()
		if !result.OK {
			r.logger.Warn("tool call failed",
				zap.String("tool", name),
				zap.String("kind", string(result.Kind)),
				zap.String("message", result.Message),
			)
		}
	}()

	result = tool.Invoke(ctx, args)
	result.Tool = name
	return result
}

// RegisterWithServer exposes every registered tool on an MCP server.
func (r *Registry) RegisterWithServer(server *mcpserver.MCPServer) {
	for _, name := range r.order {
		name := name
		server.AddTool(r.tools[name].Spec(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result := r.Dispatch(ctx, name, Args(req.GetArguments()))
			if !result.OK {
				return mcp.NewToolResultError(result.Message), nil
			}
			return mcp.NewToolResultText(result.Message), nil
		})
	}
}
