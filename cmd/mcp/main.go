package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/app"
	"github.com/scriptoria/deepresearch/internal/config"
	"github.com/scriptoria/deepresearch/internal/logging"
	"github.com/scriptoria/deepresearch/internal/research"
	"github.com/scriptoria/deepresearch/internal/tools"
)

const serverVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// zap writes to stderr, which keeps stdout free for the protocol.
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build services", zap.Error(err))
	}
	defer func() { _ = services.Close() }()

	s := server.NewMCPServer(
		"Deep Research",
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	services.Registry.RegisterWithServer(s)
	s.AddTool(researchTool(), researchHandler(services.Orchestrator))

	logger.Info("mcp server ready on stdio", zap.Strings("tools", services.Registry.Names()))
	if err := server.ServeStdio(s); err != nil {
		logger.Fatal("mcp server stopped", zap.Error(err))
	}
}

func researchTool() mcp.Tool {
	return mcp.NewTool("deep_research",
		mcp.WithDescription("Run an iterative research investigation on a topic and return a markdown report"),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Subject to investigate, for example a biblical passage"),
		),
		mcp.WithString("research_mandate",
			mcp.Description("What the report should establish"),
		),
		mcp.WithNumber("quality_threshold",
			mcp.Description("Quality score the run must reach, between 0 and 1"),
			mcp.Min(0),
			mcp.Max(1),
		),
		mcp.WithNumber("min_sources",
			mcp.Description("Sources needed before the run can complete"),
			mcp.Min(1),
		),
		mcp.WithNumber("max_sources",
			mcp.Description("Upper bound on collected sources"),
			mcp.Min(1),
		),
	)
}

func researchHandler(orchestrator *research.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := tools.Args(req.GetArguments())
		goalReq := research.GoalRequest{
			Topic:           args.String("topic"),
			ResearchMandate: args.String("research_mandate"),
		}
		if threshold, ok := args["quality_threshold"].(float64); ok {
			goalReq.QualityThreshold = &threshold
		}
		if n := args.Int("min_sources", 0); n > 0 {
			goalReq.MinSources = &n
		}
		if n := args.Int("max_sources", 0); n > 0 {
			goalReq.MaxSources = &n
		}

		goal, err := goalReq.Goal()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		outcome, err := orchestrator.Run(ctx, goal, nil)
		if err != nil && ctx.Err() != nil {
			return mcp.NewToolResultError("research canceled: " + err.Error()), nil
		}

		summary, _ := json.Marshal(map[string]any{
			"run_id":            outcome.RunID,
			"research_complete": outcome.Complete,
			"quality_score":     outcome.QualityScore,
			"iterations":        outcome.Iterations,
			"stop_reason":       outcome.StopReason,
		})
		return &mcp.CallToolResult{Content: []mcp.Content{
			mcp.NewTextContent(outcome.Report),
			mcp.NewTextContent(string(summary)),
		}}, nil
	}
}
