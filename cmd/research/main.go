package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/app"
	"github.com/scriptoria/deepresearch/internal/config"
	"github.com/scriptoria/deepresearch/internal/logging"
	"github.com/scriptoria/deepresearch/internal/research"
)

func main() {
	os.Exit(run())
}

// run returns the exit status: 0 complete, 1 incomplete or failed, 2 usage.
func run() int {
	topic := flag.String("topic", "", "Subject to investigate (required)")
	mandate := flag.String("mandate", "", "What the report should establish")
	threshold := flag.Float64("threshold", -1, "Quality score the run must reach, between 0 and 1")
	minSources := flag.Int("min-sources", 0, "Sources needed before the run can complete")
	maxSources := flag.Int("max-sources", 0, "Upper bound on collected sources")
	noValidation := flag.Bool("no-validation", false, "Skip citation validation passes")
	asJSON := flag.Bool("json", false, "Print the full outcome as JSON instead of the report")
	quiet := flag.Bool("quiet", false, "Do not print progress to stderr")
	flag.Parse()

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "usage: research -topic \"Genesis 1\" [-mandate ...] [-json]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	req := research.GoalRequest{Topic: *topic, ResearchMandate: *mandate}
	if *threshold >= 0 {
		req.QualityThreshold = threshold
	}
	if *minSources > 0 {
		req.MinSources = minSources
	}
	if *maxSources > 0 {
		req.MaxSources = maxSources
	}
	if *noValidation {
		enabled := false
		req.EnableValidation = &enabled
	}
	goal, err := req.Goal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid goal: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build services", zap.Error(err))
		return 1
	}
	defer func() { _ = services.Close() }()

	var onProgress func(research.Progress)
	if !*quiet {
		onProgress = func(p research.Progress) {
			fmt.Fprintf(os.Stderr, "[%s %d/%d] %s (sources %d, quality %.2f)\n",
				p.Phase, p.Iteration, p.MaxIterations, p.Title, p.Sources, p.Quality)
		}
	}

	outcome, err := services.Orchestrator.Run(ctx, goal, onProgress)
	if err != nil {
		logger.Warn("research ended early", zap.Error(err))
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(outcome); err != nil {
			logger.Error("encode outcome", zap.Error(err))
			return 1
		}
	} else {
		fmt.Println(outcome.Report)
	}

	if !outcome.Complete {
		return 1
	}
	return 0
}
