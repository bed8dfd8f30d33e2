package research

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/metrics"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
	"github.com/scriptoria/deepresearch/internal/tools"
)

const (
	actionExecuteTask = "execute_task"
	actionBroadSearch = "broad_search"
	actionSynthesize  = "synthesize_current_findings"
	actionComplete    = "complete"

	decisionThought    = "Deciding next action based on research progress"
	broadSearchResults = 5
)

type action struct {
	kind  string
	task  *taskgraph.Task
	query string
}

// signature identifies an action for repeat detection. Graph tasks are
// unique by id.
func (a action) signature() string {
	if a.task != nil {
		return actionExecuteTask + ":" + a.task.ID
	}
	return a.kind
}

// label is the tool-level name used for focus and progress.
func (a action) label() string {
	if a.task != nil {
		return a.task.Tool
	}
	return a.kind
}

func (a action) String() string {
	if a.query != "" {
		return fmt.Sprintf("{action: %s, query: %s}", a.kind, a.query)
	}
	return fmt.Sprintf("{action: %s}", a.kind)
}

type stepResult struct {
	ok      bool
	message string
}

// Orchestrator runs research goals. It holds no per-run state, so one value
// serves concurrent runs.
type Orchestrator struct {
	tools     Dispatcher
	planner   Planner
	validator Validator
	author    ReportAuthor
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator wires the collaborators. planner, validator and author
// may be nil: runs then use only the single-action heuristic, skip
// validation, or render reports locally.
func NewOrchestrator(dispatcher Dispatcher, planner Planner, validator Validator, author ReportAuthor, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxFailedAttempts < 1 {
		cfg.MaxFailedAttempts = defaultMaxFailedAttempts
	}
	if cfg.MaxSameAction < 1 {
		cfg.MaxSameAction = defaultMaxSameAction
	}
	if cfg.ValidationEvery < 1 {
		cfg.ValidationEvery = defaultValidationEvery
	}
	if cfg.Yield < 0 {
		cfg.Yield = 0
	}
	if cfg.FetchLimit < 1 {
		cfg.FetchLimit = defaultFetchLimit
	}
	if !cfg.Policy.RequireAll && cfg.Policy.MinSatisfied < 1 {
		cfg.Policy = DefaultCompletionPolicy()
	}

	return &Orchestrator{
		tools:     dispatcher,
		planner:   planner,
		validator: validator,
		author:    author,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run conducts one research run. It always returns an Outcome with a
// report; the error is non-nil only when ctx ended the run early.
func (o *Orchestrator) Run(ctx context.Context, goal Goal, onProgress func(Progress)) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	cancel := func() {}
	if o.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
	}
	defer cancel()

	rc := newRunContext(goal, uuid.NewString(), o.cfg.MaxSameAction)
	mode := o.mode(goal.topic)
	logger := o.logger.With(zap.String("run_id", rc.runID))
	logger.Info("research run started",
		zap.String("topic", goal.topic),
		zap.String("mode", mode),
		zap.Float64("quality_threshold", goal.qualityThreshold),
	)

	emitProgress(onProgress, Progress{Phase: PhaseInitializing, MaxIterations: o.cfg.MaxIterations})
	if o.planner != nil {
		graph, err := o.planner.CreatePlan(goal.topic, mode)
		if err != nil {
			logger.Warn("task graph unavailable, using heuristic actions only", zap.Error(err))
		} else {
			rc.graph = graph
			mode = graph.Mode
			logger.Info("task graph created", zap.String("graph_id", graph.ID), zap.Int("tasks", len(graph.Tasks)))
		}
	}
	refresh(rc)

	stop := StopReasonIterationCap
	var runErr error
	for rc.iteration < o.cfg.MaxIterations {
		if o.cfg.Policy.Complete(rc.goal, rc.satisfied, rc.quality) {
			stop = StopReasonComplete
			break
		}
		if rc.failedAttempts >= o.cfg.MaxFailedAttempts {
			stop = StopReasonAttemptsExhausted
			break
		}
		if err := runCtx.Err(); err != nil {
			stop, runErr = StopReasonCanceled, err
			break
		}

		next := o.decide(rc, mode)
		if next.kind == actionComplete {
			stop = StopReasonStalled
			break
		}
		rc.iteration++
		logger.Debug("action decided", zap.Int("iteration", rc.iteration), zap.String("action", next.signature()))
		emitProgress(onProgress, Progress{
			Phase:         PhaseIterating,
			Action:        next.label(),
			Iteration:     rc.iteration,
			MaxIterations: o.cfg.MaxIterations,
			Sources:       len(rc.sources),
			Quality:       rc.quality,
		})

		sourcesBefore, insightsBefore := len(rc.sources), rc.insights
		result := o.execute(runCtx, rc, next)
		o.update(rc, next, result, sourcesBefore, insightsBefore)
		if !result.ok {
			logger.Warn("action failed",
				zap.String("action", next.signature()),
				zap.Int("failed_attempts", rc.failedAttempts),
				zap.String("message", result.message),
			)
		}

		if o.validationEnabled(rc) && rc.iteration%o.cfg.ValidationEvery == 0 && rc.validatedAt != rc.iteration {
			emitProgress(onProgress, Progress{Phase: PhaseValidating, Iteration: rc.iteration, Sources: len(rc.sources), Quality: rc.quality})
			_, _ = o.validationPass(runCtx, rc)
		}

		if err := wait(runCtx, o.cfg.Yield); err != nil {
			stop, runErr = StopReasonCanceled, err
			break
		}
	}

	emitProgress(onProgress, Progress{Phase: PhaseTerminating, Iteration: rc.iteration, Sources: len(rc.sources), Quality: rc.quality})
	if o.validationEnabled(rc) && rc.validatedAt != rc.iteration && runCtx.Err() == nil {
		_, _ = o.validationPass(runCtx, rc)
	}

	complete := o.cfg.Policy.Complete(rc.goal, rc.satisfied, rc.quality)
	if complete && runErr == nil {
		stop = StopReasonComplete
	}

	emitProgress(onProgress, Progress{Phase: PhaseReporting, Iteration: rc.iteration, Sources: len(rc.sources), Quality: rc.quality})
	report, aiAuthored := o.writeReport(runCtx, rc, mode)

	metrics.RunsCompleted.WithLabelValues(string(stop), strconv.FormatBool(complete)).Inc()
	metrics.RunIterations.Observe(float64(rc.iteration))
	metrics.RunQuality.Observe(rc.quality)
	logger.Info("research run finished",
		zap.String("stop_reason", string(stop)),
		zap.Bool("complete", complete),
		zap.Int("iterations", rc.iteration),
		zap.Int("sources", len(rc.sources)),
		zap.Float64("quality", rc.quality),
	)

	return Outcome{
		RunID:        rc.runID,
		Complete:     complete,
		Report:       report,
		Context:      rc.Snapshot(),
		Iterations:   rc.iteration,
		QualityScore: rc.quality,
		Validation:   rc.validation,
		StopReason:   stop,
		AIAuthored:   aiAuthored,
	}, runErr
}

func (o *Orchestrator) mode(topic string) string {
	if o.cfg.Mode != "" {
		return o.cfg.Mode
	}
	if IsBiblicalQuery(topic) {
		return taskgraph.ModeBiblicalExegesis
	}
	return taskgraph.ModeGeneric
}

func (o *Orchestrator) validationEnabled(rc *RunContext) bool {
	return rc.goal.validation && o.validator != nil
}

// decide picks the first ready graph task in graph order, or falls back to
// the single-action heuristic. A heuristic action that has been blocked for
// repeating without progress is never chosen; when nothing is left the run
// stalls.
func (o *Orchestrator) decide(rc *RunContext, mode string) action {
	if o.planner != nil && rc.graph != nil {
		if ready := o.planner.ReadyTasks(rc.graph); len(ready) > 0 {
			task := ready[0]
			rc.note(decisionThought, actionExecuteTask,
				fmt.Sprintf("Selected task: %s for %s", task.Tool, task.StringArg("query", "N/A")))
			return action{kind: actionExecuteTask, task: task}
		}
	}

	next := o.heuristicAction(rc, mode)
	rc.note(decisionThought, next.kind, "Using legacy logic: "+next.String())
	return next
}

func (o *Orchestrator) heuristicAction(rc *RunContext, mode string) action {
	discover := action{kind: actionBroadSearch, query: discoveryQuery(rc.goal.topic, mode)}
	if len(rc.sources) < rc.goal.minSources && rc.history.allowed(discover.signature()) {
		return discover
	}
	synth := action{kind: actionSynthesize}
	if rc.history.allowed(synth.signature()) {
		return synth
	}
	return action{kind: actionComplete}
}

func discoveryQuery(topic, mode string) string {
	if mode == taskgraph.ModeGeneric {
		return topic + " research analysis overview"
	}
	return topic + " theological commentary scholarly"
}

// execute runs one action. Panics are converted to a failed step.
func (o *Orchestrator) execute(ctx context.Context, rc *RunContext, next action) (result stepResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			o.logger.Error("action panicked",
				zap.String("action", next.signature()),
				zap.Any("panic", recovered),
				zap.Stack("stack"),
			)
			result = stepResult{message: fmt.Sprintf("unexpected error in %s: %v", next.kind, recovered)}
		}
	}()

	switch next.kind {
	case actionExecuteTask:
		return o.executeTask(ctx, rc, next.task)
	case actionBroadSearch:
		return o.broadSearch(ctx, rc, next.query)
	case actionSynthesize:
		o.synthesizeFindings(rc)
		return stepResult{ok: true, message: "synthesized current findings"}
	default:
		return stepResult{message: "unknown action: " + next.kind}
	}
}

func (o *Orchestrator) broadSearch(ctx context.Context, rc *RunContext, query string) stepResult {
	summary, err := o.searchInto(ctx, rc, tools.NameWebSearch, tools.Args{"query": query, "max_results": broadSearchResults})
	if err != nil {
		rc.note("Discovering sources with a broad search", actionBroadSearch, "Search failed: "+err.Error())
		return stepResult{message: err.Error()}
	}
	return stepResult{ok: true, message: fmt.Sprintf("discovered %d new sources", summary["added"])}
}

// update folds a step into the context: failure counting, quality and
// criteria, focus, and repeat detection.
func (o *Orchestrator) update(rc *RunContext, done action, result stepResult, sourcesBefore int, insightsBefore Insights) {
	if result.ok {
		rc.failedAttempts = 0
	} else {
		rc.failedAttempts++
	}
	refresh(rc)
	rc.focus = done.label()

	grew := len(rc.sources) > sourcesBefore || !rc.insights.equal(insightsBefore)
	if done.task != nil && done.task.Status == taskgraph.StatusCompleted {
		grew = true
	}
	rc.history.record(done.signature(), grew)
}

func (o *Orchestrator) dispatch(ctx context.Context, name string, args tools.Args) tools.Result {
	if o.tools == nil {
		return tools.Result{Tool: name, Kind: tools.KindConfiguration, Message: "No tool registry is configured"}
	}
	return o.tools.Dispatch(ctx, name, args)
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
