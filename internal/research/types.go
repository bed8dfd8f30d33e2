package research

import (
	"context"
	"time"

	"github.com/scriptoria/deepresearch/internal/citation"
	"github.com/scriptoria/deepresearch/internal/llm"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
	"github.com/scriptoria/deepresearch/internal/tools"
)

type StopReason string

const (
	StopReasonComplete          StopReason = "complete"
	StopReasonAttemptsExhausted StopReason = "max_attempts_reached"
	StopReasonIterationCap      StopReason = "max_iterations_reached"
	StopReasonStalled           StopReason = "stalled"
	StopReasonCanceled          StopReason = "canceled"
)

type Config struct {
	MaxIterations     int
	MaxFailedAttempts int
	MaxSameAction     int
	ValidationEvery   int
	Yield             time.Duration
	Timeout           time.Duration
	// FetchLimit is how many sources fetch_content reads when its task
	// does not say.
	FetchLimit int
	// Mode forces a plan template. Empty picks biblical_exegesis for
	// biblical topics and generic otherwise.
	Mode   string
	Policy CompletionPolicy
}

// Planner builds and schedules task graphs. taskgraph.Planner satisfies it.
type Planner interface {
	CreatePlan(topic, mode string) (*taskgraph.Graph, error)
	ReadyTasks(g *taskgraph.Graph) []*taskgraph.Task
}

// Validator judges synthesized content against its sources.
// citation.Validator satisfies it.
type Validator interface {
	Check(ctx context.Context, graphID, content string, sources []citation.Source) (citation.Result, error)
}

// Dispatcher runs named tools. tools.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args tools.Args) tools.Result
}

// ReportAuthor writes a report from gathered evidence. llm.ReportAuthor
// satisfies it.
type ReportAuthor interface {
	Configured() bool
	WriteReport(ctx context.Context, brief llm.ReportBrief) (string, error)
}

// Outcome is everything a caller gets back from Run. Report is always set.
type Outcome struct {
	RunID        string           `json:"run_id"`
	Complete     bool             `json:"research_complete"`
	Report       string           `json:"final_report"`
	Context      Snapshot         `json:"context"`
	Iterations   int              `json:"iterations"`
	QualityScore float64          `json:"quality_score"`
	Validation   *citation.Result `json:"validation_results,omitempty"`
	StopReason   StopReason       `json:"stop_reason"`
	AIAuthored   bool             `json:"ai_authored"`
}
