package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scriptoria/deepresearch/internal/brave"
	"github.com/scriptoria/deepresearch/internal/notes"
)

type HealthStatus string

const (
	HealthHealthy      HealthStatus = "healthy"
	HealthDegraded     HealthStatus = "degraded"
	HealthUnhealthy    HealthStatus = "unhealthy"
	HealthUnconfigured HealthStatus = "unconfigured"
)

const defaultCheckTimeout = 10 * time.Second

// severity orders statuses for the overall rollup. Unconfigured services
// degrade the whole but do not make it unhealthy.
func (s HealthStatus) severity() int {
	switch s {
	case HealthHealthy:
		return 0
	case HealthDegraded, HealthUnconfigured:
		return 1
	default:
		return 2
	}
}

type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

type HealthReport struct {
	Timestamp     time.Time              `json:"timestamp"`
	OverallStatus HealthStatus           `json:"overall_status"`
	Services      map[string]CheckResult `json:"services"`
}

type HealthCheck struct {
	checkers []Checker
	timeout  time.Duration
	now      func() time.Time
}

func NewHealthCheck(checkers ...Checker) *HealthCheck {
	return &HealthCheck{checkers: checkers, timeout: defaultCheckTimeout, now: time.Now}
}

func (t *HealthCheck) Name() string { return NameHealthCheck }

func (t *HealthCheck) Spec() mcp.Tool {
	return mcp.NewTool(NameHealthCheck,
		mcp.WithDescription("Check the health status of all tools and services"),
	)
}

// Run probes every checker in order and rolls the results up to the worst
// status.
func (t *HealthCheck) Run(ctx context.Context) HealthReport {
	report := HealthReport{
		Timestamp:     t.now().UTC(),
		OverallStatus: HealthHealthy,
		Services:      make(map[string]CheckResult, len(t.checkers)),
	}
	for _, checker := range t.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, t.timeout)
		started := time.Now()
		result := checker.Check(checkCtx)
		cancel()
		result.Duration = time.Since(started)

		report.Services[checker.Name()] = result
		if result.Status.severity() > report.OverallStatus.severity() {
			report.OverallStatus = HealthDegraded
			if result.Status.severity() == 2 {
				report.OverallStatus = HealthUnhealthy
			}
		}
	}
	return report
}

func (t *HealthCheck) Invoke(ctx context.Context, _ Args) Result {
	report := t.Run(ctx)
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return failure(NameHealthCheck, KindUnexpected, "Unexpected health check error: "+err.Error())
	}
	return Result{Tool: NameHealthCheck, OK: true, Message: string(encoded), Data: report}
}

// SearchChecker runs a one-result live query against the search provider.
type SearchChecker struct {
	searcher Searcher
}

func NewSearchChecker(searcher Searcher) *SearchChecker {
	return &SearchChecker{searcher: searcher}
}

func (c *SearchChecker) Name() string { return "brave_search" }

func (c *SearchChecker) Check(ctx context.Context) CheckResult {
	if c.searcher == nil || !c.searcher.Configured() {
		return CheckResult{Status: HealthUnconfigured, Message: "BRAVE_API_KEY is not set"}
	}
	_, err := c.searcher.Search(ctx, "test", 1)
	if err == nil {
		return CheckResult{Status: HealthHealthy, Message: "search responded"}
	}
	var apiErr brave.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return CheckResult{Status: HealthDegraded, Message: "search is rate limited", Error: err.Error()}
	}
	return CheckResult{Status: HealthUnhealthy, Message: "search request failed", Error: err.Error()}
}

// StorageChecker writes and removes a probe note.
type StorageChecker struct {
	store notes.Store
}

func NewStorageChecker(store notes.Store) *StorageChecker {
	return &StorageChecker{store: store}
}

func (c *StorageChecker) Name() string { return "storage" }

func (c *StorageChecker) Check(ctx context.Context) CheckResult {
	if c.store == nil {
		return CheckResult{Status: HealthUnconfigured, Message: "no note storage configured"}
	}
	if err := c.store.Probe(ctx); err != nil {
		return CheckResult{Status: HealthUnhealthy, Message: c.store.Backend() + " storage probe failed", Error: err.Error()}
	}
	return CheckResult{Status: HealthHealthy, Message: c.store.Backend() + " storage writable"}
}

// PingChecker adapts any ping function, such as a redis or sql ping.
// Optional dependencies report degraded rather than unhealthy on failure.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

func NewPingChecker(name string, optional bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: optional}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{Status: HealthUnconfigured}
	}
	if err := c.ping(ctx); err != nil {
		status := HealthUnhealthy
		if c.optional {
			status = HealthDegraded
		}
		return CheckResult{Status: status, Message: c.name + " ping failed", Error: err.Error()}
	}
	return CheckResult{Status: HealthHealthy, Message: c.name + " reachable"}
}
