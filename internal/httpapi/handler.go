package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/config"
	"github.com/scriptoria/deepresearch/internal/research"
	"github.com/scriptoria/deepresearch/internal/tools"
)

// Researcher runs one goal to completion. research.Orchestrator satisfies it.
type Researcher interface {
	Run(ctx context.Context, goal research.Goal, onProgress func(research.Progress)) (research.Outcome, error)
}

// ToolRegistry is the part of tools.Registry the API exposes.
type ToolRegistry interface {
	Specs() []mcp.Tool
	Tool(name string) (tools.Tool, bool)
	Dispatch(ctx context.Context, name string, args tools.Args) tools.Result
}

type HealthReporter interface {
	Run(ctx context.Context) tools.HealthReport
}

type Handler struct {
	cfg        config.Config
	registry   ToolRegistry
	health     HealthReporter
	researcher Researcher
	logger     *zap.Logger
}

func NewHandler(cfg config.Config, registry ToolRegistry, health HealthReporter, researcher Researcher, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Handler{cfg: cfg, registry: registry, health: health, researcher: researcher, logger: logger}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health probes every dependency. Degraded and unconfigured services still
// answer 200; only an unhealthy rollup is a 503.
func (h Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Run(r.Context())
	status := http.StatusOK
	if report.OverallStatus == tools.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h Handler) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.registry.Specs()})
}

func (h Handler) InvokeTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.registry.Tool(name); !ok {
		writeError(w, http.StatusNotFound, "tool_not_found", "unknown tool: "+name)
		return
	}

	args := tools.Args{}
	if err := decodeJSON(w, r, &args); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result := h.registry.Dispatch(r.Context(), name, args)
	writeJSON(w, toolStatus(result), result)
}

func toolStatus(result tools.Result) int {
	if result.OK {
		return http.StatusOK
	}
	switch result.Kind {
	case tools.KindValidation:
		return http.StatusBadRequest
	case tools.KindConfiguration:
		return http.StatusServiceUnavailable
	case tools.KindTransient:
		return http.StatusBadGateway
	case tools.KindContent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
