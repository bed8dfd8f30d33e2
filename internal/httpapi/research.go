package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/research"
)

type researchRequest struct {
	research.GoalRequest
	Stream bool `json:"stream"`
}

func (h Handler) Research(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	goal, err := req.Goal()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_goal", err.Error())
		return
	}

	if req.Stream {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "server does not support streaming")
			return
		}
		h.streamResearch(r.Context(), w, flusher, goal)
		return
	}

	startedAt := time.Now()
	outcome, err := h.researcher.Run(r.Context(), goal, nil)
	if err != nil && r.Context().Err() != nil {
		h.logger.Info("research request abandoned by client", zap.String("topic", goal.Topic()), zap.Error(err))
		return
	}
	if err != nil {
		h.logger.Warn("research ended early", zap.String("run_id", outcome.RunID), zap.Error(err))
	}
	h.logger.Info("research request served",
		zap.String("run_id", outcome.RunID),
		zap.String("stop_reason", string(outcome.StopReason)),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	writeJSON(w, http.StatusOK, outcome)
}

// streamResearch reports progress as server-sent events. The outcome is
// always sent, followed by an error event when the run was cut short.
func (h Handler) streamResearch(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, goal research.Goal) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_ = writeSSEEvent(w, map[string]any{"type": "metadata", "goal": goal})
	flusher.Flush()

	outcome, err := h.researcher.Run(ctx, goal, func(progress research.Progress) {
		_ = writeSSEEvent(w, progressEventData(progress))
		flusher.Flush()
	})

	_ = writeSSEEvent(w, map[string]any{"type": "report", "outcome": outcome})
	if err != nil {
		message := "research interrupted"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "research timed out"
		} else if errors.Is(err, context.Canceled) {
			message = "research request canceled"
		}
		h.logger.Warn("streamed research ended early", zap.String("run_id", outcome.RunID), zap.Error(err))
		_ = writeSSEEvent(w, map[string]any{"type": "error", "message": message})
	}
	_ = writeSSEEvent(w, map[string]any{"type": "done"})
	flusher.Flush()
}
