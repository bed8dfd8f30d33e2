package httpapi

import (
	"strings"

	"github.com/scriptoria/deepresearch/internal/research"
)

func progressEventData(progress research.Progress) map[string]any {
	event := map[string]any{
		"type":    "progress",
		"phase":   progress.Phase,
		"sources": progress.Sources,
		"quality": progress.Quality,
	}

	if message := strings.TrimSpace(progress.Message); message != "" {
		event["message"] = message
	}
	if progress.Iteration > 0 {
		event["iteration"] = progress.Iteration
	}
	if progress.MaxIterations > 0 {
		event["maxIterations"] = progress.MaxIterations
	}
	if action := strings.TrimSpace(progress.Action); action != "" {
		event["action"] = action
	}

	if title := strings.TrimSpace(progress.Title); title != "" {
		event["title"] = title
	}
	if detail := strings.TrimSpace(progress.Detail); detail != "" {
		event["detail"] = detail
	}

	return event
}
