package research

import "strings"

type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseIterating    Phase = "iterating"
	PhaseValidating   Phase = "validating"
	PhaseTerminating  Phase = "terminating"
	PhaseReporting    Phase = "reporting"
)

type Progress struct {
	Phase         Phase   `json:"phase"`
	Message       string  `json:"message,omitempty"`
	Title         string  `json:"title,omitempty"`
	Detail        string  `json:"detail,omitempty"`
	Action        string  `json:"action,omitempty"`
	Iteration     int     `json:"iteration,omitempty"`
	MaxIterations int     `json:"maxIterations,omitempty"`
	Sources       int     `json:"sources"`
	Quality       float64 `json:"quality"`
}

// BuildProgressSummary fills the human-facing title and detail for an
// event from its phase and action.
func BuildProgressSummary(progress Progress) Progress {
	switch progress.Phase {
	case PhaseInitializing:
		progress.Title = "Planning the investigation"
		progress.Detail = "Building the task graph for this topic"
	case PhaseIterating:
		progress.Title, progress.Detail = iterationSummary(progress.Action)
	case PhaseValidating:
		progress.Title = "Checking citations"
		progress.Detail = "Looking for claims the sources do not support"
	case PhaseTerminating:
		progress.Title = "Wrapping up"
		progress.Detail = "Running the final validation pass"
	case PhaseReporting:
		progress.Title = "Writing the report"
	}
	if progress.Title == "" {
		progress.Title = strings.TrimSpace(progress.Message)
	}
	if progress.Title == "" {
		progress.Title = "Researching"
	}
	return progress
}

func iterationSummary(action string) (string, string) {
	switch action {
	case "web_search", actionBroadSearch:
		return "Searching the web", "Looking for scholarly sources"
	case "podcast_search":
		return "Searching podcasts", ""
	case "fetch_content":
		return "Reading selected sources", "Extracting references and themes"
	case "validate_sources":
		return "Checking source links", ""
	case "synthesize_research", actionSynthesize:
		return "Synthesizing findings", ""
	case "hallucination_check":
		return "Checking citations", ""
	case "save_note":
		return "Saving the report", ""
	default:
		return "", ""
	}
}

func emitProgress(onProgress func(Progress), progress Progress) {
	if onProgress == nil {
		return
	}
	onProgress(BuildProgressSummary(progress))
}
