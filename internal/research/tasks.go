package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/fetch"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
	"github.com/scriptoria/deepresearch/internal/tools"
	"github.com/scriptoria/deepresearch/internal/validation"
)

// Task tools the orchestrator runs itself rather than through the registry.
const (
	taskValidateSources    = "validate_sources"
	taskSynthesizeResearch = "synthesize_research"
	taskHallucinationCheck = "hallucination_check"

	defaultTaskResults = 5
)

var errValidatorMissing = errors.New("citation validator is not configured")

// executeTask moves task through running to completed or failed. Errors and
// panics from the task body become a failed task, never a returned error.
func (o *Orchestrator) executeTask(ctx context.Context, rc *RunContext, task *taskgraph.Task) stepResult {
	if err := rc.graph.Start(task, o.now()); err != nil {
		return stepResult{message: err.Error()}
	}

	payload, err := o.runTaskSafely(ctx, rc, task)
	if err != nil {
		rc.graph.Fail(task, err.Error(), o.now())
		o.logger.Warn("task failed",
			zap.String("run_id", rc.runID),
			zap.String("task", task.ID),
			zap.String("tool", task.Tool),
			zap.Error(err),
		)
	} else {
		rc.graph.Complete(task, payload, o.now())
	}

	rc.note("Executing task: "+task.Tool, actionExecuteTask, fmt.Sprintf("Task completed with status: %s", task.Status))
	if err != nil {
		return stepResult{message: err.Error()}
	}
	return stepResult{ok: true, message: fmt.Sprintf("%s completed", task.ID)}
}

func (o *Orchestrator) runTaskSafely(ctx context.Context, rc *RunContext, task *taskgraph.Task) (payload any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			o.logger.Error("task panicked",
				zap.String("task", task.ID),
				zap.Any("panic", recovered),
				zap.Stack("stack"),
			)
			payload = nil
			err = fmt.Errorf("unexpected error in %s: %v", task.Tool, recovered)
		}
	}()
	return o.runTask(ctx, rc, task)
}

func (o *Orchestrator) runTask(ctx context.Context, rc *RunContext, task *taskgraph.Task) (any, error) {
	switch task.Tool {
	case tools.NameWebSearch:
		return o.searchInto(ctx, rc, tools.NameWebSearch, tools.Args{
			"query":       task.StringArg("query", rc.goal.topic),
			"max_results": task.IntArg("max_results", defaultTaskResults),
		})
	case tools.NamePodcastSearch:
		return o.searchInto(ctx, rc, tools.NamePodcastSearch, tools.Args{
			"query": task.StringArg("query", rc.goal.topic),
		})
	case tools.NameFetchContent:
		return o.fetchSources(ctx, rc, task.IntArg("limit", o.cfg.FetchLimit)), nil
	case taskValidateSources:
		return o.validateSources(ctx, rc), nil
	case taskSynthesizeResearch:
		return o.synthesizeFindings(rc), nil
	case taskHallucinationCheck:
		if o.validator == nil {
			return nil, errValidatorMissing
		}
		result, err := o.validationPass(ctx, rc)
		if err != nil {
			return nil, err
		}
		return result, nil
	case tools.NameSaveNote:
		filename := task.StringArg("filename", validation.SafeTopic(rc.goal.topic)+".md")
		res := o.dispatch(ctx, tools.NameSaveNote, tools.Args{
			"filename": filename,
			"text":     RenderReport(rc.Snapshot()),
		})
		if !res.OK {
			return nil, errors.New(res.Message)
		}
		return res.Message, nil
	default:
		return nil, fmt.Errorf("unknown task tool: %s", task.Tool)
	}
}

// searchInto runs a search tool and merges its hits into the context.
func (o *Orchestrator) searchInto(ctx context.Context, rc *RunContext, tool string, args tools.Args) (map[string]int, error) {
	res := o.dispatch(ctx, tool, args)
	if !res.OK {
		return nil, errors.New(res.Message)
	}
	found := make([]Source, 0, len(res.Sources))
	for _, hit := range res.Sources {
		found = append(found, sourceFromHit(hit))
	}
	added := rc.addSources(found)
	rc.note("Updating context with new sources", "update_context", fmt.Sprintf("Added %d new sources", added))
	return map[string]int{"found": len(found), "added": added}, nil
}

type fetchSummary struct {
	Fetched int      `json:"fetched"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// fetchSources reads up to limit unprocessed non-podcast sources in context
// order. Unreadable pages are soft failures recorded in the summary.
func (o *Orchestrator) fetchSources(ctx context.Context, rc *RunContext, limit int) fetchSummary {
	if limit < 1 {
		limit = defaultFetchLimit
	}
	summary := fetchSummary{}
	for i := range rc.sources {
		if summary.Fetched+summary.Failed >= limit {
			break
		}
		s := rc.sources[i]
		if s.Processed() || s.Provenance == tools.ProvenancePodcast {
			continue
		}
		res := o.dispatch(ctx, tools.NameFetchContent, tools.Args{"url": s.URL})
		if !res.OK {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", s.URL, res.Message))
			continue
		}
		insights := ExtractInsights(res.Message)
		rc.sources[i].Excerpt = trimToRunes(res.Message, maxExcerptRunes)
		rc.sources[i].Insights = &insights
		summary.Fetched++
	}
	rc.note("Fetching content from top sources", tools.NameFetchContent,
		fmt.Sprintf("Retrieved %d pages, %d failed", summary.Fetched, summary.Failed))
	return summary
}

type validationSummary struct {
	Validated  int `json:"validated"`
	Accessible int `json:"valid_count"`
}

// validateSources attaches an accessibility record and a credibility score
// to every source that lacks one.
func (o *Orchestrator) validateSources(ctx context.Context, rc *RunContext) validationSummary {
	summary := validationSummary{}
	for i := range rc.sources {
		if rc.sources[i].Validation != nil {
			continue
		}
		res := o.dispatch(ctx, tools.NameValidateURL, tools.Args{"url": rc.sources[i].URL})
		record := &SourceValidation{Credibility: Credibility(rc.sources[i])}
		if check, ok := res.Data.(fetch.URLCheck); ok {
			record.Accessible = check.Accessible
			record.StatusCode = check.StatusCode
			record.ContentType = check.ContentType
			record.FinalURL = check.FinalURL
			record.Error = check.Error
		} else {
			record.Error = res.Message
		}
		rc.sources[i].Validation = record
		summary.Validated++
		if record.Accessible {
			summary.Accessible++
		}
	}
	rc.note("Validating discovered sources", taskValidateSources,
		fmt.Sprintf("%d of %d sources accessible", summary.Accessible, summary.Validated))
	return summary
}

// synthesizeFindings replaces the run insights with a fresh synthesis of
// every source.
func (o *Orchestrator) synthesizeFindings(rc *RunContext) Insights {
	rc.insights = synthesize(rc.sources)
	rc.note("Updating context with new insights", "update_context", "Updated insights: "+strings.Join(insightCategories(rc.insights), ", "))
	return rc.insights
}

func insightCategories(insights Insights) []string {
	categories := make([]string, 0, 3)
	if len(insights.KeyThemes) > 0 {
		categories = append(categories, "key_themes")
	}
	if len(insights.Perspectives) > 0 {
		categories = append(categories, "theological_perspectives")
	}
	if len(insights.BiblicalReferences) > 0 {
		categories = append(categories, "biblical_references")
	}
	if len(categories) == 0 {
		categories = append(categories, "none")
	}
	sort.Strings(categories)
	return categories
}
