package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/citation"
	"github.com/scriptoria/deepresearch/internal/metrics"
)

const validationStep = 0.1

var errNothingToValidate = errors.New("no sources to validate")

// validationDigest renders the current context as the text a validation
// pass judges: a summary, the key themes, and every source.
func validationDigest(rc *RunContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research on %s\n\n## Summary\n%s\n\n", rc.goal.topic, rc.goal.mandate)

	if len(rc.insights.KeyThemes) > 0 {
		b.WriteString("## Key Themes\n")
		for _, theme := range sortedKeys(rc.insights.KeyThemes) {
			fmt.Fprintf(&b, "- %s: %d sources\n", theme, rc.insights.KeyThemes[theme])
		}
	}

	b.WriteString("\n## Sources\n")
	for i, s := range rc.sources {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, s.Title, s.URL)
	}
	return b.String()
}

func citationSources(sources []Source) []citation.Source {
	out := make([]citation.Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, citation.Source{Title: s.Title, URL: s.URL})
	}
	return out
}

// validationPass checks the current digest, records the result and moves
// quality by a bounded step. A check that cannot run counts as a failed
// pass and is recorded as such. Without sources there is nothing to check:
// the pass is skipped and leaves the context untouched.
func (o *Orchestrator) validationPass(ctx context.Context, rc *RunContext) (citation.Result, error) {
	if len(rc.sources) == 0 {
		return citation.Result{}, errNothingToValidate
	}
	graphID := rc.runID
	if rc.graph != nil {
		graphID = rc.graph.ID
	}

	result, err := o.checkSafely(ctx, graphID, validationDigest(rc), citationSources(rc.sources))
	if err != nil {
		o.logger.Warn("validation pass failed",
			zap.String("run_id", rc.runID),
			zap.String("graph_id", graphID),
			zap.Error(err),
		)
		result = citation.FailedResult(graphID, err)
	}

	rc.validation = &result
	rc.validatedAt = rc.iteration
	if result.Passed {
		rc.adjustForValidation(validationStep)
	} else {
		rc.adjustForValidation(-validationStep)
	}
	rc.satisfied = evaluateCriteria(rc)
	metrics.ValidationPasses.WithLabelValues(metrics.Outcome(result.Passed)).Inc()

	status := "Failed"
	if result.Passed {
		status = "Passed"
	}
	rc.note("Updating validation results", "update_validation",
		fmt.Sprintf("Validation updated: %s (risk %.2f)", status, result.HallucinationRisk))
	return result, err
}

func (o *Orchestrator) checkSafely(ctx context.Context, graphID, content string, sources []citation.Source) (result citation.Result, err error) {
	if o.validator == nil {
		return citation.Result{}, errValidatorMissing
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("validation panicked: %v", recovered)
		}
	}()
	return o.validator.Check(ctx, graphID, content, sources)
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
