package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/scriptoria/deepresearch/internal/llm"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
)

var titleCaser = cases.Title(language.English)

// RenderReport assembles the markdown report from a snapshot. It makes no
// calls and always produces text, even for an empty run.
func RenderReport(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Enhanced Research Report: %s\n\n", s.Goal.topic)
	fmt.Fprintf(&b, "**Research Mandate**: %s\n\n", s.Goal.mandate)
	fmt.Fprintf(&b, "**Quality Score**: %.2f\n\n", s.QualityScore)
	fmt.Fprintf(&b, "**Sources Found**: %d\n\n", len(s.Sources))
	if s.TaskGraph != nil {
		fmt.Fprintf(&b, "**Task Graph**: %d of %d tasks completed\n\n",
			s.TaskGraph.Count(taskgraph.StatusCompleted), len(s.TaskGraph.Tasks))
	}
	if s.Validation != nil {
		status := "⚠️ Issues Found"
		if s.Validation.Passed {
			status = "✅ Passed"
		}
		fmt.Fprintf(&b, "**Validation**: %s\n\n", status)
	}

	if len(s.Insights.KeyThemes) > 0 {
		b.WriteString("## Key Insights\n")
		for _, theme := range sortedKeys(s.Insights.KeyThemes) {
			fmt.Fprintf(&b, "- **%s**: %d sources\n", humanize(theme), s.Insights.KeyThemes[theme])
		}
	}
	if len(s.Insights.Perspectives) > 0 {
		b.WriteString("\n## Perspectives\n")
		for _, perspective := range sortedKeys(s.Insights.Perspectives) {
			fmt.Fprintf(&b, "- **%s**: %d sources\n", humanize(perspective), s.Insights.Perspectives[perspective])
		}
	}
	if refs := s.Insights.BiblicalReferences; len(refs) > 0 {
		fmt.Fprintf(&b, "\n## Biblical References\n%s\n", strings.Join(refs, ", "))
	}

	b.WriteString("\n## Sources\n")
	for i, src := range s.Sources {
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		mark := "❌"
		if src.Validation != nil && src.Validation.Accessible {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%d. [%s](%s) %s\n", i+1, title, src.URL, mark)
	}

	if s.Validation != nil {
		b.WriteString("\n## Validation Results\n")
		fmt.Fprintf(&b, "- **Hallucination Risk**: %.2f\n", s.Validation.HallucinationRisk)
		fmt.Fprintf(&b, "- **Citations Validated**: %d\n", s.Validation.ValidatedCitations())
	}

	if len(s.Scratchpad) > 0 {
		b.WriteString("\n## Agent Reasoning (Scratchpad)\n")
		for _, entry := range s.Scratchpad {
			fmt.Fprintf(&b, "%d. **%s**\n   - Action: %s\n   - Result: %s\n", entry.Step, entry.Thought, entry.Action, entry.Result)
		}
	}
	return b.String()
}

// ApplyPodcastBanner notes podcast coverage right after the first heading
// line. Reports without podcast evidence pass through unchanged.
func ApplyPodcastBanner(report string, episodes int) string {
	if episodes < 1 {
		return report
	}
	banner := fmt.Sprintf("\n> 🎧 This report draws on %d biblical podcast %s.\n", episodes, plural(episodes, "episode", "episodes"))

	lines := strings.SplitAfter(report, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			if !strings.HasSuffix(line, "\n") {
				lines[i] = line + "\n"
			}
			head := strings.Join(lines[:i+1], "")
			return head + banner + strings.Join(lines[i+1:], "")
		}
	}
	return strings.TrimLeft(banner, "\n") + report
}

// writeReport prefers an AI-authored report when an author is configured
// and falls back to local rendering on any failure.
func (o *Orchestrator) writeReport(ctx context.Context, rc *RunContext, mode string) (string, bool) {
	if o.author != nil && o.author.Configured() && ctx.Err() == nil {
		text, err := o.author.WriteReport(ctx, reportBrief(rc))
		if err == nil && strings.TrimSpace(text) != "" {
			if mode == taskgraph.ModeBiblicalExegesis {
				text = ApplyPodcastBanner(text, rc.podcastSources())
			}
			return text, true
		}
		o.logger.Warn("AI report unavailable, rendering locally", zap.String("run_id", rc.runID), zap.Error(err))
	}
	return RenderReport(rc.Snapshot()), false
}

func reportBrief(rc *RunContext) llm.ReportBrief {
	sources := make([]llm.BriefSource, 0, len(rc.sources))
	for _, s := range rc.sources {
		description := s.Description
		if description == "" {
			description = s.Excerpt
		}
		sources = append(sources, llm.BriefSource{
			Title:       s.Title,
			URL:         s.URL,
			Description: description,
			Provenance:  s.Provenance,
		})
	}

	insights := make(map[string]string)
	if len(rc.insights.KeyThemes) > 0 {
		insights["key_themes"] = formatCounts(rc.insights.KeyThemes)
	}
	if len(rc.insights.Perspectives) > 0 {
		insights["perspectives"] = formatCounts(rc.insights.Perspectives)
	}
	if len(rc.insights.BiblicalReferences) > 0 {
		insights["biblical_references"] = strings.Join(rc.insights.BiblicalReferences, ", ")
	}
	return llm.ReportBrief{
		Topic:    rc.goal.topic,
		Mandate:  rc.goal.mandate,
		Sources:  sources,
		Insights: insights,
	}
}

func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s (%d)", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func humanize(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
