package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/deepresearch/internal/citation"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
)

func TestRenderReport(t *testing.T) {
	goal, err := NewGoal("Genesis 1", "Trace the creation themes")
	require.NoError(t, err)

	graph := &taskgraph.Graph{Tasks: []*taskgraph.Task{
		{ID: "A", Status: taskgraph.StatusCompleted},
		{ID: "B", Status: taskgraph.StatusFailed},
	}}
	snap := Snapshot{
		Goal:         goal,
		QualityScore: 0.756,
		TaskGraph:    graph,
		Sources: []Source{
			{Title: "Exegesis", URL: "https://a.example", Validation: &SourceValidation{Accessible: true}},
			{URL: "https://b.example"},
		},
		Insights: Insights{
			KeyThemes:          map[string]int{"historical_context": 2, "creation": 1},
			Perspectives:       map[string]int{"orthodox": 1},
			BiblicalReferences: []string{"Genesis 1:1"},
		},
		Validation: &citation.Result{
			Passed:            true,
			HallucinationRisk: 0.13,
			Citations:         []citation.Citation{{Validated: true}, {Validated: false}},
		},
		Scratchpad: []ScratchEntry{{Step: 1, Thought: "Deciding", Action: "execute_task", Result: "Selected task: web_search for Genesis 1"}},
	}

	report := RenderReport(snap)
	assert.True(t, strings.HasPrefix(report, "# Enhanced Research Report: Genesis 1\n\n**Research Mandate**: Trace the creation themes\n\n"))
	assert.Contains(t, report, "**Quality Score**: 0.76\n")
	assert.Contains(t, report, "**Sources Found**: 2\n")
	assert.Contains(t, report, "**Task Graph**: 1 of 2 tasks completed\n")
	assert.Contains(t, report, "**Validation**: ✅ Passed\n")
	assert.Contains(t, report, "## Key Insights\n- **Creation**: 1 sources\n- **Historical Context**: 2 sources\n")
	assert.Contains(t, report, "- **Orthodox**: 1 sources\n")
	assert.Contains(t, report, "## Biblical References\nGenesis 1:1\n")
	assert.Contains(t, report, "## Sources\n1. [Exegesis](https://a.example) ✅\n2. [Untitled](https://b.example) ❌\n")
	assert.Contains(t, report, "## Validation Results\n- **Hallucination Risk**: 0.13\n- **Citations Validated**: 1\n")
	assert.Contains(t, report, "1. **Deciding**\n   - Action: execute_task\n   - Result: Selected task: web_search for Genesis 1\n")
}

func TestRenderReportForEmptyRun(t *testing.T) {
	goal, err := NewGoal("Genesis 1", "")
	require.NoError(t, err)

	report := RenderReport(Snapshot{Goal: goal})
	assert.Contains(t, report, "**Quality Score**: 0.00")
	assert.Contains(t, report, "**Sources Found**: 0")
	assert.Contains(t, report, "## Sources\n")
	assert.NotContains(t, report, "**Validation**")
	assert.NotContains(t, report, "## Key Insights")
	assert.NotContains(t, report, "## Agent Reasoning")
}

func TestRenderReportFlagsFailedValidation(t *testing.T) {
	goal, err := NewGoal("Genesis 1", "")
	require.NoError(t, err)

	report := RenderReport(Snapshot{Goal: goal, Validation: &citation.Result{HallucinationRisk: 0.5}})
	assert.Contains(t, report, "**Validation**: ⚠️ Issues Found")
	assert.Contains(t, report, "- **Hallucination Risk**: 0.50")
}

func TestApplyPodcastBanner(t *testing.T) {
	report := "# Title\nBody"
	assert.Equal(t, report, ApplyPodcastBanner(report, 0))
	assert.Equal(t, "# Title\n\n> 🎧 This report draws on 2 biblical podcast episodes.\nBody", ApplyPodcastBanner(report, 2))

	noHeading := "Plain body"
	assert.Equal(t, "> 🎧 This report draws on 1 biblical podcast episode.\nPlain body", ApplyPodcastBanner(noHeading, 1))

	headingOnly := "# Title"
	assert.Equal(t, "# Title\n\n> 🎧 This report draws on 1 biblical podcast episode.\n", ApplyPodcastBanner(headingOnly, 1))
}
