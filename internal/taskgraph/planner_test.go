package taskgraph

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := NewPlanner()
	require.NoError(t, err)
	return p
}

func taskIDs(tasks []*Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestCreatePlanFillsTemplate(t *testing.T) {
	g, err := newPlanner(t).CreatePlan("Genesis 1 creation narrative", ModeBiblicalExegesis)
	require.NoError(t, err)

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, GraphPlanning, g.Status)
	assert.Equal(t, ModeBiblicalExegesis, g.Mode)
	require.Len(t, g.Tasks, 8)

	primary := g.Task("SEARCH_PRIMARY")
	require.NotNil(t, primary)
	assert.Equal(t, "web_search", primary.Tool)
	assert.Equal(t, "Genesis 1 creation narrative scholarly exegesis", primary.StringArg("query", ""))
	assert.Equal(t, 5, primary.IntArg("max_results", 0))
	assert.Equal(t, "Genesis_1_creation_narrative.md", g.Task("FINAL_REPORT").StringArg("filename", ""))

	for _, task := range g.Tasks {
		assert.Equal(t, StatusPending, task.Status)
		assert.False(t, task.CreatedAt.IsZero())
	}
}

func TestCreatePlanUnknownModeFallsBack(t *testing.T) {
	g, err := newPlanner(t).CreatePlan("Romans 8", "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, ModeBiblicalExegesis, g.Mode)
}

func TestCreatePlanGivesFreshGraphs(t *testing.T) {
	p := newPlanner(t)
	a, err := p.CreatePlan("Ruth", ModeGeneric)
	require.NoError(t, err)
	b, err := p.CreatePlan("Ruth", ModeGeneric)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	a.Tasks[0].Args["query"] = "changed"
	assert.Equal(t, "Ruth", b.Tasks[0].StringArg("query", ""))

	_, err = p.CreatePlan("  ", ModeGeneric)
	require.Error(t, err)
}

func TestReadyTasksFollowDependencies(t *testing.T) {
	g, err := newPlanner(t).CreatePlan("Exodus 3", ModeBiblicalExegesis)
	require.NoError(t, err)
	now := time.Now()

	assert.Equal(t, []string{"SEARCH_PRIMARY"}, taskIDs(ReadyTasks(g)))

	primary := g.Task("SEARCH_PRIMARY")
	require.NoError(t, g.Start(primary, now))
	assert.Equal(t, GraphExecuting, g.Status)
	assert.Empty(t, ReadyTasks(g))
	require.Error(t, g.Start(primary, now))

	g.Complete(primary, []string{"result"}, now)
	assert.Equal(t, []string{"SEARCH_SECONDARY", "PODCAST_SEARCH"}, taskIDs(ReadyTasks(g)))

	secondary := g.Task("SEARCH_SECONDARY")
	require.NoError(t, g.Start(secondary, now))
	g.Fail(secondary, "boom", now)
	assert.Equal(t, GraphFailed, g.Status)
	assert.Equal(t, "boom", secondary.Error)

	// FETCH_SOURCES needs SEARCH_SECONDARY, which failed, so it never becomes ready.
	podcasts := g.Task("PODCAST_SEARCH")
	require.NoError(t, g.Start(podcasts, now))
	g.Complete(podcasts, nil, now)
	assert.Empty(t, ReadyTasks(g))
}

func TestGraphCompletesWhenEveryTaskCompletes(t *testing.T) {
	g, err := newPlanner(t).CreatePlan("Psalm 23", ModeGeneric)
	require.NoError(t, err)
	now := time.Now()

	for ready := ReadyTasks(g); len(ready) > 0; ready = ReadyTasks(g) {
		require.NoError(t, g.Start(ready[0], now))
		g.Complete(ready[0], "ok", now)
	}
	assert.Equal(t, GraphCompleted, g.Status)
	assert.Equal(t, len(g.Tasks), g.Count(StatusCompleted))
}

func TestSaveAndLoad(t *testing.T) {
	g, err := newPlanner(t).CreatePlan("Isaiah 53", ModeBiblicalExegesis)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, g.Start(g.Tasks[0], now))
	g.Complete(g.Tasks[0], map[string]any{"count": 2}, now)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, Save(g, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, g.ID, loaded.ID)
	assert.Equal(t, taskIDs(g.Tasks), taskIDs(loaded.Tasks))
	assert.Equal(t, StatusCompleted, loaded.Tasks[0].Status)
	assert.Equal(t, 5, loaded.Tasks[0].IntArg("max_results", 0))
	assert.Equal(t, []string{"SEARCH_SECONDARY", "PODCAST_SEARCH"}, taskIDs(ReadyTasks(loaded)))
}

func TestNewPlannerFromYAMLRejectsBadTemplates(t *testing.T) {
	tests := map[string]string{
		"missing default mode": "generic:\n  - id: A\n    tool: web_search\n",
		"forward dependency":   "biblical_exegesis:\n  - id: A\n    tool: x\n    depends_on: [B]\n  - id: B\n    tool: y\n",
		"duplicate id":         "biblical_exegesis:\n  - id: A\n    tool: x\n  - id: A\n    tool: y\n",
		"empty":                "biblical_exegesis: []\n",
		"not yaml":             "::::",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPlannerFromYAML([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestModesAreSorted(t *testing.T) {
	assert.Equal(t, []string{ModeBiblicalExegesis, ModeGeneric}, newPlanner(t).Modes())
}
