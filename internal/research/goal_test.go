package research

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoalFillsDefaults(t *testing.T) {
	goal, err := NewGoal("  Genesis 1  ", " Analyse ")
	require.NoError(t, err)

	assert.Equal(t, "Genesis 1", goal.Topic())
	assert.Equal(t, "Analyse", goal.Mandate())
	assert.Equal(t, 0.6, goal.QualityThreshold())
	assert.Equal(t, 5, goal.MinSources())
	assert.Equal(t, 15, goal.MaxSources())
	assert.True(t, goal.ValidationEnabled())
	assert.Equal(t, []string{"evangelical", "progressive", "orthodox", "academic"}, goal.Perspectives())
	assert.Equal(t, defaultCriteria, goal.Criteria())
}

func TestGoalAccessorsReturnCopies(t *testing.T) {
	goal, err := NewGoal("Genesis 1", "")
	require.NoError(t, err)

	perspectives := goal.Perspectives()
	perspectives[0] = "changed"
	criteria := goal.Criteria()
	criteria[0] = "changed"

	assert.Equal(t, "evangelical", goal.Perspectives()[0])
	assert.Equal(t, CriterionSufficientSources, goal.Criteria()[0])
	assert.Equal(t, "evangelical", defaultPerspectives[0])
}

func TestNewGoalNormalizesOptions(t *testing.T) {
	goal, err := NewGoal("Genesis 1", "",
		WithPerspectives(" Orthodox", "orthodox", "", "Academic"),
		WithCriteria(CriterionSufficientSources, CriterionSufficientSources, CriterionQualityScoreMet),
		WithSourceBounds(2, 4),
		WithQualityThreshold(0.8),
		WithValidation(false),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"orthodox", "academic"}, goal.Perspectives())
	assert.Equal(t, []Criterion{CriterionSufficientSources, CriterionQualityScoreMet}, goal.Criteria())
	assert.Equal(t, 2, goal.MinSources())
	assert.Equal(t, 4, goal.MaxSources())
	assert.Equal(t, 0.8, goal.QualityThreshold())
	assert.False(t, goal.ValidationEnabled())
}

func TestNewGoalRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		opts  []GoalOption
	}{
		{name: "empty topic", topic: "   "},
		{name: "threshold above one", topic: "x", opts: []GoalOption{WithQualityThreshold(1.2)}},
		{name: "negative threshold", topic: "x", opts: []GoalOption{WithQualityThreshold(-0.1)}},
		{name: "zero min sources", topic: "x", opts: []GoalOption{WithSourceBounds(0, 5)}},
		{name: "max below min", topic: "x", opts: []GoalOption{WithSourceBounds(6, 5)}},
		{name: "unknown criterion", topic: "x", opts: []GoalOption{WithCriteria("vibes_checked")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGoal(tt.topic, "", tt.opts...)
			assert.Error(t, err)
		})
	}

	_, err := NewGoal("", "")
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestGoalMarshalJSON(t *testing.T) {
	goal, err := NewGoal("Genesis 1", "Analyse", WithSourceBounds(3, 10))
	require.NoError(t, err)

	data, err := json.Marshal(goal)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Genesis 1", decoded["topic"])
	assert.Equal(t, "Analyse", decoded["research_mandate"])
	assert.EqualValues(t, 3, decoded["min_sources"])
	assert.Len(t, decoded["completion_criteria"], 5)
	assert.Equal(t, true, decoded["enable_validation"])
}

func TestGoalRequestKeepsDefaultsForUnsetFields(t *testing.T) {
	maxSources := 8
	goal, err := GoalRequest{Topic: "Romans 8", MaxSources: &maxSources}.Goal()
	require.NoError(t, err)
	assert.Equal(t, 5, goal.MinSources())
	assert.Equal(t, 8, goal.MaxSources())
	assert.Equal(t, 0.6, goal.QualityThreshold())
	assert.True(t, goal.ValidationEnabled())

	var req GoalRequest
	require.NoError(t, json.Unmarshal([]byte(`{"topic":"Romans 8","min_sources":3,"enable_validation":false,"completion_criteria":["quality_score_met","sufficient_sources_found"]}`), &req))
	goal, err = req.Goal()
	require.NoError(t, err)
	assert.Equal(t, 3, goal.MinSources())
	assert.Equal(t, 15, goal.MaxSources())
	assert.False(t, goal.ValidationEnabled())
	assert.Equal(t, []Criterion{CriterionQualityScoreMet, CriterionSufficientSources}, goal.Criteria())

	manySources := 20
	goal, err = GoalRequest{Topic: "Romans 8", MinSources: &manySources}.Goal()
	require.NoError(t, err)
	assert.Equal(t, 20, goal.MinSources())
	assert.Equal(t, 20, goal.MaxSources())

	_, err = GoalRequest{Topic: "Romans 8", MinSources: &manySources, MaxSources: &maxSources}.Goal()
	assert.Error(t, err)
}
