package research

const (
	minPerspectivesForDiversity = 2
	minKeyThemes                = 3
)

// evidential criteria are the ones that can only hold when the context has
// gathered something. Completion needs at least one of them.
var evidential = map[Criterion]bool{
	CriterionSufficientSources:    true,
	CriterionMultiplePerspectives: true,
	CriterionKeyThemesIdentified:  true,
}

// CompletionPolicy decides when a run has done enough. With RequireAll,
// every criterion of the goal must hold; otherwise at least MinSatisfied of
// them. Either way the quality threshold must be met and at least one
// evidential criterion must hold.
type CompletionPolicy struct {
	RequireAll   bool
	MinSatisfied int
}

func DefaultCompletionPolicy() CompletionPolicy {
	return CompletionPolicy{RequireAll: true}
}

func (p CompletionPolicy) Complete(goal Goal, satisfied map[Criterion]bool, quality float64) bool {
	criteria := goal.criteria
	met := 0
	for _, c := range criteria {
		if satisfied[c] {
			met++
		}
	}
	if p.RequireAll {
		if met < len(criteria) {
			return false
		}
	} else {
		need := p.MinSatisfied
		if need < 1 {
			need = 1
		}
		if need > len(criteria) {
			need = len(criteria)
		}
		if met < need {
			return false
		}
	}
	if quality < goal.qualityThreshold {
		return false
	}
	for c := range evidential {
		if satisfied[c] {
			return true
		}
	}
	return false
}

// evaluateCriteria recomputes every criterion from the current context.
func evaluateCriteria(c *RunContext) map[Criterion]bool {
	themes := 0
	for _, n := range c.insights.KeyThemes {
		if n > 0 {
			themes++
		}
	}
	required := min(minPerspectivesForDiversity, len(c.goal.perspectives))

	return map[Criterion]bool{
		CriterionSufficientSources:    len(c.sources) >= c.goal.minSources,
		CriterionMultiplePerspectives: len(perspectivesFound(c.goal.perspectives, c.sources)) >= required,
		CriterionKeyThemesIdentified:  themes >= minKeyThemes,
		CriterionQualityScoreMet:      c.quality >= c.goal.qualityThreshold,
		CriterionCitationsValidated:   citationsValidated(c),
	}
}

// citationsValidated holds after a passing validation pass over at least
// one source. When the goal disables validation, any source confirmed
// accessible is enough.
func citationsValidated(c *RunContext) bool {
	if len(c.sources) == 0 {
		return false
	}
	if c.goal.validation {
		return c.validation != nil && c.validation.Passed
	}
	for _, s := range c.sources {
		if s.Validation != nil && s.Validation.Accessible {
			return true
		}
	}
	return false
}

// qualityScore weighs evidentiary breadth: source count against the goal's
// minimum, perspective coverage, and whether any insight exists. Validation
// outcomes shift the result by a bounded adjustment.
func qualityScore(c *RunContext) float64 {
	sourceShare := float64(len(c.sources)) / float64(c.goal.minSources)
	if sourceShare > 1 {
		sourceShare = 1
	}
	perspectiveShare := 0.0
	if len(c.goal.perspectives) > 0 {
		perspectiveShare = float64(len(perspectivesFound(c.goal.perspectives, c.sources))) / float64(len(c.goal.perspectives))
	}
	insight := 0.0
	if !c.insights.Empty() {
		insight = 1
	}
	processed := 0
	for _, s := range c.sources {
		if s.Processed() {
			processed++
		}
	}
	processedShare := 0.0
	if len(c.sources) > 0 {
		processedShare = float64(processed) / float64(len(c.sources))
	}

	score := 0.4*sourceShare + 0.3*perspectiveShare + 0.2*insight + 0.1*processedShare
	return clampUnit(score + c.validationAdjust)
}

// refresh recomputes quality and the satisfied criteria after a mutation.
// Quality feeds the quality criterion, so it is computed first.
func refresh(c *RunContext) {
	c.setQuality(qualityScore(c))
	c.satisfied = evaluateCriteria(c)
}
