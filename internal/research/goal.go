package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Criterion string

const (
	CriterionSufficientSources    Criterion = "sufficient_sources_found"
	CriterionMultiplePerspectives Criterion = "multiple_perspectives_represented"
	CriterionKeyThemesIdentified  Criterion = "key_themes_identified"
	CriterionQualityScoreMet      Criterion = "quality_score_met"
	CriterionCitationsValidated   Criterion = "citations_validated"
)

const (
	defaultQualityThreshold = 0.6
	defaultMinSources       = 5
	defaultMaxSources       = 15
)

var (
	defaultPerspectives = []string{"evangelical", "progressive", "orthodox", "academic"}
	defaultCriteria     = []Criterion{
		CriterionSufficientSources,
		CriterionMultiplePerspectives,
		CriterionKeyThemesIdentified,
		CriterionQualityScoreMet,
		CriterionCitationsValidated,
	}
	knownCriteria = map[Criterion]bool{
		CriterionSufficientSources:    true,
		CriterionMultiplePerspectives: true,
		CriterionKeyThemesIdentified:  true,
		CriterionQualityScoreMet:      true,
		CriterionCitationsValidated:   true,
	}
)

var ErrEmptyTopic = errors.New("research topic is required")

// Goal is the immutable intent of one research run. Build it with NewGoal;
// accessors hand out copies so a Goal cannot change after construction.
type Goal struct {
	topic            string
	mandate          string
	qualityThreshold float64
	minSources       int
	maxSources       int
	perspectives     []string
	criteria         []Criterion
	validation       bool
}

type GoalOption func(*Goal)

func WithQualityThreshold(threshold float64) GoalOption {
	return func(g *Goal) { g.qualityThreshold = threshold }
}

func WithSourceBounds(minSources, maxSources int) GoalOption {
	return func(g *Goal) {
		g.minSources = minSources
		g.maxSources = maxSources
	}
}

func WithPerspectives(perspectives ...string) GoalOption {
	return func(g *Goal) { g.perspectives = perspectives }
}

func WithCriteria(criteria ...Criterion) GoalOption {
	return func(g *Goal) { g.criteria = criteria }
}

func WithValidation(enabled bool) GoalOption {
	return func(g *Goal) { g.validation = enabled }
}

// NewGoal fills every default exactly once. Unset perspectives and criteria
// get per-instance copies of the default lists.
func NewGoal(topic, mandate string, opts ...GoalOption) (Goal, error) {
	g := Goal{
		topic:            strings.TrimSpace(topic),
		mandate:          strings.TrimSpace(mandate),
		qualityThreshold: defaultQualityThreshold,
		minSources:       defaultMinSources,
		maxSources:       defaultMaxSources,
		validation:       true,
	}
	for _, opt := range opts {
		opt(&g)
	}

	if g.topic == "" {
		return Goal{}, ErrEmptyTopic
	}
	if g.qualityThreshold < 0 || g.qualityThreshold > 1 {
		return Goal{}, fmt.Errorf("quality threshold %.2f is outside [0, 1]", g.qualityThreshold)
	}
	if g.minSources < 1 {
		return Goal{}, fmt.Errorf("min sources must be >= 1, got %d", g.minSources)
	}
	if g.maxSources < g.minSources {
		return Goal{}, fmt.Errorf("max sources %d is below min sources %d", g.maxSources, g.minSources)
	}

	g.perspectives = normalizePerspectives(g.perspectives)
	if len(g.perspectives) == 0 {
		g.perspectives = append([]string(nil), defaultPerspectives...)
	}

	criteria, err := normalizeCriteria(g.criteria)
	if err != nil {
		return Goal{}, err
	}
	if len(criteria) == 0 {
		criteria = append([]Criterion(nil), defaultCriteria...)
	}
	g.criteria = criteria
	return g, nil
}

func (g Goal) Topic() string             { return g.topic }
func (g Goal) Mandate() string           { return g.mandate }
func (g Goal) QualityThreshold() float64 { return g.qualityThreshold }
func (g Goal) MinSources() int           { return g.minSources }
func (g Goal) MaxSources() int           { return g.maxSources }
func (g Goal) ValidationEnabled() bool   { return g.validation }

func (g Goal) Perspectives() []string {
	return append([]string(nil), g.perspectives...)
}

func (g Goal) Criteria() []Criterion {
	return append([]Criterion(nil), g.criteria...)
}

type goalJSON struct {
	Topic                string      `json:"topic"`
	ResearchMandate      string      `json:"research_mandate"`
	QualityThreshold     float64     `json:"quality_threshold"`
	MinSources           int         `json:"min_sources"`
	MaxSources           int         `json:"max_sources"`
	RequiredPerspectives []string    `json:"required_perspectives"`
	CompletionCriteria   []Criterion `json:"completion_criteria"`
	EnableValidation     bool        `json:"enable_validation"`
}

func (g Goal) MarshalJSON() ([]byte, error) {
	return json.Marshal(goalJSON{
		Topic:                g.topic,
		ResearchMandate:      g.mandate,
		QualityThreshold:     g.qualityThreshold,
		MinSources:           g.minSources,
		MaxSources:           g.maxSources,
		RequiredPerspectives: g.Perspectives(),
		CompletionCriteria:   g.Criteria(),
		EnableValidation:     g.validation,
	})
}

// GoalRequest is the wire form of a goal. Nil fields keep their defaults.
type GoalRequest struct {
	Topic                string      `json:"topic"`
	ResearchMandate      string      `json:"research_mandate"`
	QualityThreshold     *float64    `json:"quality_threshold,omitempty"`
	MinSources           *int        `json:"min_sources,omitempty"`
	MaxSources           *int        `json:"max_sources,omitempty"`
	RequiredPerspectives []string    `json:"required_perspectives,omitempty"`
	CompletionCriteria   []Criterion `json:"completion_criteria,omitempty"`
	EnableValidation     *bool       `json:"enable_validation,omitempty"`
}

func (r GoalRequest) Goal() (Goal, error) {
	var opts []GoalOption
	if r.QualityThreshold != nil {
		opts = append(opts, WithQualityThreshold(*r.QualityThreshold))
	}
	if r.MinSources != nil || r.MaxSources != nil {
		minSources, maxSources := defaultMinSources, defaultMaxSources
		if r.MinSources != nil {
			minSources = *r.MinSources
		}
		if r.MaxSources != nil {
			maxSources = *r.MaxSources
		} else {
			maxSources = max(defaultMaxSources, minSources)
		}
		opts = append(opts, WithSourceBounds(minSources, maxSources))
	}
	if len(r.RequiredPerspectives) > 0 {
		opts = append(opts, WithPerspectives(r.RequiredPerspectives...))
	}
	if len(r.CompletionCriteria) > 0 {
		opts = append(opts, WithCriteria(r.CompletionCriteria...))
	}
	if r.EnableValidation != nil {
		opts = append(opts, WithValidation(*r.EnableValidation))
	}
	return NewGoal(r.Topic, r.ResearchMandate, opts...)
}

func normalizePerspectives(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func normalizeCriteria(raw []Criterion) ([]Criterion, error) {
	out := make([]Criterion, 0, len(raw))
	seen := make(map[Criterion]bool, len(raw))
	for _, c := range raw {
		c = Criterion(strings.TrimSpace(string(c)))
		if c == "" || seen[c] {
			continue
		}
		if !knownCriteria[c] {
			return nil, fmt.Errorf("unknown completion criterion: %s", c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
