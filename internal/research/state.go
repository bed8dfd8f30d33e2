package research

import (
	"math"
	"sort"

	"github.com/scriptoria/deepresearch/internal/citation"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
	"github.com/scriptoria/deepresearch/internal/tools"
)

const (
	focusInitialDiscovery = "initial_discovery"
	defaultMaxSameAction  = 3
	maxValidationAdjust   = 0.3
)

type Insights struct {
	KeyThemes          map[string]int `json:"key_themes,omitempty"`
	Perspectives       map[string]int `json:"theological_perspectives,omitempty"`
	BiblicalReferences []string       `json:"biblical_references,omitempty"`
	ContentAnalyzed    int            `json:"content_analyzed"`
}

// Empty reports whether no insight category holds a value.
func (i Insights) Empty() bool {
	return len(i.KeyThemes) == 0 && len(i.Perspectives) == 0 && len(i.BiblicalReferences) == 0
}

func (i Insights) equal(other Insights) bool {
	if i.ContentAnalyzed != other.ContentAnalyzed || len(i.BiblicalReferences) != len(other.BiblicalReferences) {
		return false
	}
	for idx := range i.BiblicalReferences {
		if i.BiblicalReferences[idx] != other.BiblicalReferences[idx] {
			return false
		}
	}
	return equalCounts(i.KeyThemes, other.KeyThemes) && equalCounts(i.Perspectives, other.Perspectives)
}

func equalCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

type ScratchEntry struct {
	Step    int    `json:"step"`
	Thought string `json:"thought"`
	Action  string `json:"action"`
	Result  string `json:"result"`
}

// actionHistory keeps the last few action signatures in a fixed ring and
// blocks a signature once it fills the ring without the context growing.
type actionHistory struct {
	sigs    []string
	grew    []bool
	next    int
	size    int
	blocked map[string]bool
}

func newActionHistory(capacity int) *actionHistory {
	if capacity < 1 {
		capacity = defaultMaxSameAction
	}
	return &actionHistory{
		sigs:    make([]string, capacity),
		grew:    make([]bool, capacity),
		blocked: make(map[string]bool),
	}
}

func (h *actionHistory) record(sig string, grew bool) {
	h.sigs[h.next] = sig
	h.grew[h.next] = grew
	h.next = (h.next + 1) % len(h.sigs)
	if h.size < len(h.sigs) {
		h.size++
	}
	if h.size < len(h.sigs) {
		return
	}
	for i := range h.sigs {
		if h.sigs[i] != sig || h.grew[i] {
			return
		}
	}
	h.blocked[sig] = true
}

func (h *actionHistory) allowed(sig string) bool {
	return !h.blocked[sig]
}

// recent returns the ring contents oldest first.
func (h *actionHistory) recent() []string {
	out := make([]string, 0, h.size)
	start := (h.next - h.size + len(h.sigs)) % len(h.sigs)
	for i := 0; i < h.size; i++ {
		out = append(out, h.sigs[(start+i)%len(h.sigs)])
	}
	return out
}

func (h *actionHistory) blockedSignatures() []string {
	out := make([]string, 0, len(h.blocked))
	for sig := range h.blocked {
		out = append(out, sig)
	}
	sort.Strings(out)
	return out
}

// RunContext is the mutable state of one research run. Only the
// orchestrator's step functions mutate it and it is never shared.
type RunContext struct {
	goal             Goal
	runID            string
	sources          []Source
	index            map[string]int
	insights         Insights
	quality          float64
	validationAdjust float64
	focus            string
	satisfied        map[Criterion]bool
	failedAttempts   int
	history          *actionHistory
	graph            *taskgraph.Graph
	validation       *citation.Result
	scratchpad       []ScratchEntry
	iteration        int
	// validatedAt is the iteration of the last validation pass, -1 before
	// the first.
	validatedAt int
}

func newRunContext(goal Goal, runID string, maxSameAction int) *RunContext {
	return &RunContext{
		goal:        goal,
		runID:       runID,
		index:       make(map[string]int),
		focus:       focusInitialDiscovery,
		satisfied:   make(map[Criterion]bool),
		history:     newActionHistory(maxSameAction),
		validatedAt: -1,
	}
}

// addSources appends sources not already present by url, stopping at the
// goal's max. Known urls are merged in place. Returns how many were new.
func (c *RunContext) addSources(incoming []Source) int {
	added := 0
	for _, s := range incoming {
		if !usable(s) {
			continue
		}
		key := sourceKey(s.URL)
		if idx, ok := c.index[key]; ok {
			c.sources[idx] = mergeSource(c.sources[idx], s)
			continue
		}
		if len(c.sources) >= c.goal.maxSources {
			continue
		}
		if s.Provenance == "" {
			s.Provenance = tools.ProvenanceWeb
		}
		c.index[key] = len(c.sources)
		c.sources = append(c.sources, s)
		added++
	}
	return added
}

func (c *RunContext) setQuality(score float64) {
	c.quality = clampUnit(score)
}

// adjustForValidation moves the bounded validation adjustment and returns
// the new quality score.
func (c *RunContext) adjustForValidation(delta float64) float64 {
	c.validationAdjust = math.Max(-maxValidationAdjust, math.Min(maxValidationAdjust, c.validationAdjust+delta))
	c.setQuality(qualityScore(c))
	return c.quality
}

func (c *RunContext) note(thought, action, result string) {
	c.scratchpad = append(c.scratchpad, ScratchEntry{
		Step:    len(c.scratchpad) + 1,
		Thought: thought,
		Action:  action,
		Result:  result,
	})
}

func (c *RunContext) podcastSources() int {
	n := 0
	for _, s := range c.sources {
		if s.Provenance == tools.ProvenancePodcast {
			n++
		}
	}
	return n
}

func (c *RunContext) satisfiedList() []Criterion {
	out := make([]Criterion, 0, len(c.satisfied))
	for _, criterion := range defaultCriteria {
		if c.satisfied[criterion] {
			out = append(out, criterion)
		}
	}
	return out
}

// Snapshot is the read-only view of a RunContext returned to callers.
type Snapshot struct {
	RunID             string           `json:"run_id"`
	Goal              Goal             `json:"goal"`
	Sources           []Source         `json:"sources"`
	Insights          Insights         `json:"insights"`
	QualityScore      float64          `json:"quality_score"`
	CurrentFocus      string           `json:"current_focus"`
	CompletedCriteria []Criterion      `json:"completed_criteria"`
	FailedAttempts    int              `json:"failed_attempts"`
	RecentActions     []string         `json:"action_history"`
	BlockedActions    []string         `json:"blocked_actions,omitempty"`
	TaskGraph         *taskgraph.Graph `json:"task_graph,omitempty"`
	Validation        *citation.Result `json:"validation_results,omitempty"`
	Scratchpad        []ScratchEntry   `json:"scratchpad"`
}

func (c *RunContext) Snapshot() Snapshot {
	sources := make([]Source, len(c.sources))
	copy(sources, c.sources)
	return Snapshot{
		RunID:             c.runID,
		Goal:              c.goal,
		Sources:           sources,
		Insights:          c.insights,
		QualityScore:      c.quality,
		CurrentFocus:      c.focus,
		CompletedCriteria: c.satisfiedList(),
		FailedAttempts:    c.failedAttempts,
		RecentActions:     c.history.recent(),
		BlockedActions:    c.history.blockedSignatures(),
		TaskGraph:         c.graph,
		Validation:        c.validation,
		Scratchpad:        append([]ScratchEntry(nil), c.scratchpad...),
	}
}

func clampUnit(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return math.Round(value*1000) / 1000
}
