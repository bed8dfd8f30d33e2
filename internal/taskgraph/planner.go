package taskgraph

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/scriptoria/deepresearch/internal/validation"
)

const (
	ModeBiblicalExegesis = "biblical_exegesis"
	ModeGeneric          = "generic"
)

//go:embed templates.yaml
var defaultTemplates []byte

type taskTemplate struct {
	ID        string         `yaml:"id"`
	Tool      string         `yaml:"tool"`
	Args      map[string]any `yaml:"args"`
	DependsOn []string       `yaml:"depends_on"`
}

type Planner struct {
	templates map[string][]taskTemplate
	now       func() time.Time
}

// NewPlanner loads the built-in plan templates.
func NewPlanner() (*Planner, error) {
	return NewPlannerFromYAML(defaultTemplates)
}

// NewPlannerFromYAML parses mode → task list templates. Every mode must
// have unique task ids, known dependencies and no cycles, and
// biblical_exegesis must exist since unknown modes fall back to it.
func NewPlannerFromYAML(data []byte) (*Planner, error) {
	var templates map[string][]taskTemplate
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse plan templates: %w", err)
	}
	if _, ok := templates[ModeBiblicalExegesis]; !ok {
		return nil, fmt.Errorf("plan templates missing %q mode", ModeBiblicalExegesis)
	}
	for mode, tasks := range templates {
		if err := checkTemplate(tasks); err != nil {
			return nil, fmt.Errorf("plan template %q: %w", mode, err)
		}
	}
	return &Planner{templates: templates, now: time.Now}, nil
}

func checkTemplate(tasks []taskTemplate) error {
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks")
	}
	// Dependencies must point backwards, which rules out cycles.
	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if strings.TrimSpace(task.ID) == "" || strings.TrimSpace(task.Tool) == "" {
			return fmt.Errorf("task needs id and tool")
		}
		if seen[task.ID] {
			return fmt.Errorf("duplicate task id %s", task.ID)
		}
		for _, dep := range task.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("task %s depends on %s which is not declared earlier", task.ID, dep)
			}
		}
		seen[task.ID] = true
	}
	return nil
}

func (p *Planner) Modes() []string {
	modes := make([]string, 0, len(p.templates))
	for mode := range p.templates {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

// CreatePlan builds a fresh graph for topic. Unknown modes use
// biblical_exegesis.
func (p *Planner) CreatePlan(topic, mode string) (*Graph, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	template, ok := p.templates[mode]
	if !ok {
		mode = ModeBiblicalExegesis
		template = p.templates[mode]
	}

	replacer := strings.NewReplacer("{topic}", topic, "{safe_topic}", validation.SafeTopic(topic))
	now := p.now().UTC()
	tasks := make([]*Task, 0, len(template))
	for _, tt := range template {
		args := make(map[string]any, len(tt.Args))
		for k, v := range tt.Args {
			if s, isString := v.(string); isString {
				v = replacer.Replace(s)
			}
			args[k] = v
		}
		tasks = append(tasks, &Task{
			ID:        tt.ID,
			Tool:      tt.Tool,
			Args:      args,
			DependsOn: append([]string{}, tt.DependsOn...),
			Status:    StatusPending,
			CreatedAt: now,
		})
	}

	return &Graph{
		ID:        uuid.NewString(),
		Topic:     topic,
		Mode:      mode,
		Tasks:     tasks,
		Status:    GraphPlanning,
		CreatedAt: now,
	}, nil
}

// ReadyTasks is the method form of the package-level ReadyTasks.
func (p *Planner) ReadyTasks(g *Graph) []*Task {
	return ReadyTasks(g)
}
