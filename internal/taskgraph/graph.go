package taskgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type GraphStatus string

const (
	GraphPlanning  GraphStatus = "planning"
	GraphExecuting GraphStatus = "executing"
	GraphCompleted GraphStatus = "completed"
	GraphFailed    GraphStatus = "failed"
)

type Task struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args"`
	DependsOn   []string       `json:"depends_on"`
	Status      Status         `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StringArg returns args[key] when it is a string, else def.
func (t *Task) StringArg(key, def string) string {
	if v, ok := t.Args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// IntArg accepts the numeric shapes yaml and json decoding produce.
func (t *Task) IntArg(key string, def int) int {
	switch v := t.Args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

type Graph struct {
	ID        string      `json:"graph_id"`
	Topic     string      `json:"topic"`
	Mode      string      `json:"mode"`
	Tasks     []*Task     `json:"tasks"`
	Status    GraphStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func (g *Graph) Task(id string) *Task {
	for _, t := range g.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Start marks task running. Only pending tasks can start.
func (g *Graph) Start(task *Task, now time.Time) error {
	if task.Status != StatusPending {
		return fmt.Errorf("task %s is %s, not pending", task.ID, task.Status)
	}
	task.Status = StatusRunning
	task.StartedAt = &now
	g.Status = GraphExecuting
	return nil
}

func (g *Graph) Complete(task *Task, result any, now time.Time) {
	task.Status = StatusCompleted
	task.Result = result
	task.Error = ""
	task.CompletedAt = &now
	g.refresh()
}

func (g *Graph) Fail(task *Task, errText string, now time.Time) {
	task.Status = StatusFailed
	task.Error = errText
	task.CompletedAt = &now
	g.refresh()
}

// Count returns how many tasks are in status.
func (g *Graph) Count(status Status) int {
	n := 0
	for _, t := range g.Tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

func (g *Graph) refresh() {
	switch {
	case g.Count(StatusFailed) > 0:
		g.Status = GraphFailed
	case g.Count(StatusCompleted) == len(g.Tasks):
		g.Status = GraphCompleted
	default:
		g.Status = GraphExecuting
	}
}

// ReadyTasks returns pending tasks whose dependencies have all completed,
// in graph order.
func ReadyTasks(g *Graph) []*Task {
	if g == nil {
		return nil
	}
	ready := make([]*Task, 0)
	for _, task := range g.Tasks {
		if task.Status != StatusPending {
			continue
		}
		met := true
		for _, dep := range task.DependsOn {
			depTask := g.Task(dep)
			if depTask == nil || depTask.Status != StatusCompleted {
				met = false
				break
			}
		}
		if met {
			ready = append(ready, task)
		}
	}
	return ready
}

func Save(g *Graph, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return &g, nil
}
