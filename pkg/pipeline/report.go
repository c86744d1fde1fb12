package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semgeo/semgeo/pkg/rules"
)

// State is a point in the run lifecycle.
type State string

const (
	StateInit               State = "INIT"
	StateOntologiesLoaded   State = "ONTOLOGIES_LOADED"
	StateInstanceLoaded     State = "INSTANCE_LOADED"
	StateClosureExpanded    State = "CLOSURE_EXPANDED"
	StateToolApplied        State = "TOOL_APPLIED"
	StatePropagationApplied State = "PROPAGATION_APPLIED"
	StateDone               State = "DONE"
)

// Transition records one state change.
type Transition struct {
	State    State  `json:"state"`
	Scenario string `json:"scenario,omitempty"`
	Entity   string `json:"entity,omitempty"`
}

// StepKind classifies a report step.
type StepKind string

const (
	StepLoad    StepKind = "load"
	StepClosure StepKind = "closure"
	StepUpdate  StepKind = "update"
	StepMissing StepKind = "missing"
	StepWrite   StepKind = "write"
)

// Step is one graph-changing action, or a note about one that could not
// happen.
type Step struct {
	Kind     StepKind       `json:"kind"`
	Scenario string         `json:"scenario,omitempty"`
	Entity   string         `json:"entity,omitempty"`
	Category rules.Category `json:"category,omitempty"`
	Source   string         `json:"source,omitempty"`
	Before   int            `json:"before"`
	After    int            `json:"after"`
	Delta    int            `json:"delta"`
	Duration time.Duration  `json:"duration"`
	Message  string         `json:"message,omitempty"`
}

// TestOutcome is the result of one test rule.
type TestOutcome struct {
	Key      rules.Key     `json:"key"`
	Variant  string        `json:"variant,omitempty"`
	Scenario string        `json:"scenario,omitempty"`
	Source   string        `json:"source"`
	Passed   bool          `json:"passed"`
	Rows     int           `json:"rows"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ScenarioSummary describes what one scenario did to the graph.
type ScenarioSummary struct {
	Name         string   `json:"name"`
	Instance     string   `json:"instance"`
	Tools        []string `json:"tools,omitempty"`
	Propagations []string `json:"propagations,omitempty"`
	Before       int      `json:"before"`
	After        int      `json:"after"`
}

// Report is the structured outcome of a run. On failure it holds everything
// that happened before the error.
type Report struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Duration    time.Duration     `json:"duration"`
	State       State             `json:"state"`
	Transitions []Transition      `json:"transitions"`
	Scenarios   []ScenarioSummary `json:"scenarios"`
	Skipped     []string          `json:"skipped,omitempty"`
	Steps       []Step            `json:"steps"`
	Tests       []TestOutcome     `json:"tests"`
	Triples     int               `json:"triples"`
	Output      string            `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Passed returns the number of passing tests.
func (r *Report) Passed() int {
	n := 0
	for _, test := range r.Tests {
		if test.Passed {
			n++
		}
	}
	return n
}

// Failed returns the number of failing tests.
func (r *Report) Failed() int {
	return len(r.Tests) - r.Passed()
}

// FailedTests returns the failing tests in run order.
func (r *Report) FailedTests() []TestOutcome {
	var failed []TestOutcome
	for _, test := range r.Tests {
		if !test.Passed {
			failed = append(failed, test)
		}
	}
	return failed
}

// Missing returns the steps recorded for entities without rules.
func (r *Report) Missing() []Step {
	var missing []Step
	for _, step := range r.Steps {
		if step.Kind == StepMissing {
			missing = append(missing, step)
		}
	}
	return missing
}

// Succeeded reports whether the run reached DONE without error.
func (r *Report) Succeeded() bool {
	return r.State == StateDone && r.Error == ""
}

// ToJSON serializes the report as indented JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// SaveJSON writes the report to path, creating parent directories.
func (r *Report) SaveJSON(path string) error {
	data, err := r.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// String returns a plain-text summary of the run.
func (r *Report) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Run %s\n", r.RunID))
	for _, step := range r.Steps {
		switch step.Kind {
		case StepMissing:
			b.WriteString(fmt.Sprintf("[MISS] %s %s: %s\n", step.Scenario, step.Entity, step.Message))
		default:
			b.WriteString(fmt.Sprintf("[%s] %s (triples: %d, %+d)\n",
				strings.ToUpper(string(step.Kind)), step.Source, step.After, step.Delta))
		}
	}
	for _, test := range r.Tests {
		status := "PASS"
		if !test.Passed {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s", status, test.Source))
		if test.Error != "" {
			b.WriteString(": " + test.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Tests: %d passed, %d failed\n", r.Passed(), r.Failed()))
	b.WriteString(fmt.Sprintf("Triples: %d\n", r.Triples))
	b.WriteString(fmt.Sprintf("State: %s\n", r.State))
	if r.Error != "" {
		b.WriteString(fmt.Sprintf("Error: %s\n", r.Error))
	}
	return b.String()
}
