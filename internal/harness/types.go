package harness

import (
	"fmt"

	"github.com/roach88/erdsync/internal/diagram"
)

// TraceEvent is one entry of a scenario trace: either a gesture step or a
// domain commit caused by it.
type TraceEvent struct {
	Seq    int      `json:"seq"`
	Type   string   `json:"type"` // "step" or "commit"
	Step   string   `json:"step,omitempty"`
	Kind   string   `json:"kind,omitempty"`
	IDs    []string `json:"ids,omitempty"`
	Reject string   `json:"reject,omitempty"`
}

// Summary is the final state of a scenario run.
type Summary struct {
	Tables        []TableState `json:"tables"`
	Relationships int          `json:"relationships"`
	Dependencies  int          `json:"dependencies"`
	Edges         int          `json:"edges"`
	Warnings      []string     `json:"warnings"`
	Writes        int64        `json:"writes"`
	Overlap       [][]string   `json:"overlap"`
}

// TableState is the persisted geometry of one table.
type TableState struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Parent string  `json:"parent,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass    bool         `json:"pass"`
	Trace   []TraceEvent `json:"trace"`
	Summary Summary      `json:"summary"`
	Errors  []string     `json:"errors,omitempty"`

	// Final is the model snapshot at the end of the run.
	Final diagram.Diagram `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addStep(step, reject string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: len(r.Trace) + 1, Type: "step", Step: step, Reject: reject})
}

func (r *Result) addCommit(c diagram.Change) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:  len(r.Trace) + 1,
		Type: "commit",
		Kind: string(c.Kind),
		IDs:  append([]string(nil), c.IDs...),
	})
}

func (e TraceEvent) String() string {
	if e.Type == "commit" {
		return fmt.Sprintf("[%d] commit %s %v", e.Seq, e.Kind, e.IDs)
	}
	if e.Reject != "" {
		return fmt.Sprintf("[%d] %s -> %s", e.Seq, e.Step, e.Reject)
	}
	return fmt.Sprintf("[%d] %s", e.Seq, e.Step)
}
