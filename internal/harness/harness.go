package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/erdsync/internal/bus"
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/engine"
	"github.com/roach88/erdsync/internal/persist"
	"github.com/roach88/erdsync/internal/store"
	"github.com/roach88/erdsync/internal/testutil"
	"github.com/roach88/erdsync/internal/view"
)

// DefaultDragFrames is the number of intermediate drag positions.
const DefaultDragFrames = 3

// Harness drives one engine through a scenario.
type Harness struct {
	engine   *engine.Engine
	model    *diagram.Model
	clock    *testutil.ManualScheduler
	saver    *store.MemStore
	warnings []string
	result   *Result
}

// Run executes a scenario against a fresh engine and returns the result.
//
// Execution flow:
// 1. Load the scenario diagram into a new model
// 2. Build an engine on virtual time with an in-memory store
// 3. Replay the steps, draining the engine queue after each
// 4. Wait for in-flight snapshot writes
// 5. Summarize and evaluate assertions
//
// An error is returned only when the scenario cannot be executed; failed
// assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	if scenario.Diagram == nil {
		return nil, fmt.Errorf("scenario %s has no diagram", scenario.Name)
	}
	ctx := context.Background()

	b := bus.New()
	m := diagram.NewModel(diagram.WithPublisher(b))
	m.Load(*scenario.Diagram)

	h := &Harness{
		model:  m,
		clock:  testutil.NewManualScheduler(),
		saver:  store.NewMemStore(),
		result: NewResult(),
	}
	h.engine = engine.New(m, b,
		engine.WithTimer(h.clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("new")),
		engine.WithNotifier(engine.NotifierFunc(func(err *engine.RejectError) {
			h.warnings = append(h.warnings, string(err.Code))
		})),
		engine.WithReadOnly(scenario.Options.ReadOnly),
		engine.WithShowViews(!scenario.Options.HideViews),
		engine.WithDefaultSchema(scenario.Options.DefaultSchema),
		engine.WithPersistence(h.saver, persist.DefaultDelay),
	)
	defer h.engine.Close()

	unobserve := m.Observe(h.result.addCommit)
	defer unobserve()

	for i, st := range scenario.Steps {
		if err := h.step(st); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if _, err := h.engine.ProcessPending(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if err := h.engine.WaitSaved(ctx); err != nil {
		slog.Debug("scenario save failed", "scenario", scenario.Name, "error", err)
	}

	h.result.Final = m.Snapshot()
	h.result.Summary = h.summarize()

	actx := &AssertionContext{Result: h.result, Edges: h.engine.Edges()}
	for _, msg := range EvaluateAssertions(actx, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) step(st Step) error {
	switch {
	case st.Drag != nil:
		return h.drag(*st.Drag)
	case st.Resize != nil:
		h.resize(*st.Resize)
	case st.Connect != nil:
		return h.connect(*st.Connect)
	case st.Remove != nil:
		h.remove(*st.Remove)
	case st.Select != nil:
		h.selectStep(*st.Select)
	case st.Advance != 0:
		d := st.Advance
		fired := h.clock.Advance(d.Std())
		h.result.addStep(fmt.Sprintf("advance %s (%d timers)", d.Std(), fired), "")
	case st.Filter != nil:
		h.engine.SetFilter(st.Filter)
		h.result.addStep(fmt.Sprintf("filter schemas=%v tables=%v", st.Filter.SchemaIDs, st.Filter.TableIDs), "")
	}
	return nil
}

func (h *Harness) nodePosition(id string) (diagram.Point, bool) {
	for _, n := range h.engine.Nodes() {
		if n.ID == id {
			return n.Position, true
		}
	}
	return diagram.Point{}, false
}

func (h *Harness) drag(s DragStep) error {
	from, ok := h.nodePosition(s.ID)
	if !ok {
		return fmt.Errorf("drag: unknown node %s", s.ID)
	}
	frames := s.Frames
	if frames <= 0 {
		frames = DefaultDragFrames
	}
	h.result.addStep(fmt.Sprintf("drag %s to (%g, %g)", s.ID, s.To.X, s.To.Y), "")

	for k := 1; k <= frames; k++ {
		f := float64(k) / float64(frames+1)
		p := diagram.Point{X: from.X + (s.To.X-from.X)*f, Y: from.Y + (s.To.Y-from.Y)*f}
		h.engine.ApplyNodeChanges([]engine.NodeChange{{
			Type: engine.ChangePosition, ID: s.ID, Position: &p, Dragging: true,
		}})
	}
	to := s.To
	h.engine.ApplyNodeChanges([]engine.NodeChange{{
		Type: engine.ChangePosition, ID: s.ID, Position: &to,
	}})
	return nil
}

func (h *Harness) resize(s ResizeStep) {
	h.result.addStep(fmt.Sprintf("resize %s to %gx%g", s.ID, s.Width, s.Height), "")
	size := diagram.Size{Width: s.Width, Height: s.Height}
	h.engine.ApplyNodeChanges([]engine.NodeChange{{
		Type: engine.ChangeDimensions, ID: s.ID, Dimensions: &size, Resizing: true,
	}})
	h.engine.ApplyNodeChanges([]engine.NodeChange{{
		Type: engine.ChangeDimensions, ID: s.ID, Dimensions: &size,
	}})
}

func (h *Harness) connect(s ConnectStep) error {
	label := fmt.Sprintf("connect %s.%s to %s.%s", s.From, s.Handle, s.To, s.TargetHandle)
	if s.To == "" {
		label = fmt.Sprintf("connect %s.%s to canvas", s.From, s.Handle)
	}

	// The step is traced before the commit it causes; the reject code is
	// filled in once the gesture ends.
	h.result.addStep(label, "")
	step := len(h.result.Trace) - 1

	if err := h.engine.StartConnect(s.From, s.Handle); err != nil {
		if !engine.IsRejected(err) {
			return err
		}
		h.result.Trace[step].Reject = string(engine.RejectCodeOf(err))
		return nil
	}
	for _, p := range s.Via {
		h.engine.MoveConnect(p)
	}
	_, err := h.engine.EndConnect(s.To, s.TargetHandle)
	if err != nil && !engine.IsRejected(err) {
		return err
	}
	h.result.Trace[step].Reject = string(engine.RejectCodeOf(err))
	return nil
}

func (h *Harness) remove(s RemoveStep) {
	h.result.addStep(fmt.Sprintf("remove nodes=%v edges=%v", s.IDs, s.EdgeIDs), "")
	if len(s.IDs) > 0 {
		changes := make([]engine.NodeChange, 0, len(s.IDs))
		for _, id := range s.IDs {
			changes = append(changes, engine.NodeChange{Type: engine.ChangeRemove, ID: id})
		}
		h.engine.ApplyNodeChanges(changes)
	}
	if len(s.EdgeIDs) > 0 {
		changes := make([]engine.EdgeChange, 0, len(s.EdgeIDs))
		for _, id := range s.EdgeIDs {
			changes = append(changes, engine.EdgeChange{Type: engine.ChangeRemove, ID: id})
		}
		h.engine.ApplyEdgeChanges(changes)
	}
}

func (h *Harness) selectStep(s SelectStep) {
	target := "node"
	if s.Edge {
		target = "edge"
	}
	h.result.addStep(fmt.Sprintf("select %s %s=%t", target, s.ID, s.Selected), "")
	if s.Edge {
		h.engine.ApplyEdgeChanges([]engine.EdgeChange{{Type: engine.ChangeSelect, ID: s.ID, Selected: s.Selected}})
		return
	}
	h.engine.ApplyNodeChanges([]engine.NodeChange{{Type: engine.ChangeSelect, ID: s.ID, Selected: s.Selected}})
}

func (h *Harness) summarize() Summary {
	sum := Summary{
		Relationships: len(h.model.Relationships()),
		Dependencies:  len(h.model.Dependencies()),
		Edges:         countEdges(h.engine.Edges(), ""),
		Warnings:      append([]string{}, h.warnings...),
		Writes:        h.engine.PersistStats().Writes,
		Overlap:       h.engine.OverlapClusters(),
		Tables:        []TableState{},
	}
	if sum.Overlap == nil {
		sum.Overlap = [][]string{}
	}
	for _, t := range h.model.Tables() {
		sum.Tables = append(sum.Tables, TableState{ID: t.ID, X: t.X, Y: t.Y, Parent: t.ParentAreaID})
	}
	return sum
}

// countEdges counts visible edges, optionally of one kind.
func countEdges(edges []*view.Edge, kind view.EdgeKind) int {
	n := 0
	for _, e := range edges {
		if e.Hidden || (kind != "" && e.Kind != kind) {
			continue
		}
		n++
	}
	return n
}
