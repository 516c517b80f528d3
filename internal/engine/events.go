package engine

import (
	"log/slog"

	"github.com/roach88/erdsync/internal/bus"
)

// subscribe keeps the overlap graph current for mutations that arrive
// through code paths other than canvas gestures. The model publishes
// synchronously, so handlers run on the engine goroutine.
func (e *Engine) subscribe() {
	e.subs = append(e.subs,
		e.bus.Subscribe(e.onTablesChanged, bus.EventAddTables, bus.EventRemoveTables),
		e.bus.Subscribe(e.onTableChanged, bus.EventUpdateTable, bus.EventAddField, bus.EventRemoveField),
		e.bus.Subscribe(e.onLoad, bus.EventLoadDiagram),
	)
}

func (e *Engine) onTablesChanged(ev bus.Event) {
	if e.closed {
		return
	}
	slog.Debug("overlap update", "event", ev.Type, "tables", len(ev.TableIDs))
	e.updateOverlap(ev.TableIDs...)
}

func (e *Engine) onTableChanged(ev bus.Event) {
	if e.closed || ev.TableID == "" {
		return
	}
	e.updateOverlap(ev.TableID)
}

func (e *Engine) onLoad(ev bus.Event) {
	if e.closed {
		return
	}
	slog.Debug("diagram loaded", "diagram", ev.DiagramID)
	e.cancelConnect()
	e.nodes = nil
	e.edges = nil
	e.projector.Invalidate()
	e.rebuildOverlap()
	e.refresh()
}

// CanvasClick clears node and edge selection and publishes canvas_click.
func (e *Engine) CanvasClick() {
	var changes []NodeChange
	for _, n := range e.nodes {
		if n.Selected {
			changes = append(changes, NodeChange{Type: ChangeSelect, ID: n.ID, Selected: false})
		}
	}
	var edgeChanges []EdgeChange
	for _, ed := range e.edges {
		if ed.Selected {
			edgeChanges = append(edgeChanges, EdgeChange{Type: ChangeSelect, ID: ed.ID, Selected: false})
		}
	}
	e.ApplyNodeChanges(changes)
	e.ApplyEdgeChanges(edgeChanges)
	if e.bus != nil {
		e.bus.Publish(bus.Event{Type: bus.EventCanvasClick, DiagramID: e.model.ID()})
	}
}
