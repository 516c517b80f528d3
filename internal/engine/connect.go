package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/view"
)

// connection is the state of an in-progress connect gesture.
type connection struct {
	sourceNode   string
	sourceHandle string
	dependency   bool
}

// Connecting reports whether a connect gesture is in progress.
func (e *Engine) Connecting() bool { return e.connect != nil }

// StartConnect begins a connect gesture from a table handle. A temporary
// cursor node and floating edge are added to the view; they follow
// MoveConnect and are removed when the gesture ends.
func (e *Engine) StartConnect(nodeID, handleID string) error {
	if e.connect != nil {
		e.cancelConnect()
	}
	if _, ok := e.model.Table(nodeID); !ok {
		return newUnknownEndpoint(nodeID)
	}
	var origin diagram.Point
	if i, ok := view.Index(e.nodes)[nodeID]; ok {
		origin = e.nodes[i].Position
	}

	e.connect = &connection{
		sourceNode:   nodeID,
		sourceHandle: handleID,
		dependency:   view.IsDependencyHandle(handleID),
	}
	e.nodes = append(e.nodes[:len(e.nodes):len(e.nodes)], &view.Node{
		ID:       view.CursorNodeID,
		Kind:     view.KindCursor,
		Position: origin,
		Width:    1,
		Height:   1,
	})
	e.edges = append(e.edges[:len(e.edges):len(e.edges)], &view.Edge{
		ID:           view.ConnectionEdgeID,
		Kind:         view.EdgeConnection,
		Source:       nodeID,
		Target:       view.CursorNodeID,
		SourceHandle: handleID,
		Animated:     true,
		ZIndex:       view.ZIndexEdgeRaised,
	})
	slog.Debug("connect started", "node", nodeID, "handle", handleID)
	return nil
}

// MoveConnect moves the cursor end of the floating edge. Updates are
// throttled to one per frame; only the latest point is applied.
func (e *Engine) MoveConnect(p diagram.Point) {
	if e.connect == nil {
		return
	}
	e.throttle.Schedule(func() { e.moveCursor(p) })
}

func (e *Engine) moveCursor(p diagram.Point) {
	if e.connect == nil {
		return
	}
	i, ok := view.Index(e.nodes)[view.CursorNodeID]
	if !ok {
		return
	}
	next := append([]*view.Node(nil), e.nodes...)
	c := *next[i]
	c.Position = p
	next[i] = &c
	e.nodes = next
}

// CursorPosition returns the cursor node position during a connect gesture.
func (e *Engine) CursorPosition() (diagram.Point, bool) {
	if i, ok := view.Index(e.nodes)[view.CursorNodeID]; ok {
		return e.nodes[i].Position, true
	}
	return diagram.Point{}, false
}

// CancelConnect abandons the gesture without touching the domain model.
func (e *Engine) CancelConnect() {
	e.cancelConnect()
	e.refresh()
}

// cancelConnect releases the throttle and removes the ephemeral elements.
func (e *Engine) cancelConnect() {
	e.throttle.Cancel()
	if e.connect == nil {
		return
	}
	e.connect = nil

	nodes := make([]*view.Node, 0, len(e.nodes))
	for _, n := range e.nodes {
		if !n.Ephemeral() {
			nodes = append(nodes, n)
		}
	}
	e.nodes = nodes
	edges := make([]*view.Edge, 0, len(e.edges))
	for _, ed := range e.edges {
		if ed.Kind != view.EdgeConnection {
			edges = append(edges, ed)
		}
	}
	e.edges = edges
}

// EndConnect releases the gesture over a target handle and commits the
// connection. A source handle with the dependency prefix creates a
// Dependency; any other handle creates a Relationship between the two
// resolved fields if their types are compatible.
//
// Releasing over empty canvas (targetNodeID "") cancels silently. A
// rejected connection produces a *RejectError, which is also sent to the
// Notifier, and no domain mutation. Returns the id of the created entity.
func (e *Engine) EndConnect(targetNodeID, targetHandleID string) (string, error) {
	c := e.connect
	if c == nil {
		return "", ErrNoConnection
	}
	e.cancelConnect()
	defer e.refresh()

	if targetNodeID == "" {
		return "", nil
	}

	var (
		id  string
		err error
	)
	if c.dependency {
		id, err = e.createDependency(c.sourceNode, targetNodeID)
	} else {
		id, err = e.createRelationship(c.sourceNode, c.sourceHandle, targetNodeID, targetHandleID)
	}
	if err != nil {
		var re *RejectError
		if errors.As(err, &re) {
			e.notifier.Warn(re)
		}
		return "", err
	}
	return id, nil
}

func (e *Engine) createRelationship(srcID, srcHandle, tgtID, tgtHandle string) (string, error) {
	src, ok := e.model.Table(srcID)
	if !ok {
		return "", newUnknownEndpoint(srcID)
	}
	tgt, ok := e.model.Table(tgtID)
	if !ok {
		return "", newUnknownEndpoint(tgtID)
	}

	srcFieldID := view.HandleFieldID(srcHandle)
	srcField, ok := src.Field(srcFieldID)
	if !ok {
		return "", newMissingField(srcID, srcFieldID)
	}
	tgtFieldID := view.HandleFieldID(tgtHandle)
	tgtField, ok := tgt.Field(tgtFieldID)
	if !ok {
		return "", newMissingField(tgtID, tgtFieldID)
	}

	dialect := e.model.DatabaseType()
	if !e.typeFunc(srcField.Type, tgtField.Type, dialect) {
		return "", newIncompatibleTypes(srcField.Type, tgtField.Type, dialect)
	}

	r := diagram.Relationship{
		ID:                e.ids.Generate(),
		Name:              fmt.Sprintf("%s_%s_fk", src.Name, srcField.Name),
		SourceSchema:      src.Schema,
		SourceTableID:     src.ID,
		SourceFieldID:     srcField.ID,
		TargetSchema:      tgt.Schema,
		TargetTableID:     tgt.ID,
		TargetFieldID:     tgtField.ID,
		SourceCardinality: diagram.CardinalityMany,
		TargetCardinality: diagram.CardinalityOne,
	}
	if err := e.model.AddRelationship(r); err != nil {
		return "", fmt.Errorf("create relationship: %w", err)
	}
	slog.Debug("relationship created", "id", r.ID, "source", src.ID, "target", tgt.ID)
	return r.ID, nil
}

// createDependency records that dependentID depends on tableID.
func (e *Engine) createDependency(dependentID, tableID string) (string, error) {
	if dependentID == tableID {
		return "", &RejectError{
			Code:    CodeSelfDependency,
			Message: "a table cannot depend on itself",
			Details: map[string]string{"table": tableID},
		}
	}
	dependent, ok := e.model.Table(dependentID)
	if !ok {
		return "", newUnknownEndpoint(dependentID)
	}
	if _, ok := e.model.Table(tableID); !ok {
		return "", newUnknownEndpoint(tableID)
	}
	for _, d := range e.model.Dependencies() {
		if d.TableID == tableID && d.DependentTableID == dependentID {
			return "", &RejectError{
				Code:    CodeDuplicateDependency,
				Message: "dependency already exists",
				Details: map[string]string{"dependency": d.ID},
			}
		}
	}

	d := diagram.Dependency{
		ID:               e.ids.Generate(),
		Schema:           dependent.Schema,
		TableID:          tableID,
		DependentTableID: dependentID,
	}
	if err := e.model.AddDependency(d); err != nil {
		return "", fmt.Errorf("create dependency: %w", err)
	}
	slog.Debug("dependency created", "id", d.ID, "table", tableID, "dependent", dependentID)
	return d.ID, nil
}
