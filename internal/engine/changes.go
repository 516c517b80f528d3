package engine

import (
	"log/slog"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/view"
)

// ChangeType classifies an interaction event.
type ChangeType string

const (
	ChangePosition   ChangeType = "position"
	ChangeDimensions ChangeType = "dimensions"
	ChangeSelect     ChangeType = "select"
	ChangeRemove     ChangeType = "remove"
)

// NodeChange is one interaction event against a node.
//
// Position and dimension changes carry Dragging/Resizing while the gesture
// is in progress; the change with the flag cleared is the settle. A settle
// may omit Position or Dimensions, in which case the node's current visual
// geometry is committed.
type NodeChange struct {
	Type       ChangeType     `json:"type" yaml:"type"`
	ID         string         `json:"id" yaml:"id"`
	Position   *diagram.Point `json:"position,omitempty" yaml:"position,omitempty"`
	Dragging   bool           `json:"dragging,omitempty" yaml:"dragging,omitempty"`
	Dimensions *diagram.Size  `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Resizing   bool           `json:"resizing,omitempty" yaml:"resizing,omitempty"`
	Selected   bool           `json:"selected,omitempty" yaml:"selected,omitempty"`

	// synthetic marks member-table deltas generated for an area drag.
	synthetic bool
}

// EdgeChange is one interaction event against an edge. Only select and
// remove apply to edges.
type EdgeChange struct {
	Type     ChangeType `json:"type" yaml:"type"`
	ID       string     `json:"id" yaml:"id"`
	Selected bool       `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// ApplyNodeChanges reconciles a batch of node changes.
//
// Every change is applied to the visual nodes. Domain commits happen only
// for settles (position changes that are not dragging, dimension changes
// that are not resizing) and removals. After a settle, parentAreaId is
// re-resolved for every table.
func (e *Engine) ApplyNodeChanges(changes []NodeChange) {
	if len(changes) == 0 {
		return
	}
	changes = e.dropRemovalsIfReadOnly(changes)
	changes = e.expandAreaDrags(changes)

	kinds := make(map[string]view.Kind, len(e.nodes))
	for _, n := range e.nodes {
		kinds[n.ID] = n.Kind
	}
	applied := e.applyVisual(changes, kinds)
	e.commitNodeChanges(applied, kinds)
	e.refresh()
}

func (e *Engine) dropRemovalsIfReadOnly(changes []NodeChange) []NodeChange {
	if !e.readOnly {
		return changes
	}
	out := changes[:0:0]
	for _, c := range changes {
		if c.Type == ChangeRemove {
			slog.Debug("read-only: dropping removal", "id", c.ID)
			continue
		}
		out = append(out, c)
	}
	return out
}

// expandAreaDrags appends a synthetic position change for every member
// table of a dragged area, shifted by the area's delta. A settle without a
// position settles the members where they are. Tables that carry their own
// position change in the batch are left alone.
func (e *Engine) expandAreaDrags(changes []NodeChange) []NodeChange {
	idx := view.Index(e.nodes)
	moved := make(map[string]bool)
	for _, c := range changes {
		if c.Type == ChangePosition {
			moved[c.ID] = true
		}
	}

	out := changes
	for _, c := range changes {
		if c.Type != ChangePosition || (c.Position == nil && c.Dragging) {
			continue
		}
		i, ok := idx[c.ID]
		if !ok || e.nodes[i].Kind != view.KindArea {
			continue
		}
		var dx, dy float64
		if c.Position != nil {
			dx = c.Position.X - e.nodes[i].Position.X
			dy = c.Position.Y - e.nodes[i].Position.Y
		}
		for _, t := range e.model.Tables() {
			if t.ParentAreaID != c.ID || moved[t.ID] {
				continue
			}
			j, ok := idx[t.ID]
			if !ok {
				continue
			}
			member := NodeChange{Type: ChangePosition, ID: t.ID, Dragging: c.Dragging, synthetic: true}
			if c.Position != nil {
				p := e.nodes[j].Position
				member.Position = &diagram.Point{X: p.X + dx, Y: p.Y + dy}
			}
			out = append(out, member)
		}
	}
	return out
}

// applyVisual applies changes to the node list copy-on-write and returns
// the changes that referenced a known node.
func (e *Engine) applyVisual(changes []NodeChange, kinds map[string]view.Kind) []NodeChange {
	idx := view.Index(e.nodes)
	var (
		next    []*view.Node
		copied  = make(map[int]bool)
		applied = make([]NodeChange, 0, len(changes))
	)
	node := func(i int) *view.Node {
		if next == nil {
			next = append([]*view.Node(nil), e.nodes...)
		}
		if !copied[i] {
			c := *next[i]
			next[i] = &c
			copied[i] = true
		}
		return next[i]
	}

	for _, c := range changes {
		i, ok := idx[c.ID]
		if !ok || kinds[c.ID] == view.KindCursor {
			slog.Debug("skipping change for unknown node", "id", c.ID, "type", c.Type)
			continue
		}
		switch c.Type {
		case ChangePosition:
			n := node(i)
			if c.Position != nil {
				n.Position = *c.Position
			}
			n.Dragging = c.Dragging
		case ChangeDimensions:
			n := node(i)
			if c.Dimensions != nil {
				n.Width, n.Height = c.Dimensions.Width, c.Dimensions.Height
			}
			n.Resizing = c.Resizing
		case ChangeSelect:
			if e.nodes[i].Selected != c.Selected || copied[i] {
				node(i).Selected = c.Selected
			}
		case ChangeRemove:
		default:
			slog.Debug("skipping unknown node change", "id", c.ID, "type", c.Type)
			continue
		}
		applied = append(applied, c)
	}
	if next != nil {
		e.nodes = next
	}
	return applied
}

// commitNodeChanges turns settles and removals into domain mutations. Each
// entity is committed at most once per batch.
func (e *Engine) commitNodeChanges(changes []NodeChange, kinds map[string]view.Kind) {
	var (
		tables  = make(map[string]diagram.Rect)
		areas   = make(map[string]diagram.Rect)
		notes   = make(map[string]diagram.Rect)
		removed = make(map[view.Kind][]string)
		settled bool
	)
	visual := make(map[string]diagram.Rect, len(e.nodes))
	for _, n := range e.nodes {
		visual[n.ID] = n.Bounds()
	}

	for _, c := range changes {
		kind := kinds[c.ID]
		switch c.Type {
		case ChangePosition:
			if c.Dragging {
				continue
			}
		case ChangeDimensions:
			if c.Resizing {
				continue
			}
		case ChangeRemove:
			removed[kind] = append(removed[kind], c.ID)
			continue
		default:
			continue
		}
		settled = true
		switch kind {
		case view.KindTable:
			tables[c.ID] = visual[c.ID]
		case view.KindArea:
			areas[c.ID] = visual[c.ID]
		case view.KindNote:
			notes[c.ID] = visual[c.ID]
		}
	}

	if len(areas) > 0 {
		e.model.UpdateAreas(func(a *diagram.Area) bool {
			r, ok := areas[a.ID]
			if !ok || r == a.Bounds() {
				return false
			}
			a.X, a.Y, a.Width, a.Height = r.X, r.Y, r.Width, r.Height
			return true
		})
	}
	if len(tables) > 0 {
		e.model.UpdateTables(func(t *diagram.Table) bool {
			r, ok := tables[t.ID]
			if !ok {
				return false
			}
			changed := false
			if t.X != r.X || t.Y != r.Y {
				t.X, t.Y = r.X, r.Y
				changed = true
			}
			if r.Width > 0 && r.Width != t.EffectiveWidth() {
				t.Width = r.Width
				changed = true
			}
			return changed
		})
	}
	if len(notes) > 0 {
		e.model.UpdateNotes(func(n *diagram.Note) bool {
			r, ok := notes[n.ID]
			if !ok || r == n.Bounds() {
				return false
			}
			n.X, n.Y, n.Width, n.Height = r.X, r.Y, r.Width, r.Height
			return true
		})
	}

	if ids := removed[view.KindTable]; len(ids) > 0 {
		e.model.RemoveTables(ids)
	}
	if ids := removed[view.KindArea]; len(ids) > 0 {
		e.model.RemoveAreas(ids)
	}
	if ids := removed[view.KindNote]; len(ids) > 0 {
		e.model.RemoveNotes(ids)
	}

	if settled || len(removed[view.KindArea]) > 0 {
		if ids := e.reassignParents(); len(ids) > 0 {
			slog.Debug("parent areas reassigned", "tables", ids)
		}
	}
}

// ApplyEdgeChanges reconciles edge selection and removal.
func (e *Engine) ApplyEdgeChanges(changes []EdgeChange) {
	if len(changes) == 0 {
		return
	}
	idx := make(map[string]int, len(e.edges))
	for i, ed := range e.edges {
		idx[ed.ID] = i
	}

	var (
		next []*view.Edge
		rels []string
		deps []string
	)
	for _, c := range changes {
		i, ok := idx[c.ID]
		if !ok {
			slog.Debug("skipping change for unknown edge", "id", c.ID, "type", c.Type)
			continue
		}
		switch c.Type {
		case ChangeSelect:
			if next == nil {
				next = append([]*view.Edge(nil), e.edges...)
			}
			cp := *next[i]
			cp.Selected = c.Selected
			next[i] = &cp
		case ChangeRemove:
			if e.readOnly {
				slog.Debug("read-only: dropping removal", "id", c.ID)
				continue
			}
			switch e.edges[i].Kind {
			case view.EdgeRelationship:
				rels = append(rels, c.ID)
			case view.EdgeDependency:
				deps = append(deps, c.ID)
			}
		}
	}
	if next != nil {
		e.edges = next
	}
	if len(rels) > 0 {
		e.model.RemoveRelationships(rels)
	}
	if len(deps) > 0 {
		e.model.RemoveDependencies(deps)
	}
	e.refresh()
}
