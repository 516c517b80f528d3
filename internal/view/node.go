package view

import (
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/filter"
	"github.com/roach88/erdsync/internal/overlap"
)

// Kind tags a visual node.
type Kind string

const (
	KindTable  Kind = "table"
	KindArea   Kind = "area"
	KindNote   Kind = "note"
	KindCursor Kind = "cursor"
)

// Synthetic ids for the in-progress connection gesture.
const (
	CursorNodeID     = "__connection_cursor__"
	ConnectionEdgeID = "__connection_edge__"
)

// Stacking order.
const (
	ZIndexArea  = -10
	ZIndexTable = 0
	ZIndexNote  = 8000
)

// Node is a renderable element. Its ID equals the domain entity id except
// for the ephemeral connection nodes.
type Node struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Position diagram.Point `json:"position"`
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	ZIndex   int           `json:"zIndex"`
	Hidden   bool          `json:"hidden,omitempty"`
	Selected bool          `json:"selected,omitempty"`
	Dragging bool          `json:"dragging,omitempty"`
	Resizing bool          `json:"resizing,omitempty"`

	// Table only.
	Overlapping      bool `json:"overlapping,omitempty"`
	HighlightOverlap bool `json:"highlightOverlap,omitempty"`
}

// Ephemeral reports whether n belongs to an in-progress gesture.
func (n *Node) Ephemeral() bool {
	return n.Kind == KindCursor
}

// Bounds returns the node rectangle at its visual position.
func (n *Node) Bounds() diagram.Rect {
	return diagram.Rect{X: n.Position.X, Y: n.Position.Y, Width: n.Width, Height: n.Height}
}

// Input is everything node projection depends on.
type Input struct {
	Tables []diagram.Table
	Areas  []diagram.Area
	Notes  []diagram.Note

	Filter        *filter.Filter
	FilterFunc    filter.Func
	FilterLoading bool
	DefaultSchema string
	ShowViews     bool
	ForceShow     func(tableID string) bool

	Overlap *overlap.Graph
	Pulse   bool
}

func (in Input) passes(t diagram.Table) bool {
	fn := in.FilterFunc
	if fn == nil {
		fn = filter.Match
	}
	return fn(filter.TableRef{ID: t.ID, Schema: t.Schema}, in.Filter, filter.Options{DefaultSchema: in.DefaultSchema})
}

func (in Input) forced(id string) bool {
	return in.ForceShow != nil && in.ForceShow(id)
}

// TableHidden applies the table visibility rule.
func (in Input) TableHidden(t diagram.Table) bool {
	if in.forced(t.ID) {
		return false
	}
	return !in.passes(t) || in.FilterLoading || (t.IsView && !in.ShowViews)
}

// AreaHidden applies the area visibility rule. An area without member
// tables is always shown unless the filter is loading.
func (in Input) AreaHidden(a diagram.Area) bool {
	if in.FilterLoading {
		return true
	}
	members := 0
	for _, t := range in.Tables {
		if t.ParentAreaID != a.ID {
			continue
		}
		members++
		if in.passes(t) {
			return false
		}
	}
	return members > 0
}

// ProjectNodes returns areas, tables, then notes, followed by any ephemeral
// nodes carried over from prev.
//
// A node present in prev keeps its Selected flag; a node that is mid-drag
// keeps its visual position and one mid-resize keeps its visual size.
func ProjectNodes(in Input, prev []*Node) []*Node {
	old := make(map[string]*Node, len(prev))
	for _, n := range prev {
		old[n.ID] = n
	}

	out := make([]*Node, 0, len(in.Areas)+len(in.Tables)+len(in.Notes))
	for _, a := range in.Areas {
		out = append(out, carry(&Node{
			ID:       a.ID,
			Kind:     KindArea,
			Position: diagram.Point{X: a.X, Y: a.Y},
			Width:    a.Width,
			Height:   a.Height,
			ZIndex:   ZIndexArea,
			Hidden:   in.AreaHidden(a),
		}, old[a.ID]))
	}
	for _, t := range in.Tables {
		n := &Node{
			ID:       t.ID,
			Kind:     KindTable,
			Position: diagram.Point{X: t.X, Y: t.Y},
			Width:    t.EffectiveWidth(),
			Height:   t.Height(),
			ZIndex:   ZIndexTable,
			Hidden:   in.TableHidden(t),
		}
		if in.Overlap.Overlaps(t.ID) {
			n.Overlapping = true
			n.HighlightOverlap = in.Pulse
		}
		out = append(out, carry(n, old[t.ID]))
	}
	for _, nt := range in.Notes {
		out = append(out, carry(&Node{
			ID:       nt.ID,
			Kind:     KindNote,
			Position: diagram.Point{X: nt.X, Y: nt.Y},
			Width:    nt.Width,
			Height:   nt.Height,
			ZIndex:   ZIndexNote,
		}, old[nt.ID]))
	}
	for _, n := range prev {
		if n.Ephemeral() {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

func carry(n, prev *Node) *Node {
	if prev == nil || prev.Kind != n.Kind {
		return n
	}
	n.Selected = prev.Selected
	if prev.Dragging {
		n.Dragging = true
		n.Position = prev.Position
	}
	if prev.Resizing {
		n.Resizing = true
		n.Width, n.Height = prev.Width, prev.Height
	}
	return n
}

// Index maps node ids to positions in nodes.
func Index(nodes []*Node) map[string]int {
	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		idx[n.ID] = i
	}
	return idx
}

// SelectedIDs returns the ids of selected nodes.
func SelectedIDs(nodes []*Node) map[string]bool {
	out := make(map[string]bool)
	for _, n := range nodes {
		if n.Selected {
			out[n.ID] = true
		}
	}
	return out
}
