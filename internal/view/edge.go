package view

import (
	"fmt"
	"strings"

	"github.com/roach88/erdsync/internal/diagram"
)

// EdgeKind tags a visual edge.
type EdgeKind string

const (
	EdgeRelationship EdgeKind = "relationship"
	EdgeDependency   EdgeKind = "dependency"
	EdgeConnection   EdgeKind = "connection"
)

// Edge z-order.
const (
	ZIndexEdge       = 0
	ZIndexEdgeRaised = 1
)

// Handle id prefixes.
const (
	LeftRelPrefix   = "left_rel_"
	RightRelPrefix  = "right_rel_"
	TargetRelPrefix = "target_rel_"
	DepPrefix       = "top_dep_"
	TargetDepPrefix = "target_dep_"
)

// Edge is a renderable connection between two nodes.
type Edge struct {
	ID           string   `json:"id"`
	Kind         EdgeKind `json:"kind"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	SourceHandle string   `json:"sourceHandle"`
	TargetHandle string   `json:"targetHandle"`
	ZIndex       int      `json:"zIndex"`
	Hidden       bool     `json:"hidden,omitempty"`
	Selected     bool     `json:"selected,omitempty"`
	Animated     bool     `json:"animated,omitempty"`
	Highlighted  bool     `json:"highlighted,omitempty"`

	SourceCardinality diagram.Cardinality `json:"sourceCardinality,omitempty"`
	TargetCardinality diagram.Cardinality `json:"targetCardinality,omitempty"`
}

// TargetRelHandle returns the indexed target handle of a relationship.
func TargetRelHandle(index int, fieldID string) string {
	return fmt.Sprintf("%s%d_%s", TargetRelPrefix, index, fieldID)
}

// TargetDepHandle returns the indexed target handle of a dependency.
func TargetDepHandle(index int, tableID string) string {
	return fmt.Sprintf("%s%d_%s", TargetDepPrefix, index, tableID)
}

// IsDependencyHandle reports whether a source handle starts a dependency.
func IsDependencyHandle(handle string) bool {
	return strings.HasPrefix(handle, DepPrefix)
}

// HandleFieldID extracts the field id from a relationship handle of any
// kind. Returns "" for dependency handles and unknown prefixes.
func HandleFieldID(handle string) string {
	switch {
	case strings.HasPrefix(handle, LeftRelPrefix):
		return strings.TrimPrefix(handle, LeftRelPrefix)
	case strings.HasPrefix(handle, RightRelPrefix):
		return strings.TrimPrefix(handle, RightRelPrefix)
	case strings.HasPrefix(handle, TargetRelPrefix):
		rest := strings.TrimPrefix(handle, TargetRelPrefix)
		if i := strings.IndexByte(rest, '_'); i >= 0 {
			return rest[i+1:]
		}
	}
	return ""
}

// EdgeInput is everything edge generation depends on.
type EdgeInput struct {
	Relationships []diagram.Relationship
	Dependencies  []diagram.Dependency
	Tables        []diagram.Table

	// NodeHidden reports whether a table node is hidden. Nil means none are.
	NodeHidden func(id string) bool
}

// BuildEdges regenerates the full edge list: relationships in list order,
// then dependencies. Selected and Animated are carried over from prev by id.
//
// Relationships sharing a (target table, target field) pair get target
// handle indices 0, 1, ... in list order; dependencies sharing a target
// table are indexed the same way.
func BuildEdges(in EdgeInput, prev []*Edge) []*Edge {
	old := make(map[string]*Edge, len(prev))
	for _, e := range prev {
		old[e.ID] = e
	}
	x := make(map[string]float64, len(in.Tables))
	for _, t := range in.Tables {
		x[t.ID] = t.X
	}
	hidden := func(id string) bool {
		return in.NodeHidden != nil && in.NodeHidden(id)
	}

	out := make([]*Edge, 0, len(in.Relationships)+len(in.Dependencies))
	relIndex := make(map[[2]string]int)
	for _, r := range in.Relationships {
		key := [2]string{r.TargetTableID, r.TargetFieldID}
		idx := relIndex[key]
		relIndex[key] = idx + 1

		side := RightRelPrefix
		if x[r.SourceTableID] > x[r.TargetTableID] {
			side = LeftRelPrefix
		}
		out = append(out, carryEdge(&Edge{
			ID:                r.ID,
			Kind:              EdgeRelationship,
			Source:            r.SourceTableID,
			Target:            r.TargetTableID,
			SourceHandle:      side + r.SourceFieldID,
			TargetHandle:      TargetRelHandle(idx, r.TargetFieldID),
			ZIndex:            ZIndexEdge,
			Hidden:            hidden(r.SourceTableID) || hidden(r.TargetTableID),
			SourceCardinality: r.SourceCardinality,
			TargetCardinality: r.TargetCardinality,
		}, old[r.ID]))
	}

	depIndex := make(map[string]int)
	for _, d := range in.Dependencies {
		idx := depIndex[d.TableID]
		depIndex[d.TableID] = idx + 1
		out = append(out, carryEdge(&Edge{
			ID:           d.ID,
			Kind:         EdgeDependency,
			Source:       d.DependentTableID,
			Target:       d.TableID,
			SourceHandle: DepPrefix + d.DependentTableID,
			TargetHandle: TargetDepHandle(idx, d.TableID),
			ZIndex:       ZIndexEdge,
			Hidden:       hidden(d.DependentTableID) || hidden(d.TableID),
		}, old[d.ID]))
	}

	for _, e := range prev {
		if e.Kind == EdgeConnection {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

func carryEdge(e, prev *Edge) *Edge {
	if prev != nil {
		e.Selected = prev.Selected
		e.Animated = prev.Animated
		e.Highlighted = prev.Highlighted
		e.ZIndex = prev.ZIndex
	}
	return e
}

// Highlight applies highlight propagation: an edge is highlighted iff it is
// selected or either endpoint is a selected node. Highlighted edges are
// animated and raised.
//
// When no edge changes, edges itself is returned. Otherwise the result is
// a new slice in which unaffected edges are the same pointers as in edges.
func Highlight(edges []*Edge, selectedEdges, selectedNodes map[string]bool) []*Edge {
	var out []*Edge
	for i, e := range edges {
		if e.Kind == EdgeConnection {
			continue
		}
		on := selectedEdges[e.ID] || selectedNodes[e.Source] || selectedNodes[e.Target]
		z := ZIndexEdge
		if on {
			z = ZIndexEdgeRaised
		}
		if e.Highlighted == on && e.Animated == on && e.ZIndex == z {
			continue
		}
		if out == nil {
			out = append([]*Edge(nil), edges...)
		}
		c := *e
		c.Highlighted = on
		c.Animated = on
		c.ZIndex = z
		out[i] = &c
	}
	if out == nil {
		return edges
	}
	return out
}

// SelectedEdgeIDs returns the ids of selected edges.
func SelectedEdgeIDs(edges []*Edge) map[string]bool {
	out := make(map[string]bool)
	for _, e := range edges {
		if e.Selected {
			out[e.ID] = true
		}
	}
	return out
}
