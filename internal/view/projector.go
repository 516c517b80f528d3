package view

import (
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/overlap"
)

// NodeKey identifies the inputs of a node projection. Two projections with
// equal keys produce deeply-equal output.
type NodeKey struct {
	Versions      diagram.Versions
	FilterVersion int64
	FilterLoading bool
	DefaultSchema string
	ShowViews     bool
	ForceVersion  int64
	Overlap       *overlap.Graph
	Pulse         bool
}

// EdgeKey identifies the inputs of an edge build.
type EdgeKey struct {
	Relationships int64
	Dependencies  int64
	Tables        int64
	Nodes         NodeKey
}

// Projector memoizes node and edge projection by input key.
//
// Projector is not safe for concurrent use.
type Projector struct {
	nodeKey NodeKey
	edgeKey EdgeKey
	valid   bool
	evalid  bool

	nodeRuns int
	edgeRuns int
}

// NewProjector creates an empty projector.
func NewProjector() *Projector {
	return &Projector{}
}

// Nodes returns prev unchanged when key matches the last projection, and
// otherwise re-projects carrying visual state over from prev. The second
// result reports whether a projection ran.
func (p *Projector) Nodes(key NodeKey, in Input, prev []*Node) ([]*Node, bool) {
	if p.valid && key == p.nodeKey {
		return prev, false
	}
	p.nodeKey = key
	p.valid = true
	p.nodeRuns++
	return ProjectNodes(in, prev), true
}

// Edges is the edge counterpart of Nodes.
func (p *Projector) Edges(key EdgeKey, in EdgeInput, prev []*Edge) ([]*Edge, bool) {
	if p.evalid && key == p.edgeKey {
		return prev, false
	}
	p.edgeKey = key
	p.evalid = true
	p.edgeRuns++
	return BuildEdges(in, prev), true
}

// Invalidate forces the next Nodes and Edges calls to re-project.
func (p *Projector) Invalidate() {
	p.valid = false
	p.evalid = false
}

// Runs reports how many node and edge projections have executed.
func (p *Projector) Runs() (nodes, edges int) {
	return p.nodeRuns, p.edgeRuns
}
