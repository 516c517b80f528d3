package engine

import (
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/filter"
	"github.com/roach88/erdsync/internal/overlap"
	"github.com/roach88/erdsync/internal/view"
)

func (e *Engine) viewInput() view.Input {
	in := view.Input{
		Tables:        e.model.Tables(),
		Areas:         e.model.Areas(),
		Notes:         e.model.Notes(),
		Filter:        e.filter,
		FilterFunc:    e.filterFunc,
		FilterLoading: e.filterLoading,
		DefaultSchema: e.defaultSchema,
		ShowViews:     e.showViews,
		Overlap:       e.graph,
		Pulse:         e.pulse.Active(),
	}
	if e.force != nil {
		in.ForceShow = e.force.Contains
	}
	return in
}

func (e *Engine) nodeKey() view.NodeKey {
	return view.NodeKey{
		Versions:      e.model.Versions(),
		FilterVersion: e.filterVersion,
		FilterLoading: e.filterLoading,
		DefaultSchema: e.defaultSchema,
		ShowViews:     e.showViews,
		ForceVersion:  e.forceVersion,
		Overlap:       e.graph,
		Pulse:         e.pulse.Active(),
	}
}

// refresh re-derives nodes and edges after a mutation batch. Unchanged
// inputs leave both slices untouched.
func (e *Engine) refresh() {
	if e.closed {
		return
	}
	nk := e.nodeKey()
	e.nodes, _ = e.projector.Nodes(nk, e.viewInput(), e.nodes)

	v := e.model.Versions()
	ek := view.EdgeKey{
		Relationships: v.Relationships,
		Dependencies:  v.Dependencies,
		Tables:        v.Tables,
		Nodes:         nk,
	}
	edges, _ := e.projector.Edges(ek, view.EdgeInput{
		Relationships: e.model.Relationships(),
		Dependencies:  e.model.Dependencies(),
		Tables:        e.model.Tables(),
		NodeHidden:    e.hiddenLookup(),
	}, e.edges)
	e.edges = view.Highlight(edges, view.SelectedEdgeIDs(edges), view.SelectedIDs(e.nodes))
}

func (e *Engine) hiddenLookup() func(string) bool {
	hidden := make(map[string]bool)
	for _, n := range e.nodes {
		if n.Hidden {
			hidden[n.ID] = true
		}
	}
	return func(id string) bool { return hidden[id] }
}

// visibleVertices returns overlap vertices for every table that is not
// hidden, at its domain position.
func (e *Engine) visibleVertices() []overlap.Vertex {
	in := e.viewInput()
	tables := e.model.Tables()
	out := make([]overlap.Vertex, 0, len(tables))
	for _, t := range tables {
		if in.TableHidden(t) {
			continue
		}
		out = append(out, overlap.Vertex{ID: t.ID, Bounds: t.Bounds()})
	}
	return out
}

// rebuildOverlap replaces the graph with a full rebuild. Overlaps that are
// present after the rebuild start the highlight pulse.
func (e *Engine) rebuildOverlap() {
	e.graph = overlap.RebuildFull(e.visibleVertices())
	if e.graph.HasAny() {
		e.pulse.Start()
	}
}

// updateOverlap recomputes the entries of the given tables. A table that is
// gone or hidden is removed from the graph. The highlight pulse starts when
// an updated table ends up overlapping another.
func (e *Engine) updateOverlap(ids ...string) {
	visible := e.visibleVertices()
	byID := make(map[string]overlap.Vertex, len(visible))
	for _, v := range visible {
		byID[v.ID] = v
	}

	g := e.graph
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			g = overlap.RemoveVertex(g, id)
			continue
		}
		g = overlap.UpdateForNode(v, visible, g)
	}
	if g == e.graph {
		return
	}
	e.graph = g
	for _, id := range ids {
		if g.Overlaps(id) {
			e.pulse.Start()
			break
		}
	}
}

// SetFilter replaces the visibility filter. Nil shows everything.
func (e *Engine) SetFilter(f *filter.Filter) {
	e.filter = f
	e.filterVersion++
	e.visibilityChanged()
}

// SetFilterLoading marks the filter as loading; all tables and areas are
// hidden until it is cleared.
func (e *Engine) SetFilterLoading(loading bool) {
	if e.filterLoading == loading {
		return
	}
	e.filterLoading = loading
	e.visibilityChanged()
}

// SetShowViews toggles the visibility of view tables.
func (e *Engine) SetShowViews(show bool) {
	if e.showViews == show {
		return
	}
	e.showViews = show
	e.visibilityChanged()
}

// SetDefaultSchema sets the schema assumed for schema-less tables.
func (e *Engine) SetDefaultSchema(schema string) {
	if e.defaultSchema == schema {
		return
	}
	e.defaultSchema = schema
	e.visibilityChanged()
}

// SetForceShow replaces the set of tables exempt from filtering.
func (e *Engine) SetForceShow(ids ...string) {
	e.force = filter.NewForceShowSet(ids...)
	e.forceVersion++
	e.visibilityChanged()
}

// SetReadOnly toggles read-only mode.
func (e *Engine) SetReadOnly(ro bool) { e.readOnly = ro }

// Filter returns the current filter.
func (e *Engine) Filter() *filter.Filter { return e.filter }

func (e *Engine) visibilityChanged() {
	e.rebuildOverlap()
	e.refresh()
}

// reassignParents recomputes parentAreaId for every table and commits the
// tables whose resolved parent changed, outside the undo history.
func (e *Engine) reassignParents() []string {
	areas := e.model.Areas()
	return e.model.UpdateTables(func(t *diagram.Table) bool {
		p := diagram.ContainingArea(t.Bounds(), areas)
		if p == t.ParentAreaID {
			return false
		}
		t.ParentAreaID = p
		return true
	}, diagram.WithoutHistory())
}
