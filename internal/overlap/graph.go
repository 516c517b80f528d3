// Package overlap tracks which tables' bounding boxes intersect.
//
// The graph is a flat, symmetric adjacency mapping: table id to the set of
// table ids whose boxes intersect it. Only tables with at least one overlap
// have an entry, so "has any overlap" is a length check.
//
// Graphs are immutable. UpdateForNode and RemoveVertex return a new Graph
// whose untouched entries are the very same Set values as in the prior
// graph; only the sets of the changed vertex and its old/new neighbors are
// reallocated. Callers can therefore compare sets by identity to skip work.
package overlap

import (
	"fmt"
	"sort"

	"github.com/yourbasic/graph"

	"github.com/roach88/erdsync/internal/diagram"
)

// Set is a set of table ids.
type Set map[string]struct{}

func (s Set) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Vertex is a visible table and its bounding box.
type Vertex struct {
	ID     string
	Bounds diagram.Rect
}

// Graph is the overlap adjacency mapping.
type Graph struct {
	adj        map[string]Set
	generation int64
}

// Empty returns a graph with no overlaps.
func Empty() *Graph {
	return &Graph{adj: map[string]Set{}}
}

// RebuildFull computes a fresh graph over visible.
//
// Vertices are sorted by their left edge and swept: once a candidate's left
// edge reaches the current vertex's right edge, no later candidate can
// intersect it, so the inner loop stops early.
func RebuildFull(visible []Vertex) *Graph {
	order := make([]Vertex, len(visible))
	copy(order, visible)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Bounds.X != order[j].Bounds.X {
			return order[i].Bounds.X < order[j].Bounds.X
		}
		return order[i].ID < order[j].ID
	})

	adj := make(map[string]Set)
	link := func(a, b string) {
		s, ok := adj[a]
		if !ok {
			s = make(Set)
			adj[a] = s
		}
		s[b] = struct{}{}
	}

	for i := 0; i < len(order); i++ {
		a := order[i]
		right := a.Bounds.X + a.Bounds.Width
		for j := i + 1; j < len(order); j++ {
			b := order[j]
			if b.Bounds.X >= right {
				break
			}
			if a.ID == b.ID {
				continue
			}
			if a.Bounds.Intersects(b.Bounds) {
				link(a.ID, b.ID)
				link(b.ID, a.ID)
			}
		}
	}
	return &Graph{adj: adj}
}

// UpdateForNode recomputes the adjacency of changed against visible and
// patches the reverse entries of its old and new neighbors.
//
// A changed vertex that is not in visible (hidden or removed) ends up with
// no overlaps. If nothing changes, prior is returned as is.
func UpdateForNode(changed Vertex, visible []Vertex, prior *Graph) *Graph {
	if prior == nil {
		prior = Empty()
	}

	present := false
	next := make(Set)
	for _, v := range visible {
		if v.ID == changed.ID {
			present = true
			continue
		}
		if changed.Bounds.Intersects(v.Bounds) {
			next[v.ID] = struct{}{}
		}
	}
	if !present {
		next = Set{}
	}

	old := prior.adj[changed.ID]
	if setsEqual(old, next) {
		return prior
	}

	adj := prior.cloneOuter()
	for id := range old {
		if next.has(id) {
			continue
		}
		stripFrom(adj, id, changed.ID)
	}
	for id := range next {
		if old.has(id) {
			continue
		}
		s := copySet(adj[id])
		s[changed.ID] = struct{}{}
		adj[id] = s
	}
	if len(next) == 0 {
		delete(adj, changed.ID)
	} else {
		adj[changed.ID] = next
	}
	return &Graph{adj: adj, generation: prior.generation + 1}
}

// RemoveVertex deletes id and strips it from every neighbor's set.
func RemoveVertex(g *Graph, id string) *Graph {
	if g == nil {
		return Empty()
	}
	old, ok := g.adj[id]
	if !ok {
		return g
	}
	adj := g.cloneOuter()
	delete(adj, id)
	for n := range old {
		stripFrom(adj, n, id)
	}
	return &Graph{adj: adj, generation: g.generation + 1}
}

func stripFrom(adj map[string]Set, vertex, id string) {
	s := adj[vertex]
	if !s.has(id) {
		return
	}
	if len(s) == 1 {
		delete(adj, vertex)
		return
	}
	c := copySet(s)
	delete(c, id)
	adj[vertex] = c
}

func (g *Graph) cloneOuter() map[string]Set {
	adj := make(map[string]Set, len(g.adj)+1)
	for k, v := range g.adj {
		adj[k] = v
	}
	return adj
}

func copySet(s Set) Set {
	c := make(Set, len(s)+1)
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

func setsEqual(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b.has(k) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one vertex overlaps another.
func (g *Graph) HasAny() bool {
	return g != nil && len(g.adj) > 0
}

// Overlaps reports whether id intersects any other visible table.
func (g *Graph) Overlaps(id string) bool {
	if g == nil {
		return false
	}
	return len(g.adj[id]) > 0
}

// Neighbors returns the ids overlapping id, sorted.
func (g *Graph) Neighbors(id string) []string {
	if g == nil {
		return nil
	}
	s, ok := g.adj[id]
	if !ok {
		return nil
	}
	return s.sorted()
}

// Set returns the raw adjacency set for id. The set must not be modified.
func (g *Graph) Set(id string) Set {
	if g == nil {
		return nil
	}
	return g.adj[id]
}

// Overlapping returns every id with a non-empty set, sorted.
func (g *Graph) Overlapping() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.adj))
	for id := range g.adj {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of overlapping vertices.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.adj)
}

// Generation counts incremental edits since the last full rebuild.
func (g *Graph) Generation() int64 {
	if g == nil {
		return 0
	}
	return g.generation
}

// Map returns a copy of the adjacency as sorted id lists.
func (g *Graph) Map() map[string][]string {
	out := make(map[string][]string, g.Len())
	if g == nil {
		return out
	}
	for id, s := range g.adj {
		out[id] = s.sorted()
	}
	return out
}

// Clusters returns the connected components of the overlap graph: groups
// of tables that are stacked on each other, directly or transitively.
// Each cluster is sorted and clusters are ordered by their first id.
func (g *Graph) Clusters() [][]string {
	ids := g.Overlapping()
	if len(ids) == 0 {
		return nil
	}
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	m := graph.New(len(ids))
	for i, id := range ids {
		for n := range g.adj[id] {
			if j, ok := index[n]; ok && i < j {
				m.AddBoth(i, j)
			}
		}
	}

	comps := graph.Components(m)
	out := make([][]string, 0, len(comps))
	for _, comp := range comps {
		cluster := make([]string, len(comp))
		for k, v := range comp {
			cluster[k] = ids[v]
		}
		sort.Strings(cluster)
		out = append(out, cluster)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Validate checks symmetry and the no-empty-entry rule.
func (g *Graph) Validate() error {
	if g == nil {
		return nil
	}
	for id, s := range g.adj {
		if len(s) == 0 {
			return fmt.Errorf("vertex %s has an empty entry", id)
		}
		for n := range s {
			if n == id {
				return fmt.Errorf("vertex %s overlaps itself", id)
			}
			if !g.adj[n].has(id) {
				return fmt.Errorf("asymmetric edge %s -> %s", id, n)
			}
		}
	}
	return nil
}
