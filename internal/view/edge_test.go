package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erdsync/internal/diagram"
)

func sampleEdgeInput() EdgeInput {
	return EdgeInput{
		Tables: []diagram.Table{
			{ID: "users", X: 0},
			{ID: "orders", X: 400},
			{ID: "items", X: 800},
			{ID: "v_orders", X: 400, IsView: true},
		},
		Relationships: []diagram.Relationship{
			{ID: "r1", SourceTableID: "orders", SourceFieldID: "o_user", TargetTableID: "users", TargetFieldID: "u_id"},
			{ID: "r2", SourceTableID: "items", SourceFieldID: "i_order", TargetTableID: "orders", TargetFieldID: "o_id"},
			{ID: "r3", SourceTableID: "items", SourceFieldID: "i_user", TargetTableID: "users", TargetFieldID: "u_id"},
		},
		Dependencies: []diagram.Dependency{
			{ID: "d1", TableID: "orders", DependentTableID: "v_orders"},
			{ID: "d2", TableID: "users", DependentTableID: "v_orders"},
			{ID: "d3", TableID: "orders", DependentTableID: "items"},
		},
	}
}

func edgesByID(edges []*Edge) map[string]*Edge {
	out := make(map[string]*Edge, len(edges))
	for _, e := range edges {
		out[e.ID] = e
	}
	return out
}

func TestBuildEdges_Handles(t *testing.T) {
	m := edgesByID(BuildEdges(sampleEdgeInput(), nil))

	assert.Equal(t, "left_rel_o_user", m["r1"].SourceHandle)
	assert.Equal(t, "target_rel_0_u_id", m["r1"].TargetHandle)
	assert.Equal(t, "target_rel_0_o_id", m["r2"].TargetHandle)
	assert.Equal(t, "target_rel_1_u_id", m["r3"].TargetHandle)

	assert.Equal(t, "v_orders", m["d1"].Source)
	assert.Equal(t, "orders", m["d1"].Target)
	assert.Equal(t, "top_dep_v_orders", m["d1"].SourceHandle)
	assert.Equal(t, "target_dep_0_orders", m["d1"].TargetHandle)
	assert.Equal(t, "target_dep_0_users", m["d2"].TargetHandle)
	assert.Equal(t, "target_dep_1_orders", m["d3"].TargetHandle)
}

func TestBuildEdges_SourceSide(t *testing.T) {
	in := sampleEdgeInput()
	in.Relationships = []diagram.Relationship{
		{ID: "r", SourceTableID: "users", SourceFieldID: "f", TargetTableID: "orders", TargetFieldID: "g"},
	}
	e := BuildEdges(in, nil)
	require.Len(t, e, 4)
	assert.Equal(t, "right_rel_f", e[0].SourceHandle)
}

func TestBuildEdges_CarriesSelection(t *testing.T) {
	in := sampleEdgeInput()
	prev := BuildEdges(in, nil)
	prev[0].Selected = true
	prev[1].Animated = true
	prev = append(prev, &Edge{ID: ConnectionEdgeID, Kind: EdgeConnection})

	in.Relationships = in.Relationships[:2]
	next := BuildEdges(in, prev)
	m := edgesByID(next)
	assert.True(t, m["r1"].Selected)
	assert.True(t, m["r2"].Animated)
	assert.NotContains(t, m, "r3")
	assert.False(t, m["d1"].Selected)
	assert.Contains(t, m, ConnectionEdgeID)
}

func TestBuildEdges_HiddenEndpoints(t *testing.T) {
	in := sampleEdgeInput()
	in.NodeHidden = func(id string) bool { return id == "v_orders" }
	m := edgesByID(BuildEdges(in, nil))

	assert.True(t, m["d1"].Hidden)
	assert.True(t, m["d2"].Hidden)
	assert.False(t, m["d3"].Hidden)
	assert.False(t, m["r1"].Hidden)
}

func TestBuildEdges_Deterministic(t *testing.T) {
	in := sampleEdgeInput()
	assert.Equal(t, BuildEdges(in, nil), BuildEdges(in, nil))
}

func TestHighlight_SelectAndDeselect(t *testing.T) {
	edges := BuildEdges(sampleEdgeInput(), nil)

	lit := Highlight(edges, nil, map[string]bool{"users": true})
	m := edgesByID(lit)
	for _, id := range []string{"r1", "r3", "d2"} {
		assert.True(t, m[id].Highlighted, id)
		assert.True(t, m[id].Animated, id)
		assert.Equal(t, ZIndexEdgeRaised, m[id].ZIndex, id)
	}
	for i, e := range lit {
		switch e.ID {
		case "r1", "r3", "d2":
			assert.NotSame(t, edges[i], e)
		default:
			assert.Same(t, edges[i], e, e.ID)
			assert.False(t, e.Highlighted)
		}
	}

	off := Highlight(lit, nil, nil)
	for i, e := range off {
		assert.False(t, e.Highlighted)
		assert.False(t, e.Animated)
		assert.Equal(t, ZIndexEdge, e.ZIndex)
		if e.ID != "r1" && e.ID != "r3" && e.ID != "d2" {
			assert.Same(t, lit[i], e)
		}
	}
}

func TestHighlight_IdentityWhenUnchanged(t *testing.T) {
	edges := BuildEdges(sampleEdgeInput(), nil)
	out := Highlight(edges, nil, map[string]bool{"nobody": true})
	require.NotEmpty(t, out)
	assert.Same(t, &edges[0], &out[0], "slice must be returned by identity")

	lit := Highlight(edges, map[string]bool{"r2": true}, nil)
	again := Highlight(lit, map[string]bool{"r2": true}, nil)
	assert.Same(t, &lit[0], &again[0])
}

func TestHandleFieldID(t *testing.T) {
	assert.Equal(t, "f1", HandleFieldID("left_rel_f1"))
	assert.Equal(t, "f_2", HandleFieldID("right_rel_f_2"))
	assert.Equal(t, "f_3", HandleFieldID("target_rel_4_f_3"))
	assert.Equal(t, "", HandleFieldID("top_dep_users"))
	assert.True(t, IsDependencyHandle("top_dep_users"))
	assert.False(t, IsDependencyHandle("left_rel_users"))
}
