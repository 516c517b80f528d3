package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erdsync/internal/bus"
)

func sampleDiagram() Diagram {
	return Diagram{
		ID:           "d1",
		Name:         "shop",
		DatabaseType: "postgresql",
		Tables: []Table{
			{ID: "users", Name: "users", Schema: "public", X: 0, Y: 0, Fields: []Field{
				{ID: "users.id", Name: "id", Type: "bigint", PrimaryKey: true},
				{ID: "users.email", Name: "email", Type: "text"},
			}},
			{ID: "orders", Name: "orders", Schema: "public", X: 400, Y: 0, ParentAreaID: "a1", Fields: []Field{
				{ID: "orders.id", Name: "id", Type: "bigint", PrimaryKey: true},
				{ID: "orders.user_id", Name: "user_id", Type: "bigint"},
			}},
			{ID: "v_orders", Name: "v_orders", Schema: "public", X: 800, Y: 0, IsView: true, Fields: []Field{
				{ID: "v_orders.id", Name: "id", Type: "bigint"},
			}},
		},
		Relationships: []Relationship{
			{ID: "r1", Name: "orders_user_id_fk", SourceTableID: "orders", SourceFieldID: "orders.user_id",
				TargetTableID: "users", TargetFieldID: "users.id",
				SourceCardinality: CardinalityMany, TargetCardinality: CardinalityOne},
		},
		Dependencies: []Dependency{
			{ID: "dep1", TableID: "orders", DependentTableID: "v_orders"},
		},
		Areas: []Area{{ID: "a1", Name: "sales", X: 350, Y: -50, Width: 400, Height: 300}},
		Notes: []Note{{ID: "n1", Content: "todo", X: 0, Y: 500, Width: 100, Height: 100}},
	}
}

type recordingPublisher struct {
	events []bus.Event
}

func (p *recordingPublisher) Publish(ev bus.Event) { p.events = append(p.events, ev) }

func (p *recordingPublisher) types() []bus.EventType {
	out := make([]bus.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func TestModel_LoadAndSnapshot(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewModel(WithPublisher(pub))
	d := sampleDiagram()

	m.Load(d)

	snap := m.Snapshot()
	assert.Equal(t, d, snap)
	assert.Equal(t, []bus.EventType{bus.EventLoadDiagram}, pub.types())
	assert.Empty(t, m.History(), "load is not recorded to history")

	// Snapshot is a deep copy
	snap.Tables[0].Fields[0].Name = "mutated"
	got, _ := m.Table("users")
	assert.Equal(t, "id", got.Fields[0].Name)
}

func TestModel_UpdateTables_CopyOnWrite(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())

	before := m.Tables()
	v := m.Versions().Tables

	ids := m.UpdateTables(func(tb *Table) bool {
		if tb.ID != "users" {
			return false
		}
		tb.X = 10
		return true
	})

	assert.Equal(t, []string{"users"}, ids)
	assert.Equal(t, 0.0, before[0].X, "previously returned slice is never written")
	assert.Equal(t, 10.0, m.Tables()[0].X)
	assert.Greater(t, m.Versions().Tables, v)
}

func TestModel_UpdateTables_NoChangeKeepsVersion(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())
	v := m.Versions().Tables

	ids := m.UpdateTables(func(*Table) bool { return false })

	assert.Nil(t, ids)
	assert.Equal(t, v, m.Versions().Tables)
}

func TestModel_UpdateTables_PublishesOnlyGeometryChanges(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewModel(WithPublisher(pub))
	m.Load(sampleDiagram())
	pub.events = nil

	m.UpdateTables(func(tb *Table) bool {
		switch tb.ID {
		case "users":
			tb.X += 5
			return true
		case "orders":
			tb.ParentAreaID = ""
			return true
		}
		return false
	}, WithoutHistory())

	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.EventUpdateTable, pub.events[0].Type)
	assert.Equal(t, "users", pub.events[0].TableID)
	assert.Empty(t, m.History())
}

func TestModel_RemoveTables_CascadesEdges(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewModel(WithPublisher(pub))
	m.Load(sampleDiagram())
	pub.events = nil

	removed := m.RemoveTables([]string{"orders", "missing"})

	assert.Equal(t, []string{"orders"}, removed)
	assert.Empty(t, m.Relationships())
	assert.Empty(t, m.Dependencies())
	assert.Equal(t, []bus.EventType{bus.EventRemoveTables}, pub.types())

	var kinds []ChangeKind
	for _, c := range m.History() {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []ChangeKind{ChangeTablesRemoved, ChangeRelationshipsRemoved, ChangeDependenciesRemoved}, kinds)
}

func TestModel_RemoveTables_UnknownIsNoop(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())
	v := m.Versions()

	assert.Nil(t, m.RemoveTables([]string{"nope"}))
	assert.Equal(t, v, m.Versions())
}

func TestModel_RemoveAreas_ClearsParentButKeepsTables(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())

	removed := m.RemoveAreas([]string{"a1"})

	assert.Equal(t, []string{"a1"}, removed)
	assert.Empty(t, m.Areas())
	orders, ok := m.Table("orders")
	require.True(t, ok)
	assert.Equal(t, "", orders.ParentAreaID)
	assert.Len(t, m.Tables(), 3)
}

func TestModel_AddTables_RejectsDuplicates(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())

	err := m.AddTables([]Table{{ID: "users"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, m.Tables(), 3)
}

func TestModel_AddField_ChangesHeight(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewModel(WithPublisher(pub))
	m.Load(sampleDiagram())
	pub.events = nil

	before, _ := m.Table("users")
	require.NoError(t, m.AddField("users", Field{ID: "users.name", Name: "name", Type: "text"}))
	after, _ := m.Table("users")

	assert.Equal(t, before.Height()+TableFieldHeight, after.Height())
	assert.Equal(t, []bus.EventType{bus.EventAddField}, pub.types())
	assert.ErrorIs(t, m.AddField("missing", Field{ID: "x"}), ErrNotFound)
}

func TestModel_RemoveField_DropsAttachedRelationships(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())

	require.NoError(t, m.RemoveField("users", "users.id"))

	assert.Empty(t, m.Relationships())
	users, _ := m.Table("users")
	assert.Len(t, users.Fields, 1)
	assert.ErrorIs(t, m.RemoveField("users", "users.id"), ErrNotFound)
}

func TestModel_Observe(t *testing.T) {
	m := NewModel()
	var got []ChangeKind
	cancel := m.Observe(func(c Change) { got = append(got, c.Kind) })

	m.Load(sampleDiagram())
	require.NoError(t, m.AddNote(Note{ID: "n2"}))
	cancel()
	m.RemoveNotes([]string{"n2"})

	assert.Equal(t, []ChangeKind{ChangeLoad, ChangeNotesAdded}, got)
}

func TestChange_Persistable(t *testing.T) {
	assert.False(t, Change{Kind: ChangeLoad}.Persistable())
	assert.True(t, Change{Kind: ChangeTablesUpdated}.Persistable())
	assert.True(t, Change{Kind: ChangeCustomTypes}.Persistable())
}

func TestModel_UpdateAreasAndNotes(t *testing.T) {
	m := NewModel()
	m.Load(sampleDiagram())

	ids := m.UpdateAreas(func(a *Area) bool { a.Width = 999; return true })
	assert.Equal(t, []string{"a1"}, ids)
	a, _ := m.Area("a1")
	assert.Equal(t, 999.0, a.Width)

	ids = m.UpdateNotes(func(n *Note) bool { return false })
	assert.Nil(t, ids)
}
