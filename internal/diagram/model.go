package diagram

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/erdsync/internal/bus"
)

var (
	// ErrNotFound is returned when an action references an id that is not
	// present in the model.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateID is returned when an added entity reuses an existing id.
	ErrDuplicateID = errors.New("duplicate id")
)

// ChangeKind classifies a committed mutation.
type ChangeKind string

const (
	ChangeLoad                 ChangeKind = "load"
	ChangeMetadata             ChangeKind = "metadata"
	ChangeTablesAdded          ChangeKind = "tables_added"
	ChangeTablesRemoved        ChangeKind = "tables_removed"
	ChangeTablesUpdated        ChangeKind = "tables_updated"
	ChangeFieldAdded           ChangeKind = "field_added"
	ChangeFieldRemoved         ChangeKind = "field_removed"
	ChangeRelationshipsAdded   ChangeKind = "relationships_added"
	ChangeRelationshipsRemoved ChangeKind = "relationships_removed"
	ChangeDependenciesAdded    ChangeKind = "dependencies_added"
	ChangeDependenciesRemoved  ChangeKind = "dependencies_removed"
	ChangeAreasAdded           ChangeKind = "areas_added"
	ChangeAreasRemoved         ChangeKind = "areas_removed"
	ChangeAreasUpdated         ChangeKind = "areas_updated"
	ChangeNotesAdded           ChangeKind = "notes_added"
	ChangeNotesRemoved         ChangeKind = "notes_removed"
	ChangeNotesUpdated         ChangeKind = "notes_updated"
	ChangeCustomTypes          ChangeKind = "custom_types"
)

// Change describes one committed mutation.
type Change struct {
	Kind          ChangeKind
	IDs           []string
	RecordHistory bool
	Seq           int64
}

// Persistable reports whether the change must be written to the backing
// store. Loading a diagram is the only mutation that is not.
func (c Change) Persistable() bool {
	return c.Kind != ChangeLoad
}

// Observer receives every committed Change.
type Observer func(Change)

// Versions holds the last clock value at which each collection changed.
type Versions struct {
	Meta          int64
	Tables        int64
	Relationships int64
	Dependencies  int64
	Areas         int64
	Notes         int64
	CustomTypes   int64
}

// MutationOption adjusts a single action call.
type MutationOption func(*mutation)

type mutation struct {
	recordHistory bool
}

// WithoutHistory excludes the mutation from History(). Used for derived
// mutations that the user did not author.
func WithoutHistory() MutationOption {
	return func(m *mutation) { m.recordHistory = false }
}

// inherit propagates the options of an outer action to a cascaded one.
func inherit(mut mutation) MutationOption {
	return func(m *mutation) { *m = mut }
}

func applyOptions(opts []MutationOption) mutation {
	m := mutation{recordHistory: true}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Publisher is the subset of the event bus the model publishes into.
type Publisher interface {
	Publish(bus.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(bus.Event) {}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithPublisher routes structural events into p.
func WithPublisher(p Publisher) ModelOption {
	return func(m *Model) {
		if p != nil {
			m.publisher = p
		}
	}
}

// Model is the canonical domain store.
//
// Model is not safe for concurrent mutation. It is owned by the engine's
// single writer loop.
type Model struct {
	clock     *Clock
	publisher Publisher

	id           string
	name         string
	databaseType string
	createdAt    time.Time
	updatedAt    time.Time

	tables        []Table
	relationships []Relationship
	dependencies  []Dependency
	areas         []Area
	notes         []Note
	customTypes   []CustomType

	versions Versions
	history  []Change

	observerSeq int
	observers   []observerEntry
}

type observerEntry struct {
	id int
	fn Observer
}

// NewModel creates an empty model.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		clock:     NewClock(),
		publisher: noopPublisher{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe registers fn and returns a function that removes it.
func (m *Model) Observe(fn Observer) (cancel func()) {
	m.observerSeq++
	id := m.observerSeq
	m.observers = append(m.observers, observerEntry{id: id, fn: fn})
	return func() {
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

func (m *Model) commit(kind ChangeKind, ids []string, mut mutation) Change {
	c := Change{
		Kind:          kind,
		IDs:           ids,
		RecordHistory: mut.recordHistory,
		Seq:           m.clock.Current(),
	}
	if c.RecordHistory {
		m.history = append(m.history, c)
	}
	slog.Debug("model change",
		"kind", kind,
		"ids", len(ids),
		"history", mut.recordHistory,
		"seq", c.Seq,
	)
	for _, o := range append([]observerEntry(nil), m.observers...) {
		o.fn(c)
	}
	return c
}

// Load replaces the whole model with d. History is reset.
func (m *Model) Load(d Diagram) {
	d = d.Clone()
	seq := m.clock.Next()

	m.id = d.ID
	m.name = d.Name
	m.databaseType = d.DatabaseType
	m.createdAt = d.CreatedAt
	m.updatedAt = d.UpdatedAt
	m.tables = d.Tables
	m.relationships = d.Relationships
	m.dependencies = d.Dependencies
	m.areas = d.Areas
	m.notes = d.Notes
	m.customTypes = d.CustomTypes
	m.versions = Versions{
		Meta:          seq,
		Tables:        seq,
		Relationships: seq,
		Dependencies:  seq,
		Areas:         seq,
		Notes:         seq,
		CustomTypes:   seq,
	}
	m.history = nil

	m.commit(ChangeLoad, []string{d.ID}, mutation{recordHistory: false})
	m.publisher.Publish(bus.Event{Type: bus.EventLoadDiagram, DiagramID: d.ID})
}

// Snapshot returns a deep copy of the current diagram.
func (m *Model) Snapshot() Diagram {
	d := Diagram{
		ID:            m.id,
		Name:          m.name,
		DatabaseType:  m.databaseType,
		Tables:        m.tables,
		Relationships: m.relationships,
		Dependencies:  m.dependencies,
		Areas:         m.areas,
		Notes:         m.notes,
		CustomTypes:   m.customTypes,
		CreatedAt:     m.createdAt,
		UpdatedAt:     m.updatedAt,
	}
	return d.Clone()
}

// ID returns the diagram id.
func (m *Model) ID() string { return m.id }

// Name returns the diagram name.
func (m *Model) Name() string { return m.name }

// DatabaseType returns the diagram dialect.
func (m *Model) DatabaseType() string { return m.databaseType }

// Versions returns the per-collection versions.
func (m *Model) Versions() Versions { return m.versions }

// Seq returns the current clock value.
func (m *Model) Seq() int64 { return m.clock.Current() }

// History returns the mutations recorded to history since the last Load.
func (m *Model) History() []Change {
	return append([]Change(nil), m.history...)
}

// Tables returns the table list. The slice must not be modified.
func (m *Model) Tables() []Table { return m.tables }

// Relationships returns the relationship list. The slice must not be modified.
func (m *Model) Relationships() []Relationship { return m.relationships }

// Dependencies returns the dependency list. The slice must not be modified.
func (m *Model) Dependencies() []Dependency { return m.dependencies }

// Areas returns the area list. The slice must not be modified.
func (m *Model) Areas() []Area { return m.areas }

// Notes returns the note list. The slice must not be modified.
func (m *Model) Notes() []Note { return m.notes }

// CustomTypes returns the custom type list. The slice must not be modified.
func (m *Model) CustomTypes() []CustomType { return m.customTypes }

// Table looks up a table by id.
func (m *Model) Table(id string) (Table, bool) {
	for _, t := range m.tables {
		if t.ID == id {
			return t, true
		}
	}
	return Table{}, false
}

// Area looks up an area by id.
func (m *Model) Area(id string) (Area, bool) {
	for _, a := range m.areas {
		if a.ID == id {
			return a, true
		}
	}
	return Area{}, false
}

// Note looks up a note by id.
func (m *Model) Note(id string) (Note, bool) {
	for _, n := range m.notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// Relationship looks up a relationship by id.
func (m *Model) Relationship(id string) (Relationship, bool) {
	for _, r := range m.relationships {
		if r.ID == id {
			return r, true
		}
	}
	return Relationship{}, false
}

// Dependency looks up a dependency by id.
func (m *Model) Dependency(id string) (Dependency, bool) {
	for _, d := range m.dependencies {
		if d.ID == id {
			return d, true
		}
	}
	return Dependency{}, false
}

// Rename changes the diagram name.
func (m *Model) Rename(name string, opts ...MutationOption) {
	m.name = name
	m.versions.Meta = m.clock.Next()
	m.commit(ChangeMetadata, []string{m.id}, applyOptions(opts))
}

// AddTables appends tables. Ids must be unique.
func (m *Model) AddTables(tables []Table, opts ...MutationOption) error {
	if len(tables) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(m.tables)+len(tables))
	for _, t := range m.tables {
		seen[t.ID] = true
	}
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		if seen[t.ID] {
			return fmt.Errorf("add table %s: %w", t.ID, ErrDuplicateID)
		}
		seen[t.ID] = true
		ids = append(ids, t.ID)
	}

	next := make([]Table, 0, len(m.tables)+len(tables))
	next = append(next, m.tables...)
	next = append(next, cloneTables(tables)...)
	m.tables = next
	m.versions.Tables = m.clock.Next()

	m.commit(ChangeTablesAdded, ids, applyOptions(opts))
	m.publisher.Publish(bus.Event{Type: bus.EventAddTables, DiagramID: m.id, TableIDs: ids})
	return nil
}

// RemoveTables removes tables and every relationship and dependency that
// references them. Unknown ids are ignored. Returns the removed table ids.
func (m *Model) RemoveTables(ids []string, opts ...MutationOption) []string {
	mut := applyOptions(opts)
	drop := toSet(ids)

	var removed []string
	next := make([]Table, 0, len(m.tables))
	for _, t := range m.tables {
		if drop[t.ID] {
			removed = append(removed, t.ID)
			continue
		}
		next = append(next, t)
	}
	if len(removed) == 0 {
		return nil
	}
	gone := toSet(removed)

	m.tables = next
	m.versions.Tables = m.clock.Next()
	m.commit(ChangeTablesRemoved, removed, mut)

	var relIDs []string
	for _, r := range m.relationships {
		if gone[r.SourceTableID] || gone[r.TargetTableID] {
			relIDs = append(relIDs, r.ID)
		}
	}
	m.removeRelationships(relIDs, mut)

	var depIDs []string
	for _, d := range m.dependencies {
		if gone[d.TableID] || gone[d.DependentTableID] {
			depIDs = append(depIDs, d.ID)
		}
	}
	m.removeDependencies(depIDs, mut)

	m.publisher.Publish(bus.Event{Type: bus.EventRemoveTables, DiagramID: m.id, TableIDs: removed})
	return removed
}

// UpdateTables calls fn with a private copy of every table. Tables for
// which fn returns true are committed in one change. Returns the ids of the
// modified tables in list order.
//
// An update_table event is published for each modified table whose bounding
// box changed.
func (m *Model) UpdateTables(fn func(t *Table) bool, opts ...MutationOption) []string {
	var (
		next     []Table
		ids      []string
		geometry []string
	)
	for i, t := range m.tables {
		c := t
		c.Fields = cloneSlice(t.Fields)
		if !fn(&c) {
			continue
		}
		if next == nil {
			next = append([]Table(nil), m.tables...)
		}
		next[i] = c
		ids = append(ids, c.ID)
		if c.Bounds() != t.Bounds() {
			geometry = append(geometry, c.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	m.tables = next
	m.versions.Tables = m.clock.Next()
	m.commit(ChangeTablesUpdated, ids, applyOptions(opts))
	for _, id := range geometry {
		m.publisher.Publish(bus.Event{Type: bus.EventUpdateTable, DiagramID: m.id, TableID: id})
	}
	return ids
}

// UpdateTable applies fn to one table.
func (m *Model) UpdateTable(id string, fn func(t *Table), opts ...MutationOption) error {
	ids := m.UpdateTables(func(t *Table) bool {
		if t.ID != id {
			return false
		}
		fn(t)
		return true
	}, opts...)
	if len(ids) == 0 {
		return fmt.Errorf("update table %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddField appends a field to a table.
func (m *Model) AddField(tableID string, f Field, opts ...MutationOption) error {
	idx := m.tableIndex(tableID)
	if idx < 0 {
		return fmt.Errorf("add field to %s: %w", tableID, ErrNotFound)
	}
	if _, ok := m.tables[idx].Field(f.ID); ok {
		return fmt.Errorf("add field %s: %w", f.ID, ErrDuplicateID)
	}

	next := append([]Table(nil), m.tables...)
	t := next[idx]
	t.Fields = append(cloneSlice(t.Fields), f)
	next[idx] = t
	m.tables = next
	m.versions.Tables = m.clock.Next()

	m.commit(ChangeFieldAdded, []string{tableID, f.ID}, applyOptions(opts))
	m.publisher.Publish(bus.Event{Type: bus.EventAddField, DiagramID: m.id, TableID: tableID, FieldID: f.ID})
	return nil
}

// RemoveField removes a field and every relationship attached to it.
func (m *Model) RemoveField(tableID, fieldID string, opts ...MutationOption) error {
	idx := m.tableIndex(tableID)
	if idx < 0 {
		return fmt.Errorf("remove field from %s: %w", tableID, ErrNotFound)
	}
	if _, ok := m.tables[idx].Field(fieldID); !ok {
		return fmt.Errorf("remove field %s: %w", fieldID, ErrNotFound)
	}
	mut := applyOptions(opts)

	next := append([]Table(nil), m.tables...)
	t := next[idx]
	fields := make([]Field, 0, len(t.Fields)-1)
	for _, f := range t.Fields {
		if f.ID != fieldID {
			fields = append(fields, f)
		}
	}
	t.Fields = fields
	next[idx] = t
	m.tables = next
	m.versions.Tables = m.clock.Next()
	m.commit(ChangeFieldRemoved, []string{tableID, fieldID}, mut)

	var relIDs []string
	for _, r := range m.relationships {
		if (r.SourceTableID == tableID && r.SourceFieldID == fieldID) ||
			(r.TargetTableID == tableID && r.TargetFieldID == fieldID) {
			relIDs = append(relIDs, r.ID)
		}
	}
	m.removeRelationships(relIDs, mut)

	m.publisher.Publish(bus.Event{Type: bus.EventRemoveField, DiagramID: m.id, TableID: tableID, FieldID: fieldID})
	return nil
}

// AddRelationship appends a relationship.
func (m *Model) AddRelationship(r Relationship, opts ...MutationOption) error {
	if _, ok := m.Relationship(r.ID); ok {
		return fmt.Errorf("add relationship %s: %w", r.ID, ErrDuplicateID)
	}
	next := make([]Relationship, 0, len(m.relationships)+1)
	next = append(append(next, m.relationships...), r)
	m.relationships = next
	m.versions.Relationships = m.clock.Next()
	m.commit(ChangeRelationshipsAdded, []string{r.ID}, applyOptions(opts))
	return nil
}

// RemoveRelationships removes relationships by id. Unknown ids are ignored.
func (m *Model) RemoveRelationships(ids []string, opts ...MutationOption) []string {
	return m.removeRelationships(ids, applyOptions(opts))
}

func (m *Model) removeRelationships(ids []string, mut mutation) []string {
	if len(ids) == 0 {
		return nil
	}
	drop := toSet(ids)
	var removed []string
	next := make([]Relationship, 0, len(m.relationships))
	for _, r := range m.relationships {
		if drop[r.ID] {
			removed = append(removed, r.ID)
			continue
		}
		next = append(next, r)
	}
	if len(removed) == 0 {
		return nil
	}
	m.relationships = next
	m.versions.Relationships = m.clock.Next()
	m.commit(ChangeRelationshipsRemoved, removed, mut)
	return removed
}

// AddDependency appends a dependency.
func (m *Model) AddDependency(d Dependency, opts ...MutationOption) error {
	if _, ok := m.Dependency(d.ID); ok {
		return fmt.Errorf("add dependency %s: %w", d.ID, ErrDuplicateID)
	}
	next := make([]Dependency, 0, len(m.dependencies)+1)
	next = append(append(next, m.dependencies...), d)
	m.dependencies = next
	m.versions.Dependencies = m.clock.Next()
	m.commit(ChangeDependenciesAdded, []string{d.ID}, applyOptions(opts))
	return nil
}

// RemoveDependencies removes dependencies by id. Unknown ids are ignored.
func (m *Model) RemoveDependencies(ids []string, opts ...MutationOption) []string {
	return m.removeDependencies(ids, applyOptions(opts))
}

func (m *Model) removeDependencies(ids []string, mut mutation) []string {
	if len(ids) == 0 {
		return nil
	}
	drop := toSet(ids)
	var removed []string
	next := make([]Dependency, 0, len(m.dependencies))
	for _, d := range m.dependencies {
		if drop[d.ID] {
			removed = append(removed, d.ID)
			continue
		}
		next = append(next, d)
	}
	if len(removed) == 0 {
		return nil
	}
	m.dependencies = next
	m.versions.Dependencies = m.clock.Next()
	m.commit(ChangeDependenciesRemoved, removed, mut)
	return removed
}

// AddArea appends an area.
func (m *Model) AddArea(a Area, opts ...MutationOption) error {
	if _, ok := m.Area(a.ID); ok {
		return fmt.Errorf("add area %s: %w", a.ID, ErrDuplicateID)
	}
	next := make([]Area, 0, len(m.areas)+1)
	next = append(append(next, m.areas...), a)
	m.areas = next
	m.versions.Areas = m.clock.Next()
	m.commit(ChangeAreasAdded, []string{a.ID}, applyOptions(opts))
	return nil
}

// RemoveAreas removes areas and clears parentAreaId on their member tables.
// Member tables themselves are kept.
func (m *Model) RemoveAreas(ids []string, opts ...MutationOption) []string {
	mut := applyOptions(opts)
	drop := toSet(ids)
	var removed []string
	next := make([]Area, 0, len(m.areas))
	for _, a := range m.areas {
		if drop[a.ID] {
			removed = append(removed, a.ID)
			continue
		}
		next = append(next, a)
	}
	if len(removed) == 0 {
		return nil
	}
	m.areas = next
	m.versions.Areas = m.clock.Next()
	m.commit(ChangeAreasRemoved, removed, mut)

	gone := toSet(removed)
	m.UpdateTables(func(t *Table) bool {
		if t.ParentAreaID != "" && gone[t.ParentAreaID] {
			t.ParentAreaID = ""
			return true
		}
		return false
	}, inherit(mut))
	return removed
}

// UpdateAreas is the area counterpart of UpdateTables.
func (m *Model) UpdateAreas(fn func(a *Area) bool, opts ...MutationOption) []string {
	var (
		next []Area
		ids  []string
	)
	for i, a := range m.areas {
		c := a
		if !fn(&c) {
			continue
		}
		if next == nil {
			next = append([]Area(nil), m.areas...)
		}
		next[i] = c
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	m.areas = next
	m.versions.Areas = m.clock.Next()
	m.commit(ChangeAreasUpdated, ids, applyOptions(opts))
	return ids
}

// AddNote appends a note.
func (m *Model) AddNote(n Note, opts ...MutationOption) error {
	if _, ok := m.Note(n.ID); ok {
		return fmt.Errorf("add note %s: %w", n.ID, ErrDuplicateID)
	}
	next := make([]Note, 0, len(m.notes)+1)
	next = append(append(next, m.notes...), n)
	m.notes = next
	m.versions.Notes = m.clock.Next()
	m.commit(ChangeNotesAdded, []string{n.ID}, applyOptions(opts))
	return nil
}

// RemoveNotes removes notes by id.
func (m *Model) RemoveNotes(ids []string, opts ...MutationOption) []string {
	drop := toSet(ids)
	var removed []string
	next := make([]Note, 0, len(m.notes))
	for _, n := range m.notes {
		if drop[n.ID] {
			removed = append(removed, n.ID)
			continue
		}
		next = append(next, n)
	}
	if len(removed) == 0 {
		return nil
	}
	m.notes = next
	m.versions.Notes = m.clock.Next()
	m.commit(ChangeNotesRemoved, removed, applyOptions(opts))
	return removed
}

// UpdateNotes is the note counterpart of UpdateTables.
func (m *Model) UpdateNotes(fn func(n *Note) bool, opts ...MutationOption) []string {
	var (
		next []Note
		ids  []string
	)
	for i, n := range m.notes {
		c := n
		if !fn(&c) {
			continue
		}
		if next == nil {
			next = append([]Note(nil), m.notes...)
		}
		next[i] = c
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	m.notes = next
	m.versions.Notes = m.clock.Next()
	m.commit(ChangeNotesUpdated, ids, applyOptions(opts))
	return ids
}

// SetCustomTypes replaces the custom type list.
func (m *Model) SetCustomTypes(types []CustomType, opts ...MutationOption) {
	next := make([]CustomType, len(types))
	ids := make([]string, len(types))
	for i, ct := range types {
		ct.Values = cloneSlice(ct.Values)
		next[i] = ct
		ids[i] = ct.ID
	}
	sort.Strings(ids)
	m.customTypes = next
	m.versions.CustomTypes = m.clock.Next()
	m.commit(ChangeCustomTypes, ids, applyOptions(opts))
}

func (m *Model) tableIndex(id string) int {
	for i, t := range m.tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
