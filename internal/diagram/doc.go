// Package diagram is the canonical domain model of an entity-relationship
// diagram.
//
// The Model holds the mutable collections (tables, relationships,
// dependencies, areas, notes, custom types) plus diagram metadata. Every
// mutation goes through an action method on Model; there is no other way
// to change domain state.
//
// COPY-ON-WRITE:
// Each mutation builds a new backing slice for the collection it touches
// and bumps that collection's version. Slices returned by accessors are
// never written again, so a caller may hold on to them (and compare them
// by version) without copying. Callers must treat them as read-only.
//
// HISTORY:
// Each mutation carries a binary record-history flag. Mutations recorded to
// history are appended to History(); derived mutations (such as parent-area
// reassignment) pass WithoutHistory(). There is no undo engine.
//
// EVENTS:
// Structural changes are published on the bus vocabulary (add_tables,
// remove_tables, update_table, add_field, remove_field, load_diagram) so
// subscribers can keep derived structures current. Observers registered
// with Observe receive every Change, which is what the persistence
// scheduler listens to.
package diagram
