// Package harness runs gesture scenarios against a real engine.
//
// A scenario loads a diagram, replays interaction gestures against the
// engine under virtual time, and checks assertions on the resulting
// domain model, view and persistence activity.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: drag_into_area
//	description: "Dropping a table inside an area makes it a member"
//	diagram_file: fixtures/shop.yaml   # or an inline `diagram:` block
//	options:
//	  read_only: false
//	steps:
//	  - drag: {id: users, to: {x: 420, y: 40}}
//	  - advance: 600ms
//	assertions:
//	  - type: parent_area
//	    id: users
//	    expect: a1
//	  - type: writes
//	    count: 1
//
// # Steps
//
//   - drag: moves a node through intermediate positions, then settles it
//   - resize: resizes a node, then settles it
//   - connect: runs a full connect gesture between two handles
//   - remove: removes nodes (ids) or edges (edge_ids)
//   - select: selects or deselects a node or an edge
//   - advance: moves virtual time forward and runs due timers
//   - filter: replaces the table filter
//
// # Assertion Types
//
//   - parent_area: a table's parentAreaId
//   - position: an entity's domain position
//   - edge_count: number of visible edges, optionally of one kind
//   - relationship_count: number of relationships in the model
//   - warnings: reject codes delivered to the notifier, in order
//   - writes: snapshots written to the store
//   - overlap: whether tables overlap, optionally the exact clusters
//
// # Deterministic Testing
//
// Timers run on a testutil.ManualScheduler and created entities get
// sequential ids, so a scenario always produces the same trace. Traces
// and final summaries are compared against golden files with goldie.
package harness
