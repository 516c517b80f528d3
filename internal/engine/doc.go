// Package engine implements the diagram synchronization engine.
//
// The engine owns the domain model for one editor session and keeps three
// things consistent: the model, the derived node and edge lists, and the
// overlap graph. Interaction events (node and edge changes, connect
// gestures, filter changes) are reconciled into visual-only updates or
// domain commits; committed mutations re-derive the view through a
// memoized projector and rearm the persistence scheduler.
//
// Single-writer loop:
// Every mutation happens on one goroutine. Run dequeues tasks in FIFO
// order; timers (save debounce, pointer throttle, overlap pulse) post their
// callbacks into the same queue, and other goroutines use Call. Tests and
// the scenario harness drive the engine synchronously with ProcessPending.
//
// Gesture handlers (ApplyNodeChanges, ApplyEdgeChanges, the connect
// methods, the Set* methods) and the surfaces (Nodes, Edges, Overlap) must
// only be called on the engine goroutine: inside Call, from a posted task,
// or directly when Run is not running.
package engine
