// Package store provides the backing store for diagram snapshots.
//
// A store is a key-value aggregate store keyed by diagram id plus a small
// global config (the default diagram id). Each save replaces the whole
// snapshot; the last write wins.
//
// # Implementations
//
//   - SQLiteStore: single-file database, the default for the CLI
//   - pgstore.Store: PostgreSQL via pgxpool, for shared deployments
//   - MemStore: in-process, for tests and the scenario harness
//
// # Payload format
//
// Snapshots are stored as canonical JSON (diagram.MarshalCanonical) next to
// their checksum. Timestamps live in their own columns and are not part of
// the payload, so the checksum only changes when content changes.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
