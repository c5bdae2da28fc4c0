// Package store provides SQLite-backed durable storage for the broker.
//
// Two kinds of data live here:
//   - State snapshot: the full marketplace state (status, sale, regions,
//     plans, pools, renewals) written transactionally after every batch
//     of operations. The broker mutates in memory; the snapshot is the
//     recovery point.
//   - Notification log: an append-only record of every notification the
//     broker emitted, ordered by a monotonic seq and identified by a
//     UUIDv7. The log is never rewritten; it is the audit trail the
//     snapshot cannot provide.
//
// Ordering always uses the seq column, never timestamps, so a replayed
// log reads back identically. Region and renewal keys embed the core
// mask in its 20-hex-digit text form, which keeps the composite primary
// keys comparable with BINARY collation.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
