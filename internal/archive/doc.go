// Package archive keeps a SQLite record of every knob file rws writes.
//
// Each entry stores where a file was written, whether it holds deltas or
// absolute powering, the metadata and content hash of its knob set, and the
// knobs themselves, so a set can be recovered after the file was edited or
// lost.
//
// Archiving the same set to the same path twice records a single entry: the
// (content_hash, kind, path) triple is unique.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package archive
