// Package repositories implements SQLite persistence for the local library cache and job history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
//
// Key Implementations:
//   - [TrackRepository] : Mirror of server tracks keyed by track id, soft deleted when the library drops them
//   - [BatchJobRepository] : History of batch jobs and scans watched by this client (satisfies tasks.JobRecorder)
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
