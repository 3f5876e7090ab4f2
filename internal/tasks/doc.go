// Package tasks runs the long-lived library jobs behind the CLI and TUI with real-time progress reporting.
//
// # Core Operations
//
//  1. [BatchPoller] : Server-side batch jobs (lyrics, covers, all, fetch-all)
//     - Issues the start request and captures the expected total
//     - Polls the status endpoint on a fixed interval until the server reports the job idle
//     - Displays the expected total in place of the server total
//     - Schedules a refresh hook after the job finishes
//
//  2. [ScanWatcher] : Library scans
//     - Starts a scan and remembers its task ID
//     - Polls the scan status until it stops running
//
//  3. [SyncEngine.Sync] : Mirror the library into the local track cache
//     - Pages through search results under a rate limit
//     - Optionally prunes cached tracks the server no longer has
//
//  4. [SyncEngine.ExportLyrics] : Bulk LRC export
//     - Worker pool with a shared rate limiter
//     - Writes an export_manifest.json summarising every track
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Job History
//
// Pollers accept an optional [JobRecorder] (repositories.BatchJobRepository) that persists each run.
// Recording failures are logged and never interrupt polling.
//
// # Poll Loops
//
// At most one loop runs per poller. Starting a new job cancels the previous loop before the start request is sent,
// and a loop ends on the first tick that sees the job idle.
package tasks
