// Package models defines domain entities and persistence interfaces for the mtx music library client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs decoded from the library API
//   - [Track] : Track metadata and its playable path
//   - [Lyrics], [LyricLine] : Synced lyrics attached to one track
//   - [BatchStart], [BatchStatus] : Batch job start and progress reports
//   - [ScanStatus], [ScanLogPage] : Library scan monitoring
//   - [WebDAVConfig], [WebDAVTestResult] : WebDAV source settings
//   - [Statistics] : Dashboard counts
//
// 2. Persistent Entities: database-backed records kept by the client
//   - [CachedTrack] : Offline copy of a library track with a normalised search key
//   - [BatchJob] : History of watched batch jobs and scans
//
// Persistent entities implement the [Model] interface providing IDs, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
