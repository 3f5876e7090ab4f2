package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/mtx/internal/shared"
)

// BatchKind names a server-side batch job.
type BatchKind string

const (
	BatchLyrics   BatchKind = "lyrics"    // Fetch lyrics for every track
	BatchCovers   BatchKind = "covers"    // Fetch covers for every track
	BatchAll      BatchKind = "all"       // Fetch lyrics and covers
	BatchFetchAll BatchKind = "fetch-all" // Synchronous fetch of lyrics and covers
	BatchScan     BatchKind = "scan"      // Library scan
)

// BatchKinds lists the kinds accepted by the batch start endpoints.
var BatchKinds = []BatchKind{BatchLyrics, BatchCovers, BatchAll, BatchFetchAll}

// ParseBatchKind validates a user supplied kind.
func ParseBatchKind(s string) (BatchKind, error) {
	for _, k := range BatchKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown batch kind %q", shared.ErrInvalidArgument, s)
}

// StartPath is the API path that starts the job.
func (k BatchKind) StartPath() string {
	switch k {
	case BatchLyrics:
		return "/music/batch-fetch-lyrics"
	case BatchCovers:
		return "/music/batch-fetch-covers"
	case BatchAll:
		return "/music/batch-fetch-all"
	case BatchFetchAll:
		return "/music/fetch-all"
	case BatchScan:
		return "/scan"
	default:
		return ""
	}
}

// BatchStart is the start response of a batch job. Total is the expected number of tracks.
type BatchStart struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// BatchStatus is one progress report of the running batch job.
type BatchStatus struct {
	Running   bool      `json:"running"`
	TaskType  string    `json:"task_type"`
	Total     int       `json:"total"`
	Current   int       `json:"current"`
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus is the lifecycle state of a recorded job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// BatchJob is the local record of one watched batch job or scan.
type BatchJob struct {
	persisted
	id            string
	kind          BatchKind
	status        JobStatus
	expectedTotal int
	total         int
	current       int
	success       int
	failed        int
	message       string
	startedAt     time.Time
	finishedAt    *time.Time
}

// NewBatchJob creates a running job record of kind with the start response's expected total.
func NewBatchJob(sequence int, kind BatchKind, expectedTotal int) *BatchJob {
	p := newPersisted(sequence)
	return &BatchJob{
		persisted:     p,
		kind:          kind,
		status:        JobRunning,
		expectedTotal: expectedTotal,
		startedAt:     p.createdAt,
	}
}

func (j *BatchJob) ID() string             { return j.id }
func (j *BatchJob) Kind() BatchKind        { return j.kind }
func (j *BatchJob) Status() JobStatus      { return j.status }
func (j *BatchJob) ExpectedTotal() int     { return j.expectedTotal }
func (j *BatchJob) Total() int             { return j.total }
func (j *BatchJob) Current() int           { return j.current }
func (j *BatchJob) Success() int           { return j.success }
func (j *BatchJob) Failed() int            { return j.failed }
func (j *BatchJob) Message() string        { return j.message }
func (j *BatchJob) StartedAt() time.Time   { return j.startedAt }
func (j *BatchJob) FinishedAt() *time.Time { return j.finishedAt }

func (j *BatchJob) SetID(id string)             { j.id = id }
func (j *BatchJob) SetStatus(s JobStatus)       { j.status = s }
func (j *BatchJob) SetStartedAt(t time.Time)    { j.startedAt = t }
func (j *BatchJob) SetFinishedAt(t *time.Time)  { j.finishedAt = t }
func (j *BatchJob) SetMessage(msg string)       { j.message = msg }
func (j *BatchJob) SetExpectedTotal(total int)  { j.expectedTotal = total }
func (j *BatchJob) SetCounts(total, current, success, failed int) {
	j.total, j.current, j.success, j.failed = total, current, success, failed
}

// Finish marks the job as ended with status at t.
func (j *BatchJob) Finish(status JobStatus, t time.Time) {
	j.status = status
	j.finishedAt = &t
	j.updatedAt = t
}

// Validate checks the record before it is stored.
func (j *BatchJob) Validate() error {
	if j.id == "" {
		return fmt.Errorf("%w: batch job id is empty", shared.ErrInvalidInput)
	}
	if j.kind == "" {
		return fmt.Errorf("%w: batch job kind is empty", shared.ErrInvalidInput)
	}
	switch j.status {
	case JobRunning, JobCompleted, JobCancelled, JobFailed:
	default:
		return fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, j.status)
	}
	if j.expectedTotal < 0 || j.total < 0 {
		return fmt.Errorf("%w: negative totals", shared.ErrInvalidInput)
	}
	return nil
}

// CachedTrack is a library track mirrored into the local database.
type CachedTrack struct {
	persisted
	track     Track
	searchKey string
}

// NewCachedTrack wraps a server track for local persistence.
func NewCachedTrack(sequence int, track Track) *CachedTrack {
	return &CachedTrack{
		persisted: newPersisted(sequence),
		track:     track,
		searchKey: shared.NormalizeTrackKey(track.Title, track.Artist),
	}
}

// ID returns the server's track identifier as a string.
func (c *CachedTrack) ID() string        { return c.track.Key() }
func (c *CachedTrack) TrackID() int64    { return c.track.ID }
func (c *CachedTrack) Track() Track      { return c.track }
func (c *CachedTrack) SearchKey() string { return c.searchKey }

// SetTrack replaces the cached metadata and recomputes the search key.
func (c *CachedTrack) SetTrack(t Track) {
	c.track = t
	c.searchKey = shared.NormalizeTrackKey(t.Title, t.Artist)
}

func (c *CachedTrack) Validate() error {
	return c.track.Validate()
}
