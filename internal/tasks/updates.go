package tasks

import (
	"fmt"

	"github.com/desertthunder/mtx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	BatchStarting Phase = iota
	BatchPolling
	BatchFinished
	BatchFailed
	ScanStarting
	ScanPolling
	ScanFinished
	SyncPages
	SyncPrune
	ExportLyrics
	PollRetrying
)

func (p Phase) String() string {
	switch p {
	case BatchStarting:
		return "batch_starting"
	case BatchPolling:
		return "batch_polling"
	case BatchFinished:
		return "batch_finished"
	case BatchFailed:
		return "batch_failed"
	case ScanStarting:
		return "scan_starting"
	case ScanPolling:
		return "scan_polling"
	case ScanFinished:
		return "scan_finished"
	case SyncPages:
		return "sync_pages"
	case SyncPrune:
		return "sync_prune"
	case ExportLyrics:
		return "export_lyrics"
	case PollRetrying:
		return "poll_retrying"
	default:
		return ""
	}
}

// BatchProgress is what a progress display shows for a batch job.
type BatchProgress struct {
	Kind    models.BatchKind
	Total   int // Expected total when known, otherwise the server total
	Current int
	Success int
	Failed  int
	Running bool
	Message string
}

// Percent is Current over Total, clamped to [0, 100].
func (p BatchProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Current) / float64(p.Total) * 100
	return min(max(pct, 0), 100)
}

func (p BatchProgress) String() string {
	return fmt.Sprintf("%d/%d (success %d, failed %d)", p.Current, p.Total, p.Success, p.Failed)
}

func batchStartingUpdate(kind models.BatchKind) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchStarting,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Starting %s batch...", kind),
	}
}

func batchStartedUpdate(kind models.BatchKind, expected int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchStarting,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Started %s batch: %d tracks", kind, expected),
		Data:    expected,
	}
}

func batchPollUpdate(p BatchProgress) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] success %d, failed %d", p.Current, p.Total, p.Success, p.Failed)
	if p.Message != "" {
		msg += ": " + p.Message
	}
	return ProgressUpdate{
		Phase:   BatchPolling,
		Step:    p.Current,
		Total:   p.Total,
		Message: msg,
		Data:    p,
	}
}

func batchFinishedUpdate(p BatchProgress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchFinished,
		Step:    p.Current,
		Total:   p.Total,
		Message: fmt.Sprintf("✓ Batch finished: success %d, failed %d", p.Success, p.Failed),
		Data:    p,
	}
}

func batchFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchFailed,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}

// pollFailedUpdate reports a swallowed status request failure; polling continues.
func pollFailedUpdate(failures int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PollRetrying,
		Step:    failures,
		Message: fmt.Sprintf("⚠ Status request failed (%d in a row): %v", failures, err),
		Data:    err,
	}
}

func scanStartedUpdate(taskID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanStarting,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Scan started (task %s)", taskID),
		Data:    taskID,
	}
}

func scanPollUpdate(s models.ScanStatus) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPolling,
		Message: s.LastLog,
		Data:    s,
	}
}

func scanFinishedUpdate(s models.ScanStatus) ProgressUpdate {
	msg := "✓ Scan finished"
	if s.LastLog != "" {
		msg += ": " + s.LastLog
	}
	return ProgressUpdate{
		Phase:   ScanFinished,
		Message: msg,
		Data:    s,
	}
}

func syncPageUpdate(page, pages, stored int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPages,
		Step:    page,
		Total:   pages,
		Message: fmt.Sprintf("[%d/%d] %d tracks cached", page, pages, stored),
	}
}

func syncPruneUpdate(removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPrune,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d tracks no longer in the library", removed),
	}
}

func exportCompletedUpdate(step, total int, track models.Track, file string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportLyrics,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, track.DisplayTitle(), file),
	}
}

func exportSkippedUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportLyrics,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] - %s (no synced lyrics)", step, total, track.DisplayTitle()),
	}
}

func exportFailedUpdate(step, total int, track models.Track, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportLyrics,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, track.DisplayTitle(), err),
	}
}
