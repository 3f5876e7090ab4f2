package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/mtx/internal/models"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultRefreshDelay = 2 * time.Second
)

// Refresher reloads the views that depend on a finished job (track list and statistics).
type Refresher func(ctx context.Context)

// JobRecorder persists the history of watched jobs.
type JobRecorder interface {
	Begin(kind models.BatchKind, expectedTotal int) (*models.BatchJob, error)
	Update(job *models.BatchJob) error
}

// State is the lifecycle of a poller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return ""
	}
}

// LogEntry is one line of a poller's activity log.
type LogEntry struct {
	Time    time.Time
	Level   string // info, success, warn or error
	Message string
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// pollLoop runs tick on a fixed interval until tick returns false or the loop is cancelled.
// onExit runs on the loop goroutine after the last tick and before stop returns.
type pollLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startPollLoop(ctx context.Context, interval time.Duration, tick func(ctx context.Context) bool, onExit func()) *pollLoop {
	ctx, cancel := context.WithCancel(ctx)
	l := &pollLoop{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		if onExit != nil {
			defer onExit()
		}
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !tick(ctx) {
					return
				}
			}
		}
	}()
	return l
}

// stop cancels the loop and waits for the running tick to return. Safe to call repeatedly,
// but never from inside tick.
func (l *pollLoop) stop() {
	if l == nil {
		return
	}
	l.cancel()
	<-l.done
}

// delayed runs f once after d unless cancelled first.
type delayed struct {
	once  sync.Once
	timer *time.Timer
}

func after(d time.Duration, f func()) *delayed {
	return &delayed{timer: time.AfterFunc(d, f)}
}

func (d *delayed) cancel() {
	if d == nil {
		return
	}
	d.once.Do(func() { d.timer.Stop() })
}

type activityLog struct {
	mu      sync.Mutex
	entries []LogEntry
	limit   int
}

func (a *activityLog) add(level, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, LogEntry{Time: time.Now(), Level: level, Message: msg})
	if a.limit > 0 && len(a.entries) > a.limit {
		a.entries = a.entries[len(a.entries)-a.limit:]
	}
}

func (a *activityLog) list() []LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]LogEntry(nil), a.entries...)
}
