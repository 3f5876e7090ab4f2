package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/services"
)

// ScanWatcher starts a library scan and polls its status until the server reports it idle.
type ScanWatcher struct {
	api  services.ScanAPI
	opts PollerOptions

	startMu sync.Mutex

	mu       sync.Mutex
	state    State
	taskID   string
	status   models.ScanStatus
	failures int
	job      *models.BatchJob
	loop     *pollLoop
	refresh  *delayed
	run      uint64
	finished chan struct{}

	log activityLog
}

// NewScanWatcher creates an idle watcher.
func NewScanWatcher(api services.ScanAPI, opts PollerOptions) *ScanWatcher {
	return &ScanWatcher{api: api, opts: opts.withDefaults(), log: activityLog{limit: logLimit}}
}

// Start triggers a scan and begins polling. It returns the server's task ID.
func (w *ScanWatcher) Start(ctx context.Context, recursive bool) (string, error) {
	w.startMu.Lock()
	defer w.startMu.Unlock()
	w.cancelCurrent()

	taskID, err := w.api.StartScan(ctx, recursive)
	if err != nil {
		w.log.add("error", err.Error())
		w.opts.Logger.Error("failed to start scan", "error", err)
		sendProgress(w.opts.Progress, batchFailedUpdate(err))
		return "", err
	}

	w.log.add("info", fmt.Sprintf("scan %s started", taskID))
	w.opts.Logger.Info("scan started", "task", taskID, "recursive", recursive)
	sendProgress(w.opts.Progress, scanStartedUpdate(taskID))

	var job *models.BatchJob
	if w.opts.Recorder != nil {
		if job, err = w.opts.Recorder.Begin(models.BatchScan, 0); err != nil {
			w.opts.Logger.Warn("failed to record scan", "error", err)
			job = nil
		} else {
			job.SetMessage(taskID)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.run++
	run := w.run
	w.state = StateRunning
	w.taskID = taskID
	w.failures = 0
	w.job = job
	w.status = models.ScanStatus{Running: true, TaskID: taskID}
	w.finished = make(chan struct{})
	w.loop = startPollLoop(ctx, w.opts.Interval, func(ctx context.Context) bool {
		return w.tick(ctx, run)
	}, func() { w.loopExited(run) })
	return taskID, nil
}

func (w *ScanWatcher) loopExited(run uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if run != w.run || w.state != StateRunning {
		return
	}
	w.state = StateStopped
	w.status.Running = false
	w.finishLocked(models.JobCancelled)
	w.log.add("warn", "scan polling cancelled")
}

// Stop cancels polling. The scan itself keeps running on the server.
func (w *ScanWatcher) Stop() {
	w.mu.Lock()
	loop := w.loop
	wasRunning := w.state == StateRunning
	if wasRunning {
		w.state = StateStopped
		w.finishLocked(models.JobCancelled)
	}
	w.mu.Unlock()

	loop.stop()
	if wasRunning {
		w.log.add("warn", "scan polling cancelled")
	}
}

// Close stops polling and drops a pending refresh.
func (w *ScanWatcher) Close() {
	w.Stop()
	w.mu.Lock()
	w.refresh.cancel()
	w.mu.Unlock()
}

func (w *ScanWatcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Status returns the latest scan status.
func (w *ScanWatcher) Status() models.ScanStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *ScanWatcher) TaskID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.taskID
}

func (w *ScanWatcher) Logs() []LogEntry {
	return w.log.list()
}

// Done is closed when the current run stops for any reason.
func (w *ScanWatcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return w.finished
}

func (w *ScanWatcher) cancelCurrent() {
	w.Stop()
	w.mu.Lock()
	w.refresh.cancel()
	w.refresh = nil
	w.mu.Unlock()
}

func (w *ScanWatcher) tick(ctx context.Context, run uint64) bool {
	status, err := w.api.ScanStatus(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if run != w.run || w.state != StateRunning {
		return false
	}

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.failures++
		w.opts.Logger.Warn("scan status poll failed", "error", err, "failures", w.failures)
		w.log.add("warn", fmt.Sprintf("status request %d failed: %v", w.failures, err))
		sendProgress(w.opts.Progress, pollFailedUpdate(w.failures, err))
		if w.opts.MaxFailures > 0 && w.failures >= w.opts.MaxFailures {
			w.state = StateStopped
			w.finishLocked(models.JobFailed)
			w.log.add("error", fmt.Sprintf("gave up after %d failed status requests: %v", w.failures, err))
			return false
		}
		return true
	}
	w.failures = 0
	w.status = *status

	if status.Running {
		sendProgress(w.opts.Progress, scanPollUpdate(*status))
		return true
	}

	w.state = StateStopped
	w.finishLocked(models.JobCompleted)
	w.log.add("success", "scan finished")
	w.opts.Logger.Info("scan finished", "task", w.taskID, "last", status.LastLog)
	sendProgress(w.opts.Progress, scanFinishedUpdate(*status))
	if w.opts.Refresh != nil {
		refresh := w.opts.Refresh
		w.refresh = after(w.opts.RefreshDelay, func() { refresh(context.WithoutCancel(ctx)) })
	}
	return false
}

func (w *ScanWatcher) finishLocked(status models.JobStatus) {
	if w.job != nil {
		w.job.Finish(status, time.Now().UTC())
		if err := w.opts.Recorder.Update(w.job); err != nil {
			w.opts.Logger.Warn("failed to update scan record", "error", err)
		}
		w.job = nil
	}
	if w.finished != nil {
		select {
		case <-w.finished:
		default:
			close(w.finished)
		}
	}
}
