package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/services"
	"github.com/desertthunder/mtx/internal/shared"
)

const logLimit = 200

// PollerOptions configures a [BatchPoller] or [ScanWatcher]. Zero values select the defaults.
type PollerOptions struct {
	Interval     time.Duration // Status request period
	RefreshDelay time.Duration // Wait between the terminal tick and the refresh hook
	// MaxFailures stops polling after this many consecutive failed ticks. Zero never stops.
	MaxFailures int
	Refresh     Refresher
	Recorder    JobRecorder
	Progress    chan<- ProgressUpdate
	Logger      *log.Logger
}

func (o PollerOptions) withDefaults() PollerOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.RefreshDelay <= 0 {
		o.RefreshDelay = DefaultRefreshDelay
	}
	if o.MaxFailures < 0 {
		o.MaxFailures = 0
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// BatchPoller starts a server batch job and polls its progress until the server reports it finished.
//
// At most one poll loop is active: Start cancels the previous loop before issuing its own request.
// The expected total captured from the start response overrides the server total on every tick.
type BatchPoller struct {
	api  services.BatchAPI
	opts PollerOptions

	startMu sync.Mutex

	mu       sync.Mutex
	state    State
	expected int
	progress BatchProgress
	failures int
	job      *models.BatchJob
	loop     *pollLoop
	refresh  *delayed
	run      uint64
	finished chan struct{}

	log activityLog
}

// NewBatchPoller creates an idle poller.
func NewBatchPoller(api services.BatchAPI, opts PollerOptions) *BatchPoller {
	return &BatchPoller{api: api, opts: opts.withDefaults(), log: activityLog{limit: logLimit}}
}

// Start issues the start request for kind and begins polling.
//
// When the request fails the server's message is returned and no polling starts.
// The poll loop lives until the job finishes, [BatchPoller.Stop] is called, or ctx is cancelled.
func (p *BatchPoller) Start(ctx context.Context, kind models.BatchKind) (*models.BatchStart, error) {
	if kind == models.BatchScan || kind.StartPath() == "" {
		return nil, fmt.Errorf("%w: batch kind %q", shared.ErrInvalidArgument, kind)
	}

	p.startMu.Lock()
	defer p.startMu.Unlock()
	p.cancelCurrent()

	sendProgress(p.opts.Progress, batchStartingUpdate(kind))
	start, err := p.api.StartBatch(ctx, kind)
	if err != nil {
		p.log.add("error", err.Error())
		p.opts.Logger.Error("failed to start batch", "kind", kind, "error", err)
		sendProgress(p.opts.Progress, batchFailedUpdate(err))
		return nil, err
	}

	p.log.add("info", fmt.Sprintf("started %s batch for %d tracks", kind, start.Total))
	p.opts.Logger.Info("batch started", "kind", kind, "expected", start.Total)
	sendProgress(p.opts.Progress, batchStartedUpdate(kind, start.Total))
	p.begin(ctx, kind, start.Total)
	return start, nil
}

// Attach polls a batch job that is already running on the server, using the server's total.
func (p *BatchPoller) Attach(ctx context.Context) {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	p.cancelCurrent()
	p.log.add("info", "watching running batch")
	p.begin(ctx, "", 0)
}

// Stop cancels the active poll loop. It is a no-op when nothing is running.
func (p *BatchPoller) Stop() {
	p.mu.Lock()
	loop := p.loop
	wasRunning := p.state == StateRunning
	if wasRunning {
		p.state = StateStopped
		p.finishJobLocked(models.JobCancelled, "cancelled")
		p.closeFinishedLocked()
	}
	p.mu.Unlock()

	loop.stop()
	if wasRunning {
		p.log.add("warn", "polling cancelled")
	}
}

// Close stops polling and drops a pending refresh.
func (p *BatchPoller) Close() {
	p.Stop()
	p.mu.Lock()
	p.refresh.cancel()
	p.mu.Unlock()
}

// State reports idle, running or stopped.
func (p *BatchPoller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress returns the latest displayed progress.
func (p *BatchPoller) Progress() BatchProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// ExpectedTotal is the total captured from the start response, or zero.
func (p *BatchPoller) ExpectedTotal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expected
}

// Logs returns the activity log, oldest first.
func (p *BatchPoller) Logs() []LogEntry {
	return p.log.list()
}

// Done is closed when the current run stops for any reason.
func (p *BatchPoller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.finished
}

// Wait blocks until the current run stops or ctx is done.
func (p *BatchPoller) Wait(ctx context.Context) error {
	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *BatchPoller) cancelCurrent() {
	p.Stop()
	p.mu.Lock()
	p.refresh.cancel()
	p.refresh = nil
	p.mu.Unlock()
}

func (p *BatchPoller) begin(ctx context.Context, kind models.BatchKind, expected int) {
	var job *models.BatchJob
	if p.opts.Recorder != nil && kind != "" {
		var err error
		if job, err = p.opts.Recorder.Begin(kind, expected); err != nil {
			p.opts.Logger.Warn("failed to record batch job", "error", err)
			job = nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.run++
	run := p.run
	p.state = StateRunning
	p.expected = expected
	p.failures = 0
	p.job = job
	p.progress = BatchProgress{Kind: kind, Total: expected, Running: true}
	p.finished = make(chan struct{})
	p.loop = startPollLoop(ctx, p.opts.Interval, func(ctx context.Context) bool {
		return p.tick(ctx, run)
	}, func() { p.loopExited(run) })
}

// loopExited stops a run whose loop ended without a terminal tick, i.e. its context was cancelled.
func (p *BatchPoller) loopExited(run uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if run != p.run || p.state != StateRunning {
		return
	}
	p.stopLocked(models.JobCancelled, "cancelled")
	p.log.add("warn", "polling cancelled")
	p.opts.Logger.Warn("batch polling cancelled", "kind", p.progress.Kind)
}

func (p *BatchPoller) tick(ctx context.Context, run uint64) bool {
	status, err := p.api.BatchStatus(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if run != p.run || p.state != StateRunning {
		return false
	}

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.failures++
		p.opts.Logger.Warn("batch status poll failed", "error", err, "failures", p.failures)
		p.log.add("warn", fmt.Sprintf("status request %d failed: %v", p.failures, err))
		sendProgress(p.opts.Progress, pollFailedUpdate(p.failures, err))
		if p.opts.MaxFailures > 0 && p.failures >= p.opts.MaxFailures {
			msg := fmt.Sprintf("gave up after %d failed status requests: %v", p.failures, err)
			p.stopLocked(models.JobFailed, msg)
			p.log.add("error", msg)
			sendProgress(p.opts.Progress, batchFailedUpdate(errors.New(msg)))
			return false
		}
		return true
	}
	p.failures = 0

	total := status.Total
	if p.expected > 0 {
		total = p.expected
	}
	kind := p.progress.Kind
	if kind == "" {
		kind = models.BatchKind(status.TaskType)
	}
	p.progress = BatchProgress{
		Kind:    kind,
		Total:   total,
		Current: status.Current,
		Success: status.Success,
		Failed:  status.Failed,
		Running: status.Running,
		Message: status.Message,
	}
	if p.job != nil {
		p.job.SetCounts(status.Total, status.Current, status.Success, status.Failed)
		p.job.SetMessage(status.Message)
	}

	if status.Running {
		p.recordLocked()
		sendProgress(p.opts.Progress, batchPollUpdate(p.progress))
		return true
	}

	msg := fmt.Sprintf("batch finished: success %d, failed %d", status.Success, status.Failed)
	if status.Message != "" {
		msg += " (" + status.Message + ")"
	}
	p.stopLocked(models.JobCompleted, status.Message)
	p.log.add("success", msg)
	p.opts.Logger.Info("batch finished", "success", status.Success, "failed", status.Failed)
	sendProgress(p.opts.Progress, batchFinishedUpdate(p.progress))
	p.scheduleRefreshLocked(ctx)
	return false
}

// stopLocked ends the run from inside a tick; the loop exits when the tick returns.
func (p *BatchPoller) stopLocked(status models.JobStatus, msg string) {
	p.state = StateStopped
	p.progress.Running = false
	p.finishJobLocked(status, msg)
	p.closeFinishedLocked()
}

func (p *BatchPoller) finishJobLocked(status models.JobStatus, msg string) {
	if p.job == nil {
		return
	}
	if msg != "" {
		p.job.SetMessage(msg)
	}
	p.job.Finish(status, time.Now().UTC())
	p.recordLocked()
	p.job = nil
}

func (p *BatchPoller) recordLocked() {
	if p.job == nil || p.opts.Recorder == nil {
		return
	}
	if err := p.opts.Recorder.Update(p.job); err != nil {
		p.opts.Logger.Warn("failed to update batch job", "id", p.job.ID(), "error", err)
	}
}

func (p *BatchPoller) closeFinishedLocked() {
	if p.finished != nil {
		select {
		case <-p.finished:
		default:
			close(p.finished)
		}
	}
}

func (p *BatchPoller) scheduleRefreshLocked(ctx context.Context) {
	if p.opts.Refresh == nil {
		return
	}
	refresh := p.opts.Refresh
	p.refresh = after(p.opts.RefreshDelay, func() {
		refresh(context.WithoutCancel(ctx))
	})
}
