package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// BatchStart starts a server batch job and, unless --detach is set, polls it until it finishes.
func (r *Runner) BatchStart(ctx context.Context, cmd *cli.Command) error {
	kind, err := models.ParseBatchKind(cmd.StringArg("kind"))
	if err != nil {
		return err
	}

	if cmd.Bool("detach") {
		start, err := r.api.StartBatch(ctx, kind)
		if err != nil {
			return err
		}
		r.logger.Info("batch started", "kind", kind, "expected", start.Total)
		r.writePlain("✓ Started %s batch for %d tracks\n", kind, start.Total)
		r.writePlain("Run 'mtx batch watch' to follow its progress.\n")
		return nil
	}

	return r.watchBatch(ctx, func(p *tasks.BatchPoller) error {
		_, err := p.Start(ctx, kind)
		return err
	})
}

// BatchWatch follows a batch job that is already running on the server.
func (r *Runner) BatchWatch(ctx context.Context, cmd *cli.Command) error {
	status, err := r.api.BatchStatus(ctx)
	if err != nil {
		return err
	}
	if !status.Running {
		r.writePlain("No batch job is running\n")
		return nil
	}

	return r.watchBatch(ctx, func(p *tasks.BatchPoller) error {
		p.Attach(ctx)
		return nil
	})
}

// watchBatch runs begin against a fresh poller, prints progress until the run stops,
// then waits for the refresh hook and prints the library summary.
func (r *Runner) watchBatch(ctx context.Context, begin func(*tasks.BatchPoller) error) error {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	refreshed := make(chan *models.Statistics, 1)
	refresh := func(ctx context.Context) {
		stats, err := r.api.Statistics(ctx)
		if err != nil {
			r.logger.Warn("failed to refresh statistics", "error", err)
		}
		select {
		case refreshed <- stats:
		default:
		}
	}

	poller := tasks.NewBatchPoller(r.api, r.pollerOptions(progressCh, r.jobRecorder(), refresh))
	defer poller.Close()

	stop := r.printProgress(progressCh)
	if err := begin(poller); err != nil {
		stop()
		return err
	}

	waitErr := poller.Wait(ctx)
	if waitErr == nil {
		// A cancelled ctx also ends the run, so Done may win the select.
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		poller.Stop()
	}
	stop()
	if waitErr != nil {
		return waitErr
	}

	progress := poller.Progress()
	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	if progress.Kind != "" {
		r.writePlain("Kind: %s\n", progress.Kind)
	}
	r.writePlain("Processed: %d/%d\n", progress.Current, progress.Total)
	r.writePlain("Success: %d\n", progress.Success)
	r.writePlain("Failed: %d\n", progress.Failed)

	if !finishedCleanly(poller.Logs()) {
		return nil
	}
	if stats, ok := waitRefresh(ctx, refreshed, r.refreshWait()); ok && stats != nil {
		r.writePlain("Library: %d tracks\n", stats.Total)
	}
	return nil
}

// finishedCleanly reports whether the run ended on a terminal status rather than a cancel or give-up.
func finishedCleanly(logs []tasks.LogEntry) bool {
	return len(logs) > 0 && logs[len(logs)-1].Level == "success"
}

// BatchStatus prints the server's current batch progress.
func (r *Runner) BatchStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := r.api.BatchStatus(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Running && status.Total == 0 {
		r.writePlain("No batch job has run\n")
		return nil
	}
	state := "idle"
	if status.Running {
		state = "running"
	}
	r.writePlain("Status:  %s\n", state)
	if status.TaskType != "" {
		r.writePlain("Task:    %s\n", status.TaskType)
	}
	r.writePlain("Progress: %d/%d (success %d, failed %d)\n", status.Current, status.Total, status.Success, status.Failed)
	if status.Message != "" {
		r.writePlain("Message: %s\n", status.Message)
	}
	return nil
}

// jobView is the JSON shape of a recorded job.
type jobView struct {
	ID            string           `json:"id"`
	Kind          models.BatchKind `json:"kind"`
	Status        models.JobStatus `json:"status"`
	ExpectedTotal int              `json:"expected_total"`
	Total         int              `json:"total"`
	Current       int              `json:"current"`
	Success       int              `json:"success"`
	Failed        int              `json:"failed"`
	Message       string           `json:"message,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
}

func newJobView(j *models.BatchJob) jobView {
	return jobView{
		ID:            j.ID(),
		Kind:          j.Kind(),
		Status:        j.Status(),
		ExpectedTotal: j.ExpectedTotal(),
		Total:         j.Total(),
		Current:       j.Current(),
		Success:       j.Success(),
		Failed:        j.Failed(),
		Message:       j.Message(),
		StartedAt:     j.StartedAt(),
		FinishedAt:    j.FinishedAt(),
	}
}

// BatchHistory lists recorded batch jobs and scans, newest first.
func (r *Runner) BatchHistory(ctx context.Context, cmd *cli.Command) error {
	jobs, err := r.batchJobRepository()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if kind := cmd.String("kind"); kind != "" {
		criteria["kind"] = kind
	}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	list, err := jobs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]jobView, 0, len(list))
		for _, j := range list {
			views = append(views, newJobView(j))
		}
		return r.writeJSON(views, true)
	}

	if len(list) == 0 {
		r.writePlain("No jobs recorded\n")
		return nil
	}
	r.writePlain("%-19s  %-9s  %-9s  %-9s  %-7s  %-7s\n", "Started", "Kind", "Status", "Tracks", "Success", "Failed")
	for _, j := range list {
		total := j.ExpectedTotal()
		if total == 0 {
			total = j.Total()
		}
		r.writePlain("%-19s  %-9s  %-9s  %-9d  %-7d  %-7d\n",
			j.StartedAt().Local().Format("2006-01-02 15:04:05"), j.Kind(), j.Status(), total, j.Success(), j.Failed())
	}
	return nil
}
