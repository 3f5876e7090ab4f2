package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ScanStart triggers a library scan and, unless --detach is set, follows it until the server reports it idle.
func (r *Runner) ScanStart(ctx context.Context, cmd *cli.Command) error {
	recursive := cmd.Bool("recursive")

	if cmd.Bool("detach") {
		taskID, err := r.api.StartScan(ctx, recursive)
		if err != nil {
			return fmt.Errorf("failed to start scan: %w", err)
		}
		r.writePlain("✓ Scan started (task %s)\n", taskID)
		return nil
	}

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

	watcher := tasks.NewScanWatcher(r.api, r.pollerOptions(progressCh, r.jobRecorder(), refresh))
	defer watcher.Close()

	stop := r.printProgress(progressCh)
	taskID, err := watcher.Start(ctx, recursive)
	if err != nil {
		stop()
		return fmt.Errorf("failed to start scan: %w", err)
	}

	select {
	case <-watcher.Done():
	case <-ctx.Done():
	}
	stop()
	if err := ctx.Err(); err != nil {
		watcher.Stop()
		return err
	}

	status := watcher.Status()
	r.writePlain("\n")
	r.writePlainHeader("Scan Complete")
	r.writePlain("Task: %s\n", taskID)
	if status.LastLog != "" {
		r.writePlain("Last: %s\n", status.LastLog)
	}

	if !finishedCleanly(watcher.Logs()) {
		return nil
	}
	if stats, ok := waitRefresh(ctx, refreshed, r.refreshWait()); ok && stats != nil {
		r.writePlain("Library: %d tracks\n", stats.Total)
	}
	return nil
}

// ScanStatus prints the server's scan state.
func (r *Runner) ScanStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := r.api.ScanStatus(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	state := "idle"
	if status.Running {
		state = "running"
	}
	r.writePlain("Status: %s\n", state)
	if status.TaskID != "" {
		r.writePlain("Task:   %s\n", status.TaskID)
	}
	if status.LastLog != "" {
		r.writePlain("Last:   [%s] %s\n", status.LastLevel, status.LastLog)
	}
	return nil
}

// ScanLogs lists one page of scan logs, optionally for a single task.
func (r *Runner) ScanLogs(ctx context.Context, cmd *cli.Command) error {
	page, err := r.api.ScanLogs(ctx, models.ScanLogQuery{
		TaskID:   cmd.String("task"),
		Page:     cmd.Int("page"),
		PageSize: cmd.Int("page-size"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, true)
	}

	if len(page.List) == 0 {
		r.writePlain("No scan logs\n")
		return nil
	}
	for _, entry := range page.List {
		r.writePlain("%s  %-5s  %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"), entry.Level, entry.Message)
	}
	r.writePlain("\n%d of %d entries\n", len(page.List), page.Total)
	return nil
}
