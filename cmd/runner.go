package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/repositories"
	"github.com/desertthunder/mtx/internal/services"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        services.Library
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	ownsDB     bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        services.Library
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB is an already migrated database. When nil the configured database is opened on first use.
	DB *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.Server.Timeout()}
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.Server.APIBaseURL(), opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, libraryCommand, batchCommand, scanCommand, webdavCommand, cacheCommand, playerCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, e.g. for a file logger while a full-screen UI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// database opens the configured database and runs pending migrations on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.ownsDB = true
	return db, nil
}

// Close releases the database when the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) trackRepository() (*repositories.TrackRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewTrackRepository(db), nil
}

func (r *Runner) batchJobRepository() (*repositories.BatchJobRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewBatchJobRepository(db), nil
}

// jobRecorder returns the job history store, or nil when the database is unavailable.
//
// Runs left "running" by an earlier client that exited mid-poll are marked failed first.
func (r *Runner) jobRecorder() tasks.JobRecorder {
	jobs, err := r.batchJobRepository()
	if err != nil {
		r.logger.Warn("job history disabled", "error", err)
		return nil
	}
	if n, err := jobs.MarkAbandoned(); err != nil {
		r.logger.Warn("failed to close abandoned jobs", "error", err)
	} else if n > 0 {
		r.logger.Info("closed abandoned jobs", "count", n)
	}
	return jobs
}

func (r *Runner) pollerOptions(progress chan<- tasks.ProgressUpdate, recorder tasks.JobRecorder, refresh tasks.Refresher) tasks.PollerOptions {
	return tasks.PollerOptions{
		Interval:     r.config.Batch.PollInterval(),
		RefreshDelay: r.config.Batch.RefreshDelay(),
		MaxFailures:  r.config.Batch.MaxPollFailures,
		Refresh:      refresh,
		Recorder:     recorder,
		Progress:     progress,
		Logger:       r.logger,
	}
}

// printProgress writes update messages until the returned stop func is called.
//
// Repeated messages are printed once. stop drains buffered updates before returning,
// so output written afterwards follows them.
func (r *Runner) printProgress(ch <-chan tasks.ProgressUpdate) (stop func()) {
	quit := make(chan struct{})
	done := make(chan struct{})
	last := ""
	show := func(u tasks.ProgressUpdate) {
		if u.Message != "" && u.Message != last {
			r.writePlain("%s\n", u.Message)
			last = u.Message
		}
	}

	go func() {
		defer close(done)
		for {
			select {
			case u := <-ch:
				show(u)
			case <-quit:
				for {
					select {
					case u := <-ch:
						show(u)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}

// waitRefresh waits for a refresh hook result, giving up after the refresh delay plus one request timeout.
func waitRefresh[T any](ctx context.Context, ch <-chan T, limit time.Duration) (T, bool) {
	var zero T
	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, true
	case <-timer.C:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

func (r *Runner) refreshWait() time.Duration {
	return r.config.Batch.RefreshDelay() + r.config.Server.Timeout() + time.Second
}

// parseID parses a positive track id.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: track id %q", shared.ErrInvalidArgument, s)
	}
	return id, nil
}

// parseIDs parses a comma or space separated list of track ids.
func parseIDs(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := parseID(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
