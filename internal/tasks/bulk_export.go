package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/mtx/internal/formatter"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	"golang.org/x/time/rate"
)

// LyricsExportOpts contains configuration for bulk lyrics exports.
type LyricsExportOpts struct {
	OutputDir  string  // Base output directory (default: lyrics_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, max 10)
	RateLimit  float64 // Requests per second (default: 5)
}

// LyricsExportResult is one track's outcome. It doubles as a manifest entry.
type LyricsExportResult struct {
	TrackID int64  `json:"track_id"`
	Title   string `json:"title"`
	File    string `json:"file,omitempty"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// LyricsExportSummary aggregates a bulk lyrics export.
type LyricsExportSummary struct {
	TotalTracks     int                  `json:"total_tracks"`
	Exported        int                  `json:"exported"`
	Skipped         int                  `json:"skipped"`
	Failed          int                  `json:"failed"`
	OutputDirectory string               `json:"output_directory"`
	ExportedAt      time.Time            `json:"exported_at"`
	Results         []LyricsExportResult `json:"results"`
	ManifestPath    string               `json:"-"`
}

// ExportLyrics writes an LRC file per track with synced lyrics, using a rate limited worker pool.
//
// Tracks without synced lyrics are skipped; failed tracks are recorded and do not stop the export.
// An export_manifest.json summarising every track is written to the output directory.
func (e *SyncEngine) ExportLyrics(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	tracks []models.Track,
	opts LyricsExportOpts,
) (*LyricsExportSummary, error) {
	if e.lib == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("lyrics_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &LyricsExportSummary{
		TotalTracks:     len(tracks),
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now().UTC(),
		Results:         make([]LyricsExportResult, 0, len(tracks)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan models.Track)
	results := make(chan LyricsExportResult, len(tracks))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.lyricsWorker(ctx, &wg, limiter, jobs, results, opts.OutputDir)
	}

	go func() {
		defer close(jobs)
		for _, track := range tracks {
			select {
			case <-ctx.Done():
				return
			case jobs <- track:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		summary.Results = append(summary.Results, res)

		switch {
		case res.Success:
			summary.Exported++
			sendProgress(prog, exportCompletedUpdate(completed, len(tracks), models.Track{ID: res.TrackID, Title: res.Title}, res.File))
		case res.Skipped:
			summary.Skipped++
			sendProgress(prog, exportSkippedUpdate(completed, len(tracks), models.Track{ID: res.TrackID, Title: res.Title}))
		default:
			summary.Failed++
			sendProgress(prog, exportFailedUpdate(completed, len(tracks), models.Track{ID: res.TrackID, Title: res.Title}, res.err))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(summary, manifestPath); err != nil {
		return summary, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	summary.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// lyricsWorker exports tracks from the jobs channel until it is closed.
func (e *SyncEngine) lyricsWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan models.Track,
	results chan<- LyricsExportResult,
	dir string,
) {
	defer wg.Done()

	for track := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- failedExport(track, err)
			continue
		}
		results <- e.exportTrackLyrics(ctx, track, dir)
	}
}

func (e *SyncEngine) exportTrackLyrics(ctx context.Context, track models.Track, dir string) LyricsExportResult {
	result := LyricsExportResult{TrackID: track.ID, Title: track.DisplayTitle()}

	lyrics, err := e.lib.Lyrics(ctx, track.ID)
	if err != nil {
		return failedExport(track, fmt.Errorf("failed to fetch lyrics: %w", err))
	}
	if !lyrics.HasLyrics || len(lyrics.Parsed) == 0 {
		result.Skipped = true
		return result
	}

	name := fmt.Sprintf("%d_%s.lrc", track.ID, formatter.Slug(track.DisplayArtist()+" "+track.DisplayTitle()))
	path := filepath.Join(dir, name)
	if err := formatter.WriteLRCExport(track, lyrics.Parsed, path); err != nil {
		return failedExport(track, err)
	}

	result.File = path
	result.Success = true
	return result
}

func failedExport(track models.Track, err error) LyricsExportResult {
	if err == nil {
		err = errors.New("unknown error")
	}
	return LyricsExportResult{
		TrackID: track.ID,
		Title:   track.DisplayTitle(),
		Error:   err.Error(),
		err:     err,
	}
}
