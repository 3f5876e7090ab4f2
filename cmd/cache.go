package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// CacheSync pages the library into the local track cache.
func (r *Runner) CacheSync(ctx context.Context, cmd *cli.Command) error {
	store, err := r.trackRepository()
	if err != nil {
		return err
	}

	opts := tasks.SyncOpts{
		Keyword:   cmd.String("keyword"),
		PageSize:  cmd.Int("page-size"),
		RateLimit: cmd.Float("rate"),
		Prune:     cmd.Bool("prune"),
	}
	if opts.Prune && opts.Keyword != "" {
		r.logger.Warn("--prune is ignored for keyword syncs")
	}

	r.logger.Info("syncing library cache", "keyword", opts.Keyword, "prune", opts.Prune)
	r.writePlain("Syncing library into %s...\n", r.config.Database.Path)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	stop := r.printProgress(progressCh)
	engine := tasks.NewSyncEngine(r.api, store, r.logger)
	result, err := engine.Sync(ctx, progressCh, opts)
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")
	r.writePlain("Library: %d tracks (%d pages)\n", result.Total, result.Pages)
	r.writePlain("Cached: %d/%d\n", result.Stored, result.Fetched)
	if result.Failed > 0 {
		r.writePlain("Failed: %d\n", result.Failed)
	}
	if result.Removed > 0 {
		r.writePlain("Removed: %d\n", result.Removed)
	}
	return nil
}

// CacheList lists cached tracks without contacting the server.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.trackRepository()
	if err != nil {
		return err
	}

	criteria := map[string]any{
		"keyword": strings.TrimSpace(strings.Join(cmd.Args().Slice(), " ")),
		"artist":  cmd.String("artist"),
		"album":   cmd.String("album"),
		"limit":   cmd.Int("limit"),
	}
	if cmd.IsSet("lyrics") {
		criteria["has_lyrics"] = cmd.Bool("lyrics")
	}

	cached, err := store.List(criteria)
	if err != nil {
		return err
	}

	tracks := cachedTracks(cached)
	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}
	if len(tracks) == 0 {
		r.writePlain("No cached tracks. Run 'mtx cache sync' first.\n")
		return nil
	}
	r.writeTrackTable(tracks)
	r.writePlain("\n%d cached tracks\n", len(tracks))
	return nil
}

// CacheFind looks up cached tracks by title and artist, ignoring case, width and spacing differences.
func (r *Runner) CacheFind(ctx context.Context, cmd *cli.Command) error {
	title := cmd.String("title")
	if title == "" {
		return fmt.Errorf("%w: --title", shared.ErrMissingArgument)
	}

	store, err := r.trackRepository()
	if err != nil {
		return err
	}

	cached, err := store.FindByKey(title, cmd.String("artist"))
	if err != nil {
		return err
	}

	tracks := cachedTracks(cached)
	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}
	if len(tracks) == 0 {
		r.writePlain("No match for %q\n", title)
		return nil
	}
	r.writeTrackTable(tracks)
	return nil
}

// CacheStats summarises the local cache and job history.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	store, err := r.trackRepository()
	if err != nil {
		return err
	}
	count, err := store.Count()
	if err != nil {
		return err
	}
	withLyrics, err := store.List(map[string]any{"has_lyrics": true})
	if err != nil {
		return err
	}

	jobs, err := r.batchJobRepository()
	if err != nil {
		return err
	}
	history, err := jobs.List(map[string]any{})
	if err != nil {
		return err
	}

	r.writePlainHeader("Local Cache")
	r.writePlain("Database: %s\n", r.config.Database.Path)
	r.writePlain("Tracks: %d\n", count)
	r.writePlain("With lyrics: %d\n", len(withLyrics))
	r.writePlain("Recorded jobs: %d\n", len(history))
	return nil
}

// CacheExportLyrics writes an LRC file for every cached track with lyrics.
//
// With --keyword the track list comes from a live search instead of the cache.
func (r *Runner) CacheExportLyrics(ctx context.Context, cmd *cli.Command) error {
	var tracks []models.Track
	if keyword := cmd.String("keyword"); keyword != "" {
		found, err := r.searchAll(ctx, keyword, 100)
		if err != nil {
			return err
		}
		tracks = found
	} else {
		store, err := r.trackRepository()
		if err != nil {
			return err
		}
		cached, err := store.List(map[string]any{"has_lyrics": true})
		if err != nil {
			return err
		}
		tracks = cachedTracks(cached)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w: no tracks with lyrics", shared.ErrEmptySelection)
	}

	r.writePlain("Exporting lyrics for %d tracks...\n", len(tracks))
	progressCh := make(chan tasks.ProgressUpdate, len(tracks))
	stop := r.printProgress(progressCh)
	engine := tasks.NewSyncEngine(r.api, nil, r.logger)
	summary, err := engine.ExportLyrics(ctx, progressCh, tracks, tasks.LyricsExportOpts{
		OutputDir:  cmd.String("dir"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	stop()
	if summary != nil {
		r.writePlain("\n")
		r.writePlainHeader("Lyrics Export")
		r.writePlain("Exported: %d\n", summary.Exported)
		r.writePlain("Skipped: %d\n", summary.Skipped)
		r.writePlain("Failed: %d\n", summary.Failed)
		r.writePlain("Directory: %s\n", summary.OutputDirectory)
		if summary.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", summary.ManifestPath)
		}
	}
	return err
}

func cachedTracks(cached []*models.CachedTrack) []models.Track {
	tracks := make([]models.Track, 0, len(cached))
	for _, c := range cached {
		tracks = append(tracks, c.Track())
	}
	return tracks
}
