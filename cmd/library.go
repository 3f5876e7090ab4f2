package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mtx/internal/formatter"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Health checks that the library server is reachable.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	health, err := r.api.Health(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(health, true)
	}
	r.writePlain("✓ Server %s\n", health.Status)
	if health.Time != "" {
		r.writePlain("  Time: %s\n", health.Time)
	}
	return nil
}

// Stats prints the library dashboard: total tracks and the top artists, albums and genres.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.api.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch statistics: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlainHeader("Library Statistics")
	r.writePlain("Total tracks: %d\n", stats.Total)
	for _, section := range []struct {
		title string
		rows  []models.NameCount
	}{
		{"Top artists", stats.TopArtists},
		{"Top albums", stats.TopAlbums},
		{"Top genres", stats.TopGenres},
	} {
		if len(section.rows) == 0 {
			continue
		}
		r.writePlain("\n%s:\n", section.title)
		for i, row := range section.rows {
			r.writePlain("  %2d. %s (%d)\n", i+1, row.Name, row.Count)
		}
	}
	return nil
}

// Search lists one page of tracks matching a keyword.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	keyword := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	q := models.SearchQuery{Keyword: keyword, Page: cmd.Int("page"), PageSize: cmd.Int("page-size")}

	r.logger.Debug("searching library", "keyword", keyword, "page", q.Page)
	page, err := r.api.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, true)
	}

	if len(page.Tracks) == 0 {
		r.writePlain("No tracks found\n")
		return nil
	}
	r.writeTrackTable(page.Tracks)
	r.writePlain("\nPage %d of %d (%d tracks)\n", page.Page, max(page.Pages(), 1), page.Total)
	return nil
}

// TrackShow prints one track's detail.
func (r *Runner) TrackShow(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	track, err := r.api.Track(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, true)
	}
	r.writeTrackDetail(track)
	return nil
}

// TrackUpdate edits a track's metadata. Flags that are not set keep the current values.
func (r *Runner) TrackUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	current, err := r.api.Track(ctx, id)
	if err != nil {
		return err
	}

	update := models.TrackUpdate{
		Title:       current.Title,
		Artist:      current.Artist,
		Album:       current.Album,
		Genre:       current.Genre,
		Year:        current.Year,
		TrackNumber: current.TrackNumber,
	}
	changed := false
	for name, field := range map[string]*string{
		"title": &update.Title, "artist": &update.Artist, "album": &update.Album, "genre": &update.Genre,
	} {
		if cmd.IsSet(name) {
			*field = cmd.String(name)
			changed = true
		}
	}
	if cmd.IsSet("year") {
		update.Year = cmd.Int("year")
		changed = true
	}
	if cmd.IsSet("track-number") {
		update.TrackNumber = cmd.Int("track-number")
		changed = true
	}
	if !changed {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	track, err := r.api.UpdateTrack(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	r.logger.Info("track updated", "id", id)
	r.writePlain("✓ Updated track %d: %s - %s\n", track.ID, track.DisplayArtist(), track.DisplayTitle())
	return nil
}

// TrackDelete removes one track from the library.
func (r *Runner) TrackDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	if err := r.api.DeleteTrack(ctx, id); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	r.logger.Info("track deleted", "id", id)
	r.writePlain("✓ Deleted track %d\n", id)
	return nil
}

// TrackDeleteAll empties the library. It refuses to run without --yes.
func (r *Runner) TrackDeleteAll(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to delete every track", shared.ErrMissingArgument)
	}

	if err := r.api.DeleteAllTracks(ctx); err != nil {
		return fmt.Errorf("failed to delete tracks: %w", err)
	}
	r.logger.Warn("library emptied")
	r.writePlain("✓ Deleted all tracks\n")
	return nil
}

// TrackRefresh asks the server to re-read a track's tags.
func (r *Runner) TrackRefresh(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	track, err := r.api.RefreshTrack(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to refresh track: %w", err)
	}
	r.writePlain("✓ Refreshed track %d: %s - %s\n", track.ID, track.DisplayArtist(), track.DisplayTitle())
	return nil
}

// BatchUpdate applies shared metadata to several tracks.
func (r *Runner) BatchUpdate(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.String("ids"))
	if err != nil {
		return err
	}

	update := models.BatchUpdate{
		IDs:    ids,
		Artist: cmd.String("artist"),
		Album:  cmd.String("album"),
		Genre:  cmd.String("genre"),
		Year:   cmd.Int("year"),
	}
	if err := update.Validate(); err != nil {
		return err
	}

	result, err := r.api.BatchUpdate(ctx, update)
	if err != nil {
		return fmt.Errorf("batch update failed: %w", err)
	}
	r.logger.Info("batch update", "updated", result.Updated, "failed", result.Failed)
	r.writePlain("✓ Updated %d tracks", result.Updated)
	if result.Failed > 0 {
		r.writePlain(", %d failed", result.Failed)
	}
	r.writePlain("\n")
	return nil
}

// TrackLyrics prints a track's synced lyrics, or writes them as an LRC file with --lrc.
func (r *Runner) TrackLyrics(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	lyrics, err := r.api.Lyrics(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch lyrics: %w", err)
	}

	if path := cmd.String("lrc"); path != "" {
		track, err := r.api.Track(ctx, id)
		if err != nil {
			return err
		}
		if err := formatter.WriteLRCExport(*track, lyrics.Parsed, path); err != nil {
			return err
		}
		r.writePlain("✓ Lyrics written to %s\n", path)
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(lyrics, true)
	}

	if !lyrics.HasLyrics {
		r.writePlain("No lyrics for track %d\n", id)
		return nil
	}
	if len(lyrics.Parsed) == 0 {
		r.writePlain("%s\n", lyrics.Raw)
		return nil
	}
	for _, line := range lyrics.Parsed {
		r.writePlain("[%s] %s\n", formatter.LRCTimestamp(line.Time), line.Text)
	}
	return nil
}

// TrackFetchLyrics triggers a lyrics lookup for one track.
func (r *Runner) TrackFetchLyrics(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	result, err := r.api.FetchLyrics(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch lyrics: %w", err)
	}
	if result.LyricsPath != "" {
		r.writePlain("✓ Lyrics saved to %s\n", result.LyricsPath)
	} else {
		r.writePlain("✓ Lyrics fetched for track %d\n", id)
	}
	return nil
}

// TrackFetchCover triggers a cover lookup for one track.
func (r *Runner) TrackFetchCover(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	result, err := r.api.FetchCover(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch cover: %w", err)
	}
	if result.CoverPath != "" {
		r.writePlain("✓ Cover saved to %s\n", result.CoverPath)
	} else {
		r.writePlain("✓ Cover fetched for track %d\n", id)
	}
	return nil
}

// Export writes every track matching a keyword (or the whole library) as JSON, CSV, Markdown or text.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	keyword := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))

	tracks, err := r.searchAll(ctx, keyword, cmd.Int("page-size"))
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w: no tracks to export", shared.ErrEmptySelection)
	}

	title := cmd.String("title")
	if title == "" {
		title = "Library"
		if keyword != "" {
			title = "Search: " + keyword
		}
	}

	imageURL := ""
	if format == formatter.FormatMarkdown {
		for _, t := range tracks {
			if t.HasCover {
				imageURL = r.api.CoverURL(t.ID)
				break
			}
		}
	}

	files, err := formatter.WriteExport(formatter.NewTrackExport(title, tracks), format, cmd.String("output"), imageURL)
	if err != nil {
		return err
	}
	r.logger.Info("export complete", "format", format, "tracks", len(tracks))
	r.writePlain("✓ Exported %d tracks\n", len(tracks))
	for _, f := range files {
		r.writePlain("  %s\n", f)
	}
	return nil
}

// searchAll pages through the search endpoint until every matching track is collected.
func (r *Runner) searchAll(ctx context.Context, keyword string, pageSize int) ([]models.Track, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var tracks []models.Track
	for page, pages := 1, 1; page <= pages; page++ {
		res, err := r.api.Search(ctx, models.SearchQuery{Keyword: keyword, Page: page, PageSize: pageSize})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		tracks = append(tracks, res.Tracks...)
		if len(res.Tracks) == 0 {
			break
		}
		pages = res.Pages()
	}
	return tracks, nil
}

func (r *Runner) writeTrackTable(tracks []models.Track) {
	r.writePlain("%-6s  %-32s  %-24s  %-24s  %s\n", "ID", "Title", "Artist", "Album", "Time")
	for _, t := range tracks {
		r.writePlain("%-6d  %-32s  %-24s  %-24s  %s\n",
			t.ID, truncate(t.DisplayTitle(), 32), truncate(t.DisplayArtist(), 24), truncate(t.Album, 24), t.DisplayDuration())
	}
}

func (r *Runner) writeTrackDetail(t *models.Track) {
	r.writePlainHeader(t.DisplayTitle())
	r.writePlain("ID:       %d\n", t.ID)
	r.writePlain("Artist:   %s\n", t.DisplayArtist())
	r.writePlain("Album:    %s\n", t.Album)
	if t.Genre != "" {
		r.writePlain("Genre:    %s\n", t.Genre)
	}
	if t.Year > 0 {
		r.writePlain("Year:     %d\n", t.Year)
	}
	r.writePlain("Duration: %s\n", t.DisplayDuration())
	if t.Format != "" {
		r.writePlain("Format:   %s\n", t.Format)
	}
	if t.FilePath != "" {
		r.writePlain("File:     %s\n", t.FilePath)
	}
	if t.FileSize > 0 {
		r.writePlain("Size:     %s\n", shared.FormatFileSize(t.FileSize))
	}
	r.writePlain("Lyrics:   %s\n", yesNo(t.HasLyrics))
	r.writePlain("Cover:    %s\n", yesNo(t.HasCover))
	r.writePlain("Stream:   %s\n", r.api.PlayURL(t.ID))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
