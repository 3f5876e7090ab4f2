package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	tu "github.com/desertthunder/mtx/internal/testing"
)

func exportLibrary() (*fakeLibrary, []models.Track) {
	tracks := []models.Track{
		{ID: 1, Title: "Song One", Artist: "Artist One"},
		{ID: 2, Title: "Instrumental", Artist: "Artist Two"},
		{ID: 3, Title: "Broken", Artist: "Artist Three"},
	}
	lib := &fakeLibrary{
		tracks: tracks,
		lyrics: map[int64]*models.Lyrics{
			1: {HasLyrics: true, Parsed: []models.LyricLine{{Time: 5, Text: "first"}, {Time: 12.5, Text: "second"}}},
		},
		lyricErrs: map[int64]error{3: errors.New("lyrics file unreadable")},
	}
	return lib, tracks
}

func TestExportLyrics(t *testing.T) {
	t.Run("exports, skips and records failures", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "lyrics")
		lib, tracks := exportLibrary()
		engine := NewSyncEngine(lib, nil, nil)
		progressCh := make(chan ProgressUpdate, 10)

		summary, err := engine.ExportLyrics(context.Background(), progressCh, tracks, LyricsExportOpts{OutputDir: dir, NumWorkers: 2, RateLimit: 1000})
		if err != nil {
			t.Fatalf("ExportLyrics() error = %v", err)
		}
		if summary.TotalTracks != 3 || summary.Exported != 1 || summary.Skipped != 1 || summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if len(progressCh) != 3 {
			t.Errorf("expected 3 progress updates, got %d", len(progressCh))
		}

		lrc := filepath.Join(dir, "1_artist_one_song_one.lrc")
		tu.RequireFile(t, lrc)
		content := tu.ReadFile(t, lrc)
		for _, want := range []string{"[ti:Song One]", "[00:05.00]first", "[00:12.50]second"} {
			if !strings.Contains(content, want) {
				t.Errorf("LRC file missing %q:\n%s", want, content)
			}
		}

		if summary.ManifestPath != filepath.Join(dir, "export_manifest.json") {
			t.Errorf("manifest path = %q", summary.ManifestPath)
		}
		var manifest struct {
			TotalTracks int `json:"total_tracks"`
			Results     []struct {
				TrackID int64  `json:"track_id"`
				Error   string `json:"error"`
			} `json:"results"`
		}
		if err := json.Unmarshal([]byte(tu.ReadFile(t, summary.ManifestPath)), &manifest); err != nil {
			t.Fatalf("manifest is not valid JSON: %v", err)
		}
		if manifest.TotalTracks != 3 || len(manifest.Results) != 3 {
			t.Errorf("unexpected manifest %+v", manifest)
		}
		for _, res := range manifest.Results {
			if res.TrackID == 3 && !strings.Contains(res.Error, "lyrics file unreadable") {
				t.Errorf("failed track error = %q", res.Error)
			}
		}
	})

	t.Run("default options", func(t *testing.T) {
		lib, tracks := exportLibrary()
		engine := NewSyncEngine(lib, nil, nil)
		t.Chdir(t.TempDir())

		summary, err := engine.ExportLyrics(context.Background(), nil, tracks[:1], LyricsExportOpts{NumWorkers: 50})
		if err != nil {
			t.Fatalf("ExportLyrics() error = %v", err)
		}
		if !strings.HasPrefix(summary.OutputDirectory, "lyrics_export_") {
			t.Errorf("default output directory = %q", summary.OutputDirectory)
		}
		tu.RequireDir(t, summary.OutputDirectory)
	})

	t.Run("progress never blocks", func(t *testing.T) {
		lib, tracks := exportLibrary()
		engine := NewSyncEngine(lib, nil, nil)
		progressCh := make(chan ProgressUpdate)

		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := engine.ExportLyrics(context.Background(), progressCh, tracks, LyricsExportOpts{OutputDir: t.TempDir(), RateLimit: 1000}); err != nil {
				t.Errorf("ExportLyrics() error = %v", err)
			}
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("ExportLyrics blocked on progress sends")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		lib, tracks := exportLibrary()
		engine := NewSyncEngine(lib, nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		summary, err := engine.ExportLyrics(ctx, nil, tracks, LyricsExportOpts{OutputDir: t.TempDir(), NumWorkers: 1})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if summary == nil {
			t.Fatal("summary should not be nil")
		}
		if summary.Exported != 0 {
			t.Errorf("nothing should be exported after cancellation, got %d", summary.Exported)
		}
	})

	t.Run("invalid output directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		lib, tracks := exportLibrary()
		engine := NewSyncEngine(lib, nil, nil)
		if _, err := engine.ExportLyrics(context.Background(), nil, tracks, LyricsExportOpts{OutputDir: filepath.Join(file, "sub")}); err == nil {
			t.Error("expected an error for an output path under a file")
		}
	})

	t.Run("requires a library", func(t *testing.T) {
		engine := NewSyncEngine(nil, nil, nil)
		if _, err := engine.ExportLyrics(context.Background(), nil, nil, LyricsExportOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
