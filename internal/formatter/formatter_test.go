package formatter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	th "github.com/desertthunder/mtx/internal/testing"
)

func sampleExport() *TrackExport {
	return &TrackExport{
		Title:       "Late Night",
		Description: "Search results for night",
		Total:       40,
		Tracks: []models.Track{
			{ID: 11, Title: "Song One", Artist: "Artist One", Album: "Album One", Genre: "Jazz", Year: 1999, Duration: 180, Format: "flac", FilePath: "/music/one.flac"},
			{ID: 12, Title: "Song, Two", Artist: "Artist Two", Duration: 245, Format: "mp3"},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Title,Artist,Album,Genre,Year,Duration,Format,Path") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "11,Song One,Artist One,Album One,Jazz,1999,180,flac,/music/one.flac") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, `12,"Song, Two",Artist Two,,,,245,mp3,`) {
			t.Errorf("CSV did not quote comma or blank zero year, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleExport(), "cover.jpg")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Late Night",
			"![Cover](cover.jpg)",
			"**Description**: Search results for night",
			"**Tracks**: 2",
			"**Library total**: 40",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. Artist Two - Song, Two [4:05]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown Without Cover", func(t *testing.T) {
		data, _ := ExportToMarkdown(&TrackExport{Title: "Empty"}, "")
		if strings.Contains(string(data), "![Cover]") {
			t.Error("unexpected cover reference")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Playlist: Late Night", "Tracks: 2", "1. Artist One - Song One", "2. Artist Two - Song, Two"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q", want)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded TrackExport
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Title != "Late Night" || len(decoded.Tracks) != 2 || decoded.Tracks[1].ID != 12 {
			t.Errorf("unexpected document: %+v", decoded)
		}
	})
}

func TestLRC(t *testing.T) {
	t.Run("Timestamp", func(t *testing.T) {
		tests := []struct {
			in   float64
			want string
		}{
			{0, "00:00.00"},
			{5.5, "00:05.50"},
			{62.347, "01:02.35"},
			{600, "10:00.00"},
			{-3, "00:00.00"},
		}
		for _, tt := range tests {
			if got := LRCTimestamp(tt.in); got != tt.want {
				t.Errorf("LRCTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("ExportToLRC", func(t *testing.T) {
		track := models.Track{ID: 3, Title: "Song", Artist: "Band"}
		lines := []models.LyricLine{{Time: 0, Text: "first"}, {Time: 12.5, Text: "second"}}

		got := string(ExportToLRC(track, lines))
		want := "[ti:Song]\n[ar:Band]\n[00:00.00]first\n[00:12.50]second\n"
		if got != want {
			t.Errorf("expected:\n%s\ngot:\n%s", want, got)
		}
	})

	t.Run("WriteLRCExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.lrc")
		track := models.Track{ID: 3, Title: "Song"}
		if err := WriteLRCExport(track, []models.LyricLine{{Time: 1, Text: "hi"}}, path); err != nil {
			t.Fatalf("WriteLRCExport failed: %v", err)
		}
		th.RequireFile(t, path)
		if content := th.ReadFile(t, path); !strings.Contains(content, "[00:01.00]hi") {
			t.Errorf("unexpected content %q", content)
		}
	})

	t.Run("WriteLRCExport Without Lines", func(t *testing.T) {
		err := WriteLRCExport(models.Track{ID: 3}, nil, filepath.Join(t.TempDir(), "x.lrc"))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestFileExports(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		tests := []struct {
			format Format
			want   string
		}{
			{FormatJSON, `"title": "Late Night"`},
			{FormatCSV, "ID,Title,Artist"},
			{FormatText, "Playlist: Late Night"},
		}
		for _, tt := range tests {
			t.Run(string(tt.format), func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "nested", "out."+tt.format.Ext())
				files, err := WriteExport(sampleExport(), tt.format, path, "")
				if err != nil {
					t.Fatalf("WriteExport failed: %v", err)
				}
				if len(files) != 1 || files[0] != path {
					t.Errorf("unexpected files %v", files)
				}
				if content := th.ReadFile(t, path); !strings.Contains(content, tt.want) {
					t.Errorf("file missing %q", tt.want)
				}
			})
		}
	})

	t.Run("WriteExport Default Path", func(t *testing.T) {
		th.InDir(t, t.TempDir())

		files, err := WriteExport(sampleExport(), FormatCSV, "", "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if files[0] != "late_night.csv" {
			t.Errorf("expected late_night.csv, got %s", files[0])
		}
		th.RequireFile(t, "late_night.csv")
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("fake image"))
		}))
		defer server.Close()

		dir := filepath.Join(t.TempDir(), "late")
		result, err := WriteMarkdownExport(sampleExport(), dir, server.URL)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		th.RequireDir(t, dir)
		th.RequireFile(t, filepath.Join(dir, "README.md"))
		th.RequireFile(t, filepath.Join(dir, "cover.jpg"))
		if len(result.Files) != 2 || result.CoverImage == "" {
			t.Errorf("unexpected result %+v", result)
		}
		if content := th.ReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(content, "![Cover](cover.jpg)") {
			t.Error("README missing cover reference")
		}
	})

	t.Run("WriteMarkdownExport Cover Failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		dir := t.TempDir()
		result, err := WriteMarkdownExport(sampleExport(), dir, server.URL)
		if err != nil {
			t.Fatalf("cover failure should not fail export: %v", err)
		}
		if result.CoverImage != "" || len(result.Files) != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("WriteManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		if err := WriteManifest(map[string]int{"exported": 3}, path); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
		if content := th.ReadFile(t, path); !strings.Contains(content, `"exported": 3`) {
			t.Errorf("unexpected manifest %q", content)
		}
	})

	t.Run("WriteExport Unwritable", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := WriteExport(sampleExport(), FormatJSON, filepath.Join(blocker, "out.json"), ""); err == nil {
			t.Error("expected error writing below a regular file")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("Empty URL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("img"))
		}))
		defer server.Close()

		data, err := DownloadImage(server.URL)
		if err != nil || string(data) != "img" {
			t.Errorf("unexpected result %q %v", data, err)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"md", FormatMarkdown, false},
		{"text", FormatText, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	}
	if FormatMarkdown.Ext() != "md" || FormatCSV.Ext() != "csv" {
		t.Error("unexpected extensions")
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Late Night":   "late_night",
		"  AC/DC!! ":   "ac_dc",
		"Café Mélange": "café_mélange",
		"***":          "export",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
