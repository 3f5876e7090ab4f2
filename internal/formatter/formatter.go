// package formatter exports track lists and lyrics to files (JSON, CSV, Markdown, plain text, LRC)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts json, csv, markdown (md) and txt (text).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: export format %q", shared.ErrInvalidFlag, s)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// TrackExport is a named list of tracks to export.
type TrackExport struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Total       int            `json:"total"`
	ExportedAt  time.Time      `json:"exported_at"`
	Tracks      []models.Track `json:"tracks"`
}

// NewTrackExport stamps a track list with the current time.
func NewTrackExport(title string, tracks []models.Track) *TrackExport {
	return &TrackExport{Title: title, Total: len(tracks), ExportedAt: time.Now().UTC(), Tracks: tracks}
}

// ExportToJSON renders an indented JSON document.
func ExportToJSON(export *TrackExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts a TrackExport to CSV format with columns: ID, Title, Artist, Album, Genre, Year, Duration, Format, Path
func ExportToCSV(export *TrackExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Genre", "Year", "Duration", "Format", "Path"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		year := ""
		if track.Year > 0 {
			year = strconv.Itoa(track.Year)
		}
		record := []string{
			strconv.FormatInt(track.ID, 10),
			track.Title,
			track.Artist,
			track.Album,
			track.Genre,
			year,
			strconv.Itoa(track.Duration),
			track.Format,
			track.FilePath,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a TrackExport to Markdown format with optional cover image
func ExportToMarkdown(export *TrackExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	if export.Total > len(export.Tracks) {
		fmt.Fprintf(&buf, "**Library total**: %d\n", export.Total)
	}
	buf.WriteString("\n## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.DisplayArtist(), track.DisplayTitle(), albumPart, track.DisplayDuration())
	}

	return buf.Bytes(), nil
}

// ExportToText converts a TrackExport to plain text format
func ExportToText(export *TrackExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Title)
	if export.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.DisplayArtist(), track.DisplayTitle())
	}

	return buf.Bytes(), nil
}

// ExportToLRC renders synced lyrics with title and artist tags.
func ExportToLRC(track models.Track, lines []models.LyricLine) []byte {
	var buf bytes.Buffer
	if track.Title != "" {
		fmt.Fprintf(&buf, "[ti:%s]\n", track.Title)
	}
	if track.Artist != "" {
		fmt.Fprintf(&buf, "[ar:%s]\n", track.Artist)
	}
	if track.Album != "" {
		fmt.Fprintf(&buf, "[al:%s]\n", track.Album)
	}
	for _, line := range lines {
		fmt.Fprintf(&buf, "[%s]%s\n", LRCTimestamp(line.Time), line.Text)
	}
	return buf.Bytes()
}

// LRCTimestamp formats seconds as mm:ss.xx.
func LRCTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	centis := int(seconds*100 + 0.5)
	return fmt.Sprintf("%02d:%02d.%02d", centis/6000, (centis/100)%60, centis%100)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a track list to Markdown format in a dedicated directory.
//
// The imageURL parameter is optional - if provided, attempts to download the cover image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(export *TrackExport, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = Slug(export.Title)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteExport writes a track list in the given format and returns the files created.
//
// Markdown exports treat path as a directory; every other format treats it as a file.
func WriteExport(export *TrackExport, format Format, path, imageURL string) ([]string, error) {
	if format == FormatMarkdown {
		res, err := WriteMarkdownExport(export, path, imageURL)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(export)
	case FormatText:
		data, err = ExportToText(export)
	default:
		data, err = ExportToJSON(export)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if path == "" {
		path = Slug(export.Title) + "." + format.Ext()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return []string{path}, nil
}

// WriteLRCExport writes a track's lyrics to path.
func WriteLRCExport(track models.Track, lines []models.LyricLine, path string) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: track %d has no synced lyrics", shared.ErrInvalidInput, track.ID)
	}
	if err := os.WriteFile(path, ExportToLRC(track, lines), 0644); err != nil {
		return fmt.Errorf("failed to write LRC file: %w", err)
	}
	return nil
}

// WriteManifest writes v as indented JSON.
func WriteManifest(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Slug turns a title into a lowercase file name.
func Slug(s string) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if slug == "" {
		return "export"
	}
	return slug
}
