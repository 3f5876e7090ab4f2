package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/mtx/internal/shared"
)

// Track is one audio file's metadata as served by the library API.
type Track struct {
	ID          int64  `json:"id"`
	FilePath    string `json:"file_path,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	FileSizeStr string `json:"file_size_str,omitempty"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	Duration    int    `json:"duration"` // Duration in seconds
	DurationStr string `json:"duration_str,omitempty"`
	BitRate     int    `json:"bit_rate,omitempty"`
	Format      string `json:"format,omitempty"`
	HasLyrics   bool   `json:"has_lyrics"`
	HasCover    bool   `json:"has_cover"`
	ScanStatus  string `json:"scan_status,omitempty"`
}

// Validate reports whether the track can be played or addressed by the API.
func (t Track) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: id %d", shared.ErrInvalidTrack, t.ID)
	}
	return nil
}

// Key returns the track identifier as a path segment.
func (t Track) Key() string {
	return strconv.FormatInt(t.ID, 10)
}

// PlayPath is the API path of the track's audio stream.
func (t Track) PlayPath() string {
	return "/music/" + t.Key() + "/play"
}

// CoverPath is the API path of the track's cover image.
func (t Track) CoverPath() string {
	return "/music/" + t.Key() + "/cover"
}

// DisplayTitle falls back to the file name when the tags carry no title.
func (t Track) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	if t.FileName != "" {
		return t.FileName
	}
	return "Unknown title"
}

// DisplayArtist returns the artist or a placeholder.
func (t Track) DisplayArtist() string {
	if strings.TrimSpace(t.Artist) != "" {
		return t.Artist
	}
	return "Unknown artist"
}

// DisplayDuration prefers the server-rendered duration string.
func (t Track) DisplayDuration() string {
	if t.DurationStr != "" {
		return t.DurationStr
	}
	return shared.FormatDuration(t.Duration)
}

// TrackPage is one page of search results.
type TrackPage struct {
	Tracks   []Track
	Total    int
	Page     int
	PageSize int
}

// Pages returns the number of pages for the page size.
func (p TrackPage) Pages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// SearchQuery holds paged search parameters.
type SearchQuery struct {
	Keyword  string
	Page     int
	PageSize int
}

// TrackUpdate is the editable metadata of a single track.
type TrackUpdate struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Genre       string `json:"genre"`
	Year        int    `json:"year"`
	TrackNumber int    `json:"track_number"`
}

// BatchUpdate applies shared metadata to several tracks. Empty fields are left untouched server-side.
type BatchUpdate struct {
	IDs    []int64 `json:"ids"`
	Artist string  `json:"artist,omitempty"`
	Album  string  `json:"album,omitempty"`
	Genre  string  `json:"genre,omitempty"`
	Year   int     `json:"year,omitempty"`
}

// Validate rejects an update with no selected tracks or no fields to change.
func (b BatchUpdate) Validate() error {
	if len(b.IDs) == 0 {
		return shared.ErrEmptySelection
	}
	for _, id := range b.IDs {
		if id <= 0 {
			return fmt.Errorf("%w: id %d", shared.ErrInvalidTrack, id)
		}
	}
	if b.Artist == "" && b.Album == "" && b.Genre == "" && b.Year == 0 {
		return fmt.Errorf("%w: nothing to update", shared.ErrInvalidInput)
	}
	return nil
}

// BatchUpdateResult counts the outcome of a [BatchUpdate].
type BatchUpdateResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}
