package models

import "time"

// LyricLine is one timed line of synced lyrics.
type LyricLine struct {
	Time float64 `json:"time"` // Offset in seconds
	Text string  `json:"text"`
}

// Lyrics is the lyrics payload of a track.
type Lyrics struct {
	Raw       string      `json:"lyrics"`
	Parsed    []LyricLine `json:"parsed"`
	HasLyrics bool        `json:"has_lyrics"`
}

// NameCount is one row of a top-N statistic.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics is the library dashboard summary.
type Statistics struct {
	Total      int         `json:"total"`
	TopArtists []NameCount `json:"top_artists"`
	TopAlbums  []NameCount `json:"top_albums"`
	TopGenres  []NameCount `json:"top_genres"`
}

// Health is the liveness probe response.
type Health struct {
	Status string `json:"status"`
	Time   string `json:"time,omitempty"`
	Port   any    `json:"port,omitempty"`
}

// FetchResult reports a single-track lyrics or cover fetch.
type FetchResult struct {
	LyricsPath string `json:"lyrics_path,omitempty"`
	CoverPath  string `json:"cover_path,omitempty"`
	HasLyrics  bool   `json:"has_lyrics,omitempty"`
	HasCover   bool   `json:"has_cover,omitempty"`
}

// WebDAVConfig is the server's WebDAV source settings.
type WebDAVConfig struct {
	ID         int64      `json:"id,omitempty"`
	URL        string     `json:"url"`
	Username   string     `json:"username"`
	Password   string     `json:"password,omitempty"`
	RootPath   string     `json:"root_path"`
	Enabled    bool       `json:"enabled"`
	LastTest   *time.Time `json:"last_test,omitempty"`
	TestStatus string     `json:"test_status,omitempty"`
	TestError  string     `json:"test_error,omitempty"`
}

// WebDAVTestResult is the outcome of a connectivity probe.
//
// The stored-config probe reports count while the ad-hoc probe reports files_found.
type WebDAVTestResult struct {
	Count      int    `json:"count"`
	FilesFound int    `json:"files_found"`
	URL        string `json:"url,omitempty"`
	RootPath   string `json:"root_path,omitempty"`
}

// Files returns the number of audio files the probe found.
func (r WebDAVTestResult) Files() int {
	if r.FilesFound > r.Count {
		return r.FilesFound
	}
	return r.Count
}

// ScanStatus is the state of the server's library scan.
type ScanStatus struct {
	Running   bool      `json:"running"`
	TaskID    string    `json:"task_id"`
	LastLog   string    `json:"last_log"`
	LastLevel string    `json:"last_level"`
	LastTime  time.Time `json:"last_time"`
}

// ScanLog is one entry of a scan's log.
type ScanLog struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanLogPage is one page of scan logs.
type ScanLogPage struct {
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	List     []ScanLog `json:"list"`
}

// ScanLogQuery filters scan logs.
type ScanLogQuery struct {
	TaskID   string
	Page     int
	PageSize int
}
