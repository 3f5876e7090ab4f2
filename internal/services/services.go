// package services defines interface Library for interacting with the music library HTTP API
package services

import (
	"context"
	"io"

	"github.com/desertthunder/mtx/internal/models"
)

// Library defines every operation the client performs against the music library server.
type Library interface {
	// Health checks server liveness.
	Health(ctx context.Context) (*models.Health, error)

	// Statistics fetches dashboard counts.
	Statistics(ctx context.Context) (*models.Statistics, error)

	// Search runs a paged keyword search over title, artist and album.
	Search(ctx context.Context, q models.SearchQuery) (*models.TrackPage, error)

	Track(ctx context.Context, id int64) (*models.Track, error)
	UpdateTrack(ctx context.Context, id int64, update models.TrackUpdate) (*models.Track, error)
	DeleteTrack(ctx context.Context, id int64) error
	DeleteAllTracks(ctx context.Context) error
	RefreshTrack(ctx context.Context, id int64) (*models.Track, error)
	BatchUpdate(ctx context.Context, update models.BatchUpdate) (*models.BatchUpdateResult, error)

	// Playlist fetches up to limit playable tracks.
	Playlist(ctx context.Context, limit int) ([]models.Track, error)

	Lyrics(ctx context.Context, id int64) (*models.Lyrics, error)
	FetchLyrics(ctx context.Context, id int64) (*models.FetchResult, error)
	FetchCover(ctx context.Context, id int64) (*models.FetchResult, error)

	BatchAPI
	ScanAPI

	WebDAVConfig(ctx context.Context) (*models.WebDAVConfig, error)
	SaveWebDAVConfig(ctx context.Context, cfg models.WebDAVConfig) (*models.WebDAVConfig, error)
	DeleteWebDAVConfig(ctx context.Context) error
	TestWebDAV(ctx context.Context) (*models.WebDAVTestResult, error)

	// PlayURL returns the absolute stream URL of a track.
	PlayURL(id int64) string
	CoverURL(id int64) string

	// Stream opens a track's audio bytes starting at offset.
	Stream(ctx context.Context, streamURL string, offset int64) (io.ReadCloser, int64, error)
}

// BatchAPI is the slice of [Library] used to start and poll batch jobs.
type BatchAPI interface {
	StartBatch(ctx context.Context, kind models.BatchKind) (*models.BatchStart, error)
	BatchStatus(ctx context.Context) (*models.BatchStatus, error)
}

// ScanAPI is the slice of [Library] used to start and poll library scans.
type ScanAPI interface {
	StartScan(ctx context.Context, recursive bool) (string, error)
	ScanStatus(ctx context.Context) (*models.ScanStatus, error)
	ScanLogs(ctx context.Context, q models.ScanLogQuery) (*models.ScanLogPage, error)
}

var _ Library = (*APIService)(nil)
