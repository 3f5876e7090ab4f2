package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	"golang.org/x/time/rate"
)

// Library is the slice of the library API used by [SyncEngine].
type Library interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.TrackPage, error)
	Lyrics(ctx context.Context, id int64) (*models.Lyrics, error)
}

// TrackStore persists cached tracks.
type TrackStore interface {
	Upsert(track models.Track) (*models.CachedTrack, error)
	DeleteMissing(keep []int64) (int, error)
}

// SyncOpts contains configuration for a cache sync.
type SyncOpts struct {
	Keyword   string  // Restrict the sync to a search (disables pruning)
	PageSize  int     // Tracks per request (default: 100)
	RateLimit float64 // Requests per second (default: 5)
	Prune     bool    // Delete cached tracks the library no longer has
}

// SyncResult summarises a cache sync.
type SyncResult struct {
	Total   int // Library total reported by the server
	Pages   int
	Fetched int
	Stored  int
	Failed  int
	Removed int
}

// SyncEngine mirrors the library into the local cache and exports lyrics in bulk.
type SyncEngine struct {
	lib    Library
	store  TrackStore
	logger *log.Logger
}

// NewSyncEngine creates a SyncEngine. store may be nil for engines that only export.
func NewSyncEngine(lib Library, store TrackStore, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{lib: lib, store: store, logger: logger}
}

// Sync pages through the library search and upserts every track into the cache.
func (e *SyncEngine) Sync(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOpts) (*SyncResult, error) {
	if e.lib == nil || e.store == nil {
		return nil, fmt.Errorf("%w: sync engine needs a library and a store", shared.ErrServiceUnavailable)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	result := &SyncResult{}
	seen := make([]int64, 0, opts.PageSize)

	for page, pages := 1, 1; page <= pages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		res, err := e.lib.Search(ctx, models.SearchQuery{Keyword: opts.Keyword, Page: page, PageSize: opts.PageSize})
		if err != nil {
			return result, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		pages = res.Pages()
		result.Total = res.Total
		result.Pages++
		result.Fetched += len(res.Tracks)

		for _, track := range res.Tracks {
			if _, err := e.store.Upsert(track); err != nil {
				result.Failed++
				e.logger.Warn("failed to cache track", "id", track.ID, "error", err)
				continue
			}
			result.Stored++
			seen = append(seen, track.ID)
		}
		sendProgress(progress, syncPageUpdate(page, pages, result.Stored))

		if len(res.Tracks) == 0 {
			break
		}
	}

	if opts.Prune && opts.Keyword == "" && result.Failed == 0 {
		removed, err := e.store.DeleteMissing(seen)
		if err != nil {
			return result, fmt.Errorf("failed to prune cache: %w", err)
		}
		result.Removed = removed
		sendProgress(progress, syncPruneUpdate(removed))
	}

	e.logger.Info("cache synced", "total", result.Total, "stored", result.Stored, "failed", result.Failed, "removed", result.Removed)
	return result, nil
}
