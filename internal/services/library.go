package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

func trackPath(id int64, suffix string) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("%w: id %d", shared.ErrInvalidTrack, id)
	}
	return "/music/" + strconv.FormatInt(id, 10) + suffix, nil
}

// Health checks server liveness. The probe is served at the server root, outside the API prefix.
func (a *APIService) Health(ctx context.Context) (*models.Health, error) {
	resp, err := a.do(ctx, http.MethodGet, a.rootURL()+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: health: %v", shared.ErrServiceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: health returned HTTP %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	var health models.Health
	if resp.IsJSON {
		_ = json.Unmarshal(resp.Body, &health)
	}
	if health.Status == "" {
		health.Status = "ok"
	}
	return &health, nil
}

// Statistics fetches dashboard counts.
func (a *APIService) Statistics(ctx context.Context) (*models.Statistics, error) {
	var stats models.Statistics
	if _, err := a.call(ctx, http.MethodGet, "/statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Search runs a paged keyword search.
func (a *APIService) Search(ctx context.Context, q models.SearchQuery) (*models.TrackPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}

	var tracks []models.Track
	env, err := a.call(ctx, http.MethodGet, "/music/search?"+params.Encode(), nil, &tracks)
	if err != nil {
		return nil, err
	}

	page := &models.TrackPage{Tracks: tracks, Total: env.Total, Page: env.Page, PageSize: env.PageSize}
	if page.Page == 0 {
		page.Page = q.Page
	}
	if page.PageSize == 0 {
		page.PageSize = q.PageSize
	}
	if page.Total == 0 {
		page.Total = len(tracks)
	}
	return page, nil
}

// Track fetches one track's detail.
func (a *APIService) Track(ctx context.Context, id int64) (*models.Track, error) {
	path, err := trackPath(id, "")
	if err != nil {
		return nil, err
	}

	var track models.Track
	if _, err := a.call(ctx, http.MethodGet, path, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// UpdateTrack edits one track's metadata.
func (a *APIService) UpdateTrack(ctx context.Context, id int64, update models.TrackUpdate) (*models.Track, error) {
	path, err := trackPath(id, "")
	if err != nil {
		return nil, err
	}

	var track models.Track
	if _, err := a.call(ctx, http.MethodPut, path, update, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// DeleteTrack removes one track from the library.
func (a *APIService) DeleteTrack(ctx context.Context, id int64) error {
	path, err := trackPath(id, "")
	if err != nil {
		return err
	}
	_, err = a.call(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// DeleteAllTracks empties the library.
func (a *APIService) DeleteAllTracks(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodDelete, "/music", nil, nil)
	return err
}

// RefreshTrack asks the server to re-read tags for a track.
func (a *APIService) RefreshTrack(ctx context.Context, id int64) (*models.Track, error) {
	path, err := trackPath(id, "/refresh")
	if err != nil {
		return nil, err
	}

	var track models.Track
	if _, err := a.call(ctx, http.MethodPost, path, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// BatchUpdate applies shared metadata to several tracks. The update is validated before any request.
func (a *APIService) BatchUpdate(ctx context.Context, update models.BatchUpdate) (*models.BatchUpdateResult, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var result models.BatchUpdateResult
	if _, err := a.call(ctx, http.MethodPost, "/music/batch", update, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Playlist fetches up to limit playable tracks.
func (a *APIService) Playlist(ctx context.Context, limit int) ([]models.Track, error) {
	path := "/music/playlist"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var tracks []models.Track
	if _, err := a.call(ctx, http.MethodGet, path, nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Lyrics fetches a track's synced lyrics.
func (a *APIService) Lyrics(ctx context.Context, id int64) (*models.Lyrics, error) {
	path, err := trackPath(id, "/lyrics")
	if err != nil {
		return nil, err
	}

	var lyrics models.Lyrics
	if _, err := a.call(ctx, http.MethodGet, path, nil, &lyrics); err != nil {
		return nil, err
	}
	return &lyrics, nil
}

// FetchLyrics triggers an external lyrics lookup for one track.
func (a *APIService) FetchLyrics(ctx context.Context, id int64) (*models.FetchResult, error) {
	return a.fetchOne(ctx, id, "/fetch-lyrics")
}

// FetchCover triggers an external cover lookup for one track.
func (a *APIService) FetchCover(ctx context.Context, id int64) (*models.FetchResult, error) {
	return a.fetchOne(ctx, id, "/fetch-cover")
}

func (a *APIService) fetchOne(ctx context.Context, id int64, suffix string) (*models.FetchResult, error) {
	path, err := trackPath(id, suffix)
	if err != nil {
		return nil, err
	}

	var result models.FetchResult
	if _, err := a.call(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartBatch starts a batch job of kind and returns its start response.
func (a *APIService) StartBatch(ctx context.Context, kind models.BatchKind) (*models.BatchStart, error) {
	path := kind.StartPath()
	if path == "" || kind == models.BatchScan {
		return nil, fmt.Errorf("%w: unknown batch kind %q", shared.ErrInvalidArgument, kind)
	}

	var start models.BatchStart
	if _, err := a.call(ctx, http.MethodPost, path, nil, &start); err != nil {
		return nil, err
	}
	return &start, nil
}

// BatchStatus polls the running batch job.
func (a *APIService) BatchStatus(ctx context.Context) (*models.BatchStatus, error) {
	var status models.BatchStatus
	if _, err := a.call(ctx, http.MethodGet, "/music/batch-status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PlayURL is the absolute URL of a track's audio stream.
func (a *APIService) PlayURL(id int64) string {
	return a.baseURL + models.Track{ID: id}.PlayPath()
}

// CoverURL is the absolute URL of a track's cover image.
func (a *APIService) CoverURL(id int64) string {
	return a.baseURL + models.Track{ID: id}.CoverPath()
}

// Stream opens the audio byte stream at streamURL. The caller closes the body.
//
// A positive offset is sent as a Range request.
func (a *APIService) Stream(ctx context.Context, streamURL string, offset int64) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: stream: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiResp := &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}
		if _, err := decodeEnvelope(apiResp); err != nil {
			return nil, 0, err
		}
		return nil, 0, &shared.APIError{Status: resp.StatusCode, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return resp.Body, resp.ContentLength, nil
}

// WebDAVConfig fetches the stored WebDAV settings.
func (a *APIService) WebDAVConfig(ctx context.Context) (*models.WebDAVConfig, error) {
	var cfg models.WebDAVConfig
	if _, err := a.call(ctx, http.MethodGet, "/webdav/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveWebDAVConfig stores WebDAV settings. An empty password keeps the stored one.
func (a *APIService) SaveWebDAVConfig(ctx context.Context, cfg models.WebDAVConfig) (*models.WebDAVConfig, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: webdav url", shared.ErrMissingArgument)
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}

	req := struct {
		URL      string `json:"url"`
		Username string `json:"username"`
		Password string `json:"password"`
		RootPath string `json:"root_path"`
		Enabled  bool   `json:"enabled"`
	}{cfg.URL, cfg.Username, cfg.Password, cfg.RootPath, cfg.Enabled}

	var saved models.WebDAVConfig
	if _, err := a.call(ctx, http.MethodPost, "/webdav/config", req, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteWebDAVConfig removes the stored WebDAV settings.
func (a *APIService) DeleteWebDAVConfig(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodDelete, "/webdav/config", nil, nil)
	return err
}

// TestWebDAV probes the stored WebDAV source.
func (a *APIService) TestWebDAV(ctx context.Context) (*models.WebDAVTestResult, error) {
	var result models.WebDAVTestResult
	if _, err := a.call(ctx, http.MethodPost, "/webdav/test", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartScan starts a library scan and returns its task id.
func (a *APIService) StartScan(ctx context.Context, recursive bool) (string, error) {
	req := map[string]bool{"recursive": recursive}
	env, err := a.call(ctx, http.MethodPost, "/scan", req, nil)
	if err != nil {
		return "", err
	}
	return env.TaskID, nil
}

// ScanStatus polls the library scan.
func (a *APIService) ScanStatus(ctx context.Context) (*models.ScanStatus, error) {
	var status models.ScanStatus
	if _, err := a.call(ctx, http.MethodGet, "/scan/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ScanLogs fetches a page of scan logs, optionally for one task.
func (a *APIService) ScanLogs(ctx context.Context, q models.ScanLogQuery) (*models.ScanLogPage, error) {
	params := url.Values{}
	if q.TaskID != "" {
		params.Set("task_id", q.TaskID)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}

	path := "/scan/logs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	env, err := a.call(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	page := &models.ScanLogPage{Total: env.Total, Page: env.Page, PageSize: env.PageSize}
	if hasPayload(env.List) {
		if err := json.Unmarshal(env.List, &page.List); err != nil {
			return nil, fmt.Errorf("%w: failed to decode scan logs: %v", shared.ErrAPIRequest, err)
		}
	}
	return page, nil
}
