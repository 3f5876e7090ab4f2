package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

// TrackRepository implements models.Repository[*models.CachedTrack] for the local library cache.
//
// Rows are keyed by the server's track id and soft deleted when the library drops a track.
// The search_key column holds the normalized "title|artist" key used for offline lookups.
type TrackRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.CachedTrack] = (*TrackRepository)(nil)

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `id, sequence, title, artist, album, album_artist, genre, year, track_number, duration,
	format, file_path, file_size, has_lyrics, has_cover, search_key, created_at, updated_at, deleted_at`

// Create inserts a new [models.CachedTrack] with a generated sequence
func (r *TrackRepository) Create(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	track.SetSequence(sequence)

	t := track.Track()
	query := `
		INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = r.db.Exec(query,
		t.ID, sequence, t.Title, t.Artist, t.Album, t.AlbumArtist, t.Genre, t.Year, t.TrackNumber, t.Duration,
		t.Format, t.FilePath, t.FileSize, t.HasLyrics, t.HasCover, track.SearchKey(),
		track.CreatedAt(), track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Get retrieves a track by its server id, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.CachedTrack, error) {
	trackID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: track id %q", shared.ErrInvalidInput, id)
	}
	return r.GetByTrackID(trackID)
}

// GetByTrackID retrieves a track by its numeric server id
func (r *TrackRepository) GetByTrackID(id int64) (*models.CachedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	track, err := scanTrack(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shared.ErrTrackNotFound, id)
	}
	return track, err
}

// Update rewrites the cached metadata of an existing track
func (r *TrackRepository) Update(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	t := track.Track()
	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, album_artist = ?, genre = ?, year = ?, track_number = ?,
			duration = ?, format = ?, file_path = ?, file_size = ?, has_lyrics = ?, has_cover = ?,
			search_key = ?, updated_at = ?, deleted_at = NULL
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		t.Title, t.Artist, t.Album, t.AlbumArtist, t.Genre, t.Year, t.TrackNumber,
		t.Duration, t.Format, t.FilePath, t.FileSize, t.HasLyrics, t.HasCover,
		track.SearchKey(), now, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", shared.ErrTrackNotFound, t.ID)
	}
	return nil
}

// Upsert caches a server track, creating the row or refreshing it (and reviving soft-deleted rows).
func (r *TrackRepository) Upsert(t models.Track) (*models.CachedTrack, error) {
	var (
		sequence  int
		createdAt time.Time
	)
	err := r.db.QueryRow(`SELECT sequence, created_at FROM tracks WHERE id = ?`, t.ID).Scan(&sequence, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		track := models.NewCachedTrack(0, t)
		if err := r.Create(track); err != nil {
			return nil, err
		}
		return track, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up track: %w", err)
	}

	track := models.NewCachedTrack(sequence, t)
	track.SetCreatedAt(createdAt)
	if err := r.Update(track); err != nil {
		return nil, err
	}
	return track, nil
}

// Delete soft-deletes a track by its server id
func (r *TrackRepository) Delete(id string) error {
	trackID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: track id %q", shared.ErrInvalidInput, id)
	}

	result, err := r.db.Exec(`UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), trackID)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return nil
}

// DeleteMissing soft-deletes every live track whose id is not in keep and returns how many were removed.
func (r *TrackRepository) DeleteMissing(keep []int64) (int, error) {
	kept := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	rows, err := r.db.Query(`SELECT id FROM tracks WHERE deleted_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to query tracks: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan track id: %w", err)
		}
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range stale {
		if _, err := tx.Exec(`UPDATE tracks SET deleted_at = ? WHERE id = ?`, now, id); err != nil {
			return 0, fmt.Errorf("failed to delete track %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return len(stale), nil
}

// List retrieves cached tracks matching the given criteria, excluding soft-deleted tracks.
//
// Supported criteria: "keyword" (matched against title, artist and album), "artist", "album",
// "has_lyrics" (bool) and "limit" (int).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.CachedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if keyword, ok := criteria["keyword"].(string); ok && strings.TrimSpace(keyword) != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
		query += " AND (LOWER(title) LIKE ? OR LOWER(artist) LIKE ? OR LOWER(album) LIKE ?)"
		args = append(args, like, like, like)
	}
	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}
	if album, ok := criteria["album"].(string); ok && album != "" {
		query += " AND album = ?"
		args = append(args, album)
	}
	if hasLyrics, ok := criteria["has_lyrics"].(bool); ok {
		query += " AND has_lyrics = ?"
		args = append(args, hasLyrics)
	}

	query += " ORDER BY sequence ASC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// FindByKey looks up tracks by normalized title and artist.
func (r *TrackRepository) FindByKey(title, artist string) ([]*models.CachedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE search_key = ? AND deleted_at IS NULL ORDER BY sequence ASC`
	return r.query(query, shared.NormalizeTrackKey(title, artist))
}

// Count returns the number of live cached tracks.
func (r *TrackRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM tracks WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

func (r *TrackRepository) query(query string, args ...any) ([]*models.CachedTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.CachedTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func scanTrack(s scanner) (*models.CachedTrack, error) {
	var (
		t         models.Track
		sequence  int
		searchKey string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := s.Scan(
		&t.ID, &sequence, &t.Title, &t.Artist, &t.Album, &t.AlbumArtist, &t.Genre, &t.Year, &t.TrackNumber, &t.Duration,
		&t.Format, &t.FilePath, &t.FileSize, &t.HasLyrics, &t.HasCover, &searchKey, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track := models.NewCachedTrack(sequence, t)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}
	return track, nil
}
