package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/mtx/internal/models"
)

const separator = " • "

// trackItem adapts a [models.Track] row for the library list.
type trackItem struct {
	track models.Track
}

var _ list.DefaultItem = trackItem{}

// FilterValue matches on title, artist and album.
func (i trackItem) FilterValue() string {
	return strings.Join([]string{i.track.DisplayTitle(), i.track.Artist, i.track.Album}, " ")
}

func (i trackItem) Title() string { return i.track.DisplayTitle() }

func (i trackItem) Description() string {
	parts := []string{i.track.DisplayArtist()}
	if i.track.Album != "" {
		parts = append(parts, i.track.Album)
	}
	parts = append(parts, i.track.DisplayDuration())
	if i.track.HasLyrics {
		parts = append(parts, "♪")
	}
	return strings.Join(parts, separator)
}

// trackItems wraps a page of tracks for [list.Model.SetItems].
func trackItems(tracks []models.Track) []list.Item {
	items := make([]list.Item, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, trackItem{track: t})
	}
	return items
}

// queueTracks unwraps the listed tracks into a play queue.
func queueTracks(items []list.Item) []models.Track {
	tracks := make([]models.Track, 0, len(items))
	for _, it := range items {
		if ti, ok := it.(trackItem); ok {
			tracks = append(tracks, ti.track)
		}
	}
	return tracks
}
