package player

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

// Status is the playback state of the current track.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusPlaying
	StatusPaused
	StatusBuffering
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusBuffering:
		return "buffering"
	case StatusError:
		return "error"
	default:
		return ""
	}
}

// RepeatMode controls what happens at the playlist boundaries.
type RepeatMode int

const (
	RepeatList RepeatMode = iota // Wrap around the playlist
	RepeatOne                    // Replay the current track when it ends
	RepeatNone                   // Hold at the boundaries
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatList:
		return "list"
	case RepeatOne:
		return "one"
	case RepeatNone:
		return "none"
	default:
		return ""
	}
}

// Next returns the mode that follows m in the list → one → none cycle.
func (m RepeatMode) Next() RepeatMode {
	return (m + 1) % 3
}

// ParseRepeatMode accepts list, one and none.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "list", "all":
		return RepeatList, nil
	case "one", "single":
		return RepeatOne, nil
	case "none", "off":
		return RepeatNone, nil
	default:
		return RepeatList, fmt.Errorf("%w: repeat mode %q", shared.ErrInvalidArgument, s)
	}
}

// State is an immutable snapshot of the controller.
type State struct {
	Playlist     []models.Track
	CurrentIndex int // -1 when nothing is selected
	Status       Status
	Shuffle      bool
	Repeat       RepeatMode
	Volume       int // 0..100
	Muted        bool
	Position     time.Duration
	Duration     time.Duration
	Lyrics       []models.LyricLine
	LyricIndex   int // -1 when no line is active
	RetryCount   int
	LastError    *shared.MediaError
	LastErrorAt  time.Time
}

// Current returns the selected track.
func (s State) Current() (models.Track, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Playlist) {
		return models.Track{}, false
	}
	return s.Playlist[s.CurrentIndex], true
}

// Progress is the position as a fraction of the duration, or 0 when the duration is unknown.
func (s State) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration)
	if p > 1 {
		return 1
	}
	return p
}

// CurrentLyric returns the highlighted lyric line.
func (s State) CurrentLyric() (models.LyricLine, bool) {
	if s.LyricIndex < 0 || s.LyricIndex >= len(s.Lyrics) {
		return models.LyricLine{}, false
	}
	return s.Lyrics[s.LyricIndex], true
}

// UpdateKind tells a renderer what changed.
type UpdateKind int

const (
	UpdateState    UpdateKind = iota // Transport, playlist or settings changed
	UpdatePosition                   // Position advanced
	UpdateLyric                      // Highlighted lyric changed
	UpdateNotice                     // User-visible message
)

// Update is published on every state change.
type Update struct {
	Kind   UpdateKind
	State  State
	Notice string
	Err    error
}

// LyricIndex returns the highest index whose time is at or before pos, or -1.
//
// Lines must be in ascending time order.
func LyricIndex(lines []models.LyricLine, pos time.Duration) int {
	seconds := pos.Seconds()
	idx := -1
	for i, line := range lines {
		if line.Time > seconds {
			break
		}
		idx = i
	}
	return idx
}
