// package media defines the contract between the playback controller and a streaming audio element.
package media

import (
	"time"

	"github.com/desertthunder/mtx/internal/shared"
)

// ReadyState mirrors how much of a source the element can play without stalling.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (r ReadyState) String() string {
	switch r {
	case HaveNothing:
		return "nothing"
	case HaveMetadata:
		return "metadata"
	case HaveCurrentData:
		return "current_data"
	case HaveFutureData:
		return "future_data"
	case HaveEnoughData:
		return "enough_data"
	default:
		return ""
	}
}

// EventType enumerates element lifecycle events.
type EventType int

const (
	EventCanPlay        EventType = iota // Enough data to start playing
	EventPlaying                         // Playback started or resumed
	EventPaused                          // Playback paused
	EventWaiting                         // Stalled waiting for data
	EventTimeUpdate                      // Position advanced
	EventDurationChange                  // Duration became known
	EventEnded                           // Reached the end of the source
	EventError                           // Loading or decoding failed
)

func (e EventType) String() string {
	switch e {
	case EventCanPlay:
		return "canplay"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventWaiting:
		return "waiting"
	case EventTimeUpdate:
		return "timeupdate"
	case EventDurationChange:
		return "durationchange"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return ""
	}
}

// Event is one notification from the element for the source it was loaded with.
type Event struct {
	Type     EventType
	Position time.Duration      // Set for EventTimeUpdate
	Duration time.Duration      // Set for EventDurationChange
	Err      *shared.MediaError // Set for EventError
}

// Handler receives events for one loaded source.
type Handler func(Event)

// Element is a single streaming audio element.
//
// Load replaces the current source and its handler; events for the previous source must not reach the new handler.
// Implementations must never invoke a handler synchronously from inside one of their own methods.
type Element interface {
	Load(url string, handler Handler) error
	Play() error
	Pause() error
	Stop()
	Seek(pos time.Duration) error
	SetVolume(v float64) // Linear gain in [0, 1]
	SetMuted(muted bool)
	Duration() (time.Duration, bool)
	Position() time.Duration
	ReadyState() ReadyState
	Close() error
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock provides time and delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
