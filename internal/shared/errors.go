package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrJobNotFound        = fmt.Errorf("batch job not found")
	ErrJobRunning         = fmt.Errorf("another job is running")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Playback errors
	ErrEmptyPlaylist   = fmt.Errorf("playlist is empty")
	ErrInvalidIndex    = fmt.Errorf("track index out of range")
	ErrInvalidTrack    = fmt.Errorf("track has no valid identifier")
	ErrNoSource        = fmt.Errorf("no source loaded")
	ErrDurationUnknown = fmt.Errorf("duration not known yet")
	ErrRetryLimit      = fmt.Errorf("too many retries")
	ErrRetryBackoff    = fmt.Errorf("retry attempted too soon")
	ErrNotInErrorState = fmt.Errorf("player is not in an error state")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrEmptySelection  = fmt.Errorf("no tracks selected")
)

// APIError is an application-level failure reported by the server through a non-zero envelope code.
//
// The message is the server's, surfaced verbatim.
type APIError struct {
	Status  int    // HTTP status code
	Code    int    // Envelope code
	Message string // Server message
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned code %d (HTTP %d)", e.Code, e.Status)
	}
	return e.Message
}

// Unwrap lets callers match any server-reported failure with [ErrAPIRequest].
func (e *APIError) Unwrap() error {
	return ErrAPIRequest
}

// AsAPIError extracts an [APIError] from err when present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// MediaErrorCode classifies playback failures the way media pipelines report them.
type MediaErrorCode int

const (
	MediaErrUnknown     MediaErrorCode = 0
	MediaErrAborted     MediaErrorCode = 1
	MediaErrNetwork     MediaErrorCode = 2
	MediaErrDecode      MediaErrorCode = 3
	MediaErrUnsupported MediaErrorCode = 4
	// MediaErrTimeout is raised by the controller when loading takes too long.
	MediaErrTimeout MediaErrorCode = 5
)

var mediaErrorMessages = map[MediaErrorCode]string{
	MediaErrAborted:     "media loading aborted",
	MediaErrNetwork:     "network error",
	MediaErrDecode:      "decode error",
	MediaErrUnsupported: "unsupported format",
	MediaErrTimeout:     "loading timed out",
}

// Message returns the user-facing text for the code.
func (c MediaErrorCode) Message() string {
	if msg, ok := mediaErrorMessages[c]; ok {
		return msg
	}
	return "playback failed"
}

// MediaError is a classified playback failure.
type MediaError struct {
	Code  MediaErrorCode
	Cause error
}

// NewMediaError builds a [MediaError] for code with an optional underlying cause.
func NewMediaError(code MediaErrorCode, cause error) *MediaError {
	return &MediaError{Code: code, Cause: cause}
}

func (e *MediaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code.Message(), e.Cause)
	}
	return e.Code.Message()
}

func (e *MediaError) Unwrap() error {
	return e.Cause
}
