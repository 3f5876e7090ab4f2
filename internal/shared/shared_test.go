package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
		{
			name:   "full width characters",
			title:  "ＡＢＣ",
			artist: "Ｄｅｆ",
			want:   "abc|def",
		},
		{
			name:   "tabs and newlines",
			title:  "Song\tTitle\n",
			artist: "Artist",
			want:   "song title|artist",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{600, "10:00"},
		{-3, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %s, want %s", tt.size, got, tt.want)
		}
	}
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello", "key", "value")

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected log output to contain message, got %q", buf.String())
		}
	})

	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "poller")
		logger.Info("tick")

		if !strings.Contains(buf.String(), "component=poller") {
			t.Errorf("expected child fields in output, got %q", buf.String())
		}
	})

	t.Run("SetLogLevel filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("quiet")

		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		if ll, err := ParseLogLevel(""); err != nil || ll != log.InfoLevel {
			t.Errorf("empty level should be info, got %v %v", ll, err)
		}
		if ll, err := ParseLogLevel("debug"); err != nil || ll != log.DebugLevel {
			t.Errorf("expected debug, got %v %v", ll, err)
		}
		if _, err := ParseLogLevel("loud"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "mtx.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		logger.Info("to file")

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("log file not written: %v", err)
		}
		if !strings.Contains(string(data), "to file") {
			t.Errorf("expected message in log file, got %q", string(data))
		}
	})

	t.Run("NewFileLogger requires a path", func(t *testing.T) {
		if _, err := NewFileLogger(""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("APIError unwraps to ErrAPIRequest", func(t *testing.T) {
		var err error = &APIError{Status: 409, Code: 409, Message: "Batch task already running"}

		if !errors.Is(err, ErrAPIRequest) {
			t.Error("APIError should match ErrAPIRequest")
		}
		if err.Error() != "Batch task already running" {
			t.Errorf("expected server message verbatim, got %q", err.Error())
		}

		apiErr, ok := AsAPIError(err)
		if !ok || apiErr.Code != 409 {
			t.Errorf("AsAPIError failed: %v %v", apiErr, ok)
		}
	})

	t.Run("APIError without message", func(t *testing.T) {
		err := &APIError{Status: 500, Code: 500}
		if !strings.Contains(err.Error(), "500") {
			t.Errorf("expected code in message, got %q", err.Error())
		}
	})

	t.Run("MediaErrorCode messages", func(t *testing.T) {
		tests := []struct {
			code MediaErrorCode
			want string
		}{
			{MediaErrAborted, "media loading aborted"},
			{MediaErrNetwork, "network error"},
			{MediaErrDecode, "decode error"},
			{MediaErrUnsupported, "unsupported format"},
			{MediaErrorCode(42), "playback failed"},
			{MediaErrUnknown, "playback failed"},
		}

		for _, tt := range tests {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("code %d: got %q, want %q", tt.code, got, tt.want)
			}
		}
	})

	t.Run("MediaError wraps cause", func(t *testing.T) {
		cause := errors.New("eof")
		err := NewMediaError(MediaErrDecode, cause)

		if !errors.Is(err, cause) {
			t.Error("MediaError should unwrap to its cause")
		}
		if err.Error() != "decode error: eof" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}
