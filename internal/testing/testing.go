// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/mtx/internal/models"
)

// StubLyrics serves lyrics from a map keyed by track ID
type StubLyrics struct {
	Lines map[int64][]models.LyricLine
	Err   error
	Calls atomic.Int32
}

func (s *StubLyrics) Lyrics(ctx context.Context, id int64) (*models.Lyrics, error) {
	s.Calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	lines, ok := s.Lines[id]
	return &models.Lyrics{Parsed: lines, HasLyrics: ok}, nil
}

var (
	errWrite = errors.New("write failed")
	errRead  = errors.New("read failed")
)

// BrokenWriter accepts Allow writes into Target, then fails every later write.
//
// The zero value fails immediately.
type BrokenWriter struct {
	Allow  int
	Target io.Writer
	writes int
}

func (w *BrokenWriter) Write(p []byte) (int, error) {
	if w.writes >= w.Allow || w.Target == nil {
		return 0, errWrite
	}
	w.writes++
	return w.Target.Write(p)
}

// RoundTripFunc stubs an [http.RoundTripper].
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// StubClient returns a client whose every request yields resp and err.
func StubClient(resp *http.Response, err error) *http.Client {
	return &http.Client{Transport: RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return resp, err
	})}
}

// BrokenBody is a response body that cannot be read.
type BrokenBody struct{}

func (BrokenBody) Read([]byte) (int, error) { return 0, errRead }
func (BrokenBody) Close() error             { return nil }

// InDir runs the rest of the test with dir as the working directory.
func InDir(t *testing.T, dir string) {
	t.Helper()
	t.Chdir(dir)
}

// RequireFile fails the test unless path is a regular file.
func RequireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	switch {
	case err != nil:
		t.Errorf("missing file %s: %v", path, err)
	case info.IsDir():
		t.Errorf("expected a file, found directory: %s", path)
	}
}

// RequireDir fails the test unless path is a directory.
func RequireDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	switch {
	case err != nil:
		t.Errorf("missing directory %s: %v", path, err)
	case !info.IsDir():
		t.Errorf("expected a directory: %s", path)
	}
}

// ReadFile returns the contents of path or stops the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}
