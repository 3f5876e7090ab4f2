package player

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/mtx/internal/media"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	tu "github.com/desertthunder/mtx/internal/testing"
)

type fixture struct {
	ctrl  *Controller
	media *tu.FakeMedia
	clock *tu.FakeClock
}

func newFixture(t *testing.T, n int, opts Options) fixture {
	t.Helper()
	el := tu.NewFakeMedia()
	clock := tu.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	opts.Clock = clock
	opts.Logger = shared.NewLogger(io.Discard)
	if opts.BaseURL == "" {
		opts.BaseURL = "http://music.test/api/v1"
	}
	ctrl := NewController(el, opts)
	t.Cleanup(func() { ctrl.Close() })

	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{ID: int64(i + 1), Title: "Track", Duration: 180}
	}
	ctrl.LoadPlaylist(tracks)
	return fixture{ctrl: ctrl, media: el, clock: clock}
}

func (f fixture) startPlaying(t *testing.T, index int) {
	t.Helper()
	if err := f.ctrl.PlayTrack(index); err != nil {
		t.Fatalf("PlayTrack(%d) failed: %v", index, err)
	}
	f.media.SetReadyState(media.HaveEnoughData)
	f.media.Emit(media.Event{Type: media.EventCanPlay})
	f.media.Emit(media.Event{Type: media.EventPlaying})
}

func (f fixture) fail(code shared.MediaErrorCode) {
	f.media.Emit(media.Event{Type: media.EventError, Err: shared.NewMediaError(code, nil)})
}

func TestPlayTrack(t *testing.T) {
	t.Run("Valid Index Enters Loading", func(t *testing.T) {
		for i := range 4 {
			f := newFixture(t, 4, Options{})
			if err := f.ctrl.PlayTrack(i); err != nil {
				t.Fatalf("PlayTrack(%d) returned %v", i, err)
			}
			s := f.ctrl.Snapshot()
			if s.CurrentIndex != i {
				t.Errorf("expected index %d, got %d", i, s.CurrentIndex)
			}
			if s.Status != StatusLoading {
				t.Errorf("expected loading, got %v", s.Status)
			}
		}
	})

	t.Run("Assigns Stream Source", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		if err := f.ctrl.PlayTrack(2); err != nil {
			t.Fatal(err)
		}
		loads := f.media.Loads()
		if len(loads) != 1 {
			t.Fatalf("expected 1 load, got %d", len(loads))
		}
		if want := "http://music.test/api/v1/music/3/play"; loads[0].URL != want {
			t.Errorf("expected %q, got %q", want, loads[0].URL)
		}
		if f.media.Calls("stop") != 1 {
			t.Errorf("expected media to be stopped before loading")
		}
	})

	t.Run("Invalid Index Is A No-op", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		f.startPlaying(t, 1)

		for _, idx := range []int{-1, 3, 99} {
			err := f.ctrl.PlayTrack(idx)
			if !errors.Is(err, shared.ErrInvalidIndex) {
				t.Errorf("PlayTrack(%d): expected ErrInvalidIndex, got %v", idx, err)
			}
		}
		s := f.ctrl.Snapshot()
		if s.CurrentIndex != 1 || s.Status != StatusPlaying {
			t.Errorf("state changed after invalid index: index=%d status=%v", s.CurrentIndex, s.Status)
		}
		if len(f.media.Loads()) != 1 {
			t.Errorf("expected no extra load, got %d", len(f.media.Loads()))
		}
	})

	t.Run("Track Without ID Is Rejected", func(t *testing.T) {
		f := newFixture(t, 0, Options{})
		f.ctrl.LoadPlaylist([]models.Track{{Title: "orphan"}})
		if err := f.ctrl.PlayTrack(0); !errors.Is(err, shared.ErrInvalidTrack) {
			t.Errorf("expected ErrInvalidTrack, got %v", err)
		}
		if f.ctrl.Snapshot().Status != StatusIdle {
			t.Errorf("expected idle status")
		}
	})

	t.Run("Emits Notice On Invalid Index", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		drain(f.ctrl)
		_ = f.ctrl.PlayTrack(5)
		found := false
		for _, u := range drain(f.ctrl) {
			if u.Kind == UpdateNotice && errors.Is(u.Err, shared.ErrInvalidIndex) {
				found = true
			}
		}
		if !found {
			t.Error("expected a notice update")
		}
	})

	t.Run("Ready Then Playing", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.media.Emit(media.Event{Type: media.EventCanPlay})
		if got := f.ctrl.Snapshot().Status; got != StatusReady {
			t.Errorf("expected ready, got %v", got)
		}
		if !f.media.Playing() {
			t.Error("expected play to be requested on canplay")
		}
		f.media.Emit(media.Event{Type: media.EventPlaying})
		if got := f.ctrl.Snapshot().Status; got != StatusPlaying {
			t.Errorf("expected playing, got %v", got)
		}
	})

	t.Run("Resets Decode State", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		f.startPlaying(t, 0)
		f.media.Emit(media.Event{Type: media.EventDurationChange, Duration: 3 * time.Minute})
		f.ctrl.SetLyrics(1, []models.LyricLine{{Time: 0, Text: "a"}})
		f.media.Emit(media.Event{Type: media.EventTimeUpdate, Position: 30 * time.Second})

		_ = f.ctrl.PlayTrack(1)
		s := f.ctrl.Snapshot()
		if s.Position != 0 || s.Duration != 0 || len(s.Lyrics) != 0 || s.LyricIndex != -1 {
			t.Errorf("decode state not reset: %+v", s)
		}
	})

	t.Run("Load Error Fails Immediately", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		f.media.LoadErr = errors.New("no device")
		if err := f.ctrl.PlayTrack(0); err == nil {
			t.Fatal("expected error")
		}
		s := f.ctrl.Snapshot()
		if s.Status != StatusError || s.LastError.Code != shared.MediaErrNetwork {
			t.Errorf("expected network error state, got %v %+v", s.Status, s.LastError)
		}
	})
}

func TestStaleLoads(t *testing.T) {
	t.Run("Superseded Handler Is Ignored", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		_ = f.ctrl.PlayTrack(0)
		stale := f.media.Loads()[0].Handler
		_ = f.ctrl.PlayTrack(1)

		stale(media.Event{Type: media.EventError, Err: shared.NewMediaError(shared.MediaErrNetwork, nil)})
		stale(media.Event{Type: media.EventPlaying})

		s := f.ctrl.Snapshot()
		if s.CurrentIndex != 1 || s.Status != StatusLoading {
			t.Errorf("stale handler changed state: index=%d status=%v", s.CurrentIndex, s.Status)
		}
		if s.RetryCount != 0 {
			t.Errorf("stale error counted: %d", s.RetryCount)
		}
	})

	t.Run("Superseded Timeout Is Cancelled", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.clock.Advance(6 * time.Second)
		_ = f.ctrl.PlayTrack(1)
		f.media.SetReadyState(media.HaveEnoughData)
		f.media.Emit(media.Event{Type: media.EventCanPlay})
		f.media.Emit(media.Event{Type: media.EventPlaying})
		f.media.SetReadyState(media.HaveNothing)

		f.clock.Advance(5 * time.Second)
		if got := f.ctrl.Snapshot().Status; got != StatusPlaying {
			t.Errorf("stale timeout fired: status %v", got)
		}
		if f.clock.Pending() != 0 {
			t.Errorf("expected no pending timers, got %d", f.clock.Pending())
		}
	})

	t.Run("Load Timeout", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.media.SetReadyState(media.HaveMetadata)

		f.clock.Advance(9 * time.Second)
		if got := f.ctrl.Snapshot().Status; got != StatusLoading {
			t.Fatalf("timed out early: %v", got)
		}
		f.clock.Advance(time.Second)
		s := f.ctrl.Snapshot()
		if s.Status != StatusError {
			t.Fatalf("expected error after 10s, got %v", s.Status)
		}
		if s.LastError.Code != shared.MediaErrTimeout {
			t.Errorf("expected timeout code, got %v", s.LastError.Code)
		}
	})

	t.Run("Timeout Skipped When Data Is Buffered", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.media.SetReadyState(media.HaveFutureData)
		f.clock.Advance(DefaultLoadTimeout)
		if got := f.ctrl.Snapshot().Status; got == StatusError {
			t.Errorf("unexpected timeout with future data buffered")
		}
	})
}

func TestTogglePlay(t *testing.T) {
	t.Run("No Source Plays First Track", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		if err := f.ctrl.TogglePlay(); err != nil {
			t.Fatal(err)
		}
		s := f.ctrl.Snapshot()
		if s.CurrentIndex != 0 || s.Status != StatusLoading {
			t.Errorf("expected loading index 0, got %d %v", s.CurrentIndex, s.Status)
		}
	})

	t.Run("Empty Playlist", func(t *testing.T) {
		f := newFixture(t, 0, Options{})
		if err := f.ctrl.TogglePlay(); !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected ErrEmptyPlaylist, got %v", err)
		}
	})

	t.Run("Buffering Is A No-op", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		f.startPlaying(t, 0)
		f.media.Emit(media.Event{Type: media.EventWaiting})
		pauses := f.media.Calls("pause")

		if err := f.ctrl.TogglePlay(); err != nil {
			t.Fatal(err)
		}
		if f.media.Calls("pause") != pauses {
			t.Error("toggle while buffering touched the media element")
		}
		if got := f.ctrl.Snapshot().Status; got != StatusBuffering {
			t.Errorf("expected buffering, got %v", got)
		}
	})

	t.Run("Pause And Resume", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		f.startPlaying(t, 0)

		_ = f.ctrl.TogglePlay()
		if got := f.ctrl.Snapshot().Status; got != StatusPaused || f.media.Playing() {
			t.Errorf("expected paused, got %v", got)
		}
		_ = f.ctrl.TogglePlay()
		if got := f.ctrl.Snapshot().Status; got != StatusPlaying || !f.media.Playing() {
			t.Errorf("expected playing, got %v", got)
		}
	})
}

func TestNavigation(t *testing.T) {
	t.Run("Next Then Previous Round Trip", func(t *testing.T) {
		for _, mode := range []RepeatMode{RepeatList, RepeatOne, RepeatNone} {
			for start := 1; start < 4; start++ {
				f := newFixture(t, 5, Options{Repeat: mode})
				_ = f.ctrl.PlayTrack(start)
				_ = f.ctrl.Next()
				_ = f.ctrl.Previous()
				if got := f.ctrl.Snapshot().CurrentIndex; got != start {
					t.Errorf("mode %v start %d: expected %d, got %d", mode, start, start, got)
				}
			}
		}
	})

	t.Run("No Repeat Holds At Last", func(t *testing.T) {
		f := newFixture(t, 3, Options{Repeat: RepeatNone})
		f.startPlaying(t, 2)
		loads := len(f.media.Loads())
		for range 3 {
			if err := f.ctrl.Next(); err != nil {
				t.Fatal(err)
			}
			if got := f.ctrl.Snapshot().CurrentIndex; got != 2 {
				t.Fatalf("expected to hold at 2, got %d", got)
			}
		}
		if len(f.media.Loads()) != loads {
			t.Errorf("holding should not reload the track")
		}
		if got := f.ctrl.Snapshot().Status; got != StatusPlaying {
			t.Errorf("expected playback to continue, got %v", got)
		}
	})

	t.Run("No Repeat Holds At First", func(t *testing.T) {
		f := newFixture(t, 3, Options{Repeat: RepeatNone})
		_ = f.ctrl.PlayTrack(0)
		_ = f.ctrl.Previous()
		if got := f.ctrl.Snapshot().CurrentIndex; got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("Loop List Wraps", func(t *testing.T) {
		f := newFixture(t, 3, Options{Repeat: RepeatList})
		_ = f.ctrl.PlayTrack(2)
		_ = f.ctrl.Next()
		if got := f.ctrl.Snapshot().CurrentIndex; got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
		_ = f.ctrl.Previous()
		if got := f.ctrl.Snapshot().CurrentIndex; got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
	})

	t.Run("Shuffle Uses Random Index", func(t *testing.T) {
		var asked []int
		f := newFixture(t, 6, Options{Repeat: RepeatNone, Shuffle: true, Rand: func(n int) int {
			asked = append(asked, n)
			return 4
		}})
		_ = f.ctrl.PlayTrack(5)
		_ = f.ctrl.Next()
		if got := f.ctrl.Snapshot().CurrentIndex; got != 4 {
			t.Errorf("expected 4, got %d", got)
		}
		if len(asked) != 1 || asked[0] != 6 {
			t.Errorf("expected one draw over 6 tracks, got %v", asked)
		}
	})

	t.Run("Empty Playlist", func(t *testing.T) {
		f := newFixture(t, 0, Options{})
		if err := f.ctrl.Next(); !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected ErrEmptyPlaylist, got %v", err)
		}
		if err := f.ctrl.Previous(); !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected ErrEmptyPlaylist, got %v", err)
		}
	})

	t.Run("Cycle Repeat", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		want := []RepeatMode{RepeatOne, RepeatNone, RepeatList}
		for _, w := range want {
			if got := f.ctrl.CycleRepeat(); got != w {
				t.Errorf("expected %v, got %v", w, got)
			}
		}
	})
}

func TestEnded(t *testing.T) {
	tests := []struct {
		name      string
		repeat    RepeatMode
		start     int
		wantIndex int
		wantLoads int
		want      Status
	}{
		{"Loop One Replays", RepeatOne, 1, 1, 2, StatusLoading},
		{"Loop List Wraps", RepeatList, 2, 0, 2, StatusLoading},
		{"Advances", RepeatNone, 0, 1, 2, StatusLoading},
		{"No Repeat Stops At End", RepeatNone, 2, 2, 1, StatusPaused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 3, Options{Repeat: tt.repeat})
			f.startPlaying(t, tt.start)
			f.media.Emit(media.Event{Type: media.EventEnded})

			s := f.ctrl.Snapshot()
			if s.CurrentIndex != tt.wantIndex {
				t.Errorf("expected index %d, got %d", tt.wantIndex, s.CurrentIndex)
			}
			if s.Status != tt.want {
				t.Errorf("expected %v, got %v", tt.want, s.Status)
			}
			if got := len(f.media.Loads()); got != tt.wantLoads {
				t.Errorf("expected %d loads, got %d", tt.wantLoads, got)
			}
		})
	}
}

func TestRetry(t *testing.T) {
	t.Run("Twice Within Backoff Reloads At Most Once", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		_ = f.ctrl.PlayTrack(1)
		f.fail(shared.MediaErrNetwork)

		f.clock.Advance(time.Second)
		_ = f.ctrl.Retry()
		_ = f.ctrl.Retry()
		if got := len(f.media.Loads()); got != 1 {
			t.Errorf("expected no reload inside backoff, got %d loads", got)
		}

		f.clock.Advance(2 * time.Second)
		first := f.ctrl.Retry()
		second := f.ctrl.Retry()
		if first != nil {
			t.Fatalf("expected first retry to reload, got %v", first)
		}
		if !errors.Is(second, shared.ErrNotInErrorState) {
			t.Errorf("expected second retry refused, got %v", second)
		}
		if got := len(f.media.Loads()); got != 2 {
			t.Errorf("expected exactly one reload, got %d loads", got)
		}
	})

	t.Run("Backoff Error", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.fail(shared.MediaErrDecode)
		if err := f.ctrl.Retry(); !errors.Is(err, shared.ErrRetryBackoff) {
			t.Errorf("expected ErrRetryBackoff, got %v", err)
		}
	})

	t.Run("Limit After Three Failures", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.PlayTrack(0)
		for i := range 3 {
			f.fail(shared.MediaErrNetwork)
			f.clock.Advance(DefaultRetryBackoff)
			if i < 2 {
				if err := f.ctrl.Retry(); err != nil {
					t.Fatalf("retry %d refused: %v", i+1, err)
				}
			}
		}
		if got := f.ctrl.Snapshot().RetryCount; got != 3 {
			t.Fatalf("expected 3 failures, got %d", got)
		}
		if err := f.ctrl.Retry(); !errors.Is(err, shared.ErrRetryLimit) {
			t.Errorf("expected ErrRetryLimit, got %v", err)
		}
	})

	t.Run("Playing Resets Count", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.fail(shared.MediaErrNetwork)
		f.clock.Advance(DefaultRetryBackoff)
		_ = f.ctrl.Retry()
		f.media.Emit(media.Event{Type: media.EventCanPlay})
		f.media.Emit(media.Event{Type: media.EventPlaying})
		if got := f.ctrl.Snapshot().RetryCount; got != 0 {
			t.Errorf("expected reset, got %d", got)
		}
	})

	t.Run("Not In Error", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		f.startPlaying(t, 0)
		if err := f.ctrl.Retry(); !errors.Is(err, shared.ErrNotInErrorState) {
			t.Errorf("expected ErrNotInErrorState, got %v", err)
		}
	})

	t.Run("Error Classification", func(t *testing.T) {
		tests := []struct {
			code shared.MediaErrorCode
			want string
		}{
			{shared.MediaErrAborted, "media loading aborted"},
			{shared.MediaErrNetwork, "network error"},
			{shared.MediaErrDecode, "decode error"},
			{shared.MediaErrUnsupported, "unsupported format"},
			{shared.MediaErrorCode(9), "playback failed"},
		}
		for _, tt := range tests {
			f := newFixture(t, 1, Options{})
			_ = f.ctrl.PlayTrack(0)
			f.fail(tt.code)
			s := f.ctrl.Snapshot()
			if s.Status != StatusError {
				t.Errorf("code %d: expected error status", tt.code)
			}
			if s.LastError.Error() != tt.want {
				t.Errorf("code %d: expected %q, got %q", tt.code, tt.want, s.LastError.Error())
			}
		}
	})
}

func TestSeek(t *testing.T) {
	t.Run("Unknown Duration", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.PlayTrack(0)
		if err := f.ctrl.Seek(0.5); !errors.Is(err, shared.ErrDurationUnknown) {
			t.Errorf("expected ErrDurationUnknown, got %v", err)
		}
		if f.media.Calls("seek") != 0 {
			t.Error("seek reached the element")
		}
	})

	t.Run("Fraction Of Duration", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		f.startPlaying(t, 0)
		f.media.Emit(media.Event{Type: media.EventDurationChange, Duration: 200 * time.Second})
		if err := f.ctrl.Seek(0.25); err != nil {
			t.Fatal(err)
		}
		if got := f.media.Position(); got != 50*time.Second {
			t.Errorf("expected 50s, got %v", got)
		}
	})

	t.Run("Out Of Range", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		f.startPlaying(t, 0)
		for _, v := range []float64{-0.1, 1.5} {
			if err := f.ctrl.Seek(v); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("Seek(%v): expected ErrInvalidInput, got %v", v, err)
			}
		}
	})

	t.Run("No Source", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		if err := f.ctrl.Seek(0.5); !errors.Is(err, shared.ErrNoSource) {
			t.Errorf("expected ErrNoSource, got %v", err)
		}
	})
}

func TestVolume(t *testing.T) {
	t.Run("Mute Round Trip", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		if err := f.ctrl.SetVolume(60); err != nil {
			t.Fatal(err)
		}
		f.ctrl.ToggleMute()
		if s := f.ctrl.Snapshot(); !s.Muted || !f.media.Muted() {
			t.Error("expected muted")
		}
		f.ctrl.ToggleMute()
		s := f.ctrl.Snapshot()
		if s.Muted || s.Volume != 60 {
			t.Errorf("expected volume 60 unmuted, got %d muted=%v", s.Volume, s.Muted)
		}
		if f.media.Volume() != 0.6 {
			t.Errorf("expected device gain 0.6, got %v", f.media.Volume())
		}
	})

	t.Run("Unmute From Zero Restores Last Level", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		_ = f.ctrl.SetVolume(45)
		_ = f.ctrl.SetVolume(0)
		f.ctrl.ToggleMute()
		f.ctrl.ToggleMute()
		if got := f.ctrl.Snapshot().Volume; got != 45 {
			t.Errorf("expected 45, got %d", got)
		}
	})

	t.Run("Out Of Range", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		if err := f.ctrl.SetVolume(101); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestLyrics(t *testing.T) {
	lines := []models.LyricLine{{Time: 0, Text: "one"}, {Time: 5, Text: "two"}, {Time: 12, Text: "three"}}

	t.Run("Highlight Index", func(t *testing.T) {
		tests := []struct {
			pos  time.Duration
			want int
		}{
			{7 * time.Second, 1},
			{12 * time.Second, 2},
			{0, 0},
			{4999 * time.Millisecond, 0},
			{time.Minute, 2},
		}
		for _, tt := range tests {
			if got := LyricIndex(lines, tt.pos); got != tt.want {
				t.Errorf("LyricIndex(%v) = %d, want %d", tt.pos, got, tt.want)
			}
		}
		if got := LyricIndex(nil, time.Second); got != -1 {
			t.Errorf("expected -1 for no lyrics, got %d", got)
		}
		late := []models.LyricLine{{Time: 3, Text: "late"}}
		if got := LyricIndex(late, time.Second); got != -1 {
			t.Errorf("expected -1 before first line, got %d", got)
		}
	})

	t.Run("Updates Only On Change", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		f.startPlaying(t, 0)
		f.ctrl.SetLyrics(1, lines)
		drain(f.ctrl)

		for _, p := range []time.Duration{6, 7, 8, 13} {
			f.media.Emit(media.Event{Type: media.EventTimeUpdate, Position: p * time.Second})
		}
		changes := 0
		for _, u := range drain(f.ctrl) {
			if u.Kind == UpdateLyric {
				changes++
			}
		}
		if changes != 2 {
			t.Errorf("expected 2 highlight changes, got %d", changes)
		}
		if got := f.ctrl.Snapshot().LyricIndex; got != 2 {
			t.Errorf("expected index 2, got %d", got)
		}
	})

	t.Run("Fetched On Load", func(t *testing.T) {
		stub := &tu.StubLyrics{Lines: map[int64][]models.LyricLine{1: lines}}
		f := newFixture(t, 0, Options{Lyrics: stub})
		f.ctrl.LoadPlaylist([]models.Track{{ID: 1, HasLyrics: true}})
		_ = f.ctrl.PlayTrack(0)

		deadline := time.Now().Add(2 * time.Second)
		for len(f.ctrl.Snapshot().Lyrics) != 3 {
			if time.Now().After(deadline) {
				t.Fatal("lyrics never attached")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	t.Run("Ignores Other Track", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		_ = f.ctrl.PlayTrack(0)
		f.ctrl.SetLyrics(2, lines)
		if got := len(f.ctrl.Snapshot().Lyrics); got != 0 {
			t.Errorf("expected no lyrics, got %d", got)
		}
	})

	t.Run("Seek To Lyric", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		f.startPlaying(t, 0)
		f.ctrl.SetLyrics(1, lines)
		_ = f.ctrl.TogglePlay()

		if err := f.ctrl.SeekToLyric(1); err != nil {
			t.Fatal(err)
		}
		s := f.ctrl.Snapshot()
		if f.media.Position() != 5*time.Second || s.LyricIndex != 1 {
			t.Errorf("expected position 5s at line 1, got %v line %d", f.media.Position(), s.LyricIndex)
		}
		if s.Status != StatusPlaying {
			t.Errorf("expected playback to resume, got %v", s.Status)
		}
		if err := f.ctrl.SeekToLyric(9); !errors.Is(err, shared.ErrInvalidIndex) {
			t.Errorf("expected ErrInvalidIndex, got %v", err)
		}
	})
}

func TestPlaylist(t *testing.T) {
	t.Run("Load Keeps Index", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		_ = f.ctrl.PlayTrack(1)
		f.ctrl.LoadPlaylist([]models.Track{{ID: 7}, {ID: 8}, {ID: 9}})
		if got := f.ctrl.Snapshot().CurrentIndex; got != 1 {
			t.Errorf("expected 1, got %d", got)
		}
	})

	t.Run("Empty Load Clears Index", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		_ = f.ctrl.PlayTrack(1)
		f.ctrl.LoadPlaylist(nil)
		if got := f.ctrl.Snapshot().CurrentIndex; got != -1 {
			t.Errorf("expected -1, got %d", got)
		}
	})

	t.Run("Play Appends Unknown Track", func(t *testing.T) {
		f := newFixture(t, 2, Options{})
		if err := f.ctrl.Play(models.Track{ID: 42}); err != nil {
			t.Fatal(err)
		}
		s := f.ctrl.Snapshot()
		if len(s.Playlist) != 3 || s.CurrentIndex != 2 {
			t.Errorf("expected appended track at 2, got len=%d index=%d", len(s.Playlist), s.CurrentIndex)
		}
		if err := f.ctrl.Play(models.Track{ID: 1}); err != nil {
			t.Fatal(err)
		}
		if s := f.ctrl.Snapshot(); len(s.Playlist) != 3 || s.CurrentIndex != 0 {
			t.Errorf("expected existing track at 0, got len=%d index=%d", len(s.Playlist), s.CurrentIndex)
		}
	})

	t.Run("Play By ID", func(t *testing.T) {
		f := newFixture(t, 3, Options{})
		if err := f.ctrl.PlayTrackByID(3); err != nil {
			t.Fatal(err)
		}
		if got := f.ctrl.Snapshot().CurrentIndex; got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
		if err := f.ctrl.PlayTrackByID(99); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Enqueue", func(t *testing.T) {
		f := newFixture(t, 1, Options{})
		idx, err := f.ctrl.Enqueue(models.Track{ID: 5})
		if err != nil || idx != 1 {
			t.Errorf("expected index 1, got %d %v", idx, err)
		}
		if _, err := f.ctrl.Enqueue(models.Track{}); !errors.Is(err, shared.ErrInvalidTrack) {
			t.Errorf("expected ErrInvalidTrack, got %v", err)
		}
	})
}

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RepeatMode
		wantErr bool
	}{
		{"list", RepeatList, false},
		{"", RepeatList, false},
		{"ONE", RepeatOne, false},
		{"none", RepeatNone, false},
		{"off", RepeatNone, false},
		{"sometimes", RepeatList, true},
	}
	for _, tt := range tests {
		got, err := ParseRepeatMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRepeatMode(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRepeatMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func drain(c *Controller) []Update {
	var out []Update
	for {
		select {
		case u, ok := <-c.Updates():
			if !ok {
				return out
			}
			out = append(out, u)
		default:
			return out
		}
	}
}
