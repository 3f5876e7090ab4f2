package player

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/media"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

const (
	DefaultLoadTimeout  = 10 * time.Second
	DefaultMaxRetry     = 3
	DefaultRetryBackoff = 3 * time.Second
	DefaultVolume       = 80
	updateBuffer        = 64
	lyricsFetchTimeout  = 15 * time.Second
)

// LyricsSource loads synced lyrics for a track.
type LyricsSource interface {
	Lyrics(ctx context.Context, id int64) (*models.Lyrics, error)
}

// Options configures a [Controller]. Zero values select the defaults.
type Options struct {
	// BaseURL is prepended to a track's play path when SourceURL is nil.
	BaseURL string
	// SourceURL builds the stream URL for a track.
	SourceURL func(models.Track) string

	LoadTimeout  time.Duration
	MaxRetry     int
	RetryBackoff time.Duration

	Volume  int
	Repeat  RepeatMode
	Shuffle bool

	Clock media.Clock
	// Rand returns a uniform index in [0, n).
	Rand   func(n int) int
	Lyrics LyricsSource
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.MaxRetry <= 0 {
		o.MaxRetry = DefaultMaxRetry
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.Volume < 0 || o.Volume > 100 {
		o.Volume = DefaultVolume
	}
	if o.Clock == nil {
		o.Clock = media.SystemClock{}
	}
	if o.Rand == nil {
		o.Rand = rand.IntN
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	if o.SourceURL == nil {
		base := strings.TrimRight(o.BaseURL, "/")
		o.SourceURL = func(t models.Track) string { return base + t.PlayPath() }
	}
	return o
}

// Controller owns the playlist and drives a single [media.Element].
//
// All methods are safe for concurrent use. Media events are matched against a generation
// token so that events and timeouts from a superseded load never touch the current track.
type Controller struct {
	mu   sync.Mutex
	el   media.Element
	opts Options

	playlist   []models.Track
	index      int
	status     Status
	shuffle    bool
	repeat     RepeatMode
	volume     int
	lastVolume int
	muted      bool
	position   time.Duration
	duration   time.Duration
	lyrics     []models.LyricLine
	lyricIndex int
	retryCount int
	lastErr    *shared.MediaError
	lastErrAt  time.Time

	hasSource    bool
	gen          uint64
	loadTimer    media.Timer
	cancelLyrics context.CancelFunc

	updates chan Update
	closed  bool
}

// NewController creates an idle controller bound to el.
func NewController(el media.Element, opts Options) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		el:         el,
		opts:       opts,
		index:      -1,
		status:     StatusIdle,
		shuffle:    opts.Shuffle,
		repeat:     opts.Repeat,
		volume:     opts.Volume,
		lastVolume: opts.Volume,
		lyricIndex: -1,
		updates:    make(chan Update, updateBuffer),
	}
	if c.lastVolume == 0 {
		c.lastVolume = DefaultVolume
	}
	el.SetVolume(float64(c.volume) / 100)
	return c
}

// Updates streams state changes. Slow readers miss intermediate updates; the next one carries the full state.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadPlaylist replaces the playlist.
//
// The current index survives unless the new list is empty or no longer contains it.
func (c *Controller) LoadPlaylist(tracks []models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playlist = append([]models.Track(nil), tracks...)
	if len(c.playlist) == 0 || c.index >= len(c.playlist) {
		c.index = -1
	}
	c.opts.Logger.Debug("playlist loaded", "tracks", len(c.playlist), "index", c.index)
	c.publishLocked(Update{Kind: UpdateState})
}

// Enqueue appends a track and returns its index.
func (c *Controller) Enqueue(track models.Track) (int, error) {
	if err := track.Validate(); err != nil {
		return -1, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist = append(c.playlist, track)
	c.publishLocked(Update{Kind: UpdateState})
	return len(c.playlist) - 1, nil
}

// PlayTrack starts loading the track at index.
//
// On success the status is [StatusLoading]; readiness or failure arrives through media events.
func (c *Controller) PlayTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(index)
}

// PlayTrackByID plays the playlist entry with the given server ID.
func (c *Controller) PlayTrackByID(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.playlist {
		if t.ID == id {
			return c.playLocked(i)
		}
	}
	err := fmt.Errorf("%w: %d", shared.ErrTrackNotFound, id)
	c.noticeLocked("track is not in the playlist", err)
	return err
}

// Play plays track, appending it to the playlist when it is not already queued.
func (c *Controller) Play(track models.Track) error {
	if err := track.Validate(); err != nil {
		c.Notify("cannot play track without an id", err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.playlist {
		if t.ID == track.ID {
			return c.playLocked(i)
		}
	}
	c.playlist = append(c.playlist, track)
	return c.playLocked(len(c.playlist) - 1)
}

// TogglePlay starts the first track when nothing is loaded and otherwise flips play and pause.
//
// While loading or buffering it does nothing; in the error state it behaves like [Controller.Retry].
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasSource {
		if len(c.playlist) == 0 {
			c.noticeLocked("playlist is empty", shared.ErrEmptyPlaylist)
			return shared.ErrEmptyPlaylist
		}
		return c.playLocked(0)
	}

	switch c.status {
	case StatusLoading, StatusBuffering:
		return nil
	case StatusError:
		return c.retryLocked()
	case StatusPlaying:
		if err := c.el.Pause(); err != nil {
			return err
		}
		c.status = StatusPaused
	default:
		if err := c.el.Play(); err != nil {
			c.failLocked(shared.NewMediaError(shared.MediaErrUnknown, err))
			return err
		}
		c.status = StatusPlaying
	}
	c.publishLocked(Update{Kind: UpdateState})
	return nil
}

// Next advances the playlist.
//
// Shuffle picks a uniform random index. Otherwise the last track wraps to the first unless
// the repeat mode is [RepeatNone], which holds at the last track.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.playlist)
	if n == 0 {
		return shared.ErrEmptyPlaylist
	}
	if c.shuffle {
		return c.playLocked(c.opts.Rand(n))
	}
	next := c.index + 1
	if next >= n {
		if c.repeat == RepeatNone {
			return nil
		}
		next = 0
	}
	return c.playLocked(next)
}

// Previous steps back in the playlist, wrapping to the last track unless the repeat mode is [RepeatNone].
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.playlist)
	if n == 0 {
		return shared.ErrEmptyPlaylist
	}
	prev := c.index - 1
	if prev < 0 {
		if c.repeat == RepeatNone {
			return nil
		}
		prev = n - 1
	}
	return c.playLocked(prev)
}

// Seek moves playback to fraction of the track duration.
func (c *Controller) Seek(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("%w: seek fraction %.2f", shared.ErrInvalidInput, fraction)
	}
	if !c.hasSource {
		return shared.ErrNoSource
	}
	d := c.durationLocked()
	if d <= 0 {
		return shared.ErrDurationUnknown
	}
	return c.seekLocked(time.Duration(fraction * float64(d)))
}

// SeekToLyric jumps to the start of a lyric line and resumes playback.
func (c *Controller) SeekToLyric(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.lyrics) {
		return fmt.Errorf("%w: lyric line %d", shared.ErrInvalidIndex, index)
	}
	if !c.hasSource {
		return shared.ErrNoSource
	}
	pos := time.Duration(c.lyrics[index].Time * float64(time.Second))
	if err := c.seekLocked(pos); err != nil {
		return err
	}
	if c.status == StatusPaused || c.status == StatusReady {
		if err := c.el.Play(); err != nil {
			return err
		}
		c.status = StatusPlaying
		c.publishLocked(Update{Kind: UpdateState})
	}
	return nil
}

// SetVolume sets the volume from 0 to 100.
func (c *Controller) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: volume %d", shared.ErrInvalidInput, v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = v
	if v > 0 {
		c.lastVolume = v
	}
	c.el.SetVolume(float64(v) / 100)
	c.publishLocked(Update{Kind: UpdateState})
	return nil
}

// ToggleMute mutes or unmutes. The volume level is kept so unmuting restores it.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.muted = !c.muted
	if !c.muted && c.volume == 0 {
		c.volume = c.lastVolume
		c.el.SetVolume(float64(c.volume) / 100)
	}
	c.el.SetMuted(c.muted)
	c.publishLocked(Update{Kind: UpdateState})
}

// ToggleShuffle flips shuffle and returns the new setting.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuffle = !c.shuffle
	c.publishLocked(Update{Kind: UpdateState})
	return c.shuffle
}

// SetShuffle turns random next-track selection on or off.
func (c *Controller) SetShuffle(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuffle = on
	c.publishLocked(Update{Kind: UpdateState})
}

// CycleRepeat moves to the next repeat mode and returns it.
func (c *Controller) CycleRepeat() RepeatMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeat = c.repeat.Next()
	c.publishLocked(Update{Kind: UpdateState})
	return c.repeat
}

// SetRepeat selects the end-of-track behaviour.
func (c *Controller) SetRepeat(mode RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeat = mode
	c.publishLocked(Update{Kind: UpdateState})
}

// Retry reloads the current track after a playback error.
//
// It is refused once the retry budget is spent or while the backoff since the last error has not elapsed.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryLocked()
}

// SetLyrics attaches lyric lines to the current track. Lines for any other track are ignored.
func (c *Controller) SetLyrics(trackID int64, lines []models.LyricLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.currentLocked()
	if !ok || cur.ID != trackID {
		return
	}
	c.attachLyricsLocked(lines)
}

// Notify publishes a user-visible message.
func (c *Controller) Notify(msg string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noticeLocked(msg, err)
}

// Close stops playback, releases the element and closes the update channel.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.gen++
	c.stopTimerLocked()
	if c.cancelLyrics != nil {
		c.cancelLyrics()
	}
	c.el.Stop()
	close(c.updates)
	return c.el.Close()
}

func (c *Controller) playLocked(index int) error {
	if c.closed {
		return shared.ErrNoSource
	}
	if index < 0 || index >= len(c.playlist) {
		err := fmt.Errorf("%w: %d of %d", shared.ErrInvalidIndex, index, len(c.playlist))
		c.noticeLocked("invalid track index", err)
		return err
	}
	track := c.playlist[index]
	if err := track.Validate(); err != nil {
		c.noticeLocked("track has no valid id", err)
		return err
	}

	c.gen++
	gen := c.gen
	c.stopTimerLocked()
	if c.cancelLyrics != nil {
		c.cancelLyrics()
		c.cancelLyrics = nil
	}
	c.el.Stop()

	c.index = index
	c.status = StatusLoading
	c.position = 0
	c.duration = 0
	c.lyrics = nil
	c.lyricIndex = -1
	c.lastErr = nil
	c.hasSource = true

	url := c.opts.SourceURL(track)
	c.opts.Logger.Debug("loading track", "index", index, "id", track.ID, "url", url)
	if err := c.el.Load(url, c.handlerFor(gen)); err != nil {
		c.failLocked(shared.NewMediaError(shared.MediaErrNetwork, err))
		return err
	}
	c.loadTimer = c.opts.Clock.AfterFunc(c.opts.LoadTimeout, func() { c.onLoadTimeout(gen) })
	c.publishLocked(Update{Kind: UpdateState})

	if c.opts.Lyrics != nil && track.HasLyrics {
		ctx, cancel := context.WithTimeout(context.Background(), lyricsFetchTimeout)
		c.cancelLyrics = cancel
		go c.fetchLyrics(ctx, cancel, gen, track.ID)
	}
	return nil
}

func (c *Controller) retryLocked() error {
	if c.status != StatusError {
		return shared.ErrNotInErrorState
	}
	if c.retryCount >= c.opts.MaxRetry {
		err := fmt.Errorf("%w: %d attempts", shared.ErrRetryLimit, c.retryCount)
		c.noticeLocked("retry limit reached, pick another track", err)
		return err
	}
	if wait := c.opts.RetryBackoff - c.opts.Clock.Now().Sub(c.lastErrAt); wait > 0 {
		return fmt.Errorf("%w: wait %s", shared.ErrRetryBackoff, wait.Round(100*time.Millisecond))
	}
	c.opts.Logger.Info("retrying track", "index", c.index, "attempt", c.retryCount+1)
	return c.playLocked(c.index)
}

func (c *Controller) handlerFor(gen uint64) media.Handler {
	return func(ev media.Event) { c.handleEvent(gen, ev) }
}

func (c *Controller) handleEvent(gen uint64, ev media.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}

	switch ev.Type {
	case media.EventCanPlay:
		c.stopTimerLocked()
		if c.status != StatusLoading && c.status != StatusError {
			return
		}
		c.status = StatusReady
		c.publishLocked(Update{Kind: UpdateState})
		if err := c.el.Play(); err != nil {
			c.failLocked(shared.NewMediaError(shared.MediaErrUnknown, err))
		}
	case media.EventPlaying:
		c.status = StatusPlaying
		c.retryCount = 0
		c.lastErr = nil
		c.publishLocked(Update{Kind: UpdateState})
	case media.EventPaused:
		if c.status == StatusError || c.status == StatusLoading {
			return
		}
		c.status = StatusPaused
		c.publishLocked(Update{Kind: UpdateState})
	case media.EventWaiting:
		c.status = StatusBuffering
		c.publishLocked(Update{Kind: UpdateState})
	case media.EventTimeUpdate:
		c.position = ev.Position
		if idx := LyricIndex(c.lyrics, c.position); idx != c.lyricIndex {
			c.lyricIndex = idx
			c.publishLocked(Update{Kind: UpdateLyric})
		}
		c.publishLocked(Update{Kind: UpdatePosition})
	case media.EventDurationChange:
		c.duration = ev.Duration
		c.publishLocked(Update{Kind: UpdateState})
	case media.EventEnded:
		c.onEndedLocked()
	case media.EventError:
		c.stopTimerLocked()
		merr := ev.Err
		if merr == nil {
			merr = shared.NewMediaError(shared.MediaErrUnknown, nil)
		}
		c.failLocked(merr)
	}
}

func (c *Controller) onEndedLocked() {
	switch {
	case c.repeat == RepeatOne:
		_ = c.playLocked(c.index)
	case c.shuffle:
		_ = c.playLocked(c.opts.Rand(len(c.playlist)))
	case c.index >= len(c.playlist)-1 && c.repeat == RepeatNone:
		c.status = StatusPaused
		c.publishLocked(Update{Kind: UpdateState})
		c.noticeLocked("end of playlist", nil)
	case c.index >= len(c.playlist)-1:
		_ = c.playLocked(0)
	default:
		_ = c.playLocked(c.index + 1)
	}
}

func (c *Controller) onLoadTimeout(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.loadTimer = nil
	if c.el.ReadyState() >= media.HaveFutureData {
		return
	}
	c.failLocked(shared.NewMediaError(shared.MediaErrTimeout, nil))
}

func (c *Controller) fetchLyrics(ctx context.Context, cancel context.CancelFunc, gen uint64, id int64) {
	defer cancel()
	lyrics, err := c.opts.Lyrics.Lyrics(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	if err != nil {
		c.opts.Logger.Warn("failed to load lyrics", "id", id, "error", err)
		return
	}
	if lyrics == nil || !lyrics.HasLyrics {
		return
	}
	c.attachLyricsLocked(lyrics.Parsed)
}

func (c *Controller) attachLyricsLocked(lines []models.LyricLine) {
	c.lyrics = append([]models.LyricLine(nil), lines...)
	c.lyricIndex = LyricIndex(c.lyrics, c.position)
	c.publishLocked(Update{Kind: UpdateLyric})
}

func (c *Controller) failLocked(merr *shared.MediaError) {
	c.status = StatusError
	c.lastErr = merr
	c.lastErrAt = c.opts.Clock.Now()
	c.retryCount++
	c.opts.Logger.Warn("playback failed", "index", c.index, "code", int(merr.Code), "error", merr, "retries", c.retryCount)
	c.noticeLocked(merr.Error(), merr)
}

func (c *Controller) seekLocked(pos time.Duration) error {
	if err := c.el.Seek(pos); err != nil {
		return err
	}
	c.position = pos
	if idx := LyricIndex(c.lyrics, pos); idx != c.lyricIndex {
		c.lyricIndex = idx
		c.publishLocked(Update{Kind: UpdateLyric})
	}
	c.publishLocked(Update{Kind: UpdatePosition})
	return nil
}

func (c *Controller) durationLocked() time.Duration {
	if c.duration > 0 {
		return c.duration
	}
	if d, ok := c.el.Duration(); ok && d > 0 {
		c.duration = d
	}
	return c.duration
}

func (c *Controller) currentLocked() (models.Track, bool) {
	if c.index < 0 || c.index >= len(c.playlist) {
		return models.Track{}, false
	}
	return c.playlist[c.index], true
}

func (c *Controller) stopTimerLocked() {
	if c.loadTimer != nil {
		c.loadTimer.Stop()
		c.loadTimer = nil
	}
}

func (c *Controller) noticeLocked(msg string, err error) {
	c.publishLocked(Update{Kind: UpdateNotice, Notice: msg, Err: err})
}

func (c *Controller) publishLocked(u Update) {
	if c.closed {
		return
	}
	u.State = c.snapshotLocked()
	select {
	case c.updates <- u:
	default:
	}
}

func (c *Controller) snapshotLocked() State {
	return State{
		Playlist:     append([]models.Track(nil), c.playlist...),
		CurrentIndex: c.index,
		Status:       c.status,
		Shuffle:      c.shuffle,
		Repeat:       c.repeat,
		Volume:       c.volume,
		Muted:        c.muted,
		Position:     c.position,
		Duration:     c.duration,
		Lyrics:       append([]models.LyricLine(nil), c.lyrics...),
		LyricIndex:   c.lyricIndex,
		RetryCount:   c.retryCount,
		LastError:    c.lastErr,
		LastErrorAt:  c.lastErrAt,
	}
}
