// package audio plays library streams on the local sound device
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/media"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

const (
	DeviceSampleRate = beep.SampleRate(48000)
	resampleQuality  = 4
	tickInterval     = 250 * time.Millisecond
)

// Source opens the bytes behind a stream URL.
type Source interface {
	Stream(ctx context.Context, streamURL string, offset int64) (io.ReadCloser, int64, error)
}

// Format is a container format recognised by [Sniff].
type Format string

const (
	FormatUnknown Format = ""
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatWAV     Format = "wav"
	FormatVorbis  Format = "ogg"
)

// Sniff identifies the container from the first bytes of a stream.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode wraps in-memory audio in a seekable beep stream.
func Decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	r := bytes.NewReader(data)
	switch Sniff(data) {
	case FormatMP3:
		return mp3.Decode(io.NopCloser(r))
	case FormatFLAC:
		return flac.Decode(r)
	case FormatWAV:
		return wav.Decode(r)
	case FormatVorbis:
		return vorbis.Decode(io.NopCloser(r))
	default:
		return nil, beep.Format{}, shared.NewMediaError(shared.MediaErrUnsupported, nil)
	}
}

// Output is the device decoded streams are mixed into.
//
// Lock guards every streamer handed to Play.
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// speakerOutput is the process-wide beep speaker.
type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, n int) error { return speaker.Init(rate, n) }
func (speakerOutput) Play(s beep.Streamer)                   { speaker.Play(s) }
func (speakerOutput) Clear()                                 { speaker.Clear() }
func (speakerOutput) Lock()                                  { speaker.Lock() }
func (speakerOutput) Unlock()                                { speaker.Unlock() }

type queued struct {
	gen     uint64
	handler media.Handler
	ev      media.Event
}

// SpeakerMedia is a [media.Element] backed by the beep speaker.
//
// A source is downloaded in full before decoding so that seeking never touches the network.
type SpeakerMedia struct {
	mu     sync.Mutex
	source Source
	out    Output
	logger *log.Logger

	initOnce sync.Once
	initErr  error

	gen     uint64
	handler media.Handler
	cancel  context.CancelFunc
	ready   media.ReadyState
	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	ended   bool // the stream ran out and left the mixer
	gain    float64
	muted   bool
	stopTck chan struct{}

	queue  []queued
	signal chan struct{}
	done   chan struct{}
	closed bool
}

// NewSpeakerMedia creates an element that fetches audio through source and plays it on the speaker.
func NewSpeakerMedia(source Source, logger *log.Logger) *SpeakerMedia {
	return NewOutputMedia(source, speakerOutput{}, logger)
}

// NewOutputMedia is [NewSpeakerMedia] with a caller-supplied output device.
func NewOutputMedia(source Source, out Output, logger *log.Logger) *SpeakerMedia {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	m := &SpeakerMedia{
		source: source,
		out:    out,
		logger: logger,
		gain:   1,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// Load drops the current source and starts fetching url. Events for the new source go to handler.
func (m *SpeakerMedia) Load(url string, handler media.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return shared.ErrNoSource
	}
	m.resetLocked()
	m.handler = handler

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.fetch(ctx, m.gen, url)
	return nil
}

// Play starts or resumes output. After the stream has ended it restarts from the beginning.
func (m *SpeakerMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return shared.ErrNoSource
	}
	if err := m.initSpeaker(); err != nil {
		return err
	}

	if m.ended {
		m.ended = false
		m.out.Lock()
		err := m.stream.Seek(0)
		m.out.Unlock()
		if err != nil {
			return fmt.Errorf("rewind: %w", err)
		}
	}

	if m.ctrl == nil {
		gen := m.gen
		var s beep.Streamer = m.stream
		if m.format.SampleRate != DeviceSampleRate {
			s = beep.Resample(resampleQuality, m.format.SampleRate, DeviceSampleRate, s)
		}
		m.vol = &effects.Volume{Streamer: s, Base: 2}
		m.applyVolumeLocked()
		m.ctrl = &beep.Ctrl{Streamer: m.vol}
		// The callback runs on the speaker goroutine with the speaker lock held.
		m.out.Play(beep.Seq(m.ctrl, beep.Callback(func() { go m.streamEnded(gen) })))
	} else {
		m.out.Lock()
		m.ctrl.Paused = false
		m.out.Unlock()
	}

	if m.stopTck == nil {
		m.stopTck = make(chan struct{})
		go m.tick(m.gen, m.stopTck)
	}
	m.emitLocked(media.Event{Type: media.EventPlaying})
	return nil
}

// Pause holds the current position. It is a no-op when nothing is playing.
func (m *SpeakerMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl == nil {
		return nil
	}
	m.out.Lock()
	m.ctrl.Paused = true
	m.out.Unlock()
	m.emitLocked(media.Event{Type: media.EventPaused})
	return nil
}

// Stop releases the source; a later Play needs a new Load.
func (m *SpeakerMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Seek moves to pos, clamped to the last sample. Seeking after the end cancels the rewind on Play.
func (m *SpeakerMedia) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return shared.ErrNoSource
	}
	n := m.format.SampleRate.N(pos)
	if last := m.stream.Len() - 1; n > last {
		n = max(last, 0)
	}
	m.out.Lock()
	err := m.stream.Seek(n)
	m.out.Unlock()
	if err != nil {
		return fmt.Errorf("seek to %s: %w", pos, err)
	}
	m.ended = false
	m.emitLocked(media.Event{Type: media.EventTimeUpdate, Position: pos})
	return nil
}

// SetVolume sets the linear gain, clamped to [0, 1].
func (m *SpeakerMedia) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gain = math.Max(0, math.Min(1, v))
	m.applyVolumeLocked()
}

// SetMuted silences output without losing the gain.
func (m *SpeakerMedia) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.applyVolumeLocked()
}

// Duration is the decoded length; ok is false before the source is ready.
func (m *SpeakerMedia) Duration() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return 0, false
	}
	return m.format.SampleRate.D(m.stream.Len()), true
}

// Position is the playback offset within the decoded stream.
func (m *SpeakerMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

// ReadyState reports how much of the source is available.
func (m *SpeakerMedia) ReadyState() media.ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Close releases the source and stops event delivery. Later loads fail with [shared.ErrNoSource].
func (m *SpeakerMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.resetLocked()
	m.closed = true
	close(m.done)
	return nil
}

func (m *SpeakerMedia) initSpeaker() error {
	m.initOnce.Do(func() {
		m.initErr = m.out.Init(DeviceSampleRate, DeviceSampleRate.N(100*time.Millisecond))
		if m.initErr != nil {
			m.logger.Error("failed to open audio device", "error", m.initErr)
		}
	})
	return m.initErr
}

// resetLocked releases the current source and invalidates its pending events.
func (m *SpeakerMedia) resetLocked() {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.stopTck != nil {
		close(m.stopTck)
		m.stopTck = nil
	}
	if m.ctrl != nil {
		m.out.Clear()
		m.ctrl = nil
		m.vol = nil
	}
	m.ended = false
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.logger.Debug("failed to close stream", "error", err)
		}
		m.stream = nil
	}
	m.ready = media.HaveNothing
	m.handler = nil
}

func (m *SpeakerMedia) applyVolumeLocked() {
	if m.vol == nil {
		return
	}
	m.out.Lock()
	defer m.out.Unlock()
	m.vol.Silent = m.muted || m.gain == 0
	if m.gain > 0 {
		m.vol.Volume = math.Log2(m.gain)
	}
}

func (m *SpeakerMedia) positionLocked() time.Duration {
	if m.stream == nil {
		return 0
	}
	m.out.Lock()
	defer m.out.Unlock()
	return m.format.SampleRate.D(m.stream.Position())
}

func (m *SpeakerMedia) fetch(ctx context.Context, gen uint64, url string) {
	body, _, err := m.source.Stream(ctx, url, 0)
	if err != nil {
		m.failed(gen, shared.NewMediaError(shared.MediaErrNetwork, err))
		return
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		code := shared.MediaErrNetwork
		if ctx.Err() != nil {
			code = shared.MediaErrAborted
		}
		m.failed(gen, shared.NewMediaError(code, err))
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.ready = media.HaveMetadata
	m.mu.Unlock()

	stream, format, err := Decode(data)
	if err != nil {
		var merr *shared.MediaError
		if !errors.As(err, &merr) {
			merr = shared.NewMediaError(shared.MediaErrDecode, err)
		}
		m.failed(gen, merr)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		stream.Close()
		return
	}
	m.stream = stream
	m.format = format
	m.ready = media.HaveEnoughData
	m.logger.Debug("stream decoded", "url", url, "bytes", len(data), "rate", int(format.SampleRate), "channels", format.NumChannels)
	m.emitLocked(media.Event{Type: media.EventDurationChange, Duration: format.SampleRate.D(stream.Len())})
	m.emitLocked(media.Event{Type: media.EventCanPlay})
}

func (m *SpeakerMedia) failed(gen uint64, merr *shared.MediaError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.logger.Warn("media error", "code", int(merr.Code), "error", merr)
	m.emitLocked(media.Event{Type: media.EventError, Err: merr})
}

// streamEnded runs once the Seq has drained; the finished streamers are no longer in the mixer.
func (m *SpeakerMedia) streamEnded(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.ctrl = nil
	m.vol = nil
	m.ended = true
	m.emitLocked(media.Event{Type: media.EventEnded})
}

func (m *SpeakerMedia) tick(gen uint64, stop <-chan struct{}) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			m.mu.Lock()
			if gen == m.gen && m.ctrl != nil {
				m.out.Lock()
				paused := m.ctrl.Paused
				m.out.Unlock()
				if !paused {
					m.emitLocked(media.Event{Type: media.EventTimeUpdate, Position: m.positionLocked()})
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *SpeakerMedia) emitLocked(ev media.Event) {
	if m.handler == nil {
		return
	}
	m.queue = append(m.queue, queued{gen: m.gen, handler: m.handler, ev: ev})
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// dispatch delivers queued events in order, outside the element lock.
func (m *SpeakerMedia) dispatch() {
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		m.mu.Unlock()

		for _, q := range batch {
			m.mu.Lock()
			current := q.gen == m.gen
			m.mu.Unlock()
			if current {
				q.handler(q.ev)
			}
		}
	}
}

var _ media.Element = (*SpeakerMedia)(nil)
