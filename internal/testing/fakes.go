package testing

import (
	"sync"
	"time"

	"github.com/desertthunder/mtx/internal/media"
)

// FakeClock is a manually advanced [media.Clock]
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) media.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that came due, outside the clock lock.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped() {
			continue
		}
		if !t.at.After(c.now) {
			due = append(due, t)
			continue
		}
		pending = append(pending, t)
	}
	c.timers = pending
	c.mu.Unlock()

	for _, t := range due {
		if t.fire() {
			t.f()
		}
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	mu   sync.Mutex
	at   time.Time
	f    func()
	done bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *fakeTimer) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *fakeTimer) fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// LoadCall records one [FakeMedia.Load]
type LoadCall struct {
	URL     string
	Handler media.Handler
}

// FakeMedia is a [media.Element] that records calls and lets tests emit events
type FakeMedia struct {
	mu       sync.Mutex
	loads    []LoadCall
	handler  media.Handler
	ready    media.ReadyState
	duration time.Duration
	position time.Duration
	volume   float64
	muted    bool
	playing  bool
	calls    map[string]int

	LoadErr error
	PlayErr error
}

func NewFakeMedia() *FakeMedia {
	return &FakeMedia{calls: map[string]int{}}
}

func (m *FakeMedia) Load(url string, handler media.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["load"]++
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.loads = append(m.loads, LoadCall{URL: url, Handler: handler})
	m.handler = handler
	m.ready = media.HaveNothing
	m.duration = 0
	m.position = 0
	return nil
}

func (m *FakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["play"]++
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.playing = true
	return nil
}

func (m *FakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["pause"]++
	m.playing = false
	return nil
}

func (m *FakeMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["stop"]++
	m.playing = false
}

func (m *FakeMedia) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["seek"]++
	m.position = pos
	return nil
}

func (m *FakeMedia) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

func (m *FakeMedia) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *FakeMedia) Duration() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration, m.duration > 0
}

func (m *FakeMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *FakeMedia) ReadyState() media.ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *FakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["close"]++
	return nil
}

// SetReadyState sets the value returned by ReadyState.
func (m *FakeMedia) SetReadyState(r media.ReadyState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = r
}

// SetDuration sets the value returned by Duration.
func (m *FakeMedia) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// Emit delivers ev to the handler of the latest load.
func (m *FakeMedia) Emit(ev media.Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// Loads returns every recorded load in order.
func (m *FakeMedia) Loads() []LoadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LoadCall(nil), m.loads...)
}

// Calls returns how many times the named method ran.
func (m *FakeMedia) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *FakeMedia) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *FakeMedia) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *FakeMedia) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

var _ media.Element = (*FakeMedia)(nil)
