package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/player"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
)

const (
	seekStep   = 5 * time.Second
	volumeStep = 5
	logLines   = 8
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	PlayerView
	BatchView
)

func (v ViewState) String() string {
	switch v {
	case LibraryView:
		return "Library"
	case PlayerView:
		return "Now Playing"
	case BatchView:
		return "Batch"
	default:
		return ""
	}
}

// Searcher loads the track list shown in the library view.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.TrackPage, error)
}

// Deps are the collaborators of the TUI. Poller and Progress may be nil, which hides batch controls.
type Deps struct {
	Library  Searcher
	Player   *player.Controller
	Poller   *tasks.BatchPoller
	Progress <-chan tasks.ProgressUpdate // Progress channel the poller was created with
	Keyword  string
	PageSize int
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	deps      Deps
	view      ViewState
	width     int
	height    int
	trackList list.Model
	total     int
	loading   bool
	state     player.State
	notice    string
	noticeErr bool
	batch     tasks.BatchProgress
	batchLog  []string
	bar       progress.Model
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	if deps.PageSize <= 0 {
		deps.PageSize = 200
	}
	trackList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	trackList.Title = "Library"
	trackList.SetStatusBarItemName("track", "tracks")

	m := &Model{
		ctx:       ctx,
		deps:      deps,
		view:      LibraryView,
		trackList: trackList,
		loading:   true,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:      help.New(),
		keys:      newKeyMap(),
	}
	if deps.Player != nil {
		m.state = deps.Player.Snapshot()
	}
	return m
}

// Init fetches the library and starts listening for player and batch updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchTracks(), m.waitForPlayer(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-6)
		m.bar.Width = max(msg.Width-20, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case tracksFetchedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.total = msg.page.Total
		cmd := m.trackList.SetItems(trackItems(msg.page.Tracks))
		m.trackList.Title = fmt.Sprintf("Library (%d tracks)", msg.page.Total)
		return m, cmd

	case RefreshMsg:
		m.loading = true
		return m, m.fetchTracks()

	case playerUpdateMsg:
		m.state = msg.State
		if msg.Kind == player.UpdateNotice {
			m.notice = msg.Notice
			m.noticeErr = msg.Err != nil
		}
		return m, m.waitForPlayer()

	case playerClosedMsg:
		return m, nil

	case progressUpdateMsg:
		m.applyProgress(tasks.ProgressUpdate(msg))
		return m, m.waitForProgress()

	case batchStartedMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("could not start %s batch: %v", msg.kind, msg.err), true)
			return m, nil
		}
		m.setNotice(fmt.Sprintf("%s batch started for %d tracks", msg.kind, msg.start.Total), false)
		return m, nil

	case actionErrMsg:
		m.setNotice(msg.err.Error(), true)
		return m, nil
	}

	var cmd tea.Cmd
	if m.view == LibraryView {
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The filter input owns every key while it is open.
	if m.view == LibraryView && m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		m.view = (m.view + 1) % 3
		return m, nil
	}

	switch m.view {
	case LibraryView:
		return m.handleLibraryKeys(msg)
	case PlayerView:
		return m.handlePlayerKeys(msg)
	case BatchView:
		return m.handleBatchKeys(msg)
	}
	return m, nil
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.enter) && m.deps.Player != nil {
		if item, ok := m.trackList.SelectedItem().(trackItem); ok {
			m.deps.Player.LoadPlaylist(queueTracks(m.trackList.Items()))
			m.act(m.deps.Player.PlayTrackByID(item.track.ID))
			m.state = m.deps.Player.Snapshot()
			m.view = PlayerView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.deps.Player
	if c == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = LibraryView
	case key.Matches(msg, m.keys.toggle):
		m.act(c.TogglePlay())
	case key.Matches(msg, m.keys.next):
		m.act(c.Next())
	case key.Matches(msg, m.keys.prev):
		m.act(c.Previous())
	case key.Matches(msg, m.keys.forward):
		m.act(m.seekBy(seekStep))
	case key.Matches(msg, m.keys.rewind):
		m.act(m.seekBy(-seekStep))
	case key.Matches(msg, m.keys.volUp):
		m.act(c.SetVolume(min(c.Snapshot().Volume+volumeStep, 100)))
	case key.Matches(msg, m.keys.volDown):
		m.act(c.SetVolume(max(c.Snapshot().Volume-volumeStep, 0)))
	case key.Matches(msg, m.keys.mute):
		c.ToggleMute()
	case key.Matches(msg, m.keys.shuffle):
		c.ToggleShuffle()
	case key.Matches(msg, m.keys.repeat):
		c.CycleRepeat()
	case key.Matches(msg, m.keys.retry):
		m.act(c.Retry())
	case key.Matches(msg, m.keys.batch):
		m.view = BatchView
	}
	m.state = c.Snapshot()
	return m, nil
}

func (m *Model) handleBatchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = PlayerView
		return m, nil
	case key.Matches(msg, m.keys.stop):
		if m.deps.Poller != nil {
			m.deps.Poller.Stop()
			m.batch.Running = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.lyrics):
		return m, m.startBatch(models.BatchLyrics)
	case key.Matches(msg, m.keys.covers):
		return m, m.startBatch(models.BatchCovers)
	case key.Matches(msg, m.keys.all):
		return m, m.startBatch(models.BatchAll)
	case key.Matches(msg, m.keys.fetchAll):
		return m, m.startBatch(models.BatchFetchAll)
	}
	return m, nil
}

// seekBy moves the playhead by d, clamped to the track.
func (m *Model) seekBy(d time.Duration) error {
	s := m.deps.Player.Snapshot()
	if s.Duration <= 0 {
		return shared.ErrDurationUnknown
	}
	pos := min(max(s.Position+d, 0), s.Duration)
	return m.deps.Player.Seek(float64(pos) / float64(s.Duration))
}

func (m *Model) act(err error) {
	if err != nil {
		m.setNotice(err.Error(), true)
	}
}

func (m *Model) setNotice(msg string, isErr bool) {
	m.notice = msg
	m.noticeErr = isErr
}

func (m *Model) applyProgress(u tasks.ProgressUpdate) {
	if p, ok := u.Data.(tasks.BatchProgress); ok {
		m.batch = p
	}
	if u.Phase == tasks.BatchStarting && u.Step == 1 {
		if expected, ok := u.Data.(int); ok {
			m.batch = tasks.BatchProgress{Total: expected, Running: true}
		}
	}
	if u.Phase == tasks.BatchFailed {
		m.batch.Running = false
	}
	if u.Message == "" {
		return
	}
	m.batchLog = append(m.batchLog, u.Message)
	if len(m.batchLog) > logLines {
		m.batchLog = m.batchLog[len(m.batchLog)-logLines:]
	}
}

func (m *Model) fetchTracks() tea.Cmd {
	if m.deps.Library == nil {
		return func() tea.Msg {
			return tracksFetchedMsg{page: &models.TrackPage{}}
		}
	}
	q := models.SearchQuery{Keyword: m.deps.Keyword, Page: 1, PageSize: m.deps.PageSize}
	return func() tea.Msg {
		page, err := m.deps.Library.Search(m.ctx, q)
		return tracksFetchedMsg{page: page, err: err}
	}
}

func (m *Model) startBatch(kind models.BatchKind) tea.Cmd {
	if m.deps.Poller == nil {
		return nil
	}
	poller := m.deps.Poller
	return func() tea.Msg {
		start, err := poller.Start(m.ctx, kind)
		return batchStartedMsg{kind: kind, start: start, err: err}
	}
}

func (m *Model) waitForPlayer() tea.Cmd {
	if m.deps.Player == nil {
		return nil
	}
	updates := m.deps.Player.Updates()
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return playerClosedMsg{}
		}
		return playerUpdateMsg(u)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.deps.Progress == nil {
		return nil
	}
	ch := m.deps.Progress
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg(u)
	}
}
