package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/player"
	"github.com/desertthunder/mtx/internal/shared"
)

const lyricRadius = 2

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case LibraryView:
		body = m.renderLibrary()
	case PlayerView:
		body = m.renderPlayer()
	case BatchView:
		body = m.renderBatch()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), body, m.renderNotice())
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, 3)
	for _, v := range []ViewState{LibraryView, PlayerView, BatchView} {
		if v == m.view {
			tabs = append(tabs, styles.title.UnsetMarginBottom().Render("["+v.String()+"]"))
		} else {
			tabs = append(tabs, styles.dim.Render(" "+v.String()+" "))
		}
	}
	return strings.Join(tabs, " ") + "\n"
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return styles.err.Render("✗ " + m.notice)
	}
	return styles.ok.Render(m.notice)
}

func (m *Model) renderLibrary() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if m.loading {
		return styles.dim.Render("Loading library...")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.tab, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderPlayer() string {
	s := m.state
	track, ok := s.Current()
	if !ok {
		return styles.dim.Render("Nothing playing. Pick a track in the library.") + "\n\n" +
			m.help.ShortHelpView([]key.Binding{m.keys.tab, m.keys.quit})
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(track.DisplayTitle()))
	b.WriteString("\n")
	b.WriteString(track.DisplayArtist())
	if track.Album != "" {
		b.WriteString(" • " + track.Album)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s  %s / %s  %s\n", statusIcon(s.Status), formatClock(s.Position), formatClock(s.Duration), m.bar.ViewAs(s.Progress()))
	fmt.Fprintf(&b, "%s\n", settingsLine(s))
	if s.Status == player.StatusError && s.LastError != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("%s (attempt %d, press t to retry)", s.LastError.Error(), s.RetryCount)))
		b.WriteString("\n")
	}

	if lines := lyricWindow(s.Lyrics, s.LyricIndex, lyricRadius); len(lines) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.panel.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%s", m.help.FullHelpView(m.keys.FullHelp()))
	return b.String()
}

func (m *Model) renderBatch() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Batch Jobs"))
	b.WriteString("\n")

	if m.deps.Poller == nil {
		b.WriteString(styles.dim.Render("Batch jobs are unavailable in this session."))
		return b.String()
	}

	p := m.batch
	state := "idle"
	if p.Running {
		state = "running"
	} else if p.Total > 0 {
		state = "finished"
	}
	kind := string(p.Kind)
	if kind == "" {
		kind = "-"
	}
	fmt.Fprintf(&b, "Job: %s (%s)\n", kind, state)
	fmt.Fprintf(&b, "%s %5.1f%%\n", m.bar.ViewAs(p.Percent()/100), p.Percent())
	fmt.Fprintf(&b, "%s\n", p.String())
	if p.Message != "" {
		b.WriteString(styles.dim.Render(p.Message))
		b.WriteString("\n")
	}

	if len(m.batchLog) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.panel.Render(strings.Join(m.batchLog, "\n")))
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.lyrics, m.keys.covers, m.keys.all, m.keys.fetchAll, m.keys.stop, m.keys.back, m.keys.quit}
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}

func statusIcon(s player.Status) string {
	switch s {
	case player.StatusPlaying:
		return styles.ok.Render("▶")
	case player.StatusPaused, player.StatusReady:
		return "⏸"
	case player.StatusLoading, player.StatusBuffering:
		return styles.warn.Render("…")
	case player.StatusError:
		return styles.err.Render("✗")
	default:
		return "■"
	}
}

func settingsLine(s player.State) string {
	vol := fmt.Sprintf("vol %d%%", s.Volume)
	if s.Muted {
		vol = "muted"
	}
	shuffle := "off"
	if s.Shuffle {
		shuffle = "on"
	}
	return styles.dim.Render(fmt.Sprintf("%s • shuffle %s • repeat %s • %s", vol, shuffle, s.Repeat, s.Status))
}

// lyricWindow renders the lines around idx, highlighting idx itself.
func lyricWindow(lines []models.LyricLine, idx, radius int) []string {
	if len(lines) == 0 {
		return nil
	}
	center := max(idx, 0)
	from := max(center-radius, 0)
	to := min(center+radius+1, len(lines))

	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		text := lines[i].Text
		if i == idx {
			out = append(out, styles.active.Render("» "+text))
		} else {
			out = append(out, "  "+text)
		}
	}
	return out
}

func formatClock(d time.Duration) string {
	return shared.FormatDuration(int(d / time.Second))
}
