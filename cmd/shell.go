package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/desertthunder/mtx/internal/player"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

const shellHelp = `Commands:
  ls                  list the playlist
  play [n]            play track n (1-based), or toggle play/pause
  pause               toggle play/pause
  next, prev          skip forward or back
  seek <pct|m:ss>     jump to a percentage or a time
  vol <0-100>         set the volume
  mute                toggle mute
  shuffle             toggle shuffle
  repeat [list|one|none]
  retry               reload the track after an error
  lyrics              show lyrics around the current line
  search <keyword>    replace the playlist with search results
  status              show what is playing
  quit
`

// shell runs line commands against a playback controller.
type shell struct {
	r    *Runner
	ctrl *player.Controller
	w    io.Writer
}

// Shell starts an interactive line-oriented player.
func (r *Runner) Shell(ctx context.Context, cmd *cli.Command) error {
	if err := r.useFileLogger(); err != nil {
		return err
	}

	ctrl, err := r.newController(r.speaker())
	if err != nil {
		return err
	}
	defer ctrl.Close()

	tracks, err := r.playlist(ctx, cmd.String("keyword"))
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}
	ctrl.LoadPlaylist(tracks)

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".mtx_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mtx> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("ls"),
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("next"),
			readline.PcItem("prev"),
			readline.PcItem("seek"),
			readline.PcItem("vol"),
			readline.PcItem("mute"),
			readline.PcItem("shuffle"),
			readline.PcItem("repeat", readline.PcItem("list"), readline.PcItem("one"), readline.PcItem("none")),
			readline.PcItem("retry"),
			readline.PcItem("lyrics"),
			readline.PcItem("search"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer rl.Close()

	sh := &shell{r: r, ctrl: ctrl, w: rl.Stdout()}
	go sh.notices(ctrl.Updates())

	fmt.Fprintf(sh.w, "%d tracks loaded. Type 'help' for commands.\n", len(tracks))
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := sh.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(sh.w, "✗ %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// notices prints user-visible messages and track changes until the controller closes.
func (s *shell) notices(updates <-chan player.Update) {
	lastIndex, lastStatus := -1, player.StatusIdle
	for u := range updates {
		switch {
		case u.Kind == player.UpdateNotice && u.Notice != "":
			fmt.Fprintf(s.w, "! %s\n", u.Notice)
		case u.Kind == player.UpdateState:
			if u.State.Status == player.StatusPlaying && (u.State.CurrentIndex != lastIndex || lastStatus == player.StatusLoading) {
				if t, ok := u.State.Current(); ok {
					fmt.Fprintf(s.w, "▶ %s - %s\n", t.DisplayArtist(), t.DisplayTitle())
				}
			}
			lastIndex, lastStatus = u.State.CurrentIndex, u.State.Status
		}
	}
}

// exec runs one command line. quit is true when the shell should exit.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	c := s.ctrl

	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprint(s.w, shellHelp)
	case "ls", "list":
		s.list()
	case "play":
		if len(args) == 0 {
			return false, c.TogglePlay()
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("%w: track number %q", shared.ErrInvalidArgument, args[0])
		}
		return false, c.PlayTrack(n - 1)
	case "pause", "toggle":
		return false, c.TogglePlay()
	case "next", "n":
		return false, c.Next()
	case "prev", "previous":
		return false, c.Previous()
	case "seek":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: seek position", shared.ErrMissingArgument)
		}
		fraction, err := seekFraction(args[0], c.Snapshot())
		if err != nil {
			return false, err
		}
		return false, c.Seek(fraction)
	case "vol", "volume":
		if len(args) == 0 {
			fmt.Fprintf(s.w, "volume %d\n", c.Snapshot().Volume)
			return false, nil
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("%w: volume %q", shared.ErrInvalidArgument, args[0])
		}
		return false, c.SetVolume(v)
	case "mute":
		c.ToggleMute()
	case "shuffle":
		fmt.Fprintf(s.w, "shuffle %s\n", onOff(c.ToggleShuffle()))
	case "repeat":
		mode := c.Snapshot().Repeat.Next()
		if len(args) > 0 {
			if mode, err = player.ParseRepeatMode(args[0]); err != nil {
				return false, err
			}
		}
		c.SetRepeat(mode)
		fmt.Fprintf(s.w, "repeat %s\n", mode)
	case "retry":
		return false, c.Retry()
	case "lyrics":
		s.lyrics()
	case "search":
		keyword := strings.Join(args, " ")
		tracks, err := s.r.searchAll(ctx, keyword, 100)
		if err != nil {
			return false, err
		}
		c.LoadPlaylist(tracks)
		fmt.Fprintf(s.w, "%d tracks loaded\n", len(tracks))
	case "status", "now":
		s.status()
	default:
		return false, fmt.Errorf("%w: unknown command %q", shared.ErrInvalidArgument, name)
	}
	return false, nil
}

func (s *shell) list() {
	state := s.ctrl.Snapshot()
	if len(state.Playlist) == 0 {
		fmt.Fprintln(s.w, "playlist is empty")
		return
	}
	for i, t := range state.Playlist {
		marker := " "
		if i == state.CurrentIndex {
			marker = "▶"
		}
		fmt.Fprintf(s.w, "%s %3d. %s - %s (%s)\n", marker, i+1, t.DisplayArtist(), t.DisplayTitle(), t.DisplayDuration())
	}
}

func (s *shell) status() {
	state := s.ctrl.Snapshot()
	t, ok := state.Current()
	if !ok {
		fmt.Fprintf(s.w, "%s, %d tracks queued\n", state.Status, len(state.Playlist))
		return
	}
	fmt.Fprintf(s.w, "%s  %d/%d  %s - %s  %s/%s\n", state.Status, state.CurrentIndex+1, len(state.Playlist),
		t.DisplayArtist(), t.DisplayTitle(), clock(state.Position.Seconds()), clock(state.Duration.Seconds()))
	volume := strconv.Itoa(state.Volume)
	if state.Muted {
		volume = "muted"
	}
	fmt.Fprintf(s.w, "volume %s  repeat %s  shuffle %s\n", volume, state.Repeat, onOff(state.Shuffle))
	if state.LastError != nil && state.Status == player.StatusError {
		fmt.Fprintf(s.w, "error: %s (retries %d)\n", state.LastError.Error(), state.RetryCount)
	}
}

func (s *shell) lyrics() {
	state := s.ctrl.Snapshot()
	if len(state.Lyrics) == 0 {
		fmt.Fprintln(s.w, "no lyrics")
		return
	}
	center := max(state.LyricIndex, 0)
	from, to := max(center-3, 0), min(center+4, len(state.Lyrics))
	for i := from; i < to; i++ {
		marker := "  "
		if i == state.LyricIndex {
			marker = "> "
		}
		fmt.Fprintf(s.w, "%s%s\n", marker, state.Lyrics[i].Text)
	}
}

// seekFraction converts "42%", "42" or "1:30" into a fraction of the current track.
func seekFraction(arg string, state player.State) (float64, error) {
	if m, sec, ok := strings.Cut(arg, ":"); ok {
		if state.Duration <= 0 {
			return 0, shared.ErrDurationUnknown
		}
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 || secs >= 60 {
			return 0, fmt.Errorf("%w: seek time %q", shared.ErrInvalidArgument, arg)
		}
		return min(float64(mins*60+secs)/state.Duration.Seconds(), 1), nil
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("%w: seek percentage %q", shared.ErrInvalidArgument, arg)
	}
	return pct / 100, nil
}

func clock(seconds float64) string {
	return shared.FormatDuration(int(seconds))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
