package main

import (
	"context"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/audio"
	"github.com/desertthunder/mtx/internal/media"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/player"
	"github.com/desertthunder/mtx/internal/services"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/desertthunder/mtx/internal/ui"
	"github.com/urfave/cli/v3"
)

const playerLogFile = "./tmp/mtx-player.log"

// newController builds a playback controller around el using the configured player defaults.
func (r *Runner) newController(el media.Element) (*player.Controller, error) {
	repeat, err := player.ParseRepeatMode(r.config.Player.Repeat)
	if err != nil {
		return nil, err
	}

	return player.NewController(el, player.Options{
		SourceURL:    func(t models.Track) string { return r.api.PlayURL(t.ID) },
		LoadTimeout:  r.config.Player.LoadTimeout(),
		MaxRetry:     r.config.Player.MaxRetry,
		RetryBackoff: r.config.Player.RetryBackoff(),
		Volume:       r.config.Player.Volume,
		Repeat:       repeat,
		Shuffle:      r.config.Player.Shuffle,
		Lyrics:       r.api,
		Logger:       shared.WithLogger(r.logger, "component", "player"),
	}), nil
}

// speaker opens the sound device backend.
//
// Streams are fetched with a client that has no overall timeout, since whole tracks are downloaded.
func (r *Runner) speaker() *audio.SpeakerMedia {
	var source audio.Source = r.api
	if api, ok := r.api.(*services.APIService); ok {
		source = services.NewAPIService(api.BaseURL(), &http.Client{})
	}
	return audio.NewSpeakerMedia(source, shared.WithLogger(r.logger, "component", "audio"))
}

// playlist loads the tracks to play: a full search for keyword, or the server playlist.
func (r *Runner) playlist(ctx context.Context, keyword string) ([]models.Track, error) {
	if keyword != "" {
		return r.searchAll(ctx, keyword, 100)
	}
	return r.api.Playlist(ctx, r.config.Player.PlaylistLimit)
}

// useFileLogger redirects logs to the configured file (or a default one) so they stay off the terminal.
func (r *Runner) useFileLogger() error {
	path := r.config.Log.File
	if path == "" {
		path = playerLogFile
	}
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	return nil
}

// TUI launches the full-screen player with library, now-playing and batch views.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.useFileLogger(); err != nil {
		return err
	}

	ctrl, err := r.newController(r.speaker())
	if err != nil {
		return err
	}
	defer ctrl.Close()

	var program *tea.Program
	progressCh := make(chan tasks.ProgressUpdate, 50)
	refresh := func(context.Context) {
		if program != nil {
			program.Send(ui.RefreshMsg{})
		}
	}
	poller := tasks.NewBatchPoller(r.api, r.pollerOptions(progressCh, r.jobRecorder(), refresh))
	defer poller.Close()

	model := ui.NewModel(ctx, ui.Deps{
		Library:  r.api,
		Player:   ctrl,
		Poller:   poller,
		Progress: progressCh,
		Keyword:  cmd.String("keyword"),
		PageSize: cmd.Int("page-size"),
	})
	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
