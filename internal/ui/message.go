package ui

import (
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/player"
	"github.com/desertthunder/mtx/internal/tasks"
)

// Library messages
type (
	tracksFetchedMsg struct {
		page *models.TrackPage
		err  error
	}

	// RefreshMsg reloads the library list, e.g. from a batch poller's refresh hook via [tea.Program.Send].
	RefreshMsg struct{}
)

// Playback messages
type (
	// playerUpdateMsg wraps one [player.Update] from the controller's channel.
	playerUpdateMsg player.Update

	// playerClosedMsg is sent once the controller's update channel is closed.
	playerClosedMsg struct{}

	actionErrMsg struct {
		err error
	}
)

// Batch messages
type (
	batchStartedMsg struct {
		kind  models.BatchKind
		start *models.BatchStart
		err   error
	}

	progressUpdateMsg tasks.ProgressUpdate
)
