// Package player implements the playback controller.
//
// # Controller
//
// [Controller] owns the playlist, the current index and the transport state, and drives exactly one
// [media.Element]. Transport commands ([Controller.PlayTrack], [Controller.TogglePlay], [Controller.Next],
// [Controller.Previous], [Controller.Seek]) mutate state synchronously; readiness, progress and failure
// arrive later as media events.
//
// Per-load state machine:
//
//	idle → loading → ready → playing ⇄ paused
//	                  ↘ error (from any state) → loading (Retry)
//
// A load that does not reach [media.HaveFutureData] within the load timeout fails with
// [shared.MediaErrTimeout]. Every PlayTrack bumps a generation token, so handlers and timeouts bound to
// an earlier load are ignored.
//
// # Updates
//
// State changes are published on [Controller.Updates] without blocking; each [Update] carries a full
// [State] snapshot, so a renderer that drops updates still converges.
package player
