// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI has three views, cycled with tab:
//  1. [LibraryView] : Browse and filter library tracks, enter plays the selection
//  2. [PlayerView] : Transport controls, progress, volume, shuffle/repeat and synced lyrics
//  3. [BatchView] : Start server batch jobs and watch their progress
//
// The (view) [Model] implements the standard Init/Update/View pattern.
// Player state arrives from the controller's update channel and batch progress from the poller's
// progress channel; each is read by a command that re-arms itself after every message.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
