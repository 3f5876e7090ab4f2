// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func idArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "id"}}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and the local database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a default config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Where to write the config file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:    "database",
				Aliases: []string{"db"},
				Usage:   "Initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
			{
				Name:  "rollback",
				Usage: "Revert the most recent migration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm dropping cached data",
					},
				},
				Action: r.SetupRollback,
			},
		},
	}
}

// libraryCommand handles track queries and edits on the music server
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse and edit the music library",
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check that the server is reachable",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.Health,
			},
			{
				Name:   "stats",
				Usage:  "Show library statistics",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.Stats,
			},
			{
				Name:      "search",
				Usage:     "Search tracks by keyword",
				ArgsUsage: "[keyword...]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:    "page-size",
						Aliases: []string{"n"},
						Usage:   "Tracks per page",
						Value:   20,
					},
					jsonFlag(),
				},
				Action: r.Search,
			},
			{
				Name:      "show",
				Usage:     "Show one track",
				Arguments: idArg(),
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.TrackShow,
			},
			{
				Name:      "update",
				Usage:     "Edit a track's metadata",
				Arguments: idArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "New title"},
					&cli.StringFlag{Name: "artist", Usage: "New artist"},
					&cli.StringFlag{Name: "album", Usage: "New album"},
					&cli.StringFlag{Name: "genre", Usage: "New genre"},
					&cli.IntFlag{Name: "year", Usage: "New year"},
					&cli.IntFlag{Name: "track-number", Usage: "New track number"},
				},
				Action: r.TrackUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a track",
				Arguments: idArg(),
				Action:    r.TrackDelete,
			},
			{
				Name:  "delete-all",
				Usage: "Delete every track on the server",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deleting the whole library",
					},
				},
				Action: r.TrackDeleteAll,
			},
			{
				Name:      "refresh",
				Usage:     "Re-read a track's tags from its file",
				Arguments: idArg(),
				Action:    r.TrackRefresh,
			},
			{
				Name:      "lyrics",
				Usage:     "Print a track's lyrics",
				Arguments: idArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "lrc",
						Usage: "Write the synced lyrics to an LRC file",
					},
					jsonFlag(),
				},
				Action: r.TrackLyrics,
			},
			{
				Name:      "fetch-lyrics",
				Usage:     "Fetch lyrics for one track",
				Arguments: idArg(),
				Action:    r.TrackFetchLyrics,
			},
			{
				Name:      "fetch-cover",
				Usage:     "Fetch the cover for one track",
				Arguments: idArg(),
				Action:    r.TrackFetchCover,
			},
			{
				Name:  "batch-update",
				Usage: "Set the same fields on several tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "ids",
						Usage:    "Comma separated track IDs",
						Required: true,
					},
					&cli.StringFlag{Name: "artist", Usage: "New artist"},
					&cli.StringFlag{Name: "album", Usage: "New album"},
					&cli.StringFlag{Name: "genre", Usage: "New genre"},
					&cli.IntFlag{Name: "year", Usage: "New year"},
				},
				Action: r.BatchUpdate,
			},
			{
				Name:      "export",
				Usage:     "Export tracks matching a keyword, or the whole library",
				ArgsUsage: "[keyword...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title written into the export",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Tracks fetched per request",
						Value: 100,
					},
				},
				Action: r.Export,
			},
		},
	}
}

// batchCommand handles server-side lyrics and cover jobs
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Run and monitor batch lyrics and cover jobs",
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start a job (lyrics, covers, all or fetch-all) and follow its progress",
				Arguments: []cli.Argument{&cli.StringArg{Name: "kind"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "detach",
						Aliases: []string{"d"},
						Usage:   "Return once the job has started",
					},
				},
				Action: r.BatchStart,
			},
			{
				Name:   "watch",
				Usage:  "Follow the job currently running on the server",
				Action: r.BatchWatch,
			},
			{
				Name:   "status",
				Usage:  "Show the current job's progress",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.BatchStatus,
			},
			{
				Name:  "history",
				Usage: "List recorded jobs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Usage: "Only jobs of this kind"},
					&cli.StringFlag{Name: "status", Usage: "Only jobs with this status"},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs",
						Value: 20,
					},
					jsonFlag(),
				},
				Action: r.BatchHistory,
			},
		},
	}
}

func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan the music directory for new files",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start a scan and follow its progress",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recursive",
						Usage: "Descend into subdirectories",
						Value: true,
					},
					&cli.BoolFlag{
						Name:    "detach",
						Aliases: []string{"d"},
						Usage:   "Return once the scan has started",
					},
				},
				Action: r.ScanStart,
			},
			{
				Name:   "status",
				Usage:  "Show the current scan",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.ScanStatus,
			},
			{
				Name:  "logs",
				Usage: "List scan logs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "task", Usage: "Only logs for this task ID"},
					&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
					&cli.IntFlag{Name: "page-size", Usage: "Entries per page", Value: 50},
					jsonFlag(),
				},
				Action: r.ScanLogs,
			},
		},
	}
}

func webdavCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "webdav",
		Usage: "Manage the WebDAV source",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the saved settings",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.WebDAVShow,
			},
			{
				Name:  "save",
				Usage: "Save the WebDAV settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Server URL", Required: true},
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username"},
					&cli.StringFlag{Name: "password", Usage: "Password"},
					&cli.StringFlag{Name: "root", Usage: "Root path on the server", Value: "/"},
					&cli.BoolFlag{Name: "enabled", Usage: "Enable the source", Value: true},
				},
				Action: r.WebDAVSave,
			},
			{
				Name:   "delete",
				Usage:  "Remove the WebDAV settings",
				Action: r.WebDAVDelete,
			},
			{
				Name:   "test",
				Usage:  "Test the saved connection",
				Action: r.WebDAVTest,
			},
		},
	}
}

// cacheCommand handles the local SQLite track cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Local track cache and bulk lyrics export",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Copy the library (or a search) into the local cache",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Only sync tracks matching keyword"},
					&cli.IntFlag{Name: "page-size", Usage: "Tracks fetched per request", Value: 100},
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second", Value: 5},
					&cli.BoolFlag{Name: "prune", Usage: "Remove cached tracks missing from the server"},
				},
				Action: r.CacheSync,
			},
			{
				Name:      "list",
				Usage:     "List cached tracks",
				ArgsUsage: "[keyword...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "artist", Usage: "Filter by artist"},
					&cli.StringFlag{Name: "album", Usage: "Filter by album"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of tracks", Value: 50},
					&cli.BoolFlag{Name: "lyrics", Usage: "Only tracks with (or, with =false, without) lyrics"},
					jsonFlag(),
				},
				Action: r.CacheList,
			},
			{
				Name:  "find",
				Usage: "Look up a cached track by title and artist",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Track title", Required: true},
					&cli.StringFlag{Name: "artist", Usage: "Track artist"},
					jsonFlag(),
				},
				Action: r.CacheFind,
			},
			{
				Name:   "stats",
				Usage:  "Show cache counts",
				Action: r.CacheStats,
			},
			{
				Name:  "export-lyrics",
				Usage: "Write LRC files for tracks with synced lyrics",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Search the server instead of using the cache"},
					&cli.StringFlag{Name: "dir", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent downloads", Value: 4},
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second", Value: 5},
				},
				Action: r.CacheExportLyrics,
			},
		},
	}
}

func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Play music from the library",
		Commands: []*cli.Command{
			{
				Name:  "tui",
				Usage: "Full-screen player",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Initial search"},
					&cli.IntFlag{Name: "page-size", Usage: "Tracks loaded into the list", Value: 200},
				},
				Action: r.TUI,
			},
			{
				Name:  "shell",
				Usage: "Line-oriented player",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Load search results instead of the server playlist"},
				},
				Action: r.Shell,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the music server API",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a path below the API prefix and print the response",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Compact JSON output",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body to a path below the API prefix",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON request body",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Dump health, statistics, job status and WebDAV settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.StringFlag{
						Name:  "save",
						Usage: "Also write the dump to this file",
					},
				},
				Action: r.APIDump,
			},
		},
	}
}
