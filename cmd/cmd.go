// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first run setup of config, database and library.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file, library folder and run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// syncCommand handles sync runs of one or all playlists
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync a playlist folder with its remote source",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Sync every playlist in the library that has a remote source",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Playlists synced at once with --all",
				Value: 2,
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Follow the run in the interactive progress view",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format (text, json)",
				Value:   "text",
			},
		},
		Action: r.Sync,
	}
}

// playlistCommand handles local playlist operations
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Create, inspect, export and maintain playlists",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist folder, optionally backed by a remote playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Playlist description",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Spotify or YouTube Music playlist URL to sync from",
					},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:  "list",
				Usage: "List playlists in the library",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistList,
			},
			{
				Name:  "show",
				Usage: "Show a playlist and report missing track files",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "playlist",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the manifest as JSON",
					},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:  "export",
				Usage: "Export a playlist as M3U, CSV, Markdown or plain text",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "playlist",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (m3u, csv, md, txt)",
						Value:   "m3u",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: <playlist>.<format>)",
					},
				},
				Action: r.PlaylistExport,
			},
			{
				Name:  "rescan",
				Usage: "Add audio files found in the folder and drop tracks whose file is gone",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "playlist",
					},
				},
				Action: r.PlaylistRescan,
			},
			{
				Name:  "settings",
				Usage: "Show or change playback settings",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "playlist",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "shuffle",
						Usage: "Enable shuffle (--shuffle=false disables it)",
					},
					&cli.StringFlag{
						Name:  "repeat",
						Usage: "Repeat mode (none, track, playlist)",
					},
					&cli.FloatFlag{
						Name:  "volume",
						Usage: "Volume between 0 and 1",
					},
					&cli.StringFlag{
						Name:  "equalizer",
						Usage: "Equalizer preset name",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistSettings,
			},
		},
	}
}

// trackCommand adds manual tracks and records playback statistics reported by a player
func trackCommand(r *Runner) *cli.Command {
	args := func() []cli.Argument {
		return []cli.Argument{
			&cli.StringArg{Name: "playlist"},
			&cli.StringArg{Name: "filename"},
		}
	}
	return &cli.Command{
		Name:  "track",
		Usage: "Add tracks by hand and record their playback",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add an audio file to a playlist as a manual track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
					&cli.StringArg{Name: "file"},
				},
				Action: r.TrackAdd,
			},
			{
				Name:      "played",
				Usage:     "Increment the play count of a track",
				Arguments: args(),
				Action:    r.TrackPlayed,
			},
			{
				Name:      "skipped",
				Usage:     "Increment the skip count of a track",
				Arguments: args(),
				Action:    r.TrackSkipped,
			},
		},
	}
}

// runsCommand lists persisted sync runs
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Show the sync run history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only runs of this playlist",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Only runs in this state (done, failed, cancelled)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}

// serveCommand starts the HTTP control surface
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the sync API and Prometheus metrics over HTTP",
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist syncing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse the library and sync playlists interactively",
		Action:  r.TUI,
	}
}
