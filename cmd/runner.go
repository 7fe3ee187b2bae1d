package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/fetch"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	progress io.Writer
	store    *manifest.Store
	engine   *tasks.PlaylistEngine
	history  *repositories.SyncRunRepository
	prober   fetch.Prober
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Engine and History may be nil; commands that need them report [shared.ErrServiceUnavailable].
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	Progress io.Writer // sync progress, kept apart from reports (default: stderr)
	Store    *manifest.Store
	Engine   *tasks.PlaylistEngine
	History  *repositories.SyncRunRepository
	Prober   fetch.Prober // measures manually added files; nil leaves their duration to tags
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if opts.Store == nil {
		opts.Store = manifest.NewStore(manifest.Options{Logger: opts.Logger})
	}

	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		progress: opts.Progress,
		store:    opts.Store,
		engine:   opts.Engine,
		history:  opts.History,
		prober:   opts.Prober,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, playlistCommand, trackCommand, runsCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// root returns the library root folder holding the playlist folders.
func (r *Runner) root() string {
	if r.config.Library.Root != "" {
		return r.config.Library.Root
	}
	return shared.DefaultLibraryRoot()
}

// playlistDir resolves a playlist argument to its folder.
//
// The argument is either a path to a playlist folder or the name of a playlist in the library root.
func (r *Runner) playlistDir(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}

	if _, err := os.Stat(manifest.Path(arg)); err == nil {
		return arg, nil
	}

	dir := filepath.Join(r.root(), shared.SanitizeFilename(arg))
	if _, err := os.Stat(manifest.Path(dir)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, arg)
		}
		return "", fmt.Errorf("failed to read playlist %s: %w", arg, err)
	}
	return dir, nil
}

func (r *Runner) requireEngine() error {
	if r.engine == nil {
		return fmt.Errorf("%w: sync engine not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
