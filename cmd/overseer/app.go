package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/deixis/overseer/internal/config"
	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
	"github.com/deixis/overseer/internal/workflow"
)

// app carries global flags and the lazily-loaded environment shared by all
// commands.
type app struct {
	jsonOut  bool
	logLevel string

	loaded *config.LoadResult
	logger *log.Logger
	store  report.Store
	close  func() error
}

// load reads configuration from the working directory and opens the
// history store.
func (a *app) load() error {
	if a.loaded != nil {
		return nil
	}
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.loaded = loaded

	a.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "overseer"})
	level := a.logLevel
	if level == "" {
		level = loaded.Config.LogLevel
	}
	if level == "" {
		level = "warn"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.logger.SetLevel(lvl)

	store, closeFn, err := openStore(loaded)
	if err != nil {
		return err
	}
	a.store, a.close = store, closeFn
	a.logger.Debug("loaded config", "root", loaded.RepoRoot, "path", loaded.Path, "store", loaded.Config.StoreKind())
	return nil
}

func openStore(loaded *config.LoadResult) (report.Store, func() error, error) {
	path := loaded.Config.HistoryPath(loaded.RepoRoot)
	switch kind := loaded.Config.StoreKind(); kind {
	case "sqlite":
		s, err := report.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "disk":
		return report.NewDiskStore(path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want sqlite or disk)", kind)
	}
}

// engine returns a workflow engine bound to the loaded configuration.
func (a *app) engine() (*workflow.Engine, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	return &workflow.Engine{
		Config: a.loaded.Config,
		Runner: a.runner(),
		Store:  a.store,
		Logger: a.logger,
	}, nil
}

func (a *app) runner() *runner.Runner {
	return &runner.Runner{
		Workspace: a.loaded.RepoRoot,
		MaxOutput: a.loaded.Config.MaxOutputBytes(),
		Logger:    a.logger.WithPrefix("runner"),
	}
}

// shutdown releases the history store.
func (a *app) shutdown() {
	if a.close == nil {
		return
	}
	if err := a.close(); err != nil {
		a.logger.Warn("closing history", "err", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
