package main

import (
	"context"
	"fmt"
	"log/slog"

	"chatshell-cli/internal/backend"
	"chatshell-cli/internal/config"
	"chatshell-cli/internal/generate"
	"chatshell-cli/internal/gitinfo"
	"chatshell-cli/internal/logging"
	"chatshell-cli/internal/storage"
	"chatshell-cli/internal/stream"
	"chatshell-cli/internal/tui"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// Workdir is the absolute directory a session works in.
type Workdir string

// newApp builds the application graph. Only the components reachable from
// targets are constructed, so `history` never spawns a backend.
func newApp(g *Globals, targets ...any) *fx.App {
	return fx.New(
		fx.Supply(g),
		fx.Provide(
			provideConfig,
			provideWorkdir,
			provideLogger,
			provideStorage,
			provideHistory,
			provideTranscript,
			provideFraming,
			provideBackend,
			provideGenerator,
			provideWatcher,
			provideModel,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		fx.Populate(targets...),
	)
}

// withApp starts the graph, runs fn and stops the graph again. Stop errors
// are logged; fn's error is returned.
func withApp(ctx context.Context, g *Globals, targets []any, fn func(ctx context.Context) error) error {
	app := newApp(g, targets...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
	return runErr
}

// ─── Providers ──────────────────────────────────────────────────────────────

func provideConfig(g *Globals) (*config.Config, error) {
	cfg, err := config.Load(g.Profile)
	if err != nil {
		return nil, err
	}
	if g.Workdir != "" {
		cfg.Workdir = g.Workdir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideWorkdir(cfg *config.Config) (Workdir, error) {
	dir, err := cfg.ResolveWorkdir()
	if err != nil {
		return "", err
	}
	return Workdir(dir), nil
}

func provideLogger(lc fx.Lifecycle, g *Globals, cfg *config.Config) (*slog.Logger, error) {
	logger, closer, err := logging.Setup(logging.Options{
		File:  cfg.Logging.File,
		Level: cfg.Logging.Level,
		Debug: g.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	lc.Append(fx.StopHook(func() error {
		return closer.Close()
	}))
	return logger, nil
}

type storageParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
}

func provideStorage(p storageParams) (*storage.DB, error) {
	p.Logger.Info("initializing storage", "database_path", p.Config.Storage.DatabasePath)
	db, err := storage.InitDB(p.Config.Storage.DatabasePath)
	if err != nil {
		p.Logger.Error("failed to initialize storage", "error", err)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := db.Close(); err != nil {
				p.Logger.Error("failed to close storage", "error", err)
			}
			return nil
		},
	})
	return db, nil
}

func provideHistory(db *storage.DB, cfg *config.Config, wd Workdir) *storage.HistoryStore {
	return storage.NewHistoryStore(db, string(wd), cfg.History.MaxEntries)
}

func provideTranscript(db *storage.DB) *storage.Transcript {
	return storage.NewTranscript(db)
}

func provideFraming(cfg *config.Config) (stream.Framing, error) {
	return stream.NewFraming(cfg.Backend.Framing, cfg.Backend.EndMarker)
}

type backendParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Workdir   Workdir
	Logger    *slog.Logger
}

// provideBackend spawns the backend when the graph starts. A spawn failure
// is not fatal: it reaches the UI as an EventStartFailed.
func provideBackend(p backendParams) *backend.Process {
	proc := backend.New(backend.Options{
		Command:      p.Config.Backend.Command,
		Args:         p.Config.Backend.Args,
		Env:          p.Config.Backend.Env,
		Dir:          string(p.Workdir),
		SearchPrefix: p.Config.Backend.SearchPrefix,
	})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := proc.Start(ctx); err != nil {
				p.Logger.Error("backend unavailable", "command", proc.CommandLine(), "error", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if proc.Running() {
				p.Logger.Info("stopping backend", "command", proc.CommandLine())
			}
			if err := proc.Stop(ctx); err != nil {
				p.Logger.Error("failed to stop backend", "error", err)
			}
			return nil
		},
	})
	return proc
}

func provideGenerator(cfg *config.Config, wd Workdir, logger *slog.Logger) *generate.Runner {
	runner := generate.NewRunner(generate.Options{
		Command: cfg.Generator.Command,
		Args:    cfg.Generator.Args,
		Env:     cfg.Generator.Env,
		Dir:     string(wd),
	})
	logger.Debug("generation helper configured", "command", runner.CommandLine())
	return runner
}

// provideWatcher returns nil when watching is off or cannot be set up; the
// status bar then only refreshes on demand.
func provideWatcher(lc fx.Lifecycle, cfg *config.Config, wd Workdir, logger *slog.Logger) *gitinfo.Watcher {
	if !cfg.Git.Watch {
		return nil
	}
	w, err := gitinfo.NewWatcher(string(wd), cfg.Git.Debounce)
	if err != nil {
		logger.Warn("git watcher disabled", "error", err)
		return nil
	}
	lc.Append(fx.StopHook(func() {
		if err := w.Close(); err != nil {
			logger.Debug("failed to close git watcher", "error", err)
		}
	}))
	return w
}

type modelParams struct {
	fx.In
	Config     *config.Config
	Workdir    Workdir
	Backend    *backend.Process
	Framing    stream.Framing
	Generator  *generate.Runner
	History    *storage.HistoryStore
	Transcript *storage.Transcript
	Watcher    *gitinfo.Watcher
	Logger     *slog.Logger
}

func provideModel(p modelParams) tui.Model {
	opts := tui.Options{
		Version:        version,
		Workdir:        string(p.Workdir),
		Backend:        p.Backend,
		Framing:        p.Framing,
		Generator:      p.Generator,
		MemoryFile:     p.Config.MemoryPath(string(p.Workdir)),
		AssistantLabel: p.Config.UI.AssistantLabel,
		CopyFeedback:   p.Config.UI.CopyFeedback,
		CodeStyle:      p.Config.UI.CodeStyle,
		GlamourStyle:   p.Config.UI.GlamourStyle,
		Markdown:       p.Config.UI.Markdown,
	}

	if p.Config.History.Enabled {
		opts.History = p.History
		opts.HistoryLimit = p.Config.History.MaxEntries
	}

	if session, err := p.Transcript.Begin(string(p.Workdir)); err != nil {
		p.Logger.Warn("transcript disabled", "error", err)
	} else {
		opts.Transcript = p.Transcript
		opts.SessionID = session.ID
		p.Logger.Info("session started", "id", session.ID, "workdir", session.Workdir)
	}

	if p.Watcher != nil {
		opts.GitChanges = p.Watcher.Changes()
	}

	return tui.New(opts)
}
