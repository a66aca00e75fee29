package app

import (
	"context"

	"github.com/spf13/afero"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/discovery"
	"github.com/firefly-engineering/volsync/internal/errors"
	"github.com/firefly-engineering/volsync/internal/generator"
	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/provision"
	"github.com/firefly-engineering/volsync/internal/resolver"
	"github.com/firefly-engineering/volsync/internal/syncer"
	"github.com/firefly-engineering/volsync/internal/system"
	"github.com/firefly-engineering/volsync/internal/volume"
)

// App holds the application dependencies
type App struct {
	// Settings holds paths and defaults
	Settings *config.Settings

	// FS is used for every file read and write
	FS afero.Fs

	// Executor runs useradd, usermod, chown and unison
	Executor system.CommandExecutor

	// Env holds the SYNC_* fallbacks
	Env config.Env

	// SkipSync disables the initial unison run
	SkipSync bool
}

// Option is a function that configures the App
type Option func(*App)

// WithSettings sets custom settings
func WithSettings(s *config.Settings) Option {
	return func(a *App) {
		a.Settings = s
	}
}

// WithFS sets the filesystem
func WithFS(fs afero.Fs) Option {
	return func(a *App) {
		a.FS = fs
	}
}

// WithExecutor sets the command executor
func WithExecutor(e system.CommandExecutor) Option {
	return func(a *App) {
		a.Executor = e
	}
}

// WithEnv sets the SYNC_* fallbacks instead of reading the process environment
func WithEnv(env config.Env) Option {
	return func(a *App) {
		a.Env = env
	}
}

// WithSkipSync disables the initial sync
func WithSkipSync(skip bool) Option {
	return func(a *App) {
		a.SkipSync = skip
	}
}

// New creates a new App with the given options.
func New(opts ...Option) *App {
	app := &App{
		Settings: config.DefaultSettings(),
		FS:       system.DefaultFS(),
		Executor: system.DefaultExecutor(),
		Env:      config.LoadEnv(nil),
	}

	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Result describes a completed run.
type Result struct {
	Volumes    []*volume.Config
	Discovered []string
	Files      []string
	Actions    map[string]provision.Action
	Warnings   []error
}

// Run loads the config at configPath (none when empty), merges discovered
// volumes, resolves and provisions them, writes the supervisor files and
// performs the initial sync.
func (a *App) Run(ctx context.Context, configPath string) (*Result, error) {
	g, err := a.load(configPath)
	if err != nil {
		return nil, err
	}

	discovered, err := discovery.Load(a.FS, a.Settings.DiscoveredPath)
	if err != nil {
		return nil, errors.ConfigParseError(a.Settings.DiscoveredPath, err)
	}
	added := discovery.Merge(g, discovered, a.Settings.DiscoveryMarker)
	logging.Debug("volumes merged", "declared", g.Len()-len(added), "discovered", len(added))

	if g.Len() == 0 {
		logging.Info("no volumes to synchronize")
	}

	p := provision.New(a.FS, a.Executor, a.Settings)
	report, err := resolver.New(a.Settings, p).Resolve(ctx, g)
	if err != nil {
		return nil, classifyResolveError(err)
	}

	result := &Result{
		Volumes:    report.Volumes,
		Discovered: added,
		Actions:    report.Actions,
	}
	for _, f := range report.Failures {
		result.Warnings = append(result.Warnings, errors.ProvisionFailed(f.User, f))
	}

	files, err := generator.NewRenderer(a.FS, a.Settings).Render(g)
	result.Files = files
	if err != nil {
		if errors.Is(err, generator.ErrTemplate) {
			return result, errors.TemplateError("failed to render supervisor config", err)
		}
		return result, errors.Wrap(errors.ExitGeneralError, "failed to write supervisor config", err)
	}

	if a.SkipSync {
		logging.Debug("initial sync skipped")
		return result, nil
	}
	result.Warnings = append(result.Warnings, syncer.NewRunner(a.Settings, a.Executor, p).Run(ctx, g)...)
	return result, nil
}

func (a *App) load(configPath string) (*volume.Global, error) {
	if configPath == "" {
		return volume.NewGlobal(a.Env), nil
	}
	g, err := volume.Load(a.FS, configPath, a.Env)
	if err != nil {
		return nil, errors.ConfigParseError(configPath, err)
	}
	logging.Debug("config loaded", "path", configPath, "volumes", g.Paths())
	return g, nil
}

func classifyResolveError(err error) error {
	var verr *resolver.VolumeError
	path := ""
	if errors.As(err, &verr) {
		path = verr.Path
	}

	switch {
	case errors.Is(err, resolver.ErrMissingUID):
		return errors.MissingUID(path, err)
	case errors.Is(err, resolver.ErrInvalidUID), errors.Is(err, resolver.ErrNoUser):
		return errors.ConfigError("invalid volume configuration", err)
	default:
		return errors.Wrap(errors.ExitGeneralError, "failed to resolve volumes", err)
	}
}
