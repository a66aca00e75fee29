// Package syncer performs the initial copy of every volume from its host
// mount before the supervisor takes over.
package syncer

import (
	"context"
	"fmt"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/ignore"
	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/system"
	"github.com/firefly-engineering/volsync/internal/volume"
)

// Chowner applies ownership to a path.
type Chowner interface {
	Chown(ctx context.Context, user, path string, recursive bool) error
}

// Runner runs unison once per volume and hands the result to the volume user.
type Runner struct {
	settings *config.Settings
	exec     system.CommandExecutor
	chowner  Chowner
}

// NewRunner creates a Runner.
func NewRunner(settings *config.Settings, exec system.CommandExecutor, chowner Chowner) *Runner {
	return &Runner{settings: settings, exec: exec, chowner: chowner}
}

// Args returns the unison arguments for the initial sync of v.
func (r *Runner) Args(v *volume.Config) ([]string, error) {
	shadow := v.Shadow
	if shadow == "" {
		shadow = volume.ShadowPath(v.Path, r.settings.DiscoveryMarker)
	}
	ignores, err := ignore.Args(v.Ignore, ignore.Unison)
	if err != nil {
		return nil, err
	}
	args := []string{shadow, v.Path, "-numericids", "-auto", "-batch"}
	return append(args, ignores...), nil
}

// Run syncs every volume in insertion order. A failing volume does not stop
// the others; all failures are returned.
func (r *Runner) Run(ctx context.Context, g *volume.Global) []error {
	var errs []error
	for _, v := range g.Volumes() {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		if err := r.SyncVolume(ctx, v); err != nil {
			logging.Warn("initial sync failed", "volume", v.Path, "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// SyncVolume runs the initial sync of one volume, then chowns it recursively.
// The chown runs even when unison fails so that partially copied files are
// still owned by the volume user.
func (r *Runner) SyncVolume(ctx context.Context, v *volume.Config) error {
	args, err := r.Args(v)
	if err != nil {
		return fmt.Errorf("volume %s: %w", v.Path, err)
	}

	log := logging.With("volume", v.Path, "user", v.User)
	log.Info("initial sync")
	syncErr := system.Run(ctx, r.exec, r.settings.SyncTimeout.Duration, r.settings.UnisonBinary, args...)
	chownErr := r.chowner.Chown(ctx, v.User, v.Path, true)
	if chownErr == nil {
		log.Debug("ownership applied", "recursive", true)
	}

	switch {
	case syncErr != nil && chownErr != nil:
		return fmt.Errorf("volume %s: sync: %w; chown: %v", v.Path, syncErr, chownErr)
	case syncErr != nil:
		return fmt.Errorf("volume %s: sync: %w", v.Path, syncErr)
	case chownErr != nil:
		return fmt.Errorf("volume %s: %w", v.Path, chownErr)
	}
	return nil
}
