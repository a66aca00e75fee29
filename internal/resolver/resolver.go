// Package resolver fills in every derived field of a volume and provisions
// the user it is mapped to.
//
// Each field follows the same precedence: the value from the config file,
// then the SYNC_* environment variable, then a derived default.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/ignore"
	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/provision"
	"github.com/firefly-engineering/volsync/internal/volume"
)

var (
	// ErrMissingUID means neither the config file nor SYNC_UID gave a uid.
	ErrMissingUID = errors.New("no uid configured")

	// ErrInvalidUID means SYNC_UID is not a non-negative integer.
	ErrInvalidUID = errors.New("invalid uid")

	// ErrNoUser means no username could be derived from the volume path.
	ErrNoUser = errors.New("cannot derive a user name")
)

// fallbackUserEnd is the exclusive end of the slice of the volume name used
// as a derived username.
const fallbackUserEnd = 8

// VolumeError ties a resolution failure to its volume.
type VolumeError struct {
	Path string
	Err  error
}

func (e *VolumeError) Error() string {
	return fmt.Sprintf("volume %s: %v", e.Path, e.Err)
}

func (e *VolumeError) Unwrap() error {
	return e.Err
}

// Provisioner is the part of provision.Provisioner the resolver needs.
type Provisioner interface {
	Ensure(ctx context.Context, username string, uid *int) (provision.Action, error)
	Chown(ctx context.Context, user, path string, recursive bool) error
}

// Failure is a non-fatal provisioning or ownership error.
type Failure struct {
	Path string
	User string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("volume %s (user %s): %v", f.Path, f.User, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarizes a resolution run.
type Report struct {
	Volumes  []*volume.Config
	Actions  map[string]provision.Action // keyed by volume path
	Failures []Failure
}

// Resolver resolves volumes against settings and provisions their users.
type Resolver struct {
	settings    *config.Settings
	provisioner Provisioner
}

// New creates a Resolver.
func New(settings *config.Settings, provisioner Provisioner) *Resolver {
	return &Resolver{settings: settings, provisioner: provisioner}
}

// Resolve fills every volume of g in insertion order, then provisions users.
// A missing or invalid uid aborts before any user is touched. Provisioning
// and ownership errors are collected in the Report.
func (r *Resolver) Resolve(ctx context.Context, g *volume.Global) (*Report, error) {
	vols := g.Volumes()
	for _, v := range vols {
		if err := r.ResolveVolume(v, g.Env); err != nil {
			return nil, &VolumeError{Path: v.Path, Err: err}
		}
	}

	report := &Report{
		Volumes: vols,
		Actions: make(map[string]provision.Action, len(vols)),
	}
	for _, v := range vols {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		uid := v.UID
		action, err := r.provisioner.Ensure(ctx, v.User, &uid)
		if err != nil {
			logging.Warn("failed to provision user", "volume", v.Path, "user", v.User, "error", err)
			report.Failures = append(report.Failures, Failure{Path: v.Path, User: v.User, Err: err})
			continue
		}
		report.Actions[v.Path] = action
		logging.Debug("user provisioned", "volume", v.Path, "user", v.User, "uid", v.UID, "action", action)

		if err := r.provisioner.Chown(ctx, v.User, v.Path, false); err != nil {
			logging.Warn("failed to set volume owner", "volume", v.Path, "user", v.User, "error", err)
			report.Failures = append(report.Failures, Failure{Path: v.Path, User: v.User, Err: err})
		}
	}
	return report, nil
}

// ResolveVolume computes the derived fields of v. It is pure and can be
// repeated with the same result.
func (r *Resolver) ResolveVolume(v *volume.Config, env config.Env) error {
	v.Name = volume.NameFor(v.Path)
	v.Shadow = volume.ShadowPath(v.Path, r.settings.DiscoveryMarker)

	switch {
	case v.Spec.User != nil && *v.Spec.User != "":
		v.User = *v.Spec.User
	case env.User != nil && *env.User != "":
		v.User = *env.User
	default:
		v.User = FallbackUser(v.Name)
	}
	if v.User == "" {
		return ErrNoUser
	}
	v.HomeDir = r.settings.HomeDir(v.User)

	switch uid, ok, err := env.ParseUID(); {
	case v.Spec.UID != nil:
		v.UID = int(*v.Spec.UID)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalidUID, err)
	case ok:
		v.UID = uid
	default:
		return ErrMissingUID
	}

	switch {
	case v.Spec.Ignore != nil:
		v.Ignore = append(ignore.Patterns(nil), (*v.Spec.Ignore)...)
	case env.Ignore != nil:
		v.Ignore = ignore.ParsePatterns(*env.Ignore)
	default:
		v.Ignore = nil
	}
	s, err := ignore.Generate(v.Ignore, ignore.Unison)
	if err != nil {
		return err
	}
	v.IgnoreString = s

	switch {
	case v.Spec.UnisonDefaults != nil:
		v.UnisonDefaults = *v.Spec.UnisonDefaults
	case env.UnisonDefaults != nil:
		v.UnisonDefaults = *env.UnisonDefaults
	default:
		v.UnisonDefaults = r.settings.UnisonDefaults
	}
	return nil
}

// FallbackUser derives a username from a volume name by dropping the leading
// separator and cutting it at byte 8: "-data-app" -> "data-ap".
func FallbackUser(name string) string {
	if len(name) <= 1 {
		return ""
	}
	end := fallbackUserEnd
	if end > len(name) {
		end = len(name)
	}
	return name[1:end]
}
