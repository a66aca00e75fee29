// Package provision reconciles OS user accounts with the (username, uid)
// pair each volume is mapped to.
//
// The user database is read from the passwd file; changes go through
// useradd, usermod and chown so that the distribution's own tooling keeps
// shadow, group and home directories consistent.
//
// # State Matrix
//
// With a uid:
//
//	user absent, uid free     useradd -u <uid> -m -- <user>
//	user present, uid free    usermod -u <uid> -- <user>
//	user absent, uid taken    rename the holder of <uid> to <user>, move its
//	                          home to /home/<user> and chown it
//	user holds uid            nothing to do
//	user present, uid taken   ErrUIDConflict
//	by another account
//
// Without a uid the user is created with an automatic uid when absent.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/afero"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/system"
)

// ErrUIDConflict is returned when the requested username and uid both exist
// but belong to different accounts.
var ErrUIDConflict = errors.New("uid is held by another user")

// Action describes what Ensure changed.
type Action string

const (
	ActionNone       Action = "none"
	ActionCreated    Action = "created"
	ActionUIDChanged Action = "uid-changed"
	ActionRenamed    Action = "renamed"
)

// Error reports a failed provisioning step for one user.
type Error struct {
	User string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.User, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Provisioner creates and adjusts OS users. It is safe for concurrent use:
// calls touching the same uid or username are serialized.
type Provisioner struct {
	fs       afero.Fs
	exec     system.CommandExecutor
	settings *config.Settings
	locks    keyedMutex
}

// New creates a Provisioner.
func New(fs afero.Fs, exec system.CommandExecutor, settings *config.Settings) *Provisioner {
	return &Provisioner{
		fs:       fs,
		exec:     exec,
		settings: settings,
	}
}

// Ensure converges the account username to uid. A nil uid only makes sure the
// account exists. Running Ensure again with the same inputs changes nothing.
func (p *Provisioner) Ensure(ctx context.Context, username string, uid *int) (Action, error) {
	if username == "" {
		return ActionNone, &Error{Op: "ensure", Err: fmt.Errorf("username is required")}
	}

	keys := []string{"user:" + username}
	if uid != nil {
		keys = append([]string{"uid:" + strconv.Itoa(*uid)}, keys...)
	}
	unlock := p.locks.lock(keys...)
	defer unlock()

	pw, err := LoadPasswd(p.fs, p.settings.PasswdPath)
	if err != nil {
		return ActionNone, &Error{User: username, Op: "lookup", Err: err}
	}

	if uid == nil {
		return p.ensureExists(ctx, pw, username)
	}
	return p.ensureUID(ctx, pw, username, *uid)
}

func (p *Provisioner) ensureExists(ctx context.Context, pw *Passwd, username string) (Action, error) {
	if pw.Find(username) != nil {
		logging.Info("user already exists", "user", username)
		return ActionNone, nil
	}
	if err := p.run(ctx, "useradd", "-m", "--", username); err != nil {
		return ActionNone, &Error{User: username, Op: "create", Err: err}
	}
	return ActionCreated, nil
}

func (p *Provisioner) ensureUID(ctx context.Context, pw *Passwd, username string, uid int) (Action, error) {
	byName := pw.Find(username)
	byUID := pw.FindByUID(uid)
	uidArg := strconv.Itoa(uid)

	switch {
	case byName == nil && byUID == nil:
		if err := p.run(ctx, "useradd", "-u", uidArg, "-m", "--", username); err != nil {
			return ActionNone, &Error{User: username, Op: "create", Err: err}
		}
		return ActionCreated, nil

	case byName != nil && byUID == nil:
		if err := p.run(ctx, "usermod", "-u", uidArg, "--", username); err != nil {
			return ActionNone, &Error{User: username, Op: "set uid", Err: err}
		}
		return ActionUIDChanged, nil

	case byName == nil && byUID != nil:
		if err := p.rename(ctx, byUID.Name, username); err != nil {
			return ActionNone, err
		}
		return ActionRenamed, nil

	case byName.UID == uid:
		logging.Debug("user already provisioned", "user", username, "uid", uid)
		return ActionNone, nil

	default:
		return ActionNone, &Error{
			User: username,
			Op:   "set uid",
			Err:  fmt.Errorf("%w: uid %d belongs to %s, %s has uid %d", ErrUIDConflict, uid, byUID.Name, username, byName.UID),
		}
	}
}

// rename turns the account holding the wanted uid into username.
func (p *Provisioner) rename(ctx context.Context, holder, username string) error {
	home := p.settings.HomeDir(username)
	logging.Info("renaming user to match uid", "from", holder, "to", username, "home", home)

	if err := p.fs.MkdirAll(home, 0755); err != nil {
		return &Error{User: username, Op: "create home", Err: err}
	}
	if err := p.run(ctx, "usermod", "--home", home, "--login", username, "--", holder); err != nil {
		return &Error{User: username, Op: "rename", Err: err}
	}
	if err := p.run(ctx, "chown", "-R", "--", username, home); err != nil {
		return &Error{User: username, Op: "chown home", Err: err}
	}
	return nil
}

// Chown gives user ownership of path. It does nothing for the superuser.
func (p *Provisioner) Chown(ctx context.Context, user, path string, recursive bool) error {
	if p.settings.IsSuperuser(user) {
		return nil
	}
	args := []string{"--", user, path}
	if recursive {
		args = append([]string{"-R"}, args...)
	}
	if err := p.run(ctx, "chown", args...); err != nil {
		return &Error{User: user, Op: "chown " + path, Err: err}
	}
	return nil
}

func (p *Provisioner) run(ctx context.Context, name string, args ...string) error {
	return system.Run(ctx, p.exec, p.settings.CommandTimeout.Duration, name, args...)
}
