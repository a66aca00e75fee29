// Package system hides the host behind two seams: an afero filesystem for
// every file volsync reads or writes, and a CommandExecutor for useradd,
// usermod, chown and unison. Tests swap both for in-memory versions.
package system

import (
	"context"

	"github.com/spf13/afero"
)

// CommandExecutor runs external programs.
type CommandExecutor interface {
	// Execute runs name with args and returns stdout and stderr combined.
	// A non-zero exit status is returned as an error alongside the output.
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

var (
	hostFS       afero.Fs        = afero.NewOsFs()
	hostExecutor CommandExecutor = &osExecutor{}
)

// DefaultFS returns the filesystem used when none is injected.
func DefaultFS() afero.Fs {
	return hostFS
}

// DefaultExecutor returns the executor used when none is injected.
func DefaultExecutor() CommandExecutor {
	return hostExecutor
}

// SetDefaultFS replaces the default filesystem, for CLI tests.
func SetDefaultFS(fs afero.Fs) {
	hostFS = fs
}

// SetDefaultExecutor replaces the default executor, for CLI tests.
func SetDefaultExecutor(e CommandExecutor) {
	hostExecutor = e
}

// ResetDefaults points the defaults back at the host.
func ResetDefaults() {
	hostFS = afero.NewOsFs()
	hostExecutor = &osExecutor{}
}
