package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/firefly-engineering/volsync/internal/config"
)

// TestEnv is an isolated environment backed by an in-memory filesystem.
type TestEnv struct {
	T        *testing.T
	Fs       afero.Fs
	Settings *config.Settings
	Exec     *FakeUserDB
	Vars     map[string]string
}

// NewTestEnv creates a TestEnv with default settings and a passwd file that
// only holds root.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	settings := config.DefaultSettings()

	env := &TestEnv{
		T:        t,
		Fs:       fs,
		Settings: settings,
		Exec:     NewFakeUserDB(fs, settings.PasswdPath, settings.HomeRoot),
		Vars:     make(map[string]string),
	}
	env.WriteFile(settings.PasswdPath, "root:x:0:0:root:/root:/bin/sh\n")
	if err := fs.MkdirAll(settings.HomeRoot, 0755); err != nil {
		t.Fatalf("failed to create home root: %v", err)
	}
	return env
}

// Env returns the SYNC_* fallbacks captured from Vars.
func (e *TestEnv) Env() config.Env {
	return config.LoadEnv(config.MapLookup(e.Vars))
}

// SetEnv sets a variable seen by Env.
func (e *TestEnv) SetEnv(key, value string) {
	e.Vars[key] = value
}

// AddUser appends an account to the passwd file.
func (e *TestEnv) AddUser(name string, uid int) {
	e.T.Helper()
	if err := e.Exec.add(name, uid, e.Settings.HomeDir(name)); err != nil {
		e.T.Fatalf("failed to add user %s: %v", name, err)
	}
}

// WriteFile writes content to path, creating parent directories.
func (e *TestEnv) WriteFile(path, content string) {
	e.T.Helper()
	if err := afero.WriteFile(e.Fs, path, []byte(content), 0644); err != nil {
		e.T.Fatalf("failed to write %s: %v", path, err)
	}
}

// ReadFile returns the content of path.
func (e *TestEnv) ReadFile(path string) string {
	e.T.Helper()
	data, err := afero.ReadFile(e.Fs, path)
	if err != nil {
		e.T.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether path exists.
func (e *TestEnv) Exists(path string) bool {
	ok, err := afero.Exists(e.Fs, path)
	return err == nil && ok
}

// Users returns "name:uid" for every account in passwd order.
func (e *TestEnv) Users() []string {
	e.T.Helper()
	accounts, err := e.Exec.accounts()
	if err != nil {
		e.T.Fatalf("failed to read passwd: %v", err)
	}
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = fmt.Sprintf("%s:%d", a.name, a.uid)
	}
	return out
}

// HasUser reports whether name exists with uid.
func (e *TestEnv) HasUser(name string, uid int) bool {
	want := fmt.Sprintf("%s:%d", name, uid)
	for _, u := range e.Users() {
		if u == want {
			return true
		}
	}
	return false
}

// Config writes a volumes config file and returns its path.
func (e *TestEnv) Config(content string) string {
	e.T.Helper()
	path := "/etc/volsync/config.yml"
	e.WriteFile(path, strings.TrimLeft(content, "\n"))
	return path
}
