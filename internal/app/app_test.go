package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/errors"
	"github.com/firefly-engineering/volsync/internal/provision"
	"github.com/firefly-engineering/volsync/internal/testutil"
)

func newApp(env *testutil.TestEnv, opts ...Option) *App {
	base := []Option{
		WithSettings(env.Settings),
		WithFS(env.Fs),
		WithExecutor(env.Exec),
		WithEnv(env.Env()),
	}
	return New(append(base, opts...)...)
}

func TestNew(t *testing.T) {
	app := New()

	if app == nil {
		t.Fatal("New() returned nil")
	}
	if app.Settings == nil || app.FS == nil || app.Executor == nil {
		t.Error("New() should set real defaults")
	}
	if app.SkipSync {
		t.Error("SkipSync should default to false")
	}
}

func TestNew_WithOptions(t *testing.T) {
	env := testutil.NewTestEnv(t)
	settings := config.DefaultSettings()
	user := "dev"

	app := New(
		WithSettings(settings),
		WithFS(env.Fs),
		WithExecutor(env.Exec),
		WithEnv(config.Env{User: &user}),
		WithSkipSync(true),
	)

	if app.Settings != settings {
		t.Error("WithSettings did not set settings")
	}
	if app.FS != env.Fs {
		t.Error("WithFS did not set the filesystem")
	}
	if app.Executor != env.Exec {
		t.Error("WithExecutor did not set the executor")
	}
	if app.Env.User == nil || *app.Env.User != "dev" {
		t.Error("WithEnv did not set the environment")
	}
	if !app.SkipSync {
		t.Error("WithSkipSync did not set SkipSync")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Config(`
volumes:
  /data/app:
    uid: 1000
    ignore: "node_modules:tmp"
`)

	result, err := newApp(env).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v", result.Warnings)
	}

	if len(result.Volumes) != 1 {
		t.Fatalf("Volumes = %d, want 1", len(result.Volumes))
	}
	v := result.Volumes[0]
	if v.Name != "-data-app" || v.User != "data-ap" || v.HomeDir != "/home/data-ap" || v.Port != 5001 {
		t.Errorf("volume = %+v", v)
	}
	if !strings.Contains(v.IgnoreString, "Path node_modules") || !strings.Contains(v.IgnoreString, "Path tmp") {
		t.Errorf("IgnoreString = %q", v.IgnoreString)
	}

	if !env.HasUser("data-ap", 1000) {
		t.Errorf("users = %v, want data-ap:1000", env.Users())
	}

	conf := env.ReadFile("/etc/supervisor.conf.d/unison-data-app.conf")
	if !strings.Contains(conf, "-ignore 'Path node_modules' -ignore 'Path tmp'") {
		t.Errorf("supervisor config missing ignore string:\n%s", conf)
	}

	want := []string{
		"useradd -u 1000 -m -- data-ap",
		"chown -- data-ap /data/app",
		"unison /data/app.magic /data/app -numericids -auto -batch -ignore 'Path node_modules' -ignore 'Path tmp'",
		"chown -R -- data-ap /data/app",
	}
	got := env.Exec.CommandLines()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestRun_Idempotent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Config(`
volumes:
  /data/app:
    uid: 1000
`)
	ctx := context.Background()

	if _, err := newApp(env, WithSkipSync(true)).Run(ctx, path); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	first := env.ReadFile("/etc/supervisor.conf.d/unison-data-app.conf")
	env.Exec.Reset()

	result, err := newApp(env, WithSkipSync(true)).Run(ctx, path)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if got := result.Actions["/data/app"]; got != provision.ActionNone {
		t.Errorf("second action = %q, want none", got)
	}
	if env.Exec.Count("useradd") != 0 || env.Exec.Count("usermod") != 0 {
		t.Errorf("second run changed users: %v", env.Exec.CommandLines())
	}
	if second := env.ReadFile("/etc/supervisor.conf.d/unison-data-app.conf"); second != first {
		t.Errorf("supervisor config changed:\n%s\n---\n%s", first, second)
	}
}

func TestRun_DiscoveredVolumes(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SetEnv(config.EnvUID, "1000")
	env.SetEnv(config.EnvUser, "dev")
	env.WriteFile(env.Settings.DiscoveredPath, `
volumes:
  - /data/app.magic
  - /srv/web.magic
  - /var/lib/plain
`)
	path := env.Config(`
volumes:
  /data/app:
    user: app
    uid: 1500
`)

	result, err := newApp(env, WithSkipSync(true)).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(result.Discovered) != 1 || result.Discovered[0] != "/srv/web" {
		t.Errorf("Discovered = %v, want [/srv/web]", result.Discovered)
	}
	if len(result.Volumes) != 2 {
		t.Fatalf("Volumes = %d, want 2", len(result.Volumes))
	}

	app, web := result.Volumes[0], result.Volumes[1]
	if app.Path != "/data/app" || app.User != "app" || app.UID != 1500 || app.Port != 5001 {
		t.Errorf("declared volume = %+v", app)
	}
	if web.Path != "/srv/web" || web.User != "dev" || web.UID != 1000 || web.Port != 5002 {
		t.Errorf("discovered volume = %+v", web)
	}
	if !env.Exists("/etc/supervisor.conf.d/unison-srv-web.conf") {
		t.Error("discovered volume should get a supervisor config")
	}
}

func TestRun_NoVolumes(t *testing.T) {
	env := testutil.NewTestEnv(t)

	result, err := newApp(env).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Volumes) != 0 || len(result.Files) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
	if len(env.Exec.Commands) != 0 {
		t.Errorf("no command should run, got %v", env.Exec.CommandLines())
	}
}

func TestRun_ProvisionFailureIsWarning(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddUser("app", 1200)
	env.AddUser("node", 1000)
	path := env.Config(`
volumes:
  /data/app:
    user: app
    uid: 1000
`)

	result, err := newApp(env, WithSkipSync(true)).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one", result.Warnings)
	}
	if errors.GetExitCode(result.Warnings[0]) != errors.ExitProvision {
		t.Errorf("warning exit code = %d", errors.GetExitCode(result.Warnings[0]))
	}
	if !errors.Is(result.Warnings[0], provision.ErrUIDConflict) {
		t.Errorf("warning = %v, want ErrUIDConflict", result.Warnings[0])
	}
	if len(result.Files) != 1 {
		t.Errorf("supervisor config should still be written, files = %v", result.Files)
	}
}

func TestRun_SyncFailureIsWarning(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Exec.AddResponse("unison", []byte("Fatal error"), fmt.Errorf("exit status 3"))
	path := env.Config(`
volumes:
  /data/app:
    uid: 1000
`)

	result, err := newApp(env).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0].Error(), "Fatal error") {
		t.Errorf("Warnings = %v", result.Warnings)
	}
}

func TestRun_FatalErrors(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		vars     map[string]string
		setup    func(env *testutil.TestEnv)
		wantCode int
	}{
		{
			name:     "malformed config",
			config:   "volumes: [unclosed",
			wantCode: errors.ExitConfigParse,
		},
		{
			name:     "missing uid",
			config:   "volumes:\n  /data/app: {}\n",
			wantCode: errors.ExitMissingUID,
		},
		{
			name:     "invalid SYNC_UID",
			config:   "volumes:\n  /data/app: {}\n",
			vars:     map[string]string{config.EnvUID: "app"},
			wantCode: errors.ExitConfigError,
		},
		{
			name:   "unknown template key",
			config: "volumes:\n  /data/app:\n    uid: 1000\n",
			setup: func(env *testutil.TestEnv) {
				env.WriteFile(env.Settings.TemplatePath, "[program:{{.group}}]\n")
			},
			wantCode: errors.ExitTemplate,
		},
		{
			name:   "malformed discovered file",
			config: "volumes:\n",
			setup: func(env *testutil.TestEnv) {
				env.WriteFile(env.Settings.DiscoveredPath, "volumes: {")
			},
			wantCode: errors.ExitConfigParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			for k, v := range tt.vars {
				env.SetEnv(k, v)
			}
			if tt.setup != nil {
				tt.setup(env)
			}
			path := env.Config(tt.config)

			_, err := newApp(env).Run(context.Background(), path)
			if err == nil {
				t.Fatal("Expected error")
			}
			if got := errors.GetExitCode(err); got != tt.wantCode {
				t.Errorf("exit code = %d, want %d (err: %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestRun_MissingConfigFile(t *testing.T) {
	env := testutil.NewTestEnv(t)

	_, err := newApp(env).Run(context.Background(), "/nope.yml")
	if got := errors.GetExitCode(err); got != errors.ExitConfigParse {
		t.Errorf("exit code = %d, want %d", got, errors.ExitConfigParse)
	}
}
