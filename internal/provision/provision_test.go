package provision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/firefly-engineering/volsync/internal/testutil"
)

func intPtr(v int) *int { return &v }

func TestEnsure_StateMatrix(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(env *testutil.TestEnv)
		user       string
		uid        *int
		wantAction Action
		wantCmds   []string
		wantUsers  []string
	}{
		{
			name:       "neither exists",
			user:       "app",
			uid:        intPtr(1000),
			wantAction: ActionCreated,
			wantCmds:   []string{"useradd -u 1000 -m -- app"},
			wantUsers:  []string{"root:0", "app:1000"},
		},
		{
			name:       "user exists with another uid",
			setup:      func(env *testutil.TestEnv) { env.AddUser("app", 1200) },
			user:       "app",
			uid:        intPtr(1000),
			wantAction: ActionUIDChanged,
			wantCmds:   []string{"usermod -u 1000 -- app"},
			wantUsers:  []string{"root:0", "app:1000"},
		},
		{
			name:       "uid held by another user",
			setup:      func(env *testutil.TestEnv) { env.AddUser("node", 1000) },
			user:       "app",
			uid:        intPtr(1000),
			wantAction: ActionRenamed,
			wantCmds: []string{
				"usermod --home /home/app --login app -- node",
				"chown -R -- app /home/app",
			},
			wantUsers: []string{"root:0", "app:1000"},
		},
		{
			name:       "already converged",
			setup:      func(env *testutil.TestEnv) { env.AddUser("app", 1000) },
			user:       "app",
			uid:        intPtr(1000),
			wantAction: ActionNone,
			wantCmds:   []string{},
			wantUsers:  []string{"root:0", "app:1000"},
		},
		{
			name:       "no uid and absent",
			user:       "app",
			wantAction: ActionCreated,
			wantCmds:   []string{"useradd -m -- app"},
			wantUsers:  []string{"root:0", "app:1000"},
		},
		{
			name:       "no uid and present",
			setup:      func(env *testutil.TestEnv) { env.AddUser("app", 1300) },
			user:       "app",
			wantAction: ActionNone,
			wantCmds:   []string{},
			wantUsers:  []string{"root:0", "app:1300"},
		},
		{
			name:       "name starting with a dash",
			user:       "-data",
			uid:        intPtr(1000),
			wantAction: ActionCreated,
			wantCmds:   []string{"useradd -u 1000 -m -- -data"},
			wantUsers:  []string{"root:0", "-data:1000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			p := New(env.Fs, env.Exec, env.Settings)

			action, err := p.Ensure(context.Background(), tt.user, tt.uid)
			if err != nil {
				t.Fatalf("Ensure error: %v", err)
			}
			if action != tt.wantAction {
				t.Errorf("action = %q, want %q", action, tt.wantAction)
			}

			cmds := env.Exec.CommandLines()
			if len(cmds) != len(tt.wantCmds) {
				t.Fatalf("commands = %q, want %q", cmds, tt.wantCmds)
			}
			for i := range cmds {
				if cmds[i] != tt.wantCmds[i] {
					t.Errorf("command[%d] = %q, want %q", i, cmds[i], tt.wantCmds[i])
				}
			}

			users := env.Users()
			if strings.Join(users, ",") != strings.Join(tt.wantUsers, ",") {
				t.Errorf("users = %v, want %v", users, tt.wantUsers)
			}
		})
	}
}

func TestEnsure_RenameCreatesHome(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddUser("node", 1000)
	p := New(env.Fs, env.Exec, env.Settings)

	if _, err := p.Ensure(context.Background(), "app", intPtr(1000)); err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if !env.Exists("/home/app") {
		t.Error("home directory should exist after rename")
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	setups := map[string]func(env *testutil.TestEnv){
		"fresh":       func(env *testutil.TestEnv) {},
		"wrong uid":   func(env *testutil.TestEnv) { env.AddUser("app", 1234) },
		"uid taken":   func(env *testutil.TestEnv) { env.AddUser("node", 1000) },
		"already set": func(env *testutil.TestEnv) { env.AddUser("app", 1000) },
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			setup(env)
			p := New(env.Fs, env.Exec, env.Settings)
			ctx := context.Background()

			if _, err := p.Ensure(ctx, "app", intPtr(1000)); err != nil {
				t.Fatalf("first Ensure error: %v", err)
			}
			first := env.Users()
			env.Exec.Reset()

			action, err := p.Ensure(ctx, "app", intPtr(1000))
			if err != nil {
				t.Fatalf("second Ensure error: %v", err)
			}
			if action != ActionNone {
				t.Errorf("second action = %q, want none", action)
			}
			if n := len(env.Exec.Commands); n != 0 {
				t.Errorf("second Ensure ran %d commands: %v", n, env.Exec.CommandLines())
			}
			if strings.Join(env.Users(), ",") != strings.Join(first, ",") {
				t.Errorf("users changed: %v -> %v", first, env.Users())
			}
			if !env.HasUser("app", 1000) {
				t.Errorf("users = %v, want app:1000", env.Users())
			}
		})
	}
}

func TestEnsure_UIDConflict(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddUser("app", 1200)
	env.AddUser("node", 1000)
	p := New(env.Fs, env.Exec, env.Settings)

	_, err := p.Ensure(context.Background(), "app", intPtr(1000))
	if !errors.Is(err, ErrUIDConflict) {
		t.Fatalf("err = %v, want ErrUIDConflict", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.User != "app" {
		t.Errorf("err should be a *Error for app, got %#v", err)
	}
	if len(env.Exec.Commands) != 0 {
		t.Errorf("no command should run on conflict, got %v", env.Exec.CommandLines())
	}
}

func TestEnsure_CommandFailure(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Exec.AddResponse("useradd", []byte("useradd: cannot lock /etc/passwd"), errors.New("exit status 1"))
	p := New(env.Fs, env.Exec, env.Settings)

	_, err := p.Ensure(context.Background(), "app", intPtr(1000))
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "cannot lock") {
		t.Errorf("error should carry command output, got %q", err.Error())
	}
}

func TestEnsure_Errors(t *testing.T) {
	env := testutil.NewTestEnv(t)
	p := New(env.Fs, env.Exec, env.Settings)

	if _, err := p.Ensure(context.Background(), "", intPtr(1)); err == nil {
		t.Error("empty username should fail")
	}

	if err := env.Fs.Remove(env.Settings.PasswdPath); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Ensure(context.Background(), "app", intPtr(1)); err == nil {
		t.Error("missing passwd file should fail")
	}
}

func TestEnsure_Concurrent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	p := New(env.Fs, env.Exec, env.Settings)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Ensure(context.Background(), "app", intPtr(1000))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Ensure[%d] error: %v", i, err)
		}
	}
	if got := env.Exec.Count("useradd"); got != 1 {
		t.Errorf("useradd ran %d times, want 1", got)
	}
}

func TestChown(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		recursive bool
		want      []string
	}{
		{"single", "app", false, []string{"chown -- app /data/app"}},
		{"recursive", "app", true, []string{"chown -R -- app /data/app"}},
		{"superuser", "root", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			p := New(env.Fs, env.Exec, env.Settings)

			if err := p.Chown(context.Background(), tt.user, "/data/app", tt.recursive); err != nil {
				t.Fatalf("Chown error: %v", err)
			}
			got := env.Exec.CommandLines()
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("commands = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePasswd(t *testing.T) {
	input := `# local accounts
root:x:0:0:root:/root:/bin/bash

daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin
+::::::
app:x:1000:1000:App,,,:/home/app:
short:x:1
`
	pw, err := ParsePasswd(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePasswd error: %v", err)
	}

	if len(pw.entries) != 3 {
		t.Fatalf("entries = %d, want 3: %+v", len(pw.entries), pw.entries)
	}
	if app := pw.Find("app"); app == nil || app.UID != 1000 || app.Home != "/home/app" || app.Shell != "" {
		t.Errorf("Find(app) = %+v", app)
	}
	if d := pw.FindByUID(1); d == nil || d.Name != "daemon" {
		t.Errorf("FindByUID(1) = %+v", d)
	}
	if pw.Find("nobody") != nil || pw.FindByUID(4242) != nil {
		t.Error("lookups for absent accounts should return nil")
	}

	if _, err := ParsePasswd(strings.NewReader("bad:x:abc:0::/:/bin/sh\n")); err == nil {
		t.Error("non-numeric uid should fail")
	}
}
