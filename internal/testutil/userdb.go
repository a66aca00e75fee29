package testutil

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/firefly-engineering/volsync/internal/system"
)

// FakeUserDB is a CommandExecutor that applies useradd and usermod to a
// passwd file on an afero filesystem. Every command is recorded by the
// embedded MockExecutor; commands other than useradd and usermod get the
// mock's configured responses.
type FakeUserDB struct {
	*system.MockExecutor

	mu       sync.Mutex
	fs       afero.Fs
	path     string
	homeRoot string
}

type account struct {
	name string
	uid  int
	home string
}

// NewFakeUserDB creates a FakeUserDB over the passwd file at path.
func NewFakeUserDB(fs afero.Fs, path, homeRoot string) *FakeUserDB {
	return &FakeUserDB{
		MockExecutor: system.NewMockExecutor(),
		fs:           fs,
		path:         path,
		homeRoot:     homeRoot,
	}
}

func (f *FakeUserDB) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := f.MockExecutor.Execute(ctx, name, args...)
	if err != nil {
		return out, err
	}

	switch name {
	case "useradd":
		return nil, f.useradd(args)
	case "usermod":
		return nil, f.usermod(args)
	}
	return out, nil
}

// useradd supports [-u UID] [-m] -- NAME.
func (f *FakeUserDB) useradd(args []string) error {
	opts, name, err := parseArgs(args)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	accounts, err := f.accountsLocked()
	if err != nil {
		return err
	}
	uid := -1
	if v, ok := opts["-u"]; ok {
		if uid, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("useradd: invalid user ID '%s'", v)
		}
	}
	next := 1000
	for _, a := range accounts {
		if a.name == name {
			return fmt.Errorf("useradd: user '%s' already exists", name)
		}
		if uid >= 0 && a.uid == uid {
			return fmt.Errorf("useradd: UID %d is not unique", uid)
		}
		if a.uid >= next {
			next = a.uid + 1
		}
	}
	if uid < 0 {
		uid = next
	}

	home := strings.TrimRight(f.homeRoot, "/") + "/" + name
	if _, ok := opts["-m"]; ok {
		if err := f.fs.MkdirAll(home, 0755); err != nil {
			return err
		}
	}
	accounts = append(accounts, account{name: name, uid: uid, home: home})
	return f.writeLocked(accounts)
}

// usermod supports [-u UID] [--home DIR] [--login NEW] -- NAME.
func (f *FakeUserDB) usermod(args []string) error {
	opts, name, err := parseArgs(args)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	accounts, err := f.accountsLocked()
	if err != nil {
		return err
	}
	idx := -1
	for i, a := range accounts {
		if a.name == name {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("usermod: user '%s' does not exist", name)
	}

	if v, ok := opts["-u"]; ok {
		uid, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("usermod: invalid user ID '%s'", v)
		}
		for i, a := range accounts {
			if i != idx && a.uid == uid {
				return fmt.Errorf("usermod: UID '%d' already exists", uid)
			}
		}
		accounts[idx].uid = uid
	}
	if v, ok := opts["--login"]; ok {
		for _, a := range accounts {
			if a.name == v {
				return fmt.Errorf("usermod: user '%s' already exists", v)
			}
		}
		accounts[idx].name = v
	}
	if v, ok := opts["--home"]; ok {
		accounts[idx].home = v
	}
	return f.writeLocked(accounts)
}

// parseArgs splits options from the operand that follows "--".
func parseArgs(args []string) (map[string]string, string, error) {
	opts := make(map[string]string)
	for i := 0; i < len(args); i++ {
		switch a := args[i]; a {
		case "--":
			if i+1 != len(args)-1 {
				return nil, "", fmt.Errorf("expected exactly one name after --")
			}
			return opts, args[i+1], nil
		case "-m":
			opts[a] = ""
		case "-u", "--home", "--login":
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("option %s requires a value", a)
			}
			opts[a] = args[i+1]
			i++
		default:
			return nil, "", fmt.Errorf("unsupported option %q", a)
		}
	}
	return nil, "", fmt.Errorf("missing -- before the user name")
}

func (f *FakeUserDB) accounts() ([]account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountsLocked()
}

func (f *FakeUserDB) add(name string, uid int, home string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	accounts, err := f.accountsLocked()
	if err != nil {
		return err
	}
	return f.writeLocked(append(accounts, account{name: name, uid: uid, home: home}))
}

func (f *FakeUserDB) accountsLocked() ([]account, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return nil, err
	}
	var out []account
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 7 {
			continue
		}
		uid, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("bad passwd line %q", line)
		}
		out = append(out, account{name: parts[0], uid: uid, home: parts[5]})
	}
	return out, nil
}

func (f *FakeUserDB) writeLocked(accounts []account) error {
	var buf bytes.Buffer
	for _, a := range accounts {
		fmt.Fprintf(&buf, "%s:x:%d:%d::%s:/bin/sh\n", a.name, a.uid, a.uid, a.home)
	}
	return afero.WriteFile(f.fs, f.path, buf.Bytes(), 0644)
}
