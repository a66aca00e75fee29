package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

const (
	DefaultSettingsPath      = "/etc/volsync/settings.toml"
	DefaultSupervisorConfDir = "/etc/supervisor.conf.d"
	DefaultTemplatePath      = "/etc/supervisor.unison.tpl.conf"
	DefaultDiscoveredPath    = "/volumes.yml"
	DefaultPasswdPath        = "/etc/passwd"
	DefaultHomeRoot          = "/home"
	DefaultSuperuser         = "root"
	DefaultDiscoveryMarker   = ".magic"
	DefaultBasePort          = 5000
	DefaultUnisonDefaults    = "-auto -batch -repeat watch"
	DefaultUnisonBinary      = "unison"
	DefaultCommandTimeout    = 2 * time.Minute

	// SettingsEnvVar overrides the settings file location.
	SettingsEnvVar = "VOLSYNC_SETTINGS"
)

// Environment variable names for the process-wide fallbacks.
const (
	EnvUser           = "SYNC_USER"
	EnvUID            = "SYNC_UID"
	EnvIgnore         = "SYNC_IGNORE"
	EnvUnisonDefaults = "SYNC_UNISON_DEFAULTS"
)

// Duration decodes TOML strings such as "90s" into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Settings holds the paths and defaults of one run.
type Settings struct {
	SupervisorConfDir string `toml:"supervisor_conf_dir"`
	TemplatePath      string `toml:"template_path"`
	DiscoveredPath    string `toml:"discovered_path"`
	PasswdPath        string `toml:"passwd_path"`
	HomeRoot          string `toml:"home_root"`
	Superuser         string `toml:"superuser"`
	DiscoveryMarker   string `toml:"discovery_marker"`
	BasePort          int    `toml:"base_port"`
	UnisonDefaults    string `toml:"unison_defaults"`
	UnisonBinary      string `toml:"unison_binary"`

	// CommandTimeout bounds useradd/usermod/chown. Zero disables it.
	CommandTimeout Duration `toml:"command_timeout"`

	// SyncTimeout bounds each initial unison run. Zero (the default) disables it.
	SyncTimeout Duration `toml:"sync_timeout"`
}

// DefaultSettings returns the settings used when no file overrides them.
func DefaultSettings() *Settings {
	return &Settings{
		SupervisorConfDir: DefaultSupervisorConfDir,
		TemplatePath:      DefaultTemplatePath,
		DiscoveredPath:    DefaultDiscoveredPath,
		PasswdPath:        DefaultPasswdPath,
		HomeRoot:          DefaultHomeRoot,
		Superuser:         DefaultSuperuser,
		DiscoveryMarker:   DefaultDiscoveryMarker,
		BasePort:          DefaultBasePort,
		UnisonDefaults:    DefaultUnisonDefaults,
		UnisonBinary:      DefaultUnisonBinary,
		CommandTimeout:    Duration{DefaultCommandTimeout},
	}
}

// Validate checks that the Settings are usable.
func (s *Settings) Validate() error {
	for name, p := range map[string]string{
		"supervisor_conf_dir": s.SupervisorConfDir,
		"template_path":       s.TemplatePath,
		"discovered_path":     s.DiscoveredPath,
		"passwd_path":         s.PasswdPath,
		"home_root":           s.HomeRoot,
	} {
		if p == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !filepath.IsAbs(p) {
			return fmt.Errorf("%s must be an absolute path (got %q)", name, p)
		}
	}
	if s.DiscoveryMarker == "" {
		return fmt.Errorf("discovery_marker is required")
	}
	if s.UnisonBinary == "" {
		return fmt.Errorf("unison_binary is required")
	}
	if s.BasePort < 1 || s.BasePort > 65535 {
		return fmt.Errorf("base_port must be between 1 and 65535 (got %d)", s.BasePort)
	}
	if s.CommandTimeout.Duration < 0 || s.SyncTimeout.Duration < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// HomeDir returns the home directory of user under the configured home root.
func (s *Settings) HomeDir(user string) string {
	return filepath.Join(s.HomeRoot, user)
}

// IsSuperuser reports whether ownership changes should be skipped for user.
func (s *Settings) IsSuperuser(user string) bool {
	return s.Superuser != "" && user == s.Superuser
}

// LoadSettings decodes the TOML file at path over the defaults.
// A missing file yields the defaults.
func LoadSettings(fsys afero.Fs, path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	md, err := toml.Decode(string(data), settings)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown settings in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return settings, nil
}

// Env holds the SYNC_* fallbacks. A nil field means the variable is unset.
type Env struct {
	User           *string
	UID            *string
	Ignore         *string
	UnisonDefaults *string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnv captures the SYNC_* variables through lookup (os.LookupEnv when nil).
func LoadEnv(lookup LookupFunc) Env {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) *string {
		if v, ok := lookup(key); ok {
			return &v
		}
		return nil
	}
	return Env{
		User:           get(EnvUser),
		UID:            get(EnvUID),
		Ignore:         get(EnvIgnore),
		UnisonDefaults: get(EnvUnisonDefaults),
	}
}

// ParseUID parses a SYNC_UID value.
func (e Env) ParseUID() (int, bool, error) {
	if e.UID == nil {
		return 0, false, nil
	}
	uid, err := strconv.Atoi(strings.TrimSpace(*e.UID))
	if err != nil {
		return 0, true, fmt.Errorf("invalid %s %q: %w", EnvUID, *e.UID, err)
	}
	if uid < 0 {
		return 0, true, fmt.Errorf("invalid %s %q: must not be negative", EnvUID, *e.UID)
	}
	return uid, true, nil
}

// MapLookup adapts a map to a LookupFunc, for tests and fixed environments.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
