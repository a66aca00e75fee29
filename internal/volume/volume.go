// Package volume holds the volume data model and the config-file loader.
package volume

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/ignore"
)

// UID is a numeric user id that may be written as 1000 or "1000".
type UID int

func (u *UID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: uid must be a number", node.Line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(node.Value))
	if err != nil || n < 0 {
		return fmt.Errorf("line %d: invalid uid %q", node.Line, node.Value)
	}
	*u = UID(n)
	return nil
}

// Spec holds the optional per-volume keys of the config file.
// A nil field means the key was absent.
type Spec struct {
	User           *string          `yaml:"user"`
	UID            *UID             `yaml:"uid"`
	Ignore         *ignore.Patterns `yaml:"ignore"`
	UnisonDefaults *string          `yaml:"unison_defaults"`
}

// Config is one synchronized volume. Everything but Path and Spec is
// derived during resolution and rendering.
type Config struct {
	Path string
	Spec Spec

	Name           string
	Shadow         string // Host-side mount, Path plus the discovery marker
	User           string
	UID            int
	HomeDir        string
	Ignore         ignore.Patterns
	IgnoreString   string
	UnisonDefaults string
	Port           int
}

// NameFor derives a volume name from its path: "/data/app" -> "-data-app".
func NameFor(p string) string {
	return strings.ReplaceAll(p, "/", "-")
}

// ShadowPath is the mount the container runtime exposes for p.
func ShadowPath(p, marker string) string {
	return p + marker
}

// Global is the ordered set of volumes of one run plus the environment
// fallbacks. Iteration follows insertion order.
type Global struct {
	Env config.Env

	order   []string
	volumes map[string]*Config
}

// NewGlobal returns an empty volume set.
func NewGlobal(env config.Env) *Global {
	return &Global{
		Env:     env,
		volumes: make(map[string]*Config),
	}
}

// CleanPath canonicalizes a volume path.
func CleanPath(p string) string {
	return path.Clean(strings.TrimSpace(p))
}

// Add inserts a volume with the given spec. It returns false and leaves the
// existing entry untouched when the path is already present.
func (g *Global) Add(p string, spec Spec) bool {
	p = CleanPath(p)
	if _, ok := g.volumes[p]; ok {
		return false
	}
	g.volumes[p] = &Config{Path: p, Spec: spec}
	g.order = append(g.order, p)
	return true
}

// Has reports whether path is present.
func (g *Global) Has(p string) bool {
	_, ok := g.volumes[CleanPath(p)]
	return ok
}

// Len returns the number of volumes.
func (g *Global) Len() int {
	return len(g.order)
}

// Paths returns volume paths in insertion order.
func (g *Global) Paths() []string {
	return append([]string(nil), g.order...)
}

// Volumes returns the volumes in insertion order.
func (g *Global) Volumes() []*Config {
	out := make([]*Config, 0, len(g.order))
	for _, p := range g.order {
		out = append(out, g.volumes[p])
	}
	return out
}
