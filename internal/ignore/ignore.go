// Package ignore turns ignore patterns into the exclusion flags of a sync
// backend.
package ignore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

// Backend identifies a tool whose ignore syntax is supported.
type Backend string

const (
	// Unison is the primary sync tool: -ignore 'Path <p>'
	Unison Backend = "unison"
	// Tar is the archive tool: --exclude <p>
	Tar Backend = "tar"
)

// ErrUnsupportedBackend is returned for a backend outside the supported set.
var ErrUnsupportedBackend = errors.New("unsupported backend")

// Backends lists the supported backends.
func Backends() []Backend {
	return []Backend{Unison, Tar}
}

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	for _, b := range Backends() {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
}

// Patterns is an ordered list of ignore patterns.
type Patterns []string

// ParsePatterns splits a colon-separated pattern list. Empty tokens are dropped.
func ParsePatterns(s string) Patterns {
	var out Patterns
	for _, p := range strings.Split(s, ":") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UnmarshalYAML accepts either "a:b" or a sequence of strings.
func (p *Patterns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = ParsePatterns(s)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		out := make(Patterns, 0, len(list))
		for _, s := range list {
			if s != "" {
				out = append(out, s)
			}
		}
		*p = out
		return nil
	default:
		return fmt.Errorf("line %d: ignore must be a string or a list of strings", node.Line)
	}
}

// String renders the patterns in their colon-separated form.
func (p Patterns) String() string {
	return strings.Join(p, ":")
}

// Args returns the backend flags for patterns as an argv slice.
func Args(patterns Patterns, backend Backend) ([]string, error) {
	var flag, prefix string
	switch backend {
	case Unison:
		flag, prefix = "-ignore", "Path "
	case Tar:
		flag = "--exclude"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}

	args := make([]string, 0, 2*len(patterns))
	for _, p := range patterns {
		args = append(args, flag, prefix+p)
	}
	return args, nil
}

// Generate returns the ignore string for backend, padded with one space on
// each side so it can be spliced into a command line. Empty patterns give "".
// Unison entries are shell-quoted; tar patterns are emitted verbatim.
func Generate(patterns Patterns, backend Backend) (string, error) {
	args, err := Args(patterns, backend)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}
	if backend == Tar {
		return " " + strings.Join(args, " ") + " ", nil
	}
	return " " + shellquote.Join(args...) + " ", nil
}
