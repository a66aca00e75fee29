package volume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/volsync/internal/config"
)

// file is the top-level layout of the volume config file.
type file struct {
	Volumes yaml.Node `yaml:"volumes"`
}

// Load reads the volume config file at path. The volumes keep the order in
// which they appear in the file.
func Load(fsys afero.Fs, path string, env config.Env) (*Global, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, env)
}

// Parse decodes a volume config document.
func Parse(data []byte, env config.Env) (*Global, error) {
	g := NewGlobal(env)

	var f file
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		return nil, err
	}

	node := resolveAlias(&f.Volumes)
	switch node.Kind {
	case 0:
		return g, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return g, nil
		}
		return nil, fmt.Errorf("line %d: volumes must be a mapping", node.Line)
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: volumes must be a mapping", node.Line)
	}

	queue, err := addEntries(g, node, false)
	if err != nil {
		return nil, err
	}
	// Merged entries never override an explicit one, and the first merged
	// source to name a path wins.
	seen := map[*yaml.Node]bool{node: true}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if seen[m] {
			continue
		}
		seen[m] = true
		more, err := addEntries(g, m, true)
		if err != nil {
			return nil, err
		}
		queue = append(queue, more...)
	}
	return g, nil
}

// addEntries adds the volumes of one mapping to g. "<<" merge keys are not
// expanded; their mappings are returned so they can be applied after every
// explicit entry. When merging, paths already in g are skipped.
func addEntries(g *Global, node *yaml.Node, merging bool) ([]*yaml.Node, error) {
	var merged []*yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		if isMergeKey(key) {
			m, err := mergeSources(value)
			if err != nil {
				return nil, err
			}
			merged = append(merged, m...)
			continue
		}

		var p string
		if err := key.Decode(&p); err != nil {
			return nil, fmt.Errorf("line %d: invalid volume path: %w", key.Line, err)
		}
		if p == "" {
			return nil, fmt.Errorf("line %d: volume path cannot be empty", key.Line)
		}
		if merging && g.Has(p) {
			continue
		}

		var spec Spec
		if v := resolveAlias(value); !(v.Kind == yaml.ScalarNode && v.Tag == "!!null") {
			if err := value.Decode(&spec); err != nil {
				return nil, fmt.Errorf("volume %s: %w", p, err)
			}
		}

		if !g.Add(p, spec) {
			return nil, fmt.Errorf("line %d: duplicate volume %s", key.Line, CleanPath(p))
		}
	}
	return merged, nil
}

// mergeSources returns the mappings named by a "<<" value: one mapping or a
// sequence of them.
func mergeSources(value *yaml.Node) ([]*yaml.Node, error) {
	value = resolveAlias(value)
	switch value.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{value}, nil
	case yaml.SequenceNode:
		out := make([]*yaml.Node, 0, len(value.Content))
		for _, item := range value.Content {
			item = resolveAlias(item)
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: merge value must be a mapping", item.Line)
			}
			out = append(out, item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: merge value must be a mapping", value.Line)
	}
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" && (n.Tag == "" || n.Tag == "!!merge")
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
