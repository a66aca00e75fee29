// Package discovery merges volumes detected by the container runtime into
// the declared volume set.
//
// The runtime writes a YAML file listing every mount it sees. Mounts carrying
// the discovery marker (".magic" by default) are shadow copies of a volume:
// "/data/app.magic" means "/data/app" should be synchronized from it.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/volume"
)

type file struct {
	Volumes []string `yaml:"volumes"`
}

// Load reads the discovered-volumes file. A missing file means nothing was
// discovered.
func Load(fsys afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("no discovered volumes file", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read discovered volumes: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Volumes, nil
}

// Merge adds an empty volume for every marked entry whose real path is not
// declared yet. Unmarked entries are ignored and existing entries are never
// modified. It returns the added paths in discovery order.
func Merge(g *volume.Global, discovered []string, marker string) []string {
	var added []string
	for _, entry := range discovered {
		if marker == "" || !strings.Contains(entry, marker) {
			continue
		}
		p := volume.CleanPath(strings.ReplaceAll(entry, marker, ""))
		if p == "." || p == "/" {
			logging.Warn("ignoring discovered volume without a path", "entry", entry)
			continue
		}
		if g.Has(p) {
			logging.Debug("discovered volume already declared", "path", p)
			continue
		}
		g.Add(p, volume.Spec{})
		logging.Debug("discovered volume", "path", p)
		added = append(added, p)
	}
	return added
}
