package generator

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/port"
	"github.com/firefly-engineering/volsync/internal/system"
	"github.com/firefly-engineering/volsync/internal/volume"
)

// Renderer writes supervisor program files.
type Renderer struct {
	fs       afero.Fs
	settings *config.Settings
}

// NewRenderer creates a Renderer.
func NewRenderer(fs afero.Fs, settings *config.Settings) *Renderer {
	return &Renderer{fs: fs, settings: settings}
}

// LoadTemplate reads the configured template, falling back to DefaultTemplate
// when the file does not exist.
func (r *Renderer) LoadTemplate() (*Template, error) {
	path := r.settings.TemplatePath
	data, err := afero.ReadFile(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("template not found, using the built-in one", "path", path)
		return ParseTemplate("default", DefaultTemplate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return ParseTemplate(filepath.Base(path), string(data))
}

// Render assigns ports and writes one file per volume in insertion order.
// It returns the written paths.
func (r *Renderer) Render(g *volume.Global) ([]string, error) {
	vols := g.Volumes()
	if err := port.Assign(vols, r.settings.BasePort); err != nil {
		return nil, err
	}

	tmpl, err := r.LoadTemplate()
	if err != nil {
		return nil, err
	}

	if err := r.fs.MkdirAll(r.settings.SupervisorConfDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", r.settings.SupervisorConfDir, err)
	}

	written := make([]string, 0, len(vols))
	for _, v := range vols {
		content, err := RenderVolume(tmpl, v)
		if err != nil {
			return written, fmt.Errorf("volume %s: %w", v.Path, err)
		}

		path, err := r.OutputPath(v)
		if err != nil {
			return written, err
		}
		if err := afero.WriteFile(r.fs, path, []byte(content), 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		logging.Debug("supervisor config written", "volume", v.Path, "path", path, "port", v.Port)
		written = append(written, path)
	}
	return written, nil
}

// OutputPath returns the supervisor file of v, confined to the supervisor
// directory.
func (r *Renderer) OutputPath(v *volume.Config) (string, error) {
	path, err := system.SecureJoin(r.fs, r.settings.SupervisorConfDir, "unison"+v.Name+".conf")
	if err != nil {
		return "", fmt.Errorf("invalid output path for %s: %w", v.Path, err)
	}
	return path, nil
}

// RenderVolume renders tmpl for one resolved volume.
func RenderVolume(tmpl *Template, v *volume.Config) (string, error) {
	return tmpl.Execute(Data(v))
}

// Data returns the template keys of v.
func Data(v *volume.Config) map[string]any {
	return map[string]any{
		"volume":          v.Path,
		"shadow":          v.Shadow,
		"name":            v.Name,
		"user":            v.User,
		"uid":             v.UID,
		"homedir":         v.HomeDir,
		"ignore":          v.Ignore.String(),
		"unison_ignore":   v.IgnoreString,
		"unison_defaults": v.UnisonDefaults,
		"port":            v.Port,
	}
}
