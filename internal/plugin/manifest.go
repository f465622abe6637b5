package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	json "github.com/json-iterator/go"
)

// ManifestPath is where a plugin declares its identity.
const ManifestPath = ".claude-plugin/plugin.json"

// Manifest is the subset of plugin.json the evaluator needs.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Author      struct {
		Name  string `json:"name,omitempty"`
		Email string `json:"email,omitempty"`
	} `json:"author,omitempty"`
}

// ErrNoManifest is returned when the plugin has no plugin.json.
var ErrNoManifest = errors.New("plugin manifest not found")

// ReadManifest decodes ManifestPath from fsys.
func ReadManifest(fsys fs.FS) (Manifest, error) {
	b, err := fs.ReadFile(fsys, ManifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, ErrNoManifest
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("reading %s: %w", ManifestPath, err)
	}

	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding %s: %w", ManifestPath, err)
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return Manifest{}, fmt.Errorf("%s: name is required", ManifestPath)
	}
	return m, nil
}
