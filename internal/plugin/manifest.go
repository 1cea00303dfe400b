package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFiles are the file names looked for in each plugin directory, in
// order of preference.
var ManifestFiles = []string{"manifest.json", "manifest.yaml", "manifest.yml"}

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ErrNoManifest is returned by FindManifest for directories without one.
var ErrNoManifest = errors.New("plugin: no manifest found")

// Manifest describes one plugin.
type Manifest struct {
	Name        string `json:"name" yaml:"name"`
	EntryPoint  string `json:"entry_point" yaml:"entry_point"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks the fields the loader relies on.
func (m Manifest) Validate() error {
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("plugin: invalid name %q", m.Name)
	}
	if strings.TrimSpace(m.EntryPoint) == "" {
		return fmt.Errorf("plugin %s: entry_point is required", m.Name)
	}
	return nil
}

// ParseManifest decodes data as YAML or JSON depending on filename.
func ParseManifest(data []byte, filename string) (Manifest, error) {
	var m Manifest
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("parse JSON: %w", err)
		}
	}
	m.Name = strings.TrimSpace(m.Name)
	m.EntryPoint = strings.TrimSpace(m.EntryPoint)
	return m, m.Validate()
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data, path)
}

// FindManifest returns the path of the manifest inside dir.
func FindManifest(dir string) (string, error) {
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", ErrNoManifest
}
