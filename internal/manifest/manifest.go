package manifest

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

//go:embed defaults
var defaults embed.FS

// Manifest is the ordered package list installed before the main script.
type Manifest struct {
	Packages []string `toml:"packages" yaml:"packages"`
}

// Default returns the compiled-in manifest.
func Default() Manifest {
	data, err := defaults.ReadFile("defaults/packages.toml")
	if err != nil {
		panic(fmt.Sprintf("embedded manifest missing: %v", err))
	}
	m, err := parse(data, ".toml")
	if err != nil {
		panic(fmt.Sprintf("embedded manifest invalid: %v", err))
	}
	return m
}

// Load reads a manifest file. The format follows the extension: .toml,
// .yaml or .yml. An empty path yields Default.
func Load(path string) (Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	m, err := parse(data, filepath.Ext(path))
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

func parse(data []byte, ext string) (Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return Manifest{}, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, err
		}
	default:
		return Manifest{}, fmt.Errorf("unsupported manifest format %q", ext)
	}

	out := m.Packages[:0]
	for _, p := range m.Packages {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	m.Packages = out
	return m, nil
}

// MainScript returns the script at path, or the compiled-in one when path is
// empty.
func MainScript(path string) (string, error) {
	if path == "" {
		data, err := defaults.ReadFile("defaults/main.js")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read main script: %w", err)
	}
	return string(data), nil
}

// Data is the compiled-in data directory the main script reads from.
func Data() fs.FS {
	sub, err := fs.Sub(defaults, "defaults/data")
	if err != nil {
		panic(err)
	}
	return sub
}
