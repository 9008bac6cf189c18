package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	m := Default()
	assert.Equal(t, []string{"panel", "hvplot", "dateutil"}, m.Packages)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "toml",
			file:    "packages.toml",
			content: "packages = [\"panel\", \" plotkit>=0.3 \", \"\"]\n",
			want:    []string{"panel", "plotkit>=0.3"},
		},
		{
			name:    "yaml",
			file:    "packages.yaml",
			content: "packages:\n  - https://cdn.example.com/plotkit-0.3.1-py3-none-any.whl\n  - dateutil\n",
			want:    []string{"https://cdn.example.com/plotkit-0.3.1-py3-none-any.whl", "dateutil"},
		},
		{
			name:    "yml",
			file:    "packages.yml",
			content: "packages: [panel]\n",
			want:    []string{"panel"},
		},
		{
			name:    "unknown extension",
			file:    "packages.json",
			content: "{}",
			wantErr: true,
		},
		{
			name:    "bad toml",
			file:    "broken.toml",
			content: "packages = [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			m, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Packages)
		})
	}
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), m)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestMainScript(t *testing.T) {
	src, err := MainScript("")
	require.NoError(t, err)
	assert.True(t, strings.Contains(src, "pn.write()"))

	path := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(path, []byte("[1, 2, 3]"), 0o644))
	src, err = MainScript(path)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", src)
}

func TestData(t *testing.T) {
	data, err := fs.ReadFile(Data(), "orders.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "date|amount|"))
}
