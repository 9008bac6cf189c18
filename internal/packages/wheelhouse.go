package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"golang.org/x/mod/semver"
)

var ErrNotFound = errors.New("package not found")

// Wheelhouse is a local directory of package archives.
type Wheelhouse struct {
	dir string
}

// Candidate is one archive found in a wheelhouse.
type Candidate struct {
	Name    string
	Version string
	Path    string
}

// NewWheelhouse returns a wheelhouse rooted at dir. An empty dir yields a
// wheelhouse that finds nothing.
func NewWheelhouse(dir string) *Wheelhouse {
	return &Wheelhouse{dir: dir}
}

// Scan lists every archive under the wheelhouse.
func (w *Wheelhouse) Scan(ctx context.Context) ([]Candidate, error) {
	if w.dir == "" {
		return nil, nil
	}

	var (
		out  []Candidate
		mu   sync.Mutex
		conf = fastwalk.Config{Follow: false}
	)
	err := fastwalk.Walk(&conf, w.dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() || archiveSuffix(d.Name()) == "" {
			return nil
		}
		name, version := splitArchiveName(d.Name())
		// fastwalk calls back from several goroutines
		mu.Lock()
		out = append(out, Candidate{Name: name, Version: version, Path: p})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan wheelhouse %s: %w", w.dir, err)
	}
	return out, nil
}

// Find returns the highest version archive satisfying spec.
func (w *Wheelhouse) Find(ctx context.Context, spec Spec) (Candidate, error) {
	candidates, err := w.Scan(ctx)
	if err != nil {
		return Candidate{}, err
	}

	var best Candidate
	found := false
	for _, c := range candidates {
		if normalize(c.Name) != normalize(spec.Name) || !spec.Satisfies(c.Version) {
			continue
		}
		if !found || newer(c.Version, best.Version) {
			best, found = c, true
		}
	}
	if !found {
		return Candidate{}, fmt.Errorf("%w: %s", ErrNotFound, spec.Raw)
	}
	best.Path = filepath.Clean(best.Path)
	return best, nil
}

func newer(a, b string) bool {
	va, vb := canonical(a), canonical(b)
	switch {
	case semver.IsValid(va) && semver.IsValid(vb):
		return semver.Compare(va, vb) > 0
	case semver.IsValid(va):
		return true
	}
	return false
}

// normalize folds names the way package indexes do: case-insensitive, with
// "-", "_" and "." equivalent.
func normalize(name string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToLower(name))
}
