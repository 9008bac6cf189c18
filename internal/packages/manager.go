package packages

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dashworker/internal/infrastructure/logging"
)

//go:embed builtin/*.js
var builtinFS embed.FS

// BuiltinVersion is the version reported for builtin packages.
const BuiltinVersion = "1.0.0"

// Origin says where an installed package came from.
type Origin string

const (
	OriginBuiltin    Origin = "builtin"
	OriginWheelhouse Origin = "wheelhouse"
	OriginURL        Origin = "url"
)

// Package is an installed package.
type Package struct {
	Name    string
	Version string
	Origin  Origin
	Modules []string

	// SHA256 of the archive; empty for builtin packages.
	SHA256 string
}

// Manager resolves, downloads and registers packages for one runtime.
type Manager struct {
	fetcher    *Fetcher
	wheelhouse *Wheelhouse
	builtin    map[string]string
	logger     *logging.Logger

	mu        sync.RWMutex
	installed map[string]*Package
	modules   map[string]string
}

// NewManager creates a package manager. A nil fetcher disables URL specs.
func NewManager(fetcher *Fetcher, wheelhouse *Wheelhouse, logger *logging.Logger) *Manager {
	if wheelhouse == nil {
		wheelhouse = NewWheelhouse("")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		fetcher:    fetcher,
		wheelhouse: wheelhouse,
		builtin:    loadBuiltin(),
		logger:     logger.Named("packages"),
		installed:  map[string]*Package{},
		modules:    map[string]string{},
	}
}

func loadBuiltin() map[string]string {
	out := map[string]string{}
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return out
	}
	for _, e := range entries {
		src, err := builtinFS.ReadFile(path.Join("builtin", e.Name()))
		if err != nil {
			continue
		}
		out[strings.TrimSuffix(e.Name(), ".js")] = string(src)
	}
	return out
}

// Builtin lists the names of builtin packages.
func (m *Manager) Builtin() []string {
	names := make([]string, 0, len(m.builtin))
	for n := range m.builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Install resolves raw and registers its modules. Installing a package that
// is already installed is a no-op.
func (m *Manager) Install(ctx context.Context, raw string) (*Package, error) {
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, err
	}

	if pkg, ok := m.lookup(spec.Name); ok && spec.Satisfies(pkg.Version) {
		m.logger.Debug("Package already installed", zap.String("package", pkg.Name))
		return pkg, nil
	}

	var (
		pkg     *Package
		modules map[string]string
	)
	switch {
	case spec.IsURL():
		pkg, modules, err = m.fromURL(ctx, spec, spec.URL)
	default:
		pkg, modules, err = m.resolve(ctx, spec)
	}
	if err != nil {
		return nil, err
	}

	m.register(pkg, modules)
	m.logger.Info("Package installed",
		zap.String("package", pkg.Name),
		zap.String("version", pkg.Version),
		zap.String("origin", string(pkg.Origin)),
		zap.Int("modules", len(pkg.Modules)),
		zap.String("sha256", pkg.SHA256),
	)
	return pkg, nil
}

func (m *Manager) resolve(ctx context.Context, spec Spec) (*Package, map[string]string, error) {
	if src, ok := m.builtin[normalizeBuiltin(spec.Name)]; ok && spec.Satisfies(BuiltinVersion) {
		name := normalizeBuiltin(spec.Name)
		return &Package{Name: name, Version: BuiltinVersion, Origin: OriginBuiltin},
			map[string]string{name: src}, nil
	}

	cand, err := m.wheelhouse.Find(ctx, spec)
	if err != nil {
		return nil, nil, err
	}
	pkg, modules, err := m.fromURL(ctx, spec, &url.URL{Scheme: "file", Path: cand.Path})
	if err != nil {
		return nil, nil, err
	}
	pkg.Origin = OriginWheelhouse
	return pkg, modules, nil
}

func (m *Manager) fromURL(ctx context.Context, spec Spec, u *url.URL) (*Package, map[string]string, error) {
	if m.fetcher == nil && u.Scheme != "file" {
		return nil, nil, fmt.Errorf("remote packages disabled: %s", spec.Raw)
	}
	fetcher := m.fetcher
	if fetcher == nil {
		fetcher = &Fetcher{}
	}
	data, err := fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	if spec.Digest != nil {
		if err := spec.Digest.Verify(data); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", spec.Raw, err)
		}
	}
	sum, _ := SHA256.Sum(data)
	modules, err := Extract(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", spec.Raw, err)
	}
	name, version := splitArchiveName(path.Base(u.Path))
	return &Package{Name: name, Version: version, Origin: OriginURL, SHA256: sum}, modules, nil
}

func (m *Manager) register(pkg *Package, modules map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, src := range modules {
		m.modules[name] = src
		pkg.Modules = append(pkg.Modules, name)
	}
	sort.Strings(pkg.Modules)
	m.installed[normalize(pkg.Name)] = pkg
}

func (m *Manager) lookup(name string) (*Package, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pkg, ok := m.installed[normalize(name)]
	return pkg, ok
}

// Module returns the source of an installed module.
func (m *Manager) Module(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.modules[name]
	return src, ok
}

// Installed lists installed packages by name.
func (m *Manager) Installed() []*Package {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Package, 0, len(m.installed))
	for _, p := range m.installed {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalizeBuiltin(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}
