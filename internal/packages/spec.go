package packages

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// archiveSuffixes are recognized package archive extensions, longest first.
var archiveSuffixes = []string{".tar.gz", ".tar.zst", ".tgz", ".whl", ".zip"}

var requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.\-]*)\s*(==|>=|<=|!=|>|<)?\s*([0-9A-Za-z.+\-]*)$`)

// Spec is a parsed package spec.
type Spec struct {
	Raw string

	// URL is set for archive specs. Digest is its optional "#sha256=..."
	// fragment.
	URL    *url.URL
	Digest *Digest

	// Requirement parts, set for name specs.
	Name    string
	Op      string
	Version string
}

// IsURL reports whether the spec points at an archive.
func (s Spec) IsURL() bool { return s.URL != nil }

// ParseSpec parses a raw package spec.
func ParseSpec(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, fmt.Errorf("empty package spec")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Spec{}, fmt.Errorf("package spec %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http", "https", "file":
		default:
			return Spec{}, fmt.Errorf("package spec %q: unsupported scheme %q", raw, u.Scheme)
		}
		digest, err := ParseDigest(u.Fragment)
		if err != nil {
			return Spec{}, fmt.Errorf("package spec %q: %w", raw, err)
		}
		name, version := splitArchiveName(path.Base(u.Path))
		return Spec{Raw: raw, URL: u, Digest: digest, Name: name, Version: version}, nil
	}

	m := requirementRe.FindStringSubmatch(raw)
	if m == nil {
		return Spec{}, fmt.Errorf("package spec %q: not a requirement", raw)
	}
	s := Spec{Raw: raw, Name: m[1], Op: m[2], Version: m[3]}
	if (s.Op == "") != (s.Version == "") {
		return Spec{}, fmt.Errorf("package spec %q: incomplete version specifier", raw)
	}
	if s.Version != "" && !semver.IsValid(canonical(s.Version)) {
		return Spec{}, fmt.Errorf("package spec %q: bad version %q", raw, s.Version)
	}
	return s, nil
}

// Name derives the display name of a spec: for archive specs the file name up
// to its first dash, otherwise the spec verbatim. A URL's query and fragment
// are not part of the file name.
func Name(raw string) string {
	base := raw
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			base = path.Base(u.Path)
		}
	} else if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if suffix := archiveSuffix(base); suffix != "" {
		name, _, _ := strings.Cut(base, "-")
		return strings.TrimSuffix(name, suffix)
	}
	return raw
}

// Satisfies reports whether version meets the spec's specifier. Specs with no
// specifier accept anything.
func (s Spec) Satisfies(version string) bool {
	if s.Op == "" {
		return true
	}
	v := canonical(version)
	if !semver.IsValid(v) {
		return false
	}
	c := semver.Compare(v, canonical(s.Version))
	switch s.Op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	}
	return false
}

func archiveSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s) {
			return s
		}
	}
	return ""
}

// splitArchiveName splits "foo-1.2.3-py3-none-any.whl" into ("foo", "1.2.3").
func splitArchiveName(base string) (string, string) {
	base = base[:len(base)-len(archiveSuffix(base))]
	parts := strings.Split(base, "-")
	if len(parts) < 2 {
		return base, ""
	}
	return parts[0], parts[1]
}

// canonical turns "1.2.3" into the "v1.2.3" form semver expects.
func canonical(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
