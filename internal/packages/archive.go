package packages

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// moduleGlob selects module sources inside an archive.
const moduleGlob = "**/*.js"

// MaxModuleSize bounds one module source file.
const MaxModuleSize = 8 << 20

var ErrNoModules = errors.New("archive contains no modules")

// Extract reads every module in an archive. Keys are module names: the
// archive path without ".js", with "x/index" also registered as "x".
func Extract(data []byte) (map[string]string, error) {
	mime := mimetype.Detect(data)

	var (
		files map[string]string
		err   error
	)
	switch {
	case isKind(mime, "application/zip"):
		files, err = readZip(data)
	case isKind(mime, "application/gzip"):
		var zr *gzip.Reader
		zr, err = gzip.NewReader(bytes.NewReader(data))
		if err == nil {
			defer zr.Close()
			files, err = readTar(zr)
		}
	case isKind(mime, "application/zstd"):
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(bytes.NewReader(data))
		if err == nil {
			defer zr.Close()
			files, err = readTar(zr)
		}
	case isKind(mime, "application/x-tar"):
		files, err = readTar(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported archive type %s", mime.String())
	}
	if err != nil {
		return nil, err
	}

	modules := make(map[string]string, len(files))
	for name, src := range files {
		mod := strings.TrimSuffix(name, ".js")
		modules[mod] = src
		if base := path.Base(mod); base == "index" && path.Dir(mod) != "." {
			modules[path.Dir(mod)] = src
		}
	}
	if len(modules) == 0 {
		return nil, ErrNoModules
	}
	return modules, nil
}

// isKind matches the detected type or any type it derives from, so zip
// containers detected as a more specific format still read as zip.
func isKind(m *mimetype.MIME, kind string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(kind) {
			return true
		}
	}
	return false
}

func wanted(name string) (string, bool) {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	if strings.HasPrefix(name, "..") || path.IsAbs(name) {
		return "", false
	}
	// Metadata directories never hold modules.
	if strings.Contains(name, ".dist-info/") || strings.HasPrefix(name, "__MACOSX/") {
		return "", false
	}
	ok, err := doublestar.Match(moduleGlob, name)
	return name, ok && err == nil
}

func readZip(data []byte) (map[string]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	files := map[string]string{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok := wanted(f.Name)
		if !ok {
			continue
		}
		if f.UncompressedSize64 > MaxModuleSize {
			return nil, fmt.Errorf("module %s exceeds %d bytes", name, MaxModuleSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		src, err := io.ReadAll(io.LimitReader(rc, MaxModuleSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files[name] = string(src)
	}
	return files, nil
}

func readTar(r io.Reader) (map[string]string, error) {
	tr := tar.NewReader(r)
	files := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := wanted(hdr.Name)
		if !ok {
			continue
		}
		if hdr.Size > MaxModuleSize {
			return nil, fmt.Errorf("module %s exceeds %d bytes", name, MaxModuleSize)
		}
		src, err := io.ReadAll(io.LimitReader(tr, MaxModuleSize))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files[name] = string(src)
	}
}
