package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxFileSize bounds files loaded into memory.
const MaxFileSize = 64 << 20

// Load reads a delimited file. The first record is the header.
func Load(path string, delimiter rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return read(f, path, delimiter)
}

// LoadFS is Load for a file inside fsys.
func LoadFS(fsys fs.FS, name string, delimiter rune) (*Table, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return read(f, name, delimiter)
}

func read(r io.Reader, name string, delimiter rune) (*Table, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("dataset %s exceeds %d bytes", name, MaxFileSize)
	}
	return Parse(data, delimiter)
}

// Parse decodes delimited bytes of any detectable charset.
func Parse(data []byte, delimiter rune) (*Table, error) {
	r := csv.NewReader(utf8Reader(data))
	if delimiter != 0 {
		r.Comma = delimiter
	}
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse dataset: no header")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return NewTable(header, records[1:])
}

// DetectCharset returns the lower-cased charset name of data, utf-8 when
// detection fails.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func utf8Reader(data []byte) io.Reader {
	label := DetectCharset(data)
	if label == "utf-8" || (label == "iso-8859-1" && isASCII(data)) {
		return bytes.NewReader(data)
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return bytes.NewReader(data)
	}
	return r
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
