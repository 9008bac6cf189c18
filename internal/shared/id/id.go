// Package id provides centralized ID generation for the worker.
//
// Documents and models get prefixed ULIDs so ids sort by creation time and
// read well in logs and patches; host page sessions get prefixed ULIDs too.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DocumentID identifies a dashboard document
type DocumentID string

// ModelID identifies a model inside a document
type ModelID string

// SessionID identifies a connected host page
type SessionID string

const (
	DocumentPrefix = "doc"
	ModelPrefix    = "m"
	SessionPrefix  = "sess"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewDocumentID generates a new document ID
func NewDocumentID() DocumentID {
	return DocumentID(Default().GenerateWithPrefix(DocumentPrefix))
}

// NewModelID generates a new model ID
func NewModelID() ModelID {
	return ModelID(Default().GenerateWithPrefix(ModelPrefix))
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

func (id DocumentID) String() string { return string(id) }
func (id ModelID) String() string    { return string(id) }
func (id SessionID) String() string  { return string(id) }

// Parse parses a ULID string, stripping a type prefix if present.
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
