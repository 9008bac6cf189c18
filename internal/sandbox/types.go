package sandbox

import (
	"errors"
	"io/fs"
	"time"
)

// SetterJS tags changes that came from the page. Linked documents never echo
// them back.
const SetterJS = "js"

var (
	ErrClosed     = errors.New("runtime is closed")
	ErrBadResult  = errors.New("main script must evaluate to [docs_json, render_items, root_ids]")
	ErrNoLocation = errors.New("document has no location")
	ErrNoModule   = errors.New("module not installed")
)

// Config defines runtime configuration
type Config struct {
	Timeout      time.Duration // Per-call execution timeout, 0 disables
	DataDir      string        // Directory data.read resolves against
	Data         fs.FS         // Fallback for files missing from DataDir
	MaxCallStack int           // Maximum JS call stack depth
}

// DefaultConfig returns the production runtime settings.
func DefaultConfig() Config {
	return Config{
		Timeout:      2 * time.Minute,
		DataDir:      ".",
		MaxCallStack: 1024,
	}
}

// PatchFunc receives document patches bound for the page.
type PatchFunc func(patch any, buffers []any, msgID any)

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Log message
	Time    time.Time // Timestamp
}

// MainResult is what the main script evaluates to.
type MainResult struct {
	DocsJSON    any
	RenderItems any
	RootIDs     any
}
