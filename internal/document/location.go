package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrReadOnly     = errors.New("location is read-only")
	ErrUnknownField = errors.New("unknown location field")
)

// LocationFields are the recognized location keys.
var LocationFields = []string{"href", "hostname", "pathname", "protocol", "port", "search", "hash", "reload"}

// Location mirrors the host page URL.
type Location struct {
	mu       sync.RWMutex
	readonly bool
	values   map[string]any
}

// NewLocation returns a read-only location with empty fields.
func NewLocation() *Location {
	values := make(map[string]any, len(LocationFields))
	for _, f := range LocationFields {
		values[f] = ""
	}
	values["reload"] = false
	return &Location{readonly: true, values: values}
}

// Recognized reports whether key is a location field.
func (l *Location) Recognized(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.values[key]
	return ok
}

// ReadOnly reports the current access mode.
func (l *Location) ReadOnly() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.readonly
}

// Get returns a field value.
func (l *Location) Get(key string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.values[key]
	return v, ok
}

// Set writes one field.
func (l *Location) Set(key string, value any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.values[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	if l.readonly {
		return ErrReadOnly
	}
	l.values[key] = value
	return nil
}

// Update writes the recognized subset of values and returns the keys it
// applied, sorted. Unrecognized keys are dropped.
func (l *Location) Update(values map[string]any) ([]string, error) {
	var applied []string
	for k, v := range values {
		if !l.Recognized(k) {
			continue
		}
		if err := l.Set(k, v); err != nil {
			return applied, err
		}
		applied = append(applied, k)
	}
	sort.Strings(applied)
	return applied, nil
}

// EditReadonly lifts the read-only flag while fn runs. The previous mode is
// restored on every exit path, panics included.
func (l *Location) EditReadonly(fn func() error) error {
	l.mu.Lock()
	prev := l.readonly
	l.readonly = false
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.readonly = prev
		l.mu.Unlock()
	}()

	return fn()
}

// Snapshot copies all field values.
func (l *Location) Snapshot() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]any, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}
