package document

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// EventKind names a change event.
type EventKind string

const (
	ModelChanged EventKind = "ModelChanged"
	RootAdded    EventKind = "RootAdded"
	RootRemoved  EventKind = "RootRemoved"
	TitleChanged EventKind = "TitleChanged"
)

var (
	ErrUnknownEvent = errors.New("unknown patch event")
	ErrUnknownModel = errors.New("unknown model")
)

// Event is one document change.
type Event struct {
	Kind  EventKind  `json:"kind"`
	ID    string     `json:"id,omitempty"`
	Attr  string     `json:"attr,omitempty"`
	New   any        `json:"new,omitempty"`
	Title string     `json:"title,omitempty"`
	Model *ModelJSON `json:"model,omitempty"`

	// References carries models introduced by a RootAdded event.
	References []ModelJSON `json:"references,omitempty"`
}

// Patch is an ordered list of events.
type Patch struct {
	Events []Event `json:"events"`
}

// ParsePatch decodes patch JSON text.
func ParsePatch(text string) (Patch, error) {
	var p Patch
	if err := sonic.UnmarshalString(text, &p); err != nil {
		return Patch{}, fmt.Errorf("parse patch: %w", err)
	}
	return p, nil
}

// Map returns the patch as plain JSON values, the form posted to the page.
func (p Patch) Map() (map[string]any, error) {
	data, err := sonic.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
