package document

import (
	"github.com/GriffinCanCode/dashworker/internal/shared/id"
)

// Model is one node of the document graph.
type Model struct {
	ID         id.ModelID
	Type       string
	Attributes map[string]any
	Children   []*Model
}

// ModelJSON is the wire form of a model. Children are referenced by id.
type ModelJSON struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	Children   []string       `json:"children,omitempty"`
}

// NewModel creates a model with a fresh id.
func NewModel(typ string, attrs map[string]any) *Model {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Model{ID: id.NewModelID(), Type: typ, Attributes: attrs}
}

// Add appends child models.
func (m *Model) Add(children ...*Model) {
	m.Children = append(m.Children, children...)
}

// JSON returns the wire form of m alone.
func (m *Model) JSON() ModelJSON {
	attrs := make(map[string]any, len(m.Attributes))
	for k, v := range m.Attributes {
		attrs[k] = v
	}
	out := ModelJSON{ID: m.ID.String(), Type: m.Type, Attributes: attrs}
	for _, c := range m.Children {
		out.Children = append(out.Children, c.ID.String())
	}
	return out
}

// walk visits m and every model reachable from it once.
func (m *Model) walk(seen map[id.ModelID]bool, fn func(*Model)) {
	if seen[m.ID] {
		return
	}
	seen[m.ID] = true
	fn(m)
	for _, c := range m.Children {
		c.walk(seen, fn)
	}
}
