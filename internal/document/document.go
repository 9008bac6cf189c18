package document

import (
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/dashworker/internal/shared/id"
)

// SetterScript tags changes made by the worker-side script.
const SetterScript = "script"

// Listener receives every applied event with the setter that caused it.
type Listener func(ev Event, setter string)

// Document is the serializable dashboard state.
type Document struct {
	mu       sync.RWMutex
	id       id.DocumentID
	title    string
	roots    []*Model
	models   map[id.ModelID]*Model
	location *Location
	version  int

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

// New creates an empty document.
func New() *Document {
	return &Document{
		id:        id.NewDocumentID(),
		models:    map[id.ModelID]*Model{},
		listeners: map[int]Listener{},
	}
}

// ID returns the document id.
func (d *Document) ID() id.DocumentID { return d.id }

// Title returns the document title.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title
}

// Version counts applied events.
func (d *Document) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// SetTitle changes the title.
func (d *Document) SetTitle(title, setter string) {
	d.mu.Lock()
	d.title = title
	d.version++
	d.mu.Unlock()
	d.emit(Event{Kind: TitleChanged, Title: title}, setter)
}

// AddRoot registers m and everything it references as a root.
func (d *Document) AddRoot(m *Model, setter string) {
	d.mu.Lock()
	refs := d.index(m)
	d.roots = append(d.roots, m)
	d.version++
	d.mu.Unlock()

	root := m.JSON()
	d.emit(Event{Kind: RootAdded, Model: &root, References: refs}, setter)
}

// RemoveRoot drops a root by id. Referenced models stay addressable.
func (d *Document) RemoveRoot(modelID string, setter string) error {
	d.mu.Lock()
	idx := -1
	for i, r := range d.roots {
		if r.ID.String() == modelID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	d.roots = append(d.roots[:idx], d.roots[idx+1:]...)
	d.version++
	d.mu.Unlock()

	d.emit(Event{Kind: RootRemoved, ID: modelID}, setter)
	return nil
}

// Model looks up a model by id.
func (d *Document) Model(modelID string) (*Model, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.models[id.ModelID(modelID)]
	return m, ok
}

// Set changes one attribute of a model.
func (d *Document) Set(modelID, attr string, value any, setter string) error {
	d.mu.Lock()
	m, ok := d.models[id.ModelID(modelID)]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	m.Attributes[attr] = value
	d.version++
	d.mu.Unlock()

	d.emit(Event{Kind: ModelChanged, ID: modelID, Attr: attr, New: value}, setter)
	return nil
}

// Location returns the location object, or nil when the document has none.
func (d *Document) Location() *Location {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.location
}

// EnableLocation attaches a location object if missing and returns it.
func (d *Document) EnableLocation() *Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.location == nil {
		d.location = NewLocation()
	}
	return d.location
}

// ApplyPatch checks every event against the document, then applies them in
// order. A patch with a bad event changes nothing.
func (d *Document) ApplyPatch(p Patch, setter string) error {
	if err := d.check(p); err != nil {
		return err
	}
	for i, ev := range p.Events {
		if err := d.apply(ev, setter); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// check walks the patch against a copy of the model and root sets, so later
// events may refer to models added earlier in the same patch.
func (d *Document) check(p Patch) error {
	d.mu.RLock()
	models := make(map[string]bool, len(d.models))
	for mid := range d.models {
		models[string(mid)] = true
	}
	roots := make(map[string]bool, len(d.roots))
	for _, r := range d.roots {
		roots[r.ID.String()] = true
	}
	d.mu.RUnlock()

	for i, ev := range p.Events {
		var err error
		switch ev.Kind {
		case ModelChanged:
			if !models[ev.ID] {
				err = fmt.Errorf("%w: %s", ErrUnknownModel, ev.ID)
			}
		case TitleChanged:
		case RootRemoved:
			if !roots[ev.ID] {
				err = fmt.Errorf("%w: %s", ErrUnknownModel, ev.ID)
			}
			delete(roots, ev.ID)
		case RootAdded:
			if ev.Model == nil {
				err = fmt.Errorf("%w: RootAdded without model", ErrUnknownEvent)
				break
			}
			roots[ev.Model.ID] = true
			reachable(*ev.Model, ev.References, models)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
		}
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// reachable marks root and the references its children lead to, the models
// rebuild will index.
func reachable(root ModelJSON, refs []ModelJSON, into map[string]bool) {
	byID := make(map[string]ModelJSON, len(refs))
	for _, r := range refs {
		byID[r.ID] = r
	}
	seen := map[string]bool{}
	queue := []ModelJSON{root}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		into[j.ID] = true
		for _, cid := range j.Children {
			if cj, ok := byID[cid]; ok {
				queue = append(queue, cj)
			}
		}
	}
}

// ApplyJSONPatch parses and applies patch JSON text.
func (d *Document) ApplyJSONPatch(text, setter string) error {
	p, err := ParsePatch(text)
	if err != nil {
		return err
	}
	return d.ApplyPatch(p, setter)
}

func (d *Document) apply(ev Event, setter string) error {
	switch ev.Kind {
	case ModelChanged:
		return d.Set(ev.ID, ev.Attr, ev.New, setter)
	case TitleChanged:
		d.SetTitle(ev.Title, setter)
		return nil
	case RootRemoved:
		return d.RemoveRoot(ev.ID, setter)
	case RootAdded:
		if ev.Model == nil {
			return fmt.Errorf("%w: RootAdded without model", ErrUnknownEvent)
		}
		d.AddRoot(d.rebuild(*ev.Model, ev.References), setter)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}

// rebuild turns wire models back into a model graph.
func (d *Document) rebuild(root ModelJSON, refs []ModelJSON) *Model {
	byID := map[string]ModelJSON{root.ID: root}
	for _, r := range refs {
		byID[r.ID] = r
	}
	built := map[string]*Model{}
	var build func(ModelJSON) *Model
	build = func(j ModelJSON) *Model {
		if m, ok := built[j.ID]; ok {
			return m
		}
		m := &Model{ID: id.ModelID(j.ID), Type: j.Type, Attributes: j.Attributes}
		if m.Attributes == nil {
			m.Attributes = map[string]any{}
		}
		built[j.ID] = m
		for _, cid := range j.Children {
			if cj, ok := byID[cid]; ok {
				m.Children = append(m.Children, build(cj))
			} else if existing, ok := d.Model(cid); ok {
				m.Children = append(m.Children, existing)
			}
		}
		return m
	}
	return build(root)
}

// index registers m's graph. Caller holds mu. Returns the newly indexed
// models other than m itself.
func (d *Document) index(m *Model) []ModelJSON {
	var refs []ModelJSON
	m.walk(map[id.ModelID]bool{}, func(x *Model) {
		if _, ok := d.models[x.ID]; !ok && x != m {
			refs = append(refs, x.JSON())
		}
		d.models[x.ID] = x
	})
	return refs
}

// OnChange registers l and returns a function that removes it.
func (d *Document) OnChange(l Listener) (remove func()) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	key := d.nextID
	d.nextID++
	d.listeners[key] = l
	return func() {
		d.listenerMu.Lock()
		defer d.listenerMu.Unlock()
		delete(d.listeners, key)
	}
}

func (d *Document) emit(ev Event, setter string) {
	d.listenerMu.RLock()
	ls := make([]Listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		ls = append(ls, l)
	}
	d.listenerMu.RUnlock()

	for _, l := range ls {
		l(ev, setter)
	}
}

// Link forwards every change not made by skipSetter to send as a
// single-event patch.
func (d *Document) Link(skipSetter string, send func(Patch)) (unlink func()) {
	return d.OnChange(func(ev Event, setter string) {
		if setter == skipSetter {
			return
		}
		send(Patch{Events: []Event{ev}})
	})
}

// RootIDs lists root model ids in order.
func (d *Document) RootIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.roots))
	for _, r := range d.roots {
		out = append(out, r.ID.String())
	}
	return out
}

type docJSON struct {
	Title   string    `json:"title"`
	Roots   rootsJSON `json:"roots"`
	Version string    `json:"version"`
}

type rootsJSON struct {
	RootIDs    []string    `json:"root_ids"`
	References []ModelJSON `json:"references"`
}

// DocsJSON serializes the document keyed by its id, as JSON text.
func (d *Document) DocsJSON() (string, error) {
	d.mu.RLock()
	seen := map[id.ModelID]bool{}
	refs := []ModelJSON{}
	rootIDs := make([]string, 0, len(d.roots))
	for _, r := range d.roots {
		rootIDs = append(rootIDs, r.ID.String())
		r.walk(seen, func(m *Model) { refs = append(refs, m.JSON()) })
	}
	doc := docJSON{
		Title:   d.title,
		Roots:   rootsJSON{RootIDs: rootIDs, References: refs},
		Version: fmt.Sprintf("%d", d.version),
	}
	d.mu.RUnlock()

	return sonic.MarshalString(map[string]docJSON{d.id.String(): doc})
}

// RenderItems describes where each root is mounted on the page. Elements are
// named after the root ids.
func (d *Document) RenderItems() []map[string]any {
	roots := map[string]any{}
	ids := d.RootIDs()
	for _, rid := range ids {
		roots[rid] = "el-" + rid
	}
	rootIDs := make([]any, len(ids))
	for i, rid := range ids {
		rootIDs[i] = rid
	}
	return []map[string]any{{
		"docid":    d.id.String(),
		"roots":    roots,
		"root_ids": rootIDs,
	}}
}
