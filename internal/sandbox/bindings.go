package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dashworker/internal/dataset"
	"github.com/GriffinCanCode/dashworker/internal/document"
)

const isoDate = "2006-01-02"

// newDocObject builds the global doc object scripts use to build the
// document.
func (r *Runtime) newDocObject() *goja.Object {
	o := r.vm.NewObject()
	set := func(name string, v any) { _ = o.Set(name, v) }

	set("model", func(typ string, attrs goja.Value) *goja.Object {
		m, _ := exportValue(attrs).(map[string]any)
		return r.handle(document.NewModel(typ, m))
	})
	set("get", func(modelID string) goja.Value {
		if h, ok := r.handles[modelID]; ok {
			return h
		}
		return goja.Null()
	})
	set("addRoot", func(h goja.Value) error {
		m, err := r.unwrap(h)
		if err != nil {
			return err
		}
		r.doc.AddRoot(m, document.SetterScript)
		return nil
	})
	set("removeRoot", func(h goja.Value) error {
		m, err := r.unwrap(h)
		if err != nil {
			return err
		}
		return r.doc.RemoveRoot(m.ID.String(), document.SetterScript)
	})
	set("setTitle", func(title string) {
		r.doc.SetTitle(title, document.SetterScript)
	})
	set("title", r.doc.Title)
	set("enableLocation", func() *goja.Object {
		return r.locationObject(r.doc.EnableLocation())
	})
	set("location", func() goja.Value {
		if loc := r.doc.Location(); loc != nil {
			return r.locationObject(loc)
		}
		return goja.Null()
	})
	set("write", func() ([]any, error) {
		docsJSON, err := r.doc.DocsJSON()
		if err != nil {
			return nil, err
		}
		return []any{docsJSON, r.doc.RenderItems(), r.doc.RootIDs()}, nil
	})
	return o
}

// handle returns the JS handle of m, creating it on first use.
func (r *Runtime) handle(m *document.Model) *goja.Object {
	key := m.ID.String()
	if h, ok := r.handles[key]; ok {
		return h
	}

	h := r.vm.NewObject()
	set := func(name string, v any) { _ = h.Set(name, v) }

	set("id", key)
	set("type", m.Type)
	set("get", func(attr string) any {
		return m.Attributes[attr]
	})
	set("set", func(attr string, v goja.Value) error {
		return r.setAttr(m, attr, exportValue(v))
	})
	set("add", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			child, err := r.unwrap(arg)
			if err != nil {
				panic(r.vm.NewGoError(err))
			}
			m.Add(child)
		}
		return h
	})
	set("watch", func(attr string, fn goja.Value) error {
		cb, ok := goja.AssertFunction(fn)
		if !ok {
			return fmt.Errorf("watch %s.%s: callback is not a function", key, attr)
		}
		r.watch(key, attr, cb)
		return nil
	})

	r.handles[key] = h
	r.models[key] = m
	return h
}

func (r *Runtime) unwrap(v goja.Value) (*document.Model, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, errors.New("expected a model, got nothing")
	}
	obj := v.ToObject(r.vm)
	key := obj.Get("id")
	if key == nil {
		return nil, fmt.Errorf("expected a model, got %s", v.String())
	}
	m, ok := r.models[key.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrUnknownModel, key.String())
	}
	return m, nil
}

// setAttr changes an attribute. Attached models go through the document so
// the change is broadcast.
func (r *Runtime) setAttr(m *document.Model, attr string, value any) error {
	key := m.ID.String()
	if _, ok := r.doc.Model(key); ok {
		return r.doc.Set(key, attr, value, document.SetterScript)
	}
	m.Attributes[attr] = value
	return nil
}

// watch calls fn with the new value whenever attr of the model changes.
func (r *Runtime) watch(modelID, attr string, fn goja.Callable) {
	r.doc.OnChange(func(ev document.Event, setter string) {
		if ev.Kind != document.ModelChanged || ev.ID != modelID || ev.Attr != attr {
			return
		}
		if _, err := fn(goja.Undefined(), r.vm.ToValue(ev.New)); err != nil {
			r.logger.Warn("Watcher failed",
				zap.String("model", modelID),
				zap.String("attr", attr),
				zap.String("setter", setter),
				zap.Error(scriptError(err)),
			)
		}
	})
}

func (r *Runtime) locationObject(loc *document.Location) *goja.Object {
	o := r.vm.NewObject()
	_ = o.Set("get", func(key string) any {
		v, _ := loc.Get(key)
		return v
	})
	_ = o.Set("set", func(key string, v goja.Value) error {
		return loc.Set(key, exportValue(v))
	})
	_ = o.Set("readOnly", loc.ReadOnly)
	_ = o.Set("snapshot", loc.Snapshot)
	return o
}

// newDataObject builds the global data object: tabular file access and date
// helpers.
func (r *Runtime) newDataObject() *goja.Object {
	o := r.vm.NewObject()
	_ = o.Set("read", func(call goja.FunctionCall) goja.Value {
		delimiter := ""
		if arg := call.Argument(1); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			delimiter = arg.String()
		}
		t, err := r.readTable(call.Argument(0).String(), delimiter)
		if err != nil {
			panic(r.vm.NewGoError(err))
		}
		return r.tableObject(t)
	})
	_ = o.Set("shiftMonths", func(iso string, n int) (string, error) {
		if len(iso) > len(isoDate) {
			iso = iso[:len(isoDate)]
		}
		t, err := time.Parse(isoDate, iso)
		if err != nil {
			return "", err
		}
		return dataset.ShiftMonths(t, n).Format(isoDate), nil
	})
	return o
}

// readTable loads name from the data directory, falling back to the
// configured data filesystem.
func (r *Runtime) readTable(name, delimiter string) (*dataset.Table, error) {
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "./"))
	if !fs.ValidPath(clean) {
		return nil, fmt.Errorf("data path %q is outside the data directory", name)
	}

	delim := ','
	if delimiter != "" {
		delim, _ = utf8.DecodeRuneInString(delimiter)
	}

	if r.config.DataDir != "" {
		t, err := dataset.LoadFS(os.DirFS(r.config.DataDir), clean, delim)
		if err == nil || r.config.Data == nil || !errors.Is(err, fs.ErrNotExist) {
			return t, err
		}
	}
	if r.config.Data != nil {
		return dataset.LoadFS(r.config.Data, clean, delim)
	}
	return nil, fmt.Errorf("open dataset %s: %w", name, fs.ErrNotExist)
}

func (r *Runtime) tableObject(t *dataset.Table) *goja.Object {
	o := r.vm.NewObject()
	set := func(name string, v any) { _ = o.Set(name, v) }
	derived := func(t *dataset.Table, err error) (*goja.Object, error) {
		if err != nil {
			return nil, err
		}
		return r.tableObject(t), nil
	}

	set("length", t.Len())
	set("columns", t.Columns)
	set("column", t.Column)
	set("floats", t.Floats)
	set("records", t.Records)
	set("summarize", t.Summarize)
	set("filter", func(col, op string, value goja.Value) (*goja.Object, error) {
		return derived(t.Filter(col, op, value.String()))
	})
	set("sortBy", func(col string) (*goja.Object, error) {
		return derived(t.SortBy(col))
	})
	set("dateRange", func(col string) ([]any, error) {
		lo, hi, err := t.DateRange(col)
		if err != nil {
			return nil, err
		}
		return []any{lo.Format(isoDate), hi.Format(isoDate)}, nil
	})
	set("series", func(x, y string, by goja.Value) (map[string][]dataset.Point, error) {
		group := ""
		if by != nil && !goja.IsUndefined(by) && !goja.IsNull(by) {
			group = by.String()
		}
		return t.Series(x, y, group)
	})
	return o
}
