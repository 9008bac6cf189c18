package sandbox

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dashworker/internal/document"
	"github.com/GriffinCanCode/dashworker/internal/manifest"
)

func newRuntime(t *testing.T, packages ...string) *Runtime {
	t.Helper()
	config := DefaultConfig()
	config.Timeout = 5 * time.Second
	config.DataDir = ""
	config.Data = manifest.Data()

	r, err := New(config, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	for _, p := range packages {
		require.NoError(t, r.Install(context.Background(), p))
	}
	return r
}

type patchRecorder struct {
	mu      sync.Mutex
	patches []map[string]any
	msgIDs  []any
}

func (p *patchRecorder) record(patch any, buffers []any, msgID any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := patch.(map[string]any)
	p.patches = append(p.patches, m)
	p.msgIDs = append(p.msgIDs, msgID)
}

func (p *patchRecorder) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.patches)
}

func TestRuntimeExecution(t *testing.T) {
	r := newRuntime(t)

	tests := []struct {
		name   string
		script string
		want   any
	}{
		{name: "simple return", script: "42", want: int64(42)},
		{name: "string operations", script: "'hello'.toUpperCase()", want: "HELLO"},
		{name: "math operations", script: "Math.sqrt(16)", want: int64(4)},
		{name: "undefined", script: "var x = 1;", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Run(context.Background(), "test.js", tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuntimeConsole(t *testing.T) {
	r := newRuntime(t)

	_, err := r.Run(context.Background(), "test.js", "console.log('hello', 1); console.warn('careful')")
	require.NoError(t, err)

	entries := r.Console()
	require.Len(t, entries, 2)
	assert.Equal(t, "log", entries[0].Level)
	assert.Equal(t, "hello 1", entries[0].Message)
	assert.Equal(t, "warn", entries[1].Level)
}

func TestRuntimeGlobalsRemoved(t *testing.T) {
	r := newRuntime(t)

	got, err := r.Run(context.Background(), "test.js", "typeof process + ',' + typeof module")
	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined", got)
}

func TestScriptErrorText(t *testing.T) {
	r := newRuntime(t)

	_, err := r.Run(context.Background(), "main.js", "function f() {\n  throw new Error('boom');\n}\nf();")
	require.Error(t, err)

	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Error: boom", se.Message)
	assert.NotEmpty(t, se.Stack)

	lines := strings.Split(err.Error(), "\n")
	assert.Equal(t, "Error: boom", lines[len(lines)-2])
	assert.True(t, strings.HasPrefix(lines[0], "Traceback"))
}

func TestSyntaxError(t *testing.T) {
	r := newRuntime(t)

	_, err := r.Run(context.Background(), "main.js", "function (")
	assert.Error(t, err)
}

func TestRuntimeTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 50 * time.Millisecond
	r, err := New(config, nil, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Run(context.Background(), "loop.js", "for (;;) {}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InterruptedError")

	// The interrupt does not leak into the next call.
	got, err := r.Run(context.Background(), "ok.js", "1 + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestRuntimeContextCancel(t *testing.T) {
	r := newRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "loop.js", "while (true) {}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestRequire(t *testing.T) {
	r := newRuntime(t, "dateutil")

	got, err := r.Run(context.Background(), "test.js", "require('dateutil').shiftMonths('2024-03-31', -1)")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got)

	// Modules are evaluated once.
	got, err = r.Run(context.Background(), "test.js", "require('dateutil') === require('dateutil')")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	_, err = r.Run(context.Background(), "test.js", "require('panel')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not installed")
}

func TestResolveModule(t *testing.T) {
	assert.Equal(t, "plotkit/axis", resolveModule("plotkit/index", "./axis"))
	assert.Equal(t, "shared", resolveModule("plotkit/sub/x", "../../shared.js"))
	assert.Equal(t, "panel", resolveModule("plotkit/index", "panel"))
}

func TestRunMain(t *testing.T) {
	r := newRuntime(t, "panel", "hvplot", "dateutil")

	src, err := manifest.MainScript("")
	require.NoError(t, err)

	res, err := r.RunMain(context.Background(), src)
	require.NoError(t, err)

	docsJSON, ok := res.DocsJSON.(string)
	require.True(t, ok)
	assert.Contains(t, docsJSON, "Airpals Metrics Dashboard")
	assert.Equal(t, r.Document().RootIDs(), res.RootIDs)
	assert.NotEmpty(t, res.RenderItems)
	assert.NotNil(t, r.Document().Location())

	entries := r.Console()
	require.NotEmpty(t, entries)
	assert.Equal(t, "Number of valid observations: 64", entries[0].Message)
}

func TestRunMainBadResult(t *testing.T) {
	r := newRuntime(t)

	_, err := r.RunMain(context.Background(), "42")
	assert.ErrorIs(t, err, ErrBadResult)

	_, err = r.RunMain(context.Background(), "[1, 2]")
	assert.ErrorIs(t, err, ErrBadResult)

	res, err := r.RunMain(context.Background(), "['{}', [], []]")
	require.NoError(t, err)
	assert.Equal(t, "{}", res.DocsJSON)
}

func TestSendPatchGlobal(t *testing.T) {
	r := newRuntime(t)
	rec := &patchRecorder{}
	r.SetPatchCallback(rec.record)

	_, err := r.Run(context.Background(), "test.js", "sendPatch({events: []}, [], 'msg-1')")
	require.NoError(t, err)

	require.Equal(t, 1, rec.len())
	assert.Equal(t, "msg-1", rec.msgIDs[0])
	assert.Contains(t, rec.patches[0], "events")
}

const sliderScript = `
var slider = doc.model('DateSlider', {value: 1});
var label = doc.model('Markdown', {text: 'start'});
var row = doc.model('Row', {});
row.add(slider, label);
slider.watch('value', function (v) { label.set('text', 'value ' + v); });
doc.addRoot(row);
[slider.id, label.id];
`

func TestLinkForwardsScriptChanges(t *testing.T) {
	r := newRuntime(t)
	rec := &patchRecorder{}
	r.SetPatchCallback(rec.record)

	ids, err := r.Run(context.Background(), "app.js", sliderScript)
	require.NoError(t, err)
	sliderID := ids.([]any)[0].(string)
	labelID := ids.([]any)[1].(string)

	// Nothing is sent before linking.
	_, err = r.Run(context.Background(), "app.js", "doc.get('"+labelID+"').set('text', 'quiet')")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.len())

	r.Link()

	// A page change is not echoed, but the watcher's change is.
	patch := `{"events":[{"kind":"ModelChanged","id":"` + sliderID + `","attr":"value","new":7}]}`
	require.NoError(t, r.ApplyPatch(context.Background(), patch))

	require.Equal(t, 1, rec.len())
	events := rec.patches[0]["events"].([]any)
	ev := events[0].(map[string]any)
	assert.Equal(t, labelID, ev["id"])
	assert.Equal(t, "value 7", ev["new"])

	m, ok := r.Document().Model(sliderID)
	require.True(t, ok)
	assert.Equal(t, float64(7), m.Attributes["value"])
}

func TestApplyPatchErrors(t *testing.T) {
	r := newRuntime(t)

	err := r.ApplyPatch(context.Background(), "{not json")
	assert.Error(t, err)

	err = r.ApplyPatch(context.Background(), `{"events":[{"kind":"ModelChanged","id":"m_nope","attr":"x","new":1}]}`)
	assert.ErrorIs(t, err, document.ErrUnknownModel)
}

func TestUpdateLocation(t *testing.T) {
	r := newRuntime(t)

	_, err := r.UpdateLocation(map[string]any{"pathname": "/x"})
	assert.ErrorIs(t, err, ErrNoLocation)

	_, err = r.Run(context.Background(), "app.js", "doc.enableLocation()")
	require.NoError(t, err)

	applied, err := r.UpdateLocation(map[string]any{
		"pathname": "/dash",
		"search":   "?a=1",
		"bogus":    true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pathname", "search"}, applied)

	loc := r.Document().Location()
	assert.True(t, loc.ReadOnly())
	v, _ := loc.Get("pathname")
	assert.Equal(t, "/dash", v)

	// Scripts see the values but cannot write while read-only.
	got, err := r.Run(context.Background(), "app.js", "doc.location().get('search')")
	require.NoError(t, err)
	assert.Equal(t, "?a=1", got)

	_, err = r.Run(context.Background(), "app.js", "doc.location().set('hash', '#x')")
	assert.Error(t, err)
}

func TestDataRead(t *testing.T) {
	r := newRuntime(t)

	got, err := r.Run(context.Background(), "app.js", `
var t = data.read('orders.csv', '|');
var s = t.filter('date', '>=', '2022-12-01').summarize('amount');
[t.length, s.count > 0, t.dateRange('date')[0]];
`)
	require.NoError(t, err)
	items := got.([]any)
	assert.Equal(t, int64(64), items[0])
	assert.Equal(t, true, items[1])
	assert.Equal(t, "2022-01-03", items[2])

	_, err = r.Run(context.Background(), "app.js", "data.read('../secrets.csv')")
	assert.Error(t, err)

	_, err = r.Run(context.Background(), "app.js", "data.read('missing.csv')")
	assert.Error(t, err)
}

func TestClosedRuntime(t *testing.T) {
	r, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Run(context.Background(), "x.js", "1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.ApplyPatch(context.Background(), "{}"), ErrClosed)
}
