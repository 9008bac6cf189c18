package document

import (
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc(t *testing.T) (*Document, *Model, *Model) {
	t.Helper()
	d := New()
	slider := NewModel("DateSlider", map[string]any{"value": "2024-01-01"})
	row := NewModel("Row", nil)
	row.Add(slider)
	d.AddRoot(row, SetterScript)
	return d, row, slider
}

func TestAddRootIndexesChildren(t *testing.T) {
	d, row, slider := sampleDoc(t)

	assert.Equal(t, []string{row.ID.String()}, d.RootIDs())
	_, ok := d.Model(slider.ID.String())
	assert.True(t, ok)
	assert.Equal(t, 1, d.Version())
}

func TestDocsJSON(t *testing.T) {
	d, row, slider := sampleDoc(t)
	d.SetTitle("Metrics", SetterScript)

	text, err := d.DocsJSON()
	require.NoError(t, err)

	var decoded map[string]struct {
		Title string `json:"title"`
		Roots struct {
			RootIDs    []string    `json:"root_ids"`
			References []ModelJSON `json:"references"`
		} `json:"roots"`
	}
	require.NoError(t, sonic.UnmarshalString(text, &decoded))

	entry, ok := decoded[d.ID().String()]
	require.True(t, ok)
	assert.Equal(t, "Metrics", entry.Title)
	assert.Equal(t, []string{row.ID.String()}, entry.Roots.RootIDs)
	require.Len(t, entry.Roots.References, 2)
	assert.Equal(t, []string{slider.ID.String()}, entry.Roots.References[0].Children)
}

func TestRenderItems(t *testing.T) {
	d, row, _ := sampleDoc(t)

	items := d.RenderItems()
	require.Len(t, items, 1)
	assert.Equal(t, d.ID().String(), items[0]["docid"])
	assert.Equal(t, []any{row.ID.String()}, items[0]["root_ids"])
}

func TestApplyJSONPatch(t *testing.T) {
	d, _, slider := sampleDoc(t)

	patch := `{"events":[
		{"kind":"ModelChanged","id":"` + slider.ID.String() + `","attr":"value","new":"2024-03-01"},
		{"kind":"TitleChanged","title":"Q1"}
	]}`
	require.NoError(t, d.ApplyJSONPatch(patch, "js"))

	m, _ := d.Model(slider.ID.String())
	assert.Equal(t, "2024-03-01", m.Attributes["value"])
	assert.Equal(t, "Q1", d.Title())
}

func TestApplyPatchErrors(t *testing.T) {
	d, _, _ := sampleDoc(t)

	tests := []struct {
		name  string
		patch string
		want  error
	}{
		{"unknown event", `{"events":[{"kind":"Exploded"}]}`, ErrUnknownEvent},
		{"unknown model", `{"events":[{"kind":"ModelChanged","id":"m_missing","attr":"x","new":1}]}`, ErrUnknownModel},
		{"remove unknown root", `{"events":[{"kind":"RootRemoved","id":"m_missing"}]}`, ErrUnknownModel},
		{"root without model", `{"events":[{"kind":"RootAdded"}]}`, ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.ApplyJSONPatch(tt.patch, "js")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.Error(t, d.ApplyJSONPatch(`{"events":`, "js"))
}

func TestApplyPatchIsAllOrNothing(t *testing.T) {
	d, _, slider := sampleDoc(t)

	var events []Event
	d.OnChange(func(ev Event, setter string) { events = append(events, ev) })

	patch := `{"events":[
		{"kind":"ModelChanged","id":"` + slider.ID.String() + `","attr":"value","new":"2024-06-01"},
		{"kind":"Bogus"}]}`
	err := d.ApplyJSONPatch(patch, "js")
	require.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), "event 1")

	assert.Equal(t, "2024-01-01", slider.Attributes["value"])
	assert.Equal(t, 1, d.Version())
	assert.Empty(t, events)
}

func TestApplyPatchRefersToModelsAddedEarlier(t *testing.T) {
	const added = `{"kind":"RootAdded",
		"model":{"id":"m_root","type":"Column","attributes":{},"children":["m_child"]},
		"references":[{"id":"m_child","type":"Markdown","attributes":{}}]}`
	const changed = `{"kind":"ModelChanged","id":"m_child","attr":"text","new":"hi"}`
	const removed = `{"kind":"RootRemoved","id":"m_root"}`

	d := New()
	err := d.ApplyJSONPatch(`{"events":[`+added+`,`+changed+`,`+removed+`,`+removed+`]}`, "js")
	require.ErrorIs(t, err, ErrUnknownModel, "a root can only be removed once")
	_, ok := d.Model("m_child")
	assert.False(t, ok)

	require.NoError(t, d.ApplyJSONPatch(`{"events":[`+added+`,`+changed+`]}`, "js"))
	assert.Equal(t, []string{"m_root"}, d.RootIDs())
	child, ok := d.Model("m_child")
	require.True(t, ok)
	assert.Equal(t, "hi", child.Attributes["text"])
}

func TestRootAddedFromPatch(t *testing.T) {
	d := New()
	patch := `{"events":[{"kind":"RootAdded",
		"model":{"id":"m_root","type":"Column","attributes":{},"children":["m_child"]},
		"references":[{"id":"m_child","type":"Markdown","attributes":{"text":"hi"}}]}]}`

	require.NoError(t, d.ApplyJSONPatch(patch, "js"))
	assert.Equal(t, []string{"m_root"}, d.RootIDs())
	child, ok := d.Model("m_child")
	require.True(t, ok)
	assert.Equal(t, "hi", child.Attributes["text"])

	require.NoError(t, d.ApplyJSONPatch(`{"events":[{"kind":"RootRemoved","id":"m_root"}]}`, "js"))
	assert.Empty(t, d.RootIDs())
}

func TestLinkSkipsOwnSetter(t *testing.T) {
	d, _, slider := sampleDoc(t)

	var sent []Patch
	unlink := d.Link("js", func(p Patch) { sent = append(sent, p) })

	require.NoError(t, d.Set(slider.ID.String(), "value", "a", "js"))
	require.NoError(t, d.Set(slider.ID.String(), "value", "b", SetterScript))
	require.Len(t, sent, 1)
	assert.Equal(t, ModelChanged, sent[0].Events[0].Kind)
	assert.Equal(t, "b", sent[0].Events[0].New)

	unlink()
	require.NoError(t, d.Set(slider.ID.String(), "value", "c", SetterScript))
	assert.Len(t, sent, 1)
}

func TestPatchMap(t *testing.T) {
	p := Patch{Events: []Event{{Kind: TitleChanged, Title: "x"}}}
	m, err := p.Map()
	require.NoError(t, err)
	events := m["events"].([]any)
	assert.Equal(t, "TitleChanged", events[0].(map[string]any)["kind"])
}
