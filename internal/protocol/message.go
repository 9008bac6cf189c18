package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Type discriminates messages on the worker channel.
type Type string

const (
	TypeStatus   Type = "status"
	TypePatch    Type = "patch"
	TypeRender   Type = "render"
	TypeIdle     Type = "idle"
	TypeRendered Type = "rendered"
	TypeLocation Type = "location"
)

var ErrMissingType = errors.New("message has no type")

// Message is the tagged union sent across the worker/page boundary. Only the
// fields belonging to Type are meaningful and only those are encoded.
type Message struct {
	Type Type

	// status
	Msg string

	// patch (both directions). Inbound it is JSON text.
	Patch   any
	Buffers []any
	MsgID   any

	// render
	DocsJSON    any
	RenderItems any
	RootIDs     any

	// location (inbound), JSON text
	Location any
}

// Status builds a status message.
func Status(msg string) Message {
	return Message{Type: TypeStatus, Msg: msg}
}

// Patch builds an outbound patch message. A nil buffers slice is sent as [].
func Patch(patch any, buffers []any, msgID any) Message {
	if buffers == nil {
		buffers = []any{}
	}
	return Message{Type: TypePatch, Patch: patch, Buffers: buffers, MsgID: msgID}
}

// Render builds a render message.
func Render(docsJSON, renderItems, rootIDs any) Message {
	return Message{Type: TypeRender, DocsJSON: docsJSON, RenderItems: renderItems, RootIDs: rootIDs}
}

// Idle builds an idle acknowledgement.
func Idle() Message {
	return Message{Type: TypeIdle}
}

// MarshalJSON encodes only the fields of the message's variant.
func (m Message) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": m.Type}
	switch m.Type {
	case TypeStatus:
		out["msg"] = m.Msg
	case TypePatch:
		out["patch"] = m.Patch
		if m.Buffers != nil {
			out["buffers"] = m.Buffers
		}
		if m.MsgID != nil {
			out["msg_id"] = m.MsgID
		}
	case TypeRender:
		out["docs_json"] = m.DocsJSON
		out["render_items"] = m.RenderItems
		out["root_ids"] = m.RootIDs
	case TypeLocation:
		out["location"] = m.Location
	}
	return sonic.Marshal(out)
}

type wireMessage struct {
	Type        Type   `json:"type"`
	Msg         string `json:"msg"`
	Patch       any    `json:"patch"`
	Buffers     []any  `json:"buffers"`
	MsgID       any    `json:"msg_id"`
	DocsJSON    any    `json:"docs_json"`
	RenderItems any    `json:"render_items"`
	RootIDs     any    `json:"root_ids"`
	Location    any    `json:"location"`
}

// UnmarshalJSON decodes any variant.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		Type:        w.Type,
		Msg:         w.Msg,
		Patch:       w.Patch,
		Buffers:     w.Buffers,
		MsgID:       w.MsgID,
		DocsJSON:    w.DocsJSON,
		RenderItems: w.RenderItems,
		RootIDs:     w.RootIDs,
		Location:    w.Location,
	}
	return nil
}

// Encode serializes a message for the wire.
func Encode(m Message) ([]byte, error) {
	return m.MarshalJSON()
}

// Decode parses one frame from the wire.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := m.UnmarshalJSON(data); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, ErrMissingType
	}
	return m, nil
}

// PatchText returns the inbound patch payload as JSON text. Pages send it as a
// string; an object payload is re-encoded.
func (m Message) PatchText() (string, error) {
	return payloadText(m.Patch)
}

// LocationText returns the inbound location payload as JSON text.
func (m Message) LocationText() (string, error) {
	return payloadText(m.Location)
}

func payloadText(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", errors.New("empty payload")
	case string:
		return p, nil
	default:
		return sonic.MarshalString(p)
	}
}
