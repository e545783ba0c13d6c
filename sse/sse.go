// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package sse encodes streaming protocol events as Server-Sent-Events
// frames. Each frame is an "event:" line naming the event type, one "data:"
// line per line of payload, and a terminating blank line:
//
//	event: text
//	data: first line
//	data: second line
//
// The frame layout must match the existing clients byte for byte, including
// the newline splitting of multi-line payloads.
package sse

import (
	"encoding/json"
	"strings"
)

// Event types of the streaming protocol.
const (
	EventText          = "text"            // raw text delta
	EventTemplate      = "tpl"             // finalized template, JSON-encoded
	EventTemplateProps = "tpl_props_chunk" // raw template property delta
	EventContextAppend = "context_append"  // context item, JSON-encoded
	EventMessageUpdate = "message_update"  // message id, JSON-encoded
	EventError         = "error"           // raw error text
)

// Encode formats a single SSE frame with the given event type and payload.
// The payload is split on newlines, one "data:" line each.
func Encode(event, data string) string {
	var sb strings.Builder
	if event != "" {
		sb.WriteString("event: ")
		sb.WriteString(event)
		sb.WriteByte('\n')
	}
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// EncodeJSON formats a single SSE frame whose payload is the JSON encoding
// of v.
func EncodeJSON(event string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Encode(event, string(data)), nil
}

// A Chunk is a protocol payload that knows its own wire framing.
type Chunk interface {
	// Frame returns the complete SSE frame for the chunk.
	Frame() (string, error)
}

// MustFrame returns the frame for c, and panics if c cannot be encoded.
// It is intended for chunks whose encoding cannot fail, such as text
// deltas and chunks built from already-decoded JSON values.
func MustFrame(c Chunk) string {
	frame, err := c.Frame()
	if err != nil {
		panic("sse: encode chunk: " + err.Error())
	}
	return frame
}

// A TextChunk carries a delta of assistant text.
type TextChunk struct {
	Text string
}

// Frame implements the Chunk interface.
func (c TextChunk) Frame() (string, error) { return Encode(EventText, c.Text), nil }

// A TemplateChunk carries a finalized named template and its properties.
type TemplateChunk struct {
	Name  string         `json:"name"`
	Props map[string]any `json:"templateProps"`
}

// Frame implements the Chunk interface.
func (c TemplateChunk) Frame() (string, error) { return EncodeJSON(EventTemplate, c) }

// A TemplatePropsChunk carries a raw delta of template properties for
// clients that render templates progressively.
type TemplatePropsChunk struct {
	Text string
}

// Frame implements the Chunk interface.
func (c TemplatePropsChunk) Frame() (string, error) {
	return Encode(EventTemplateProps, c.Text), nil
}

// A ContextAppend carries an item to append to the client's context.
type ContextAppend struct {
	Item any
}

// Frame implements the Chunk interface.
func (c ContextAppend) Frame() (string, error) { return EncodeJSON(EventContextAppend, c.Item) }

// A MessageUpdate announces the id of the message being streamed.
type MessageUpdate struct {
	ID string `json:"id"`
}

// Frame implements the Chunk interface.
func (c MessageUpdate) Frame() (string, error) { return EncodeJSON(EventMessageUpdate, c) }

// An ErrorChunk reports a terminal error to the client.
type ErrorChunk struct {
	Err string
}

// Frame implements the Chunk interface.
func (c ErrorChunk) Frame() (string, error) { return Encode(EventError, c.Err), nil }
