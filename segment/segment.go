// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package segment decodes a streamed response document into discrete
// protocol events.
//
// A response document is a JSON object whose "response" key holds an
// ordered array of segments. A segment is either a text segment,
//
//	{"type": "text", "text": "..."}
//
// or a named template segment,
//
//	{"type": "template", "name": "...", "templateProps": {...}}
//
// The document arrives as an arbitrary sequence of text fragments from a
// model's token stream, so at any moment the accumulated text is only a
// prefix of the eventual document. A Decoder consumes the fragments and
// reports content as it becomes available: the visible text of a growing
// text segment as deltas, and each template segment exactly once, after the
// stream has moved past it or ended. A template's properties are not
// meaningful until its object is complete, so templates are held back while
// they remain the last element of the array.
package segment

import "io"

// A Source yields successive fragments of raw response text. Next returns
// io.EOF when no further fragments will arrive; any other error aborts the
// decode and is surfaced by Decoder.Err.
type Source interface {
	Next() (string, error)
}

// Fragments returns a Source that delivers the given fragments in order.
func Fragments(frags ...string) Source { return &sliceSource{frags: frags} }

type sliceSource struct {
	frags []string
	pos   int
}

func (s *sliceSource) Next() (string, error) {
	if s.pos >= len(s.frags) {
		return "", io.EOF
	}
	frag := s.frags[s.pos]
	s.pos++
	return frag, nil
}

// An Event is a unit of decoded output, either a TextDelta or a *Template.
type Event interface {
	isEvent()
}

// A TextDelta carries text of the in-flight text segment that has not been
// reported before. Concatenating the deltas reported while a text segment
// is in flight reproduces its full text.
type TextDelta string

func (TextDelta) isEvent() {}

// A Template is a finalized non-text segment: a named payload whose
// properties are complete and safe to consume.
type Template struct {
	Name  string
	Props map[string]any
}

func (*Template) isEvent() {}

// A ProtocolError reports a fatal violation of the response protocol, such
// as a template segment finalized without a name. Unlike an unparseable
// prefix, a protocol error cannot be repaired by further input.
type ProtocolError struct {
	Message string
}

// Error satisfies the error interface.
func (e *ProtocolError) Error() string { return "protocol error: " + e.Message }
