// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package segment

import (
	"io"

	"github.com/winmoee/w24h/partial"
)

// A Decoder reads fragments from a Source and reports decoded events in the
// order their segments became available. Decoding is pull-driven: each call
// to Next consumes as many fragments as needed to produce the next event.
//
//	d := segment.NewDecoder(src)
//	for d.Next() {
//		switch ev := d.Event().(type) {
//		...
//		}
//	}
//	if err := d.Err(); err != nil { ... }
//
// A Decoder holds the state of a single streamed response and must not be
// reused or shared between goroutines.
type Decoder struct {
	src  Source
	scan partial.Scanner

	emitted string // text already reported for the in-flight text segment
	pending bool   // a template segment is in flight, not yet reported

	ready []Event // decoded events not yet delivered
	cur   Event
	err   error
	done  bool // source exhausted and final flush performed
}

// NewDecoder constructs a Decoder that reads fragments from src.
func NewDecoder(src Source) *Decoder { return &Decoder{src: src} }

// Next advances the decoder to the next event and reports whether one is
// available. Once Next returns false, Err reports whether the stream ended
// normally.
func (d *Decoder) Next() bool {
	for {
		if len(d.ready) > 0 {
			d.cur = d.ready[0]
			d.ready = d.ready[1:]
			return true
		}
		if d.err != nil || d.done {
			return false
		}
		frag, err := d.src.Next()
		if err == io.EOF {
			d.done = true
			d.finish()
		} else if err != nil {
			d.err = err
			return false
		} else {
			d.consume(frag)
		}
	}
}

// Event returns the current event. It is only valid after a call to Next
// that returned true, and until the following call to Next.
func (d *Decoder) Event() Event { return d.cur }

// Err returns the error that terminated the event stream: nil after a
// normal end of input, a *ProtocolError for a protocol violation, or the
// error reported by the Source.
func (d *Decoder) Err() error { return d.err }

// consume folds one fragment into the session state, queueing any events
// that became available.
func (d *Decoder) consume(frag string) {
	d.scan.WriteString(frag)

	// A prefix that does not parse yet is expected mid-stream; keep
	// accumulating and try again on the next fragment.
	parsed, err := d.scan.Parse()
	if err != nil {
		return
	}
	resp, _ := parsed["response"].([]any)
	if len(resp) == 0 {
		return
	}
	cur, ok := resp[len(resp)-1].(map[string]any)
	if !ok {
		return
	}

	if !isText(cur) {
		// The template's object may still be growing. Hold it until the
		// stream moves past it or ends.
		d.pending = true
		d.emitted = ""
		return
	}

	// A text segment after a pending template means the template's object
	// is closed: report it before any of the new text.
	if d.pending && len(resp) > 1 {
		if prev, ok := resp[len(resp)-2].(map[string]any); ok && !isText(prev) {
			tpl, err := finalize(prev)
			if err != nil {
				d.err = err
				return
			}
			d.ready = append(d.ready, tpl)
			d.pending = false
		}
	}

	text, _ := cur["text"].(string)
	if len(text) > len(d.emitted) {
		d.ready = append(d.ready, TextDelta(text[len(d.emitted):]))
	}
	d.emitted = text
}

// finish flushes a still-pending template once the source is exhausted.
// If the final accumulated text does not parse, no trailing event is
// produced and the events already delivered stand.
func (d *Decoder) finish() {
	if !d.pending {
		return
	}
	parsed, err := d.scan.Parse()
	if err != nil {
		return
	}
	resp, _ := parsed["response"].([]any)
	if len(resp) == 0 {
		return
	}
	last, ok := resp[len(resp)-1].(map[string]any)
	if !ok || isText(last) {
		return
	}
	tpl, err := finalize(last)
	if err != nil {
		d.err = err
		return
	}
	d.ready = append(d.ready, tpl)
}

func isText(seg map[string]any) bool {
	t, _ := seg["type"].(string)
	return t == "text"
}

// finalize converts a completed non-text segment into its event. A name is
// required; a nameless template is a protocol violation.
func finalize(seg map[string]any) (*Template, error) {
	name, _ := seg["name"].(string)
	if name == "" {
		return nil, &ProtocolError{Message: "template segment has no name"}
	}
	props, ok := seg["templateProps"].(map[string]any)
	if !ok {
		props = map[string]any{}
	}
	return &Template{Name: name, Props: props}, nil
}
