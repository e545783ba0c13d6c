// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package partial completes and parses prefixes of JSON text.
//
// A model streaming a JSON document delivers an arbitrary truncation of the
// eventual text. Complete takes such a prefix and synthesizes the minimal
// closing sequence -- a quote for an unterminated string literal, then a
// closer for each open brace or bracket, innermost first -- so the result
// can be handed to a standard JSON parser.
//
// Completion is best-effort: a prefix that ends inside a number, a keyword,
// or just after a comma still fails to parse after completion. Such inputs
// report an IncompleteError, which callers accumulating a stream should
// treat as "wait for more input" rather than as a fatal condition. Input
// that cannot be a prefix of any valid JSON text, such as an unmatched
// close brace, reports a PrefixError.
package partial

import (
	"encoding/json"
	"fmt"
	"strings"
)

// A Scanner tracks string and grouping state across successive fragments of
// a JSON document prefix. Fragments are added with Write or WriteString, in
// order; Complete and Parse may be called at any point between fragments.
// The zero value is ready for use.
//
// The escape flag toggles on every backslash and is cleared after any other
// byte. This matches the observed behavior of the producing system and is
// kept as-is, rather than modeling the full escape grammar.
type Scanner struct {
	text     strings.Builder
	open     []byte // open braces and brackets, outermost first
	inString bool
	escaped  bool
	n        int // total bytes consumed
	err      error
}

// Write adds the next fragment of input to the scanner. It implements
// io.Writer. Once a fragment makes the input an impossible prefix, the
// scanner is stuck: the offending byte is not recorded and every later
// call reports the same *PrefixError.
func (s *Scanner) Write(data []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == '\\' {
			s.escaped = !s.escaped
			s.record(b)
			continue
		}
		if b == '"' && !s.escaped {
			s.inString = !s.inString
		} else if !s.inString {
			switch b {
			case '{', '[':
				s.open = append(s.open, b)
			case '}':
				if !s.pop('{') {
					s.err = &PrefixError{Offset: s.n, Message: `unmatched "}"`}
					return i, s.err
				}
			case ']':
				if !s.pop('[') {
					s.err = &PrefixError{Offset: s.n, Message: `unmatched "]"`}
					return i, s.err
				}
			}
		}
		s.escaped = false
		s.record(b)
	}
	return len(data), nil
}

// WriteString adds the next fragment of input to the scanner.
func (s *Scanner) WriteString(text string) (int, error) { return s.Write([]byte(text)) }

// Err returns the first malformed-prefix error reported by Write, or nil.
func (s *Scanner) Err() error { return s.err }

// Complete returns the accumulated text with the minimal closing sequence
// appended: a close quote if the text ends inside a string literal, then a
// matching closer for each group still open, innermost first. Text that was
// already complete is returned unchanged.
func (s *Scanner) Complete() string {
	var sb strings.Builder
	sb.Grow(s.text.Len() + len(s.open) + 1)
	sb.WriteString(s.text.String())
	if s.inString {
		sb.WriteByte('"')
	}
	for i := len(s.open) - 1; i >= 0; i-- {
		if s.open[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// Parse completes the accumulated text and parses the result as a JSON
// object. Empty or all-whitespace input parses as an empty object. If the
// scanner has seen an impossible prefix, Parse returns its *PrefixError;
// if the completed text is still not a valid object, Parse returns an
// *IncompleteError.
func (s *Scanner) Parse() (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(s.text.String()) == "" {
		return map[string]any{}, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s.Complete()), &v); err != nil {
		return nil, &IncompleteError{err: err}
	}
	return v, nil
}

func (s *Scanner) record(b byte) {
	s.text.WriteByte(b)
	s.n++
}

// pop removes the innermost open group if it matches open.
func (s *Scanner) pop(open byte) bool {
	if n := len(s.open); n > 0 && s.open[n-1] == open {
		s.open = s.open[:n-1]
		return true
	}
	return false
}

// Complete returns text with the minimal closing sequence appended.
// In case of error, the error has type *PrefixError.
func Complete(text string) (string, error) {
	var s Scanner
	if _, err := s.WriteString(text); err != nil {
		return "", err
	}
	return s.Complete(), nil
}

// Parse completes text and parses the result as a JSON object.
// It is shorthand for feeding text to a fresh Scanner and calling Parse.
func Parse(text string) (map[string]any, error) {
	var s Scanner
	if _, err := s.WriteString(text); err != nil {
		return nil, err
	}
	return s.Parse()
}

// A PrefixError reports input that cannot be a prefix of any valid JSON
// text, such as a close brace with no matching open brace. No amount of
// further input can repair it.
type PrefixError struct {
	Offset  int // byte offset of the offending input byte
	Message string
}

// Error satisfies the error interface.
func (e *PrefixError) Error() string {
	return fmt.Sprintf("invalid JSON prefix: %s (offset %d)", e.Message, e.Offset)
}

// An IncompleteError reports that the text still failed to parse after
// completion, typically because the prefix ends inside a numeric literal or
// keyword, or just after a comma or colon. More input may repair it.
type IncompleteError struct {
	err error
}

// Error satisfies the error interface.
func (e *IncompleteError) Error() string { return "incomplete JSON: " + e.err.Error() }

// Unwrap supports error wrapping.
func (e *IncompleteError) Unwrap() error { return e.err }
