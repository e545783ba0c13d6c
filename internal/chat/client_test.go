// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/winmoee/w24h/internal/chat"
)

// sseChunk formats one completion chunk the way the vendor streams them.
func sseChunk(content, finishReason string) string {
	chunk := map[string]any{
		"choices": []map[string]any{{
			"delta":         map[string]any{"content": content},
			"finish_reason": finishReason,
		}},
	}
	data, _ := json.Marshal(chunk)
	return fmt.Sprintf("data: %s\n\n", data)
}

func newStreamServer(t *testing.T, body string) *chat.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %q, want /chat/completions", r.URL.Path)
		}
		var req struct {
			Stream bool `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("request did not ask for streaming")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return chat.NewClient(srv.URL, "test-key", "test-model")
}

func drain(t *testing.T, s *chat.DeltaStream) []string {
	t.Helper()
	var frags []string
	for {
		frag, err := s.Next()
		if err == io.EOF {
			return frags
		} else if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		frags = append(frags, frag)
	}
}

func TestDeltaStream(t *testing.T) {
	cli := newStreamServer(t,
		sseChunk("{\"response\"", "")+
			sseChunk(": [{\"type\": \"text\",", "")+
			sseChunk("", "")+ // empty deltas are skipped
			sseChunk(" \"text\": \"hi\"}]}", "")+
			"data: [DONE]\n\n")

	s, err := cli.Stream(context.Background(), []chat.Message{{Role: "user", Content: "q"}})
	if err != nil {
		t.Fatalf("Stream: unexpected error: %v", err)
	}
	defer s.Close()

	got := strings.Join(drain(t, s), "")
	const want = `{"response": [{"type": "text", "text": "hi"}]}`
	if got != want {
		t.Errorf("stream text:\n got %q\nwant %q", got, want)
	}

	// The stream stays terminated after EOF.
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("Next after EOF: got %v, want io.EOF", err)
	}
}

func TestDeltaStreamFinishReason(t *testing.T) {
	// A finish_reason chunk ends the stream even without a [DONE] marker.
	cli := newStreamServer(t,
		sseChunk("hello", "")+
			sseChunk("", "stop"))

	s, err := cli.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream: unexpected error: %v", err)
	}
	defer s.Close()

	got := drain(t, s)
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("fragments: got %q, want [hello]", got)
	}
}

func TestStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer srv.Close()

	cli := chat.NewClient(srv.URL, "test-key", "test-model")
	if _, err := cli.Stream(context.Background(), nil); err == nil {
		t.Error("Stream: got nil, want error")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("Stream error: got %v, want mention of 404", err)
	}
}
