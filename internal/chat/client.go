// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package chat drives an assistant conversation: it retrieves activity
// context, streams a model completion, and re-frames the decoded segments
// for the browser.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// A Client streams chat completions from an OpenAI-style API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	cli     *http.Client
}

// NewClient constructs a Client for the completions API at baseURL.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		cli:     &http.Client{Timeout: 5 * time.Minute},
	}
}

// A Message is one entry of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stream starts a streaming completion for msgs. The caller must Close the
// returned stream.
func (c *Client) Stream(ctx context.Context, msgs []Message) (*DeltaStream, error) {
	body, err := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": msgs,
		"stream":   true,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("chat completion: http %d: %s",
			resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return &DeltaStream{body: resp.Body, sc: bufio.NewScanner(resp.Body)}, nil
}

// A DeltaStream yields the content deltas of one streaming completion. It
// satisfies the fragment source contract of the segment decoder: Next
// returns one non-empty delta per call and io.EOF at the end of the stream.
type DeltaStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
	done bool
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Next returns the next content delta, or io.EOF when the completion has
// finished.
func (s *DeltaStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}
		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("decode completion chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			return choice.Delta.Content, nil
		}
		if choice.FinishReason != "" {
			s.done = true
			return "", io.EOF
		}
	}
	s.done = true
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close releases the underlying response body.
func (s *DeltaStream) Close() error { return s.body.Close() }
