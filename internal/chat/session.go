// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/winmoee/w24h/internal/store"
	"github.com/winmoee/w24h/segment"
	"github.com/winmoee/w24h/sse"
)

// systemPrompt frames the assistant's role on the first turn of a thread.
// Retrieved activity context is appended beneath it.
const systemPrompt = `You are a personal activity assistant. You can see the
user's recent on-screen activity: which applications were in the foreground,
for how long, and screenshots of what was on screen. Answer questions about
what the user has been doing, grounded in that activity record. When the
record does not cover the question, say so rather than guessing.`

// A Request is one chat turn from the client.
type Request struct {
	ThreadID   string `json:"threadId"`
	ResponseID string `json:"responseId"`
	Prompt     Prompt `json:"prompt"`
}

// A Prompt is the user message of a Request.
type Prompt struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	ID      string `json:"id"`
}

// A Runner executes chat turns: it assembles the conversation, streams the
// model's response through the segment decoder, and emits SSE frames.
type Runner struct {
	Store     *store.Store
	Client    *Client
	Retriever *Retriever
	Log       *slog.Logger
}

// Run executes one chat turn, calling emit once per SSE frame. It returns
// the first error from emit (the client went away), from the model stream,
// or from the response protocol.
func (r *Runner) Run(ctx context.Context, req Request, emit func(string) error) error {
	history, err := r.Store.LoadThread(ctx, req.ThreadID)
	if err != nil {
		return err
	}

	var msgs []Message
	var persist []store.ThreadMessage
	if len(history) == 0 {
		sys := systemPrompt
		if activity := r.Retriever.Context(ctx, req.Prompt.Content); activity != "" {
			sys += "\n\nRecent activity:\n" + activity
		}
		msgs = append(msgs, Message{Role: "system", Content: sys})
		persist = append(persist, store.ThreadMessage{Role: "system", Content: sys})
	}
	for _, m := range history {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.Prompt.Content})
	persist = append(persist, store.ThreadMessage{
		Role: "user", Content: req.Prompt.Content, ID: req.Prompt.ID,
	})
	if err := r.Store.AppendThread(ctx, req.ThreadID, persist...); err != nil {
		return err
	}

	stream, err := r.Client.Stream(ctx, msgs)
	if err != nil {
		emit(sse.MustFrame(sse.ErrorChunk{Err: "model request failed"}))
		return err
	}
	defer stream.Close()

	if err := emit(sse.MustFrame(sse.MessageUpdate{ID: req.ResponseID})); err != nil {
		return err
	}

	tee := &teeSource{src: stream}
	d := segment.NewDecoder(tee)
	for d.Next() {
		var frame string
		switch ev := d.Event().(type) {
		case segment.TextDelta:
			frame = sse.MustFrame(sse.TextChunk{Text: string(ev)})
		case *segment.Template:
			frame = sse.MustFrame(sse.TemplateChunk{Name: ev.Name, Props: ev.Props})
		default:
			return fmt.Errorf("unexpected event %T", ev)
		}
		if err := emit(frame); err != nil {
			r.persistAssistant(ctx, req, tee.raw.String())
			return err
		}
	}
	streamErr := d.Err()
	if streamErr != nil {
		r.Log.Error("decode response stream", "thread", req.ThreadID, "error", streamErr)
		emit(sse.MustFrame(sse.ErrorChunk{Err: streamErr.Error()}))
	}
	r.persistAssistant(ctx, req, tee.raw.String())
	return streamErr
}

// persistAssistant records the raw response document so the next turn sees
// the full conversation. The write survives cancellation of the request
// context.
func (r *Runner) persistAssistant(ctx context.Context, req Request, raw string) {
	if raw == "" {
		return
	}
	msg := store.ThreadMessage{Role: "assistant", Content: raw, ID: req.ResponseID}
	if err := r.Store.AppendThread(context.WithoutCancel(ctx), req.ThreadID, msg); err != nil {
		r.Log.Warn("persist assistant message", "thread", req.ThreadID, "error", err)
	}
}

// A teeSource passes fragments through while accumulating the raw response
// text for persistence.
type teeSource struct {
	src segment.Source
	raw strings.Builder
}

func (t *teeSource) Next() (string, error) {
	frag, err := t.src.Next()
	if err == nil {
		t.raw.WriteString(frag)
	}
	return frag, err
}
