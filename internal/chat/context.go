// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/winmoee/w24h/internal/store"
	"github.com/winmoee/w24h/internal/vector"
)

const (
	episodePool  = 50 // recent episodes considered for retrieval
	framePool    = 30 // recent frames considered for retrieval
	episodeLimit = 10
	frameLimit   = 10
)

// A RecordSource lists recent activity records for retrieval.
type RecordSource interface {
	RecentEpisodes(ctx context.Context, n int) ([]*store.Episode, error)
	RecentFrames(ctx context.Context, n int) ([]*store.Frame, error)
}

// An Embedder embeds query text and reranks candidate documents.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]vector.Result, error)
}

// A Retriever assembles the activity context injected into the first turn
// of a conversation.
type Retriever struct {
	store RecordSource
	vec   Embedder
	log   *slog.Logger
}

// NewRetriever constructs a Retriever.
func NewRetriever(st RecordSource, vec Embedder, log *slog.Logger) *Retriever {
	return &Retriever{store: st, vec: vec, log: log}
}

// Context returns a text block describing the episodes and screenshots most
// relevant to query, or "" when nothing useful is available. Retrieval is
// best effort: embedding or rerank failures degrade the result rather than
// failing the chat.
func (r *Retriever) Context(ctx context.Context, query string) string {
	queryVec, err := r.vec.EmbedText(ctx, query)
	if err != nil {
		r.log.Warn("retrieval: embed query", "error", err)
		return ""
	}

	var sections []string
	if s := r.episodeSection(ctx, query, queryVec); s != "" {
		sections = append(sections, s)
	}
	if s := r.frameSection(ctx, queryVec); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}

type scored struct {
	summary string
	when    int64 // milliseconds
	score   float64
}

func (r *Retriever) episodeSection(ctx context.Context, query string, queryVec []float64) string {
	eps, err := r.store.RecentEpisodes(ctx, episodePool)
	if err != nil {
		r.log.Warn("retrieval: list episodes", "error", err)
		return ""
	}
	var cands []scored
	for _, ep := range eps {
		if ep.Summary == "" || len(ep.TextEmbedding) == 0 {
			continue
		}
		cands = append(cands, scored{
			summary: ep.Summary,
			when:    ep.StartTS,
			score:   vector.Cosine(queryVec, ep.TextEmbedding),
		})
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	// Rerank a generous cosine prefilter; fall back to cosine order when
	// the rerank call fails.
	pool := 2 * episodeLimit
	if pool > len(cands) {
		pool = len(cands)
	}
	cands = cands[:pool]
	docs := make([]string, len(cands))
	for i, c := range cands {
		docs[i] = c.summary
	}
	picked := cands
	if results, err := r.vec.Rerank(ctx, query, docs, episodeLimit); err != nil {
		r.log.Warn("retrieval: rerank episodes", "error", err)
		if len(picked) > episodeLimit {
			picked = picked[:episodeLimit]
		}
	} else {
		// Copy into a fresh slice: ordering by rerank index must not write
		// over the candidates still to be read.
		picked = make([]scored, 0, len(results))
		for _, res := range results {
			if res.Index < 0 || res.Index >= len(cands) {
				continue
			}
			picked = append(picked, cands[res.Index])
		}
	}

	var b strings.Builder
	b.WriteString("Relevant Activity Episodes (semantically matched):")
	for _, c := range picked {
		fmt.Fprintf(&b, "\n- [%s] %s", formatTS(c.when), c.summary)
	}
	return b.String()
}

func (r *Retriever) frameSection(ctx context.Context, queryVec []float64) string {
	frames, err := r.store.RecentFrames(ctx, framePool)
	if err != nil {
		r.log.Warn("retrieval: list frames", "error", err)
		return ""
	}
	var cands []scored
	for _, f := range frames {
		if f.BlobURL == "" || len(f.ImageEmbedding) == 0 {
			continue
		}
		title := f.WindowTitle
		if title == "" {
			title = f.AppName
		}
		cands = append(cands, scored{
			summary: fmt.Sprintf("%s (%s): %s", f.AppName, title, f.BlobURL),
			when:    f.TS,
			score:   vector.Cosine(queryVec, f.ImageEmbedding),
		})
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > frameLimit {
		cands = cands[:frameLimit]
	}

	var b strings.Builder
	b.WriteString("Relevant Screenshots (semantically matched):")
	for _, c := range cands {
		fmt.Fprintf(&b, "\n- [%s] %s", formatTS(c.when), c.summary)
	}
	return b.String()
}

func formatTS(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
