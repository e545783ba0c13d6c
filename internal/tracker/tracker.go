// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package tracker maintains the episode timeline: frames are grouped into
// an episode for as long as the same application stays in the foreground,
// and a closed episode is summarized and embedded for retrieval.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/winmoee/w24h/internal/store"
	"github.com/winmoee/w24h/internal/vector"
)

// enrichTimeout bounds the background summary+embedding work for one
// closed episode.
const enrichTimeout = 2 * time.Minute

// A Tracker owns the episode rollover state for one capture source. It
// replaces what would otherwise be process-wide globals: the last observed
// application and the id of the open episode.
type Tracker struct {
	store *store.Store
	vec   *vector.Client
	log   *slog.Logger

	mu        sync.Mutex
	lastApp   string
	episodeID string // open episode, empty before the first observation
}

// New constructs a Tracker.
func New(st *store.Store, vec *vector.Client, log *slog.Logger) *Tracker {
	return &Tracker{store: st, vec: vec, log: log}
}

// Observe records that appName is in the foreground at ts (milliseconds).
// When the application changes, the open episode is closed and scheduled
// for enrichment, and a new episode is opened. The id of the now-current
// episode is returned.
func (t *Tracker) Observe(ctx context.Context, appName string, ts int64) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observeLocked(ctx, appName, ts)
}

func (t *Tracker) observeLocked(ctx context.Context, appName string, ts int64) (string, error) {
	if appName == t.lastApp && t.episodeID != "" {
		return t.episodeID, nil
	}

	if t.episodeID != "" {
		closed := t.episodeID
		if err := t.store.CloseEpisode(ctx, closed, ts-1000); err != nil {
			t.log.Warn("close episode", "episode", closed, "error", err)
		} else {
			t.log.Info("closed episode", "episode", closed, "app", t.lastApp)
			go t.enrich(closed)
		}
	}

	now := time.Now().UTC()
	ep := &store.Episode{
		ID:        uuid.NewString(),
		AppName:   appName,
		StartTS:   ts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.PutEpisode(ctx, ep); err != nil {
		return "", fmt.Errorf("open episode: %w", err)
	}
	t.episodeID = ep.ID
	t.lastApp = appName
	t.log.Info("opened episode", "episode", ep.ID, "app", appName)
	return ep.ID, nil
}

// RecordFrame stores a captured frame, attaches it to the current episode
// (rolling the episode over if the application changed), and schedules an
// image-embedding backfill when the frame has a public URL.
func (t *Tracker) RecordFrame(ctx context.Context, f *store.Frame) (episodeID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	episodeID, err = t.observeLocked(ctx, f.AppName, f.TS)
	if err != nil {
		return "", err
	}
	f.EpisodeID = episodeID
	f.CreatedAt = time.Now().UTC()
	if err := t.store.PutFrame(ctx, f); err != nil {
		return "", err
	}
	if err := t.store.AppendFrame(ctx, episodeID, f.ID, f.TS); err != nil {
		return "", err
	}
	if f.BlobURL != "" {
		go t.embedFrame(f.ID, f.BlobURL)
	}
	return episodeID, nil
}

// enrich generates the summary and text embedding for a closed episode.
// Failures are logged and dropped; the episode simply stays unembedded.
func (t *Tracker) enrich(episodeID string) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	ep, err := t.store.GetEpisode(ctx, episodeID)
	if err != nil {
		t.log.Warn("enrich: load episode", "episode", episodeID, "error", err)
		return
	}
	var titles []string
	for _, frameID := range ep.FrameIDs {
		f, err := t.store.GetFrame(ctx, frameID)
		if err != nil {
			continue
		}
		if f.WindowTitle != "" {
			titles = append(titles, f.WindowTitle)
		}
	}

	summary := Summary(ep.AppName, ep.FrameCount, ep.StartTS, ep.EndTS, titles)
	embedding, err := t.vec.EmbedText(ctx, summary)
	if err != nil {
		t.log.Warn("enrich: embed summary", "episode", episodeID, "error", err)
		return
	}
	if err := t.store.SetEpisodeSummary(ctx, episodeID, summary, embedding); err != nil {
		t.log.Warn("enrich: store summary", "episode", episodeID, "error", err)
		return
	}
	t.log.Info("enriched episode", "episode", episodeID, "dims", len(embedding))
}

// embedFrame backfills the image embedding for a stored frame.
func (t *Tracker) embedFrame(frameID, blobURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	embedding, err := t.vec.EmbedImage(ctx, blobURL)
	if err != nil {
		t.log.Warn("embed frame", "frame", frameID, "error", err)
		return
	}
	if err := t.store.SetFrameEmbedding(ctx, frameID, embedding); err != nil {
		t.log.Warn("store frame embedding", "frame", frameID, "error", err)
		return
	}
	t.log.Info("embedded frame", "frame", frameID, "dims", len(embedding))
}

// Summary builds the one-line description of an episode that gets embedded
// for retrieval. Window titles are deduplicated in first-seen order and
// capped at five.
func Summary(appName string, frameCount int, startTS, endTS int64, windowTitles []string) string {
	duration := "ongoing"
	if startTS != 0 && endTS != 0 {
		minutes := float64(endTS-startTS) / (1000 * 60)
		duration = fmt.Sprintf("%.1f minutes", minutes)
	}

	seen := make(map[string]bool)
	var unique []string
	for _, title := range windowTitles {
		if !seen[title] {
			seen[title] = true
			unique = append(unique, title)
		}
		if len(unique) == 5 {
			break
		}
	}
	titles := "N/A"
	if len(unique) > 0 {
		titles = strings.Join(unique, ", ")
	}

	return fmt.Sprintf("Activity in %s for %s. Captured %d screenshots. Window titles: %s",
		appName, duration, frameCount, titles)
}
