// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/winmoee/w24h/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	m := miniredis.RunT(t)
	return store.New(redis.NewClient(&redis.Options{Addr: m.Addr()}))
}

func TestEpisodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ep := &store.Episode{ID: "e1", AppName: "Safari", StartTS: 1_000}
	if err := s.PutEpisode(ctx, ep); err != nil {
		t.Fatalf("PutEpisode: %v", err)
	}
	if err := s.AppendFrame(ctx, "e1", "f1", 2_000); err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	if err := s.CloseEpisode(ctx, "e1", 3_000); err != nil {
		t.Fatalf("CloseEpisode: %v", err)
	}
	// Closing again must not move the end time.
	if err := s.CloseEpisode(ctx, "e1", 9_000); err != nil {
		t.Fatalf("CloseEpisode again: %v", err)
	}

	got, err := s.GetEpisode(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if got.FrameCount != 1 || len(got.FrameIDs) != 1 || got.FrameIDs[0] != "f1" {
		t.Errorf("frames: count %d ids %v, want 1 [f1]", got.FrameCount, got.FrameIDs)
	}
	if got.EndTS != 3_000 {
		t.Errorf("EndTS: got %d, want 3000", got.EndTS)
	}

	if _, err := s.GetEpisode(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEpisode(missing): got %v, want ErrNotFound", err)
	}
}

func TestRecentEpisodesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, ts := range []int64{3_000, 1_000, 2_000} {
		ep := &store.Episode{ID: fmt.Sprintf("e%d", i), AppName: "App", StartTS: ts}
		if err := s.PutEpisode(ctx, ep); err != nil {
			t.Fatalf("PutEpisode: %v", err)
		}
	}
	eps, err := s.RecentEpisodes(ctx, 2)
	if err != nil {
		t.Fatalf("RecentEpisodes: %v", err)
	}
	var ids []string
	for _, ep := range eps {
		ids = append(ids, ep.ID)
	}
	if diff := cmp.Diff([]string{"e0", "e2"}, ids); diff != "" {
		t.Errorf("episode order: (-want, +got)\n%s", diff)
	}
}

func TestThreadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if msgs, err := s.LoadThread(ctx, "t1"); err != nil || msgs != nil {
		t.Fatalf("LoadThread(empty): got %v, %v; want nil, nil", msgs, err)
	}

	first := []store.ThreadMessage{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi", ID: "m1"},
	}
	if err := s.AppendThread(ctx, "t1", first...); err != nil {
		t.Fatalf("AppendThread: %v", err)
	}
	if err := s.AppendThread(ctx, "t1", store.ThreadMessage{Role: "assistant", Content: "hello", ID: "r1"}); err != nil {
		t.Fatalf("AppendThread: %v", err)
	}

	got, err := s.LoadThread(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadThread: %v", err)
	}
	want := append(first, store.ThreadMessage{Role: "assistant", Content: "hello", ID: "r1"})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("thread history: (-want, +got)\n%s", diff)
	}
}

func TestThreadConcurrentAppend(t *testing.T) {
	// Appends from concurrent turns interleave without losing messages,
	// and each writer's own messages stay in order.
	ctx := context.Background()
	s := newTestStore(t)

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			role := fmt.Sprintf("writer-%d", w)
			for i := 0; i < perWriter; i++ {
				msg := store.ThreadMessage{Role: role, Content: fmt.Sprintf("%d", i)}
				if err := s.AppendThread(ctx, "t1", msg); err != nil {
					t.Errorf("AppendThread %s/%d: %v", role, i, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	got, err := s.LoadThread(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadThread: %v", err)
	}
	if len(got) != writers*perWriter {
		t.Fatalf("messages: got %d, want %d", len(got), writers*perWriter)
	}
	next := make(map[string]int)
	for _, msg := range got {
		if want := fmt.Sprintf("%d", next[msg.Role]); msg.Content != want {
			t.Fatalf("message for %s: got %q, want %q", msg.Role, msg.Content, want)
		}
		next[msg.Role]++
	}
}
