// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package store persists frames, episodes, and chat threads as keyed JSON
// records in Redis. Frames and episodes are indexed by capture time in
// sorted sets so recent records can be listed without scanning.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	episodeKeyPrefix = "episode:"
	frameKeyPrefix   = "frame:"
	threadKeyPrefix  = "thread:"

	episodesByStart = "episodes.byStart" // episode ids scored by start time
	framesByTime    = "frames.byTime"    // frame ids scored by capture time

	threadTTL = 24 * time.Hour
)

// ErrNotFound is reported when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// A Store reads and writes activity records in Redis.
type Store struct {
	rdb *redis.Client
}

// New constructs a Store backed by rdb.
func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// An Episode groups the consecutive frames captured while one application
// was in the foreground.
type Episode struct {
	ID            string    `json:"episodeID"`
	AppName       string    `json:"appName"`
	FrameIDs      []string  `json:"frameIDs"`
	StartTS       int64     `json:"startTS"`          // milliseconds since epoch
	EndTS         int64     `json:"endTS,omitempty"`  // zero while the episode is open
	FrameCount    int       `json:"frameCount"`
	Summary       string    `json:"summary,omitempty"`
	TextEmbedding []float64 `json:"textEmbedding,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// A Frame is a single captured screenshot with its window metadata.
type Frame struct {
	ID             string    `json:"frameID"`
	EpisodeID      string    `json:"episodeID"`
	TS             int64     `json:"ts"` // milliseconds since epoch
	AppName        string    `json:"appName"`
	WindowTitle    string    `json:"windowTitle,omitempty"`
	ScreenshotPath string    `json:"screenshotPath,omitempty"`
	BlobURL        string    `json:"blobURL,omitempty"`
	FileSize       int64     `json:"fileSize,omitempty"`
	ContentType    string    `json:"contentType,omitempty"`
	ImageEmbedding []float64 `json:"imageEmbedding,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PutEpisode writes ep and indexes it by start time.
func (s *Store) PutEpisode(ctx context.Context, ep *Episode) error {
	if err := s.putJSON(ctx, episodeKeyPrefix+ep.ID, ep, 0); err != nil {
		return fmt.Errorf("put episode: %w", err)
	}
	err := s.rdb.ZAdd(ctx, episodesByStart, redis.Z{
		Score:  float64(ep.StartTS),
		Member: ep.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index episode: %w", err)
	}
	return nil
}

// GetEpisode returns the episode with the given id, or ErrNotFound.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	var ep Episode
	if err := s.getJSON(ctx, episodeKeyPrefix+id, &ep); err != nil {
		return nil, fmt.Errorf("get episode %s: %w", id, err)
	}
	return &ep, nil
}

// CloseEpisode marks the episode as ended at endTS. Closing an episode that
// is already closed is a no-op.
func (s *Store) CloseEpisode(ctx context.Context, id string, endTS int64) error {
	ep, err := s.GetEpisode(ctx, id)
	if err != nil {
		return err
	}
	if ep.EndTS != 0 {
		return nil
	}
	ep.EndTS = endTS
	ep.UpdatedAt = time.Now().UTC()
	return s.PutEpisode(ctx, ep)
}

// AppendFrame adds frameID to its episode, bumps the frame count, and
// extends the episode's end time to ts.
func (s *Store) AppendFrame(ctx context.Context, episodeID, frameID string, ts int64) error {
	ep, err := s.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	ep.FrameIDs = append(ep.FrameIDs, frameID)
	ep.FrameCount++
	ep.EndTS = ts
	ep.UpdatedAt = time.Now().UTC()
	return s.PutEpisode(ctx, ep)
}

// SetEpisodeSummary attaches a summary and its text embedding to the
// episode.
func (s *Store) SetEpisodeSummary(ctx context.Context, id, summary string, embedding []float64) error {
	ep, err := s.GetEpisode(ctx, id)
	if err != nil {
		return err
	}
	ep.Summary = summary
	ep.TextEmbedding = embedding
	ep.UpdatedAt = time.Now().UTC()
	return s.PutEpisode(ctx, ep)
}

// RecentEpisodes returns up to n episodes, most recently started first.
func (s *Store) RecentEpisodes(ctx context.Context, n int) ([]*Episode, error) {
	ids, err := s.rdb.ZRevRange(ctx, episodesByStart, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	eps := make([]*Episode, 0, len(ids))
	for _, id := range ids {
		ep, err := s.GetEpisode(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // index entry for an expired record
		} else if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// PutFrame writes f and indexes it by capture time.
func (s *Store) PutFrame(ctx context.Context, f *Frame) error {
	if err := s.putJSON(ctx, frameKeyPrefix+f.ID, f, 0); err != nil {
		return fmt.Errorf("put frame: %w", err)
	}
	err := s.rdb.ZAdd(ctx, framesByTime, redis.Z{
		Score:  float64(f.TS),
		Member: f.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index frame: %w", err)
	}
	return nil
}

// GetFrame returns the frame with the given id, or ErrNotFound.
func (s *Store) GetFrame(ctx context.Context, id string) (*Frame, error) {
	var f Frame
	if err := s.getJSON(ctx, frameKeyPrefix+id, &f); err != nil {
		return nil, fmt.Errorf("get frame %s: %w", id, err)
	}
	return &f, nil
}

// SetFrameEmbedding attaches an image embedding to the frame.
func (s *Store) SetFrameEmbedding(ctx context.Context, id string, embedding []float64) error {
	f, err := s.GetFrame(ctx, id)
	if err != nil {
		return err
	}
	f.ImageEmbedding = embedding
	return s.putJSON(ctx, frameKeyPrefix+id, f, 0)
}

// RecentFrames returns up to n frames, most recently captured first.
func (s *Store) RecentFrames(ctx context.Context, n int) ([]*Frame, error) {
	ids, err := s.rdb.ZRevRange(ctx, framesByTime, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	frames := make([]*Frame, 0, len(ids))
	for _, id := range ids {
		f, err := s.GetFrame(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
