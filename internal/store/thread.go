// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// A ThreadMessage is one message of a chat thread's history. ID carries the
// client-assigned message id where one exists; system messages have none.
type ThreadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// LoadThread returns the message history of a thread, oldest first. A
// thread that does not exist yet has an empty history.
func (s *Store) LoadThread(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	vals, err := s.rdb.LRange(ctx, threadKeyPrefix+threadID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	msgs := make([]ThreadMessage, len(vals))
	for i, val := range vals {
		if err := json.Unmarshal([]byte(val), &msgs[i]); err != nil {
			return nil, fmt.Errorf("load thread %s: message %d: %w", threadID, i, err)
		}
	}
	return msgs, nil
}

// AppendThread appends msgs to a thread's history and refreshes its TTL.
// Each message is one list element, so concurrent turns on the same thread
// interleave without losing messages.
func (s *Store) AppendThread(ctx context.Context, threadID string, msgs ...ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]any, len(msgs))
	for i, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		vals[i] = data
	}
	key := threadKeyPrefix + threadID
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, threadTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save thread %s: %w", threadID, err)
	}
	return nil
}
