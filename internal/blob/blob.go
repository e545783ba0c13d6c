// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package blob uploads screenshot images to a Vercel-style blob store.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A Client uploads blobs with bearer-token authorization.
type Client struct {
	baseURL string
	token   string
	cli     *http.Client
}

// New constructs a Client for the store at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		cli:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload stores data under pathname with public access and returns the
// public URL reported by the store.
func (c *Client) Upload(ctx context.Context, pathname, contentType string, data []byte) (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("blob: no token configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/"+pathname, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-access-type", "public")

	resp, err := c.cli.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("blob upload: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("blob upload: decode response: %w", err)
	}
	return body.URL, nil
}

// WithSuffix inserts a random suffix before the extension of pathname so
// concurrent uploads of the same name cannot collide. A pathname without an
// extension gets ".png".
func WithSuffix(pathname string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if i := strings.LastIndexByte(pathname, '.'); i >= 0 {
		return fmt.Sprintf("%s-%s%s", pathname[:i], suffix, pathname[i:])
	}
	return fmt.Sprintf("%s-%s.png", pathname, suffix)
}
