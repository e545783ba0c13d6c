// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package vector is a client for a Voyage-style embedding and rerank API,
// plus the similarity arithmetic used for retrieval.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Options configure a Client. BaseURL and APIKey are required; the model
// names fall back to the vendor defaults when empty.
type Options struct {
	BaseURL string
	APIKey  string

	TextModel   string
	ImageModel  string
	RerankModel string

	HTTPClient *http.Client
}

// A Client calls the embedding and rerank endpoints of the vendor API.
type Client struct {
	opts Options
	cli  *http.Client
}

// NewClient constructs a Client from opts.
func NewClient(opts Options) *Client {
	if opts.TextModel == "" {
		opts.TextModel = "voyage-2"
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "voyage-multimodal-3"
	}
	if opts.RerankModel == "" {
		opts.RerankModel = "rerank-2"
	}
	cli := opts.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{opts: opts, cli: cli}
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedText returns the embedding vector for text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{
		"input": []string{text},
		"model": c.opts.TextModel,
	}
	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", body, &resp); err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return firstEmbedding(resp)
}

// EmbedImage returns the embedding vector for the image at imageURL. The
// multimodal request shape is tried first; on a vendor rejection the plain
// input shape is retried, since deployments differ on which one they accept.
func (c *Client) EmbedImage(ctx context.Context, imageURL string) ([]float64, error) {
	multimodal := map[string]any{
		"inputs": []any{map[string]any{
			"content": []any{map[string]any{
				"type":      "image_url",
				"image_url": imageURL,
			}},
		}},
		"model": c.opts.ImageModel,
	}
	var resp embeddingResponse
	err := c.post(ctx, "/embeddings", multimodal, &resp)
	if err != nil {
		var serr *statusError
		if !errors.As(err, &serr) {
			return nil, fmt.Errorf("embed image: %w", err)
		}
		plain := map[string]any{
			"input": []string{imageURL},
			"model": c.opts.ImageModel,
		}
		resp = embeddingResponse{}
		if err := c.post(ctx, "/embeddings", plain, &resp); err != nil {
			return nil, fmt.Errorf("embed image: %w", err)
		}
	}
	return firstEmbedding(resp)
}

// A Result is one reranked document.
type Result struct {
	Index    int     `json:"index"`
	Document string  `json:"document"`
	Score    float64 `json:"relevance_score"`
}

// Rerank orders documents by relevance to query, most relevant first,
// returning at most topK results. A topK of zero means all documents.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(documents) {
		topK = len(documents)
	}
	body := map[string]any{
		"query":     query,
		"documents": documents,
		"model":     c.opts.RerankModel,
		"top_k":     topK,
	}
	var resp struct {
		Results []Result `json:"results"`
	}
	if err := c.post(ctx, "/rerank", body, &resp); err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	sort.SliceStable(resp.Results, func(i, j int) bool {
		return resp.Results[i].Score > resp.Results[j].Score
	})
	return resp.Results, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.opts.APIKey == "" {
		return errors.New("missing API key")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.opts.BaseURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstEmbedding(resp embeddingResponse) ([]float64, error) {
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding data in response")
	}
	return resp.Data[0].Embedding, nil
}

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// Cosine reports the cosine similarity of a and b, or 0 when the vectors
// differ in length or either has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, ma, mb float64
	for i := range a {
		dot += a[i] * b[i]
		ma += a[i] * a[i]
		mb += b[i] * b[i]
	}
	if ma == 0 || mb == 0 {
		return 0
	}
	return dot / (math.Sqrt(ma) * math.Sqrt(mb))
}
