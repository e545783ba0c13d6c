// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package config loads the server configuration from an optional HuJSON
// file with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config collects the settings of the w24h server. All fields have working
// defaults except the vendor credentials.
type Config struct {
	ListenAddr string `json:"listenAddr"`
	RedisURL   string `json:"redisURL"`

	// Embedding/rerank vendor.
	VoyageAPIKey  string `json:"voyageAPIKey"`
	VoyageBaseURL string `json:"voyageBaseURL"`
	TextModel     string `json:"textModel"`
	ImageModel    string `json:"imageModel"`
	RerankModel   string `json:"rerankModel"`

	// Chat completion vendor.
	ChatAPIKey  string `json:"chatAPIKey"`
	ChatBaseURL string `json:"chatBaseURL"`
	ChatModel   string `json:"chatModel"`

	// Screenshot blob storage.
	BlobToken   string `json:"blobToken"`
	BlobBaseURL string `json:"blobBaseURL"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		RedisURL:      "redis://localhost:6379",
		VoyageBaseURL: "https://api.voyageai.com/v1",
		TextModel:     "voyage-2",
		ImageModel:    "voyage-multimodal-3",
		RerankModel:   "rerank-2",
		ChatBaseURL:   "https://api.thesys.dev/v1/embed",
		ChatModel:     "c1/anthropic/claude-sonnet-4/v-20250815",
		BlobBaseURL:   "https://blob.vercel-storage.com",
	}
}

// Load returns the defaults overlaid with the settings from path (if path
// is not empty) and then with the environment. The file may use HuJSON
// syntax: comments and trailing commas are permitted.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		std, err := hujson.Standardize(data)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.fromEnv()
	return cfg, nil
}

// fromEnv applies the environment variables understood by the original
// deployment. Unset variables leave the current value alone.
func (c *Config) fromEnv() {
	overlay(&c.ListenAddr, "LISTEN_ADDR")
	overlay(&c.RedisURL, "REDIS_URL")
	overlay(&c.VoyageAPIKey, "VOYAGE_API_KEY")
	overlay(&c.TextModel, "VOYAGE_TEXT_MODEL")
	overlay(&c.ImageModel, "VOYAGE_IMAGE_MODEL")
	overlay(&c.RerankModel, "VOYAGE_RERANK_MODEL")
	overlay(&c.ChatAPIKey, "THESYS_API_KEY")
	overlay(&c.BlobToken, "BLOB_READ_WRITE_TOKEN")
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
