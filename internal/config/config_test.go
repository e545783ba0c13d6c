// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/winmoee/w24h/internal/config"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w24h.hujson")
	const text = `{
	  // local test instance
	  "listenAddr": ":9999",
	  "redisURL": "redis://cache:6379",
	  "textModel": "voyage-3",  // trailing comma below is fine
	}`
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr: got %q, want %q", cfg.ListenAddr, ":9999")
	}
	if cfg.RedisURL != "redis://cache:6379" {
		t.Errorf("RedisURL: got %q, want %q", cfg.RedisURL, "redis://cache:6379")
	}
	if cfg.TextModel != "voyage-3" {
		t.Errorf("TextModel: got %q, want %q", cfg.TextModel, "voyage-3")
	}

	// Unset fields keep their defaults.
	if want := config.Default().RerankModel; cfg.RerankModel != want {
		t.Errorf("RerankModel: got %q, want default %q", cfg.RerankModel, want)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://override:6379")
	t.Setenv("VOYAGE_API_KEY", "vk-test")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.RedisURL != "redis://override:6379" {
		t.Errorf("RedisURL: got %q, want env override", cfg.RedisURL)
	}
	if cfg.VoyageAPIKey != "vk-test" {
		t.Errorf("VoyageAPIKey: got %q, want %q", cfg.VoyageAPIKey, "vk-test")
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hujson")
	if err := os.WriteFile(path, []byte(`{"listenAddr": }`), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("Load: got nil, want error")
	}
}
