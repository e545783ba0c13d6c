// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Program w24hd serves the activity-tracking assistant: it ingests
// foreground-application observations and screenshots from the desktop
// agent, and answers questions about them over a streaming chat endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/winmoee/w24h/internal/blob"
	"github.com/winmoee/w24h/internal/chat"
	"github.com/winmoee/w24h/internal/config"
	"github.com/winmoee/w24h/internal/server"
	"github.com/winmoee/w24h/internal/store"
	"github.com/winmoee/w24h/internal/tracker"
	"github.com/winmoee/w24h/internal/vector"
)

var (
	configPath = flag.String("config", "", "Path to the configuration file (optional)")
	listenAddr = flag.String("listen", "", "Listen address (overrides configuration)")
)

func main() {
	flag.Parse()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ropts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("parse redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(ropts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("connect to redis", "addr", ropts.Addr, "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis", "addr", ropts.Addr)

	st := store.New(rdb)
	vec := vector.NewClient(vector.Options{
		BaseURL:     cfg.VoyageBaseURL,
		APIKey:      cfg.VoyageAPIKey,
		TextModel:   cfg.TextModel,
		ImageModel:  cfg.ImageModel,
		RerankModel: cfg.RerankModel,
	})
	trk := tracker.New(st, vec, log)
	runner := &chat.Runner{
		Store:     st,
		Client:    chat.NewClient(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModel),
		Retriever: chat.NewRetriever(st, vec, log),
		Log:       log,
	}
	api := &server.Server{
		Chat:    runner,
		Tracker: trk,
		Blobs:   blob.New(cfg.BlobBaseURL, cfg.BlobToken),
		Suffix:  blob.WithSuffix,
		Log:     log,
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	log.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}
