// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

// Package server exposes the HTTP surface: the streaming chat endpoint and
// the capture ingest endpoints used by the desktop agent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/winmoee/w24h/internal/chat"
	"github.com/winmoee/w24h/internal/store"
)

// maxUploadBytes caps a single screenshot upload.
const maxUploadBytes = 20 << 20

// A ChatRunner executes one chat turn, emitting SSE frames through emit.
type ChatRunner interface {
	Run(ctx context.Context, req chat.Request, emit func(string) error) error
}

// An ActivityTracker ingests foreground-application observations and
// captured frames.
type ActivityTracker interface {
	Observe(ctx context.Context, appName string, ts int64) (string, error)
	RecordFrame(ctx context.Context, f *store.Frame) (string, error)
}

// A BlobStore uploads screenshot bytes and returns their public URL.
type BlobStore interface {
	Upload(ctx context.Context, pathname, contentType string, data []byte) (string, error)
}

// A Server routes the HTTP API.
type Server struct {
	Chat    ChatRunner
	Tracker ActivityTracker
	Blobs   BlobStore
	Suffix  func(pathname string) string // randomizes upload pathnames
	Log     *slog.Logger
}

// Handler returns the routed handler for the API, with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /api/activity", s.handleActivity)
	mux.HandleFunc("POST /api/screenshot-upload", s.handleScreenshotUpload)
	return allowCORS(mux)
}

// allowCORS admits browser clients from any origin. The API carries no
// cookies or ambient credentials.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" || req.Prompt.Content == "" {
		http.Error(w, "threadId and prompt are required", http.StatusBadRequest)
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(frame string) error {
		if err := r.Context().Err(); err != nil {
			return err
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return err
		}
		fl.Flush()
		return nil
	}
	if err := s.Chat.Run(r.Context(), req, emit); err != nil && !errors.Is(err, context.Canceled) {
		s.Log.Error("chat turn", "thread", req.ThreadID, "error", err)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppName     string `json:"appName"`
		WindowTitle string `json:"windowTitle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppName == "" {
		http.Error(w, "appName is required", http.StatusBadRequest)
		return
	}
	episodeID, err := s.Tracker.Observe(r.Context(), req.AppName, time.Now().UnixMilli())
	if err != nil {
		s.Log.Error("observe activity", "app", req.AppName, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"app_name":   req.AppName,
		"episode_id": episodeID,
	})
}

// allowedImageTypes lists the screenshot content types accepted for upload.
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

func (s *Server) handleScreenshotUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		http.Error(w, fmt.Sprintf("unsupported content type %q", contentType), http.StatusBadRequest)
		return
	}
	pathname := r.FormValue("pathname")
	if !strings.HasPrefix(pathname, "screenshots/") {
		http.Error(w, "pathname must start with screenshots/", http.StatusBadRequest)
		return
	}
	appName := r.FormValue("app_name")
	if appName == "" {
		http.Error(w, "app_name is required", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}
	pathname = s.Suffix(pathname)

	// A failed blob upload is tolerated: the frame is still recorded, it
	// just has no public URL and gets no image embedding.
	blobURL, err := s.Blobs.Upload(r.Context(), pathname, contentType, data)
	if err != nil {
		s.Log.Warn("upload screenshot blob", "pathname", pathname, "error", err)
		blobURL = ""
	}

	frame := &store.Frame{
		ID:             uuid.NewString(),
		TS:             time.Now().UnixMilli(),
		AppName:        appName,
		WindowTitle:    r.FormValue("window_title"),
		ScreenshotPath: r.FormValue("local_path"),
		BlobURL:        blobURL,
		FileSize:       int64(len(data)),
		ContentType:    contentType,
	}
	episodeID, err := s.Tracker.RecordFrame(r.Context(), frame)
	if err != nil {
		s.Log.Error("record frame", "app", appName, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"frame_id":    frame.ID,
		"episode_id":  episodeID,
		"url":         blobURL,
		"pathname":    pathname,
		"contentType": contentType,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
