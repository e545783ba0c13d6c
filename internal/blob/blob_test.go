// Copyright (C) 2026 The w24h Authors. All Rights Reserved.

package blob_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/winmoee/w24h/internal/blob"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method: got %q, want PUT", r.Method)
		}
		if r.URL.Path != "/screenshots/shot.png" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth: got %q", got)
		}
		if got := r.Header.Get("x-access-type"); got != "public" {
			t.Errorf("access type: got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "png bytes" {
			t.Errorf("body: got %q", body)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"url": "https://blobs.example.com/screenshots/shot.png",
		})
	}))
	defer srv.Close()

	cli := blob.New(srv.URL, "tok")
	url, err := cli.Upload(context.Background(), "screenshots/shot.png", "image/png", []byte("png bytes"))
	if err != nil {
		t.Fatalf("Upload: unexpected error: %v", err)
	}
	if want := "https://blobs.example.com/screenshots/shot.png"; url != want {
		t.Errorf("url: got %q, want %q", url, want)
	}
}

func TestUploadNoToken(t *testing.T) {
	cli := blob.New("https://blobs.example.com", "")
	if _, err := cli.Upload(context.Background(), "screenshots/x.png", "image/png", nil); err == nil {
		t.Error("Upload without token: got nil, want error")
	}
}

func TestWithSuffix(t *testing.T) {
	tests := []struct {
		input string
		want  string // regexp
	}{
		{"screenshots/shot.png", `^screenshots/shot-[0-9a-f]{8}\.png$`},
		{"screenshots/a.b.webp", `^screenshots/a\.b-[0-9a-f]{8}\.webp$`},
		{"screenshots/noext", `^screenshots/noext-[0-9a-f]{8}\.png$`},
	}
	for _, test := range tests {
		got := blob.WithSuffix(test.input)
		if ok, err := regexp.MatchString(test.want, got); err != nil || !ok {
			t.Errorf("WithSuffix(%q): got %q, want match for %q", test.input, got, test.want)
		}
	}
}
