package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPCaptchaSolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req solveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		image, _ := base64.StdEncoding.DecodeString(req.Image)
		if string(image) != "PNGDATA" {
			json.NewEncoder(w).Encode(solveResponse{Status: 0, Error: "unreadable"})
			return
		}
		json.NewEncoder(w).Encode(solveResponse{Status: 1, Text: " W7XK "})
	}))
	defer srv.Close()

	solver := NewHTTPCaptchaSolver(srv.URL, "key-1", nil)
	text, err := solver.Solve(context.Background(), []byte("PNGDATA"))
	if err != nil || text != "W7XK" {
		t.Fatalf("unexpected solve result %q, %v", text, err)
	}

	if _, err := solver.Solve(context.Background(), []byte("noise")); err == nil {
		t.Error("expected failure for unsolved captcha")
	}

	unauthorized := NewHTTPCaptchaSolver(srv.URL, "wrong", nil)
	if _, err := unauthorized.Solve(context.Background(), []byte("PNGDATA")); err == nil {
		t.Error("expected failure for rejected api key")
	}
}
