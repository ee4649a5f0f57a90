package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGeminiGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Goog-Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		img := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"`+img+`"}}]}}]}`)
	}))
	defer srv.Close()

	g := NewGemini(GeminiOptions{APIKey: "key", Model: "gemini-test", BaseURL: srv.URL + "/v1beta"}, discardLogger())
	res, err := g.Generate(context.Background(), Request{Prompt: "draw", BaseImage: []byte("base"), BaseMIME: "image/jpeg", AspectRatio: "4:3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Images) != 1 || string(res.Images[0].Data) != "png-bytes" || res.Images[0].MIMEType != "image/png" {
		t.Errorf("images = %+v", res.Images)
	}
	if !strings.Contains(res.Warning, `"16:9"`) {
		t.Errorf("warning = %q", res.Warning)
	}

	if got.GenerationConfig.ImageConfig.AspectRatio != "16:9" {
		t.Errorf("aspect ratio sent = %q", got.GenerationConfig.ImageConfig.AspectRatio)
	}
	if len(got.GenerationConfig.ResponseModalities) != 1 || got.GenerationConfig.ResponseModalities[0] != "IMAGE" {
		t.Errorf("modalities = %v", got.GenerationConfig.ResponseModalities)
	}
	parts := got.Contents[0].Parts
	if parts[0].Text != "draw" || parts[1].InlineData.MIMEType != "image/jpeg" ||
		parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("base")) {
		t.Errorf("parts = %+v", parts)
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource exhausted"}}`, 429, "Resource exhausted"},
		{"non json", http.StatusBadGateway, `upstream down`, 502, "Gemini API error"},
		{"no image", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`, 200, "No images found in response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			g := NewGemini(GeminiOptions{APIKey: "k", Model: "models/m", BaseURL: srv.URL}, discardLogger())
			_, err := g.Generate(context.Background(), Request{Prompt: "p", BaseImage: []byte("b")})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.wantStatus || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v", apiErr)
			}
			if len(apiErr.Details) == 0 || !json.Valid(apiErr.Details) {
				t.Errorf("details = %s", apiErr.Details)
			}
		})
	}
}

func TestGeminiValidatesRequest(t *testing.T) {
	g := NewGemini(GeminiOptions{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, discardLogger())
	tests := []struct {
		name string
		req  Request
	}{
		{"no model", Request{Prompt: "p", BaseImage: []byte("b")}},
		{"no prompt", Request{Model: "m", BaseImage: []byte("b")}},
		{"no image", Request{Model: "m", Prompt: "p"}},
	}
	for _, tt := range tests {
		_, err := g.Generate(context.Background(), tt.req)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
			t.Errorf("%s: error = %v", tt.name, err)
		}
	}
}
