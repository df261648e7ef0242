package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/network-extractor/internal/llm"
)

func TestClient_Generate(t *testing.T) {
	var got map[string]any
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"[{\"id\":"},{"text":"\"1\"}]"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Model: "gemini-test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	text, err := c.Generate(context.Background(), llm.ExtractRequest{
		Instruction: "extract",
		Document:    []byte("%PDF-1.4"),
		MIMEType:    "application/pdf",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `[{"id":"1"}]` {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "k" {
		t.Errorf("api key header = %q", gotKey)
	}
	contents := got["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	if inline["mime_type"] != "application/pdf" {
		t.Errorf("mime_type = %v", inline["mime_type"])
	}
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":"quota"}`, "429"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, "no candidates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
			_, err := c.Generate(context.Background(), llm.ExtractRequest{Instruction: "x", Text: "rows"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Generate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
