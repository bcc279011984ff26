package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	configpkg "github.com/minhyannv/limerick-bot-go/pkg/config"
)

type recordedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, body string, got *recordedRequest, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			if err := json.Unmarshal(raw, got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completionBody(contents ...string) string {
	choices := make([]map[string]any, 0, len(contents))
	for i, c := range contents {
		choices = append(choices, map[string]any{
			"index":         i,
			"finish_reason": "stop",
			"logprobs":      nil,
			"message": map[string]any{
				"role":    "assistant",
				"content": c,
				"refusal": nil,
			},
		})
	}
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "o4-mini",
		"choices": choices,
	})
	return string(b)
}

func testConfig(baseURL string) configpkg.Config {
	cfg := configpkg.DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = baseURL + "/v1/"
	return cfg
}

func TestGenerateReturnsFirstChoiceTrimmed(t *testing.T) {
	var req recordedRequest
	var hits atomic.Int32
	srv := completionServer(t, http.StatusOK, completionBody("\n  There once was a model  \n", "second"), &req, &hits)

	text, err := New(testConfig(srv.URL)).Generate(context.Background(), "Write a limerick")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "There once was a model" {
		t.Fatalf("unexpected text %q", text)
	}
	if req.Model != configpkg.DefaultModel {
		t.Fatalf("expected model %q, got %q", configpkg.DefaultModel, req.Model)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "Write a limerick" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	var hits atomic.Int32
	srv := completionServer(t, http.StatusOK, completionBody(), nil, &hits)

	_, err := New(testConfig(srv.URL)).Generate(context.Background(), "Write a limerick")
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if genErr.Reason != "completion returned no choices" {
		t.Fatalf("unexpected reason %q", genErr.Reason)
	}
}

func TestGenerateEmptyContent(t *testing.T) {
	var hits atomic.Int32
	srv := completionServer(t, http.StatusOK, completionBody("   "), nil, &hits)

	_, err := New(testConfig(srv.URL)).Generate(context.Background(), "Write a limerick")
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if genErr.Reason != "completion content is empty" {
		t.Fatalf("unexpected reason %q", genErr.Reason)
	}
}

func TestGenerateDoesNotRetryServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := completionServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil, &hits)

	_, err := New(testConfig(srv.URL)).Generate(context.Background(), "Write a limerick")
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if genErr.Err == nil {
		t.Fatal("expected wrapped transport error")
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	_, err := New(testConfig("http://127.0.0.1:1")).Generate(context.Background(), " ")
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}
