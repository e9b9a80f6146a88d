package addetect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeCompletion(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
}

func TestCompleteRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		writeCompletion(w, "recovered")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(ClientConfig{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithRetryBackoff(time.Second, 10*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	content, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("content = %q", content)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("backoff = %v, want [1s 2s]", slept)
	}
}

func TestCompleteHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "4")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(ClientConfig{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	if _, err := client.Complete(context.Background(), "prompt"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(slept) != 1 || slept[0] != 4*time.Second {
		t.Fatalf("slept = %v, want [4s]", slept)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(time.Duration) {}))

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retries)", calls.Load())
	}
}

func TestCompleteRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeCompletion(w, "")
			return
		}
		writeCompletion(w, "second try")
	}))
	defer server.Close()

	client := NewClient(ClientConfig{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(time.Duration) {}))

	content, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != "second try" {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithSleeper(func(time.Duration) {}))

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteRequiresPromptAndKey(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "k"})
	if _, err := client.Complete(context.Background(), "  "); err == nil {
		t.Error("blank prompt accepted")
	}
	client = NewClient(ClientConfig{})
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Error("missing key accepted")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("7"); !ok || d != 7*time.Second {
		t.Errorf("parseRetryAfter(7) = %v, %v", d, ok)
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Error("empty header parsed")
	}
	if _, ok := parseRetryAfter("-2"); ok {
		t.Error("negative seconds parsed")
	}
	if _, ok := parseRetryAfter("not a date"); ok {
		t.Error("garbage parsed")
	}
}
