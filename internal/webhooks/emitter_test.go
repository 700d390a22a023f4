package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dokubo/veriseal/internal/trend"
	"github.com/dokubo/veriseal/internal/verdict"
)

func newTestEmitter(store Store) *Emitter {
	return NewEmitter(newTestDispatcher(store), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEmitterDeliversVerdictToSlowEndpoint(t *testing.T) {
	store := NewMemoryStore()

	// The endpoint responds slower than the emit call returns; delivery
	// must survive the emitter moving on.
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		received.Add(1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:       "wh1",
		OwnerRef: "owner-a",
		URL:      server.URL,
		Events:   []EventType{EventVerificationDecided},
		Active:   true,
	})

	e := newTestEmitter(store)
	e.EmitVerdict("owner-a", &verdict.Result{
		SubmissionID: "sub_1",
		Verdict:      verdict.VerdictReject,
		Score:        0.31,
		DecidedAt:    time.Now(),
	})

	deadline := time.Now().Add(2 * time.Second)
	for received.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if received.Load() != 1 {
		t.Fatalf("Expected 1 delivery, got %d", received.Load())
	}

	sub, _ := store.Get(ctx, "wh1")
	if sub.LastSuccess == nil {
		t.Error("Expected lastSuccess after delivery")
	}
	if sub.LastError != "" {
		t.Errorf("Expected no lastError, got %q", sub.LastError)
	}
}

func TestEmitterDeliversTrendWarning(t *testing.T) {
	store := NewMemoryStore()

	var gotBody atomic.Pointer[[]byte]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(&body)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "wh1",
		URL:    server.URL,
		Events: []EventType{EventTrendWarning},
		Active: true,
	})

	e := newTestEmitter(store)
	e.Notify(ctx, &trend.WarningEvent{
		Fingerprint:   "fp123",
		Attributes:    trend.Signature{Merchant: "cafe luna", RefShape: "TXN-#"},
		Count:         3,
		DistinctOwner: 2,
	})

	deadline := time.Now().Add(2 * time.Second)
	for gotBody.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	body := gotBody.Load()
	if body == nil {
		t.Fatal("Expected trend.warning delivery")
	}

	var parsed Event
	if err := json.Unmarshal(*body, &parsed); err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}
	if parsed.Type != EventTrendWarning {
		t.Errorf("Expected type trend.warning, got %s", parsed.Type)
	}
	if parsed.Data["fingerprint"] != "fp123" {
		t.Errorf("Expected fingerprint in payload, got %v", parsed.Data["fingerprint"])
	}
}

func TestDispatchDeliveryOutlivesCallerContext(t *testing.T) {
	store := NewMemoryStore()

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		received.Add(1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	store.Create(context.Background(), &Subscription{
		ID:     "wh1",
		URL:    server.URL,
		Events: []EventType{EventTrendWarning},
		Active: true,
	})

	d := newTestDispatcher(store)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Dispatch(ctx, &Event{Type: EventTrendWarning, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	// The caller is done the moment Dispatch returns.
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for received.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if received.Load() != 1 {
		t.Fatalf("Expected delivery despite cancelled caller context, got %d", received.Load())
	}

	sub, _ := store.Get(context.Background(), "wh1")
	if sub.ConsecutiveFailures != 0 {
		t.Errorf("Expected no failures, got %d (lastError %q)", sub.ConsecutiveFailures, sub.LastError)
	}
}
