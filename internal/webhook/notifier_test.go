package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quadlink/internal/quad"
)

func TestNotifier_posts_quad_updated(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode webhook body: %v", err)
		}
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var state quad.QuadState
	state.Slots[0] = quad.Occupant{ChannelID: "1", Author: "alice", URL: "https://twitch.tv/alice"}

	n := NewNotifier(srv.URL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Notify(context.Background(), state)

	select {
	case body := <-received:
		if body["event"] != "quad_updated" {
			t.Errorf("expected quad_updated event, got %v", body["event"])
		}
		if body["quad"] == nil {
			t.Error("expected quad payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not received")
	}
}

func TestNotifier_swallows_failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Must not panic or propagate anything.
	n.Notify(context.Background(), quad.QuadState{})

	n = NewNotifier("http://127.0.0.1:1/unreachable", 100*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Notify(context.Background(), quad.QuadState{})
}
