package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"quadlink/internal/platform/config"
	"quadlink/internal/platform/metrics"
	"quadlink/internal/quad"
)

type fakeSource struct {
	candidates []quad.StreamCandidate
	err        error
	calls      int
}

func (s *fakeSource) FetchCandidates(ctx context.Context, channels []string) ([]quad.StreamCandidate, error) {
	s.calls++
	return s.candidates, s.err
}

type fakeSink struct {
	mu      sync.Mutex
	applied []quad.QuadState
	err     error
}

func (s *fakeSink) Apply(ctx context.Context, state quad.QuadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, state)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied)
}

type fakeNotifier struct {
	mu     sync.Mutex
	states []quad.QuadState
}

func (n *fakeNotifier) Notify(ctx context.Context, state quad.QuadState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.states)
}

func testConfig() *config.Config {
	return &config.Config{
		Credentials:     config.Credentials{Username: "u", Secret: "s"},
		Twitch:          config.Twitch{ClientID: "a", ClientSecret: "b"},
		Channels:        []string{"alice", "bob"},
		DefaultPriority: 50,
		StabilityBonus:  30,
		DiversityBonus:  25,
		SlotCount:       4,
	}
}

func liveCandidate(id, author, category string) quad.StreamCandidate {
	return quad.StreamCandidate{
		ChannelID: id,
		Author:    author,
		Category:  category,
		URL:       "https://twitch.tv/" + author,
		IsLive:    true,
	}
}

func newTestDaemon(t *testing.T, source Source, sink Sink, notifier Notifier) *Daemon {
	t.Helper()
	d := New(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.New(), source, sink, notifier, time.Minute, true)
	if err := d.Reload(testConfig()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return d
}

func TestDaemon_pushes_changed_quad(t *testing.T) {
	source := &fakeSource{candidates: []quad.StreamCandidate{
		liveCandidate("1", "alice", "Music"),
		liveCandidate("2", "bob", "Gaming"),
	}}
	sink := &fakeSink{}
	d := newTestDaemon(t, source, sink, nil)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sink.count() != 1 {
		t.Fatalf("expected 1 push, got %d", sink.count())
	}
	snap := d.Snapshot()
	if snap.OccupiedCount() != 2 {
		t.Errorf("expected 2 occupied slots in snapshot, got %d", snap.OccupiedCount())
	}
}

func TestDaemon_fetch_failure_keeps_previous_quad(t *testing.T) {
	source := &fakeSource{candidates: []quad.StreamCandidate{liveCandidate("1", "alice", "Music")}}
	sink := &fakeSink{}
	d := newTestDaemon(t, source, sink, nil)

	_ = d.Run(context.Background())
	before := d.Snapshot()

	source.err = errors.New("twitch is down")
	_ = d.Run(context.Background())

	if !d.Snapshot().Equal(before) {
		t.Error("fetch failure must not change the quad")
	}
	if sink.count() != 1 {
		t.Errorf("fetch failure must not push, got %d pushes", sink.count())
	}
}

func TestDaemon_unchanged_quad_not_pushed(t *testing.T) {
	source := &fakeSource{candidates: []quad.StreamCandidate{liveCandidate("1", "alice", "Music")}}
	sink := &fakeSink{}
	d := newTestDaemon(t, source, sink, nil)

	_ = d.Run(context.Background())
	_ = d.Run(context.Background())

	if sink.count() != 1 {
		t.Errorf("expected exactly 1 push for identical cycles, got %d", sink.count())
	}
}

func TestDaemon_push_failure_still_advances_state(t *testing.T) {
	source := &fakeSource{candidates: []quad.StreamCandidate{liveCandidate("1", "alice", "Music")}}
	sink := &fakeSink{err: errors.New("sink unavailable")}
	d := newTestDaemon(t, source, sink, nil)

	_ = d.Run(context.Background())

	if d.Snapshot().IsEmpty() {
		t.Error("state must advance even when the push fails")
	}

	// The now-committed state means an identical next cycle pushes nothing.
	sink.err = nil
	_ = d.Run(context.Background())
	if sink.count() != 1 {
		t.Errorf("committed state should suppress the second push, got %d", sink.count())
	}
}

func TestDaemon_no_eligible_candidates_keeps_previous_quad(t *testing.T) {
	source := &fakeSource{candidates: []quad.StreamCandidate{liveCandidate("1", "alice", "Music")}}
	sink := &fakeSink{}
	d := newTestDaemon(t, source, sink, nil)

	_ = d.Run(context.Background())
	before := d.Snapshot()

	source.candidates = nil
	_ = d.Run(context.Background())

	if !d.Snapshot().Equal(before) {
		t.Error("empty candidate set is no new information; quad must not change")
	}
}

func TestDaemon_notifies_on_change_only(t *testing.T) {
	source := &fakeSource{candidates: []quad.StreamCandidate{liveCandidate("1", "alice", "Music")}}
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	d := newTestDaemon(t, source, sink, notifier)

	_ = d.Run(context.Background())
	_ = d.Run(context.Background()) // unchanged

	deadline := time.Now().Add(2 * time.Second)
	for notifier.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", notifier.count())
	}
}

func TestDaemon_stability_across_cycles(t *testing.T) {
	// Cycle 1 seats the veteran; cycle 2 offers a same-priority challenger in
	// the same category. Stability must keep the veteran in its slot.
	source := &fakeSource{candidates: []quad.StreamCandidate{
		liveCandidate("old", "veteran", "Music"),
	}}
	sink := &fakeSink{}
	d := newTestDaemon(t, source, sink, nil)
	_ = d.Run(context.Background())

	source.candidates = []quad.StreamCandidate{
		liveCandidate("new", "challenger", "Music"),
		liveCandidate("old", "veteran", "Music"),
	}
	_ = d.Run(context.Background())

	snap := d.Snapshot()
	if snap.Slots[0].ChannelID != "old" {
		t.Errorf("veteran should keep slot 0 across cycles, got %v", snap.Slots)
	}
	if snap.Slots[1].ChannelID != "new" {
		t.Errorf("challenger should take slot 1, got %v", snap.Slots)
	}
}

func TestDaemon_reload_rejects_invalid_patterns(t *testing.T) {
	d := newTestDaemon(t, &fakeSource{}, &fakeSink{}, nil)

	bad := testConfig()
	bad.Filters.BlockCategories = []string{"("}
	if err := d.Reload(bad); err == nil {
		t.Fatal("expected error for invalid filter pattern")
	}

	// Previous runtime stays in effect.
	if !d.Ready() {
		t.Error("daemon should remain ready after a failed reload")
	}
}

func TestDaemon_not_ready_without_config(t *testing.T) {
	d := New(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.New(), &fakeSource{}, &fakeSink{}, nil, time.Minute, true)
	if d.Ready() {
		t.Error("daemon must not be ready before a config is loaded")
	}
	if !d.Snapshot().IsEmpty() {
		t.Error("initial snapshot should be empty")
	}
}
