package quad

import "testing"

func TestQuadState_Equal(t *testing.T) {
	a := quadWith(Occupant{ChannelID: "1", Author: "alice"})
	b := quadWith(Occupant{ChannelID: "1", Author: "alice"})
	c := quadWith(Occupant{ChannelID: "2", Author: "bob"})

	if !a.Equal(b) {
		t.Error("identical assignments should be equal")
	}
	if a.Equal(c) {
		t.Error("different channel in slot 0 should not be equal")
	}
	if !(QuadState{}).Equal(QuadState{}) {
		t.Error("two empty states should be equal")
	}
}

func TestQuadState_SlotOf_case_insensitive(t *testing.T) {
	q := quadWith(
		Occupant{ChannelID: "1", Author: "Alice"},
		Occupant{ChannelID: "2", Author: "bob"},
	)

	if k, ok := q.SlotOf("alice"); !ok || k != 0 {
		t.Errorf("expected slot 0 for alice, got %d %v", k, ok)
	}
	if k, ok := q.SlotOf("BOB"); !ok || k != 1 {
		t.Errorf("expected slot 1 for BOB, got %d %v", k, ok)
	}
	if _, ok := q.SlotOf("carol"); ok {
		t.Error("carol should not occupy a slot")
	}
}

func TestQuadState_CategoryCounts(t *testing.T) {
	q := quadWith(
		Occupant{ChannelID: "1", Author: "a", Category: "Music"},
		Occupant{ChannelID: "2", Author: "b", Category: "Music"},
		Occupant{ChannelID: "3", Author: "c", Category: "Art"},
	)

	counts := q.CategoryCounts()
	if counts["Music"] != 2 || counts["Art"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestDedup_keeps_higher_priority(t *testing.T) {
	got := Dedup([]ScoredCandidate{
		cand("1", "alice", "Music", 50),
		cand("1", "alice", "Music", 80),
		cand("2", "bob", "Art", 60),
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d", len(got))
	}
	if got[0].ChannelID != "1" || got[0].BasePriority != 80 {
		t.Errorf("expected channel 1 with priority 80, got %v", got[0])
	}
	if got[1].ChannelID != "2" {
		t.Errorf("expected channel 2 second, got %v", got[1])
	}
}

func TestDedup_deterministic_order(t *testing.T) {
	a := Dedup([]ScoredCandidate{cand("b", "b", "", 1), cand("a", "a", "", 1)})
	if a[0].ChannelID != "a" || a[1].ChannelID != "b" {
		t.Errorf("expected channelId ascending, got %v", a)
	}
}
