package quad

import (
	"sort"
	"strings"
)

// SlotCount is the fixed number of display slots in the quad.
const SlotCount = 4

// StreamCandidate is one observable live stream at fetch time.
type StreamCandidate struct {
	ChannelID string // stable identifier, unique per author
	Author    string
	Category  string // may be empty when the platform reports none
	Title     string
	URL       string // playback URL pushed to the display sink
	IsLive    bool
}

// ScoredCandidate is a StreamCandidate annotated with its rule-table priority
// and the working priority mutated during selection.
type ScoredCandidate struct {
	StreamCandidate
	BasePriority     int
	AdjustedPriority int
}

// Occupant describes the stream assigned to a quad slot.
// The zero value means the slot is empty.
type Occupant struct {
	ChannelID string `json:"channel_id"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	URL       string `json:"url"`
}

// Empty reports whether the occupant represents an empty slot.
func (o Occupant) Empty() bool {
	return o.ChannelID == ""
}

// QuadState is the full slot assignment for one cycle. It is a value type
// owned by the daemon's single active cycle; observers only ever see copies.
type QuadState struct {
	Slots [SlotCount]Occupant
}

// IsEmpty reports whether no slot is occupied.
func (q QuadState) IsEmpty() bool {
	for _, o := range q.Slots {
		if !o.Empty() {
			return false
		}
	}
	return true
}

// OccupiedCount returns the number of occupied slots.
func (q QuadState) OccupiedCount() int {
	n := 0
	for _, o := range q.Slots {
		if !o.Empty() {
			n++
		}
	}
	return n
}

// Equal reports whether both states assign the same channel to every slot.
func (q QuadState) Equal(other QuadState) bool {
	for i := range q.Slots {
		if q.Slots[i].ChannelID != other.Slots[i].ChannelID {
			return false
		}
	}
	return true
}

// SlotOf returns the slot index occupied by the given author, if any.
// Author comparison is case-insensitive.
func (q QuadState) SlotOf(author string) (int, bool) {
	for i, o := range q.Slots {
		if !o.Empty() && strings.EqualFold(o.Author, author) {
			return i, true
		}
	}
	return -1, false
}

// CategoryCounts returns the per-category occupancy implied by the occupants.
func (q QuadState) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, o := range q.Slots {
		if !o.Empty() {
			counts[o.Category]++
		}
	}
	return counts
}

// Authors returns the authors of all occupied slots in slot order.
func (q QuadState) Authors() []string {
	authors := make([]string, 0, SlotCount)
	for _, o := range q.Slots {
		if !o.Empty() {
			authors = append(authors, o.Author)
		}
	}
	return authors
}

// Dedup removes candidates sharing a ChannelID, keeping the one with the
// higher base priority. The result is sorted by ChannelID ascending so the
// outcome is deterministic regardless of input order.
func Dedup(candidates []ScoredCandidate) []ScoredCandidate {
	sorted := make([]ScoredCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ChannelID != sorted[j].ChannelID {
			return sorted[i].ChannelID < sorted[j].ChannelID
		}
		return sorted[i].BasePriority > sorted[j].BasePriority
	})

	out := sorted[:0]
	for i, c := range sorted {
		if i > 0 && c.ChannelID == sorted[i-1].ChannelID {
			continue
		}
		out = append(out, c)
	}
	return out
}
