package quad

import "strings"

// Default tunables for the selection scoring.
const (
	DefaultStabilityBonus = 30
	DefaultDiversityBonus = 25
)

// Selector turns scored candidates into a new quad assignment. Selection is
// a greedy, order-dependent loop: the diversity bonus and saturation penalty
// for a candidate depend on which streams have already been chosen in the
// current pass, so category adjustments are recomputed fresh at every
// iteration rather than precomputed once.
//
// Selection is pure computation: no I/O, no randomness, no clock. Given
// identical candidates, previous state, and tunables, the output is always
// identical.
type Selector struct {
	stabilityBonus int
	diversityBonus int
}

// NewSelector returns a Selector with the given tunables. Non-positive
// values fall back to the defaults; configuration validation rejects them
// before this point in normal operation.
func NewSelector(stabilityBonus, diversityBonus int) *Selector {
	if stabilityBonus <= 0 {
		stabilityBonus = DefaultStabilityBonus
	}
	if diversityBonus <= 0 {
		diversityBonus = DefaultDiversityBonus
	}
	return &Selector{stabilityBonus: stabilityBonus, diversityBonus: diversityBonus}
}

// Select computes the next quad state from the scored candidates and the
// previous cycle's state. A partial or empty quad is a valid result, never
// an error.
func (s *Selector) Select(scored []ScoredCandidate, previous QuadState) QuadState {
	pool := Dedup(scored)

	// Stability adjustment: applied once, before the greedy loop.
	for i := range pool {
		pool[i].AdjustedPriority = pool[i].BasePriority
		if _, ok := previous.SlotOf(pool[i].Author); ok {
			pool[i].AdjustedPriority += s.stabilityBonus
		}
	}

	selected := s.selectGreedy(pool)
	return assignSlots(selected, previous)
}

// selectGreedy runs up to SlotCount iterations, each time recomputing the
// transient score of every remaining candidate against the categories
// selected so far and picking the highest.
func (s *Selector) selectGreedy(pool []ScoredCandidate) []ScoredCandidate {
	var selected []ScoredCandidate
	selectedCount := make(map[string]int)

	for len(selected) < SlotCount && len(pool) > 0 {
		best := 0
		bestScore := pool[0].AdjustedPriority + s.categoryAdjustment(selectedCount[pool[0].Category])
		for i := 1; i < len(pool); i++ {
			score := pool[i].AdjustedPriority + s.categoryAdjustment(selectedCount[pool[i].Category])
			if score > bestScore || (score == bestScore && breaksTie(pool[i], pool[best])) {
				best = i
				bestScore = score
			}
		}

		pick := pool[best]
		selected = append(selected, pick)
		selectedCount[pick.Category]++

		// One stream per author: drop the pick and any same-author entries.
		remaining := pool[:0]
		for _, c := range pool {
			if !strings.EqualFold(c.Author, pick.Author) {
				remaining = append(remaining, c)
			}
		}
		pool = remaining
	}

	return selected
}

// categoryAdjustment returns the transient score adjustment for a candidate
// whose category already has n selections in the current pass: a one-time
// diversity bonus for the first of a category, then a graduated saturation
// penalty. Integer division truncates toward zero, so with the default
// bonus of 25 the penalties are -8, -16, -25.
func (s *Selector) categoryAdjustment(n int) int {
	switch {
	case n == 0:
		return s.diversityBonus
	case n == 1:
		return -s.diversityBonus / 3
	case n == 2:
		return -2 * s.diversityBonus / 3
	default:
		return -s.diversityBonus
	}
}

// breaksTie reports whether a should be preferred over b when their
// transient scores are equal: higher base priority first, then ChannelID
// ascending.
func breaksTie(a, b ScoredCandidate) bool {
	if a.BasePriority != b.BasePriority {
		return a.BasePriority > b.BasePriority
	}
	return a.ChannelID < b.ChannelID
}

// assignSlots places selected streams into slots, preserving the previous
// slot of any author retained across cycles. Remaining streams fill the
// free slots lowest-index-first in the order they were selected.
func assignSlots(selected []ScoredCandidate, previous QuadState) QuadState {
	var next QuadState

	var newcomers []ScoredCandidate
	for _, c := range selected {
		if k, ok := previous.SlotOf(c.Author); ok {
			next.Slots[k] = occupant(c)
		} else {
			newcomers = append(newcomers, c)
		}
	}

	i := 0
	for k := 0; k < SlotCount && i < len(newcomers); k++ {
		if next.Slots[k].Empty() {
			next.Slots[k] = occupant(newcomers[i])
			i++
		}
	}

	return next
}

func occupant(c ScoredCandidate) Occupant {
	return Occupant{
		ChannelID: c.ChannelID,
		Author:    c.Author,
		Category:  c.Category,
		URL:       c.URL,
	}
}
