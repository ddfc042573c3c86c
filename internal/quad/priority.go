package quad

import (
	"fmt"
	"regexp"
)

// PriorityRuleConfig is one entry of the ordered priority rule table.
// Each non-empty field is a regex the candidate must match; a rule with no
// fields set matches every candidate (useful as a catch-all).
type PriorityRuleConfig struct {
	Category string
	Author   string
	Title    string
	Priority int
}

type compiledRule struct {
	category *regexp.Regexp
	author   *regexp.Regexp
	title    *regexp.Regexp
	priority int
}

// RuleTable maps candidates to base priorities. Rules are evaluated in
// configured order; the first matching rule wins. Candidates matching no
// rule receive the default priority.
type RuleTable struct {
	rules           []compiledRule
	defaultPriority int
}

// NewRuleTable compiles the given rules, preserving their order exactly.
func NewRuleTable(rules []PriorityRuleConfig, defaultPriority int) (*RuleTable, error) {
	t := &RuleTable{defaultPriority: defaultPriority}

	for i, r := range rules {
		cr := compiledRule{priority: r.Priority}
		var err error
		if cr.category, err = compileOptional(r.Category); err != nil {
			return nil, fmt.Errorf("priority rule %d category: %w", i, err)
		}
		if cr.author, err = compileOptional(r.Author); err != nil {
			return nil, fmt.Errorf("priority rule %d author: %w", i, err)
		}
		if cr.title, err = compileOptional(r.Title); err != nil {
			return nil, fmt.Errorf("priority rule %d title: %w", i, err)
		}
		t.rules = append(t.rules, cr)
	}

	return t, nil
}

// DefaultPriority returns the priority assigned when no rule matches.
func (t *RuleTable) DefaultPriority() int {
	return t.defaultPriority
}

// Assign annotates each candidate with the priority of its first matching
// rule. Pure function of (candidates, table); AdjustedPriority starts equal
// to BasePriority and is only changed later by the selector.
func (t *RuleTable) Assign(candidates []StreamCandidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		p := t.priorityFor(c)
		scored = append(scored, ScoredCandidate{
			StreamCandidate:  c,
			BasePriority:     p,
			AdjustedPriority: p,
		})
	}
	return scored
}

func (t *RuleTable) priorityFor(c StreamCandidate) int {
	for _, r := range t.rules {
		if r.matches(c) {
			return r.priority
		}
	}
	return t.defaultPriority
}

func (r compiledRule) matches(c StreamCandidate) bool {
	if r.category != nil && !r.category.MatchString(c.Category) {
		return false
	}
	if r.author != nil && !r.author.MatchString(c.Author) {
		return false
	}
	if r.title != nil && !r.title.MatchString(c.Title) {
		return false
	}
	return true
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}
