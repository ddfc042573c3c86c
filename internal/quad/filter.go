package quad

import (
	"fmt"
	"log/slog"
	"regexp"
)

// RejectReason is a machine-readable reason a candidate was filtered out.
type RejectReason string

const (
	RejectOffline           RejectReason = "OFFLINE"
	RejectCategoryBlocked   RejectReason = "CATEGORY_BLOCK_MATCH"
	RejectCategoryAllowMiss RejectReason = "CATEGORY_ALLOW_MISS"
	RejectTitleBlocked      RejectReason = "TITLE_BLOCK_MATCH"
	RejectTitleAllowMiss    RejectReason = "TITLE_ALLOW_MISS"
)

// FilterConfig holds the raw allow/block regex patterns for the filter engine.
type FilterConfig struct {
	AllowCategories []string
	AllowTitles     []string
	BlockCategories []string
	BlockTitles     []string
}

// FilterEngine applies allow/block rules over category and title. Patterns
// are compiled once at construction; an unparseable pattern is a
// configuration error, never a per-cycle failure.
type FilterEngine struct {
	allowCategories []*regexp.Regexp
	allowTitles     []*regexp.Regexp
	blockCategories []*regexp.Regexp
	blockTitles     []*regexp.Regexp
	log             *slog.Logger
}

// NewFilterEngine compiles cfg into a FilterEngine. log may be nil to
// disable reject logging (e.g. in tests).
func NewFilterEngine(cfg FilterConfig, log *slog.Logger) (*FilterEngine, error) {
	f := &FilterEngine{log: log}

	var err error
	if f.allowCategories, err = compilePatterns(cfg.AllowCategories); err != nil {
		return nil, fmt.Errorf("allow_categories: %w", err)
	}
	if f.allowTitles, err = compilePatterns(cfg.AllowTitles); err != nil {
		return nil, fmt.Errorf("allow_titles: %w", err)
	}
	if f.blockCategories, err = compilePatterns(cfg.BlockCategories); err != nil {
		return nil, fmt.Errorf("block_categories: %w", err)
	}
	if f.blockTitles, err = compilePatterns(cfg.BlockTitles); err != nil {
		return nil, fmt.Errorf("block_titles: %w", err)
	}

	return f, nil
}

// Apply returns the subset of candidates that are live, not matched by any
// block rule, and (if allow rules exist for a dimension) matched by at least
// one allow rule for that dimension. Block rules take precedence over allow
// rules; no allow rules means allow all not blocked.
func (f *FilterEngine) Apply(candidates []StreamCandidate) []StreamCandidate {
	out := make([]StreamCandidate, 0, len(candidates))
	for _, c := range candidates {
		if reason, ok := f.check(c); !ok {
			if f.log != nil {
				f.log.Debug("candidate rejected",
					slog.String("author", c.Author),
					slog.String("category", c.Category),
					slog.String("reason", string(reason)))
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *FilterEngine) check(c StreamCandidate) (RejectReason, bool) {
	if !c.IsLive {
		return RejectOffline, false
	}
	if matchesAny(c.Category, f.blockCategories) {
		return RejectCategoryBlocked, false
	}
	if len(f.allowCategories) > 0 && !matchesAny(c.Category, f.allowCategories) {
		return RejectCategoryAllowMiss, false
	}
	if matchesAny(c.Title, f.blockTitles) {
		return RejectTitleBlocked, false
	}
	if len(f.allowTitles) > 0 && !matchesAny(c.Title, f.allowTitles) {
		return RejectTitleAllowMiss, false
	}
	return "", true
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
