// Package daemon runs the periodic selection cycle: fetch candidates,
// filter, assign priorities, select the next quad against the previous one,
// and push the result when it changed.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"quadlink/internal/platform/config"
	"quadlink/internal/platform/metrics"
	"quadlink/internal/quad"
)

// Source is the metadata collaborator: it resolves tracked channels into
// stream candidates. A failure means "no new information this cycle".
type Source interface {
	FetchCandidates(ctx context.Context, channels []string) ([]quad.StreamCandidate, error)
}

// Sink is the display collaborator that applies a new quad state.
type Sink interface {
	Apply(ctx context.Context, state quad.QuadState) error
}

// Notifier is invoked fire-and-forget with each changed quad state.
type Notifier interface {
	Notify(ctx context.Context, state quad.QuadState)
}

// runtime is everything derived from one config snapshot. It is replaced
// wholesale on reload so a cycle always sees one consistent view.
type runtime struct {
	cfg      *config.Config
	filters  *quad.FilterEngine
	rules    *quad.RuleTable
	selector *quad.Selector
}

func newRuntime(cfg *config.Config, log *slog.Logger) (*runtime, error) {
	filters, err := quad.NewFilterEngine(quad.FilterConfig{
		AllowCategories: cfg.Filters.AllowCategories,
		AllowTitles:     cfg.Filters.AllowTitles,
		BlockCategories: cfg.Filters.BlockCategories,
		BlockTitles:     cfg.Filters.BlockTitles,
	}, log)
	if err != nil {
		return nil, err
	}

	ruleConfigs := make([]quad.PriorityRuleConfig, 0, len(cfg.PriorityRules))
	for _, r := range cfg.PriorityRules {
		ruleConfigs = append(ruleConfigs, quad.PriorityRuleConfig{
			Category: r.Category,
			Author:   r.Author,
			Title:    r.Title,
			Priority: r.Priority,
		})
	}
	rules, err := quad.NewRuleTable(ruleConfigs, cfg.DefaultPriority)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		filters:  filters,
		rules:    rules,
		selector: quad.NewSelector(cfg.StabilityBonus, cfg.DiversityBonus),
	}, nil
}

// Daemon owns the single active cycle. previous is written only by the
// cycle loop; observers read the latest state through Snapshot.
type Daemon struct {
	log      *slog.Logger
	met      *metrics.Metrics
	source   Source
	sink     Sink
	notifier Notifier // nil when webhooks are disabled

	interval time.Duration
	oneShot  bool

	mu sync.RWMutex
	rt *runtime

	previous quad.QuadState
	snapshot atomic.Value // quad.QuadState
}

// New constructs a Daemon. Reload must be called with a valid config before
// Run; a startup config error is fatal and surfaces there.
func New(log *slog.Logger, met *metrics.Metrics, source Source, sink Sink, notifier Notifier, interval time.Duration, oneShot bool) *Daemon {
	d := &Daemon{
		log:      log,
		met:      met,
		source:   source,
		sink:     sink,
		notifier: notifier,
		interval: interval,
		oneShot:  oneShot,
	}
	d.snapshot.Store(quad.QuadState{})
	return d
}

// Reload builds a new runtime from cfg and swaps it in atomically. On error
// the previous runtime stays in effect, so an invalid reload never takes
// down a running daemon; at startup the caller treats the error as fatal.
func (d *Daemon) Reload(cfg *config.Config) error {
	rt, err := newRuntime(cfg, d.log)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.rt = rt
	d.mu.Unlock()
	return nil
}

// Ready reports whether a config has been loaded. Used by the health server.
func (d *Daemon) Ready() bool {
	return d.currentRuntime() != nil
}

// Snapshot returns the latest computed quad state. Safe for concurrent use;
// the returned value is a copy and mutating it has no effect.
func (d *Daemon) Snapshot() quad.QuadState {
	return d.snapshot.Load().(quad.QuadState)
}

// Run executes cycles until ctx is cancelled, or once in one-shot mode.
// The first cycle runs immediately.
func (d *Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.runCycle(ctx)

		if d.oneShot {
			return nil
		}

		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle performs one full selection cycle. Selection itself is pure and
// always runs to completion; only the fetch and push collaborators touch
// the network.
func (d *Daemon) runCycle(ctx context.Context) {
	rt := d.currentRuntime()
	if rt == nil {
		d.log.Error("no config loaded, skipping cycle")
		return
	}

	d.met.IncCycles()

	candidates, err := d.source.FetchCandidates(ctx, rt.cfg.Channels)
	if err != nil {
		// No new information: keep the previous quad untouched.
		d.log.Warn("candidate fetch failed, keeping previous quad",
			slog.String("error", err.Error()))
		d.met.IncFetchErrors()
		return
	}

	eligible := rt.filters.Apply(candidates)
	d.met.SetCandidates(len(eligible))

	if len(eligible) == 0 {
		d.log.Info("no eligible candidates, keeping previous quad")
		return
	}

	scored := rt.rules.Assign(eligible)
	next := rt.selector.Select(scored, d.previous)
	d.met.SetOccupiedSlots(next.OccupiedCount())

	if next.Equal(d.previous) {
		d.log.Debug("quad unchanged")
		return
	}

	d.logChange(d.previous, next)

	// The new state becomes the daemon's truth before the push: a failed
	// push must not feed stale stability bonuses into the next cycle.
	d.previous = next
	d.snapshot.Store(next)
	d.met.IncQuadUpdates()

	if err := d.sink.Apply(ctx, next); err != nil {
		d.log.Error("quad push failed", slog.String("error", err.Error()))
		d.met.IncPushErrors()
	}

	if d.notifier != nil {
		d.met.IncWebhooksSent()
		go d.notifier.Notify(context.WithoutCancel(ctx), next)
	}
}

func (d *Daemon) currentRuntime() *runtime {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rt
}

func (d *Daemon) logChange(previous, next quad.QuadState) {
	prevAuthors := make(map[string]bool)
	for _, a := range previous.Authors() {
		prevAuthors[a] = true
	}
	nextAuthors := make(map[string]bool)
	for _, a := range next.Authors() {
		nextAuthors[a] = true
	}

	var added, removed []string
	for _, a := range next.Authors() {
		if !prevAuthors[a] {
			added = append(added, a)
		}
	}
	for _, a := range previous.Authors() {
		if !nextAuthors[a] {
			removed = append(removed, a)
		}
	}

	d.log.Info("quad changed",
		slog.Any("streams", next.Authors()),
		slog.Any("added", added),
		slog.Any("removed", removed))
}
