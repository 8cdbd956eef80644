package global

import (
	"context"
	"log/slog"
	"time"

	"github.com/faderpilot/mixctl/internal/dictionary"
)

// PromotedSource yields pairs promoted since a given time. Satisfied by
// [Aggregator] directly; remote deployments put an API client here.
type PromotedSource interface {
	Promoted(ctx context.Context, since time.Time) ([]PairStats, error)
}

// SyncerOption is a functional option for configuring a [Syncer].
type SyncerOption func(*Syncer)

// WithSyncInterval sets the polling interval. Default: 15m.
func WithSyncInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.interval = d
	}
}

// WithSyncLogger sets the syncer's logger. Default: [slog.Default].
func WithSyncLogger(log *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		s.log = log
	}
}

// Syncer periodically merges promoted pairs into the personal dictionary as
// cloud entries. Accounts without the shared-learning entitlement never
// construct a Syncer; entitlement is checked at wiring time, not per poll.
type Syncer struct {
	source   PromotedSource
	dict     dictionary.Store
	interval time.Duration
	log      *slog.Logger

	lastSync time.Time
}

// NewSyncer returns a Syncer merging from source into dict.
func NewSyncer(source PromotedSource, dict dictionary.Store, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		source:   source,
		dict:     dict,
		interval: 15 * time.Minute,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run polls until ctx is done. The first poll happens immediately. Source
// errors are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.syncOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// syncOnce fetches newly promoted pairs and merges them. The sync cursor
// only advances on success, so a failed poll is retried in full.
func (s *Syncer) syncOnce(ctx context.Context) {
	started := time.Now()
	pairs, err := s.source.Promoted(ctx, s.lastSync)
	if err != nil {
		s.log.Warn("global: promoted sync failed", "error", err)
		return
	}
	if len(pairs) == 0 {
		s.lastSync = started
		return
	}

	entries := make([]dictionary.Entry, len(pairs))
	for i, p := range pairs {
		entries[i] = dictionary.Entry{
			Original:    p.Original,
			Replacement: p.Replacement,
			AcceptedAt:  p.PromotedAt,
			Source:      dictionary.SourceCloud,
		}
	}
	changed, err := s.dict.Merge(entries)
	if err != nil {
		s.log.Warn("global: dictionary merge failed", "error", err)
		return
	}
	s.lastSync = started
	s.log.Info("global: promoted pairs synced", "fetched", len(pairs), "merged", changed)
}
