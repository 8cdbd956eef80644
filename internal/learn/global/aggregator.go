package global

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Announcer publishes promoted-pair announcements. Satisfied by
// [PromotedAnnouncer].
type Announcer interface {
	AnnouncePromoted(ctx context.Context, stats PairStats) error
}

// AggregatorOption is a functional option for configuring an [Aggregator].
type AggregatorOption func(*Aggregator)

// WithAnnouncer sets the promotion announcer. Default: none; promotions are
// only logged.
func WithAnnouncer(ann Announcer) AggregatorOption {
	return func(a *Aggregator) {
		a.announcer = ann
	}
}

// WithPromotionThreshold sets the distinct verified-user count at which a
// pair is promoted. Default: [DefaultPromotionThreshold].
func WithPromotionThreshold(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.threshold = n
	}
}

// WithAggregatorLogger sets the aggregator's logger. Default: [slog.Default].
func WithAggregatorLogger(log *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.log = log
	}
}

// Aggregator applies the promotion and conflict rules on top of a [Store].
type Aggregator struct {
	store     Store
	threshold int
	announcer Announcer
	log       *slog.Logger
}

// NewAggregator returns an Aggregator over store.
func NewAggregator(store Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:     store,
		threshold: DefaultPromotionThreshold,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RecordProposal notes that the pair was proposed to some user. Feeds the
// acceptance-rate denominator.
func (a *Aggregator) RecordProposal(ctx context.Context, key PairKey) error {
	return a.store.RecordProposal(ctx, key)
}

// RecordAccept folds an accept event in and applies the promotion rule:
// crossing the threshold promotes the pair, unless another replacement for
// the same original has also crossed it, in which case both are marked
// conflicted and left for manual resolution.
func (a *Aggregator) RecordAccept(ctx context.Context, acc Accept) error {
	stats, err := a.store.RecordAccept(ctx, acc)
	if err != nil {
		return fmt.Errorf("global: record accept: %w", err)
	}
	if stats.State != PairPending || stats.DistinctVerifiedUsers < a.threshold {
		return nil
	}

	siblings, err := a.store.PairsForOriginal(ctx, stats.Original)
	if err != nil {
		return fmt.Errorf("global: list pairs for %q: %w", stats.Original, err)
	}

	now := time.Now()
	for _, sib := range siblings {
		if sib.Replacement == stats.Replacement {
			continue
		}
		if sib.State == PairPromoted || sib.State == PairConflicted || sib.DistinctVerifiedUsers >= a.threshold {
			// Competing replacement past threshold: hold both for a human.
			a.log.Warn("global: conflicting replacements past threshold",
				"original", stats.Original,
				"replacement", stats.Replacement,
				"competing", sib.Replacement)
			if err := a.store.SetState(ctx, stats.PairKey, PairConflicted, now); err != nil {
				return fmt.Errorf("global: mark conflicted: %w", err)
			}
			if err := a.store.SetState(ctx, sib.PairKey, PairConflicted, now); err != nil {
				return fmt.Errorf("global: mark conflicted: %w", err)
			}
			return nil
		}
	}

	a.log.Info("global: pair promoted",
		"original", stats.Original,
		"replacement", stats.Replacement,
		"distinct_verified_users", stats.DistinctVerifiedUsers)
	if err := a.store.SetState(ctx, stats.PairKey, PairPromoted, now); err != nil {
		return fmt.Errorf("global: promote: %w", err)
	}
	stats.State = PairPromoted
	stats.PromotedAt = now
	a.announce(ctx, stats)
	return nil
}

// announce publishes a promotion, best effort. A failed announcement never
// rolls back the promotion; clients also pick it up on their next sync poll.
func (a *Aggregator) announce(ctx context.Context, stats PairStats) {
	if a.announcer == nil {
		return
	}
	if err := a.announcer.AnnouncePromoted(ctx, stats); err != nil {
		a.log.Warn("global: promotion announcement failed",
			"original", stats.Original,
			"replacement", stats.Replacement,
			"error", err)
	}
}

// Resolve settles a conflict by hand: the chosen replacement is promoted and
// every competing pair for the same original is retired.
func (a *Aggregator) Resolve(ctx context.Context, original, replacement string) error {
	siblings, err := a.store.PairsForOriginal(ctx, original)
	if err != nil {
		return fmt.Errorf("global: list pairs for %q: %w", original, err)
	}

	found := false
	now := time.Now()
	for _, sib := range siblings {
		if sib.Replacement == replacement {
			found = true
			if err := a.store.SetState(ctx, sib.PairKey, PairPromoted, now); err != nil {
				return fmt.Errorf("global: promote resolved pair: %w", err)
			}
			sib.State = PairPromoted
			sib.PromotedAt = now
			a.announce(ctx, sib)
			continue
		}
		if err := a.store.SetState(ctx, sib.PairKey, PairRetired, now); err != nil {
			return fmt.Errorf("global: retire competing pair: %w", err)
		}
	}
	if !found {
		return fmt.Errorf("global: resolve %q: no pair with replacement %q", original, replacement)
	}
	return nil
}

// Conflicts returns the pairs for original together with their acceptance
// statistics, for the manual-resolution surface.
func (a *Aggregator) Conflicts(ctx context.Context, original string) ([]PairStats, error) {
	return a.store.PairsForOriginal(ctx, original)
}

// Promoted returns pairs promoted at or after since, for client sync.
func (a *Aggregator) Promoted(ctx context.Context, since time.Time) ([]PairStats, error) {
	return a.store.Promoted(ctx, since)
}
