// Package global aggregates accepted corrections across users into a shared
// dictionary.
//
// Every locally accepted correction is reported as an [Accept] event. The
// [Aggregator] counts the distinct users who accepted the same word pair
// while a live console connection was verified; once enough independent
// verified users agree (default 5) the pair is promoted and delivered to all
// clients on their next sync. Competing replacements for the same original
// are never auto-resolved: the pairs are marked conflicted and held for
// manual curation, with acceptance-rate statistics as decision support.
package global

import (
	"context"
	"time"
)

// DefaultPromotionThreshold is the number of distinct hardware-verified
// users required to promote a pair.
const DefaultPromotionThreshold = 5

// Accept is the event emitted when a user accepts a correction candidate.
type Accept struct {
	// Original is the misheard word, folded.
	Original string `json:"original"`

	// Replacement is the accepted substitution, folded.
	Replacement string `json:"replacement"`

	// UserID is an opaque user identifier. It is used only for distinct
	// counting and carries no account data.
	UserID string `json:"user_id"`

	// HardwareVerified reports whether a live console link existed when the
	// user accepted. Unverified accepts are stored for statistics but never
	// count toward promotion.
	HardwareVerified bool `json:"hardware_verified"`

	// AcceptedAt is when the user accepted.
	AcceptedAt time.Time `json:"accepted_at"`
}

// Reporter delivers accept events to the aggregation backend.
//
// Implementations must be safe for concurrent use and must not block the
// accept flow on delivery problems.
type Reporter interface {
	// ReportAccept submits one accept event. Errors indicate delivery
	// failure only; the local accept has already taken effect.
	ReportAccept(ctx context.Context, a Accept) error
}

// PairState is the aggregation state of one original→replacement pair.
type PairState string

const (
	// PairPending means the pair has not crossed the promotion threshold.
	PairPending PairState = "pending"

	// PairPromoted means the pair is part of the shared dictionary.
	PairPromoted PairState = "promoted"

	// PairConflicted means another replacement for the same original also
	// crossed the threshold. Held for manual resolution.
	PairConflicted PairState = "conflicted"

	// PairRetired means manual resolution picked a competing replacement.
	PairRetired PairState = "retired"
)

// PairKey identifies an original→replacement pair.
type PairKey struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// PairStats is the aggregated record of one pair.
type PairStats struct {
	PairKey

	// Proposed counts how many times the pair was proposed to any user.
	Proposed int

	// Accepted counts how many accept events arrived, verified or not.
	Accepted int

	// DistinctVerifiedUsers counts distinct users whose accept was
	// hardware-verified. Promotion is decided on this number alone.
	DistinctVerifiedUsers int

	// State is the pair's aggregation state.
	State PairState

	// PromotedAt is set when State became [PairPromoted].
	PromotedAt time.Time
}

// AcceptanceRate returns accepted ÷ proposed, or 0 when nothing was
// proposed. Decision-support data for manual conflict resolution, never an
// automatic tiebreaker.
func (s PairStats) AcceptanceRate() float64 {
	if s.Proposed == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Proposed)
}

// Store is the persistence backend of the [Aggregator].
//
// Implementations must be safe for concurrent use.
type Store interface {
	// RecordProposal increments the pair's proposal counter, creating the
	// pair in [PairPending] state when new.
	RecordProposal(ctx context.Context, key PairKey) error

	// RecordAccept folds one accept event into the pair and returns the
	// updated stats. Accepts are deduplicated per user: the same user
	// accepting the same pair again changes nothing. Unverified accepts
	// increment Accepted but never DistinctVerifiedUsers.
	RecordAccept(ctx context.Context, a Accept) (PairStats, error)

	// PairsForOriginal returns every known pair for the given original.
	PairsForOriginal(ctx context.Context, original string) ([]PairStats, error)

	// SetState moves a pair to the given state. For [PairPromoted], at is
	// recorded as the promotion time.
	SetState(ctx context.Context, key PairKey, state PairState, at time.Time) error

	// Promoted returns pairs promoted at or after since.
	Promoted(ctx context.Context, since time.Time) ([]PairStats, error)
}
