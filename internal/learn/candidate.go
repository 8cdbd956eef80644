// Package learn turns failed-then-successful command retries into dictionary
// correction proposals.
//
// The [Detector] compares every newly compiled attempt against the session's
// prior failures using a set-based shared-token rule. Each qualifying failure
// yields one [Candidate] via the [Proposer], which diffs the two attempts and
// picks the single most plausible word substitution. Candidates are shown to
// the user one at a time through the [Queue]; accepting one feeds the
// personal dictionary, while rejection and expiry store nothing.
package learn

import (
	"github.com/google/uuid"
)

// State is the lifecycle of a correction candidate.
type State int

const (
	// StateProposed means the candidate is queued or on display.
	StateProposed State = iota

	// StateAccepted means the user confirmed the substitution.
	StateAccepted

	// StateRejected means the user declined the substitution.
	StateRejected

	// StateExpired means the display window lapsed with no decision.
	// Equivalent to reject for the dictionary, but the same word pair may be
	// proposed again from a different attempt pair.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateExpired:
		return "expired"
	default:
		return "proposed"
	}
}

// Candidate is a proposed word substitution derived from one failed attempt
// and the successful retry that followed it.
type Candidate struct {
	// ID identifies the candidate.
	ID uuid.UUID

	// From is the misheard word, present in the failed attempt only.
	From string

	// To is the replacement, present in the successful attempt only.
	To string

	// SourceAttemptID is the failed attempt the pair was derived from.
	SourceAttemptID uuid.UUID

	// TargetAttemptID is the successful attempt.
	TargetAttemptID uuid.UUID

	// Score is the Jaro-Winkler similarity between From and To.
	Score float64

	// State is the candidate's current lifecycle state.
	State State
}
