// Package history keeps the per-session log of command attempts.
//
// Every finalized turn produces exactly one [Attempt], whether or not it
// compiled. The log is append-only and event-sourced: downstream consumers
// (retry-similarity scanning, dispatch bookkeeping, status surfaces) read
// projections of it, and nothing ever rewrites a recorded attempt apart from
// the one-shot dispatch outcome.
//
// Log is safe for concurrent use, though the pipeline writes from a single
// goroutine per session.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faderpilot/mixctl/internal/command"
)

// Outcome is the compile result of an attempt.
type Outcome int

const (
	// OutcomeFailed means no command was produced. The attempt stays in the
	// log for retry-similarity comparison.
	OutcomeFailed Outcome = iota

	// OutcomeCompiled means the attempt produced at least one command.
	OutcomeCompiled
)

func (o Outcome) String() string {
	if o == OutcomeCompiled {
		return "compiled"
	}
	return "failed"
}

// DispatchState tracks what the device did with a compiled attempt.
type DispatchState int

const (
	// DispatchNone is the initial state: not yet sent, or never compiled.
	DispatchNone DispatchState = iota

	// DispatchAcknowledged means the console confirmed the command.
	DispatchAcknowledged

	// DispatchRejected means the console refused the command.
	DispatchRejected

	// DispatchTimedOut means no console response arrived in time.
	DispatchTimedOut
)

func (s DispatchState) String() string {
	switch s {
	case DispatchAcknowledged:
		return "acknowledged"
	case DispatchRejected:
		return "rejected"
	case DispatchTimedOut:
		return "timed_out"
	default:
		return "none"
	}
}

// Attempt is one parse cycle over a finalized turn's token sequence.
type Attempt struct {
	// ID identifies the attempt across the session.
	ID uuid.UUID

	// SessionID names the owning session.
	SessionID string

	// Tokens is the turn's token sequence as spoken, before normalization.
	Tokens []string

	// Timestamp is when the turn finalized.
	Timestamp time.Time

	// Outcome is the compile result.
	Outcome Outcome

	// Reason is set when Outcome is [OutcomeFailed].
	Reason command.FailReason

	// Commands holds the compiled commands when Outcome is [OutcomeCompiled].
	Commands []command.Command

	// Dispatch is the device outcome, recorded asynchronously after send.
	Dispatch DispatchState

	// HardwareVerified reports whether a live device link existed when the
	// dispatch outcome was recorded.
	HardwareVerified bool
}

// Log is the append-only attempt log for one session.
type Log struct {
	sessionID string
	log       *slog.Logger

	mu       sync.RWMutex
	attempts []Attempt
	byID     map[uuid.UUID]int
}

// NewLog returns an empty log for the given session.
func NewLog(sessionID string, log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{
		sessionID: sessionID,
		log:       log,
		byID:      make(map[uuid.UUID]int),
	}
}

// Record appends an attempt and returns its assigned ID. The attempt's
// SessionID and, when zero, ID and Timestamp are filled in.
func (l *Log) Record(a Attempt) uuid.UUID {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	a.SessionID = l.sessionID

	l.mu.Lock()
	l.byID[a.ID] = len(l.attempts)
	l.attempts = append(l.attempts, a)
	l.mu.Unlock()
	return a.ID
}

// Recent returns up to limit attempts ordered newest-first. limit <= 0
// returns the whole log.
func (l *Log) Recent(limit int) []Attempt {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.attempts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Attempt, 0, n)
	for i := len(l.attempts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.attempts[i])
	}
	return out
}

// Get returns the attempt with the given ID.
func (l *Log) Get(id uuid.UUID) (Attempt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Attempt{}, false
	}
	return l.attempts[i], true
}

// Len returns the number of recorded attempts.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.attempts)
}

// MarkDispatched records the device outcome for a compiled attempt. The
// outcome is set once; later calls for the same attempt are ignored. An
// unknown ID is logged and ignored.
func (l *Log) MarkDispatched(id uuid.UUID, state DispatchState, hardwareVerified bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[id]
	if !ok {
		l.log.Warn("history: markDispatched for unknown attempt",
			"session_id", l.sessionID, "attempt_id", id)
		return
	}
	if l.attempts[i].Dispatch != DispatchNone {
		return
	}
	l.attempts[i].Dispatch = state
	l.attempts[i].HardwareVerified = hardwareVerified
}

// Clear drops every recorded attempt. Called when the session ends.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = nil
	l.byID = make(map[uuid.UUID]int)
}
