package global

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-memory [Store]. It backs tests and single-node
// deployments that do not run PostgreSQL.
type MemoryStore struct {
	mu    sync.Mutex
	pairs map[PairKey]*pairRecord
}

type pairRecord struct {
	stats         PairStats
	acceptedUsers map[string]bool // user ID → hardware verified
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pairs: make(map[PairKey]*pairRecord)}
}

// RecordProposal implements [Store].
func (m *MemoryStore) RecordProposal(_ context.Context, key PairKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(key).stats.Proposed++
	return nil
}

// RecordAccept implements [Store].
func (m *MemoryStore) RecordAccept(_ context.Context, a Accept) (PairStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(PairKey{Original: a.Original, Replacement: a.Replacement})
	verified, seen := r.acceptedUsers[a.UserID]
	if seen {
		// Dedupe per user. A later verified accept upgrades an earlier
		// unverified one, nothing else changes.
		if a.HardwareVerified && !verified {
			r.acceptedUsers[a.UserID] = true
			r.stats.DistinctVerifiedUsers++
		}
		return r.stats, nil
	}

	r.acceptedUsers[a.UserID] = a.HardwareVerified
	r.stats.Accepted++
	if a.HardwareVerified {
		r.stats.DistinctVerifiedUsers++
	}
	return r.stats, nil
}

// PairsForOriginal implements [Store].
func (m *MemoryStore) PairsForOriginal(_ context.Context, original string) ([]PairStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PairStats
	for key, r := range m.pairs {
		if key.Original == original {
			out = append(out, r.stats)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Replacement < out[j].Replacement })
	return out, nil
}

// SetState implements [Store].
func (m *MemoryStore) SetState(_ context.Context, key PairKey, state PairState, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(key)
	r.stats.State = state
	if state == PairPromoted {
		r.stats.PromotedAt = at
	}
	return nil
}

// Promoted implements [Store].
func (m *MemoryStore) Promoted(_ context.Context, since time.Time) ([]PairStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PairStats
	for _, r := range m.pairs {
		if r.stats.State == PairPromoted && !r.stats.PromotedAt.Before(since) {
			out = append(out, r.stats)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Original < out[j].Original })
	return out, nil
}

// record returns the pair's record, creating it pending when new. Caller
// holds the lock.
func (m *MemoryStore) record(key PairKey) *pairRecord {
	r, ok := m.pairs[key]
	if !ok {
		r = &pairRecord{
			stats:         PairStats{PairKey: key, State: PairPending},
			acceptedUsers: make(map[string]bool),
		}
		m.pairs[key] = r
	}
	return r
}
