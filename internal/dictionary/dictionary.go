// Package dictionary holds a user's learned word substitutions.
//
// Entries are flat original→replacement pairs applied token-by-token before
// grammar matching, regardless of command type. An accepted correction takes
// effect on the very next compile in the session. Rejecting a candidate
// stores nothing, so the same pair may be proposed again later.
//
// Entries carry provenance: locally accepted corrections are tagged local,
// pairs merged from the shared dictionary are tagged cloud. Merging is
// last-writer-wins per original key, so a local entry holds until a newer
// cloud entry arrives.
package dictionary

import (
	"sort"
	"sync"
	"time"

	"github.com/faderpilot/mixctl/internal/command"
)

// Source tags where an entry came from.
type Source string

const (
	// SourceLocal marks an entry the user accepted on this device.
	SourceLocal Source = "local"

	// SourceCloud marks an entry merged from the shared dictionary.
	SourceCloud Source = "cloud"
)

// Entry is one learned substitution, keyed by Original.
type Entry struct {
	Original    string    `json:"original"`
	Replacement string    `json:"replacement"`
	AcceptedAt  time.Time `json:"accepted_at"`
	Source      Source    `json:"source"`
}

// Store is the dictionary contract used by the compiler and the accept flow.
//
// Implementations must be safe for concurrent use: Apply runs on the compile
// path while Accept and Merge run from the confirmation and sync paths.
type Store interface {
	// Apply returns tokens with every exact-match substitution applied.
	// Matching is case and diacritic insensitive; the input is not modified.
	Apply(tokens []string) []string

	// Accept inserts or overwrites the entry for original, tagged local with
	// the current time, and returns the stored entry.
	Accept(original, replacement string) (Entry, error)

	// Lookup returns the entry for original, if any.
	Lookup(original string) (Entry, bool)

	// Entries returns all entries sorted by Original.
	Entries() []Entry

	// Merge folds cloud entries in, last-writer-wins per Original key.
	// It returns the number of entries that were inserted or replaced.
	Merge(entries []Entry) (int, error)

	// Len returns the number of stored entries.
	Len() int
}

// Memory is the in-memory [Store]. It backs the file store and serves tests
// and ephemeral sessions.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*Memory)(nil)
var _ command.Dictionary = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Apply implements [Store].
func (m *Memory) Apply(tokens []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(tokens))
	for i, t := range tokens {
		if e, ok := m.entries[command.FoldToken(t)]; ok {
			out[i] = e.Replacement
			continue
		}
		out[i] = t
	}
	return out
}

// Accept implements [Store].
func (m *Memory) Accept(original, replacement string) (Entry, error) {
	e := Entry{
		Original:    command.FoldToken(original),
		Replacement: command.FoldToken(replacement),
		AcceptedAt:  time.Now(),
		Source:      SourceLocal,
	}
	m.mu.Lock()
	m.entries[e.Original] = e
	m.mu.Unlock()
	return e, nil
}

// Lookup implements [Store].
func (m *Memory) Lookup(original string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[command.FoldToken(original)]
	return e, ok
}

// Entries implements [Store].
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Original < out[j].Original })
	return out
}

// Merge implements [Store].
func (m *Memory) Merge(entries []Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, e := range entries {
		e.Original = command.FoldToken(e.Original)
		e.Replacement = command.FoldToken(e.Replacement)
		if e.Source == "" {
			e.Source = SourceCloud
		}
		cur, ok := m.entries[e.Original]
		if ok && !e.AcceptedAt.After(cur.AcceptedAt) {
			continue
		}
		m.entries[e.Original] = e
		changed++
	}
	return changed, nil
}

// Len implements [Store].
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
