// Package transcript accumulates streamed speech-to-text tokens into turns.
//
// A recognizer delivers partial results word by word; the mixer pipeline only
// acts on whole turns. The [Aggregator] buffers tokens for the current turn
// and hands the completed sequence to the caller on turn end. It performs no
// interpretation: ordering, buffering, and turn boundaries only.
//
// Aggregator is safe for concurrent use.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Token is a single recognized word with its utterance timing.
type Token struct {
	// Text is the recognized word. Tokens with empty text are ignored by
	// [Aggregator.Append].
	Text string

	// Start is the word's offset from the start of the utterance.
	Start time.Duration

	// IsFinal reports whether the recognizer has committed this word or may
	// still revise it. The aggregator stores both; downstream consumers
	// decide what to do with provisional words.
	IsFinal bool
}

// Aggregator buffers the tokens of the in-progress turn.
type Aggregator struct {
	mu     sync.Mutex
	tokens []Token
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append adds a token to the current turn. Tokens with empty text are
// dropped; everything else is kept in arrival order. Append never blocks on
// downstream work.
func (a *Aggregator) Append(t Token) {
	if strings.TrimSpace(t.Text) == "" {
		return
	}
	a.mu.Lock()
	a.tokens = append(a.tokens, t)
	a.mu.Unlock()
}

// Snapshot returns the current turn's text, tokens joined with single
// spaces, without ending the turn.
func (a *Aggregator) Snapshot() string {
	return strings.Join(a.Tokens(), " ")
}

// Tokens returns a copy of the current turn's token texts in arrival order.
func (a *Aggregator) Tokens() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.tokens))
	for i, t := range a.tokens {
		out[i] = t.Text
	}
	return out
}

// Len returns the number of buffered tokens in the current turn.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tokens)
}

// FinalizeTurn ends the current turn, returning its tokens and resetting the
// buffer for the next turn. Finalizing an empty turn returns an empty
// (non-nil) slice.
func (a *Aggregator) FinalizeTurn() []Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	done := a.tokens
	a.tokens = nil
	if done == nil {
		done = []Token{}
	}
	return done
}
