package learn

import (
	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/history"
)

// minCompareTokens is the shortest attempt the detector will compare.
// Shorter sequences share too few tokens to distinguish a retry from an
// unrelated command.
const minCompareTokens = 3

// Similar reports whether two token sequences look like the same intended
// command. Comparison is set-based over case and diacritic folded tokens;
// token order and position carry no weight.
//
// With n the token count of the longer sequence, the sequences are similar
// when they share at least n-1 tokens (n <= 5) or n-2 tokens (n >= 6).
// Sequences shorter than 3 tokens are never similar.
func Similar(a, b []string) bool {
	if len(a) < minCompareTokens || len(b) < minCompareTokens {
		return false
	}
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	need := n - 1
	if n >= 6 {
		need = n - 2
	}
	return sharedTokens(a, b) >= need
}

// sharedTokens counts the distinct folded tokens present in both sequences.
func sharedTokens(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[command.FoldToken(t)] = struct{}{}
	}
	shared := 0
	for _, t := range b {
		f := command.FoldToken(t)
		if _, ok := set[f]; ok {
			shared++
			delete(set, f)
		}
	}
	return shared
}

// Detector scans attempt history for failures that a newly compiled attempt
// appears to retry.
type Detector struct {
	proposer *Proposer
}

// NewDetector returns a Detector producing candidates through proposer.
func NewDetector(proposer *Proposer) *Detector {
	return &Detector{proposer: proposer}
}

// Scan walks the session's history backward from the newly compiled attempt
// and returns one candidate per similar prior failure, nearest failure
// first. The scan covers the entire history, not just the latest failure, so
// a chain of misheard retries yields a candidate against each link.
func (d *Detector) Scan(log *history.Log, compiled history.Attempt) []Candidate {
	if len(compiled.Tokens) < minCompareTokens {
		return nil
	}

	// Recent(0) is newest-first with the compiled attempt at the head when it
	// has been recorded already. Only entries older than it are candidates.
	attempts := log.Recent(0)
	for i, a := range attempts {
		if a.ID == compiled.ID {
			attempts = attempts[i+1:]
			break
		}
	}

	var out []Candidate
	for _, prior := range attempts {
		if prior.Outcome != history.OutcomeFailed {
			continue
		}
		if !Similar(prior.Tokens, compiled.Tokens) {
			continue
		}
		if c, ok := d.proposer.Propose(prior, compiled); ok {
			out = append(out, c)
		}
	}
	return out
}
