package learn

import (
	"github.com/antzucaro/matchr"
	"github.com/google/uuid"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/history"
)

// Proposer derives a word substitution from a failed attempt and the
// successful retry that followed it.
type Proposer struct{}

// NewProposer returns a Proposer.
func NewProposer() *Proposer {
	return &Proposer{}
}

// Propose diffs the failed attempt against the successful one and returns a
// candidate for the most plausible substitution.
//
// The diff is word-level, not an edit-distance alignment: tokens present in
// the failed attempt but absent from the successful one are the removals,
// and vice versa for additions. A single removal and a single addition pair
// directly. When the diff is ambiguous, every removal-addition pair is
// ranked and the best one surfaces: pairs of tokens that each occur exactly
// once in their attempt are preferred, then higher Jaro-Winkler similarity,
// then smaller positional distance.
//
// ok is false when either side of the diff is empty, meaning the retry
// changed nothing worth learning.
func (p *Proposer) Propose(failed, compiled history.Attempt) (Candidate, bool) {
	failedTokens := foldAll(failed.Tokens)
	successTokens := foldAll(compiled.Tokens)

	removed := missingFrom(failedTokens, successTokens)
	added := missingFrom(successTokens, failedTokens)
	if len(removed) == 0 || len(added) == 0 {
		return Candidate{}, false
	}

	failedCounts := tokenCounts(failedTokens)
	successCounts := tokenCounts(successTokens)

	var best pair
	first := true
	for _, r := range removed {
		for _, a := range added {
			cand := pair{
				from:       r,
				to:         a,
				unique:     failedCounts[r.text] == 1 && successCounts[a.text] == 1,
				similarity: matchr.JaroWinkler(r.text, a.text, false),
			}
			if first || cand.better(best) {
				best = cand
				first = false
			}
		}
	}

	return Candidate{
		ID:              uuid.New(),
		From:            best.from.text,
		To:              best.to.text,
		SourceAttemptID: failed.ID,
		TargetAttemptID: compiled.ID,
		Score:           best.similarity,
		State:           StateProposed,
	}, true
}

// indexedToken is a folded token with its position in the attempt.
type indexedToken struct {
	text string
	pos  int
}

// pair is one removal-addition pairing under consideration.
type pair struct {
	from, to   indexedToken
	unique     bool
	similarity float64
}

// better ranks pairs: frequency-distinct tokens first, then string
// similarity, then positional proximity.
func (p pair) better(q pair) bool {
	if p.unique != q.unique {
		return p.unique
	}
	if p.similarity != q.similarity {
		return p.similarity > q.similarity
	}
	return p.dist() < q.dist()
}

func (p pair) dist() int {
	d := p.from.pos - p.to.pos
	if d < 0 {
		d = -d
	}
	return d
}

func foldAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = command.FoldToken(t)
	}
	return out
}

// missingFrom returns the tokens of a, in order with positions, whose folded
// text does not occur anywhere in b.
func missingFrom(a, b []string) []indexedToken {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	var out []indexedToken
	for i, t := range a {
		if _, ok := set[t]; !ok {
			out = append(out, indexedToken{text: t, pos: i})
		}
	}
	return out
}

func tokenCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

