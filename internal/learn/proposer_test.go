package learn_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/faderpilot/mixctl/internal/history"
	"github.com/faderpilot/mixctl/internal/learn"
)

func attempt(tokens ...string) history.Attempt {
	return history.Attempt{ID: uuid.New(), Tokens: tokens}
}

func TestPropose_SingleSubstitution(t *testing.T) {
	t.Parallel()
	p := learn.NewProposer()

	failed := attempt("set", "channel", "4", "to", "verse", "7")
	success := attempt("set", "channel", "4", "to", "bus", "7")

	c, ok := p.Propose(failed, success)
	if !ok {
		t.Fatal("Propose returned no candidate")
	}
	if c.From != "verse" || c.To != "bus" {
		t.Errorf("got %q→%q, want verse→bus", c.From, c.To)
	}
	if c.SourceAttemptID != failed.ID || c.TargetAttemptID != success.ID {
		t.Error("candidate does not reference its attempt pair")
	}
}

func TestPropose_NoDiffNoCandidate(t *testing.T) {
	t.Parallel()
	p := learn.NewProposer()

	// Same tokens reordered: nothing removed, nothing added.
	failed := attempt("channel", "4", "mute", "now")
	success := attempt("mute", "now", "channel", "4")

	if _, ok := p.Propose(failed, success); ok {
		t.Error("Propose produced a candidate from an empty diff")
	}

	// Removal with no addition (retry merely dropped a word).
	failed = attempt("set", "channel", "4", "to", "unity", "please")
	success = attempt("set", "channel", "4", "to", "unity")
	if _, ok := p.Propose(failed, success); ok {
		t.Error("Propose produced a candidate with no replacement side")
	}
}

func TestPropose_AmbiguousDiffPicksClosestPair(t *testing.T) {
	t.Parallel()
	p := learn.NewProposer()

	// Two substitutions happened at once; "verse"→"bus" is the far more
	// string-similar pairing than "verse"→"nine" or "seven"→"bus".
	failed := attempt("send", "channel", "4", "to", "verse", "seven")
	success := attempt("send", "channel", "4", "to", "bus", "nine")

	c, ok := p.Propose(failed, success)
	if !ok {
		t.Fatal("Propose returned no candidate")
	}
	if c.From == "verse" && c.To == "nine" {
		t.Errorf("picked cross pairing %q→%q", c.From, c.To)
	}
	if c.From == "seven" && c.To == "bus" {
		t.Errorf("picked cross pairing %q→%q", c.From, c.To)
	}
}

func TestPropose_RepeatedTokensPreferDistinctPair(t *testing.T) {
	t.Parallel()
	p := learn.NewProposer()

	// "send" and "route" each repeat; "verse" and "bus" occur once apiece.
	// The frequency-distinct pair must win over any pairing that involves a
	// repeated token.
	failed := attempt("send", "send", "channel", "4", "to", "verse")
	success := attempt("route", "route", "channel", "4", "to", "bus")

	c, ok := p.Propose(failed, success)
	if !ok {
		t.Fatal("Propose returned no candidate")
	}
	if c.From != "verse" || c.To != "bus" {
		t.Errorf("got %q→%q, want verse→bus", c.From, c.To)
	}
}
