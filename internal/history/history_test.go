package history_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/history"
)

func TestLog_RecordAndRecentNewestFirst(t *testing.T) {
	t.Parallel()
	l := history.NewLog("s1", nil)

	first := l.Record(history.Attempt{Tokens: []string{"mute", "channel", "1"}, Outcome: history.OutcomeCompiled})
	l.Record(history.Attempt{Tokens: []string{"set", "channel", "4", "to", "verse", "7"}, Outcome: history.OutcomeFailed, Reason: command.FailNoGrammarMatch})
	third := l.Record(history.Attempt{Tokens: []string{"set", "channel", "4", "to", "bus", "7"}, Outcome: history.OutcomeCompiled})

	recent := l.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d attempts", len(recent))
	}
	if recent[0].ID != third {
		t.Errorf("Recent[0].ID=%v, want newest %v", recent[0].ID, third)
	}

	all := l.Recent(0)
	if len(all) != 3 {
		t.Fatalf("Recent(0) returned %d attempts, want 3", len(all))
	}
	if all[2].ID != first {
		t.Errorf("Recent(0) last=%v, want oldest %v", all[2].ID, first)
	}
	for _, a := range all {
		if a.SessionID != "s1" {
			t.Errorf("attempt %v has SessionID=%q", a.ID, a.SessionID)
		}
	}
}

func TestLog_MarkDispatchedSetOnce(t *testing.T) {
	t.Parallel()
	l := history.NewLog("s1", nil)

	id := l.Record(history.Attempt{Tokens: []string{"mute", "channel", "1"}, Outcome: history.OutcomeCompiled})

	l.MarkDispatched(id, history.DispatchAcknowledged, true)
	l.MarkDispatched(id, history.DispatchRejected, false)

	a, ok := l.Get(id)
	if !ok {
		t.Fatal("recorded attempt not found")
	}
	if a.Dispatch != history.DispatchAcknowledged {
		t.Errorf("Dispatch=%v, want acknowledged (first write wins)", a.Dispatch)
	}
	if !a.HardwareVerified {
		t.Error("HardwareVerified=false, want true from first write")
	}
}

func TestLog_MarkDispatchedUnknownIgnored(t *testing.T) {
	t.Parallel()
	l := history.NewLog("s1", nil)

	// Best-effort bookkeeping: an unknown attempt must not panic or grow the log.
	l.MarkDispatched(uuid.New(), history.DispatchAcknowledged, true)
	if l.Len() != 0 {
		t.Errorf("Len=%d after unknown markDispatched, want 0", l.Len())
	}
}

func TestLog_Clear(t *testing.T) {
	t.Parallel()
	l := history.NewLog("s1", nil)

	id := l.Record(history.Attempt{Tokens: []string{"mute", "channel", "1"}})
	l.Clear()

	if l.Len() != 0 {
		t.Errorf("Len=%d after Clear, want 0", l.Len())
	}
	if _, ok := l.Get(id); ok {
		t.Error("Get found an attempt after Clear")
	}
}
