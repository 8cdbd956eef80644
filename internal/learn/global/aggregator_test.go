package global_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/faderpilot/mixctl/internal/dictionary"
	"github.com/faderpilot/mixctl/internal/learn/global"
)

func acceptFrom(user string, verified bool) global.Accept {
	return global.Accept{
		Original:         "verse",
		Replacement:      "bus",
		UserID:           user,
		HardwareVerified: verified,
	}
}

func pairOf(t *testing.T, store global.Store, original, replacement string) global.PairStats {
	t.Helper()
	pairs, err := store.PairsForOriginal(context.Background(), original)
	if err != nil {
		t.Fatalf("PairsForOriginal: %v", err)
	}
	for _, p := range pairs {
		if p.Replacement == replacement {
			return p
		}
	}
	t.Fatalf("pair %s→%s not found", original, replacement)
	return global.PairStats{}
}

func TestAggregator_PromotionAtThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := global.NewMemoryStore()
	agg := global.NewAggregator(store, global.WithPromotionThreshold(3))

	for i := 0; i < 2; i++ {
		if err := agg.RecordAccept(ctx, acceptFrom(fmt.Sprintf("user-%d", i), true)); err != nil {
			t.Fatalf("RecordAccept: %v", err)
		}
	}
	if got := pairOf(t, store, "verse", "bus"); got.State != global.PairPending {
		t.Fatalf("State=%v below threshold, want pending", got.State)
	}

	if err := agg.RecordAccept(ctx, acceptFrom("user-2", true)); err != nil {
		t.Fatalf("RecordAccept: %v", err)
	}
	got := pairOf(t, store, "verse", "bus")
	if got.State != global.PairPromoted {
		t.Errorf("State=%v at threshold, want promoted", got.State)
	}
	if got.PromotedAt.IsZero() {
		t.Error("PromotedAt not set")
	}
}

func TestAggregator_UnverifiedAcceptsNeverPromote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := global.NewMemoryStore()
	agg := global.NewAggregator(store, global.WithPromotionThreshold(3))

	for i := 0; i < 100; i++ {
		if err := agg.RecordAccept(ctx, acceptFrom(fmt.Sprintf("user-%d", i), false)); err != nil {
			t.Fatalf("RecordAccept: %v", err)
		}
	}

	got := pairOf(t, store, "verse", "bus")
	if got.DistinctVerifiedUsers != 0 {
		t.Errorf("DistinctVerifiedUsers=%d from unverified accepts, want 0", got.DistinctVerifiedUsers)
	}
	if got.State != global.PairPending {
		t.Errorf("State=%v, want pending", got.State)
	}
	if got.Accepted != 100 {
		t.Errorf("Accepted=%d, want 100 (stats still count unverified)", got.Accepted)
	}
}

func TestAggregator_SameUserCountsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := global.NewMemoryStore()
	agg := global.NewAggregator(store, global.WithPromotionThreshold(3))

	for i := 0; i < 10; i++ {
		if err := agg.RecordAccept(ctx, acceptFrom("same-user", true)); err != nil {
			t.Fatalf("RecordAccept: %v", err)
		}
	}

	got := pairOf(t, store, "verse", "bus")
	if got.DistinctVerifiedUsers != 1 {
		t.Errorf("DistinctVerifiedUsers=%d, want 1", got.DistinctVerifiedUsers)
	}
	if got.Accepted != 1 {
		t.Errorf("Accepted=%d, want 1 after dedupe", got.Accepted)
	}
}

func TestAggregator_ConflictHeldForManualResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := global.NewMemoryStore()
	agg := global.NewAggregator(store, global.WithPromotionThreshold(2))

	// First replacement crosses threshold and promotes.
	for i := 0; i < 2; i++ {
		a := acceptFrom(fmt.Sprintf("bus-user-%d", i), true)
		if err := agg.RecordAccept(ctx, a); err != nil {
			t.Fatalf("RecordAccept: %v", err)
		}
	}

	// A competing replacement for the same original also crosses it.
	for i := 0; i < 2; i++ {
		a := global.Accept{Original: "verse", Replacement: "aux", UserID: fmt.Sprintf("aux-user-%d", i), HardwareVerified: true}
		if err := agg.RecordAccept(ctx, a); err != nil {
			t.Fatalf("RecordAccept: %v", err)
		}
	}

	if got := pairOf(t, store, "verse", "aux"); got.State != global.PairConflicted {
		t.Errorf("competing pair State=%v, want conflicted", got.State)
	}
	if got := pairOf(t, store, "verse", "bus"); got.State != global.PairConflicted {
		t.Errorf("first pair State=%v, want conflicted (held, not auto-resolved)", got.State)
	}

	// Manual resolution promotes one side and retires the other.
	if err := agg.Resolve(ctx, "verse", "bus"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := pairOf(t, store, "verse", "bus"); got.State != global.PairPromoted {
		t.Errorf("resolved pair State=%v, want promoted", got.State)
	}
	if got := pairOf(t, store, "verse", "aux"); got.State != global.PairRetired {
		t.Errorf("losing pair State=%v, want retired", got.State)
	}
}

type recordingAnnouncer struct {
	announced []global.PairStats
}

func (r *recordingAnnouncer) AnnouncePromoted(_ context.Context, stats global.PairStats) error {
	r.announced = append(r.announced, stats)
	return nil
}

func TestAggregator_PromotionAnnounced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ann := &recordingAnnouncer{}
	agg := global.NewAggregator(global.NewMemoryStore(),
		global.WithPromotionThreshold(2),
		global.WithAnnouncer(ann),
	)

	for i := 0; i < 2; i++ {
		if err := agg.RecordAccept(ctx, acceptFrom(fmt.Sprintf("user-%d", i), true)); err != nil {
			t.Fatalf("RecordAccept: %v", err)
		}
	}

	if len(ann.announced) != 1 {
		t.Fatalf("announced %d promotions, want 1", len(ann.announced))
	}
	got := ann.announced[0]
	if got.Original != "verse" || got.Replacement != "bus" {
		t.Errorf("announced %s→%s, want verse→bus", got.Original, got.Replacement)
	}
	if got.State != global.PairPromoted || got.PromotedAt.IsZero() {
		t.Errorf("announced stats %+v, want promoted with PromotedAt set", got)
	}
}

func TestPairStats_AcceptanceRate(t *testing.T) {
	t.Parallel()

	s := global.PairStats{Proposed: 8, Accepted: 2}
	if got := s.AcceptanceRate(); got != 0.25 {
		t.Errorf("AcceptanceRate=%v, want 0.25", got)
	}
	if got := (global.PairStats{}).AcceptanceRate(); got != 0 {
		t.Errorf("AcceptanceRate on empty stats=%v, want 0", got)
	}
}

func TestSyncer_MergesPromotedAsCloudEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := global.NewMemoryStore()
	agg := global.NewAggregator(store, global.WithPromotionThreshold(1))

	if err := agg.RecordAccept(ctx, acceptFrom("u1", true)); err != nil {
		t.Fatalf("RecordAccept: %v", err)
	}

	dict := dictionary.NewMemory()
	syncer := global.NewSyncer(agg, dict, global.WithSyncInterval(time.Hour))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		syncer.Run(runCtx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for dict.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("promoted pair never reached the dictionary")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	e, ok := dict.Lookup("verse")
	if !ok {
		t.Fatal("promoted pair missing from dictionary")
	}
	if e.Replacement != "bus" || e.Source != dictionary.SourceCloud {
		t.Errorf("merged entry %+v, want bus with cloud provenance", e)
	}
}
