package engine

import (
	"context"
	"testing"

	"github.com/mpajak/betslip/internal/domain"
)

func TestLedgerSettlesAtZeroEdgeExactlyOnce(t *testing.T) {
	// Coupon 1 holds bets on options 100 and 101, both won.
	view := singleView(1, "100.00", []string{"1.5", "2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon, domain.OptionWon})
	view.Coupon.UnresolvedCount = 2

	store := newFakeCouponStore()
	store.add(view)

	settler := NewSettler(store, &fakeBonusStore{}, nil, nil, testLogger())
	ledger := NewLedger(store, settler, testLogger())
	ctx := context.Background()

	if err := ledger.OnOptionResolved(ctx, 100); err != nil {
		t.Fatalf("first resolution: %v", err)
	}
	if len(store.won) != 0 {
		t.Fatal("coupon settled before all bets resolved")
	}
	if store.counts[1] != 1 {
		t.Fatalf("unresolved count = %d, want 1", store.counts[1])
	}

	if err := ledger.OnOptionResolved(ctx, 101); err != nil {
		t.Fatalf("second resolution: %v", err)
	}
	if _, ok := store.won[1]; !ok {
		t.Fatal("coupon not settled at zero edge")
	}

	// A stray duplicate signal after settlement must change nothing.
	prize := store.won[1].prize
	if err := ledger.OnOptionResolved(ctx, 100); err != nil {
		t.Fatalf("duplicate resolution: %v", err)
	}
	if store.counts[1] != 0 {
		t.Errorf("unresolved count = %d after duplicate, want 0", store.counts[1])
	}
	if got := store.won[1].prize; !got.Equal(prize) {
		t.Errorf("prize changed on duplicate signal: %s -> %s", prize, got)
	}
}

func TestLedgerTouchesEveryCouponOnTheOption(t *testing.T) {
	// Both coupons bet on option 100; coupon 1 finishes, coupon 2 still has an
	// unresolved second leg.
	one := singleView(1, "50.00", []string{"2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	one.Coupon.UnresolvedCount = 1

	two := singleView(2, "50.00", []string{"2.0", "1.5"},
		[]domain.WagerOptionStatus{domain.OptionWon, domain.OptionPending})
	two.Coupon.UnresolvedCount = 2
	two.Bets[0].WagerOptionID = 100
	two.Bets[1].WagerOptionID = 200

	store := newFakeCouponStore()
	store.add(one)
	store.add(two)

	settler := NewSettler(store, &fakeBonusStore{}, nil, nil, testLogger())
	ledger := NewLedger(store, settler, testLogger())

	if err := ledger.OnOptionResolved(context.Background(), 100); err != nil {
		t.Fatalf("OnOptionResolved: %v", err)
	}

	if _, ok := store.won[1]; !ok {
		t.Error("coupon 1 should have settled")
	}
	if _, ok := store.won[2]; ok {
		t.Error("coupon 2 settled with a pending leg")
	}
	if store.counts[2] != 1 {
		t.Errorf("coupon 2 unresolved count = %d, want 1", store.counts[2])
	}
}

func TestLedgerIgnoresSettledCoupons(t *testing.T) {
	view := singleView(1, "50.00", []string{"2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	view.Coupon.Status = domain.CouponLost
	view.Coupon.UnresolvedCount = 0

	store := newFakeCouponStore()
	store.add(view)

	settler := NewSettler(store, &fakeBonusStore{}, nil, nil, testLogger())
	ledger := NewLedger(store, settler, testLogger())

	if err := ledger.OnOptionResolved(context.Background(), 100); err != nil {
		t.Fatalf("OnOptionResolved: %v", err)
	}
	if len(store.won) != 0 || len(store.lost) != 0 {
		t.Errorf("settled coupon was re-settled: won=%v lost=%v", store.won, store.lost)
	}
}

func TestLedgerRetriesSettlementOnRedelivery(t *testing.T) {
	view := singleView(1, "100.00", []string{"2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	view.Coupon.UnresolvedCount = 1

	store := newFakeCouponStore()
	store.add(view)
	store.failWon = 1

	settler := NewSettler(store, &fakeBonusStore{}, nil, nil, testLogger())
	ledger := NewLedger(store, settler, testLogger())
	ctx := context.Background()

	// First delivery reaches the zero edge but the settlement write fails.
	if err := ledger.OnOptionResolved(ctx, 100); err == nil {
		t.Fatal("expected error from failed settlement write")
	}
	if store.statuses[1] != domain.CouponPlaced {
		t.Fatalf("status = %s after failed settlement, want PLACED", store.statuses[1])
	}
	if store.counts[1] != 0 {
		t.Fatalf("unresolved count = %d, want 0", store.counts[1])
	}

	// Re-delivering the same signal must retry the settlement, not no-op.
	if err := ledger.OnOptionResolved(ctx, 100); err != nil {
		t.Fatalf("re-delivered resolution: %v", err)
	}
	if _, ok := store.won[1]; !ok {
		t.Fatal("coupon left stuck PLACED with zero unresolved count")
	}
	if store.wonCalls != 2 {
		t.Errorf("SettleWon calls = %d, want 2", store.wonCalls)
	}
}

func TestLedgerCountsEachOptionOnce(t *testing.T) {
	view := singleView(1, "100.00", []string{"1.5", "2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon, domain.OptionWon})
	view.Coupon.UnresolvedCount = 2

	store := newFakeCouponStore()
	store.add(view)

	settler := NewSettler(store, &fakeBonusStore{}, nil, nil, testLogger())
	ledger := NewLedger(store, settler, testLogger())
	ctx := context.Background()

	// The same option delivered three times counts against the coupon once.
	for i := 0; i < 3; i++ {
		if err := ledger.OnOptionResolved(ctx, 100); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if store.counts[1] != 1 {
		t.Fatalf("unresolved count = %d after duplicate deliveries, want 1", store.counts[1])
	}
	if len(store.won) != 0 || len(store.lost) != 0 {
		t.Fatal("coupon settled with an unresolved leg")
	}
}
