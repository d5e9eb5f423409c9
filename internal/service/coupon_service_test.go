package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- fakes -----------------------------------------------------------------

type createdCoupon struct {
	coupon domain.Coupon
	stakes []domain.ParticipantStake
}

type fakeCouponStore struct {
	created []createdCoupon
	nextID  int64
}

func (f *fakeCouponStore) Create(_ context.Context, c *domain.Coupon, stakes []domain.ParticipantStake) (int64, error) {
	f.nextID++
	c.ID = f.nextID
	f.created = append(f.created, createdCoupon{coupon: *c, stakes: stakes})
	return f.nextID, nil
}

func (f *fakeCouponStore) GetByID(_ context.Context, id int64) (domain.Coupon, error) {
	for _, cc := range f.created {
		if cc.coupon.ID == id {
			return cc.coupon, nil
		}
	}
	return domain.Coupon{}, domain.ErrNotFound
}

func (f *fakeCouponStore) ListByOwner(context.Context, int64, domain.ListOpts) ([]domain.Coupon, error) {
	return nil, nil
}
func (f *fakeCouponStore) ListPlacedByOption(context.Context, int64) ([]int64, error) {
	return nil, nil
}
func (f *fakeCouponStore) ApplyOptionResolution(context.Context, int64, int64) (int, bool, error) {
	panic("not used")
}
func (f *fakeCouponStore) LoadForSettlement(context.Context, int64) (domain.SettlementView, error) {
	panic("not used")
}
func (f *fakeCouponStore) SettleWon(context.Context, int64, decimal.Decimal, decimal.Decimal, []domain.Payout) error {
	panic("not used")
}
func (f *fakeCouponStore) SettleLost(context.Context, int64) error { panic("not used") }

type fakeWagerStore struct {
	wagers  map[int64]domain.Wager
	options map[int64]domain.WagerOption
}

func (f *fakeWagerStore) Create(context.Context, domain.Wager) (int64, error) { panic("not used") }

func (f *fakeWagerStore) GetByID(_ context.Context, id int64) (domain.Wager, error) {
	w, ok := f.wagers[id]
	if !ok {
		return domain.Wager{}, domain.ErrNotFound
	}
	return w, nil
}

func (f *fakeWagerStore) ListBetable(context.Context, int64) ([]domain.Wager, error) {
	return nil, nil
}
func (f *fakeWagerStore) CloseLastCall(context.Context, int64, domain.LastCallPhase) (int64, error) {
	return 0, nil
}

func (f *fakeWagerStore) GetOption(_ context.Context, id int64) (domain.WagerOption, error) {
	o, ok := f.options[id]
	if !ok {
		return domain.WagerOption{}, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeWagerStore) ListOptionsByEvent(context.Context, int64) ([]domain.WagerOption, error) {
	return nil, nil
}
func (f *fakeWagerStore) ListPendingOptions(context.Context, int64) ([]domain.WagerOption, error) {
	return nil, nil
}
func (f *fakeWagerStore) ResolveOption(context.Context, int64, domain.WagerOptionStatus) (bool, error) {
	panic("not used")
}

type fakeAuditStore struct {
	entries []string
}

func (f *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	f.entries = append(f.entries, event)
	return nil
}

func (f *fakeAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func openWagers() *fakeWagerStore {
	return &fakeWagerStore{
		wagers: map[int64]domain.Wager{
			10: {ID: 10, EventID: 1, AcceptingStakes: true, Visible: true},
			11: {ID: 11, EventID: 1, AcceptingStakes: false, Visible: true},
		},
		options: map[int64]domain.WagerOption{
			100: {ID: 100, WagerID: 10, Status: domain.OptionPending, Visible: true},
			101: {ID: 101, WagerID: 10, Status: domain.OptionPending, Visible: true},
			110: {ID: 110, WagerID: 11, Status: domain.OptionPending, Visible: true},
			120: {ID: 120, WagerID: 10, Status: domain.OptionWon, Visible: true},
		},
	}
}

// --- tests -----------------------------------------------------------------

func TestPlaceCoupon(t *testing.T) {
	coupons := &fakeCouponStore{}
	audit := &fakeAuditStore{}
	svc := NewCouponService(coupons, openWagers(), audit, testLogger())

	c, err := svc.Place(context.Background(), PlaceCouponRequest{
		OwnerID: 7,
		Value:   dec("100.00"),
		Bets: []BetSelection{
			{WagerOptionID: 100, Odd: dec("1.50")},
			{WagerOptionID: 101, Odd: dec("2.00")},
		},
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	if c.Status != domain.CouponPlaced {
		t.Errorf("status = %s, want PLACED", c.Status)
	}
	if c.UnresolvedCount != 2 {
		t.Errorf("unresolved count = %d, want 2", c.UnresolvedCount)
	}
	if c.Pool {
		t.Error("plain coupon flagged as pool")
	}

	got := coupons.created[0]
	if len(got.stakes) != 1 || got.stakes[0].UserID != 7 || !got.stakes[0].Amount.Equal(dec("100.00")) {
		t.Errorf("stakes = %+v, want single owner stake of 100.00", got.stakes)
	}
	if len(audit.entries) != 1 || audit.entries[0] != "coupon_placed" {
		t.Errorf("audit entries = %v", audit.entries)
	}
}

func TestPlaceCouponRejectsClosedWager(t *testing.T) {
	svc := NewCouponService(&fakeCouponStore{}, openWagers(), &fakeAuditStore{}, testLogger())

	_, err := svc.Place(context.Background(), PlaceCouponRequest{
		OwnerID: 7,
		Value:   dec("50.00"),
		Bets:    []BetSelection{{WagerOptionID: 110, Odd: dec("1.80")}},
	})
	if !errors.Is(err, domain.ErrWagerClosed) {
		t.Fatalf("err = %v, want ErrWagerClosed", err)
	}
}

func TestPlaceCouponRejectsResolvedOption(t *testing.T) {
	svc := NewCouponService(&fakeCouponStore{}, openWagers(), &fakeAuditStore{}, testLogger())

	_, err := svc.Place(context.Background(), PlaceCouponRequest{
		OwnerID: 7,
		Value:   dec("50.00"),
		Bets:    []BetSelection{{WagerOptionID: 120, Odd: dec("1.80")}},
	})
	if !errors.Is(err, domain.ErrWagerClosed) {
		t.Fatalf("err = %v, want ErrWagerClosed", err)
	}
}

func TestPlaceCouponRejectsUnknownOption(t *testing.T) {
	svc := NewCouponService(&fakeCouponStore{}, openWagers(), &fakeAuditStore{}, testLogger())

	_, err := svc.Place(context.Background(), PlaceCouponRequest{
		OwnerID: 7,
		Value:   dec("50.00"),
		Bets:    []BetSelection{{WagerOptionID: 999, Odd: dec("1.80")}},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPlacePoolCoupon(t *testing.T) {
	coupons := &fakeCouponStore{}
	svc := NewCouponService(coupons, openWagers(), &fakeAuditStore{}, testLogger())

	c, err := svc.PlacePool(context.Background(), PlacePoolCouponRequest{
		PlaceCouponRequest: PlaceCouponRequest{
			OwnerID: 7,
			Value:   dec("100.00"),
			Bets:    []BetSelection{{WagerOptionID: 100, Odd: dec("3.00")}},
		},
		OwnerStake: dec("60.00"),
		Invitees:   []PoolStake{{UserID: 8, Amount: dec("40.00")}},
	})
	if err != nil {
		t.Fatalf("PlacePool: %v", err)
	}
	if !c.Pool {
		t.Error("pool coupon not flagged")
	}

	stakes := coupons.created[0].stakes
	if len(stakes) != 2 {
		t.Fatalf("stakes = %+v, want owner plus one invitee", stakes)
	}
	if stakes[0].UserID != 7 || !stakes[0].Amount.Equal(dec("60.00")) {
		t.Errorf("owner stake = %+v", stakes[0])
	}
	if stakes[1].UserID != 8 || !stakes[1].Amount.Equal(dec("40.00")) {
		t.Errorf("invitee stake = %+v", stakes[1])
	}
}

func TestPlacePoolCouponUnbalancedStakes(t *testing.T) {
	svc := NewCouponService(&fakeCouponStore{}, openWagers(), &fakeAuditStore{}, testLogger())

	base := PlaceCouponRequest{
		OwnerID: 7,
		Value:   dec("100.00"),
		Bets:    []BetSelection{{WagerOptionID: 100, Odd: dec("3.00")}},
	}

	tests := []struct {
		name string
		req  PlacePoolCouponRequest
	}{
		{
			name: "sum below value",
			req: PlacePoolCouponRequest{
				PlaceCouponRequest: base,
				OwnerStake:         dec("50.00"),
				Invitees:           []PoolStake{{UserID: 8, Amount: dec("40.00")}},
			},
		},
		{
			name: "sum above value",
			req: PlacePoolCouponRequest{
				PlaceCouponRequest: base,
				OwnerStake:         dec("70.00"),
				Invitees:           []PoolStake{{UserID: 8, Amount: dec("40.00")}},
			},
		},
		{
			name: "negative invitee stake",
			req: PlacePoolCouponRequest{
				PlaceCouponRequest: base,
				OwnerStake:         dec("140.00"),
				Invitees:           []PoolStake{{UserID: 8, Amount: dec("-40.00")}},
			},
		},
		{
			name: "no invitees",
			req: PlacePoolCouponRequest{
				PlaceCouponRequest: base,
				OwnerStake:         dec("100.00"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlacePool(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrStakesNotBalanced) {
				t.Fatalf("err = %v, want ErrStakesNotBalanced", err)
			}
		})
	}
}
