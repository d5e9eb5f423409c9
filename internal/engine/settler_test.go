package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

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

type wonCall struct {
	bonus   decimal.Decimal
	prize   decimal.Decimal
	payouts []domain.Payout
}

type fakeCouponStore struct {
	views    map[int64]domain.SettlementView
	counts   map[int64]int
	statuses map[int64]domain.CouponStatus
	byOption map[int64][]int64
	applied  map[int64]map[int64]bool

	won      map[int64]wonCall
	lost     []int64
	failWon  int // fail the next N SettleWon calls
	wonCalls int
}

func newFakeCouponStore() *fakeCouponStore {
	return &fakeCouponStore{
		views:    make(map[int64]domain.SettlementView),
		counts:   make(map[int64]int),
		statuses: make(map[int64]domain.CouponStatus),
		byOption: make(map[int64][]int64),
		applied:  make(map[int64]map[int64]bool),
		won:      make(map[int64]wonCall),
	}
}

func (f *fakeCouponStore) add(view domain.SettlementView) {
	id := view.Coupon.ID
	f.views[id] = view
	f.counts[id] = view.Coupon.UnresolvedCount
	f.statuses[id] = view.Coupon.Status
	for _, b := range view.Bets {
		f.byOption[b.WagerOptionID] = append(f.byOption[b.WagerOptionID], id)
	}
}

func (f *fakeCouponStore) Create(context.Context, *domain.Coupon, []domain.ParticipantStake) (int64, error) {
	panic("not used")
}

func (f *fakeCouponStore) GetByID(_ context.Context, id int64) (domain.Coupon, error) {
	v, ok := f.views[id]
	if !ok {
		return domain.Coupon{}, domain.ErrNotFound
	}
	return v.Coupon, nil
}

func (f *fakeCouponStore) ListByOwner(context.Context, int64, domain.ListOpts) ([]domain.Coupon, error) {
	panic("not used")
}

func (f *fakeCouponStore) ListPlacedByOption(_ context.Context, optionID int64) ([]int64, error) {
	return f.byOption[optionID], nil
}

func (f *fakeCouponStore) ApplyOptionResolution(_ context.Context, couponID, optionID int64) (int, bool, error) {
	if f.statuses[couponID] != domain.CouponPlaced {
		return 0, false, nil
	}
	if !f.applied[couponID][optionID] {
		if f.applied[couponID] == nil {
			f.applied[couponID] = make(map[int64]bool)
		}
		f.applied[couponID][optionID] = true
		if f.counts[couponID] > 0 {
			f.counts[couponID]--
		}
	}
	return f.counts[couponID], true, nil
}

func (f *fakeCouponStore) LoadForSettlement(_ context.Context, id int64) (domain.SettlementView, error) {
	v, ok := f.views[id]
	if !ok {
		return domain.SettlementView{}, domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeCouponStore) SettleWon(_ context.Context, id int64, bonus, prize decimal.Decimal, payouts []domain.Payout) error {
	f.wonCalls++
	if f.failWon > 0 {
		f.failWon--
		return errors.New("connection reset")
	}
	if f.statuses[id] != domain.CouponPlaced {
		return domain.ErrAlreadySettled
	}
	f.statuses[id] = domain.CouponWon
	f.won[id] = wonCall{bonus: bonus, prize: prize, payouts: payouts}
	return nil
}

func (f *fakeCouponStore) SettleLost(_ context.Context, id int64) error {
	if f.statuses[id] != domain.CouponPlaced {
		return domain.ErrAlreadySettled
	}
	f.statuses[id] = domain.CouponLost
	f.lost = append(f.lost, id)
	return nil
}

type fakeBonusStore struct {
	tiers []domain.BonusTier
}

func (f *fakeBonusStore) FindForPrize(_ context.Context, prize decimal.Decimal) (domain.BonusTier, error) {
	best := domain.BonusTier{}
	found := false
	for _, t := range f.tiers {
		if !t.Visible || t.MinPrize.GreaterThan(prize) {
			continue
		}
		if !found || t.MinPrize.GreaterThan(best.MinPrize) {
			best = t
			found = true
		}
	}
	if !found {
		return domain.BonusTier{}, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeBonusStore) List(context.Context) ([]domain.BonusTier, error) {
	return f.tiers, nil
}

type fakeNotifier struct {
	sent []domain.Notification
}

func (f *fakeNotifier) Enqueue(n domain.Notification) {
	f.sent = append(f.sent, n)
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	msgs []published
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.msgs = append(f.msgs, published{channel: channel, payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	panic("not used")
}

// --- fixtures --------------------------------------------------------------

func singleView(id int64, value string, odds []string, statuses []domain.WagerOptionStatus) domain.SettlementView {
	bets := make([]domain.SettlementBet, len(odds))
	for i, o := range odds {
		bets[i] = domain.SettlementBet{WagerOptionID: int64(100 + i), Odd: dec(o), Status: statuses[i]}
	}
	return domain.SettlementView{
		Coupon: domain.Coupon{
			ID:              id,
			OwnerID:         7,
			Value:           dec(value),
			Status:          domain.CouponPlaced,
			UnresolvedCount: 0,
			CreatedAt:       time.Now(),
		},
		Bets:   bets,
		Stakes: []domain.ParticipantStake{{UserID: 7, Amount: dec(value)}},
	}
}

// --- tests -----------------------------------------------------------------

func TestSettleWonWithBonusTier(t *testing.T) {
	store := newFakeCouponStore()
	store.add(singleView(1, "100.00", []string{"1.5", "2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon, domain.OptionWon}))

	tiers := &fakeBonusStore{tiers: []domain.BonusTier{
		{ID: 1, MinPrize: dec("200"), Fraction: dec("0.02"), Visible: true},
		{ID: 2, MinPrize: dec("300"), Fraction: dec("0.05"), Visible: true},
		{ID: 3, MinPrize: dec("1000"), Fraction: dec("0.10"), Visible: true},
	}}
	notifier := &fakeNotifier{}
	bus := &fakeBus{}

	s := NewSettler(store, tiers, notifier, bus, testLogger())
	if err := s.Settle(context.Background(), 1); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	call, ok := store.won[1]
	if !ok {
		t.Fatal("coupon 1 was not settled won")
	}
	// 100 * 1.5 * 2.0 = 300 raw, 5% tier applies: 315.00.
	if !call.prize.Equal(dec("315.00")) {
		t.Errorf("prize = %s, want 315.00", call.prize)
	}
	if !call.bonus.Equal(dec("0.05")) {
		t.Errorf("bonus = %s, want 0.05", call.bonus)
	}
	if len(call.payouts) != 1 || call.payouts[0].UserID != 7 || !call.payouts[0].Amount.Equal(dec("315.00")) {
		t.Errorf("payouts = %+v, want single 315.00 for owner", call.payouts)
	}

	if len(notifier.sent) != 1 || notifier.sent[0].Outcome != domain.CouponOutcomeWon {
		t.Errorf("notifications = %+v, want one COUPON_WON", notifier.sent)
	}
	if len(bus.msgs) != 1 || bus.msgs[0].channel != ChannelCouponSettled {
		t.Errorf("bus messages = %+v, want one on %s", bus.msgs, ChannelCouponSettled)
	}
}

func TestSettleWonNoTierQualifies(t *testing.T) {
	store := newFakeCouponStore()
	store.add(singleView(1, "10.00", []string{"1.5"},
		[]domain.WagerOptionStatus{domain.OptionWon}))
	tiers := &fakeBonusStore{tiers: []domain.BonusTier{
		{ID: 1, MinPrize: dec("100"), Fraction: dec("0.05"), Visible: true},
	}}

	s := NewSettler(store, tiers, nil, nil, testLogger())
	if err := s.Settle(context.Background(), 1); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	call := store.won[1]
	if !call.bonus.Equal(decimal.Zero) {
		t.Errorf("bonus = %s, want 0", call.bonus)
	}
	if !call.prize.Equal(dec("15.00")) {
		t.Errorf("prize = %s, want 15.00", call.prize)
	}
}

func TestSettleWonCeilingRounding(t *testing.T) {
	store := newFakeCouponStore()
	// 10.00 * 1.11111 = 11.1111, ceiling to two decimals is 11.12.
	store.add(singleView(1, "10.00", []string{"1.11111"},
		[]domain.WagerOptionStatus{domain.OptionWon}))

	s := NewSettler(store, &fakeBonusStore{}, nil, nil, testLogger())
	if err := s.Settle(context.Background(), 1); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got := store.won[1].prize; !got.Equal(dec("11.12")) {
		t.Errorf("prize = %s, want 11.12", got)
	}
}

func TestSettlePoolCouponProportionalSplit(t *testing.T) {
	view := singleView(1, "100.00", []string{"3.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	view.Coupon.Pool = true
	view.Coupon.Invitations = []domain.Invitation{
		{ID: 1, CouponID: 1, InvitedUserID: 8, StakeTransactionID: 11, Accepted: true},
	}
	// Invitee stake is recorded negated relative to the owner's.
	view.Stakes = []domain.ParticipantStake{
		{UserID: 7, Amount: dec("60.00")},
		{UserID: 8, Amount: dec("-40.00")},
	}

	store := newFakeCouponStore()
	store.add(view)
	tiers := &fakeBonusStore{tiers: []domain.BonusTier{
		{ID: 1, MinPrize: dec("300"), Fraction: dec("0.05"), Visible: true},
	}}
	notifier := &fakeNotifier{}

	s := NewSettler(store, tiers, notifier, nil, testLogger())
	if err := s.Settle(context.Background(), 1); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	call := store.won[1]
	if !call.prize.Equal(dec("315.00")) {
		t.Fatalf("prize = %s, want 315.00", call.prize)
	}
	if len(call.payouts) != 2 {
		t.Fatalf("payouts = %+v, want two", call.payouts)
	}
	// 315 * 60/100 = 189.00 and 315 * 40/100 = 126.00.
	if call.payouts[0].UserID != 7 || !call.payouts[0].Amount.Equal(dec("189.00")) {
		t.Errorf("owner payout = %+v, want 189.00 for user 7", call.payouts[0])
	}
	if call.payouts[1].UserID != 8 || !call.payouts[1].Amount.Equal(dec("126.00")) {
		t.Errorf("invitee payout = %+v, want 126.00 for user 8", call.payouts[1])
	}

	if len(notifier.sent) != 2 {
		t.Errorf("notifications = %+v, want one per participant", notifier.sent)
	}
}

func TestSettleLostWhenAnyOptionLost(t *testing.T) {
	store := newFakeCouponStore()
	store.add(singleView(1, "100.00", []string{"1.5", "2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon, domain.OptionLost}))
	notifier := &fakeNotifier{}

	s := NewSettler(store, &fakeBonusStore{}, notifier, nil, testLogger())
	if err := s.Settle(context.Background(), 1); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if len(store.lost) != 1 || store.lost[0] != 1 {
		t.Errorf("lost = %v, want [1]", store.lost)
	}
	if len(store.won) != 0 {
		t.Errorf("won = %+v, want none", store.won)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Outcome != domain.CouponOutcomeLost {
		t.Errorf("notifications = %+v, want one COUPON_LOST", notifier.sent)
	}
}

func TestSettleAlreadySettledIsNoOp(t *testing.T) {
	view := singleView(1, "100.00", []string{"2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	view.Coupon.Status = domain.CouponWon

	store := newFakeCouponStore()
	store.add(view)
	notifier := &fakeNotifier{}

	s := NewSettler(store, &fakeBonusStore{}, notifier, nil, testLogger())
	if err := s.Settle(context.Background(), 1); err != nil {
		t.Fatalf("Settle on settled coupon: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications = %+v, want none on re-settlement", notifier.sent)
	}
}
