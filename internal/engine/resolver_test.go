package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mpajak/betslip/internal/domain"
)

type fakeEventStore struct {
	events map[int64]domain.Event
}

func (f *fakeEventStore) Create(context.Context, domain.Event) (int64, error) { panic("not used") }

func (f *fakeEventStore) GetByID(_ context.Context, id int64) (domain.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeEventStore) MarkFinished(context.Context, int64, domain.EventResult) error {
	panic("not used")
}

type fakeWagerStore struct {
	pending  map[int64][]domain.WagerOption
	resolved map[int64]domain.WagerOptionStatus
	closed   []domain.LastCallPhase
}

func newFakeWagerStore() *fakeWagerStore {
	return &fakeWagerStore{
		pending:  make(map[int64][]domain.WagerOption),
		resolved: make(map[int64]domain.WagerOptionStatus),
	}
}

func (f *fakeWagerStore) Create(context.Context, domain.Wager) (int64, error) { panic("not used") }
func (f *fakeWagerStore) GetByID(context.Context, int64) (domain.Wager, error) {
	panic("not used")
}
func (f *fakeWagerStore) ListBetable(context.Context, int64) ([]domain.Wager, error) {
	panic("not used")
}

func (f *fakeWagerStore) CloseLastCall(_ context.Context, _ int64, phase domain.LastCallPhase) (int64, error) {
	f.closed = append(f.closed, phase)
	return 1, nil
}

func (f *fakeWagerStore) GetOption(context.Context, int64) (domain.WagerOption, error) {
	panic("not used")
}

func (f *fakeWagerStore) ListOptionsByEvent(_ context.Context, eventID int64) ([]domain.WagerOption, error) {
	out := make([]domain.WagerOption, 0, len(f.pending[eventID]))
	for _, opt := range f.pending[eventID] {
		if st, done := f.resolved[opt.ID]; done {
			opt.Status = st
		}
		out = append(out, opt)
	}
	return out, nil
}

func (f *fakeWagerStore) ListPendingOptions(_ context.Context, eventID int64) ([]domain.WagerOption, error) {
	var out []domain.WagerOption
	for _, opt := range f.pending[eventID] {
		if _, done := f.resolved[opt.ID]; !done {
			out = append(out, opt)
		}
	}
	return out, nil
}

func (f *fakeWagerStore) ResolveOption(_ context.Context, optionID int64, status domain.WagerOptionStatus) (bool, error) {
	if _, done := f.resolved[optionID]; done {
		return false, nil
	}
	f.resolved[optionID] = status
	return true, nil
}

type fakeLockManager struct {
	held     map[string]bool
	acquired []string
}

func (f *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.acquired = append(f.acquired, key)
	return func() {}, nil
}

func finishedEvent(id int64) domain.Event {
	return domain.Event{
		ID:        id,
		Sport:     "basketball",
		HomeParty: "Lions",
		AwayParty: "Hawks",
		Finished:  true,
		Result: domain.EventResult{
			FinalScore: domain.Score{Home: 84, Away: 79},
			Parts: []domain.PartScore{
				{Number: 1, Score: domain.Score{Home: 40, Away: 45}},
				{Number: 2, Score: domain.Score{Home: 44, Away: 34}},
			},
		},
	}
}

func newTestResolver(events *fakeEventStore, wagers *fakeWagerStore, coupons *fakeCouponStore, locks domain.LockManager, bus domain.SignalBus) *Resolver {
	settler := NewSettler(coupons, &fakeBonusStore{}, nil, nil, testLogger())
	ledger := NewLedger(coupons, settler, testLogger())
	return NewResolver(events, wagers, ledger, locks, bus, 1, 8, testLogger())
}

func TestResolveEventResolvesPendingOptions(t *testing.T) {
	events := &fakeEventStore{events: map[int64]domain.Event{1: finishedEvent(1)}}
	wagers := newFakeWagerStore()
	wagers.pending[1] = []domain.WagerOption{
		{ID: 100, WagerID: 10, WinCondition: "{event.homeScore} > {event.awayScore}", Status: domain.OptionPending},
		{ID: 101, WagerID: 10, WinCondition: "{event.finalScore.total} > 200", Status: domain.OptionPending},
		{ID: 102, WagerID: 11, WinCondition: "{event.firstPart.away} > {event.firstPart.home}", Status: domain.OptionPending},
	}
	coupons := newFakeCouponStore()
	locks := &fakeLockManager{held: map[string]bool{}}
	bus := &fakeBus{}

	r := newTestResolver(events, wagers, coupons, locks, bus)
	if err := r.ResolveEvent(context.Background(), 1); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}

	want := map[int64]domain.WagerOptionStatus{
		100: domain.OptionWon,  // 84 > 79
		101: domain.OptionLost, // 163 > 200 is false
		102: domain.OptionWon,  // first part 45 > 40
	}
	for id, st := range want {
		if got := wagers.resolved[id]; got != st {
			t.Errorf("option %d = %s, want %s", id, got, st)
		}
	}

	if len(wagers.closed) != 1 || wagers.closed[0] != domain.LastCallGameEnd {
		t.Errorf("closed phases = %v, want one GAME_END close", wagers.closed)
	}

	// One option_resolved signal per option plus one event_finished signal.
	var resolvedSignals, finishedSignals int
	for _, m := range bus.msgs {
		switch m.channel {
		case ChannelOptionResolved:
			resolvedSignals++
		case ChannelEventFinished:
			finishedSignals++
		}
	}
	if resolvedSignals != 3 || finishedSignals != 1 {
		t.Errorf("signals = %d resolved / %d finished, want 3 / 1", resolvedSignals, finishedSignals)
	}
}

func TestResolveEventSkipsMalformedCondition(t *testing.T) {
	events := &fakeEventStore{events: map[int64]domain.Event{1: finishedEvent(1)}}
	wagers := newFakeWagerStore()
	wagers.pending[1] = []domain.WagerOption{
		{ID: 100, WagerID: 10, WinCondition: "{event.bogusField} > 1", Status: domain.OptionPending},
		{ID: 101, WagerID: 10, WinCondition: "{event.homeScore} >= 80", Status: domain.OptionPending},
	}
	coupons := newFakeCouponStore()
	locks := &fakeLockManager{held: map[string]bool{}}

	r := newTestResolver(events, wagers, coupons, locks, nil)
	if err := r.ResolveEvent(context.Background(), 1); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}

	if _, done := wagers.resolved[100]; done {
		t.Error("malformed option should remain pending")
	}
	if got := wagers.resolved[101]; got != domain.OptionWon {
		t.Errorf("option 101 = %s, want WON despite sibling being malformed", got)
	}
}

func TestResolveEventFeedsLedger(t *testing.T) {
	events := &fakeEventStore{events: map[int64]domain.Event{1: finishedEvent(1)}}
	wagers := newFakeWagerStore()
	wagers.pending[1] = []domain.WagerOption{
		{ID: 100, WagerID: 10, WinCondition: "{event.homeScore} > {event.awayScore}", Status: domain.OptionPending},
	}

	view := singleView(1, "100.00", []string{"2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	view.Coupon.UnresolvedCount = 1
	coupons := newFakeCouponStore()
	coupons.add(view)

	locks := &fakeLockManager{held: map[string]bool{}}
	r := newTestResolver(events, wagers, coupons, locks, nil)
	if err := r.ResolveEvent(context.Background(), 1); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}

	call, ok := coupons.won[1]
	if !ok {
		t.Fatal("coupon holding the winning bet was not settled")
	}
	if !call.prize.Equal(dec("200.00")) {
		t.Errorf("prize = %s, want 200.00", call.prize)
	}
}

func TestResolveEventNotFinished(t *testing.T) {
	ev := finishedEvent(1)
	ev.Finished = false
	events := &fakeEventStore{events: map[int64]domain.Event{1: ev}}
	locks := &fakeLockManager{held: map[string]bool{}}

	r := newTestResolver(events, newFakeWagerStore(), newFakeCouponStore(), locks, nil)
	err := r.ResolveEvent(context.Background(), 1)
	if !errors.Is(err, domain.ErrEventNotFinished) {
		t.Fatalf("err = %v, want ErrEventNotFinished", err)
	}
}

func TestResolveEventLockHeldSkips(t *testing.T) {
	events := &fakeEventStore{events: map[int64]domain.Event{1: finishedEvent(1)}}
	wagers := newFakeWagerStore()
	wagers.pending[1] = []domain.WagerOption{
		{ID: 100, WagerID: 10, WinCondition: "{event.homeScore} > 0", Status: domain.OptionPending},
	}
	locks := &fakeLockManager{held: map[string]bool{"resolve:event:1": true}}

	r := newTestResolver(events, wagers, newFakeCouponStore(), locks, nil)
	if err := r.ResolveEvent(context.Background(), 1); err != nil {
		t.Fatalf("ResolveEvent under held lock: %v", err)
	}
	if len(wagers.resolved) != 0 {
		t.Errorf("options resolved under held lock: %v", wagers.resolved)
	}
}

func TestResolveEventReplaysLedgerForResolvedOptions(t *testing.T) {
	events := &fakeEventStore{events: map[int64]domain.Event{1: finishedEvent(1)}}
	wagers := newFakeWagerStore()
	wagers.pending[1] = []domain.WagerOption{
		{ID: 100, WagerID: 10, WinCondition: "{event.homeScore} > {event.awayScore}", Status: domain.OptionPending},
	}
	// An earlier pass persisted the option status but died before the
	// coupon ledger was updated.
	wagers.resolved[100] = domain.OptionWon

	view := singleView(1, "100.00", []string{"2.0"},
		[]domain.WagerOptionStatus{domain.OptionWon})
	view.Coupon.UnresolvedCount = 1
	coupons := newFakeCouponStore()
	coupons.add(view)

	locks := &fakeLockManager{held: map[string]bool{}}
	r := newTestResolver(events, wagers, coupons, locks, nil)
	if err := r.ResolveEvent(context.Background(), 1); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}

	if _, ok := coupons.won[1]; !ok {
		t.Fatal("stranded coupon not settled by the repeated pass")
	}
	if coupons.counts[1] != 0 {
		t.Errorf("unresolved count = %d, want 0", coupons.counts[1])
	}
}
