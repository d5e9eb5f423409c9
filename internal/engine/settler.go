package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// Signal bus channels the engine publishes on. The WebSocket hub mirrors
// these to connected clients.
const (
	ChannelCouponSettled  = "coupon_settled"
	ChannelOptionResolved = "option_resolved"
	ChannelEventFinished  = "event_finished"

	// ChannelResolveRequests carries resolution requests from API-only
	// processes to a process running the resolver.
	ChannelResolveRequests = "resolve_requests"
)

var hundred = decimal.NewFromInt(100)

// ceil2 rounds up to two decimal places. Payouts always round in the
// bettor's favor.
func ceil2(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Ceil().Div(hundred)
}

// OutcomeNotifier accepts settlement outcome notifications for asynchronous
// delivery. Implemented by notify.Dispatcher.
type OutcomeNotifier interface {
	Enqueue(n domain.Notification)
}

// Settler settles a single coupon once every one of its placed bets has a
// resolved wager option. It decides the outcome, computes the prize with the
// tiered bonus, fans the payout out across pool participants, and commits
// the whole settlement atomically through the coupon store.
type Settler struct {
	coupons  domain.CouponStore
	tiers    domain.BonusTierStore
	notifier OutcomeNotifier
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewSettler creates a Settler. notifier and bus may be nil, in which case
// the corresponding side effects are skipped.
func NewSettler(
	coupons domain.CouponStore,
	tiers domain.BonusTierStore,
	notifier OutcomeNotifier,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Settler {
	return &Settler{
		coupons:  coupons,
		tiers:    tiers,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "settler")),
	}
}

// Settle finalizes the coupon. The caller invokes it exactly when the
// coupon's unresolved counter reaches zero; the store-level status guard
// makes a duplicate call a detectable no-op rather than a double payout.
func (s *Settler) Settle(ctx context.Context, couponID int64) error {
	view, err := s.coupons.LoadForSettlement(ctx, couponID)
	if err != nil {
		return fmt.Errorf("settler: load coupon %d: %w", couponID, err)
	}

	// The coupon is won iff no placed bet references a lost option.
	won := true
	for _, b := range view.Bets {
		if b.Status == domain.OptionLost {
			won = false
			break
		}
	}

	if !won {
		if err := s.coupons.SettleLost(ctx, couponID); err != nil {
			if errors.Is(err, domain.ErrAlreadySettled) {
				s.logger.Info("coupon already settled", slog.Int64("coupon_id", couponID))
				return nil
			}
			return fmt.Errorf("settler: settle lost coupon %d: %w", couponID, err)
		}
		s.afterSettle(ctx, view, domain.CouponOutcomeLost, decimal.Zero)
		return nil
	}

	bonus, prize := s.computePrize(ctx, view)
	payouts := splitPayout(view, prize)

	if err := s.coupons.SettleWon(ctx, couponID, bonus, prize, payouts); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			s.logger.Info("coupon already settled", slog.Int64("coupon_id", couponID))
			return nil
		}
		return fmt.Errorf("settler: settle won coupon %d: %w", couponID, err)
	}

	s.logger.Info("coupon settled",
		slog.Int64("coupon_id", couponID),
		slog.String("status", string(domain.CouponWon)),
		slog.String("prize", prize.StringFixed(2)),
		slog.String("bonus", bonus.String()),
		slog.Int("payouts", len(payouts)),
	)
	s.afterSettle(ctx, view, domain.CouponOutcomeWon, prize)
	return nil
}

// computePrize multiplies the stake by every locked odd, applies the highest
// bonus tier the raw prize qualifies for, and ceiling-rounds the result to
// two decimals. It returns the bonus fraction and the final prize.
func (s *Settler) computePrize(ctx context.Context, view domain.SettlementView) (bonus, prize decimal.Decimal) {
	raw := view.Coupon.Value
	for _, b := range view.Bets {
		raw = raw.Mul(b.Odd)
	}

	bonus = decimal.Zero
	tier, err := s.tiers.FindForPrize(ctx, raw)
	switch {
	case err == nil:
		bonus = tier.Fraction
	case errors.Is(err, domain.ErrNotFound):
		// No tier qualifies; the prize stands as-is.
	default:
		s.logger.Error("bonus tier lookup failed, settling without bonus",
			slog.Int64("coupon_id", view.Coupon.ID),
			slog.String("error", err.Error()),
		)
	}

	prize = ceil2(raw.Mul(decimal.NewFromInt(1).Add(bonus)))
	return bonus, prize
}

// splitPayout fans the final prize out across the coupon's stakeholders. A
// plain coupon pays its owner alone; a pool coupon pays every participant
// proportionally to their contribution. Invitee stakes are recorded negated
// at placement, so contributions are compared by absolute value.
func splitPayout(view domain.SettlementView, prize decimal.Decimal) []domain.Payout {
	if !view.Coupon.HasParticipants() {
		return []domain.Payout{{UserID: view.Coupon.OwnerID, Amount: prize}}
	}

	payouts := make([]domain.Payout, 0, len(view.Stakes))
	for _, st := range view.Stakes {
		share := ceil2(prize.Mul(st.Amount.Abs()).Div(view.Coupon.Value))
		payouts = append(payouts, domain.Payout{UserID: st.UserID, Amount: share})
	}
	return payouts
}

// couponSettledSignal is the JSON payload published on ChannelCouponSettled.
type couponSettledSignal struct {
	CouponID int64  `json:"coupon_id"`
	Outcome  string `json:"outcome"`
	Prize    string `json:"prize"`
}

// afterSettle runs the post-commit side effects: outcome notifications for
// every stakeholder and the live-feed signal. Neither can undo the
// settlement; failures are logged and dropped.
func (s *Settler) afterSettle(ctx context.Context, view domain.SettlementView, outcome domain.CouponOutcome, prize decimal.Decimal) {
	if s.notifier != nil {
		now := time.Now().UTC()
		seen := make(map[int64]bool, len(view.Stakes)+1)
		for _, st := range append([]domain.ParticipantStake{{UserID: view.Coupon.OwnerID}}, view.Stakes...) {
			if seen[st.UserID] {
				continue
			}
			seen[st.UserID] = true
			s.notifier.Enqueue(domain.Notification{
				UserID:    st.UserID,
				CouponID:  view.Coupon.ID,
				Outcome:   outcome,
				CreatedAt: now,
			})
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(couponSettledSignal{
			CouponID: view.Coupon.ID,
			Outcome:  string(outcome),
			Prize:    prize.StringFixed(2),
		})
		if err == nil {
			err = s.bus.Publish(ctx, ChannelCouponSettled, payload)
		}
		if err != nil {
			s.logger.Warn("coupon settled signal not published",
				slog.Int64("coupon_id", view.Coupon.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
