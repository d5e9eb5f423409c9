package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpajak/betslip/internal/domain"
)

// Ledger tracks how many of a coupon's placed bets are still unresolved and
// hands the coupon to the settler when the count stands at zero. Each option
// is counted against a coupon at most once (the bet's applied flag and the
// counter move in one store transaction), so sibling options resolving
// concurrently cannot over-decrement, and a replayed signal can re-attempt a
// settlement that failed after the count reached zero. Duplicate settlement
// itself is fenced by the store's settle guards.
type Ledger struct {
	coupons domain.CouponStore
	settler *Settler
	logger  *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(coupons domain.CouponStore, settler *Settler, logger *slog.Logger) *Ledger {
	return &Ledger{
		coupons: coupons,
		settler: settler,
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// OnOptionResolved applies the option to every PLACED coupon holding a bet
// on it and settles the ones whose unresolved count stands at zero. The
// application is idempotent, so a re-delivered signal retries a settlement
// that failed after the count already reached zero. A failure on one coupon
// never blocks the others; the first error is returned after the whole
// batch has been attempted.
func (l *Ledger) OnOptionResolved(ctx context.Context, optionID int64) error {
	couponIDs, err := l.coupons.ListPlacedByOption(ctx, optionID)
	if err != nil {
		return fmt.Errorf("ledger: list coupons for option %d: %w", optionID, err)
	}

	var firstErr error
	for _, couponID := range couponIDs {
		newCount, placed, err := l.coupons.ApplyOptionResolution(ctx, couponID, optionID)
		if err != nil {
			l.logger.Error("option application failed",
				slog.Int64("coupon_id", couponID),
				slog.Int64("option_id", optionID),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !placed {
			// Settled by a concurrent pass; nothing to do.
			continue
		}
		if newCount > 0 {
			continue
		}

		if err := l.settler.Settle(ctx, couponID); err != nil {
			l.logger.Error("coupon settlement failed",
				slog.Int64("coupon_id", couponID),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
