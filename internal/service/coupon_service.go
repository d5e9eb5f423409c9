package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// BetSelection is one leg of a coupon being placed: the wager option and the
// odd quoted to the bettor at placement time.
type BetSelection struct {
	WagerOptionID int64
	Odd           decimal.Decimal
}

// PlaceCouponRequest carries everything needed to place a plain coupon.
type PlaceCouponRequest struct {
	OwnerID            int64
	Value              decimal.Decimal
	OddsChangeAccepted bool
	Bets               []BetSelection
}

// PoolStake is one invited participant's contribution to a pool coupon.
// Amounts are positive; the store records the invitee debit sign.
type PoolStake struct {
	UserID int64
	Amount decimal.Decimal
}

// PlacePoolCouponRequest is a coupon placement funded by multiple
// participants. The owner's contribution is OwnerStake; invitee
// contributions follow. All contributions together must equal Value.
type PlacePoolCouponRequest struct {
	PlaceCouponRequest
	OwnerStake decimal.Decimal
	Invitees   []PoolStake
}

// CouponService handles coupon intake and reads. Settlement is the engine's
// job; the service only creates coupons in a state the engine can settle.
type CouponService struct {
	coupons domain.CouponStore
	wagers  domain.WagerStore
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewCouponService creates a CouponService with all required dependencies.
func NewCouponService(
	coupons domain.CouponStore,
	wagers domain.WagerStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *CouponService {
	return &CouponService{
		coupons: coupons,
		wagers:  wagers,
		audit:   audit,
		logger:  logger,
	}
}

// Place validates the selections and creates a plain coupon staked entirely
// by its owner. Every referenced wager must still accept stakes; a closed
// wager yields domain.ErrWagerClosed.
func (s *CouponService) Place(ctx context.Context, req PlaceCouponRequest) (domain.Coupon, error) {
	c, err := s.buildCoupon(ctx, req, false)
	if err != nil {
		return domain.Coupon{}, err
	}

	stakes := []domain.ParticipantStake{{UserID: req.OwnerID, Amount: req.Value}}
	id, err := s.coupons.Create(ctx, &c, stakes)
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon_service: create coupon: %w", err)
	}

	s.auditPlacement(ctx, id, req.OwnerID, req.Value, len(req.Bets), false)
	return s.coupons.GetByID(ctx, id)
}

// PlacePool validates the selections and the participant contributions and
// creates a pool coupon. Contributions must be positive and sum exactly to
// the coupon value; otherwise domain.ErrStakesNotBalanced is returned.
func (s *CouponService) PlacePool(ctx context.Context, req PlacePoolCouponRequest) (domain.Coupon, error) {
	if len(req.Invitees) == 0 {
		return domain.Coupon{}, fmt.Errorf("coupon_service: pool coupon without invitees: %w", domain.ErrStakesNotBalanced)
	}

	sum := req.OwnerStake
	if req.OwnerStake.LessThanOrEqual(decimal.Zero) {
		return domain.Coupon{}, fmt.Errorf("coupon_service: owner stake %s: %w", req.OwnerStake, domain.ErrStakesNotBalanced)
	}
	for _, p := range req.Invitees {
		if p.Amount.LessThanOrEqual(decimal.Zero) {
			return domain.Coupon{}, fmt.Errorf("coupon_service: invitee %d stake %s: %w", p.UserID, p.Amount, domain.ErrStakesNotBalanced)
		}
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(req.Value) {
		return domain.Coupon{}, fmt.Errorf("coupon_service: stakes sum %s != value %s: %w", sum, req.Value, domain.ErrStakesNotBalanced)
	}

	c, err := s.buildCoupon(ctx, req.PlaceCouponRequest, true)
	if err != nil {
		return domain.Coupon{}, err
	}

	stakes := make([]domain.ParticipantStake, 0, len(req.Invitees)+1)
	stakes = append(stakes, domain.ParticipantStake{UserID: req.OwnerID, Amount: req.OwnerStake})
	for _, p := range req.Invitees {
		stakes = append(stakes, domain.ParticipantStake{UserID: p.UserID, Amount: p.Amount})
	}

	id, err := s.coupons.Create(ctx, &c, stakes)
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon_service: create pool coupon: %w", err)
	}

	s.auditPlacement(ctx, id, req.OwnerID, req.Value, len(req.Bets), true)
	return s.coupons.GetByID(ctx, id)
}

// Get returns a single coupon.
func (s *CouponService) Get(ctx context.Context, id int64) (domain.Coupon, error) {
	c, err := s.coupons.GetByID(ctx, id)
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon_service: get coupon %d: %w", id, err)
	}
	return c, nil
}

// ListByOwner returns the owner's coupons, newest first.
func (s *CouponService) ListByOwner(ctx context.Context, ownerID int64, opts domain.ListOpts) ([]domain.Coupon, error) {
	coupons, err := s.coupons.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("coupon_service: list coupons for owner %d: %w", ownerID, err)
	}
	return coupons, nil
}

// buildCoupon validates the request's selections against live wagers and
// assembles an unpersisted coupon.
func (s *CouponService) buildCoupon(ctx context.Context, req PlaceCouponRequest, pool bool) (domain.Coupon, error) {
	if req.Value.LessThanOrEqual(decimal.Zero) {
		return domain.Coupon{}, fmt.Errorf("coupon_service: non-positive stake %s", req.Value)
	}
	if len(req.Bets) == 0 {
		return domain.Coupon{}, fmt.Errorf("coupon_service: coupon without bets")
	}

	bets := make([]domain.PlacedBet, 0, len(req.Bets))
	seen := make(map[int64]bool, len(req.Bets))
	for _, sel := range req.Bets {
		if sel.Odd.LessThanOrEqual(decimal.Zero) {
			return domain.Coupon{}, fmt.Errorf("coupon_service: non-positive odd %s for option %d", sel.Odd, sel.WagerOptionID)
		}
		if seen[sel.WagerOptionID] {
			return domain.Coupon{}, fmt.Errorf("coupon_service: duplicate bet on option %d", sel.WagerOptionID)
		}
		seen[sel.WagerOptionID] = true

		opt, err := s.wagers.GetOption(ctx, sel.WagerOptionID)
		if err != nil {
			return domain.Coupon{}, fmt.Errorf("coupon_service: option %d: %w", sel.WagerOptionID, err)
		}
		if opt.Status != domain.OptionPending {
			return domain.Coupon{}, fmt.Errorf("coupon_service: option %d already resolved: %w", opt.ID, domain.ErrWagerClosed)
		}

		w, err := s.wagers.GetByID(ctx, opt.WagerID)
		if err != nil {
			return domain.Coupon{}, fmt.Errorf("coupon_service: wager %d: %w", opt.WagerID, err)
		}
		if !w.AcceptingStakes {
			return domain.Coupon{}, fmt.Errorf("coupon_service: wager %d: %w", w.ID, domain.ErrWagerClosed)
		}

		bets = append(bets, domain.PlacedBet{WagerOptionID: sel.WagerOptionID, Odd: sel.Odd})
	}

	return domain.Coupon{
		OwnerID:            req.OwnerID,
		Value:              req.Value,
		Status:             domain.CouponPlaced,
		UnresolvedCount:    len(bets),
		Pool:               pool,
		OddsChangeAccepted: req.OddsChangeAccepted,
		Visible:            true,
		PlacedBets:         bets,
	}, nil
}

func (s *CouponService) auditPlacement(ctx context.Context, id, ownerID int64, value decimal.Decimal, bets int, pool bool) {
	err := s.audit.Log(ctx, "coupon_placed", map[string]any{
		"coupon_id": id,
		"owner_id":  ownerID,
		"value":     value.String(),
		"bets":      bets,
		"pool":      pool,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "coupon_service: audit log failed",
			slog.Int64("coupon_id", id),
			slog.String("error", err.Error()),
		)
	}
}
