package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
	"github.com/mpajak/betslip/internal/service"
)

// CouponService defines the methods the coupon handler requires from the
// service layer.
type CouponService interface {
	Place(ctx context.Context, req service.PlaceCouponRequest) (domain.Coupon, error)
	PlacePool(ctx context.Context, req service.PlacePoolCouponRequest) (domain.Coupon, error)
	Get(ctx context.Context, id int64) (domain.Coupon, error)
	ListByOwner(ctx context.Context, ownerID int64, opts domain.ListOpts) ([]domain.Coupon, error)
}

// CouponHandler serves coupon-related HTTP endpoints.
type CouponHandler struct {
	coupons CouponService
	logger  *slog.Logger
}

// NewCouponHandler creates a CouponHandler.
func NewCouponHandler(coupons CouponService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		coupons: coupons,
		logger:  logger,
	}
}

type betPayload struct {
	WagerOptionID int64           `json:"wager_option_id"`
	Odd           decimal.Decimal `json:"odd"`
}

type placeCouponRequest struct {
	OwnerID            int64           `json:"owner_id"`
	Value              decimal.Decimal `json:"value"`
	OddsChangeAccepted bool            `json:"odds_change_accepted"`
	Bets               []betPayload    `json:"bets"`
}

type poolStakePayload struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type placePoolCouponRequest struct {
	placeCouponRequest
	OwnerStake decimal.Decimal    `json:"owner_stake"`
	Invitees   []poolStakePayload `json:"invitees"`
}

func (p placeCouponRequest) toService() service.PlaceCouponRequest {
	req := service.PlaceCouponRequest{
		OwnerID:            p.OwnerID,
		Value:              p.Value,
		OddsChangeAccepted: p.OddsChangeAccepted,
	}
	for _, b := range p.Bets {
		req.Bets = append(req.Bets, service.BetSelection{
			WagerOptionID: b.WagerOptionID,
			Odd:           b.Odd,
		})
	}
	return req
}

// PlaceCoupon creates a plain coupon staked by its owner.
// POST /api/coupons
func (h *CouponHandler) PlaceCoupon(w http.ResponseWriter, r *http.Request) {
	var req placeCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.coupons.Place(r.Context(), req.toService())
	if err != nil {
		h.writePlacementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// PlacePoolCoupon creates a pool coupon funded by multiple participants.
// POST /api/coupons/pool
func (h *CouponHandler) PlacePoolCoupon(w http.ResponseWriter, r *http.Request) {
	var req placePoolCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := service.PlacePoolCouponRequest{
		PlaceCouponRequest: req.toService(),
		OwnerStake:         req.OwnerStake,
	}
	for _, p := range req.Invitees {
		svcReq.Invitees = append(svcReq.Invitees, service.PoolStake{
			UserID: p.UserID,
			Amount: p.Amount,
		})
	}

	c, err := h.coupons.PlacePool(r.Context(), svcReq)
	if err != nil {
		h.writePlacementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCoupon returns a single coupon with its bets and invitations.
// GET /api/coupons/{id}
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	c, err := h.coupons.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get coupon failed",
			slog.Int64("coupon_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get coupon")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListCoupons returns the coupons owned by a user, newest first.
// GET /api/coupons?user_id=7&limit=50&offset=0
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}
	opts := parseListOpts(r)

	coupons, err := h.coupons.ListByOwner(r.Context(), userID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list coupons failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list coupons")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"coupons": coupons,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// writePlacementError maps coupon placement failures onto HTTP statuses.
func (h *CouponHandler) writePlacementError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "wager option not found")
	case errors.Is(err, domain.ErrWagerClosed):
		writeError(w, http.StatusConflict, "wager no longer accepts stakes")
	case errors.Is(err, domain.ErrStakesNotBalanced):
		writeError(w, http.StatusBadRequest, "participant stakes do not sum to the coupon value")
	default:
		h.logger.ErrorContext(r.Context(), "handler: place coupon failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place coupon")
	}
}
