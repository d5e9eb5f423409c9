package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mpajak/betslip/internal/domain"
)

// WagerService defines the methods the wager handler requires from the
// service layer.
type WagerService interface {
	Create(ctx context.Context, w domain.Wager) (domain.Wager, error)
	Get(ctx context.Context, id int64) (domain.Wager, error)
	ListBetable(ctx context.Context, eventID int64) ([]domain.Wager, error)
}

// WagerHandler serves wager-related HTTP endpoints.
type WagerHandler struct {
	wagers WagerService
	logger *slog.Logger
}

// NewWagerHandler creates a WagerHandler.
func NewWagerHandler(wagers WagerService, logger *slog.Logger) *WagerHandler {
	return &WagerHandler{
		wagers: wagers,
		logger: logger,
	}
}

type wagerOptionPayload struct {
	Description  string `json:"description"`
	WinCondition string `json:"win_condition"`
}

type createWagerRequest struct {
	EventID     int64                `json:"event_id"`
	Description string               `json:"description"`
	LastCall    domain.LastCallPhase `json:"last_call"`
	Options     []wagerOptionPayload `json:"options"`
}

// CreateWager stores a wager with its options.
// POST /api/wagers
func (h *WagerHandler) CreateWager(w http.ResponseWriter, r *http.Request) {
	var req createWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == 0 || len(req.Options) == 0 {
		writeError(w, http.StatusBadRequest, "event_id and options are required")
		return
	}

	wager := domain.Wager{
		EventID:         req.EventID,
		Description:     req.Description,
		LastCall:        req.LastCall,
		AcceptingStakes: true,
		Visible:         true,
	}
	for _, opt := range req.Options {
		wager.Options = append(wager.Options, domain.WagerOption{
			Description:  opt.Description,
			WinCondition: opt.WinCondition,
			Status:       domain.OptionPending,
			Visible:      true,
		})
	}

	created, err := h.wagers.Create(r.Context(), wager)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create wager failed",
			slog.Int64("event_id", req.EventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create wager")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetWager returns a single wager with its options.
// GET /api/wagers/{id}
func (h *WagerHandler) GetWager(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wager id")
		return
	}

	wager, err := h.wagers.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wager not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get wager failed",
			slog.Int64("wager_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get wager")
		return
	}

	writeJSON(w, http.StatusOK, wager)
}

// ListWagers returns the betable wagers of an event.
// GET /api/wagers?event_id=1
func (h *WagerHandler) ListWagers(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.URL.Query().Get("event_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid event_id")
		return
	}

	wagers, err := h.wagers.ListBetable(r.Context(), eventID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list wagers failed",
			slog.Int64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list wagers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"wagers":   wagers,
	})
}
