package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// TransactionService defines the methods the transaction handler requires
// from the service layer.
type TransactionService interface {
	Record(ctx context.Context, userID int64, amount decimal.Decimal, kind domain.TransactionKind) (int64, error)
	ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error)
}

// TransactionHandler serves the transaction feed endpoints.
type TransactionHandler struct {
	transactions TransactionService
	logger       *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(transactions TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		logger:       logger,
	}
}

type recordTransactionRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Kind   string          `json:"kind"`
}

// RecordTransaction appends a deposit or withdrawal to the feed. Stake and
// win rows are written by coupon placement and settlement, never through
// this endpoint.
// POST /api/transactions
func (h *TransactionHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := domain.TransactionKind(req.Kind)
	if kind != domain.TxDeposit && kind != domain.TxWithdrawal {
		writeError(w, http.StatusBadRequest, "kind must be DEPOSIT or WITHDRAWAL")
		return
	}

	id, err := h.transactions.Record(r.Context(), req.UserID, req.Amount, kind)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: record transaction failed",
			slog.Int64("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to record transaction")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// ListTransactions returns a user's transactions, newest first.
// GET /api/transactions?user_id=7&limit=50&offset=0
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}
	opts := parseListOpts(r)

	txs, err := h.transactions.ListByUser(r.Context(), userID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transactions failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"limit":        opts.Limit,
		"offset":       opts.Offset,
	})
}
