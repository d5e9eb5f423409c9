package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// TransactionService exposes the append-only transaction feed. Stake and win
// transactions are written by the coupon store inside its own database
// transactions; this service covers the remaining kinds and reads.
type TransactionService struct {
	transactions domain.TransactionStore
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(transactions domain.TransactionStore) *TransactionService {
	return &TransactionService{transactions: transactions}
}

// Record appends one transaction and returns its ID. Amounts must be
// non-zero; the feed is immutable, corrections are new rows.
func (s *TransactionService) Record(ctx context.Context, userID int64, amount decimal.Decimal, kind domain.TransactionKind) (int64, error) {
	if amount.IsZero() {
		return 0, fmt.Errorf("transaction_service: zero amount for user %d", userID)
	}

	id, err := s.transactions.Create(ctx, domain.Transaction{
		UserID: userID,
		Amount: amount,
		Kind:   kind,
	})
	if err != nil {
		return 0, fmt.Errorf("transaction_service: record %s for user %d: %w", kind, userID, err)
	}
	return id, nil
}

// ListByUser returns the user's transactions, newest first.
func (s *TransactionService) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("transaction_service: list for user %d: %w", userID, err)
	}
	return txs, nil
}

// Get returns a single transaction.
func (s *TransactionService) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction_service: get %d: %w", id, err)
	}
	return t, nil
}
