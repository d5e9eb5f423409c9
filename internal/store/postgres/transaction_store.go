package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpajak/betslip/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL. The
// transactions table is append-only; there are no update or delete paths.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Create appends a transaction and returns its ID.
func (s *TransactionStore) Create(ctx context.Context, t domain.Transaction) (int64, error) {
	const query = `
		INSERT INTO transactions (user_id, amount, kind)
		VALUES ($1, $2, $3)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query, t.UserID, t.Amount, string(t.Kind)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create transaction: %w", err)
	}
	return id, nil
}

const txSelectCols = `id, user_id, amount, kind, created_at`

func scanTransaction(scanner interface{ Scan(dest ...any) error }) (domain.Transaction, error) {
	var t domain.Transaction
	var kind string
	err := scanner.Scan(&t.ID, &t.UserID, &t.Amount, &kind, &t.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Kind = domain.TransactionKind(kind)
	return t, nil
}

// GetByID returns a single transaction.
func (s *TransactionStore) GetByID(ctx context.Context, id int64) (domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListByUser returns the user's transactions, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListSettledBefore returns WIN transactions created strictly before the
// cutoff, for archival.
func (s *TransactionStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + `
		FROM transactions
		WHERE kind = 'WIN' AND created_at < $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list win transactions before %s: %w", before, err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
