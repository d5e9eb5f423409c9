package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// BonusTierStore implements domain.BonusTierStore using PostgreSQL.
type BonusTierStore struct {
	pool *pgxpool.Pool
}

// NewBonusTierStore creates a new BonusTierStore backed by the given pool.
func NewBonusTierStore(pool *pgxpool.Pool) *BonusTierStore {
	return &BonusTierStore{pool: pool}
}

// FindForPrize returns the visible tier with the highest threshold not
// exceeding the prize, or domain.ErrNotFound when no tier matches.
func (s *BonusTierStore) FindForPrize(ctx context.Context, prize decimal.Decimal) (domain.BonusTier, error) {
	const query = `
		SELECT id, min_prize, fraction, visible
		FROM bonus_tiers
		WHERE min_prize <= $1 AND visible
		ORDER BY min_prize DESC
		LIMIT 1`

	var t domain.BonusTier
	err := s.pool.QueryRow(ctx, query, prize).Scan(&t.ID, &t.MinPrize, &t.Fraction, &t.Visible)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BonusTier{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.BonusTier{}, fmt.Errorf("postgres: find bonus tier for prize %s: %w", prize, err)
	}
	return t, nil
}

// List returns all visible tiers ordered by threshold.
func (s *BonusTierStore) List(ctx context.Context) ([]domain.BonusTier, error) {
	const query = `
		SELECT id, min_prize, fraction, visible
		FROM bonus_tiers WHERE visible ORDER BY min_prize`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bonus tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.BonusTier
	for rows.Next() {
		var t domain.BonusTier
		if err := rows.Scan(&t.ID, &t.MinPrize, &t.Fraction, &t.Visible); err != nil {
			return nil, fmt.Errorf("postgres: scan bonus tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// Compile-time interface check.
var _ domain.BonusTierStore = (*BonusTierStore)(nil)
