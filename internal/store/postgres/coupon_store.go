package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// CouponStore implements domain.CouponStore using PostgreSQL.
type CouponStore struct {
	pool *pgxpool.Pool
}

// NewCouponStore creates a new CouponStore backed by the given connection pool.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// Create inserts the coupon, its placed bets, the participants' stake
// transactions, and (for pool coupons) the invitations, all in one database
// transaction. stakes[0] must be the owner's contribution; invitee amounts
// are recorded negated, mirroring the sign they settle with. The coupon
// starts PLACED with unresolved_count equal to the number of placed bets.
func (s *CouponStore) Create(ctx context.Context, c *domain.Coupon, stakes []domain.ParticipantStake) (int64, error) {
	if len(stakes) == 0 {
		return 0, fmt.Errorf("postgres: create coupon: no participant stakes")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin create coupon: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertTx = `
		INSERT INTO transactions (user_id, amount, kind)
		VALUES ($1, $2, $3)
		RETURNING id`

	// Owner's stake transaction.
	var ownerTxID int64
	err = tx.QueryRow(ctx, insertTx, stakes[0].UserID, stakes[0].Amount, string(domain.TxStake)).Scan(&ownerTxID)
	if err != nil {
		return 0, fmt.Errorf("postgres: create owner stake transaction: %w", err)
	}

	const insertCoupon = `
		INSERT INTO coupons (owner_id, value, status, unresolved_count, pool,
		                     owner_transaction_id, odds_change_accepted, visible)
		VALUES ($1, $2, 'PLACED', $3, $4, $5, $6, TRUE)
		RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, insertCoupon,
		c.OwnerID, c.Value, len(c.PlacedBets), c.Pool, ownerTxID, c.OddsChangeAccepted,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create coupon: %w", err)
	}

	const insertBet = `
		INSERT INTO placed_bets (coupon_id, wager_option_id, odd)
		VALUES ($1, $2, $3)`

	for _, pb := range c.PlacedBets {
		if _, err := tx.Exec(ctx, insertBet, id, pb.WagerOptionID, pb.Odd); err != nil {
			return 0, fmt.Errorf("postgres: create placed bet: %w", err)
		}
	}

	const insertInvitation = `
		INSERT INTO invitations (coupon_id, invited_user_id, stake_transaction_id, accepted)
		VALUES ($1, $2, $3, TRUE)`

	// Invitee stake transactions plus invitation rows (pool coupons only).
	for _, st := range stakes[1:] {
		var stakeTxID int64
		err = tx.QueryRow(ctx, insertTx, st.UserID, st.Amount.Neg(), string(domain.TxStake)).Scan(&stakeTxID)
		if err != nil {
			return 0, fmt.Errorf("postgres: create invitee stake transaction: %w", err)
		}
		if _, err := tx.Exec(ctx, insertInvitation, id, st.UserID, stakeTxID); err != nil {
			return 0, fmt.Errorf("postgres: create invitation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit create coupon: %w", err)
	}
	c.ID = id
	return id, nil
}

const couponSelectCols = `id, owner_id, value, status, unresolved_count, total_prize,
	bonus, pool, owner_transaction_id, odds_change_accepted, visible, created_at, settled_at`

func scanCoupon(scanner interface{ Scan(dest ...any) error }) (domain.Coupon, error) {
	var c domain.Coupon
	var status string
	err := scanner.Scan(
		&c.ID, &c.OwnerID, &c.Value, &status, &c.UnresolvedCount, &c.TotalPrize,
		&c.Bonus, &c.Pool, &c.OwnerTransactionID, &c.OddsChangeAccepted,
		&c.Visible, &c.CreatedAt, &c.SettledAt,
	)
	if err != nil {
		return domain.Coupon{}, err
	}
	c.Status = domain.CouponStatus(status)
	return c, nil
}

// GetByID returns a visible coupon with its placed bets and invitations.
func (s *CouponStore) GetByID(ctx context.Context, id int64) (domain.Coupon, error) {
	query := `SELECT ` + couponSelectCols + ` FROM coupons WHERE id = $1 AND visible`

	c, err := scanCoupon(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coupon{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("postgres: get coupon %d: %w", id, err)
	}

	if c.PlacedBets, err = s.listBets(ctx, c.ID); err != nil {
		return domain.Coupon{}, err
	}
	if c.Pool {
		if c.Invitations, err = s.listInvitations(ctx, c.ID); err != nil {
			return domain.Coupon{}, err
		}
	}
	return c, nil
}

// ListByOwner returns the owner's visible coupons, newest first.
func (s *CouponStore) ListByOwner(ctx context.Context, ownerID int64, opts domain.ListOpts) ([]domain.Coupon, error) {
	query := `SELECT ` + couponSelectCols + `
		FROM coupons
		WHERE owner_id = $1 AND visible
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, ownerID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list coupons for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate coupons: %w", err)
	}

	for i := range coupons {
		if coupons[i].PlacedBets, err = s.listBets(ctx, coupons[i].ID); err != nil {
			return nil, err
		}
	}
	return coupons, nil
}

// ListPlacedByOption returns the IDs of every PLACED visible coupon holding a
// placed bet on the given option.
func (s *CouponStore) ListPlacedByOption(ctx context.Context, optionID int64) ([]int64, error) {
	const query = `
		SELECT c.id
		FROM coupons c
		JOIN placed_bets pb ON pb.coupon_id = c.id
		WHERE pb.wager_option_id = $1 AND c.status = 'PLACED' AND c.visible
		ORDER BY c.id`

	rows, err := s.pool.Query(ctx, query, optionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list coupons for option %d: %w", optionID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan coupon id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyOptionResolution counts the resolved option against the coupon. The
// bet's applied flag and the unresolved counter move in one transaction, so
// a re-delivered signal finds the flag already set and leaves the counter
// alone, while two concurrent sibling resolutions each flip their own flag.
// The returned count is the coupon's current unresolved count either way; a
// replay that reports zero lets the caller retry a settlement that failed
// after the counter's first zero edge.
func (s *CouponStore) ApplyOptionResolution(ctx context.Context, couponID, optionID int64) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("postgres: begin apply option for coupon %d: %w", couponID, err)
	}
	defer tx.Rollback(ctx)

	const markBet = `
		UPDATE placed_bets pb
		SET applied = TRUE
		FROM coupons c
		WHERE pb.coupon_id = $1 AND pb.wager_option_id = $2 AND NOT pb.applied
		  AND c.id = pb.coupon_id AND c.status = 'PLACED'`

	tag, err := tx.Exec(ctx, markBet, couponID, optionID)
	if err != nil {
		return 0, false, fmt.Errorf("postgres: mark bet applied for coupon %d: %w", couponID, err)
	}

	var newCount int
	if tag.RowsAffected() > 0 {
		const decrement = `
			UPDATE coupons
			SET unresolved_count = unresolved_count - 1
			WHERE id = $1 AND status = 'PLACED' AND unresolved_count > 0
			RETURNING unresolved_count`
		err = tx.QueryRow(ctx, decrement, couponID).Scan(&newCount)
	} else {
		const current = `
			SELECT unresolved_count FROM coupons
			WHERE id = $1 AND status = 'PLACED'`
		err = tx.QueryRow(ctx, current, couponID).Scan(&newCount)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Settled (or removed) by a concurrent pass.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres: apply option %d to coupon %d: %w", optionID, couponID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("postgres: commit apply option for coupon %d: %w", couponID, err)
	}
	return newCount, true, nil
}

// LoadForSettlement returns the coupon, its bets joined to the terminal
// option statuses, and the per-participant stakes. The owner's stake comes
// first and carries the sign it was recorded with; invitee stakes are
// negated back to positive contributions.
func (s *CouponStore) LoadForSettlement(ctx context.Context, couponID int64) (domain.SettlementView, error) {
	c, err := s.GetByID(ctx, couponID)
	if err != nil {
		return domain.SettlementView{}, err
	}

	view := domain.SettlementView{Coupon: c}

	const betsQuery = `
		SELECT pb.wager_option_id, pb.odd, o.status
		FROM placed_bets pb
		JOIN wager_options o ON o.id = pb.wager_option_id
		WHERE pb.coupon_id = $1
		ORDER BY pb.id`

	rows, err := s.pool.Query(ctx, betsQuery, couponID)
	if err != nil {
		return domain.SettlementView{}, fmt.Errorf("postgres: load settlement bets for coupon %d: %w", couponID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.SettlementBet
		var status string
		if err := rows.Scan(&b.WagerOptionID, &b.Odd, &status); err != nil {
			return domain.SettlementView{}, fmt.Errorf("postgres: scan settlement bet: %w", err)
		}
		b.Status = domain.WagerOptionStatus(status)
		view.Bets = append(view.Bets, b)
	}
	if err := rows.Err(); err != nil {
		return domain.SettlementView{}, fmt.Errorf("postgres: iterate settlement bets: %w", err)
	}

	// Owner stake.
	const ownerStakeQuery = `SELECT user_id, amount FROM transactions WHERE id = $1`
	var owner domain.ParticipantStake
	err = s.pool.QueryRow(ctx, ownerStakeQuery, c.OwnerTransactionID).Scan(&owner.UserID, &owner.Amount)
	if err != nil {
		return domain.SettlementView{}, fmt.Errorf("postgres: load owner stake for coupon %d: %w", couponID, err)
	}
	view.Stakes = append(view.Stakes, owner)

	if c.Pool {
		const inviteeStakesQuery = `
			SELECT i.invited_user_id, t.amount
			FROM invitations i
			JOIN transactions t ON t.id = i.stake_transaction_id
			WHERE i.coupon_id = $1
			ORDER BY i.id`

		rows, err := s.pool.Query(ctx, inviteeStakesQuery, couponID)
		if err != nil {
			return domain.SettlementView{}, fmt.Errorf("postgres: load invitee stakes for coupon %d: %w", couponID, err)
		}
		defer rows.Close()

		for rows.Next() {
			var st domain.ParticipantStake
			if err := rows.Scan(&st.UserID, &st.Amount); err != nil {
				return domain.SettlementView{}, fmt.Errorf("postgres: scan invitee stake: %w", err)
			}
			st.Amount = st.Amount.Neg()
			view.Stakes = append(view.Stakes, st)
		}
		if err := rows.Err(); err != nil {
			return domain.SettlementView{}, fmt.Errorf("postgres: iterate invitee stakes: %w", err)
		}
	}

	return view, nil
}

// SettleWon marks the coupon WON and records one WIN transaction per payout
// in a single database transaction, so a crash cannot leave a won coupon
// without its transactions or vice versa.
func (s *CouponStore) SettleWon(ctx context.Context, couponID int64, bonus, prize decimal.Decimal, payouts []domain.Payout) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settle coupon %d: %w", couponID, err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE coupons
		SET status = 'WON', bonus = $1, total_prize = $2, settled_at = NOW()
		WHERE id = $3 AND status = 'PLACED' AND unresolved_count = 0`

	tag, err := tx.Exec(ctx, update, bonus, prize, couponID)
	if err != nil {
		return fmt.Errorf("postgres: settle coupon %d won: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySettled
	}

	const insertTx = `INSERT INTO transactions (user_id, amount, kind) VALUES ($1, $2, $3)`
	for _, p := range payouts {
		if _, err := tx.Exec(ctx, insertTx, p.UserID, p.Amount, string(domain.TxWin)); err != nil {
			return fmt.Errorf("postgres: record win transaction for user %d: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settle coupon %d: %w", couponID, err)
	}
	return nil
}

// SettleLost marks the coupon LOST and zeroes its prize fields.
func (s *CouponStore) SettleLost(ctx context.Context, couponID int64) error {
	const query = `
		UPDATE coupons
		SET status = 'LOST', bonus = 0, total_prize = 0, settled_at = NOW()
		WHERE id = $1 AND status = 'PLACED' AND unresolved_count = 0`

	tag, err := s.pool.Exec(ctx, query, couponID)
	if err != nil {
		return fmt.Errorf("postgres: settle coupon %d lost: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySettled
	}
	return nil
}

// ListSettledBefore returns coupons settled strictly before the cutoff, for
// archival.
func (s *CouponStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Coupon, error) {
	query := `SELECT ` + couponSelectCols + `
		FROM coupons
		WHERE status IN ('WON', 'LOST') AND settled_at < $1
		ORDER BY settled_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled coupons before %s: %w", before, err)
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (s *CouponStore) listBets(ctx context.Context, couponID int64) ([]domain.PlacedBet, error) {
	const query = `
		SELECT id, coupon_id, wager_option_id, odd
		FROM placed_bets WHERE coupon_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, couponID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for coupon %d: %w", couponID, err)
	}
	defer rows.Close()

	var bets []domain.PlacedBet
	for rows.Next() {
		var pb domain.PlacedBet
		if err := rows.Scan(&pb.ID, &pb.CouponID, &pb.WagerOptionID, &pb.Odd); err != nil {
			return nil, fmt.Errorf("postgres: scan placed bet: %w", err)
		}
		bets = append(bets, pb)
	}
	return bets, rows.Err()
}

func (s *CouponStore) listInvitations(ctx context.Context, couponID int64) ([]domain.Invitation, error) {
	const query = `
		SELECT id, coupon_id, invited_user_id, stake_transaction_id, accepted
		FROM invitations WHERE coupon_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, couponID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list invitations for coupon %d: %w", couponID, err)
	}
	defer rows.Close()

	var invs []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.ID, &inv.CouponID, &inv.InvitedUserID, &inv.StakeTransactionID, &inv.Accepted); err != nil {
			return nil, fmt.Errorf("postgres: scan invitation: %w", err)
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// Compile-time interface check.
var _ domain.CouponStore = (*CouponStore)(nil)
