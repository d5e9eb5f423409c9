package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// EventStore persists finalized events.
type EventStore interface {
	Create(ctx context.Context, e Event) (int64, error)
	GetByID(ctx context.Context, id int64) (Event, error)
	MarkFinished(ctx context.Context, id int64, result EventResult) error
}

// WagerStore persists wagers and their options.
type WagerStore interface {
	Create(ctx context.Context, w Wager) (int64, error)
	GetByID(ctx context.Context, id int64) (Wager, error)
	// ListBetable returns visible wagers for the event that still accept
	// stakes, with their options attached.
	ListBetable(ctx context.Context, eventID int64) ([]Wager, error)
	// CloseLastCall flips accepting_stakes off for every visible wager of the
	// event whose last-call phase matches, returning the number closed.
	CloseLastCall(ctx context.Context, eventID int64, phase LastCallPhase) (int64, error)
	// GetOption returns a single visible wager option.
	GetOption(ctx context.Context, optionID int64) (WagerOption, error)
	// ListOptionsByEvent returns every visible option belonging to the
	// event's visible wagers, whatever its status. A resolution pass walks
	// this list so already-resolved options can replay their ledger update.
	ListOptionsByEvent(ctx context.Context, eventID int64) ([]WagerOption, error)
	// ListPendingOptions returns every visible, still-PENDING option belonging
	// to the event's wagers.
	ListPendingOptions(ctx context.Context, eventID int64) ([]WagerOption, error)
	// ResolveOption sets the option's terminal status. The update is
	// conditional on the current status being PENDING; it reports whether a
	// row actually changed, so re-resolution is a detectable no-op.
	ResolveOption(ctx context.Context, optionID int64, status WagerOptionStatus) (bool, error)
}

// CouponStore persists coupons, placed bets, and invitations.
type CouponStore interface {
	// Create inserts the coupon, its placed bets, its invitations, and the
	// participants' stake transactions as one atomic unit, returning the new
	// coupon ID.
	Create(ctx context.Context, c *Coupon, stakes []ParticipantStake) (int64, error)
	GetByID(ctx context.Context, id int64) (Coupon, error)
	ListByOwner(ctx context.Context, ownerID int64, opts ListOpts) ([]Coupon, error)
	// ListPlacedByOption returns the IDs of every PLACED coupon holding a
	// placed bet on the given option.
	ListPlacedByOption(ctx context.Context, optionID int64) ([]int64, error)
	// ApplyOptionResolution marks the coupon's placed bet on the option as
	// applied and decrements the unresolved counter, both in one database
	// transaction, so each option is counted at most once per coupon. On a
	// re-delivered signal the bet is already applied and the current count
	// is returned unchanged, which lets a settlement that failed after the
	// counter hit zero be retried. placed is false when the coupon is no
	// longer PLACED and nothing remains to do.
	ApplyOptionResolution(ctx context.Context, couponID, optionID int64) (newCount int, placed bool, err error)
	// LoadForSettlement returns the coupon with its bets joined to option
	// statuses and the per-participant stakes (owner first).
	LoadForSettlement(ctx context.Context, couponID int64) (SettlementView, error)
	// SettleWon marks the coupon WON, stores the bonus fraction and final
	// prize, and records one WIN transaction per payout, all in a single
	// database transaction.
	SettleWon(ctx context.Context, couponID int64, bonus, prize decimal.Decimal, payouts []Payout) error
	// SettleLost marks the coupon LOST and zeroes its prize fields.
	SettleLost(ctx context.Context, couponID int64) error
}

// BonusTierStore reads the tiered-bonus table.
type BonusTierStore interface {
	// FindForPrize returns the visible tier with the highest MinPrize that
	// does not exceed prize, or ErrNotFound when no tier matches.
	FindForPrize(ctx context.Context, prize decimal.Decimal) (BonusTier, error)
	List(ctx context.Context) ([]BonusTier, error)
}

// TransactionStore persists the append-only transaction feed.
type TransactionStore interface {
	Create(ctx context.Context, t Transaction) (int64, error)
	GetByID(ctx context.Context, id int64) (Transaction, error)
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]Transaction, error)
	// ListSettledBefore returns WIN transactions created strictly before the
	// cutoff, for archival.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Transaction, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub messaging between the engine and the live feed.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
