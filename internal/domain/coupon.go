package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponStatus is the lifecycle state of a bet slip.
type CouponStatus string

const (
	CouponPlaced CouponStatus = "PLACED"
	CouponWon    CouponStatus = "WON"
	CouponLost   CouponStatus = "LOST"
)

// PlacedBet links a coupon to one wager option together with the odd locked
// at placement time.
type PlacedBet struct {
	ID            int64
	CouponID      int64
	WagerOptionID int64
	Odd           decimal.Decimal
}

// Invitation binds an invited participant of a pool coupon to the stake
// transaction they contributed. The stake transaction amount is recorded
// negated (a debit) relative to the owner's.
type Invitation struct {
	ID                 int64
	CouponID           int64
	InvitedUserID      int64
	StakeTransactionID int64
	Accepted           bool
}

// Coupon is a bet slip aggregating one or more placed bets for a single
// stake. A pool coupon (Pool = true) is additionally funded by invited
// participants who share the payout proportionally to contribution; the
// settlement path is shared and only the payout fan-out differs.
type Coupon struct {
	ID                 int64
	OwnerID            int64
	Value              decimal.Decimal // total staked amount
	Status             CouponStatus
	UnresolvedCount    int
	TotalPrize         decimal.Decimal
	Bonus              decimal.Decimal
	Pool               bool
	OwnerTransactionID int64
	OddsChangeAccepted bool
	Visible            bool
	PlacedBets         []PlacedBet
	Invitations        []Invitation
	CreatedAt          time.Time
	SettledAt          *time.Time
}

// HasParticipants reports whether settlement must split the payout across
// multiple stakeholders.
func (c *Coupon) HasParticipants() bool {
	return c.Pool && len(c.Invitations) > 0
}

// ParticipantStake is one stakeholder's contribution to a coupon's value.
// Invitee amounts carry the negated sign they were recorded with at
// placement time.
type ParticipantStake struct {
	UserID int64
	Amount decimal.Decimal
}

// SettlementBet is a placed bet joined with the terminal status of its wager
// option, as loaded for settlement.
type SettlementBet struct {
	WagerOptionID int64
	Odd           decimal.Decimal
	Status        WagerOptionStatus
}

// SettlementView is everything the settler needs about one coupon: the
// coupon row, its bets with resolved option statuses, and the per-participant
// stakes (owner first).
type SettlementView struct {
	Coupon Coupon
	Bets   []SettlementBet
	Stakes []ParticipantStake
}

// Payout is one WIN transaction to record during settlement.
type Payout struct {
	UserID int64
	Amount decimal.Decimal
}
