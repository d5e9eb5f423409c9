package domain

import "time"

// CouponOutcome is the notification kind sent when a coupon settles.
type CouponOutcome string

const (
	CouponOutcomeWon  CouponOutcome = "COUPON_WON"
	CouponOutcomeLost CouponOutcome = "COUPON_LOST"
)

// Notification tells one user about the outcome of one coupon. Delivery is
// fire-and-forget relative to settlement: a failed notification never undoes
// a recorded transaction.
type Notification struct {
	UserID    int64
	CouponID  int64
	Outcome   CouponOutcome
	CreatedAt time.Time
}
