package domain

import "github.com/shopspring/decimal"

// BonusTier is one row of the tiered-bonus table: coupons whose pre-bonus
// prize reaches MinPrize earn Fraction extra. The applicable tier is the
// highest MinPrize not exceeding the computed prize.
type BonusTier struct {
	ID       int64
	MinPrize decimal.Decimal
	Fraction decimal.Decimal
	Visible  bool
}
