package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrMalformedCondition = errors.New("malformed win condition")
	ErrEventNotFinished   = errors.New("event not finished")
	ErrStakesNotBalanced  = errors.New("participant stakes do not sum to coupon value")
	ErrWagerClosed        = errors.New("wager no longer accepts stakes")
	ErrAlreadySettled     = errors.New("coupon already settled")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
)
