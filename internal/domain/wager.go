package domain

import "time"

// WagerOptionStatus is the resolution state of a single wager option.
type WagerOptionStatus string

const (
	OptionPending WagerOptionStatus = "PENDING"
	OptionWon     WagerOptionStatus = "WON"
	OptionLost    WagerOptionStatus = "LOST"
)

// LastCallPhase marks the event phase at which a wager stops accepting stakes.
type LastCallPhase string

const (
	LastCallGameStart LastCallPhase = "GAME_START"
	LastCallPartStart LastCallPhase = "PART_START"
	LastCallGameEnd   LastCallPhase = "GAME_END"
)

// Wager is a betable proposition on an event, composed of mutually exclusive
// wager options.
type Wager struct {
	ID              int64
	EventID         int64
	Description     string
	LastCall        LastCallPhase
	AcceptingStakes bool
	Visible         bool
	Options         []WagerOption
	CreatedAt       time.Time
}

// WagerOption is one resolvable outcome of a wager. WinCondition is a boolean
// template evaluated against the event result; Status transitions
// PENDING -> WON|LOST exactly once, performed only by the resolver.
type WagerOption struct {
	ID           int64
	WagerID      int64
	Description  string
	WinCondition string
	Status       WagerOptionStatus
	Visible      bool
}
