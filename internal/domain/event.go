package domain

import (
	"strings"
	"time"
)

// Event is a sporting occurrence with a finalized, immutable result tree.
// It is produced by the ingestion collaborator; the settlement engine only
// ever reads it.
type Event struct {
	ID        int64
	Sport     string
	HomeParty string
	AwayParty string
	StartedAt time.Time
	Finished  bool
	Result    EventResult
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventResult is the structured outcome of an event: the final score plus
// per-part scores and free-form metadata.
type EventResult struct {
	FinalScore Score       `json:"final_score"`
	Parts      []PartScore `json:"parts"`
	Metadata   string      `json:"metadata"`
}

// Score is a home/away score pair.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// PartScore is the score of a single game part (half, quarter, set).
type PartScore struct {
	Number int   `json:"number"`
	Score  Score `json:"score"`
}

// Total returns the combined score of both parties.
func (s Score) Total() int { return s.Home + s.Away }

// Diff returns the home score minus the away score.
func (s Score) Diff() int { return s.Home - s.Away }

// ---------------------------------------------------------------------------
// Win-condition field projections.
//
// Templates navigate the event by dotted paths such as {event.finalScore.home}.
// Each navigable type registers its projections in an explicit map keyed by
// the lowercased field name, so path resolution never resorts to runtime type
// introspection. The Field methods satisfy condition.Node.
// ---------------------------------------------------------------------------

var eventFields = map[string]func(e *Event) any{
	"id":         func(e *Event) any { return e.ID },
	"sport":      func(e *Event) any { return e.Sport },
	"homeparty":  func(e *Event) any { return e.HomeParty },
	"awayparty":  func(e *Event) any { return e.AwayParty },
	"finished":   func(e *Event) any { return e.Finished },
	"finalscore": func(e *Event) any { return e.Result.FinalScore },
	// Shortcuts used by most templates.
	"homescore": func(e *Event) any { return e.Result.FinalScore.Home },
	"awayscore": func(e *Event) any { return e.Result.FinalScore.Away },
	"partcount": func(e *Event) any { return len(e.Result.Parts) },
	"firstpart": func(e *Event) any {
		if len(e.Result.Parts) == 0 {
			return nil
		}
		return e.Result.Parts[0].Score
	},
	"lastpart": func(e *Event) any {
		if len(e.Result.Parts) == 0 {
			return nil
		}
		return e.Result.Parts[len(e.Result.Parts)-1].Score
	},
}

// Field projects a single named property of the event, case-insensitively.
func (e *Event) Field(name string) (any, bool) {
	f, ok := eventFields[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	v := f(e)
	if v == nil {
		return nil, false
	}
	return v, true
}

var scoreFields = map[string]func(s Score) any{
	"home":  func(s Score) any { return s.Home },
	"away":  func(s Score) any { return s.Away },
	"total": func(s Score) any { return s.Total() },
	"diff":  func(s Score) any { return s.Diff() },
}

// Field projects a single named property of the score, case-insensitively.
func (s Score) Field(name string) (any, bool) {
	f, ok := scoreFields[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return f(s), true
}
