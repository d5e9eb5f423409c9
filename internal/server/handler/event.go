package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mpajak/betslip/internal/domain"
)

// EventService defines the methods the event handler requires from the
// service layer.
type EventService interface {
	Ingest(ctx context.Context, e domain.Event) (domain.Event, error)
	Finish(ctx context.Context, eventID int64, result domain.EventResult) error
	Get(ctx context.Context, id int64) (domain.Event, error)
}

// PendingOptionLister returns the unresolved wager options of an event.
type PendingOptionLister interface {
	ListPendingOptions(ctx context.Context, eventID int64) ([]domain.WagerOption, error)
}

// EventHandler serves event-related HTTP endpoints.
type EventHandler struct {
	events  EventService
	options PendingOptionLister
	logger  *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventService, options PendingOptionLister, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events:  events,
		options: options,
		logger:  logger,
	}
}

type scorePayload struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type partPayload struct {
	Number int          `json:"number"`
	Score  scorePayload `json:"score"`
}

type resultPayload struct {
	FinalScore scorePayload  `json:"final_score"`
	Parts      []partPayload `json:"parts"`
	Metadata   string        `json:"metadata"`
}

type ingestEventRequest struct {
	Sport     string         `json:"sport"`
	HomeParty string         `json:"home_party"`
	AwayParty string         `json:"away_party"`
	StartedAt time.Time      `json:"started_at"`
	Finished  bool           `json:"finished"`
	Result    *resultPayload `json:"result"`
}

func (p resultPayload) toDomain() domain.EventResult {
	result := domain.EventResult{
		FinalScore: domain.Score{Home: p.FinalScore.Home, Away: p.FinalScore.Away},
		Metadata:   p.Metadata,
	}
	for _, part := range p.Parts {
		result.Parts = append(result.Parts, domain.PartScore{
			Number: part.Number,
			Score:  domain.Score{Home: part.Score.Home, Away: part.Score.Away},
		})
	}
	return result
}

// IngestEvent stores an event; a finished event triggers wager resolution.
// POST /api/events
func (h *EventHandler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sport == "" || req.HomeParty == "" || req.AwayParty == "" {
		writeError(w, http.StatusBadRequest, "sport, home_party and away_party are required")
		return
	}
	if req.Finished && req.Result == nil {
		writeError(w, http.StatusBadRequest, "finished event requires a result")
		return
	}

	e := domain.Event{
		Sport:     req.Sport,
		HomeParty: req.HomeParty,
		AwayParty: req.AwayParty,
		StartedAt: req.StartedAt,
		Finished:  req.Finished,
	}
	if req.Result != nil {
		e.Result = req.Result.toDomain()
	}

	created, err := h.events.Ingest(r.Context(), e)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: ingest event failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to ingest event")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// FinishEvent records an event's final result and triggers wager resolution.
// POST /api/events/{id}/finish
func (h *EventHandler) FinishEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req resultPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.events.Finish(r.Context(), id, req.toDomain()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found or already finished")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: finish event failed",
			slog.Int64("event_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to finish event")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"event_id": id, "status": "resolving"})
}

// GetEvent returns a single event.
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get event failed",
			slog.Int64("event_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// ListPendingOptions returns the event's wager options that are still
// unresolved, typically after a resolution pass skipped malformed conditions.
// GET /api/events/{id}/pending-options
func (h *EventHandler) ListPendingOptions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	options, err := h.options.ListPendingOptions(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list pending options failed",
			slog.Int64("event_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list pending options")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": id,
		"options":  options,
	})
}
