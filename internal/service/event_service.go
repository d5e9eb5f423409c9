package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpajak/betslip/internal/domain"
)

// ResolutionDispatcher queues a finished event for wager option resolution.
// Implemented by engine.Resolver.
type ResolutionDispatcher interface {
	Dispatch(eventID int64)
}

// EventService handles event ingestion and the hand-off to the resolution
// engine.
type EventService struct {
	events     domain.EventStore
	audit      domain.AuditStore
	dispatcher ResolutionDispatcher
	logger     *slog.Logger
}

// NewEventService creates an EventService with all required dependencies.
func NewEventService(
	events domain.EventStore,
	audit domain.AuditStore,
	dispatcher ResolutionDispatcher,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		events:     events,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Ingest stores an event. When the event arrives already finished with a
// result, resolution is dispatched immediately.
func (s *EventService) Ingest(ctx context.Context, e domain.Event) (domain.Event, error) {
	id, err := s.events.Create(ctx, e)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event_service: create event: %w", err)
	}
	e.ID = id

	s.logger.InfoContext(ctx, "event_service: event ingested",
		slog.Int64("event_id", id),
		slog.String("sport", e.Sport),
		slog.Bool("finished", e.Finished),
	)

	if e.Finished {
		s.dispatcher.Dispatch(id)
	}
	return e, nil
}

// Finish records the final result of an event and dispatches resolution.
// Finishing an already-finished event is rejected by the store.
func (s *EventService) Finish(ctx context.Context, eventID int64, result domain.EventResult) error {
	if err := s.events.MarkFinished(ctx, eventID, result); err != nil {
		return fmt.Errorf("event_service: finish event %d: %w", eventID, err)
	}

	if err := s.audit.Log(ctx, "event_finished", map[string]any{
		"event_id":   eventID,
		"home_score": result.FinalScore.Home,
		"away_score": result.FinalScore.Away,
	}); err != nil {
		s.logger.WarnContext(ctx, "event_service: audit log failed",
			slog.Int64("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}

	s.dispatcher.Dispatch(eventID)
	return nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id int64) (domain.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event_service: get event %d: %w", id, err)
	}
	return e, nil
}
