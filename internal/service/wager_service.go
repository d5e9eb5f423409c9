package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpajak/betslip/internal/domain"
)

// WagerService handles wager and wager option reads and intake.
type WagerService struct {
	wagers domain.WagerStore
	logger *slog.Logger
}

// NewWagerService creates a WagerService.
func NewWagerService(wagers domain.WagerStore, logger *slog.Logger) *WagerService {
	return &WagerService{wagers: wagers, logger: logger}
}

// Create stores a wager with its options and returns it with IDs assigned.
func (s *WagerService) Create(ctx context.Context, w domain.Wager) (domain.Wager, error) {
	if len(w.Options) == 0 {
		return domain.Wager{}, fmt.Errorf("wager_service: wager without options")
	}
	for _, opt := range w.Options {
		if opt.WinCondition == "" {
			return domain.Wager{}, fmt.Errorf("wager_service: option %q without win condition", opt.Description)
		}
	}

	id, err := s.wagers.Create(ctx, w)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("wager_service: create wager: %w", err)
	}

	s.logger.InfoContext(ctx, "wager_service: wager created",
		slog.Int64("wager_id", id),
		slog.Int64("event_id", w.EventID),
		slog.Int("options", len(w.Options)),
	)
	return s.wagers.GetByID(ctx, id)
}

// Get returns a single wager with its options.
func (s *WagerService) Get(ctx context.Context, id int64) (domain.Wager, error) {
	w, err := s.wagers.GetByID(ctx, id)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("wager_service: get wager %d: %w", id, err)
	}
	return w, nil
}

// ListBetable returns the event's wagers that still accept stakes.
func (s *WagerService) ListBetable(ctx context.Context, eventID int64) ([]domain.Wager, error) {
	wagers, err := s.wagers.ListBetable(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("wager_service: list betable for event %d: %w", eventID, err)
	}
	return wagers, nil
}

// ListPendingOptions returns the event's wager options that have not reached
// a terminal status yet.
func (s *WagerService) ListPendingOptions(ctx context.Context, eventID int64) ([]domain.WagerOption, error) {
	options, err := s.wagers.ListPendingOptions(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("wager_service: list pending options for event %d: %w", eventID, err)
	}
	return options, nil
}
