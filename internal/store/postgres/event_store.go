package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpajak/betslip/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Create inserts a new event and returns its ID.
func (s *EventStore) Create(ctx context.Context, e domain.Event) (int64, error) {
	result, err := json.Marshal(e.Result)
	if err != nil {
		return 0, fmt.Errorf("postgres: marshal event result: %w", err)
	}

	const query = `
		INSERT INTO events (sport, home_party, away_party, started_at, finished, result)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err = s.pool.QueryRow(ctx, query,
		e.Sport, e.HomeParty, e.AwayParty, e.StartedAt, e.Finished, result,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create event: %w", err)
	}
	return id, nil
}

// GetByID returns a single event.
func (s *EventStore) GetByID(ctx context.Context, id int64) (domain.Event, error) {
	const query = `
		SELECT id, sport, home_party, away_party, started_at, finished, result,
		       created_at, updated_at
		FROM events WHERE id = $1`

	var e domain.Event
	var result []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Sport, &e.HomeParty, &e.AwayParty, &e.StartedAt, &e.Finished,
		&result, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("postgres: get event %d: %w", id, err)
	}

	if len(result) > 0 {
		if err := json.Unmarshal(result, &e.Result); err != nil {
			return domain.Event{}, fmt.Errorf("postgres: unmarshal event %d result: %w", id, err)
		}
	}
	return e, nil
}

// MarkFinished stores the finalized result tree and flips the finished flag.
// Finished events are immutable, so the update only applies once.
func (s *EventStore) MarkFinished(ctx context.Context, id int64, result domain.EventResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("postgres: marshal event result: %w", err)
	}

	const query = `
		UPDATE events
		SET finished = TRUE, result = $1, updated_at = NOW()
		WHERE id = $2 AND NOT finished`

	tag, err := s.pool.Exec(ctx, query, data, id)
	if err != nil {
		return fmt.Errorf("postgres: mark event %d finished: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
