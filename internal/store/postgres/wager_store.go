package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpajak/betslip/internal/domain"
)

// WagerStore implements domain.WagerStore using PostgreSQL.
type WagerStore struct {
	pool *pgxpool.Pool
}

// NewWagerStore creates a new WagerStore backed by the given connection pool.
func NewWagerStore(pool *pgxpool.Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

// Create inserts a wager together with its options and returns the wager ID.
func (s *WagerStore) Create(ctx context.Context, w domain.Wager) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin create wager: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertWager = `
		INSERT INTO wagers (event_id, description, last_call, accepting_stakes, visible)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, insertWager,
		w.EventID, w.Description, string(w.LastCall), w.AcceptingStakes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create wager: %w", err)
	}

	const insertOption = `
		INSERT INTO wager_options (wager_id, description, win_condition, status, visible)
		VALUES ($1, $2, $3, $4, TRUE)`

	for _, opt := range w.Options {
		status := opt.Status
		if status == "" {
			status = domain.OptionPending
		}
		if _, err := tx.Exec(ctx, insertOption, id, opt.Description, opt.WinCondition, string(status)); err != nil {
			return 0, fmt.Errorf("postgres: create wager option: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit create wager: %w", err)
	}
	return id, nil
}

const wagerSelectCols = `id, event_id, description, last_call, accepting_stakes, visible, created_at`

func scanWager(scanner interface{ Scan(dest ...any) error }) (domain.Wager, error) {
	var w domain.Wager
	var lastCall string
	err := scanner.Scan(
		&w.ID, &w.EventID, &w.Description, &lastCall,
		&w.AcceptingStakes, &w.Visible, &w.CreatedAt,
	)
	if err != nil {
		return domain.Wager{}, err
	}
	w.LastCall = domain.LastCallPhase(lastCall)
	return w, nil
}

// GetByID returns a single visible wager with its options attached.
func (s *WagerStore) GetByID(ctx context.Context, id int64) (domain.Wager, error) {
	query := `SELECT ` + wagerSelectCols + ` FROM wagers WHERE id = $1 AND visible`

	w, err := scanWager(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wager{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Wager{}, fmt.Errorf("postgres: get wager %d: %w", id, err)
	}

	if w.Options, err = s.listOptions(ctx, w.ID); err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}

// ListBetable returns visible wagers for the event that still accept stakes,
// each with its options.
func (s *WagerStore) ListBetable(ctx context.Context, eventID int64) ([]domain.Wager, error) {
	query := `SELECT ` + wagerSelectCols + `
		FROM wagers
		WHERE event_id = $1 AND accepting_stakes AND visible
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list betable wagers for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var wagers []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate wagers: %w", err)
	}

	for i := range wagers {
		if wagers[i].Options, err = s.listOptions(ctx, wagers[i].ID); err != nil {
			return nil, err
		}
	}
	return wagers, nil
}

// CloseLastCall stops stake intake for every visible wager of the event whose
// last-call phase matches.
func (s *WagerStore) CloseLastCall(ctx context.Context, eventID int64, phase domain.LastCallPhase) (int64, error) {
	const query = `
		UPDATE wagers
		SET accepting_stakes = FALSE
		WHERE event_id = $1 AND last_call = $2 AND accepting_stakes AND visible`

	tag, err := s.pool.Exec(ctx, query, eventID, string(phase))
	if err != nil {
		return 0, fmt.Errorf("postgres: close last call for event %d: %w", eventID, err)
	}
	return tag.RowsAffected(), nil
}

// GetOption returns a single visible wager option.
func (s *WagerStore) GetOption(ctx context.Context, optionID int64) (domain.WagerOption, error) {
	const query = `
		SELECT id, wager_id, description, win_condition, status, visible
		FROM wager_options WHERE id = $1 AND visible`

	o, err := scanOption(s.pool.QueryRow(ctx, query, optionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WagerOption{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.WagerOption{}, fmt.Errorf("postgres: get wager option %d: %w", optionID, err)
	}
	return o, nil
}

// ListOptionsByEvent returns every visible option of the event's visible
// wagers, resolved or not.
func (s *WagerStore) ListOptionsByEvent(ctx context.Context, eventID int64) ([]domain.WagerOption, error) {
	const query = `
		SELECT o.id, o.wager_id, o.description, o.win_condition, o.status, o.visible
		FROM wager_options o
		JOIN wagers w ON w.id = o.wager_id
		WHERE w.event_id = $1 AND w.visible AND o.visible
		ORDER BY o.id`

	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list options for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var options []domain.WagerOption
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate wager options: %w", err)
	}
	return options, nil
}

// ListPendingOptions returns every visible PENDING option of the event's wagers.
func (s *WagerStore) ListPendingOptions(ctx context.Context, eventID int64) ([]domain.WagerOption, error) {
	const query = `
		SELECT o.id, o.wager_id, o.description, o.win_condition, o.status, o.visible
		FROM wager_options o
		JOIN wagers w ON w.id = o.wager_id
		WHERE w.event_id = $1 AND w.visible AND o.visible AND o.status = 'PENDING'
		ORDER BY o.id`

	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending options for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var options []domain.WagerOption
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate wager options: %w", err)
	}
	return options, nil
}

// ResolveOption sets the option's terminal status, conditional on the option
// still being PENDING. It reports whether a row changed, so delivering the
// same resolution twice is a visible no-op.
func (s *WagerStore) ResolveOption(ctx context.Context, optionID int64, status domain.WagerOptionStatus) (bool, error) {
	const query = `
		UPDATE wager_options
		SET status = $1
		WHERE id = $2 AND status = 'PENDING'`

	tag, err := s.pool.Exec(ctx, query, string(status), optionID)
	if err != nil {
		return false, fmt.Errorf("postgres: resolve option %d: %w", optionID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *WagerStore) listOptions(ctx context.Context, wagerID int64) ([]domain.WagerOption, error) {
	const query = `
		SELECT id, wager_id, description, win_condition, status, visible
		FROM wager_options WHERE wager_id = $1 AND visible ORDER BY id`

	rows, err := s.pool.Query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list options for wager %d: %w", wagerID, err)
	}
	defer rows.Close()

	var options []domain.WagerOption
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func scanOption(scanner interface{ Scan(dest ...any) error }) (domain.WagerOption, error) {
	var o domain.WagerOption
	var status string
	err := scanner.Scan(&o.ID, &o.WagerID, &o.Description, &o.WinCondition, &status, &o.Visible)
	if err != nil {
		return domain.WagerOption{}, err
	}
	o.Status = domain.WagerOptionStatus(status)
	return o, nil
}

// Compile-time interface check.
var _ domain.WagerStore = (*WagerStore)(nil)
