package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mpajak/betslip/internal/condition"
	"github.com/mpajak/betslip/internal/domain"
)

// defaultLockTTL bounds a single event resolution pass. The lock is released
// explicitly on completion; the TTL only covers a crashed worker.
const defaultLockTTL = 2 * time.Minute

// Resolver resolves the pending wager options of finished events. Dispatch
// acknowledges immediately; the actual pass runs on a pool of worker
// goroutines. A per-event distributed lock keeps duplicate deliveries of the
// same finished signal from racing.
type Resolver struct {
	events  domain.EventStore
	wagers  domain.WagerStore
	ledger  *Ledger
	locks   domain.LockManager
	bus     domain.SignalBus
	logger  *slog.Logger
	lockTTL time.Duration

	workers int
	jobs    chan int64
}

// NewResolver creates a Resolver with the given worker count and queue
// capacity. bus may be nil.
func NewResolver(
	events domain.EventStore,
	wagers domain.WagerStore,
	ledger *Ledger,
	locks domain.LockManager,
	bus domain.SignalBus,
	workers, queueSize int,
	logger *slog.Logger,
) *Resolver {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &Resolver{
		events:  events,
		wagers:  wagers,
		ledger:  ledger,
		locks:   locks,
		bus:     bus,
		logger:  logger.With(slog.String("component", "resolver")),
		lockTTL: defaultLockTTL,
		workers: workers,
		jobs:    make(chan int64, queueSize),
	}
}

// WithLockTTL overrides the per-event lock TTL and returns the receiver.
func (r *Resolver) WithLockTTL(ttl time.Duration) *Resolver {
	if ttl > 0 {
		r.lockTTL = ttl
	}
	return r
}

// Dispatch queues an event for resolution and returns immediately. When the
// queue is full the event is dropped with a warning; the caller may
// re-dispatch (resolution is idempotent).
func (r *Resolver) Dispatch(eventID int64) {
	select {
	case r.jobs <- eventID:
	default:
		r.logger.Warn("resolution queue full, dropping event", slog.Int64("event_id", eventID))
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. Worker
// failures on individual events are logged, not fatal.
func (r *Resolver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case eventID := <-r.jobs:
					if err := r.ResolveEvent(ctx, eventID); err != nil {
						r.logger.Error("event resolution failed",
							slog.Int64("event_id", eventID),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ResolveEvent runs one full resolution pass for a finished event: close
// last-call wagers, evaluate every still-pending visible option, persist the
// outcomes, and feed the coupon ledger. Options resolved on an earlier pass
// replay their ledger update, so calling it repeatedly repairs any coupon a
// previous pass failed partway through.
func (r *Resolver) ResolveEvent(ctx context.Context, eventID int64) error {
	unlock, err := r.locks.Acquire(ctx, fmt.Sprintf("resolve:event:%d", eventID), r.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.Info("resolution already in progress", slog.Int64("event_id", eventID))
			return nil
		}
		return fmt.Errorf("resolver: lock event %d: %w", eventID, err)
	}
	defer unlock()

	ev, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("resolver: load event %d: %w", eventID, err)
	}
	if !ev.Finished {
		return fmt.Errorf("resolver: event %d: %w", eventID, domain.ErrEventNotFinished)
	}

	closed, err := r.wagers.CloseLastCall(ctx, eventID, domain.LastCallGameEnd)
	if err != nil {
		return fmt.Errorf("resolver: close last-call wagers for event %d: %w", eventID, err)
	}
	if closed > 0 {
		r.logger.Info("last-call wagers closed",
			slog.Int64("event_id", eventID),
			slog.Int64("count", closed),
		)
	}

	options, err := r.wagers.ListOptionsByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("resolver: list options for event %d: %w", eventID, err)
	}

	resolved, skipped := 0, 0
	for _, opt := range options {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("resolver: event %d pass interrupted: %w", eventID, err)
		}
		if opt.Status != domain.OptionPending {
			// Resolved by an earlier pass. Replay the ledger update so a
			// coupon stranded by a failure between the status write and
			// the settlement still gets settled; the application is
			// idempotent, so this is a no-op for healthy coupons.
			if err := r.ledger.OnOptionResolved(ctx, opt.ID); err != nil {
				r.logger.Error("ledger replay failed",
					slog.Int64("option_id", opt.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if r.resolveOption(ctx, &ev, opt) {
			resolved++
		} else {
			skipped++
		}
	}

	r.logger.Info("event resolved",
		slog.Int64("event_id", eventID),
		slog.Int("options_resolved", resolved),
		slog.Int("options_skipped", skipped),
	)
	r.publish(ctx, ChannelEventFinished, eventFinishedSignal{EventID: eventID, OptionsResolved: resolved})
	return nil
}

// resolveOption evaluates one option's win condition against the event and
// persists the terminal status. A malformed condition leaves the option
// PENDING for operator repair; any other failure is logged and skipped so
// the rest of the batch continues. It reports whether the option reached a
// terminal status in this pass.
func (r *Resolver) resolveOption(ctx context.Context, ev *domain.Event, opt domain.WagerOption) bool {
	won, err := condition.Evaluate(opt.WinCondition, ev)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedCondition) {
			r.logger.Warn("malformed win condition, option left pending",
				slog.Int64("option_id", opt.ID),
				slog.String("condition", opt.WinCondition),
				slog.String("error", err.Error()),
			)
		} else {
			r.logger.Error("win condition evaluation failed",
				slog.Int64("option_id", opt.ID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	status := domain.OptionLost
	if won {
		status = domain.OptionWon
	}

	changed, err := r.wagers.ResolveOption(ctx, opt.ID, status)
	if err != nil {
		r.logger.Error("option status update failed",
			slog.Int64("option_id", opt.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if changed {
		r.publish(ctx, ChannelOptionResolved, optionResolvedSignal{
			OptionID: opt.ID,
			WagerID:  opt.WagerID,
			Status:   string(status),
		})
	}

	// Feed the ledger even when an earlier pass already persisted the
	// status: the application is idempotent, and a pass that died between
	// the status write and the ledger update is repaired on the retry.
	if err := r.ledger.OnOptionResolved(ctx, opt.ID); err != nil {
		r.logger.Error("ledger update failed",
			slog.Int64("option_id", opt.ID),
			slog.String("error", err.Error()),
		)
	}
	return changed
}

type optionResolvedSignal struct {
	OptionID int64  `json:"option_id"`
	WagerID  int64  `json:"wager_id"`
	Status   string `json:"status"`
}

type eventFinishedSignal struct {
	EventID         int64 `json:"event_id"`
	OptionsResolved int   `json:"options_resolved"`
}

func (r *Resolver) publish(ctx context.Context, channel string, v any) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err == nil {
		err = r.bus.Publish(ctx, channel, payload)
	}
	if err != nil {
		r.logger.Warn("signal not published",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// ResolveRequest is the JSON payload carried on ChannelResolveRequests.
type ResolveRequest struct {
	EventID int64 `json:"event_id"`
}

// ConsumeRequests subscribes to ChannelResolveRequests and feeds every
// received event ID into the worker queue. It blocks until ctx is cancelled.
// API-only processes publish on that channel through a BusDispatcher.
func (r *Resolver) ConsumeRequests(ctx context.Context) error {
	if r.bus == nil {
		return nil
	}
	ch, err := r.bus.Subscribe(ctx, ChannelResolveRequests)
	if err != nil {
		return fmt.Errorf("resolver: subscribe %s: %w", ChannelResolveRequests, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var req ResolveRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				r.logger.Warn("malformed resolve request", slog.String("error", err.Error()))
				continue
			}
			r.Dispatch(req.EventID)
		}
	}
}

// BusDispatcher forwards resolution requests over the signal bus instead of
// an in-process queue. It lets an API-only process hand finished events to a
// separately running engine process.
type BusDispatcher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewBusDispatcher creates a BusDispatcher publishing on ChannelResolveRequests.
func NewBusDispatcher(bus domain.SignalBus, logger *slog.Logger) *BusDispatcher {
	return &BusDispatcher{
		bus:    bus,
		logger: logger.With(slog.String("component", "bus_dispatcher")),
	}
}

// Dispatch publishes the event ID on the resolve request channel. Publish
// failures are logged; resolution can be re-requested at any time.
func (d *BusDispatcher) Dispatch(eventID int64) {
	payload, err := json.Marshal(ResolveRequest{EventID: eventID})
	if err == nil {
		err = d.bus.Publish(context.Background(), ChannelResolveRequests, payload)
	}
	if err != nil {
		d.logger.Warn("resolve request not published",
			slog.Int64("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
}
