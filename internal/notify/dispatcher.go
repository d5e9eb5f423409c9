package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpajak/betslip/internal/domain"
)

// Dispatcher decouples settlement from notification delivery. The settler
// enqueues outcome notifications after its database commit; a single worker
// drains the queue and fans each notification out to the configured senders.
// Delivery failures are retried once and then dropped, never affecting the
// settlement that produced them.
type Dispatcher struct {
	notifier *Notifier
	queue    chan domain.Notification
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher with a bounded queue.
func NewDispatcher(notifier *Notifier, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 256
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan domain.Notification, queueSize),
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Enqueue queues a notification for delivery and returns immediately. When
// the queue is full the notification is dropped with a warning; the outcome
// remains queryable through the coupon API.
func (d *Dispatcher) Enqueue(n domain.Notification) {
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			slog.Int64("user_id", n.UserID),
			slog.Int64("coupon_id", n.CouponID),
		)
	}
}

// Run consumes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

// deliver formats and sends one notification, retrying once on failure.
func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	var title string
	switch n.Outcome {
	case domain.CouponOutcomeWon:
		title = "Coupon won"
	case domain.CouponOutcomeLost:
		title = "Coupon lost"
	default:
		title = "Coupon settled"
	}
	message := fmt.Sprintf("Coupon %d for user %d settled: %s", n.CouponID, n.UserID, n.Outcome)

	err := d.notifier.Notify(ctx, string(n.Outcome), title, message)
	if err != nil {
		d.logger.Warn("notification delivery failed, retrying",
			slog.Int64("coupon_id", n.CouponID),
			slog.String("error", err.Error()),
		)
		err = d.notifier.Notify(ctx, string(n.Outcome), title, message)
	}
	if err != nil {
		d.logger.Error("notification dropped after retry",
			slog.Int64("user_id", n.UserID),
			slog.Int64("coupon_id", n.CouponID),
			slog.String("error", err.Error()),
		)
	}
}
