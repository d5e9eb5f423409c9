package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mpajak/betslip/internal/domain"
)

type recordingSender struct {
	mu       sync.Mutex
	titles   []string
	failures int
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("boom")
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversOutcomes(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, nil, testLogger())
	d := NewDispatcher(notifier, 8, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	d.Enqueue(domain.Notification{UserID: 7, CouponID: 1, Outcome: domain.CouponOutcomeWon})
	d.Enqueue(domain.Notification{UserID: 8, CouponID: 2, Outcome: domain.CouponOutcomeLost})

	deadline := time.After(2 * time.Second)
	for len(sender.sent()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("sent = %v, want two deliveries", sender.sent())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	got := sender.sent()
	if got[0] != "Coupon won" || got[1] != "Coupon lost" {
		t.Errorf("titles = %v", got)
	}
}

func TestDispatcherRetriesOnce(t *testing.T) {
	sender := &recordingSender{failures: 1}
	notifier := NewNotifier([]Sender{sender}, nil, testLogger())
	d := NewDispatcher(notifier, 8, testLogger())

	d.deliver(context.Background(), domain.Notification{
		UserID: 7, CouponID: 1, Outcome: domain.CouponOutcomeWon,
	})

	if got := sender.sent(); len(got) != 1 {
		t.Fatalf("sent = %v, want one delivery after retry", got)
	}
}
