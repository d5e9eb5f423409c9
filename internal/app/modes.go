package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mpajak/betslip/internal/engine"
	"github.com/mpajak/betslip/internal/notify"
	"github.com/mpajak/betslip/internal/server"
	"github.com/mpajak/betslip/internal/server/handler"
	"github.com/mpajak/betslip/internal/server/ws"
	"github.com/mpajak/betslip/internal/service"
)

// ServerMode starts the HTTP API and WebSocket feed only. Finished events
// are handed to a separately running engine process over the signal bus.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	dispatcher := engine.NewBusDispatcher(deps.SignalBus, a.logger)
	a.startHTTPServer(ctx, g, deps, dispatcher)

	return g.Wait()
}

// EngineMode starts the settlement engine only: the resolver worker pool,
// the notification dispatcher, and the archive loop when enabled. Resolution
// requests arrive over the signal bus.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	g, ctx := errgroup.WithContext(ctx)

	resolver := a.startEngine(ctx, g, deps)
	g.Go(func() error {
		return resolver.ConsumeRequests(ctx)
	})

	return g.Wait()
}

// FullMode starts everything in one process: the settlement engine, the HTTP
// API, the WebSocket feed, and the archive loop when enabled. Finished
// events are dispatched to the resolver in-process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	resolver := a.startEngine(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, resolver)

	return g.Wait()
}

// startEngine builds the settler, ledger, and resolver, starts the resolver
// worker pool and the notification dispatcher, and schedules the archive
// loop when archival is enabled. The returned resolver accepts in-process
// dispatches.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies) *engine.Resolver {
	notifyDispatcher := notify.NewDispatcher(deps.Notifier, a.cfg.Notify.QueueSize, a.logger)
	g.Go(func() error {
		return notifyDispatcher.Run(ctx)
	})

	settler := engine.NewSettler(
		deps.CouponStore,
		deps.BonusTierStore,
		notifyDispatcher,
		deps.SignalBus,
		a.logger,
	)
	ledger := engine.NewLedger(deps.CouponStore, settler, a.logger)
	resolver := engine.NewResolver(
		deps.EventStore,
		deps.WagerStore,
		ledger,
		deps.LockManager,
		deps.SignalBus,
		a.cfg.Resolver.Workers,
		a.cfg.Resolver.QueueSize,
		a.logger,
	).WithLockTTL(a.cfg.Resolver.LockTTL.Duration)

	g.Go(func() error {
		return resolver.Run(ctx)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}

	return resolver
}

// startHTTPServer wires the service and handler layers, attaches the
// WebSocket hub, and runs the API server until ctx is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	dispatcher service.ResolutionDispatcher,
) {
	eventSvc := service.NewEventService(deps.EventStore, deps.AuditStore, dispatcher, a.logger)
	wagerSvc := service.NewWagerService(deps.WagerStore, a.logger)
	couponSvc := service.NewCouponService(deps.CouponStore, deps.WagerStore, deps.AuditStore, a.logger)
	transactionSvc := service.NewTransactionService(deps.TransactionStore)

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Events:       handler.NewEventHandler(eventSvc, wagerSvc, a.logger),
		Wagers:       handler.NewWagerHandler(wagerSvc, a.logger),
		Coupons:      handler.NewCouponHandler(couponSvc, a.logger),
		Transactions: handler.NewTransactionHandler(transactionSvc, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimiter:     deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// runArchiveLoop periodically moves settled history older than the retention
// window into object storage. The first pass runs one interval after start.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)

			coupons, err := deps.Archiver.ArchiveSettledCoupons(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "coupon archive pass failed",
					slog.String("error", err.Error()),
				)
			}
			transactions, err := deps.Archiver.ArchiveTransactions(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "transaction archive pass failed",
					slog.String("error", err.Error()),
				)
			}

			a.logger.InfoContext(ctx, "archive pass complete",
				slog.Time("cutoff", cutoff),
				slog.Int64("coupons", coupons),
				slog.Int64("transactions", transactions),
			)
		}
	}
}
