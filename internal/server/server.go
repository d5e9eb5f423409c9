package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpajak/betslip/internal/domain"
	"github.com/mpajak/betslip/internal/server/handler"
	"github.com/mpajak/betslip/internal/server/middleware"
	"github.com/mpajak/betslip/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Rate limiting; disabled when RateLimit is zero or the limiter is nil.
	RateLimiter     domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Events       *handler.EventHandler
	Wagers       *handler.WagerHandler
	Coupons      *handler.CouponHandler
	Transactions *handler.TransactionHandler
}

// Server is the HTTP + WebSocket API server for the settlement system.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Event endpoints.
	mux.HandleFunc("POST /api/events", handlers.Events.IngestEvent)
	mux.HandleFunc("GET /api/events/{id}", handlers.Events.GetEvent)
	mux.HandleFunc("POST /api/events/{id}/finish", handlers.Events.FinishEvent)
	mux.HandleFunc("GET /api/events/{id}/pending-options", handlers.Events.ListPendingOptions)

	// Wager endpoints.
	mux.HandleFunc("POST /api/wagers", handlers.Wagers.CreateWager)
	mux.HandleFunc("GET /api/wagers", handlers.Wagers.ListWagers)
	mux.HandleFunc("GET /api/wagers/{id}", handlers.Wagers.GetWager)

	// Coupon endpoints.
	mux.HandleFunc("POST /api/coupons", handlers.Coupons.PlaceCoupon)
	mux.HandleFunc("POST /api/coupons/pool", handlers.Coupons.PlacePoolCoupon)
	mux.HandleFunc("GET /api/coupons", handlers.Coupons.ListCoupons)
	mux.HandleFunc("GET /api/coupons/{id}", handlers.Coupons.GetCoupon)

	// Transaction feed endpoints.
	mux.HandleFunc("POST /api/transactions", handlers.Transactions.RecordTransaction)
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.ListTransactions)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply rate limiting when configured.
	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, window)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
