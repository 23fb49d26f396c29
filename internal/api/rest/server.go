package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/config"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/database"
	"github.com/davidleathers/payment-fraud-backend/internal/metrics"
	"github.com/davidleathers/payment-fraud-backend/internal/service/fraud"
)

// Server is the HTTP front of the fraud scoring service.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires the handler set, middleware chain, and health checks.
func NewServer(
	cfg *config.Config,
	svc *fraud.Service,
	db *database.Pool,
	redisClient *redis.Client,
	registry *metrics.Registry,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	handler := NewHandler(svc, logger)
	handler.Register(mux)

	health := NewHealthHandler(db, redisClient)
	health.Register(mux)

	chained := Chain(mux,
		Recovery(logger),
		RequestID(),
		Logging(logger, registry),
		RateLimit(cfg.Security.RateLimit),
		RequireAuth(cfg.Security.JWTSecret, "/api/v1/alerts"),
	)

	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      chained,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start serves until the context is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server",
		"timeout", s.cfg.Server.ShutdownTimeout)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
