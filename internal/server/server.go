// Package server wires the application together and runs the HTTP server.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → storage backend (sqlite | jsonfile | postgres | redis)
//	  → service.Ledger
//	  → handlers → chi routes
//	  → retention.Job (optional)
//
// Every dependency is built here, in New, and handed down explicitly. No package
// keeps a global ledger or connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/bin-confirm/internal/config"
	"github.com/sakif/bin-confirm/internal/handler"
	"github.com/sakif/bin-confirm/internal/middleware"
	"github.com/sakif/bin-confirm/internal/repository"
	"github.com/sakif/bin-confirm/internal/repository/jsonfile"
	"github.com/sakif/bin-confirm/internal/repository/postgres"
	redisRepo "github.com/sakif/bin-confirm/internal/repository/redis"
	sqliteRepo "github.com/sakif/bin-confirm/internal/repository/sqlite"
	"github.com/sakif/bin-confirm/internal/retention"
	"github.com/sakif/bin-confirm/internal/schedule"
	"github.com/sakif/bin-confirm/internal/service"
)

const openTimeout = 10 * time.Second

// Server owns the router, the storage backend and the purge job. The backend is
// closed when Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	repo   repository.ConfirmationRepository
	ledger *service.Ledger
	purge  *retention.Job // nil when retention is disabled
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Driver, err)
	}

	ledger := service.NewLedger(repo, logger, service.Options{
		Location:      loc,
		RetentionDays: cfg.Ledger.RetentionDays,
	})

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		repo:   repo,
		ledger: ledger,
	}

	if cfg.Ledger.RetentionDays > 0 {
		s.purge = retention.NewJob(ledger, cfg.Ledger.PurgeSchedule, loc, logger)
	}

	if err := s.setupRoutes(); err != nil {
		repo.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openRepository returns the backend selected by storage.driver.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ConfirmationRepository, error) {
	st := cfg.Storage
	switch st.Driver {
	case config.DriverSQLite:
		return sqliteRepo.New(st.SQLitePath, logger)
	case config.DriverJSONFile:
		return jsonfile.New(st.JSONPath, logger)
	case config.DriverPostgres:
		return postgres.New(ctx, st.PostgresDSN, logger)
	case config.DriverRedis:
		opts := redisRepo.Options{
			Addr:     st.Redis.Addr,
			Password: st.Redis.Password,
			DB:       st.Redis.DB,
		}
		if days := cfg.Ledger.RetentionDays; days > 0 {
			opts.TTL = time.Duration(days+1) * 24 * time.Hour
		}
		return redisRepo.New(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", st.Driver)
	}
}

// setupRoutes registers middleware and routes.
//
// ROUTES:
// GET  /                     → confirmation page (HTML)
// GET  /confirmations        → today's confirmations (never fails)
// POST /confirmations        → confirm for today
// GET  /confirmations/check  → has this userId confirmed today?
// GET  /status               → should the bin be open right now?
// GET  /healthz              → liveness
//
// MIDDLEWARE ORDER: RequestID must run before Logger so the id is in the log line.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	sched := schedule.Default()

	pageHandler, err := handler.NewPageHandler(sched, s.ledger, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	s.router.Get("/", pageHandler.HandlePage)

	confirmationHandler := handler.NewConfirmationHandler(s.ledger, s.logger)
	s.router.Route("/confirmations", func(r chi.Router) {
		r.Get("/", confirmationHandler.HandleList)
		r.Post("/", confirmationHandler.HandleConfirm)
		r.Get("/check", confirmationHandler.HandleCheck)
	})

	statusHandler := handler.NewStatusHandler(sched, s.ledger)
	s.router.Get("/status", statusHandler.HandleStatus)
	s.router.Get("/healthz", handler.HandleHealth)

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting connections and drain in-flight requests
//  2. stop the purge job, waiting for a running purge
//  3. close the storage backend
func (s *Server) Start() error {
	defer s.closeRepository()

	if s.purge != nil {
		if err := s.purge.Start(); err != nil {
			return err
		}
		defer s.purge.Stop()
	}

	srvCfg := s.config.Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", srvCfg.Port),
		Handler:      s.router,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  srvCfg.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", srvCfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", srvCfg.Port)),
			slog.String("storage", s.config.Storage.Driver),
			slog.String("timezone", s.config.Ledger.Timezone),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the storage backend without starting the server.
func (s *Server) Close() error {
	return s.repo.Close()
}

func (s *Server) closeRepository() {
	if err := s.repo.Close(); err != nil {
		s.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}
}
