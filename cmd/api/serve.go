package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/checkin-pay/internal/app"
	"github.com/cimillas/checkin-pay/internal/backend"
	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/config"
	"github.com/cimillas/checkin-pay/internal/storage"
	transporthttp "github.com/cimillas/checkin-pay/internal/transport/http"
	"github.com/spf13/cobra"
)

const startupTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the hold sweeper",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := openStore(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	svc := newService(cfg, store, logger)
	handler := transporthttp.NewHandler(svc, transporthttp.Options{
		Routes:      routesFrom(cfg.Navigation),
		Session:     transporthttp.SessionOptions{CookieName: cfg.Session.CookieName, Secure: cfg.Session.Secure},
		CORSOrigins: cfg.Server.CORSOrigins,
		Health:      store.health,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:     ":" + cfg.Server.Port,
		Handler:  handler,
		ErrorLog: logger,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.RunSweeper(stopCtx, cfg.Hold.SweepInterval)

	logger.Printf("store driver=%s", cfg.Store.Driver)
	return serveUntil(stopCtx, server, cfg.Server.ShutdownTimeout, logger)
}

// serveUntil runs server until it fails or ctx is done, then shuts it down
// within shutdownTimeout.
func serveUntil(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *log.Logger) error {
	logger.Printf("api listening on %s", server.Addr)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server error: %v", err)
			runErr = err
		}
	case <-ctx.Done():
		logger.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("server shutdown error: %v", err)
	}
	logger.Printf("server stopped")
	return runErr
}

func newService(cfg *config.Config, store storage.Store, logger *log.Logger) *app.Service {
	client := backend.New(backend.Config{
		BaseURL:     cfg.Backend.BaseURL,
		ConfirmPath: cfg.Backend.ConfirmPath,
		ReleasePath: cfg.Backend.ReleasePath,
		AuthToken:   cfg.Backend.AuthToken,
		Timeout:     cfg.Backend.Timeout,
	})

	return app.NewService(store, client, clock.NewSystem(),
		app.WithLogger(logger),
		app.WithHoldWindow(cfg.Hold.Duration),
		app.WithRetryPolicy(app.RetryPolicy{MaxRetries: cfg.Backend.MaxRetries, Backoff: cfg.Backend.RetryBackoff}),
		app.WithWaitTimeout(cfg.Coordinator.WaitTimeout),
		app.WithWaitPollInterval(cfg.Coordinator.PollInterval),
		app.WithStaleInFlight(cfg.Coordinator.StaleAfter),
		app.WithDuplicateMarkers(cfg.Backend.DuplicateMarkers...),
	)
}

func routesFrom(nav config.NavigationConfig) transporthttp.Routes {
	r := transporthttp.DefaultRoutes()
	if nav.Success != "" {
		r.Success = nav.Success
	}
	if nav.Failure != "" {
		r.Failure = nav.Failure
	}
	if nav.Verifying != "" {
		r.Verifying = nav.Verifying
	}
	if nav.Expired != "" {
		r.Expired = nav.Expired
	}
	return r
}
