// Command gateway starts the car-rental orchestration Gateway HTTP server.
package main

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

	"github.com/carrental/gateway/internal/adapter/httpserver"
	"github.com/carrental/gateway/internal/aggregator"
	"github.com/carrental/gateway/internal/breaker"
	"github.com/carrental/gateway/internal/carcache"
	"github.com/carrental/gateway/internal/config"
	"github.com/carrental/gateway/internal/observability"
	"github.com/carrental/gateway/internal/retryqueue"
	"github.com/carrental/gateway/internal/saga"
	"github.com/carrental/gateway/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	cars := upstream.New("cars_service", cfg.CarsServiceURL, cfg.UpstreamTimeout)
	payment := upstream.New("payment_service", cfg.PaymentServiceURL, cfg.UpstreamTimeout)
	rental := upstream.New("rental_service", cfg.RentalServiceURL, cfg.UpstreamTimeout)

	breakers := breaker.NewRegistry()
	cache := carcache.New()
	retry := retryqueue.New(cfg.RetryQueueInterval, cfg.RetryQueueMaxAttempts)

	retryCtx, cancelRetry := context.WithCancel(context.Background())
	go retry.Run(retryCtx)
	slog.Info("retry queue worker started",
		slog.Duration("interval", cfg.RetryQueueInterval),
		slog.Int("max_attempts", cfg.RetryQueueMaxAttempts))

	coordinator := saga.New(cars, payment, rental, breakers, cache, retry, cfg)
	agg := aggregator.New(cars, payment, rental, breakers, cache, cfg)
	srv := httpserver.NewServer(cfg, cars, breakers, coordinator, agg)

	handler := httpserver.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)

	retry.Stop()
	cancelRetry()
}
