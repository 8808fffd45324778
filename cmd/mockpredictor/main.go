// Command mockpredictor serves a deterministic stand-in for the fire-risk
// prediction service, for local development and demos.
//
// Usage:
//
//	go run ./cmd/mockpredictor -addr :8000 -fail-every 4 -latency 250ms
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/mockpredictor"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8000", "listen address")
	failEvery := flag.Int("fail-every", 0, "fail every Nth /predict request (0 disables)")
	failStatus := flag.Int("fail-status", http.StatusServiceUnavailable, "HTTP status for injected failures")
	latency := flag.Duration("latency", 0, "delay added to every /predict response")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if *failEvery < 0 {
		flag.Usage()
		return fmt.Errorf("-fail-every must not be negative")
	}

	logger := sharedobs.NewLogger(*logLevel, "text")
	handler := mockpredictor.NewHandler(
		mockpredictor.NewModel(clockwork.NewRealClock()),
		mockpredictor.Config{FailEvery: *failEvery, FailStatus: *failStatus, Latency: *latency},
		logger,
	)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock predictor listening", "addr", *addr, "fail_every", *failEvery, "latency", *latency)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
