// Package main runs the dairy market HTTP service: quotations, market changes,
// summaries, price suggestions, bot negotiations and trade signals.
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

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/api"
	"dairy-market-lab/internal/app"
	"dairy-market-lab/internal/config"
)

// Server holds the HTTP listener and the wired application.
type Server struct {
	addr          string
	statsInterval time.Duration

	app    *app.App
	http   *http.Server
	logger logrus.FieldLogger
}

func main() {
	configDir := flag.String("config-dir", config.DefaultConfigDir, "Directory holding db_config.yaml and ssh_config.yaml")
	envFile := flag.String("env-file", config.DefaultEnvFile, "Optional .env file")
	connection := flag.String("connection", "", "Warehouse profile from db_config.yaml (default DB_CONNECTION or env)")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (default HTTP_ADDR or :8000)")
	logLevel := flag.String("log-level", "", "Log level (default LOG_LEVEL or info)")
	useMemory := flag.Bool("use-memory", false, "Serve fixture data from in-memory stores")
	migrate := flag.Bool("migrate", false, "Apply Postgres and ClickHouse schemas on start")
	seed := flag.Int64("seed", 0, "Jitter and simulated counterpart seed (0 seeds from time)")
	statsInterval := flag.Duration("stats-interval", 15*time.Second, "Connection pool stats interval")

	flag.Parse()

	cfg, err := config.Load(config.Options{
		Dir:            *configDir,
		EnvFile:        *envFile,
		ConnectionName: *connection,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *useMemory {
		cfg.UseMemory = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(cfg.LogFields()).Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())

	application, err := app.New(ctx, cfg, logger, app.Options{Seed: *seed, Migrate: *migrate})
	if err != nil {
		logger.WithError(err).Fatal("failed to build application")
	}
	closeApp := func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Warn("failed to release resources")
		}
	}

	server := &Server{
		addr:          cfg.HTTPAddr,
		statsInterval: *statsInterval,
		app:           application,
		logger:        logger,
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Warn("received second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	closeApp()
	if serverFailed(err) {
		logger.WithError(err).Fatal("server error")
	}
	logger.Info("shutdown complete")
}

// serverFailed reports whether Run stopped for a reason other than shutdown.
func serverFailed(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Run serves HTTP and reports pool stats until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr: s.addr,
		Handler: api.NewRouter(&api.Config{
			Market:      s.app.Market,
			Negotiation: s.app.Negotiation,
			Summary:     s.app.Summary,
			Logger:      s.logger.WithField("component", "api"),
			Backends:    s.app.Backends,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		s.logger.WithField("addr", s.addr).Info("starting HTTP server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		err := s.app.RunStatsReporter(ctx, s.statsInterval)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("stats reporter: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Warn("http shutdown")
	}
	return runErr
}
