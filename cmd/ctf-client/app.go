package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/csai/ctf-client/internal/auth"
	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/config"
	"github.com/csai/ctf-client/internal/instance"
	"github.com/csai/ctf-client/internal/lifecycle"
	"github.com/csai/ctf-client/internal/metrics"
	"github.com/csai/ctf-client/internal/observability"
)

// app holds everything a command needs for one run.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	clock     clockwork.Clock
	metrics   *metrics.Registry
	store     *challenges.Store
	api       *challenges.API
	loader    *challenges.DetailLoader
	instances *instance.Client
	logOut    io.Closer
}

// newApp wires the app. Interactive screens log to the configured log file
// so log lines do not tear the terminal UI.
func newApp(interactive bool) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var logOut io.WriteCloser = nopCloser{os.Stderr}
	if interactive || cfg.Observability.LogFile != "" {
		logOut, err = observability.OpenLogFile(cfg.Observability.LogFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, logOut)

	clock := clockwork.NewRealClock()
	reg := metrics.New()
	store, err := challenges.NewStore(cfg.Store.CacheFile, clock)
	if err != nil {
		_ = logOut.Close()
		return nil, err
	}

	apiHTTP, err := newHTTPClient(cfg, cfg.API.TimeoutSeconds, logger.With(slog.String("target", "platform")), reg, clock)
	if err != nil {
		_ = logOut.Close()
		return nil, err
	}
	orchHTTP, err := newHTTPClient(cfg, cfg.Orchestrator.TimeoutSeconds, logger.With(slog.String("target", "orchestrator")), reg, clock)
	if err != nil {
		_ = logOut.Close()
		return nil, err
	}

	api := challenges.NewAPI(cfg.API.BaseURL, apiHTTP)
	instances := instance.New(cfg.Orchestrator.BaseURL, cfg.Orchestrator.InstancesPath, orchHTTP,
		instance.WithClock(clock), instance.WithLogger(logger))
	return &app{
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		metrics:   reg,
		store:     store,
		api:       api,
		loader:    challenges.NewDetailLoader(api, store),
		instances: instances,
		logOut:    logOut,
	}, nil
}

func newHTTPClient(cfg config.Config, timeoutSeconds int, logger *slog.Logger, reg *metrics.Registry, clock clockwork.Clock) (*http.Client, error) {
	authed, err := auth.NewTransport(cfg.Auth, http.DefaultTransport, clock)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &observability.Transport{
			Base:      authed,
			Logger:    logger,
			Metrics:   reg,
			Clock:     clock,
			UserAgent: cfg.API.UserAgent,
		},
	}, nil
}

func (a *app) controller(ch challenges.Challenge, n lifecycle.Notifier) *lifecycle.Controller {
	return lifecycle.New(ch, a.instances, a.store,
		lifecycle.WithClock(a.clock),
		lifecycle.WithLogger(a.logger),
		lifecycle.WithNotifier(n),
		lifecycle.WithMetrics(a.metrics),
	)
}

// challenge returns the freshest copy of one challenge.
func (a *app) challenge(ctx context.Context, id int) (challenges.Challenge, error) {
	ch, err := a.loader.Load(ctx, id)
	if errors.Is(err, challenges.ErrNotFound) {
		return challenges.Challenge{}, fmt.Errorf("challenge %d does not exist", id)
	}
	return ch, err
}

func (a *app) close() {
	if path := a.cfg.Observability.MetricsFile; path != "" {
		if err := a.metrics.WriteFile(path); err != nil {
			a.logger.Warn("metrics_write_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	_ = a.logOut.Close()
}

// withApp runs fn with a wired app and always flushes metrics afterwards.
func withApp(interactive bool, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(interactive)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, args)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
