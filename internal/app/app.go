// v4
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"log/slog"

	"github.com/HashimCodeDev/STVE/internal/aggregation"
	"github.com/HashimCodeDev/STVE/internal/broadcast"
	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/httpapi"
	"github.com/HashimCodeDev/STVE/internal/ingest"
	"github.com/HashimCodeDev/STVE/internal/keyedlock"
	"github.com/HashimCodeDev/STVE/internal/logging"
	"github.com/HashimCodeDev/STVE/internal/metrics"
	"github.com/HashimCodeDev/STVE/internal/store"
	"github.com/HashimCodeDev/STVE/internal/summary"
	"github.com/HashimCodeDev/STVE/internal/tickets"
)

// Application wires configuration, logging, the Store/Scorer-backed
// pipeline, and the HTTP surface, then runs them to completion or
// cancellation — generalizing a single ledger-consumer-plus-scoreboard
// service shape to the engine's ingest ->
// score -> persist -> broadcast pipeline plus its HTTP front end.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File

	store    *store.Store
	hub      *broadcast.Hub
	tickets  *tickets.Manager
	ingestor *ingest.Ingestor
	agg      *aggregation.Aggregator
	metrics  *metrics.Registry

	httpServer *httpapi.Server
	srv        *http.Server
}

// New wires every collaborator from cfg. The returned Application owns
// the log file and the HTTP server's rate limiter; call Close when
// done.
func New(cfg config.Config) (*Application, error) {
	logger, logFile, err := logging.New(cfg.LogFilePath)
	if err != nil {
		return nil, err
	}

	st := store.New(cfg)
	hub := broadcast.New(0)
	locks := keyedlock.New()
	reg := metrics.New()
	agg := aggregation.New(st, cfg.DashboardCacheTTL, metrics.CacheObserver{})

	var summariser ingest.Summariser
	if cfg.SummaryEnabled {
		summariser = summary.New(cfg.SummaryEndpoint, cfg.SummaryTimeout)
	}

	tm := tickets.New(st, hub, locks, logger.With(slog.String("component", "tickets")))
	in := ingest.New(cfg, st, tm, hub, locks, summariser, logger.With(slog.String("component", "ingest")))

	apiServer := httpapi.New(cfg, logger.With(slog.String("component", "httpapi")), st, in, tm, hub, agg, reg)
	handler, err := apiServer.Handler()
	if err != nil {
		apiServer.Close()
		_ = logFile.Close()
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		logger:     logger,
		logFile:    logFile,
		store:      st,
		hub:        hub,
		tickets:    tm,
		ingestor:   in,
		agg:        agg,
		metrics:    reg,
		httpServer: apiServer,
		srv:        srv,
	}, nil
}

// Logger exposes the configured slog logger so main can emit logs
// before and after Run.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Run blocks until ctx is cancelled or the HTTP server fails, then
// drains in-flight requests within cfg.ShutdownTimeout. The ingest and
// ticket pipeline runs synchronously inside each HTTP request rather
// than as a separate background goroutine, so this loop only needs to
// supervise the one listener — a narrower version of a fan-in select
// loop over several long-running goroutines.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpCh := make(chan error, 1)
	go func() {
		a.logger.Info("http_server_listen", slog.String("address", a.cfg.ListenAddress))
		err := a.srv.ListenAndServe()
		if err != nil && errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		httpCh <- err
	}()

	select {
	case err := <-httpCh:
		if err != nil {
			a.logger.Error("http_server_error", slog.Any("err", err))
		}
		return err
	case <-ctx.Done():
		a.logger.Info("shutdown_signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server_shutdown_failed", slog.Any("err", err))
			<-httpCh
			return err
		}
		if err := <-httpCh; err != nil {
			a.logger.Error("server_shutdown_error", slog.Any("err", err))
			return err
		}
		a.logger.Info("shutdown_complete")
		return nil
	}
}

// Close releases resources owned by the Application: the HTTP server's
// rate limiter and the log file.
func (a *Application) Close() error {
	a.httpServer.Close()
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}
