package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/pkg/config"
	xhttp "stockpulse/pkg/http"
	applogger "stockpulse/pkg/logger"
)

// App encapsulates the application lifecycle: the HTTP server plus the
// infrastructure clients that need an orderly shutdown.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	market     domrepo.MarketStore
	notifier   domrepo.Notifier
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	market domrepo.MarketStore,
	notifier domrepo.Notifier,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		handler:  handler,
		market:   market,
		notifier: notifier,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.market != nil {
		if err := a.market.Close(); err != nil {
			a.logger.Warn("market store close error", applogger.Error(err))
		}
	}

	if closer, ok := a.notifier.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("notifier close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
