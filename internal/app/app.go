// Package app provides application lifecycle management for the release server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stacklok/gateway-release-server/internal/config"
)

// ReleaseApp encapsulates all components needed to run the release server.
// It provides lifecycle management and graceful shutdown capabilities.
type ReleaseApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the retention loop and the HTTP server.
// It blocks until the HTTP server stops or encounters an error.
func (app *ReleaseApp) Start() error {
	go func() {
		if err := app.components.Retention.Start(app.ctx); err != nil {
			slog.Error("Retention loop failed", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	slog.Info("Server listening", "address", ln.Addr().String())

	if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application with the given timeout. The HTTP
// server goes first, then queued pipelines are given the rest of the
// timeout to finish before storage is released.
func (app *ReleaseApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if err := app.components.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *ReleaseApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *ReleaseApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the release components
func (app *ReleaseApp) Components() *AppComponents {
	return app.components
}
