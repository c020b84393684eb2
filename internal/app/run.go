package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/insrapperswil/antimony/internal/ctxlog"
)

// Run serves the API and the push channel until the context is cancelled,
// then drains connections. The lab lifecycle engine runs alongside the
// HTTP server and stops with it.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	httpServer := &http.Server{
		Addr:    a.cfg.ListenAddr,
		Handler: a.srv.Handler(),
	}

	go a.srv.Scheduler().Run(ctx)
	a.logger.Debug("Lab lifecycle engine started.")

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 Server listening.", "address", a.cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
