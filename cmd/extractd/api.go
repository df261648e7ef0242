package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/network-extractor/internal/queue"
	"github.com/joseph-ayodele/network-extractor/internal/server"
)

func newAPICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the submission and status HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop, cfg, logger, err := opts.setup(false)
			if err != nil {
				return err
			}
			defer stop()

			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				logger.Error("api.startup_failed", "error", err)
				return err
			}
			defer d.close()

			conn, err := d.dialRabbit()
			if err != nil {
				logger.Error("api.startup_failed", "error", err)
				return err
			}
			publisher, err := queue.NewRabbitPublisher(conn, d.rabbitConfig(), logger)
			if err != nil {
				logger.Error("api.startup_failed", "error", err)
				return err
			}
			defer publisher.Close()

			return serveHTTP(ctx, cfg.Server.HTTPAddr, d.router(d.jobService(publisher)), logger)
		},
	}
}

func (d *deps) router(svc server.JobService) http.Handler {
	rc := server.RouterConfig{
		MaxUploadBytes: d.cfg.Server.MaxUploadBytes,
		RequireOwner:   d.cfg.Server.RequireOwner,
		Ready:          d.ready,
	}
	if d.redis != nil && d.cfg.Server.RateLimit > 0 {
		rc.RateLimit = server.NewRateLimiter(server.RateLimiterConfig{
			Counter: d.redis,
			Limit:   d.cfg.Server.RateLimit,
			Window:  d.cfg.Server.RateWindow,
		})
	}
	return server.NewRouter(svc, rc, d.logger)
}

// serveHTTP runs handler on addr until ctx is cancelled, then drains connections.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http.serve_failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("http.shutting_down")
	return srv.Shutdown(shutdownCtx)
}
