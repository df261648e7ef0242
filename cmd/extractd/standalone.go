package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/network-extractor/internal/queue"
)

func newStandaloneCmd(opts *rootOptions) *cobra.Command {
	var workers, queueSize int
	cmd := &cobra.Command{
		Use:   "standalone",
		Short: "Run the API and the worker in one process over an in-memory queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop, cfg, logger, err := opts.setup(true)
			if err != nil {
				return err
			}
			defer stop()

			engine, err := newEngine(cfg.Engine, logger)
			if err != nil {
				return err
			}
			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				logger.Error("standalone.startup_failed", "error", err)
				return err
			}
			defer d.close()

			proc := d.processor(engine)
			q := queue.NewProcessorQueue(proc.Handle, logger,
				queue.WithWorkers(workers),
				queue.WithQueueSize(queueSize),
				queue.WithProcessTimeout(cfg.Worker.ProcessTimeout),
			)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				q.Shutdown(shutdownCtx)
			}()

			svc := d.jobService(q)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return serveHTTP(gctx, cfg.Server.HTTPAddr, d.router(svc), logger) })
			// Pending jobs from a previous run only live in the store; sweep them back in.
			g.Go(func() error {
				runReconcileLoop(gctx, svc, cfg.Worker.ReconcileAfter)
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 2, "in-process workers")
	cmd.Flags().IntVar(&queueSize, "queue-size", 128, "in-process queue capacity")
	return cmd
}
