package main

import (
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/network-extractor/internal/queue"
	"github.com/joseph-ayodele/network-extractor/internal/server"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued jobs and run extraction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop, cfg, logger, err := opts.setup(true)
			if err != nil {
				return err
			}
			defer stop()
			if cmd.Flags().Changed("concurrency") {
				cfg.Worker.Concurrency = concurrency
			}

			engine, err := newEngine(cfg.Engine, logger)
			if err != nil {
				return err
			}
			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				logger.Error("worker.startup_failed", "error", err)
				return err
			}
			defer d.close()

			conn, err := d.dialRabbit()
			if err != nil {
				logger.Error("worker.startup_failed", "error", err)
				return err
			}
			proc := d.processor(engine)
			consumer, err := queue.NewRabbitConsumer(conn, d.rabbitConfig(), proc.Handle, cfg.Worker.Concurrency, logger)
			if err != nil {
				logger.Error("worker.startup_failed", "error", err)
				return err
			}
			defer consumer.Close()

			health := server.NewHealthServer(logger)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return health.ListenAndServe(gctx, cfg.Server.HealthAddr) })
			g.Go(func() error {
				health.SetServing(true)
				defer health.SetServing(false)
				if err := consumer.Start(gctx); err != nil {
					return err
				}
				if gctx.Err() == nil {
					return errors.New("queue consumer stopped unexpectedly")
				}
				return nil
			})

			logger.Info("worker.started",
				"engine", cfg.Engine.Provider,
				"concurrency", cfg.Worker.Concurrency,
				"window_size", cfg.Worker.WindowSize,
			)
			return g.Wait()
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "jobs processed at once (overrides WORKER_CONCURRENCY)")
	return cmd
}
