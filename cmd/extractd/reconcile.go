package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/network-extractor/internal/jobs"
	"github.com/joseph-ayodele/network-extractor/internal/queue"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Republish jobs stuck in pending",
		Long:  "Republishes queue messages for pending jobs idle longer than RECONCILE_AFTER. Runs once unless --interval is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop, cfg, logger, err := opts.setup(false)
			if err != nil {
				return err
			}
			defer stop()

			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				logger.Error("reconcile.startup_failed", "error", err)
				return err
			}
			defer d.close()

			conn, err := d.dialRabbit()
			if err != nil {
				return err
			}
			publisher, err := queue.NewRabbitPublisher(conn, d.rabbitConfig(), logger)
			if err != nil {
				return err
			}
			defer publisher.Close()

			svc := d.jobService(publisher)
			if interval <= 0 {
				_, err := svc.Reconcile(ctx)
				return err
			}
			runReconcileLoop(ctx, svc, interval)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the sweep at this interval until interrupted")
	return cmd
}

// runReconcileLoop sweeps immediately and then every interval until ctx ends.
// Sweep errors are logged by the service and do not stop the loop.
func runReconcileLoop(ctx context.Context, svc *jobs.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_, _ = svc.Reconcile(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
