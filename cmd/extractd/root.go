package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/network-extractor/internal/common"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "extractd",
		Short:         "Provider network extraction service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file loaded before reading configuration")

	root.AddCommand(
		newAPICmd(opts),
		newWorkerCmd(opts),
		newReconcileCmd(opts),
		newStandaloneCmd(opts),
	)
	return root
}

// setup loads configuration, builds the logger and returns a context that is
// cancelled on SIGINT or SIGTERM.
func (o *rootOptions) setup(needEngine bool) (context.Context, context.CancelFunc, *common.Config, *slog.Logger, error) {
	cfg := common.LoadConfig(o.envFile)
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		return nil, nil, nil, nil, err
	}
	if needEngine {
		if err := cfg.ValidateEngine(); err != nil {
			logger.Error("config.invalid", "error", err)
			return nil, nil, nil, nil, err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, stop, cfg, logger, nil
}
