package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/bootstrap"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/pkg/logging"
)

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk HTTP backend until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(logging.Options{
				Service:    cfg.App.Name,
				Env:        cfg.App.Env,
				Level:      cfg.Log.Level,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			undo := zap.ReplaceGlobals(logger)
			defer undo()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.ContextWithLogger(ctx, logger)

			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				logging.FromContext(ctx).Error("bootstrap_failed", zap.Error(err))
				return err
			}
			return app.Run(ctx)
		},
	}
}

// contextOrBackground guards commands invoked without ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
