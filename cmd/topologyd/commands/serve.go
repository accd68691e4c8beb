package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wanderer-industries/topologyd/cmd/topologyd/app"
	"github.com/wanderer-industries/topologyd/config"
	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/logger"
)

// ServeCmd runs the daemon: map actors, SSE clients, the topology pass,
// the license validator, and the admin/introspection HTTP server.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server", "run"},
	Short:   "Run the topology synchronization daemon",
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	a, err := app.New(cfg)
	if err != nil {
		return errors.Wrap(err, "build app")
	}

	addr := fmt.Sprintf("%s:%d", orDefault(cfg.Server.Host, "0.0.0.0"), cfg.Server.Port)
	printStartupBanner(verbosity, addr, len(cfg.Maps))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := a.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "daemon failed to start")
	case <-sigChan:
		logger.Logger.Info("shutting down gracefully (press Ctrl+C again to force)")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- a.Stop(context.Background())
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			logger.Logger.Info("stopped cleanly")
			return nil
		case <-sigChan:
			logger.Logger.Warn("force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
