package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagsync/internal/di"
	"github.com/listenupapp/tagsync/internal/di/providers"
)

func (a *app) serveCmd() *cobra.Command {
	var pull bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("pull") {
				a.overrides.Pull = strconv.FormatBool(pull)
			}

			injector := di.NewContainer(a.overrides)
			if err := di.Bootstrap(injector); err != nil {
				_ = injector.Shutdown()
				return fmt.Errorf("bootstrap: %w", err)
			}

			log := do.MustInvoke[*providers.LoggerHandle](injector)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info("Shutting down gracefully...")

			// The container shuts services down in reverse dependency order:
			// HTTP server first, the store last.
			if err := injector.Shutdown(); err != nil {
				log.Error("Shutdown error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&a.overrides.Port, "port", "", "listen port (env: SERVER_PORT)")
	cmd.Flags().StringVar(&a.overrides.Debounce, "debounce", "", "quiet time before background sync (env: SYNC_DEBOUNCE)")
	cmd.Flags().BoolVar(&pull, "pull", false, "manual syncs also apply newer remote records (env: SYNC_PULL)")

	return cmd
}
