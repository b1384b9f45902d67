// Command tagsync edits grouped post tags and keeps them in sync with a
// remote document. "tagsync serve" runs the HTTP API with background sync;
// the other commands work on the same data directory from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/di"
	domainerrors "github.com/listenupapp/tagsync/internal/errors"
)

// app carries the global flags to every command.
type app struct {
	overrides config.Overrides
	output    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tagsync:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps domain error codes to process exit statuses.
func exitCode(err error) int {
	switch domainerrors.CodeOf(err) {
	case domainerrors.CodeValidation:
		return 2
	case domainerrors.CodeNotFound:
		return 3
	case domainerrors.CodeUnauthorized, domainerrors.CodeNotConfigured:
		return 4
	case domainerrors.CodeRemoteFailure, domainerrors.CodeRateLimited:
		return 5
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "tagsync",
		Short:         "Grouped post tags with remote document sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch a.output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", a.output)
			}
			// Keep stdout clean for command output unless asked otherwise.
			if cmd.Name() != "serve" && !cmd.Flags().Changed("log-level") {
				a.overrides.LogLevel = "error"
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.overrides.EnvFile, "env-file", ".env", "path to a .env file")
	flags.StringVar(&a.overrides.Env, "env", "", "environment: development, staging or production (env: ENV)")
	flags.StringVar(&a.overrides.LogLevel, "log-level", "", "log level: debug, info, warn or error (env: LOG_LEVEL)")
	flags.StringVar(&a.overrides.LogFile, "log-file", "", "also write logs to this rotated file (env: LOG_FILE)")
	flags.StringVar(&a.overrides.DataPath, "data", "", "data directory (env: DATA_PATH, default ~/.tagsync)")
	flags.StringVar(&a.overrides.StorageBackend, "backend", "", "storage backend: badger, redis or memory (env: STORAGE_BACKEND)")
	flags.StringVar(&a.overrides.RedisAddr, "redis-addr", "", "redis host:port (env: REDIS_ADDR)")
	flags.StringVar(&a.overrides.RemoteAPIBase, "api-base", "", "remote document API base URL (env: REMOTE_API_BASE)")
	flags.StringVar(&a.overrides.RestrictedPath, "restricted", "", "file of restricted tags (env: RESTRICTED_TAGS_PATH)")
	flags.StringVarP(&a.output, "output", "o", outputText, "output format: text, json or yaml")

	root.AddCommand(
		a.serveCmd(),
		a.parseCmd(),
		a.flattenCmd(),
		a.reconstructCmd(),
		a.postCmd(),
		a.syncCmd(),
		a.importCmd(),
		a.connectCmd(),
		a.disconnectCmd(),
		a.statusCmd(),
	)

	return root
}

// withContainer runs fn against a fresh container and shuts it down after.
func (a *app) withContainer(cmd *cobra.Command, fn func(ctx context.Context, i do.Injector) error) (err error) {
	injector := di.NewContainer(a.overrides)
	defer func() {
		if shutdownErr := injector.Shutdown(); shutdownErr != nil && err == nil {
			err = fmt.Errorf("shutdown: %w", shutdownErr)
		}
	}()
	return fn(cmd.Context(), injector)
}
