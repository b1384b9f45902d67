package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/di/providers"
	"github.com/listenupapp/tagsync/internal/service"
	"github.com/listenupapp/tagsync/internal/settings"
)

const tokenEnv = "TAGSYNC_TOKEN"

func (a *app) connectCmd() *cobra.Command {
	var document string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store the remote access token",
		Long: `Connect seals the access token into the local store. The token is read from
` + tokenEnv + ` or, when unset, from the first line of stdin so it stays out
of shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken(cmd)
			if err != nil {
				return err
			}
			update := &service.RemoteUpdate{Token: &token}
			if cmd.Flags().Changed("document") {
				update.DocumentID = &document
			}
			return a.updateRemote(cmd, update)
		},
	}

	cmd.Flags().StringVar(&document, "document", "", "remote document id to sync with")
	return cmd
}

func (a *app) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the remote access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			empty := ""
			return a.updateRemote(cmd, &service.RemoteUpdate{Token: &empty})
		},
	}
}

func (a *app) updateRemote(cmd *cobra.Command, update *service.RemoteUpdate) error {
	return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
		settingsService, err := do.Invoke[*service.SettingsService](i)
		if err != nil {
			return err
		}
		status, err := settingsService.UpdateRemote(ctx, update)
		if err != nil {
			return err
		}
		return a.print(cmd, status, func(w io.Writer) { printRemote(w, status) })
	})
}

func readToken(cmd *cobra.Command) (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
		return token, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("no token: set %s or pipe it on stdin", tokenEnv)
	}
	return token, nil
}

type statusOutput struct {
	Remote   settings.Status `json:"remote"`
	Records  int             `json:"records"`
	Indexed  uint64          `json:"indexed"`
	Backend  string          `json:"backend"`
	DataPath string          `json:"data_path"`
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the remote connection and local record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				settingsService, err := do.Invoke[*service.SettingsService](i)
				if err != nil {
					return err
				}
				searchService, err := do.Invoke[*service.SearchService](i)
				if err != nil {
					return err
				}
				storeHandle := do.MustInvoke[*providers.StoreHandle](i)
				cfg := do.MustInvoke[*config.Config](i)

				remote, err := settingsService.GetRemote(ctx)
				if err != nil {
					return err
				}
				records, err := storeHandle.Count(ctx)
				if err != nil {
					return err
				}
				indexed, _ := searchService.DocumentCount()

				out := statusOutput{
					Remote:   remote,
					Records:  records,
					Indexed:  indexed,
					Backend:  cfg.Storage.Backend,
					DataPath: cfg.Storage.DataPath,
				}
				return a.print(cmd, out, func(w io.Writer) {
					printRemote(w, remote)
					fmt.Fprintf(w, "%d records, %d indexed (%s at %s)\n", records, indexed, out.Backend, out.DataPath)
				})
			})
		},
	}
}

func printRemote(w io.Writer, s settings.Status) {
	switch {
	case !s.HasToken:
		fmt.Fprintln(w, "not connected")
	case s.DocumentID == "":
		fmt.Fprintln(w, "connected, document is created on first sync")
	default:
		fmt.Fprintf(w, "connected to document %s\n", s.DocumentID)
	}
}
