package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/di/providers"
	"github.com/listenupapp/tagsync/internal/syncer"
)

func (a *app) syncCmd() *cobra.Command {
	var pull bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync every shard with the remote document now",
		Long: `Sync merges each local shard with its remote file, newest record per post
winning, and uploads the shards that changed. Without a configured document
one is created first. With --pull, remote records that are newer or missing
locally are written to the local store too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				cfg, err := do.Invoke[*config.Config](i)
				if err != nil {
					return err
				}
				engine, err := do.Invoke[*syncer.Engine](i)
				if err != nil {
					return err
				}

				opts := syncer.SyncOptions{Pull: cfg.Sync.Pull}
				if cmd.Flags().Changed("pull") {
					opts.Pull = pull
				}

				report, err := engine.SyncAll(ctx, opts)
				if err != nil {
					return err
				}
				return a.print(cmd, report, func(w io.Writer) { printReport(w, report) })
			})
		},
	}

	cmd.Flags().BoolVar(&pull, "pull", false, "also apply newer remote records locally (env: SYNC_PULL)")
	cmd.AddCommand(a.syncFlushCmd())
	return cmd
}

func (a *app) syncFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Run the pending background sync now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				sched, err := do.Invoke[*providers.SchedulerHandle](i)
				if err != nil {
					return err
				}
				summary, err := sched.Flush(ctx)
				if err != nil {
					return err
				}
				return a.print(cmd, summary, func(w io.Writer) {
					if len(summary.Attempted) == 0 {
						fmt.Fprintln(w, "nothing pending")
						return
					}
					fmt.Fprintf(w, "attempted %v, uploaded %v, failed %v in %s\n",
						summary.Attempted, summary.Uploaded, summary.Failed, summary.Duration)
				})
			})
		},
	}
}

func printReport(w io.Writer, r *syncer.Report) {
	if r.Bootstrapped {
		fmt.Fprintf(w, "created remote document %s\n", r.DocumentID)
	}
	for _, s := range r.Shards {
		state := "unchanged"
		if s.Uploaded {
			state = "uploaded"
		}
		line := "shard " + strconv.Itoa(s.Shard) + ": " + state
		if n := len(s.RemoteNewer) + len(s.RemoteOnly); n > 0 {
			line += fmt.Sprintf(", %d newer remotely", n)
		}
		if s.Pulled > 0 {
			line += fmt.Sprintf(", %d pulled", s.Pulled)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "document %s: %d shards uploaded, %d records pulled in %s\n",
		r.DocumentID, r.Uploaded, r.Pulled, r.Duration.Round(time.Millisecond))
}
