package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagsync/internal/di/providers"
	"github.com/listenupapp/tagsync/internal/search"
	"github.com/listenupapp/tagsync/internal/service"
)

func (a *app) postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Read and edit the tag groups of a post",
	}
	cmd.AddCommand(
		a.postGetCmd(),
		a.postSaveCmd(),
		a.postToggleCmd(),
		a.postDeleteCmd(),
		a.postFindCmd(),
	)
	return cmd
}

// tagServiceForEdits returns the tag service with the scheduler attached,
// so edits made from the shell are queued for the next background sync.
func tagServiceForEdits(i do.Injector) (*service.TagService, error) {
	if _, err := do.Invoke[*providers.SchedulerHandle](i); err != nil {
		return nil, err
	}
	return do.Invoke[*service.TagService](i)
}

func (a *app) postGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <post-id>",
		Short: "Show the stored groups of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				tags, err := do.Invoke[*service.TagService](i)
				if err != nil {
					return err
				}
				rec, err := tags.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
			})
		},
	}
}

func (a *app) postSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "save <post-id> [text...]",
		Short:   "Store the groups of a tag string for a post",
		Example: `  tagsync post save 1042 'artist[ monet ] landscape'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args[1:])
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				tags, err := tagServiceForEdits(i)
				if err != nil {
					return err
				}
				res, err := tags.Save(ctx, args[0], text)
				if err != nil {
					return err
				}
				return a.print(cmd, res, func(w io.Writer) {
					if res.Record == nil {
						fmt.Fprintf(w, "post %s has no groups, record removed\n", args[0])
						return
					}
					printRecord(w, res.Record)
					fmt.Fprintf(w, "flat: %s\n", res.Text)
				})
			})
		},
	}
}

func (a *app) postToggleCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "toggle <post-id> <group> <tag>",
		Short: "Add a tag to a group, or remove it with --off",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				tags, err := tagServiceForEdits(i)
				if err != nil {
					return err
				}
				rec, err := tags.Toggle(ctx, args[0], args[1], args[2], !off)
				if err != nil {
					return err
				}
				return a.print(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
			})
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "remove the tag instead of adding it")
	return cmd
}

func (a *app) postDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Remove every group of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				tags, err := tagServiceForEdits(i)
				if err != nil {
					return err
				}
				if err := tags.Delete(ctx, args[0]); err != nil {
					return err
				}
				return a.print(cmd, map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "post %s deleted\n", args[0])
				})
			})
		},
	}
}

func (a *app) postFindCmd() *cobra.Command {
	params := search.DefaultParams()

	cmd := &cobra.Command{
		Use:   "find",
		Short: "List posts by group and tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				if err := ensureIndexed(ctx, i); err != nil {
					return err
				}
				tags, err := do.Invoke[*service.TagService](i)
				if err != nil {
					return err
				}
				res, err := tags.Find(ctx, params)
				if err != nil {
					return err
				}
				return a.print(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "%d posts\n", res.Total)
					if len(res.PostIDs) > 0 {
						fmt.Fprintln(w, strings.Join(res.PostIDs, " "))
					}
					for _, f := range res.Tags {
						fmt.Fprintf(w, "  %s (%d)\n", f.Value, f.Count)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&params.Group, "group", "", "group name")
	cmd.Flags().StringVar(&params.Tag, "tag", "", "tag")
	cmd.Flags().IntVar(&params.Limit, "limit", params.Limit, "maximum posts")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "posts to skip")
	cmd.Flags().BoolVar(&params.IncludeFacets, "facets", false, "include tag usage counts")
	return cmd
}

// ensureIndexed rebuilds the search index when it does not cover the store.
func ensureIndexed(ctx context.Context, i do.Injector) error {
	searchService, err := do.Invoke[*service.SearchService](i)
	if err != nil {
		return err
	}
	storeHandle := do.MustInvoke[*providers.StoreHandle](i)

	records, err := storeHandle.Count(ctx)
	if err != nil {
		return err
	}
	docs, err := searchService.DocumentCount()
	if err != nil {
		return err
	}
	if docs == uint64(records) {
		return nil
	}
	return searchService.ReindexAll(ctx)
}
