package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/importer"
)

func (a *app) importCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "import <document-id>",
		Short: "Import the records of another remote document",
		Long: `Import reads every shard of the given document and applies the records
that are new locally. Records that differ from local ones are conflicts; they
are held in a session until resolved, or resolved at once with --policy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := importer.Policy(strings.ToUpper(policy))
			if policy != "" && !p.Valid() {
				return domainerrors.Validationf("unknown policy %q (want KEEP, OVERWRITE or MERGE)", policy)
			}

			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				engine, err := do.Invoke[*importer.Engine](i)
				if err != nil {
					return err
				}
				preview, err := engine.Preview(ctx, args[0])
				if err != nil {
					return err
				}

				if policy == "" || preview.SessionID == "" {
					return a.print(cmd, preview, func(w io.Writer) { printPreview(w, preview) })
				}

				res, err := engine.Resolve(ctx, preview.SessionID, p)
				if err != nil {
					return err
				}
				out := struct {
					Preview  *importer.Preview `json:"preview"`
					Resolved *importer.Result  `json:"resolved"`
				}{preview, res}
				return a.print(cmd, out, func(w io.Writer) {
					printPreview(w, preview)
					fmt.Fprintf(w, "resolved with %s: ", p)
					printImportResult(w, res)
				})
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "resolve conflicts at once: KEEP, OVERWRITE or MERGE")
	cmd.AddCommand(a.importResolveCmd())
	return cmd
}

func (a *app) importResolveCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "resolve <session-id>",
		Short: "Resolve the conflicts of an import session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := importer.Policy(strings.ToUpper(policy))
			if !p.Valid() {
				return domainerrors.Validationf("unknown policy %q (want KEEP, OVERWRITE or MERGE)", policy)
			}
			return a.withContainer(cmd, func(ctx context.Context, i do.Injector) error {
				engine, err := do.Invoke[*importer.Engine](i)
				if err != nil {
					return err
				}
				res, err := engine.Resolve(ctx, args[0], p)
				if err != nil {
					return err
				}
				return a.print(cmd, res, func(w io.Writer) { printImportResult(w, res) })
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", string(importer.PolicyKeep), "KEEP, OVERWRITE or MERGE")
	return cmd
}

func printPreview(w io.Writer, p *importer.Preview) {
	fmt.Fprintf(w, "document %s: %d new, %d unchanged, %d conflicts\n",
		p.DocumentID, len(p.New), len(p.Same), len(p.Conflicts))
	fmt.Fprint(w, "applied: ")
	printImportResult(w, &p.Applied)
	for _, c := range p.Conflicts {
		fmt.Fprintf(w, "  conflict on post %s\n", c.PostID)
	}
	if p.SessionID != "" {
		fmt.Fprintf(w, "resolve with: tagsync import resolve %s --policy KEEP|OVERWRITE|MERGE\n", p.SessionID)
	}
}

func printImportResult(w io.Writer, r *importer.Result) {
	fmt.Fprintf(w, "%d imported, %d skipped", r.Imported, r.Skipped)
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, ", %d failed", len(r.Errors))
	}
	fmt.Fprintln(w)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  post %s: %s\n", e.PostID, e.Error)
	}
}
