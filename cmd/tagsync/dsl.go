package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/dsl"
)

// readText joins args, or reads stdin when there are none or the only
// argument is "-".
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	return strings.Join(args, " "), nil
}

type parseOutput struct {
	Groups    domain.GroupMap `json:"groups"`
	LooseTags []string        `json:"loose_tags"`
	Tags      []string        `json:"tags"`
	Flat      string          `json:"flat"`
}

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text...]",
		Short: "Show the groups and loose tags of a tag string",
		Example: `  tagsync parse 'artist[ monet ] medium[ oil canvas ] landscape'
  echo 'a[ b ]' | tagsync parse -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			res := dsl.Parse(text)
			out := parseOutput{
				Groups:    res.Groups,
				LooseTags: nonNil(res.LooseTags),
				Tags:      nonNil(dsl.Tags(text)),
				Flat:      dsl.Flatten(text),
			}
			return a.print(cmd, out, func(w io.Writer) {
				printGroups(w, out.Groups)
				if len(out.LooseTags) > 0 {
					fmt.Fprintf(w, "loose: %s\n", strings.Join(out.LooseTags, ", "))
				}
			})
		},
	}
}

func (a *app) flattenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flatten [text...]",
		Short: "Drop the group syntax and print the plain tag list",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			flat := dsl.Flatten(text)
			return a.print(cmd, map[string]string{"text": flat}, func(w io.Writer) {
				fmt.Fprintln(w, flat)
			})
		},
	}
}

func (a *app) reconstructCmd() *cobra.Command {
	var groupsFile string

	cmd := &cobra.Command{
		Use:   "reconstruct [text...]",
		Short: "Re-apply stored groups to a plain tag string",
		Long: `Reconstruct rewrites a plain tag string so the tags in the given groups
appear in group syntax again. Groups are read from a YAML or JSON file
holding a list of {name, tags} entries.`,
		Example: `  tagsync reconstruct --groups groups.yaml 'monet oil canvas landscape'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := readGroups(groupsFile)
			if err != nil {
				return err
			}
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			rebuilt := dsl.Reconstruct(text, groups)
			return a.print(cmd, map[string]string{"text": rebuilt}, func(w io.Writer) {
				fmt.Fprintln(w, rebuilt)
			})
		},
	}

	cmd.Flags().StringVarP(&groupsFile, "groups", "g", "", "YAML or JSON file with the groups")
	_ = cmd.MarkFlagRequired("groups")

	return cmd
}

// groupEntry is the file form of a group. JSON is valid YAML, so one
// decoder reads both.
type groupEntry struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

func readGroups(path string) (domain.GroupMap, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path given on the command line
	if err != nil {
		return domain.GroupMap{}, fmt.Errorf("read groups: %w", err)
	}
	var entries []groupEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return domain.GroupMap{}, fmt.Errorf("parse groups %s: %w", path, err)
	}

	var groups domain.GroupMap
	for _, e := range entries {
		if !dsl.ValidGroupName(e.Name) {
			return domain.GroupMap{}, fmt.Errorf("invalid group name %q", e.Name)
		}
		groups.Add(e.Name, e.Tags...)
	}
	return groups, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
