package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/listenupapp/tagsync/internal/domain"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// print writes v in the selected format. text renders the human form and
// may be nil when the JSON form is good enough.
func (a *app) print(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	switch {
	case a.output == outputYAML:
		return writeYAML(w, v)
	case a.output == outputJSON || text == nil:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		text(w)
		return nil
	}
}

// writeYAML goes through JSON so custom marshalers (ordered group maps,
// string post ids) shape the YAML the same way they shape the API.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle undoes the flow style yaml keeps from the JSON source.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func printGroups(w io.Writer, groups domain.GroupMap) {
	for name, tags := range groups.All() {
		fmt.Fprintf(w, "%s: %s\n", name, strings.Join(tags, ", "))
	}
}

func printRecord(w io.Writer, rec *domain.PostTagRecord) {
	if rec == nil {
		fmt.Fprintln(w, "no groups")
		return
	}
	imported := ""
	if rec.IsImported {
		imported = " (imported)"
	}
	fmt.Fprintf(w, "post %s, updated %s%s\n", rec.PostID, rec.UpdatedTime().Format("2006-01-02 15:04:05"), imported)
	printGroups(w, rec.Groups)
}
