package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"unmerge/internal/distmarker"
)

// rulesCmd prints the rule table
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the annotations unmerge reacts to, in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		md := rulesMarkdown(distmarker.Rules())
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if out, rerr := renderer.Render(md); rerr == nil {
				md = out
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

func rulesMarkdown(rules []distmarker.Rule) string {
	var b strings.Builder
	b.WriteString("# Rules\n\nThe first rule whose annotation is present decides.\n\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. **%s** `%s`\n", i+1, r.Name, r.AnnotationType)
		fmt.Fprintf(&b, "   - `%s=%s` client, `%s=%s` server\n", r.ValueAttribute, r.ClientValue, r.ValueAttribute, r.ServerValue)
		if r.RepeatableContainer != "" {
			fmt.Fprintf(&b, "   - repeatable via `%s`\n", r.RepeatableContainer)
		}
		if r.InterfaceAttribute != "" {
			fmt.Fprintf(&b, "   - `%s` scopes an instance to an implemented interface\n", r.InterfaceAttribute)
		}
	}
	b.WriteString("\nManifest attributes: `" + distmarker.ManifestClientOnlyEntries + "`, `" + distmarker.ManifestServerOnlyEntries + "`\n")
	return b.String()
}
