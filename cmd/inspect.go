package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptforge/promptforge/forge/convstate"
)

// truncateSummary bounds a digest summary for the listing, cutting on rune
// boundaries.
func truncateSummary(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func readTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <snapshot.json>",
		Short: "List the iterations recorded in a conversation snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := convstate.ReadSnapshot(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(state.Iterations)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ITER\tSTATUS\tTOOLS\tPAYLOADS\tDIGEST")
			for _, rec := range state.Iterations {
				digest := "-"
				if rec.Digest != nil {
					digest = truncateSummary(rec.Digest.Summary, 60)
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n",
					rec.Index, rec.Status, len(rec.Tools), len(rec.Payloads), digest)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit iterations as JSON")

	return cmd
}
