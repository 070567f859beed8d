package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/agentsearch-mcp/internal/connector"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show which agent data stores are present on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		connectors := connector.All()
		sort.Slice(connectors, func(i, j int) bool {
			return connectors[i].Slug() < connectors[j].Slug()
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tDETECTED\tEVIDENCE")
		for _, conn := range connectors {
			det := conn.Detect()
			status := "no"
			if det.Detected {
				status = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", conn.Slug(), status, strings.Join(det.Evidence, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
