package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fennelworks/convo/pkg/chat"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List available content modes",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, m := range chat.Modes() {
			fmt.Fprintf(out, "%-14s %-16s temp %.1f  %s\n", m.ID, m.Name, m.Temperature, m.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(modesCmd)
}
