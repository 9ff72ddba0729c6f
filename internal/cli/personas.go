package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List loaded personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp(false)
		if err != nil {
			return err
		}
		defer log.Close()
		defer a.Stop()

		if err := a.Start(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		personas := a.Personas.List()
		if len(personas) == 0 {
			fmt.Fprintln(out, "no personas loaded")
			return nil
		}
		for _, p := range personas {
			fmt.Fprintf(out, "%-20s %s (%s, %s)\n", p.ID, p.Name, p.Tone, p.Style)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}
