package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp(false)
		if err != nil {
			return err
		}
		defer log.Close()
		defer a.Stop()

		sums, err := a.Engine.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sums) == 0 {
			fmt.Fprintln(out, "no sessions")
			return nil
		}
		for _, s := range sums {
			fmt.Fprintf(out, "%s  %-50s  %d messages  %s\n",
				s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
