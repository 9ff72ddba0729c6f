package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fennelworks/convo/internal/config"
	"github.com/fennelworks/convo/internal/logger"
	"github.com/fennelworks/convo/pkg/registry"
	"github.com/fennelworks/convo/pkg/retention"
	"github.com/fennelworks/convo/pkg/store"
)

var sweepMaxIdleDays int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete idle sessions now",
	Long:  `Runs one retention sweep immediately, deleting sessions whose last update is older than the idle window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader(cfgFile).Load()
		if err != nil {
			return err
		}
		log, err := logger.New(logger.Config{
			Level:     cfg.Logging.Level,
			Console:   true,
			Pretty:    true,
			Redaction: cfg.Logging.Redaction,
		})
		if err != nil {
			return err
		}
		defer log.Close()

		st, err := store.NewSQLite(cfg.DatabasePath, log.GetZerolog())
		if err != nil {
			return err
		}
		defer st.Close()

		maxIdle := cfg.Retention.MaxIdleDuration()
		if sweepMaxIdleDays > 0 {
			maxIdle = time.Duration(sweepMaxIdleDays) * 24 * time.Hour
		}

		reg := registry.New(st, log.GetZerolog())
		sweeper := retention.New(st, reg, cfg.Owner, maxIdle, "", log.GetZerolog())
		swept, err := sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d idle sessions\n", swept)
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepMaxIdleDays, "max-idle-days", 0, "override the idle window in days")
	rootCmd.AddCommand(sweepCmd)
}
