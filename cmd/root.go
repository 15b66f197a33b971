package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fiscal-updater",
	Short: "Keeps French tax and social reference values in sync with official pages",
	Long: "Fetches official URSSAF and service-public pages, extracts contribution rates, income tax brackets, " +
		"micro-enterprise ceilings, SMIC and PMSS, updates data.json and patches the calculator documents that embed them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
