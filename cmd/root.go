package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clubscout/clubscout-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "clubscout",
	Short: "Location-based activity directory scraper",
	Long:  "Scrapes sports and intellectual activity venues from OpenStreetMap, a commercial places API, and SERP results, reconciles them into a deduplicated directory, and serves search over it.",
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
