package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clubscout/clubscout-cli/internal/export"
	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/store"
)

var (
	exportOut      string
	exportCity     string
	exportCategory string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export activities to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		activities, err := st.ListActivities(cmd.Context(), store.ActivityFilter{
			City:     exportCity,
			Category: model.Category(exportCategory),
			Limit:    100000,
		})
		if err != nil {
			return err
		}

		if err := export.WriteActivitiesXLSX(exportOut, activities); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("activities", len(activities)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "activities.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportCity, "city", "", "only export activities in this city")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "only export this category (sport or intellectual)")
	rootCmd.AddCommand(exportCmd)
}
