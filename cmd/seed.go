package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clubscout/clubscout-cli/internal/db"
	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/store"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bulk-load activities from a YAML file",
	Long:  "Loads a YAML file of activity candidates into the store. With the postgres driver the load goes through the COPY protocol; with sqlite it inserts row by row.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return eris.Wrapf(err, "read seed file %s", seedFile)
		}

		var doc struct {
			Activities []model.Candidate `yaml:"activities"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return eris.Wrap(err, "parse seed file")
		}
		if len(doc.Activities) == 0 {
			return eris.New("seed file contains no activities")
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if pg, ok := st.(*store.PostgresStore); ok {
			return seedPostgres(cmd, pg, doc.Activities)
		}

		for _, cand := range doc.Activities {
			if _, err := st.CreateActivity(cmd.Context(), cand); err != nil {
				return err
			}
		}
		zap.L().Info("seed complete", zap.Int("activities", len(doc.Activities)))
		return nil
	},
}

func seedPostgres(cmd *cobra.Command, pg *store.PostgresStore, candidates []model.Candidate) error {
	now := time.Now().UTC()
	columns := []string{
		"id", "name", "category", "subcategory", "address", "postal_code", "city",
		"phone", "email", "website", "latitude", "longitude", "created_at", "updated_at",
	}

	rows := make([][]any, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, []any{
			uuid.New().String(), c.Name, string(c.Category), c.Subcategory,
			c.Address, c.PostalCode, c.City,
			c.Phone, c.Email, c.Website,
			c.Latitude, c.Longitude, now, now,
		})
	}

	n, err := db.CopyFrom(cmd.Context(), pg.Pool(), "activities", columns, rows)
	if err != nil {
		return err
	}
	zap.L().Info("seed complete", zap.Int64("activities", n))
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.yaml", "YAML file of activities to load")
	rootCmd.AddCommand(seedCmd)
}
