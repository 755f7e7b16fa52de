package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clubscout/clubscout-cli/internal/geodata"
	"github.com/clubscout/clubscout-cli/internal/scraper"
)

var (
	scrapeCity     string
	scrapeLat      float64
	scrapeLon      float64
	scrapeRadiusKm float64
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one location and reconcile it into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		q := scraper.Query{RadiusKm: scrapeRadiusKm, City: scrapeCity}
		if q.RadiusKm <= 0 {
			q.RadiusKm = cfg.Scrape.DefaultRadiusKm
		}

		switch {
		case cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon"):
			q.Center = &scraper.Coordinates{Latitude: scrapeLat, Longitude: scrapeLon}
		case scrapeCity != "":
			city, err := geodata.ByName(scrapeCity)
			if err != nil {
				return err
			}
			if city != nil {
				q.Center = &scraper.Coordinates{Latitude: city.Latitude, Longitude: city.Longitude}
			} else {
				zap.L().Warn("city not in built-in dataset, geodata source disabled",
					zap.String("city", scrapeCity))
			}
		default:
			return eris.New("either --city or --lat/--lon is required")
		}

		stats, err := env.engine.ScrapeLocation(cmd.Context(), q)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var rotationDay int

var rotationCmd = &cobra.Command{
	Use:   "rotation",
	Short: "Run the daily city rotation",
	Long:  "Scrapes the cities scheduled for the given day of the month, cycling through the built-in city list at the configured daily quota.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "cron")
		if err != nil {
			return err
		}
		defer env.Close()

		queries, err := cityQueries(cfg.Scrape.DefaultRadiusKm)
		if err != nil {
			return err
		}

		results, err := env.engine.RunRotation(cmd.Context(), queries, rotationDay, cfg.Cron.Quota)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeCity, "city", "", "city name")
	scrapeCmd.Flags().Float64Var(&scrapeLat, "lat", 0, "latitude of the search center")
	scrapeCmd.Flags().Float64Var(&scrapeLon, "lon", 0, "longitude of the search center")
	scrapeCmd.Flags().Float64Var(&scrapeRadiusKm, "radius", 0, "search radius in km (default from config)")
	rootCmd.AddCommand(scrapeCmd)

	rotationCmd.Flags().IntVar(&rotationDay, "day", time.Now().UTC().Day(), "day of month to schedule for")
	rootCmd.AddCommand(rotationCmd)
}
