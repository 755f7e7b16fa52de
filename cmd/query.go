package main

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clubscout/clubscout-cli/internal/geoutil"
	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/search"
	"github.com/clubscout/clubscout-cli/internal/store"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Fuzzy-search activities by name, discipline, city, or address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		activities, err := st.ListActivities(cmd.Context(), store.ActivityFilter{Limit: 5000})
		if err != nil {
			return err
		}

		results := search.Search(activities, args[0], func(a model.Activity) []search.Field {
			return []search.Field{
				{Name: "name", Value: a.Name},
				{Name: "subcategory", Value: a.Subcategory},
				{Name: "city", Value: a.City},
				{Name: "address", Value: a.Address},
			}
		}, searchLimit)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

var (
	nearbyLat      float64
	nearbyLon      float64
	nearbyRadiusKm float64
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List activities within a radius of a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			return eris.New("--lat and --lon are required")
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		activities, err := st.ListWithCoordinates(cmd.Context(), "")
		if err != nil {
			return err
		}

		type hit struct {
			model.Activity
			DistanceKm float64 `json:"distance_km"`
		}
		hits := make([]hit, 0)
		for _, a := range activities {
			d := geoutil.DistanceKm(nearbyLat, nearbyLon, *a.Latitude, *a.Longitude)
			if d <= nearbyRadiusKm {
				hits = append(hits, hit{Activity: a, DistanceKm: math.Round(d*10) / 10})
			}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceKm < hits[j].DistanceKm })

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
	rootCmd.AddCommand(searchCmd)

	nearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "latitude")
	nearbyCmd.Flags().Float64Var(&nearbyLon, "lon", 0, "longitude")
	nearbyCmd.Flags().Float64Var(&nearbyRadiusKm, "radius", 5, "radius in km")
	rootCmd.AddCommand(nearbyCmd)
}
