package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent scrape runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListScrapeRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tLOCATION\tSTATUS\tTOTAL\tCREATED\tUPDATED\tSKIPPED")
		for _, r := range runs {
			total, created, updated, skipped := 0, 0, 0, 0
			if r.Stats != nil {
				total, created, updated, skipped = r.Stats.Total, r.Stats.Created, r.Stats.Updated, r.Stats.Skipped
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				r.StartedAt.Format("2006-01-02 15:04"),
				r.Location, r.Status, total, created, updated, skipped)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}
