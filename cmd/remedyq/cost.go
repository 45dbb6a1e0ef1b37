package main

import (
	"github.com/spf13/cobra"
)

var costFlags struct {
	day  string
	from string
	to   string
}

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Show the daily cost ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}

		if costFlags.from != "" && costFlags.to != "" {
			stats, err := app.tracker.GetStatsInRange(costFlags.from, costFlags.to)
			if err != nil {
				return err
			}
			for _, day := range stats {
				cmd.Printf("%s  total=%.2f ops=%d\n", day.Date, day.TotalCost, day.Operations)
			}
			return nil
		}

		stats := app.tracker.GetDailyStats(costFlags.day)
		cmd.Printf("date:    %s\n", stats.Date)
		cmd.Printf("total:   %.2f (budget %.2f)\n", stats.TotalCost, app.tracker.DailyBudget())
		cmd.Printf("ops:     %d\n", stats.Operations)
		for tier, amount := range stats.ByTier {
			cmd.Printf("  %-8s %.2f\n", string(tier)+":", amount)
		}
		return nil
	},
}

func init() {
	costCmd.Flags().StringVar(&costFlags.day, "day", "", "day to report (YYYY-MM-DD, default today)")
	costCmd.Flags().StringVar(&costFlags.from, "from", "", "range start (YYYY-MM-DD)")
	costCmd.Flags().StringVar(&costFlags.to, "to", "", "range end (YYYY-MM-DD)")

	rootCmd.AddCommand(costCmd)
}
