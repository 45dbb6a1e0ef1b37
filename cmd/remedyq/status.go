package main

import (
	"github.com/spf13/cobra"

	"github.com/remedyq/remedyq/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}

		stats, err := app.manager.Stats()
		if err != nil {
			return err
		}

		cmd.Printf("total:        %d\n", stats.Total)
		for _, status := range []model.ItemStatus{
			model.ItemPending, model.ItemProcessing, model.ItemCompleted,
			model.ItemFailed, model.ItemCancelled,
		} {
			if n := stats.ByStatus[status]; n > 0 {
				cmd.Printf("  %-11s %d\n", string(status)+":", n)
			}
		}
		cmd.Printf("completed24h: %d\n", stats.Completed24h)
		cmd.Printf("failed24h:    %d\n", stats.Failed24h)
		cmd.Printf("avg ms:       %.0f\n", stats.AvgProcessingTimeMs)

		lock, err := app.manager.Storage().GetLock()
		if err != nil {
			return err
		}
		if lock != nil {
			cmd.Printf("lock:         %s (expires %s)\n", lock.Holder, lock.ExpiresAt.Format("15:04:05"))
		} else {
			cmd.Println("lock:         free")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
