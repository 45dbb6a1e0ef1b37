package main

import (
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <item-id>",
	Short: "Grant cloud-tier approval for a parked item",
	Long: `approve releases a parked item back into the queue with cloud-tier
approval granted, so the next worker to pick it up resumes it on the
paid cloud agent (budget permitting).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}

		id := args[0]
		err = app.withLock(func(holder string) error {
			return app.manager.Unhold(holder, id, true)
		})
		if err != nil {
			return err
		}

		cmd.Printf("approved %s for the cloud tier\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
