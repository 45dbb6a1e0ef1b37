package main

import (
	"github.com/spf13/cobra"
)

var resolveFlags struct {
	note string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <item-id>",
	Short: "Resolve a parked item by hand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}

		id := args[0]
		err = app.withLock(func(holder string) error {
			return app.manager.ResolveHeld(holder, id, resolveFlags.note)
		})
		if err != nil {
			return err
		}

		cmd.Printf("resolved %s\n", id)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.note, "note", "", "resolution note recorded on the item")

	rootCmd.AddCommand(resolveCmd)
}
