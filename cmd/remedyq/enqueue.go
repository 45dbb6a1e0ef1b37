package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/remedyq/remedyq/internal/model"
)

var enqueueFlags struct {
	taskType  string
	labels    []string
	draft     bool
	conflicts bool
	reviews   int
	openedAt  string
	context   []string
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Add a work item, scoring its priority from metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}

		meta := model.TaskMeta{
			Type:         enqueueFlags.taskType,
			Labels:       enqueueFlags.labels,
			Draft:        enqueueFlags.draft,
			HasConflicts: enqueueFlags.conflicts,
			ReviewCount:  enqueueFlags.reviews,
			Context:      map[string]string{},
		}
		if enqueueFlags.openedAt != "" {
			openedAt, err := time.Parse(time.RFC3339, enqueueFlags.openedAt)
			if err != nil {
				return fmt.Errorf("parse --opened-at: %w", err)
			}
			meta.OpenedAt = openedAt
		}
		for _, kv := range enqueueFlags.context {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --ctx %q, want key=value", kv)
			}
			meta.Context[key] = value
		}

		var item *model.QueueItem
		err = app.withLock(func(holder string) error {
			var err error
			item, err = app.manager.Enqueue(holder, meta)
			return err
		})
		if err != nil {
			return err
		}

		cmd.Printf("enqueued %s priority=%d\n", item.ID, item.Priority)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueFlags.taskType, "type", "", "task type (security, ci-fix, bugfix, feature, docs, chore)")
	enqueueCmd.Flags().StringSliceVar(&enqueueFlags.labels, "label", nil, "labels influencing priority (repeatable)")
	enqueueCmd.Flags().BoolVar(&enqueueFlags.draft, "draft", false, "mark as draft")
	enqueueCmd.Flags().BoolVar(&enqueueFlags.conflicts, "conflicts", false, "mark as having merge conflicts")
	enqueueCmd.Flags().IntVar(&enqueueFlags.reviews, "reviews", 0, "review count")
	enqueueCmd.Flags().StringVar(&enqueueFlags.openedAt, "opened-at", "", "RFC3339 time the issue/PR was opened")
	enqueueCmd.Flags().StringSliceVar(&enqueueFlags.context, "ctx", nil, "extra context key=value (repeatable)")

	rootCmd.AddCommand(enqueueCmd)
}
