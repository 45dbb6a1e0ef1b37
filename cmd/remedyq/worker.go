package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/remedyq/remedyq/internal/agent"
	"github.com/remedyq/remedyq/internal/config"
	"github.com/remedyq/remedyq/internal/escalation"
	"github.com/remedyq/remedyq/internal/lock"
	"github.com/remedyq/remedyq/internal/worker"
)

var workerFlags struct {
	once bool
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the processing loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.saveLedger()

		timeout := time.Duration(app.cfg.Handlers.TimeoutSec) * time.Second
		registry, err := agent.BuildRegistry(app.cfg.Handlers.Commands, timeout, app.logger)
		if err != nil {
			return err
		}

		state := escalation.NewStateManager(app.cfg.Escalation)
		ladder, err := escalation.NewLadder(state, registry, app.tracker, app.bus, app.logger)
		if err != nil {
			return err
		}

		opts := worker.Options{
			Count:        app.cfg.Worker.Count,
			LockTTL:      time.Duration(app.cfg.Worker.LockTTLSec) * time.Second,
			PollInterval: time.Duration(app.cfg.Worker.PollIntervalSec) * time.Second,
		}
		if app.cfg.Storage.Backend == config.BackendFile {
			opts.WatchPath = app.cfg.Storage.Path
		}
		pool := worker.NewPool(app.manager, ladder, state, app.logger, opts)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if workerFlags.once {
			return pool.RunOnce(ctx)
		}

		// One daemon per queue file; the TTL lock still arbitrates
		// item-level access across processes.
		if app.cfg.Storage.Backend == config.BackendFile {
			daemonLock := lock.NewFileLock(app.cfg.Storage.Path + ".worker.lock")
			if err := daemonLock.TryLock(); err != nil {
				return err
			}
			defer daemonLock.Unlock()
		}

		// Flush the ledger periodically so a crash loses little spend data.
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					app.saveLedger()
				}
			}
		}()

		app.logger.Printf("%s INFO worker: starting count=%d backend=%s",
			time.Now().UTC().Format(time.RFC3339), opts.Count, app.cfg.Storage.Backend)
		err = pool.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerFlags.once, "once", false, "drain the queue once and exit")

	rootCmd.AddCommand(workerCmd)
}
