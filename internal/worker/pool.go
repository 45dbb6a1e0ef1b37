// Package worker runs the processing loop that bridges the shared queue
// and the escalation ladder: acquire the queue lock, dequeue the best
// pending item, drive it up the ladder, report the outcome, release.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/remedyq/remedyq/internal/escalation"
	"github.com/remedyq/remedyq/internal/model"
	"github.com/remedyq/remedyq/internal/queue"
)

// Pool runs N workers over one queue manager and one ladder. Workers
// coordinate with other processes purely through the storage lock; inside
// the process they simply compete for it.
type Pool struct {
	manager      *queue.Manager
	ladder       *escalation.Ladder
	state        *escalation.StateManager
	logger       *log.Logger
	count        int
	lockTTL      time.Duration
	pollInterval time.Duration
	watchPath    string
}

// Options configures a Pool.
type Options struct {
	// Count is the number of concurrent workers.
	Count int
	// LockTTL must be comfortably larger than one processing step; an
	// expired lock is how a crashed worker gets superseded.
	LockTTL time.Duration
	// PollInterval is the fallback wake-up period.
	PollInterval time.Duration
	// WatchPath, when set, is a queue state file to watch with fsnotify so
	// workers wake as soon as another process writes it.
	WatchPath string
}

// NewPool wires a worker pool.
func NewPool(manager *queue.Manager, ladder *escalation.Ladder, state *escalation.StateManager, logger *log.Logger, opts Options) *Pool {
	if opts.Count <= 0 {
		opts.Count = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{
		manager:      manager,
		ladder:       ladder,
		state:        state,
		logger:       logger,
		count:        opts.Count,
		lockTTL:      opts.LockTTL,
		pollInterval: opts.PollInterval,
		watchPath:    opts.WatchPath,
	}
}

// Run blocks until ctx is cancelled, running the configured number of
// workers plus the wake-up watcher.
func (p *Pool) Run(ctx context.Context) error {
	wake := make(chan struct{}, 1)

	g, ctx := errgroup.WithContext(ctx)

	if p.watchPath != "" {
		g.Go(func() error { return p.watch(ctx, wake) })
	}

	for i := 0; i < p.count; i++ {
		holder, err := model.GenerateID(model.IDTypeWorker)
		if err != nil {
			return err
		}
		g.Go(func() error { return p.runWorker(ctx, holder, wake) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunOnce drains the queue once with a single worker and returns. Used by
// the CLI for one-shot processing.
func (p *Pool) RunOnce(ctx context.Context) error {
	holder, err := model.GenerateID(model.IDTypeWorker)
	if err != nil {
		return err
	}
	return p.drain(ctx, holder)
}

func (p *Pool) runWorker(ctx context.Context, holder string, wake <-chan struct{}) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if err := p.drain(ctx, holder); err != nil {
			p.logf("worker=%s drain: %v", holder, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// drain processes items until the queue is empty or the lock is contended.
func (p *Pool) drain(ctx context.Context, holder string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := p.processOne(ctx, holder)
		if err != nil || done {
			return err
		}
	}
}

// processOne runs one full cycle: lock, dequeue, ladder, report, unlock.
// It returns done=true when there is nothing (more) to do right now.
func (p *Pool) processOne(ctx context.Context, holder string) (bool, error) {
	storage := p.manager.Storage()

	acquired, err := storage.AcquireLock(holder, p.lockTTL)
	if err != nil {
		return true, err
	}
	if !acquired {
		// Live competing holder; try again later.
		return true, nil
	}
	defer func() {
		if err := storage.ReleaseLock(holder); err != nil {
			p.logf("worker=%s release lock: %v", holder, err)
		}
	}()

	item, err := p.manager.Dequeue(holder)
	if errors.Is(err, queue.ErrEmpty) {
		return true, nil
	}
	if err != nil {
		return true, err
	}

	task, err := p.taskForItem(item)
	if err != nil {
		// Unrecoverable item state; dead-letter via the retry path.
		if relErr := p.manager.Release(holder, item.ID, err.Error()); relErr != nil {
			return true, relErr
		}
		return false, nil
	}

	defer p.state.RemoveTask(task.ID)

	res, err := p.ladder.Run(ctx, task)
	if err != nil {
		// Infrastructure failure of a step: requeue so the whole step can
		// be retried, dead-lettering once the bound is spent.
		p.logf("worker=%s item=%s step error: %v", holder, item.ID, err)
		if relErr := p.manager.Release(holder, item.ID, err.Error()); relErr != nil {
			return true, relErr
		}
		return false, nil
	}

	switch res.Decision {
	case escalation.DecisionResolved:
		err = p.manager.Complete(holder, item.ID)
	case escalation.DecisionExhausted:
		err = p.manager.Fail(holder, item.ID, "escalation exhausted")
	case escalation.DecisionParked:
		var snapshot string
		snapshot, err = task.Snapshot()
		if err == nil {
			err = p.manager.Hold(holder, item.ID, snapshot)
		}
	default:
		err = fmt.Errorf("unexpected ladder decision %q", res.Decision)
	}

	if err != nil {
		return true, err
	}
	return false, nil
}

// taskForItem builds the escalation task for a dequeued item, restoring a
// parked snapshot when one is present.
func (p *Pool) taskForItem(item *model.QueueItem) (*escalation.Task, error) {
	if snapshot, ok := item.Meta.Context[model.MetaKeySnapshot]; ok && snapshot != "" {
		task, err := escalation.RestoreTask(snapshot)
		if err != nil {
			return nil, err
		}
		if item.Meta.Context[model.MetaKeyCloudApproved] == "true" {
			task.CloudApproved = true
		}
		p.state.AdoptTask(task)
		return task, nil
	}

	context := make(map[string]string, len(item.Meta.Context)+1)
	for k, v := range item.Meta.Context {
		context[k] = v
	}
	if item.Meta.Type != "" {
		context["type"] = item.Meta.Type
	}

	task, err := p.state.CreateTask(item.ID, context)
	if err != nil {
		return nil, err
	}
	if item.Meta.Context[model.MetaKeyCloudApproved] == "true" {
		task.CloudApproved = true
	}
	return task, nil
}

// watch signals wake whenever the queue state file changes. Debounce is
// unnecessary: the channel holds at most one pending wake-up.
func (p *Pool) watch(ctx context.Context, wake chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: rename-on-write replaces the file node. It may
	// not exist yet when the queue has never been written.
	dir := filepath.Dir(p.watchPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", p.watchPath, err)
	}

	target := filepath.Clean(p.watchPath)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logf("watcher: %v", watchErr)
		}
	}
}

func (p *Pool) logf(format string, args ...any) {
	p.logger.Printf("%s INFO worker: %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}
