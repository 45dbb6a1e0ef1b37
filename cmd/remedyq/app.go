package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/remedyq/remedyq/internal/config"
	"github.com/remedyq/remedyq/internal/cost"
	"github.com/remedyq/remedyq/internal/events"
	"github.com/remedyq/remedyq/internal/model"
	"github.com/remedyq/remedyq/internal/queue"
)

// app bundles the wired components every command needs.
type app struct {
	cfg     *config.Config
	manager *queue.Manager
	tracker *cost.Tracker
	bus     *events.Bus
	logger  *log.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "", 0)
	bus := events.NewBus(100)
	if cfg.Logging.Level == "debug" {
		tapEvents(bus, logger)
	}

	storage, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}
	manager := queue.NewManager(storage, logger,
		queue.WithBus(bus),
		queue.WithMaxRetries(cfg.Worker.MaxItemRetries),
	)

	tracker := cost.NewTracker(cfg.Escalation.CostBudgetDaily, func(remaining, total float64) {
		bus.Publish(events.EventBudgetWarning, map[string]any{
			"remaining": remaining,
			"total":     total,
		})
		logger.Printf("%s WARN cost: daily budget low: %.2f of %.2f remaining",
			time.Now().UTC().Format(time.RFC3339), remaining, total)
	})
	if cfg.Cost.LedgerPath != "" {
		if err := tracker.LoadFile(cfg.Cost.LedgerPath); err != nil {
			return nil, fmt.Errorf("load cost ledger: %w", err)
		}
		tracker.Cleanup(cfg.Cost.RetentionDays)
	}

	return &app{
		cfg:     cfg,
		manager: manager,
		tracker: tracker,
		bus:     bus,
		logger:  logger,
	}, nil
}

// tapEvents logs every lifecycle event at debug level.
func tapEvents(bus *events.Bus, logger *log.Logger) {
	for _, eventType := range []events.EventType{
		events.EventItemEnqueued, events.EventItemCompleted, events.EventItemFailed,
		events.EventLevelStarted, events.EventLevelAdvanced,
		events.EventTaskResolved, events.EventTaskExhausted,
		events.EventBudgetWarning,
	} {
		bus.Subscribe(eventType, func(e events.Event) {
			logger.Printf("%s DEBUG event: %s %v", e.Timestamp.Format(time.RFC3339), e.Type, e.Data)
		})
	}
}

func buildStorage(cfg *config.Config) (queue.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return queue.NewFileStorage(cfg.Storage.Path), nil
	case config.BackendMemory:
		return queue.NewMemoryStorage(), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		return queue.NewRedisStorage(rdb, cfg.Storage.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// saveLedger snapshots the cost ledger if persistence is configured.
func (a *app) saveLedger() {
	if a.cfg.Cost.LedgerPath == "" {
		return
	}
	if err := a.tracker.SaveFile(a.cfg.Cost.LedgerPath); err != nil {
		a.logger.Printf("save cost ledger: %v", err)
	}
}

// withLock runs fn while holding the queue lock under a fresh holder
// identity, releasing it afterwards.
func (a *app) withLock(fn func(holder string) error) error {
	holder, err := model.GenerateID(model.IDTypeWorker)
	if err != nil {
		return err
	}

	storage := a.manager.Storage()
	acquired, err := storage.AcquireLock(holder, 30*time.Second)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("queue is locked by another worker; try again later")
	}
	defer func() { _ = storage.ReleaseLock(holder) }()

	return fn(holder)
}
