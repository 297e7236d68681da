package cli

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tasktimer/internal/notification"
	"tasktimer/internal/task/repository"
	"tasktimer/internal/task/tabsync"
	"tasktimer/internal/task/usecase"
	"tasktimer/pkg/config"
	"tasktimer/pkg/kvstore"
)

// app is one execution context: a storage session and the task store over it.
type app struct {
	cfg      *config.Config
	clock    clockwork.Clock
	medium   kvstore.Medium
	session  *kvstore.Session
	store    usecase.TaskUsecase
	notifier kvstore.Notifier
	closers  []func()
}

// startable notifiers need a background loop; serve starts them.
type startable interface {
	Start(ctx context.Context) error
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, clock: clockwork.NewRealClock()}
	if err := a.openMedium(); err != nil {
		return nil, err
	}

	// the origin also names this context's pubsub subscription
	origin := uuid.New().String()
	notifier, err := a.openNotifier(ctx, origin)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = notifier
	a.session = kvstore.NewSessionWithID(origin, a.medium, notifier)

	a.store = usecase.NewTaskUsecase(ctx, repository.NewStorageTaskRepository(a.session), a.clock)
	return a, nil
}

func (a *app) openMedium() error {
	if a.cfg.StorageDriver == config.DriverMemory {
		a.medium = kvstore.NewMemoryMedium(a.cfg.StorageQuotaBytes)
		return nil
	}

	db, err := kvstore.OpenDatabase(a.cfg.StorageDriver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	medium, err := kvstore.NewGormMedium(db, a.cfg.StorageQuotaBytes)
	if err != nil {
		return err
	}
	a.medium = medium
	return nil
}

func (a *app) openNotifier(ctx context.Context, origin string) (kvstore.Notifier, error) {
	switch a.cfg.SyncMode {
	case config.SyncPoll:
		p := kvstore.NewPollNotifier(a.medium, a.clock, a.cfg.SyncPollInterval)
		a.closers = append(a.closers, p.Stop)
		return p, nil
	case config.SyncPubSub:
		// Extract short topic name from full resource name if necessary
		topicName := a.cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		svc, err := notification.NewService(ctx, a.cfg.GoogleProjectID, topicName, origin, a.cfg.GoogleCredentials)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notification service: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := svc.Close(context.Background()); err != nil {
				log.Printf("[PubSub] Error closing notification service: %v", err)
			}
		})
		return svc, nil
	default:
		return kvstore.NewLocalNotifier(), nil
	}
}

// startSync starts the notifier's background loop, if it has one.
func (a *app) startSync(ctx context.Context) error {
	s, ok := a.notifier.(startable)
	if !ok {
		return nil
	}
	return s.Start(ctx)
}

// watch starts sync and reloads both lists, so writes that landed between
// openApp and the notifier taking its first snapshot are not missed.
func (a *app) watch(ctx context.Context) (*tabsync.Controller, error) {
	if err := a.startSync(ctx); err != nil {
		return nil, err
	}
	ctrl := tabsync.NewController(a.session, a.store)
	ctrl.Start(ctx)

	a.store.ReloadActive(ctx)
	a.store.ReloadCompleted(ctx)
	return ctrl, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
