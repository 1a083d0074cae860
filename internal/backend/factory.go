package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pennywise/internal/amqp"
	"pennywise/internal/auth"
	"pennywise/internal/cache"
	"pennywise/internal/log"
	"pennywise/internal/storage"
	"pennywise/internal/storage/memory"
)

var (
	_ Auth            = (*auth.Service)(nil)
	_ persistence     = (*storage.SQLRepository)(nil)
	_ persistence     = (*memory.Store)(nil)
	_ LedgerPublisher = (*amqp.Client)(nil)
)

const defaultCurrencyCacheTTL = 10 * time.Minute

// persistence is what every store implementation provides.
type persistence interface {
	Store
	auth.UserStore
	Close() error
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	var publisher *amqp.Client
	if config.AMQPURL != "" {
		publisher, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without background jobs", log.FieldError, err)
			publisher = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	var notifier auth.ResetNotifier
	if publisher != nil {
		notifier = publisher
	}
	authService, err := auth.NewService(store, notifier, config.Auth, auth.WithLogger(f.logger))
	if err != nil {
		closeAll(publisher, store)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	ttl := config.CurrencyCacheTTL
	if ttl <= 0 {
		ttl = defaultCurrencyCacheTTL
	}
	currencies := cache.NewCurrencies(store, ttl)
	caches := cache.NewManager(f.logger)
	for _, c := range currencies.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(context.Background(), ttl)

	client := NewClient(store, authService)
	client.Currencies = currencies
	if publisher != nil {
		client.Ledger = publisher
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, config.Type.String(),
		"oauth_providers", authService.Providers(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Client:      client,
		AuthService: authService,
		Cleanup: func() error {
			caches.Stop()
			return closeAll(publisher, store)
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (persistence, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func closeAll(publisher *amqp.Client, store persistence) error {
	var errs []error
	if publisher != nil {
		errs = append(errs, publisher.Close())
	}
	if store != nil {
		errs = append(errs, store.Close())
	}
	return errors.Join(errs...)
}
