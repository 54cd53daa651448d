package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/account"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Products domain.ProductRepository
	Ledger   domain.StockLedger
	Orders   domain.OrderRepository
	Cart     domain.CartRepository
	Notices  domain.PaymentNoticeRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Accounts domain.AccountService
	Logger   *log.Entry

	store *postgres.Store
}

// NewDependencies создаёт зависимости приложения в соответствии с выбранным
// драйвером хранилища.
// NOTE: сервис аккаунтов здесь mock; в production окружении его заменяет
// клиент реального сервиса аутентификации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Accounts: account.NewMockService(),
		Logger:   logger,
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}

		products := postgres.NewProductRepository(store)
		deps.store = store
		deps.Products = products
		deps.Ledger = products
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Cart = postgres.NewCartRepository(store)
		deps.Notices = postgres.NewPaymentNoticeRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		logger.Info("используем PostgreSQL хранилище")

	case StorageDriverMemory, "":
		products := memory.NewProductRepository()
		deps.Products = products
		deps.Ledger = products
		deps.Orders = memory.NewOrderRepository()
		deps.Cart = memory.NewCartRepository()
		deps.Notices = memory.NewPaymentNoticeRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
		logger.Info("используем in-memory хранилище")

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	return deps, nil
}

// Ping проверяет доступность хранилища (для readiness-проверок).
func (d *Dependencies) Ping(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	return d.store.Ping(ctx)
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}
