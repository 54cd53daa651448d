package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultRestoreAttempts  = 5
	defaultRestoreBaseDelay = 25 * time.Millisecond
)

var (
	reservationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_reservations_total",
		Help: "Total number of stock reservation attempts grouped by result.",
	}, []string{"result"})
	restorationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_restorations_total",
		Help: "Total number of compensating stock increments grouped by result.",
	}, []string{"result"})
)

// EngineOptions задаёт параметры движка резервирования.
type EngineOptions struct {
	Logger           *log.Entry
	RestoreAttempts  int
	RestoreBaseDelay time.Duration
}

// Option настраивает Engine.
type Option func(*EngineOptions)

// WithLogger задаёт logger для движка.
func WithLogger(logger *log.Entry) Option {
	return func(opts *EngineOptions) {
		opts.Logger = logger
	}
}

// WithRestoreAttempts задаёт число попыток компенсирующего инкремента.
func WithRestoreAttempts(attempts int) Option {
	return func(opts *EngineOptions) {
		opts.RestoreAttempts = attempts
	}
}

// WithRestoreBaseDelay задаёт базовый delay для backoff компенсаций.
func WithRestoreBaseDelay(delay time.Duration) Option {
	return func(opts *EngineOptions) {
		opts.RestoreBaseDelay = delay
	}
}

// Engine резервирует остатки под заказ последовательными условными
// декрементами и гарантирует net-zero эффект при любом отказе.
type Engine struct {
	ledger           domain.StockLedger
	logger           *log.Entry
	restoreAttempts  int
	restoreBaseDelay time.Duration
}

// NewEngine создаёт движок резервирования поверх склада.
func NewEngine(ledger domain.StockLedger, options ...Option) *Engine {
	opts := EngineOptions{
		RestoreAttempts:  defaultRestoreAttempts,
		RestoreBaseDelay: defaultRestoreBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "inventory-engine")
	}
	if opts.RestoreAttempts <= 0 {
		opts.RestoreAttempts = defaultRestoreAttempts
	}
	if opts.RestoreBaseDelay < 0 {
		opts.RestoreBaseDelay = 0
	}

	return &Engine{
		ledger:           ledger,
		logger:           logger,
		restoreAttempts:  opts.RestoreAttempts,
		restoreBaseDelay: opts.RestoreBaseDelay,
	}
}

// Reserve последовательно удерживает остаток под каждую позицию.
// Первый же отказ останавливает проход: уже удержанные позиции
// компенсируются в обратном порядке, наружу уходит исходная ошибка.
// Пустой список позиций — успешный no-op. Повторы одного товара в списке
// декрементируются независимо.
func (e *Engine) Reserve(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			e.rollback(ctx, items[:i])
			return err
		}

		if err := e.ledger.TryDecrement(item.ProductID, item.Qty); err != nil {
			if _, ok := domain.IsInsufficientStock(err); ok {
				reservationAttempts.WithLabelValues("out_of_stock").Inc()
			} else {
				reservationAttempts.WithLabelValues("error").Inc()
			}
			e.logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Warn("stock reservation failed, rolling back held items")

			e.rollback(ctx, items[:i])
			return err
		}
	}

	reservationAttempts.WithLabelValues("reserved").Inc()
	return nil
}

// Restore безусловно возвращает позиции на склад (компенсация отмены или
// отката). Семантика at-least-once: каждая позиция ретраится с backoff,
// устойчивая ошибка логируется и не мешает возврату остальных позиций;
// наружу уходит первая устойчивая ошибка.
func (e *Engine) Restore(ctx context.Context, items []domain.OrderItem) error {
	var firstErr error

	for _, item := range items {
		if err := e.incrementWithRetry(ctx, item.ProductID, item.Qty); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Error("stock restoration failed after retries")
			restorationAttempts.WithLabelValues("failed").Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		restorationAttempts.WithLabelValues("restored").Inc()
	}

	return firstErr
}

// rollback компенсирует уже удержанные позиции в обратном порядке.
func (e *Engine) rollback(ctx context.Context, held []domain.OrderItem) {
	for i := len(held) - 1; i >= 0; i-- {
		item := held[i]
		if err := e.incrementWithRetry(ctx, item.ProductID, item.Qty); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Error("rollback increment failed after retries, stock left decremented")
			restorationAttempts.WithLabelValues("failed").Inc()
			continue
		}
		restorationAttempts.WithLabelValues("restored").Inc()
	}
}

func (e *Engine) incrementWithRetry(ctx context.Context, productID string, qty int32) error {
	var lastErr error

	for attempt := 1; attempt <= e.restoreAttempts; attempt++ {
		err := e.ledger.Increment(productID, qty)
		if err == nil {
			return nil
		}
		lastErr = err
		e.logger.WithError(err).WithFields(log.Fields{
			"product_id": productID,
			"attempt":    attempt,
		}).Warn("stock increment attempt failed")

		if attempt >= e.restoreAttempts {
			break
		}

		delay := e.restoreBackoff(attempt)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("increment failed after %d attempts: %w", e.restoreAttempts, lastErr)
}

func (e *Engine) restoreBackoff(attempt int) time.Duration {
	if e.restoreBaseDelay <= 0 {
		return 0
	}
	delay := e.restoreBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
