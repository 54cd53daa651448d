package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

// fakeLedger — потокобезопасный склад с инъекцией ошибок для тестов движка.
type fakeLedger struct {
	mu    sync.Mutex
	stock map[string]int32

	incrementFailures map[string]int
}

func newFakeLedger(stock map[string]int32) *fakeLedger {
	copied := make(map[string]int32, len(stock))
	for id, qty := range stock {
		copied[id] = qty
	}
	return &fakeLedger{stock: copied, incrementFailures: make(map[string]int)}
}

func (l *fakeLedger) TryDecrement(productID string, qty int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stock[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current < qty {
		return &domain.InsufficientStockError{ProductID: productID}
	}
	l.stock[productID] = current - qty
	return nil
}

func (l *fakeLedger) Increment(productID string, qty int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining := l.incrementFailures[productID]; remaining > 0 {
		l.incrementFailures[productID] = remaining - 1
		return errors.New("transient ledger failure")
	}
	l.stock[productID] += qty
	return nil
}

func (l *fakeLedger) get(productID string) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[productID]
}

func items(pairs ...any) []domain.OrderItem {
	var result []domain.OrderItem
	for i := 0; i < len(pairs); i += 2 {
		result = append(result, domain.OrderItem{
			ProductID: pairs[i].(string),
			Qty:       int32(pairs[i+1].(int)),
		})
	}
	return result
}

func TestEngineReserve_Success(t *testing.T) {
	ledger := newFakeLedger(map[string]int32{"a": 5, "b": 3})
	engine := inventory.NewEngine(ledger, inventory.WithRestoreBaseDelay(0))

	err := engine.Reserve(context.Background(), items("a", 2, "b", 3))
	require.NoError(t, err)
	assert.Equal(t, int32(3), ledger.get("a"))
	assert.Equal(t, int32(0), ledger.get("b"))
}

func TestEngineReserve_EmptyItemsNoop(t *testing.T) {
	ledger := newFakeLedger(map[string]int32{"a": 5})
	engine := inventory.NewEngine(ledger)

	require.NoError(t, engine.Reserve(context.Background(), nil))
	assert.Equal(t, int32(5), ledger.get("a"))
}

func TestEngineReserve_RollbackOnFailure(t *testing.T) {
	// A хватает, B превышает остаток: A обязан вернуться на склад целиком.
	ledger := newFakeLedger(map[string]int32{"a": 5, "b": 1})
	engine := inventory.NewEngine(ledger, inventory.WithRestoreBaseDelay(0))

	err := engine.Reserve(context.Background(), items("a", 4, "b", 2))
	require.Error(t, err)

	productID, ok := domain.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, "b", productID)

	assert.Equal(t, int32(5), ledger.get("a"), "held stock must be compensated")
	assert.Equal(t, int32(1), ledger.get("b"))
}

func TestEngineReserve_DuplicateProductIDs(t *testing.T) {
	ledger := newFakeLedger(map[string]int32{"a": 3})
	engine := inventory.NewEngine(ledger, inventory.WithRestoreBaseDelay(0))

	// Повторы декрементируются независимо: 2 + 2 > 3 — второй повтор падает,
	// первый компенсируется.
	err := engine.Reserve(context.Background(), items("a", 2, "a", 2))
	require.Error(t, err)
	assert.Equal(t, int32(3), ledger.get("a"))
}

func TestEngineReserve_UnknownProduct(t *testing.T) {
	ledger := newFakeLedger(map[string]int32{"a": 5})
	engine := inventory.NewEngine(ledger, inventory.WithRestoreBaseDelay(0))

	err := engine.Reserve(context.Background(), items("a", 1, "ghost", 1))
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, int32(5), ledger.get("a"))
}

func TestEngineRestore_RetriesTransientFailures(t *testing.T) {
	ledger := newFakeLedger(map[string]int32{"a": 0, "b": 0})
	ledger.incrementFailures["a"] = 2

	engine := inventory.NewEngine(ledger,
		inventory.WithRestoreAttempts(4),
		inventory.WithRestoreBaseDelay(time.Millisecond),
	)

	err := engine.Restore(context.Background(), items("a", 3, "b", 1))
	require.NoError(t, err)
	assert.Equal(t, int32(3), ledger.get("a"))
	assert.Equal(t, int32(1), ledger.get("b"))
}

func TestEngineRestore_PersistentFailureContinues(t *testing.T) {
	ledger := newFakeLedger(map[string]int32{"a": 0, "b": 0})
	ledger.incrementFailures["a"] = 100

	engine := inventory.NewEngine(ledger,
		inventory.WithRestoreAttempts(2),
		inventory.WithRestoreBaseDelay(0),
	)

	err := engine.Restore(context.Background(), items("a", 3, "b", 1))
	require.Error(t, err)
	// Ошибка по A не мешает возврату B.
	assert.Equal(t, int32(1), ledger.get("b"))
}

func TestEngineConcurrentReserveRestore_StockNeverNegative(t *testing.T) {
	const initial = int32(50)
	ledger := newFakeLedger(map[string]int32{"a": initial})
	engine := inventory.NewEngine(ledger, inventory.WithRestoreBaseDelay(0))

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Reserve(context.Background(), items("a", 1)); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(reserved), initial-ledger.get("a"))
	assert.GreaterOrEqual(t, ledger.get("a"), int32(0))

	// Возвращаем всё удержанное: остаток обязан сойтись к исходному.
	require.NoError(t, engine.Restore(context.Background(), items("a", reserved)))
	assert.Equal(t, initial, ledger.get("a"))
}
