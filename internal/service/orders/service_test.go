package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	products *memory.ProductRepository
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	service  *orders.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := memory.NewProductRepository()
	products.Put(domain.Product{ID: "product-1", PriceMinor: 100, Stock: 5})

	repo := memory.NewOrderRepository()
	timeline := memory.NewTimelineRepository()
	recorder := outbox.NewRecorder(memory.NewOutboxRepository(), timeline, nil)
	engine := inventory.NewEngine(products, inventory.WithRestoreBaseDelay(0))

	return &fixture{
		products: products,
		orders:   repo,
		timeline: timeline,
		service:  orders.NewService(repo, timeline, engine, recorder, nil),
	}
}

// seed создаёт заказ с уже удержанным резервом, как после checkout.
func (f *fixture) seed(t *testing.T, id string, status domain.OrderStatus, qty int32) {
	t.Helper()

	require.NoError(t, f.products.TryDecrement("product-1", qty))
	now := time.Now().UTC()
	require.NoError(t, f.orders.Create(domain.Order{
		ID:            id,
		AccountID:     "account-1",
		Status:        status,
		PaymentMethod: domain.PaymentMethodCOD,
		AmountMinor:   int64(qty) * 100,
		Items: []domain.OrderItem{
			{ID: id + "-item", ProductID: "product-1", Qty: qty, PriceMinor: 100, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (f *fixture) stock(t *testing.T) int32 {
	t.Helper()
	product, err := f.products.Get("product-1")
	require.NoError(t, err)
	return product.Stock
}

func owner() domain.AuthContext  { return domain.AuthContext{AccountID: "account-1"} }
func admin() domain.AuthContext  { return domain.AuthContext{AccountID: "admin", Admin: true} }
func stranger() domain.AuthContext {
	return domain.AuthContext{AccountID: "account-2"}
}

func TestCancel_RestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 2)
	require.Equal(t, int32(3), f.stock(t))

	order, err := f.service.Cancel(context.Background(), owner(), "order-1", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, int32(5), f.stock(t))

	// Повторная отмена — no-op, склад не растёт второй раз.
	order, err = f.service.Cancel(context.Background(), owner(), "order-1", "again")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, int32(5), f.stock(t))
}

func TestCancel_CompletedOrderFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusCompleted, 1)

	_, err := f.service.Cancel(context.Background(), owner(), "order-1", "")
	require.ErrorIs(t, err, domain.ErrOrderFinalized)
	assert.Equal(t, int32(4), f.stock(t), "stock must stay untouched")
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 1)

	_, err := f.service.Cancel(context.Background(), stranger(), "order-1", "")
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Администратор может отменить чужой заказ.
	_, err = f.service.Cancel(context.Background(), admin(), "order-1", "")
	require.NoError(t, err)
}

func TestUpdateStatus_ForwardChain(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 1)

	order, err := f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	require.NotNil(t, order.ConfirmedAt)

	order, err = f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)

	// Назад нельзя.
	_, err = f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusShipping)
	require.ErrorIs(t, err, domain.ErrOrderFinalized)
}

func TestUpdateStatus_ForwardSkipForCODFulfillment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 1)

	// COD-заказ не получает платёжного callback-а и уходит в доставку
	// напрямую, минуя confirmed.
	order, err := f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusShipping)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipping, order.Status)
	assert.Nil(t, order.ConfirmedAt, "skipping confirmed must not stamp it")

	order, err = f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)
}

func TestUpdateStatus_SelfTransitionNoop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusShipping, 1)

	order, err := f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusShipping)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipping, order.Status)
}

func TestUpdateStatus_BackwardMove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusShipping, 1)

	_, err := f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusConfirmed)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatus_Reactivation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 2)

	_, err := f.service.Cancel(context.Background(), owner(), "order-1", "")
	require.NoError(t, err)
	require.Equal(t, int32(5), f.stock(t))

	// Владелец без прав администратора реактивировать не может.
	_, err = f.service.UpdateStatus(context.Background(), owner(), "order-1", domain.OrderStatusPending)
	require.ErrorIs(t, err, domain.ErrForbidden)

	order, err := f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int32(3), f.stock(t), "reactivation must re-reserve stock")
	assert.Nil(t, order.CancelledAt)
}

func TestUpdateStatus_ReactivationBlockedByStock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 2)

	_, err := f.service.Cancel(context.Background(), owner(), "order-1", "")
	require.NoError(t, err)

	// Остаток выкупает другой заказ.
	require.NoError(t, f.products.TryDecrement("product-1", 4))

	_, err = f.service.UpdateStatus(context.Background(), admin(), "order-1", domain.OrderStatusPending)
	_, ok := domain.IsInsufficientStock(err)
	require.True(t, ok)

	order, err := f.orders.Get("order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status, "order must stay cancelled")
	assert.Equal(t, int32(1), f.stock(t))
}

func TestReassign_AdminOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 1)

	_, err := f.service.Reassign(context.Background(), owner(), "order-1", "account-2")
	require.ErrorIs(t, err, domain.ErrForbidden)

	order, err := f.service.Reassign(context.Background(), admin(), "order-1", "account-2")
	require.NoError(t, err)
	assert.Equal(t, "account-2", order.AccountID)

	stored, err := f.orders.Get("order-1")
	require.NoError(t, err)
	assert.Equal(t, "account-2", stored.AccountID)
}

func TestDelete_RestoresStockUnlessCancelled(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 2)
	require.Equal(t, int32(3), f.stock(t))

	require.ErrorIs(t, f.service.Delete(context.Background(), owner(), "order-1"), domain.ErrForbidden)

	require.NoError(t, f.service.Delete(context.Background(), admin(), "order-1"))
	assert.Equal(t, int32(5), f.stock(t))
	_, err := f.orders.Get("order-1")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	// Отменённый заказ уже вернул резерв: удаление склад не трогает.
	f.seed(t, "order-2", domain.OrderStatusPending, 1)
	_, err = f.service.Cancel(context.Background(), admin(), "order-2", "")
	require.NoError(t, err)
	stockBefore := f.stock(t)
	require.NoError(t, f.service.Delete(context.Background(), admin(), "order-2"))
	assert.Equal(t, stockBefore, f.stock(t))
}

func TestList_OwnerScoped(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 1)

	now := time.Now().UTC()
	require.NoError(t, f.orders.Create(domain.Order{
		ID: "order-2", AccountID: "account-2", Status: domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCOD, AmountMinor: 100,
		Items:     []domain.OrderItem{{ID: "i", ProductID: "product-1", Qty: 1, PriceMinor: 100}},
		CreatedAt: now, UpdatedAt: now,
	}))

	list, total, err := f.service.List(context.Background(), owner(), domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "order-1", list[0].ID)

	_, total, err = f.service.List(context.Background(), admin(), domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestGet_WithTimeline(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "order-1", domain.OrderStatusPending, 1)

	_, err := f.service.Cancel(context.Background(), owner(), "order-1", "late delivery")
	require.NoError(t, err)

	details, err := f.service.Get(context.Background(), owner(), "order-1")
	require.NoError(t, err)
	require.Len(t, details.Timeline, 1)
	assert.Equal(t, "OrderCanceled", details.Timeline[0].Type)
	assert.Equal(t, "late delivery", details.Timeline[0].Reason)

	_, err = f.service.Get(context.Background(), stranger(), "order-1")
	require.ErrorIs(t, err, domain.ErrForbidden)
}
