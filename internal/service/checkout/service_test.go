package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	products *memory.ProductRepository
	orders   domain.OrderRepository
	cart     *memory.CartRepository
	timeline domain.TimelineRepository
	service  *checkout.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := memory.NewProductRepository()
	products.Put(domain.Product{ID: "product-1", Name: "Widget", PriceMinor: 100, Stock: 10})
	products.Put(domain.Product{ID: "product-2", Name: "Gadget", PriceMinor: 250, Stock: 1})

	orders := memory.NewOrderRepository()
	cart := memory.NewCartRepository()
	timeline := memory.NewTimelineRepository()
	recorder := outbox.NewRecorder(memory.NewOutboxRepository(), timeline, nil)
	engine := inventory.NewEngine(products, inventory.WithRestoreBaseDelay(0))

	return &fixture{
		products: products,
		orders:   orders,
		cart:     cart,
		timeline: timeline,
		service:  checkout.NewService(products, orders, cart, engine, recorder, nil),
	}
}

func auth() domain.AuthContext {
	return domain.AuthContext{AccountID: "account-1"}
}

func price(v int64) *int64 {
	return &v
}

func TestCheckout_ExplicitLines(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Checkout(context.Background(), checkout.Request{
		Auth: auth(),
		Lines: []checkout.Line{
			{ProductID: "product-1", Qty: 2},
			{ProductID: "product-2", Qty: 1, PriceMinor: price(240)},
		},
		PaymentMethod: domain.PaymentMethodGateway,
		Receiver:      domain.Receiver{Name: "Ivan", Phone: "+84123"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	// Цена без явного указания берётся из каталога.
	assert.Equal(t, int64(2*100+240), order.AmountMinor)
	require.Len(t, order.Items, 2)
	assert.Empty(t, order.ValidateInvariants())

	// Остатки удержаны.
	p1, _ := f.products.Get("product-1")
	p2, _ := f.products.Get("product-2")
	assert.Equal(t, int32(8), p1.Stock)
	assert.Equal(t, int32(0), p2.Stock)

	stored, err := f.orders.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ivan", stored.Receiver.Name)

	events, err := f.timeline.List(order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "OrderCreated", events[0].Type)
}

func TestCheckout_ExplicitZeroPriceLine(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Checkout(context.Background(), checkout.Request{
		Auth: auth(),
		Lines: []checkout.Line{
			{ProductID: "product-1", Qty: 1},
			{ProductID: "product-2", Qty: 1, PriceMinor: price(0)},
		},
	})
	require.NoError(t, err)

	// Явный ноль — бесплатная позиция, каталожная цена не подставляется.
	assert.Equal(t, int64(100), order.AmountMinor)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(0), order.Items[1].PriceMinor)
	assert.Empty(t, order.ValidateInvariants())
}

func TestCheckout_FromCartClearsCart(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.cart.Add(domain.CartItem{ID: "cart-1", AccountID: "account-1", ProductID: "product-1", Qty: 3, CreatedAt: now})

	order, err := f.service.Checkout(context.Background(), checkout.Request{Auth: auth()})
	require.NoError(t, err)
	assert.Equal(t, int64(300), order.AmountMinor)
	assert.Equal(t, domain.PaymentMethodCOD, order.PaymentMethod)

	items, err := f.cart.List("account-1")
	require.NoError(t, err)
	assert.Empty(t, items, "cart must be cleared after checkout")
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Checkout(context.Background(), checkout.Request{Auth: auth()})
	require.ErrorIs(t, err, domain.ErrCartEmpty)
}

func TestCheckout_OutOfStockRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Checkout(context.Background(), checkout.Request{
		Auth: auth(),
		Lines: []checkout.Line{
			{ProductID: "product-1", Qty: 2},
			{ProductID: "product-2", Qty: 5},
		},
	})
	productID, ok := domain.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, "product-2", productID)

	// Удержанный product-1 вернулся на склад.
	p1, _ := f.products.Get("product-1")
	p2, _ := f.products.Get("product-2")
	assert.Equal(t, int32(10), p1.Stock)
	assert.Equal(t, int32(1), p2.Stock)

	// Заказ не создан.
	_, total, err := f.orders.List(domain.OrderFilter{AccountID: "account-1"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Checkout(context.Background(), checkout.Request{
		Auth:  auth(),
		Lines: []checkout.Line{{ProductID: "product-1", Qty: 0}},
	})
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)

	_, err = f.service.Checkout(context.Background(), checkout.Request{
		Auth:  auth(),
		Lines: []checkout.Line{{ProductID: "product-1", Qty: 1, PriceMinor: price(-1)}},
	})
	require.ErrorIs(t, err, domain.ErrItemPriceInvalid)

	_, err = f.service.Checkout(context.Background(), checkout.Request{
		Auth:  auth(),
		Lines: []checkout.Line{{ProductID: "ghost", Qty: 1}},
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.service.Checkout(context.Background(), checkout.Request{
		Auth:          auth(),
		Lines:         []checkout.Line{{ProductID: "product-1", Qty: 1}},
		PaymentMethod: "cheque",
	})
	require.ErrorIs(t, err, domain.ErrPaymentMethodInvalid)

	_, err = f.service.Checkout(context.Background(), checkout.Request{
		Lines: []checkout.Line{{ProductID: "product-1", Qty: 1}},
	})
	require.ErrorIs(t, err, domain.ErrAccountRequired)
}

// failingOrderRepo отклоняет заданное число Create перед успехом.
type failingOrderRepo struct {
	domain.OrderRepository
	failures int
	attempts []domain.Order
}

func (r *failingOrderRepo) Create(order domain.Order) error {
	r.attempts = append(r.attempts, order)
	if r.failures > 0 {
		r.failures--
		return errors.New("storage write failed")
	}
	return r.OrderRepository.Create(order)
}

func TestCheckout_CreateRetriesWithMinimalShape(t *testing.T) {
	f := newFixture(t)
	repo := &failingOrderRepo{OrderRepository: f.orders, failures: 1}
	engine := inventory.NewEngine(f.products, inventory.WithRestoreBaseDelay(0))
	service := checkout.NewService(f.products, repo, f.cart, engine, outbox.NewRecorder(nil, nil, nil), nil)

	order, err := service.Checkout(context.Background(), checkout.Request{
		Auth:     auth(),
		Lines:    []checkout.Line{{ProductID: "product-1", Qty: 1}},
		Receiver: domain.Receiver{Name: "Ivan"},
	})
	require.NoError(t, err)

	require.Len(t, repo.attempts, 2)
	assert.Equal(t, "Ivan", repo.attempts[0].Receiver.Name)
	assert.True(t, repo.attempts[1].Receiver.Empty(), "retry must use the minimal legacy shape")
	assert.True(t, order.Receiver.Empty())

	p1, _ := f.products.Get("product-1")
	assert.Equal(t, int32(9), p1.Stock)
}

func TestCheckout_CreateFailureCompensatesStock(t *testing.T) {
	f := newFixture(t)
	repo := &failingOrderRepo{OrderRepository: f.orders, failures: 2}
	engine := inventory.NewEngine(f.products, inventory.WithRestoreBaseDelay(0))
	service := checkout.NewService(f.products, repo, f.cart, engine, outbox.NewRecorder(nil, nil, nil), nil)

	_, err := service.Checkout(context.Background(), checkout.Request{
		Auth:  auth(),
		Lines: []checkout.Line{{ProductID: "product-1", Qty: 4}},
	})
	require.Error(t, err)
	require.Len(t, repo.attempts, 2)

	// После retry и компенсации склад в исходном состоянии.
	p1, _ := f.products.Get("product-1")
	assert.Equal(t, int32(10), p1.Stock)
}
