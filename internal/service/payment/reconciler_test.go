package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type reconcilerFixture struct {
	gateway    *payment.Gateway
	reconciler *payment.Reconciler
	orders     domain.OrderRepository
	timeline   domain.TimelineRepository
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	gw := testGateway()
	orders := memory.NewOrderRepository()
	notices := memory.NewPaymentNoticeRepository()
	timeline := memory.NewTimelineRepository()
	recorder := outbox.NewRecorder(memory.NewOutboxRepository(), timeline, nil)

	now := time.Now().UTC()
	require.NoError(t, orders.Create(domain.Order{
		ID:            "order-1",
		AccountID:     "account-1",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodGateway,
		AmountMinor:   100,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "product-1", Qty: 1, PriceMinor: 100, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	return &reconcilerFixture{
		gateway:    gw,
		reconciler: payment.NewReconciler(gw, orders, notices, recorder, nil),
		orders:     orders,
		timeline:   timeline,
	}
}

func (f *reconcilerFixture) signedParams(code, txnNo string) map[string]string {
	params := map[string]string{
		"vnp_TxnRef":        "order-1",
		"vnp_ResponseCode":  code,
		"vnp_TransactionNo": txnNo,
		"vnp_Amount":        "10000",
	}
	params["vnp_SecureHash"] = f.gateway.SignParams(params)
	return params
}

func TestReconcilerApply_ConfirmsPendingOrder(t *testing.T) {
	f := newReconcilerFixture(t)

	outcome, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, f.signedParams("00", "txn-1"))
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.Duplicate)
	assert.Equal(t, domain.OrderStatusConfirmed, outcome.Order.Status)

	order, err := f.orders.Get("order-1")
	require.NoError(t, err)
	require.NotNil(t, order.Trail.ConfirmedAt)
	assert.Equal(t, "txn-1", order.Trail.LastTxnID)

	events, err := f.timeline.List("order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "PaymentConfirmed", events[0].Type)
}

func TestReconcilerApply_InvalidSignatureNoMutation(t *testing.T) {
	f := newReconcilerFixture(t)

	params := f.signedParams("00", "txn-1")
	params["vnp_Amount"] = "99999"

	_, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, params)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	order, err := f.orders.Get("order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Nil(t, order.Trail.NotifyPayload)
}

func TestReconcilerApply_DuplicateIgnoredEntirely(t *testing.T) {
	f := newReconcilerFixture(t)
	params := f.signedParams("00", "txn-1")

	first, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, params)
	require.NoError(t, err)
	require.False(t, first.Duplicate)
	versionAfterFirst := first.Order.Version

	second, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, params)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, versionAfterFirst, second.Order.Version, "duplicate must not touch the order")

	events, err := f.timeline.List("order-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestReconcilerApply_FailureThenSuccessConverges(t *testing.T) {
	f := newReconcilerFixture(t)

	// Отказ по return-каналу: статус не трогаем, след фиксируем.
	outcome, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelReturn, f.signedParams("24", "txn-1"))
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, domain.OrderStatusPending, outcome.Order.Status)
	require.NotNil(t, outcome.Order.Trail.FailedAt)

	// Успех по авторитетному notify-каналу: заказ подтверждён.
	outcome, err = f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, f.signedParams("00", "txn-2"))
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, domain.OrderStatusConfirmed, outcome.Order.Status)

	// Поздний отказ после успеха подтверждение не откатывает.
	outcome, err = f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, f.signedParams("24", "txn-3"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, outcome.Order.Status)
	require.NotNil(t, outcome.Order.Trail.ConfirmedAt)
}

func TestReconcilerApply_SameTxnDifferentChannelApplies(t *testing.T) {
	f := newReconcilerFixture(t)

	// Оба канала доставляют один и тот же txn: дедупликация по каналу
	// позволяет каждому каналу записать свой след ровно один раз.
	_, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelReturn, f.signedParams("00", "txn-1"))
	require.NoError(t, err)

	outcome, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, f.signedParams("00", "txn-1"))
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.Equal(t, domain.OrderStatusConfirmed, outcome.Order.Status)

	order, err := f.orders.Get("order-1")
	require.NoError(t, err)
	assert.NotNil(t, order.Trail.ReturnPayload)
	assert.NotNil(t, order.Trail.NotifyPayload)
}

// flakyOrderRepository возвращает транзиентную ошибку на первые failures
// вызовов ApplyPaymentResult, дальше делегирует обёрнутому хранилищу.
type flakyOrderRepository struct {
	domain.OrderRepository
	failures int
}

func (r *flakyOrderRepository) ApplyPaymentResult(id string, result domain.PaymentResult) (domain.Order, bool, error) {
	if r.failures > 0 {
		r.failures--
		return domain.Order{}, false, errors.New("storage unavailable")
	}
	return r.OrderRepository.ApplyPaymentResult(id, result)
}

func TestReconcilerApply_RetryAfterTransientApplyError(t *testing.T) {
	gw := testGateway()
	orders := &flakyOrderRepository{OrderRepository: memory.NewOrderRepository(), failures: 1}
	notices := memory.NewPaymentNoticeRepository()
	recorder := outbox.NewRecorder(memory.NewOutboxRepository(), memory.NewTimelineRepository(), nil)

	now := time.Now().UTC()
	require.NoError(t, orders.Create(domain.Order{
		ID:            "order-1",
		AccountID:     "account-1",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodGateway,
		AmountMinor:   100,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "product-1", Qty: 1, PriceMinor: 100, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	reconciler := payment.NewReconciler(gw, orders, notices, recorder, nil)

	params := map[string]string{
		"vnp_TxnRef":        "order-1",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "txn-1",
		"vnp_Amount":        "10000",
	}
	params["vnp_SecureHash"] = gw.SignParams(params)

	// Сбой хранилища после записи дедупликации: ошибка уходит наружу,
	// провайдер получит FAILED и повторит доставку.
	_, err := reconciler.Apply(context.Background(), domain.PaymentChannelNotify, params)
	require.Error(t, err)

	// Повтор той же подписанной доставки не должен гаситься как дубликат:
	// запись дедупликации снята, заказ подтверждается.
	outcome, err := reconciler.Apply(context.Background(), domain.PaymentChannelNotify, params)
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.True(t, outcome.Success)
	assert.Equal(t, domain.OrderStatusConfirmed, outcome.Order.Status)

	order, err := orders.Get("order-1")
	require.NoError(t, err)
	require.NotNil(t, order.Trail.ConfirmedAt)
	assert.Equal(t, "txn-1", order.Trail.LastTxnID)
}

func TestReconcilerApply_UnknownOrder(t *testing.T) {
	f := newReconcilerFixture(t)

	params := map[string]string{
		"vnp_TxnRef":        "ghost",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "txn-9",
	}
	params["vnp_SecureHash"] = f.gateway.SignParams(params)

	_, err := f.reconciler.Apply(context.Background(), domain.PaymentChannelNotify, params)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}
