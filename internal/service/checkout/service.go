package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

var (
	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Total number of checkout attempts grouped by result.",
	}, []string{"result"})
	checkoutOutOfStock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_checkout_out_of_stock_total",
		Help: "Total number of checkouts rejected because of insufficient stock.",
	})
	checkoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_duration_seconds",
		Help:    "Checkout end-to-end duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// Line — позиция запроса checkout. Nil-цена означает "взять из каталога";
// явное значение, включая ноль, фиксируется как есть.
type Line struct {
	ProductID  string
	Qty        int32
	PriceMinor *int64
}

// Request — входные данные checkout. Пустой список Lines означает
// оформление по снимку корзины аккаунта.
type Request struct {
	Auth          domain.AuthContext
	Lines         []Line
	PaymentMethod domain.PaymentMethod
	Receiver      domain.Receiver
}

// Service оформляет заказ: резервирует остатки, сохраняет агрегат и
// публикует событие создания. Отказ на любом шаге оставляет склад в
// исходном состоянии.
type Service struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	cart     domain.CartRepository
	reserver domain.StockReserver
	recorder *outbox.Recorder
	logger   *log.Entry
}

// NewService создаёт сервис checkout.
func NewService(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	cart domain.CartRepository,
	reserver domain.StockReserver,
	recorder *outbox.Recorder,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Service{
		products: products,
		orders:   orders,
		cart:     cart,
		reserver: reserver,
		recorder: recorder,
		logger:   logger,
	}
}

// Checkout оформляет заказ для аккаунта вызывающего.
func (s *Service) Checkout(ctx context.Context, req Request) (domain.Order, error) {
	started := time.Now()
	order, err := s.checkout(ctx, req)
	checkoutDuration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
		checkoutsTotal.WithLabelValues("ok").Inc()
	default:
		if _, ok := domain.IsInsufficientStock(err); ok {
			checkoutOutOfStock.Inc()
			checkoutsTotal.WithLabelValues("out_of_stock").Inc()
		} else {
			checkoutsTotal.WithLabelValues("error").Inc()
		}
	}
	return order, err
}

func (s *Service) checkout(ctx context.Context, req Request) (domain.Order, error) {
	if req.Auth.AccountID == "" {
		return domain.Order{}, domain.ErrAccountRequired
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if !method.Valid() {
		return domain.Order{}, domain.ErrPaymentMethodInvalid
	}

	lines := req.Lines
	fromCart := false
	if len(lines) == 0 {
		cartItems, err := s.cart.List(req.Auth.AccountID)
		if err != nil {
			return domain.Order{}, err
		}
		if len(cartItems) == 0 {
			return domain.Order{}, domain.ErrCartEmpty
		}
		fromCart = true
		for _, item := range cartItems {
			price := item.PriceMinor
			lines = append(lines, Line{ProductID: item.ProductID, Qty: item.Qty, PriceMinor: &price})
		}
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(lines))
	var amount int64
	for _, line := range lines {
		if line.Qty <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
		if line.PriceMinor != nil && *line.PriceMinor < 0 {
			return domain.Order{}, domain.ErrItemPriceInvalid
		}

		product, err := s.products.Get(line.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		// Без явной цены фиксируется каталожная на момент оформления;
		// присланный ноль означает бесплатную позицию.
		price := product.PriceMinor
		if line.PriceMinor != nil {
			price = *line.PriceMinor
		}

		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  product.ID,
			Qty:        line.Qty,
			PriceMinor: price,
			CreatedAt:  now,
		})
		amount += int64(line.Qty) * price
	}

	if err := s.reserver.Reserve(ctx, items); err != nil {
		s.logger.WithError(err).WithField("account_id", req.Auth.AccountID).Warn("checkout reservation failed")
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		AccountID:     req.Auth.AccountID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		AmountMinor:   amount,
		Items:         items,
		Receiver:      req.Receiver,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.persistWithFallback(ctx, &order); err != nil {
		// Резерв обязан вернуться на склад: заказ так и не был сохранён.
		if restoreErr := s.reserver.Restore(ctx, items); restoreErr != nil {
			s.logger.WithError(restoreErr).WithField("order_id", order.ID).Error("failed to restore stock after create failure")
		}
		return domain.Order{}, err
	}

	if fromCart {
		if err := s.cart.Clear(req.Auth.AccountID); err != nil {
			s.logger.WithError(err).WithField("account_id", req.Auth.AccountID).Warn("failed to clear cart after checkout")
		}
	}

	s.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"account_id": order.AccountID,
		"amount":     order.AmountMinor,
		"items":      len(order.Items),
	}).Info("order created")

	s.recorder.Emit(order.ID, "OrderCreated", "", map[string]any{
		"account_id": order.AccountID,
		"amount":     order.AmountMinor,
		"items":      len(order.Items),
		"pay_method": string(order.PaymentMethod),
	})

	return order, nil
}

// persistWithFallback сохраняет заказ; при отказе записи делает одну
// немедленную повторную попытку в минимальной legacy-совместимой форме
// (без блока получателя и платёжного следа).
func (s *Service) persistWithFallback(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.orders.Create(*order)
	if err == nil {
		return nil
	}
	s.logger.WithError(err).WithField("order_id", order.ID).Warn("order create failed, retrying with minimal shape")

	minimal := *order
	minimal.Receiver = domain.Receiver{}
	minimal.Trail = domain.PaymentTrail{}
	if retryErr := s.orders.Create(minimal); retryErr != nil {
		return err
	}
	*order = minimal
	return nil
}
