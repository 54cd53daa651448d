package orders

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

var statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_order_status_transitions_total",
	Help: "Total number of applied order status transitions.",
}, []string{"from", "to"})

// Детали заказа вместе с аудиторской лентой.
type Details struct {
	Order    domain.Order
	Timeline []domain.TimelineEvent
}

// Service управляет жизненным циклом заказа после создания: переходы
// статусов, отмена с возвратом склада, административные операции.
type Service struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	reserver domain.StockReserver
	recorder *outbox.Recorder
	logger   *log.Entry
}

// NewService создаёт сервис заказов.
func NewService(
	ordersRepo domain.OrderRepository,
	timeline domain.TimelineRepository,
	reserver domain.StockReserver,
	recorder *outbox.Recorder,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	return &Service{
		orders:   ordersRepo,
		timeline: timeline,
		reserver: reserver,
		recorder: recorder,
		logger:   logger,
	}
}

// Get возвращает заказ с лентой событий. Доступ — владелец или администратор.
func (s *Service) Get(ctx context.Context, auth domain.AuthContext, id string) (Details, error) {
	order, err := s.orders.Get(id)
	if err != nil {
		return Details{}, err
	}
	if !auth.CanAccess(order.AccountID) {
		return Details{}, domain.ErrForbidden
	}

	var events []domain.TimelineEvent
	if s.timeline != nil {
		events, err = s.timeline.List(id)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", id).Warn("failed to load order timeline")
			events = nil
		}
	}
	return Details{Order: order, Timeline: events}, nil
}

// List возвращает страницу заказов. Не-администратор видит только свои.
func (s *Service) List(ctx context.Context, auth domain.AuthContext, filter domain.OrderFilter) ([]domain.Order, int, error) {
	if !auth.Admin {
		filter.AccountID = auth.AccountID
	}
	if filter.Sort != "" && !filter.Sort.Valid() {
		return nil, 0, domain.ErrStatusInvalid
	}
	return s.orders.List(filter)
}

// Cancel отменяет заказ и возвращает резерв на склад.
// Операция идемпотентна: повторная отмена — успешный no-op, возврат склада
// выполняется не более одного раза и только тем вызовом, который реально
// перевёл заказ в cancelled.
func (s *Service) Cancel(ctx context.Context, auth domain.AuthContext, id, reason string) (domain.Order, error) {
	order, err := s.orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if !auth.CanAccess(order.AccountID) {
		return domain.Order{}, domain.ErrForbidden
	}

	now := time.Now().UTC()
	order, applied, err := s.orders.TransitionStatus(id, domain.OrderStatusCancelled, []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusShipping,
	}, now)
	if err != nil {
		return domain.Order{}, err
	}

	if !applied {
		if order.Status == domain.OrderStatusCancelled {
			// Уже отменён: успех без повторного возврата склада.
			return order, nil
		}
		return domain.Order{}, domain.ErrOrderFinalized
	}

	// Guard сработал ровно у нас: возвращаем удержанный резерв.
	if err := s.reserver.Restore(ctx, order.Items); err != nil {
		s.logger.WithError(err).WithField("order_id", id).Error("stock restoration after cancel failed")
	}

	statusTransitions.WithLabelValues("*", string(domain.OrderStatusCancelled)).Inc()
	s.logger.WithFields(log.Fields{"order_id": id, "reason": reason}).Info("order cancelled")
	s.recorder.Emit(id, "OrderCanceled", reason, map[string]any{
		"account_id": order.AccountID,
	})
	return order, nil
}

// UpdateStatus переводит заказ в указанный статус.
// Вперёд по цепочке pending -> confirmed -> shipping -> completed; в
// cancelled — через Cancel; реактивация cancelled -> to доступна только
// администратору и требует повторного резервирования склада.
func (s *Service) UpdateStatus(ctx context.Context, auth domain.AuthContext, id string, to domain.OrderStatus) (domain.Order, error) {
	order, err := s.orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if !auth.CanAccess(order.AccountID) {
		return domain.Order{}, domain.ErrForbidden
	}

	if err := domain.CanTransition(order.Status, to); err != nil {
		return domain.Order{}, err
	}
	if order.Status == to {
		return order, nil
	}
	if to == domain.OrderStatusCancelled {
		return s.Cancel(ctx, auth, id, "")
	}
	if order.Status == domain.OrderStatusCancelled {
		return s.reactivate(ctx, auth, order, to)
	}

	from := order.Status
	now := time.Now().UTC()
	order, applied, err := s.orders.TransitionStatus(id, to, forwardSources(to), now)
	if err != nil {
		return domain.Order{}, err
	}
	if !applied {
		if order.Status == to {
			return order, nil
		}
		// Конкурентный переход успел раньше и увёл заказ в несовместимый статус.
		if transErr := domain.CanTransition(order.Status, to); transErr != nil {
			return domain.Order{}, transErr
		}
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	statusTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.logger.WithFields(log.Fields{"order_id": id, "from": from, "to": to}).Info("order status changed")
	s.recorder.Emit(id, "OrderStatusChanged", "", map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	return order, nil
}

// reactivate выводит отменённый заказ обратно в рабочий статус.
// Сначала повторное резервирование: без остатка заказ остаётся cancelled.
func (s *Service) reactivate(ctx context.Context, auth domain.AuthContext, order domain.Order, to domain.OrderStatus) (domain.Order, error) {
	if !auth.Admin {
		return domain.Order{}, domain.ErrForbidden
	}

	if err := s.reserver.Reserve(ctx, order.Items); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("reactivation blocked: reservation failed")
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	fresh, applied, err := s.orders.TransitionStatus(order.ID, to, []domain.OrderStatus{domain.OrderStatusCancelled}, now)
	if err != nil || !applied {
		// Кто-то уже реактивировал или удалил заказ: резерв не нужен.
		if restoreErr := s.reserver.Restore(ctx, order.Items); restoreErr != nil {
			s.logger.WithError(restoreErr).WithField("order_id", order.ID).Error("failed to release reservation after reactivation race")
		}
		if err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	statusTransitions.WithLabelValues(string(domain.OrderStatusCancelled), string(to)).Inc()
	s.logger.WithFields(log.Fields{"order_id": order.ID, "to": to}).Info("order reactivated")
	s.recorder.Emit(order.ID, "OrderReactivated", "", map[string]any{
		"to": string(to),
	})
	return fresh, nil
}

// Reassign передаёт заказ другому аккаунту. Только администратор.
// Version conflict ретраится с exponential backoff по образцу Save-циклов.
func (s *Service) Reassign(ctx context.Context, auth domain.AuthContext, id, newAccountID string) (domain.Order, error) {
	if !auth.Admin {
		return domain.Order{}, domain.ErrForbidden
	}
	if newAccountID == "" {
		return domain.Order{}, domain.ErrAccountRequired
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := s.orders.Get(id)
		if err != nil {
			return domain.Order{}, err
		}

		previous := order.AccountID
		order.AccountID = newAccountID
		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, err
		}

		s.logger.WithFields(log.Fields{
			"order_id": id,
			"from":     previous,
			"to":       newAccountID,
		}).Info("order reassigned")
		s.recorder.Emit(id, "OrderReassigned", "", map[string]any{
			"from_account": previous,
			"to_account":   newAccountID,
		})
		order.Version++
		return order, nil
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// MarkGatewayPayment помечает заказ как оплачиваемый через платёжный шлюз.
// Вызывается при выдаче платёжного URL; уже проставленный метод не трогаем.
func (s *Service) MarkGatewayPayment(ctx context.Context, auth domain.AuthContext, id string) (domain.Order, error) {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := s.orders.Get(id)
		if err != nil {
			return domain.Order{}, err
		}
		if !auth.CanAccess(order.AccountID) {
			return domain.Order{}, domain.ErrForbidden
		}
		if order.Status != domain.OrderStatusPending {
			return domain.Order{}, domain.ErrOrderFinalized
		}
		if order.PaymentMethod == domain.PaymentMethodGateway {
			return order, nil
		}

		order.PaymentMethod = domain.PaymentMethodGateway
		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, err
		}
		order.Version++
		return order, nil
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// Delete удаляет заказ. Только администратор. Если заказ ещё держит резерв
// (не был отменён), остаток возвращается на склад перед удалением.
func (s *Service) Delete(ctx context.Context, auth domain.AuthContext, id string) error {
	if !auth.Admin {
		return domain.ErrForbidden
	}

	order, err := s.orders.Get(id)
	if err != nil {
		return err
	}

	if order.Status != domain.OrderStatusCancelled {
		if err := s.reserver.Restore(ctx, order.Items); err != nil {
			s.logger.WithError(err).WithField("order_id", id).Error("stock restoration before delete failed")
		}
	}

	if err := s.orders.Delete(id); err != nil {
		return err
	}

	s.logger.WithField("order_id", id).Info("order deleted")
	s.recorder.Emit(id, "OrderDeleted", "", map[string]any{
		"account_id": order.AccountID,
		"status":     string(order.Status),
	})
	return nil
}

// forwardSources возвращает статусы, из которых разрешён прямой переход в to.
// Пропуск промежуточных шагов вперёд разрешён намеренно: COD-заказы не
// проходят через confirmed (подтверждение ставит только платёжный callback),
// поэтому оператор отправляет их pending -> shipping напрямую.
func forwardSources(to domain.OrderStatus) []domain.OrderStatus {
	switch to {
	case domain.OrderStatusConfirmed:
		return []domain.OrderStatus{domain.OrderStatusPending}
	case domain.OrderStatusShipping:
		return []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed}
	case domain.OrderStatusCompleted:
		return []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusShipping}
	default:
		return nil
	}
}
