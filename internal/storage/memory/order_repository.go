package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository.
// Все условные операции (TransitionStatus, ApplyPaymentResult) выполняются
// под одним мьютексом и потому атомарны, как их SQL-эквиваленты.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// List возвращает страницу заказов по фильтру и общее число подходящих записей.
func (r *orderRepositoryInMemory) List(filter domain.OrderFilter) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if filter.AccountID != "" && order.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.PaymentMethod != "" && order.PaymentMethod != filter.PaymentMethod {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sortOrders(result, filter.Sort)
	total := len(result)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = total
	}
	start := (page - 1) * size
	if start >= total {
		return []domain.Order{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return result[start:end], total, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// TransitionStatus атомарно переводит заказ в to, если текущий статус входит
// в allowedFrom. applied=false означает, что guard не сработал: заказ уже в
// целевом или ином статусе, вызывающий разбирает ситуацию сам.
func (r *orderRepositoryInMemory) TransitionStatus(id string, to domain.OrderStatus, allowedFrom []domain.OrderStatus, at time.Time) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, false, domain.ErrOrderNotFound
	}

	allowed := false
	for _, from := range allowedFrom {
		if order.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return cloneOrder(order), false, nil
	}

	order.Status = to
	order.Version++
	order.UpdatedAt = at
	stampTransition(&order, to, at)
	r.items[id] = order
	return cloneOrder(order), true, nil
}

// ApplyPaymentResult атомарно применяет результат платёжного callback-а.
// Аудиторский payload пишется всегда; подтверждение двигает статус только
// pending -> confirmed, отказ статуса не трогает.
func (r *orderRepositoryInMemory) ApplyPaymentResult(id string, result domain.PaymentResult) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, false, domain.ErrOrderNotFound
	}

	payload := clonePayload(result.Payload)
	switch result.Channel {
	case domain.PaymentChannelReturn:
		order.Trail.ReturnPayload = payload
	case domain.PaymentChannelNotify:
		order.Trail.NotifyPayload = payload
	}
	order.Trail.LastTxnID = result.TxnID

	at := result.At
	applied := false
	if result.Success {
		if order.Trail.ConfirmedAt == nil {
			order.Trail.ConfirmedAt = &at
		}
		if order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusConfirmed
			order.ConfirmedAt = &at
			applied = true
		}
	} else {
		order.Trail.FailedAt = &at
	}

	order.Version++
	order.UpdatedAt = at
	r.items[id] = order
	return cloneOrder(order), applied, nil
}

// Delete удаляет заказ или возвращает ErrOrderNotFound.
func (r *orderRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.items, id)
	return nil
}

func stampTransition(order *domain.Order, to domain.OrderStatus, at time.Time) {
	switch to {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &at
	case domain.OrderStatusCompleted:
		order.CompletedAt = &at
	case domain.OrderStatusCancelled:
		order.CancelledAt = &at
	case domain.OrderStatusPending:
		// Реактивация сбрасывает отметку отмены.
		order.CancelledAt = nil
	}
}

func sortOrders(orders []domain.Order, by domain.OrderSort) {
	sort.Slice(orders, func(i, j int) bool {
		switch by {
		case domain.OrderSortOldest:
			if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
				return orders[i].CreatedAt.Before(orders[j].CreatedAt)
			}
		case domain.OrderSortTotalDesc:
			if orders[i].AmountMinor != orders[j].AmountMinor {
				return orders[i].AmountMinor > orders[j].AmountMinor
			}
		case domain.OrderSortTotalAsc:
			if orders[i].AmountMinor != orders[j].AmountMinor {
				return orders[i].AmountMinor < orders[j].AmountMinor
			}
		default: // newest
			if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
				return orders[i].CreatedAt.After(orders[j].CreatedAt)
			}
		}
		return orders[i].ID > orders[j].ID
	})
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	dst.Trail.ReturnPayload = clonePayload(src.Trail.ReturnPayload)
	dst.Trail.NotifyPayload = clonePayload(src.Trail.NotifyPayload)
	return dst
}

func clonePayload(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
