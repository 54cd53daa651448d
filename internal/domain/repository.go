package domain

import "time"

// OrderSort — порядок выдачи списка заказов.
type OrderSort string

const (
	OrderSortNewest    OrderSort = "newest"
	OrderSortOldest    OrderSort = "oldest"
	OrderSortTotalDesc OrderSort = "total_desc"
	OrderSortTotalAsc  OrderSort = "total_asc"
)

// Valid проверяет порядок сортировки.
func (s OrderSort) Valid() bool {
	switch s {
	case OrderSortNewest, OrderSortOldest, OrderSortTotalDesc, OrderSortTotalAsc:
		return true
	default:
		return false
	}
}

// OrderFilter — фильтр и пагинация списка заказов.
// Пустой AccountID означает выборку по всем аккаунтам (административный вид).
type OrderFilter struct {
	AccountID     string
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Sort          OrderSort
	Page          int
	PageSize      int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями. Возвращает ошибку,
	// если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает страницу заказов по фильтру и общее количество
	// подходящих записей.
	List(filter OrderFilter) ([]Order, int, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// TransitionStatus атомарно переводит заказ в статус to, только если
	// текущий статус входит в allowedFrom. Возвращает заказ после операции и
	// признак того, что переход действительно применён этим вызовом.
	TransitionStatus(id string, to OrderStatus, allowedFrom []OrderStatus, at time.Time) (Order, bool, error)
	// ApplyPaymentResult атомарно применяет результат платёжного callback-а:
	// аудиторский след пишется всегда, подтверждение двигает статус только
	// вперёд (pending -> confirmed), отказ никогда не откатывает подтверждение.
	// Возвращает заказ после операции и признак смены статуса.
	ApplyPaymentResult(id string, result PaymentResult) (Order, bool, error)
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(id string) error
}
