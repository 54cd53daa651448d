package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора аккаунта.
	ErrAccountRequired = errors.New("account_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка неизвестного способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method is invalid")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("order status is invalid")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderFinalized — попытка перехода из терминального статуса.
	ErrOrderFinalized = errors.New("order already finalized")
	// ErrInvalidTransition — движение назад внутри не-терминальной цепочки статусов.
	ErrInvalidTransition = errors.New("illegal order status transition")
	// ErrProductNotFound возвращается складом/каталогом для неизвестного товара.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartEmpty — попытка checkout без позиций и с пустой корзиной.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrForbidden — вызывающий не владелец заказа и не администратор.
	ErrForbidden = errors.New("caller is not allowed to access this order")
	// ErrSessionInvalid — сессия не резолвится в аккаунт.
	ErrSessionInvalid = errors.New("session token is invalid")
	// ErrInvalidSignature — подпись платёжного callback-а не сошлась.
	ErrInvalidSignature = errors.New("payment callback signature is invalid")
	// ErrNoticeAlreadyApplied — точный повтор уведомления провайдера (тот же txn id и канал).
	ErrNoticeAlreadyApplied = errors.New("payment notice already applied")
	// ErrNoticeTxnRequired — запись дедупликации без идентификатора транзакции.
	ErrNoticeTxnRequired = errors.New("payment notice txn id is required")
	// ErrNoticeNotFound — запись дедупликации не найдена.
	ErrNoticeNotFound = errors.New("payment notice not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError указывает товар, по которому не хватило остатка.
// Первый же отказ условного декремента прерывает резервирование целиком.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// IsInsufficientStock проверяет ошибку нехватки остатка и возвращает товар-виновник.
func IsInsufficientStock(err error) (string, bool) {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.ProductID, true
	}
	return "", false
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
