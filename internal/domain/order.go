package domain

import "time"

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, резерв на складе уже удержан, оплата не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — оплата подтверждена (провайдером или оператором).
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipping — заказ передан в доставку.
	OrderStatusShipping OrderStatus = "shipping"
	// OrderStatusCompleted — заказ доставлен и закрыт. Терминальный статус.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён, резерв возвращён на склад. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус входит в закрытое перечисление.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipping, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, допускает ли статус дальнейшие переходы.
// Отменённый заказ может быть реактивирован административно, но только
// через повторное резервирование — см. CanTransition.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// PaymentMethod — способ оплаты заказа из закрытого перечисления.
type PaymentMethod string

const (
	// PaymentMethodCOD — оплата при получении.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodBank — банковский перевод без онлайн-подтверждения.
	PaymentMethodBank PaymentMethod = "bank"
	// PaymentMethodGateway — оплата через внешний платёжный шлюз (VNPay-протокол).
	PaymentMethodGateway PaymentMethod = "vnpay"
)

// Valid проверяет способ оплаты.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodBank, PaymentMethodGateway:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — идентификатор товара в каталоге.
	ProductID string
	// Qty — количество единиц товара, всегда >= 1.
	Qty int32
	// PriceMinor — цена за единицу на момент заказа, в минимальных денежных единицах.
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// LineTotal возвращает сумму по позиции: qty * price.
func (i OrderItem) LineTotal() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Receiver — контактный блок получателя заказа.
type Receiver struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Note    string
}

// Empty сообщает, заполнен ли блок получателя.
func (r Receiver) Empty() bool {
	return r == Receiver{}
}

// PaymentTrail — аудиторский след платёжных подтверждений по заказу.
// Хранит последний сырой payload по каждому каналу доставки и отметки времени.
type PaymentTrail struct {
	// ReturnPayload — последний валидный payload, пришедший браузерным redirect-ом.
	ReturnPayload map[string]string
	// NotifyPayload — последний валидный payload server-to-server уведомления.
	NotifyPayload map[string]string
	// LastTxnID — идентификатор транзакции провайдера из последнего применённого callback-а.
	LastTxnID string
	// ConfirmedAt — момент первого успешного подтверждения оплаты.
	ConfirmedAt *time.Time
	// FailedAt — момент последнего валидного callback-а с кодом отказа.
	FailedAt *time.Time
}

// Order агрегирует состояние заказа, его позиции и платёжный след.
type Order struct {
	ID            string
	AccountID     string
	Status        OrderStatus
	PaymentMethod PaymentMethod
	AmountMinor   int64
	Items         []OrderItem
	Receiver      Receiver
	Trail         PaymentTrail
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Отметки времени переходов для аудита.
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.AccountID == "" {
		errs = append(errs, ErrAccountRequired)
	}
	if !o.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.LineTotal()
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// LegacyOrderView — проекция заказа в старую одно-позиционную схему.
// Старые потребители читали заказ как одну пару товар/количество; проекция
// вычисляется по требованию и никогда не персистится рядом с каноническим видом.
type LegacyOrderView struct {
	ID            string
	AccountID     string
	ProductID     string
	Qty           int32
	PriceMinor    int64
	AmountMinor   int64
	PaymentMethod PaymentMethod
	Status        OrderStatus
	CreatedAt     time.Time
}

// LegacyView возвращает одно-позиционную проекцию: первая позиция заказа
// плюс агрегированная сумма. Для мульти-позиционного заказа это осознанно
// неполный вид, существующий только ради legacy-потребителей.
func (o *Order) LegacyView() LegacyOrderView {
	view := LegacyOrderView{
		ID:            o.ID,
		AccountID:     o.AccountID,
		AmountMinor:   o.AmountMinor,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
	}
	if len(o.Items) > 0 {
		view.ProductID = o.Items[0].ProductID
		view.Qty = o.Items[0].Qty
		view.PriceMinor = o.Items[0].PriceMinor
	}
	return view
}
