package domain

import "time"

// PaymentChannel — канал доставки платёжного подтверждения.
type PaymentChannel string

const (
	// PaymentChannelReturn — браузерный redirect покупателя от шлюза.
	// Канал консультативный: управляет только результатом редиректа.
	PaymentChannelReturn PaymentChannel = "return"
	// PaymentChannelNotify — server-to-server уведомление (IPN).
	// Авторитетный канал подтверждения оплаты.
	PaymentChannelNotify PaymentChannel = "notify"
)

// Valid проверяет канал.
func (c PaymentChannel) Valid() bool {
	return c == PaymentChannelReturn || c == PaymentChannelNotify
}

// ResultCodeSuccess — код результата шлюза, означающий успешную оплату.
const ResultCodeSuccess = "00"

// PaymentNotice — запись дедупликации и аудита платёжных уведомлений.
// Ключ — канал + идентификатор транзакции провайдера; точный повтор
// уведомления полностью игнорируется.
type PaymentNotice struct {
	TxnID      string
	OrderID    string
	Channel    PaymentChannel
	ResultCode string
	Payload    map[string]string
	ReceivedAt time.Time
	TTLAt      time.Time
}

// Key возвращает ключ дедупликации записи.
func (n PaymentNotice) Key() string {
	return NoticeKey(n.Channel, n.TxnID)
}

// NoticeKey строит ключ дедупликации по каналу и транзакции провайдера.
func NoticeKey(channel PaymentChannel, txnID string) string {
	return string(channel) + ":" + txnID
}

// PaymentResult — разобранный и проверенный результат callback-а шлюза,
// готовый к применению к заказу.
type PaymentResult struct {
	Channel PaymentChannel
	Success bool
	Code    string
	TxnID   string
	Payload map[string]string
	At      time.Time
}
