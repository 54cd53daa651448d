package domain

import (
	"context"
	"time"
)

// StockReserver — сервис резервирования остатков с компенсацией.
type StockReserver interface {
	// Reserve удерживает остаток под все позиции либо не меняет склад вовсе.
	Reserve(ctx context.Context, items []OrderItem) error
	// Restore возвращает позиции на склад (at-least-once компенсация).
	Restore(ctx context.Context, items []OrderItem) error
}

// StockLedger — атомарные примитивы управления остатком товара.
// Единственный способ менять stock: условный декремент и безусловный инкремент.
type StockLedger interface {
	// TryDecrement атомарно уменьшает остаток товара на qty, только если
	// остатка хватает. Возвращает *InsufficientStockError при нехватке и
	// ErrProductNotFound для неизвестного товара.
	TryDecrement(productID string, qty int32) error
	// Increment безусловно возвращает qty единиц на остаток (компенсация).
	Increment(productID string, qty int32) error
}

// ProductRepository — чтение каталога товаров.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
}

// CartRepository — доступ к корзине покупателя (внешний коллаборатор).
type CartRepository interface {
	// List возвращает снимок корзины аккаунта.
	List(accountID string) ([]CartItem, error)
	// Clear опустошает корзину аккаунта после успешного checkout-а.
	Clear(accountID string) error
}

// AuthContext — результат разбора сессии, вычисляется один раз на границе HTTP
// и передаётся явно во все операции, требующие авторизации.
type AuthContext struct {
	AccountID string
	Admin     bool
}

// CanAccess сообщает, вправе ли вызывающий трогать заказ указанного владельца.
func (a AuthContext) CanAccess(ownerID string) bool {
	return a.Admin || a.AccountID == ownerID
}

// AccountService резолвит сессионный токен в контекст авторизации.
type AccountService interface {
	// Resolve возвращает ErrSessionInvalid для неизвестного токена.
	Resolve(token string) (AuthContext, error)
}

// PaymentNoticeRepository хранит записи дедупликации платёжных уведомлений.
type PaymentNoticeRepository interface {
	// CreateApplied записывает применённое уведомление; повторная запись с тем
	// же каналом и txn id возвращает ErrNoticeAlreadyApplied.
	CreateApplied(notice PaymentNotice) error
	// Get возвращает запись по ключу или ErrNoticeNotFound.
	Get(channel PaymentChannel, txnID string) (PaymentNotice, error)
	// Delete снимает запись дедупликации по ключу; отсутствие записи —
	// не ошибка.
	Delete(channel PaymentChannel, txnID string) error
	// DeleteExpired удаляет записи с истёкшим TTL, не более limit за вызов.
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
