package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type paymentNoticeRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.PaymentNotice
}

// NewPaymentNoticeRepository создаёт in-memory реализацию PaymentNoticeRepository.
func NewPaymentNoticeRepository() domain.PaymentNoticeRepository {
	return &paymentNoticeRepositoryInMemory{
		items: make(map[string]domain.PaymentNotice),
	}
}

// CreateApplied записывает применённое уведомление; повтор по тому же
// каналу и txn id возвращает ErrNoticeAlreadyApplied.
func (r *paymentNoticeRepositoryInMemory) CreateApplied(notice domain.PaymentNotice) error {
	notice.TxnID = strings.TrimSpace(notice.TxnID)
	if notice.TxnID == "" {
		return domain.ErrNoticeTxnRequired
	}

	now := time.Now().UTC()
	if notice.ReceivedAt.IsZero() {
		notice.ReceivedAt = now
	}
	if notice.TTLAt.IsZero() {
		notice.TTLAt = now.Add(24 * time.Hour)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := notice.Key()
	if _, ok := r.items[key]; ok {
		return domain.ErrNoticeAlreadyApplied
	}
	r.items[key] = cloneNotice(notice)
	return nil
}

// Get возвращает запись по каналу и txn id или ErrNoticeNotFound.
func (r *paymentNoticeRepositoryInMemory) Get(channel domain.PaymentChannel, txnID string) (domain.PaymentNotice, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.PaymentNotice{}, domain.ErrNoticeTxnRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	notice, ok := r.items[domain.NoticeKey(channel, txnID)]
	if !ok {
		return domain.PaymentNotice{}, domain.ErrNoticeNotFound
	}
	return cloneNotice(notice), nil
}

// Delete снимает запись дедупликации по ключу.
func (r *paymentNoticeRepositoryInMemory) Delete(channel domain.PaymentChannel, txnID string) error {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.ErrNoticeTxnRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, domain.NoticeKey(channel, txnID))
	return nil
}

// DeleteExpired удаляет записи с истёкшим TTL, не более limit за вызов.
func (r *paymentNoticeRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, notice := range r.items {
		if notice.TTLAt.After(before) {
			continue
		}

		delete(r.items, key)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

func cloneNotice(src domain.PaymentNotice) domain.PaymentNotice {
	dst := src
	dst.Payload = clonePayload(src.Payload)
	return dst
}

var _ domain.PaymentNoticeRepository = (*paymentNoticeRepositoryInMemory)(nil)
