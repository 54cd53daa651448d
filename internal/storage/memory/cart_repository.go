package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartRepository — in-memory корзина для локальной разработки и тестов.
type CartRepository struct {
	mu    sync.RWMutex
	items map[string][]domain.CartItem
}

// NewCartRepository создаёт пустую in-memory корзину.
func NewCartRepository() *CartRepository {
	return &CartRepository{items: make(map[string][]domain.CartItem)}
}

// Add кладёт позицию в корзину аккаунта (seed для тестов).
func (r *CartRepository) Add(item domain.CartItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.AccountID] = append(r.items[item.AccountID], item)
}

// List возвращает снимок корзины аккаунта в порядке добавления.
func (r *CartRepository) List(accountID string) ([]domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := append([]domain.CartItem(nil), r.items[accountID]...)
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
	})
	return snapshot, nil
}

// Clear опустошает корзину аккаунта.
func (r *CartRepository) Clear(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, accountID)
	return nil
}

var _ domain.CartRepository = (*CartRepository)(nil)
