package inventory

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockService — конфигурируемая заглушка StockReserver для тестов.
type MockService struct {
	ReserveErr error
	RestoreErr error

	ReserveCalls int
	RestoreCalls int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// Reserve возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) Reserve(ctx context.Context, items []domain.OrderItem) error {
	m.ReserveCalls++
	return m.ReserveErr
}

// Restore возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) Restore(ctx context.Context, items []domain.OrderItem) error {
	m.RestoreCalls++
	return m.RestoreErr
}

var _ domain.StockReserver = (*MockService)(nil)
