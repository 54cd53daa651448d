package account

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockService — конфигурируемая заглушка AccountService.
// Реальная проверка сессий живёт во внешнем сервисе аккаунтов; витрина
// работает через порт, а эта реализация служит тестам и локальному запуску.
type MockService struct {
	mu       sync.RWMutex
	sessions map[string]domain.AuthContext

	ResolveCalls int
}

// NewMockService возвращает mock без единой известной сессии.
func NewMockService() *MockService {
	return &MockService{sessions: make(map[string]domain.AuthContext)}
}

// Seed регистрирует сессионный токен.
func (m *MockService) Seed(token string, auth domain.AuthContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = auth
}

// Resolve возвращает контекст авторизации или ErrSessionInvalid.
func (m *MockService) Resolve(token string) (domain.AuthContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveCalls++
	auth, ok := m.sessions[token]
	if !ok {
		return domain.AuthContext{}, domain.ErrSessionInvalid
	}
	return auth, nil
}

var _ domain.AccountService = (*MockService)(nil)
