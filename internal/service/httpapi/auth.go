package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// HeaderSessionToken — заголовок сессии покупателя.
const HeaderSessionToken = "X-Session-Token"

const authContextKey = "auth_context"

// authMiddleware резолвит сессионный токен ровно один раз на запрос и
// кладёт готовый AuthContext в gin-контекст. Дальше авторизация передаётся
// явно, хендлеры и сервисы к сессии не возвращаются.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderSessionToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session token is required"})
			return
		}

		auth, err := s.accounts.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session token is invalid"})
			return
		}

		c.Set(authContextKey, auth)
		c.Next()
	}
}

func authFrom(c *gin.Context) domain.AuthContext {
	value, ok := c.Get(authContextKey)
	if !ok {
		return domain.AuthContext{}
	}
	auth, _ := value.(domain.AuthContext)
	return auth
}
