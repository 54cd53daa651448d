package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
)

// Server собирает HTTP-поверхность витрины поверх gin.
type Server struct {
	checkout   *checkout.Service
	orders     *orders.Service
	reconciler *payment.Reconciler
	gateway    *payment.Gateway
	cart       domain.CartRepository
	accounts   domain.AccountService
	logger     *log.Entry
	metrics    *metrics.HTTPMetrics

	engine *gin.Engine
}

// NewServer создаёт HTTP-сервер витрины и регистрирует маршруты.
func NewServer(
	checkoutService *checkout.Service,
	orderService *orders.Service,
	reconciler *payment.Reconciler,
	gateway *payment.Gateway,
	cart domain.CartRepository,
	accounts domain.AccountService,
	httpMetrics *metrics.HTTPMetrics,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}

	s := &Server{
		checkout:   checkoutService,
		orders:     orderService,
		reconciler: reconciler,
		gateway:    gateway,
		cart:       cart,
		accounts:   accounts,
		logger:     logger,
		metrics:    httpMetrics,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if httpMetrics != nil {
		engine.Use(s.metricsMiddleware())
	}

	// Callback-и шлюза аутентифицируются подписью, а не сессией.
	engine.GET("/payments/gateway/return", s.handleGatewayReturn)
	engine.GET("/payments/gateway/ipn", s.handleGatewayIPN)
	engine.POST("/payments/gateway/ipn", s.handleGatewayIPN)

	authed := engine.Group("/", s.authMiddleware())
	authed.POST("/checkout", s.handleCheckout)
	authed.GET("/orders", s.handleListOrders)
	authed.GET("/orders/:id", s.handleGetOrder)
	authed.POST("/orders/:id/cancel", s.handleCancelOrder)
	authed.POST("/orders/:id/status", s.handleUpdateStatus)
	authed.POST("/orders/:id/reassign", s.handleReassignOrder)
	authed.DELETE("/orders/:id", s.handleDeleteOrder)
	authed.GET("/orders/:id/payment-url", s.handlePaymentURL)
	authed.GET("/cart", s.handleGetCart)
	authed.DELETE("/cart", s.handleClearCart)

	s.engine = engine
	return s
}

// Router возвращает http.Handler для запуска сервера.
func (s *Server) Router() http.Handler {
	return s.engine
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.metrics.RequestStarted()
		started := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(started))
		s.metrics.RequestFinished()
	}
}
