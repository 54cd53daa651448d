package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// handleGatewayReturn обрабатывает браузерный redirect покупателя от шлюза.
// Канал консультативный: он управляет только целью редиректа, авторитетное
// подтверждение приходит по IPN.
func (s *Server) handleGatewayReturn(c *gin.Context) {
	params := collectParams(c)

	outcome, err := s.reconciler.Apply(c.Request.Context(), domain.PaymentChannelReturn, params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			c.Redirect(http.StatusFound, "/?pay=0&code=97")
			return
		}
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.Redirect(http.StatusFound, "/?pay=0&code=01")
			return
		}
		writeError(c, err)
		return
	}

	target := "/orders/" + params["vnp_TxnRef"]
	if outcome.Success {
		c.Redirect(http.StatusFound, target+"?pay=1")
		return
	}
	c.Redirect(http.StatusFound, target+"?pay=0&code="+outcome.Code)
}

// handleGatewayIPN обрабатывает server-to-server уведомление шлюза.
// Ответ — plaintext контракт провайдера: OK / FAILED / INVALID.
func (s *Server) handleGatewayIPN(c *gin.Context) {
	params := collectParams(c)

	outcome, err := s.reconciler.Apply(c.Request.Context(), domain.PaymentChannelNotify, params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			c.String(http.StatusBadRequest, "INVALID")
			return
		}
		// Неизвестный заказ или отказ хранилища: провайдер повторит доставку.
		c.String(http.StatusOK, "FAILED")
		return
	}

	if outcome.Success || outcome.Duplicate {
		c.String(http.StatusOK, "OK")
		return
	}
	c.String(http.StatusOK, "FAILED")
}

// handlePaymentURL строит redirect-URL оплаты для собственного заказа и
// помечает заказ как оплачиваемый через шлюз.
func (s *Server) handlePaymentURL(c *gin.Context) {
	order, err := s.orders.MarkGatewayPayment(c.Request.Context(), authFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	payURL, err := s.gateway.BuildPaymentURL(order, c.ClientIP(), time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_url": payURL})
}

// collectParams сводит query- и form-параметры callback-а к плоской карте.
func collectParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	if err := c.Request.ParseForm(); err == nil {
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	return params
}
